// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tagid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Field names written to tags.
const (
	FieldDeviceID      = "device_id"
	FieldBluetoothName = "device_bluetooth_name"
	FieldBluetoothMAC  = "device_bluetooth_mac_address"
)

// LegacyPrefix is the marker left in front of the JSON document when a tag
// written with the "UTF-8" language code is read with the legacy mask.
const LegacyPrefix = "TF-8"

const legacyPrefixLen = 4

// Schema is the closed, ordered list of fields carried by a tag.
type Schema struct {
	Name   string
	Fields []string
}

// Known schemas.
var (
	DeviceSchema = Schema{
		Name:   "device",
		Fields: []string{FieldDeviceID},
	}
	BluetoothSchema = Schema{
		Name:   "bluetooth",
		Fields: []string{FieldDeviceID, FieldBluetoothName, FieldBluetoothMAC},
	}
)

// SchemaByName looks up a known schema.
func SchemaByName(name string) (Schema, error) {
	switch name {
	case DeviceSchema.Name:
		return DeviceSchema, nil
	case BluetoothSchema.Name:
		return BluetoothSchema, nil
	default:
		return Schema{}, fmt.Errorf("%w: unknown schema %q", ErrInvalidConfig, name)
	}
}

// Has reports whether the schema declares the field.
func (s Schema) Has(name string) bool {
	for _, f := range s.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// FieldSet is one tag's worth of field values. Every declared field is
// present; unset fields hold the empty string.
type FieldSet struct {
	values map[string]string
	schema Schema
}

// NewFieldSet returns a field set with every field empty.
func NewFieldSet(schema Schema) *FieldSet {
	values := make(map[string]string, len(schema.Fields))
	for _, name := range schema.Fields {
		values[name] = ""
	}
	return &FieldSet{schema: schema, values: values}
}

// Schema returns the schema the field set was built from.
func (f *FieldSet) Schema() Schema { return f.schema }

// Set assigns a field value.
func (f *FieldSet) Set(name, value string) error {
	if !f.schema.Has(name) {
		return &FieldError{Op: "set", Field: name, Err: ErrUnknownField}
	}
	f.values[name] = value
	return nil
}

// Get returns a field value, or "" for fields outside the schema.
func (f *FieldSet) Get(name string) string {
	return f.values[name]
}

// DeviceID returns the device_id field.
func (f *FieldSet) DeviceID() string { return f.values[FieldDeviceID] }

// BluetoothName returns the Bluetooth name field, empty for the device schema.
func (f *FieldSet) BluetoothName() string { return f.values[FieldBluetoothName] }

// BluetoothMAC returns the Bluetooth MAC field, empty for the device schema.
func (f *FieldSet) BluetoothMAC() string { return f.values[FieldBluetoothMAC] }

// Equal reports whether both sets declare the same fields with the same values.
func (f *FieldSet) Equal(other *FieldSet) bool {
	if other == nil || len(f.schema.Fields) != len(other.schema.Fields) {
		return false
	}
	for i, name := range f.schema.Fields {
		if other.schema.Fields[i] != name || other.values[name] != f.values[name] {
			return false
		}
	}
	return true
}

func (f *FieldSet) String() string {
	parts := make([]string, 0, len(f.schema.Fields))
	for _, name := range f.schema.Fields {
		parts = append(parts, fmt.Sprintf("%s=%q", name, f.values[name]))
	}
	return strings.Join(parts, " ")
}

// FieldSerializer converts field sets to and from the JSON document stored
// in a tag's text record.
type FieldSerializer struct {
	schema Schema
	legacy bool
}

// NewFieldSerializer returns a serializer for the configured schema and
// compatibility mode.
func NewFieldSerializer(cfg *Config) (*FieldSerializer, error) {
	schema, err := cfg.FieldSchema()
	if err != nil {
		return nil, err
	}
	return &FieldSerializer{schema: schema, legacy: cfg.StrictLegacyCompat}, nil
}

// Schema returns the schema used by Deserialize.
func (s *FieldSerializer) Schema() Schema { return s.schema }

// Serialize renders the field set as a JSON object with keys in schema order.
func (*FieldSerializer) Serialize(fields *FieldSet) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	var out strings.Builder
	out.WriteByte('{')
	for i, name := range fields.schema.Fields {
		if i > 0 {
			out.WriteByte(',')
		}
		writeJSONString(&out, enc, &buf, name)
		out.WriteByte(':')
		writeJSONString(&out, enc, &buf, fields.values[name])
	}
	out.WriteByte('}')
	return out.String()
}

func writeJSONString(out *strings.Builder, enc *json.Encoder, buf *bytes.Buffer, s string) {
	buf.Reset()
	// encoding a string value cannot fail
	_ = enc.Encode(s)
	out.Write(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}))
}

// Deserialize parses raw text read from a tag into a field set.
//
// Text longer than four UTF-16 code units has its first four units removed
// first, so a character outside the Basic Multilingual Plane counts as two. In legacy mode the strip depends on length alone, matching the
// original reader; a document without the marker loses its first four
// characters and fails to parse. In corrected mode only a leading
// LegacyPrefix is removed.
func (s *FieldSerializer) Deserialize(raw string) (*FieldSet, error) {
	body := s.stripLegacyPrefix(raw)

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, &FieldError{Op: "deserialize", Err: err}
	}
	if doc == nil {
		return nil, &FieldError{Op: "deserialize", Err: fmt.Errorf("%w: document is null", ErrMissingField)}
	}

	fields := NewFieldSet(s.schema)
	for _, name := range s.schema.Fields {
		value, ok := doc[name]
		if !ok {
			return nil, &FieldError{Op: "deserialize", Field: name, Err: ErrMissingField}
		}
		value = bytes.TrimSpace(value)
		if len(value) == 0 || value[0] != '"' {
			return nil, &FieldError{Op: "deserialize", Field: name, Err: ErrFieldNotString}
		}
		var str string
		if err := json.Unmarshal(value, &str); err != nil {
			return nil, &FieldError{Op: "deserialize", Field: name, Err: err}
		}
		fields.values[name] = str
	}
	return fields, nil
}

// DeserializeOrEmpty is Deserialize for display call sites: on failure it
// returns an all-empty field set together with the error.
func (s *FieldSerializer) DeserializeOrEmpty(raw string) (*FieldSet, error) {
	fields, err := s.Deserialize(raw)
	if err != nil {
		Debugf("field data unreadable, showing empty fields: %v", err)
		return NewFieldSet(s.schema), err
	}
	return fields, nil
}

func (s *FieldSerializer) stripLegacyPrefix(raw string) string {
	if utf16Len(raw) <= legacyPrefixLen {
		return raw
	}
	if !s.legacy && !strings.HasPrefix(raw, LegacyPrefix) {
		return raw
	}

	// Skip four UTF-16 code units. A surrogate pair straddling the boundary
	// is kept, so the remainder still fails to parse as it would with a
	// dangling low surrogate.
	i, units := 0, 0
	for i < len(raw) {
		r, size := utf8.DecodeRuneInString(raw[i:])
		n := runeUnits(r)
		if units+n > legacyPrefixLen {
			break
		}
		units += n
		i += size
	}
	return raw[i:]
}

// utf16Len returns the length of s in UTF-16 code units.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
