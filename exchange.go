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
	"context"
	"fmt"

	"github.com/ZaparooProject/go-tagid/pkg/ndef"
)

// TagIO is the tag transport used by Exchange. Implementations move whole
// NDEF messages and report their own failures; Exchange wraps those as
// *UpstreamError.
type TagIO interface {
	ReadNDEF(ctx context.Context) ([]byte, error)
	WriteNDEF(ctx context.Context, msg []byte) error
}

// Exchange reads and writes field sets as single text record NDEF messages.
type Exchange struct {
	codec      *TextCodec
	serializer *FieldSerializer
	language   string
}

// NewExchange builds the codec and serializer selected by cfg.
func NewExchange(cfg *Config) (*Exchange, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	serializer, err := NewFieldSerializer(cfg)
	if err != nil {
		return nil, err
	}
	return &Exchange{
		codec:      NewTextCodec(cfg),
		serializer: serializer,
		language:   cfg.WriteLanguage(),
	}, nil
}

// Codec returns the text codec.
func (x *Exchange) Codec() *TextCodec { return x.codec }

// Serializer returns the field serializer.
func (x *Exchange) Serializer() *FieldSerializer { return x.serializer }

// NewFieldSet returns an empty field set for the configured schema.
func (x *Exchange) NewFieldSet() *FieldSet { return NewFieldSet(x.serializer.Schema()) }

// EncodeFields builds the NDEF message written to a tag for fields.
func (x *Exchange) EncodeFields(fields *FieldSet) ([]byte, error) {
	if want := x.serializer.Schema().Name; fields.Schema().Name != want {
		return nil, &FieldError{
			Op:  "encode",
			Err: fmt.Errorf("%w: got %q, want %q", ErrSchemaMismatch, fields.Schema().Name, want),
		}
	}

	text := x.serializer.Serialize(fields)
	var payload []byte
	if x.language == "" {
		payload = x.codec.Encode(text)
	} else {
		var err error
		payload, err = x.codec.EncodeWithLanguage(text, x.language)
		if err != nil {
			return nil, err
		}
	}

	msg, err := ndef.NewMessage(&ndef.Record{
		TNF:     ndef.TNFWellKnown,
		Type:    ndef.TextRecordType,
		Payload: payload,
	}).Marshal()
	if err != nil {
		return nil, &RecordError{Op: "encode", Err: err}
	}
	return msg, nil
}

// DecodeFields parses the first record of an NDEF message into a field set.
// Records after the first are ignored.
func (x *Exchange) DecodeFields(msg []byte) (*FieldSet, error) {
	var m ndef.Message
	if _, err := m.Unmarshal(msg); err != nil {
		return nil, &RecordError{Op: "decode", Err: err}
	}
	first := m.First()
	if !first.IsText() {
		return nil, &RecordError{
			Op:  "decode",
			Err: fmt.Errorf("%w: TNF %d type %q", ErrNotTextRecord, first.TNF, first.Type),
		}
	}
	if len(m.Records) > 1 {
		Debugf("ignoring %d records after the first", len(m.Records)-1)
	}

	text, err := x.codec.Decode(first.Payload)
	if err != nil {
		return nil, err
	}
	return x.serializer.Deserialize(text)
}

// WriteFields encodes fields and writes them to tag.
func (x *Exchange) WriteFields(ctx context.Context, tag TagIO, fields *FieldSet) error {
	msg, err := x.EncodeFields(fields)
	if err != nil {
		return err
	}
	Debugf("writing %d byte NDEF message: %s", len(msg), fields)
	if err := tag.WriteNDEF(ctx, msg); err != nil {
		return NewUpstreamError("write", err)
	}
	return nil
}

// ReadFields reads the NDEF message on tag and decodes its first record.
func (x *Exchange) ReadFields(ctx context.Context, tag TagIO) (*FieldSet, error) {
	msg, err := tag.ReadNDEF(ctx)
	if err != nil {
		return nil, NewUpstreamError("read", err)
	}
	Debugf("read %d byte NDEF message", len(msg))
	return x.DecodeFields(msg)
}

// ReadFieldsLenient is ReadFields for display call sites. It always returns
// a field set: the decoded fields on success, all-empty fields on failure,
// together with the error.
func (x *Exchange) ReadFieldsLenient(ctx context.Context, tag TagIO) (*FieldSet, error) {
	fields, err := x.ReadFields(ctx, tag)
	if err != nil {
		Debugf("tag unreadable, showing empty fields: %v", err)
		return x.NewFieldSet(), err
	}
	return fields, nil
}
