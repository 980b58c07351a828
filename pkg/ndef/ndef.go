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

// Package ndef encodes and decodes NFC Data Exchange Format messages and the
// well-known Text record carried on identity tags.
package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// TNF (Type Name Format) values as defined by NFC Forum.
const (
	TNFEmpty          byte = 0x00 // Empty record
	TNFWellKnown      byte = 0x01 // NFC Forum well-known type
	TNFMedia          byte = 0x02 // Media-type (RFC 2046)
	TNFAbsoluteURI    byte = 0x03 // Absolute URI (RFC 3986)
	TNFExternal       byte = 0x04 // NFC Forum external type
	TNFUnknown        byte = 0x05 // Unknown
	TNFUnchanged      byte = 0x06 // Unchanged (for chunked records)
	TNFReserved       byte = 0x07 // Reserved
	tnfMask           byte = 0x07
	flagMB            byte = 0x80
	flagME            byte = 0x40
	flagCF            byte = 0x20
	flagSR            byte = 0x10
	flagIL            byte = 0x08
	shortRecordMaxLen      = 255

	// MaxMessageSize bounds a single message; the largest NTAG user area is 888 bytes.
	MaxMessageSize = 8192
)

// Common errors.
var (
	ErrEmptyMessage    = errors.New("ndef: empty message")
	ErrTruncatedRecord = errors.New("ndef: truncated record data")
	ErrInvalidTNF      = errors.New("ndef: invalid TNF value")
	ErrChunkedRecord   = errors.New("ndef: chunked records not supported")
	ErrMessageTooLarge = errors.New("ndef: message too large")
	ErrInvalidRecord   = errors.New("ndef: invalid record")
)

// Record represents a single NDEF record.
type Record struct {
	Type    string
	ID      string
	Payload []byte
	TNF     byte
	mb      bool
	me      bool
}

// MB returns true if this record is the first in a message.
func (r *Record) MB() bool { return r.mb }

// ME returns true if this record is the last in a message.
func (r *Record) ME() bool { return r.me }

// IsText reports whether the record is a well-known Text record.
func (r *Record) IsText() bool {
	return r.TNF == TNFWellKnown && r.Type == TextRecordType
}

// Message represents an NDEF message containing one or more records.
type Message struct {
	Records []*Record
}

// NewMessage builds a message from the given records.
func NewMessage(records ...*Record) *Message {
	return &Message{Records: records}
}

// First returns the first record, or nil for an empty message.
func (m *Message) First() *Record {
	if len(m.Records) == 0 {
		return nil
	}
	return m.Records[0]
}

// Marshal serializes the NDEF message to bytes, setting MB on the first
// record and ME on the last.
func (m *Message) Marshal() ([]byte, error) {
	if len(m.Records) == 0 {
		return nil, ErrEmptyMessage
	}

	var out []byte
	last := len(m.Records) - 1
	for i, rec := range m.Records {
		rec.mb = i == 0
		rec.me = i == last

		data, err := rec.Marshal()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, data...)
	}
	if len(out) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(out))
	}
	return out, nil
}

// Unmarshal parses one NDEF message and returns the number of bytes consumed.
// Parsing stops at the record carrying ME.
func (m *Message) Unmarshal(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrEmptyMessage
	}
	if len(data) > MaxMessageSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	m.Records = nil
	offset := 0
	for offset < len(data) {
		rec := &Record{}
		n, err := rec.Unmarshal(data[offset:])
		if err != nil {
			return offset, fmt.Errorf("record at offset %d: %w", offset, err)
		}
		if rec.mb && len(m.Records) > 0 {
			// a second message starts here
			break
		}

		m.Records = append(m.Records, rec)
		offset += n
		if rec.me {
			break
		}
	}

	if len(m.Records) == 0 {
		return 0, ErrEmptyMessage
	}
	return offset, nil
}

// recordHeader holds the decoded fixed part of a record.
type recordHeader struct {
	typeLen    int
	idLen      int
	payloadLen int
	size       int // bytes taken by the header itself
	flags      byte
}

func parseRecordHeader(data []byte) (recordHeader, error) {
	if len(data) < 3 {
		return recordHeader{}, ErrTruncatedRecord
	}

	h := recordHeader{flags: data[0], typeLen: int(data[1])}
	if h.flags&flagCF != 0 {
		return recordHeader{}, ErrChunkedRecord
	}
	if h.flags&tnfMask > TNFUnchanged {
		return recordHeader{}, ErrInvalidTNF
	}

	offset := 2
	if h.flags&flagSR != 0 {
		h.payloadLen = int(data[offset])
		offset++
	} else {
		if offset+4 > len(data) {
			return recordHeader{}, ErrTruncatedRecord
		}
		h.payloadLen = int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4
	}

	if h.flags&flagIL != 0 {
		if offset >= len(data) {
			return recordHeader{}, ErrTruncatedRecord
		}
		h.idLen = int(data[offset])
		offset++
	}

	h.size = offset
	return h, nil
}

// Marshal serializes a single NDEF record to bytes.
func (r *Record) Marshal() ([]byte, error) {
	if r.TNF > TNFReserved {
		return nil, ErrInvalidTNF
	}
	// type and ID lengths are single bytes on the wire
	if len(r.Type) > 255 {
		return nil, fmt.Errorf("%w: type is %d bytes, max 255", ErrInvalidRecord, len(r.Type))
	}
	if len(r.ID) > 255 {
		return nil, fmt.Errorf("%w: ID is %d bytes, max 255", ErrInvalidRecord, len(r.ID))
	}

	payloadLen := len(r.Payload)
	short := payloadLen <= shortRecordMaxLen

	flags := r.TNF & tnfMask
	if r.mb {
		flags |= flagMB
	}
	if r.me {
		flags |= flagME
	}
	if short {
		flags |= flagSR
	}
	if r.ID != "" {
		flags |= flagIL
	}

	out := make([]byte, 0, 7+len(r.Type)+len(r.ID)+payloadLen)
	out = append(out, flags, byte(len(r.Type)))
	if short {
		out = append(out, byte(payloadLen))
	} else {
		//nolint:gosec // payloadLen is non-negative and bounded by MaxMessageSize
		out = binary.BigEndian.AppendUint32(out, uint32(payloadLen))
	}
	if r.ID != "" {
		out = append(out, byte(len(r.ID)))
	}
	out = append(out, r.Type...)
	out = append(out, r.ID...)
	out = append(out, r.Payload...)
	return out, nil
}

// Unmarshal parses a single NDEF record and returns the number of bytes consumed.
func (r *Record) Unmarshal(data []byte) (int, error) {
	h, err := parseRecordHeader(data)
	if err != nil {
		return 0, err
	}

	total := h.size + h.typeLen + h.idLen + h.payloadLen
	if total > len(data) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedRecord, total, len(data))
	}

	r.TNF = h.flags & tnfMask
	r.mb = h.flags&flagMB != 0
	r.me = h.flags&flagME != 0

	offset := h.size
	r.Type = string(data[offset : offset+h.typeLen])
	offset += h.typeLen
	r.ID = string(data[offset : offset+h.idLen])
	offset += h.idLen

	r.Payload = nil
	if h.payloadLen > 0 {
		r.Payload = make([]byte, h.payloadLen)
		copy(r.Payload, data[offset:offset+h.payloadLen])
	}
	return total, nil
}
