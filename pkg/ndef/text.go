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

package ndef

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Text record constants.
const (
	TextRecordType = "T"
	textUTF16Flag  = 0x80

	// LangLengthMask is the NFC Forum mask for the language code length
	// held in the low six bits of the status byte.
	LangLengthMask byte = 0x3F

	// LegacyLangLengthMask is the octal 0063 mask applied by early Android
	// tag writers. Bit 3 of the status byte is ignored, so a five byte
	// "UTF-8" language code reads back as one byte long.
	LegacyLangLengthMask byte = 0x33

	maxLanguageLength = 63 // 6 bits max
)

// Text record errors.
var (
	ErrTextPayloadTooShort  = errors.New("ndef: text payload too short")
	ErrTextLanguageTooLong  = errors.New("ndef: language code too long")
	ErrTextPayloadTruncated = errors.New("ndef: text payload truncated")
	ErrTextInvalidEncoding  = errors.New("ndef: text not valid for declared encoding")
)

// TextRecord represents parsed text record data.
type TextRecord struct {
	Text     string
	Language string
	UTF16    bool // true if UTF-16 encoded (rare)
}

// TextOption adjusts how text payloads are built or parsed.
type TextOption func(*textOptions)

type textOptions struct {
	langMask byte
	utf16    bool
}

func newTextOptions(opts []TextOption) textOptions {
	o := textOptions{langMask: LangLengthMask}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLangMask sets the mask used to extract the language code length from
// the status byte when parsing.
func WithLangMask(mask byte) TextOption {
	return func(o *textOptions) { o.langMask = mask }
}

// WithUTF16 encodes the text as big-endian UTF-16 and sets the status flag.
func WithUTF16() TextOption {
	return func(o *textOptions) { o.utf16 = true }
}

// NewTextRecord creates a new NDEF Text record. An empty language produces a
// zero length language code.
func NewTextRecord(text, language string) (*Record, error) {
	payload, err := EncodeTextPayload(text, language)
	if err != nil {
		return nil, err
	}
	return &Record{
		TNF:     TNFWellKnown,
		Type:    TextRecordType,
		Payload: payload,
	}, nil
}

// EncodeTextPayload creates a text record payload:
// status byte, language code, then the text.
func EncodeTextPayload(text, language string, opts ...TextOption) ([]byte, error) {
	if len(language) > maxLanguageLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTextLanguageTooLong, len(language))
	}
	o := newTextOptions(opts)

	content := []byte(text)
	status := byte(len(language))
	if o.utf16 {
		enc := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
		encoded, err := enc.Bytes(content)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTextInvalidEncoding, err)
		}
		content = encoded
		status |= textUTF16Flag
	}

	payload := make([]byte, 0, 1+len(language)+len(content))
	payload = append(payload, status)
	payload = append(payload, language...)
	payload = append(payload, content...)
	return payload, nil
}

// ParseTextRecord extracts text content from a Text record payload.
// Content must be valid in the encoding named by the status byte.
func ParseTextRecord(payload []byte, opts ...TextOption) (*TextRecord, error) {
	if len(payload) < 1 {
		return nil, ErrTextPayloadTooShort
	}
	o := newTextOptions(opts)

	status := payload[0]
	langLen := int(status & o.langMask)
	isUTF16 := (status & textUTF16Flag) != 0

	if len(payload) < 1+langLen {
		return nil, fmt.Errorf("%w: language length %d, payload %d bytes",
			ErrTextPayloadTruncated, langLen, len(payload))
	}

	content := payload[1+langLen:]
	var text string
	if isUTF16 {
		decoded, err := decodeUTF16(content)
		if err != nil {
			return nil, err
		}
		text = decoded
	} else {
		if !utf8.Valid(content) {
			return nil, fmt.Errorf("%w: invalid UTF-8 sequence", ErrTextInvalidEncoding)
		}
		text = string(content)
	}

	return &TextRecord{
		Text:     text,
		Language: string(payload[1 : 1+langLen]),
		UTF16:    isUTF16,
	}, nil
}

// DecodeTextPayload is a convenience function that extracts just the text string.
func DecodeTextPayload(payload []byte, opts ...TextOption) (string, error) {
	rec, err := ParseTextRecord(payload, opts...)
	if err != nil {
		return "", err
	}
	return rec.Text, nil
}

// decodeUTF16 decodes UTF-16 text honouring a leading byte order mark and
// defaulting to big-endian. Unpaired surrogates are rejected.
func decodeUTF16(content []byte) (string, error) {
	if len(content) == 0 {
		return "", nil
	}
	if len(content)%2 != 0 {
		return "", fmt.Errorf("%w: odd UTF-16 length %d", ErrTextInvalidEncoding, len(content))
	}
	if err := validateUTF16(content); err != nil {
		return "", err
	}

	dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
	out, err := dec.Bytes(content)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTextInvalidEncoding, err)
	}
	return string(out), nil
}

func validateUTF16(content []byte) error {
	littleEndian := false
	start := 0
	switch {
	case content[0] == 0xFF && content[1] == 0xFE:
		littleEndian = true
		start = 2
	case content[0] == 0xFE && content[1] == 0xFF:
		start = 2
	}

	unit := func(i int) uint16 {
		if littleEndian {
			return uint16(content[i]) | uint16(content[i+1])<<8
		}
		return uint16(content[i])<<8 | uint16(content[i+1])
	}

	for i := start; i < len(content); i += 2 {
		u := unit(i)
		switch {
		case u >= 0xD800 && u < 0xDC00:
			if i+3 >= len(content) {
				return fmt.Errorf("%w: truncated surrogate pair at byte %d", ErrTextInvalidEncoding, i)
			}
			next := unit(i + 2)
			if next < 0xDC00 || next > 0xDFFF {
				return fmt.Errorf("%w: unpaired high surrogate at byte %d", ErrTextInvalidEncoding, i)
			}
			i += 2
		case u >= 0xDC00 && u <= 0xDFFF:
			return fmt.Errorf("%w: unpaired low surrogate at byte %d", ErrTextInvalidEncoding, i)
		}
	}
	return nil
}
