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
	"github.com/ZaparooProject/go-tagid/pkg/ndef"
)

// TextCodec converts strings to and from NDEF text record payloads.
// It holds no state beyond its mask and is safe for concurrent use.
type TextCodec struct {
	mask byte
}

// NewTextCodec returns a codec using the language length mask selected by cfg.
func NewTextCodec(cfg *Config) *TextCodec {
	return &TextCodec{mask: cfg.langMask()}
}

// Mask returns the status byte mask used to read the language code length.
func (c *TextCodec) Mask() byte { return c.mask }

// Encode builds a text record payload with an empty language code:
// a zero status byte followed by the UTF-8 text.
func (*TextCodec) Encode(text string) []byte {
	payload := make([]byte, 0, 1+len(text))
	payload = append(payload, 0x00)
	return append(payload, text...)
}

// EncodeWithLanguage builds a UTF-8 text record payload carrying a language code.
func (*TextCodec) EncodeWithLanguage(text, language string) ([]byte, error) {
	payload, err := ndef.EncodeTextPayload(text, language)
	if err != nil {
		return nil, &RecordError{Op: "encode", Err: err}
	}
	return payload, nil
}

// Decode returns the text held in a text record payload.
func (c *TextCodec) Decode(payload []byte) (string, error) {
	text, err := ndef.DecodeTextPayload(payload, ndef.WithLangMask(c.mask))
	if err != nil {
		return "", &RecordError{Op: "decode", Err: err}
	}
	return text, nil
}
