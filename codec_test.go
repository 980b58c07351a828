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
	"strings"
	"testing"

	"github.com/ZaparooProject/go-tagid/pkg/ndef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func legacyConfig() *Config {
	return DefaultConfig()
}

func correctedConfig() *Config {
	cfg := DefaultConfig()
	cfg.StrictLegacyCompat = false
	return cfg
}

func TestTextCodecEncode(t *testing.T) {
	t.Parallel()

	codec := NewTextCodec(legacyConfig())
	assert.Equal(t, []byte{0x00, 'h', 'e', 'l', 'l', 'o'}, codec.Encode("hello"))
	assert.Equal(t, []byte{0x00}, codec.Encode(""))
	assert.Equal(t, append([]byte{0x00}, "日本"...), codec.Encode("日本"))
}

func TestTextCodecMask(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ndef.LegacyLangLengthMask, NewTextCodec(legacyConfig()).Mask())
	assert.Equal(t, ndef.LangLengthMask, NewTextCodec(correctedConfig()).Mask())
}

//nolint:funlen // table-driven test
func TestTextCodecDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		want          string
		payload       []byte
		legacy        bool
		wantMalformed bool
	}{
		{
			name:    "empty language",
			payload: []byte{0x00, 'h', 'i'},
			want:    "hi",
			legacy:  true,
		},
		{
			name:    "english language code",
			payload: []byte{0x02, 'e', 'n', 'H', 'i'},
			want:    "Hi",
		},
		{
			name:    "UTF-8 language code legacy",
			payload: append([]byte{0x05, 'U', 'T', 'F', '-', '8'}, `{"device_id":"abc-123"}`...),
			want:    `TF-8{"device_id":"abc-123"}`,
			legacy:  true,
		},
		{
			name:    "UTF-8 language code corrected",
			payload: append([]byte{0x05, 'U', 'T', 'F', '-', '8'}, `{"device_id":"abc-123"}`...),
			want:    `{"device_id":"abc-123"}`,
		},
		{
			name:    "UTF-16 big-endian",
			payload: []byte{0x80, 0x00, 'o', 0x00, 'k'},
			want:    "ok",
			legacy:  true,
		},
		{
			name:          "empty payload",
			payload:       []byte{},
			wantMalformed: true,
		},
		{
			name:          "nil payload",
			payload:       nil,
			legacy:        true,
			wantMalformed: true,
		},
		{
			name:          "language length past end",
			payload:       []byte{0x03, 'e', 'n'},
			wantMalformed: true,
		},
		{
			name:          "invalid UTF-8",
			payload:       []byte{0x00, 0xFF, 0xFE},
			legacy:        true,
			wantMalformed: true,
		},
		{
			name:          "unpaired UTF-16 surrogate",
			payload:       []byte{0x80, 0xDC, 0x00},
			wantMalformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := correctedConfig()
			cfg.StrictLegacyCompat = tt.legacy
			got, err := NewTextCodec(cfg).Decode(tt.payload)
			if tt.wantMalformed {
				require.ErrorIs(t, err, ErrMalformedRecord)
				var recErr *RecordError
				require.ErrorAs(t, err, &recErr)
				assert.Equal(t, "decode", recErr.Op)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextCodecRoundTrip(t *testing.T) {
	t.Parallel()

	texts := []string{
		"",
		"hello",
		`{"device_id":"abc-123"}`,
		"TF-8 looks like a prefix",
		"emoji \U0001F3AE and accents éàü",
		strings.Repeat("long ", 200),
	}
	for _, cfg := range []*Config{legacyConfig(), correctedConfig()} {
		codec := NewTextCodec(cfg)
		for _, text := range texts {
			got, err := codec.Decode(codec.Encode(text))
			require.NoError(t, err)
			assert.Equal(t, text, got)
		}
	}
}

func TestTextCodecEncodeWithLanguage(t *testing.T) {
	t.Parallel()

	codec := NewTextCodec(correctedConfig())
	payload, err := codec.EncodeWithLanguage("hi", "en")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 'e', 'n', 'h', 'i'}, payload)

	_, err = codec.EncodeWithLanguage("hi", strings.Repeat("x", 64))
	require.ErrorIs(t, err, ErrMalformedRecord)
	require.ErrorIs(t, err, ndef.ErrTextLanguageTooLong)
}

func FuzzDecodeText(f *testing.F) {
	f.Add([]byte{0x00, 'h', 'i'}, true)
	f.Add([]byte{0x05, 'U', 'T', 'F', '-', '8', '{', '}'}, true)
	f.Add([]byte{0x3F}, false)
	f.Add([]byte{0x80, 0xD8}, false)

	f.Fuzz(func(t *testing.T, payload []byte, legacy bool) {
		cfg := DefaultConfig()
		cfg.StrictLegacyCompat = legacy
		codec := NewTextCodec(cfg)

		text, err := codec.Decode(payload)
		if err != nil {
			if !IsMalformedRecord(err) {
				t.Fatalf("decode error outside malformed category: %v", err)
			}
			return
		}
		again, err := codec.Decode(codec.Encode(text))
		if err != nil || again != text {
			t.Fatalf("re-encode of %q gave %q, %v", text, again, err)
		}
	})
}
