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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:funlen // table-driven test
func TestScanForNDEFTLV(t *testing.T) {
	t.Parallel()

	longForm := make([]byte, 262)
	copy(longForm, []byte{0x03, 0xFF, 0x01, 0x00})
	longForm[260] = TLVTypeTerminator

	tests := []struct {
		wantErr    error
		name       string
		data       []byte
		wantOffset int
		wantLength int
		wantHeader int
	}{
		{
			name:       "NDEF first",
			data:       []byte{0x03, 0x04, 0xD1, 0x01, 0x00, 0x54, 0xFE},
			wantOffset: 2, wantLength: 4, wantHeader: 2,
		},
		{
			name:       "NULL padding",
			data:       []byte{0x00, 0x00, 0x00, 0x03, 0x02, 0xD1, 0x00, 0xFE},
			wantOffset: 5, wantLength: 2, wantHeader: 2,
		},
		{
			// clone tags ship a lock control block ahead of the message
			name:       "after lock control",
			data:       []byte{0x01, 0x03, 0xA0, 0x0C, 0x34, 0x03, 0x02, 0xD1, 0x00, 0xFE},
			wantOffset: 7, wantLength: 2, wantHeader: 2,
		},
		{
			name: "after lock and memory control",
			data: []byte{
				0x01, 0x03, 0x10, 0x20, 0x30,
				0x00,
				0x02, 0x03, 0x40, 0x50, 0x60,
				0x03, 0x01, 0xD1, 0xFE,
			},
			wantOffset: 13, wantLength: 1, wantHeader: 2,
		},
		{
			name:       "after proprietary block",
			data:       []byte{0x50, 0x02, 0xAA, 0xBB, 0x03, 0x01, 0xD1, 0xFE},
			wantOffset: 6, wantLength: 1, wantHeader: 2,
		},
		{
			name:       "reserved type byte skipped",
			data:       []byte{0xFF, 0x03, 0x01, 0xD1, 0xFE},
			wantOffset: 3, wantLength: 1, wantHeader: 2,
		},
		{
			name:       "long length form",
			data:       longForm,
			wantOffset: 4, wantLength: 256, wantHeader: 4,
		},
		{
			name:       "zero length message",
			data:       []byte{0x03, 0x00, 0xFE},
			wantOffset: 2, wantLength: 0, wantHeader: 2,
		},
		{
			name:    "terminator before NDEF",
			data:    []byte{0x00, 0x00, 0xFE, 0x03, 0x01, 0xD1},
			wantErr: ErrTLVNDEFNotFound,
		},
		{
			name:    "empty",
			data:    []byte{},
			wantErr: ErrTLVIncomplete,
		},
		{
			name:    "type without length",
			data:    []byte{0x03},
			wantErr: ErrTLVIncomplete,
		},
		{
			name:    "truncated long length",
			data:    []byte{0x03, 0xFF, 0x01},
			wantErr: ErrTLVIncomplete,
		},
		{
			name:    "only padding",
			data:    []byte{0x00, 0x00, 0x00, 0x00},
			wantErr: ErrTLVIncomplete,
		},
		{
			name:    "control block runs past data",
			data:    []byte{0x01, 0x08, 0xA0},
			wantErr: ErrTLVIncomplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			loc, err := ScanForNDEFTLV(tt.data)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, loc)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantOffset, loc.Offset)
			assert.Equal(t, tt.wantLength, loc.Length)
			assert.Equal(t, tt.wantHeader, loc.HeaderSize)
		})
	}
}

func TestExtractNDEFFromTLV(t *testing.T) {
	t.Parallel()

	msg, err := ExtractNDEFFromTLV([]byte{0x01, 0x03, 0xA0, 0x0C, 0x34, 0x03, 0x02, 0xD1, 0x00, 0xFE})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD1, 0x00}, msg)

	// claims 16 bytes, holds 2
	_, err = ExtractNDEFFromTLV([]byte{0x03, 0x10, 0xD1, 0x01})
	require.ErrorIs(t, err, ErrTLVIncomplete)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestBuildNDEFTLV(t *testing.T) {
	t.Parallel()

	t.Run("short form", func(t *testing.T) {
		t.Parallel()

		out, err := BuildNDEFTLV([]byte{0xD1, 0x01, 0x00, 0x54})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x03, 0x04, 0xD1, 0x01, 0x00, 0x54, 0xFE}, out)
	})

	t.Run("boundary stays short", func(t *testing.T) {
		t.Parallel()

		out, err := BuildNDEFTLV(make([]byte, 254))
		require.NoError(t, err)
		assert.Equal(t, []byte{0x03, 0xFE}, out[:2])
		assert.Len(t, out, 257)
	})

	t.Run("long form", func(t *testing.T) {
		t.Parallel()

		msg := bytes.Repeat([]byte{0xAB}, 300)
		out, err := BuildNDEFTLV(msg)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x03, 0xFF, 0x01, 0x2C}, out[:4])
		assert.Equal(t, byte(TLVTypeTerminator), out[len(out)-1])

		extracted, err := ExtractNDEFFromTLV(out)
		require.NoError(t, err)
		assert.Equal(t, msg, extracted)
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()

		_, err := BuildNDEFTLV(make([]byte, 0x10000))
		require.ErrorIs(t, err, ErrTLVTooLarge)
	})
}

func TestTLVDebugInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     []byte
		contains []string
	}{
		{name: "empty", data: []byte{}, contains: []string{"empty data"}},
		{
			name:     "simple NDEF",
			data:     []byte{0x03, 0x04, 0xD1, 0x01, 0x00, 0x54, 0xFE},
			contains: []string{"[0] NDEF len=4 headerSize=2", "[6] TERMINATOR"},
		},
		{
			name:     "multiple blocks",
			data:     []byte{0x00, 0x01, 0x03, 0xA0, 0x0C, 0x34, 0x02, 0x00, 0x03, 0x02, 0xD1, 0x00, 0xFE},
			contains: []string{"NULL", "LOCK_CONTROL len=3", "MEMORY_CONTROL len=0", "NDEF", "TERMINATOR"},
		},
		{
			name:     "proprietary",
			data:     []byte{0x50, 0x02, 0xAA, 0xBB, 0xFE},
			contains: []string{"PROPRIETARY(0x50) len=2"},
		},
		{
			name:     "truncated header",
			data:     []byte{0x03},
			contains: []string{"parse error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := TLVDebugInfo(tt.data)
			for _, want := range tt.contains {
				assert.Contains(t, result, want)
			}
		})
	}
}
