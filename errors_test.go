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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCategories(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	tests := []struct {
		err      error
		category error
		name     string
		message  string
	}{
		{
			name:     "record",
			err:      &RecordError{Op: "decode", Err: cause},
			category: ErrMalformedRecord,
			message:  "decode: malformed NDEF text record: boom",
		},
		{
			name:     "field",
			err:      &FieldError{Op: "deserialize", Field: FieldDeviceID, Err: cause},
			category: ErrInvalidFieldData,
			message:  `deserialize "device_id": invalid tag field data: boom`,
		},
		{
			name:     "whole document",
			err:      &FieldError{Op: "deserialize", Err: cause},
			category: ErrInvalidFieldData,
			message:  "deserialize: invalid tag field data: boom",
		},
		{
			name:     "upstream",
			err:      &UpstreamError{Op: "read", Err: cause},
			category: ErrUpstreamIO,
			message:  "read: tag I/O failed: boom",
		},
	}

	categories := []error{ErrMalformedRecord, ErrInvalidFieldData, ErrUpstreamIO}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.message, tt.err.Error())
			require.ErrorIs(t, tt.err, cause)

			wrapped := fmt.Errorf("outer: %w", tt.err)
			for _, c := range categories {
				assert.Equal(t, c == tt.category, errors.Is(wrapped, c), "category %v", c)
			}
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, IsMalformedRecord(&RecordError{Op: "x", Err: ErrNotTextRecord}))
	assert.True(t, IsInvalidFieldData(&FieldError{Op: "x", Err: ErrMissingField}))
	assert.True(t, IsUpstream(&UpstreamError{Op: "x", Err: ErrTagNotPresent}))
	assert.False(t, IsUpstream(ErrTagNotPresent))
	assert.False(t, IsMalformedRecord(nil))
}

func TestNewUpstreamError(t *testing.T) {
	t.Parallel()

	require.NoError(t, NewUpstreamError("read", nil))

	err := NewUpstreamError("read", ErrTagNotWritable)
	require.ErrorIs(t, err, ErrUpstreamIO)
	require.ErrorIs(t, err, ErrTagNotWritable)

	again := NewUpstreamError("write", fmt.Errorf("retry: %w", err))
	var ue *UpstreamError
	require.ErrorAs(t, again, &ue)
	assert.Equal(t, "read", ue.Op)
}
