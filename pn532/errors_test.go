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

package pn532

import (
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tagid "github.com/ZaparooProject/go-tagid"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "timeout transport error", err: NewTimeoutError("read", "/dev/ttyUSB0"), want: true},
		{name: "checksum mismatch", err: NewChecksumMismatchError("read", ""), want: true},
		{name: "data too large", err: NewDataTooLargeError("write", ""), want: false},
		{name: "invalid response", err: NewInvalidResponseError("read", ""), want: false},
		{name: "wrapped no ACK", err: fmt.Errorf("send: %w", ErrNoACK), want: true},
		{name: "PN532 timeout status", err: NewPN532Error(statusTimeout, "InDataExchange", ""), want: true},
		{name: "PN532 auth error", err: NewPN532Error(statusAuthError, "InDataExchange", ""), want: false},
		{name: "tag not found", err: ErrTagNotFound, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "closed transport", err: fmt.Errorf("send: %w", ErrTransportClosed), want: true},
		{name: "device not found", err: ErrDeviceNotFound, want: true},
		{name: "EOF", err: io.EOF, want: true},
		{name: "permanent transport error", err: NewDataTooLargeError("write", ""), want: true},
		{name: "EIO", err: fmt.Errorf("read: %w", syscall.EIO), want: true},
		{name: "ENODEV", err: syscall.ENODEV, want: true},
		{name: "timeout", err: NewTimeoutError("read", ""), want: false},
		{name: "tag not found", err: ErrTagNotFound, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestPN532Error_Predicates(t *testing.T) {
	t.Parallel()

	for _, code := range []byte{statusTimeout, statusWrongContext, statusTargetReleased, statusCardDisappeared} {
		assert.True(t, NewPN532Error(code, "cmd", "").IsTargetLost(), "code 0x%02X", code)
	}
	assert.False(t, NewPN532Error(statusNotAllowed, "cmd", "").IsTargetLost())
	assert.True(t, NewPN532Error(statusNotAllowed, "cmd", "").IsWriteRefused())
	assert.True(t, NewPN532Error(statusTimeout, "cmd", "").IsTimeoutError())
}

func TestPN532Error_Error(t *testing.T) {
	t.Parallel()

	err := NewPN532ErrorWithDetails(statusCardDisappeared, "InDataExchange", 2, 1)
	msg := err.Error()
	assert.Contains(t, msg, "InDataExchange")
	assert.Contains(t, msg, "0x2B")
	assert.Contains(t, msg, "sent 2 bytes, target 1")
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	err := NewTimeoutError("waitAck", "/dev/ttyUSB0")
	require.ErrorIs(t, err, ErrTransportTimeout)
	assert.True(t, err.Retryable)
	assert.Contains(t, err.Error(), "waitAck")
	assert.Contains(t, err.Error(), "/dev/ttyUSB0")
}

func TestTagIOError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err     error
		want    error
		name    string
		notWant error
	}{
		{
			name: "no tag",
			err:  ErrTagNotFound,
			want: tagid.ErrTagNotPresent,
		},
		{
			name: "card disappeared",
			err:  fmt.Errorf("%w: %w", ErrTagReadFailed, NewPN532Error(statusCardDisappeared, "InDataExchange", "")),
			want: tagid.ErrTagNotPresent,
		},
		{
			name: "write refused",
			err:  fmt.Errorf("%w: %w", ErrTagWriteFailed, NewPN532Error(statusNotAllowed, "InDataExchange", "")),
			want: tagid.ErrTagNotWritable,
		},
		{
			name:    "already categorized",
			err:     tagid.ErrTagCapacity,
			want:    tagid.ErrTagCapacity,
			notWant: tagid.ErrTagNotPresent,
		},
		{
			name:    "transport failure",
			err:     NewTimeoutError("read", ""),
			want:    ErrTransportTimeout,
			notWant: tagid.ErrTagNotPresent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tagIOError("read NDEF", tt.err)
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, tt.err)
			if tt.notWant != nil {
				require.NotErrorIs(t, err, tt.notWant)
			}
			assert.Contains(t, err.Error(), "read NDEF")
		})
	}
}
