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
	"runtime"
	"syscall"

	tagid "github.com/ZaparooProject/go-tagid"
)

// Error categories for retry and reporting decisions
var (
	// Transport errors - potentially retryable
	ErrTransportTimeout  = errors.New("transport timeout")
	ErrTransportWrite    = errors.New("transport write failed")
	ErrTransportRead     = errors.New("transport read failed")
	ErrTransportClosed   = errors.New("transport is closed")
	ErrTransportNotReady = errors.New("transport not ready")

	// Communication errors - potentially retryable
	ErrCommunicationFailed = errors.New("communication failed")
	ErrNoACK               = errors.New("no ACK received")
	ErrNACKReceived        = errors.New("NACK received")
	ErrFrameCorrupted      = errors.New("frame corrupted")
	ErrChecksumMismatch    = errors.New("checksum mismatch")

	// Device errors - generally not retryable
	ErrDeviceNotFound  = errors.New("device not found")
	ErrInvalidResponse = errors.New("invalid response format")

	// Tag errors
	ErrTagNotFound    = errors.New("tag not found")
	ErrTagReadFailed  = errors.New("tag read failed")
	ErrTagWriteFailed = errors.New("tag write failed")

	// Data errors - not retryable
	ErrDataTooLarge = errors.New("data too large")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or bus identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PN532Error carries a status code reported by the chip, either in an
// error frame or in the status byte of an RF command response.
type PN532Error struct {
	Command   string
	Context   string
	BytesSent int
	ErrorCode byte
	Target    byte
}

func (e *PN532Error) Error() string {
	base := fmt.Sprintf("%s error 0x%02X (%s)", e.Command, e.ErrorCode, pn532ErrorCodeMeaning(e.ErrorCode))
	if e.Context != "" {
		base += ": " + e.Context
	}
	if e.BytesSent > 0 {
		base += fmt.Sprintf(" [sent %d bytes, target %d]", e.BytesSent, e.Target)
	}
	return base
}

// Status codes from the PN532 user manual, section 7.1
const (
	statusTimeout         = 0x01
	statusAuthError       = 0x14
	statusWrongContext    = 0x27
	statusTargetReleased  = 0x29
	statusNotAllowed      = 0x26
	statusCardDisappeared = 0x2B
	statusNotSupported    = 0x81
)

var pn532ErrorMeanings = map[byte]string{
	0x00:                  "success",
	statusTimeout:         "timeout",
	0x02:                  "CRC error",
	0x03:                  "parity error",
	0x04:                  "erroneous bit count during anti-collision",
	0x05:                  "framing error during mifare operation",
	0x06:                  "abnormal bit collision",
	0x07:                  "communication buffer size insufficient",
	0x09:                  "RF buffer overflow",
	0x0A:                  "RF field not activated in time",
	0x0B:                  "RF protocol error",
	0x0D:                  "overheating",
	0x0E:                  "internal buffer overflow",
	0x10:                  "invalid parameter",
	0x13:                  "dataformat does not match",
	statusAuthError:       "authentication error",
	0x23:                  "UID check byte is wrong",
	statusNotAllowed:      "operation not allowed",
	statusWrongContext:    "wrong context for command",
	statusTargetReleased:  "target released by initiator",
	0x2A:                  "card ID mismatch",
	statusCardDisappeared: "card disappeared",
	0x2D:                  "over-current event",
	statusNotSupported:    "command not supported",
}

func pn532ErrorCodeMeaning(code byte) string {
	if m, ok := pn532ErrorMeanings[code]; ok {
		return m
	}
	return "unknown error"
}

// IsTimeoutError returns true if the chip gave up waiting for the target
func (e *PN532Error) IsTimeoutError() bool {
	return e.ErrorCode == statusTimeout
}

// IsTargetLost returns true if the status means the tag left the field
// or was never selected.
func (e *PN532Error) IsTargetLost() bool {
	switch e.ErrorCode {
	case statusTimeout, statusWrongContext, statusTargetReleased, statusCardDisappeared:
		return true
	default:
		return false
	}
}

// IsWriteRefused returns true if the tag refused a write.
func (e *PN532Error) IsWriteRefused() bool {
	return e.ErrorCode == statusNotAllowed
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	var pe *PN532Error
	if errors.As(err, &pe) {
		return pe.IsTimeoutError()
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrCommunicationFailed),
		errors.Is(err, ErrNoACK),
		errors.Is(err, ErrFrameCorrupted),
		errors.Is(err, ErrChecksumMismatch):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the reader is gone and
// polling should stop entirely.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) && te.Type == ErrorTypePermanent {
		return true
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// Windows error codes for device disconnection detection.
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

// isDeviceGoneError checks for OS-level errors raised when a USB reader is
// unplugged during I/O.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	//nolint:exhaustive // only device-gone errors matter
	switch errno {
	case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
		return true
	}

	if runtime.GOOS == "windows" {
		//nolint:exhaustive // only device-gone errors matter
		switch errno {
		case errAccessDenied, errGenFailure, errNoSuchDevice:
			return true
		}
	}
	return false
}

// tagIOError maps reader failures onto the tag I/O causes callers of
// tagid.TagIO test for.
func tagIOError(op string, err error) error {
	var pe *PN532Error
	switch {
	case errors.Is(err, ErrTagNotFound):
		return fmt.Errorf("%s: %w: %w", op, tagid.ErrTagNotPresent, err)
	case errors.As(err, &pe) && pe.IsTargetLost():
		return fmt.Errorf("%s: %w: %w", op, tagid.ErrTagNotPresent, err)
	case errors.As(err, &pe) && pe.IsWriteRefused():
		return fmt.Errorf("%s: %w: %w", op, tagid.ErrTagNotWritable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// Error constructors for consistent error creation

// NewPN532Error creates a PN532 error with the specified error code and context
func NewPN532Error(errorCode byte, command, context string) *PN532Error {
	return &PN532Error{
		ErrorCode: errorCode,
		Command:   command,
		Context:   context,
	}
}

// NewPN532ErrorWithDetails creates a PN532 error that records the bytes
// sent and the target addressed.
func NewPN532ErrorWithDetails(errorCode byte, command string, bytesSent int, target byte) *PN532Error {
	return &PN532Error{
		ErrorCode: errorCode,
		Command:   command,
		BytesSent: bytesSent,
		Target:    target,
	}
}

// NewTransportError creates a transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for transport operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewFrameCorruptedError creates a frame corruption error
func NewFrameCorruptedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrFrameCorrupted, ErrorTypeTransient)
}

// NewCommunicationFailedError reports a response that stayed corrupted
// through every NACK retransmission.
func NewCommunicationFailedError(op, port string, tries int) *TransportError {
	err := fmt.Errorf("%w after %d tries: %w", ErrCommunicationFailed, tries, ErrFrameCorrupted)
	return NewTransportError(op, port, err, ErrorTypeTransient)
}

// NewDataTooLargeError creates a data too large error (permanent)
func NewDataTooLargeError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrDataTooLarge, ErrorTypePermanent)
}

// NewTransportWriteError creates a write error (transient)
func NewTransportWriteError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportWrite, ErrorTypeTransient)
}

// NewNoACKError creates a "no ACK received" error (timeout)
func NewNoACKError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrNoACK, ErrorTypeTimeout)
}

// NewNACKReceivedError creates a "NACK received" error (transient)
func NewNACKReceivedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrNACKReceived, ErrorTypeTransient)
}

// NewInvalidResponseError creates an invalid response error (permanent)
func NewInvalidResponseError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrInvalidResponse, ErrorTypePermanent)
}

// NewChecksumMismatchError creates a checksum mismatch error (transient)
func NewChecksumMismatchError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrChecksumMismatch, ErrorTypeTransient)
}

// NewTransportNotReadyError creates a transport not ready error (timeout)
func NewTransportNotReadyError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportNotReady, ErrorTypeTimeout)
}
