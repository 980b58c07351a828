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
)

// Error categories. Every error returned by this package matches exactly one
// of the first three through errors.Is.
var (
	// ErrMalformedRecord means the NDEF text record is structurally invalid.
	ErrMalformedRecord = errors.New("malformed NDEF text record")
	// ErrInvalidFieldData means the decoded text is not a usable field set.
	ErrInvalidFieldData = errors.New("invalid tag field data")
	// ErrUpstreamIO means the tag I/O collaborator failed.
	ErrUpstreamIO = errors.New("tag I/O failed")

	// Upstream causes reported by tag implementations
	ErrTagNotPresent   = errors.New("tag not present")
	ErrTagNotWritable  = errors.New("tag is not writable")
	ErrTagNotFormatted = errors.New("tag is not NDEF formatted")
	ErrTagCapacity     = errors.New("data exceeds tag capacity")

	// Record and field causes
	ErrNotTextRecord  = errors.New("first record is not a text record")
	ErrMissingField   = errors.New("required field missing")
	ErrFieldNotString = errors.New("field value is not a string")
	ErrUnknownField   = errors.New("field not in schema")
	ErrSchemaMismatch = errors.New("field set schema does not match configuration")

	// ErrInvalidConfig means a configuration value failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// RecordError wraps a structural failure of an NDEF text record.
type RecordError struct {
	Err error  // Underlying cause
	Op  string // Operation that failed
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrMalformedRecord, e.Err)
}

func (e *RecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}

// FieldError wraps a failure to turn decoded text into a field set.
type FieldError struct {
	Err   error  // Underlying cause
	Op    string // Operation that failed
	Field string // Field name, empty when the whole document is bad
}

func (e *FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s %q: %v: %v", e.Op, e.Field, ErrInvalidFieldData, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrInvalidFieldData, e.Err)
}

func (e *FieldError) Unwrap() []error {
	return []error{ErrInvalidFieldData, e.Err}
}

// UpstreamError wraps an opaque failure from the tag I/O collaborator:
// connection lost, tag not writable, format errors.
type UpstreamError struct {
	Err error  // Underlying cause
	Op  string // Operation that failed
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrUpstreamIO, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstreamIO, e.Err}
}

// NewUpstreamError wraps err unless it is already an upstream error.
func NewUpstreamError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

// IsMalformedRecord reports whether err is a malformed record failure.
func IsMalformedRecord(err error) bool {
	return errors.Is(err, ErrMalformedRecord)
}

// IsInvalidFieldData reports whether err is a field data failure.
func IsInvalidFieldData(err error) bool {
	return errors.Is(err, ErrInvalidFieldData)
}

// IsUpstream reports whether err came from the tag I/O collaborator.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstreamIO)
}
