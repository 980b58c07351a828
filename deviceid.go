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

import "github.com/google/uuid"

// NewDeviceID returns a random (version 4) UUID string for the device_id field.
func NewDeviceID() string {
	return uuid.NewString()
}

// IsDeviceID reports whether s parses as a UUID. Tags written by hand may
// carry any string, so readers only use this for display hints.
func IsDeviceID(s string) bool {
	return uuid.Validate(s) == nil
}
