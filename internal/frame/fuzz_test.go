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

package frame

import (
	"testing"
)

// Malformed input from clone chips or a noisy line must never panic.
//
// Run with: go test -fuzz=FuzzParse -fuzztime=30s ./internal/frame/

func FuzzParse(f *testing.F) {
	f.Add(Build(Pn532ToHost, []byte{0x03, 0x32, 0x01, 0x06, 0x07}))
	f.Add(AckFrame)
	f.Add(NackFrame)
	f.Add(ErrorFrame)
	f.Add([]byte{})
	f.Add([]byte{0x00, 0xFF})
	f.Add([]byte{0x00, 0x00, 0xFF, 0xFF, 0x01})
	f.Add([]byte{0x00, 0x00, 0xFF, 0x00, 0x00})

	f.Fuzz(func(t *testing.T, buf []byte) {
		data, consumed, err := Parse(buf)
		if err != nil {
			return
		}
		if consumed > len(buf) {
			t.Fatalf("consumed %d of %d bytes", consumed, len(buf))
		}
		if len(data) == 0 {
			t.Fatal("successful parse returned no data")
		}
	})
}

func FuzzValidateFrameLength(f *testing.F) {
	f.Add([]byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD5, 0x03}, 2, 7)
	f.Add([]byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}, 2, 6)
	f.Add([]byte{}, 0, 0)
	f.Add([]byte{0x00, 0x00, 0xFF}, 2, 3)
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF}, -3, 4)

	f.Fuzz(func(_ *testing.T, buf []byte, off, totalLen int) {
		_, _, _ = ValidateFrameLength(buf, off, totalLen, "fuzz", "")
	})
}

func FuzzValidateFrameChecksum(f *testing.F) {
	f.Add([]byte{0xD5, 0x03, 0x28}, 0, 3)
	f.Add([]byte{0x01, 0xFF}, 0, 2)
	f.Add([]byte{}, 0, 0)
	f.Add([]byte{0x01}, 2, 1)

	f.Fuzz(func(_ *testing.T, buf []byte, start, end int) {
		_ = ValidateFrameChecksum(buf, start, end)
	})
}

func FuzzExtractFrameData(f *testing.F) {
	f.Add(Build(Pn532ToHost, []byte{0x41, 0x00}), 3, 3)
	f.Add(ErrorFrame, 3, 1)
	f.Add([]byte{0x00, 0x00, 0xFF, 0x7F}, 1, 1)

	f.Fuzz(func(_ *testing.T, buf []byte, off, frameLen int) {
		_, _, _ = ExtractFrameData(buf, off, frameLen, Pn532ToHost)
	})
}
