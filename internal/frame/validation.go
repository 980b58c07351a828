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
	"github.com/ZaparooProject/go-tagid/pn532"
)

// ValidateFrameLength checks the LEN and LCS bytes that follow the start
// code byte at off. It returns the frame length, or shouldRetry when the
// length checksum is wrong and the host should answer with a NACK.
func ValidateFrameLength(
	buf []byte, off, totalLen int, operation, port string,
) (frameLen int, shouldRetry bool, err error) {
	off++

	if off < 0 || off >= totalLen-1 || off >= len(buf)-1 {
		return 0, false, pn532.NewFrameCorruptedError(operation, port)
	}

	frameLen = int(buf[off])
	if byte(frameLen)+buf[off+1] != 0 {
		return 0, true, nil
	}

	return frameLen, false, nil
}

// ValidateFrameChecksum reports whether buf[start:end], which ends with
// the DCS byte, fails its checksum. Bad bounds count as a failure.
func ValidateFrameChecksum(buf []byte, start, end int) bool {
	if start < 0 || end < 0 || start > end || end > len(buf) {
		return true
	}
	return CalculateChecksum(buf[start:end]) != 0
}
