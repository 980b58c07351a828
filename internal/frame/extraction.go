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

// ExtractFrameData returns the payload after TFI of a validated frame whose
// LEN byte is at off. A frame with an unexpected TFI asks for a retry; an
// error frame is returned as {0x7F, code}.
func ExtractFrameData(buf []byte, off, frameLen int, tfiExpected byte) (data []byte, retry bool, err error) {
	if off < 0 || frameLen <= 0 {
		return nil, false, pn532.NewFrameCorruptedError("extractFrameData", "")
	}

	// skip LEN and LCS
	if off >= len(buf)-2 {
		return nil, false, pn532.NewFrameCorruptedError("extractFrameData", "")
	}
	off += 2

	tfi := buf[off]
	if tfi == ErrorTFI {
		return HandleErrorFrame(buf, off)
	}
	if tfi != tfiExpected {
		return nil, true, nil
	}

	off++
	dataLen := frameLen - 1
	if dataLen > len(buf)-off {
		return nil, false, pn532.NewFrameCorruptedError("extractFrameData", "")
	}

	data = make([]byte, dataLen)
	copy(data, buf[off:off+dataLen])
	return data, false, nil
}

// HandleErrorFrame returns {0x7F, code} for the error frame whose TFI is
// at off.
func HandleErrorFrame(buf []byte, off int) (data []byte, retry bool, err error) {
	off++
	if off >= len(buf) {
		return nil, false, pn532.NewFrameCorruptedError("handleErrorFrame", "")
	}
	return []byte{ErrorTFI, buf[off]}, false, nil
}

// Parse decodes the first complete PN532-to-host frame in buf. It returns
// the payload after TFI and the number of bytes consumed.
func Parse(buf []byte) (data []byte, consumed int, err error) {
	lenIdx := FindStart(buf, len(buf))
	if lenIdx < 0 {
		return nil, 0, pn532.NewFrameCorruptedError("parseFrame", "")
	}

	frameLen, retry, err := ValidateFrameLength(buf, lenIdx-1, len(buf), "parseFrame", "")
	if err != nil {
		return nil, 0, err
	}
	if retry {
		return nil, 0, pn532.NewChecksumMismatchError("parseFrame", "")
	}

	end := lenIdx + 2 + frameLen + 1
	if ValidateFrameChecksum(buf, lenIdx+2, end) {
		return nil, 0, pn532.NewChecksumMismatchError("parseFrame", "")
	}

	data, retry, err = ExtractFrameData(buf, lenIdx, frameLen, Pn532ToHost)
	if err != nil {
		return nil, 0, err
	}
	if retry {
		return nil, 0, pn532.NewInvalidResponseError("parseFrame", "")
	}
	return data, min(end+1, len(buf)), nil
}
