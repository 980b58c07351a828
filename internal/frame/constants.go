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

// Package frame builds and parses PN532 host interface frames.
//
// A normal information frame is
//
//	00 00 FF LEN LCS TFI PD0..PDn DCS 00
//
// where LEN counts TFI and the payload, LEN+LCS and TFI+PD0..PDn+DCS are
// zero modulo 256. The UART and I2C transports share these helpers.
package frame

// Frame identifiers (TFI)
const (
	HostToPn532 = 0xD4 // Commands from host to PN532
	Pn532ToHost = 0xD5 // Responses from PN532 to host
	ErrorTFI    = 0x7F // Application level error frame
)

// Frame markers
const (
	Preamble   = 0x00
	StartCode1 = 0x00
	StartCode2 = 0xFF
	Postamble  = 0x00
)

// Frame size limits
const (
	// MaxFrameDataLength is the largest LEN of a normal frame.
	MaxFrameDataLength = 255
	// MaxCommandArgs is the largest argument block a normal frame can carry
	// next to TFI and the command code.
	MaxCommandArgs = MaxFrameDataLength - 2
	// Overhead is the number of framing bytes around TFI and payload.
	Overhead = 7
	// MaxFrameLength is the size of the largest normal frame on the wire.
	MaxFrameLength = MaxFrameDataLength + Overhead
)

// ACK and NACK frames
var (
	AckFrame  = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	NackFrame = []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}
	// ErrorFrame is the fixed syntax error frame.
	ErrorFrame = []byte{0x00, 0x00, 0xFF, 0x01, 0xFF, ErrorTFI, 0x81, 0x00}
)
