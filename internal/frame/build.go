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
	"bytes"

	"github.com/ZaparooProject/go-tagid/pn532"
)

// BuildCommand encodes a host-to-PN532 information frame for cmd and args.
func BuildCommand(cmd byte, args []byte) ([]byte, error) {
	if len(args) > MaxCommandArgs {
		return nil, pn532.NewDataTooLargeError("buildFrame", "")
	}
	return Build(HostToPn532, append([]byte{cmd}, args...)), nil
}

// Build encodes a normal information frame around tfi and payload. The
// caller keeps len(payload) below MaxFrameDataLength.
func Build(tfi byte, payload []byte) []byte {
	dataLen := byte(1 + len(payload))

	frm := make([]byte, 0, Overhead+len(payload)+1)
	frm = append(frm, Preamble, StartCode1, StartCode2, dataLen, -dataLen, tfi)
	frm = append(frm, payload...)
	return append(frm, Complement(append([]byte{tfi}, payload...)...), Postamble)
}

// IsAck reports whether buf starts with an ACK frame.
func IsAck(buf []byte) bool {
	return bytes.HasPrefix(buf, AckFrame)
}

// IsNack reports whether buf starts with a NACK frame.
func IsNack(buf []byte) bool {
	return bytes.HasPrefix(buf, NackFrame)
}

// FindStart returns the index of the LEN byte following the first 00 FF
// start code in buf[:n], or -1.
func FindStart(buf []byte, n int) int {
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i+1 < n; i++ {
		if buf[i] == StartCode1 && buf[i+1] == StartCode2 {
			return i + 2
		}
	}
	return -1
}
