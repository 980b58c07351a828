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

// PN532 command codes
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSamConfiguration    = 0x14
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
	cmdInRelease           = 0x52
)

// Response codes are the command code plus one.
const (
	resGetFirmwareVersion  = cmdGetFirmwareVersion + 1
	resSamConfiguration    = cmdSamConfiguration + 1
	resInDataExchange      = cmdInDataExchange + 1
	resInListPassiveTarget = cmdInListPassiveTarget + 1
	resInRelease           = cmdInRelease + 1
)

// SAM configuration: normal mode, 50 ms * 0x14 timeout, use IRQ
var samNormalMode = []byte{0x01, 0x14, 0x01}

const (
	// brTy106TypeA selects 106 kbps ISO/IEC 14443 Type A targets.
	brTy106TypeA = 0x00
	// errorFrameTFI marks an application error frame returned as payload.
	errorFrameTFI = 0x7F
)

// NTAG21x commands sent through InDataExchange
const (
	ntagCmdRead  = 0x30 // returns 16 bytes (4 pages)
	ntagCmdWrite = 0xA2 // writes 1 page
)

// NTAG21x memory layout
const (
	// NTAGPageSize is the size of one NTAG page.
	NTAGPageSize = 4
	// NTAGReadSize is the number of bytes one READ returns.
	NTAGReadSize = 16

	ntagCCPage        = 3
	ntagUserStartPage = 4
	ntagCCMagic       = 0xE1
)
