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
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// TLV block types found in the data area of a Type 2 tag.
const (
	TLVTypeNull          = 0x00 // single padding byte, no length
	TLVTypeLockControl   = 0x01
	TLVTypeMemoryControl = 0x02
	TLVTypeNDEF          = 0x03
	TLVTypeTerminator    = 0xFE // end of data area, no length
)

const (
	tlvLongLengthMarker = 0xFF
	tlvMaxShortLength   = 0xFE
	tlvMaxLength        = 0xFFFE
)

// TLV errors
var (
	// ErrTLVIncomplete means the data ended before the NDEF TLV, its length
	// field or its value. Reading more of the tag may resolve it.
	ErrTLVIncomplete   = errors.New("TLV data incomplete")
	ErrTLVNDEFNotFound = errors.New("NDEF TLV not found")
	ErrTLVTooLarge     = errors.New("NDEF message too large for TLV")
)

// NDEFLocation is where an NDEF message sits inside a TLV area.
type NDEFLocation struct {
	Offset     int // first byte of the NDEF message
	Length     int // NDEF message length in bytes
	HeaderSize int // 2 for the short length form, 4 for the long form
}

// End returns the offset just past the NDEF message.
func (l *NDEFLocation) End() int { return l.Offset + l.Length }

// ScanForNDEFTLV walks the TLV blocks in data and returns the location of the
// first NDEF message TLV. NULL, lock control, memory control and proprietary
// blocks are skipped. A terminator before any NDEF block yields
// ErrTLVNDEFNotFound.
func ScanForNDEFTLV(data []byte) (*NDEFLocation, error) {
	offset := 0
	for offset < len(data) {
		switch tlvType := data[offset]; tlvType {
		case TLVTypeNull:
			offset++
		case TLVTypeTerminator:
			return nil, ErrTLVNDEFNotFound
		case TLVTypeNDEF:
			return readTLVHeader(data, offset)
		default:
			if tlvType > TLVTypeTerminator {
				// reserved, no length field
				offset++
				continue
			}
			loc, err := readTLVHeader(data, offset)
			if err != nil {
				return nil, err
			}
			offset = loc.End()
		}
	}
	return nil, fmt.Errorf("%w: no NDEF TLV in %d bytes", ErrTLVIncomplete, len(data))
}

// readTLVHeader decodes the length field of the block at offset.
func readTLVHeader(data []byte, offset int) (*NDEFLocation, error) {
	if offset+1 >= len(data) {
		return nil, fmt.Errorf("%w: missing length at offset %d", ErrTLVIncomplete, offset)
	}
	if data[offset+1] != tlvLongLengthMarker {
		return &NDEFLocation{
			Offset:     offset + 2,
			Length:     int(data[offset+1]),
			HeaderSize: 2,
		}, nil
	}
	if offset+3 >= len(data) {
		return nil, fmt.Errorf("%w: incomplete long length at offset %d", ErrTLVIncomplete, offset)
	}
	return &NDEFLocation{
		Offset:     offset + 4,
		Length:     int(binary.BigEndian.Uint16(data[offset+2 : offset+4])),
		HeaderSize: 4,
	}, nil
}

// ExtractNDEFFromTLV returns the NDEF message held in a TLV area.
func ExtractNDEFFromTLV(data []byte) ([]byte, error) {
	loc, err := ScanForNDEFTLV(data)
	if err != nil {
		return nil, err
	}
	if loc.End() > len(data) {
		return nil, fmt.Errorf("%w: NDEF length %d exceeds %d available bytes",
			ErrTLVIncomplete, loc.Length, len(data)-loc.Offset)
	}
	return data[loc.Offset:loc.End()], nil
}

// BuildNDEFTLV wraps an NDEF message in an NDEF TLV followed by a terminator.
// Messages shorter than 255 bytes use the two byte header.
func BuildNDEFTLV(msg []byte) ([]byte, error) {
	if len(msg) > tlvMaxLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTLVTooLarge, len(msg))
	}

	out := make([]byte, 0, len(msg)+5)
	out = append(out, TLVTypeNDEF)
	if len(msg) <= tlvMaxShortLength {
		out = append(out, byte(len(msg)))
	} else {
		out = append(out, tlvLongLengthMarker)
		out = binary.BigEndian.AppendUint16(out, uint16(len(msg)))
	}
	out = append(out, msg...)
	return append(out, TLVTypeTerminator), nil
}

// TLVDebugInfo describes the TLV blocks in data, one per line.
func TLVDebugInfo(data []byte) string {
	if len(data) == 0 {
		return "empty data"
	}

	var sb strings.Builder
	offset := 0
	for offset < len(data) {
		tlvType := data[offset]
		switch {
		case tlvType == TLVTypeNull:
			fmt.Fprintf(&sb, "[%d] NULL\n", offset)
			offset++
			continue
		case tlvType == TLVTypeTerminator:
			fmt.Fprintf(&sb, "[%d] TERMINATOR\n", offset)
			return sb.String()
		case tlvType > TLVTypeTerminator:
			fmt.Fprintf(&sb, "[%d] UNKNOWN(0x%02X)\n", offset, tlvType)
			offset++
			continue
		}

		name := tlvName(tlvType)
		loc, err := readTLVHeader(data, offset)
		if err != nil {
			fmt.Fprintf(&sb, "[%d] %s (parse error: %v)\n", offset, name, err)
			return sb.String()
		}
		fmt.Fprintf(&sb, "[%d] %s len=%d headerSize=%d\n", offset, name, loc.Length, loc.HeaderSize)
		offset = loc.End()
	}
	return sb.String()
}

func tlvName(tlvType byte) string {
	switch tlvType {
	case TLVTypeNDEF:
		return "NDEF"
	case TLVTypeLockControl:
		return "LOCK_CONTROL"
	case TLVTypeMemoryControl:
		return "MEMORY_CONTROL"
	default:
		return fmt.Sprintf("PROPRIETARY(0x%02X)", tlvType)
	}
}
