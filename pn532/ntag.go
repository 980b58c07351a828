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
	"context"
	"errors"
	"fmt"

	tagid "github.com/ZaparooProject/go-tagid"
)

// CapabilityContainer is page 3 of an NFC Forum Type 2 tag.
type CapabilityContainer struct {
	Magic   byte // 0xE1 on NDEF formatted tags
	Version byte
	Size    byte // data area size / 8
	Access  byte // 0x00 read/write, 0x0F read-only
}

// Formatted reports whether the tag carries the NDEF magic number.
func (c CapabilityContainer) Formatted() bool { return c.Magic == ntagCCMagic }

// DataAreaSize returns the size of the TLV area in bytes.
func (c CapabilityContainer) DataAreaSize() int { return int(c.Size) * 8 }

// Writable reports whether the write access nibble allows writes.
func (c CapabilityContainer) Writable() bool { return c.Access&0x0F == 0x00 }

// ReadPage reads 16 bytes (4 pages) starting at page from the current target
func (d *Device) ReadPage(ctx context.Context, page uint8) ([]byte, error) {
	data, err := d.DataExchange(ctx, []byte{ntagCmdRead, page})
	if err != nil {
		return nil, fmt.Errorf("%w (page %d): %w", ErrTagReadFailed, page, err)
	}
	if len(data) < NTAGReadSize {
		return nil, fmt.Errorf("%w: read returned %d bytes", ErrInvalidResponse, len(data))
	}
	return data[:NTAGReadSize], nil
}

// WritePage writes one 4 byte page to the current target
func (d *Device) WritePage(ctx context.Context, page uint8, data []byte) error {
	if len(data) != NTAGPageSize {
		return fmt.Errorf("invalid page size: expected %d, got %d", NTAGPageSize, len(data))
	}
	if page < ntagCCPage {
		return fmt.Errorf("%w: page %d is reserved", ErrTagWriteFailed, page)
	}

	cmd := append([]byte{ntagCmdWrite, page}, data...)
	if _, err := d.DataExchange(ctx, cmd); err != nil {
		return fmt.Errorf("%w (page %d): %w", ErrTagWriteFailed, page, err)
	}
	return nil
}

// ReadCapabilityContainer reads page 3 of the current target
func (d *Device) ReadCapabilityContainer(ctx context.Context) (CapabilityContainer, error) {
	data, err := d.ReadPage(ctx, ntagCCPage)
	if err != nil {
		return CapabilityContainer{}, err
	}
	return CapabilityContainer{Magic: data[0], Version: data[1], Size: data[2], Access: data[3]}, nil
}

// ensureTarget selects a tag when none is current
func (d *Device) ensureTarget(ctx context.Context) error {
	if d.target != nil {
		return nil
	}
	_, err := d.DetectTag(ctx)
	return err
}

// ReadNDEF reads the NDEF message of the tag in the field. It implements
// tagid.TagIO.
func (d *Device) ReadNDEF(ctx context.Context) ([]byte, error) {
	msg, err := d.readNDEF(ctx)
	if err != nil {
		return nil, tagIOError("read NDEF", d.dropTargetOnLoss(err))
	}
	return msg, nil
}

func (d *Device) readNDEF(ctx context.Context) ([]byte, error) {
	if err := d.ensureTarget(ctx); err != nil {
		return nil, err
	}

	// one READ at page 3 returns the CC and the first 12 data bytes
	first, err := d.ReadPage(ctx, ntagCCPage)
	if err != nil {
		return nil, err
	}
	cc := CapabilityContainer{Magic: first[0], Version: first[1], Size: first[2], Access: first[3]}
	if !cc.Formatted() {
		return nil, tagid.ErrTagNotFormatted
	}

	size := cc.DataAreaSize()
	area := append(make([]byte, 0, size), first[NTAGPageSize:]...)
	if len(area) > size {
		area = area[:size]
	}

	for {
		msg, err := tagid.ExtractNDEFFromTLV(area)
		if err == nil {
			debugf("read NDEF message of %d bytes from %d byte area", len(msg), len(area))
			out := make([]byte, len(msg))
			copy(out, msg)
			return out, nil
		}
		if !errors.Is(err, tagid.ErrTLVIncomplete) || len(area) >= size {
			return nil, fmt.Errorf("%w: %w", tagid.ErrTagNotFormatted, err)
		}

		page := ntagUserStartPage + len(area)/NTAGPageSize
		if page > 0xFF {
			return nil, fmt.Errorf("%w: %w", tagid.ErrTagNotFormatted, err)
		}
		chunk, err := d.ReadPage(ctx, uint8(page)) //nolint:gosec // bounded above
		if err != nil {
			return nil, err
		}
		area = append(area, chunk[:min(len(chunk), size-len(area))]...)
	}
}

// WriteNDEF writes msg as the tag's only NDEF TLV. It implements
// tagid.TagIO.
func (d *Device) WriteNDEF(ctx context.Context, msg []byte) error {
	if err := d.writeNDEF(ctx, msg); err != nil {
		return tagIOError("write NDEF", d.dropTargetOnLoss(err))
	}
	return nil
}

func (d *Device) writeNDEF(ctx context.Context, msg []byte) error {
	tlv, err := tagid.BuildNDEFTLV(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", tagid.ErrTagCapacity, err)
	}

	if err := d.ensureTarget(ctx); err != nil {
		return err
	}

	cc, err := d.ReadCapabilityContainer(ctx)
	if err != nil {
		return err
	}
	switch {
	case !cc.Formatted():
		return tagid.ErrTagNotFormatted
	case !cc.Writable():
		return tagid.ErrTagNotWritable
	case len(tlv) > cc.DataAreaSize():
		return fmt.Errorf("%w: %d bytes, tag holds %d", tagid.ErrTagCapacity, len(tlv), cc.DataAreaSize())
	}

	for off := 0; off < len(tlv); off += NTAGPageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		page := make([]byte, NTAGPageSize)
		copy(page, tlv[off:])
		if err := d.WritePage(ctx, uint8(ntagUserStartPage+off/NTAGPageSize), page); err != nil { //nolint:gosec // capacity checked
			return err
		}
	}
	debugf("wrote NDEF message of %d bytes (%d byte TLV)", len(msg), len(tlv))
	return nil
}

// dropTargetOnLoss forgets the current target when the tag left the field,
// so the next operation detects again.
func (d *Device) dropTargetOnLoss(err error) error {
	var pe *PN532Error
	if errors.Is(err, ErrTagNotFound) || (errors.As(err, &pe) && pe.IsTargetLost()) {
		d.target = nil
	}
	return err
}

var _ tagid.TagIO = (*Device)(nil)
