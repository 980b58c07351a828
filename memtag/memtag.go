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

// Package memtag models the memory of NTAG213/215/216 tags.
//
// A Tag holds a full page image: UID and lock bytes in pages 0-2, the
// capability container in page 3 and the TLV data area from page 4. It
// implements tagid.TagIO directly, and exposes page level READ and WRITE
// for reader simulations.
package memtag

import (
	"context"
	"errors"
	"fmt"
	"os"

	tagid "github.com/ZaparooProject/go-tagid"
	"github.com/ZaparooProject/go-tagid/internal/syncutil"
)

const (
	// PageSize is the NTAG page size in bytes.
	PageSize = 4
	// ReadSize is the number of bytes returned by a READ command.
	ReadSize = 16
	// UIDLength is the length of an NTAG UID.
	UIDLength = 7

	ccPage        = 3
	userStartPage = 4
	ccMagic       = 0xE1
	ccVersion     = 0x10
	ccReadWrite   = 0x00
	ccReadOnly    = 0x0F
	cascadeTag    = 0x88
)

// Image and page access errors
var (
	ErrInvalidPage  = errors.New("page out of range")
	ErrPageLocked   = errors.New("page is not writable")
	ErrInvalidUID   = errors.New("UID must be 7 bytes")
	ErrUnknownImage = errors.New("image size does not match a known tag")
)

// Model describes one member of the NTAG21x family.
type Model struct {
	Name   string
	Pages  int  // total pages including configuration
	CCSize byte // data area size / 8, as stored in the capability container
}

// Known models.
var (
	NTAG213 = Model{Name: "NTAG213", Pages: 45, CCSize: 0x12}
	NTAG215 = Model{Name: "NTAG215", Pages: 135, CCSize: 0x3E}
	NTAG216 = Model{Name: "NTAG216", Pages: 231, CCSize: 0x6D}
)

// Models lists the known models from smallest to largest.
var Models = []Model{NTAG213, NTAG215, NTAG216}

// Capacity returns the size of the data area in bytes.
func (m Model) Capacity() int { return int(m.CCSize) * 8 }

// ModelByName returns the model with the given name.
func ModelByName(name string) (Model, error) {
	for _, m := range Models {
		if m.Name == name {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("unknown tag model %q", name)
}

// Tag is an in-memory NTAG image. It is safe for concurrent use.
type Tag struct {
	mem      []byte
	model    Model
	mu       syncutil.RWMutex
	readOnly bool
	absent   bool
}

// New returns a blank, NDEF formatted tag with the given UID.
func New(model Model, uid []byte) (*Tag, error) {
	if len(uid) != UIDLength {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidUID, len(uid))
	}

	mem := make([]byte, model.Pages*PageSize)
	copy(mem[0:3], uid[0:3])
	mem[3] = cascadeTag ^ uid[0] ^ uid[1] ^ uid[2]
	copy(mem[4:8], uid[3:7])
	mem[8] = uid[3] ^ uid[4] ^ uid[5] ^ uid[6]
	mem[9] = 0x48

	copy(mem[ccPage*PageSize:], []byte{ccMagic, ccVersion, model.CCSize, ccReadWrite})
	copy(mem[userStartPage*PageSize:], []byte{tagid.TLVTypeNDEF, 0x00, tagid.TLVTypeTerminator})

	return &Tag{mem: mem, model: model}, nil
}

// FromBytes wraps a raw memory dump. The model is chosen by image size.
func FromBytes(data []byte) (*Tag, error) {
	for _, m := range Models {
		if len(data) == m.Pages*PageSize {
			mem := make([]byte, len(data))
			copy(mem, data)
			return &Tag{mem: mem, model: m}, nil
		}
	}
	return nil, fmt.Errorf("%w: %d bytes", ErrUnknownImage, len(data))
}

// Load reads a raw memory dump written by Save.
func Load(path string) (*Tag, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read tag image: %w", err)
	}
	return FromBytes(data)
}

// Save writes the raw memory image to path.
func (t *Tag) Save(path string) error {
	if err := os.WriteFile(path, t.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write tag image: %w", err)
	}
	return nil
}

// Model returns the tag model.
func (t *Tag) Model() Model { return t.model }

// UID returns the 7 byte UID.
func (t *Tag) UID() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	uid := make([]byte, 0, UIDLength)
	uid = append(uid, t.mem[0:3]...)
	return append(uid, t.mem[4:8]...)
}

// Bytes returns a copy of the memory image.
func (t *Tag) Bytes() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]byte, len(t.mem))
	copy(out, t.mem)
	return out
}

// SetReadOnly write-protects the tag, as a locked tag would be.
func (t *Tag) SetReadOnly(readOnly bool) {
	t.mu.Lock()
	t.readOnly = readOnly
	t.mu.Unlock()
}

// SetPresent moves the tag into or out of the reader field.
func (t *Tag) SetPresent(present bool) {
	t.mu.Lock()
	t.absent = !present
	t.mu.Unlock()
}

// Present reports whether the tag is in the reader field.
func (t *Tag) Present() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.absent
}

// writableLocked reports whether the data area accepts writes.
func (t *Tag) writableLocked() bool {
	return !t.readOnly && t.mem[ccPage*PageSize+3] == ccReadWrite
}

func (t *Tag) dataArea() []byte {
	start := userStartPage * PageSize
	end := start + int(t.mem[ccPage*PageSize+2])*8
	if end > len(t.mem) {
		end = len(t.mem)
	}
	return t.mem[start:end]
}

// ReadPages returns 16 bytes starting at page, wrapping to page 0 past the
// last page as the READ command does.
func (t *Tag) ReadPages(page int) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.absent {
		return nil, tagid.ErrTagNotPresent
	}
	if page < 0 || page >= t.model.Pages {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}

	out := make([]byte, ReadSize)
	for i := range ReadSize {
		out[i] = t.mem[(page*PageSize+i)%len(t.mem)]
	}
	return out, nil
}

// WritePage writes one 4 byte page. Pages 0-2 are read-only; the capability
// container is one-time programmable, so written bits are OR-ed in.
func (t *Tag) WritePage(page int, data []byte) error {
	if len(data) != PageSize {
		return fmt.Errorf("page write needs %d bytes, got %d", PageSize, len(data))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.absent {
		return tagid.ErrTagNotPresent
	}
	if page < 0 || page >= t.model.Pages {
		return fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	if page < ccPage {
		return fmt.Errorf("%w: %d", ErrPageLocked, page)
	}
	if t.readOnly {
		return tagid.ErrTagNotWritable
	}

	off := page * PageSize
	if page == ccPage {
		for i, b := range data {
			t.mem[off+i] |= b
		}
		return nil
	}
	copy(t.mem[off:off+PageSize], data)
	return nil
}

// ReadNDEF returns the NDEF message in the data area.
func (t *Tag) ReadNDEF(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.absent {
		return nil, tagid.ErrTagNotPresent
	}
	if t.mem[ccPage*PageSize] != ccMagic {
		return nil, tagid.ErrTagNotFormatted
	}

	msg, err := tagid.ExtractNDEFFromTLV(t.dataArea())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tagid.ErrTagNotFormatted, err)
	}
	out := make([]byte, len(msg))
	copy(out, msg)
	return out, nil
}

// WriteNDEF replaces the data area with msg in an NDEF TLV.
func (t *Tag) WriteNDEF(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tlv, err := tagid.BuildNDEFTLV(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", tagid.ErrTagCapacity, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.absent {
		return tagid.ErrTagNotPresent
	}
	if t.mem[ccPage*PageSize] != ccMagic {
		return tagid.ErrTagNotFormatted
	}
	if !t.writableLocked() {
		return tagid.ErrTagNotWritable
	}

	area := t.dataArea()
	if len(tlv) > len(area) {
		return fmt.Errorf("%w: %d bytes, %s holds %d", tagid.ErrTagCapacity, len(tlv), t.model.Name, len(area))
	}
	n := copy(area, tlv)
	// clear the rest of the last written page
	for i := n; i < len(area) && i%PageSize != 0; i++ {
		area[i] = 0
	}
	return nil
}
