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

// Package testing provides a wire-level PN532 simulator for transport and
// device tests.
//
// VirtualPN532 implements io.ReadWriter and answers host frames the way
// the chip does over its host interface: an ACK first, then a response
// frame, with NACK causing a retransmission. Tags are memtag images, so
// NTAG READ and WRITE commands hit real page memory.
package testing

import (
	"bytes"
	"errors"
	"fmt"

	tagid "github.com/ZaparooProject/go-tagid"
	"github.com/ZaparooProject/go-tagid/internal/frame"
	"github.com/ZaparooProject/go-tagid/internal/syncutil"
	"github.com/ZaparooProject/go-tagid/memtag"
)

// PN532 command codes handled by the simulator
const (
	CmdGetFirmwareVersion  = 0x02
	CmdSAMConfiguration    = 0x14
	CmdInDataExchange      = 0x40
	CmdInListPassiveTarget = 0x4A
	CmdInRelease           = 0x52
)

// Status bytes from the PN532 user manual, section 7.1
const (
	StatusOK              = 0x00
	StatusInvalidParam    = 0x10
	StatusNotAllowed      = 0x26
	StatusTargetReleased  = 0x29
	StatusCardDisappeared = 0x2B
)

// NTAG commands
const (
	ntagRead  = 0x30
	ntagWrite = 0xA2
)

// SimulatorState tracks the internal state of the simulated PN532
type SimulatorState struct {
	SAMConfigured  bool
	RFFieldOn      bool
	SelectedTarget int // 0 = none, 1 = first tag
}

// VirtualPN532 simulates a PN532 chip at the wire protocol level.
type VirtualPN532 struct {
	lastResponse        []byte
	tags                []*memtag.Tag
	rxBuffer            bytes.Buffer
	txBuffer            bytes.Buffer
	commands            []byte
	state               SimulatorState
	mu                  syncutil.Mutex
	firmwareIC          byte
	firmwareVer         byte
	firmwareRev         byte
	firmwareSupport     byte
	injectChecksumError bool
	corruptAll          bool
	dropNextACK         bool
	suppressResponses   int
}

// NewVirtualPN532 creates a simulator with no tags in the field.
func NewVirtualPN532() *VirtualPN532 {
	return &VirtualPN532{
		// PN532 v1.6
		firmwareIC:      0x32,
		firmwareVer:     0x01,
		firmwareRev:     0x06,
		firmwareSupport: 0x07,
	}
}

// Write receives bytes from the host and queues any responses.
func (v *VirtualPN532) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rxBuffer.Write(data)
	v.processReceivedData()
	return len(data), nil
}

// Read returns queued response bytes. It returns 0, nil when nothing is
// pending, like a serial port read timing out.
func (v *VirtualPN532) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.txBuffer.Len() == 0 {
		return 0, nil
	}
	n, err := v.txBuffer.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read from tx buffer: %w", err)
	}
	return n, nil
}

// HasPendingResponse reports whether response bytes are waiting, which is
// what the I2C ready byte signals.
func (v *VirtualPN532) HasPendingResponse() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.txBuffer.Len() > 0
}

// SetTag places a single tag in the field.
func (v *VirtualPN532) SetTag(tag *memtag.Tag) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tags = []*memtag.Tag{tag}
	v.state.SelectedTarget = 0
}

// RemoveAllTags empties the field.
func (v *VirtualPN532) RemoveAllTags() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tags = nil
	v.state.SelectedTarget = 0
}

// SetFirmwareVersion configures the GetFirmwareVersion answer.
func (v *VirtualPN532) SetFirmwareVersion(ic, ver, rev, support byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.firmwareIC, v.firmwareVer, v.firmwareRev, v.firmwareSupport = ic, ver, rev, support
}

// InjectChecksumError corrupts the DCS of the next response frame. A NACK
// from the host retransmits it intact.
func (v *VirtualPN532) InjectChecksumError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.injectChecksumError = true
}

// CorruptAllResponses corrupts every response frame and every
// retransmission, so NACK recovery never succeeds.
func (v *VirtualPN532) CorruptAllResponses() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.corruptAll = true
}

// DropNextACK skips the ACK for the next command.
func (v *VirtualPN532) DropNextACK() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropNextACK = true
}

// SuppressResponses makes the next n commands produce an ACK and no
// response frame.
func (v *VirtualPN532) SuppressResponses(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.suppressResponses = n
}

// State returns the current simulator state.
func (v *VirtualPN532) State() SimulatorState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Commands returns the command codes received so far, in order.
func (v *VirtualPN532) Commands() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.commands...)
}

// CommandCount returns how often cmd was received.
func (v *VirtualPN532) CommandCount(cmd byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return bytes.Count(v.commands, []byte{cmd})
}

// processReceivedData consumes complete frames from rxBuffer.
func (v *VirtualPN532) processReceivedData() {
	for {
		data := v.rxBuffer.Bytes()

		if frame.IsAck(data) {
			v.rxBuffer.Next(len(frame.AckFrame))
			continue
		}
		if frame.IsNack(data) {
			v.rxBuffer.Next(len(frame.NackFrame))
			if v.lastResponse != nil {
				if v.corruptAll {
					v.txBuffer.Write(corruptFrame(v.lastResponse))
				} else {
					v.txBuffer.Write(v.lastResponse)
				}
			}
			continue
		}

		lenIdx := frame.FindStart(data, len(data))
		if lenIdx < 0 {
			// keep a trailing 0x00 that may start the next start code
			if n := len(data); n > 0 && data[n-1] == frame.StartCode1 {
				v.rxBuffer.Next(n - 1)
			} else {
				v.rxBuffer.Reset()
			}
			return
		}
		startIdx := lenIdx - 2
		if startIdx > 0 {
			v.rxBuffer.Next(startIdx)
			continue
		}

		payload, consumed, err := parseHostFrame(data)
		if errors.Is(err, errIncompleteFrame) {
			return
		}
		if err != nil {
			// drop the start code and resync
			v.rxBuffer.Next(2)
			continue
		}
		v.rxBuffer.Next(consumed)
		v.processCommand(payload)
	}
}

var errIncompleteFrame = errors.New("incomplete frame")

// parseHostFrame decodes a host-to-PN532 frame starting at the 00 FF start
// code. It returns the bytes after TFI.
func parseHostFrame(data []byte) (payload []byte, consumed int, err error) {
	if len(data) < 4 {
		return nil, 0, errIncompleteFrame
	}
	frameLen := int(data[2])
	if byte(frameLen)+data[3] != 0 {
		return nil, 0, errors.New("length checksum error")
	}

	// START(2) LEN LCS DATA DCS POSTAMBLE
	total := 2 + 2 + frameLen + 2
	if len(data) < total-1 {
		return nil, 0, errIncompleteFrame
	}
	if frame.ValidateFrameChecksum(data, 4, 4+frameLen+1) {
		return nil, 0, errors.New("data checksum error")
	}
	if frameLen < 2 || data[4] != frame.HostToPn532 {
		return nil, 0, errors.New("invalid TFI")
	}
	return data[5 : 4+frameLen], min(total, len(data)), nil
}

// processCommand dispatches one command (code followed by parameters).
func (v *VirtualPN532) processCommand(payload []byte) {
	if !v.dropNextACK {
		v.txBuffer.Write(frame.AckFrame)
	}
	v.dropNextACK = false

	cmd, params := payload[0], payload[1:]
	v.commands = append(v.commands, cmd)

	var (
		response []byte
		ok       bool
	)
	switch cmd {
	case CmdGetFirmwareVersion:
		response, ok = []byte{v.firmwareIC, v.firmwareVer, v.firmwareRev, v.firmwareSupport}, true
	case CmdSAMConfiguration:
		response, ok = v.handleSAMConfiguration(params)
	case CmdInListPassiveTarget:
		response, ok = v.handleInListPassiveTarget(params)
	case CmdInDataExchange:
		response, ok = v.handleInDataExchange(params)
	case CmdInRelease:
		response, ok = v.handleInRelease(params)
	}

	if v.suppressResponses > 0 {
		v.suppressResponses--
		return
	}
	if !ok {
		v.lastResponse = frame.ErrorFrame
		v.txBuffer.Write(frame.ErrorFrame)
		return
	}
	v.sendResponse(cmd, response)
}

// sendResponse frames data behind response code cmd+1.
func (v *VirtualPN532) sendResponse(cmd byte, data []byte) {
	frm := frame.Build(frame.Pn532ToHost, append([]byte{cmd + 1}, data...))
	v.lastResponse = frm

	if v.injectChecksumError || v.corruptAll {
		v.injectChecksumError = false
		v.txBuffer.Write(corruptFrame(frm))
		return
	}
	v.txBuffer.Write(frm)
}

// corruptFrame returns a copy of frm with a broken DCS.
func corruptFrame(frm []byte) []byte {
	bad := append([]byte(nil), frm...)
	bad[len(bad)-2] ^= 0xFF
	return bad
}

func (v *VirtualPN532) handleSAMConfiguration(params []byte) ([]byte, bool) {
	if len(params) < 1 || params[0] < 0x01 || params[0] > 0x04 {
		return nil, false
	}
	v.state.SAMConfigured = true
	return []byte{}, true
}

// handleInListPassiveTarget answers MaxTg BrTy for 106 kbps Type A only.
func (v *VirtualPN532) handleInListPassiveTarget(params []byte) ([]byte, bool) {
	if len(params) < 2 || params[0] == 0 || params[0] > 2 || params[1] > 0x04 {
		return nil, false
	}
	v.state.RFFieldOn = true

	if params[1] != 0x00 || len(v.tags) == 0 || !v.tags[0].Present() {
		v.state.SelectedTarget = 0
		return []byte{0x00}, true
	}

	uid := v.tags[0].UID()
	v.state.SelectedTarget = 1
	// NbTg Tg SENS_RES(2) SEL_RES NFCIDLength NFCID1
	res := []byte{0x01, 0x01, 0x00, 0x44, 0x00, byte(len(uid))}
	return append(res, uid...), true
}

// handleInDataExchange answers Tg DataOut with Status DataIn.
func (v *VirtualPN532) handleInDataExchange(params []byte) ([]byte, bool) {
	if len(params) < 2 {
		return nil, false
	}
	if v.state.SelectedTarget == 0 || int(params[0]) != v.state.SelectedTarget {
		return []byte{StatusTargetReleased}, true
	}
	tag := v.tags[v.state.SelectedTarget-1]
	if !tag.Present() {
		return []byte{StatusCardDisappeared}, true
	}
	return v.processTagCommand(tag, params[1:]), true
}

// processTagCommand runs an NTAG command against tag memory.
func (*VirtualPN532) processTagCommand(tag *memtag.Tag, cmd []byte) []byte {
	switch {
	case cmd[0] == ntagRead && len(cmd) == 2:
		data, err := tag.ReadPages(int(cmd[1]))
		if err != nil {
			return []byte{tagStatus(err)}
		}
		return append([]byte{StatusOK}, data...)

	case cmd[0] == ntagWrite && len(cmd) == 2+memtag.PageSize:
		if err := tag.WritePage(int(cmd[1]), cmd[2:]); err != nil {
			return []byte{tagStatus(err)}
		}
		return []byte{StatusOK}

	default:
		return []byte{StatusInvalidParam}
	}
}

// tagStatus maps memory errors to the status byte a NAK produces.
func tagStatus(err error) byte {
	switch {
	case errors.Is(err, tagid.ErrTagNotPresent):
		return StatusCardDisappeared
	case errors.Is(err, tagid.ErrTagNotWritable), errors.Is(err, memtag.ErrPageLocked):
		return StatusNotAllowed
	default:
		return StatusInvalidParam
	}
}

func (v *VirtualPN532) handleInRelease(params []byte) ([]byte, bool) {
	if len(params) < 1 {
		return nil, false
	}
	if params[0] == 0 || int(params[0]) == v.state.SelectedTarget {
		v.state.SelectedTarget = 0
	}
	return []byte{StatusOK}, true
}
