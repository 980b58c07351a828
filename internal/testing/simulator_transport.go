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

package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-tagid/internal/frame"
	"github.com/ZaparooProject/go-tagid/internal/syncutil"
	"github.com/ZaparooProject/go-tagid/pn532"
)

// SimulatorTransport drives a VirtualPN532 through real frames and
// implements pn532.Transport, so device tests exercise the frame codec.
type SimulatorTransport struct {
	sim    *VirtualPN532
	log    []CommandLogEntry
	mu     syncutil.Mutex
	closed bool
}

// CommandLogEntry records a command sent to the transport
type CommandLogEntry struct {
	Timestamp time.Time
	Args      []byte
	Cmd       byte
}

// NewSimulatorTransport creates a transport backed by sim.
func NewSimulatorTransport(sim *VirtualPN532) *SimulatorTransport {
	return &SimulatorTransport{sim: sim}
}

// SendCommand frames the command, expects an ACK and parses the response.
func (t *SimulatorTransport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, pn532.ErrTransportClosed
	}
	t.log = append(t.log, CommandLogEntry{
		Cmd:       cmd,
		Args:      append([]byte(nil), args...),
		Timestamp: time.Now(),
	})

	frm, err := frame.BuildCommand(cmd, args)
	if err != nil {
		return nil, err
	}
	if _, err := t.sim.Write(frm); err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}

	ack := make([]byte, len(frame.AckFrame))
	n, err := t.sim.Read(ack)
	if err != nil {
		return nil, fmt.Errorf("read ACK failed: %w", err)
	}
	if !frame.IsAck(ack[:n]) {
		return nil, pn532.NewNoACKError("SendCommand", "simulator")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, frame.MaxFrameLength)
	n, err = t.sim.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}
	if n == 0 {
		return nil, pn532.NewTimeoutError("SendCommand", "simulator")
	}

	data, _, err := frame.Parse(buf[:n])
	if err != nil {
		// ask for a retransmission once, as the hardware transports do
		if _, werr := t.sim.Write(frame.NackFrame); werr != nil {
			return nil, fmt.Errorf("write NACK failed: %w", werr)
		}
		n, rerr := t.sim.Read(buf)
		if rerr != nil {
			return nil, fmt.Errorf("read response failed: %w", rerr)
		}
		if data, _, err = frame.Parse(buf[:n]); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Close implements pn532.Transport.
func (t *SimulatorTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

// Type implements pn532.Transport.
func (*SimulatorTransport) Type() pn532.TransportType {
	return pn532.TransportMock
}

// Simulator returns the underlying VirtualPN532 for test setup.
func (t *SimulatorTransport) Simulator() *VirtualPN532 {
	return t.sim
}

// CommandLog returns the commands sent so far.
func (t *SimulatorTransport) CommandLog() []CommandLogEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]CommandLogEntry(nil), t.log...)
}

// CommandCount returns how many times cmd was sent.
func (t *SimulatorTransport) CommandCount(cmd byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, entry := range t.log {
		if entry.Cmd == cmd {
			count++
		}
	}
	return count
}

var _ pn532.Transport = (*SimulatorTransport)(nil)
