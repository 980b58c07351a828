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

// Package uart implements the PN532 host interface over a serial port
// (HSU, 115200 8N1).
package uart

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.bug.st/serial"

	tagid "github.com/ZaparooProject/go-tagid"
	"github.com/ZaparooProject/go-tagid/internal/frame"
	"github.com/ZaparooProject/go-tagid/internal/syncutil"
	"github.com/ZaparooProject/go-tagid/pn532"
)

const (
	baudRate = 115200

	// wakeDelay gives the PN532 time to start processing after the ACK.
	wakeDelay = 6 * time.Millisecond
	// pollDelay is the pause between empty reads.
	pollDelay = 5 * time.Millisecond
	// maxAckScan bounds the bytes and empty reads waitAck goes through.
	maxAckScan = 32
	// maxReceiveTries is how many NACK retransmissions a frame gets.
	maxReceiveTries = 3

	// DefaultResponseTimeout bounds the wait for a response frame.
	DefaultResponseTimeout = time.Second
)

// wakeUpPreamble brings the PN532 out of power down: 0x55 then enough
// zeros to cover the wake-up time.
var wakeUpPreamble = []byte{
	0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// Transport implements pn532.Transport over a serial port.
type Transport struct {
	port            serial.Port
	portName        string
	responseTimeout time.Duration
	mu              syncutil.Mutex
	lastCommand     byte
}

// readTimeout returns the serial read timeout for this platform.
// Windows drivers need a longer one.
func readTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// New opens portName at 115200 8N1.
func New(portName string) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(readTimeout()); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}

	return NewFromPort(port, portName), nil
}

// NewFromPort wraps an already opened port.
func NewFromPort(port serial.Port, portName string) *Transport {
	return &Transport{
		port:            port,
		portName:        portName,
		responseTimeout: DefaultResponseTimeout,
	}
}

// SetResponseTimeout sets how long SendCommand waits for a response frame.
func (t *Transport) SetResponseTimeout(timeout time.Duration) {
	t.mu.Lock()
	t.responseTimeout = timeout
	t.mu.Unlock()
}

// SendCommand sends a command to the PN532 and waits for its response.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, pn532.ErrTransportClosed
	}
	t.lastCommand = cmd

	frm, err := frame.BuildCommand(cmd, args)
	if err != nil {
		return nil, err
	}

	pre, err := t.sendFrame(frm)
	if err != nil {
		return nil, err
	}

	if err := sleepCtx(ctx, wakeDelay); err != nil {
		return nil, err
	}

	res, err := t.receiveFrame(ctx, pre)
	if err != nil {
		return nil, err
	}

	if err := t.sendAck(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the serial port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportUART
}

// PortName returns the serial port path.
func (t *Transport) PortName() string {
	return t.portName
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry drains the port, retrying interrupted system calls
func (t *Transport) drainWithRetry(operation string) error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	var err error
	for attempt := range maxRetries {
		if err = t.port.Drain(); err == nil {
			return nil
		}
		if !isInterruptedSystemCall(err) {
			break
		}
		time.Sleep(baseDelay << attempt)
	}
	return fmt.Errorf("UART %s drain failed: %w", operation, err)
}

// write writes buf completely and drains the port.
func (t *Transport) write(buf []byte, operation string) error {
	n, err := t.port.Write(buf)
	if err != nil {
		return pn532.NewTransportError(operation, t.portName,
			fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}
	if n != len(buf) {
		return pn532.NewTransportWriteError(operation, t.portName)
	}
	return t.drainWithRetry(operation)
}

// sendAck sends an ACK frame
func (t *Transport) sendAck() error {
	return t.write(frame.AckFrame, "sendAck")
}

// sendNack asks the PN532 to retransmit its last response
func (t *Transport) sendNack() error {
	return t.write(frame.NackFrame, "sendNack")
}

// sendFrame wakes the PN532, writes frm and waits for the ACK. Bytes seen
// before the ACK are returned.
func (t *Transport) sendFrame(frm []byte) ([]byte, error) {
	// drop a stale postamble or late response
	if err := t.port.ResetInputBuffer(); err != nil {
		tagid.Debugf("uart: reset input buffer on %s: %v", t.portName, err)
	}

	if err := t.write(wakeUpPreamble, "wakeUp"); err != nil {
		return nil, err
	}
	if err := t.write(frm, "sendFrame"); err != nil {
		return nil, err
	}
	return t.waitAck()
}

// waitAck reads byte by byte until an ACK frame shows up. Some drivers
// deliver data ahead of the ACK, so skipped bytes are kept and returned.
func (t *Transport) waitAck() ([]byte, error) {
	buf := make([]byte, 1)
	window := make([]byte, 0, len(frame.AckFrame))
	var pre []byte

	for tries := 0; tries < maxAckScan; {
		n, err := t.port.Read(buf)
		if err != nil {
			return pre, pn532.NewTransportError("waitAck", t.portName,
				fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
		}
		if n == 0 {
			tries++
			continue
		}

		window = append(window, buf[0])
		if len(window) < len(frame.AckFrame) {
			continue
		}
		if frame.IsAck(window) {
			return pre, nil
		}
		pre = append(pre, window[0])
		window = window[1:]
		tries++
	}
	return pre, pn532.NewNoACKError("waitAck", t.portName)
}

// receiveFrame reads the response frame, NACKing corrupted ones.
func (t *Transport) receiveFrame(ctx context.Context, pre []byte) ([]byte, error) {
	for tries := range maxReceiveTries {
		var initial []byte
		if tries == 0 {
			initial = pre
		}
		data, retry, err := t.receiveFrameAttempt(ctx, initial)
		if err != nil {
			return nil, err
		}
		if !retry {
			return data, nil
		}

		tagid.Debugf("uart: corrupted frame on %s, sending NACK (try %d)", t.portName, tries+1)
		if err := t.sendNack(); err != nil {
			return nil, err
		}
	}

	// Some firmware never answers InListPassiveTarget cleanly when the
	// field is empty.
	if t.lastCommand == 0x4A {
		return []byte{0x4B, 0x00}, nil
	}
	return nil, pn532.NewCommunicationFailedError("receiveFrame", t.portName, maxReceiveTries)
}

// receiveFrameAttempt reads one frame. retry means the frame was corrupted
// and a NACK should follow.
func (t *Transport) receiveFrameAttempt(ctx context.Context, pre []byte) (data []byte, retry bool, err error) {
	deadline := time.Now().Add(t.responseTimeout)
	buf := make([]byte, 0, frame.MaxFrameLength+len(pre))
	buf = append(buf, pre...)

	// read until LEN and LCS are in
	lenIdx := frame.FindStart(buf, len(buf))
	for lenIdx < 0 || lenIdx+1 >= len(buf) {
		if buf, err = t.readMore(ctx, buf, deadline); err != nil {
			return nil, false, err
		}
		lenIdx = frame.FindStart(buf, len(buf))
	}

	frameLen, retry, err := frame.ValidateFrameLength(buf, lenIdx-1, len(buf), "receiveFrame", t.portName)
	if err != nil || retry {
		return nil, retry, err
	}

	// LEN LCS TFI..PDn DCS
	end := lenIdx + 2 + frameLen + 1
	for len(buf) < end {
		if buf, err = t.readMore(ctx, buf, deadline); err != nil {
			return nil, false, err
		}
	}

	if frame.ValidateFrameChecksum(buf, lenIdx+2, end) {
		return nil, true, nil
	}

	data, retry, err = frame.ExtractFrameData(buf, lenIdx, frameLen, frame.Pn532ToHost)
	if err != nil {
		return nil, false, fmt.Errorf("UART frame data extraction failed: %w", err)
	}
	return data, retry, nil
}

// readMore appends whatever the port has to buf, waiting until deadline.
func (t *Transport) readMore(ctx context.Context, buf []byte, deadline time.Time) ([]byte, error) {
	chunk := make([]byte, frame.MaxFrameLength)
	for {
		if len(buf) >= cap(buf) {
			return nil, pn532.NewFrameCorruptedError("receiveFrame", t.portName)
		}
		n, err := t.port.Read(chunk[:min(len(chunk), cap(buf)-len(buf))])
		if err != nil {
			return nil, pn532.NewTransportError("receiveFrame", t.portName,
				fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
		}
		if n > 0 {
			return append(buf, chunk[:n]...), nil
		}

		if time.Now().After(deadline) {
			return nil, pn532.NewTimeoutError("receiveFrame", t.portName)
		}
		if err := sleepCtx(ctx, pollDelay); err != nil {
			return nil, err
		}
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ pn532.Transport = (*Transport)(nil)
