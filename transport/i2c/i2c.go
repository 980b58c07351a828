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

// Package i2c implements the PN532 host interface over an I2C bus.
//
// Every read transaction starts with a status byte that is 0x01 once the
// PN532 has something to say. Frames are read in a single transaction.
package i2c

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	tagid "github.com/ZaparooProject/go-tagid"
	"github.com/ZaparooProject/go-tagid/internal/frame"
	"github.com/ZaparooProject/go-tagid/internal/syncutil"
	"github.com/ZaparooProject/go-tagid/pn532"
)

const (
	// Addr is the PN532 7-bit I2C address (0x48 >> 1).
	Addr = 0x24

	pn532Ready   = 0x01
	maxClockFreq = 400 * physic.KiloHertz

	wakeDelay  = 6 * time.Millisecond
	pollDelay  = time.Millisecond
	maxBackoff = 16 * time.Millisecond

	ackRetries      = 3
	ackRetryDelay   = 10 * time.Millisecond
	maxReceiveTries = 3

	// readSize covers the largest frame plus the leading status byte.
	readSize = frame.MaxFrameLength + 1

	// DefaultResponseTimeout bounds the wait for an ACK or a response.
	DefaultResponseTimeout = time.Second
)

// Transport implements pn532.Transport over I2C.
type Transport struct {
	dev             *i2c.Dev
	bus             i2c.Bus
	busName         string
	responseTimeout time.Duration
	mu              syncutil.Mutex
}

// parseI2CPath strips an address suffix, so "/dev/i2c-1:0x24" and
// "/dev/i2c-1" open the same bus.
func parseI2CPath(path string) string {
	bus, _, _ := strings.Cut(path, ":")
	return bus
}

// New opens the named bus through periph.io. An empty name picks the
// first bus available.
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(parseI2CPath(busName))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open I2C bus %s: %w", pn532.ErrDeviceNotFound, busName, err)
	}

	if err := bus.SetSpeed(maxClockFreq); err != nil {
		tagid.Debugf("i2c: keeping default clock on %s: %v", busName, err)
	}

	return NewFromBus(bus, busName), nil
}

// NewFromBus wraps an already opened bus. If bus implements io.Closer,
// Close closes it.
func NewFromBus(bus i2c.Bus, busName string) *Transport {
	return &Transport{
		dev:             &i2c.Dev{Addr: Addr, Bus: bus},
		bus:             bus,
		busName:         busName,
		responseTimeout: DefaultResponseTimeout,
	}
}

// SetResponseTimeout sets how long SendCommand waits for the ACK and for
// the response frame.
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

	if t.dev == nil {
		return nil, pn532.ErrTransportClosed
	}

	frm, err := frame.BuildCommand(cmd, args)
	if err != nil {
		return nil, err
	}

	if err := t.sendWithACKRetry(ctx, frm); err != nil {
		return nil, err
	}

	if err := sleepCtx(ctx, wakeDelay); err != nil {
		return nil, err
	}
	return t.receiveFrame(ctx)
}

// Close releases the bus.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return nil
	}
	t.dev = nil
	if closer, ok := t.bus.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close I2C bus: %w", err)
		}
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportI2C
}

// BusName returns the bus the transport was opened on.
func (t *Transport) BusName() string {
	return t.busName
}

func isTransientACKError(err error) bool {
	return errors.Is(err, pn532.ErrNoACK) ||
		errors.Is(err, pn532.ErrNACKReceived) ||
		errors.Is(err, pn532.ErrFrameCorrupted)
}

// sendWithACKRetry writes frm and waits for the ACK, writing it again on
// transient failures.
func (t *Transport) sendWithACKRetry(ctx context.Context, frm []byte) error {
	var lastErr error
	for attempt := range ackRetries {
		if err := t.write(frm, "sendFrame"); err != nil {
			return err
		}

		err := t.waitAck(ctx)
		if err == nil {
			return nil
		}
		if !isTransientACKError(err) {
			return err
		}
		lastErr = err
		tagid.Debugf("i2c: no ACK on %s (try %d): %v", t.busName, attempt+1, err)

		if attempt < ackRetries-1 {
			if err := sleepCtx(ctx, ackRetryDelay<<attempt); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("send command failed after %d ACK retries: %w", ackRetries, lastErr)
}

// write sends buf in one transaction.
func (t *Transport) write(buf []byte, operation string) error {
	if err := t.dev.Tx(buf, nil); err != nil {
		return pn532.NewTransportError(operation, t.busName,
			fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}
	return nil
}

func (t *Transport) sendAck() error {
	return t.write(frame.AckFrame, "sendAck")
}

func (t *Transport) sendNack() error {
	return t.write(frame.NackFrame, "sendNack")
}

// waitAck waits for the PN532 to become ready and reads the ACK frame.
func (t *Transport) waitAck(ctx context.Context) error {
	if err := t.checkReady(ctx, "waitAck"); err != nil {
		if errors.Is(err, pn532.ErrTransportTimeout) {
			return pn532.NewNoACKError("waitAck", t.busName)
		}
		return err
	}

	ack := make([]byte, len(frame.AckFrame))
	if err := t.readI2C(ack); err != nil {
		return err
	}
	switch {
	case frame.IsAck(ack):
		return nil
	case frame.IsNack(ack):
		return pn532.NewNACKReceivedError("waitAck", t.busName)
	default:
		return pn532.NewNoACKError("waitAck", t.busName)
	}
}

// checkReady polls the status byte with exponential backoff until it
// reads ready or the response timeout runs out.
func (t *Transport) checkReady(ctx context.Context, operation string) error {
	deadline := time.Now().Add(t.responseTimeout)
	delay := pollDelay
	ready := make([]byte, 1)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := t.dev.Tx(nil, ready); err != nil {
			tagid.Debugf("i2c: ready check on %s failed: %v", t.busName, err)
		} else if ready[0] == pn532Ready {
			return nil
		}

		if time.Now().After(deadline) {
			return pn532.NewTimeoutError(operation, t.busName)
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
		delay = min(delay*2, maxBackoff)
	}
}

// readI2C reads len(buf) bytes, dropping the status byte the PN532
// prepends to every read transaction.
func (t *Transport) readI2C(buf []byte) error {
	tmp := make([]byte, 1+len(buf))
	if err := t.dev.Tx(nil, tmp); err != nil {
		return pn532.NewTransportError("readI2C", t.busName,
			fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
	}
	if tmp[0] != pn532Ready {
		return pn532.NewTransportNotReadyError("readI2C", t.busName)
	}
	copy(buf, tmp[1:])
	return nil
}

// receiveFrame reads the response frame, NACKing corrupted ones, and
// acknowledges it.
func (t *Transport) receiveFrame(ctx context.Context) ([]byte, error) {
	for tries := range maxReceiveTries {
		data, retry, err := t.receiveFrameAttempt(ctx)
		if err != nil {
			return nil, err
		}
		if !retry {
			if err := t.sendAck(); err != nil {
				return nil, err
			}
			return data, nil
		}

		tagid.Debugf("i2c: corrupted frame on %s, sending NACK (try %d)", t.busName, tries+1)
		if err := t.sendNack(); err != nil {
			return nil, err
		}
	}
	return nil, pn532.NewCommunicationFailedError("receiveFrame", t.busName, maxReceiveTries)
}

// receiveFrameAttempt reads one whole frame in a single transaction.
// retry means the frame was corrupted and a NACK should follow.
func (t *Transport) receiveFrameAttempt(ctx context.Context) (data []byte, retry bool, err error) {
	if err := t.checkReady(ctx, "receiveFrame"); err != nil {
		return nil, false, err
	}

	buf := make([]byte, readSize-1)
	if err := t.readI2C(buf); err != nil {
		return nil, false, err
	}

	lenIdx := frame.FindStart(buf, len(buf))
	if lenIdx < 0 || lenIdx+1 >= len(buf) {
		return nil, true, nil
	}

	frameLen, retry, err := frame.ValidateFrameLength(buf, lenIdx-1, len(buf), "receiveFrame", t.busName)
	if err != nil || retry {
		return nil, retry, err
	}

	end := lenIdx + 2 + frameLen + 1
	if end > len(buf) || frame.ValidateFrameChecksum(buf, lenIdx+2, end) {
		return nil, true, nil
	}

	data, retry, err = frame.ExtractFrameData(buf, lenIdx, frameLen, frame.Pn532ToHost)
	if err != nil {
		return nil, false, fmt.Errorf("I2C frame data extraction failed: %w", err)
	}
	return data, retry, nil
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
