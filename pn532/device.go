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

// Package pn532 drives a PN532 NFC reader far enough to read and write
// NDEF data on NTAG21x tags.
//
// A Device talks to the chip through a Transport (see the transport/uart
// and transport/i2c packages) and implements tagid.TagIO for the tag that
// is currently in the field.
package pn532

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FirmwareVersion contains the PN532 firmware information
type FirmwareVersion struct {
	Version          string
	IC               byte
	SupportIso14443a bool
	SupportIso14443b bool
	SupportIso18092  bool
}

// DetectedTag represents a tag that was detected by the reader
type DetectedTag struct {
	DetectedAt   time.Time // When the tag was detected
	UID          string    // UID as hex string
	UIDBytes     []byte    // UID as raw bytes
	ATQ          []byte    // Answer to Request bytes
	SAK          byte      // Select Acknowledge byte
	TargetNumber byte      // Logical target number assigned by the PN532
}

// IsNTAG reports whether SENS_RES and SEL_RES identify an NFC Forum Type 2
// tag such as the NTAG21x family.
func (t *DetectedTag) IsNTAG() bool {
	return t.SAK == 0x00 && len(t.ATQ) == 2 && t.ATQ[0] == 0x00 && t.ATQ[1] == 0x44
}

// Option configures a Device
type Option func(*Device) error

// WithRetry wraps the transport so retryable failures are retried with config.
func WithRetry(config *RetryConfig) Option {
	return func(d *Device) error {
		d.transport = NewTransportWithRetry(d.transport, config)
		return nil
	}
}

// Device represents a PN532 NFC reader device
//
// Device is not safe for concurrent use; the transports serialize access
// to the link itself.
type Device struct {
	transport Transport
	firmware  *FirmwareVersion
	target    *DetectedTag
}

// New creates a new PN532 device with the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, errors.New("transport is nil")
	}
	d := &Device{transport: transport}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Init configures the SAM for normal mode and reads the firmware version
func (d *Device) Init(ctx context.Context) error {
	if err := d.SAMConfiguration(ctx); err != nil {
		return fmt.Errorf("SAM configuration failed: %w", err)
	}

	fw, err := d.GetFirmwareVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get firmware version: %w", err)
	}
	d.firmware = fw
	debugf("PN532 firmware %s (IC 0x%02X)", fw.Version, fw.IC)
	return nil
}

// FirmwareVersion returns the version read by Init, or nil before Init
func (d *Device) FirmwareVersion() *FirmwareVersion {
	return d.firmware
}

// SAMConfiguration puts the SAM in normal mode, which the PN532 needs
// before it will talk to tags.
func (d *Device) SAMConfiguration(ctx context.Context) error {
	res, err := d.transport.SendCommand(ctx, cmdSamConfiguration, samNormalMode)
	if err != nil {
		return fmt.Errorf("failed to send SAMConfiguration command: %w", err)
	}
	if err := checkErrorFrame(res, "SAMConfiguration"); err != nil {
		return err
	}
	if len(res) < 1 || res[0] != resSamConfiguration {
		return fmt.Errorf("%w: unexpected SAMConfiguration response % X", ErrInvalidResponse, res)
	}
	return nil
}

// GetFirmwareVersion returns the PN532 firmware version
func (d *Device) GetFirmwareVersion(ctx context.Context) (*FirmwareVersion, error) {
	res, err := d.transport.SendCommand(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to send GetFirmwareVersion command: %w", err)
	}
	if err := checkErrorFrame(res, "GetFirmwareVersion"); err != nil {
		return nil, err
	}
	if len(res) < 5 || res[0] != resGetFirmwareVersion {
		return nil, fmt.Errorf("%w: unexpected firmware version response % X", ErrInvalidResponse, res)
	}
	if res[1] != 0x32 {
		return nil, fmt.Errorf("%w: unexpected IC 0x%02X", ErrInvalidResponse, res[1])
	}
	return &FirmwareVersion{
		IC:               res[1],
		Version:          fmt.Sprintf("%d.%d", res[2], res[3]),
		SupportIso14443a: res[4]&0x01 == 0x01,
		SupportIso14443b: res[4]&0x02 == 0x02,
		SupportIso18092:  res[4]&0x04 == 0x04,
	}, nil
}

// DetectTag looks for one 106 kbps Type A tag. It returns ErrTagNotFound
// when the field is empty. A detected tag becomes the current target.
func (d *Device) DetectTag(ctx context.Context) (*DetectedTag, error) {
	res, err := d.transport.SendCommand(ctx, cmdInListPassiveTarget, []byte{0x01, brTy106TypeA})
	if err != nil {
		return nil, fmt.Errorf("failed to send InListPassiveTarget command: %w", err)
	}
	if err := checkErrorFrame(res, "InListPassiveTarget"); err != nil {
		return nil, err
	}
	if len(res) < 2 || res[0] != resInListPassiveTarget {
		return nil, fmt.Errorf("%w: unexpected InListPassiveTarget response % X", ErrInvalidResponse, res)
	}
	if res[1] == 0 {
		d.target = nil
		return nil, ErrTagNotFound
	}

	tag, err := parseTarget(res[2:])
	if err != nil {
		return nil, err
	}
	debugf("detected tag %s (ATQ %X, SAK 0x%02X)", tag.UID, tag.ATQ, tag.SAK)
	d.target = tag
	return tag, nil
}

// parseTarget decodes Tg, SENS_RES, SEL_RES, NFCIDLength and NFCID1
func parseTarget(data []byte) (*DetectedTag, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("%w: target data truncated (%d bytes)", ErrInvalidResponse, len(data))
	}
	uidLen := int(data[4])
	if len(data) < 5+uidLen {
		return nil, fmt.Errorf("%w: UID truncated, want %d bytes", ErrInvalidResponse, uidLen)
	}
	uid := append([]byte(nil), data[5:5+uidLen]...)
	return &DetectedTag{
		TargetNumber: data[0],
		ATQ:          []byte{data[1], data[2]},
		SAK:          data[3],
		UIDBytes:     uid,
		UID:          fmt.Sprintf("%x", uid),
		DetectedAt:   time.Now(),
	}, nil
}

// DefaultPollInterval is used by WaitForTag when no interval is given.
const DefaultPollInterval = 250 * time.Millisecond

// WaitForTag polls DetectTag every interval until a tag shows up, the
// context ends or the reader fails fatally.
func (d *Device) WaitForTag(ctx context.Context, interval time.Duration) (*DetectedTag, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		tag, err := d.DetectTag(ctx)
		switch {
		case err == nil:
			return tag, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case IsFatal(err):
			return nil, err
		case !errors.Is(err, ErrTagNotFound):
			debugf("tag detection failed, retrying: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// CurrentTarget returns the tag selected by the last successful
// DetectTag, or nil.
func (d *Device) CurrentTarget() *DetectedTag {
	return d.target
}

// DataExchange sends data to the current target and returns its answer
func (d *Device) DataExchange(ctx context.Context, data []byte) ([]byte, error) {
	if d.target == nil {
		return nil, ErrTagNotFound
	}
	tg := d.target.TargetNumber

	res, err := d.transport.SendCommand(ctx, cmdInDataExchange, append([]byte{tg}, data...))
	if err != nil {
		return nil, fmt.Errorf("failed to send data exchange command: %w", err)
	}
	if err := checkErrorFrame(res, "InDataExchange"); err != nil {
		return nil, err
	}
	if len(res) < 2 || res[0] != resInDataExchange {
		return nil, fmt.Errorf("%w: unexpected data exchange response % X", ErrInvalidResponse, res)
	}
	if status := res[1] & 0x3F; status != 0x00 {
		return nil, NewPN532ErrorWithDetails(status, "InDataExchange", len(data), tg)
	}
	return res[2:], nil
}

// InRelease releases the current target, if any
func (d *Device) InRelease(ctx context.Context) error {
	if d.target == nil {
		return nil
	}
	tg := d.target.TargetNumber
	d.target = nil

	res, err := d.transport.SendCommand(ctx, cmdInRelease, []byte{tg})
	if err != nil {
		return fmt.Errorf("InRelease command failed: %w", err)
	}
	if err := checkErrorFrame(res, "InRelease"); err != nil {
		return err
	}
	if len(res) != 2 || res[0] != resInRelease {
		return fmt.Errorf("%w: unexpected InRelease response % X", ErrInvalidResponse, res)
	}
	if res[1] != 0x00 {
		return NewPN532Error(res[1], "InRelease", "")
	}
	return nil
}

// Close closes the transport
func (d *Device) Close() error {
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// checkErrorFrame turns the {0x7F, code} payload of an error frame into
// a PN532Error.
func checkErrorFrame(res []byte, command string) error {
	if len(res) >= 2 && res[0] == errorFrameTFI {
		return NewPN532Error(res[1], command, "error frame")
	}
	return nil
}
