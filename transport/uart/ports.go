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

package uart

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	tagid "github.com/ZaparooProject/go-tagid"
	"github.com/ZaparooProject/go-tagid/pn532"
)

// ErrNoReaderFound is returned by Detect when no port answers as a PN532.
// It wraps pn532.ErrDeviceNotFound.
var ErrNoReaderFound = fmt.Errorf("%w: no PN532 reader on any serial port", pn532.ErrDeviceNotFound)

// probeTimeout bounds the firmware query sent to each candidate port.
const probeTimeout = 2 * time.Second

// USB serial bridges commonly found on PN532 boards
var knownBridges = []string{
	"067B:2303", // Prolific PL2303
	"0403:6001", // FTDI FT232
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
}

var productKeywords = []string{"pn532", "nfc", "rfid", "13.56"}

// PortInfo describes a serial port found on the system.
type PortInfo struct {
	Path         string
	VIDPID       string // "VVVV:PPPP", empty for non-USB ports
	Product      string
	SerialNumber string
	USB          bool
	// Likely is set when the USB bridge or product string is typical for
	// PN532 boards.
	Likely bool
}

// seams for tests
var (
	detailedPorts = enumerator.GetDetailedPortsList
	plainPorts    = serial.GetPortsList
	openTransport = func(path string) (pn532.Transport, error) { return New(path) }
)

// ListPorts enumerates serial ports, likely PN532 boards first.
func ListPorts() ([]PortInfo, error) {
	details, err := detailedPorts()
	if err != nil {
		tagid.Debugf("uart: detailed port list failed, falling back: %v", err)
		names, plainErr := plainPorts()
		if plainErr != nil {
			return nil, fmt.Errorf("failed to enumerate serial ports: %w", plainErr)
		}
		ports := make([]PortInfo, 0, len(names))
		for _, name := range names {
			ports = append(ports, PortInfo{Path: name})
		}
		return ports, nil
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		info := PortInfo{
			Path:         d.Name,
			USB:          d.IsUSB,
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
		}
		if d.IsUSB && d.VID != "" {
			info.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
		}
		info.Likely = isLikelyPN532(&info)
		ports = append(ports, info)
	}

	sort.SliceStable(ports, func(i, j int) bool {
		return rankPort(&ports[i]) > rankPort(&ports[j])
	})
	return ports, nil
}

// isLikelyPN532 checks the USB bridge and product string.
func isLikelyPN532(port *PortInfo) bool {
	for _, known := range knownBridges {
		if port.VIDPID == known {
			return true
		}
	}
	product := strings.ToLower(port.Product)
	for _, keyword := range productKeywords {
		if strings.Contains(product, keyword) {
			return true
		}
	}
	return false
}

func rankPort(port *PortInfo) int {
	switch {
	case port.Likely:
		return 2
	case port.USB:
		return 1
	default:
		return 0
	}
}

// Detect probes USB serial ports with a firmware version query and returns
// a transport for the first one that answers as a PN532. Built-in ports are
// skipped since probing them can upset unrelated hardware.
func Detect(ctx context.Context) (pn532.Transport, string, error) {
	ports, err := ListPorts()
	if err != nil {
		return nil, "", err
	}

	for i := range ports {
		port := &ports[i]
		if !port.USB && !port.Likely {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		transport, err := probe(ctx, port.Path)
		if err != nil {
			tagid.Debugf("uart: %s is not a PN532: %v", port.Path, err)
			continue
		}
		return transport, port.Path, nil
	}
	return nil, "", ErrNoReaderFound
}

// probe opens path and asks for the firmware version once.
func probe(ctx context.Context, path string) (pn532.Transport, error) {
	transport, err := openTransport(path)
	if err != nil {
		return nil, err
	}

	device, err := pn532.New(transport)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := device.GetFirmwareVersion(probeCtx); err != nil {
		_ = transport.Close()
		return nil, err
	}
	return transport, nil
}
