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

//nolint:paralleltest // tests swap package level seams
package uart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"

	virt "github.com/ZaparooProject/go-tagid/internal/testing"
	"github.com/ZaparooProject/go-tagid/pn532"
)

func stubPorts(t *testing.T, details []*enumerator.PortDetails, err error) {
	t.Helper()
	origDetailed, origPlain, origOpen := detailedPorts, plainPorts, openTransport
	t.Cleanup(func() {
		detailedPorts, plainPorts, openTransport = origDetailed, origPlain, origOpen
	})
	detailedPorts = func() ([]*enumerator.PortDetails, error) { return details, err }
}

func TestListPorts_RanksLikelyReadersFirst(t *testing.T) {
	stubPorts(t, []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043", Product: "Arduino Uno"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "0000", PID: "0000", Product: "PN532 NFC HAT"},
	}, nil)

	ports, err := ListPorts()
	require.NoError(t, err)
	require.Len(t, ports, 4)

	assert.Equal(t, "/dev/ttyUSB0", ports[0].Path)
	assert.Equal(t, "1A86:7523", ports[0].VIDPID)
	assert.True(t, ports[0].Likely)
	assert.Equal(t, "/dev/ttyUSB1", ports[1].Path)
	assert.True(t, ports[1].Likely)
	assert.Equal(t, "/dev/ttyACM0", ports[2].Path)
	assert.False(t, ports[2].Likely)
	assert.Equal(t, "/dev/ttyS0", ports[3].Path)
	assert.Empty(t, ports[3].VIDPID)
}

func TestListPorts_FallsBackToPlainList(t *testing.T) {
	stubPorts(t, nil, errors.New("enumeration not supported"))
	plainPorts = func() ([]string, error) { return []string{"COM3"}, nil }

	ports, err := ListPorts()
	require.NoError(t, err)
	assert.Equal(t, []PortInfo{{Path: "COM3"}}, ports)
}

func TestDetect(t *testing.T) {
	stubPorts(t, []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "10C4", PID: "EA60"},
	}, nil)

	var opened []string
	openTransport = func(path string) (pn532.Transport, error) {
		opened = append(opened, path)
		if path == "/dev/ttyUSB0" {
			// a serial device that never answers
			sim := virt.NewVirtualPN532()
			sim.DropNextACK()
			sim.SuppressResponses(1)
			return newTestTransport(sim), nil
		}
		return newTestTransport(virt.NewVirtualPN532()), nil
	}

	transport, path, err := Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", path)
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}, opened, "built-in port skipped")
	require.NoError(t, transport.Close())
}

func TestDetect_NoReader(t *testing.T) {
	stubPorts(t, []*enumerator.PortDetails{
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"},
	}, nil)
	openTransport = func(string) (pn532.Transport, error) {
		return nil, errors.New("permission denied")
	}

	_, _, err := Detect(context.Background())
	require.ErrorIs(t, err, ErrNoReaderFound)
	assert.ErrorIs(t, err, pn532.ErrDeviceNotFound)
}
