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

package pn532_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tagid "github.com/ZaparooProject/go-tagid"
	virt "github.com/ZaparooProject/go-tagid/internal/testing"
	"github.com/ZaparooProject/go-tagid/memtag"
	"github.com/ZaparooProject/go-tagid/pn532"
)

var testUID = []byte{0x04, 0x5A, 0x6B, 0x7C, 0x8D, 0x9E, 0x80}

// newSimulatedDevice returns an initialized device with tag in the field.
func newSimulatedDevice(t *testing.T, model memtag.Model) (*pn532.Device, *memtag.Tag, *virt.VirtualPN532) {
	t.Helper()

	tag, err := memtag.New(model, testUID)
	require.NoError(t, err)

	sim := virt.NewVirtualPN532()
	sim.SetTag(tag)

	device, err := pn532.New(virt.NewSimulatorTransport(sim))
	require.NoError(t, err)
	require.NoError(t, device.Init(context.Background()))
	return device, tag, sim
}

func TestDevice_DetectSimulatedTag(t *testing.T) {
	t.Parallel()

	device, _, _ := newSimulatedDevice(t, memtag.NTAG213)
	assert.Equal(t, "1.6", device.FirmwareVersion().Version)

	detected, err := device.DetectTag(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testUID, detected.UIDBytes)
	assert.True(t, detected.IsNTAG())
}

func TestDevice_ReadCapabilityContainer(t *testing.T) {
	t.Parallel()

	device, _, _ := newSimulatedDevice(t, memtag.NTAG215)
	_, err := device.DetectTag(context.Background())
	require.NoError(t, err)

	cc, err := device.ReadCapabilityContainer(context.Background())
	require.NoError(t, err)
	assert.True(t, cc.Formatted())
	assert.True(t, cc.Writable())
	assert.Equal(t, memtag.NTAG215.Capacity(), cc.DataAreaSize())
}

func TestDevice_NDEFRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model memtag.Model
		name  string
		size  int
	}{
		{name: "empty message", model: memtag.NTAG213, size: 0},
		{name: "fits first read", model: memtag.NTAG213, size: 8},
		{name: "spans several reads", model: memtag.NTAG213, size: 100},
		{name: "fills NTAG213", model: memtag.NTAG213, size: memtag.NTAG213.Capacity() - 3},
		{name: "long TLV length", model: memtag.NTAG215, size: 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, tag, _ := newSimulatedDevice(t, tt.model)
			msg := bytes.Repeat([]byte{0xA5}, tt.size)
			ctx := context.Background()

			require.NoError(t, device.WriteNDEF(ctx, msg))

			stored, err := tag.ReadNDEF(ctx)
			require.NoError(t, err)
			assert.Equal(t, msg, stored, "tag memory")

			got, err := device.ReadNDEF(ctx)
			require.NoError(t, err)
			assert.Equal(t, msg, got)
		})
	}
}

func TestDevice_WriteNDEFErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup   func(*memtag.Tag, *virt.VirtualPN532)
		wantErr error
		name    string
		size    int
	}{
		{
			name:    "too large",
			size:    memtag.NTAG213.Capacity(),
			wantErr: tagid.ErrTagCapacity,
		},
		{
			name:    "read-only",
			size:    16,
			setup:   func(tag *memtag.Tag, _ *virt.VirtualPN532) { tag.SetReadOnly(true) },
			wantErr: tagid.ErrTagNotWritable,
		},
		{
			name:    "tag removed",
			size:    16,
			setup:   func(tag *memtag.Tag, _ *virt.VirtualPN532) { tag.SetPresent(false) },
			wantErr: tagid.ErrTagNotPresent,
		},
		{
			name:    "empty field",
			size:    16,
			setup:   func(_ *memtag.Tag, sim *virt.VirtualPN532) { sim.RemoveAllTags() },
			wantErr: tagid.ErrTagNotPresent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, tag, sim := newSimulatedDevice(t, memtag.NTAG213)
			if tt.setup != nil {
				tt.setup(tag, sim)
			}
			err := device.WriteNDEF(context.Background(), bytes.Repeat([]byte{0x01}, tt.size))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDevice_ReadOnlyTagRefusesPageWrite(t *testing.T) {
	t.Parallel()

	device, tag, _ := newSimulatedDevice(t, memtag.NTAG213)
	_, err := device.DetectTag(context.Background())
	require.NoError(t, err)
	tag.SetReadOnly(true)

	err = device.WritePage(context.Background(), 4, []byte{1, 2, 3, 4})
	require.ErrorIs(t, err, pn532.ErrTagWriteFailed)
	var pe *pn532.PN532Error
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.IsWriteRefused())
}

func TestDevice_ReadNDEFUnformatted(t *testing.T) {
	t.Parallel()

	blank, err := memtag.FromBytes(make([]byte, memtag.NTAG213.Pages*memtag.PageSize))
	require.NoError(t, err)

	sim := virt.NewVirtualPN532()
	sim.SetTag(blank)
	device, err := pn532.New(virt.NewSimulatorTransport(sim))
	require.NoError(t, err)

	_, err = device.ReadNDEF(context.Background())
	require.ErrorIs(t, err, tagid.ErrTagNotFormatted)
}

func TestDevice_RedetectsAfterTagLoss(t *testing.T) {
	t.Parallel()

	device, tag, sim := newSimulatedDevice(t, memtag.NTAG213)
	ctx := context.Background()
	require.NoError(t, device.WriteNDEF(ctx, []byte{0xD1, 0x01, 0x00, 'T'}))

	tag.SetPresent(false)
	_, err := device.ReadNDEF(ctx)
	require.ErrorIs(t, err, tagid.ErrTagNotPresent)
	assert.Nil(t, device.CurrentTarget())

	tag.SetPresent(true)
	before := sim.CommandCount(virt.CmdInListPassiveTarget)
	got, err := device.ReadNDEF(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD1, 0x01, 0x00, 'T'}, got)
	assert.Equal(t, before+1, sim.CommandCount(virt.CmdInListPassiveTarget))
}

func TestDevice_ExchangeFields(t *testing.T) {
	t.Parallel()

	for _, legacy := range []bool{true, false} {
		cfg := tagid.DefaultConfig()
		cfg.StrictLegacyCompat = legacy
		cfg.Schema = tagid.BluetoothSchema.Name

		x, err := tagid.NewExchange(cfg)
		require.NoError(t, err)

		fields := x.NewFieldSet()
		require.NoError(t, fields.Set(tagid.FieldDeviceID, "6f1c9a52-3d0b-4d8e-9b6a-0a6f4e2c1d77"))
		require.NoError(t, fields.Set(tagid.FieldBluetoothName, "Zaparoo Base"))
		require.NoError(t, fields.Set(tagid.FieldBluetoothMAC, "AA:BB:CC:DD:EE:FF"))

		device, _, _ := newSimulatedDevice(t, memtag.NTAG215)
		ctx := context.Background()
		require.NoError(t, x.WriteFields(ctx, device, fields))

		got, err := x.ReadFields(ctx, device)
		require.NoError(t, err)
		assert.True(t, fields.Equal(got), "legacy=%v: got %s", legacy, got)
	}
}

func TestDevice_ExchangeReportsUpstreamFailure(t *testing.T) {
	t.Parallel()

	x, err := tagid.NewExchange(tagid.DefaultConfig())
	require.NoError(t, err)

	device, _, sim := newSimulatedDevice(t, memtag.NTAG213)
	sim.RemoveAllTags()

	fields, err := x.ReadFieldsLenient(context.Background(), device)
	require.ErrorIs(t, err, tagid.ErrUpstreamIO)
	require.ErrorIs(t, err, tagid.ErrTagNotPresent)
	assert.Empty(t, fields.DeviceID())
}
