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

// Command tagid reads and writes device identity fields on NFC tags through
// a PN532 reader or a tag image file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tagid "github.com/ZaparooProject/go-tagid"
	"github.com/ZaparooProject/go-tagid/internal/syncutil"
	"github.com/ZaparooProject/go-tagid/memtag"
	"github.com/ZaparooProject/go-tagid/pn532"
	"github.com/ZaparooProject/go-tagid/transport/i2c"
	"github.com/ZaparooProject/go-tagid/transport/uart"
)

const i2cPrefix = "i2c:"

// newImageUID is the UID given to image files created by -write.
var newImageUID = []byte{0x04, 0x5A, 0x50, 0x52, 0x4F, 0x4A, 0x01}

// seams for tests
var (
	listPorts  = uart.ListPorts
	openReader = openTransport
)

// debugLockTimeout bounds lock waits in deadlock-tagged debug builds.
const debugLockTimeout = 10 * time.Second

type options struct {
	configPath string
	deviceID   string
	btName     string
	btMAC      string
	schema     string
	device     string
	image      string
	logDir     string
	write      bool
	generateID bool
	legacy     bool
	list       bool
	debug      bool
	// set records which flags were given explicitly.
	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("tagid", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.BoolVar(&opts.write, "write", false, "Write fields to the next tag instead of reading")
	fs.StringVar(&opts.deviceID, "device-id", "", "Value for the device_id field")
	fs.BoolVar(&opts.generateID, "generate-id", false, "Generate a random UUID for the device_id field")
	fs.StringVar(&opts.btName, "bt-name", "", "Value for the device_bluetooth_name field")
	fs.StringVar(&opts.btMAC, "bt-mac", "", "Value for the device_bluetooth_mac_address field")
	fs.StringVar(&opts.schema, "schema", "", "Field schema: device or bluetooth")
	fs.BoolVar(&opts.legacy, "legacy", true, "Keep byte compatibility with tags from the original app")
	fs.StringVar(&opts.device, "device", "", "Serial port, or i2c:<bus> (auto-detect if empty)")
	fs.StringVar(&opts.image, "image", "", "Use a tag image file instead of a reader")
	fs.BoolVar(&opts.list, "list", false, "List serial ports and exit")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug output")
	fs.StringVar(&opts.logDir, "log", "", "Write a session log to this directory")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if opts.generateID && opts.deviceID != "" {
		return nil, errors.New("-device-id and -generate-id are mutually exclusive")
	}
	return opts, nil
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(opts *options) (*tagid.Config, error) {
	cfg := tagid.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = tagid.LoadConfig(opts.configPath); err != nil {
			return nil, err
		}
	}

	if opts.set["schema"] {
		cfg.Schema = opts.schema
	}
	if opts.set["legacy"] {
		cfg.StrictLegacyCompat = opts.legacy
	}
	if opts.set["device"] {
		cfg.Reader.Device = opts.device
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openTransport opens the reader named by device.
func openTransport(ctx context.Context, device string) (pn532.Transport, error) {
	switch {
	case device == "":
		transport, path, err := uart.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to auto-detect PN532: %w", err)
		}
		tagid.Debugf("found PN532 on %s", path)
		return transport, nil
	case strings.HasPrefix(device, i2cPrefix):
		transport, err := i2c.New(strings.TrimPrefix(device, i2cPrefix))
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return transport, nil
	default:
		transport, err := uart.New(device)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return transport, nil
	}
}

func runList(out io.Writer) error {
	ports, err := listPorts()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		_, _ = fmt.Fprintln(out, "No serial ports found.")
		return nil
	}
	for _, port := range ports {
		hint := ""
		if port.Likely {
			hint = " (likely PN532)"
		}
		if port.USB {
			_, _ = fmt.Fprintf(out, "%s\tUSB %s %s%s\n", port.Path, port.VIDPID, port.Product, hint)
		} else {
			_, _ = fmt.Fprintf(out, "%s%s\n", port.Path, hint)
		}
	}
	return nil
}

// buildFields collects the fields to write from the flags.
func buildFields(x *tagid.Exchange, opts *options) (*tagid.FieldSet, error) {
	fields := x.NewFieldSet()

	id := opts.deviceID
	if opts.generateID {
		id = tagid.NewDeviceID()
	}
	if id == "" {
		return nil, errors.New("write mode needs -device-id or -generate-id")
	}
	if !tagid.IsDeviceID(id) {
		tagid.Debugf("device id %q is not a UUID", id)
	}

	values := map[string]string{
		tagid.FieldDeviceID:      id,
		tagid.FieldBluetoothName: opts.btName,
		tagid.FieldBluetoothMAC:  opts.btMAC,
	}
	for name, value := range values {
		if value == "" {
			continue
		}
		if err := fields.Set(name, value); err != nil {
			return nil, fmt.Errorf("-schema %s: %w", x.Serializer().Schema().Name, err)
		}
	}
	return fields, nil
}

func printFields(out io.Writer, fields *tagid.FieldSet) {
	for _, name := range fields.Schema().Fields {
		_, _ = fmt.Fprintf(out, "%s: %s\n", name, fields.Get(name))
	}
}

// exchangeFields reads from or writes to tag and reports the outcome.
func exchangeFields(ctx context.Context, x *tagid.Exchange, tag tagid.TagIO, opts *options, out io.Writer) error {
	if !opts.write {
		fields, err := x.ReadFieldsLenient(ctx, tag)
		printFields(out, fields)
		if err != nil {
			return fmt.Errorf("failed to read tag: %w", err)
		}
		return nil
	}

	fields, err := buildFields(x, opts)
	if err != nil {
		return err
	}
	if err := x.WriteFields(ctx, tag, fields); err != nil {
		return fmt.Errorf("failed to write tag: %w", err)
	}
	_, _ = fmt.Fprintln(out, "Wrote:")
	printFields(out, fields)
	return nil
}

// runImage works on a tag image file. Writing to a missing file creates a
// blank NTAG215 image first.
func runImage(ctx context.Context, x *tagid.Exchange, opts *options, out io.Writer) error {
	tag, err := memtag.Load(opts.image)
	if errors.Is(err, os.ErrNotExist) && opts.write {
		tag, err = memtag.New(memtag.NTAG215, newImageUID)
	}
	if err != nil {
		return err
	}

	if err := exchangeFields(ctx, x, tag, opts, out); err != nil {
		return err
	}
	if opts.write {
		return tag.Save(opts.image)
	}
	return nil
}

// runReader waits for a tag on the reader and exchanges fields with it.
func runReader(ctx context.Context, x *tagid.Exchange, cfg *tagid.Config, opts *options, out io.Writer) error {
	if opts.write {
		// validate the flags before waiting for a tag
		if _, err := buildFields(x, opts); err != nil {
			return err
		}
	}

	transport, err := openReader(ctx, cfg.Reader.Device)
	if err != nil {
		return err
	}

	device, err := pn532.New(transport, pn532.WithRetry(pn532.DefaultRetryConfig()))
	if err != nil {
		_ = transport.Close()
		return err
	}
	defer func() {
		if err := device.Close(); err != nil {
			tagid.Debugf("failed to close device: %v", err)
		}
	}()

	if err := device.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize PN532: %w", err)
	}
	if fw := device.FirmwareVersion(); fw != nil {
		tagid.Debugf("PN532 firmware %s", fw.Version)
	}

	if cfg.Reader.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Reader.Timeout)
		defer cancel()
	}

	_, _ = fmt.Fprintln(out, "Waiting for tag...")
	tag, err := device.WaitForTag(ctx, cfg.Reader.PollInterval)
	if err != nil {
		return fmt.Errorf("no tag: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Tag %s\n", tag.UID)

	err = exchangeFields(ctx, x, device, opts, out)
	if releaseErr := device.InRelease(ctx); releaseErr != nil {
		tagid.Debugf("failed to release tag: %v", releaseErr)
	}
	return err
}

func run(ctx context.Context, opts *options, out io.Writer) error {
	if opts.list {
		return runList(out)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	x, err := tagid.NewExchange(cfg)
	if err != nil {
		return err
	}

	if opts.image != "" {
		return runImage(ctx, x, opts, out)
	}
	return runReader(ctx, x, cfg, opts, out)
}

func mainWithArgs(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if opts.debug {
		tagid.SetDebugEnabled(true)
		if syncutil.DetectionEnabled() {
			syncutil.SetLockTimeout(debugLockTimeout)
			tagid.Debugf("deadlock detection on, lock timeout %s", debugLockTimeout)
		}
	}
	if opts.set["log"] {
		path, err := tagid.InitSessionLog(opts.logDir)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer func() { _ = tagid.CloseSessionLog() }()
		_, _ = fmt.Fprintf(stderr, "Session log: %s\n", path)
	}

	if err := run(ctx, opts, stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := mainWithArgs(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
