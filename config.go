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

package tagid

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ZaparooProject/go-tagid/pkg/ndef"
	"gopkg.in/yaml.v3"
)

// LegacyLanguage is the language code early Android builds passed to
// createTextRecord. With the legacy length mask it reads back as "U"
// followed by the "TF-8" marker in front of the JSON document.
const LegacyLanguage = "UTF-8"

// ReaderConfig configures the physical reader used by the CLI.
type ReaderConfig struct {
	// Device is a serial port path, or an I2C bus name prefixed with "i2c:".
	// Empty means auto-detect a serial port.
	Device string `yaml:"device"`
	// Timeout bounds a single read or write interaction.
	Timeout time.Duration `yaml:"timeout"`
	// PollInterval is the pause between tag detection attempts.
	PollInterval time.Duration `yaml:"poll-interval"`
}

// Config holds codec and reader options.
type Config struct {
	// Schema names the field set exchanged via tags: "device" or "bluetooth".
	Schema string `yaml:"schema"`
	// Language is the language code written in corrected mode.
	// Ignored when StrictLegacyCompat is set.
	Language string       `yaml:"language"`
	Reader   ReaderConfig `yaml:"reader"`
	// StrictLegacyCompat keeps byte compatibility with tags written by the
	// original application: the 0x33 language length mask, the "UTF-8"
	// language code on write, and the length-only 4 character prefix strip.
	StrictLegacyCompat bool `yaml:"strict-legacy-compat"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		StrictLegacyCompat: true,
		Schema:             DeviceSchema.Name,
		Reader: ReaderConfig{
			Timeout:      30 * time.Second,
			PollInterval: 250 * time.Millisecond,
		},
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML from r on top of DefaultConfig and validates it.
// Unknown keys are rejected.
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if _, err := SchemaByName(c.Schema); err != nil {
		return err
	}
	if len(c.Language) > 63 {
		return fmt.Errorf("%w: language code %q longer than 63 bytes", ErrInvalidConfig, c.Language)
	}
	if c.Reader.Timeout < 0 {
		return fmt.Errorf("%w: negative reader timeout %v", ErrInvalidConfig, c.Reader.Timeout)
	}
	if c.Reader.PollInterval < 0 {
		return fmt.Errorf("%w: negative poll interval %v", ErrInvalidConfig, c.Reader.PollInterval)
	}
	return nil
}

// FieldSchema returns the schema named by Schema.
func (c *Config) FieldSchema() (Schema, error) {
	return SchemaByName(c.Schema)
}

// langMask returns the status byte mask for language length.
func (c *Config) langMask() byte {
	if c.StrictLegacyCompat {
		return ndef.LegacyLangLengthMask
	}
	return ndef.LangLengthMask
}

// WriteLanguage returns the language code placed in written text records.
func (c *Config) WriteLanguage() string {
	if c.StrictLegacyCompat {
		return LegacyLanguage
	}
	return c.Language
}
