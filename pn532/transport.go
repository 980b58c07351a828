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

package pn532

import (
	"context"
	"fmt"
)

// Transport sends PN532 commands over a physical link. Implementations
// handle framing, ACK and NACK; SendCommand returns the response payload
// starting with the response code (command + 1).
type Transport interface {
	// SendCommand sends a command and waits for its response
	SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error)

	// Close closes the transport connection
	Close() error

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportI2C represents I2C bus transport.
	TransportI2C TransportType = "i2c"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportWithRetry wraps a Transport with retry on transient errors
type TransportWithRetry struct {
	transport Transport
	config    *RetryConfig
}

// NewTransportWithRetry creates a new transport wrapper with retry logic
func NewTransportWithRetry(transport Transport, config *RetryConfig) *TransportWithRetry {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &TransportWithRetry{
		transport: transport,
		config:    config,
	}
}

// SendCommand sends a command, retrying while the error is retryable
func (t *TransportWithRetry) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	var result []byte
	err := RetryWithConfig(ctx, t.config, func() error {
		res, err := t.transport.SendCommand(ctx, cmd, args)
		if err != nil {
			debugf("command 0x%02X failed: %v", cmd, err)
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("command 0x%02X: %w", cmd, err)
	}
	return result, nil
}

// Close closes the transport connection
func (t *TransportWithRetry) Close() error {
	if err := t.transport.Close(); err != nil {
		return fmt.Errorf("failed to close underlying transport: %w", err)
	}
	return nil
}

// Type returns the transport type
func (t *TransportWithRetry) Type() TransportType {
	return t.transport.Type()
}
