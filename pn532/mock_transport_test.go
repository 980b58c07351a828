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
	"time"

	"github.com/ZaparooProject/go-tagid/internal/syncutil"
)

// MockCall records one command seen by MockTransport.
type MockCall struct {
	Args []byte
	Cmd  byte
}

// MockTransport is a scripted Transport for tests. Responses are looked up
// by command code; unknown commands answer with the bare response code.
type MockTransport struct {
	responses map[byte][][]byte
	errorMap  map[byte]error
	calls     []MockCall
	delay     time.Duration
	mu        syncutil.Mutex
	closed    bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses: make(map[byte][][]byte),
		errorMap:  make(map[byte]error),
	}
}

// SendCommand implements Transport
func (m *MockTransport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	closed, delay := m.closed, m.delay
	m.mu.Unlock()

	if closed {
		return nil, ErrTransportClosed
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Cmd: cmd, Args: append([]byte(nil), args...)})

	if err, ok := m.errorMap[cmd]; ok {
		return nil, err
	}

	queue := m.responses[cmd]
	switch len(queue) {
	case 0:
		return []byte{cmd + 1}, nil
	case 1:
		return append([]byte(nil), queue[0]...), nil
	default:
		m.responses[cmd] = queue[1:]
		return append([]byte(nil), queue[0]...), nil
	}
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Type implements Transport
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// SetResponse configures the response for a command, replacing any queue.
func (m *MockTransport) SetResponse(cmd byte, response []byte) {
	m.mu.Lock()
	m.responses[cmd] = [][]byte{response}
	m.mu.Unlock()
}

// QueueResponses configures successive responses for a command. The last
// one repeats once the queue is drained.
func (m *MockTransport) QueueResponses(cmd byte, responses ...[]byte) {
	m.mu.Lock()
	m.responses[cmd] = responses
	m.mu.Unlock()
}

// SetError configures an error to be returned for a specific command
func (m *MockTransport) SetError(cmd byte, err error) {
	m.mu.Lock()
	m.errorMap[cmd] = err
	m.mu.Unlock()
}

// ClearError removes error injection for a command
func (m *MockTransport) ClearError(cmd byte) {
	m.mu.Lock()
	delete(m.errorMap, cmd)
	m.mu.Unlock()
}

// SetDelay configures a delay to simulate hardware response time
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// GetCallCount returns how many times a command was called
func (m *MockTransport) GetCallCount(cmd byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Cmd == cmd {
			count++
		}
	}
	return count
}

// Calls returns the recorded commands in order.
func (m *MockTransport) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}
