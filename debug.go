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
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"
)

var (
	debugEnabled atomic.Bool
	debugOutput  io.Writer = os.Stdout
)

func init() {
	if os.Getenv("TAGID_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled.Store(true)
	}
}

// Debugf prints debug information.
// Always writes to the session log file (if initialized) with a timestamp.
// Only prints to the console when debug mode is enabled.
func Debugf(format string, args ...any) {
	emitDebug(fmt.Sprintf(format, args...))
}

// Debugln prints debug information, formatting args like fmt.Sprintln
// without the trailing newline.
func Debugln(args ...any) {
	msg := fmt.Sprintln(args...)
	emitDebug(msg[:len(msg)-1])
}

func emitDebug(message string) {
	if w := currentSessionWriter(); w != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(w, "%s DEBUG: %s\n", timestamp, message)
	}

	if debugEnabled.Load() {
		_, _ = fmt.Fprintf(debugOutput, "DEBUG: %s\n", message)
	}
}

// SetDebugEnabled allows programmatic control of debug logging.
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// DebugEnabled reports whether console debug output is on.
func DebugEnabled() bool {
	return debugEnabled.Load()
}
