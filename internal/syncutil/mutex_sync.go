//go:build !deadlock

// Package syncutil holds the mutex types shared by the reader transports and
// memory tags. Plain sync types are used unless the binary is built with
// -tags=deadlock, which swaps in github.com/sasha-s/go-deadlock.
package syncutil

import (
	"sync"
	"time"
)

// Mutex is a sync.Mutex.
//
//nolint:gocritic // embedded to expose Lock and Unlock
type Mutex struct {
	sync.Mutex
}

// RWMutex is a sync.RWMutex.
//
//nolint:gocritic // embedded to expose the full RWMutex method set
type RWMutex struct {
	sync.RWMutex
}

// DetectionEnabled reports whether lock-order and timeout detection is active.
func DetectionEnabled() bool { return false }

// SetLockTimeout has no effect without the deadlock build tag.
func SetLockTimeout(time.Duration) {}
