//go:build deadlock

// Package syncutil holds the mutex types shared by the reader transports and
// memory tags. This variant reports potential deadlocks through
// github.com/sasha-s/go-deadlock.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// Mutex is a deadlock.Mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a deadlock.RWMutex.
type RWMutex struct {
	deadlock.RWMutex
}

// DetectionEnabled reports whether lock-order and timeout detection is active.
func DetectionEnabled() bool { return true }

// SetLockTimeout sets how long a lock may be waited on before go-deadlock
// reports it. Zero disables the timeout check.
func SetLockTimeout(d time.Duration) {
	deadlock.Opts.DeadlockTimeout = d
}
