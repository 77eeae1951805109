// Package lock provides per-key mutual exclusion with a bounded wait.
//
// The booking core holds one key per schedule around the check-then-commit
// sequence. Keys never block each other.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrBusy is returned when the wait for a key exceeds its bound.
var ErrBusy = errors.New("lock: wait timeout exceeded")

// Unlock releases a held key. Calling it more than once is a no-op.
type Unlock func()

type Locker interface {
	// Acquire blocks until key is held, wait elapses (ErrBusy) or ctx ends.
	// wait <= 0 waits for ctx only.
	Acquire(ctx context.Context, key string, wait time.Duration) (Unlock, error)
}
