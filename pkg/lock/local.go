package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process keyed lock. Entries are reference counted
// and dropped once no holder or waiter remains.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

type localEntry struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*localEntry)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, wait time.Duration) (Unlock, error) {
	e := l.ref(key)

	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				l.unref(key, e)
			})
		}, nil
	case <-timeout:
		l.unref(key, e)
		return nil, ErrBusy
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	}
}

// Held reports how many keys currently have holders or waiters.
func (l *LocalLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *LocalLocker) ref(key string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *LocalLocker) unref(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}
