package usecase

import (
	"context"
	"sync"
)

// sessionLocks serializes work per session id. Entries are reference counted
// and removed once no caller holds or waits on them.
type sessionLocks struct {
	mu      sync.Mutex
	entries map[string]*sessionLock
}

type sessionLock struct {
	sem  chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{entries: make(map[string]*sessionLock)}
}

func (l *sessionLocks) acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &sessionLock{sem: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.sem
				l.release(key, entry)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, entry)
		return nil, ctx.Err()
	}
}

func (l *sessionLocks) release(key string, entry *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
