package memory

import (
	"context"
	"sync"
	"time"

	"pixkeys/pkg/platform/sentinel"
)

// Locker is a process-local job lock with expiry.
type Locker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]time.Time), now: time.Now}
}

func (l *Locker) TryLock(_ context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if until, ok := l.held[name]; ok && l.now().Before(until) {
		return nil, sentinel.ErrLockHeld
	}
	l.held[name] = l.now().Add(ttl)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, name)
		return nil
	}, nil
}
