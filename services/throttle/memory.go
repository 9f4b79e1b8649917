// Package throttle counts failed attempts per key within a lockout window.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/ja-viss/caipa-connect-sub000/core/auth"
)

type attempts struct {
	count   int
	expires time.Time
}

// MemoryLimiter keeps counters in process memory. It suits a single API instance and tests.
type MemoryLimiter struct {
	max     int
	lockout time.Duration
	now     func() time.Time

	mu       sync.Mutex
	counters map[string]attempts
}

var _ auth.AttemptLimiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter blocks a key after max failures until lockout has passed since the
// first of them. A max of zero or less disables blocking.
func NewMemoryLimiter(max int, lockout time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:      max,
		lockout:  lockout,
		now:      time.Now,
		counters: make(map[string]attempts),
	}
}

// current returns the live counter of key. l.mu must be held.
func (l *MemoryLimiter) current(key string) attempts {
	a, ok := l.counters[key]
	if ok && !l.now().Before(a.expires) {
		delete(l.counters, key)
		return attempts{}
	}
	return a
}

func (l *MemoryLimiter) Blocked(_ context.Context, key string) (bool, error) {
	if l.max <= 0 {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current(key).count >= l.max, nil
}

func (l *MemoryLimiter) Fail(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.current(key)
	if a.count == 0 {
		a.expires = l.now().Add(l.lockout)
	}
	a.count++
	l.counters[key] = a
	return nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counters, key)
	return nil
}
