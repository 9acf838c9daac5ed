package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/gatherkit/walletgate/ports"
)

type entry struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

// MemoryLimiter is an in-process implementation of the RateLimiter, used in
// development and tests. Semantics match the redis limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Check(ctx context.Context, key ports.RateKey, policy ports.RatePolicy) (ports.RateDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := string(key.Chain) + ":" + key.Address + ":" + key.IP

	e, ok := l.entries[k]
	if !ok {
		e = &entry{windowStart: now}
		l.entries[k] = e
	}

	if !e.blockedUntil.IsZero() {
		if now.Before(e.blockedUntil) {
			return ports.RateDecision{Allowed: false, BlockedUntil: e.blockedUntil}, nil
		}
		// Block elapsed, the counter starts over.
		e.blockedUntil = time.Time{}
		e.count = 0
		e.windowStart = now
	}

	if now.Sub(e.windowStart) > policy.Window {
		e.count = 0
		e.windowStart = now
	}

	e.count++
	if e.count > policy.MaxAttempts {
		e.blockedUntil = now.Add(policy.Block)
		e.count = 0
		return ports.RateDecision{Allowed: false, BlockedUntil: e.blockedUntil}, nil
	}

	return ports.RateDecision{Allowed: true}, nil
}

var _ ports.RateLimiter = (*MemoryLimiter)(nil)
