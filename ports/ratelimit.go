package ports

import (
	"context"
	"time"

	"github.com/gatherkit/walletgate/core"
)

// RateKey is the composite key authentication attempts are counted under.
type RateKey struct {
	Address string
	Chain   core.Chain
	IP      string
}

// RatePolicy configures the sliding window.
type RatePolicy struct {
	MaxAttempts int
	Window      time.Duration
	Block       time.Duration
}

// RateDecision is the outcome of a rate check.
type RateDecision struct {
	Allowed      bool
	BlockedUntil time.Time
}

// RateLimiter counts authentication attempts per key inside a sliding
// window. An error means the counter store is unreachable; callers must
// fail closed, never treat it as allowed.
type RateLimiter interface {
	Check(ctx context.Context, key RateKey, policy RatePolicy) (RateDecision, error)
}
