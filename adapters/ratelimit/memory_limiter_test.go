package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherkit/walletgate/core"
	"github.com/gatherkit/walletgate/ports"
)

var testPolicy = ports.RatePolicy{
	MaxAttempts: 3,
	Window:      10 * time.Minute,
	Block:       5 * time.Minute,
}

func newTestLimiter(start time.Time) (*MemoryLimiter, *time.Time) {
	clock := start
	l := NewMemoryLimiter()
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestMemoryLimiterAllowsUpToMax(t *testing.T) {
	l, _ := newTestLimiter(time.Now())
	key := ports.RateKey{Address: "0xabc", Chain: core.ChainEthereum, IP: "10.0.0.1"}

	for i := 0; i < testPolicy.MaxAttempts; i++ {
		d, err := l.Check(context.Background(), key, testPolicy)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "attempt %d", i+1)
	}
}

func TestMemoryLimiterBlocksOverMax(t *testing.T) {
	start := time.Now()
	l, _ := newTestLimiter(start)
	key := ports.RateKey{Address: "0xabc", Chain: core.ChainEthereum, IP: "10.0.0.1"}

	for i := 0; i < testPolicy.MaxAttempts; i++ {
		_, err := l.Check(context.Background(), key, testPolicy)
		require.NoError(t, err)
	}

	d, err := l.Check(context.Background(), key, testPolicy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, start.Add(testPolicy.Block), d.BlockedUntil)

	// Still blocked while the block is in force, same deadline.
	d, err = l.Check(context.Background(), key, testPolicy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, start.Add(testPolicy.Block), d.BlockedUntil)
}

func TestMemoryLimiterBlockExpires(t *testing.T) {
	start := time.Now()
	l, clock := newTestLimiter(start)
	key := ports.RateKey{Address: "0xabc", Chain: core.ChainEthereum, IP: "10.0.0.1"}

	for i := 0; i <= testPolicy.MaxAttempts; i++ {
		_, err := l.Check(context.Background(), key, testPolicy)
		require.NoError(t, err)
	}

	*clock = start.Add(testPolicy.Block + time.Second)
	d, err := l.Check(context.Background(), key, testPolicy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestMemoryLimiterWindowResets(t *testing.T) {
	start := time.Now()
	l, clock := newTestLimiter(start)
	key := ports.RateKey{Address: "0xabc", Chain: core.ChainEthereum, IP: "10.0.0.1"}

	for i := 0; i < testPolicy.MaxAttempts; i++ {
		_, err := l.Check(context.Background(), key, testPolicy)
		require.NoError(t, err)
	}

	// Past the window the counter starts fresh, so another full burst is
	// allowed.
	*clock = start.Add(testPolicy.Window + time.Second)
	for i := 0; i < testPolicy.MaxAttempts; i++ {
		d, err := l.Check(context.Background(), key, testPolicy)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "attempt %d after window reset", i+1)
	}
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Now())
	blocked := ports.RateKey{Address: "0xabc", Chain: core.ChainEthereum, IP: "10.0.0.1"}

	for i := 0; i <= testPolicy.MaxAttempts; i++ {
		_, err := l.Check(context.Background(), blocked, testPolicy)
		require.NoError(t, err)
	}

	others := []ports.RateKey{
		{Address: "0xdef", Chain: core.ChainEthereum, IP: "10.0.0.1"},
		{Address: "0xabc", Chain: core.ChainSolana, IP: "10.0.0.1"},
		{Address: "0xabc", Chain: core.ChainEthereum, IP: "10.0.0.2"},
	}
	for _, key := range others {
		d, err := l.Check(context.Background(), key, testPolicy)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "key %+v", key)
	}
}
