package ports

import (
	"context"

	"github.com/gatherkit/walletgate/core"
)

// NonceStore persists the single active challenge per (chain, wallet).
type NonceStore interface {
	// Save upserts a challenge, overwriting any prior one for the same
	// (chain, address) key.
	Save(ctx context.Context, challenge *core.Challenge) error

	// GetActive returns the unconsumed challenge for the key, or
	// core.ErrNoChallenge.
	GetActive(ctx context.Context, chain core.Chain, address string) (*core.Challenge, error)

	// Consume clears nonce and expiry, but only if the stored nonce still
	// equals the given value. A lost race or stale nonce returns
	// core.ErrChallengeConsumed.
	Consume(ctx context.Context, chain core.Chain, address, nonce string) error

	// LinkAccount records the account linked to this wallet. The write only
	// happens when no account is linked yet; the returned id is the one that
	// ended up on the row, which may be a concurrent winner's.
	LinkAccount(ctx context.Context, chain core.Chain, address, accountID string) (string, error)
}
