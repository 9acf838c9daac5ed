package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gatherkit/walletgate/core"
	"github.com/gatherkit/walletgate/ports"
)

// MemoryStore is an in-memory implementation of the NonceStore, used in
// development and tests.
type MemoryStore struct {
	mu         sync.Mutex
	challenges map[string]*core.Challenge
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges: make(map[string]*core.Challenge),
	}
}

func key(chain core.Chain, address string) string {
	return string(chain) + ":" + address
}

func (s *MemoryStore) Save(ctx context.Context, challenge *core.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep the account linkage from a previous challenge for the same wallet.
	c := *challenge
	if prev, ok := s.challenges[key(c.Chain, c.Address)]; ok && c.LinkedAccountID == nil {
		c.LinkedAccountID = prev.LinkedAccountID
	}
	s.challenges[key(c.Chain, c.Address)] = &c
	return nil
}

func (s *MemoryStore) GetActive(ctx context.Context, chain core.Chain, address string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[key(chain, address)]
	if !ok || challenge.Consumed() {
		return nil, core.ErrNoChallenge
	}
	c := *challenge
	return &c, nil
}

func (s *MemoryStore) Consume(ctx context.Context, chain core.Chain, address, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[key(chain, address)]
	if !ok || challenge.Consumed() || challenge.Nonce != nonce {
		return core.ErrChallengeConsumed
	}
	challenge.Nonce = ""
	challenge.ExpiresAt = time.Time{}
	return nil
}

func (s *MemoryStore) LinkAccount(ctx context.Context, chain core.Chain, address, accountID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[key(chain, address)]
	if !ok {
		return "", fmt.Errorf("wallet has no challenge row to link: %w", core.ErrNoChallenge)
	}
	if challenge.LinkedAccountID != nil && *challenge.LinkedAccountID != "" {
		return *challenge.LinkedAccountID, nil
	}
	challenge.LinkedAccountID = &accountID
	return accountID, nil
}

var _ ports.NonceStore = (*MemoryStore)(nil)
