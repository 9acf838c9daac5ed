package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gatherkit/walletgate/core"
	"github.com/gatherkit/walletgate/ports"
)

// accountLinker resolves a verified wallet identity to an application
// account, creating one when absent. The challenge row's linked_account_id
// is the local source of truth; the remote identifier uniqueness constraint
// settles creation races.
type accountLinker struct {
	accounts ports.AccountGateway
	nonces   ports.NonceStore
	log      zerolog.Logger
}

func (l *accountLinker) linkOrCreate(ctx context.Context, identity core.Identity) (*core.Account, error) {
	identifier := identity.Identifier()

	if identity.AccountID != nil && *identity.AccountID != "" {
		// Last-used bookkeeping must not fail an otherwise valid login.
		if err := l.accounts.Touch(ctx, *identity.AccountID); err != nil {
			l.log.Warn().Err(err).
				Str("account_id", *identity.AccountID).
				Msg("failed to update account last-used timestamp")
		}
		return &core.Account{ID: *identity.AccountID, Email: identifier}, nil
	}

	account, err := l.accounts.Create(ctx, core.NewAccount{
		Email:            identifier,
		Chain:            identity.Chain,
		Address:          identity.Address,
		CanonicalAddress: identity.CanonicalAddress,
	})
	if err != nil {
		if errors.Is(err, core.ErrAccountOperation) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", err.Error(), core.ErrAccountOperation)
	}

	linkedID, err := l.nonces.LinkAccount(ctx, identity.Chain, identity.Address, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to persist account linkage: %w", core.ErrAccountOperation)
	}
	if linkedID != account.ID {
		// A concurrent request linked first; its account wins.
		l.log.Info().
			Str("wallet", identity.Address).
			Str("account_id", linkedID).
			Msg("account linkage race lost, reusing winner")
		return &core.Account{ID: linkedID, Email: identifier}, nil
	}
	return account, nil
}
