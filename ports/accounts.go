package ports

import (
	"context"

	"github.com/gatherkit/walletgate/core"
)

// AccountGateway is the narrow interface onto the external account/session
// system. Creation races resolve on the remote uniqueness constraint over
// the synthetic identifier.
type AccountGateway interface {
	// FindByIdentifier looks up an account by its synthetic wallet
	// identifier, returning core.ErrAccountNotFound when absent.
	FindByIdentifier(ctx context.Context, identifier string) (*core.Account, error)

	// Create registers a new account for a wallet. A duplicate-identifier
	// conflict resolves to the already-existing account.
	Create(ctx context.Context, acc core.NewAccount) (*core.Account, error)

	// Touch updates the account's last-used timestamp.
	Touch(ctx context.Context, accountID string) error

	// IssueLoginLink asks the account system for a one-time magic link and
	// returns the extracted bootstrap token alongside it.
	IssueLoginLink(ctx context.Context, accountID, redirectURL string) (*core.LoginLink, error)
}
