package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatherkit/walletgate/core"
	"github.com/gatherkit/walletgate/ports"
)

// sessionIssuer bridges a verified identity into the external account
// system's session mechanism. It never mints sessions itself; it asks for a
// one-time login link and hands back the extracted bootstrap token.
type sessionIssuer struct {
	accounts    ports.AccountGateway
	redirectURL string
}

func (i *sessionIssuer) issue(ctx context.Context, accountID string) (*core.LoginLink, error) {
	link, err := i.accounts.IssueLoginLink(ctx, accountID, i.redirectURL)
	if err != nil {
		if errors.Is(err, core.ErrSessionIssuance) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", err.Error(), core.ErrSessionIssuance)
	}
	return link, nil
}
