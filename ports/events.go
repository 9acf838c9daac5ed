package ports

import (
	"context"

	"github.com/gatherkit/walletgate/core"
)

// EventPublisher publishes login events to notify other services.
type EventPublisher interface {
	PublishLogin(ctx context.Context, event *core.LoginEvent) error
}
