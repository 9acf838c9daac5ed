package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherkit/walletgate/core"
)

func TestPublishLogin(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(context.Background(), "auth.wallet_login")
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubSub)
	loggedInAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err = publisher.PublishLogin(context.Background(), &core.LoginEvent{
		AccountID:     "acc-1",
		Chain:         core.ChainEthereum,
		WalletAddress: "0xabc",
		LoggedInAt:    loggedInAt,
	})
	require.NoError(t, err)

	select {
	case msg := <-messages:
		msg.Ack()
		assert.NotEmpty(t, msg.UUID)

		var event core.LoginEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "acc-1", event.AccountID)
		assert.Equal(t, core.ChainEthereum, event.Chain)
		assert.Equal(t, "0xabc", event.WalletAddress)
		assert.True(t, event.LoggedInAt.Equal(loggedInAt))
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}
