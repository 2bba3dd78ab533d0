package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/messaging"
)

func TestRedisBroker_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)

	broker, err := NewRedisBroker(Config{URL: "redis://" + mr.Addr()}, logger.NewNop())
	require.NoError(t, err)
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := broker.Subscribe(ctx, messaging.ChannelSOSAlerts)
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, messaging.ChannelSOSAlerts, messaging.Message{Type: "sos.alert.created", Payload: map[string]string{"urgency": "high"}}))

	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"type":"sos.alert.created","payload":{"urgency":"high"}}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestNewRedisBroker_BadURL(t *testing.T) {
	_, err := NewRedisBroker(Config{URL: "not a url"}, logger.NewNop())
	assert.Error(t, err)
}
