package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megcare/caseflow/pkg/messaging"
)

func TestRedisBroker_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	broker := NewRedisBrokerFromClient(client, nil)
	defer broker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := broker.Subscribe(ctx, "case-events")
	require.NoError(t, err)

	// A foreign publisher's garbage must not reach subscribers.
	require.NoError(t, client.Publish(ctx, "case-events", "not json").Err())

	msg := messaging.Message{ID: "1", Type: "case.assigned", HospitalID: 3, Payload: json.RawMessage(`{"case_id":42}`)}
	require.NoError(t, broker.Publish(ctx, "case-events", msg))

	select {
	case got := <-ch:
		assert.Equal(t, "case.assigned", got.Type)
		assert.Equal(t, int64(3), got.HospitalID)
		assert.JSONEq(t, `{"case_id":42}`, string(got.Payload))
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestNewRedisBroker_BadURL(t *testing.T) {
	_, err := NewRedisBroker(Config{URL: "not a url"}, nil)
	assert.Error(t, err)
}
