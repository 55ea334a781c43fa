package events

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

func TestEmitterStampsEvents(t *testing.T) {
	rec := &Recorder{}
	em := NewEmitter(rec, logger.Discard())
	ctx := logger.WithTraceID(context.Background(), "trace-1")

	em.Emit(ctx, TypeStockAdjusted, map[string]any{"book_id": "b1", "delta": -2})

	got := rec.OfType(TypeStockAdjusted)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, "trace-1", got[0].TraceID)
	assert.False(t, got[0].OccurredAt.IsZero())
	assert.Equal(t, -2, got[0].Data["delta"])
}

func TestEmitterSwallowsPublishErrors(t *testing.T) {
	rec := &Recorder{Err: errors.New("broker down")}
	em := NewEmitter(rec, logger.Discard())
	assert.NotPanics(t, func() { em.Emit(context.Background(), TypeCartCleared, nil) })
	assert.Empty(t, rec.Events())
}

func TestNilEmitterIsSafe(t *testing.T) {
	var em *Emitter
	assert.NotPanics(t, func() { em.Emit(context.Background(), TypeCartUpdated, nil) })
}

func TestAMQPRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_AMQP_URL")
	if url == "" {
		t.Skip("TEST_AMQP_URL not set")
	}
	exchange := "bookstore.test." + uuid.NewString()[:8]
	pub, err := DialAMQP(url, exchange)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	ch, err := conn.Channel()
	require.NoError(t, err)
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "stock.*", exchange, false, nil))
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	evt := Event{ID: uuid.NewString(), Type: TypeStockAdjusted, OccurredAt: time.Now().UTC(), Data: map[string]any{"book_id": "b1"}}
	require.NoError(t, pub.Publish(context.Background(), evt))

	select {
	case m := <-msgs:
		var got Event
		require.NoError(t, json.Unmarshal(m.Body, &got))
		assert.Equal(t, evt.ID, got.ID)
		assert.Equal(t, TypeStockAdjusted, m.RoutingKey)
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
	_ = ch.ExchangeDelete(exchange, false, false)
}
