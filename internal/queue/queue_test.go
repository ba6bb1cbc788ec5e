package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: "security_event", Body: json.RawMessage(`{"id":"1"}`)}))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		assert.Equal(t, "security_event", msg.Type)
		assert.JSONEq(t, `{"id":"1"}`, string(msg.Body))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestInMemoryPublishRespectsContext(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Type: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, Message{Type: "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemoryConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := NewInMemory(1).Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestOpen(t *testing.T) {
	q, closeFn, err := Open(Options{Backend: "memory"}, nil)
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	assert.IsType(t, &InMemory{}, q)
	closeFn()

	_, _, err = Open(Options{Backend: "redis"}, nil)
	assert.Error(t, err)

	_, _, err = Open(Options{Backend: "kafka"}, nil)
	assert.Error(t, err, "kafka needs brokers")

	_, _, err = Open(Options{Backend: "pigeon"}, nil)
	assert.Error(t, err)
}
