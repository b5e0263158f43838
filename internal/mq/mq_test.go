package mq

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/libris-lms/apiserver/config"
	"github.com/stretchr/testify/require"
)

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewFromConfig(ctx, config.MQConfig{Backend: BackendNone})
	require.ErrorIs(t, err, ErrDisabled)

	_, err = NewFromConfig(ctx, config.MQConfig{})
	require.ErrorIs(t, err, ErrDisabled)

	_, err = NewFromConfig(ctx, config.MQConfig{Backend: "kafka"})
	require.Error(t, err)

	_, err = NewFromConfig(ctx, config.MQConfig{Backend: BackendRabbitMQ})
	require.Error(t, err)

	q, err := NewFromConfig(ctx, config.MQConfig{Backend: BackendMemory})
	require.NoError(t, err)
	require.Equal(t, BackendMemory, q.Name())
	require.NoError(t, q.Close())
}

func TestMemoryBrokerDelivers(t *testing.T) {
	q := New(NewMemoryBroker())
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id, err := q.Publish(ctx, "reminders", []byte(`{"borrow_id":1}`), map[string]string{"type": "due"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	received := make(chan Message, 1)
	go func() {
		_ = q.Subscribe(ctx, "reminders", func(_ context.Context, msg Message) error {
			received <- msg
			return nil
		})
	}()

	select {
	case msg := <-received:
		require.Equal(t, id, msg.ID)
		require.Equal(t, "due", msg.Attributes["type"])
		require.JSONEq(t, `{"borrow_id":1}`, string(msg.Data))
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestMemoryBrokerRequeuesOnError(t *testing.T) {
	broker := NewMemoryBroker()
	broker.backoff = 10 * time.Millisecond
	defer broker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := broker.Publish(ctx, "reminders", []byte("x"), nil)
	require.NoError(t, err)

	var attempts atomic.Int32
	done := make(chan struct{})
	go func() {
		_ = broker.Subscribe(ctx, "reminders", func(_ context.Context, _ Message) error {
			if attempts.Add(1) == 1 {
				return errors.New("transient")
			}
			close(done)
			return nil
		})
	}()

	select {
	case <-done:
		require.Equal(t, int32(2), attempts.Load())
	case <-ctx.Done():
		t.Fatal("message not redelivered")
	}
}

func TestMemoryBrokerDropsAfterSecondFailure(t *testing.T) {
	broker := NewMemoryBroker()
	broker.backoff = 10 * time.Millisecond
	defer broker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := broker.Publish(ctx, "reminders", []byte("x"), nil)
	require.NoError(t, err)

	var attempts atomic.Int32
	var seen []string
	err = broker.Subscribe(ctx, "reminders", func(_ context.Context, msg Message) error {
		attempts.Add(1)
		seen = append(seen, msg.Attributes[AttributeDeliveryAttempt])
		return errors.New("database unavailable")
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, int32(2), attempts.Load())
	require.Equal(t, []string{"1", "2"}, seen)
}

func TestMemoryBrokerClosed(t *testing.T) {
	for range 100 {
		broker := NewMemoryBroker()
		require.NoError(t, broker.Close())
		require.NoError(t, broker.Close())

		_, err := broker.Publish(context.Background(), "reminders", nil, nil)
		require.Error(t, err)
		require.Error(t, broker.Subscribe(context.Background(), "reminders", func(context.Context, Message) error { return nil }))
	}
}

func TestMemoryBrokerStopsConsumingAfterClose(t *testing.T) {
	broker := NewMemoryBroker()
	for range 10 {
		_, err := broker.Publish(context.Background(), "reminders", []byte("x"), nil)
		require.NoError(t, err)
	}
	require.NoError(t, broker.Close())

	var handled atomic.Int32
	err := broker.Subscribe(context.Background(), "reminders", func(context.Context, Message) error {
		handled.Add(1)
		return nil
	})
	require.Error(t, err)
	require.Zero(t, handled.Load())
}
