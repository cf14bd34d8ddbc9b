package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBus_DeliversToDoctorSubscribers(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine, err := bus.Subscribe(ctx, "d1")
	require.NoError(t, err)
	other, err := bus.Subscribe(ctx, "d2")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, Event{Type: QueueJoined, DoctorID: "d1", TokenNumber: 4}))

	select {
	case e := <-mine:
		assert.Equal(t, QueueJoined, e.Type)
		assert.Equal(t, 4, e.TokenNumber)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case e := <-other:
		t.Fatalf("unexpected event for d2: %+v", e)
	default:
	}
}

func TestLocalBus_UnsubscribeOnCancel(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, "d1")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	assert.NoError(t, bus.Publish(context.Background(), Event{Type: QueueAdvanced, DoctorID: "d1"}))
}

func TestLocalBus_Close(t *testing.T) {
	bus := NewLocalBus()
	ch, err := bus.Subscribe(context.Background(), "d1")
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	_, ok := <-ch
	assert.False(t, ok)

	late, err := bus.Subscribe(context.Background(), "d1")
	require.NoError(t, err)
	_, ok = <-late
	assert.False(t, ok)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "queue:abc", Channel("abc"))
}
