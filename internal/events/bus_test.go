package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[BuildStarted](b, 1)
	defer unsubscribe()

	evt := BuildStarted{CorrelationID: "abc", StartedAt: time.Now()}
	require.NoError(t, b.Publish(context.Background(), evt))

	select {
	case got := <-ch:
		require.Equal(t, "abc", got.CorrelationID)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_InterfaceSubscriptionReceivesAllLifecycleEvents(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[LifecycleEvent](b, 4)
	defer unsubscribe()

	code := 0
	require.NoError(t, b.Publish(context.Background(), RestoreStarted{CorrelationID: "r1"}))
	require.NoError(t, b.Publish(context.Background(), RestoreCompleted{CorrelationID: "r1", Result: "succeeded", ExitCode: &code}))
	require.NoError(t, b.Publish(context.Background(), BuildStarted{CorrelationID: "r1"}))
	require.NoError(t, b.Publish(context.Background(), BuildCompleted{CorrelationID: "r1", Result: "succeeded", ExitCode: &code}))

	var kinds []string
	for range 4 {
		select {
		case evt := <-ch:
			kinds = append(kinds, evt.Kind())
		case <-time.After(250 * time.Millisecond):
			t.Fatal("timed out waiting for events")
		}
	}
	require.Equal(t, []string{"restore_started", "restore_completed", "build_started", "build_completed"}, kinds)
}

func TestBus_PublishBackpressure(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[BuildStarted](b, 0) // unbuffered; no receiver => blocks
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, BuildStarted{CorrelationID: "x"})
	require.Error(t, err)

	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	require.Equal(t, ferrors.CategoryRuntime, classified.Category())
}

func TestBus_Close(t *testing.T) {
	b := NewBus()

	ch, _ := Subscribe[BuildStarted](b, 1)
	b.Close()

	select {
	case _, ok := <-ch:
		require.False(t, ok, "channel must be closed on bus close")
	case <-time.After(250 * time.Millisecond):
		t.Fatal("channel not closed")
	}

	require.Error(t, b.Publish(context.Background(), BuildStarted{}))
}

func TestBus_PublishNoSubscribersIsNoop(t *testing.T) {
	b := NewBus()
	defer b.Close()

	require.NoError(t, b.Publish(context.Background(), RestoreStarted{CorrelationID: "none"}))
}
