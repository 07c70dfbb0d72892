package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/gaze-engine/internal/pipeline"
)

func TestBus_EmitAndSubscribe_DeliversLiveEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	bus, err := Open(ctx, t.TempDir(), nil)
	require.NoError(t, err)
	defer bus.Close()

	sub, err := bus.Subscribe(ctx, false)
	require.NoError(t, err)
	defer sub.Close()

	// Give the consumer a moment to attach before publishing, since
	// DeliverNewPolicy only sees events published after it is created.
	time.Sleep(200 * time.Millisecond)

	bus.Emit(pipeline.Event{MediaID: "m1", Stage: "EXTRACTING_FRAMES", Progress: 0.5})

	select {
	case ev := <-sub.Events:
		assert.Equal(t, "m1", ev.MediaID)
		assert.Equal(t, "EXTRACTING_FRAMES", ev.Stage)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestBus_SubscribeMedia_FiltersBySubject(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	bus, err := Open(ctx, t.TempDir(), nil)
	require.NoError(t, err)
	defer bus.Close()

	sub, err := bus.SubscribeMedia(ctx, "target", false)
	require.NoError(t, err)
	defer sub.Close()

	time.Sleep(200 * time.Millisecond)

	bus.Emit(pipeline.Event{MediaID: "other", Stage: "EMBEDDING"})
	bus.Emit(pipeline.Event{MediaID: "target", Stage: "EMBEDDING"})

	select {
	case ev := <-sub.Events:
		assert.Equal(t, "target", ev.MediaID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for filtered event delivery")
	}
}

func TestBus_Subscribe_ReplayFromStart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	bus, err := Open(ctx, t.TempDir(), nil)
	require.NoError(t, err)
	defer bus.Close()

	bus.Emit(pipeline.Event{MediaID: "m2", Stage: "DETECTING"})
	time.Sleep(200 * time.Millisecond)

	sub, err := bus.Subscribe(ctx, true)
	require.NoError(t, err)
	defer sub.Close()

	select {
	case ev := <-sub.Events:
		assert.Equal(t, "m2", ev.MediaID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for replayed event")
	}
}
