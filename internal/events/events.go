// Package events runs an embedded NATS JetStream server and exposes a
// durable progress-event bus: every pipeline.Event gets published to a
// JetStream stream so a WebSocket client that drops and reconnects can
// replay everything it missed instead of losing events. The broker is
// embedded and runs in-process.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/gaze-engine/internal/pipeline"
)

const (
	streamName   = "GAZE_EVENTS"
	subjectBase  = "gaze.events"
	streamMaxAge = 24 * time.Hour
)

// Bus is an embedded, single-process NATS JetStream broker carrying
// pipeline.Event notifications from the scheduler to the API's
// WebSocket hub.
type Bus struct {
	ns *server.Server
	nc *nats.Conn
	js jetstream.JetStream
	log *slog.Logger
}

// Open starts an embedded NATS server rooted at <dataDir>/nats and
// connects a JetStream client to it. No external NATS process is
// required or expected.
func Open(ctx context.Context, dataDir string, log *slog.Logger) (*Bus, error) {
	if log == nil {
		log = slog.Default()
	}
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      server.RANDOM_PORT,
		JetStream: true,
		StoreDir:  filepath.Join(dataDir, "nats"),
		NoLog:     true,
		NoSigs:    true,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("events: start embedded nats: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		return nil, fmt.Errorf("events: embedded nats did not become ready")
	}

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("events: connect to embedded nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		ns.Shutdown()
		return nil, fmt.Errorf("events: create jetstream context: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Subjects:    []string{subjectBase + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      streamMaxAge,
		MaxMsgs:     200000,
		Storage:     jetstream.FileStorage,
		Description: "Indexing progress/status events for WebSocket replay",
	}); err != nil {
		nc.Close()
		ns.Shutdown()
		return nil, fmt.Errorf("events: ensure stream: %w", err)
	}

	log.Info("embedded event bus ready", "url", ns.ClientURL())
	return &Bus{ns: ns, nc: nc, js: js, log: log}, nil
}

// Close drains the client connection and shuts down the embedded
// server.
func (b *Bus) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
	if b.ns != nil {
		b.ns.Shutdown()
	}
}

// Emit implements pipeline.Emitter: every stage's progress/status
// notification is published durably, keyed by media ID, so a later
// subscriber can replay it.
func (b *Bus) Emit(ev pipeline.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Warn("events: marshal event failed", "error", err)
		return
	}
	subject := subjectBase + "." + ev.MediaID
	if _, err := b.js.Publish(context.Background(), subject, payload); err != nil {
		b.log.Warn("events: publish failed", "media_id", ev.MediaID, "error", err)
	}
}

// Subscription delivers events to a single WebSocket connection and
// lets the caller stop receiving and release the underlying consumer.
type Subscription struct {
	Events <-chan pipeline.Event
	cons   jetstream.ConsumeContext
}

// Close stops delivery. The ephemeral consumer is not deleted here; the
// server drops it once its inactivity threshold has passed.
func (s *Subscription) Close() {
	if s.cons != nil {
		s.cons.Stop()
	}
}

// Subscribe opens a fresh ephemeral consumer over the event stream. If
// replayFromStart is true (a client reconnecting after a drop), every
// retained event is redelivered before live events; otherwise only new
// events are delivered, matching a fresh WebSocket connection that has
// nothing to catch up on.
func (b *Bus) Subscribe(ctx context.Context, replayFromStart bool) (*Subscription, error) {
	deliver := jetstream.DeliverNewPolicy
	if replayFromStart {
		deliver = jetstream.DeliverAllPolicy
	}

	stream, err := b.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("events: get stream: %w", err)
	}
	consumer, err := stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: deliver,
		FilterSubject: subjectBase + ".>",
		InactiveThreshold: 5 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("events: create consumer: %w", err)
	}

	ch := make(chan pipeline.Event, 64)
	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		var ev pipeline.Event
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			b.log.Warn("events: bad event payload", "error", err)
			return
		}
		select {
		case ch <- ev:
		default:
			b.log.Warn("events: subscriber channel full, dropping event", "media_id", ev.MediaID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("events: start consume: %w", err)
	}

	return &Subscription{Events: ch, cons: consumeCtx}, nil
}

// SubscribeMedia is like Subscribe but filters to a single media item
// — used by a client watching one item's indexing progress rather
// than the whole feed.
func (b *Bus) SubscribeMedia(ctx context.Context, mediaID string, replayFromStart bool) (*Subscription, error) {
	deliver := jetstream.DeliverNewPolicy
	if replayFromStart {
		deliver = jetstream.DeliverAllPolicy
	}

	stream, err := b.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("events: get stream: %w", err)
	}
	consumer, err := stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		AckPolicy:         jetstream.AckNonePolicy,
		DeliverPolicy:     deliver,
		FilterSubject:     subjectBase + "." + mediaID,
		InactiveThreshold: 5 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("events: create consumer: %w", err)
	}

	ch := make(chan pipeline.Event, 64)
	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		var ev pipeline.Event
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			b.log.Warn("events: bad event payload", "error", err)
			return
		}
		select {
		case ch <- ev:
		default:
			b.log.Warn("events: subscriber channel full, dropping event", "media_id", ev.MediaID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("events: start consume: %w", err)
	}

	return &Subscription{Events: ch, cons: consumeCtx}, nil
}
