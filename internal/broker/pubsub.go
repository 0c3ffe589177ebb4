// Package broker carries confirmed message events between server instances
// over a NATS JetStream stream.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/johndosdos/chatsync/internal/model"
)

// ErrNoJetStream is returned when Publisher is built without a JetStream
// handle.
var ErrNoJetStream = errors.New("jetstream interface is nil")

// Encode serializes an event for the stream.
func Encode(ev model.Event) ([]byte, error) {
	p, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("could not encode event to JSON: %w", err)
	}
	return p, nil
}

// Decode parses a stream payload. Unknown mutations are passed through so
// that consumers can decide to ignore them.
func Decode(data []byte) (model.Event, error) {
	var ev model.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("could not decode event: %w", err)
	}
	if ev.Node.ID == "" {
		return ev, errors.New("could not decode event: missing node id")
	}
	return ev, nil
}

// Publisher publishes events to SubjectGlobalRoom.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher returns a Publisher using js.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// Publish sends ev and returns the stream sequence it was stored at.
func (p *Publisher) Publish(ctx context.Context, ev model.Event) (uint64, error) {
	if p == nil || p.js == nil {
		return 0, ErrNoJetStream
	}

	data, err := Encode(ev)
	if err != nil {
		return 0, err
	}

	pubAck, err := p.js.Publish(ctx,
		SubjectGlobalRoom,
		data,
		jetstream.WithMsgID(uuid.NewString()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to publish to stream [%s]: %w", SubjectGlobalRoom, err)
	}
	slog.DebugContext(ctx, "published event",
		"mutation", ev.Mutation,
		"id", ev.Node.ID,
		"seq", pubAck.Sequence)

	return pubAck.Sequence, nil
}

// Subscribe consumes new events from stream and hands each one to handle in
// delivery order. It returns once the consumer is running; consumption stops
// when ctx is done.
func Subscribe(ctx context.Context, stream jetstream.Stream, handle func(model.Event)) error {
	consumer, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create ordered consumer: %w", err)
	}

	consumeHandler := func(msg jetstream.Msg) {
		ev, err := Decode(msg.Data())
		if err != nil {
			slog.Warn("dropping undecodable event", "error", err)
			return
		}
		handle(ev)
	}

	optErrHandler := jetstream.ConsumeErrHandler(func(cc jetstream.ConsumeContext, err error) {
		slog.Error("consumer error", "error", err)
	})

	consumeCtx, err := consumer.Consume(consumeHandler, optErrHandler)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	go func() {
		<-ctx.Done()
		consumeCtx.Drain()
	}()

	return nil
}
