// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package events

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Topic is the single in-process topic all lifecycle events flow over.
// Per-subscriber filtering happens downstream, not here.
const Topic = "hearth.events"

// Bus is an in-process Publisher backed by a Watermill go-channel
// pub/sub. Subscribers receive every event published after they attach.
type Bus struct {
	pubsub *gochannel.GoChannel
	log    zerolog.Logger
}

// NewBus creates the in-process event bus. bufferSize bounds how many
// undelivered events a slow subscriber may accumulate.
func NewBus(bufferSize int64, logger zerolog.Logger) *Bus {
	ps := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: bufferSize},
		newWatermillLogger(logger),
	)
	return &Bus{pubsub: ps, log: logger}
}

// Publish serialises and broadcasts the event. Failures are logged and
// swallowed so a broken subscriber can never stall ingestion.
func (b *Bus) Publish(ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Error().Err(err).Str("event", ev.Name).Msg("Failed to serialise event")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event", ev.Name)

	if err := b.pubsub.Publish(Topic, msg); err != nil {
		b.log.Error().Err(err).Str("event", ev.Name).Msg("Failed to publish event")
	}
}

// Subscribe attaches a consumer to the event stream. The returned
// channel closes when ctx is cancelled or the bus shuts down. Messages
// that fail to decode are acked and dropped.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	msgs, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable event")
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// watermillLogger adapts zerolog to Watermill's LoggerAdapter.
type watermillLogger struct {
	log zerolog.Logger
}

func newWatermillLogger(l zerolog.Logger) watermill.LoggerAdapter {
	return &watermillLogger{log: l}
}

func (w *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.event(w.log.Error().Err(err), msg, fields)
}

func (w *watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.event(w.log.Debug(), msg, fields) // watermill info is chatty; demote
}

func (w *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.event(w.log.Debug(), msg, fields)
}

func (w *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.event(w.log.Trace(), msg, fields)
}

func (w *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := w.log.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &watermillLogger{log: ctx.Logger()}
}

func (w *watermillLogger) event(e *zerolog.Event, msg string, fields watermill.LogFields) {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}
