package auctionlog

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Publisher delivers auction events to a sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// LogPublisher writes events to the structured log. It is the default when
// no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Int64("refresh_token", event.RefreshToken).
		RawJSON("payload", event.Payload).
		Msg("auction event")
	return nil
}

func (LogPublisher) Close() error { return nil }

// RecordingPublisher keeps every event in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []Event
	Err    error // returned from Publish when set
}

func (p *RecordingPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingPublisher) Close() error { return nil }

// Events returns a copy of what was published.
func (p *RecordingPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Types returns the published event types in order.
func (p *RecordingPublisher) Types() []EventType {
	events := p.Events()
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// Emit publishes and logs, never failing the caller.
func Emit(ctx context.Context, pub Publisher, event Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, event); err != nil {
		// Don't fail the operation, just log the error
		log.Error().
			Err(err).
			Str("event_type", string(event.Type)).
			Str("event_id", event.ID.String()).
			Msg("failed to publish auction event")
	}
}
