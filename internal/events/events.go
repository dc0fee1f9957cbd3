// Package events publishes recorded attendance events to downstream subscribers.
package events

import (
	"context"
	"time"
)

// Recorded is the payload published for every stored attendance event.
type Recorded struct {
	EventID    string    `json:"event_id"`
	PersonID   string    `json:"person_id"`
	PersonName string    `json:"person_name,omitempty"`
	Category   string    `json:"category"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Topic returns the subject for a recorded event, e.g. "checkin.employee.entry".
func Topic(prefix, category, action string) string {
	if prefix == "" {
		prefix = "checkin"
	}
	return prefix + "." + category + "." + action
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// NoopPublisher is a Publisher that does nothing (used when NATS is not configured).
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, topic string, event any) error { return nil }

func (NoopPublisher) Close() error { return nil }
