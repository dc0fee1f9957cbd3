// Package relay drains the work queue and fans recorded attendance events
// out to the event publisher.
package relay

import (
	"context"
	"log/slog"

	"checkin/internal/attendance"
	"checkin/internal/events"
	"checkin/internal/metrics"
	"checkin/internal/queue"
)

// EventGetter loads a stored event by id.
type EventGetter interface {
	GetEvent(ctx context.Context, id string) (attendance.Event, error)
}

// Relay forwards queue messages to a publisher.
type Relay struct {
	queue     queue.Queue
	events    EventGetter
	publisher events.Publisher
	prefix    string
	logger    *slog.Logger
}

// New creates a relay. A nil logger uses slog.Default.
func New(q queue.Queue, getter EventGetter, pub events.Publisher, subjectPrefix string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &Relay{queue: q, events: getter, publisher: pub, prefix: subjectPrefix, logger: logger}
}

// Run consumes until ctx is done or the queue closes.
func (r *Relay) Run(ctx context.Context) error {
	messages, err := r.queue.Consume(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("relay started")
	for msg := range messages {
		r.Handle(ctx, msg)
	}
	r.logger.Info("relay stopped")
	return nil
}

// Handle processes one message. Failures are logged and counted, never retried.
func (r *Relay) Handle(ctx context.Context, msg queue.Message) {
	if msg.Type != attendance.MessageRecorded {
		return
	}
	id := string(msg.Body)
	evt, err := r.events.GetEvent(ctx, id)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("lookup_failed").Inc()
		r.logger.Warn("fetch event failed", "event_id", id, "error", err)
		return
	}
	payload := events.Recorded{
		EventID:    evt.ID,
		PersonID:   evt.PersonID,
		PersonName: evt.PersonName,
		Category:   string(evt.Category),
		Action:     string(evt.Action),
		OccurredAt: evt.OccurredAt,
	}
	topic := events.Topic(r.prefix, payload.Category, payload.Action)
	if err := r.publisher.Publish(ctx, topic, payload); err != nil {
		metrics.EventsPublished.WithLabelValues("publish_failed").Inc()
		r.logger.Warn("publish event failed", "event_id", id, "topic", topic, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
	r.logger.Debug("event published", "event_id", id, "topic", topic)
}
