package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"checkin/internal/metrics"
	"checkin/internal/queue"
)

// MessageRecorded is the queue message type published after an event is stored.
const MessageRecorded = "attendance.recorded"

const (
	defaultPageSize          = 200
	defaultConfirmationDelay = 5 * time.Second
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	// PageSize caps how many events a query reads.
	PageSize int
	// ConfirmationDelay is how long the confirmation view waits before returning.
	ConfirmationDelay time.Duration
	// DedupWindow, when positive, makes Record return the person's latest
	// event instead of inserting when it has the same action and is younger
	// than the window.
	DedupWindow time.Duration
	// Location is the default time zone for day boundaries.
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
	// Queue receives a MessageRecorded per stored event; nil disables it.
	Queue queue.Queue
}

// Confirmation describes where a kiosk goes after a successful action.
type Confirmation struct {
	Action      Action        `json:"action"`
	Path        string        `json:"path"`
	ReturnTo    string        `json:"return_to"`
	ReturnAfter time.Duration `json:"-"`
}

// ConfirmationFor returns the confirmation view for an action.
func ConfirmationFor(action Action, delay time.Duration) Confirmation {
	if delay <= 0 {
		delay = defaultConfirmationDelay
	}
	return Confirmation{
		Action:      action,
		Path:        "/success/" + string(action),
		ReturnTo:    "/",
		ReturnAfter: delay,
	}
}

// Query selects and filters the admin log.
type Query struct {
	View     View
	Name     string
	Action   ActionFilter
	Location *time.Location
}

// Log is the admin log in the requested view; only one of Sessions and Rows is set.
type Log struct {
	View     View         `json:"view"`
	Sessions []DaySession `json:"sessions,omitempty"`
	Rows     []Row        `json:"rows,omitempty"`
}

// Service coordinates attendance recording, status lookups and admin views.
type Service struct {
	store  Store
	opts   Options
	tracer trace.Tracer
}

// NewService creates a service backed by a store.
func NewService(store Store, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.ConfirmationDelay <= 0 {
		opts.ConfirmationDelay = defaultConfirmationDelay
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{store: store, opts: opts, tracer: otel.Tracer("checkin/attendance")}
}

// Location returns the default time zone.
func (s *Service) Location() *time.Location { return s.opts.Location }

// ConfirmationDelay returns the configured return delay.
func (s *Service) ConfirmationDelay() time.Duration { return s.opts.ConfirmationDelay }

// ListPeople returns the active people of a category ordered by name.
func (s *Service) ListPeople(ctx context.Context, category Category) ([]Person, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.ListPeople", trace.WithAttributes(attribute.String("category", string(category))))
	defer span.End()

	people, err := s.store.ListActivePeople(ctx, category)
	if err != nil {
		span.RecordError(err)
		metrics.SourceFailures.WithLabelValues("list_people").Inc()
		return nil, fmt.Errorf("%w: list people: %v", ErrSourceUnavailable, err)
	}
	return people, nil
}

// Record stores an entry or exit for a person and returns the stored event
// together with the confirmation view to show.
func (s *Service) Record(ctx context.Context, category Category, personID string, action Action) (Event, Confirmation, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.Record", trace.WithAttributes(
		attribute.String("category", string(category)),
		attribute.String("action", string(action)),
	))
	defer span.End()

	personID = strings.TrimSpace(personID)
	if personID == "" {
		return Event{}, Confirmation{}, ErrEmptySelection
	}
	if action != ActionEntry && action != ActionExit {
		return Event{}, Confirmation{}, fmt.Errorf("%w: action %q", ErrInvalidInput, action)
	}

	person, err := s.store.GetPerson(ctx, category, personID)
	if err != nil {
		span.RecordError(err)
		metrics.SourceFailures.WithLabelValues("get_person").Inc()
		return Event{}, Confirmation{}, fmt.Errorf("%w: get person: %v", ErrSourceUnavailable, err)
	}
	if person == nil || !person.Active {
		return Event{}, Confirmation{}, ErrPersonNotFound
	}

	now := s.opts.Now()
	if s.opts.DedupWindow > 0 {
		recent, err := s.store.EventsSince(ctx, category, personID, now.Add(-s.opts.DedupWindow), 1)
		if err != nil {
			span.RecordError(err)
			metrics.SourceFailures.WithLabelValues("dedup").Inc()
			return Event{}, Confirmation{}, fmt.Errorf("%w: recent events: %v", ErrSourceUnavailable, err)
		}
		if len(recent) > 0 && recent[0].Action == action {
			recent[0].PersonName = person.Name
			return recent[0], ConfirmationFor(action, s.opts.ConfirmationDelay), nil
		}
	}

	evt, err := s.store.InsertEvent(ctx, Event{
		PersonID:   personID,
		Category:   category,
		Action:     action,
		OccurredAt: now.UTC(),
	})
	if err != nil {
		span.RecordError(err)
		metrics.SourceFailures.WithLabelValues("insert_event").Inc()
		return Event{}, Confirmation{}, fmt.Errorf("%w: insert event: %v", ErrSourceUnavailable, err)
	}
	evt.PersonName = person.Name
	metrics.EventsRecorded.WithLabelValues(string(category), string(action)).Inc()

	if s.opts.Queue != nil {
		if err := s.opts.Queue.Publish(ctx, queue.Message{Type: MessageRecorded, Body: []byte(evt.ID)}); err != nil {
			s.opts.Logger.Warn("queue publish failed", "event_id", evt.ID, "error", err)
		}
	}

	s.opts.Logger.Info("attendance recorded",
		"event_id", evt.ID, "category", category, "person_id", personID, "action", action)
	return evt, ConfirmationFor(action, s.opts.ConfirmationDelay), nil
}

// Status resolves a person's current state from today's events in loc
// (the service default when nil). When the events cannot be read the state
// is Unknown and the error wraps ErrSourceUnavailable.
func (s *Service) Status(ctx context.Context, category Category, personID string, loc *time.Location) (State, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.Status", trace.WithAttributes(attribute.String("category", string(category))))
	defer span.End()

	personID = strings.TrimSpace(personID)
	if personID == "" {
		return State{Kind: Unknown}, ErrEmptySelection
	}
	if loc == nil {
		loc = s.opts.Location
	}
	now := s.opts.Now()
	events, err := s.store.EventsSince(ctx, category, personID, StartOfDay(now, loc), s.opts.PageSize)
	state := ResolveLookup(events, err, now)
	metrics.StatusLookups.WithLabelValues(state.Kind.String()).Inc()
	if err != nil {
		span.RecordError(err)
		metrics.SourceFailures.WithLabelValues("status").Inc()
		return state, fmt.Errorf("%w: events since: %v", ErrSourceUnavailable, err)
	}
	return state, nil
}

// AdminLog reads the most recent events of a category and presents them in
// the requested view.
func (s *Service) AdminLog(ctx context.Context, category Category, q Query) (Log, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.AdminLog", trace.WithAttributes(
		attribute.String("category", string(category)),
		attribute.String("view", string(q.View)),
	))
	defer span.End()

	if q.View == "" {
		q.View = ViewSessions
	}
	if q.Action == "" {
		q.Action = FilterAll
	}
	loc := q.Location
	if loc == nil {
		loc = s.opts.Location
	}

	events, err := s.store.RecentEvents(ctx, category, s.opts.PageSize)
	if err != nil {
		span.RecordError(err)
		metrics.SourceFailures.WithLabelValues("recent_events").Inc()
		return Log{}, fmt.Errorf("%w: recent events: %v", ErrSourceUnavailable, err)
	}
	names := NamesOf(events)

	switch q.View {
	case ViewRows:
		return Log{View: ViewRows, Rows: Rows(events, names, q.Name, q.Action)}, nil
	case ViewSessions:
		return Log{View: ViewSessions, Sessions: Filter(Pair(events, names, loc), q.Name, q.Action)}, nil
	}
	return Log{}, fmt.Errorf("%w: view %q", ErrInvalidInput, q.View)
}

// AddPerson adds an active person to a category's directory.
func (s *Service) AddPerson(ctx context.Context, category Category, name string) (Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Person{}, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	p, err := s.store.InsertPerson(ctx, Person{Category: category, Name: name})
	if err != nil {
		metrics.SourceFailures.WithLabelValues("insert_person").Inc()
		return Person{}, fmt.Errorf("%w: insert person: %v", ErrSourceUnavailable, err)
	}
	s.opts.Logger.Info("person added", "category", category, "person_id", p.ID)
	return p, nil
}

// DeactivatePerson hides a person from the directory; their events remain.
func (s *Service) DeactivatePerson(ctx context.Context, category Category, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptySelection
	}
	if err := s.store.SetPersonActive(ctx, category, id, false); err != nil {
		if errors.Is(err, ErrPersonNotFound) {
			return err
		}
		metrics.SourceFailures.WithLabelValues("deactivate_person").Inc()
		return fmt.Errorf("%w: deactivate person: %v", ErrSourceUnavailable, err)
	}
	return nil
}
