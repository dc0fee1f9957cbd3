package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence the Service depends on.
type Store interface {
	ListActivePeople(ctx context.Context, category Category) ([]Person, error)
	GetPerson(ctx context.Context, category Category, id string) (*Person, error)
	InsertPerson(ctx context.Context, p Person) (Person, error)
	SetPersonActive(ctx context.Context, category Category, id string, active bool) error
	InsertEvent(ctx context.Context, evt Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	EventsSince(ctx context.Context, category Category, personID string, since time.Time, limit int) ([]Event, error)
	RecentEvents(ctx context.Context, category Category, limit int) ([]Event, error)
}

// Repository persists people and attendance events in Postgres.
type Repository struct {
	db *sql.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListActivePeople returns active people of a category ordered by name.
func (r *Repository) ListActivePeople(ctx context.Context, category Category) ([]Person, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, name, is_active, created_at
		FROM people
		WHERE category = $1 AND is_active = TRUE
		ORDER BY name
	`, string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var people []Person
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.Category, &p.Name, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// GetPerson returns a single person, or nil when none matches.
func (r *Repository) GetPerson(ctx context.Context, category Category, id string) (*Person, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, category, name, is_active, created_at
		FROM people WHERE id = $1 AND category = $2
	`, id, string(category))
	var p Person
	if err := row.Scan(&p.ID, &p.Category, &p.Name, &p.Active, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// InsertPerson adds an active person to the directory.
func (r *Repository) InsertPerson(ctx context.Context, p Person) (Person, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Active = true
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO people (id, category, name, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING created_at
	`, p.ID, string(p.Category), p.Name)
	if err := row.Scan(&p.CreatedAt); err != nil {
		return Person{}, err
	}
	return p, nil
}

// SetPersonActive toggles a person's active flag.
func (r *Repository) SetPersonActive(ctx context.Context, category Category, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE people SET is_active = $3
		WHERE id = $1 AND category = $2
	`, id, string(category), active)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPersonNotFound
	}
	return nil
}

// InsertEvent appends a new event.
func (r *Repository) InsertEvent(ctx context.Context, evt Event) (Event, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_events (id, person_id, category, action, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, evt.ID, evt.PersonID, string(evt.Category), string(evt.Action), evt.OccurredAt)
	if err != nil {
		return Event{}, err
	}
	return evt, nil
}

// GetEvent returns a single event by id with the person's name joined.
func (r *Repository) GetEvent(ctx context.Context, id string) (Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT e.id, e.person_id, e.category, e.action, e.occurred_at, COALESCE(p.name, '')
		FROM attendance_events e
		LEFT JOIN people p ON p.id = e.person_id
		WHERE e.id = $1
	`, id)
	var evt Event
	if err := row.Scan(&evt.ID, &evt.PersonID, &evt.Category, &evt.Action, &evt.OccurredAt, &evt.PersonName); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// EventsSince returns one person's events at or after since, newest first.
func (r *Repository) EventsSince(ctx context.Context, category Category, personID string, since time.Time, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, person_id, category, action, occurred_at
		FROM attendance_events
		WHERE category = $1 AND person_id = $2 AND occurred_at >= $3
		ORDER BY occurred_at DESC
		LIMIT $4
	`, string(category), personID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.PersonID, &evt.Category, &evt.Action, &evt.OccurredAt); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

// RecentEvents returns the most recent events of a category with person
// names joined, newest first. Events whose person is gone carry an empty name.
func (r *Repository) RecentEvents(ctx context.Context, category Category, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.person_id, e.category, e.action, e.occurred_at, COALESCE(p.name, '')
		FROM attendance_events e
		LEFT JOIN people p ON p.id = e.person_id
		WHERE e.category = $1
		ORDER BY e.occurred_at DESC
		LIMIT $2
	`, string(category), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.PersonID, &evt.Category, &evt.Action, &evt.OccurredAt, &evt.PersonName); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}
