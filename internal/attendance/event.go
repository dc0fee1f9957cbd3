package attendance

import (
	"fmt"
	"strings"
	"time"
)

// Category partitions the person directory and its event log.
type Category string

const (
	CategoryEmployee Category = "employee"
	CategoryIntern   Category = "intern"
)

// ParseCategory accepts the singular or plural form used in routes.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "employee", "employees":
		return CategoryEmployee, nil
	case "intern", "interns":
		return CategoryIntern, nil
	}
	return "", fmt.Errorf("%w: category %q", ErrInvalidInput, s)
}

// Action is the kind of an attendance event.
type Action string

const (
	ActionEntry Action = "entry"
	ActionExit  Action = "exit"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionEntry:
		return ActionEntry, nil
	case ActionExit:
		return ActionExit, nil
	}
	return "", fmt.Errorf("%w: action %q", ErrInvalidInput, s)
}

// Event represents a recorded attendance event. Events are append-only.
type Event struct {
	ID         string    `json:"id"`
	PersonID   string    `json:"person_id"`
	Category   Category  `json:"category"`
	Action     Action    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`

	// PersonName is joined from the directory when listing; empty for
	// events whose person no longer exists.
	PersonName string `json:"person_name,omitempty"`
}

// Person is an entry in the person directory.
type Person struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// NamesOf builds the personID -> display name lookup used by the admin views
// from the joined names carried on events.
func NamesOf(events []Event) map[string]string {
	names := make(map[string]string, len(events))
	for _, e := range events {
		if e.PersonName == "" {
			continue
		}
		names[e.PersonID] = e.PersonName
	}
	return names
}
