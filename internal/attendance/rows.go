package attendance

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// View selects how the admin log is presented.
type View string

const (
	// ViewSessions pairs events into daily sessions.
	ViewSessions View = "sessions"
	// ViewRows lists one row per event.
	ViewRows View = "rows"
)

// ParseView accepts "", "sessions" and "rows"; empty selects sessions.
func ParseView(s string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case "", ViewSessions:
		return ViewSessions, nil
	case ViewRows:
		return ViewRows, nil
	}
	return "", fmt.Errorf("%w: view %q", ErrInvalidInput, s)
}

// Row is a single event in the ungrouped admin view, keyed by the event id.
type Row struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Action     Action    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Rows lists events one per row, newest first. The action filter is an exact
// match on the event's action; orphaned events are dropped.
func Rows(events []Event, names map[string]string, nameQuery string, action ActionFilter) []Row {
	q := strings.ToLower(nameQuery)
	out := make([]Row, 0, len(events))
	for _, e := range events {
		name, ok := names[e.PersonID]
		if !ok || name == "" {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(name), q) {
			continue
		}
		if action != FilterAll && action != "" && string(e.Action) != string(action) {
			continue
		}
		out = append(out, Row{ID: e.ID, Name: name, Action: e.Action, OccurredAt: e.OccurredAt})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out
}
