package attendance

import (
	"encoding/json"
	"time"
)

// StateKind enumerates the attendance states a person can be in.
type StateKind int

const (
	// Unknown means the status has not been determined: the lookup is in
	// flight, nothing is selected, or the lookup failed. It is never
	// reported as Outside.
	Unknown StateKind = iota
	Outside
	Inside
)

func (k StateKind) String() string {
	switch k {
	case Outside:
		return "outside"
	case Inside:
		return "inside"
	default:
		return "unknown"
	}
}

// State is a person's derived attendance status. Since is set only for Inside.
type State struct {
	Kind  StateKind
	Since time.Time
}

// MarshalJSON renders {"state": "...", "since": ...}.
func (s State) MarshalJSON() ([]byte, error) {
	out := struct {
		State string     `json:"state"`
		Since *time.Time `json:"since,omitempty"`
	}{State: s.Kind.String()}
	if s.Kind == Inside {
		since := s.Since
		out.Since = &since
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var in struct {
		State string     `json:"state"`
		Since *time.Time `json:"since"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = State{}
	switch in.State {
	case "inside":
		s.Kind = Inside
		if in.Since != nil {
			s.Since = *in.Since
		}
	case "outside":
		s.Kind = Outside
	}
	return nil
}

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Resolve derives the current state from one person's events for the day
// containing asOf, ordered most recent first. Only the first event is
// inspected; earlier events of the day do not affect the status. The caller
// bounds events to asOf's day.
func Resolve(events []Event, asOf time.Time) State {
	if len(events) == 0 {
		return State{Kind: Outside}
	}
	latest := events[0]
	if latest.Action == ActionEntry {
		return State{Kind: Inside, Since: latest.OccurredAt}
	}
	return State{Kind: Outside}
}

// ResolveLookup is Resolve for a lookup that may have failed. A failed
// lookup yields Unknown, never a guessed status.
func ResolveLookup(events []Event, lookupErr error, asOf time.Time) State {
	if lookupErr != nil {
		return State{Kind: Unknown}
	}
	return Resolve(events, asOf)
}
