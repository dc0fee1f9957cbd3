package attendance

import (
	"fmt"
	"strings"
	"time"
)

// ActionFilter narrows the admin views by action.
type ActionFilter string

const (
	FilterAll       ActionFilter = "all"
	FilterEntryOnly ActionFilter = "entry"
	FilterExitOnly  ActionFilter = "exit"
)

// ParseActionFilter accepts "", "all", "entry" and "exit".
func ParseActionFilter(s string) (ActionFilter, error) {
	switch ActionFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterEntryOnly:
		return FilterEntryOnly, nil
	case FilterExitOnly:
		return FilterExitOnly, nil
	}
	return "", fmt.Errorf("%w: action filter %q", ErrInvalidInput, s)
}

// DayKey is the local calendar date of an event, formatted YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("2006-01-02")
}

// DaySession pairs one person's entry and exit for one local day.
type DaySession struct {
	Key       string     `json:"key"`
	Name      string     `json:"name"`
	Day       string     `json:"day"`
	EntryTime *time.Time `json:"entry_time,omitempty"`
	ExitTime  *time.Time `json:"exit_time,omitempty"`
}

// Pair groups events into per-name, per-local-day sessions.
//
// Events are visited in the order given and every Entry (Exit) overwrites
// the session's EntryTime (ExitTime). With the usual most-recent-first input
// the earliest entry and exit of the day therefore win. This is the
// established behavior of the admin table and is kept as is.
//
// Events whose person is absent from names are dropped. Sessions are
// returned in the order their key was first seen.
func Pair(events []Event, names map[string]string, loc *time.Location) []DaySession {
	index := make(map[string]int)
	var out []DaySession
	for _, e := range events {
		if e.Action != ActionEntry && e.Action != ActionExit {
			continue
		}
		name, ok := names[e.PersonID]
		if !ok || name == "" {
			continue
		}
		day := DayKey(e.OccurredAt, loc)
		key := name + "-" + day

		i, seen := index[key]
		if !seen {
			i = len(out)
			index[key] = i
			out = append(out, DaySession{Key: key, Name: name, Day: day})
		}

		at := e.OccurredAt
		switch e.Action {
		case ActionEntry:
			out[i].EntryTime = &at
		case ActionExit:
			out[i].ExitTime = &at
		}
	}
	return out
}

// Filter keeps sessions whose name contains nameQuery (case-insensitive,
// empty matches all) and that carry the time the action filter asks for.
func Filter(sessions []DaySession, nameQuery string, action ActionFilter) []DaySession {
	q := strings.ToLower(nameQuery)
	out := make([]DaySession, 0, len(sessions))
	for _, s := range sessions {
		if q != "" && !strings.Contains(strings.ToLower(s.Name), q) {
			continue
		}
		if action == FilterEntryOnly && s.EntryTime == nil {
			continue
		}
		if action == FilterExitOnly && s.ExitTime == nil {
			continue
		}
		out = append(out, s)
	}
	return out
}
