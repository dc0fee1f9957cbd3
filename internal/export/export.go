// Package export writes the admin session view as JSONL and uploads it.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"checkin/internal/attendance"
)

// ErrNotConfigured is returned when no destination is set.
var ErrNotConfigured = errors.New("export: destination not configured")

// LogSource produces the admin log.
type LogSource interface {
	AdminLog(ctx context.Context, category attendance.Category, q attendance.Query) (attendance.Log, error)
}

// Destination stores an exported object under key.
type Destination interface {
	Write(ctx context.Context, key string, data []byte) error
}

type header struct {
	Type         string    `json:"type"`
	Category     string    `json:"category"`
	Timezone     string    `json:"timezone"`
	ExportedAt   time.Time `json:"exported_at"`
	SessionCount int       `json:"session_count"`
}

type record struct {
	Type string                `json:"type"`
	Data attendance.DaySession `json:"data"`
}

// WriteJSONL writes a header line followed by one line per session.
func WriteJSONL(w io.Writer, category attendance.Category, loc *time.Location, at time.Time, sessions []attendance.DaySession) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(header{
		Type:         "header",
		Category:     string(category),
		Timezone:     loc.String(),
		ExportedAt:   at.UTC(),
		SessionCount: len(sessions),
	}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range sessions {
		if err := enc.Encode(record{Type: "session", Data: s}); err != nil {
			return fmt.Errorf("write session %s: %w", s.Key, err)
		}
	}
	return nil
}

// Exporter builds session exports and hands them to a destination.
type Exporter struct {
	source LogSource
	dest   Destination
	prefix string
	now    func() time.Time
}

// New creates an exporter. A nil destination makes Export return ErrNotConfigured.
func New(source LogSource, dest Destination, prefix string) *Exporter {
	return &Exporter{source: source, dest: dest, prefix: prefix, now: time.Now}
}

// Export writes the current session view for a category and returns the object key.
func (e *Exporter) Export(ctx context.Context, category attendance.Category, loc *time.Location) (string, error) {
	if e == nil || e.dest == nil {
		return "", ErrNotConfigured
	}
	if loc == nil {
		loc = time.Local
	}
	log, err := e.source.AdminLog(ctx, category, attendance.Query{View: attendance.ViewSessions, Location: loc})
	if err != nil {
		return "", err
	}

	now := e.now()
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, category, loc, now, log.Sessions); err != nil {
		return "", err
	}
	key := path.Join(e.prefix, string(category), now.In(loc).Format("2006-01-02T150405")+".jsonl")
	if err := e.dest.Write(ctx, key, buf.Bytes()); err != nil {
		return "", err
	}
	return key, nil
}
