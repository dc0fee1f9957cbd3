package kiosk

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"checkin/internal/attendance"
)

var people = []attendance.Person{
	{ID: "sara", Name: "Sara Ali", Active: true},
	{ID: "omar", Name: "Omar Saleh", Active: true},
}

func readyPage(t *testing.T) *Page {
	t.Helper()
	p := NewPage(attendance.CategoryEmployee)
	if err := p.BeginLoad(); err != nil {
		t.Fatalf("BeginLoad: %v", err)
	}
	if err := p.Loaded(people, nil); err != nil {
		t.Fatalf("Loaded: %v", err)
	}
	return p
}

func TestLoadLifecycle(t *testing.T) {
	p := NewPage(attendance.CategoryIntern)
	if got := p.Snapshot().Phase; got != Idle {
		t.Fatalf("initial phase = %s", got)
	}
	if err := p.Loaded(people, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Loaded before BeginLoad: %v", err)
	}

	_ = p.BeginLoad()
	_ = p.Loaded(nil, fmt.Errorf("%w: dial", attendance.ErrSourceUnavailable))
	s := p.Snapshot()
	if s.Phase != Error || s.Message == "" {
		t.Fatalf("failed load: %+v", s)
	}

	// Recoverable: the user re-triggers the load.
	if err := p.BeginLoad(); err != nil {
		t.Fatalf("reload from error: %v", err)
	}
	_ = p.Loaded(people, nil)
	s = p.Snapshot()
	if s.Phase != Ready || len(s.People) != 2 || s.Message != "" {
		t.Fatalf("reloaded: %+v", s)
	}
}

func TestSelectResetsStatusToUnknown(t *testing.T) {
	p := readyPage(t)
	tok, _ := p.Select("sara")
	p.ApplyStatus(tok, attendance.State{Kind: attendance.Inside, Since: time.Now()}, nil)
	if p.Snapshot().Status.Kind != attendance.Inside {
		t.Fatal("status not applied")
	}
	if _, err := p.Select("omar"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := p.Snapshot().Status.Kind; got != attendance.Unknown {
		t.Fatalf("status after new selection = %s, want unknown", got)
	}
}

func TestStaleStatusIsDiscarded(t *testing.T) {
	p := readyPage(t)
	first, _ := p.Select("sara")
	second, _ := p.Select("omar")

	// Sara's lookup arrives after Omar was selected.
	if p.ApplyStatus(first, attendance.State{Kind: attendance.Inside, Since: time.Now()}, nil) {
		t.Fatal("stale result applied")
	}
	s := p.Snapshot()
	if s.Selected != "omar" || s.Status.Kind != attendance.Unknown {
		t.Fatalf("stale result changed state: %+v", s)
	}

	if !p.ApplyStatus(second, attendance.State{Kind: attendance.Outside}, nil) {
		t.Fatal("current result rejected")
	}
	if got := p.Snapshot().Status.Kind; got != attendance.Outside {
		t.Fatalf("status = %s, want outside", got)
	}
}

func TestFailedLookupStaysUnknown(t *testing.T) {
	p := readyPage(t)
	tok, _ := p.Select("sara")
	p.ApplyStatus(tok, attendance.State{Kind: attendance.Outside}, attendance.ErrSourceUnavailable)
	s := p.Snapshot()
	if s.Status.Kind != attendance.Unknown {
		t.Fatalf("failed lookup status = %s, want unknown", s.Status.Kind)
	}
	if s.Message != Message(attendance.ErrSourceUnavailable) {
		t.Fatalf("message = %q", s.Message)
	}
}

func TestSubmitWithoutSelection(t *testing.T) {
	p := readyPage(t)
	if _, err := p.BeginSubmit(attendance.ActionEntry); !errors.Is(err, attendance.ErrEmptySelection) {
		t.Fatalf("BeginSubmit = %v, want ErrEmptySelection", err)
	}
	s := p.Snapshot()
	if s.Phase != Ready || s.Message != "Please select a person first." {
		t.Fatalf("unexpected state %+v", s)
	}
}

func TestSubmitFailureLeavesStateUntouched(t *testing.T) {
	p := readyPage(t)
	tok, _ := p.Select("sara")
	since := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	p.ApplyStatus(tok, attendance.State{Kind: attendance.Inside, Since: since}, nil)

	id, err := p.BeginSubmit(attendance.ActionExit)
	if err != nil || id != "sara" {
		t.Fatalf("BeginSubmit = %q, %v", id, err)
	}
	if _, err := p.Select("omar"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Select while submitting = %v", err)
	}
	if _, err := p.BeginSubmit(attendance.ActionExit); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double submit = %v", err)
	}

	_, _ = p.SubmitDone(attendance.Confirmation{}, attendance.ErrSourceUnavailable)
	s := p.Snapshot()
	if s.Phase != Ready || s.Selected != "sara" || s.Status.Kind != attendance.Inside || !s.Status.Since.Equal(since) {
		t.Fatalf("failed submit changed state: %+v", s)
	}
	if s.Confirmation != nil || s.Message == "" {
		t.Fatalf("expected inline message and no confirmation: %+v", s)
	}
}

func TestSubmitSuccessShowsConfirmation(t *testing.T) {
	p := readyPage(t)
	tok, _ := p.Select("sara")
	if _, err := p.BeginSubmit(attendance.ActionEntry); err != nil {
		t.Fatalf("BeginSubmit: %v", err)
	}
	conf := attendance.ConfirmationFor(attendance.ActionEntry, 5*time.Second)
	confTok, err := p.SubmitDone(conf, nil)
	if err != nil {
		t.Fatalf("SubmitDone: %v", err)
	}
	s := p.Snapshot()
	if s.Selected != "" || s.Confirmation == nil || s.Confirmation.Path != "/success/entry" {
		t.Fatalf("unexpected state %+v", s)
	}
	// A lookup started before the submission is stale now.
	if p.ApplyStatus(tok, attendance.State{Kind: attendance.Outside}, nil) {
		t.Fatal("lookup for cleared selection applied")
	}
	if !p.Dismiss(confTok) || p.Snapshot().Confirmation != nil {
		t.Fatal("confirmation not dismissed")
	}
	if p.Dismiss(confTok) {
		t.Fatal("second dismiss reported success")
	}
}

func TestOldConfirmationTimerKeepsNewerConfirmation(t *testing.T) {
	p := readyPage(t)
	submit := func(id string, action attendance.Action) Token {
		t.Helper()
		if _, err := p.Select(id); err != nil {
			t.Fatalf("Select(%s): %v", id, err)
		}
		if _, err := p.BeginSubmit(action); err != nil {
			t.Fatalf("BeginSubmit: %v", err)
		}
		tok, err := p.SubmitDone(attendance.ConfirmationFor(action, time.Second), nil)
		if err != nil {
			t.Fatalf("SubmitDone: %v", err)
		}
		return tok
	}

	entryTok := submit("sara", attendance.ActionEntry)
	exitTok := submit("omar", attendance.ActionExit)
	if entryTok == exitTok {
		t.Fatalf("confirmations share token %d", entryTok)
	}

	if p.Dismiss(entryTok) {
		t.Fatal("entry timer dismissed the exit confirmation")
	}
	s := p.Snapshot()
	if s.Confirmation == nil || s.Confirmation.Action != attendance.ActionExit {
		t.Fatalf("exit confirmation lost: %+v", s.Confirmation)
	}
	if !p.Dismiss(exitTok) {
		t.Fatal("exit timer did not dismiss its own confirmation")
	}
}

func TestReloadDropsUnlistedSelection(t *testing.T) {
	p := readyPage(t)
	_, _ = p.Select("omar")
	_ = p.BeginLoad()
	_ = p.Loaded(people[:1], nil)
	if s := p.Snapshot(); s.Selected != "" {
		t.Fatalf("selection %q survived reload", s.Selected)
	}
}

func TestEmptySelectClears(t *testing.T) {
	p := readyPage(t)
	tok, _ := p.Select("sara")
	next, _ := p.Select(" ")
	if next == tok || p.Snapshot().Selected != "" {
		t.Fatal("empty select did not clear")
	}
}

func TestMessage(t *testing.T) {
	if Message(nil) != "" {
		t.Fatal("nil error should have no message")
	}
	wrapped := fmt.Errorf("status: %w", attendance.ErrSourceUnavailable)
	if Message(wrapped) != Message(attendance.ErrSourceUnavailable) {
		t.Fatal("wrapped errors should map like their cause")
	}
	if Message(errors.New("boom")) == "" {
		t.Fatal("unexpected errors still need a message")
	}
}
