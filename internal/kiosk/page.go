// Package kiosk holds the per-page state of a check-in kiosk. State changes
// only when an external call completes; callers perform the I/O and report
// the outcome back to the Page.
package kiosk

import (
	"errors"
	"strings"
	"sync"

	"checkin/internal/attendance"
)

// Phase is the page's position in its lifecycle.
type Phase int

const (
	Idle Phase = iota
	Loading
	Ready
	Submitting
	Error
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Submitting:
		return "submitting"
	case Error:
		return "error"
	}
	return "invalid"
}

// ErrInvalidTransition is returned when an operation does not apply to the current phase.
var ErrInvalidTransition = errors.New("kiosk: invalid transition")

// Token identifies one selection. A status result carrying an older token
// belongs to a superseded selection and is discarded.
type Token uint64

// Snapshot is a copy of the page state for rendering.
type Snapshot struct {
	Phase        Phase
	Category     attendance.Category
	People       []attendance.Person
	Selected     string
	Status       attendance.State
	Message      string
	Confirmation *attendance.Confirmation
}

// Page is the state machine behind one kiosk page. It is safe for
// concurrent use so status lookups may complete on other goroutines.
type Page struct {
	mu           sync.Mutex
	category     attendance.Category
	phase        Phase
	people       []attendance.Person
	selected     string
	token        Token
	status       attendance.State
	message      string
	confirmation *attendance.Confirmation
	confirmTok   Token
}

// NewPage returns an idle page for a category.
func NewPage(category attendance.Category) *Page {
	return &Page{category: category}
}

// BeginLoad starts loading the person list.
func (p *Page) BeginLoad() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.phase {
	case Idle, Ready, Error:
		p.phase = Loading
		return nil
	}
	return ErrInvalidTransition
}

// Loaded completes a load. A selection that is no longer listed is cleared.
func (p *Page) Loaded(people []attendance.Person, err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != Loading {
		return ErrInvalidTransition
	}
	if err != nil {
		p.phase = Error
		p.message = Message(err)
		return nil
	}
	p.phase = Ready
	p.people = append([]attendance.Person(nil), people...)
	p.message = ""
	if p.selected != "" && !p.listed(p.selected) {
		p.clearSelection()
	}
	return nil
}

func (p *Page) listed(id string) bool {
	for _, person := range p.people {
		if person.ID == id {
			return true
		}
	}
	return false
}

// Select makes personID the current selection and returns its token. The
// status resets to Unknown until ApplyStatus delivers a result for this
// token. An empty ID clears the selection.
func (p *Page) Select(personID string) (Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase == Submitting {
		return p.token, ErrInvalidTransition
	}
	personID = strings.TrimSpace(personID)
	if personID == "" {
		p.clearSelection()
		return p.token, nil
	}
	p.token++
	p.selected = personID
	p.status = attendance.State{Kind: attendance.Unknown}
	p.message = ""
	p.confirmation = nil
	return p.token, nil
}

func (p *Page) clearSelection() {
	p.token++
	p.selected = ""
	p.status = attendance.State{Kind: attendance.Unknown}
}

// ApplyStatus delivers a status lookup result. It reports false and changes
// nothing when token no longer matches the current selection. A failed
// lookup leaves the status Unknown and sets the inline message.
func (p *Page) ApplyStatus(token Token, state attendance.State, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if token != p.token || p.selected == "" {
		return false
	}
	if err != nil {
		p.status = attendance.State{Kind: attendance.Unknown}
		p.message = Message(err)
		return true
	}
	p.status = state
	p.message = ""
	return true
}

// BeginSubmit starts recording action for the current selection and returns
// the person to submit for.
func (p *Page) BeginSubmit(action attendance.Action) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.selected == "" {
		p.message = Message(attendance.ErrEmptySelection)
		return "", attendance.ErrEmptySelection
	}
	if p.phase != Ready {
		return "", ErrInvalidTransition
	}
	if action != attendance.ActionEntry && action != attendance.ActionExit {
		return "", attendance.ErrInvalidInput
	}
	p.phase = Submitting
	p.message = ""
	return p.selected, nil
}

// SubmitDone completes a submission. On failure the status and selection
// are left as they were. On success the selection clears and the
// confirmation is held until Dismiss is called with the returned token.
func (p *Page) SubmitDone(conf attendance.Confirmation, err error) (Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != Submitting {
		return 0, ErrInvalidTransition
	}
	p.phase = Ready
	if err != nil {
		p.message = Message(err)
		return 0, nil
	}
	p.clearSelection()
	p.confirmation = &conf
	p.confirmTok = p.token
	p.message = ""
	return p.confirmTok, nil
}

// Dismiss leaves the confirmation view identified by token and returns to
// the entry point. It reports false when that confirmation was already
// replaced or dismissed.
func (p *Page) Dismiss(token Token) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.confirmation == nil || token != p.confirmTok {
		return false
	}
	p.confirmation = nil
	return true
}

// Snapshot returns a copy of the current state.
func (p *Page) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{
		Phase:    p.phase,
		Category: p.category,
		People:   append([]attendance.Person(nil), p.people...),
		Selected: p.selected,
		Status:   p.status,
		Message:  p.message,
	}
	if p.confirmation != nil {
		c := *p.confirmation
		s.Confirmation = &c
	}
	return s
}

// Message turns an error into the inline text shown to the user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, attendance.ErrEmptySelection):
		return "Please select a person first."
	case errors.Is(err, attendance.ErrSourceUnavailable):
		return "Attendance records are unavailable. Please try again."
	case errors.Is(err, attendance.ErrPersonNotFound):
		return "That person is no longer listed."
	}
	return "Something went wrong. Please try again."
}
