package attendance

import "errors"

var (
	// ErrSourceUnavailable is returned when the event store or directory cannot be reached.
	ErrSourceUnavailable = errors.New("attendance: source unavailable")
	// ErrEmptySelection is returned when an action is attempted with no person chosen.
	ErrEmptySelection = errors.New("attendance: no person selected")
	// ErrPersonNotFound is returned when the person is missing or inactive.
	ErrPersonNotFound = errors.New("attendance: person not found")
	// ErrInvalidInput covers malformed categories, actions, views and filters.
	ErrInvalidInput = errors.New("attendance: invalid input")
)
