package apperr

import "errors"

// ErrValidation is returned when inbound input fails validation or
// authenticity checks. It never reaches the state machine.
var ErrValidation = errors.New("validation failed")

// ErrStateConflict indicates an illegal delivery state transition.
// The delivery is left untouched.
var ErrStateConflict = errors.New("state conflict")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoCandidate is returned by the assignment engine when no rider
// satisfies the availability, load and radius constraints.
var ErrNoCandidate = errors.New("no candidate rider available")

// ErrDuplicateTask indicates a second outstanding scheduled task of the
// same kind for one delivery. Scheduling twice is a caller bug.
var ErrDuplicateTask = errors.New("duplicate scheduled task")
