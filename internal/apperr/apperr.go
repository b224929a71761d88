// Package apperr holds the error kinds shared by the slot, appointment and
// waitlist services. Domain sentinels wrap one of the kinds so the transport
// layer can map them without knowing every package's errors.
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrValidation       = errors.New("validation failed")
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// New returns an error with message msg that matches kind under errors.Is.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Validation is shorthand for a validation error with the given message.
func Validation(msg string) error {
	return New(ErrValidation, msg)
}

// Kind reports which of the known kinds err belongs to, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrValidation, ErrCapacityExceeded, ErrConflict} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
