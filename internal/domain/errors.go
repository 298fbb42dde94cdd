package domain

import "errors"

// Cycle-level errors abort a poll; per-alert errors only affect one alert.
var (
	// ErrTransport means the alert source could not be reached or answered
	// with a non-success status.
	ErrTransport = errors.New("alert source transport error")

	// ErrShape means the alert source answered but the payload lacked an
	// expected field.
	ErrShape = errors.New("unexpected alert source payload")

	// ErrAlertNotFound means a single-alert lookup found nothing usable.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrMalformedID means an alert identifier has fewer dot-separated
	// segments than the URN format requires.
	ErrMalformedID = errors.New("malformed alert identifier")

	// ErrPersist wraps record store write failures.
	ErrPersist = errors.New("persist alert record")

	// ErrParentUnresolvable marks a follow-up whose root could be neither
	// found nor created. Such alerts are dismissed, not stored.
	ErrParentUnresolvable = errors.New("parent alert unresolvable")
)
