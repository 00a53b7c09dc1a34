package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a unique-key collision. Callers treat it as a
	// harmless no-op, never as a failure.
	ErrConflict = errors.New("conflict")
	// ErrPrivateProfile is a status, not a failure: the upstream profile is
	// private and polling for the member should back off.
	ErrPrivateProfile      = errors.New("profile is private")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamDataInvalid = errors.New("upstream data invalid")
)
