package directory

import "errors"

var (
	// ErrForbidden is an authorization denial. Surfaced verbatim, never retried.
	ErrForbidden = errors.New("directory: forbidden")
	// ErrNotFound marks an absent organization or member.
	ErrNotFound = errors.New("directory: not found")
	// ErrDuplicateMember marks an invite collision on (organization, email).
	ErrDuplicateMember = errors.New("directory: member already exists")
	// ErrUnavailable marks a store timeout or transient failure. Safe to retry.
	ErrUnavailable = errors.New("directory: store unavailable")
	// ErrInvalid marks malformed input.
	ErrInvalid = errors.New("directory: invalid input")
)
