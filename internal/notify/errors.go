package notify

import "errors"

var (
	// ErrInvalidKind is returned for a kind outside the closed set.
	ErrInvalidKind = errors.New("unrecognized notification kind")

	// ErrMissingSubject is returned when a kind that needs a subject
	// reference (like/comment need a post, comment also a comment) is
	// recorded without one.
	ErrMissingSubject = errors.New("missing subject reference for kind")
)
