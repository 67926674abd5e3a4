package content

import "errors"

var (
	// ErrContentNotFound is returned when the referenced content does not
	// exist.
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidTransition is returned for a status change the lifecycle
	// does not allow.
	ErrInvalidTransition = errors.New("invalid content status transition")

	// ErrTitleExists is returned when an author already has an article
	// with the same title.
	ErrTitleExists = errors.New("title already exists for author")

	// ErrUnsupportedCollection is returned when no content service serves
	// the requested collection type.
	ErrUnsupportedCollection = errors.New("unsupported content collection")
)
