package review

import (
	"errors"

	"github.com/lamp-blog/lamp/internal/content"
)

var (
	// ErrJobNotFound is returned when no review job has the given id, or
	// no job exists for the given content.
	ErrJobNotFound = errors.New("review job not found")

	// ErrInvalidState is returned when a decision is requested for a job
	// that is already decided, or a not_reviewed job reaches dispatch.
	ErrInvalidState = errors.New("review job in invalid state")

	// ErrUnsupportedType is returned when no status marker handles a
	// content type.
	ErrUnsupportedType = errors.New("unsupported content type")

	// ErrContentNotFound is returned when the content to review does not
	// exist.
	ErrContentNotFound = content.ErrContentNotFound

	// ErrInvalidArgument is returned for malformed requests.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoReviewers is returned when the reviewer pool is empty.
	ErrNoReviewers = errors.New("no reviewers available")

	// ErrDispatcherStopped is returned by Publish after Stop.
	ErrDispatcherStopped = errors.New("dispatcher stopped")

	// ErrMarkerPanic wraps a panic raised inside a status marker.
	ErrMarkerPanic = errors.New("status marker panicked")
)

// ErrorClass is the stable classification of review errors used by the
// outer surfaces.
type ErrorClass string

const (
	ClassNotFound        ErrorClass = "not_found"
	ClassInvalidState    ErrorClass = "invalid_state"
	ClassUnsupportedType ErrorClass = "unsupported_type"
	ClassInvalidArgument ErrorClass = "invalid_argument"
	ClassInternal        ErrorClass = "internal"
)

// Classify maps an error to its class. A nil error classifies as internal.
func Classify(err error) ErrorClass {
	switch {
	case errors.Is(err, ErrJobNotFound),
		errors.Is(err, content.ErrContentNotFound):

		return ClassNotFound

	case errors.Is(err, ErrInvalidState),
		errors.Is(err, content.ErrInvalidTransition),
		errors.Is(err, content.ErrTitleExists):

		return ClassInvalidState

	case errors.Is(err, ErrUnsupportedType),
		errors.Is(err, content.ErrUnsupportedCollection):

		return ClassUnsupportedType

	case errors.Is(err, ErrInvalidArgument):
		return ClassInvalidArgument
	}

	return ClassInternal
}
