package web

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
	"github.com/lamp-blog/lamp/internal/review"
)

// APIV1Error is the body of every error response.
type APIV1Error struct {
	Code    review.ErrorClass `json:"code"`
	Message string            `json:"message"`
}

// statusFor maps an error class to its HTTP status.
func statusFor(class review.ErrorClass) int {
	switch class {
	case review.ClassNotFound:
		return http.StatusNotFound
	case review.ClassInvalidState:
		return http.StatusConflict
	case review.ClassUnsupportedType:
		return http.StatusUnprocessableEntity
	case review.ClassInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// classForStatus is the reverse mapping for errors raised by echo itself.
func classForStatus(status int) review.ErrorClass {
	switch status {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return review.ClassNotFound
	case http.StatusConflict:
		return review.ClassInvalidState
	case http.StatusUnprocessableEntity:
		return review.ClassUnsupportedType
	case http.StatusBadRequest, http.StatusUnsupportedMediaType,
		http.StatusRequestEntityTooLarge:

		return review.ClassInvalidArgument
	default:
		return review.ClassInternal
	}
}

// errorHandler renders handler errors as APIV1Error.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		body    APIV1Error
		status  int
		httpErr *echo.HTTPError
		invalid validation.Errors
	)
	switch {
	case errors.As(err, &httpErr):
		status = httpErr.Code
		body.Code = classForStatus(status)
		body.Message = http.StatusText(status)
		if msg, ok := httpErr.Message.(string); ok {
			body.Message = msg
		}

	case errors.As(err, &invalid):
		status = http.StatusBadRequest
		body.Code = review.ClassInvalidArgument
		body.Message = invalid.Error()

	default:
		body.Code = review.Classify(err)
		status = statusFor(body.Code)
		body.Message = err.Error()
	}

	if status == http.StatusInternalServerError {
		log.ErrorS(c.Request().Context(), "Request failed", err,
			"path", c.Path())
		body.Message = "internal error"
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		log.WarnS(c.Request().Context(), "Write error response", err)
	}
}
