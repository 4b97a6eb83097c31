package errs

import (
	"fmt"
	"net/http"

	"github.com/jmgilman/go/errors"
)

// HTTPError is a response the server rejected. It is returned unmodified to
// the caller; nothing in this module retries on it.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Detail string // server-provided message, when the body carried one
	Body   []byte
}

var _ errors.PlatformError = (*HTTPError)(nil)

// Class is the status class: "2xx", "3xx", "4xx" or "5xx".
func (e *HTTPError) Class() string {
	return fmt.Sprintf("%dxx", e.Status/100)
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d (%s): %s", e.Method, e.Path, e.Status, e.Class(), e.Detail)
	}
	return fmt.Sprintf("%s %s: %d (%s)", e.Method, e.Path, e.Status, e.Class())
}

// Is makes every HTTPError match ErrHTTP.
func (e *HTTPError) Is(target error) bool { return target == ErrHTTP }

func (e *HTTPError) Unwrap() error { return nil }

// Code maps the status to an error code.
func (e *HTTPError) Code() errors.ErrorCode {
	switch e.Status {
	case http.StatusUnauthorized:
		return errors.CodeUnauthorized
	case http.StatusForbidden:
		return errors.CodeForbidden
	case http.StatusNotFound:
		return errors.CodeNotFound
	case http.StatusConflict:
		return errors.CodeConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errors.CodeInvalidInput
	case http.StatusTooManyRequests:
		return errors.CodeRateLimit
	}
	if e.Status >= 500 {
		return errors.CodeUnavailable
	}
	return errors.CodeUnknown
}

// Classification is retryable for 429 and 5xx, permanent otherwise.
func (e *HTTPError) Classification() errors.ErrorClassification {
	if e.Status == http.StatusTooManyRequests || e.Status >= 500 {
		return errors.ClassificationRetryable
	}
	return errors.ClassificationPermanent
}

// Message returns the server detail, or the status text when there is none.
func (e *HTTPError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(e.Status)
}

// Context exposes request coordinates for structured logging.
func (e *HTTPError) Context() map[string]interface{} {
	return map[string]interface{}{
		"method": e.Method,
		"path":   e.Path,
		"status": e.Status,
	}
}
