// Package errs defines the failure taxonomy shared by the query cache, the
// authenticated request client and the mutation coordinator.
//
// Every failure is a PlatformError from github.com/jmgilman/go/errors, so callers
// get an error code and a retry classification on top of errors.Is / errors.As:
//
//	_, err := engine.Read(ctx, key, fetch)
//	switch {
//	case errors.Is(err, errs.ErrUnauthenticated):
//		// send the user to the login screen
//	case errors.Is(err, errs.ErrHTTP):
//		var he *errs.HTTPError
//		errors.As(err, &he) // he.Status, he.Class(), he.Detail
//	}
package errs

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/jmgilman/go/errors"
)

var (
	// ErrUnauthenticated reports a missing or unusable session.
	ErrUnauthenticated = errors.New(errors.CodeUnauthorized, "unauthenticated")

	// ErrNetworkFailure reports a transport-level failure (dial, TLS, timeout, reset).
	ErrNetworkFailure = errors.New(errors.CodeNetwork, "network failure")

	// ErrHTTP is matched by every *HTTPError through errors.Is.
	ErrHTTP = errors.New(errors.CodeUnknown, "http error")

	// ErrInvalidQueryParameter reports pagination/sort input outside the accepted domain.
	ErrInvalidQueryParameter = errors.New(errors.CodeInvalidInput, "invalid query parameter")

	// ErrFetchAborted reports a fetch that stopped before producing a result
	// (cancelled, deadline exceeded, or panicked).
	ErrFetchAborted = errors.New(errors.CodeExecutionFailed, "fetch aborted")
)

// Unauthenticated wraps ErrUnauthenticated with a reason.
func Unauthenticated(reason string) error {
	return errors.Wrap(ErrUnauthenticated, errors.CodeUnauthorized, reason)
}

// InvalidQueryParameter wraps ErrInvalidQueryParameter, keeping the validation
// failure as context.
func InvalidQueryParameter(field string, cause error) error {
	return errors.WrapWithContext(
		join(ErrInvalidQueryParameter, cause),
		errors.CodeInvalidInput,
		"invalid "+field,
		map[string]interface{}{"field": field},
	)
}

// Network wraps a transport error. Timeouts are coded TIMEOUT, everything else
// NETWORK_ERROR; both are classified retryable.
func Network(op string, cause error) error {
	if cause == nil {
		return nil
	}
	code := errors.CodeNetwork
	var ne net.Error
	if stderrors.Is(cause, context.DeadlineExceeded) || (stderrors.As(cause, &ne) && ne.Timeout()) {
		code = errors.CodeTimeout
	}
	return errors.Wrap(join(ErrNetworkFailure, cause), code, op)
}

// FetchAborted wraps ErrFetchAborted around the reason a fetch stopped.
func FetchAborted(key string, cause error) error {
	return errors.WrapWithContext(
		join(ErrFetchAborted, cause),
		errors.CodeExecutionFailed,
		"fetch aborted",
		map[string]interface{}{"key": key},
	)
}

// IsAbort reports whether err is a cancellation or deadline from a context.
func IsAbort(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}

func join(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &chain{kind: kind, cause: cause}
}

// chain keeps both the taxonomy sentinel and the underlying cause reachable
// from errors.Is / errors.As while printing only the cause.
type chain struct {
	kind  error
	cause error
}

func (c *chain) Error() string   { return c.cause.Error() }
func (c *chain) Unwrap() []error { return []error{c.kind, c.cause} }
