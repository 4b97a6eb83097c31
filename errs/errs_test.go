package errs

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnauthenticatedMatchesSentinel(t *testing.T) {
	err := Unauthenticated("no session")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrUnauthenticated))
	assert.Equal(t, errors.CodeUnauthorized, errors.GetCode(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestNetworkKeepsCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := Network("GET /todos", cause)

	assert.True(t, stderrors.Is(err, ErrNetworkFailure))
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, errors.CodeNetwork, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
	assert.Nil(t, Network("noop", nil))
}

func TestNetworkTimeoutCode(t *testing.T) {
	err := Network("GET /todos", context.DeadlineExceeded)
	assert.Equal(t, errors.CodeTimeout, errors.GetCode(err))
	assert.True(t, stderrors.Is(err, ErrNetworkFailure))
}

func TestInvalidQueryParameter(t *testing.T) {
	err := InvalidQueryParameter("pageSize", fmt.Errorf("must be a valid value"))
	assert.True(t, stderrors.Is(err, ErrInvalidQueryParameter))
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	var pe errors.PlatformError
	require.True(t, stderrors.As(err, &pe))
	assert.Equal(t, "pageSize", pe.Context()["field"])
}

func TestFetchAborted(t *testing.T) {
	err := FetchAborted("todos", context.Canceled)
	assert.True(t, stderrors.Is(err, ErrFetchAborted))
	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.True(t, IsAbort(context.Canceled))
	assert.False(t, IsAbort(ErrHTTP))
}

func TestHTTPErrorClassAndCode(t *testing.T) {
	cases := []struct {
		status int
		class  string
		code   errors.ErrorCode
		retry  bool
	}{
		{401, "4xx", errors.CodeUnauthorized, false},
		{403, "4xx", errors.CodeForbidden, false},
		{404, "4xx", errors.CodeNotFound, false},
		{422, "4xx", errors.CodeInvalidInput, false},
		{429, "4xx", errors.CodeRateLimit, true},
		{503, "5xx", errors.CodeUnavailable, true},
		{201, "2xx", errors.CodeUnknown, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			var err error = &HTTPError{Method: "GET", Path: "/todos", Status: tc.status}
			assert.True(t, stderrors.Is(err, ErrHTTP))
			assert.Equal(t, tc.code, errors.GetCode(err))
			assert.Equal(t, tc.retry, errors.IsRetryable(err))

			var he *HTTPError
			require.True(t, stderrors.As(err, &he))
			assert.Equal(t, tc.class, he.Class())
		})
	}
}

func TestHTTPErrorMessage(t *testing.T) {
	e := &HTTPError{Method: "DELETE", Path: "/todos/3", Status: 403, Detail: "Forbidden action"}
	assert.Equal(t, "Forbidden action", e.Message())
	assert.Contains(t, e.Error(), "403 (4xx): Forbidden action")

	e.Detail = ""
	assert.Equal(t, "Forbidden", e.Message())
}
