package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/querycache/errs"
)

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/local", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jwt":"opaque","user":{"id":3,"username":"grace"}}`))
	})
	mux.HandleFunc("GET /api/todos", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":11,"attributes":{"title":"water plants","description":"all of them"}}],` +
			`"meta":{"pagination":{"page":1,"pageSize":10,"pageCount":1,"total":1}}}`))
	})
	mux.HandleFunc("DELETE /api/todos/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"status":404,"name":"NotFoundError","message":"Not Found"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func setup(t *testing.T) {
	t.Helper()
	srv := fakeServer(t)
	t.Setenv("QC_CONFIG", "")
	t.Setenv("QC_API_BASE_URL", srv.URL+"/api")
	t.Setenv("QC_SESSION_PATH", filepath.Join(t.TempDir(), "session.db"))
	t.Setenv("QC_LOG_LEVEL", "error")
}

func TestLoginListLogout(t *testing.T) {
	setup(t)

	_, err := execute(t, "list")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnauthenticated))
	assert.Equal(t, "not logged in: run `todos login`", explain(err))

	out, err := execute(t, "login", "-u", "grace", "-p", "hunter22")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as grace")

	out, err = execute(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "grace (id 3)")

	out, err = execute(t, "list", "--sort", "asc")
	require.NoError(t, err)
	assert.Contains(t, out, "water plants")
	assert.Contains(t, out, "page 1 of 1, 1 total")

	_, err = execute(t, "logout")
	require.NoError(t, err)
	out, err = execute(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")
}

func TestDeleteReportsServerError(t *testing.T) {
	setup(t)
	_, err := execute(t, "login", "-u", "grace", "-p", "hunter22")
	require.NoError(t, err)

	_, err = execute(t, "delete", "42")
	require.Error(t, err)
	assert.Equal(t, "server returned 404: Not Found", explain(err))
}

func TestArgumentErrors(t *testing.T) {
	setup(t)
	_, err := execute(t, "delete", "abc")
	assert.EqualError(t, err, `invalid id "abc"`)

	_, err = execute(t, "list", "--sort", "sideways")
	assert.True(t, errors.Is(err, errs.ErrInvalidQueryParameter))
}
