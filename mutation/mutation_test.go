package mutation

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/apiclient"
	"github.com/unkn0wn-root/querycache/errs"
	"github.com/unkn0wn-root/querycache/session"
	"github.com/unkn0wn-root/querycache/versions"
)

type seen struct {
	mu     sync.Mutex
	method string
	path   string
	body   string
	hits   atomic.Int32
}

func (s *seen) last() (method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method, s.path
}

func newServer(t *testing.T, status int) (*httptest.Server, *seen) {
	t.Helper()
	s := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		b, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.method, s.path, s.body = r.Method, r.URL.Path, string(b)
		s.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"data":{"id":1}}`)
	}))
	t.Cleanup(srv.Close)
	return srv, s
}

func newCoordinator(t *testing.T, srv *httptest.Server, store session.Store, vs versions.Store, opt func(*Options)) *Coordinator {
	t.Helper()
	cl, err := apiclient.New(apiclient.Options{BaseURL: srv.URL, Sessions: store})
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	opts := Options{Client: cl, Versions: vs}
	if opt != nil {
		opt(&opts)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

var loggedIn = session.Static{S: session.Session{Token: "t", UserID: 1}, OK: true}

func current(t *testing.T, vs versions.Store, r string) uint64 {
	t.Helper()
	v, err := vs.Current(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestSuccessfulMutationsBumpVersion(t *testing.T) {
	ctx := context.Background()
	srv, s := newServer(t, http.StatusOK)
	vs := versions.NewLocal()
	c := newCoordinator(t, srv, loggedIn, vs, nil)

	cases := []struct {
		run    func() error
		method string
		path   string
	}{
		{func() error {
			_, err := c.Create(ctx, "todos", map[string]any{"data": map[string]string{"title": "a"}})
			return err
		}, http.MethodPost, "/todos"},
		{func() error {
			_, err := c.Update(ctx, "todos", "5", map[string]any{"data": map[string]string{"title": "b"}})
			return err
		}, http.MethodPut, "/todos/5"},
		{func() error { _, err := c.Remove(ctx, "todos", "5"); return err }, http.MethodDelete, "/todos/5"},
	}
	for i, tc := range cases {
		if err := tc.run(); err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if m, p := s.last(); m != tc.method || p != tc.path {
			t.Fatalf("case %d: sent %s %s, want %s %s", i, m, p, tc.method, tc.path)
		}
		if got := current(t, vs, "todos"); got != uint64(i+1) {
			t.Fatalf("case %d: version %d, want %d", i, got, i+1)
		}
	}
	if s.hits.Load() != 3 {
		t.Fatalf("hits = %d, want exactly one request per mutation", s.hits.Load())
	}
	if current(t, vs, "users") != 0 {
		t.Fatalf("other resources must not be bumped")
	}
}

func TestFailedMutationKeepsPayloadAndVersion(t *testing.T) {
	ctx := context.Background()
	srv, _ := newServer(t, http.StatusBadRequest)
	vs := versions.NewLocal()
	c := newCoordinator(t, srv, loggedIn, vs, nil)

	payload := map[string]any{"data": map[string]string{"title": ""}}
	_, err := c.Create(ctx, "todos", payload)

	var me *Error
	if !errors.As(err, &me) {
		t.Fatalf("err=%T %v, want *Error", err, err)
	}
	if me.Op != OpCreate || me.Resource != "todos" || me.Committed {
		t.Fatalf("unexpected error fields: %+v", me)
	}
	if me.Payload.(map[string]any)["data"] == nil {
		t.Fatalf("payload not returned intact")
	}
	if !errors.Is(err, errs.ErrHTTP) {
		t.Fatalf("cause should be an HTTP error: %v", err)
	}
	if current(t, vs, "todos") != 0 {
		t.Fatalf("failed mutation bumped the version")
	}
}

func TestUndocumentedSuccessCodeIsFailure(t *testing.T) {
	ctx := context.Background()
	srv, _ := newServer(t, http.StatusCreated)
	vs := versions.NewLocal()
	c := newCoordinator(t, srv, loggedIn, vs, nil)

	_, err := c.Create(ctx, "todos", map[string]string{})
	var he *errs.HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusCreated || he.Class() != "2xx" {
		t.Fatalf("err=%v, want HTTPError 201", err)
	}
	if current(t, vs, "todos") != 0 {
		t.Fatalf("unexpected bump")
	}

	c = newCoordinator(t, srv, loggedIn, vs, func(o *Options) {
		o.SuccessCodes = map[string]int{"todos": http.StatusCreated}
	})
	if _, err := c.Create(ctx, "todos", map[string]string{}); err != nil {
		t.Fatalf("documented 201: %v", err)
	}
	if current(t, vs, "todos") != 1 {
		t.Fatalf("documented success should bump")
	}
}

func TestNoSessionNoRequestNoBump(t *testing.T) {
	ctx := context.Background()
	srv, s := newServer(t, http.StatusOK)
	vs := versions.NewLocal()
	c := newCoordinator(t, srv, session.Static{}, vs, nil)

	_, err := c.Remove(ctx, "todos", "1")
	if !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("err=%v want Unauthenticated", err)
	}
	if s.hits.Load() != 0 || current(t, vs, "todos") != 0 {
		t.Fatalf("hits=%d version=%d", s.hits.Load(), current(t, vs, "todos"))
	}
}

type failingBump struct {
	versions.Store
}

func (failingBump) Bump(context.Context, string) (uint64, error) { return 0, errors.New("redis down") }

type bumpHooks struct {
	querycache.NopHooks
	resource string
}

func (h *bumpHooks) VersionBumpError(r string, _ error) { h.resource = r }

func TestBumpFailureAfterCommitIsReported(t *testing.T) {
	ctx := context.Background()
	srv, _ := newServer(t, http.StatusOK)
	hooks := &bumpHooks{}
	c := newCoordinator(t, srv, loggedIn, failingBump{versions.NewLocal()}, func(o *Options) { o.Hooks = hooks })

	resp, err := c.Update(ctx, "todos", "3", map[string]string{})
	var me *Error
	if !errors.As(err, &me) || !me.Committed {
		t.Fatalf("err=%v, want committed *Error", err)
	}
	if resp == nil || resp.Status != http.StatusOK {
		t.Fatalf("server response should be returned with the error")
	}
	if hooks.resource != "todos" {
		t.Fatalf("VersionBumpError hook not called")
	}
}

func TestValidatesResourceAndID(t *testing.T) {
	ctx := context.Background()
	srv, s := newServer(t, http.StatusOK)
	c := newCoordinator(t, srv, loggedIn, versions.NewLocal(), nil)

	if _, err := c.Create(ctx, "", nil); !errors.Is(err, errs.ErrInvalidQueryParameter) {
		t.Fatalf("empty resource: %v", err)
	}
	if _, err := c.Create(ctx, "todos/1", nil); !errors.Is(err, errs.ErrInvalidQueryParameter) {
		t.Fatalf("nested resource: %v", err)
	}
	if _, err := c.Remove(ctx, "todos", ""); !errors.Is(err, errs.ErrInvalidQueryParameter) {
		t.Fatalf("empty id: %v", err)
	}
	if s.hits.Load() != 0 {
		t.Fatalf("invalid input reached the server")
	}
}
