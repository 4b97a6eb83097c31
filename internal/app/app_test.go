package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/auth"
	"github.com/unkn0wn-root/querycache/config"
	"github.com/unkn0wn-root/querycache/querykey"
	"github.com/unkn0wn-root/querycache/session"
	"github.com/unkn0wn-root/querycache/todos"
)

type fakeAPI struct {
	srv   *httptest.Server
	lists atomic.Int64
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/local", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jwt":"opaque","user":{"id":3,"username":"grace","email":"g@example.com"}}`))
	})
	mux.HandleFunc("GET /api/todos", func(w http.ResponseWriter, r *http.Request) {
		f.lists.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":1,"attributes":{"title":"a","description":"b"}}],` +
			`"meta":{"pagination":{"page":1,"pageSize":10,"pageCount":1,"total":1}}}`))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.Log.Level = "debug"
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	var buf bytes.Buffer
	a, err := New(context.Background(), cfg, &buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestNewWiresEveryComponent(t *testing.T) {
	a := newApp(t, testConfig("http://localhost:1337/api"))
	assert.NotNil(t, a.Sessions)
	assert.NotNil(t, a.Client)
	assert.NotNil(t, a.Versions)
	assert.NotNil(t, a.Mutations)
	assert.NotNil(t, a.Todos)
	assert.NotNil(t, a.Auth)
	assert.True(t, a.Pages.Enabled())
	assert.True(t, a.Owned.Enabled())
}

func TestDisabledCache(t *testing.T) {
	cfg := testConfig("http://localhost:1337/api")
	cfg.Cache.Disabled = true
	a := newApp(t, cfg)
	assert.False(t, a.Pages.Enabled())
}

func TestLoginThenCachedList(t *testing.T) {
	api := newFakeAPI(t)
	a := newApp(t, testConfig(api.srv.URL+"/api"))
	ctx := context.Background()

	_, err := a.Todos.ListPage(ctx, 1, 10, querykey.Descending)
	require.Error(t, err, "no session yet")
	assert.Equal(t, int64(0), api.lists.Load())

	u, err := a.Auth.Login(ctx, auth.Credentials{Identifier: "grace", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), u.ID)

	for i := 0; i < 3; i++ {
		p, err := a.Todos.ListPage(ctx, 1, 10, querykey.Descending)
		require.NoError(t, err)
		require.Len(t, p.Items, 1)
		assert.Equal(t, "a", p.Items[0].Title)
	}
	assert.Equal(t, int64(1), api.lists.Load())
}

func TestLogoutInvalidatesCachedQueries(t *testing.T) {
	a := newApp(t, testConfig("http://localhost:1337/api"))
	ctx := context.Background()
	key := querykey.New(todos.Resource, "1", "10", string(querykey.Descending))

	_, err := a.Pages.Read(ctx, key, func(context.Context) (todos.Page, error) {
		return todos.Page{Page: 1, PageSize: 10}, nil
	})
	require.NoError(t, err)
	st, ok := a.Pages.Status(key)
	require.True(t, ok)
	require.Equal(t, querycache.StatusFresh, st)

	require.NoError(t, a.Auth.Logout(ctx))

	st, ok = a.Pages.Status(key)
	require.True(t, ok)
	assert.Equal(t, querycache.StatusStale, st)
}

func TestSessionSurvivesRestartWithSQLite(t *testing.T) {
	cfg := testConfig("http://localhost:1337/api")
	cfg.Session.Path = filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	a, err := New(ctx, cfg, &bytes.Buffer{})
	require.NoError(t, err)
	require.NoError(t, a.Sessions.Save(ctx, session.Session{Token: "opaque", UserID: 9, Username: "lin"}))
	require.NoError(t, a.Close(ctx))

	b := newApp(t, cfg)
	s, ok := b.Sessions.Session(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(9), s.UserID)
}

func TestProviders(t *testing.T) {
	for _, name := range []string{"ristretto", "bigcache"} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig("http://localhost:1337/api")
			cfg.Cache.Provider = name
			a := newApp(t, cfg)
			key := querykey.New(todos.Resource, "owner", "1")
			calls := 0
			fetch := func(context.Context) (todos.Owned, error) {
				calls++
				return todos.Owned{UserID: 1}, nil
			}
			for i := 0; i < 2; i++ {
				_, err := a.Owned.Read(context.Background(), key, fetch)
				require.NoError(t, err)
			}
			assert.Equal(t, 1, calls)
		})
	}
}

func TestLoggerBackends(t *testing.T) {
	for _, backend := range []string{"zap", "logrus", "slog"} {
		for _, format := range []string{"json", "console"} {
			t.Run(backend+"/"+format, func(t *testing.T) {
				var buf bytes.Buffer
				l, flush, err := newLogger(config.LogConfig{Backend: backend, Level: "info", Format: format}, &buf)
				require.NoError(t, err)
				l.Debug("hidden", nil)
				l.Info("shown", querycache.Fields{"k": "v"})
				require.NoError(t, flush())
				assert.Contains(t, buf.String(), "shown")
				assert.NotContains(t, buf.String(), "hidden")
			})
		}
	}

	_, _, err := newLogger(config.LogConfig{Backend: "glog"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestUnknownProvider(t *testing.T) {
	_, err := newProvider(context.Background(), config.CacheConfig{Provider: "memcached"}, false, nil)
	assert.Error(t, err)
}
