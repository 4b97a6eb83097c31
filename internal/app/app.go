// Package app builds the client's object graph from a config.Config: logger,
// session store, request client, version counters, query caches, mutation
// coordinator and the todos and auth services.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/apiclient"
	"github.com/unkn0wn-root/querycache/auth"
	"github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/config"
	asynchook "github.com/unkn0wn-root/querycache/hooks/async"
	sloghook "github.com/unkn0wn-root/querycache/hooks/slog"
	"github.com/unkn0wn-root/querycache/mutation"
	pr "github.com/unkn0wn-root/querycache/provider"
	"github.com/unkn0wn-root/querycache/provider/bigcache"
	prredis "github.com/unkn0wn-root/querycache/provider/redis"
	"github.com/unkn0wn-root/querycache/provider/ristretto"
	"github.com/unkn0wn-root/querycache/querykey"
	"github.com/unkn0wn-root/querycache/session"
	"github.com/unkn0wn-root/querycache/session/sqlitekv"
	"github.com/unkn0wn-root/querycache/todos"
	"github.com/unkn0wn-root/querycache/versions"
)

const maxSharedPayload = 4 << 20

type App struct {
	Config    *config.Config
	Log       querycache.Logger
	Sessions  *session.KVStore
	Client    *apiclient.Client
	Versions  versions.Store
	Pages     querycache.QueryCache[todos.Page]
	Owned     querycache.QueryCache[todos.Owned]
	Mutations *mutation.Coordinator
	Todos     *todos.Service
	Auth      *auth.Service

	closers []func(context.Context) error // run in reverse order
}

// New wires every component. Logs go to logOut (os.Stderr when nil). On error
// whatever was already built is closed.
func New(ctx context.Context, cfg *config.Config, logOut io.Writer) (_ *App, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logOut == nil {
		logOut = os.Stderr
	}
	// logger, hooks and their workers share one writer
	out := zapcore.Lock(zapcore.AddSync(logOut))

	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	log, syncLog, err := newLogger(cfg.Log, out)
	if err != nil {
		return nil, err
	}
	a.Log = log
	a.onClose(func(context.Context) error { return syncLog() })

	hooks := a.newHooks(cfg, out)

	kv, err := a.newSessionKV(cfg.Session)
	if err != nil {
		return nil, err
	}
	a.Sessions = session.NewKVStore(kv, session.Options{Key: cfg.Session.Key, Logger: log})

	a.Client, err = apiclient.New(apiclient.Options{
		BaseURL:   cfg.API.BaseURL,
		Sessions:  a.Sessions,
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	var rdb goredis.UniversalClient
	if cfg.Cache.Provider == "redis" || cfg.Versions.Store == "redis" {
		if rdb, err = a.dialRedis(ctx, cfg.Redis); err != nil {
			return nil, err
		}
	}

	switch cfg.Versions.Store {
	case "redis":
		a.Versions, err = versions.NewRedis(rdb, cfg.Cache.Namespace, false)
		if err != nil {
			return nil, err
		}
	default:
		a.Versions = versions.NewLocal()
	}
	a.onClose(a.Versions.Close)

	a.Pages, err = newEngine[todos.Page](ctx, a, "pages", rdb, hooks)
	if err != nil {
		return nil, err
	}
	a.onClose(a.Pages.Close)

	a.Owned, err = newEngine[todos.Owned](ctx, a, "owned", rdb, hooks)
	if err != nil {
		return nil, err
	}
	a.onClose(a.Owned.Close)

	a.Mutations, err = mutation.New(mutation.Options{
		Client:   a.Client,
		Versions: a.Versions,
		Hooks:    hooks,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	a.Todos, err = todos.New(todos.Options{
		Client:    a.Client,
		Mutations: a.Mutations,
		Sessions:  a.Sessions,
		Pages:     a.Pages,
		Owned:     a.Owned,
	})
	if err != nil {
		return nil, err
	}

	a.Auth = auth.New(a.Client, a.Sessions, log)
	a.Auth.OnLogout = a.dropCached
	return a, nil
}

// dropCached marks every cached todo query stale so the next user never sees
// the previous user's pages.
func (a *App) dropCached(ctx context.Context) {
	n := a.Pages.Invalidate(ctx, querykey.New(todos.Resource))
	n += a.Owned.Invalidate(ctx, querykey.New(todos.Resource))
	a.Log.Debug("cached queries invalidated", querycache.Fields{"count": n})
}

// Close releases everything New built, newest first.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(f func(context.Context) error) { a.closers = append(a.closers, f) }

func (a *App) newHooks(cfg *config.Config, w io.Writer) querycache.Hooks {
	hc := cfg.Hooks
	if !hc.Enabled {
		return querycache.NopHooks{}
	}
	opts := sloghook.Options{
		SelfHealEvery: hc.SelfHealEvery,
		DiscardEvery:  hc.DiscardEvery,
		EvictEvery:    hc.EvictEvery,
	}
	if !hc.RedactKeys {
		opts.Redact = func(k string) string { return k }
	}
	var h querycache.Hooks = sloghook.New(slog.New(slogHandler(cfg.Log, w)), opts)
	if hc.Async {
		ah := asynchook.New(h, 1, hc.QueueSize)
		a.onClose(func(context.Context) error {
			ah.Close()
			if n := ah.Dropped(); n > 0 {
				a.Log.Warn("cache events dropped", querycache.Fields{"count": n})
			}
			return nil
		})
		h = ah
	}
	return h
}

func (a *App) newSessionKV(sc config.SessionConfig) (session.KV, error) {
	if sc.Path == "" {
		return session.NewMemoryKV(), nil
	}
	kv, err := sqlitekv.Open(sc.Path)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	a.onClose(func(context.Context) error { return kv.Close() })
	return kv, nil
}

func (a *App) dialRedis(ctx context.Context, rc config.RedisConfig) (goredis.UniversalClient, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", rc.Addr, err)
	}
	a.onClose(func(context.Context) error { return rdb.Close() })
	return rdb, nil
}

func newEngine[V any](
	ctx context.Context,
	a *App,
	name string,
	rdb goredis.UniversalClient,
	hooks querycache.Hooks,
) (querycache.QueryCache[V], error) {
	cfg := a.Config
	cd, ok := codec.ByName[V](cfg.Cache.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", cfg.Cache.Codec)
	}
	if cfg.Cache.Provider == "redis" {
		// other processes write to the same keys
		cd = codec.Limit[V]{Inner: cd, MaxDecode: maxSharedPayload}
	}
	p, err := newProvider(ctx, cfg.Cache, cfg.Log.Level == "debug", rdb)
	if err != nil {
		return nil, fmt.Errorf("%s provider: %w", name, err)
	}
	qc, err := querycache.New[V](querycache.Options[V]{
		Namespace: cfg.Cache.Namespace + "-" + name,
		Provider:  p,
		Codec:     cd,
		Versions:  a.Versions,
		Logger:    a.Log,
		Hooks:     hooks,
		Capacity:  cfg.Cache.Capacity,
		TTL:       cfg.Cache.TTL,
		Disabled:  cfg.Cache.Disabled,
	})
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}
	if rp, ok := p.(*ristretto.Provider); ok && rp.Metrics() != nil {
		// registered before the engine's closer, so it runs after the engine drains
		a.onClose(func(context.Context) error {
			m := rp.Metrics()
			a.Log.Debug("value store stats", querycache.Fields{
				"cache":    name,
				"hits":     m.Hits(),
				"misses":   m.Misses(),
				"ratio":    m.Ratio(),
				"rejected": m.SetsRejected(),
			})
			return nil
		})
	}
	return qc, nil
}

func newProvider(ctx context.Context, cc config.CacheConfig, metrics bool, rdb goredis.UniversalClient) (pr.Provider, error) {
	switch cc.Provider {
	case "bigcache":
		return bigcache.New(ctx, bigcache.Config{
			LifeWindow:         cc.TTL,
			CleanWindow:        time.Minute,
			MaxEntriesInWindow: max(cc.Capacity, 1),
			HardMaxCacheSizeMB: int(cc.MaxCostMB),
		})
	case "redis":
		return prredis.New(prredis.Config{Client: rdb})
	case "ristretto", "":
		rcfg := ristretto.DefaultConfig()
		rcfg.Metrics = metrics
		if cc.MaxCostMB > 0 {
			rcfg.MaxCost = cc.MaxCostMB << 20
		}
		return ristretto.New(rcfg)
	}
	return nil, fmt.Errorf("unknown provider %q", cc.Provider)
}
