package querycache

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	c "github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/errs"
	"github.com/unkn0wn-root/querycache/internal/util"
	"github.com/unkn0wn-root/querycache/internal/wire"
	pr "github.com/unkn0wn-root/querycache/provider"
	"github.com/unkn0wn-root/querycache/querykey"
	ver "github.com/unkn0wn-root/querycache/versions"
)

// A Fresh entry that fails to load this many times in one Read is refetched
// instead of retried.
const maxServeAttempts = 2

// call is one in-flight fetch. val and err are written before done is closed.
type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// entry fields other than status and call are immutable once the entry is in the index.
type entry[V any] struct {
	key       querykey.Key
	canon     string
	skey      string
	version   uint64 // resource version observed when the fetch began
	seq       uint64 // fetch identity, stamped into the stored frame
	cacheable bool   // false when the version snapshot failed

	status Status
	call   *call[V] // non-nil while Pending
}

type dropped struct {
	canon   string
	skey    string
	evicted bool
}

type cache[V any] struct {
	ns       string
	provider pr.Provider
	codec    c.Codec[V]
	versions ver.Store
	log      Logger
	hooks    Hooks
	ttl      time.Duration
	enabled  bool

	seq atomic.Uint64

	mu       sync.Mutex
	idx      *simplelru.LRU[string, *entry[V]]
	pending  map[string]*entry[V] // in-flight fetches; not subject to LRU eviction
	removing bool                 // idx.Remove in progress; onEvict then is not a capacity eviction
	dropped  []dropped            // provider keys to delete once mu is released

	inflight  sync.WaitGroup
	closeOnce sync.Once
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Provider == nil {
		return nil, ErrNoProvider
	}
	if opts.Namespace == "" {
		return nil, ErrNoNamespace
	}

	cc := &cache[V]{
		ns:       opts.Namespace,
		provider: opts.Provider,
		enabled:  !opts.Disabled,
		pending:  make(map[string]*entry[V]),
	}
	cc.codec = coalesce[c.Codec[V]](opts.Codec, c.JSON[V]{})
	cc.log = coalesce[Logger](opts.Logger, NopLogger{})
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	cc.ttl = coalesce[time.Duration](opts.TTL, defaultTTL)
	if opts.Versions != nil {
		cc.versions = opts.Versions
	} else {
		cc.versions = ver.NewLocal()
	}
	// random start so frames from another process sharing the provider never match
	cc.seq.Store(rand.Uint64())

	idx, err := simplelru.NewLRU[string, *entry[V]](coalesce(opts.Capacity, defaultCapacity), cc.onEvict)
	if err != nil {
		return nil, fmt.Errorf("querycache: %w", err)
	}
	cc.idx = idx
	return cc, nil
}

func (c *cache[V]) Enabled() bool { return c.enabled }

// Close waits for in-flight fetches (bounded by ctx) and closes the provider.
func (c *cache[V]) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		done := make(chan struct{})
		go func() {
			c.inflight.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if perr := c.provider.Close(ctx); perr != nil {
			err = errors.Join(err, perr)
		}
	})
	return err
}

func (c *cache[V]) Read(ctx context.Context, key querykey.Key, fetch Fetcher[V]) (V, error) {
	var zero V
	if len(key) == 0 {
		return zero, ErrEmptyKey
	}
	if fetch == nil {
		return zero, ErrNilFetcher
	}
	canon := key.String()
	if !c.enabled {
		return c.invoke(ctx, canon, fetch)
	}

	res := key.Resource()
	cur, verr := c.versions.Current(ctx, res)
	if verr != nil {
		c.hooks.VersionSnapshotError(res, verr)
		c.log.Warn("version snapshot failed; fetching without caching", Fields{"resource": res, "err": verr})
	}

	for attempt := 0; ; attempt++ {
		c.mu.Lock()
		if p, ok := c.pending[canon]; ok {
			cl := p.call
			c.mu.Unlock()
			return c.wait(ctx, canon, cl)
		}
		if e, ok := c.idx.Get(canon); ok {
			switch {
			// e.version > cur: the counter moved after our snapshot and e was
			// committed at the newer value
			case e.status == StatusFresh && verr == nil && e.version >= cur && attempt < maxServeAttempts:
				c.mu.Unlock()
				v, reason := c.load(ctx, e)
				if reason == "" {
					return v, nil
				}
				if ctx.Err() != nil {
					return zero, errs.FetchAborted(canon, ctx.Err())
				}
				c.selfHeal(e, reason)
				continue

			case e.status == StatusFresh:
				e.status = StatusStale
				c.log.Debug("entry outdated by version bump", Fields{"key": canon, "entry": e.version, "current": cur})
			}
		}
		cl := c.startLocked(ctx, key, canon, cur, verr == nil, fetch)
		ds := c.takeDroppedLocked()
		c.mu.Unlock()

		c.drop(ctx, ds)
		return c.wait(ctx, canon, cl)
	}
}

func (c *cache[V]) Invalidate(_ context.Context, prefix querykey.Key) int {
	if !c.enabled {
		return 0
	}
	n := 0
	c.mu.Lock()
	for canon, e := range c.pending {
		if e.key.HasPrefix(prefix) {
			e.status = StatusStale
			delete(c.pending, canon)
			n++
		}
	}
	for _, e := range c.idx.Values() {
		if e.status != StatusStale && e.key.HasPrefix(prefix) {
			e.status = StatusStale
			n++
		}
	}
	c.mu.Unlock()
	c.log.Debug("invalidated prefix", Fields{"prefix": prefix.String(), "count": n})
	return n
}

// Status reports Fresh entries whose resource counter has moved as Stale.
func (c *cache[V]) Status(key querykey.Key) (Status, bool) {
	canon := key.String()
	c.mu.Lock()
	if _, ok := c.pending[canon]; ok {
		c.mu.Unlock()
		return StatusPending, true
	}
	e, ok := c.idx.Peek(canon)
	if !ok {
		c.mu.Unlock()
		return 0, false
	}
	s, v := e.status, e.version
	c.mu.Unlock()

	if s == StatusFresh {
		if cur, err := c.versions.Current(context.Background(), key.Resource()); err != nil || cur > v {
			return StatusStale, true
		}
	}
	return s, true
}

func (c *cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx.Len()
}

func (c *cache[V]) wait(ctx context.Context, canon string, cl *call[V]) (V, error) {
	select {
	case <-cl.done:
		return cl.val, cl.err
	case <-ctx.Done():
		var zero V
		return zero, errs.FetchAborted(canon, ctx.Err())
	}
}

// startLocked replaces any entry for canon with a new Pending entry and runs
// the fetch. Caller holds mu and has checked that canon has no pending fetch.
func (c *cache[V]) startLocked(ctx context.Context, key querykey.Key, canon string, version uint64, cacheable bool, fetch Fetcher[V]) *call[V] {
	cl := &call[V]{done: make(chan struct{})}
	e := &entry[V]{
		key:       querykey.New(key...),
		canon:     canon,
		skey:      util.StorageKey(c.ns, canon),
		version:   version,
		seq:       c.seq.Add(1),
		cacheable: cacheable,
		status:    StatusPending,
		call:      cl,
	}
	c.pending[canon] = e
	c.idx.Add(canon, e)

	c.inflight.Add(1)
	go c.run(context.WithoutCancel(ctx), e, cl, fetch)
	return cl
}

func (c *cache[V]) run(ctx context.Context, e *entry[V], cl *call[V], fetch Fetcher[V]) {
	defer c.inflight.Done()

	v, err := c.invoke(ctx, e.canon, fetch)
	if err != nil {
		c.mu.Lock()
		if c.pending[e.canon] == e {
			delete(c.pending, e.canon)
		}
		if cur, ok := c.idx.Peek(e.canon); ok && cur == e {
			c.removing = true
			c.idx.Remove(e.canon)
			c.removing = false
		}
		e.call = nil
		ds := c.takeDroppedLocked()
		c.mu.Unlock()

		c.drop(ctx, ds)
		c.log.Debug("fetch failed; entry removed", Fields{"key": e.canon, "err": err})
		cl.err = err
		close(cl.done)
		return
	}

	c.commit(ctx, e, v)
	cl.val = v
	close(cl.done)
}

// invoke runs fetch, turning panics and context errors into FetchAborted.
// Already classified failures pass through unchanged.
func (c *cache[V]) invoke(ctx context.Context, canon string, fetch Fetcher[V]) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero V
			v, err = zero, errs.FetchAborted(canon, fmt.Errorf("fetcher panicked: %v", r))
		}
	}()
	v, err = fetch(ctx)
	if err != nil && errs.IsAbort(err) &&
		!errors.Is(err, errs.ErrFetchAborted) && !errors.Is(err, errs.ErrNetworkFailure) {
		err = errs.FetchAborted(canon, err)
	}
	return v, err
}

// commit stores v and marks e Fresh, unless e was superseded or invalidated
// or its resource counter moved while the fetch ran.
func (c *cache[V]) commit(ctx context.Context, e *entry[V], v V) {
	c.mu.Lock()
	reason := c.checkLocked(e)
	c.mu.Unlock()
	if reason != "" {
		c.discard(e, reason)
		return
	}
	if !e.cacheable {
		c.discard(e, "uncacheable")
		return
	}

	res := e.key.Resource()
	cur, err := c.versions.Current(ctx, res)
	if err != nil {
		c.hooks.VersionSnapshotError(res, err)
		c.discard(e, "uncacheable")
		return
	}
	if cur != e.version {
		c.discard(e, "version_moved")
		return
	}

	payload, err := c.codec.Encode(v)
	if err != nil {
		c.log.Warn("value encode failed", Fields{"key": e.canon, "err": err})
		c.discard(e, "encode_error")
		return
	}
	frame, err := wire.Encode(wire.Frame{Version: e.version, Seq: e.seq, Key: e.canon, Payload: payload})
	if err != nil {
		c.log.Warn("frame encode failed", Fields{"key": e.canon, "err": err})
		c.discard(e, "encode_error")
		return
	}
	ok, err := c.provider.Set(ctx, e.skey, frame, int64(len(frame)), c.ttl)
	if err != nil || !ok {
		c.hooks.ProviderSetRejected(e.skey, err)
		c.discard(e, "provider_rejected")
		return
	}

	c.mu.Lock()
	reason = c.checkLocked(e)
	if reason == "" {
		e.status = StatusFresh
		e.call = nil
		delete(c.pending, e.canon)
		// evicted while in flight
		if cur, ok := c.idx.Peek(e.canon); !ok || cur != e {
			c.idx.Add(e.canon, e)
		}
	}
	ds := c.takeDroppedLocked()
	c.mu.Unlock()

	c.drop(ctx, ds)
	if reason != "" {
		c.discard(e, reason)
	}
}

func (c *cache[V]) checkLocked(e *entry[V]) string {
	switch {
	case e.status != StatusPending:
		return "invalidated"
	case c.pending[e.canon] != e:
		return "superseded"
	}
	return ""
}

// discard leaves e Stale so the next read refetches.
func (c *cache[V]) discard(e *entry[V], reason string) {
	c.mu.Lock()
	if e.status == StatusPending {
		e.status = StatusStale
	}
	if c.pending[e.canon] == e {
		delete(c.pending, e.canon)
	}
	e.call = nil
	c.mu.Unlock()

	c.hooks.FetchDiscarded(e.canon, reason)
	c.log.Debug("fetched value not cached", Fields{"key": e.canon, "reason": reason})
}

func (c *cache[V]) load(ctx context.Context, e *entry[V]) (V, string) {
	var zero V
	raw, ok, err := c.provider.Get(ctx, e.skey)
	if err != nil {
		c.log.Warn("provider get failed", Fields{"key": e.canon, "err": err})
		return zero, "provider_error"
	}
	if !ok {
		return zero, "miss"
	}
	f, err := wire.Decode(raw)
	if err != nil {
		return zero, "corrupt"
	}
	if f.Key != e.canon {
		return zero, "key_mismatch"
	}
	if f.Version != e.version || f.Seq != e.seq {
		return zero, "stamp_mismatch"
	}
	v, err := c.codec.Decode(f.Payload)
	if err != nil {
		return zero, "value_decode"
	}
	return v, ""
}

// selfHeal marks an unreadable Fresh entry Stale. Unparseable bytes are also
// removed from the provider; a key mismatch belongs to another key and is left.
func (c *cache[V]) selfHeal(e *entry[V], reason string) {
	c.mu.Lock()
	if cur, ok := c.idx.Peek(e.canon); ok && cur == e && e.status == StatusFresh {
		e.status = StatusStale
	}
	c.mu.Unlock()

	if reason == "corrupt" || reason == "value_decode" {
		_ = c.provider.Del(context.Background(), e.skey)
	}
	c.hooks.SelfHeal(e.canon, reason)
	c.log.Debug("fresh entry unreadable; marked stale", Fields{"key": e.canon, "reason": reason})
}

// onEvict runs under mu, from idx.Add (capacity) or idx.Remove. An in-flight
// entry leaves the index only; it stays in pending and is re-added on commit.
func (c *cache[V]) onEvict(canon string, e *entry[V]) {
	if c.pending[canon] == e {
		return
	}
	c.dropped = append(c.dropped, dropped{canon: canon, skey: e.skey, evicted: !c.removing})
}

func (c *cache[V]) takeDroppedLocked() []dropped {
	ds := c.dropped
	c.dropped = nil
	return ds
}

func (c *cache[V]) drop(ctx context.Context, ds []dropped) {
	for _, d := range ds {
		if d.evicted {
			c.hooks.Evicted(d.canon)
		}
		if err := c.provider.Del(ctx, d.skey); err != nil {
			c.log.Warn("provider delete failed", Fields{"key": d.canon, "err": err})
		}
	}
}
