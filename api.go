package querycache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/querycache/codec"
	pr "github.com/unkn0wn-root/querycache/provider"
	"github.com/unkn0wn-root/querycache/querykey"
	"github.com/unkn0wn-root/querycache/versions"
)

// Fetcher produces the value for a key. It runs detached from the cancellation
// of the caller that started it, so an abandoned read still fills the cache.
type Fetcher[V any] func(ctx context.Context) (V, error)

// QueryCache is the read side of the data layer. V is the response type;
// values returned to attached callers are shared and must be treated as read-only.
type QueryCache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// Read returns the Fresh value for key or runs (or joins) the fetch for it.
	Read(ctx context.Context, key querykey.Key, fetch Fetcher[V]) (V, error)

	// Invalidate marks every entry whose key starts with prefix Stale and
	// returns how many were marked. Nothing is deleted or refetched.
	Invalidate(ctx context.Context, prefix querykey.Key) int

	// Status reports the state of key's entry; ok=false if there is none.
	Status(key querykey.Key) (s Status, ok bool)
	Len() int
}

// Status is the lifecycle state of one entry.
type Status uint8

const (
	StatusPending Status = iota + 1
	StatusFresh
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	}
	return "unknown"
}

// Options tune the engine. Only Namespace and Provider are required.
type Options[V any] struct {
	// Required
	Namespace string // logical namespace, e.g. "todos-page", "todos-owner"
	Provider  pr.Provider

	Codec    c.Codec[V]     // nil => JSON
	Versions versions.Store // nil => versions.NewLocal(); share one store with the mutation coordinator
	Logger   Logger         // nil => NopLogger
	Hooks    Hooks          // nil => NopHooks
	Capacity int            // max entries in the index; 0 => 1024
	TTL      time.Duration  // provider TTL for Fresh values; 0 => 10m
	Disabled bool           // every Read calls the fetcher directly
}

func New[V any](opts Options[V]) (QueryCache[V], error) {
	return newCache[V](opts)
}
