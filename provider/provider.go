// Package provider defines the byte store that holds Fresh query results.
//
// The query cache keeps entry state (Pending/Fresh/Stale) in its own index and
// only parks encoded values here, so a provider is free to evict under memory
// pressure: a missing or rejected value makes the next read refetch.
//
// Implementations must be byte-for-byte transparent (Get returns exactly what
// Set stored) and safe for concurrent use. Keys under "q:<ns>:" belong to the
// query cache.
package provider

import (
	"context"
	"time"
)

type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. cost is a hint for cost-bounded stores; ttl <= 0 means
	// no expiry. ok=false means the store refused the write.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes key. Missing keys are not an error.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
