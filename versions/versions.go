// Package versions holds the per-resource version counters that stamp cached
// query results. A mutation bumps its resource's counter; any Fresh entry stamped
// with an older value is then treated as Stale on the next read.
package versions

import "context"

// Store abstracts where counters live. Local is the default; Redis shares
// counters between processes that share a value store.
type Store interface {
	// Current returns the resource's counter; missing => 0.
	Current(ctx context.Context, resource string) (uint64, error)
	// Bump atomically increments and returns the new counter.
	Bump(ctx context.Context, resource string) (uint64, error)
	Close(context.Context) error
}
