// Package querycache is a keyed query cache for an authenticated REST client.
//
// A read names a query by an ordered tuple key (see package querykey) and
// supplies a fetcher. The engine returns the Fresh value when it has one, runs at
// most one fetch per key at a time (later callers attach to the in-flight call),
// and keeps the result Fresh until the key is invalidated.
//
// Components:
//   - Provider: byte store holding Fresh values (ristretto by default, BigCache, Redis).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - versions.Store: one counter per resource (first key component). A mutation
//     bumps it; every Fresh entry stamped with an older value reads as Stale.
//
// Two invalidation paths coexist:
//
//	cache.Invalidate(ctx, querykey.New("todos"))  // literal tuple-prefix, marks entries Stale
//	store.Bump(ctx, "todos")                      // counter bump, done by the mutation coordinator
//
// Race guard: a fetch only turns its entry Fresh if, when it lands, the entry is
// still the same Pending entry and the resource counter has not moved since the
// fetch began. Otherwise the entry stays Stale and the next read refetches;
// callers already attached still get the fetched value.
package querycache
