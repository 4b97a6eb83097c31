package querycache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; the engine calls some of them
// while holding its index lock.
type Hooks interface {
	// A Fresh entry could not be served and was marked Stale.
	// reason ∈ {"miss", "provider_error", "corrupt", "key_mismatch", "stamp_mismatch", "value_decode"}
	SelfHeal(key, reason string)

	// A fetch succeeded but its value was not cached.
	// reason ∈ {"invalidated", "superseded", "version_moved", "uncacheable", "encode_error", "provider_rejected"}
	FetchDiscarded(key, reason string)

	// The index dropped an entry to stay within Capacity.
	Evicted(key string)

	// Provider returned ok=false (err == nil) or failed on Set.
	ProviderSetRejected(storageKey string, err error)

	// versions.Store errors.
	VersionSnapshotError(resource string, err error)
	VersionBumpError(resource string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)            {}
func (NopHooks) FetchDiscarded(string, string)      {}
func (NopHooks) Evicted(string)                     {}
func (NopHooks) ProviderSetRejected(string, error)  {}
func (NopHooks) VersionSnapshotError(string, error) {}
func (NopHooks) VersionBumpError(string, error)     {}
