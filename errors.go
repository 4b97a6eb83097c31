package querycache

import "errors"

var (
	ErrNoProvider  = errors.New("querycache: provider is required")
	ErrNoNamespace = errors.New("querycache: namespace is required")
	ErrEmptyKey    = errors.New("querycache: empty key")
	ErrNilFetcher  = errors.New("querycache: nil fetcher")
)
