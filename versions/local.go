package versions

import (
	"context"
	"sync"
)

var _ Store = (*Local)(nil)

// Local keeps counters in-process. Counters are never pruned: the set of
// resources is small and a counter that went back to zero could collide with
// a version already stamped on a cached entry.
type Local struct {
	mu sync.RWMutex
	v  map[string]uint64
}

func NewLocal() *Local {
	return &Local{v: make(map[string]uint64)}
}

func (s *Local) Current(_ context.Context, resource string) (uint64, error) {
	s.mu.RLock()
	v := s.v[resource]
	s.mu.RUnlock()
	return v, nil
}

func (s *Local) Bump(_ context.Context, resource string) (uint64, error) {
	s.mu.Lock()
	s.v[resource]++
	v := s.v[resource]
	s.mu.Unlock()
	return v, nil
}

func (s *Local) Close(context.Context) error { return nil }
