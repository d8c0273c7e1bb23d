package pool

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/IvanBrykalov/typecache/cache"
	"github.com/IvanBrykalov/typecache/sweeper"
)

// Scope is the resolution cache of one owner. It never references the owner.
type Scope[V any] struct {
	cache  cache.Cache[string, V]
	flight singleflight.Group
	sweep  *sweeper.Registration
}

// Find returns the cached value for name. A miss has no side effects.
func (s *Scope[V]) Find(name string) (V, bool) { return s.cache.Find(name) }

// Register caches v for name unless name already has a live value, and
// returns the value that is now cached.
func (s *Scope[V]) Register(name string, v V) V {
	actual, _ := s.cache.Register(name, v)
	return actual
}

// Clear drops every cached name.
func (s *Scope[V]) Clear() { s.cache.Clear() }

// Size is the approximate number of cached names, including expired ones
// that have not been swept yet.
func (s *Scope[V]) Size() int { return s.cache.Len() }

// Maintain removes expired entries and enforces the size limit.
func (s *Scope[V]) Maintain() { s.cache.Maintain() }

// Stats returns the scope's cumulative counters.
func (s *Scope[V]) Stats() cache.Stats { return s.cache.Stats() }

// resolve calls r for name and registers its result. Concurrent callers for
// the same name share one call. The shared call is detached from any single
// caller's cancellation; each caller still stops waiting when its ctx ends.
func (s *Scope[V]) resolve(ctx context.Context, name string, r Resolver[V]) (V, error) {
	var zero V
	shared := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(name, func() (any, error) {
		v, err := r.Resolve(shared, name)
		if err != nil {
			return nil, err
		}
		return s.Register(name, v), nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

// release stops sweeping the scope and drops its entries. It runs once, when
// the owner's registry entry is reaped.
func (s *Scope[V]) release() {
	if s.sweep != nil {
		s.sweep.Cancel()
	}
	s.cache.Clear()
	_ = s.cache.Close()
}
