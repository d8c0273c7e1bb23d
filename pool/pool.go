// Package pool resolves names per owner scope through a shared, bounded,
// access-expiring cache.
//
// A Pool keeps one Scope per owner in a registry that holds owners weakly.
// Each scope is swept by a background sweeper every ExpireAfterAccess/2, and
// its sweep is cancelled when the owner is collected.
//
//	p, err := pool.New(pool.Options[Loader, *TypeDescription]{
//	    Settings:  pool.DefaultSettings(),
//	    Seed:      &pool.Seed[*TypeDescription]{Name: "Object", Value: objectDesc},
//	    Normalize: pool.SubstituteNil(bootstrapLoader),
//	})
//	desc, err := p.Resolve(ctx, loader, "com.example.Foo", resolver)
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/IvanBrykalov/typecache/cache"
	"github.com/IvanBrykalov/typecache/policy"
	"github.com/IvanBrykalov/typecache/registry"
	"github.com/IvanBrykalov/typecache/sweeper"
)

// ErrClosed is returned when a new scope is requested from a closed Pool.
var ErrClosed = errors.New("pool: closed")

// Resolver turns a name into a value. Failures are returned to the caller
// and never cached.
type Resolver[V any] interface {
	Resolve(ctx context.Context, name string) (V, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc[V any] func(ctx context.Context, name string) (V, error)

// Resolve implements Resolver.
func (f ResolverFunc[V]) Resolve(ctx context.Context, name string) (V, error) { return f(ctx, name) }

// Normalizer maps an owner to the handle its scope is keyed by.
type Normalizer[O any] func(owner *O) *O

// SubstituteNil returns a Normalizer that maps the nil owner (the privileged
// scope) to bootstrap and leaves every other owner unchanged.
func SubstituteNil[O any](bootstrap *O) Normalizer[O] {
	return func(owner *O) *O {
		if owner == nil {
			return bootstrap
		}
		return owner
	}
}

// Seed is a name/value pair registered into every new scope before it is
// handed out.
type Seed[V any] struct {
	Name  string
	Value V
}

// Options configures a Pool. Only Settings is required.
type Options[O any, V any] struct {
	Settings Settings

	// Seed, if set, is present in every new scope.
	Seed *Seed[V]

	// Normalize runs before every registry lookup; nil = identity.
	Normalize Normalizer[O]

	// Sweeper maintains scopes; nil => sweeper.Default().
	Sweeper *sweeper.Sweeper

	// Metrics is shared by all scope caches; nil => cache.NoopMetrics.
	Metrics cache.Metrics

	// RegistryMetrics observes scope creation and reaping.
	RegistryMetrics registry.Metrics

	// Logger; nil => zap.NewNop().
	Logger *zap.Logger

	// Clock overrides the time source of scope caches (tests).
	Clock cache.Clock
}

// Pool hands out per-owner scopes and resolves names through them.
// It is safe for concurrent use.
type Pool[O any, V any] struct {
	reg    *registry.Registry[O, *Scope[V]]
	sw     *sweeper.Sweeper
	reaper *sweeper.Registration
	policy policy.Policy[string, V]
	closed atomic.Bool
	opt    Options[O, V]
}

// New validates opt.Settings and returns a Pool. When ReapInterval is set, the
// registry is scheduled on the sweeper as well.
func New[O any, V any](opt Options[O, V]) (*Pool[O, V], error) {
	if err := opt.Settings.Validate(); err != nil {
		return nil, err
	}
	if opt.Sweeper == nil {
		opt.Sweeper = sweeper.Default()
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.Metrics == nil {
		opt.Metrics = cache.NoopMetrics{}
	}

	p := &Pool[O, V]{
		sw:     opt.Sweeper,
		policy: newPolicy[V](opt.Settings),
		opt:    opt,
	}
	p.reg = registry.New[O, *Scope[V]](p.newScope, registry.Options[*Scope[V]]{
		OnReap:  (*Scope[V]).release,
		Metrics: opt.RegistryMetrics,
		Logger:  opt.Logger.Named("registry"),
	})

	if iv := opt.Settings.ReapInterval; iv > 0 {
		r, err := p.sw.Schedule("registry", p.reg, iv)
		if err != nil {
			return nil, fmt.Errorf("pool: schedule reaper: %w", err)
		}
		p.reaper = r
	}
	return p, nil
}

// Scope returns the scope of owner after normalization, creating it on first
// use. The same owner always yields the same scope while it is alive.
func (p *Pool[O, V]) Scope(owner *O) (*Scope[V], error) {
	if n := p.opt.Normalize; n != nil {
		owner = n(owner)
	}
	s, err := p.reg.Get(owner)
	if err != nil {
		return nil, err
	}
	// A scope built while Close ran may have been published after Close
	// walked the registry; its sweep must not outlive Close.
	if p.closed.Load() && s.sweep != nil {
		s.sweep.Cancel()
	}
	return s, nil
}

// Resolve returns the value for name in owner's scope. On a miss r is called
// (once per name across concurrent callers) and its result registered; the
// first registered value wins. Resolver errors are returned as is.
func (p *Pool[O, V]) Resolve(ctx context.Context, owner *O, name string, r Resolver[V]) (V, error) {
	s, err := p.Scope(owner)
	if err != nil {
		var zero V
		return zero, err
	}
	if v, ok := s.Find(name); ok {
		return v, nil
	}
	return s.resolve(ctx, name, r)
}

// Owners returns the number of live scopes.
func (p *Pool[O, V]) Owners() int { return p.reg.Len() }

// Close stops sweeping the pool's scopes and refuses new ones. Existing
// scopes keep their entries and stay usable. The sweeper itself keeps
// running. Close is idempotent.
func (p *Pool[O, V]) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if p.reaper != nil {
		p.reaper.Cancel()
	}
	p.reg.Range(func(s *Scope[V]) bool {
		if s.sweep != nil {
			s.sweep.Cancel()
		}
		return true
	})
	return nil
}

// newScope is the registry factory. The scope is fully seeded and scheduled
// before the registry publishes it.
func (p *Pool[O, V]) newScope() (*Scope[V], error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	st := p.opt.Settings
	s := &Scope[V]{
		cache: cache.New[string, V](cache.Options[string, V]{
			Capacity:          st.MaximumSize,
			InitialCapacity:   st.InitialCapacity,
			Shards:            st.Shards,
			Policy:            p.policy,
			ExpireAfterAccess: st.ExpireAfterAccess,
			Metrics:           p.opt.Metrics,
			Clock:             p.opt.Clock,
		}),
	}
	if seed := p.opt.Seed; seed != nil {
		s.cache.Register(seed.Name, seed.Value)
	}

	r, err := p.sw.Schedule("scope", s, st.SweepPeriod())
	if err != nil {
		s.cache.Clear()
		_ = s.cache.Close()
		p.opt.Logger.Warn("scope not created", zap.Error(err))
		return nil, fmt.Errorf("pool: schedule scope sweep: %w", err)
	}
	if p.closed.Load() {
		r.Cancel()
		return nil, ErrClosed
	}
	s.sweep = r
	return s, nil
}
