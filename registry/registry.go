// Package registry maps owner handles to lazily built values without
// keeping the owners alive.
//
// Keys are weak pointers, so the registry is never the reason an owner stays
// reachable. When an owner is collected its entry disappears on its own: a
// runtime cleanup removes it shortly after collection, and Reap (also exposed
// as Maintain for a sweeper) removes any entry whose weak pointer has gone
// nil. Either path fires OnReap exactly once per entry.
//
// Values must not reference their owner, directly or indirectly; a value that
// does would pin the owner forever.
package registry

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
	"weak"

	"go.uber.org/zap"

	"github.com/IvanBrykalov/typecache/internal/keylock"
	"github.com/IvanBrykalov/typecache/internal/util"
)

// ErrNilOwner is returned by Get for a nil owner. Callers that use nil for a
// privileged scope should substitute a canonical handle before calling Get.
var ErrNilOwner = errors.New("registry: nil owner")

// Factory builds the value for a newly seen owner. It runs at most once per
// owner at a time, under that owner's stripe lock, and must not call back into
// the registry for an owner on the same stripe.
type Factory[C any] func() (C, error)

// Options configures a Registry. Zero values are safe.
type Options[C any] struct {
	// OnReap is called once for every entry removed because its owner was
	// collected. It may run on a runtime cleanup goroutine.
	OnReap func(C)

	// Stripes is the number of construction locks; 0 => keylock.DefaultStripes.
	Stripes int

	// Metrics receives creation/reap signals. Nil => NoopMetrics.
	Metrics Metrics

	// Logger receives Debug events for creation and reaping. Nil => zap.NewNop().
	Logger *zap.Logger
}

// Registry is a weak owner → value map with at-most-once construction per owner.
// It is safe for concurrent use.
type Registry[O any, C any] struct {
	entries sync.Map // weak.Pointer[O] -> *slot[C]
	size    atomic.Int64
	locks   *keylock.Striped
	factory Factory[C]
	opt     Options[C]
}

type slot[C any] struct{ val C }

// New creates an empty Registry. It panics on a nil factory.
func New[O any, C any](factory Factory[C], opt Options[C]) *Registry[O, C] {
	if factory == nil {
		panic("registry: nil factory")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	return &Registry[O, C]{
		locks:   keylock.New(opt.Stripes),
		factory: factory,
		opt:     opt,
	}
}

// Get returns the value for owner, building it on first use.
//
// The fast path is a lock-free map load. On a miss the owner's stripe lock is
// taken, the map is checked again, and only then is the factory called. The
// value is published fully built; a factory error is returned as is (wrapped)
// and nothing is stored, so a later Get retries.
func (r *Registry[O, C]) Get(owner *O) (C, error) {
	var zero C
	if owner == nil {
		return zero, ErrNilOwner
	}
	key := weak.Make(owner)
	if v, ok := r.load(key); ok {
		return v, nil
	}

	mu := r.locks.For(addrHash(owner))
	mu.Lock()
	defer mu.Unlock()

	if v, ok := r.load(key); ok {
		return v, nil
	}
	val, err := r.factory()
	if err != nil {
		return zero, fmt.Errorf("registry: build value: %w", err)
	}
	r.entries.Store(key, &slot[C]{val: val})
	r.size.Add(1)
	runtime.AddCleanup(owner, r.collected, key)

	r.opt.Metrics.Created()
	r.opt.Logger.Debug("registry entry created", zap.Int64("entries", r.size.Load()))
	return val, nil
}

// Lookup returns the value for owner without building one.
func (r *Registry[O, C]) Lookup(owner *O) (C, bool) {
	if owner == nil {
		var zero C
		return zero, false
	}
	return r.load(weak.Make(owner))
}

// Len returns the number of live entries.
func (r *Registry[O, C]) Len() int { return int(r.size.Load()) }

// Range calls fn for every value until fn returns false.
func (r *Registry[O, C]) Range(fn func(C) bool) {
	r.entries.Range(func(_, v any) bool {
		return fn(v.(*slot[C]).val)
	})
}

// Reap removes every entry whose owner has been collected and returns how
// many it removed. It does not wait for runtime cleanups.
func (r *Registry[O, C]) Reap() int {
	n := 0
	r.entries.Range(func(k, _ any) bool {
		key := k.(weak.Pointer[O])
		if key.Value() == nil && r.remove(key) {
			n++
		}
		return true
	})
	return n
}

// Maintain calls Reap; it lets a sweeper drive reaping.
func (r *Registry[O, C]) Maintain() { r.Reap() }

// ---- internals ----

func (r *Registry[O, C]) load(key weak.Pointer[O]) (C, bool) {
	if v, ok := r.entries.Load(key); ok {
		return v.(*slot[C]).val, true
	}
	var zero C
	return zero, false
}

// collected is the runtime cleanup for an owner.
func (r *Registry[O, C]) collected(key weak.Pointer[O]) { r.remove(key) }

// remove deletes key once; concurrent callers race on LoadAndDelete and only
// the winner reports and notifies.
func (r *Registry[O, C]) remove(key weak.Pointer[O]) bool {
	v, ok := r.entries.LoadAndDelete(key)
	if !ok {
		return false
	}
	r.size.Add(-1)
	r.opt.Metrics.Reaped()
	if cb := r.opt.OnReap; cb != nil {
		cb(v.(*slot[C]).val)
	}
	r.opt.Logger.Debug("registry entry reaped", zap.Int64("entries", r.size.Load()))
	return true
}

// addrHash spreads an owner's address over the lock stripes. The Go heap
// does not move objects, so the address is stable while the owner is alive.
func addrHash[O any](owner *O) uint64 {
	return util.Mix64(uint64(uintptr(unsafe.Pointer(owner))))
}
