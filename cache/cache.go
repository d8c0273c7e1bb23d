package cache

import (
	"runtime"
	"sync/atomic"

	"github.com/IvanBrykalov/typecache/internal/util"
	"github.com/IvanBrykalov/typecache/policy/lru"
)

// cache is a sharded resolution cache with a pluggable eviction policy.
// All methods are safe for concurrent use by multiple goroutines.
type cache[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64
	closed atomic.Bool

	opt Options[K, V]
}

// New constructs a cache with the provided Options.
// It panics if Capacity <= 0.
func New[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	if opt.Capacity <= 0 {
		panic("cache: Capacity must be > 0")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[K, V]()
	}
	if opt.Clock == nil {
		opt.Clock = systemClock{}
	}
	hint := opt.InitialCapacity
	if hint < 0 || hint > opt.Capacity {
		hint = opt.Capacity
	}

	c := &cache[K, V]{
		hash: util.Hash[K],
		opt:  opt,
	}

	// Capacity is split exactly, so the shard capacities sum to Capacity.
	sh := util.ShardCount(opt.Shards, opt.Capacity)
	c.shards = make([]*shard[K, V], sh)
	for i := range c.shards {
		c.shards[i] = newShard[K, V](
			util.SplitCapacity(opt.Capacity, sh, i),
			util.SplitCapacity(hint, sh, i),
			&c.opt,
		)
	}
	return c
}

// ---- Cache[K,V] implementation ----

// Find returns the live value for k. Expired entries read as misses and are
// left for maintenance.
func (c *cache[K, V]) Find(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.getShard(k).find(k, c.now())
}

// Register installs k→v unless k already has a live entry.
func (c *cache[K, V]) Register(k K, v V) (V, bool) {
	if c.closed.Load() {
		return v, false
	}
	return c.getShard(k).register(k, v, c.now())
}

// Remove deletes k if present and returns true on success.
func (c *cache[K, V]) Remove(k K) bool {
	if c.closed.Load() {
		return false
	}
	return c.getShard(k).remove(k)
}

// Clear drops all entries, shard by shard.
func (c *cache[K, V]) Clear() {
	for _, s := range c.shards {
		s.clear()
	}
}

// Len returns the total number of resident entries across all shards.
func (c *cache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.size()
	}
	return total
}

// Maintain runs a full pass over every shard. Only one shard lock is held at
// a time and the goroutine yields between shards, so foreground callers wait
// for at most one shard's pass.
func (c *cache[K, V]) Maintain() {
	if c.closed.Load() {
		return
	}
	now := c.now()
	for _, s := range c.shards {
		s.maintain(now)
		runtime.Gosched()
	}
}

// Stats sums the per-shard counters.
func (c *cache[K, V]) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Evictions += s.evicts.Load()
	}
	st.Entries = c.Len()
	return st
}

// Close marks the cache as closed. Entries are kept.
func (c *cache[K, V]) Close() error {
	c.closed.Store(true)
	return nil
}

// ---- helpers ----

// getShard picks a shard by hashing the key.
// len(c.shards) is guaranteed to be a power of two.
func (c *cache[K, V]) getShard(k K) *shard[K, V] {
	return c.shards[util.ShardIndex(c.hash(k), len(c.shards))]
}

func (c *cache[K, V]) now() int64 { return c.opt.Clock.NowUnixNano() }
