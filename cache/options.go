package cache

import (
	"time"

	"github.com/IvanBrykalov/typecache/policy"
)

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictPolicy: proposed by the active policy on admission (e.g., 2Q A1in
	// overflow) while the shard is over capacity.
	EvictPolicy EvictReason = iota
	// EvictExpired: not accessed for ExpireAfterAccess.
	EvictExpired
	// EvictCapacity: removed to stay within Capacity.
	EvictCapacity
)

// String returns a stable lower-case label for the reason.
func (r EvictReason) String() string {
	switch r {
	case EvictExpired:
		return "expired"
	case EvictCapacity:
		return "capacity"
	default:
		return "policy"
	}
}

// Metrics exposes cache-level observability hooks.
// Implementations must be safe for concurrent use; Resident and Evict may be
// called under a shard lock.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	// Resident reports a change in the number of resident entries.
	Resident(delta int)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures the cache. Zero values are safe except Capacity;
// defaults are applied in New():
//   - nil Policy                => LRU
//   - Shards <= 0               => auto, clamped so each shard holds >= 1 entry
//   - ExpireAfterAccess <= 0    => entries never expire
//   - nil Metrics               => NoopMetrics
//   - nil Clock                 => time.Now()
type Options[K comparable, V any] struct {
	// Capacity is the hard maximum number of resident entries.
	Capacity int

	// InitialCapacity pre-sizes the shard maps (a hint; 0 = grow on demand).
	InitialCapacity int

	// Shards defines the number of shards (rounded up to a power of two).
	Shards int

	// Policy picks capacity victims; nil => LRU.
	Policy policy.Policy[K, V]

	// ExpireAfterAccess is measured from the last Find hit or Register.
	ExpireAfterAccess time.Duration

	// OnEvict is called for every eviction under the shard lock; keep it cheap.
	// Remove and Clear are not evictions and do not call it.
	OnEvict func(k K, v V, reason EvictReason)

	Metrics Metrics

	// Clock overrides the time source (tests).
	Clock Clock
}

// Stats is a snapshot of cumulative cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
}

type systemClock struct{}

func (systemClock) NowUnixNano() int64 { return time.Now().UnixNano() }
