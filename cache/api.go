package cache

// Cache is a bounded, access-expiring, first-writer-wins lookup cache.
// All methods are safe for concurrent use by multiple goroutines.
//
// Find only takes a shard read lock; Register, Remove, Clear and Maintain
// take the write lock of one shard at a time.
type Cache[K comparable, V any] interface {
	// Find returns the value for k if it is resident and not expired.
	// A hit refreshes the entry's access time. A miss has no side effects.
	Find(k K) (V, bool)

	// Register installs k→v unless k already has a live entry.
	// It returns the value that is now cached for k and loaded=true when
	// that value was already present (v is discarded in that case).
	// Concurrent Register calls for one key agree on a single value.
	Register(k K, v V) (actual V, loaded bool)

	// Remove deletes k if present and returns true on success.
	Remove(k K) bool

	// Clear drops every entry immediately.
	Clear()

	// Len returns the number of resident entries across all shards.
	// Expired entries that were not swept yet are included.
	Len() int

	// Maintain runs a full maintenance pass: expired entries are removed
	// and capacity is enforced, one shard at a time. It is idempotent and
	// is what a background sweeper should call.
	Maintain()

	// Stats returns cumulative counters.
	Stats() Stats

	// Close marks the cache closed: Find misses and Register stores nothing.
	// It never clears entries. Current implementation always returns nil.
	Close() error
}
