// Package cache provides the per-owner resolution cache: a generic, sharded,
// in-memory map from names to resolved values with a hard entry limit and
// expire-after-access eviction.
//
// Design
//
//   - Concurrency: the cache is split into shards, each protected by an
//     RWMutex. Find only takes the read side, so lookups never serialize
//     against each other; Register takes the write side of one shard.
//
//   - First writer wins: Register never replaces a live entry. Concurrent
//     registrations of one name all observe the same value.
//
//   - Expiry: every entry carries an atomic last-access time refreshed by Find
//     hits and Register. An entry is expired once it has not been accessed for
//     Options.ExpireAfterAccess. Find treats expired entries as misses but
//     never removes them; removal is the job of maintenance.
//
//   - Maintenance: Maintain is the single cleanup operation. Foreground
//     traffic runs a bounded slice of it (on Register, and every 64th read
//     when the shard lock is free); a background sweeper should call Maintain
//     periodically so stale entries leave even without traffic.
//
//   - Capacity: Options.Capacity is split exactly across shards, so Len()
//     never exceeds it once a call returns. Victims come from the policy's
//     oldest end; reads are replayed to the policy lazily as a second chance,
//     which approximates LRU without write-locking Find.
//
//   - Policies: pluggable via the policy package. LRU is the default; 2Q is
//     provided for scan-heavy workloads.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Resident signals.
//     NoopMetrics is the default; metrics/prom exports them to Prometheus.
//
// Basic usage
//
//	c := cache.New[string, *TypeDescription](cache.Options[string, *TypeDescription]{
//	    Capacity:          10_000,
//	    InitialCapacity:   500,
//	    ExpireAfterAccess: 10 * time.Second,
//	})
//	c.Register("java.lang.Object", objectDescription)
//	if d, ok := c.Find("java.lang.Object"); ok {
//	    _ = d
//	}
//
// First writer wins
//
//	a, _ := c.Register("Foo", descA)      // a == descA
//	b, loaded := c.Register("Foo", descB) // b == descA, loaded == true
package cache
