// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
)

var seed = maphash.MakeSeed()

// Hash returns a 64-bit hash of k for shard selection.
// String keys (type names) use xxhash; any other comparable key goes through
// maphash.Comparable with a per-process seed.
func Hash[K comparable](k K) uint64 {
	if s, ok := any(k).(string); ok {
		return xxhash.Sum64String(s)
	}
	return maphash.Comparable(seed, k)
}

// Mix64 scrambles a 64-bit word (murmur3 finalizer).
// Heap addresses share their low bits (alignment) and high bits (arena),
// so they are mixed before being used to pick a stripe.
func Mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
