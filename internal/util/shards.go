package util

import "runtime"

// MaxShards caps the automatic shard count.
const MaxShards = 256

// ReasonableShardCount picks a practical default shard count based on CPU
// parallelism: nextPow2(2*GOMAXPROCS), clamped to [1..MaxShards].
func ReasonableShardCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := int(NextPow2(uint64(p * 2)))
	if n > MaxShards {
		n = MaxShards
	}
	return n
}

// ShardCount resolves the shard count for a cache holding at most capacity
// entries. requested <= 0 selects ReasonableShardCount. The result is a power
// of two and never exceeds capacity, so every shard owns at least one slot.
func ShardCount(requested, capacity int) int {
	n := requested
	if n <= 0 {
		n = ReasonableShardCount()
	}
	n = int(NextPow2(uint64(n)))
	if capacity > 0 && n > capacity {
		n = int(PrevPow2(uint64(capacity)))
	}
	return n
}

// SplitCapacity returns the capacity of shard i when total is spread across
// shards slots. The per-shard capacities sum exactly to total.
func SplitCapacity(total, shards, i int) int {
	c := total / shards
	if i < total%shards {
		c++
	}
	return c
}

// ShardIndex maps a 64-bit hash to a shard index.
// Uses a mask for power-of-two counts and modulo otherwise.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(shards)) {
		return int(hash & uint64(shards-1))
	}
	return int(hash % uint64(shards))
}
