// Package policy defines the contract between a cache shard and its
// capacity-eviction strategy.
package policy

// Node is the minimal contract a cache entry must satisfy for a policy.
type Node[K comparable, V any] interface {
	Key() K
	Value() *V
}

// Hooks expose O(1) list operations that a policy uses to reorder the
// shard's intrusive list. Implementations are provided by the shard.
//
// Concurrency: all hook calls happen under the shard write lock.
// Hooks manage only the list; the shard owns the key->node map.
type Hooks[K comparable, V any] interface {
	// MoveToFront promotes the node to the most-recent end.
	MoveToFront(Node[K, V])
	// PushFront links a newly admitted node at the most-recent end.
	PushFront(Node[K, V])
	// Remove detaches the node from the list.
	Remove(Node[K, V])
	// Back returns the least-recent node (or nil if empty).
	Back() Node[K, V]
	// Len returns the number of resident nodes in the shard.
	Len() int
}

// ShardPolicy is a per-shard eviction policy instance bound to shard hooks.
// All methods are invoked under the shard write lock.
//
// Entries are never updated in place (first registration wins), so there is
// no update notification. Reads do not reach the policy directly: a read only
// stamps the entry's access time, and the shard replays it as OnTouch when the
// entry reaches the back of the list during capacity enforcement.
//
//   - OnAdmit links a new entry and may return an eviction candidate.
//     The shard replays it as OnTouch if it was read since placement, evicts
//     it (calling OnRemove) if the shard is over capacity, and otherwise
//     leaves it resident.
//   - OnTouch records a deferred access (typically promotes the node).
//   - OnRemove updates policy-internal state; the shard performs deletion.
type ShardPolicy[K comparable, V any] interface {
	OnAdmit(Node[K, V]) (evict Node[K, V])
	OnTouch(Node[K, V])
	OnRemove(Node[K, V])
}

// Policy is a factory that creates shard-local policy instances.
// Clear rebuilds the instance, so New must return fresh state.
type Policy[K comparable, V any] interface {
	New(Hooks[K, V]) ShardPolicy[K, V]
}
