// Package lru implements the default approximate-LRU eviction policy.
package lru

import "github.com/IvanBrykalov/typecache/policy"

// lru is a move-to-front policy. Combined with the shard's deferred touches
// it yields second-chance ordering, close to LRU without write-locking reads.
type lru[K comparable, V any] struct {
	h policy.Hooks[K, V]
}

type lruPolicy[K comparable, V any] struct{}

// New returns a Policy factory that constructs per-shard LRU instances.
func New[K comparable, V any]() policy.Policy[K, V] { return lruPolicy[K, V]{} }

// New implements policy.Policy.
func (lruPolicy[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &lru[K, V]{h: h}
}

// OnAdmit links the entry at the front. Victims are chosen by the shard from
// the back of the list, so LRU never proposes one itself.
func (p *lru[K, V]) OnAdmit(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	p.h.PushFront(n)
	return nil
}

// OnTouch promotes the entry to the front.
func (p *lru[K, V]) OnTouch(n policy.Node[K, V]) { p.h.MoveToFront(n) }

// OnRemove is a no-op: LRU keeps no state outside the shard list.
func (p *lru[K, V]) OnRemove(_ policy.Node[K, V]) {}
