package cache

import "sync/atomic"

// node is an intrusive doubly linked list element owned by a shard.
// key and val never change after admission.
type node[K comparable, V any] struct {
	key K
	val V

	// Intrusive list links: head is most recently linked, tail is oldest.
	prev *node[K, V]
	next *node[K, V]

	// linked is the UnixNano time the node was last placed at the head.
	// Guarded by the shard write lock.
	linked int64

	// access is the UnixNano time of the last Find hit or Register.
	// Written under the shard read lock, hence atomic.
	access atomic.Int64
}

func newNode[K comparable, V any](k K, v V, now int64) *node[K, V] {
	n := &node[K, V]{key: k, val: v, linked: now}
	n.access.Store(now)
	return n
}

// touch moves the access time forward to now; it never moves it back.
func (n *node[K, V]) touch(now int64) {
	for {
		old := n.access.Load()
		if now <= old || n.access.CompareAndSwap(old, now) {
			return
		}
	}
}

// touchedSinceLinked reports whether the node was read after its last placement.
func (n *node[K, V]) touchedSinceLinked() bool { return n.access.Load() > n.linked }

// Key returns the node key (part of policy.Node interface).
func (n *node[K, V]) Key() K { return n.key }

// Value returns a pointer to the stored value (part of policy.Node interface).
// The value is immutable once admitted.
func (n *node[K, V]) Value() *V { return &n.val }
