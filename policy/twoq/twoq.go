// Package twoq implements the 2Q eviction policy, which keeps one-off names
// (for example a scan over every type in a jar) from flushing names that are
// resolved repeatedly.
package twoq

import (
	"container/list"

	"github.com/IvanBrykalov/typecache/policy"
)

// twoQ keeps two resident queues and one ghost queue:
//
//   - A1in: entries admitted once and not touched since; own list + index.
//   - Am:   touched entries; ordered by the shard list itself.
//   - A1out: keys recently evicted from A1in. A ghost hit on admission
//     bypasses A1in.
//
// Concurrency: all methods are called under the shard write lock.
type twoQ[K comparable, V any] struct {
	h policy.Hooks[K, V]

	capIn    int
	capGhost int

	// A1in, most recent at Front().
	inList *list.List
	inIdx  map[policy.Node[K, V]]*list.Element

	// A1out ghosts (keys only), most recent at Front().
	ghostList *list.List
	ghostIdx  map[K]*list.Element
}

// New constructs a 2Q policy factory. Sizes are per shard:
// capIn ≈ 25% and capGhost ≈ 50% of the shard capacity are sensible.
func New[K comparable, V any](capIn, capGhost int) policy.Policy[K, V] {
	if capIn < 1 {
		capIn = 1
	}
	if capGhost < 1 {
		capGhost = 1
	}
	return twoQPolicy[K, V]{capIn: capIn, capGhost: capGhost}
}

type twoQPolicy[K comparable, V any] struct {
	capIn    int
	capGhost int
}

func (p twoQPolicy[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &twoQ[K, V]{
		h:         h,
		capIn:     p.capIn,
		capGhost:  p.capGhost,
		inList:    list.New(),
		inIdx:     make(map[policy.Node[K, V]]*list.Element),
		ghostList: list.New(),
		ghostIdx:  make(map[K]*list.Element),
	}
}

// OnAdmit places a ghost-hit key straight into Am; any other key enters A1in.
// An overflowing A1in yields its oldest entry as the eviction candidate.
func (q *twoQ[K, V]) OnAdmit(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	k := n.Key()
	if ge, ok := q.ghostIdx[k]; ok {
		q.ghostList.Remove(ge)
		delete(q.ghostIdx, k)
		q.h.PushFront(n)
		return nil
	}

	q.h.PushFront(n)
	q.inIdx[n] = q.inList.PushFront(n)

	if q.inList.Len() > q.capIn {
		if oldest := q.inList.Back(); oldest != nil {
			return oldest.Value.(policy.Node[K, V])
		}
	}
	return nil
}

// OnTouch graduates an A1in entry to Am and promotes it.
func (q *twoQ[K, V]) OnTouch(n policy.Node[K, V]) {
	if el, ok := q.inIdx[n]; ok {
		q.inList.Remove(el)
		delete(q.inIdx, n)
	}
	q.h.MoveToFront(n)
}

// OnRemove remembers keys leaving A1in as ghosts, bounded by capGhost.
// Removals from Am leave no ghost.
func (q *twoQ[K, V]) OnRemove(n policy.Node[K, V]) {
	el, ok := q.inIdx[n]
	if !ok {
		return
	}
	q.inList.Remove(el)
	delete(q.inIdx, n)

	k := n.Key()
	if old := q.ghostIdx[k]; old != nil {
		q.ghostList.Remove(old)
	}
	q.ghostIdx[k] = q.ghostList.PushFront(k)

	for q.ghostList.Len() > q.capGhost {
		tail := q.ghostList.Back()
		if tail == nil {
			break
		}
		delete(q.ghostIdx, tail.Value.(K))
		q.ghostList.Remove(tail)
	}
}
