package cache

import (
	"sync"

	"github.com/IvanBrykalov/typecache/internal/util"
	"github.com/IvanBrykalov/typecache/policy"
)

const (
	// drainEvery is the number of reads on a shard between opportunistic
	// maintenance attempts from the read path.
	drainEvery = 64
	// drainBudget bounds how many nodes a foreground maintenance pass inspects.
	drainBudget = 32
)

// shard is an independent partition of the cache with its own lock, map,
// and an intrusive doubly linked list (head = most recently linked).
type shard[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu   sync.RWMutex
	m    map[K]*node[K, V]
	head *node[K, V]
	tail *node[K, V]
	len  int // number of resident entries
	pol  policy.ShardPolicy[K, V]

	// ---- immutable after construction ----
	cap     int   // per-shard entry capacity
	hint    int   // initial map size, reused by clear
	ttl     int64 // expire-after-access in ns (0 = never)
	factory policy.Policy[K, V]
	opt     *Options[K, V]

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	reads  util.PaddedAtomicUint64
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64
	evicts util.PaddedAtomicUint64
}

func newShard[K comparable, V any](capacity, hint int, opt *Options[K, V]) *shard[K, V] {
	if hint > capacity {
		hint = capacity
	}
	s := &shard[K, V]{
		m:       make(map[K]*node[K, V], hint),
		cap:     capacity,
		hint:    hint,
		ttl:     int64(opt.ExpireAfterAccess),
		factory: opt.Policy,
		opt:     opt,
	}
	if s.ttl < 0 {
		s.ttl = 0
	}
	s.pol = s.factory.New(shardHooks[K, V]{s: s})
	return s
}

// find is a pure read under the read lock. Every drainEvery reads it tries,
// without blocking, to run a bounded maintenance pass.
func (s *shard[K, V]) find(k K, now int64) (V, bool) {
	var v V
	s.mu.RLock()
	n, ok := s.m[k]
	if ok && !s.expired(n, now) {
		n.touch(now)
		v = n.val
	} else {
		ok = false
	}
	s.mu.RUnlock()

	if ok {
		s.hits.Add(1)
		s.opt.Metrics.Hit()
	} else {
		s.misses.Add(1)
		s.opt.Metrics.Miss()
	}
	if s.reads.Add(1)%drainEvery == 0 {
		s.tryMaintain(now)
	}
	return v, ok
}

// register installs k→v unless a live entry exists (first writer wins).
func (s *shard[K, V]) register(k K, v V, now int64) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[k]; ok {
		if !s.expired(n, now) {
			n.touch(now)
			return n.val, true
		}
		s.evictNode(n, EvictExpired)
	}

	n := newNode(k, v, now)
	s.m[k] = n
	if ev := s.pol.OnAdmit(n); ev != nil {
		s.considerCandidateLocked(ev.(*node[K, V]), now, n)
	}
	s.opt.Metrics.Resident(1)

	s.enforceCapacityLocked(now, n)
	s.expireLocked(now, drainBudget)
	return v, false
}

// remove deletes an entry by key. Returns true if the entry existed.
func (s *shard[K, V]) remove(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		return false
	}
	s.pol.OnRemove(n)
	s.unlink(n)
	delete(s.m, k)
	s.opt.Metrics.Resident(-1)
	return true
}

// clear drops all entries and rebuilds policy state.
func (s *shard[K, V]) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := s.len
	s.m = make(map[K]*node[K, V], s.hint)
	s.head, s.tail = nil, nil
	s.len = 0
	s.pol = s.factory.New(shardHooks[K, V]{s: s})
	if dropped > 0 {
		s.opt.Metrics.Resident(-dropped)
	}
}

// size returns the number of resident entries in this shard.
func (s *shard[K, V]) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.len
}

// maintain is the full pass: every node is checked for expiry, then the
// capacity bound is re-established.
func (s *shard[K, V]) maintain(now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(now, s.len)
	s.enforceCapacityLocked(now, nil)
}

// tryMaintain runs a bounded pass only if the write lock is free right now.
func (s *shard[K, V]) tryMaintain(now int64) {
	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()
	s.expireLocked(now, drainBudget)
}

// -------------------- internals (mu held) --------------------

func (s *shard[K, V]) expired(n *node[K, V], now int64) bool {
	return s.ttl > 0 && now-n.access.Load() >= s.ttl
}

// expireLocked inspects at most budget nodes from the tail and evicts the
// expired ones. The list is ordered by placement, not by access, so a live
// node does not end the walk.
func (s *shard[K, V]) expireLocked(now int64, budget int) {
	if s.ttl == 0 {
		return
	}
	for n := s.tail; n != nil && budget > 0; budget-- {
		prev := n.prev
		if s.expired(n, now) {
			s.evictNode(n, EvictExpired)
		}
		n = prev
	}
}

// considerCandidateLocked settles a victim proposed by the policy on
// admission. A candidate read since its placement is replayed as a touch and
// stays; otherwise it is evicted only while the shard is over capacity.
func (s *shard[K, V]) considerCandidateLocked(c *node[K, V], now int64, keep *node[K, V]) {
	switch {
	case c == keep:
	case c.touchedSinceLinked():
		c.linked = now
		s.pol.OnTouch(c)
	case s.len > s.cap:
		s.evictNode(c, EvictPolicy)
	}
}

// enforceCapacityLocked evicts from the tail until len <= cap. A tail node
// read since its last placement gets one second chance (replayed to the
// policy as a touch). keep, if non-nil, is never chosen as the victim.
func (s *shard[K, V]) enforceCapacityLocked(now int64, keep *node[K, V]) {
	chances := s.len
	for s.len > s.cap {
		victim := s.tail
		if victim == keep {
			victim = victim.prev
		}
		if victim == nil {
			return
		}
		if chances > 0 && victim.touchedSinceLinked() {
			chances--
			victim.linked = now
			s.pol.OnTouch(victim)
			continue
		}
		s.evictNode(victim, EvictCapacity)
	}
}

// pushFront links n at the head in O(1).
func (s *shard[K, V]) pushFront(n *node[K, V]) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
}

// moveToFront relinks n at the head in O(1).
func (s *shard[K, V]) moveToFront(n *node[K, V]) {
	if n == s.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
}

// unlink removes n from the list in O(1).
func (s *shard[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.len--
}

// evictNode removes the node, updates counters and metrics, and calls OnEvict.
func (s *shard[K, V]) evictNode(n *node[K, V], reason EvictReason) {
	s.pol.OnRemove(n)
	s.unlink(n)
	delete(s.m, n.key)
	s.evicts.Add(1)
	s.opt.Metrics.Evict(reason)
	s.opt.Metrics.Resident(-1)
	if cb := s.opt.OnEvict; cb != nil {
		cb(n.key, n.val, reason)
	}
}

// -------------------- policy hooks --------------------

// shardHooks adapts the shard's list operations to policy.Hooks.
type shardHooks[K comparable, V any] struct{ s *shard[K, V] }

func (h shardHooks[K, V]) MoveToFront(x policy.Node[K, V]) { h.s.moveToFront(x.(*node[K, V])) }
func (h shardHooks[K, V]) PushFront(x policy.Node[K, V])   { h.s.pushFront(x.(*node[K, V])) }
func (h shardHooks[K, V]) Remove(x policy.Node[K, V])      { h.s.unlink(x.(*node[K, V])) }
func (h shardHooks[K, V]) Back() policy.Node[K, V] {
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}
func (h shardHooks[K, V]) Len() int { return h.s.len }
