package twoq

import (
	"testing"

	"github.com/IvanBrykalov/typecache/policy"
)

type testNode[K comparable, V any] struct {
	k K
	v V
}

func (n *testNode[K, V]) Key() K    { return n.k }
func (n *testNode[K, V]) Value() *V { return &n.v }

type recordingHooks[K comparable, V any] struct {
	pushes int
	moves  int
	last   policy.Node[K, V]
}

func (h *recordingHooks[K, V]) MoveToFront(n policy.Node[K, V]) { h.moves++; h.last = n }
func (h *recordingHooks[K, V]) PushFront(n policy.Node[K, V])   { h.pushes++; h.last = n }
func (h *recordingHooks[K, V]) Remove(policy.Node[K, V])        {}
func (h *recordingHooks[K, V]) Back() policy.Node[K, V]         { return nil }
func (h *recordingHooks[K, V]) Len() int                        { return 0 }

func newQ(capIn, capGhost int) (*twoQ[string, int], *recordingHooks[string, int]) {
	h := &recordingHooks[string, int]{}
	return New[string, int](capIn, capGhost).New(h).(*twoQ[string, int]), h
}

func node(k string) *testNode[string, int] { return &testNode[string, int]{k: k} }

// A first-time name is linked and tracked in A1in.
func TestTwoQ_AdmitGoesToA1in(t *testing.T) {
	t.Parallel()

	q, h := newQ(2, 4)
	n := node("java.lang.String")
	if ev := q.OnAdmit(n); ev != nil {
		t.Fatalf("no eviction expected, got %v", ev.Key())
	}
	if h.pushes != 1 || h.last != n {
		t.Fatal("OnAdmit must PushFront the node")
	}
	if _, ok := q.inIdx[n]; !ok || q.inList.Len() != 1 {
		t.Fatal("node must be tracked in A1in")
	}
}

// Overflowing A1in proposes its oldest entry.
func TestTwoQ_OverflowProposesOldestOfA1in(t *testing.T) {
	t.Parallel()

	q, _ := newQ(2, 4)
	a, b, c := node("a"), node("b"), node("c")
	q.OnAdmit(a)
	q.OnAdmit(b)
	if ev := q.OnAdmit(c); ev != a {
		t.Fatalf("want candidate a, got %v", ev)
	}
}

// Leaving A1in leaves a ghost; leaving Am does not.
func TestTwoQ_RemoveGhosts(t *testing.T) {
	t.Parallel()

	q, _ := newQ(2, 4)
	a, b := node("a"), node("b")
	q.OnAdmit(a)
	q.OnAdmit(b)
	q.OnTouch(b) // b graduates to Am

	q.OnRemove(a)
	q.OnRemove(b)

	if _, ok := q.ghostIdx["a"]; !ok {
		t.Fatal("a must be a ghost")
	}
	if _, ok := q.ghostIdx["b"]; ok {
		t.Fatal("b left from Am and must not be a ghost")
	}
}

// A ghost hit skips A1in on readmission.
func TestTwoQ_GhostHitSkipsA1in(t *testing.T) {
	t.Parallel()

	q, _ := newQ(1, 2)
	first := node("a")
	q.OnAdmit(first)
	q.OnRemove(first)

	again := node("a")
	if ev := q.OnAdmit(again); ev != nil {
		t.Fatalf("ghost readmission must not propose a victim, got %v", ev.Key())
	}
	if _, ok := q.inIdx[again]; ok {
		t.Fatal("readmitted ghost must go to Am")
	}
	if _, ok := q.ghostIdx["a"]; ok {
		t.Fatal("ghost must be consumed")
	}
}

// OnTouch graduates out of A1in and promotes.
func TestTwoQ_TouchPromotes(t *testing.T) {
	t.Parallel()

	q, h := newQ(2, 2)
	n := node("a")
	q.OnAdmit(n)
	q.OnTouch(n)
	if _, ok := q.inIdx[n]; ok {
		t.Fatal("touched node must leave A1in")
	}
	if h.moves != 1 {
		t.Fatalf("want 1 MoveToFront, got %d", h.moves)
	}
}

// The ghost list is bounded by capGhost, dropping the oldest key.
func TestTwoQ_GhostCapacity(t *testing.T) {
	t.Parallel()

	q, _ := newQ(4, 2)
	for _, k := range []string{"a", "b", "c"} {
		n := node(k)
		q.OnAdmit(n)
		q.OnRemove(n)
	}
	if q.ghostList.Len() != 2 {
		t.Fatalf("want 2 ghosts, got %d", q.ghostList.Len())
	}
	if _, ok := q.ghostIdx["a"]; ok {
		t.Fatal("oldest ghost a must be dropped")
	}
}
