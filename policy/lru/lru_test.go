package lru

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

type mockHooks[K comparable, V any] struct {
	pushFrontCnt   int
	moveToFrontCnt int
	removeCnt      int

	lastPush policy.Node[K, V]
	lastMove policy.Node[K, V]
}

func (h *mockHooks[K, V]) MoveToFront(n policy.Node[K, V]) { h.moveToFrontCnt++; h.lastMove = n }
func (h *mockHooks[K, V]) PushFront(n policy.Node[K, V])   { h.pushFrontCnt++; h.lastPush = n }
func (h *mockHooks[K, V]) Remove(policy.Node[K, V])        { h.removeCnt++ }
func (h *mockHooks[K, V]) Back() policy.Node[K, V]         { return nil }
func (h *mockHooks[K, V]) Len() int                        { return 0 }

// OnAdmit links the node at the front and never proposes a victim.
func TestLRU_OnAdmit_PushFrontAndNoEvict(t *testing.T) {
	t.Parallel()

	h := &mockHooks[string, int]{}
	p := New[string, int]().New(h)

	n := &testNode[string, int]{k: "java.lang.Object", v: 1}
	if ev := p.OnAdmit(n); ev != nil {
		t.Fatalf("LRU must not propose a victim, got %v", ev)
	}
	if h.pushFrontCnt != 1 || h.lastPush != n {
		t.Fatal("OnAdmit must call PushFront exactly once with the node")
	}
	if h.moveToFrontCnt != 0 || h.removeCnt != 0 {
		t.Fatal("OnAdmit must not call MoveToFront/Remove")
	}
}

// OnTouch promotes the node.
func TestLRU_OnTouch_MoveToFront(t *testing.T) {
	t.Parallel()

	h := &mockHooks[string, int]{}
	p := New[string, int]().New(h)

	n := &testNode[string, int]{k: "k", v: 2}
	p.OnTouch(n)

	if h.moveToFrontCnt != 1 || h.lastMove != n {
		t.Fatal("OnTouch must call MoveToFront exactly once with the node")
	}
	if h.pushFrontCnt != 0 {
		t.Fatal("OnTouch must not call PushFront")
	}
}

// OnRemove calls no hooks.
func TestLRU_OnRemove_NoOp(t *testing.T) {
	t.Parallel()

	h := &mockHooks[string, int]{}
	p := New[string, int]().New(h)

	p.OnRemove(&testNode[string, int]{k: "k"})

	if h.pushFrontCnt != 0 || h.moveToFrontCnt != 0 || h.removeCnt != 0 {
		t.Fatal("OnRemove for LRU must not call hooks")
	}
}
