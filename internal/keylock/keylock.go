// Package keylock provides a striped lock set: a fixed array of mutexes
// selected by key hash, so that work on different keys rarely contends
// while the memory cost stays constant.
package keylock

import "github.com/IvanBrykalov/typecache/internal/util"

// DefaultStripes is used when New is called with n <= 0.
const DefaultStripes = 64

// Striped is a fixed set of cache-line padded mutexes.
type Striped struct {
	locks []util.PaddedMutex
}

// New creates a lock set with n stripes rounded up to a power of two.
func New(n int) *Striped {
	if n <= 0 {
		n = DefaultStripes
	}
	n = int(util.NextPow2(uint64(n)))
	return &Striped{locks: make([]util.PaddedMutex, n)}
}

// For returns the mutex guarding hash h. Equal hashes always map to the
// same mutex; distinct hashes usually map to distinct ones.
func (s *Striped) For(h uint64) *util.PaddedMutex {
	return &s.locks[util.ShardIndex(h, len(s.locks))]
}

// Do runs fn while holding the stripe for h.
func (s *Striped) Do(h uint64, fn func()) {
	m := s.For(h)
	m.Lock()
	defer m.Unlock()
	fn()
}

// Len returns the number of stripes.
func (s *Striped) Len() int { return len(s.locks) }
