package keylock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

func TestStriped_RoundsToPowerOfTwo(t *testing.T) {
	assert.Equal(t, 8, New(5).Len())
	assert.Equal(t, DefaultStripes, New(0).Len())
}

func TestStriped_SameHashSameMutex(t *testing.T) {
	s := New(16)
	assert.Same(t, s.For(42), s.For(42))
	assert.Same(t, s.For(3), s.For(3+16))
	assert.NotSame(t, s.For(1), s.For(2))
}

func TestStriped_DoSerializesOneKey(t *testing.T) {
	s := New(4)
	counter := 0

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			for j := 0; j < 1000; j++ {
				s.Do(7, func() { counter++ })
			}
			return nil
		})
	}
	assert.NoError(t, g.Wait())
	assert.Equal(t, 32*1000, counter)
}
