package sweeper_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/IvanBrykalov/typecache/sweeper"
	"github.com/IvanBrykalov/typecache/sweeper/mock"
)

func newSweeper(t *testing.T, m sweeper.Metrics) *sweeper.Sweeper {
	t.Helper()
	s := sweeper.New(sweeper.Options{Logger: zaptest.NewLogger(t), Metrics: m})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type countingMetrics struct {
	mu     sync.Mutex
	swept  map[string]int
	failed map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{swept: map[string]int{}, failed: map[string]int{}}
}

func (m *countingMetrics) Swept(target string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swept[target]++
}

func (m *countingMetrics) Failed(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[target]++
}

func (m *countingMetrics) counts(target string) (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.swept[target], m.failed[target]
}

func TestSweeper_RunsTargetPeriodically(t *testing.T) {
	ctrl := gomock.NewController(t)
	target := mock.NewMockMaintainer(ctrl)

	var calls atomic.Int64
	target.EXPECT().Maintain().Do(func() { calls.Add(1) }).MinTimes(3)

	s := newSweeper(t, nil)
	reg, err := s.Schedule("scope", target, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "scope", reg.Name())
	assert.Equal(t, 10*time.Millisecond, reg.Period())

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, reg.Runs(), uint64(3))
}

func TestSweeper_FirstRunAfterOnePeriod(t *testing.T) {
	ctrl := gomock.NewController(t)
	target := mock.NewMockMaintainer(ctrl)
	target.EXPECT().Maintain().Times(0)

	s := newSweeper(t, nil)
	reg, err := s.Schedule("scope", target, time.Hour)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, reg.Runs())
	assert.Equal(t, 1, s.Len())
}

func TestSweeper_CancelStopsFutureSweeps(t *testing.T) {
	ctrl := gomock.NewController(t)
	target := mock.NewMockMaintainer(ctrl)

	var calls atomic.Int64
	target.EXPECT().Maintain().Do(func() { calls.Add(1) }).AnyTimes()

	s := newSweeper(t, nil)
	reg, err := s.Schedule("scope", target, 5*time.Millisecond)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, time.Millisecond)

	assert.True(t, reg.Cancel())
	assert.False(t, reg.Cancel(), "Cancel must be idempotent")
	assert.True(t, reg.Cancelled())

	// A pass that was already running when Cancel returned may still finish.
	time.Sleep(20 * time.Millisecond)
	settled := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, calls.Load())
	assert.Equal(t, 0, s.Len())
}

func TestSweeper_PanicIsIsolated(t *testing.T) {
	m := newCountingMetrics()
	s := newSweeper(t, m)

	var healthy atomic.Int64
	_, err := s.Schedule("broken", sweeper.MaintainerFunc(func() { panic("boom") }), 5*time.Millisecond)
	require.NoError(t, err)
	_, err = s.Schedule("healthy", sweeper.MaintainerFunc(func() { healthy.Add(1) }), 5*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, failed := m.counts("broken")
		swept, _ := m.counts("healthy")
		return failed >= 3 && swept >= 3
	}, 2*time.Second, 5*time.Millisecond, "a panicking target must neither stop the loop nor its own reschedule")
	assert.GreaterOrEqual(t, healthy.Load(), int64(3))
}

func TestSweeper_ScheduleValidation(t *testing.T) {
	s := newSweeper(t, nil)

	_, err := s.Schedule("scope", sweeper.MaintainerFunc(func() {}), 0)
	assert.ErrorIs(t, err, sweeper.ErrInvalidPeriod)

	_, err = s.Schedule("scope", nil, time.Second)
	assert.ErrorIs(t, err, sweeper.ErrNilTarget)
}

func TestSweeper_CloseIsIdempotent(t *testing.T) {
	s := sweeper.New(sweeper.Options{})
	reg, err := s.Schedule("scope", sweeper.MaintainerFunc(func() {}), time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Schedule("scope", sweeper.MaintainerFunc(func() {}), time.Second)
	assert.ErrorIs(t, err, sweeper.ErrClosed)
	assert.False(t, reg.Cancelled(), "Close must not mark registrations cancelled")
	assert.True(t, reg.Cancel())
	assert.Equal(t, 0, s.Len())
}

func TestSweeper_CloseHonoursGracePeriod(t *testing.T) {
	s := sweeper.New(sweeper.Options{GracePeriod: 10 * time.Millisecond})

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	_, err := s.Schedule("slow", sweeper.MaintainerFunc(func() {
		once.Do(func() { close(started) })
		<-release
	}), time.Millisecond)
	require.NoError(t, err)

	<-started
	begin := time.Now()
	assert.ErrorIs(t, s.Close(), sweeper.ErrCloseTimeout)
	assert.Less(t, time.Since(begin), time.Second)

	close(release)
	require.Eventually(t, func() bool { return s.Close() == nil }, time.Second, 5*time.Millisecond)
}

func TestSweeper_EarlierRegistrationWakesLoop(t *testing.T) {
	s := newSweeper(t, nil)

	_, err := s.Schedule("slow", sweeper.MaintainerFunc(func() {}), time.Hour)
	require.NoError(t, err)

	var fast atomic.Int64
	_, err = s.Schedule("fast", sweeper.MaintainerFunc(func() { fast.Add(1) }), 5*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fast.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestDefault_IsSingleton(t *testing.T) {
	assert.Same(t, sweeper.Default(), sweeper.Default())
}

// A registration that is already due but not yet started is skipped once
// cancelled.
func TestSweeper_CancelSkipsDuePass(t *testing.T) {
	s := newSweeper(t, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	_, err := s.Schedule("busy", sweeper.MaintainerFunc(func() {
		once.Do(func() {
			close(started)
			<-release
		})
	}), time.Millisecond)
	require.NoError(t, err)
	<-started

	// While the loop is busy both become due; canceller sorts first.
	var victim *sweeper.Registration
	var cancelled atomic.Bool
	_, err = s.Schedule("canceller", sweeper.MaintainerFunc(func() {
		if cancelled.CompareAndSwap(false, true) {
			assert.True(t, victim.Cancel())
		}
	}), time.Millisecond)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	target := mock.NewMockMaintainer(ctrl)
	target.EXPECT().Maintain().Times(0)
	victim, err = s.Schedule("victim", target, 2*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	close(release)

	require.Eventually(t, cancelled.Load, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, victim.Runs())
	assert.True(t, victim.Cancelled())
}
