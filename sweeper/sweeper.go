// Package sweeper runs periodic maintenance for many caches on a single
// background goroutine.
//
// Caches whose cleanup piggybacks on reads and writes keep stale entries
// resident when traffic stops. A Sweeper bounds that residency by calling
// Maintain on every registered target once per period, independently of
// foreground traffic. One goroutine serves every registration in the process;
// it never blocks program exit.
package sweeper

import (
	"container/heap"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrClosed is returned by Schedule after Close.
	ErrClosed = errors.New("sweeper: closed")
	// ErrInvalidPeriod is returned by Schedule for a non-positive period.
	ErrInvalidPeriod = errors.New("sweeper: period must be > 0")
	// ErrNilTarget is returned by Schedule for a nil Maintainer.
	ErrNilTarget = errors.New("sweeper: nil target")
	// ErrCloseTimeout is returned by Close when an in-flight pass outlives
	// the grace period. The pass still completes in the background.
	ErrCloseTimeout = errors.New("sweeper: in-flight sweep outlived grace period")
)

// idleWait is how long the loop sleeps with nothing scheduled; Schedule
// wakes it early.
const idleWait = time.Hour

//go:generate mockgen -package=mock -source=sweeper.go -destination=mock/maintainer.go

// Maintainer is anything that can run an idempotent maintenance pass.
// Maintain must be bounded: the sweeper goroutine is shared by every target.
type Maintainer interface {
	Maintain()
}

// MaintainerFunc adapts a plain function to Maintainer.
type MaintainerFunc func()

// Maintain calls f().
func (f MaintainerFunc) Maintain() { f() }

// Options configures a Sweeper. Zero values are safe.
type Options struct {
	// Logger receives recovered panics (Error) and lifecycle events (Debug).
	// Nil => zap.NewNop().
	Logger *zap.Logger

	// Metrics receives per-pass timings and failures. Nil => NoopMetrics.
	Metrics Metrics

	// GracePeriod bounds how long Close waits for an in-flight pass.
	// Zero => one second.
	GracePeriod time.Duration
}

// Sweeper schedules Maintainers at fixed rates on one goroutine.
type Sweeper struct {
	mu     sync.Mutex
	queue  schedule // guarded by mu
	closed bool     // guarded by mu

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	log     *zap.Logger
	metrics Metrics
	grace   time.Duration
}

var (
	defaultOnce    sync.Once
	defaultSweeper *Sweeper
)

// Default returns the process-wide Sweeper, starting it on first use.
// It is never closed.
func Default() *Sweeper {
	defaultOnce.Do(func() {
		defaultSweeper = New(Options{})
	})
	return defaultSweeper
}

// New starts a Sweeper goroutine. Call Close to stop it.
func New(opt Options) *Sweeper {
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.GracePeriod <= 0 {
		opt.GracePeriod = time.Second
	}
	s := &Sweeper{
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		log:     opt.Logger,
		metrics: opt.Metrics,
		grace:   opt.GracePeriod,
	}
	go s.run()
	return s
}

// Schedule runs target.Maintain every period, first after one period.
// The name labels logs and metrics; use a small fixed set of names.
func (s *Sweeper) Schedule(name string, target Maintainer, period time.Duration) (*Registration, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if target == nil {
		return nil, ErrNilTarget
	}
	r := &Registration{
		s:      s,
		name:   name,
		target: target,
		period: period,
		next:   time.Now().Add(period),
		index:  -1,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	heap.Push(&s.queue, r)
	first := s.queue[0] == r
	s.mu.Unlock()

	if first {
		s.signal()
	}
	s.log.Debug("sweep scheduled", zap.String("target", name), zap.Duration("period", period))
	return r, nil
}

// Len returns the number of pending registrations.
func (s *Sweeper) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Close stops the sweeper. It is idempotent and waits at most the grace
// period for an in-flight pass. Registered targets are left untouched.
func (s *Sweeper) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for _, r := range s.queue {
			r.index = -1
		}
		s.queue = nil
		s.mu.Unlock()
		close(s.stop)
		s.log.Debug("sweeper closing")
	})

	select {
	case <-s.done:
		return nil
	case <-time.After(s.grace):
		return ErrCloseTimeout
	}
}

// ---- loop ----

func (s *Sweeper) run() {
	defer close(s.done)

	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		due, wait := s.takeDue(time.Now())
		for _, r := range due {
			select {
			case <-s.stop:
				return
			default:
			}
			// Cancelled after takeDue popped it; drop without a pass.
			if r.cancelled.Load() {
				continue
			}
			s.sweep(r)
			s.reschedule(r)
			// Goroutines have no priority; yield so one sweep burst
			// does not hog a P while foreground work is runnable.
			runtime.Gosched()
		}
		if len(due) > 0 {
			continue
		}

		timer.Reset(wait)
		select {
		case <-s.stop:
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// takeDue pops every registration due at now and reports how long to sleep
// until the next one.
func (s *Sweeper) takeDue(now time.Time) ([]*Registration, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*Registration
	for s.queue.Len() > 0 && !s.queue[0].next.After(now) {
		due = append(due, heap.Pop(&s.queue).(*Registration))
	}
	if s.queue.Len() == 0 {
		return due, idleWait
	}
	return due, s.queue[0].next.Sub(now)
}

// sweep runs one pass with panic isolation.
func (s *Sweeper) sweep(r *Registration) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			s.metrics.Failed(r.name)
			s.log.Error("sweep panicked",
				zap.String("target", r.name),
				zap.Any("panic", p),
				zap.Stack("stack"))
			return
		}
		s.metrics.Swept(r.name, time.Since(start))
	}()
	r.runs.Add(1)
	r.target.Maintain()
}

// reschedule puts r back at a fixed rate. A registration that fell behind
// skips the missed slots instead of running back to back.
func (s *Sweeper) reschedule(r *Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || r.cancelled.Load() {
		return
	}
	now := time.Now()
	next := r.next.Add(r.period)
	if !next.After(now) {
		next = now.Add(r.period)
	}
	r.next = next
	heap.Push(&s.queue, r)
}

func (s *Sweeper) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Registration is one scheduled target.
type Registration struct {
	s      *Sweeper
	name   string
	target Maintainer
	period time.Duration

	next  time.Time // guarded by s.mu
	index int       // heap position, -1 when not queued; guarded by s.mu

	cancelled atomic.Bool
	runs      atomic.Uint64
}

// Cancel stops future passes for this registration, including one already
// due but not yet started. It never waits for a running pass and never
// touches the target. It reports whether this call did the cancelling.
func (r *Registration) Cancel() bool {
	if !r.cancelled.CompareAndSwap(false, true) {
		return false
	}
	s := r.s
	s.mu.Lock()
	if r.index >= 0 {
		heap.Remove(&s.queue, r.index)
	}
	s.mu.Unlock()
	s.log.Debug("sweep cancelled", zap.String("target", r.name))
	return true
}

// Cancelled reports whether Cancel was called.
func (r *Registration) Cancelled() bool { return r.cancelled.Load() }

// Runs returns how many passes have started.
func (r *Registration) Runs() uint64 { return r.runs.Load() }

// Period returns the fixed rate.
func (r *Registration) Period() time.Duration { return r.period }

// Name returns the label given to Schedule.
func (r *Registration) Name() string { return r.name }
