package sweeper

import "time"

// Metrics receives sweeper observability signals. Implementations must be
// safe for concurrent use.
type Metrics interface {
	// Swept reports a completed pass for a target and how long it took.
	Swept(target string, d time.Duration)
	// Failed reports a pass that panicked.
	Failed(target string)
}

// NoopMetrics discards every signal.
type NoopMetrics struct{}

func (NoopMetrics) Swept(string, time.Duration) {}
func (NoopMetrics) Failed(string)               {}

var _ Metrics = NoopMetrics{}
