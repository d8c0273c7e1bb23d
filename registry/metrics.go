package registry

// Metrics receives registry observability signals.
type Metrics interface {
	// Created reports a newly built entry.
	Created()
	// Reaped reports an entry removed after its owner was collected.
	Reaped()
}

// NoopMetrics discards every signal.
type NoopMetrics struct{}

func (NoopMetrics) Created() {}
func (NoopMetrics) Reaped()  {}

var _ Metrics = NoopMetrics{}
