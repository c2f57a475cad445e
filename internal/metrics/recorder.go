// Package metrics provides metrics recording for the update lifecycle and the status bridge.
package metrics

// Event outcomes reported by the update controller.
const (
	OutcomePresented  = "presented"
	OutcomeSuppressed = "suppressed"
	OutcomeViolation  = "violation"
	OutcomeIgnored    = "ignored"
)

// Recorder defines the interface for recording lifecycle and status metrics.
type Recorder interface {
	// ObserveEvent records one lifecycle event and what the controller did with it.
	ObserveEvent(event, outcome string)

	// ObserveTransition records a state change of the update controller.
	ObserveTransition(from, to string)

	// IncContinuationReuse counts continuations invoked after they were consumed or retired.
	IncContinuationReuse(kind string)

	// SetPassing records the latest aggregate passing flag and item count.
	SetPassing(passing bool, items int)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveEvent does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveEvent(_, _ string) {}

// ObserveTransition does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveTransition(_, _ string) {}

// IncContinuationReuse does nothing in the no-op recorder.
func (n *NoopRecorder) IncContinuationReuse(_ string) {}

// SetPassing does nothing in the no-op recorder.
func (n *NoopRecorder) SetPassing(_ bool, _ int) {}
