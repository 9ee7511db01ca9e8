package metrics

import "time"

// ResultLabel enumerates poller tick outcomes for counters.
type ResultLabel string

const (
	ResultReconciled ResultLabel = "reconciled"
	ResultUnchanged  ResultLabel = "unchanged"
	ResultFailed     ResultLabel = "failed"
	ResultCanceled   ResultLabel = "canceled"
)

// Recorder defines observability hooks for repository polling. Implementations
// may forward to Prometheus, OpenTelemetry, etc. The repo argument is the
// repository name.
type Recorder interface {
	ObserveScanDuration(repo string, d time.Duration, success bool)
	ObserveReconcileDuration(repo string, d time.Duration)
	IncTick(repo string, result ResultLabel)
	IncNotification(repo, kind string)
	IncListenerError(repo string)
	SetPackages(repo string, n int)
	SetAuxiliary(repo string, n int)
	IncSinkResult(sink string, success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveScanDuration(string, time.Duration, bool) {}
func (NoopRecorder) ObserveReconcileDuration(string, time.Duration)  {}
func (NoopRecorder) IncTick(string, ResultLabel)                     {}
func (NoopRecorder) IncNotification(string, string)                  {}
func (NoopRecorder) IncListenerError(string)                         {}
func (NoopRecorder) SetPackages(string, int)                         {}
func (NoopRecorder) SetAuxiliary(string, int)                        {}
func (NoopRecorder) IncSinkResult(string, bool)                      {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
