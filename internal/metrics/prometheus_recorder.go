package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "pkgrepo"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	scanDuration      *prom.HistogramVec
	reconcileDuration *prom.HistogramVec
	ticks             *prom.CounterVec
	notifications     *prom.CounterVec
	listenerErrors    *prom.CounterVec
	packages          *prom.GaugeVec
	auxiliary         *prom.GaugeVec
	sinkResults       *prom.CounterVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		scanDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of directory scans",
			Buckets:   prom.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"repository", "result"}),
		reconcileDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of reconciliation passes including notifications",
			Buckets:   prom.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"repository"}),
		ticks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Poller ticks by outcome",
		}, []string{"repository", "result"}),
		notifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications delivered by event kind",
		}, []string{"repository", "kind"}),
		listenerErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "listener_errors_total",
			Help:      "Reconciliation passes interrupted by a listener error",
		}, []string{"repository"}),
		packages: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "packages",
			Help:      "Packages currently registered",
		}, []string{"repository"}),
		auxiliary: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "auxiliary_files",
			Help:      "Auxiliary files currently tracked",
		}, []string{"repository"}),
		sinkResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sink_results_total",
			Help:      "Event sink writes (journal, nats) by result",
		}, []string{"sink", "result"}),
	}
	reg.MustRegister(pr.scanDuration, pr.reconcileDuration, pr.ticks, pr.notifications,
		pr.listenerErrors, pr.packages, pr.auxiliary, pr.sinkResults)
	return pr
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

func (p *PrometheusRecorder) ObserveScanDuration(repo string, d time.Duration, success bool) {
	p.scanDuration.WithLabelValues(repo, resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveReconcileDuration(repo string, d time.Duration) {
	p.reconcileDuration.WithLabelValues(repo).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTick(repo string, result ResultLabel) {
	p.ticks.WithLabelValues(repo, string(result)).Inc()
}

func (p *PrometheusRecorder) IncNotification(repo, kind string) {
	p.notifications.WithLabelValues(repo, kind).Inc()
}

func (p *PrometheusRecorder) IncListenerError(repo string) {
	p.listenerErrors.WithLabelValues(repo).Inc()
}

func (p *PrometheusRecorder) SetPackages(repo string, n int) {
	p.packages.WithLabelValues(repo).Set(float64(n))
}

func (p *PrometheusRecorder) SetAuxiliary(repo string, n int) {
	p.auxiliary.WithLabelValues(repo).Set(float64(n))
}

func (p *PrometheusRecorder) IncSinkResult(sink string, success bool) {
	p.sinkResults.WithLabelValues(sink, resultLabel(success)).Inc()
}
