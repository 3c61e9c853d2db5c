package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "kova"
	metricsSubsystem = "pipeline"
)

// Metrics holds the Prometheus collectors for the enrichment pipeline
type Metrics struct {
	InFlight      prometheus.Gauge
	QueueDepth    prometheus.Gauge
	Workers       prometheus.Gauge
	Enqueued      prometheus.Counter
	Rejected      *prometheus.CounterVec
	Outcomes      *prometheus.CounterVec
	TaskDuration  prometheus.Histogram
	SweepRequeued *prometheus.CounterVec
}

// NewMetrics creates and registers the pipeline metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "tasks_in_flight",
			Help:      "Number of enrichment tasks currently running",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "queue_depth",
			Help:      "Number of tasks waiting for a worker",
		}),
		Workers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "workers",
			Help:      "Size of the worker pool",
		}),
		Enqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "enqueued_total",
			Help:      "Total number of tasks accepted into the queue",
		}),
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "rejected_total",
			Help:      "Total number of tasks refused by the queue",
		}, []string{"reason"}),
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "outcomes_total",
			Help:      "Enrichment task outcomes",
		}, []string{"outcome"}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "task_duration_seconds",
			Help:      "Duration of one enrichment attempt in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}),
		SweepRequeued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "sweep_requeued_total",
			Help:      "Records re-admitted by the sweeper",
		}, []string{"kind"}),
	}
}
