package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/stepper/internal/ir"
)

const metricsPrefix = "stepper_engine_"

var heightBuckets = []float64{1, 2, 3, 4, 5, 6, 8, 16, 32, 64}

// Metrics groups the engine's collectors.
type Metrics struct {
	Transactions  *prometheus.CounterVec
	Invocations   *prometheus.CounterVec
	DepthExceeded prometheus.Counter
	StackHeight   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "transactions_total",
			Help: "Executed transactions by final status.",
		}, []string{"status"}),
		Invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "invocations_total",
			Help: "Program frames entered, by stack height.",
		}, []string{"height"}),
		DepthExceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "depth_exceeded_total",
			Help: "Nested invocations rejected by the stack height ceiling.",
		}),
		StackHeight: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricsPrefix + "max_stack_height",
			Help:    "Deepest stack height reached per transaction.",
			Buckets: heightBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Transactions, m.Invocations, m.DepthExceeded, m.StackHeight)
	}
	return m
}

func (m *Metrics) observe(rec ir.TxRecord) {
	m.Transactions.WithLabelValues(rec.Status).Inc()
	m.StackHeight.Observe(float64(rec.MaxHeight))
}
