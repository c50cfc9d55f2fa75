package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "suraksha"

// Metrics counts dispatch cycles and jobs.
type Metrics struct {
	cycles   *prometheus.CounterVec
	jobs     *prometheus.CounterVec
	duration prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "cycles_total",
			Help:      "Number of dispatch cycles by final state.",
		}, []string{"state"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "jobs_total",
			Help:      "Number of notification jobs by channel and result.",
		}, []string{"channel", "result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "cycle_duration_seconds",
			Help:      "Time from alert receipt until every job has settled.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}

// Collectors returns the collectors to register.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.cycles, m.jobs, m.duration}
}

func (m *Metrics) observe(s Summary) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(s.State.String()).Inc()
	m.duration.Observe(s.Duration.Seconds())
	for _, o := range s.Outcomes {
		result := "success"
		if !o.Success {
			result = "failure"
		}
		m.jobs.WithLabelValues(o.Job.Channel.String(), result).Inc()
	}
}
