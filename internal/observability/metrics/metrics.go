package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics exposes counters/histograms for patient chat flows.
type IntakeMetrics struct {
	turnsTotal    *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	consultsTotal *prometheus.CounterVec
	factsTotal    *prometheus.CounterVec
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total processed patient chat turns",
		}, []string{"branch", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "chat",
			Name:      "llm_latency_seconds",
			Help:      "Latency of LLM calls by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		consultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "consultation",
			Name:      "transitions_total",
			Help:      "Total consultation lifecycle transitions",
		}, []string{"transition"}),
		factsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "memory",
			Name:      "facts_stored_total",
			Help:      "Total extracted facts persisted",
		}, []string{"source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.llmLatency, m.consultsTotal, m.factsTotal)
	return m
}

func (m *IntakeMetrics) ObserveTurn(branch, status string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(branch, status).Inc()
}

func (m *IntakeMetrics) ObserveLLMLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *IntakeMetrics) ObserveConsultTransition(transition string) {
	if m == nil {
		return
	}
	m.consultsTotal.WithLabelValues(transition).Inc()
}

func (m *IntakeMetrics) ObserveFactsStored(source string, count int) {
	if m == nil {
		return
	}
	m.factsTotal.WithLabelValues(source).Add(float64(count))
}
