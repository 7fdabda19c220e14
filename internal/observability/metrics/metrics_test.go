package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestIntakeMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIntakeMetrics(reg)
	m.ObserveTurn("medical_consult", "ok")
	m.ObserveLLMLatency("classify", 0.2)
	m.ObserveConsultTransition("paid")
	m.ObserveFactsStored("patient", 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 4 {
		t.Fatalf("expected 4 metric families, got %d", len(families))
	}
	if got := counterValue(families, "intake_memory_facts_stored_total", "source", "patient"); got != 3 {
		t.Fatalf("expected 3 facts stored, got %v", got)
	}
	if got := counterValue(families, "intake_consultation_transitions_total", "transition", "paid"); got != 1 {
		t.Fatalf("expected 1 paid transition, got %v", got)
	}
}

func counterValue(families []*dto.MetricFamily, name, label, value string) float64 {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return -1
}

func TestIntakeMetricsNilSafe(t *testing.T) {
	var m *IntakeMetrics
	m.ObserveTurn("branch", "status")
	m.ObserveLLMLatency("op", 0.1)
	m.ObserveConsultTransition("ended")
	m.ObserveFactsStored("ai", 1)
}
