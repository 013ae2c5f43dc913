package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewPipelineMetricsToleratesDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	newPipelineMetrics(reg)
	m := newPipelineMetrics(reg)

	m.BillUploaded("tally", "vendor")
	m.StageOutcome("analysis", "success")
}

func TestNewPipelineMetricsPanicsOnConflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	conflict := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billmunshi_bills_uploaded_total",
		Help: "Conflicting definition without labels.",
	})
	if err := reg.Register(conflict); err != nil {
		t.Fatalf("register conflict: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on conflicting registration")
		}
	}()
	newPipelineMetrics(reg)
}
