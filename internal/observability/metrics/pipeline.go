package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics counts bill pipeline outcomes per backend and stage.
type PipelineMetrics struct {
	billsUploaded  *prometheus.CounterVec
	stageOutcomes  *prometheus.CounterVec
	syncRetries    *prometheus.CounterVec
	aiCallDuration *prometheus.HistogramVec
}

var (
	pipelineOnce sync.Once
	pipeline     *PipelineMetrics
)

// Pipeline returns the process-wide pipeline metrics, registering them on
// first use against the default registerer.
func Pipeline() *PipelineMetrics {
	pipelineOnce.Do(func() {
		pipeline = newPipelineMetrics(prometheus.DefaultRegisterer)
	})
	return pipeline
}

func newPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		billsUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billmunshi_bills_uploaded_total",
			Help: "Bills created by intake, including split PDF pages.",
		}, []string{"backend", "kind"}),
		stageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billmunshi_pipeline_stage_total",
			Help: "Pipeline stage outcomes.",
		}, []string{"stage", "outcome"}),
		syncRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billmunshi_sync_token_refresh_total",
			Help: "Sync requests retried after an OAuth token refresh.",
		}, []string{"backend"}),
		aiCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "billmunshi_ai_extraction_seconds",
			Help:    "Latency of AI extraction calls.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"outcome"}),
	}

	for _, collector := range []prometheus.Collector{
		m.billsUploaded, m.stageOutcomes, m.syncRetries, m.aiCallDuration,
	} {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			// Anything else is a conflicting metric definition.
			panic(err)
		}
	}
	return m
}

func (m *PipelineMetrics) BillUploaded(backend, kind string) {
	if m == nil {
		return
	}
	m.billsUploaded.WithLabelValues(backend, kind).Inc()
}

func (m *PipelineMetrics) StageOutcome(stage, outcome string) {
	if m == nil {
		return
	}
	m.stageOutcomes.WithLabelValues(stage, outcome).Inc()
}

func (m *PipelineMetrics) TokenRefreshRetry(backend string) {
	if m == nil {
		return
	}
	m.syncRetries.WithLabelValues(backend).Inc()
}

func (m *PipelineMetrics) ObserveAICall(seconds float64, outcome string) {
	if m == nil {
		return
	}
	m.aiCallDuration.WithLabelValues(outcome).Observe(seconds)
}
