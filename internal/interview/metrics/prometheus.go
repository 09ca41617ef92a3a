// Package metrics records session and interviewer-model activity in Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/mockflow-core-poc-v1/server/internal/interview/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements session.Recorder and the interviewer LLM observer.
type PrometheusRecorder struct {
	transitionsTotal *prometheus.CounterVec
	rejectionsTotal  *prometheus.CounterVec
	milestonesTotal  *prometheus.CounterVec
	acksTotal        *prometheus.CounterVec
	speakFailures    prometheus.Counter
	activeSessions   prometheus.Gauge
	endedTotal       *prometheus.CounterVec

	llmRequestsTotal *prometheus.CounterVec
	llmTokensTotal   *prometheus.CounterVec
	llmCostsTotal    *prometheus.CounterVec
	llmDuration      *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the collectors with reg. Passing nil uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &PrometheusRecorder{
		transitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_transitions_total",
				Help: "Stage transitions by origin stage, target stage and kind (requested, forced, skipped)",
			},
			[]string{"from", "to", "kind"},
		),
		rejectionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_rejections_total",
				Help: "Rejected session operations by operation and reason",
			},
			[]string{"op", "reason"},
		),
		milestonesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_stage_milestones_total",
				Help: "Stage time-budget milestones reached",
			},
			[]string{"stage", "pct"},
		),
		acksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_acks_delivered_total",
				Help: "Stage acknowledgements delivered, by delivery path",
			},
			[]string{"path"},
		),
		speakFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "interview_speak_failures_total",
				Help: "Failed direct speak attempts",
			},
		),
		activeSessions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "interview_active_sessions",
				Help: "Sessions currently running",
			},
		),
		endedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_sessions_ended_total",
				Help: "Finished sessions by end reason",
			},
			[]string{"reason"},
		),
		llmRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interviewer_llm_requests_total",
				Help: "Interviewer model calls by model, stage and status",
			},
			[]string{"model", "stage", "status"},
		),
		llmTokensTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interviewer_llm_tokens_total",
				Help: "Tokens used by the interviewer model",
			},
			[]string{"model", "stage", "type"},
		),
		llmCostsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interviewer_llm_costs_total",
				Help: "Interviewer model cost in USD",
			},
			[]string{"model", "stage"},
		),
		llmDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "interviewer_llm_request_duration_seconds",
				Help:    "Duration of interviewer model calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "stage"},
		),
	}
}

func (p *PrometheusRecorder) TransitionCommitted(from, to, kind string) {
	p.transitionsTotal.WithLabelValues(from, to, kind).Inc()
}

func (p *PrometheusRecorder) OperationRejected(op, reason string) {
	p.rejectionsTotal.WithLabelValues(op, reason).Inc()
}

func (p *PrometheusRecorder) MilestoneReached(stage string, pct int) {
	p.milestonesTotal.WithLabelValues(stage, strconv.Itoa(pct)).Inc()
}

func (p *PrometheusRecorder) AckDelivered(path string) {
	p.acksTotal.WithLabelValues(path).Inc()
}

func (p *PrometheusRecorder) SpeakFailed() {
	p.speakFailures.Inc()
}

func (p *PrometheusRecorder) SessionStarted() {
	p.activeSessions.Inc()
}

func (p *PrometheusRecorder) SessionEnded(reason string) {
	p.activeSessions.Dec()
	p.endedTotal.WithLabelValues(reason).Inc()
}

// ObserveLLM records one interviewer model call.
func (p *PrometheusRecorder) ObserveLLM(model, stage string, promptTokens, completionTokens int, cost float64, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.llmRequestsTotal.WithLabelValues(model, stage, status).Inc()
	if success {
		p.llmTokensTotal.WithLabelValues(model, stage, "prompt").Add(float64(promptTokens))
		p.llmTokensTotal.WithLabelValues(model, stage, "completion").Add(float64(completionTokens))
		p.llmCostsTotal.WithLabelValues(model, stage).Add(cost)
	}
	p.llmDuration.WithLabelValues(model, stage).Observe(duration.Seconds())
}

var _ session.Recorder = (*PrometheusRecorder)(nil)
