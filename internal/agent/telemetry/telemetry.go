package telemetry

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arashpm/reporter/config"
)

// Telemetry records pipeline metrics for the /metrics endpoint.
type Telemetry struct {
	config config.TelemetryConfig
	logger *log.Logger

	runsStarted   *prometheus.CounterVec
	runsFinished  *prometheus.CounterVec
	runDuration   prometheus.Histogram
	stepDuration  *prometheus.HistogramVec
	sectionFailed prometheus.Counter
	toolCalls     *prometheus.CounterVec
	llmRequests   *prometheus.CounterVec
}

// NewTelemetry creates a telemetry instance and registers its collectors
// with the default prometheus registry.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_runs_started_total",
			Help: "Report pipeline runs started.",
		}, []string{"format"}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_runs_finished_total",
			Help: "Report pipeline runs finished, by terminal status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reporter_run_duration_seconds",
			Help:    "End-to-end pipeline run duration.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reporter_step_duration_seconds",
			Help:    "Per-step execution duration, by worker kind.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"worker"}),
		sectionFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reporter_section_failures_total",
			Help: "Parallel report sections replaced by failure placeholders.",
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_tool_calls_total",
			Help: "Research tool invocations, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reporter_llm_requests_total",
			Help: "Generative backend calls, by outcome.",
		}, []string{"outcome"}),
	}

	if cfg.Enabled {
		prometheus.MustRegister(t.runsStarted, t.runsFinished, t.runDuration,
			t.stepDuration, t.sectionFailed, t.toolCalls, t.llmRequests)
	}
	return t
}

func (t *Telemetry) RecordRunStarted(format string) {
	if !t.config.Enabled {
		return
	}
	t.runsStarted.WithLabelValues(format).Inc()
}

func (t *Telemetry) RecordRunFinished(status string, elapsed time.Duration) {
	if !t.config.Enabled {
		return
	}
	t.runsFinished.WithLabelValues(status).Inc()
	t.runDuration.Observe(elapsed.Seconds())
	if t.config.PeriodicLogs {
		t.logger.Printf("run finished: status=%s duration=%v", status, elapsed)
	}
}

func (t *Telemetry) RecordStep(worker string, elapsed time.Duration) {
	if !t.config.Enabled {
		return
	}
	t.stepDuration.WithLabelValues(worker).Observe(elapsed.Seconds())
}

func (t *Telemetry) RecordSectionFailure() {
	if !t.config.Enabled {
		return
	}
	t.sectionFailed.Inc()
}

func (t *Telemetry) RecordToolCall(tool string, err error) {
	if !t.config.Enabled {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	t.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (t *Telemetry) RecordLLMRequest(err error) {
	if !t.config.Enabled {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	t.llmRequests.WithLabelValues(outcome).Inc()
}
