// Package metrics records per-stage outcomes in the Prometheus text format
// so node_exporter's textfile collector can pick them up.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"edasetup/internal/orchestrator"
)

var states = []orchestrator.StageState{
	orchestrator.StatePending,
	orchestrator.StateSkipped,
	orchestrator.StateDone,
	orchestrator.StateFailed,
	orchestrator.StateBlocked,
}

// Recorder is an orchestrator.Observer backed by its own registry.
type Recorder struct {
	registry *prometheus.Registry
	state    *prometheus.GaugeVec
	duration *prometheus.GaugeVec
	commands *prometheus.CounterVec
	lastRun  prometheus.Gauge
	now      func() time.Time
}

// NewRecorder returns a recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "edasetup_stage_state",
				Help: "1 for the state each stage finished the last run in.",
			},
			[]string{"stage", "state"},
		),
		duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "edasetup_stage_duration_seconds",
				Help: "Time spent in stage actions during the last run.",
			},
			[]string{"stage"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edasetup_stage_commands_total",
				Help: "External commands issued by stage actions.",
			},
			[]string{"stage"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edasetup_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		now: time.Now,
	}
	r.registry.MustRegister(r.state, r.duration, r.commands, r.lastRun)
	return r
}

func (r *Recorder) StageStarted(string, orchestrator.StageState) {}

func (r *Recorder) StageFinished(res orchestrator.Result) {
	for _, st := range states {
		value := 0.0
		if st == res.State {
			value = 1
		}
		r.state.WithLabelValues(res.Stage, string(st)).Set(value)
	}
	r.duration.WithLabelValues(res.Stage).Set(res.Duration.Seconds())
	r.commands.WithLabelValues(res.Stage).Add(float64(res.Commands))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteFile stamps the run time and writes every metric to path atomically.
func (r *Recorder) WriteFile(path string) error {
	r.lastRun.Set(float64(r.now().Unix()))
	return prometheus.WriteToTextfile(path, r.registry)
}
