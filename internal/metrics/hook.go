package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dyike/CortexResearch/internal/graph"
	"github.com/dyike/CortexResearch/models"
)

// Hook exports engine progress as Prometheus metrics.
type Hook struct {
	graph.BaseHook

	stageRuns     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	routes        *prometheus.CounterVec
	runs          *prometheus.CounterVec
	revisions     prometheus.Histogram
}

var _ graph.Hook = (*Hook)(nil)

// NewHook creates the collectors and registers them with reg.
func NewHook(reg prometheus.Registerer) (*Hook, error) {
	h := &Hook{
		stageRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cortex",
				Name:      "stage_runs_total",
				Help:      "Stage executions by outcome.",
			},
			[]string{"stage", "outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cortex",
				Name:      "stage_duration_seconds",
				Help:      "Stage wall time.",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		routes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cortex",
				Name:      "routes_total",
				Help:      "Branch decisions by label.",
			},
			[]string{"from", "label"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cortex",
				Name:      "runs_total",
				Help:      "Finished research runs by outcome.",
			},
			[]string{"outcome"},
		),
		revisions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cortex",
			Name:      "run_revisions",
			Help:      "Revision rounds used per run.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
	}
	for _, c := range []prometheus.Collector{h.stageRuns, h.stageDuration, h.routes, h.runs, h.revisions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hook) OnStageEnd(_ context.Context, stage string, _ *models.StateUpdate, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.stageRuns.WithLabelValues(stage, outcome).Inc()
	h.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (h *Hook) OnRoute(_ context.Context, from, label, _ string) {
	if label == "" {
		return
	}
	h.routes.WithLabelValues(from, label).Inc()
}

func (h *Hook) OnFinish(_ context.Context, state *models.ResearchState, err error) {
	outcome := "completed"
	switch {
	case err != nil:
		outcome = "error"
	case state == nil:
		outcome = "error"
	case len(state.Errors) > 0:
		outcome = "degraded"
	}
	h.runs.WithLabelValues(outcome).Inc()
	if state != nil {
		h.revisions.Observe(float64(state.RevisionCount))
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
