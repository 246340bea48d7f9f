// Package ops serves the operational endpoints of the worker: metrics,
// health probes and manual triggers for the reconciliation jobs.
package ops

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pixkeys/internal/pixkey/service/reconcile"
	"pixkeys/internal/platform/middleware"
	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/platform/httputil"
)

const checkTimeout = 2 * time.Second

// JobRunner is the part of the reconcile runner the router drives.
type JobRunner interface {
	Jobs() []reconcile.Job
	RunOnce(ctx context.Context, job reconcile.Job) error
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Handler struct {
	gatherer prometheus.Gatherer
	health   healthcheck.Handler
	jobs     JobRunner
	logger   *slog.Logger
}

func New(gatherer prometheus.Gatherer, jobs JobRunner, logger *slog.Logger, checks ...Check) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(10000))
	for _, c := range checks {
		fn := c.Fn
		health.AddReadinessCheck(c.Name, healthcheck.Timeout(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
			defer cancel()
			return fn(ctx)
		}, checkTimeout))
	}
	return &Handler{gatherer: gatherer, health: health, jobs: jobs, logger: logger}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)

	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	r.Get("/live", h.health.LiveEndpoint)
	r.Get("/ready", h.health.ReadyEndpoint)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger(h.logger))
		r.Get("/jobs", h.handleListJobs)
		r.Post("/jobs/{name}/run", h.handleRunJob)
	})
	return r
}

type jobView struct {
	Name     string `json:"name"`
	Interval string `json:"interval"`
}

func (h *Handler) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := h.jobs.Jobs()
	out := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobView{Name: j.Name, Interval: j.Interval.String()})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, job := range h.jobs.Jobs() {
		if job.Name != name {
			continue
		}
		if err := h.jobs.RunOnce(r.Context(), job); err != nil {
			h.logger.ErrorContext(r.Context(), "manual reconcile run failed", "job", name, "error", err)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"job": name, "status": "done"})
		return
	}
	httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "unknown job %q", name))
}
