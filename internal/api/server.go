package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dyike/CortexResearch/consts"
	"github.com/dyike/CortexResearch/internal/graph"
	"github.com/dyike/CortexResearch/internal/logging"
	"github.com/dyike/CortexResearch/internal/metrics"
	"github.com/dyike/CortexResearch/models"
	"github.com/dyike/CortexResearch/pkg/dataflows"
)

const (
	MinRevisions = 1
	MaxRevisions = 5
	// ResponseNewsLimit is the number of articles returned by /analyze.
	ResponseNewsLimit = 3
)

// Engine runs research pipelines for the HTTP front.
type Engine interface {
	Propagate(ctx context.Context, ticker string, revisionCap int, opts ...graph.Option) (*models.ResearchState, error)
	ModelName() string
}

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Ticker       string `json:"ticker"`
	MaxRevisions *int   `json:"max_revisions,omitempty"`
}

type errorResponse struct {
	Error  string         `json:"error"`
	Report *models.Report `json:"report,omitempty"`
}

// Server exposes the research pipeline over HTTP.
type Server struct {
	engine   Engine
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics serves g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{engine: engine, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.Health)
	r.Post("/analyze", s.Analyze)
	r.Post("/analyze/stream", s.AnalyzeStream)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))
	}
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// Health handles GET /.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "active",
		"model":  s.engine.ModelName(),
	})
}

// Analyze handles POST /analyze: one full run, answered with its report.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	ticker, revisionCap, err := decodeAnalyzeRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx := graph.ContextWithRunID(r.Context(), "")
	state, err := s.engine.Propagate(ctx, ticker, revisionCap)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, dataflows.ErrInvalidSymbol):
			status = http.StatusBadRequest
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		s.logger.ErrorContext(ctx, "analyze failed", "run_id", graph.RunID(ctx), "ticker", ticker, "error", err)
		resp := errorResponse{Error: err.Error()}
		if state != nil {
			resp.Report = project(ctx, state)
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, project(ctx, state))
}

// AnalyzeStream handles POST /analyze/stream: the run's stage events are
// sent as server-sent events, the last one carrying the report.
func (s *Server) AnalyzeStream(w http.ResponseWriter, r *http.Request) {
	ticker, revisionCap, err := decodeAnalyzeRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := graph.ContextWithRunID(r.Context(), "")
	events := make(chan *models.StageEvent, 16)
	go func() {
		defer close(events)
		hook := graph.NewLoggerCallback(logging.NewNop(), events)
		if _, err := s.engine.Propagate(ctx, ticker, revisionCap, graph.WithHooks(hook)); err != nil {
			s.logger.WarnContext(ctx, "streamed run failed", "run_id", graph.RunID(ctx), "error", err)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Report != nil {
				ev.Report = limitNews(ev.Report, ResponseNewsLimit)
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.ErrorContext(ctx, "encode stage event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

func decodeAnalyzeRequest(r *http.Request) (string, int, error) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", 0, fmt.Errorf("invalid request body: %w", err)
	}
	if err := dataflows.ValidateSymbol(req.Ticker); err != nil {
		return "", 0, err
	}
	revisionCap := consts.DefaultMaxRevisions
	if req.MaxRevisions != nil {
		revisionCap = *req.MaxRevisions
	}
	if revisionCap < MinRevisions || revisionCap > MaxRevisions {
		return "", 0, fmt.Errorf("max_revisions must be between %d and %d, got %d", MinRevisions, MaxRevisions, revisionCap)
	}
	return dataflows.NormalizeSymbol(req.Ticker), revisionCap, nil
}

func project(ctx context.Context, state *models.ResearchState) *models.Report {
	report := state.Project(ResponseNewsLimit)
	report.RunID = graph.RunID(ctx)
	return report
}

func limitNews(r *models.Report, n int) *models.Report {
	if len(r.News) <= n {
		return r
	}
	c := *r
	c.News = r.News[:n]
	return &c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
