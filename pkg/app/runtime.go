package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dyike/CortexResearch/config"
	"github.com/dyike/CortexResearch/internal/graph"
	"github.com/dyike/CortexResearch/models"
)

var ErrNoEngine = errors.New("research engine not built")

type EngineBuilder func(ctx context.Context, cfg config.Config) (*Engine, error)

type Option func(*Runtime)

func WithBuilder(builder EngineBuilder) Option {
	return func(r *Runtime) {
		if builder != nil {
			r.builder = builder
		}
	}
}

// WithNotifier receives "engine.reloaded" and "engine.reload_failed"
// events with a JSON payload.
func WithNotifier(fn func(topic, payload string)) Option {
	return func(r *Runtime) {
		r.notify = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHooks attaches hooks to every engine the default builder creates.
func WithHooks(hooks ...graph.Hook) Option {
	return func(r *Runtime) {
		r.hooks = append(r.hooks, hooks...)
	}
}

// Runtime keeps the current engine and rebuilds it whenever the config
// file changes. A failed rebuild leaves the previous engine in place.
type Runtime struct {
	cfgMgr *config.Manager
	engine atomic.Pointer[Engine]

	builder EngineBuilder
	notify  func(string, string)
	logger  *slog.Logger
	hooks   []graph.Hook
	cancel  context.CancelFunc
}

func NewRuntime(ctx context.Context, cfgMgr *config.Manager, opts ...Option) (*Runtime, error) {
	if cfgMgr == nil {
		return nil, fmt.Errorf("config manager is required")
	}

	rt := &Runtime{
		cfgMgr: cfgMgr,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.builder == nil {
		rt.builder = func(ctx context.Context, cfg config.Config) (*Engine, error) {
			return BuildEngine(ctx, cfg, Deps{Logger: rt.logger, Hooks: rt.hooks})
		}
	}

	if err := rt.reload(ctx, cfgMgr.Get()); err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	if err := cfgMgr.Watch(watchCtx, func(cfg config.Config) {
		if err := rt.reload(watchCtx, cfg); err != nil {
			rt.logger.Error("engine reload failed", "error", err)
		}
	}); err != nil {
		cancel()
		return nil, err
	}

	return rt, nil
}

func (r *Runtime) Engine() *Engine {
	return r.engine.Load()
}

// Propagate runs the pipeline on the engine current at call time.
func (r *Runtime) Propagate(ctx context.Context, ticker string, revisionCap int, opts ...graph.Option) (*models.ResearchState, error) {
	e := r.Engine()
	if e == nil {
		return nil, ErrNoEngine
	}
	return e.Graph.Propagate(ctx, ticker, revisionCap, opts...)
}

func (r *Runtime) ModelName() string {
	if e := r.Engine(); e != nil {
		return e.Model
	}
	return ""
}

func (r *Runtime) Close() {
	if r.cancel != nil {
		r.cancel()
	}
}

// UpdateConfigJSON persists a new configuration; the watch callback
// rebuilds the engine from it.
func (r *Runtime) UpdateConfigJSON(jsonStr string) error {
	return r.cfgMgr.UpdateFromJSON(jsonStr)
}

func (r *Runtime) reload(ctx context.Context, cfg config.Config) error {
	engine, err := r.builder(ctx, cfg)
	if err != nil {
		r.notifyFailure(err)
		return err
	}
	r.engine.Store(engine)
	r.notifySuccess(engine)
	return nil
}

func (r *Runtime) notifySuccess(engine *Engine) {
	r.logger.Info("engine ready", "version", engine.Version, "model", engine.Model)
	if r.notify == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"version":  engine.Version,
		"model":    engine.Model,
		"built_at": engine.BuiltAt.UTC().Format(time.RFC3339),
	})
	r.notify("engine.reloaded", string(payload))
}

func (r *Runtime) notifyFailure(err error) {
	if r.notify == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"error": err.Error(),
	})
	r.notify("engine.reload_failed", string(payload))
}
