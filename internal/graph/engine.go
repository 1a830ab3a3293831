package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"

	"github.com/dyike/CortexResearch/models"
)

// Runnable is a compiled, immutable pipeline. Invoke may be called from
// several goroutines at once; each call owns its own state.
type Runnable struct {
	entry    string
	stages   map[string]Stage
	edges    map[string]string
	branches map[string]*Branch
	order    []string
	opts     options
	run      compose.Runnable[*step, *step]
}

// runState is the eino local state of one Invoke call.
type runState struct {
	state *models.ResearchState
	opts  options
	hooks multiHook
	steps int
	next  string
	err   error
}

// step flows between graph nodes. The pre-handler fills in the snapshot
// a stage runs on, the stage fills in what it produced.
type step struct {
	stage   string
	state   *models.ResearchState
	timeout time.Duration
	update  *models.StateUpdate
	err     error
	elapsed time.Duration
}

type runStateKey struct{}

// stageType tags stage nodes in eino RunInfo.
const stageType = "Stage"

func localState(ctx context.Context) *runState {
	if rs, ok := ctx.Value(runStateKey{}).(*runState); ok {
		return rs
	}
	return &runState{state: models.NewResearchState("", 0)}
}

// Stages lists the compiled stage names in insertion order.
func (r *Runnable) Stages() []string {
	return slices.Clone(r.order)
}

// Invoke runs the pipeline from the entry point until END.
//
// The returned state is never nil. On ErrStepLimit or context
// cancellation it holds everything merged up to that point.
func (r *Runnable) Invoke(ctx context.Context, initial *models.ResearchState, opts ...Option) (*models.ResearchState, error) {
	o := r.opts.with(opts)
	state := initial.Clone()
	if state == nil {
		state = models.NewResearchState("", 0)
	}
	rs := &runState{state: state, opts: o, hooks: multiHook(o.hooks), next: r.entry}

	limit := r.stepLimit(o.maxSteps, state.RevisionCap)
	_, err := r.run.Invoke(context.WithValue(ctx, runStateKey{}, rs), &step{},
		compose.WithCallbacks(stageObserver(rs.hooks)),
		compose.WithRuntimeMaxSteps(limit),
	)

	switch {
	case err == nil:
		if o.finalizer != nil {
			rs.state = rs.state.Merge(o.finalizer(rs.state))
		}
	case rs.err != nil:
		err = rs.err
	case ctx.Err() != nil:
		err = ctx.Err()
	case errors.Is(err, compose.ErrExceedMaxSteps):
		err = fmt.Errorf("%w: %d steps, next stage %s", ErrStepLimit, rs.steps, rs.next)
	default:
		err = fmt.Errorf("graph: %w", err)
	}
	rs.hooks.OnFinish(ctx, rs.state, err)
	return rs.state, err
}

// stepLimit raises maxSteps to one visit of every stage per revision
// round.
func (r *Runnable) stepLimit(maxSteps, revisionCap int) int {
	revisions := max(revisionCap, 0)
	n := max(len(r.order), 1)
	if revisions > math.MaxInt/n-1 {
		return math.MaxInt
	}
	return max(maxSteps, (revisions+1)*n)
}

func prepareStep(name string) compose.StatePreHandler[*step, *runState] {
	return func(_ context.Context, _ *step, rs *runState) (*step, error) {
		rs.steps++
		return &step{stage: name, state: rs.state.Clone(), timeout: rs.opts.stageTimeout}, nil
	}
}

func runStep(stage Stage) compose.InvokeWOOpt[*step, *step] {
	return func(ctx context.Context, in *step) (*step, error) {
		start := time.Now()
		u, err := runStage(ctx, stage, in.state, in.timeout)
		out := *in
		out.update, out.err, out.elapsed = u, err, time.Since(start)
		return &out, nil
	}
}

// mergeStep folds a finished stage into the run state. A stage error is
// recorded as "<stage>: <err>" unless the run itself was cancelled.
func mergeStep(ctx context.Context, out *step, rs *runState) (*step, error) {
	if out.err != nil && ctx.Err() != nil {
		return out, ctx.Err()
	}
	rs.state = rs.state.Merge(out.update)
	if out.err != nil {
		rs.state = rs.state.Merge(models.ErrorUpdate(rs.state, fmt.Sprintf("%s: %v", out.stage, out.err)))
	}
	return out, nil
}

func (r *Runnable) router(from string) compose.GraphBranchCondition[*step] {
	return func(ctx context.Context, _ *step) (to string, err error) {
		perr := compose.ProcessState[*runState](ctx, func(ctx context.Context, rs *runState) error {
			to, err = r.route(ctx, from, rs)
			if err != nil {
				rs.err = err
			}
			rs.next = to
			return nil
		})
		if perr != nil {
			return "", perr
		}
		return to, err
	}
}

func (r *Runnable) route(ctx context.Context, from string, rs *runState) (string, error) {
	if fatal := rs.opts.fatal; fatal != nil && fatal(from, rs.state) {
		rs.state = rs.state.Merge(models.ErrorUpdate(rs.state, "pipeline halted after "+from))
		rs.hooks.OnRoute(ctx, from, "halt", END)
		return END, nil
	}

	b, ok := r.branches[from]
	if !ok {
		to := r.edges[from]
		rs.hooks.OnRoute(ctx, from, "", to)
		return to, nil
	}
	label, err := b.decide(ctx, rs.state.Clone())
	if err != nil {
		return "", fmt.Errorf("graph: branch after %s: %w", from, err)
	}
	to, ok := b.routes[label]
	if !ok {
		return "", fmt.Errorf("%w: %s after %s", ErrUnknownRoute, label, from)
	}
	if fn := b.onTake[label]; fn != nil {
		rs.state = rs.state.Merge(fn(rs.state.Clone()))
	}
	rs.hooks.OnRoute(ctx, from, label, to)
	return to, nil
}

// targets lists every node the branch after from may pick.
func (r *Runnable) targets(from string) map[string]bool {
	out := map[string]bool{END: true}
	if to, ok := r.edges[from]; ok {
		out[to] = true
	}
	if b, ok := r.branches[from]; ok {
		for _, to := range b.routes {
			out[to] = true
		}
	}
	return out
}

func isStageNode(info *callbacks.RunInfo) bool {
	return info != nil && info.Component == compose.ComponentOfLambda && info.Type == stageType
}

// stageObserver drives Hook from the eino callbacks of the stage nodes.
// Events of the graph itself and of chains invoked inside a stage are
// ignored.
func stageObserver(h Hook) callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
			if s, ok := input.(*step); ok && isStageNode(info) {
				h.OnStageStart(ctx, s.stage, s.state)
			}
			return ctx
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
			if s, ok := output.(*step); ok && isStageNode(info) {
				h.OnStageEnd(ctx, s.stage, s.update, s.err, s.elapsed)
			}
			return ctx
		}).
		Build()
}

type stageResult struct {
	update *models.StateUpdate
	err    error
}

func runStage(ctx context.Context, stage Stage, state *models.ResearchState, timeout time.Duration) (*models.StateUpdate, error) {
	in := state.Clone()
	if timeout <= 0 {
		return safeRun(ctx, stage, in)
	}

	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// buffered so an abandoned stage can still deliver and exit
	done := make(chan stageResult, 1)
	go func() {
		u, err := safeRun(sctx, stage, in)
		done <- stageResult{update: u, err: err}
	}()

	return awaitStage(ctx, sctx, done, timeout)
}

// awaitStage waits for a stage started under sctx. A result already
// delivered when the deadline fires wins over the timeout.
func awaitStage(ctx, sctx context.Context, done <-chan stageResult, timeout time.Duration) (*models.StateUpdate, error) {
	timedOut := func() error { return fmt.Errorf("timed out after %s", timeout) }
	select {
	case res := <-done:
		if res.err != nil && ctx.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded) {
			return res.update, timedOut()
		}
		return res.update, res.err
	case <-sctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		select {
		case res := <-done:
			if res.err == nil {
				return res.update, nil
			}
		default:
		}
		return nil, timedOut()
	}
}

func safeRun(ctx context.Context, stage Stage, state *models.ResearchState) (u *models.StateUpdate, err error) {
	defer func() {
		if p := recover(); p != nil {
			u, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	return stage.Run(ctx, state)
}
