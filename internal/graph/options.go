package graph

import (
	"time"

	"github.com/dyike/CortexResearch/models"
)

// FatalFunc reports whether the run must stop after stage completed.
type FatalFunc func(stage string, state *models.ResearchState) bool

type options struct {
	name         string
	stageTimeout time.Duration
	maxSteps     int
	fatal        FatalFunc
	finalizer    UpdateFunc
	hooks        []Hook
}

// Option configures a Runnable at Compile time or a single Invoke call.
type Option func(*options)

// WithName names the compiled graph in eino callbacks and the devops
// debugger. Only honored at Compile time.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithStageTimeout bounds every stage call. Zero disables the bound.
func WithStageTimeout(d time.Duration) Option {
	return func(o *options) { o.stageTimeout = d }
}

// WithMaxSteps bounds the number of stage invocations in one run. The
// bound is never lower than one visit of every stage per revision round,
// so a run always gets to spend its whole revision cap.
func WithMaxSteps(n int) Option {
	return func(o *options) { o.maxSteps = n }
}

// WithFatalPredicate stops the run at END as soon as fn reports true.
func WithFatalPredicate(fn FatalFunc) Option {
	return func(o *options) { o.fatal = fn }
}

// WithFinalizer installs an update merged whenever the run reaches END.
func WithFinalizer(fn UpdateFunc) Option {
	return func(o *options) { o.finalizer = fn }
}

// WithHooks appends execution observers.
func WithHooks(hooks ...Hook) Option {
	return func(o *options) {
		for _, h := range hooks {
			if h != nil {
				o.hooks = append(o.hooks, h)
			}
		}
	}
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) with(opts []Option) options {
	o.hooks = append([]Hook(nil), o.hooks...)
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) graphName() string {
	if o.name == "" {
		return "pipeline"
	}
	return o.name
}
