package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/cloudwego/eino/compose"
)

// END is the terminal route target.
const END = compose.END

var (
	ErrNoEntryPoint   = errors.New("graph: no entry point")
	ErrUnknownStage   = errors.New("graph: unknown stage")
	ErrDuplicateStage = errors.New("graph: duplicate stage")
	ErrInvalidEdges   = errors.New("graph: invalid outgoing edges")
	ErrEmptyRoutes    = errors.New("graph: branch has no routes")
	ErrUnknownRoute   = errors.New("graph: unknown route label")
	ErrStepLimit      = errors.New("graph: step limit exceeded")
)

// Graph is the mutable pipeline definition. Builder errors are also kept
// and reported again by Compile, so callers may ignore them while wiring.
type Graph struct {
	stages   map[string]Stage
	order    []string
	edges    map[string][]string
	branches map[string][]*Branch
	entry    string
	errs     []error
}

func NewGraph() *Graph {
	return &Graph{
		stages:   map[string]Stage{},
		edges:    map[string][]string{},
		branches: map[string][]*Branch{},
	}
}

func (g *Graph) fail(err error) error {
	g.errs = append(g.errs, err)
	return err
}

func (g *Graph) AddStage(stage Stage) error {
	name := stage.Name()
	if name == "" || name == END || name == compose.START {
		return g.fail(fmt.Errorf("graph: invalid stage name %q", name))
	}
	if _, ok := g.stages[name]; ok {
		return g.fail(fmt.Errorf("%w: %s", ErrDuplicateStage, name))
	}
	g.stages[name] = stage
	g.order = append(g.order, name)
	return nil
}

// AddEdge adds an unconditional edge. to may be END.
func (g *Graph) AddEdge(from, to string) error {
	g.edges[from] = append(g.edges[from], to)
	return nil
}

func (g *Graph) AddBranch(from string, b *Branch) error {
	if b == nil || b.decide == nil {
		return g.fail(fmt.Errorf("graph: nil branch from %s", from))
	}
	g.branches[from] = append(g.branches[from], b)
	return nil
}

func (g *Graph) SetEntryPoint(name string) error {
	g.entry = name
	return nil
}

// Stages lists stage names in insertion order.
func (g *Graph) Stages() []string {
	return slices.Clone(g.order)
}

func (g *Graph) validate() error {
	if len(g.errs) > 0 {
		return errors.Join(g.errs...)
	}
	if g.entry == "" {
		return ErrNoEntryPoint
	}
	if _, ok := g.stages[g.entry]; !ok {
		return fmt.Errorf("%w: entry point %s", ErrUnknownStage, g.entry)
	}
	known := func(name string) bool {
		_, ok := g.stages[name]
		return ok || name == END
	}
	for from, tos := range g.edges {
		if _, ok := g.stages[from]; !ok {
			return fmt.Errorf("%w: edge source %s", ErrUnknownStage, from)
		}
		for _, to := range tos {
			if !known(to) {
				return fmt.Errorf("%w: edge %s -> %s", ErrUnknownStage, from, to)
			}
		}
	}
	for from, bs := range g.branches {
		if _, ok := g.stages[from]; !ok {
			return fmt.Errorf("%w: branch source %s", ErrUnknownStage, from)
		}
		for _, b := range bs {
			if len(b.routes) == 0 {
				return fmt.Errorf("%w: %s", ErrEmptyRoutes, from)
			}
			for label, to := range b.routes {
				if !known(to) {
					return fmt.Errorf("%w: route %s[%s] -> %s", ErrUnknownStage, from, label, to)
				}
			}
			for label := range b.onTake {
				if _, ok := b.routes[label]; !ok {
					return fmt.Errorf("%w: %s has update for %s", ErrUnknownRoute, from, label)
				}
			}
		}
	}
	for _, name := range g.order {
		if n := len(g.edges[name]) + len(g.branches[name]); n != 1 {
			return fmt.Errorf("%w: stage %s has %d", ErrInvalidEdges, name, n)
		}
	}
	return nil
}

// Compile validates the graph and freezes it into a Runnable backed by an
// eino graph. The graph may be modified afterwards without affecting the
// Runnable.
func (g *Graph) Compile(opts ...Option) (*Runnable, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	r := &Runnable{
		entry:    g.entry,
		stages:   make(map[string]Stage, len(g.stages)),
		edges:    make(map[string]string, len(g.edges)),
		branches: make(map[string]*Branch, len(g.branches)),
		order:    slices.Clone(g.order),
		opts:     newOptions(opts),
	}
	for name, s := range g.stages {
		r.stages[name] = s
	}
	for from, tos := range g.edges {
		r.edges[from] = tos[0]
	}
	for from, bs := range g.branches {
		b := bs[0]
		r.branches[from] = &Branch{decide: b.decide, routes: b.Routes(), onTake: make(map[string]UpdateFunc, len(b.onTake))}
		for label, fn := range b.onTake {
			r.branches[from].onTake[label] = fn
		}
	}

	cg := compose.NewGraph[*step, *step](compose.WithGenLocalState[*runState](localState))
	for _, name := range r.order {
		_ = cg.AddLambdaNode(name, compose.InvokableLambda[*step, *step](runStep(r.stages[name]), compose.WithLambdaType(stageType)),
			compose.WithNodeName(name),
			compose.WithStatePreHandler[*step, *runState](prepareStep(name)),
			compose.WithStatePostHandler[*step, *runState](mergeStep),
		)
	}
	_ = cg.AddEdge(compose.START, r.entry)
	for _, name := range r.order {
		_ = cg.AddBranch(name, compose.NewGraphBranch[*step](r.router(name), r.targets(name)))
	}

	compileOpts := []compose.GraphCompileOption{
		compose.WithGraphName(r.opts.graphName()),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
	}
	if r.opts.maxSteps > 0 {
		compileOpts = append(compileOpts, compose.WithMaxRunSteps(r.opts.maxSteps))
	}
	run, err := cg.Compile(context.Background(), compileOpts...)
	if err != nil {
		return nil, fmt.Errorf("graph: compile: %w", err)
	}
	r.run = run
	return r, nil
}
