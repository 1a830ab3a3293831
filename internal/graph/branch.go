package graph

import (
	"context"

	"github.com/dyike/CortexResearch/models"
)

// DecisionFunc picks a route label from the state.
type DecisionFunc func(ctx context.Context, state *models.ResearchState) (string, error)

// UpdateFunc derives an engine-applied update from the state.
type UpdateFunc func(state *models.ResearchState) *models.StateUpdate

// Branch is a conditional edge: after its source stage the engine calls
// decide and follows the route registered for the returned label.
type Branch struct {
	decide DecisionFunc
	routes map[string]string
	onTake map[string]UpdateFunc
}

// NewBranch creates a branch whose routes map labels to stage names or END.
func NewBranch(decide DecisionFunc, routes map[string]string) *Branch {
	r := make(map[string]string, len(routes))
	for label, to := range routes {
		r[label] = to
	}
	return &Branch{decide: decide, routes: r, onTake: map[string]UpdateFunc{}}
}

// OnTake registers an update the engine merges whenever label is taken,
// before moving to the route target.
func (b *Branch) OnTake(label string, fn UpdateFunc) *Branch {
	b.onTake[label] = fn
	return b
}

// Routes returns a copy of the route table.
func (b *Branch) Routes() map[string]string {
	out := make(map[string]string, len(b.routes))
	for k, v := range b.routes {
		out[k] = v
	}
	return out
}
