package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Stage is one node of the pipeline graph. It consumes the whole working set
// and returns a partial update containing only the items it touched.
type Stage[T Item] struct {
	Name string
	Run  func(ctx context.Context, set *Set[T]) ([]T, error)
}

// Graph is a fixed sequence of stages over a keyed working set. Exactly one
// conditional branch exists: after the stage named by gateAfter the run
// short-circuits to the terminal state when no item is eligible. Each stage
// executes at most once per run; there is no cyclical re-entry.
type Graph[T Item] struct {
	name      string
	logger    *slog.Logger
	merge     func(curr, upd T) T
	stages    []Stage[T]
	gateAfter string
}

// NewGraph assembles a pipeline graph. gateAfter names the stage whose
// completion triggers the single eligibility branch.
func NewGraph[T Item](name string, logger *slog.Logger, merge func(curr, upd T) T, gateAfter string, stages []Stage[T]) (*Graph[T], error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("graph %s: no stages", name)
	}
	seen := map[string]bool{}
	gateKnown := false
	for _, st := range stages {
		if st.Name == "" || st.Run == nil {
			return nil, fmt.Errorf("graph %s: stage missing name or run", name)
		}
		if seen[st.Name] {
			return nil, fmt.Errorf("graph %s: duplicate stage %q", name, st.Name)
		}
		seen[st.Name] = true
		if st.Name == gateAfter {
			gateKnown = true
		}
	}
	if gateAfter != "" && !gateKnown {
		return nil, fmt.Errorf("graph %s: gate references unknown stage %q", name, gateAfter)
	}

	return &Graph[T]{
		name:      name,
		logger:    logger,
		merge:     merge,
		stages:    stages,
		gateAfter: gateAfter,
	}, nil
}

// Run drives the working set through every stage in graph order. Stage-level
// errors are contained: the stage contributes nothing and the run continues,
// because partial failure is encoded per item rather than per run. The only
// run-level error is context cancellation between stages.
func (g *Graph[T]) Run(ctx context.Context, initial []T) (*Set[T], error) {
	runID := uuid.NewString()
	logger := g.logger.With("graph", g.name, "run_id", runID)

	set := NewSet(g.merge, initial)
	logger.Info("run started", "items", set.Len())

	for _, st := range g.stages {
		if err := ctx.Err(); err != nil {
			return set, fmt.Errorf("graph %s: %w", g.name, err)
		}

		updates, err := st.Run(ctx, set)
		if err != nil {
			logger.Warn("stage failed, continuing with empty update", "stage", st.Name, "error", err)
		} else {
			set.Apply(updates)
		}

		logger.Debug("stage done",
			"stage", st.Name,
			"items", set.Len(),
			"eligible", len(set.Eligible()))

		if st.Name == g.gateAfter && !set.HasEligible() {
			logger.Info("no eligible items, short-circuiting", "after", st.Name)
			return set, nil
		}
	}

	logger.Info("run complete", "items", set.Len(), "eligible", len(set.Eligible()))
	return set, nil
}
