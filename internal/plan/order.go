package plan

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"
	dagerrors "github.com/stevehiehn/deployseq/internal/errors"
)

// Order returns steps in an order where every step follows all of its
// dependencies. A declared order that is already valid is returned as is;
// otherwise the earliest-declared ready step is taken first.
func Order(steps []Step) ([]Step, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	byName := make(map[string]Step, len(steps))

	for _, s := range steps {
		if err := g.AddVertex(s.Name); err != nil {
			if errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, dagerrors.NewDuplicateStep(s.Name)
			}
			return nil, fmt.Errorf("adding step %q: %w", s.Name, err)
		}
		byName[s.Name] = s
	}

	for _, s := range steps {
		for _, dep := range s.Dependencies() {
			err := g.AddEdge(dep, s.Name)
			switch {
			case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
			case errors.Is(err, graph.ErrVertexNotFound):
				return nil, &dagerrors.RunError{
					Type:    dagerrors.UnresolvedDependency,
					StepID:  s.Name,
					Message: fmt.Sprintf("references unknown step %q", dep),
				}
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return nil, &dagerrors.RunError{
					Type:    dagerrors.ValidationError,
					StepID:  s.Name,
					Message: fmt.Sprintf("dependency on %q creates a cycle", dep),
				}
			default:
				return nil, fmt.Errorf("linking %q -> %q: %w", dep, s.Name, err)
			}
		}
	}

	preds, err := g.PredecessorMap()
	if err != nil {
		return nil, fmt.Errorf("building predecessor map: %w", err)
	}

	placed := make(map[string]bool, len(steps))
	order := make([]Step, 0, len(steps))
	for len(order) < len(steps) {
		progressed := false
		for _, s := range steps {
			if placed[s.Name] || !ready(preds[s.Name], placed) {
				continue
			}
			placed[s.Name] = true
			order = append(order, byName[s.Name])
			progressed = true
			break
		}
		if !progressed {
			// unreachable with PreventCycles
			return nil, dagerrors.NewValidationError("steps contain a dependency cycle", "")
		}
	}
	return order, nil
}

func ready(preds map[string]graph.Edge[string], placed map[string]bool) bool {
	for name := range preds {
		if !placed[name] {
			return false
		}
	}
	return true
}
