package optim

import (
	"context"
	"errors"
	"math"
)

// ErrNoCandidate is returned when every grid point failed to evaluate.
var ErrNoCandidate = errors.New("optim: no grid point evaluated successfully")

// Objective scores one parameter set; lower is better.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	if len(g.ranges) == 0 {
		return 0
	}
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search evaluates every grid point and returns the best one. Points whose
// objective errors or is NaN are skipped.
func (g *GridSearch) Search(ctx context.Context, evaluate Objective) (map[string]float64, float64, error) {
	best := math.Inf(1)
	var bestParams map[string]float64

	if err := g.searchRecursive(ctx, 0, make(map[string]float64), evaluate, &best, &bestParams); err != nil {
		return bestParams, best, err
	}
	if bestParams == nil {
		return nil, best, ErrNoCandidate
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	evaluate Objective,
	best *float64,
	bestParams *map[string]float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		val, err := evaluate(ctx, current)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}

		if val < *best {
			*best = val
			*bestParams = make(map[string]float64)
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, evaluate, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}
