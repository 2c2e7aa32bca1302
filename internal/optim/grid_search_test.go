package optim

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestGridSearchFindsMinimum(t *testing.T) {
	g := NewGridSearch([]string{"x", "y"}, [][]float64{{-1, 0, 1, 2}, {0, 3, 5}})
	if g.Size() != 12 {
		t.Fatalf("size = %d, want 12", g.Size())
	}

	calls := 0
	params, best, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
		calls++
		return math.Pow(p["x"]-1, 2) + math.Pow(p["y"]-3, 2), nil
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if calls != 12 {
		t.Errorf("evaluated %d points, want 12", calls)
	}
	if best != 0 || params["x"] != 1 || params["y"] != 3 {
		t.Errorf("got %v at %v", best, params)
	}
}

func TestGridSearchSkipsFailures(t *testing.T) {
	g := NewGridSearch([]string{"x"}, [][]float64{{1, 2, 3}})
	params, best, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
		if p["x"] == 3 {
			return 0, errors.New("boom")
		}
		return p["x"], nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if best != 1 || params["x"] != 1 {
		t.Errorf("got %v at %v", best, params)
	}

	_, _, err = g.Search(context.Background(), func(context.Context, map[string]float64) (float64, error) {
		return 0, errors.New("boom")
	})
	if !errors.Is(err, ErrNoCandidate) {
		t.Errorf("expected ErrNoCandidate, got %v", err)
	}
}

func TestGridSearchCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGridSearch([]string{"x"}, [][]float64{{1, 2}})
	_, _, err := g.Search(ctx, func(context.Context, map[string]float64) (float64, error) { return 0, nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
