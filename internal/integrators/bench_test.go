package integrators

import (
	"context"
	"testing"
)

func BenchmarkDormandPrince5Solve(b *testing.B) {
	s := NewSolver(DefaultConfig())
	yf := make([]float64, 2)
	y0 := []float64{1, 0}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Solve(ctx, harmonic, y0, 0, 10, yf, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDormandPrince5DenseOutput(b *testing.B) {
	s := NewSolver(DefaultConfig())
	yf := make([]float64, 2)
	y0 := []float64{1, 0}
	interp := NewInterpolant(2)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Solve(ctx, harmonic, y0, 0, 10, yf, interp); err != nil {
			b.Fatal(err)
		}
	}
}
