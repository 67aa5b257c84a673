package opt

import (
	"errors"
	"math"
	"testing"
)

// Sphere function: f(x) = sum(x_i^2), minimum at origin
func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func TestMayflyAdapterOnSphere(t *testing.T) {
	optimizer := NewMayfly(100, 20, 42)

	best, cost, err := optimizer.Minimize(Problem{Eval: sphere, Lower: -10, Upper: 10, Dim: 3})
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if len(best) != 3 {
		t.Fatalf("Expected 3 parameters, got %d", len(best))
	}
	if cost > 0.1 {
		t.Errorf("Expected cost near 0, got %f", cost)
	}
	for i, v := range best {
		if math.Abs(v) > 1.0 {
			t.Errorf("Parameter %d = %f, expected near 0", i, v)
		}
	}
}

func TestMayflyAdapterDeterministic(t *testing.T) {
	p := Problem{Eval: sphere, Lower: -5, Upper: 5, Dim: 2}

	_, cost1, err := NewMayfly(50, 20, 123).Minimize(p)
	if err != nil {
		t.Fatal(err)
	}
	_, cost2, err := NewMayfly(50, 20, 123).Minimize(p)
	if err != nil {
		t.Fatal(err)
	}
	if cost1 != cost2 {
		t.Errorf("Non-deterministic: cost1=%f, cost2=%f", cost1, cost2)
	}
}

func TestMayflyAdapterStaysInBounds(t *testing.T) {
	// Minimum of (x-3)^2 lies outside [0, 1]; the answer must sit on the bound.
	shifted := func(x []float64) float64 {
		if x[0] < 0 || x[0] > 1 {
			t.Errorf("objective saw out-of-bounds position %f", x[0])
		}
		return (x[0] - 3) * (x[0] - 3)
	}

	best, _, err := NewMayfly(30, 20, 7).Minimize(Problem{Eval: shifted, Lower: 0, Upper: 1, Dim: 1})
	if err != nil {
		t.Fatal(err)
	}
	if best[0] < 0 || best[0] > 1 {
		t.Errorf("result %f outside bounds", best[0])
	}
}

func TestProblemValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Problem
	}{
		{"nil eval", Problem{Lower: 0, Upper: 1, Dim: 1}},
		{"zero dim", Problem{Eval: sphere, Lower: 0, Upper: 1}},
		{"inverted bounds", Problem{Eval: sphere, Lower: 1, Upper: 0, Dim: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := NewMayfly(1, 1, 1).Minimize(tt.p); !errors.Is(err, ErrInvalidProblem) {
				t.Errorf("expected ErrInvalidProblem, got %v", err)
			}
		})
	}
}
