package position

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func testEstimator(t *testing.T, p Policy) Estimator {
	t.Helper()
	e, err := NewEstimator(testStations, p)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	return e
}

func distancesTo(p Point) (r1, r2, r3 float64) {
	return p.Dist(testStations[0].Point), p.Dist(testStations[1].Point), p.Dist(testStations[2].Point)
}

func TestEstimatePosition_Scenario(t *testing.T) {
	const eps = 0.01
	truth := Point{X: 7, Y: 3}
	r1, r2, r3 := distancesTo(truth)

	if math.Abs(r1-5.385) > 1e-3 || math.Abs(r2-6.708) > 1e-3 || math.Abs(r3-5.385) > 1e-3 {
		t.Fatalf("distances = %.3f, %.3f, %.3f", r1, r2, r3)
	}

	policies := []Policy{
		DefaultConvergenceDriven(),
		DefaultFixedStep(),
		DefaultLeastSquares(),
	}
	for _, p := range policies {
		t.Run(p.Name(), func(t *testing.T) {
			est, err := testEstimator(t, p).EstimatePosition(r1, r2, r3, eps)
			if err != nil {
				t.Fatalf("EstimatePosition: %v", err)
			}
			if math.Abs(est.Position.X-truth.X) > eps || math.Abs(est.Position.Y-truth.Y) > eps {
				t.Errorf("position = (%.4f, %.4f), want (7, 3) within %g", est.Position.X, est.Position.Y, eps)
			}
			if est.Distances != [3]float64{r1, r2, r3} {
				t.Errorf("distances = %v", est.Distances)
			}
			if est.Policy != p.Name() {
				t.Errorf("policy = %q, want %q", est.Policy, p.Name())
			}
		})
	}
}

func TestEstimatePosition_FixedStepLandsOnMirror(t *testing.T) {
	// From the default seed the damped solver converges to the mirror
	// intersection, so the answer comes from the reflection branch.
	r1, r2, r3 := distancesTo(Point{X: 7, Y: 3})
	est, err := testEstimator(t, DefaultFixedStep()).EstimatePosition(r1, r2, r3, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if est.Selection != SelectReflection {
		t.Errorf("selection = %v, want %v", est.Selection, SelectReflection)
	}
	if est.Iterations != 5 {
		t.Errorf("iterations = %d, want 5", est.Iterations)
	}
}

func TestEstimatePosition_ConvergenceGrid(t *testing.T) {
	e := testEstimator(t, DefaultConvergenceDriven())
	const eps = 0.01

	for x := -4.0; x <= 18; x += 1.5 {
		for y := -4.0; y <= 12; y += 1.5 {
			truth := Point{X: x, Y: y}
			r1, r2, r3 := distancesTo(truth)
			est, err := e.EstimatePosition(r1, r2, r3, eps)
			if err != nil {
				t.Errorf("P=%+v: %v", truth, err)
				continue
			}
			if d := est.Position.Dist(truth); d > eps {
				t.Errorf("P=%+v: got %+v (off by %g)", truth, est.Position, d)
			}
		}
	}
}

func TestEstimatePosition_Idempotent(t *testing.T) {
	r1, r2, r3 := distancesTo(Point{X: 7, Y: 3})

	for _, p := range []Policy{DefaultConvergenceDriven(), DefaultFixedStep()} {
		e := testEstimator(t, p)
		first, err := e.EstimatePosition(r1, r2, r3, 0.01)
		if err != nil {
			t.Fatal(err)
		}
		second, err := e.EstimatePosition(r1, r2, r3, 0.01)
		if err != nil {
			t.Fatal(err)
		}
		if math.Float64bits(first.Position.X) != math.Float64bits(second.Position.X) ||
			math.Float64bits(first.Position.Y) != math.Float64bits(second.Position.Y) {
			t.Errorf("%s: %+v != %+v", p.Name(), first.Position, second.Position)
		}
	}
}

func TestEstimatePosition_Concurrent(t *testing.T) {
	e := testEstimator(t, DefaultConvergenceDriven())
	r1, r2, r3 := distancesTo(Point{X: 7, Y: 3})
	want, err := e.EstimatePosition(r1, r2, r3, 0.01)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.EstimatePosition(r1, r2, r3, 0.01)
			if err != nil {
				errs <- err
				return
			}
			if got.Position != want.Position {
				errs <- errors.New("concurrent result differs")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestEstimatePosition_Errors(t *testing.T) {
	r1, r2, r3 := distancesTo(Point{X: 7, Y: 3})

	t.Run("origin seed", func(t *testing.T) {
		p := DefaultConvergenceDriven()
		p.Seed = &Point{}
		_, err := testEstimator(t, p).EstimatePosition(r1, r2, r3, 0.01)
		if !errors.Is(err, ErrSolverDegenerate) {
			t.Errorf("error = %v, want ErrSolverDegenerate", err)
		}
	})

	t.Run("iteration cap", func(t *testing.T) {
		p := ConvergenceDriven{Epsilon: 1e-9, MaxIter: 2}
		_, err := testEstimator(t, p).EstimatePosition(r1, r2, r3, 0.01)
		if !errors.Is(err, ErrNonConvergence) {
			t.Errorf("error = %v, want ErrNonConvergence", err)
		}
	})

	t.Run("non-finite distance", func(t *testing.T) {
		_, err := testEstimator(t, DefaultFixedStep()).EstimatePosition(math.NaN(), r2, r3, 0.01)
		if err == nil {
			t.Error("expected error for NaN distance")
		}
	})
}

func TestNewEstimator_Invalid(t *testing.T) {
	collinear := [3]Station{
		{Label: "a", Point: Point{X: 0, Y: 0}},
		{Label: "b", Point: Point{X: 2, Y: 1}},
		{Label: "c", Point: Point{X: 4, Y: 2}},
	}
	if _, err := NewEstimator(collinear, DefaultFixedStep()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("collinear stations: error = %v, want ErrConfiguration", err)
	}
	if _, err := NewEstimator(testStations, nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("nil policy: error = %v, want ErrConfiguration", err)
	}
	if _, err := NewEstimator(testStations, FixedStep{}); !errors.Is(err, ErrConfiguration) {
		t.Errorf("invalid policy: error = %v, want ErrConfiguration", err)
	}
}
