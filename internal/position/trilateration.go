package position

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// LeastSquares minimizes the squared range error to all three stations with
// gonum/optimize. It starts once on each side of the baseline and keeps the
// lower minimum.
type LeastSquares struct {
	MaxIter int
	// Tolerance bounds the root of the summed squared range errors at the
	// minimum. Above it the run ended in a local minimum or the ranges do
	// not agree, and Solve fails with ErrNonConvergence.
	Tolerance float64
}

func DefaultLeastSquares() LeastSquares {
	return LeastSquares{MaxIter: 200, Tolerance: 0.1}
}

func (l LeastSquares) Name() string { return "lsq" }

func (l LeastSquares) Validate() error {
	if l.MaxIter < 1 || !(l.Tolerance > 0) || math.IsInf(l.Tolerance, 1) {
		return fmt.Errorf("%w: least-squares policy needs max_iter >= 1 and a finite tolerance > 0, got %d and %g", ErrConfiguration, l.MaxIter, l.Tolerance)
	}
	return nil
}

// rangeErrors fills e with the range error to each station at x.
func rangeErrors(e, x []float64, centers [3]Point, radii [3]float64) {
	for i, c := range centers {
		e[i] = math.Hypot(x[0]-c.X, x[1]-c.Y) - radii[i]
	}
}

func (l LeastSquares) Solve(prob Problem) (Result, error) {
	if err := l.Validate(); err != nil {
		return Result{}, err
	}

	centers := [3]Point{{}, prob.S2, prob.S3}
	radii := [3]float64{prob.R1, prob.R2, prob.R3}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			var e [3]float64
			rangeErrors(e[:], x, centers, radii)
			return floats.Dot(e[:], e[:])
		},
		Grad: func(g, x []float64) {
			g[0], g[1] = 0, 0
			for i, c := range centers {
				dx := x[0] - c.X
				dy := x[1] - c.Y
				dist := math.Hypot(dx, dy)
				if dist == 0 {
					continue
				}
				k := 2 * (dist - radii[i]) / dist
				g[0] += k * dx
				g[1] += k * dy
			}
		},
	}
	settings := &optimize.Settings{MajorIterations: l.MaxIter}

	seed := offBaselineSeed(prob.S2)
	var (
		best    *optimize.Result
		lastErr error
	)
	for _, start := range [2]Point{seed, prob.S2.Sub(seed)} {
		result, err := optimize.Minimize(problem, []float64{start.X, start.Y}, settings, nil)
		if result == nil {
			return Result{}, fmt.Errorf("least squares: %w", err)
		}
		if err != nil {
			lastErr = err
		} else if result.Status == optimize.IterationLimit {
			lastErr = fmt.Errorf("hit %d iterations", l.MaxIter)
		}
		if best == nil || result.F < best.F {
			best = result
		}
	}

	p := Point{X: best.X[0], Y: best.X[1]}
	if !p.IsFinite() {
		return Result{}, fmt.Errorf("%w: least squares produced a non-finite point", ErrSolverDegenerate)
	}
	s := newState(p, prob)
	s.Iter = best.Stats.MajorIterations
	res := Result{Point: p, State: s}

	var e [3]float64
	rangeErrors(e[:], best.X, centers, radii)
	if r := floats.Norm(e[:], 2); r > l.Tolerance {
		if lastErr != nil {
			return res, fmt.Errorf("%w: least squares residual %g above %g: %v", ErrNonConvergence, r, l.Tolerance, lastErr)
		}
		return res, fmt.Errorf("%w: least squares residual %g above %g", ErrNonConvergence, r, l.Tolerance)
	}
	res.Converged = true
	return res, nil
}
