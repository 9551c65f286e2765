package position

import (
	"fmt"
	"math"
)

// degenerateTolerance bounds |cross(iterate, S2')| relative to the lengths of
// both vectors. Below it the Jacobian is treated as singular.
const degenerateTolerance = 1e-12

// Problem is the circle system in the station-1 frame.
type Problem struct {
	S2, S3     Point
	R1, R2, R3 float64
}

// State is one Newton iterate together with its residuals.
type State struct {
	X, Y float64
	// F0 and F1 are the residuals of the circles around station 1 and 2.
	F0, F1 float64
	Iter   int
}

func newState(p Point, prob Problem) State {
	dx := p.X - prob.S2.X
	dy := p.Y - prob.S2.Y
	return State{
		X:  p.X,
		Y:  p.Y,
		F0: p.X*p.X + p.Y*p.Y - prob.R1*prob.R1,
		F1: dx*dx + dy*dy - prob.R2*prob.R2,
	}
}

func (s State) Point() Point { return Point{X: s.X, Y: s.Y} }

// Residual is f0² + f1².
func (s State) Residual() float64 { return s.F0*s.F0 + s.F1*s.F1 }

// step applies one Newton update scaled by eta.
func step(s State, prob Problem, eta float64) (State, error) {
	cross := s.Y*prob.S2.X - s.X*prob.S2.Y
	if math.Abs(cross) <= degenerateTolerance*s.Point().Norm()*prob.S2.Norm() {
		return s, fmt.Errorf("%w: iterate (%g, %g) is on the baseline at iteration %d", ErrSolverDegenerate, s.X, s.Y, s.Iter)
	}

	c := 1 / (2 * cross)
	dx := s.X - prob.S2.X
	dy := s.Y - prob.S2.Y
	next := Point{
		X: s.X - eta*c*(dy*s.F0-s.Y*s.F1),
		Y: s.Y - eta*c*(-dx*s.F0+s.X*s.F1),
	}
	if !next.IsFinite() {
		return s, fmt.Errorf("%w: non-finite iterate at iteration %d", ErrSolverDegenerate, s.Iter+1)
	}

	ns := newState(next, prob)
	ns.Iter = s.Iter + 1
	return ns, nil
}

// Result is the outcome of a solve. Converged is set when a residual test
// stopped the run; FixedStep never sets it.
type Result struct {
	Point     Point
	State     State
	Converged bool
}

// Policy finds one intersection of the circles around stations 1 and 2.
type Policy interface {
	Name() string
	// Validate reports parameters the policy cannot run with.
	Validate() error
	Solve(prob Problem) (Result, error)
}

// offBaselineSeed is the baseline midpoint rotated a quarter turn about
// station 1. It never lies on the baseline unless S2 is the origin.
func offBaselineSeed(s2 Point) Point {
	return Point{X: (s2.X - s2.Y) / 2, Y: (s2.X + s2.Y) / 2}
}

// ConvergenceDriven runs undamped Newton steps until f0²+f1² <= Epsilon.
type ConvergenceDriven struct {
	Epsilon float64
	MaxIter int
	// Seed overrides the starting point. nil uses a seed off the baseline;
	// the origin always fails with ErrSolverDegenerate.
	Seed *Point
}

func DefaultConvergenceDriven() ConvergenceDriven {
	return ConvergenceDriven{Epsilon: 1e-9, MaxIter: 50}
}

func (c ConvergenceDriven) Name() string { return "convergence" }

func (c ConvergenceDriven) Validate() error {
	if !(c.Epsilon > 0) || c.MaxIter < 1 {
		return fmt.Errorf("%w: convergence policy needs epsilon > 0 and max_iter >= 1, got %g and %d", ErrConfiguration, c.Epsilon, c.MaxIter)
	}
	return nil
}

func (c ConvergenceDriven) Solve(prob Problem) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}

	seed := offBaselineSeed(prob.S2)
	if c.Seed != nil {
		seed = *c.Seed
	}

	var err error
	s := newState(seed, prob)
	for s.Residual() > c.Epsilon {
		if s.Iter >= c.MaxIter {
			return Result{Point: s.Point(), State: s}, fmt.Errorf("%w: residual %g after %d iterations", ErrNonConvergence, s.Residual(), s.Iter)
		}
		if s, err = step(s, prob, 1); err != nil {
			return Result{Point: s.Point(), State: s}, err
		}
	}
	return Result{Point: s.Point(), State: s, Converged: true}, nil
}

// FixedStep runs exactly Iterations damped Newton steps from Seed with no
// residual test. Running time is bounded; accuracy is not guaranteed.
type FixedStep struct {
	Iterations int
	Eta        float64
	Seed       Point
}

func DefaultFixedStep() FixedStep {
	return FixedStep{Iterations: 5, Eta: 0.8, Seed: Point{X: 4.5, Y: 3.0}}
}

func (f FixedStep) Name() string { return "fixed" }

func (f FixedStep) Validate() error {
	if f.Iterations < 1 || !(f.Eta > 0 && f.Eta <= 1) {
		return fmt.Errorf("%w: fixed-step policy needs iterations >= 1 and eta in (0, 1], got %d and %g", ErrConfiguration, f.Iterations, f.Eta)
	}
	if !f.Seed.IsFinite() {
		return fmt.Errorf("%w: fixed-step seed is not finite", ErrConfiguration)
	}
	return nil
}

func (f FixedStep) Solve(prob Problem) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, err
	}

	var err error
	s := newState(f.Seed, prob)
	for range f.Iterations {
		if s, err = step(s, prob, f.Eta); err != nil {
			return Result{Point: s.Point(), State: s}, err
		}
	}
	return Result{Point: s.Point(), State: s}, nil
}
