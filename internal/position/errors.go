package position

import "errors"

var (
	// ErrSolverDegenerate is returned when the Jacobian of the circle system
	// is singular at the current iterate (the iterate lies on the baseline).
	ErrSolverDegenerate = errors.New("solver degenerate")
	// ErrNonConvergence is returned when a convergence-driven solve runs out
	// of iterations before the residual drops below its tolerance.
	ErrNonConvergence = errors.New("solver did not converge")
	// ErrConfiguration is returned for station layouts the solver cannot use:
	// coincident or collinear stations.
	ErrConfiguration = errors.New("invalid station configuration")
	// ErrNotEnoughStations is returned by Service when fewer than three
	// configured stations have a reading.
	ErrNotEnoughStations = errors.New("not enough stations with readings")
)
