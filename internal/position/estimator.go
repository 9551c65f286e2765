package position

import (
	"fmt"
	"math"
)

// Estimate is the result of one trilateration.
type Estimate struct {
	Position   Point      `json:"position"`
	Distances  [3]float64 `json:"distances"`
	Iterations int        `json:"iterations"`
	Selection  Selection  `json:"-"`
	Policy     string     `json:"policy"`
}

// Estimator combines a validated station frame with a solver policy. It holds
// no mutable state and is safe for concurrent use.
type Estimator struct {
	frame  Frame
	policy Policy
}

func NewEstimator(stations [3]Station, policy Policy) (Estimator, error) {
	if policy == nil {
		return Estimator{}, fmt.Errorf("%w: no solver policy", ErrConfiguration)
	}
	if err := policy.Validate(); err != nil {
		return Estimator{}, err
	}
	frame, err := NewFrame(stations[0], stations[1], stations[2])
	if err != nil {
		return Estimator{}, err
	}
	return Estimator{frame: frame, policy: policy}, nil
}

func (e Estimator) Frame() Frame   { return e.frame }
func (e Estimator) Policy() Policy { return e.policy }

// EstimatePosition solves for the point at distances r1, r2, r3 from the
// three stations. eps is the disambiguation tolerance on squared distances.
func (e Estimator) EstimatePosition(r1, r2, r3, eps float64) (Estimate, error) {
	for i, r := range [3]float64{r1, r2, r3} {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return Estimate{}, fmt.Errorf("distance %d is not finite: %g", i+1, r)
		}
	}

	prob := Problem{S2: e.frame.S2, S3: e.frame.S3, R1: r1, R2: r2, R3: r3}
	res, err := e.policy.Solve(prob)
	if err != nil {
		return Estimate{}, fmt.Errorf("%s solver: %w", e.policy.Name(), err)
	}

	p, sel := e.frame.Disambiguate(res.Point, r3, eps)
	return Estimate{
		Position:   p,
		Distances:  [3]float64{r1, r2, r3},
		Iterations: res.State.Iter,
		Selection:  sel,
		Policy:     e.policy.Name(),
	}, nil
}
