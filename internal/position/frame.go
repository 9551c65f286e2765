package position

import (
	"fmt"
	"math"
)

// collinearTolerance bounds |cross(S2', S3')| relative to |S2'|·|S3'|, i.e.
// the sine of the angle at station 1.
const collinearTolerance = 1e-9

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Norm is the Euclidean length of p.
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Dist is the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Cross is the z component of p × q.
func (p Point) Cross(q Point) float64 {
	return p.X*q.Y - p.Y*q.X
}

func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Station is a fixed reference receiver.
type Station struct {
	Label string `json:"label"`
	Point
}

// Baseline is the line through stations 1 and 2 in implicit form
// A·x + B·y + C = 0.
type Baseline struct {
	A, B, C float64
}

// Eval returns A·x + B·y + C.
func (l Baseline) Eval(p Point) float64 {
	return l.A*p.X + l.B*p.Y + l.C
}

// Frame is the station layout translated so that station 1 is the origin.
type Frame struct {
	Stations [3]Station
	Origin   Point
	// S2 and S3 are stations 2 and 3 relative to station 1.
	S2, S3 Point
	// Baseline in the original frame.
	Baseline Baseline
}

// NewFrame validates the station layout and builds its translated frame.
func NewFrame(s1, s2, s3 Station) (Frame, error) {
	f := Frame{
		Stations: [3]Station{s1, s2, s3},
		Origin:   s1.Point,
		S2:       s2.Sub(s1.Point),
		S3:       s3.Sub(s1.Point),
		Baseline: Baseline{
			A: s1.Y - s2.Y,
			B: s2.X - s1.X,
			C: s1.X*s2.Y - s1.Y*s2.X,
		},
	}

	for i, s := range f.Stations {
		if !s.IsFinite() {
			return Frame{}, fmt.Errorf("%w: station %d (%s) has non-finite coordinates", ErrConfiguration, i+1, s.Label)
		}
	}
	if f.S2.Norm() == 0 {
		return Frame{}, fmt.Errorf("%w: stations %s and %s coincide", ErrConfiguration, s1.Label, s2.Label)
	}
	if f.S3.Norm() == 0 || s3.Point == s2.Point {
		return Frame{}, fmt.Errorf("%w: station %s coincides with another station", ErrConfiguration, s3.Label)
	}
	if math.Abs(f.S2.Cross(f.S3)) <= collinearTolerance*f.S2.Norm()*f.S3.Norm() {
		return Frame{}, fmt.Errorf("%w: stations %s, %s, %s are collinear", ErrConfiguration, s1.Label, s2.Label, s3.Label)
	}
	return f, nil
}

// ToLocal translates p from the original frame into the station-1 frame.
func (f Frame) ToLocal(p Point) Point { return p.Sub(f.Origin) }

// ToGlobal translates p from the station-1 frame back to the original frame.
func (f Frame) ToGlobal(p Point) Point { return p.Add(f.Origin) }

// LocalBaseline is the baseline in the station-1 frame. It passes through
// the origin, so C is zero.
func (f Frame) LocalBaseline() Baseline {
	return Baseline{A: -f.S2.Y, B: f.S2.X}
}
