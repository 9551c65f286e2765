package position

import "math"

// Selection records which intersection the disambiguator kept.
type Selection int

const (
	// SelectCandidate keeps the solver output.
	SelectCandidate Selection = iota
	// SelectTangent returns the projection onto the baseline; the two
	// circles touch and the candidate sits on the line.
	SelectTangent
	// SelectReflection returns the mirror image across the baseline.
	SelectReflection
)

func (s Selection) String() string {
	switch s {
	case SelectCandidate:
		return "candidate"
	case SelectTangent:
		return "tangent"
	case SelectReflection:
		return "reflection"
	default:
		return "unknown"
	}
}

// Reflect returns the projection of p onto the local baseline and the mirror
// image of p across it. p is in the station-1 frame.
func (f Frame) Reflect(p Point) (projection, reflection Point) {
	l := f.LocalBaseline()
	d := l.Eval(p) / (l.A*l.A + l.B*l.B)
	projection = Point{X: p.X - d*l.A, Y: p.Y - d*l.B}
	reflection = Point{X: p.X - 2*d*l.A, Y: p.Y - 2*d*l.B}
	return projection, reflection
}

// rangeError is |‖p − S3'‖² − r3²|.
func (f Frame) rangeError(p Point, r3 float64) float64 {
	dx := p.X - f.S3.X
	dy := p.Y - f.S3.Y
	return math.Abs(dx*dx + dy*dy - r3*r3)
}

// Disambiguate picks between candidate (station-1 frame) and its reflection
// across the baseline using the distance r3 to station 3. The result is in
// the original frame.
//
// The candidate is kept when its squared range error to station 3 is below
// eps. A candidate on the baseline yields its projection. Otherwise the
// reflection is returned only if it fits r3 strictly better than the
// candidate; when neither fits, the candidate is kept rather than swapped
// for a worse point.
func (f Frame) Disambiguate(candidate Point, r3, eps float64) (Point, Selection) {
	projection, reflection := f.Reflect(candidate)

	ec := f.rangeError(candidate, r3)
	if ec < eps {
		return f.ToGlobal(candidate), SelectCandidate
	}
	if math.Abs(f.LocalBaseline().Eval(candidate)) < eps {
		return f.ToGlobal(projection), SelectTangent
	}
	if f.rangeError(reflection, r3) < ec {
		return f.ToGlobal(reflection), SelectReflection
	}
	return f.ToGlobal(candidate), SelectCandidate
}
