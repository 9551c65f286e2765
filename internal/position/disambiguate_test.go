package position

import (
	"math"
	"testing"
)

func TestReflect(t *testing.T) {
	f := testFrame(t)
	p := Point{X: 5, Y: 2}

	proj, refl := f.Reflect(p)
	if v := f.LocalBaseline().Eval(proj); math.Abs(v) > 1e-12 {
		t.Errorf("projection not on baseline: Eval = %g", v)
	}
	mid := Point{X: (p.X + refl.X) / 2, Y: (p.Y + refl.Y) / 2}
	if d := mid.Dist(proj); d > 1e-12 {
		t.Errorf("projection is not the midpoint of p and its reflection (off by %g)", d)
	}
	// The reflection keeps the distances to both baseline stations.
	if d := math.Abs(refl.Norm() - p.Norm()); d > 1e-12 {
		t.Errorf("|refl - S1| differs by %g", d)
	}
	if d := math.Abs(refl.Dist(f.S2) - p.Dist(f.S2)); d > 1e-12 {
		t.Errorf("|refl - S2| differs by %g", d)
	}

	_, back := f.Reflect(refl)
	if d := back.Dist(p); d > 1e-12 {
		t.Errorf("double reflection off by %g", d)
	}
}

func TestDisambiguate_ReflectionSymmetry(t *testing.T) {
	f := testFrame(t)
	const eps = 0.01

	truth := Point{X: 7, Y: 3}
	local := f.ToLocal(truth)
	_, mirrorLocal := f.Reflect(local)
	mirror := f.ToGlobal(mirrorLocal)

	r3Truth := truth.Dist(testStations[2].Point)
	r3Mirror := mirror.Dist(testStations[2].Point)

	tests := []struct {
		name      string
		candidate Point
		r3        float64
		want      Point
		wantSel   Selection
	}{
		{"candidate on true side", local, r3Truth, truth, SelectCandidate},
		{"candidate on mirror side", mirrorLocal, r3Truth, truth, SelectReflection},
		{"mirrored target, candidate on true side", local, r3Mirror, mirror, SelectReflection},
		{"mirrored target, candidate on mirror side", mirrorLocal, r3Mirror, mirror, SelectCandidate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, sel := f.Disambiguate(tt.candidate, tt.r3, eps)
			if sel != tt.wantSel {
				t.Errorf("selection = %v, want %v", sel, tt.wantSel)
			}
			if d := got.Dist(tt.want); d > 1e-9 {
				t.Errorf("point = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDisambiguate_Tangent(t *testing.T) {
	f := testFrame(t)

	// Candidate on the baseline and nowhere near r3.
	candidate := Point{X: f.S2.X / 2, Y: f.S2.Y / 2}
	got, sel := f.Disambiguate(candidate, 100, 0.01)
	if sel != SelectTangent {
		t.Fatalf("selection = %v, want %v", sel, SelectTangent)
	}
	if want := f.ToGlobal(candidate); got.Dist(want) > 1e-12 {
		t.Errorf("point = %+v, want %+v", got, want)
	}
}

func TestDisambiguate_KeepsCandidateWhenReflectionFitsWorse(t *testing.T) {
	f := testFrame(t)
	truth := Point{X: 7, Y: 3}
	local := f.ToLocal(truth)

	// r3 overshoots by 0.5: the candidate misses by about 5.6 on squared
	// distance, the mirror point by about 19.
	r3 := truth.Dist(f.Stations[2].Point) + 0.5
	got, sel := f.Disambiguate(local, r3, 0.01)
	if sel != SelectCandidate {
		t.Fatalf("selection = %v, want %v", sel, SelectCandidate)
	}
	if got.Dist(truth) > 1e-12 {
		t.Errorf("point = %+v, want %+v", got, truth)
	}
}

func TestDisambiguate_NegativeErrorUsesAbsoluteValue(t *testing.T) {
	f := testFrame(t)
	local := f.ToLocal(Point{X: 7, Y: 3})

	// Both branches are well inside the r3 circle, so their signed errors
	// are strongly negative. Only the mirror branch (farther from station 3)
	// gets closer to r3.
	got, sel := f.Disambiguate(local, 20, 0.01)
	if sel != SelectReflection {
		t.Fatalf("selection = %v, want %v", sel, SelectReflection)
	}
	_, mirrorLocal := f.Reflect(local)
	if want := f.ToGlobal(mirrorLocal); got.Dist(want) > 1e-12 {
		t.Errorf("point = %+v, want %+v", got, want)
	}
}

func TestSelectionString(t *testing.T) {
	tests := []struct {
		sel  Selection
		want string
	}{
		{SelectCandidate, "candidate"},
		{SelectTangent, "tangent"},
		{SelectReflection, "reflection"},
		{Selection(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.sel.String(); got != tt.want {
			t.Errorf("Selection(%d).String() = %q, want %q", tt.sel, got, tt.want)
		}
	}
}
