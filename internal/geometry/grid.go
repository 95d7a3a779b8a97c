package geometry

import (
	"math"
	"sort"
)

// Phi-grid scoring constants
const (
	// gridSectionTolerance is the acceptance band around a golden section,
	// as a fraction of the enclosing span.
	gridSectionTolerance = 0.08

	// minGridRects is the minimum number of cells for a subdivision.
	minGridRects = 2
)

// goldenSections are the golden sections of a unit span: 1−1/φ and 1/φ.
var goldenSections = [2]float64{1 - 1/Phi, 1 / Phi}

// PhiGridScore scores a rectangular subdivision for golden-section division
// lines. The interior cell edges are projected onto the enclosing bounds as
// span fractions and each is scored by proximity to 1/φ or 1−1/φ; the score
// is the mean over all interior lines. ratio is the mean long/short split of
// the matched lines (≈φ for a true phi grid), 0 when nothing matches.
func PhiGridScore(rects []Rect) (score, ratio float64) {
	if len(rects) < minGridRects {
		return 0, 0
	}

	usable := make([]Rect, 0, len(rects))
	for _, r := range rects {
		if r.W > 0 && r.H > 0 {
			usable = append(usable, r)
		}
	}
	if len(usable) < minGridRects {
		return 0, 0
	}
	bound := BoundRects(usable)
	if bound.W <= 0 || bound.H <= 0 {
		return 0, 0
	}

	var xs, ys []float64
	for _, r := range usable {
		xs = append(xs, r.X, r.X+r.W)
		ys = append(ys, r.Y, r.Y+r.H)
	}
	lines := interiorFractions(xs, bound.X, bound.W)
	lines = append(lines, interiorFractions(ys, bound.Y, bound.H)...)
	if len(lines) == 0 {
		return 0, 0
	}

	var total, matchedRatioSum float64
	matched := 0
	for _, u := range lines {
		best := 0.0
		for _, s := range goldenSections {
			if v := 1 - math.Abs(u-s)/gridSectionTolerance; v > best {
				best = v
			}
		}
		total += best
		if best > 0 {
			matchedRatioSum += math.Max(u, 1-u) / math.Min(u, 1-u)
			matched++
		}
	}

	score = clipUnit(total / float64(len(lines)))
	if matched > 0 {
		ratio = matchedRatioSum / float64(matched)
	}
	return score, ratio
}

// interiorFractions converts edge coordinates along one axis into de-duplicated
// span fractions, dropping edges on (or within 1% of) the enclosing bounds.
func interiorFractions(edges []float64, origin, span float64) []float64 {
	fracs := make([]float64, 0, len(edges))
	for _, e := range edges {
		u := (e - origin) / span
		if u <= 0.01 || u >= 0.99 {
			continue
		}
		fracs = append(fracs, u)
	}
	sort.Float64s(fracs)

	out := fracs[:0]
	for _, u := range fracs {
		if len(out) > 0 && u-out[len(out)-1] < 0.01 {
			continue
		}
		out = append(out, u)
	}
	return out
}
