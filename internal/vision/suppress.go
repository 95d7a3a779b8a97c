package vision

import (
	"math"
	"sort"
)

// DefaultOverlapThreshold is the fraction of the smaller box's area above
// which an intersection suppresses the lower-confidence detection.
const DefaultOverlapThreshold = 0.3

// sortByConfidence orders detections confidence-descending in place, with
// class then center position breaking ties so output order is deterministic.
func sortByConfidence(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		if dets[i].Confidence != dets[j].Confidence {
			return dets[i].Confidence > dets[j].Confidence
		}
		if dets[i].Class != dets[j].Class {
			return dets[i].Class < dets[j].Class
		}
		if dets[i].Center.X != dets[j].Center.X {
			return dets[i].Center.X < dets[j].Center.X
		}
		return dets[i].Center.Y < dets[j].Center.Y
	})
}

// suppressIndices runs greedy non-maximum suppression over n boxes already
// ordered best-first, returning the surviving indices in order. A candidate
// is rejected when its intersection with any survivor exceeds threshold
// times the smaller of the two areas, so a small pattern nested inside a
// large one is still suppressed. Zero-area boxes neither suppress nor are
// suppressed.
func suppressIndices(n int, threshold float64, area func(int) float64, intersection func(int, int) float64) []int {
	kept := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ok := true
		for _, k := range kept {
			if intersection(i, k) > threshold*math.Min(area(i), area(k)) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, i)
		}
	}
	return kept
}

// SuppressDetections filters a confidence-descending detection slice down to
// the non-overlapping survivors. The input is not modified.
func SuppressDetections(dets []Detection, threshold float64) []Detection {
	if len(dets) <= 1 {
		return append([]Detection(nil), dets...)
	}
	kept := suppressIndices(len(dets), threshold,
		func(i int) float64 { return dets[i].Box.Area() },
		func(i, j int) float64 { return dets[i].Box.IntersectionArea(dets[j].Box) },
	)
	out := make([]Detection, 0, len(kept))
	for _, i := range kept {
		out = append(out, dets[i])
	}
	return out
}

// suppressStable applies the same suppression to a confidence-descending
// stable pattern slice.
func suppressStable(patterns []StablePattern, threshold float64) []StablePattern {
	if len(patterns) <= 1 {
		return patterns
	}
	kept := suppressIndices(len(patterns), threshold,
		func(i int) float64 { return patterns[i].Box.Area() },
		func(i, j int) float64 { return patterns[i].Box.IntersectionArea(patterns[j].Box) },
	)
	out := make([]StablePattern, 0, len(kept))
	for _, i := range kept {
		out = append(out, patterns[i])
	}
	return out
}
