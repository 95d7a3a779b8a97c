package geometry

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Chamber detection thresholds
const (
	// NautilusChamberGrowth is the radial growth over the running chamber
	// radius that opens a new chamber (>10%).
	NautilusChamberGrowth = 1.1

	// NautilusMinChambers is the minimum chamber count for a nautilus fit.
	NautilusMinChambers = 3

	// NautilusScoreMin is the combined score above which IsNautilus accepts.
	NautilusScoreMin = 0.7

	// nautilusVarianceNorm scales growth-ratio variance into the consistency
	// component: variance at or beyond this scores 0.
	nautilusVarianceNorm = 0.5

	// nautilusPhiWindow is the distance from φ at which the mean growth
	// ratio stops contributing.
	nautilusPhiWindow = 1.0
)

// NautilusScore walks an ordered polyline outward from center and detects
// chambers: a new chamber opens each time the radius exceeds the running
// chamber radius by more than NautilusChamberGrowth. The score combines the
// consistency of successive chamber growth ratios (low variance scores high)
// with the proximity of the mean growth ratio to φ. Stepped, discretely
// chambered shells score higher than smooth spirals. Returns the combined
// score, the chamber count, and the mean chamber growth ratio.
func NautilusScore(points []Point, center Point) (score float64, chambers int, growthRate float64) {
	if len(points) < NautilusMinChambers || !finitePoints(points) {
		return 0, 0, 0
	}

	chamberRadii := detectChambers(radiiAbout(points, center))
	if len(chamberRadii) < NautilusMinChambers {
		return 0, len(chamberRadii), 0
	}

	ratios := make([]float64, 0, len(chamberRadii)-1)
	for i := 1; i < len(chamberRadii); i++ {
		ratios = append(ratios, chamberRadii[i]/chamberRadii[i-1])
	}

	meanRatio := stat.Mean(ratios, nil)
	variance := 0.0
	if len(ratios) > 1 {
		variance = stat.Variance(ratios, nil)
	}

	consistency := math.Max(0, 1-variance/nautilusVarianceNorm)
	phiProximity := math.Max(0, 1-math.Abs(meanRatio-Phi)/nautilusPhiWindow)
	return clipUnit((consistency + phiProximity) / 2), len(chamberRadii), meanRatio
}

// IsNautilus reports whether the points pass the nautilus acceptance test:
// score above NautilusScoreMin with at least NautilusMinChambers chambers.
func IsNautilus(points []Point, center Point) bool {
	score, chambers, _ := NautilusScore(points, center)
	return score > NautilusScoreMin && chambers >= NautilusMinChambers
}

// detectChambers reduces a radius sequence to chamber radii. The first
// non-zero radius seeds the first chamber; each radius more than
// NautilusChamberGrowth times the running chamber radius opens the next.
func detectChambers(radii []float64) []float64 {
	var chambers []float64
	running := 0.0
	for _, r := range radii {
		if r <= 0 {
			continue
		}
		if running == 0 {
			running = r
			chambers = append(chambers, r)
			continue
		}
		if r > running*NautilusChamberGrowth {
			running = r
			chambers = append(chambers, r)
		}
	}
	return chambers
}
