package geometry

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Spiral scoring thresholds (tunable heuristics, not exact-fit tests)
const (
	// MinSpiralPoints is the minimum polyline length for SpiralScore.
	MinSpiralPoints = 11

	// spiralTurnNorm is the per-vertex turning magnitude (radians) that earns
	// full credit for the rotation component. Roughly 20° per segment.
	spiralTurnNorm = 0.35

	// spiralRadiusNorm is the mean-radius-normalised second difference of the
	// radius sequence that earns full credit for the growth component.
	spiralRadiusNorm = 0.05

	// LogSpiralStrongFit is the |correlation| above which a logarithmic
	// spiral fit counts as strong.
	LogSpiralStrongFit = 0.8

	// GoldenGrowthRate is the pitch b of a golden spiral r = a·e^(b·θ):
	// ln(φ) per quarter turn.
	GoldenGrowthRate = 0.30634896253003166

	// GoldenGrowthTolerance bounds |b − GoldenGrowthRate| when deciding
	// whether a fitted logarithmic spiral is golden.
	GoldenGrowthTolerance = 0.1
)

// SpiralScore scores an ordered polyline for spiral-like shape: consistent
// rotation between consecutive segments plus curvature in the
// radius-from-centroid sequence. Requires at least MinSpiralPoints points;
// shorter or degenerate input scores 0.
func SpiralScore(points []Point) float64 {
	if len(points) < MinSpiralPoints || !finitePoints(points) {
		return 0
	}

	// Rotation component: mean turning-angle magnitude between segments.
	var turnSum float64
	turnCount := 0
	for i := 1; i < len(points)-1; i++ {
		v1x, v1y := points[i].X-points[i-1].X, points[i].Y-points[i-1].Y
		v2x, v2y := points[i+1].X-points[i].X, points[i+1].Y-points[i].Y
		if (v1x == 0 && v1y == 0) || (v2x == 0 && v2y == 0) {
			continue
		}
		cross := v1x*v2y - v1y*v2x
		dot := v1x*v2x + v1y*v2y
		turnSum += math.Abs(math.Atan2(cross, dot))
		turnCount++
	}
	if turnCount == 0 {
		return 0
	}
	turning := turnSum / float64(turnCount)

	// Growth component: mean |second difference| of the radius sequence
	// about the centroid, normalised by the mean radius so the score is
	// scale free.
	radii := radiiAbout(points, Centroid(points))
	meanRadius := stat.Mean(radii, nil)
	if meanRadius <= 0 {
		return 0
	}
	var d2Sum float64
	for i := 1; i < len(radii)-1; i++ {
		d2Sum += math.Abs(radii[i+1] - 2*radii[i] + radii[i-1])
	}
	growth := d2Sum / float64(len(radii)-2) / meanRadius

	turnScore := math.Min(1, turning/spiralTurnNorm)
	growthScore := math.Min(1, growth/spiralRadiusNorm)
	return clipUnit((turnScore + growthScore) / 2)
}

// LogSpiralScore fits r = a·e^(b·θ) about center by correlating unwrapped
// polar angle against ln(r). The score is |correlation|; growthRate is the
// fitted b. Points at zero radius are skipped. Fewer than three usable
// points, or a constant angle or radius sequence, scores 0.
func LogSpiralScore(points []Point, center Point) (score, growthRate float64) {
	if len(points) < 3 || !finitePoints(points) {
		return 0, 0
	}

	angles := unwrapAngles(anglesAbout(points, center))
	radii := radiiAbout(points, center)

	thetas := make([]float64, 0, len(points))
	logRadii := make([]float64, 0, len(points))
	for i, r := range radii {
		if r <= 0 {
			continue
		}
		thetas = append(thetas, angles[i])
		logRadii = append(logRadii, math.Log(r))
	}
	if len(thetas) < 3 {
		return 0, 0
	}

	corr := stat.Correlation(thetas, logRadii, nil)
	if math.IsNaN(corr) {
		return 0, 0
	}
	_, slope := stat.LinearRegression(thetas, logRadii, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		slope = 0
	}
	return math.Abs(corr), slope
}
