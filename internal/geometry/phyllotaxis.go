package geometry

import (
	"math"
	"sort"
)

// Golden-angle constants
const (
	// GoldenAngleDegrees is 360°/φ², the divergence angle of ideal
	// phyllotaxis.
	GoldenAngleDegrees = 137.50776405003785

	// GoldenAngleRadians is the golden angle in radians.
	GoldenAngleRadians = GoldenAngleDegrees * math.Pi / 180

	// GoldenAngleTolerance is the angular window (radians) within which a
	// gap counts as a golden-angle match.
	GoldenAngleTolerance = 0.1

	// minPhyllotaxisPoints is the minimum number of points for a meaningful
	// gap count.
	minPhyllotaxisPoints = 3
)

// PhyllotaxisScore scores an arrangement for golden-angle spacing between
// neighbours: points are sorted by polar angle about center and consecutive
// gaps are compared against the golden angle within ±GoldenAngleTolerance.
// The score is matches/(count−1); angleDeg is the mean matched gap in
// degrees (0 when nothing matches). Suited to sparse arrangements such as
// leaf whorls, where sorted neighbour gaps are the divergence angle itself.
func PhyllotaxisScore(points []Point, center Point) (score, angleDeg float64) {
	if len(points) < minPhyllotaxisPoints || !finitePoints(points) {
		return 0, 0
	}

	angles := anglesAbout(points, center)
	sort.Float64s(angles)
	return goldenAngleGapScore(angles)
}

// DivergenceScore scores golden-angle spacing in generation order: the
// angular step between each point and the next, in the order supplied.
// Dense golden-angle arrangements (sunflower seed heads, pinecone scales)
// match here even though their angle-sorted neighbour gaps are small.
func DivergenceScore(points []Point, center Point) (score, angleDeg float64) {
	if len(points) < minPhyllotaxisPoints || !finitePoints(points) {
		return 0, 0
	}
	return goldenAngleGapScore(anglesAbout(points, center))
}

// goldenAngleGapScore counts consecutive angular gaps within tolerance of
// the golden angle. Gaps are taken modulo 2π so direction of travel does
// not matter.
func goldenAngleGapScore(angles []float64) (score, angleDeg float64) {
	matches := 0
	var matchedSum float64
	for i := 1; i < len(angles); i++ {
		gap := math.Mod(angles[i]-angles[i-1], 2*math.Pi)
		if gap < 0 {
			gap += 2 * math.Pi
		}
		// A clockwise golden-angle step shows up as 2π minus the angle.
		divergence := gap
		if math.Abs((2*math.Pi-gap)-GoldenAngleRadians) < math.Abs(gap-GoldenAngleRadians) {
			divergence = 2*math.Pi - gap
		}
		if math.Abs(divergence-GoldenAngleRadians) <= GoldenAngleTolerance {
			matches++
			matchedSum += divergence
		}
	}

	score = float64(matches) / float64(len(angles)-1)
	if matches > 0 {
		angleDeg = matchedSum / float64(matches) * 180 / math.Pi
	}
	return score, angleDeg
}
