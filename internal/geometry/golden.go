package geometry

import "math"

// Phi is the golden ratio, the positive root of φ² = φ + 1.
const Phi = 1.6180339887498949

// GoldenRatioTolerance is the width of the scoring window around φ: a ratio
// further than this from both φ and 1/φ scores 0.
const GoldenRatioTolerance = 0.1

// GoldenRatioScore scores how close a ratio is to the golden ratio. The
// ratio and its inverse are both compared against φ, so the check is
// symmetric under inversion: score(r) == score(1/r). Exactly φ scores 1.0;
// the score falls linearly to 0 at the tolerance edge. Non-positive and
// non-finite ratios score 0.
func GoldenRatioScore(ratio float64) float64 {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 0
	}
	diff := math.Min(math.Abs(ratio-Phi), math.Abs(1/ratio-Phi))
	return math.Max(0, 1-diff/GoldenRatioTolerance)
}

// FibonacciSequenceScore scores an integer sequence for the Fibonacci
// additivity property a[i] == a[i-1] + a[i-2]. The score is the fraction of
// checkable positions that satisfy it exactly; matched is the longest
// contiguous run (including its two seed values) where every position
// satisfies it. Sequences shorter than three values score 0 with no match.
func FibonacciSequenceScore(values []int) (score float64, matched []int) {
	if len(values) < 3 {
		return 0, nil
	}

	matches := 0
	runStart := 0
	bestStart, bestEnd := 0, 0
	for i := 2; i < len(values); i++ {
		if values[i] == values[i-1]+values[i-2] {
			matches++
			if i-runStart > bestEnd-bestStart {
				bestStart, bestEnd = runStart, i
			}
		} else {
			runStart = i - 1
		}
	}

	score = float64(matches) / float64(len(values)-2)
	if bestEnd > bestStart {
		matched = append([]int(nil), values[bestStart:bestEnd+1]...)
	}
	return score, matched
}
