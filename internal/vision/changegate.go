package vision

import "math"

// Change gate defaults
const (
	// DefaultGateConfidenceDelta is the confidence change below which two
	// patterns still count as the same.
	DefaultGateConfidenceDelta = 0.1
	// DefaultGateCenterDelta is the per-axis center drift (pixels) below
	// which two patterns still count as the same.
	DefaultGateCenterDelta = 50.0
)

// ChangeGate decides whether a freshly computed stable set differs enough
// from the previously published one to be worth announcing. It exists to
// stop downstream consumers being re-notified about the same patterns with
// sub-threshold jitter.
type ChangeGate struct {
	ConfidenceDelta float64
	CenterDelta     float64
}

// NewChangeGate returns a gate with the given deltas, falling back to
// defaults for non-positive values.
func NewChangeGate(confidenceDelta, centerDelta float64) ChangeGate {
	if confidenceDelta <= 0 {
		confidenceDelta = DefaultGateConfidenceDelta
	}
	if centerDelta <= 0 {
		centerDelta = DefaultGateCenterDelta
	}
	return ChangeGate{ConfidenceDelta: confidenceDelta, CenterDelta: centerDelta}
}

// Changed reports whether curr differs from prev: the sizes differ, or some
// current pattern has no unconsumed previous pattern of the same class
// within the confidence and center tolerances.
func (g ChangeGate) Changed(prev, curr []StablePattern) bool {
	if len(prev) != len(curr) {
		return true
	}
	used := make([]bool, len(prev))
	for _, c := range curr {
		if !g.matchOne(prev, used, c) {
			return true
		}
	}
	return false
}

// matchOne consumes the first unused previous pattern matching c.
func (g ChangeGate) matchOne(prev []StablePattern, used []bool, c StablePattern) bool {
	for i, p := range prev {
		if used[i] || p.Class != c.Class {
			continue
		}
		if math.Abs(c.Confidence-p.Confidence) >= g.ConfidenceDelta {
			continue
		}
		if math.Abs(c.Center.X-p.Center.X) >= g.CenterDelta {
			continue
		}
		if math.Abs(c.Center.Y-p.Center.Y) >= g.CenterDelta {
			continue
		}
		used[i] = true
		return true
	}
	return false
}
