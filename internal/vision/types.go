// Package vision turns noisy per-frame pattern candidates into a temporally
// stable, de-duplicated set of mathematical pattern detections. The pipeline
// per admitted frame: classify candidates, suppress overlapping detections,
// fold the survivors into keyed history, and periodically publish a stable
// set with change notifications.
package vision

import (
	"time"

	"github.com/aperture-data/phi.vision/internal/geometry"
)

// RegionKind identifies the geometry a candidate carries.
type RegionKind string

const (
	// RegionPoints is an ordered point sequence (contour, path, seed head).
	RegionPoints RegionKind = "points"
	// RegionRect is a single rectangle.
	RegionRect RegionKind = "rect"
	// RegionGrid is a set of rectangles forming a subdivision.
	RegionGrid RegionKind = "grid"
	// RegionValues is a sequence of integers read from the scene.
	RegionValues RegionKind = "values"
)

// Candidate is one pre-extracted region from the upstream detector. Exactly
// the fields relevant to its Kind are populated; the rest stay zero.
type Candidate struct {
	Kind   RegionKind       `json:"kind"`
	Points []geometry.Point `json:"points,omitempty"`
	Rect   geometry.Rect    `json:"rect,omitempty"`
	Rects  []geometry.Rect  `json:"rects,omitempty"`
	Values []int            `json:"values,omitempty"`

	// Center overrides the centroid as the polar origin when the upstream
	// detector supplies one.
	Center *geometry.Point `json:"center,omitempty"`

	// Source tags the extraction algorithm that produced the candidate.
	Source string `json:"source,omitempty"`
}

// MathProperties carries the numeric payload derived while scoring a
// detection. Only the fields relevant to the class are set.
type MathProperties struct {
	PhiValue     float64 `json:"phi_value,omitempty"`
	GrowthRate   float64 `json:"growth_rate,omitempty"`
	ChamberCount int     `json:"chamber_count,omitempty"`
	AngleDegrees float64 `json:"angle_degrees,omitempty"`
	Sequence     []int   `json:"sequence,omitempty"`
}

// Detection is one classified pattern in one frame. Immutable once built.
type Detection struct {
	Class         PatternClass   `json:"class"`
	Confidence    float64        `json:"confidence"`
	Box           geometry.Rect  `json:"box"`
	Center        geometry.Point `json:"center"`
	ObservedNanos int64          `json:"observed_unix_nanos"`
	Math          MathProperties `json:"math,omitempty"`
}

// StablePattern is a pattern that survived temporal filtering: the averaged
// view of a history entry promoted to the published set.
type StablePattern struct {
	Class          PatternClass   `json:"class"`
	Confidence     float64        `json:"confidence"`
	Center         geometry.Point `json:"center"`
	Box            geometry.Rect  `json:"box"`
	Math           MathProperties `json:"math,omitempty"`
	FirstSeenNanos int64          `json:"first_seen_unix_nanos"`
	LastSeenNanos  int64          `json:"last_seen_unix_nanos"`
	Observations   int            `json:"observations"`
}

// StableSet is the published output: at most the configured limit of
// non-overlapping stable patterns, sorted by confidence descending. A new
// set replaces the previous one atomically; sets are never mutated after
// publication.
type StableSet struct {
	Patterns      []StablePattern `json:"patterns"`
	ComputedNanos int64           `json:"computed_unix_nanos"`
	Revision      uint64          `json:"revision"`
}

// Frame is one ingested video frame worth of candidates.
type Frame struct {
	Candidates []Candidate
	Timestamp  time.Time
	Source     string
}

// clampUnit clamps a confidence to [0,1].
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
