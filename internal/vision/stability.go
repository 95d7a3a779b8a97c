package vision

import (
	"math"
	"sort"
	"time"

	"github.com/aperture-data/phi.vision/internal/geometry"
)

// Tracker defaults
const (
	// DefaultHistoryDepth is how many recent detections each history entry
	// retains for averaging.
	DefaultHistoryDepth = 5
	// DefaultBucketSize quantizes centers into history buckets (pixels).
	DefaultBucketSize = 50.0
	// DefaultPromoteCount is the buffered detections needed for promotion.
	DefaultPromoteCount = 3
	// DefaultPromoteConfidence is the mean confidence needed for promotion.
	DefaultPromoteConfidence = 0.6
	// DefaultEvictAfter is how long an entry may go unseen before eviction.
	DefaultEvictAfter = 2 * time.Second
	// DefaultStableLimit caps the published stable set size.
	DefaultStableLimit = 3
)

// TrackerConfig holds the temporal-filter parameters.
type TrackerConfig struct {
	HistoryDepth      int           // Detections retained per entry
	BucketSize        float64       // Center quantization step (pixels)
	PromoteCount      int           // Buffered detections needed to promote
	PromoteConfidence float64       // Mean confidence needed to promote
	EvictAfter        time.Duration // Unseen duration before eviction
	StableLimit       int           // Max patterns in the stable set
	OverlapThreshold  float64       // Suppression threshold for the stable set
}

// DefaultTrackerConfig returns the default temporal-filter parameters.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		HistoryDepth:      DefaultHistoryDepth,
		BucketSize:        DefaultBucketSize,
		PromoteCount:      DefaultPromoteCount,
		PromoteConfidence: DefaultPromoteConfidence,
		EvictAfter:        DefaultEvictAfter,
		StableLimit:       DefaultStableLimit,
		OverlapThreshold:  DefaultOverlapThreshold,
	}
}

// historyKey identifies one tracked pattern: its class plus the quantized
// center bucket, so the same physical pattern maps to one entry as it
// jitters frame to frame.
type historyKey struct {
	class PatternClass
	qx    int
	qy    int
}

// historyEntry accumulates recent observations of one keyed pattern.
type historyEntry struct {
	detections []Detection // newest last, at most HistoryDepth
	firstSeen  time.Time
	lastSeen   time.Time
	total      int // lifetime observation count
}

// StabilityTracker folds per-frame detections into keyed history and
// computes the promoted, suppressed, size-capped stable set. It is not safe
// for concurrent use; the Engine serializes access under its own lock.
type StabilityTracker struct {
	entries map[historyKey]*historyEntry
	config  TrackerConfig
}

// NewStabilityTracker creates a tracker with the given configuration.
// Zero or negative fields fall back to their defaults.
func NewStabilityTracker(config TrackerConfig) *StabilityTracker {
	d := DefaultTrackerConfig()
	if config.HistoryDepth <= 0 {
		config.HistoryDepth = d.HistoryDepth
	}
	if config.BucketSize <= 0 {
		config.BucketSize = d.BucketSize
	}
	if config.PromoteCount <= 0 {
		config.PromoteCount = d.PromoteCount
	}
	if config.PromoteConfidence <= 0 {
		config.PromoteConfidence = d.PromoteConfidence
	}
	if config.EvictAfter <= 0 {
		config.EvictAfter = d.EvictAfter
	}
	if config.StableLimit <= 0 {
		config.StableLimit = d.StableLimit
	}
	if config.OverlapThreshold <= 0 {
		config.OverlapThreshold = d.OverlapThreshold
	}
	return &StabilityTracker{
		entries: make(map[historyKey]*historyEntry),
		config:  config,
	}
}

// Config returns the active configuration.
func (t *StabilityTracker) Config() TrackerConfig {
	return t.config
}

// SetConfig replaces the configuration. Existing history is re-bucketed
// lazily: old entries age out under the eviction rule while new detections
// fold under the new bucket size.
func (t *StabilityTracker) SetConfig(config TrackerConfig) {
	t.config = config
}

// BucketFor quantizes a center onto the history grid. The sighting store
// uses the same grid so persisted rows merge on the tracker's buckets.
func BucketFor(center geometry.Point, bucketSize float64) (bx, by int) {
	if bucketSize <= 0 {
		bucketSize = DefaultBucketSize
	}
	return int(math.Round(center.X / bucketSize)), int(math.Round(center.Y / bucketSize))
}

func (t *StabilityTracker) keyFor(d Detection) historyKey {
	qx, qy := BucketFor(d.Center, t.config.BucketSize)
	return historyKey{class: d.Class, qx: qx, qy: qy}
}

// Fold merges one frame's detections into history at the given time.
func (t *StabilityTracker) Fold(dets []Detection, now time.Time) {
	for _, d := range dets {
		key := t.keyFor(d)
		e := t.entries[key]
		if e == nil {
			e = &historyEntry{firstSeen: now}
			t.entries[key] = e
		}
		e.detections = append(e.detections, d)
		if len(e.detections) > t.config.HistoryDepth {
			e.detections = e.detections[len(e.detections)-t.config.HistoryDepth:]
		}
		e.lastSeen = now
		e.total++
	}
}

// Evict removes entries not seen for longer than EvictAfter, returning the
// number removed. Entries seen exactly EvictAfter ago are retained.
func (t *StabilityTracker) Evict(now time.Time) int {
	removed := 0
	for key, e := range t.entries {
		if now.Sub(e.lastSeen) > t.config.EvictAfter {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live history entries.
func (t *StabilityTracker) Len() int {
	return len(t.entries)
}

// Reset discards all history.
func (t *StabilityTracker) Reset() {
	t.entries = make(map[historyKey]*historyEntry)
}

// promoted reports whether an entry qualifies for the stable set: enough
// buffered detections and high enough mean confidence over the buffer.
func (t *StabilityTracker) promoted(e *historyEntry) bool {
	if len(e.detections) < t.config.PromoteCount {
		return false
	}
	return meanConfidence(e.detections) >= t.config.PromoteConfidence
}

// ComputeStable derives the stable set from current history: promoted
// entries become averaged patterns, sorted confidence-descending,
// suppressed, then truncated to StableLimit. Pure with respect to history;
// calling it twice without an intervening Fold or Evict yields the same
// result.
func (t *StabilityTracker) ComputeStable() []StablePattern {
	type keyed struct {
		key     historyKey
		pattern StablePattern
		first   time.Time
	}

	promoted := make([]keyed, 0, len(t.entries))
	for key, e := range t.entries {
		if !t.promoted(e) {
			continue
		}
		promoted = append(promoted, keyed{key: key, pattern: t.stablePattern(e), first: e.firstSeen})
	}

	// Confidence-descending; ties go to the longer-lived entry, then key
	// order, so output is deterministic.
	sort.Slice(promoted, func(i, j int) bool {
		if promoted[i].pattern.Confidence != promoted[j].pattern.Confidence {
			return promoted[i].pattern.Confidence > promoted[j].pattern.Confidence
		}
		if !promoted[i].first.Equal(promoted[j].first) {
			return promoted[i].first.Before(promoted[j].first)
		}
		ki, kj := promoted[i].key, promoted[j].key
		if ki.class != kj.class {
			return ki.class < kj.class
		}
		if ki.qx != kj.qx {
			return ki.qx < kj.qx
		}
		return ki.qy < kj.qy
	})

	patterns := make([]StablePattern, 0, len(promoted))
	for _, p := range promoted {
		patterns = append(patterns, p.pattern)
	}

	patterns = suppressStable(patterns, t.config.OverlapThreshold)
	if len(patterns) > t.config.StableLimit {
		patterns = patterns[:t.config.StableLimit]
	}
	return patterns
}

// stablePattern averages an entry's buffered detections into one pattern.
// Confidence, center and box dimensions are means over the buffer; class and
// math properties come from the most recent detection.
func (t *StabilityTracker) stablePattern(e *historyEntry) StablePattern {
	n := float64(len(e.detections))
	var conf, cx, cy, w, h float64
	for _, d := range e.detections {
		conf += d.Confidence
		cx += d.Center.X
		cy += d.Center.Y
		w += d.Box.W
		h += d.Box.H
	}
	conf /= n
	cx /= n
	cy /= n
	w /= n
	h /= n

	latest := e.detections[len(e.detections)-1]
	p := StablePattern{
		Class:          latest.Class,
		Confidence:     conf,
		Math:           latest.Math,
		FirstSeenNanos: e.firstSeen.UnixNano(),
		LastSeenNanos:  e.lastSeen.UnixNano(),
		Observations:   e.total,
	}
	p.Center.X, p.Center.Y = cx, cy
	p.Box.X, p.Box.Y = cx-w/2, cy-h/2
	p.Box.W, p.Box.H = w, h
	return p
}

func meanConfidence(dets []Detection) float64 {
	if len(dets) == 0 {
		return 0
	}
	var sum float64
	for _, d := range dets {
		sum += d.Confidence
	}
	return sum / float64(len(dets))
}
