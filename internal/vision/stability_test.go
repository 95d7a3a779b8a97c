package vision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperture-data/phi.vision/internal/geometry"
)

func trackDet(class PatternClass, conf, cx, cy float64) Detection {
	return Detection{
		Class:      class,
		Confidence: conf,
		Box:        geometry.RectAround(geometry.Point{X: cx, Y: cy}, 40, 40),
		Center:     geometry.Point{X: cx, Y: cy},
	}
}

var trackBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// foldRepeated folds the same detection count times, 100ms apart.
func foldRepeated(t *StabilityTracker, d Detection, count int) {
	for i := 0; i < count; i++ {
		t.Fold([]Detection{d}, trackBase.Add(time.Duration(i)*100*time.Millisecond))
	}
}

func TestStabilityTrackerPromotion(t *testing.T) {
	t.Parallel()

	t.Run("promotes after enough confident detections", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		foldRepeated(tracker, trackDet(ClassGoldenRatio, 0.8, 100, 100), 3)

		patterns := tracker.ComputeStable()
		require.Len(t, patterns, 1)
		p := patterns[0]
		assert.Equal(t, ClassGoldenRatio, p.Class)
		assert.InDelta(t, 0.8, p.Confidence, 1e-9)
		assert.Equal(t, 3, p.Observations)
		assert.Equal(t, trackBase.UnixNano(), p.FirstSeenNanos)
		assert.Equal(t, trackBase.Add(200*time.Millisecond).UnixNano(), p.LastSeenNanos)
	})

	t.Run("does not promote below the confidence bar", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		foldRepeated(tracker, trackDet(ClassGoldenRatio, 0.5, 100, 100), 3)
		assert.Empty(t, tracker.ComputeStable())
	})

	t.Run("does not promote with too few observations", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		foldRepeated(tracker, trackDet(ClassGoldenRatio, 0.9, 100, 100), 2)
		assert.Empty(t, tracker.ComputeStable())
	})

	t.Run("judges confidence over the buffered window", func(t *testing.T) {
		t.Parallel()
		// Two weak sightings then three strong ones: the window mean
		// clears the bar even though the lifetime mean would not.
		tracker := NewStabilityTracker(TrackerConfig{HistoryDepth: 3})
		for i, conf := range []float64{0.1, 0.1, 0.7, 0.7, 0.7} {
			tracker.Fold([]Detection{trackDet(ClassShellSpiral, conf, 100, 100)},
				trackBase.Add(time.Duration(i)*100*time.Millisecond))
		}
		patterns := tracker.ComputeStable()
		require.Len(t, patterns, 1)
		assert.InDelta(t, 0.7, patterns[0].Confidence, 1e-9)
		assert.Equal(t, 5, patterns[0].Observations)
	})
}

func TestStabilityTrackerAveraging(t *testing.T) {
	t.Parallel()

	t.Run("averages confidence and position over the buffer", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		confs := []float64{0.6, 0.7, 0.8}
		xs := []float64{96, 100, 104}
		for i := range confs {
			tracker.Fold([]Detection{trackDet(ClassGoldenRatio, confs[i], xs[i], 100)},
				trackBase.Add(time.Duration(i)*100*time.Millisecond))
		}

		patterns := tracker.ComputeStable()
		require.Len(t, patterns, 1)
		p := patterns[0]
		assert.InDelta(t, 0.7, p.Confidence, 1e-9)
		assert.InDelta(t, 100.0, p.Center.X, 1e-9)
		assert.InDelta(t, 100.0, p.Center.Y, 1e-9)
		assert.InDelta(t, 80.0, p.Box.X, 1e-9)
		assert.InDelta(t, 40.0, p.Box.W, 1e-9)
	})

	t.Run("keeps math properties from the latest detection", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		for i := 0; i < 3; i++ {
			d := trackDet(ClassNautilusSpiral, 0.9, 100, 100)
			d.Math = MathProperties{GrowthRate: 1.6, ChamberCount: 5 + i}
			tracker.Fold([]Detection{d}, trackBase.Add(time.Duration(i)*100*time.Millisecond))
		}
		patterns := tracker.ComputeStable()
		require.Len(t, patterns, 1)
		assert.Equal(t, 7, patterns[0].Math.ChamberCount)
	})

	t.Run("trims the buffer to the history depth", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		for i, conf := range []float64{0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8} {
			tracker.Fold([]Detection{trackDet(ClassShellSpiral, conf, 100, 100)},
				trackBase.Add(time.Duration(i)*100*time.Millisecond))
		}

		patterns := tracker.ComputeStable()
		require.Len(t, patterns, 1)
		// Mean of the last five folds, not all seven.
		assert.InDelta(t, 0.6, patterns[0].Confidence, 1e-9)
		assert.Equal(t, 7, patterns[0].Observations)
	})
}

func TestStabilityTrackerEviction(t *testing.T) {
	t.Parallel()

	t.Run("retains entries seen exactly at the deadline", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		tracker.Fold([]Detection{trackDet(ClassGoldenRatio, 0.8, 100, 100)}, trackBase)

		assert.Equal(t, 0, tracker.Evict(trackBase.Add(2*time.Second)))
		assert.Equal(t, 1, tracker.Len())
	})

	t.Run("evicts entries unseen past the deadline", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		tracker.Fold([]Detection{trackDet(ClassGoldenRatio, 0.8, 100, 100)}, trackBase)

		assert.Equal(t, 1, tracker.Evict(trackBase.Add(2*time.Second+time.Nanosecond)))
		assert.Equal(t, 0, tracker.Len())
		assert.Empty(t, tracker.ComputeStable())
	})

	t.Run("a fresh sighting restarts the clock", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		d := trackDet(ClassGoldenRatio, 0.8, 100, 100)
		tracker.Fold([]Detection{d}, trackBase)
		tracker.Fold([]Detection{d}, trackBase.Add(1500*time.Millisecond))

		assert.Equal(t, 0, tracker.Evict(trackBase.Add(3*time.Second)))
		assert.Equal(t, 1, tracker.Len())
	})
}

func TestStabilityTrackerBuckets(t *testing.T) {
	t.Parallel()

	t.Run("folds nearby centers into one entry", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		// 100 and 120 both round to bucket 2 at 50 px.
		tracker.Fold([]Detection{trackDet(ClassGoldenRatio, 0.8, 100, 100)}, trackBase)
		tracker.Fold([]Detection{trackDet(ClassGoldenRatio, 0.8, 120, 100)}, trackBase.Add(100*time.Millisecond))
		assert.Equal(t, 1, tracker.Len())
	})

	t.Run("separates centers in different buckets", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		tracker.Fold([]Detection{trackDet(ClassGoldenRatio, 0.8, 100, 100)}, trackBase)
		tracker.Fold([]Detection{trackDet(ClassGoldenRatio, 0.8, 130, 100)}, trackBase.Add(100*time.Millisecond))
		assert.Equal(t, 2, tracker.Len())
	})

	t.Run("separates classes sharing a bucket", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		tracker.Fold([]Detection{trackDet(ClassGoldenRatio, 0.8, 100, 100)}, trackBase)
		tracker.Fold([]Detection{trackDet(ClassShellSpiral, 0.8, 100, 100)}, trackBase.Add(100*time.Millisecond))
		assert.Equal(t, 2, tracker.Len())
	})
}

func TestStabilityTrackerStableSet(t *testing.T) {
	t.Parallel()

	t.Run("caps the stable set and keeps the most confident", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		confs := []float64{0.9, 0.8, 0.7, 0.65}
		for i, conf := range confs {
			foldRepeated(tracker, trackDet(ClassGoldenRatio, conf, float64(100+200*i), 100), 3)
		}

		patterns := tracker.ComputeStable()
		require.Len(t, patterns, 3)
		assert.InDelta(t, 0.9, patterns[0].Confidence, 1e-9)
		assert.InDelta(t, 0.8, patterns[1].Confidence, 1e-9)
		assert.InDelta(t, 0.7, patterns[2].Confidence, 1e-9)
	})

	t.Run("suppresses overlapping stable patterns", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		// Distinct buckets, but the 200 px boxes overlap well past the
		// threshold; the weaker pattern is dropped.
		for i := 0; i < 3; i++ {
			at := trackBase.Add(time.Duration(i) * 100 * time.Millisecond)
			a := trackDet(ClassShellSpiral, 0.9, 100, 100)
			a.Box = geometry.RectAround(a.Center, 200, 200)
			b := trackDet(ClassShellSpiral, 0.8, 160, 100)
			b.Box = geometry.RectAround(b.Center, 200, 200)
			tracker.Fold([]Detection{a, b}, at)
		}

		patterns := tracker.ComputeStable()
		require.Len(t, patterns, 1)
		assert.InDelta(t, 0.9, patterns[0].Confidence, 1e-9)
	})

	t.Run("is idempotent between folds", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		foldRepeated(tracker, trackDet(ClassGoldenRatio, 0.8, 100, 100), 3)
		foldRepeated(tracker, trackDet(ClassShellSpiral, 0.7, 400, 100), 3)

		first := tracker.ComputeStable()
		second := tracker.ComputeStable()
		assert.Equal(t, first, second)
	})

	t.Run("reset discards all history", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(DefaultTrackerConfig())
		foldRepeated(tracker, trackDet(ClassGoldenRatio, 0.8, 100, 100), 3)
		require.NotEmpty(t, tracker.ComputeStable())

		tracker.Reset()
		assert.Equal(t, 0, tracker.Len())
		assert.Empty(t, tracker.ComputeStable())
	})
}

func TestNewStabilityTracker(t *testing.T) {
	t.Parallel()

	t.Run("falls back to defaults for zero fields", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(TrackerConfig{})
		cfg := tracker.Config()
		assert.Equal(t, DefaultHistoryDepth, cfg.HistoryDepth)
		assert.Equal(t, DefaultBucketSize, cfg.BucketSize)
		assert.Equal(t, DefaultPromoteCount, cfg.PromoteCount)
		assert.Equal(t, DefaultPromoteConfidence, cfg.PromoteConfidence)
		assert.Equal(t, DefaultEvictAfter, cfg.EvictAfter)
		assert.Equal(t, DefaultStableLimit, cfg.StableLimit)
		assert.Equal(t, DefaultOverlapThreshold, cfg.OverlapThreshold)
	})

	t.Run("keeps explicit overrides", func(t *testing.T) {
		t.Parallel()
		tracker := NewStabilityTracker(TrackerConfig{HistoryDepth: 8, PromoteCount: 2})
		cfg := tracker.Config()
		assert.Equal(t, 8, cfg.HistoryDepth)
		assert.Equal(t, 2, cfg.PromoteCount)
		assert.Equal(t, DefaultBucketSize, cfg.BucketSize)
	})
}
