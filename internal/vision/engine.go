package vision

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aperture-data/phi.vision/internal/config"
	"github.com/aperture-data/phi.vision/internal/timeutil"
)

// NotifyFunc receives stable-set change notifications. prev is the set being
// replaced, curr the newly published one; both are immutable. Called
// synchronously from ProcessFrame, so implementations should be quick and
// must not call back into the engine.
type NotifyFunc func(prev, curr *StableSet)

// SightingSink receives changed stable sets for persistence. Failures are
// logged and counted but never block the pipeline.
type SightingSink interface {
	RecordStable(sessionID string, set *StableSet) error
}

// Engine runs the per-frame pipeline: admission throttle, classification,
// suppression, temporal folding, and interval-gated stable-set publication
// with change notifications. One engine per input stream; ProcessFrame may
// be called from any goroutine.
type Engine struct {
	mu             sync.Mutex
	tuning         *config.TuningConfig
	classifier     *Classifier
	tracker        *StabilityTracker
	gate           ChangeGate
	procInterval   time.Duration
	updateInterval time.Duration
	overlap        float64
	lastAdmitted   time.Time
	lastComputed   time.Time
	revision       uint64
	notify         NotifyFunc
	sink           SightingSink
	sessionID      string

	clock  timeutil.Clock
	stats  *EngineStats
	stable atomic.Pointer[StableSet]
}

// NewEngine creates an engine from a tuning config. A nil tuning config or
// clock falls back to defaults.
func NewEngine(tuning *config.TuningConfig, clock timeutil.Clock) *Engine {
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	e := &Engine{
		tuning:     tuning,
		clock:      clock,
		classifier: NewClassifier(DefaultClassifierConfig()),
		tracker:    NewStabilityTracker(DefaultTrackerConfig()),
		stats:      NewEngineStats(),
	}
	e.applyTuningLocked()
	e.stable.Store(&StableSet{})
	return e
}

// SetNotifyFunc registers the change-notification callback.
func (e *Engine) SetNotifyFunc(fn NotifyFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notify = fn
}

// SetSightingSink registers the persistence sink and the session the
// engine's sightings belong to.
func (e *Engine) SetSightingSink(sink SightingSink, sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
	e.sessionID = sessionID
}

// Stats returns the engine's counter set.
func (e *Engine) Stats() *EngineStats {
	return e.stats
}

// StableSet returns the currently published stable set. Never nil; the set
// is immutable and safe to read from any goroutine.
func (e *Engine) StableSet() *StableSet {
	return e.stable.Load()
}

// TrackerLen returns the number of live history entries.
func (e *Engine) TrackerLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Len()
}

// Tuning returns a copy of the active tuning config.
func (e *Engine) Tuning() config.TuningConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.tuning
}

// UpdateTuning applies fn to a copy of the active tuning config, validates
// the result, and swaps it in. The classifier, tracker, gate and intervals
// pick up the new values immediately; history is preserved.
func (e *Engine) UpdateTuning(fn func(*config.TuningConfig)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	updated := *e.tuning
	fn(&updated)
	if err := updated.Validate(); err != nil {
		return fmt.Errorf("invalid tuning update: %w", err)
	}
	e.tuning = &updated
	e.applyTuningLocked()
	Diagf("tuning updated: proc=%v update=%v overlap=%.2f", e.procInterval, e.updateInterval, e.overlap)
	return nil
}

// applyTuningLocked pushes the active tuning config into the pipeline
// components. Caller holds e.mu (or is the constructor).
func (e *Engine) applyTuningLocked() {
	t := e.tuning
	e.procInterval = t.GetProcessingInterval()
	e.updateInterval = t.GetUpdateInterval()
	e.overlap = t.GetOverlapThreshold()
	e.classifier.SetConfig(classifierConfigFrom(t))
	e.tracker.SetConfig(trackerConfigFrom(t))
	e.gate = NewChangeGate(t.GetGateConfidenceDelta(), t.GetGateCenterDeltaPx())
}

// classifierConfigFrom resolves the classification knobs, dropping unknown
// class names with a warning.
func classifierConfigFrom(t *config.TuningConfig) ClassifierConfig {
	cc := ClassifierConfig{MinConfidence: t.GetMinConfidence()}
	if len(t.DisabledClasses) > 0 {
		cc.Disabled = make(map[PatternClass]bool, len(t.DisabledClasses))
		for _, name := range t.DisabledClasses {
			class := PatternClass(name)
			if !class.Valid() {
				Opsf("ignoring unknown class %q in disabled_classes", name)
				continue
			}
			cc.Disabled[class] = true
		}
	}
	if len(t.ClassThresholds) > 0 {
		cc.Thresholds = make(map[PatternClass]float64, len(t.ClassThresholds))
		for name, v := range t.ClassThresholds {
			class := PatternClass(name)
			if !class.Valid() {
				Opsf("ignoring threshold for unknown class %q", name)
				continue
			}
			cc.Thresholds[class] = v
		}
	}
	return cc
}

func trackerConfigFrom(t *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		HistoryDepth:      t.GetHistoryDepth(),
		BucketSize:        t.GetHistoryBucketPx(),
		PromoteCount:      t.GetPromoteCount(),
		PromoteConfidence: t.GetPromoteConfidence(),
		EvictAfter:        t.GetEvictAfter(),
		StableLimit:       t.GetStableLimit(),
		OverlapThreshold:  t.GetOverlapThreshold(),
	}
}

// ProcessFrame runs one frame through the pipeline. Returns false when the
// frame was dropped by the admission throttle. Frames with a zero Timestamp
// are stamped with the engine clock.
func (e *Engine) ProcessFrame(frame Frame) bool {
	admitted, prev, curr, changed := e.processFrame(frame)
	if !admitted {
		return false
	}
	if changed {
		e.stats.AddNotify()
		e.persist(curr)
		if fn := e.notifyFunc(); fn != nil {
			fn(prev, curr)
		}
	}
	return true
}

func (e *Engine) processFrame(frame Frame) (admitted bool, prev, curr *StableSet, changed bool) {
	now := frame.Timestamp
	if now.IsZero() {
		now = e.clock.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Admission throttle: at most one frame per processing interval.
	if !e.lastAdmitted.IsZero() && now.Sub(e.lastAdmitted) < e.procInterval {
		e.stats.AddThrottled()
		return false, nil, nil, false
	}
	e.lastAdmitted = now
	e.stats.AddFrame(len(frame.Candidates))

	dets := e.classifier.ClassifyFrame(frame.Candidates, now)
	dets = SuppressDetections(dets, e.overlap)
	e.stats.AddDetections(len(dets))
	Tracef("frame src=%s candidates=%d detections=%d", frame.Source, len(frame.Candidates), len(dets))

	e.tracker.Fold(dets, now)
	if evicted := e.tracker.Evict(now); evicted > 0 {
		e.stats.AddEvicted(evicted)
	}

	// Stable-set recompute is gated to the update interval, even when every
	// frame folds new history.
	if !e.lastComputed.IsZero() && now.Sub(e.lastComputed) < e.updateInterval {
		return true, nil, nil, false
	}
	prev, curr, changed = e.recomputeLocked(now)
	return true, prev, curr, changed
}

// recomputeLocked derives and publishes a new stable set. Caller holds e.mu.
func (e *Engine) recomputeLocked(now time.Time) (prev, curr *StableSet, changed bool) {
	patterns := e.tracker.ComputeStable()
	prev = e.stable.Load()
	e.revision++
	curr = &StableSet{
		Patterns:      patterns,
		ComputedNanos: now.UnixNano(),
		Revision:      e.revision,
	}
	e.stable.Store(curr)
	e.lastComputed = now
	e.stats.AddRecompute()

	changed = e.gate.Changed(prev.Patterns, curr.Patterns)
	if changed {
		Diagf("stable set rev %d: %d patterns", curr.Revision, len(curr.Patterns))
	}
	return prev, curr, changed
}

// Reset discards all history and publishes an empty stable set without a
// change notification. The admission throttle restarts too, so the next
// frame is always admitted.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.Reset()
	e.revision++
	e.stable.Store(&StableSet{
		ComputedNanos: e.clock.Now().UnixNano(),
		Revision:      e.revision,
	})
	e.lastAdmitted = time.Time{}
	e.lastComputed = time.Time{}
	Opsf("engine reset: history cleared")
}

func (e *Engine) notifyFunc() NotifyFunc {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notify
}

func (e *Engine) persist(set *StableSet) {
	e.mu.Lock()
	sink, sessionID := e.sink, e.sessionID
	e.mu.Unlock()
	if sink == nil {
		return
	}
	if err := sink.RecordStable(sessionID, set); err != nil {
		e.stats.AddPersistError()
		Diagf("sighting persist failed: %v", err)
	}
}
