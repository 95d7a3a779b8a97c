package vision

import (
	"fmt"
	"sync"
	"time"
)

// EngineStats tracks frame pipeline statistics with thread-safe operations.
type EngineStats struct {
	mu              sync.Mutex
	frameCount      int64
	throttledCount  int64
	candidateCount  int64
	detectionCount  int64
	recomputeCount  int64
	notifyCount     int64
	evictedCount    int64
	persistErrCount int64
	lastReset       time.Time
}

// StatsSnapshot is a point-in-time copy of the engine counters.
type StatsSnapshot struct {
	Frames        int64         `json:"frames"`
	Throttled     int64         `json:"throttled"`
	Candidates    int64         `json:"candidates"`
	Detections    int64         `json:"detections"`
	Recomputes    int64         `json:"recomputes"`
	Notifies      int64         `json:"notifies"`
	Evicted       int64         `json:"evicted"`
	PersistErrs   int64         `json:"persist_errors"`
	SincePrevious time.Duration `json:"-"`
}

// NewEngineStats creates a new EngineStats instance.
func NewEngineStats() *EngineStats {
	return &EngineStats{lastReset: time.Now()}
}

// AddFrame records one processed frame and its candidate count.
func (es *EngineStats) AddFrame(candidates int) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.frameCount++
	es.candidateCount += int64(candidates)
}

// AddThrottled records a frame dropped by the processing-rate limit.
func (es *EngineStats) AddThrottled() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.throttledCount++
}

// AddDetections records surviving detections from one frame.
func (es *EngineStats) AddDetections(count int) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.detectionCount += int64(count)
}

// AddRecompute records one stable-set recomputation.
func (es *EngineStats) AddRecompute() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.recomputeCount++
}

// AddNotify records one change notification.
func (es *EngineStats) AddNotify() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.notifyCount++
}

// AddEvicted records history entries removed by the eviction rule.
func (es *EngineStats) AddEvicted(count int) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.evictedCount += int64(count)
}

// AddPersistError records a failed sighting write.
func (es *EngineStats) AddPersistError() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.persistErrCount++
}

// Snapshot returns current counters without resetting them.
func (es *EngineStats) Snapshot() StatsSnapshot {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.snapshotLocked(time.Now())
}

// GetAndReset returns current counters and resets them.
func (es *EngineStats) GetAndReset() StatsSnapshot {
	es.mu.Lock()
	defer es.mu.Unlock()

	now := time.Now()
	snap := es.snapshotLocked(now)

	es.frameCount = 0
	es.throttledCount = 0
	es.candidateCount = 0
	es.detectionCount = 0
	es.recomputeCount = 0
	es.notifyCount = 0
	es.evictedCount = 0
	es.persistErrCount = 0
	es.lastReset = now

	return snap
}

func (es *EngineStats) snapshotLocked(now time.Time) StatsSnapshot {
	return StatsSnapshot{
		Frames:        es.frameCount,
		Throttled:     es.throttledCount,
		Candidates:    es.candidateCount,
		Detections:    es.detectionCount,
		Recomputes:    es.recomputeCount,
		Notifies:      es.notifyCount,
		Evicted:       es.evictedCount,
		PersistErrs:   es.persistErrCount,
		SincePrevious: now.Sub(es.lastReset),
	}
}

// LogStats logs a one-line rate summary and resets the counters. Quiet when
// nothing happened in the interval.
func (es *EngineStats) LogStats() {
	snap := es.GetAndReset()
	if snap.Frames == 0 && snap.Throttled == 0 {
		return
	}
	secs := snap.SincePrevious.Seconds()
	if secs <= 0 {
		secs = 1
	}
	logMsg := fmt.Sprintf("Vision stats (/sec): %.1f frames, %s candidates, %.1f detections",
		float64(snap.Frames)/secs, FormatWithCommas(int64(float64(snap.Candidates)/secs)), float64(snap.Detections)/secs)
	if snap.Throttled > 0 {
		logMsg += fmt.Sprintf(", %d throttled", snap.Throttled)
	}
	if snap.Evicted > 0 {
		logMsg += fmt.Sprintf(", %d evicted", snap.Evicted)
	}
	if snap.Notifies > 0 {
		logMsg += fmt.Sprintf(", %d notifies", snap.Notifies)
	}
	if snap.PersistErrs > 0 {
		logMsg += fmt.Sprintf(", %d persist errors", snap.PersistErrs)
	}
	Diagf("%s", logMsg)
}

// FormatWithCommas formats a number with thousands separators.
func FormatWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	result := ""
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	return result
}
