package vision

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngineStatsCounters(t *testing.T) {
	t.Parallel()

	t.Run("accumulates every counter", func(t *testing.T) {
		t.Parallel()
		es := NewEngineStats()
		es.AddFrame(3)
		es.AddFrame(2)
		es.AddThrottled()
		es.AddDetections(2)
		es.AddRecompute()
		es.AddNotify()
		es.AddEvicted(4)
		es.AddPersistError()

		snap := es.Snapshot()
		assert.Equal(t, int64(2), snap.Frames)
		assert.Equal(t, int64(5), snap.Candidates)
		assert.Equal(t, int64(1), snap.Throttled)
		assert.Equal(t, int64(2), snap.Detections)
		assert.Equal(t, int64(1), snap.Recomputes)
		assert.Equal(t, int64(1), snap.Notifies)
		assert.Equal(t, int64(4), snap.Evicted)
		assert.Equal(t, int64(1), snap.PersistErrs)
	})

	t.Run("snapshot leaves counters intact", func(t *testing.T) {
		t.Parallel()
		es := NewEngineStats()
		es.AddFrame(1)
		first := es.Snapshot()
		second := es.Snapshot()
		assert.Equal(t, first.Frames, second.Frames)
		assert.Equal(t, int64(1), second.Frames)
	})

	t.Run("get and reset zeroes the counters", func(t *testing.T) {
		t.Parallel()
		es := NewEngineStats()
		es.AddFrame(1)
		es.AddNotify()

		snap := es.GetAndReset()
		assert.Equal(t, int64(1), snap.Frames)
		assert.Equal(t, int64(1), snap.Notifies)
		assert.GreaterOrEqual(t, snap.SincePrevious, time.Duration(0))

		after := es.Snapshot()
		assert.Equal(t, int64(0), after.Frames)
		assert.Equal(t, int64(0), after.Notifies)
	})
}

func TestEngineStatsLogStats(t *testing.T) {
	ops, diag, trace := saveLoggers()
	defer restoreLoggers(ops, diag, trace)

	var buf bytes.Buffer
	SetLogWriters(LogWriters{Diag: &buf})

	es := NewEngineStats()
	es.LogStats()
	assert.Zero(t, buf.Len(), "idle stats should log nothing")

	es.AddFrame(5)
	es.AddDetections(2)
	es.AddThrottled()
	es.LogStats()
	out := buf.String()
	assert.Contains(t, out, "Vision stats")
	assert.Contains(t, out, "1 throttled")

	// LogStats resets, so a quiet follow-up interval logs nothing.
	buf.Reset()
	es.LogStats()
	assert.Zero(t, buf.Len())
}
