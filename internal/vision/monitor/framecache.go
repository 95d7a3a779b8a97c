package monitor

import (
	"sync/atomic"

	"github.com/aperture-data/phi.vision/internal/vision/stream"
)

// FrameCache keeps the most recent ingested frame so the debug charts can
// overlay raw candidates against the stable set. The ingest path stores
// every frame it sees, including ones the engine's throttle later drops.
type FrameCache struct {
	latest atomic.Pointer[stream.FrameRecord]
}

// NewFrameCache creates an empty cache.
func NewFrameCache() *FrameCache {
	return &FrameCache{}
}

// Store replaces the cached frame. Callers must not mutate rec afterwards.
func (c *FrameCache) Store(rec *stream.FrameRecord) {
	if rec == nil {
		return
	}
	c.latest.Store(rec)
}

// Load returns the most recently stored frame, or nil before the first one.
func (c *FrameCache) Load() *stream.FrameRecord {
	return c.latest.Load()
}
