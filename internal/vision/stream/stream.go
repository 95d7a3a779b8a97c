// Package stream moves frames of pattern candidates between producers and
// the engine. It defines the FrameRecord wire format (one JSON document per
// UDP datagram, line-delimited JSON in ".pvlog" files), a recorder and a
// re-timing replayer for those files, and a synthetic generator for testing
// and demos.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aperture-data/phi.vision/internal/vision"
)

// FrameRecord is one frame of candidates as it travels on the wire.
type FrameRecord struct {
	FrameID        uint64             `json:"frame_id"`
	TimestampNanos int64              `json:"timestamp_unix_nanos"`
	SourceID       string             `json:"source_id,omitempty"`
	Candidates     []vision.Candidate `json:"candidates"`
}

// Frame converts the record into the engine's input form.
func (f *FrameRecord) Frame() vision.Frame {
	return vision.Frame{
		Candidates: f.Candidates,
		Timestamp:  time.Unix(0, f.TimestampNanos),
		Source:     f.SourceID,
	}
}

// EncodeFrame serialises a FrameRecord to a single JSON document.
func EncodeFrame(f *FrameRecord) ([]byte, error) {
	return json.Marshal(f)
}

// DecodeFrame parses a FrameRecord from a JSON document. A record without a
// timestamp is rejected so downstream history folding never sees the epoch.
func DecodeFrame(data []byte) (*FrameRecord, error) {
	var f FrameRecord
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}
	if f.TimestampNanos <= 0 {
		return nil, fmt.Errorf("frame %d has no timestamp", f.FrameID)
	}
	return &f, nil
}

// Source produces frames until its input is exhausted or ctx is cancelled.
// emit is called from the source's goroutine, one frame at a time.
type Source interface {
	Run(ctx context.Context, emit func(*FrameRecord)) error
}
