package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// indexEntry locates one frame line within the log file.
type indexEntry struct {
	frameID     uint64
	timestampNs int64
	offset      int64
}

// Replayer reads FrameRecords back out of a pvlog file with random access
// by frame index or timestamp.
type Replayer struct {
	path   string
	header LogHeader
	index  []indexEntry

	mu           sync.Mutex
	file         *os.File
	br           *bufio.Reader
	currentFrame uint64
	paused       bool
	rate         float64
}

// NewReplayer opens a pvlog for replay and scans its frame index. Lines
// after the last complete one (a truncated tail from a crashed recorder)
// are ignored.
func NewReplayer(path string) (*Replayer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	r := &Replayer{
		path: path,
		file: f,
		br:   bufio.NewReader(f),
		rate: 1.0,
	}

	headerLine, err := r.br.ReadBytes('\n')
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if err := json.Unmarshal(headerLine, &r.header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	// Index pass: record the byte offset and timestamp of every frame line.
	offset := int64(len(headerLine))
	for {
		line, err := r.br.ReadBytes('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		var meta struct {
			FrameID        uint64 `json:"frame_id"`
			TimestampNanos int64  `json:"timestamp_unix_nanos"`
		}
		if err := json.Unmarshal(line, &meta); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to parse frame at offset %d: %w", offset, err)
		}
		r.index = append(r.index, indexEntry{
			frameID:     meta.FrameID,
			timestampNs: meta.TimestampNanos,
			offset:      offset,
		})
		offset += int64(len(line))
	}

	return r, nil
}

// Header returns the log header.
func (r *Replayer) Header() LogHeader {
	return r.header
}

// TotalFrames returns the number of frames in the log.
func (r *Replayer) TotalFrames() uint64 {
	return uint64(len(r.index))
}

// Span returns the timestamps of the first and last frames, or zeros for an
// empty log.
func (r *Replayer) Span() (startNs, endNs int64) {
	if len(r.index) == 0 {
		return 0, 0
	}
	return r.index[0].timestampNs, r.index[len(r.index)-1].timestampNs
}

// CurrentFrame returns the index of the next frame ReadFrame will return.
func (r *Replayer) CurrentFrame() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentFrame
}

// Seek positions playback at a specific frame index.
func (r *Replayer) Seek(frameIdx uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if frameIdx >= uint64(len(r.index)) {
		return fmt.Errorf("frame index out of range: %d >= %d", frameIdx, len(r.index))
	}
	r.currentFrame = frameIdx
	return nil
}

// SeekToTimestamp positions playback at the first frame at or after the
// given timestamp, or the last frame when the timestamp is beyond the log.
func (r *Replayer) SeekToTimestamp(timestampNs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.index) == 0 {
		return fmt.Errorf("log is empty")
	}
	i := sort.Search(len(r.index), func(i int) bool {
		return r.index[i].timestampNs >= timestampNs
	})
	if i == len(r.index) {
		i = len(r.index) - 1
	}
	r.currentFrame = uint64(i)
	return nil
}

// ReadFrame reads the current frame and advances. Returns io.EOF past the
// end of the log.
func (r *Replayer) ReadFrame() (*FrameRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentFrame >= uint64(len(r.index)) {
		return nil, io.EOF
	}
	entry := r.index[r.currentFrame]

	if _, err := r.file.Seek(entry.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to frame %d: %w", r.currentFrame, err)
	}
	r.br.Reset(r.file)
	line, err := r.br.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read frame %d: %w", r.currentFrame, err)
	}

	frame, err := DecodeFrame(line)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %d: %w", r.currentFrame, err)
	}

	r.currentFrame++
	return frame, nil
}

// SetPaused sets the paused state observed by replaying loops.
func (r *Replayer) SetPaused(paused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = paused
}

// Paused reports the paused state.
func (r *Replayer) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// SetRate sets the playback rate multiplier. Non-positive rates are ignored.
func (r *Replayer) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rate = rate
}

// Rate returns the playback rate multiplier.
func (r *Replayer) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rate
}

// Close closes the underlying log file.
func (r *Replayer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// pausePoll is how often a paced replay loop re-checks the paused flag.
const pausePoll = 50 * time.Millisecond

// ReplaySource plays a pvlog back through the Source interface, re-timing
// frames to the original cadence scaled by the replayer's rate.
type ReplaySource struct {
	replayer *Replayer

	// Loop restarts playback from the first frame on reaching the end.
	Loop bool
}

// NewReplaySource opens a pvlog as a frame source.
func NewReplaySource(path string) (*ReplaySource, error) {
	rep, err := NewReplayer(path)
	if err != nil {
		return nil, err
	}
	return &ReplaySource{replayer: rep}, nil
}

// Replayer exposes the underlying replayer for seek and rate control.
func (s *ReplaySource) Replayer() *Replayer {
	return s.replayer
}

// Close closes the underlying replayer.
func (s *ReplaySource) Close() error {
	return s.replayer.Close()
}

// Run emits frames until the log ends (or forever with Loop) or ctx is
// cancelled. Gaps between frame timestamps are reproduced in wall time,
// divided by the playback rate.
func (s *ReplaySource) Run(ctx context.Context, emit func(*FrameRecord)) error {
	var lastFrameNs int64
	var lastWall time.Time

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.replayer.Paused() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pausePoll):
			}
			continue
		}

		frame, err := s.replayer.ReadFrame()
		if err == io.EOF {
			if !s.Loop {
				return nil
			}
			if err := s.replayer.Seek(0); err != nil {
				return err
			}
			// Timing resets so the loop seam does not stall.
			lastFrameNs = 0
			continue
		}
		if err != nil {
			return err
		}

		if rate := s.replayer.Rate(); lastFrameNs > 0 && rate > 0 {
			frameDelta := time.Duration(float64(frame.TimestampNanos-lastFrameNs) / rate)
			wallDelta := time.Since(lastWall)
			if frameDelta > wallDelta {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(frameDelta - wallDelta):
				}
			}
		}
		lastFrameNs = frame.TimestampNanos
		lastWall = time.Now()

		emit(frame)
	}
}
