package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileExtension is the extension for phi.vision log files.
const FileExtension = ".pvlog"

// logVersion is the pvlog format version written into new headers.
const logVersion = "1.0"

// LogHeader is the first line of a pvlog file. Every following line is one
// FrameRecord JSON document.
type LogHeader struct {
	Version      string `json:"version"`
	CreatedNanos int64  `json:"created_unix_nanos"`
	SourceID     string `json:"source_id"`
}

// Recorder appends FrameRecords to a pvlog file.
type Recorder struct {
	path string

	mu         sync.Mutex
	file       *os.File
	w          *bufio.Writer
	frameCount uint64
	closed     bool
}

// NewRecorder creates a pvlog at the given path and writes its header. If
// path is empty, a timestamped file is created in the system temp directory.
func NewRecorder(path, sourceID string) (*Recorder, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), fmt.Sprintf("pvlog_%s_%d%s", sourceID, time.Now().Unix(), FileExtension))
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	r := &Recorder{
		path: path,
		file: f,
		w:    bufio.NewWriter(f),
	}

	header := LogHeader{
		Version:      logVersion,
		CreatedNanos: time.Now().UnixNano(),
		SourceID:     sourceID,
	}
	if err := r.writeLine(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	return r, nil
}

// Record appends a FrameRecord to the log.
func (r *Recorder) Record(frame *FrameRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("recorder is closed")
	}
	if err := r.writeLine(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	r.frameCount++
	return nil
}

// writeLine marshals v and appends it as one line. Caller holds r.mu except
// during construction.
func (r *Recorder) writeLine(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := r.w.Write(data); err != nil {
		return err
	}
	return r.w.WriteByte('\n')
}

// Flush pushes buffered frames to disk without closing the log.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.w.Flush()
}

// Path returns the path of the log file.
func (r *Recorder) Path() string {
	return r.path
}

// FrameCount returns the number of frames recorded.
func (r *Recorder) FrameCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameCount
}

// Close flushes and closes the log. Closing twice is a no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.w.Flush(); err != nil {
		r.file.Close()
		return fmt.Errorf("failed to flush log: %w", err)
	}
	return r.file.Close()
}
