package network

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aperture-data/phi.vision/internal/vision"
)

// DatagramStats tracks ingest statistics with thread-safe operations.
type DatagramStats struct {
	mu             sync.Mutex
	packetCount    int64
	byteCount      int64
	decodeErrCount int64
	candidateCount int64
	droppedCount   int64
	lastReset      time.Time
}

// NewDatagramStats creates a new DatagramStats instance.
func NewDatagramStats() *DatagramStats {
	return &DatagramStats{lastReset: time.Now()}
}

// AddPacket increments datagram count and byte count.
func (ds *DatagramStats) AddPacket(bytes int) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.packetCount++
	ds.byteCount += int64(bytes)
}

// AddDecodeError increments the malformed-datagram count.
func (ds *DatagramStats) AddDecodeError() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.decodeErrCount++
}

// AddCandidates increments the decoded candidate count.
func (ds *DatagramStats) AddCandidates(count int) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.candidateCount += int64(count)
}

// AddDropped increments the forward-drop count.
func (ds *DatagramStats) AddDropped() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.droppedCount++
}

// GetAndReset returns current stats and resets counters.
func (ds *DatagramStats) GetAndReset() (packets, bytes, decodeErrs, candidates, dropped int64, duration time.Duration) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	now := time.Now()
	duration = now.Sub(ds.lastReset)
	packets = ds.packetCount
	bytes = ds.byteCount
	decodeErrs = ds.decodeErrCount
	candidates = ds.candidateCount
	dropped = ds.droppedCount

	ds.packetCount = 0
	ds.byteCount = 0
	ds.decodeErrCount = 0
	ds.candidateCount = 0
	ds.droppedCount = 0
	ds.lastReset = now

	return
}

// LogStats logs a one-line rate summary. Quiet when nothing arrived in the
// interval.
func (ds *DatagramStats) LogStats() {
	packets, bytes, decodeErrs, candidates, dropped, duration := ds.GetAndReset()
	if packets == 0 && dropped == 0 {
		return
	}

	secs := duration.Seconds()
	if secs <= 0 {
		secs = 1
	}
	packetsPerSec := float64(packets) / secs
	kbPerSec := float64(bytes) / secs / 1024
	candidatesPerSec := float64(candidates) / secs

	logMsg := fmt.Sprintf("Ingest stats (/sec): %.1f KB, %.1f datagrams, %s candidates",
		kbPerSec, packetsPerSec, vision.FormatWithCommas(int64(candidatesPerSec)))
	if decodeErrs > 0 {
		logMsg += fmt.Sprintf(", %d decode errors", decodeErrs)
	}
	if dropped > 0 {
		logMsg += fmt.Sprintf(", %d dropped on forward", dropped)
	}

	log.Print(logMsg)
}
