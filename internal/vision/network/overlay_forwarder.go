package network

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/aperture-data/phi.vision/internal/vision"
)

// overlayBuffer is how many stable-set updates may queue before drops.
const overlayBuffer = 256

// OverlayUpdate is the datagram payload published to external visualisers.
type OverlayUpdate struct {
	Type      string            `json:"type"`
	SentNanos int64             `json:"sent_unix_nanos"`
	StableSet *vision.StableSet `json:"stable_set"`
}

// OverlayUpdateType tags stable-set datagrams.
const OverlayUpdateType = "stable_set"

// OverlayForwarder publishes stable-set updates as JSON datagrams to a
// configured UDP address. Publishing never blocks the engine's notify path:
// updates queue on a buffered channel and drop when the consumer lags.
type OverlayForwarder struct {
	conn        *net.UDPConn
	channel     chan *vision.StableSet
	address     string
	logInterval time.Duration

	sentCount    atomic.Int64
	droppedCount atomic.Int64
}

// NewOverlayForwarder creates an overlay publisher for the given address.
func NewOverlayForwarder(addr string, port int, logInterval time.Duration) (*OverlayForwarder, error) {
	overlayAddress := fmt.Sprintf("%s:%d", addr, port)
	overlayUDPAddr, err := net.ResolveUDPAddr("udp", overlayAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve overlay address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, overlayUDPAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create overlay connection: %w", err)
	}

	if logInterval <= 0 {
		logInterval = time.Minute
	}

	return &OverlayForwarder{
		conn:        conn,
		channel:     make(chan *vision.StableSet, overlayBuffer),
		address:     overlayAddress,
		logInterval: logInterval,
	}, nil
}

// Start begins the overlay writer goroutine. Encode and write errors are
// batched and logged once per interval.
func (f *OverlayForwarder) Start(ctx context.Context) {
	go func() {
		errCount := 0
		var lastError error
		lastDropReport := int64(0)
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Printf("Overlay forwarder stopping (sent %d updates)", f.sentCount.Load())
				return
			case set, ok := <-f.channel:
				if !ok {
					return
				}
				data, err := json.Marshal(OverlayUpdate{
					Type:      OverlayUpdateType,
					SentNanos: time.Now().UnixNano(),
					StableSet: set,
				})
				if err != nil {
					errCount++
					lastError = err
					continue
				}
				if _, err := f.conn.Write(data); err != nil {
					errCount++
					lastError = err
					continue
				}
				f.sentCount.Add(1)
			case <-ticker.C:
				if errCount > 0 && lastError != nil {
					log.Printf("\033[93mFailed to publish %d overlay updates (latest: %v)\033[0m", errCount, lastError)
					errCount = 0
					lastError = nil
				}
				if dropped := f.droppedCount.Load(); dropped > lastDropReport {
					log.Printf("Overlay consumer lagging: dropped %d updates", dropped-lastDropReport)
					lastDropReport = dropped
				}
			}
		}
	}()

	log.Printf("Publishing overlay updates to %s", f.address)
}

// PublishStableSet queues a stable-set update without blocking. Sets are
// immutable after publication, so no copy is taken.
func (f *OverlayForwarder) PublishStableSet(set *vision.StableSet) {
	if set == nil {
		return
	}
	select {
	case f.channel <- set:
	default:
		f.droppedCount.Add(1)
	}
}

// Sent returns the number of updates written so far.
func (f *OverlayForwarder) Sent() int64 {
	return f.sentCount.Load()
}

// Dropped returns the number of updates dropped on a full buffer.
func (f *OverlayForwarder) Dropped() int64 {
	return f.droppedCount.Load()
}

// Close closes the UDP connection and channel.
func (f *OverlayForwarder) Close() error {
	close(f.channel)
	return f.conn.Close()
}
