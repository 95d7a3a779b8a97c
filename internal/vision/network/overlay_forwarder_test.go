package network

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/aperture-data/phi.vision/internal/geometry"
	"github.com/aperture-data/phi.vision/internal/vision"
)

func testStableSet(revision uint64) *vision.StableSet {
	return &vision.StableSet{
		Patterns: []vision.StablePattern{{
			Class:        vision.ClassGoldenRatio,
			Confidence:   0.92,
			Center:       geometry.Point{X: 180, Y: 150},
			Box:          geometry.Rect{X: 100, Y: 100, W: 161.8, H: 100},
			Observations: 4,
		}},
		ComputedNanos: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).UnixNano(),
		Revision:      revision,
	}
}

func TestOverlayForwarder_PublishesStableSet(t *testing.T) {
	receiver, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("Failed to open receiver socket: %v", err)
	}
	defer receiver.Close()
	port := receiver.LocalAddr().(*net.UDPAddr).Port

	forwarder, err := NewOverlayForwarder("127.0.0.1", port, time.Hour)
	if err != nil {
		t.Fatalf("NewOverlayForwarder failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	forwarder.Start(ctx)

	forwarder.PublishStableSet(testStableSet(7))

	receiver.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, DefaultMaxDatagramSize)
	n, _, err := receiver.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("Overlay datagram never arrived: %v", err)
	}

	var update OverlayUpdate
	if err := json.Unmarshal(buf[:n], &update); err != nil {
		t.Fatalf("Failed to parse overlay datagram: %v", err)
	}
	if update.Type != OverlayUpdateType {
		t.Errorf("Expected type %q, got %q", OverlayUpdateType, update.Type)
	}
	if update.SentNanos <= 0 {
		t.Error("Expected a positive sent timestamp")
	}
	if update.StableSet == nil {
		t.Fatal("Expected a stable set payload")
	}
	if update.StableSet.Revision != 7 {
		t.Errorf("Expected revision 7, got %d", update.StableSet.Revision)
	}
	if len(update.StableSet.Patterns) != 1 {
		t.Fatalf("Expected 1 pattern, got %d", len(update.StableSet.Patterns))
	}
	if update.StableSet.Patterns[0].Class != vision.ClassGoldenRatio {
		t.Errorf("Expected class %q, got %q", vision.ClassGoldenRatio, update.StableSet.Patterns[0].Class)
	}

	if forwarder.Sent() != 1 {
		t.Errorf("Expected 1 sent update, got %d", forwarder.Sent())
	}
}

func TestOverlayForwarder_DropsWhenFull(t *testing.T) {
	// Not started: updates queue at capacity, then drop.
	forwarder, err := NewOverlayForwarder("127.0.0.1", 9, time.Hour)
	if err != nil {
		t.Fatalf("NewOverlayForwarder failed: %v", err)
	}
	defer forwarder.Close()

	for i := 0; i < overlayBuffer+1; i++ {
		forwarder.PublishStableSet(testStableSet(uint64(i)))
	}

	if forwarder.Dropped() != 1 {
		t.Errorf("Expected 1 dropped update, got %d", forwarder.Dropped())
	}
}

func TestOverlayForwarder_IgnoresNil(t *testing.T) {
	forwarder, err := NewOverlayForwarder("127.0.0.1", 9, time.Hour)
	if err != nil {
		t.Fatalf("NewOverlayForwarder failed: %v", err)
	}
	defer forwarder.Close()

	forwarder.PublishStableSet(nil)
	if len(forwarder.channel) != 0 {
		t.Errorf("Expected empty channel after nil publish, got %d queued", len(forwarder.channel))
	}
	if forwarder.Dropped() != 0 {
		t.Errorf("Expected no drops after nil publish, got %d", forwarder.Dropped())
	}
}
