package network

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"
)

// PacketStats is the minimal statistics surface the forwarder needs.
type PacketStats interface {
	AddDropped()
}

// PacketForwarder relays raw datagrams to another address asynchronously,
// so a downstream tool can tap the ingest stream without a second camera
// feed. Non-blocking: the listener never waits on the relay.
type PacketForwarder struct {
	conn        *net.UDPConn
	channel     chan []byte
	stats       PacketStats
	logInterval time.Duration
	address     string
}

// NewPacketForwarder creates a forwarder that relays datagrams to the
// specified address.
func NewPacketForwarder(addr string, port int, stats PacketStats, logInterval time.Duration) (*PacketForwarder, error) {
	forwardAddress := fmt.Sprintf("%s:%d", addr, port)
	forwardUDPAddr, err := net.ResolveUDPAddr("udp", forwardAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, forwardUDPAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}

	return &PacketForwarder{
		conn:        conn,
		channel:     make(chan []byte, 1000),
		stats:       stats,
		logInterval: logInterval,
		address:     forwardAddress,
	}, nil
}

// Start begins the forwarding goroutine. Write errors are batched and
// logged once per interval rather than per datagram.
func (f *PacketForwarder) Start(ctx context.Context) {
	go func() {
		droppedCount := 0
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case packet, ok := <-f.channel:
				if !ok {
					return
				}
				if _, err := f.conn.Write(packet); err != nil {
					droppedCount++
					lastError = err
				}
			case <-ticker.C:
				if droppedCount > 0 && lastError != nil {
					log.Printf("\033[93mDropped %d forwarded datagrams due to errors (latest: %v)\033[0m", droppedCount, lastError)
					droppedCount = 0
					lastError = nil
				}
			}
		}
	}()

	log.Printf("Forwarding datagrams to %s", f.address)
}

// ForwardAsync queues a datagram for relay without blocking. When the
// buffer is full the datagram is dropped and counted.
func (f *PacketForwarder) ForwardAsync(packet []byte) {
	// The listener reuses its read buffer, so relay a copy.
	packetCopy := make([]byte, len(packet))
	copy(packetCopy, packet)

	select {
	case f.channel <- packetCopy:
	default:
		if f.stats != nil {
			f.stats.AddDropped()
		}
	}
}

// Close closes the UDP connection and channel.
func (f *PacketForwarder) Close() error {
	close(f.channel)
	return f.conn.Close()
}
