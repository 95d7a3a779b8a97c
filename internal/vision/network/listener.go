// Package network carries candidate frames into the engine and stable-set
// updates out of it: a UDP listener decoding one FrameRecord JSON document
// per datagram, a raw datagram relay, and an overlay publisher for external
// visualisers.
package network

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/aperture-data/phi.vision/internal/vision/stream"
)

// DefaultMaxDatagramSize bounds one frame document. Candidate-heavy frames
// run to tens of kilobytes; 64KiB covers the largest UDP payload anyway.
const DefaultMaxDatagramSize = 64 * 1024

// PacketStatsInterface provides datagram statistics management.
type PacketStatsInterface interface {
	AddPacket(bytes int)
	AddDecodeError()
	AddCandidates(count int)
	AddDropped()
	LogStats()
}

// UDPListener receives frame datagrams, relays them to an optional raw
// forwarder, and hands decoded frames to the configured callback.
type UDPListener struct {
	address       string
	rcvBuf        int
	maxDatagram   int
	logInterval   time.Duration
	socketFactory UDPSocketFactory
	socket        UDPSocket
	stats         PacketStatsInterface
	forwarder     *PacketForwarder
	onFrame       func(*stream.FrameRecord)
}

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address         string
	RcvBuf          int
	MaxDatagramSize int
	LogInterval     time.Duration
	SocketFactory   UDPSocketFactory
	Stats           PacketStatsInterface
	Forwarder       *PacketForwarder
	OnFrame         func(*stream.FrameRecord)
}

// NewUDPListener creates a new UDP listener with the provided configuration.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	// A no-op stats implementation when none is supplied keeps the packet
	// handling and logging paths free of nil checks.
	var stats PacketStatsInterface
	if config.Stats != nil {
		stats = config.Stats
	} else {
		stats = &noopStats{}
	}

	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}

	maxDatagram := config.MaxDatagramSize
	if maxDatagram <= 0 {
		maxDatagram = DefaultMaxDatagramSize
	}

	var factory UDPSocketFactory
	if config.SocketFactory != nil {
		factory = config.SocketFactory
	} else {
		factory = &RealUDPSocketFactory{}
	}

	return &UDPListener{
		address:       config.Address,
		rcvBuf:        config.RcvBuf,
		maxDatagram:   maxDatagram,
		logInterval:   logInterval,
		socketFactory: factory,
		stats:         stats,
		forwarder:     config.Forwarder,
		onFrame:       config.OnFrame,
	}
}

// noopStats is a PacketStatsInterface implementation that does nothing. It
// is the safe default when no stats collector is provided.
type noopStats struct{}

func (n *noopStats) AddPacket(bytes int)     {}
func (n *noopStats) AddDecodeError()         {}
func (n *noopStats) AddCandidates(count int) {}
func (n *noopStats) AddDropped()             {}
func (n *noopStats) LogStats()               {}

// Start begins listening for frame datagrams and blocks until ctx ends.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	socket, err := l.socketFactory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.socket = socket
	defer socket.Close()

	if l.rcvBuf > 0 {
		if err := socket.SetReadBuffer(l.rcvBuf); err != nil {
			log.Printf("Warning: Failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}

	log.Printf("UDP listener started on %s with receive buffer %d bytes", l.address, l.rcvBuf)

	if l.forwarder != nil {
		l.forwarder.Start(ctx)
	}

	go l.startStatsLogging(ctx)

	buffer := make([]byte, l.maxDatagram)

	for {
		select {
		case <-ctx.Done():
			log.Print("UDP listener stopping due to context cancellation")
			return ctx.Err()
		default:
			// Short read deadlines let the loop observe cancellation.
			if err := socket.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
				log.Printf("UDP deadline error: %v", err)
			}

			n, addr, err := socket.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue // Continue on timeout to check context
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("UDP read error: %v", err)
				continue
			}

			if err := l.handleDatagram(buffer[:n]); err != nil {
				log.Printf("Error handling datagram from %v: %v", addr, err)
			}
		}
	}
}

// startStatsLogging periodically logs datagram statistics.
func (l *UDPListener) startStatsLogging(ctx context.Context) {
	// An initial report shortly after startup avoids a long silence on
	// first run. Then continue on the configured interval.
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
		l.stats.LogStats()
	}

	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}

// handleDatagram processes a single received datagram. Decode failures are
// counted and reported but never stop the listener.
func (l *UDPListener) handleDatagram(packet []byte) error {
	l.stats.AddPacket(len(packet))

	if l.forwarder != nil {
		l.forwarder.ForwardAsync(packet)
	}

	frame, err := stream.DecodeFrame(packet)
	if err != nil {
		l.stats.AddDecodeError()
		return err
	}
	l.stats.AddCandidates(len(frame.Candidates))

	if l.onFrame != nil {
		l.onFrame(frame)
	}
	return nil
}

// Close closes the UDP listener and releases resources.
func (l *UDPListener) Close() error {
	if l.socket != nil {
		return l.socket.Close()
	}
	return nil
}
