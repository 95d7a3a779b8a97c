//go:build pcap
// +build pcap

// Package main provides a PCAP replay tool for captured frame streams.
// It extracts UDP payloads on the frame port from a capture file and
// replays them to a running phi-vision server with original timing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

func main() {
	pcapFile := flag.String("pcap", "", "Path to PCAP file to replay (required)")
	port := flag.Int("port", 4040, "UDP port to filter on")
	addr := flag.String("addr", "localhost:4040", "UDP address of the receiving server")
	speed := flag.Float64("speed", 1.0, "Replay speed multiplier (0 = as fast as possible)")
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("PCAP file is required")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", *addr)
	if err != nil {
		log.Fatalf("Failed to resolve %s: %v", *addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := replayPCAP(ctx, *pcapFile, *port, *speed, conn); err != nil && err != context.Canceled {
		log.Fatalf("Replay failed: %v", err)
	}
}

// replayPCAP streams UDP payloads from the capture to conn, reproducing the
// original inter-packet gaps scaled by speed.
func replayPCAP(ctx context.Context, pcapFile string, udpPort int, speed float64, conn *net.UDPConn) error {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return fmt.Errorf("failed to set BPF filter '%s': %w", filterStr, err)
	}
	log.Printf("PCAP replay: BPF filter set: %s (speed: %.1fx)", filterStr, speed)

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	packetCount := 0
	byteCount := 0
	startTime := time.Now()

	var lastPacketTime time.Time

	for {
		select {
		case <-ctx.Done():
			log.Printf("PCAP replay stopping due to context cancellation (sent %d packets)", packetCount)
			return ctx.Err()
		case packet := <-packetSource.Packets():
			if packet == nil {
				// End of PCAP file
				elapsed := time.Since(startTime)
				log.Printf("PCAP replay complete: %d packets (%d bytes) in %v", packetCount, byteCount, elapsed)
				return nil
			}

			captureTime := packet.Metadata().Timestamp
			if !lastPacketTime.IsZero() && speed > 0 {
				scaledDelay := time.Duration(float64(captureTime.Sub(lastPacketTime)) / speed)
				if scaledDelay > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(scaledDelay):
					}
				}
			}
			lastPacketTime = captureTime

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue // Skip non-UDP packets
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok {
				continue
			}
			payload := udp.Payload
			if len(payload) == 0 {
				continue
			}

			if _, err := conn.Write(payload); err != nil {
				log.Printf("Failed to send packet %d: %v", packetCount+1, err)
				continue
			}
			packetCount++
			byteCount += len(payload)

			if packetCount%1000 == 0 {
				elapsed := time.Since(startTime)
				log.Printf("PCAP replay progress: %d packets in %v (%.0f pkt/s, speed: %.1fx)",
					packetCount, elapsed, float64(packetCount)/elapsed.Seconds(), speed)
			}
		}
	}
}
