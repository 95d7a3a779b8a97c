// Command pvlog-replay streams a recorded .pvlog file to a running
// phi-vision server over UDP.
//
// Usage:
//
//	go run ./cmd/tools/pvlog-replay [flags]
//
// Flags:
//
//	-f     Path to .pvlog file to replay (required)
//	-addr  UDP address of the receiving server (default: localhost:4040)
//	-rate  Playback rate multiplier (default: 1.0)
//	-loop  Loop playback when reaching end (default: false)
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os/signal"
	"syscall"

	"github.com/aperture-data/phi.vision/internal/vision/stream"
)

func main() {
	logPath := flag.String("f", "", "Path to .pvlog file (required)")
	addr := flag.String("addr", "localhost:4040", "UDP address of the receiving server")
	rate := flag.Float64("rate", 1.0, "Playback rate multiplier")
	loop := flag.Bool("loop", false, "Loop playback when reaching end")
	flag.Parse()

	if *logPath == "" {
		log.Fatal("Error: -f flag is required")
	}

	source, err := stream.NewReplaySource(*logPath)
	if err != nil {
		log.Fatalf("Failed to open log: %v", err)
	}
	defer source.Close()
	source.Loop = *loop
	source.Replayer().SetRate(*rate)

	rep := source.Replayer()
	startNs, endNs := rep.Span()
	log.Printf("Log info: %d frames, %.2f seconds, source=%s",
		rep.TotalFrames(),
		float64(endNs-startNs)/1e9,
		rep.Header().SourceID)

	udpAddr, err := net.ResolveUDPAddr("udp", *addr)
	if err != nil {
		log.Fatalf("Failed to resolve %s: %v", *addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	log.Printf("Replaying to %s at %.1fx", *addr, *rate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sent := 0
	err = source.Run(ctx, func(frame *stream.FrameRecord) {
		data, err := stream.EncodeFrame(frame)
		if err != nil {
			log.Printf("Failed to encode frame %d: %v", frame.FrameID, err)
			return
		}
		if _, err := conn.Write(data); err != nil {
			log.Printf("Failed to send frame %d: %v", frame.FrameID, err)
			return
		}
		sent++
		if sent%500 == 0 {
			log.Printf("Sent %d frames", sent)
		}
	})
	if err != nil && err != context.Canceled {
		log.Fatalf("Replay failed: %v", err)
	}
	log.Printf("Replay complete: sent %d frames", sent)
}
