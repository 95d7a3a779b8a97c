package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aperture-data/phi.vision/internal/config"
	"github.com/aperture-data/phi.vision/internal/db"
	"github.com/aperture-data/phi.vision/internal/version"
	"github.com/aperture-data/phi.vision/internal/vision"
	"github.com/aperture-data/phi.vision/internal/vision/monitor"
	"github.com/aperture-data/phi.vision/internal/vision/network"
	"github.com/aperture-data/phi.vision/internal/vision/stream"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	udpPort     = flag.Int("udp-port", 4040, "UDP port to listen for frame datagrams")
	udpAddress  = flag.String("udp-addr", "", "UDP bind address (default: listen on all interfaces)")
	dbFile      = flag.String("db", "pattern_data.db", "Path to the SQLite database file")
	configFile  = flag.String("config", "", "Tuning config JSON file (default: built-in defaults)")
	devMode     = flag.Bool("dev", false, "Run with the synthetic frame source instead of UDP")
	recordFile  = flag.String("record", "", "Record incoming frames to this pvlog file")
	forward     = flag.Bool("forward", false, "Publish stable-set updates over UDP")
	forwardAddr = flag.String("forward-addr", "localhost", "Address to publish stable-set updates to")
	forwardPort = flag.Int("forward-port", 4041, "Port to publish stable-set updates to")
	relay       = flag.Bool("relay", false, "Relay raw frame datagrams to another port")
	relayAddr   = flag.String("relay-addr", "localhost", "Address to relay datagrams to")
	relayPort   = flag.Int("relay-port", 4042, "Port to relay datagrams to")
	plotDir     = flag.String("plot-dir", "", "Write score plots under this directory on shutdown")
	sessionNote = flag.String("session-note", "", "Note stored with the capture session")
	rcvBuf      = flag.Int("rcvbuf", 4<<20, "UDP receive buffer size in bytes (default 4MB)")
	logInterval = flag.Int("log-interval", 60, "Ingest statistics logging interval in seconds")
	logDiag     = flag.Bool("log-diag", false, "Enable diagnostic logging")
	logTrace    = flag.Bool("log-trace", false, "Enable per-frame trace logging (implies -log-diag)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// configureLogWriters maps the logging flags onto the engine's three streams.
// Ops is always on; trace implies diag.
func configureLogWriters() {
	w := vision.LogWriters{Ops: os.Stderr}
	if *logDiag || *logTrace {
		w.Diag = os.Stderr
	}
	if *logTrace {
		w.Trace = os.Stderr
	}
	vision.SetLogWriters(w)
}

// loadTuning returns the active tuning config: the file named by -config, or
// an empty config whose getters supply the built-in defaults.
func loadTuning() *config.TuningConfig {
	if *configFile == "" {
		log.Print("Using built-in tuning defaults")
		return config.EmptyTuningConfig()
	}
	tuning, err := config.LoadTuningConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load tuning config %s: %v", *configFile, err)
	}
	log.Printf("Loaded tuning config from %s", *configFile)
	return tuning
}

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("phi-vision %s\n", version.String())
		return
	}

	// The migrate subcommand runs against the database named by -db and
	// exits before any server setup.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		db.RunMigrateCommand(args[1:], *dbFile)
		return
	}

	if *listen == "" {
		log.Fatal("HTTP listen address is required")
	}

	configureLogWriters()
	tuning := loadTuning()

	// Construct UDP listen address
	var udpListenAddr string
	if *udpAddress == "" {
		udpListenAddr = fmt.Sprintf(":%d", *udpPort)
	} else {
		udpListenAddr = fmt.Sprintf("%s:%d", *udpAddress, *udpPort)
	}

	sourceLabel := fmt.Sprintf("udp:%d", *udpPort)
	if *devMode {
		sourceLabel = "synthetic"
	}

	// Initialize database and open a capture session
	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to pattern database: %v", err)
	}
	defer database.Close()

	store := vision.NewSightingStore(database.DB)
	store.SetBucketSize(tuning.GetHistoryBucketPx())

	sessionID, err := store.InsertSession(time.Now(), sourceLabel, *sessionNote)
	if err != nil {
		log.Fatalf("Failed to open capture session: %v", err)
	}
	log.Printf("Opened capture session %s (source: %s)", sessionID, sourceLabel)

	engine := vision.NewEngine(tuning, nil)
	engine.SetSightingSink(store, sessionID)

	frames := monitor.NewFrameCache()

	// Optional pvlog recorder
	var recorder *stream.Recorder
	if *recordFile != "" {
		recorder, err = stream.NewRecorder(*recordFile, sourceLabel)
		if err != nil {
			log.Fatalf("Failed to create pvlog recorder: %v", err)
		}
		defer recorder.Close()
		log.Printf("Recording frames to %s", recorder.Path())
	}

	// Create a wait group for the frame source, plotter, and HTTP server routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional stable-set publisher, fed from the engine's notify path
	if *forward {
		overlay, err := network.NewOverlayForwarder(*forwardAddr, *forwardPort, time.Duration(*logInterval)*time.Second)
		if err != nil {
			log.Fatalf("Failed to create overlay forwarder: %v", err)
		}
		defer overlay.Close()
		overlay.Start(ctx)
		engine.SetNotifyFunc(func(prev, curr *vision.StableSet) {
			overlay.PublishStableSet(curr)
		})
	}

	handleFrame := func(rec *stream.FrameRecord) {
		frames.Store(rec)
		if recorder != nil {
			if err := recorder.Record(rec); err != nil {
				log.Printf("Failed to record frame %d: %v", rec.FrameID, err)
			}
		}
		engine.ProcessFrame(rec.Frame())
	}

	// Frame source routine: synthetic generator in dev mode, UDP listener otherwise
	wg.Add(1)
	if *devMode {
		source := stream.NewSyntheticSource("synthetic", 0)
		go func() {
			defer wg.Done()
			log.Printf("Synthetic source running at %.1f fps", source.FrameRate)
			if err := source.Run(ctx, handleFrame); err != nil && err != context.Canceled {
				log.Printf("Synthetic source error: %v", err)
			}
			log.Print("Frame source routine terminated")
		}()
	} else {
		stats := network.NewDatagramStats()

		var relayForwarder *network.PacketForwarder
		if *relay {
			relayForwarder, err = network.NewPacketForwarder(*relayAddr, *relayPort, stats, time.Duration(*logInterval)*time.Second)
			if err != nil {
				log.Fatalf("Failed to create datagram relay: %v", err)
			}
			defer relayForwarder.Close()
		}

		listener := network.NewUDPListener(network.UDPListenerConfig{
			Address:     udpListenAddr,
			RcvBuf:      *rcvBuf,
			LogInterval: time.Duration(*logInterval) * time.Second,
			Stats:       stats,
			Forwarder:   relayForwarder,
			OnFrame:     handleFrame,
		})
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && err != context.Canceled {
				log.Printf("UDP listener error: %v", err)
			}
			log.Print("Frame source routine terminated")
		}()
	}

	// Optional score plotter, sampling the stable set until shutdown
	if *plotDir != "" {
		plotter := monitor.NewScorePlotter()
		outputDir := monitor.MakePlotOutputDir(*plotDir, *recordFile)
		if err := plotter.Start(outputDir); err != nil {
			log.Fatalf("Failed to start score plotter: %v", err)
		}
		log.Printf("Score plotter sampling to %s", outputDir)
		wg.Add(1)
		go func() {
			defer wg.Done()
			plotter.Run(ctx, engine, 2*time.Second)
		}()
	}

	// Monitor web server routine
	ws := monitor.NewWebServer(monitor.WebServerConfig{
		Address:           *listen,
		Engine:            engine,
		DB:                database,
		Store:             store,
		SessionID:         sessionID,
		SourceLabel:       sourceLabel,
		UDPPort:           *udpPort,
		ForwardingEnabled: *forward,
		ForwardAddr:       *forwardAddr,
		ForwardPort:       *forwardPort,
		Frames:            frames,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Start(ctx); err != nil {
			log.Printf("Web server error: %v", err)
		}
	}()

	// Wait for all goroutines to finish
	wg.Wait()

	if err := store.EndSession(sessionID, time.Now()); err != nil {
		log.Printf("Failed to close session %s: %v", sessionID, err)
	}

	snap := engine.Stats().Snapshot()
	log.Printf("Session %s: %d frames, %d detections, %d stable revisions",
		sessionID, snap.Frames, snap.Detections, engine.StableSet().Revision)
	log.Print("Graceful shutdown complete")
}
