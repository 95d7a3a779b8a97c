// Package monitor serves the HTTP interface for a running recognition
// engine: a status page, the /api/vision JSON endpoints, and the debug
// chart surfaces.
package monitor

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/aperture-data/phi.vision/internal/db"
	"github.com/aperture-data/phi.vision/internal/httputil"
	"github.com/aperture-data/phi.vision/internal/version"
	"github.com/aperture-data/phi.vision/internal/vision"
)

//go:embed status.html
var StatusHTML embed.FS

// WebServer handles the HTTP interface for monitoring the recognition
// pipeline. It provides endpoints for health checks, the live stable set,
// tuning, and persisted sightings.
type WebServer struct {
	address           string
	engine            *vision.Engine
	db                *db.DB
	store             *vision.SightingStore
	sessionID         string
	sourceLabel       string
	udpPort           int
	forwardingEnabled bool
	forwardAddr       string
	forwardPort       int
	frames            *FrameCache
	server            *http.Server
	startTime         time.Time
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address           string
	Engine            *vision.Engine
	DB                *db.DB
	Store             *vision.SightingStore
	SessionID         string
	SourceLabel       string // where frames come from: "udp:4040", "synthetic", a pvlog path
	UDPPort           int
	ForwardingEnabled bool
	ForwardAddr       string
	ForwardPort       int
	Frames            *FrameCache
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:           config.Address,
		engine:            config.Engine,
		db:                config.DB,
		store:             config.Store,
		sessionID:         config.SessionID,
		sourceLabel:       config.SourceLabel,
		udpPort:           config.UDPPort,
		forwardingEnabled: config.ForwardingEnabled,
		forwardAddr:       config.ForwardAddr,
		forwardPort:       config.ForwardPort,
		frames:            config.Frames,
		startTime:         time.Now(),
	}
	if ws.frames == nil {
		ws.frames = NewFrameCache()
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/api/vision/stable", ws.handleStableSet)
	mux.HandleFunc("/api/vision/stats", ws.handleStats)
	mux.HandleFunc("/api/vision/classes", ws.handleClasses)
	mux.HandleFunc("/api/vision/classes/", ws.handleClassByName)
	mux.HandleFunc("/api/vision/config", ws.handleConfig)
	mux.HandleFunc("/api/vision/reset", ws.handleReset)
	mux.HandleFunc("/api/vision/sightings", ws.handleSightings)
	mux.HandleFunc("/api/vision/sightings/export", ws.handleSightingsExport)
	mux.HandleFunc("/api/vision/sessions/", ws.handleSessionByID)
	mux.HandleFunc("/debug/charts/overlay", ws.handleOverlayChart)
	mux.HandleFunc("/debug/charts/classes", ws.handleClassChart)

	if ws.db != nil {
		ws.db.AttachAdminRoutes(mux)
	}

	return mux
}

// handleHealth handles the health check endpoint.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "phi-vision", "version": %q, "timestamp": "%s"}`,
		version.String(), time.Now().UTC().Format(time.RFC3339))
}

// statusPattern is one stable pattern rendered for the status page.
type statusPattern struct {
	Name         string
	Confidence   string
	Center       string
	Observations int
	LastSeen     string
}

// handleStatus handles the main status page endpoint.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	forwardingStatus := "disabled"
	if ws.forwardingEnabled {
		forwardingStatus = fmt.Sprintf("enabled (%s:%d)", ws.forwardAddr, ws.forwardPort)
	}

	dbStatus := "not configured"
	if ws.db != nil {
		dbStatus = "connected"
	}

	tmpl, err := template.ParseFS(StatusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var stats vision.StatsSnapshot
	var stable *vision.StableSet
	trackerEntries := 0
	if ws.engine != nil {
		stats = ws.engine.Stats().Snapshot()
		stable = ws.engine.StableSet()
		trackerEntries = ws.engine.TrackerLen()
	} else {
		stable = &vision.StableSet{}
	}

	patterns := make([]statusPattern, 0, len(stable.Patterns))
	for _, p := range stable.Patterns {
		patterns = append(patterns, statusPattern{
			Name:         p.Class.DisplayName(),
			Confidence:   fmt.Sprintf("%.2f", p.Confidence),
			Center:       fmt.Sprintf("(%.0f, %.0f)", p.Center.X, p.Center.Y),
			Observations: p.Observations,
			LastSeen:     time.Unix(0, p.LastSeenNanos).UTC().Format(time.RFC3339),
		})
	}

	data := struct {
		Version          string
		HTTPAddress      string
		SourceLabel      string
		UDPPort          int
		ForwardingStatus string
		DBStatus         string
		SessionID        string
		Uptime           string
		Stats            vision.StatsSnapshot
		Revision         uint64
		TrackerEntries   int
		Patterns         []statusPattern
	}{
		Version:          version.String(),
		HTTPAddress:      ws.address,
		SourceLabel:      ws.sourceLabel,
		UDPPort:          ws.udpPort,
		ForwardingStatus: forwardingStatus,
		DBStatus:         dbStatus,
		SessionID:        ws.sessionID,
		Uptime:           time.Since(ws.startTime).Round(time.Second).String(),
		Stats:            stats,
		Revision:         stable.Revision,
		TrackerEntries:   trackerEntries,
		Patterns:         patterns,
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// writeJSONError delegates to the shared helper. Kept as a method so every
// handler in the package reports errors the same way.
func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	httputil.WriteJSONError(w, status, msg)
}

// Close shuts down the web server.
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}
