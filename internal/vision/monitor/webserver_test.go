package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aperture-data/phi.vision/internal/geometry"
	"github.com/aperture-data/phi.vision/internal/timeutil"
	"github.com/aperture-data/phi.vision/internal/vision"
)

var monitorBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// goldenTestFrame carries one golden-rectangle candidate, confident enough
// to promote after three admitted frames.
func goldenTestFrame(at time.Time) vision.Frame {
	return vision.Frame{
		Candidates: []vision.Candidate{{
			Kind: vision.RegionRect,
			Rect: geometry.Rect{X: 100, Y: 100, W: 161.8, H: 100},
		}},
		Timestamp: at,
		Source:    "test",
	}
}

// newPromotedEngine returns an engine that already publishes one stable
// golden-ratio pattern.
func newPromotedEngine(t *testing.T) *vision.Engine {
	t.Helper()
	eng := vision.NewEngine(nil, timeutil.NewFake(monitorBase))
	for i := 0; i < 3; i++ {
		eng.ProcessFrame(goldenTestFrame(monitorBase.Add(time.Duration(i) * 150 * time.Millisecond)))
	}
	if len(eng.StableSet().Patterns) != 1 {
		t.Fatalf("expected 1 stable pattern after warmup, got %d", len(eng.StableSet().Patterns))
	}
	return eng
}

func TestNewWebServer(t *testing.T) {
	eng := vision.NewEngine(nil, timeutil.NewFake(monitorBase))

	config := WebServerConfig{
		Address:           ":0",
		Engine:            eng,
		SourceLabel:       "udp:4040",
		UDPPort:           4040,
		ForwardingEnabled: true,
		ForwardAddr:       "localhost",
		ForwardPort:       4041,
	}

	server := NewWebServer(config)

	if server == nil {
		t.Fatal("NewWebServer returned nil")
	}

	if server.engine != eng {
		t.Error("WebServer engine not set correctly")
	}

	if server.udpPort != 4040 {
		t.Error("WebServer udpPort not set correctly")
	}

	if server.sourceLabel != "udp:4040" {
		t.Error("WebServer sourceLabel not set correctly")
	}

	if server.frames == nil {
		t.Error("WebServer should default to an empty frame cache")
	}
}

func TestWebServer_StatusHandler(t *testing.T) {
	eng := vision.NewEngine(nil, timeutil.NewFake(monitorBase))

	config := WebServerConfig{
		Address:     ":0",
		Engine:      eng,
		SourceLabel: "synthetic",
		UDPPort:     4040,
	}

	server := NewWebServer(config)

	// Feed a frame so the counters are non-zero
	eng.ProcessFrame(goldenTestFrame(monitorBase))

	req, err := http.NewRequest("GET", "/", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	mux := server.setupRoutes()
	mux.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("Status handler returned wrong status code: got %v want %v",
			status, http.StatusOK)
	}

	body := rr.Body.String()

	if !strings.Contains(body, "Pattern Monitor") {
		t.Error("Response should contain 'Pattern Monitor'")
	}

	if !strings.Contains(body, "4040") {
		t.Error("Response should contain the UDP port")
	}
}

func TestWebServer_StatusShowsStablePatterns(t *testing.T) {
	eng := newPromotedEngine(t)

	server := NewWebServer(WebServerConfig{
		Address: ":0",
		Engine:  eng,
		UDPPort: 4040,
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	server.setupRoutes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "Golden Ratio") {
		t.Error("Response should list the promoted pattern's display name")
	}
}

func TestWebServer_StatusForwardingLabel(t *testing.T) {
	eng := vision.NewEngine(nil, timeutil.NewFake(monitorBase))

	server := NewWebServer(WebServerConfig{
		Address:           ":0",
		Engine:            eng,
		UDPPort:           3000,
		ForwardingEnabled: true,
		ForwardAddr:       "192.168.1.100",
		ForwardPort:       4041,
	})

	if !server.forwardingEnabled {
		t.Error("WebServer forwardingEnabled not set correctly")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	server.setupRoutes().ServeHTTP(rr, req)

	body := rr.Body.String()

	if !strings.Contains(body, "enabled (192.168.1.100:4041)") {
		t.Error("Response should describe the forwarding target")
	}

	if !strings.Contains(body, "3000") {
		t.Error("Response should contain the correct UDP port")
	}
}

func TestWebServer_HealthHandler(t *testing.T) {
	server := NewWebServer(WebServerConfig{
		Address: ":0",
		Engine:  vision.NewEngine(nil, timeutil.NewFake(monitorBase)),
		UDPPort: 4040,
	})

	req, err := http.NewRequest("GET", "/health", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	mux := server.setupRoutes()
	mux.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("Health handler returned wrong status code: got %v want %v",
			status, http.StatusOK)
	}

	expected := "application/json"
	if ctype := rr.Header().Get("Content-Type"); ctype != expected {
		t.Errorf("Health handler returned wrong content type: got %v want %v",
			ctype, expected)
	}

	body := rr.Body.String()

	if !strings.Contains(body, `"status": "ok"`) {
		t.Error("Response should contain status: ok (with spaces)")
	}

	if !strings.Contains(body, `"service": "phi-vision"`) {
		t.Error("Response should contain service: phi-vision (with spaces)")
	}
}

func TestWebServer_RootNotFound(t *testing.T) {
	server := NewWebServer(WebServerConfig{
		Address: ":0",
		Engine:  vision.NewEngine(nil, timeutil.NewFake(monitorBase)),
	})

	req := httptest.NewRequest(http.MethodGet, "/no-such-page", nil)
	rr := httptest.NewRecorder()
	server.setupRoutes().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", rr.Code)
	}
}

func TestWebServer_StartStop(t *testing.T) {
	server := NewWebServer(WebServerConfig{
		Address: ":0", // Use port 0 to get an available port
		Engine:  vision.NewEngine(nil, timeutil.NewFake(monitorBase)),
		UDPPort: 4040,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		err := server.Start(ctx)
		if err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Give the server time to start
	time.Sleep(50 * time.Millisecond)

	cancel()

	// Wait a bit for the server to stop
	time.Sleep(50 * time.Millisecond)

	select {
	case err := <-errChan:
		t.Fatalf("Server start failed: %v", err)
	default:
		// No error, which is what we expect
	}
}

func BenchmarkWebServer_StatusHandler(b *testing.B) {
	eng := vision.NewEngine(nil, timeutil.NewFake(monitorBase))
	for i := 0; i < 3; i++ {
		eng.ProcessFrame(goldenTestFrame(monitorBase.Add(time.Duration(i) * 150 * time.Millisecond)))
	}

	server := NewWebServer(WebServerConfig{
		Address: ":0",
		Engine:  eng,
		UDPPort: 4040,
	})

	req, err := http.NewRequest("GET", "/", nil)
	if err != nil {
		b.Fatal(err)
	}

	mux := server.setupRoutes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
	}
}

func BenchmarkWebServer_HealthHandler(b *testing.B) {
	server := NewWebServer(WebServerConfig{
		Address: ":0",
		Engine:  vision.NewEngine(nil, timeutil.NewFake(monitorBase)),
		UDPPort: 4040,
	})

	req, err := http.NewRequest("GET", "/health", nil)
	if err != nil {
		b.Fatal(err)
	}

	mux := server.setupRoutes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
	}
}
