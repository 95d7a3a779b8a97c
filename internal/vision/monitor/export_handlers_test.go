package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestSightingsExportAPI(t *testing.T) {
	store := newStoreForTest(t)

	sessionID, err := store.InsertSession(monitorBase, "test", "export run")
	if err != nil {
		t.Fatalf("failed to insert session: %v", err)
	}

	eng := newPromotedEngine(t)
	if err := store.RecordStable(sessionID, eng.StableSet()); err != nil {
		t.Fatalf("failed to record stable set: %v", err)
	}

	server := NewWebServer(WebServerConfig{
		Address:   ":0",
		Engine:    eng,
		Store:     store,
		SessionID: sessionID,
	})
	mux := server.setupRoutes()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/vision/sightings/export", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
		File   string `json:"file"`
		Rows   int    `json:"rows"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %s", resp.Status)
	}
	if resp.Rows != 1 {
		t.Errorf("expected 1 exported row, got %d", resp.Rows)
	}
	if resp.File == "" {
		t.Fatal("expected an export file path")
	}
	defer os.Remove(resp.File)

	data, err := os.ReadFile(resp.File)
	if err != nil {
		t.Fatalf("failed to read exported file: %v", err)
	}
	if !strings.Contains(string(data), "golden_ratio") {
		t.Error("expected golden_ratio row in exported CSV")
	}
	if !strings.Contains(string(data), sessionID) {
		t.Error("expected session id in exported CSV")
	}
}

func TestSightingsExportAPI_Empty(t *testing.T) {
	store := newStoreForTest(t)

	server := NewWebServer(WebServerConfig{
		Address:   ":0",
		Store:     store,
		SessionID: "ses_nothing_recorded",
	})

	rr := httptest.NewRecorder()
	server.setupRoutes().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/vision/sightings/export", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 with nothing to export, got %d", rr.Code)
	}
}

func TestSightingsExportAPI_NoDatabase(t *testing.T) {
	server := NewWebServer(WebServerConfig{Address: ":0"})

	rr := httptest.NewRecorder()
	server.setupRoutes().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/vision/sightings/export", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a database, got %d", rr.Code)
	}
}

func TestSightingsExportAPI_MethodNotAllowed(t *testing.T) {
	store := newStoreForTest(t)
	server := NewWebServer(WebServerConfig{Address: ":0", Store: store})

	rr := httptest.NewRecorder()
	server.setupRoutes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/vision/sightings/export", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET export, got %d", rr.Code)
	}
}
