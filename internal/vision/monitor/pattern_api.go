package monitor

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aperture-data/phi.vision/internal/geometry"
	"github.com/aperture-data/phi.vision/internal/httputil"
	"github.com/aperture-data/phi.vision/internal/vision"
)

// StablePatternResponse represents a stable pattern in JSON API responses.
type StablePatternResponse struct {
	Class        string                `json:"class"`
	DisplayName  string                `json:"display_name"`
	Confidence   float64               `json:"confidence"`
	Center       geometry.Point        `json:"center"`
	Box          geometry.Rect         `json:"box"`
	Math         vision.MathProperties `json:"math,omitempty"`
	Observations int                   `json:"observations"`
	AgeSeconds   float64               `json:"age_seconds"`
	FirstSeen    string                `json:"first_seen"`
	LastSeen     string                `json:"last_seen"`
}

// StableSetResponse is the JSON response for the current stable set.
type StableSetResponse struct {
	Patterns   []StablePatternResponse `json:"patterns"`
	Count      int                     `json:"count"`
	Revision   uint64                  `json:"revision"`
	ComputedAt string                  `json:"computed_at"`
	Timestamp  string                  `json:"timestamp"`
}

// StatsResponse is the JSON response for engine counters.
type StatsResponse struct {
	Stats          vision.StatsSnapshot `json:"stats"`
	TrackerEntries int                  `json:"tracker_entries"`
	StableRevision uint64               `json:"stable_revision"`
	SessionID      string               `json:"session_id,omitempty"`
	UptimeSeconds  float64              `json:"uptime_seconds"`
	Timestamp      string               `json:"timestamp"`
}

// ClassEntry pairs a class identifier with its catalog entry.
type ClassEntry struct {
	Class string           `json:"class"`
	Info  vision.ClassInfo `json:"info"`
}

// ClassesResponse is the JSON response for the class catalog.
type ClassesResponse struct {
	Classes []ClassEntry `json:"classes"`
	Count   int          `json:"count"`
}

// SightingsListResponse is the JSON response for listing persisted sightings.
type SightingsListResponse struct {
	Sightings []vision.SightingRecord `json:"sightings"`
	Count     int                     `json:"count"`
	Timestamp string                  `json:"timestamp"`
}

// handleStableSet handles GET /api/vision/stable
// Returns the currently published stable set.
func (ws *WebServer) handleStableSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.engine == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "engine not configured")
		return
	}

	set := ws.engine.StableSet()
	response := StableSetResponse{
		Patterns:   make([]StablePatternResponse, 0, len(set.Patterns)),
		Count:      len(set.Patterns),
		Revision:   set.Revision,
		ComputedAt: time.Unix(0, set.ComputedNanos).UTC().Format(time.RFC3339Nano),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for _, p := range set.Patterns {
		response.Patterns = append(response.Patterns, patternToResponse(p))
	}

	httputil.WriteJSONOK(w, response)
}

// handleStats handles GET /api/vision/stats
// Returns engine counters without resetting them.
func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.engine == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "engine not configured")
		return
	}

	response := StatsResponse{
		Stats:          ws.engine.Stats().Snapshot(),
		TrackerEntries: ws.engine.TrackerLen(),
		StableRevision: ws.engine.StableSet().Revision,
		SessionID:      ws.sessionID,
		UptimeSeconds:  time.Since(ws.startTime).Seconds(),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}

	httputil.WriteJSONOK(w, response)
}

// handleClasses handles GET /api/vision/classes
// Returns the full class catalog in stable order.
func (ws *WebServer) handleClasses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	classes := vision.AllClasses()
	response := ClassesResponse{
		Classes: make([]ClassEntry, 0, len(classes)),
		Count:   len(classes),
	}
	for _, class := range classes {
		info, ok := vision.Info(class)
		if !ok {
			continue
		}
		response.Classes = append(response.Classes, ClassEntry{
			Class: string(class),
			Info:  info,
		})
	}

	httputil.WriteJSONOK(w, response)
}

// handleClassByName handles GET /api/vision/classes/{class}
// Returns the catalog entry for one class.
func (ws *WebServer) handleClassByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	prefix := "/api/vision/classes/"
	name := strings.TrimPrefix(r.URL.Path, prefix)
	if name == "" || strings.Contains(name, "/") {
		httputil.BadRequest(w, "missing class name in path")
		return
	}

	class := vision.PatternClass(name)
	info, ok := vision.Info(class)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("unknown class %q", name))
		return
	}

	httputil.WriteJSONOK(w, ClassEntry{Class: string(class), Info: info})
}

// handleReset handles POST /api/vision/reset
// Clears the engine's history and publishes an empty stable set.
func (ws *WebServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.engine == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "engine not configured")
		return
	}

	ws.engine.Reset()
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

// handleSightings handles GET /api/vision/sightings
// Query params:
//   - session_id (optional, defaults to the server's session)
//   - class (optional): filter by pattern class
//   - since (optional): keep rows last seen at or after this unix-seconds time
//   - until (optional): keep rows first seen at or before this unix-seconds time
//   - limit (optional): max results (default 200)
func (ws *WebServer) handleSightings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.store == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "database not configured")
		return
	}

	query := vision.SightingQuery{
		SessionID: r.URL.Query().Get("session_id"),
	}
	if query.SessionID == "" {
		query.SessionID = ws.sessionID
	}

	if name := r.URL.Query().Get("class"); name != "" {
		class := vision.PatternClass(name)
		if !class.Valid() {
			httputil.BadRequest(w, fmt.Sprintf("unknown class %q", name))
			return
		}
		query.Class = class
	}

	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			httputil.BadRequest(w, "invalid since")
			return
		}
		query.SinceNanos = parsed * 1e9
	}
	if u := r.URL.Query().Get("until"); u != "" {
		parsed, err := strconv.ParseInt(u, 10, 64)
		if err != nil {
			httputil.BadRequest(w, "invalid until")
			return
		}
		query.UntilNanos = parsed * 1e9
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			query.Limit = parsed
		}
	}

	records, err := ws.store.GetSightings(query)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get sightings: %v", err))
		return
	}
	if records == nil {
		records = []vision.SightingRecord{}
	}

	httputil.WriteJSONOK(w, SightingsListResponse{
		Sightings: records,
		Count:     len(records),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSessionByID handles GET /api/vision/sessions/{session_id}/summary
// Returns per-class aggregates for one recognition session.
func (ws *WebServer) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.store == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "database not configured")
		return
	}

	prefix := "/api/vision/sessions/"
	remainder := strings.TrimPrefix(r.URL.Path, prefix)
	sessionID := remainder
	subPath := ""
	if idx := strings.Index(remainder, "/"); idx != -1 {
		sessionID = remainder[:idx]
		subPath = remainder[idx+1:]
	}

	if sessionID == "" {
		httputil.BadRequest(w, "missing session_id in path")
		return
	}
	if subPath != "summary" {
		httputil.NotFound(w, "unknown session endpoint")
		return
	}

	summary, err := ws.store.GetSessionSummary(sessionID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.NotFound(w, fmt.Sprintf("session %s not found", sessionID))
			return
		}
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to summarize session: %v", err))
		return
	}

	httputil.WriteJSONOK(w, summary)
}

// patternToResponse renders one stable pattern with formatted timestamps.
func patternToResponse(p vision.StablePattern) StablePatternResponse {
	first := p.FirstSeenNanos
	last := p.LastSeenNanos
	if last < first {
		last = first
	}

	var spanSeconds float64
	if first > 0 && last > 0 {
		spanSeconds = float64(last-first) / 1e9
	}

	return StablePatternResponse{
		Class:        string(p.Class),
		DisplayName:  p.Class.DisplayName(),
		Confidence:   p.Confidence,
		Center:       p.Center,
		Box:          p.Box,
		Math:         p.Math,
		Observations: p.Observations,
		AgeSeconds:   spanSeconds,
		FirstSeen:    time.Unix(0, first).UTC().Format(time.RFC3339Nano),
		LastSeen:     time.Unix(0, last).UTC().Format(time.RFC3339Nano),
	}
}
