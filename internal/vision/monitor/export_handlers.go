package monitor

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/aperture-data/phi.vision/internal/httputil"
	"github.com/aperture-data/phi.vision/internal/vision"
)

// handleSightingsExport handles POST /api/vision/sightings/export
// Writes the matching sightings to a CSV file under the temp directory and
// reports where it landed. Filters match the listing endpoint (session_id,
// class, limit). The output path is built server-side from the sanitized
// session id; request data never reaches filesystem operations directly.
func (ws *WebServer) handleSightingsExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.store == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "database not configured")
		return
	}

	query := vision.SightingQuery{
		SessionID: r.URL.Query().Get("session_id"),
		Limit:     10000,
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
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 10000 {
			query.Limit = parsed
		}
	}

	records, err := ws.store.GetSightings(query)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get sightings: %v", err))
		return
	}
	if len(records) == 0 {
		httputil.NotFound(w, "no sightings to export")
		return
	}

	path, err := vision.ExportSightingsCSV(records, query.SessionID)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("export error: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"status": "ok",
		"file":   path,
		"rows":   len(records),
	})
}
