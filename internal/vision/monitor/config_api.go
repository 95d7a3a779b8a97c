package monitor

import (
	"net/http"

	"github.com/aperture-data/phi.vision/internal/config"
	"github.com/aperture-data/phi.vision/internal/httputil"
)

// TuningConfigResponse is the resolved tuning configuration: every field
// carries its effective value, whether it came from the defaults file, a
// startup override, or a runtime update.
type TuningConfigResponse struct {
	ProcessingInterval  string             `json:"processing_interval"`
	UpdateInterval      string             `json:"update_interval"`
	EvictAfter          string             `json:"evict_after"`
	MinConfidence       float64            `json:"min_confidence"`
	OverlapThreshold    float64            `json:"overlap_threshold"`
	HistoryDepth        int                `json:"history_depth"`
	HistoryBucketPx     float64            `json:"history_bucket_px"`
	PromoteCount        int                `json:"promote_count"`
	PromoteConfidence   float64            `json:"promote_confidence"`
	StableLimit         int                `json:"stable_limit"`
	GateConfidenceDelta float64            `json:"gate_confidence_delta"`
	GateCenterDeltaPx   float64            `json:"gate_center_delta_px"`
	DisabledClasses     []string           `json:"disabled_classes,omitempty"`
	ClassThresholds     map[string]float64 `json:"class_thresholds,omitempty"`
}

// handleConfig handles GET/POST for /api/vision/config
//
// GET: Returns the resolved tuning configuration
// POST: Applies a sparse update (hot-reload); fields omitted from the body
// keep their current values. Responds with the updated configuration.
//
// Example POST request:
//
//	{
//	  "min_confidence": 0.4,
//	  "evict_after": "3s"
//	}
func (ws *WebServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if ws.engine == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "engine not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		ws.handleGetConfig(w)
	case http.MethodPost:
		ws.handleSetConfig(w, r)
	default:
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use GET or POST")
	}
}

// handleGetConfig returns the resolved tuning configuration.
func (ws *WebServer) handleGetConfig(w http.ResponseWriter) {
	tuning := ws.engine.Tuning()

	response := TuningConfigResponse{
		ProcessingInterval:  tuning.GetProcessingInterval().String(),
		UpdateInterval:      tuning.GetUpdateInterval().String(),
		EvictAfter:          tuning.GetEvictAfter().String(),
		MinConfidence:       tuning.GetMinConfidence(),
		OverlapThreshold:    tuning.GetOverlapThreshold(),
		HistoryDepth:        tuning.GetHistoryDepth(),
		HistoryBucketPx:     tuning.GetHistoryBucketPx(),
		PromoteCount:        tuning.GetPromoteCount(),
		PromoteConfidence:   tuning.GetPromoteConfidence(),
		StableLimit:         tuning.GetStableLimit(),
		GateConfidenceDelta: tuning.GetGateConfidenceDelta(),
		GateCenterDeltaPx:   tuning.GetGateCenterDeltaPx(),
		DisabledClasses:     tuning.DisabledClasses,
		ClassThresholds:     tuning.ClassThresholds,
	}

	httputil.WriteJSONOK(w, response)
}

// handleSetConfig applies a sparse tuning update (hot-reload).
func (ws *WebServer) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req config.TuningConfig
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if err := ws.engine.UpdateTuning(func(c *config.TuningConfig) {
		applyOverrides(c, &req)
	}); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	// Return updated configuration so clients see the values that took
	// effect, not just the ones they sent.
	ws.handleGetConfig(w)
}

// applyOverrides copies every field set in src onto dst. Collections
// replace wholesale rather than merging.
func applyOverrides(dst, src *config.TuningConfig) {
	if src.ProcessingInterval != nil {
		dst.ProcessingInterval = src.ProcessingInterval
	}
	if src.UpdateInterval != nil {
		dst.UpdateInterval = src.UpdateInterval
	}
	if src.EvictAfter != nil {
		dst.EvictAfter = src.EvictAfter
	}
	if src.MinConfidence != nil {
		dst.MinConfidence = src.MinConfidence
	}
	if src.OverlapThreshold != nil {
		dst.OverlapThreshold = src.OverlapThreshold
	}
	if src.HistoryDepth != nil {
		dst.HistoryDepth = src.HistoryDepth
	}
	if src.HistoryBucketPx != nil {
		dst.HistoryBucketPx = src.HistoryBucketPx
	}
	if src.PromoteCount != nil {
		dst.PromoteCount = src.PromoteCount
	}
	if src.PromoteConfidence != nil {
		dst.PromoteConfidence = src.PromoteConfidence
	}
	if src.StableLimit != nil {
		dst.StableLimit = src.StableLimit
	}
	if src.GateConfidenceDelta != nil {
		dst.GateConfidenceDelta = src.GateConfidenceDelta
	}
	if src.GateCenterDeltaPx != nil {
		dst.GateCenterDeltaPx = src.GateCenterDeltaPx
	}
	if src.DisabledClasses != nil {
		dst.DisabledClasses = src.DisabledClasses
	}
	if src.ClassThresholds != nil {
		dst.ClassThresholds = src.ClassThresholds
	}
}
