package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/aperture-data/phi.vision/internal/geometry"
	"github.com/aperture-data/phi.vision/internal/vision"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleOverlayChart renders the most recent ingested frame as a scatter plot
// (HTML) with the current stable set overlaid, using go-echarts. This is a
// debugging-only endpoint (no auth) to visually compare raw candidates against
// what survived temporal filtering, without a frontend.
func (ws *WebServer) handleOverlayChart(w http.ResponseWriter, r *http.Request) {
	if ws.engine == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "engine not configured")
		return
	}

	rec := ws.frames.Load()
	set := ws.engine.StableSet()
	if rec == nil && len(set.Patterns) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no frame snapshot available")
		return
	}

	candPts := make([]opts.ScatterData, 0)
	stablePts := make([]opts.ScatterData, 0, len(set.Patterns))
	maxExtent := 0.0

	if rec != nil {
		candPts = make([]opts.ScatterData, 0, len(rec.Candidates))
		for _, cand := range rec.Candidates {
			p, ok := candidatePoint(cand)
			if !ok {
				continue
			}
			if p.X > maxExtent {
				maxExtent = p.X
			}
			if p.Y > maxExtent {
				maxExtent = p.Y
			}
			candPts = append(candPts, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
		}
	}

	for _, p := range set.Patterns {
		if p.Center.X > maxExtent {
			maxExtent = p.Center.X
		}
		if p.Center.Y > maxExtent {
			maxExtent = p.Center.Y
		}
		stablePts = append(stablePts, opts.ScatterData{Value: []interface{}{p.Center.X, p.Center.Y}})
	}

	// Add a small padding so points at the edges are visible
	pad := maxExtent * 1.05
	if pad == 0 {
		pad = 1.0
	}

	frameLabel := "none"
	if rec != nil {
		frameLabel = fmt.Sprintf("%d @ %s", rec.FrameID, time.Unix(0, rec.TimestampNanos).UTC().Format(time.RFC3339))
	}
	subtitle := fmt.Sprintf(
		"source=%s frame=%s candidates=%d stable=%d",
		ws.sourceLabel,
		frameLabel,
		len(candPts),
		len(stablePts),
	)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Frame Overlay", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Candidates vs Stable Patterns", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: pad, Name: "X (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: pad, Name: "Y (px)", NameLocation: "middle", NameGap: 30}),
	)

	scatter.AddSeries("candidates", candPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
	scatter.AddSeries("stable", stablePts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render overlay chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleClassChart renders a bar chart of per-class mean confidence. When a
// session has persisted sightings those aggregates are charted; otherwise the
// chart falls back to the live stable set.
// Query params:
//   - session_id (optional; defaults to the server's session)
func (ws *WebServer) handleClassChart(w http.ResponseWriter, r *http.Request) {
	if ws.engine == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "engine not configured")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = ws.sessionID
	}

	meanByClass := make(map[vision.PatternClass]float64)
	subtitle := "live stable set"

	summarized := false
	if ws.store != nil && sessionID != "" {
		if summary, err := ws.store.GetSessionSummary(sessionID); err == nil && summary.Sightings > 0 {
			for _, cs := range summary.Classes {
				meanByClass[cs.Class] = cs.MeanConfidence
			}
			subtitle = fmt.Sprintf("session=%s sightings=%d", sessionID, summary.Sightings)
			summarized = true
		}
	}
	if !summarized {
		sums := make(map[vision.PatternClass]float64)
		counts := make(map[vision.PatternClass]int)
		for _, p := range ws.engine.StableSet().Patterns {
			sums[p.Class] += p.Confidence
			counts[p.Class]++
		}
		for class, sum := range sums {
			meanByClass[class] = sum / float64(counts[class])
		}
	}

	classes := vision.AllClasses()
	x := make([]string, 0, len(classes))
	y := make([]opts.BarData, 0, len(classes))
	for _, class := range classes {
		x = append(x, class.DisplayName())
		y = append(y, opts.BarData{Value: math.Round(meanByClass[class]*100) / 100})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Mean Confidence by Class", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("mean confidence", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// candidatePoint picks the representative plot position for a candidate:
// the supplied center when present, otherwise the centroid or bounding-box
// center of whatever geometry the region kind carries.
func candidatePoint(cand vision.Candidate) (geometry.Point, bool) {
	if cand.Center != nil {
		return *cand.Center, true
	}
	switch cand.Kind {
	case vision.RegionPoints:
		if len(cand.Points) == 0 {
			return geometry.Point{}, false
		}
		return geometry.Centroid(cand.Points), true
	case vision.RegionRect:
		return cand.Rect.Center(), true
	case vision.RegionGrid:
		if len(cand.Rects) == 0 {
			return geometry.Point{}, false
		}
		return geometry.BoundRects(cand.Rects).Center(), true
	case vision.RegionValues:
		if cand.Rect.Area() == 0 {
			return geometry.Point{}, false
		}
		return cand.Rect.Center(), true
	}
	return geometry.Point{}, false
}
