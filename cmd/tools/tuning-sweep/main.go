package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// parseCSVFloatSlice parses a comma-separated list of floats
func parseCSVFloatSlice(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseCSVIntSlice parses a comma-separated list of ints
func parseCSVIntSlice(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid int '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func meanStddev(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	mean := sum / float64(len(xs))
	var sdSum float64
	for _, v := range xs {
		d := v - mean
		sdSum += d * d
	}
	var stddev float64
	if len(xs) > 1 {
		stddev = math.Sqrt(sdSum / float64(len(xs)-1))
	} else {
		stddev = 0
	}
	return mean, stddev
}

func main() {
	// Common flags
	monitorURL := flag.String("monitor", "http://localhost:8080", "Base URL for the phi-vision monitor")
	output := flag.String("output", "", "Output CSV filename (defaults to sweep-<timestamp>.csv)")

	// Sweep mode selection
	sweepMode := flag.String("mode", "multi", "Sweep mode: 'multi' (all combinations), 'minconf' (vary min confidence only), 'promoteconf' (vary promote confidence only), 'count' (vary promote count only)")

	// Parameter ranges for multi-sweep
	minConfList := flag.String("minconf", "", "Comma-separated min_confidence values (e.g. 0.2,0.25,0.3)")
	promoteConfList := flag.String("promoteconf", "", "Comma-separated promote_confidence values (e.g. 0.5,0.6,0.7)")
	countList := flag.String("counts", "", "Comma-separated promote_count values (e.g. 2,3,4)")

	// Single-variable sweep ranges (when mode != multi)
	minConfStart := flag.Float64("minconf-start", 0.15, "Start min_confidence for minconf sweep")
	minConfEnd := flag.Float64("minconf-end", 0.45, "End min_confidence for minconf sweep")
	minConfStep := flag.Float64("minconf-step", 0.05, "Step for minconf sweep")

	promoteConfStart := flag.Float64("promoteconf-start", 0.4, "Start promote_confidence for promoteconf sweep")
	promoteConfEnd := flag.Float64("promoteconf-end", 0.8, "End promote_confidence for promoteconf sweep")
	promoteConfStep := flag.Float64("promoteconf-step", 0.1, "Step for promoteconf sweep")

	countStart := flag.Int("count-start", 2, "Start promote_count for count sweep")
	countEnd := flag.Int("count-end", 5, "End promote_count for count sweep")
	countStep := flag.Int("count-step", 1, "Step for count sweep")

	// Fixed values for single-variable sweeps
	fixedMinConf := flag.Float64("fixed-minconf", 0.25, "Fixed min_confidence (when not sweeping it)")
	fixedPromoteConf := flag.Float64("fixed-promoteconf", 0.6, "Fixed promote_confidence (when not sweeping it)")
	fixedCount := flag.Int("fixed-count", 3, "Fixed promote_count (when not sweeping it)")

	// Sampling configuration
	iterations := flag.Int("iterations", 30, "Number of samples per parameter combination")
	interval := flag.Duration("interval", 2*time.Second, "Interval between samples")
	settleTime := flag.Duration("settle-time", 5*time.Second, "Time to wait for the stable set to recompute after applying params")

	flag.Parse()

	client := &http.Client{Timeout: 30 * time.Second}

	// Fetch the class catalog for header construction
	classes := fetchClasses(client, *monitorURL)
	log.Printf("Using %d pattern classes", len(classes))

	// Determine parameter combinations based on sweep mode
	var minConfCombos, promoteConfCombos []float64
	var countCombos []int

	switch *sweepMode {
	case "multi":
		minConfCombos = parseParamList(*minConfList, *minConfStart, *minConfEnd, *minConfStep)
		promoteConfCombos = parseParamList(*promoteConfList, *promoteConfStart, *promoteConfEnd, *promoteConfStep)
		countCombos = parseIntParamList(*countList, *countStart, *countEnd, *countStep)

	case "minconf":
		minConfCombos = generateRange(*minConfStart, *minConfEnd, *minConfStep)
		promoteConfCombos = []float64{*fixedPromoteConf}
		countCombos = []int{*fixedCount}

	case "promoteconf":
		minConfCombos = []float64{*fixedMinConf}
		promoteConfCombos = generateRange(*promoteConfStart, *promoteConfEnd, *promoteConfStep)
		countCombos = []int{*fixedCount}

	case "count":
		minConfCombos = []float64{*fixedMinConf}
		promoteConfCombos = []float64{*fixedPromoteConf}
		countCombos = generateIntRange(*countStart, *countEnd, *countStep)

	default:
		log.Fatalf("Invalid sweep mode: %s (must be multi, minconf, promoteconf, or count)", *sweepMode)
	}

	// Provide defaults if lists are empty
	if len(minConfCombos) == 0 {
		minConfCombos = []float64{0.2, 0.25, 0.3}
	}
	if len(promoteConfCombos) == 0 {
		promoteConfCombos = []float64{0.5, 0.6, 0.7}
	}
	if len(countCombos) == 0 {
		countCombos = []int{2, 3, 4}
	}

	totalCombos := len(minConfCombos) * len(promoteConfCombos) * len(countCombos)
	log.Printf("Sweep mode: %s", *sweepMode)
	log.Printf("Parameter combinations: %d (min_conf: %d, promote_conf: %d, promote_count: %d)",
		totalCombos, len(minConfCombos), len(promoteConfCombos), len(countCombos))

	// Prepare output files
	filename := *output
	if filename == "" {
		filename = fmt.Sprintf("sweep-%s-%s.csv", *sweepMode, time.Now().Format("20060102-150405"))
	}

	f, err := os.Create(filename)
	if err != nil {
		log.Fatalf("Could not create output file %s: %v", filename, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()

	rawFilename := strings.TrimSuffix(filename, ".csv") + "-raw.csv"
	fRaw, err := os.Create(rawFilename)
	if err != nil {
		log.Fatalf("Could not create raw output file %s: %v", rawFilename, err)
	}
	defer fRaw.Close()
	rawW := csv.NewWriter(fRaw)
	defer rawW.Flush()

	// Write headers
	writeHeaders(w, rawW, classes)

	// Run sweep
	comboNum := 0

	for _, minConf := range minConfCombos {
		for _, promoteConf := range promoteConfCombos {
			for _, count := range countCombos {
				comboNum++
				log.Printf("\n=== Combination %d/%d: min_conf=%.3f, promote_conf=%.3f, promote_count=%d ===",
					comboNum, totalCombos, minConf, promoteConf, count)

				// Reset engine history so promotions from the previous
				// thresholds do not leak into this combination
				if err := resetEngine(client, *monitorURL); err != nil {
					log.Printf("WARNING: Engine reset failed: %v", err)
				}

				// Set parameters
				if err := setParams(client, *monitorURL, minConf, promoteConf, count); err != nil {
					log.Printf("ERROR: Failed to set params: %v", err)
					continue
				}

				// Wait for the stable set to recompute under the new params
				revBase := fetchRevision(client, *monitorURL)
				waitForRecompute(client, *monitorURL, revBase, *settleTime)

				// Sample metrics
				results := sampleMetrics(client, *monitorURL, *iterations, *interval, classes, minConf, promoteConf, count, rawW)

				// Compute statistics and write summary
				writeSummary(w, minConf, promoteConf, count, results, classes)
			}
		}
	}

	log.Printf("\nSweep complete!")
	log.Printf("Summary: %s", filename)
	log.Printf("Raw data: %s", rawFilename)
}

// parseParamList parses a comma-separated list or generates a range
func parseParamList(list string, start, end, step float64) []float64 {
	if list != "" {
		vals, err := parseCSVFloatSlice(list)
		if err != nil {
			log.Fatalf("Invalid parameter list: %v", err)
		}
		return vals
	}
	return generateRange(start, end, step)
}

func parseIntParamList(list string, start, end, step int) []int {
	if list != "" {
		vals, err := parseCSVIntSlice(list)
		if err != nil {
			log.Fatalf("Invalid parameter list: %v", err)
		}
		return vals
	}
	return generateIntRange(start, end, step)
}

func generateRange(start, end, step float64) []float64 {
	if step <= 0 {
		step = 0.01
	}
	var result []float64
	for v := start; v <= end+1e-9; v += step {
		result = append(result, v)
	}
	return result
}

func generateIntRange(start, end, step int) []int {
	if step <= 0 {
		step = 1
	}
	var result []int
	for v := start; v <= end; v += step {
		result = append(result, v)
	}
	return result
}

// fetchClasses pulls the pattern class catalog so per-class columns match the
// server. Falls back to the built-in catalog when the monitor is unreachable.
func fetchClasses(client *http.Client, baseURL string) []string {
	fallback := []string{
		"spiral_fibonacci", "golden_ratio", "fibonacci_sequence", "phi_grid",
		"sunflower_spiral", "pinecone_spiral", "shell_spiral", "nautilus_spiral",
		"leaf_arrangement",
	}

	resp, err := client.Get(baseURL + "/api/vision/classes")
	if err != nil {
		log.Printf("WARNING: Could not fetch classes: %v (using defaults)", err)
		return fallback
	}
	defer resp.Body.Close()

	var m struct {
		Classes []struct {
			Class string `json:"class"`
		} `json:"classes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil || len(m.Classes) == 0 {
		return fallback
	}

	classes := make([]string, 0, len(m.Classes))
	for _, c := range m.Classes {
		classes = append(classes, c.Class)
	}
	return classes
}

func resetEngine(client *http.Client, baseURL string) error {
	req, _ := http.NewRequest(http.MethodPost, baseURL+"/api/vision/reset", nil)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func setParams(client *http.Client, baseURL string, minConf, promoteConf float64, count int) error {
	params := map[string]interface{}{
		"min_confidence":     minConf,
		"promote_confidence": promoteConf,
		"promote_count":      count,
	}
	data, _ := json.Marshal(params)

	req, _ := http.NewRequest(http.MethodPost, baseURL+"/api/vision/config", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	log.Printf("Applied: min_conf=%.3f, promote_conf=%.3f, promote_count=%d", minConf, promoteConf, count)
	return nil
}

func fetchRevision(client *http.Client, baseURL string) uint64 {
	resp, err := client.Get(baseURL + "/api/vision/stable")
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	var ss struct {
		Revision uint64 `json:"revision"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ss); err != nil {
		return 0
	}
	return ss.Revision
}

// waitForRecompute polls the stable set until its revision moves past
// sinceRevision, meaning the engine has recomputed under the new parameters.
// Gives up silently at the deadline.
func waitForRecompute(client *http.Client, baseURL string, sinceRevision uint64, timeout time.Duration) {
	if timeout <= 0 {
		return
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if rev := fetchRevision(client, baseURL); rev > sinceRevision {
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
}

type SampleResult struct {
	ClassConfidences []float64
	StableCount      int
	TrackerEntries   int
	Frames           int64
	Detections       int64
	DetectRate       float64
	Revision         uint64
	Timestamp        time.Time
}

func sampleMetrics(client *http.Client, baseURL string, iterations int, interval time.Duration, classes []string, minConf, promoteConf float64, count int, rawW *csv.Writer) []SampleResult {
	results := make([]SampleResult, 0, iterations)

	for i := 0; i < iterations; i++ {
		// Fetch the stable set
		resp, err := client.Get(baseURL + "/api/vision/stable")
		if err != nil {
			log.Printf("WARNING: Sample %d failed: %v", i+1, err)
			time.Sleep(interval)
			continue
		}

		var ss struct {
			Patterns []struct {
				Class      string  `json:"class"`
				Confidence float64 `json:"confidence"`
			} `json:"patterns"`
			Count    int    `json:"count"`
			Revision uint64 `json:"revision"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&ss); err != nil {
			log.Printf("WARNING: Sample %d decode failed: %v", i+1, err)
			resp.Body.Close()
			time.Sleep(interval)
			continue
		}
		resp.Body.Close()

		// Per-class stable confidence, zero when the class is not stable
		confidences := make([]float64, len(classes))
		for _, p := range ss.Patterns {
			for ci, name := range classes {
				if p.Class == name {
					confidences[ci] = p.Confidence
					break
				}
			}
		}

		// Fetch engine counters
		var frames, detections int64
		var trackerEntries int
		if resp2, err := client.Get(baseURL + "/api/vision/stats"); err == nil {
			var st struct {
				Stats struct {
					Frames     int64 `json:"frames"`
					Detections int64 `json:"detections"`
				} `json:"stats"`
				TrackerEntries int `json:"tracker_entries"`
			}
			if json.NewDecoder(resp2.Body).Decode(&st) == nil {
				frames = st.Stats.Frames
				detections = st.Stats.Detections
				trackerEntries = st.TrackerEntries
			}
			resp2.Body.Close()
		}

		var detectRate float64
		if frames > 0 {
			detectRate = float64(detections) / float64(frames)
		}

		result := SampleResult{
			ClassConfidences: confidences,
			StableCount:      ss.Count,
			TrackerEntries:   trackerEntries,
			Frames:           frames,
			Detections:       detections,
			DetectRate:       detectRate,
			Revision:         ss.Revision,
			Timestamp:        time.Now(),
		}
		results = append(results, result)

		// Write raw data
		writeRawRow(rawW, minConf, promoteConf, count, i, result, classes)

		if i < iterations-1 {
			time.Sleep(interval)
		}
	}

	return results
}

func writeHeaders(w, rawW *csv.Writer, classes []string) {
	// Summary header
	header := []string{"min_confidence", "promote_confidence", "promote_count"}
	for _, c := range classes {
		header = append(header, "conf_"+c+"_mean")
	}
	for _, c := range classes {
		header = append(header, "conf_"+c+"_stddev")
	}
	header = append(header, "stable_count_mean", "stable_count_stddev", "detect_rate_mean", "detect_rate_stddev")
	w.Write(header)

	// Raw header
	rawHeader := []string{"min_confidence", "promote_confidence", "promote_count", "iter", "timestamp"}
	for _, c := range classes {
		rawHeader = append(rawHeader, "conf_"+c)
	}
	rawHeader = append(rawHeader, "stable_count", "tracker_entries", "frames", "detections", "detect_rate", "revision")
	rawW.Write(rawHeader)
}

func writeRawRow(w *csv.Writer, minConf, promoteConf float64, count, iter int, result SampleResult, classes []string) {
	row := []string{
		fmt.Sprintf("%.6f", minConf),
		fmt.Sprintf("%.6f", promoteConf),
		fmt.Sprintf("%d", count),
		fmt.Sprintf("%d", iter),
		result.Timestamp.Format(time.RFC3339Nano),
	}

	for _, v := range result.ClassConfidences {
		row = append(row, fmt.Sprintf("%.6f", v))
	}
	row = append(row, fmt.Sprintf("%d", result.StableCount))
	row = append(row, fmt.Sprintf("%d", result.TrackerEntries))
	row = append(row, fmt.Sprintf("%d", result.Frames))
	row = append(row, fmt.Sprintf("%d", result.Detections))
	row = append(row, fmt.Sprintf("%.6f", result.DetectRate))
	row = append(row, fmt.Sprintf("%d", result.Revision))

	w.Write(row)
	w.Flush()
}

func writeSummary(w *csv.Writer, minConf, promoteConf float64, count int, results []SampleResult, classes []string) {
	if len(results) == 0 {
		log.Printf("WARNING: No results to summarize")
		return
	}

	// Compute per-class means and stddevs
	means := make([]float64, len(classes))
	stds := make([]float64, len(classes))

	for ci := range classes {
		vals := make([]float64, len(results))
		for ri, r := range results {
			vals[ri] = r.ClassConfidences[ci]
		}
		means[ci], stds[ci] = meanStddev(vals)
	}

	// Compute stable set size stats
	countVals := make([]float64, len(results))
	for i, r := range results {
		countVals[i] = float64(r.StableCount)
	}
	countMean, countStd := meanStddev(countVals)

	// Compute detection rate stats
	rateVals := make([]float64, len(results))
	for i, r := range results {
		rateVals[i] = r.DetectRate
	}
	rateMean, rateStd := meanStddev(rateVals)

	log.Printf("Results: stable_count=%.1f±%.1f, detect_rate=%.4f±%.4f",
		countMean, countStd, rateMean, rateStd)

	// Write CSV row
	row := []string{
		fmt.Sprintf("%.6f", minConf),
		fmt.Sprintf("%.6f", promoteConf),
		fmt.Sprintf("%d", count),
	}
	for _, m := range means {
		row = append(row, fmt.Sprintf("%.6f", m))
	}
	for _, s := range stds {
		row = append(row, fmt.Sprintf("%.6f", s))
	}
	row = append(row, fmt.Sprintf("%.2f", countMean))
	row = append(row, fmt.Sprintf("%.2f", countStd))
	row = append(row, fmt.Sprintf("%.6f", rateMean))
	row = append(row, fmt.Sprintf("%.6f", rateStd))

	w.Write(row)
	w.Flush()
}
