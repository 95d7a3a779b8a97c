// Package main provides a scoring breakdown tool for detector output.
// It reads candidate regions from a JSON file, runs every geometry scorer
// over them, and prints the per-scorer breakdown next to what the
// classifier would emit.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aperture-data/phi.vision/internal/geometry"
	"github.com/aperture-data/phi.vision/internal/vision"
)

// Config holds configuration for the scoring run.
type Config struct {
	InputFile  string
	OutputJSON string
	MinConf    float64
	Verbose    bool
}

// ScorerResult is one scorer's view of a candidate.
type ScorerResult struct {
	Scorer string  `json:"scorer"`
	Score  float64 `json:"score"`
	Detail string  `json:"detail,omitempty"`
}

// ScoreBreakdown holds every scorer's result for one candidate plus the
// classifier's verdict.
type ScoreBreakdown struct {
	Index      int                `json:"index"`
	Kind       vision.RegionKind  `json:"kind"`
	Results    []ScorerResult     `json:"results"`
	Detections []vision.Detection `json:"detections"`
}

func main() {
	cfg := parseFlags()

	if cfg.InputFile == "" {
		log.Fatal("Input file is required (-points)")
	}

	cands, err := loadCandidates(cfg.InputFile)
	if err != nil {
		log.Fatalf("Failed to load candidates: %v", err)
	}
	log.Printf("Loaded %d candidates from %s", len(cands), cfg.InputFile)

	classifierCfg := vision.DefaultClassifierConfig()
	if cfg.MinConf > 0 {
		classifierCfg.MinConfidence = cfg.MinConf
	}
	classifier := vision.NewClassifier(classifierCfg)
	now := time.Now()

	breakdowns := make([]ScoreBreakdown, 0, len(cands))
	for i, cand := range cands {
		if cfg.Verbose {
			log.Printf("Candidate %d: kind=%s points=%d rects=%d values=%d",
				i, cand.Kind, len(cand.Points), len(cand.Rects), len(cand.Values))
		}
		bd := scoreCandidate(i, cand)
		bd.Detections = classifier.Classify(cand, now)
		breakdowns = append(breakdowns, bd)
		printBreakdown(bd)
	}

	if cfg.OutputJSON != "" {
		if err := exportJSON(breakdowns, cfg.OutputJSON); err != nil {
			log.Printf("Warning: failed to export JSON: %v", err)
		} else {
			log.Printf("Results exported to: %s", cfg.OutputJSON)
		}
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.InputFile, "points", "", "Path to candidate JSON file (one candidate or an array)")
	flag.StringVar(&cfg.OutputJSON, "json", "", "Output JSON filename (e.g., scores.json)")
	flag.Float64Var(&cfg.MinConf, "min", 0, "Override the classifier's minimum confidence")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose logging")

	flag.Parse()

	return cfg
}

// loadCandidates reads a JSON file holding either a single candidate object
// or an array of candidates.
func loadCandidates(path string) ([]vision.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var many []vision.Candidate
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}

	var one vision.Candidate
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("file is neither a candidate nor an array of candidates: %w", err)
	}
	return []vision.Candidate{one}, nil
}

// scoreCandidate runs every scorer applicable to the candidate's kind.
func scoreCandidate(index int, cand vision.Candidate) ScoreBreakdown {
	bd := ScoreBreakdown{Index: index, Kind: cand.Kind}

	switch cand.Kind {
	case vision.RegionPoints:
		center := geometry.Centroid(cand.Points)
		if cand.Center != nil {
			center = *cand.Center
		}

		bd.Results = append(bd.Results, ScorerResult{
			Scorer: "spiral",
			Score:  geometry.SpiralScore(cand.Points),
		})

		score, growth := geometry.LogSpiralScore(cand.Points, center)
		bd.Results = append(bd.Results, ScorerResult{
			Scorer: "log_spiral",
			Score:  score,
			Detail: fmt.Sprintf("growth_rate=%.4f", growth),
		})

		score, chambers, growth := geometry.NautilusScore(cand.Points, center)
		bd.Results = append(bd.Results, ScorerResult{
			Scorer: "nautilus",
			Score:  score,
			Detail: fmt.Sprintf("chambers=%d growth_rate=%.4f", chambers, growth),
		})

		score, angle := geometry.PhyllotaxisScore(cand.Points, center)
		bd.Results = append(bd.Results, ScorerResult{
			Scorer: "phyllotaxis",
			Score:  score,
			Detail: fmt.Sprintf("angle_deg=%.2f", angle),
		})

		score, angle = geometry.DivergenceScore(cand.Points, center)
		bd.Results = append(bd.Results, ScorerResult{
			Scorer: "divergence",
			Score:  score,
			Detail: fmt.Sprintf("angle_deg=%.2f", angle),
		})

	case vision.RegionRect:
		ratio := cand.Rect.AspectRatio()
		bd.Results = append(bd.Results, ScorerResult{
			Scorer: "golden_ratio",
			Score:  geometry.GoldenRatioScore(ratio),
			Detail: fmt.Sprintf("aspect=%.4f", ratio),
		})

	case vision.RegionGrid:
		score, ratio := geometry.PhiGridScore(cand.Rects)
		bd.Results = append(bd.Results, ScorerResult{
			Scorer: "phi_grid",
			Score:  score,
			Detail: fmt.Sprintf("ratio=%.4f", ratio),
		})

	case vision.RegionValues:
		score, matched := geometry.FibonacciSequenceScore(cand.Values)
		bd.Results = append(bd.Results, ScorerResult{
			Scorer: "fibonacci",
			Score:  score,
			Detail: fmt.Sprintf("matched=%v", matched),
		})

	default:
		log.Printf("Candidate %d has unknown kind %q", index, cand.Kind)
	}

	return bd
}

func printBreakdown(bd ScoreBreakdown) {
	fmt.Printf("\n=== Candidate %d: kind=%s ===\n", bd.Index, bd.Kind)
	for _, r := range bd.Results {
		if r.Detail != "" {
			fmt.Printf("  %-12s %.4f  (%s)\n", r.Scorer, r.Score, r.Detail)
		} else {
			fmt.Printf("  %-12s %.4f\n", r.Scorer, r.Score)
		}
	}

	if len(bd.Detections) == 0 {
		fmt.Println("  -> no class above threshold")
		return
	}
	for _, d := range bd.Detections {
		fmt.Printf("  -> %s (confidence %.3f)\n", d.Class, d.Confidence)
	}
}

func exportJSON(breakdowns []ScoreBreakdown, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(breakdowns)
}
