package monitor

import (
	"context"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/aperture-data/phi.vision/internal/vision"
)

// ScorePlotter records stable-set state over time for visualization.
// It samples whatever the engine currently publishes on each call to
// Sample(), accumulating per-class time series that can be plotted
// after a run.
type ScorePlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string

	// samples holds per-class time series. Key = class name.
	samples map[string][]scoreSample

	// startTime is the timestamp of the first sample, used for directory naming
	startTime time.Time
	sampleIdx int
}

// scoreSample represents one snapshot of a stable pattern's state
type scoreSample struct {
	SampleIdx    int
	Timestamp    time.Time
	Confidence   float64
	Observations int
}

// NewScorePlotter creates a plotter with sampling disabled. Call Start to
// begin recording.
func NewScorePlotter() *ScorePlotter {
	return &ScorePlotter{
		samples: make(map[string][]scoreSample),
	}
}

// Start initializes the plotter for a new run.
// outputDir should be a timestamped directory (e.g., "plots/live_20260825_101500")
func (sp *ScorePlotter) Start(outputDir string) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	sp.outputDir = outputDir
	sp.enabled = true
	sp.startTime = time.Time{}
	sp.sampleIdx = 0
	sp.samples = make(map[string][]scoreSample)
	return nil
}

// Stop disables sampling. Call GeneratePlots() to produce output files.
func (sp *ScorePlotter) Stop() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (sp *ScorePlotter) IsEnabled() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.enabled
}

// Sample captures the published stable set. Call this once per tick during
// replay or live processing. Classes absent from the set record no point,
// so their lines show gaps where the pattern dropped out.
func (sp *ScorePlotter) Sample(set *vision.StableSet) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if !sp.enabled || set == nil {
		return
	}

	now := time.Now()
	if sp.startTime.IsZero() {
		sp.startTime = now
	}
	sp.sampleIdx++

	for _, p := range set.Patterns {
		key := string(p.Class)
		sp.samples[key] = append(sp.samples[key], scoreSample{
			SampleIdx:    sp.sampleIdx,
			Timestamp:    now,
			Confidence:   p.Confidence,
			Observations: p.Observations,
		})
	}
}

// Run samples the engine at the given interval until ctx is cancelled, then
// generates plots. Intended to be launched as a goroutine at startup.
func (sp *ScorePlotter) Run(ctx context.Context, engine *vision.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sp.Stop()
			count, err := sp.GeneratePlots()
			if err != nil {
				log.Printf("score plotter: %v", err)
				return
			}
			if count > 0 {
				log.Printf("score plotter: wrote %d plots to %s", count, sp.GetOutputDir())
			}
			return
		case <-ticker.C:
			sp.Sample(engine.StableSet())
		}
	}
}

// GeneratePlots creates PNG files showing per-class confidence and
// observation counts over time. Returns the number of files written and any
// error.
func (sp *ScorePlotter) GeneratePlots() (int, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}

	if len(sp.samples) == 0 {
		return 0, nil
	}

	pConf := plot.New()
	pConf.Title.Text = "Stable Pattern Confidence"
	pConf.X.Label.Text = "Sample"
	pConf.Y.Label.Text = "Confidence"
	pConf.Y.Min = 0
	pConf.Y.Max = 1

	pObs := plot.New()
	pObs.Title.Text = "Stable Pattern Observations"
	pObs.X.Label.Text = "Sample"
	pObs.Y.Label.Text = "Window Observations"

	// Sort class keys for a consistent legend
	var sortedClasses []string
	for key := range sp.samples {
		sortedClasses = append(sortedClasses, key)
	}
	sort.Strings(sortedClasses)

	colors := generateColors(len(sortedClasses))

	for i, key := range sortedClasses {
		samples := sp.samples[key]
		if len(samples) == 0 {
			continue
		}

		sort.Slice(samples, func(a, b int) bool {
			return samples[a].SampleIdx < samples[b].SampleIdx
		})

		confPts := make(plotter.XYs, 0, len(samples))
		obsPts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			confPts = append(confPts, plotter.XY{X: float64(s.SampleIdx), Y: s.Confidence})
			obsPts = append(obsPts, plotter.XY{X: float64(s.SampleIdx), Y: float64(s.Observations)})
		}

		label := vision.PatternClass(key).DisplayName()

		confLine, err := plotter.NewLine(confPts)
		if err != nil {
			return 0, err
		}
		confLine.Color = colors[i]
		confLine.Width = vg.Points(1)
		pConf.Add(confLine)
		pConf.Legend.Add(label, confLine)

		obsLine, err := plotter.NewLine(obsPts)
		if err != nil {
			return 0, err
		}
		obsLine.Color = colors[i]
		obsLine.Width = vg.Points(1)
		pObs.Add(obsLine)
		pObs.Legend.Add(label, obsLine)
	}

	pConf.Legend.Top = true
	pConf.Legend.Left = false
	pConf.Legend.XOffs = -10
	pConf.Legend.YOffs = -10

	pObs.Legend.Top = true
	pObs.Legend.Left = false
	pObs.Legend.XOffs = -10
	pObs.Legend.YOffs = -10

	written := 0
	confFile := filepath.Join(sp.outputDir, "confidence.png")
	if err := pConf.Save(14*vg.Inch, 6*vg.Inch, confFile); err != nil {
		return written, fmt.Errorf("save confidence plot: %w", err)
	}
	written++

	obsFile := filepath.Join(sp.outputDir, "observations.png")
	if err := pObs.Save(14*vg.Inch, 6*vg.Inch, obsFile); err != nil {
		return written, fmt.Errorf("save observations plot: %w", err)
	}
	written++

	return written, nil
}

// generateColors creates a palette of distinct colors for class lines
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// GetOutputDir returns the current output directory for plots.
func (sp *ScorePlotter) GetOutputDir() string {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.outputDir
}

// GetSampleCount returns the total number of samples collected.
func (sp *ScorePlotter) GetSampleCount() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	count := 0
	for _, samples := range sp.samples {
		count += len(samples)
	}
	return count
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir creates a timestamped output directory for plots.
// For pvlog replays: plots/<log_basename>/<timestamp>
// For live data: plots/live_<timestamp>
func MakePlotOutputDir(baseDir, logFile string) string {
	ts := FormatTimestamp(time.Now())
	if logFile != "" {
		base := filepath.Base(logFile)
		ext := filepath.Ext(base)
		name := base[:len(base)-len(ext)]
		return filepath.Join(baseDir, name, ts)
	}
	return filepath.Join(baseDir, "live_"+ts)
}
