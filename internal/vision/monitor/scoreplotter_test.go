package monitor

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aperture-data/phi.vision/internal/vision"
)

func TestNewScorePlotter(t *testing.T) {
	sp := NewScorePlotter()

	if sp == nil {
		t.Fatal("NewScorePlotter returned nil")
	}

	if sp.enabled {
		t.Error("expected enabled to be false initially")
	}

	if sp.samples == nil {
		t.Error("expected samples map to be initialised")
	}
}

func TestScorePlotter_StartStop(t *testing.T) {
	sp := NewScorePlotter()
	outputDir := t.TempDir()

	// Start should succeed
	err := sp.Start(outputDir)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !sp.IsEnabled() {
		t.Error("expected plotter to be enabled after Start")
	}

	if sp.outputDir != outputDir {
		t.Errorf("expected outputDir '%s', got '%s'", outputDir, sp.outputDir)
	}

	// Stop should disable
	sp.Stop()

	if sp.IsEnabled() {
		t.Error("expected plotter to be disabled after Stop")
	}
}

func TestScorePlotter_StartCreatesDirectory(t *testing.T) {
	sp := NewScorePlotter()
	tempBase := t.TempDir()
	nestedDir := filepath.Join(tempBase, "nested", "plots")

	err := sp.Start(nestedDir)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sp.Stop()

	// Check directory was created
	info, err := os.Stat(nestedDir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}

	if !info.IsDir() {
		t.Error("expected directory, got file")
	}
}

func TestScorePlotter_Sample_NilSet(t *testing.T) {
	sp := NewScorePlotter()
	err := sp.Start(t.TempDir())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sp.Stop()

	// Should not panic with a nil set
	sp.Sample(nil)

	if sp.GetSampleCount() != 0 {
		t.Errorf("expected 0 samples with nil set, got %d", sp.GetSampleCount())
	}
}

func TestScorePlotter_Sample_Disabled(t *testing.T) {
	sp := NewScorePlotter()
	// Don't call Start - plotter is disabled

	eng := newPromotedEngine(t)
	sp.Sample(eng.StableSet())

	if sp.GetSampleCount() != 0 {
		t.Errorf("expected 0 samples when disabled, got %d", sp.GetSampleCount())
	}
}

func TestScorePlotter_Sample_WithSet(t *testing.T) {
	sp := NewScorePlotter()
	err := sp.Start(t.TempDir())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sp.Stop()

	eng := newPromotedEngine(t)
	set := eng.StableSet()

	sp.Sample(set)
	sp.Sample(set)
	sp.Sample(set)

	if count := sp.GetSampleCount(); count != 3 {
		t.Errorf("expected 3 samples, got %d", count)
	}

	// Empty sets tick the index without adding samples
	sp.Sample(&vision.StableSet{})
	if count := sp.GetSampleCount(); count != 3 {
		t.Errorf("expected count unchanged after empty set, got %d", count)
	}
}

func TestScorePlotter_GeneratePlots_NoOutputDir(t *testing.T) {
	sp := NewScorePlotter()
	// Don't call Start - no output directory

	count, err := sp.GeneratePlots()
	if err == nil {
		t.Error("expected error when no output directory configured")
	}

	if count != 0 {
		t.Errorf("expected 0 plots, got %d", count)
	}
}

func TestScorePlotter_GeneratePlots_NoSamples(t *testing.T) {
	sp := NewScorePlotter()
	err := sp.Start(t.TempDir())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sp.Stop()

	// No samples collected
	count, err := sp.GeneratePlots()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if count != 0 {
		t.Errorf("expected 0 plots with no samples, got %d", count)
	}
}

func TestScorePlotter_GeneratePlots_WithSamples(t *testing.T) {
	sp := NewScorePlotter()
	outputDir := t.TempDir()
	err := sp.Start(outputDir)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	eng := newPromotedEngine(t)
	for i := 0; i < 5; i++ {
		sp.Sample(eng.StableSet())
	}
	sp.Stop()

	count, err := sp.GeneratePlots()
	if err != nil {
		t.Fatalf("GeneratePlots failed: %v", err)
	}

	if count != 2 {
		t.Errorf("expected 2 plot files, got %d", count)
	}

	for _, name := range []string{"confidence.png", "observations.png"} {
		info, err := os.Stat(filepath.Join(outputDir, name))
		if err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("expected %s to be non-empty", name)
		}
	}
}

func TestScorePlotter_StartResetsState(t *testing.T) {
	sp := NewScorePlotter()

	// First run
	dir1 := t.TempDir()
	err := sp.Start(dir1)
	if err != nil {
		t.Fatalf("First Start failed: %v", err)
	}

	// Add some samples manually
	sp.mu.Lock()
	sp.samples["golden_ratio"] = append(sp.samples["golden_ratio"], scoreSample{SampleIdx: 1})
	sp.sampleIdx = 5
	sp.mu.Unlock()

	sp.Stop()

	// Second run should reset state
	dir2 := t.TempDir()
	err = sp.Start(dir2)
	if err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}
	defer sp.Stop()

	if sp.GetSampleCount() != 0 {
		t.Error("expected samples to be reset on Start")
	}

	sp.mu.Lock()
	sampleIdx := sp.sampleIdx
	sp.mu.Unlock()

	if sampleIdx != 0 {
		t.Errorf("expected sampleIdx to be reset to 0, got %d", sampleIdx)
	}
}

func TestScorePlotter_GetOutputDir(t *testing.T) {
	sp := NewScorePlotter()
	outputDir := t.TempDir()

	// Before start
	if sp.GetOutputDir() != "" {
		t.Error("expected empty output dir before Start")
	}

	err := sp.Start(outputDir)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sp.Stop()

	if sp.GetOutputDir() != outputDir {
		t.Errorf("expected '%s', got '%s'", outputDir, sp.GetOutputDir())
	}
}

func TestScorePlotter_GetSampleCount(t *testing.T) {
	sp := NewScorePlotter()
	err := sp.Start(t.TempDir())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sp.Stop()

	// Initially zero
	if sp.GetSampleCount() != 0 {
		t.Errorf("expected 0 samples initially, got %d", sp.GetSampleCount())
	}

	// Manually add samples
	sp.mu.Lock()
	sp.samples["golden_ratio"] = append(sp.samples["golden_ratio"], scoreSample{SampleIdx: 1})
	sp.samples["golden_ratio"] = append(sp.samples["golden_ratio"], scoreSample{SampleIdx: 2})
	sp.samples["phi_grid"] = append(sp.samples["phi_grid"], scoreSample{SampleIdx: 1})
	sp.mu.Unlock()

	count := sp.GetSampleCount()
	if count != 3 {
		t.Errorf("expected 3 samples, got %d", count)
	}
}

func TestFormatTimestamp(t *testing.T) {
	// Test a known time
	ts := time.Date(2026, 1, 30, 14, 35, 22, 0, time.UTC)
	result := FormatTimestamp(ts)

	expected := "20260130_143522"
	if result != expected {
		t.Errorf("expected '%s', got '%s'", expected, result)
	}
}

func TestMakePlotOutputDir_WithLogFile(t *testing.T) {
	baseDir := "/tmp/plots"
	logFile := "/data/captures/garden-001.pvlog"

	result := MakePlotOutputDir(baseDir, logFile)

	if !filepath.IsAbs(result) || result == "" {
		t.Errorf("unexpected result: %s", result)
	}

	// Check structure: baseDir/<log name>/<timestamp>
	if filepath.Dir(filepath.Dir(result)) != baseDir {
		t.Errorf("expected base dir '%s' in path, got '%s'", baseDir, result)
	}

	parent := filepath.Base(filepath.Dir(result))
	if parent != "garden-001" {
		t.Errorf("expected parent 'garden-001', got '%s'", parent)
	}
}

func TestMakePlotOutputDir_WithoutLogFile(t *testing.T) {
	baseDir := "/tmp/plots"

	result := MakePlotOutputDir(baseDir, "")

	// Should start with "live_"
	base := filepath.Base(result)
	if len(base) < 5 || base[:5] != "live_" {
		t.Errorf("expected path to contain 'live_', got '%s'", result)
	}
}

func TestGenerateColors(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{0, 0},
		{1, 1},
		{5, 5},
		{10, 10},
	}

	for _, tt := range tests {
		colors := generateColors(tt.n)
		if len(colors) != tt.expected {
			t.Errorf("generateColors(%d): expected %d colours, got %d", tt.n, tt.expected, len(colors))
		}
	}

	// Verify colours are valid RGBA
	colors := generateColors(5)
	for i, c := range colors {
		rgba, ok := c.(color.RGBA)
		if !ok {
			t.Errorf("colour %d: expected color.RGBA, got %T", i, c)
			continue
		}
		if rgba.A != 255 {
			t.Errorf("colour %d: expected alpha 255, got %d", i, rgba.A)
		}
	}
}

func TestGenerateColors_Distinct(t *testing.T) {
	// Check that generated colours are distinct (different hues)
	colors := generateColors(6)
	if len(colors) != 6 {
		t.Fatalf("expected 6 colours, got %d", len(colors))
	}

	seen := make(map[uint32]bool)
	for _, c := range colors {
		rgba := c.(color.RGBA)
		key := uint32(rgba.R)<<16 | uint32(rgba.G)<<8 | uint32(rgba.B)
		if seen[key] {
			t.Error("duplicate colour found in generated palette")
		}
		seen[key] = true
	}
}

func TestHslToRGB(t *testing.T) {
	tests := []struct {
		h, s, l   float64
		expectedR uint8
		expectedG uint8
		expectedB uint8
	}{
		// Red (hue 0)
		{0.0, 1.0, 0.5, 255, 0, 0},
		// Green (hue 1/3)
		{1.0 / 3.0, 1.0, 0.5, 0, 255, 0},
		// Blue (hue 2/3)
		{2.0 / 3.0, 1.0, 0.5, 0, 0, 255},
		// White (lightness 1)
		{0.0, 0.0, 1.0, 255, 255, 255},
		// Black (lightness 0)
		{0.0, 0.0, 0.0, 0, 0, 0},
		// Grey (saturation 0)
		{0.0, 0.0, 0.5, 127, 127, 127},
	}

	for _, tt := range tests {
		r, g, b := hslToRGB(tt.h, tt.s, tt.l)

		// Allow small tolerance for floating point
		if absInt(int(r)-int(tt.expectedR)) > 1 ||
			absInt(int(g)-int(tt.expectedG)) > 1 ||
			absInt(int(b)-int(tt.expectedB)) > 1 {
			t.Errorf("hslToRGB(%f, %f, %f): expected (%d, %d, %d), got (%d, %d, %d)",
				tt.h, tt.s, tt.l, tt.expectedR, tt.expectedG, tt.expectedB, r, g, b)
		}
	}
}

func TestHueToRGB(t *testing.T) {
	tests := []struct {
		p, q, t  float64
		expected float64
	}{
		// t < 0 case: t becomes 0.5 after +1
		{0.0, 1.0, -0.5, 1.0},
		// t > 1 case: t becomes 0.5 after -1
		{0.0, 1.0, 1.5, 1.0},
		// t < 1/6 case
		{0.0, 1.0, 0.1, 0.6},
		// t < 1/2 case
		{0.0, 1.0, 0.25, 1.0},
		// t < 2/3 case
		{0.0, 1.0, 0.6, 0.4},
	}

	for _, tt := range tests {
		result := hueToRGB(tt.p, tt.q, tt.t)
		// Allow small tolerance
		if diff := result - tt.expected; diff > 0.01 || diff < -0.01 {
			t.Errorf("hueToRGB(%f, %f, %f): expected %f, got %f", tt.p, tt.q, tt.t, tt.expected, result)
		}
	}
}

// Helper function
func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
