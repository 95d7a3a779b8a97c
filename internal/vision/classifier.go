package vision

import (
	"math"
	"time"

	"github.com/aperture-data/phi.vision/internal/geometry"
)

// Classifier constants
const (
	// DefaultMinConfidence floors every emission regardless of class
	// threshold.
	DefaultMinConfidence = 0.25

	// Point-count bands for the phyllotaxis family: sparse fans read as
	// leaf whorls, dense discs as seed heads, in between as pinecone
	// scales.
	pineconeMinPoints  = 12
	sunflowerMinPoints = 40

	// minCandidatePoints is the smallest point set worth scoring at all.
	minCandidatePoints = 3
)

// ClassifierConfig holds the classification knobs resolved from TuningConfig.
type ClassifierConfig struct {
	MinConfidence float64
	// Disabled classes are never scored or emitted.
	Disabled map[PatternClass]bool
	// Thresholds overrides the per-class default thresholds.
	Thresholds map[PatternClass]float64
}

// DefaultClassifierConfig returns the default classification knobs.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{MinConfidence: DefaultMinConfidence}
}

// threshold resolves the emission threshold for a class.
func (c ClassifierConfig) threshold(class PatternClass) float64 {
	if v, ok := c.Thresholds[class]; ok {
		return v
	}
	if info, ok := Info(class); ok {
		return info.DefaultThreshold
	}
	return 1
}

// Classifier maps candidate regions to pattern detections using the pure
// scorers in internal/geometry. Rule-based; scorer choice and priority are
// fixed while thresholds and class enablement are tunable.
type Classifier struct {
	config ClassifierConfig
}

// NewClassifier creates a classifier with the given configuration.
func NewClassifier(config ClassifierConfig) *Classifier {
	return &Classifier{config: config}
}

// Config returns the active configuration.
func (c *Classifier) Config() ClassifierConfig {
	return c.config
}

// SetConfig replaces the configuration.
func (c *Classifier) SetConfig(config ClassifierConfig) {
	c.config = config
}

func (c *Classifier) enabled(class PatternClass) bool {
	return !c.config.Disabled[class]
}

// ClassifyFrame scores every candidate in a frame and returns the combined
// detections sorted confidence-descending, ready for suppression.
func (c *Classifier) ClassifyFrame(cands []Candidate, observed time.Time) []Detection {
	var dets []Detection
	for _, cand := range cands {
		dets = append(dets, c.Classify(cand, observed)...)
	}
	sortByConfidence(dets)
	return dets
}

// Classify scores one candidate, returning zero or more detections.
func (c *Classifier) Classify(cand Candidate, observed time.Time) []Detection {
	switch cand.Kind {
	case RegionPoints:
		return c.classifyPoints(cand, observed)
	case RegionRect:
		return c.classifyRect(cand, observed)
	case RegionGrid:
		return c.classifyGrid(cand, observed)
	case RegionValues:
		return c.classifyValues(cand, observed)
	default:
		return nil
	}
}

// classifyPoints scores a point set against every spiral-family rule and
// keeps the single best-confidence detection, so one outline yields at most
// one detection. Rule order breaks confidence ties toward the more specific
// class: a smooth golden spiral also walks out as ~40 consistent chambers,
// and a seed head as ~17, so the chamber rule alone cannot claim a shape
// that a stricter rule scores higher.
func (c *Classifier) classifyPoints(cand Candidate, observed time.Time) []Detection {
	points := cand.Points
	if len(points) < minCandidatePoints {
		return nil
	}
	center := geometry.Centroid(points)
	if cand.Center != nil {
		center = *cand.Center
	}
	box := geometry.BoundingRect(points)

	var best Detection
	found := false
	consider := func(class PatternClass, score float64, props MathProperties) {
		if !c.enabled(class) {
			return
		}
		d, ok := c.emit(class, score, box, center, observed, props)
		if !ok {
			return
		}
		if !found || d.Confidence > best.Confidence {
			best, found = d, true
		}
	}

	// Chambered shell with near-geometric growth.
	nautScore, chambers, chamberRatio := geometry.NautilusScore(points, center)
	if nautScore > geometry.NautilusScoreMin && chambers >= geometry.NautilusMinChambers {
		consider(ClassNautilusSpiral, nautScore, MathProperties{
			GrowthRate:   chamberRatio,
			ChamberCount: chambers,
		})
	}

	// Logarithmic spiral with golden growth per quarter turn. The sign of
	// the fitted pitch only encodes winding direction.
	logScore, growth := geometry.LogSpiralScore(points, center)
	if logScore >= geometry.LogSpiralStrongFit &&
		math.Abs(math.Abs(growth)-geometry.GoldenGrowthRate) <= geometry.GoldenGrowthTolerance {
		consider(ClassSpiralFibonacci, logScore, MathProperties{
			PhiValue:   math.Exp(math.Abs(growth) * math.Pi / 2),
			GrowthRate: growth,
		})
	}

	// Golden-angle spacing, taking the better of neighbour-sorted and
	// generation-order gaps so both sparse fans and dense discs match.
	phylScore, phylAngle := geometry.PhyllotaxisScore(points, center)
	divScore, divAngle := geometry.DivergenceScore(points, center)
	if divScore > phylScore {
		phylScore, phylAngle = divScore, divAngle
	}
	consider(phyllotaxisClass(len(points)), phylScore, MathProperties{
		AngleDegrees: phylAngle,
	})

	// Generic spiral fallback: consistent turning, or a strong log fit
	// whose growth is not golden.
	shellScore := geometry.SpiralScore(points)
	if logScore > shellScore {
		shellScore = logScore
	}
	consider(ClassShellSpiral, shellScore, MathProperties{
		GrowthRate: growth,
	})

	if !found {
		return nil
	}
	return []Detection{best}
}

// classifyRect scores a single rectangle's aspect ratio against φ.
func (c *Classifier) classifyRect(cand Candidate, observed time.Time) []Detection {
	rect := cand.Rect
	if rect.Area() <= 0 || !c.enabled(ClassGoldenRatio) {
		return nil
	}
	aspect := rect.AspectRatio()
	score := geometry.GoldenRatioScore(aspect)
	ratio := aspect
	if ratio > 0 && ratio < 1 {
		ratio = 1 / ratio
	}
	if d, ok := c.emit(ClassGoldenRatio, score, rect, rect.Center(), observed, MathProperties{
		PhiValue: ratio,
	}); ok {
		return []Detection{d}
	}
	return nil
}

// classifyGrid scores a rectangular subdivision for golden-section lines.
func (c *Classifier) classifyGrid(cand Candidate, observed time.Time) []Detection {
	if len(cand.Rects) == 0 || !c.enabled(ClassPhiGrid) {
		return nil
	}
	score, ratio := geometry.PhiGridScore(cand.Rects)
	box := geometry.BoundRects(cand.Rects)
	if d, ok := c.emit(ClassPhiGrid, score, box, box.Center(), observed, MathProperties{
		PhiValue: ratio,
	}); ok {
		return []Detection{d}
	}
	return nil
}

// classifyValues scores an integer sequence for the Fibonacci recurrence.
func (c *Classifier) classifyValues(cand Candidate, observed time.Time) []Detection {
	if !c.enabled(ClassFibonacciSequence) {
		return nil
	}
	score, matched := geometry.FibonacciSequenceScore(cand.Values)
	box := cand.Rect
	center := box.Center()
	if cand.Center != nil {
		center = *cand.Center
	}
	if d, ok := c.emit(ClassFibonacciSequence, score, box, center, observed, MathProperties{
		Sequence: matched,
	}); ok {
		return []Detection{d}
	}
	return nil
}

// emit builds a detection when the weighted score clears both the class
// threshold and the global confidence floor.
func (c *Classifier) emit(class PatternClass, score float64, box geometry.Rect, center geometry.Point, observed time.Time, props MathProperties) (Detection, bool) {
	info, ok := Info(class)
	if !ok {
		return Detection{}, false
	}
	conf := clampUnit(score * info.Weight)
	if conf < c.config.threshold(class) || conf < c.config.MinConfidence {
		return Detection{}, false
	}
	return Detection{
		Class:         class,
		Confidence:    conf,
		Box:           box,
		Center:        center,
		ObservedNanos: observed.UnixNano(),
		Math:          props,
	}, true
}

// phyllotaxisClass maps candidate density to the family member whose
// threshold applies.
func phyllotaxisClass(n int) PatternClass {
	switch {
	case n >= sunflowerMinPoints:
		return ClassSunflowerSpiral
	case n >= pineconeMinPoints:
		return ClassPineconeSpiral
	default:
		return ClassLeafArrangement
	}
}
