package stream

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/aperture-data/phi.vision/internal/geometry"
	"github.com/aperture-data/phi.vision/internal/vision"
)

// fibNumbers feeds the synthetic value-run candidates.
var fibNumbers = []int{1, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144, 233}

// SyntheticSource generates frames of classifiable candidates for testing
// and demos: golden log spirals, sunflower seed heads, golden rectangles,
// Fibonacci value runs, and uniform-noise distractors. Pattern anchors walk
// slowly around a ring so buckets shift over time; every point also gets
// per-frame jitter.
type SyntheticSource struct {
	frameID  atomic.Uint64
	sourceID string

	// Configuration
	StartNanos    int64   // timestamp of the first frame
	FrameRate     float64 // frames per second
	SpiralCount   int     // golden log spirals per frame
	DiscCount     int     // sunflower seed heads per frame
	RectCount     int     // golden rectangles per frame
	ValueCount    int     // fibonacci value runs per frame
	NoiseCount    int     // uniform-noise distractors per frame
	FrameW        float64 // frame width, pixels
	FrameH        float64 // frame height, pixels
	JitterPx      float64 // per-point positional noise
	DriftPxPerSec float64 // anchor drift speed along the ring

	rng   *rand.Rand
	sites []patternSite
}

// patternSite is one pattern's fixed slot on the anchor ring.
type patternSite struct {
	kind      vision.RegionKind
	baseAngle float64
}

// NewSyntheticSource creates a generator for the given source id. A zero
// seed derives one from the clock; any other seed makes the frame sequence
// fully deterministic.
func NewSyntheticSource(sourceID string, seed int64) *SyntheticSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SyntheticSource{
		sourceID:      sourceID,
		StartNanos:    time.Now().UnixNano(),
		FrameRate:     10.0,
		SpiralCount:   2,
		DiscCount:     2,
		RectCount:     2,
		ValueCount:    1,
		NoiseCount:    3,
		FrameW:        1920,
		FrameH:        1080,
		JitterPx:      1.5,
		DriftPxPerSec: 4.0,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// initLayout spreads the configured pattern mix around a ring centred in
// the frame. Called on the first frame so count fields can be tuned after
// construction.
func (g *SyntheticSource) initLayout() {
	total := g.SpiralCount + g.DiscCount + g.RectCount + g.ValueCount
	if total == 0 {
		g.sites = []patternSite{}
		return
	}

	g.sites = make([]patternSite, 0, total)
	i := 0
	add := func(kind vision.RegionKind, n int) {
		for k := 0; k < n; k++ {
			g.sites = append(g.sites, patternSite{
				kind:      kind,
				baseAngle: float64(i) * 2 * math.Pi / float64(total),
			})
			i++
		}
	}
	// Points sites split between spirals and discs in order.
	add(vision.RegionPoints, g.SpiralCount+g.DiscCount)
	add(vision.RegionRect, g.RectCount)
	add(vision.RegionValues, g.ValueCount)
}

// ringRadius is the anchor ring radius for the configured frame size.
func (g *SyntheticSource) ringRadius() float64 {
	return 0.35 * math.Min(g.FrameW, g.FrameH)
}

// anchorAt places a site at the given elapsed time.
func (g *SyntheticSource) anchorAt(site patternSite, elapsedSecs float64) geometry.Point {
	radius := g.ringRadius()
	angularSpeed := 0.0
	if radius > 0 {
		angularSpeed = g.DriftPxPerSec / radius
	}
	angle := site.baseAngle + elapsedSecs*angularSpeed
	return geometry.Point{
		X: g.FrameW/2 + radius*math.Cos(angle),
		Y: g.FrameH/2 + radius*math.Sin(angle),
	}
}

func (g *SyntheticSource) jitter() float64 {
	return (g.rng.Float64()*2 - 1) * g.JitterPx
}

// NextFrame generates the next synthetic frame.
func (g *SyntheticSource) NextFrame() *FrameRecord {
	frameID := g.frameID.Add(1)
	if g.sites == nil {
		g.initLayout()
	}

	rate := g.FrameRate
	if rate <= 0 {
		rate = 10.0
	}
	ts := g.StartNanos + int64(float64(frameID-1)/rate*1e9)
	elapsed := float64(ts-g.StartNanos) / 1e9

	cands := make([]vision.Candidate, 0, len(g.sites)+g.NoiseCount)
	pointsSeen := 0
	for _, site := range g.sites {
		anchor := g.anchorAt(site, elapsed)
		switch site.kind {
		case vision.RegionPoints:
			// The first SpiralCount points sites are spirals, the rest discs.
			if pointsSeen < g.SpiralCount {
				cands = append(cands, g.spiralCandidate(anchor))
			} else {
				cands = append(cands, g.discCandidate(anchor))
			}
			pointsSeen++
		case vision.RegionRect:
			cands = append(cands, g.rectCandidate(anchor))
		case vision.RegionValues:
			cands = append(cands, g.valuesCandidate(anchor))
		}
	}
	for i := 0; i < g.NoiseCount; i++ {
		cands = append(cands, g.noiseCandidate())
	}

	return &FrameRecord{
		FrameID:        frameID,
		TimestampNanos: ts,
		SourceID:       g.sourceID,
		Candidates:     cands,
	}
}

// spiralCandidate traces a golden logarithmic spiral around the anchor.
func (g *SyntheticSource) spiralCandidate(anchor geometry.Point) vision.Candidate {
	const n = 48
	pts := make([]geometry.Point, 0, n)
	for i := 0; i < n; i++ {
		theta := 2.0 * 2 * math.Pi * float64(i) / float64(n-1)
		r := 2 * math.Exp(geometry.GoldenGrowthRate*theta)
		pts = append(pts, geometry.Point{
			X: anchor.X + r*math.Cos(theta) + g.jitter(),
			Y: anchor.Y + r*math.Sin(theta) + g.jitter(),
		})
	}
	center := anchor
	return vision.Candidate{Kind: vision.RegionPoints, Points: pts, Center: &center, Source: g.sourceID}
}

// discCandidate scatters seeds at the golden angle around the anchor.
func (g *SyntheticSource) discCandidate(anchor geometry.Point) vision.Candidate {
	const n = 60
	pts := make([]geometry.Point, 0, n)
	for k := 0; k < n; k++ {
		theta := float64(k) * geometry.GoldenAngleRadians
		r := 8 * math.Sqrt(float64(k)+1)
		pts = append(pts, geometry.Point{
			X: anchor.X + r*math.Cos(theta) + g.jitter(),
			Y: anchor.Y + r*math.Sin(theta) + g.jitter(),
		})
	}
	center := anchor
	return vision.Candidate{Kind: vision.RegionPoints, Points: pts, Center: &center, Source: g.sourceID}
}

// rectCandidate frames a golden rectangle on the anchor.
func (g *SyntheticSource) rectCandidate(anchor geometry.Point) vision.Candidate {
	h := 80 + g.jitter()
	w := h * geometry.Phi
	return vision.Candidate{
		Kind:   vision.RegionRect,
		Rect:   geometry.RectAround(anchor, w, h),
		Source: g.sourceID,
	}
}

// valuesCandidate reads a Fibonacci run starting at a random offset.
func (g *SyntheticSource) valuesCandidate(anchor geometry.Point) vision.Candidate {
	const runLen = 6
	start := g.rng.Intn(len(fibNumbers) - runLen)
	values := make([]int, runLen)
	copy(values, fibNumbers[start:start+runLen])
	return vision.Candidate{
		Kind:   vision.RegionValues,
		Values: values,
		Rect:   geometry.RectAround(anchor, 160, 40),
		Source: g.sourceID,
	}
}

// noiseCandidate scatters uniform points in a small box at a random spot.
// Distractors move every frame so they never accumulate history.
func (g *SyntheticSource) noiseCandidate() vision.Candidate {
	const boxSize = 120.0
	origin := geometry.Point{
		X: g.rng.Float64() * g.FrameW,
		Y: g.rng.Float64() * g.FrameH,
	}
	n := 6 + g.rng.Intn(18)
	pts := make([]geometry.Point, 0, n)
	for i := 0; i < n; i++ {
		pts = append(pts, geometry.Point{
			X: origin.X + g.rng.Float64()*boxSize,
			Y: origin.Y + g.rng.Float64()*boxSize,
		})
	}
	return vision.Candidate{Kind: vision.RegionPoints, Points: pts, Source: g.sourceID}
}

// Run emits frames at the configured rate until ctx is cancelled.
func (g *SyntheticSource) Run(ctx context.Context, emit func(*FrameRecord)) error {
	rate := g.FrameRate
	if rate <= 0 {
		rate = 10.0
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			emit(g.NextFrame())
		}
	}
}
