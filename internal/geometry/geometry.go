// Package geometry provides the pure pattern-scoring functions used by the
// vision engine: spiral fits, golden-ratio checks, chamber detection, and
// golden-angle (phyllotaxis) spacing. All scores are float64 in [0,1].
// Degenerate input (too few points, zero radii, non-finite coordinates)
// scores 0 and never panics.
package geometry

import "math"

// Point is a 2D position in pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle with origin at the top-left corner.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns the rectangle area. Negative dimensions count as zero.
func (r Rect) Area() float64 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Center returns the rectangle midpoint.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// AspectRatio returns width over height, or 0 for a degenerate rectangle.
func (r Rect) AspectRatio() float64 {
	if r.H <= 0 || r.W <= 0 {
		return 0
	}
	return r.W / r.H
}

// IntersectionArea returns the overlap area between two rectangles.
func (r Rect) IntersectionArea(o Rect) float64 {
	left := math.Max(r.X, o.X)
	right := math.Min(r.X+r.W, o.X+o.W)
	top := math.Max(r.Y, o.Y)
	bottom := math.Min(r.Y+r.H, o.Y+o.H)
	if right <= left || bottom <= top {
		return 0
	}
	return (right - left) * (bottom - top)
}

// RectAround returns the rectangle of the given size centred on p.
func RectAround(p Point, w, h float64) Rect {
	return Rect{X: p.X - w/2, Y: p.Y - h/2, W: w, H: h}
}

// Centroid returns the arithmetic mean of the points, or the zero Point for
// an empty slice.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range points {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(points))
	return Point{X: sx / n, Y: sy / n}
}

// BoundingRect returns the tightest rectangle containing all points.
func BoundingRect(points []Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// BoundRects returns the tightest rectangle enclosing every positive-area
// rectangle in the slice.
func BoundRects(rects []Rect) Rect {
	corners := make([]Point, 0, 2*len(rects))
	for _, r := range rects {
		if r.W <= 0 || r.H <= 0 {
			continue
		}
		corners = append(corners, Point{X: r.X, Y: r.Y}, Point{X: r.X + r.W, Y: r.Y + r.H})
	}
	return BoundingRect(corners)
}

// radiiAbout returns the distance of each point from center, in input order.
func radiiAbout(points []Point, center Point) []float64 {
	radii := make([]float64, len(points))
	for i, p := range points {
		radii[i] = math.Hypot(p.X-center.X, p.Y-center.Y)
	}
	return radii
}

// anglesAbout returns the polar angle of each point about center, in input
// order, each in (-π, π].
func anglesAbout(points []Point, center Point) []float64 {
	angles := make([]float64, len(points))
	for i, p := range points {
		angles[i] = math.Atan2(p.Y-center.Y, p.X-center.X)
	}
	return angles
}

// wrapToPi maps an angle difference into (-π, π].
func wrapToPi(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// unwrapAngles removes 2π discontinuities from an ordered angle sequence so
// multi-turn paths accumulate angle monotonically.
func unwrapAngles(angles []float64) []float64 {
	out := make([]float64, len(angles))
	if len(angles) == 0 {
		return out
	}
	out[0] = angles[0]
	for i := 1; i < len(angles); i++ {
		out[i] = out[i-1] + wrapToPi(angles[i]-angles[i-1])
	}
	return out
}

// finitePoints reports whether every coordinate is finite.
func finitePoints(points []Point) bool {
	for _, p := range points {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}

// clipUnit clamps a score to [0,1].
func clipUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
