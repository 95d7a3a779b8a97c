package geometry

import (
	"math"
	"testing"
)

// goldenSplit builds a 100-wide golden rectangle divided into its square and
// remainder.
func goldenSplit() []Rect {
	h := 100 / Phi
	return []Rect{
		{X: 0, Y: 0, W: h, H: h},
		{X: h, Y: 0, W: 100 - h, H: h},
	}
}

func TestPhiGridScore_GoldenSplit(t *testing.T) {
	score, ratio := PhiGridScore(goldenSplit())
	if score < 0.99 {
		t.Errorf("PhiGridScore(golden split) = %v, want >= 0.99", score)
	}
	if math.Abs(ratio-Phi) > 0.01 {
		t.Errorf("ratio = %v, want ~%v", ratio, Phi)
	}
}

func TestPhiGridScore_RuleOfThirds(t *testing.T) {
	var rects []Rect
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rects = append(rects, Rect{
				X: float64(i) * 100.0 / 3,
				Y: float64(j) * 100.0 / 3,
				W: 100.0 / 3,
				H: 100.0 / 3,
			})
		}
	}
	score, _ := PhiGridScore(rects)
	if score >= 0.6 {
		t.Errorf("PhiGridScore(thirds grid) = %v, want < 0.6", score)
	}
	if score <= 0 {
		t.Errorf("PhiGridScore(thirds grid) = %v, want > 0 (thirds are near the golden section)", score)
	}
}

func TestPhiGridScore_EvenHalves(t *testing.T) {
	rects := []Rect{
		{X: 0, Y: 0, W: 50, H: 100},
		{X: 50, Y: 0, W: 50, H: 100},
	}
	if score, _ := PhiGridScore(rects); score != 0 {
		t.Errorf("PhiGridScore(even halves) = %v, want 0", score)
	}
}

func TestPhiGridScore_Degenerate(t *testing.T) {
	if score, _ := PhiGridScore(nil); score != 0 {
		t.Errorf("PhiGridScore(nil) = %v, want 0", score)
	}
	if score, _ := PhiGridScore([]Rect{{X: 0, Y: 0, W: 100, H: 60}}); score != 0 {
		t.Errorf("PhiGridScore(single rect) = %v, want 0", score)
	}
	// Zero-area cells contribute nothing.
	rects := []Rect{
		{X: 0, Y: 0, W: 0, H: 0},
		{X: 10, Y: 10, W: 0, H: 50},
	}
	if score, _ := PhiGridScore(rects); score != 0 {
		t.Errorf("PhiGridScore(zero-area rects) = %v, want 0", score)
	}
}

func TestPhiGridScore_BothAxes(t *testing.T) {
	// Four cells meeting at the golden section of both axes.
	gx := 100 / Phi
	gy := 80 / Phi
	rects := []Rect{
		{X: 0, Y: 0, W: gx, H: gy},
		{X: gx, Y: 0, W: 100 - gx, H: gy},
		{X: 0, Y: gy, W: gx, H: 80 - gy},
		{X: gx, Y: gy, W: 100 - gx, H: 80 - gy},
	}
	score, ratio := PhiGridScore(rects)
	if score < 0.99 {
		t.Errorf("PhiGridScore(phi grid both axes) = %v, want >= 0.99", score)
	}
	if math.Abs(ratio-Phi) > 0.01 {
		t.Errorf("ratio = %v, want ~%v", ratio, Phi)
	}
}
