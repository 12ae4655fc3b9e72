package smooth

import (
	"math"
	"testing"

	"github.com/jsanders/contbin/internal/geometry"
	"github.com/jsanders/contbin/internal/grid"
)

func uniformInputs(w, h int, value float32) (*Inputs, *geometry.Cache) {
	counts := grid.NewFloat(w, h, value)
	mask := grid.NewMask(w, h, 1)
	in := &Inputs{Counts: counts, Mask: mask}
	return in, geometry.NewCache(w, h)
}

func TestIndependentMeetsTargetAwayFromBoundary(t *testing.T) {
	in, cache := uniformInputs(20, 20, 4)
	out := Independent(in, cache, 2)
	got := out.At(10, 10)
	if math.Abs(float64(got)-4) > 1e-4 {
		t.Fatalf("Independent output at interior uniform pixel = %v, want ~4", got)
	}
}

func TestIncrementalMatchesIndependentOnUniformInterior(t *testing.T) {
	in, cache := uniformInputs(20, 20, 4)
	ind := Independent(in, cache, 2)
	inc := Incremental(in, cache, 2)
	for _, p := range [][2]int{{10, 10}, {10, 11}, {11, 10}, {3, 3}} {
		a, b := ind.At(p[0], p[1]), inc.At(p[0], p[1])
		if math.Abs(float64(a-b)) > 1e-3 {
			t.Fatalf("interior pixel (%d,%d): independent=%v incremental=%v diverge", p[0], p[1], a, b)
		}
	}
}

func TestMaskedPixelsAreSkipped(t *testing.T) {
	in, cache := uniformInputs(10, 10, 4)
	in.Mask.Set(5, 5, 0)
	ind := Independent(in, cache, 2)
	if !math.IsNaN(float64(ind.At(5, 5))) {
		t.Fatalf("masked-out pixel should produce NaN output, got %v", ind.At(5, 5))
	}
	inc := Incremental(in, cache, 2)
	if !math.IsNaN(float64(inc.At(5, 5))) {
		t.Fatalf("masked-out pixel should produce NaN output under incremental variant too, got %v", inc.At(5, 5))
	}
}

func TestMaskedNeighborDoesNotContribute(t *testing.T) {
	w, h := 5, 5
	counts := grid.NewFloat(w, h, 0)
	mask := grid.NewMask(w, h, 1)
	counts.Set(2, 2, 100)
	mask.Set(1, 2, 0) // mask out one of (2,2)'s 4-neighbors
	in := &Inputs{Counts: counts, Mask: mask}
	cache := geometry.NewCache(w, h)

	// Circles[1] holds all 8 offsets with floor(sqrt(dx^2+dy^2)) == 1,
	// diagonals included, so masking one leaves 7 active.
	activeNeighbors := 0
	for _, o := range cache.Circles[1] {
		if in.active(2+o.Dx, 2+o.Dy) {
			activeNeighbors++
		}
	}
	if activeNeighbors != 7 {
		t.Fatalf("expected 7 active radius-1 neighbors after masking one out, got %d", activeNeighbors)
	}
}

func TestShiftSetsEnteringExcludesOrigin(t *testing.T) {
	cache := geometry.NewCache(20, 20)
	for _, axis := range []byte{'x', 'y'} {
		for _, sign := range []int{1, -1} {
			entering, leaving := shiftSets(cache.Shift[3], axis, sign)
			if len(entering) != len(cache.Shift[3]) || len(leaving) != len(cache.Shift[3]) {
				t.Fatalf("axis=%c sign=%d: entering/leaving length mismatch", axis, sign)
			}
			for _, o := range entering {
				if o.Dx == 0 && o.Dy == 0 {
					t.Fatalf("axis=%c sign=%d: entering set should never include the center pixel", axis, sign)
				}
			}
		}
	}
}

func TestIncrementalMatchesIndependentOnGradient(t *testing.T) {
	// a non-uniform field catches shift-table errors a uniform one hides:
	// if the wrong trailing pixels get removed on a shift, the running
	// sums diverge from the true disk and the outputs drift apart. All
	// counts are positive, so S/N^2 grows monotonically with radius and
	// both variants must settle on the same minimal disk everywhere.
	w, h := 12, 12
	counts := grid.NewFloat(w, h, 0)
	mask := grid.NewMask(w, h, 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			counts.Set(x, y, 1+0.5*float32(x)+0.25*float32(y))
		}
	}
	mask.Set(5, 7, 0) // a masked gap also forces a mid-row state reset
	in := &Inputs{Counts: counts, Mask: mask}
	cache := geometry.NewCache(w, h)

	ind := Independent(in, cache, 3)
	inc := Incremental(in, cache, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a, b := float64(ind.At(x, y)), float64(inc.At(x, y))
			if math.IsNaN(a) != math.IsNaN(b) {
				t.Fatalf("pixel (%d,%d): NaN mismatch independent=%v incremental=%v", x, y, a, b)
			}
			if !math.IsNaN(a) && math.Abs(a-b) > 1e-4 {
				t.Fatalf("pixel (%d,%d): independent=%v incremental=%v diverge", x, y, a, b)
			}
		}
	}
}

func TestUniformUnitCountsTargetTwo(t *testing.T) {
	// counts of 1 everywhere with target S/N 2: each disk grows until
	// F^2/(1+sqrt(F+0.75))^2 >= 4, first satisfied at F=8, and the mean
	// stays exactly 1 at every pixel.
	in, cache := uniformInputs(4, 4, 1)
	out := Incremental(in, cache, 2)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if math.Abs(float64(out.At(x, y))-1) > 1e-5 {
				t.Fatalf("uniform unit field pixel (%d,%d) = %v, want 1", x, y, out.At(x, y))
			}
		}
	}
}

func TestDeltaFunctionCornerSpreadsPeak(t *testing.T) {
	// a single 100-count pixel: the pixel itself meets target at radius 0;
	// a far corner keeps growing until its disk covers the peak, then
	// reports 100 spread over the disk's pixel count.
	w, h := 8, 8
	counts := grid.NewFloat(w, h, 0)
	mask := grid.NewMask(w, h, 1)
	counts.Set(3, 3, 100)
	in := &Inputs{Counts: counts, Mask: mask}
	cache := geometry.NewCache(w, h)
	out := Independent(in, cache, 5)

	if math.Abs(float64(out.At(3, 3))-100) > 1e-4 {
		t.Fatalf("peak pixel should meet target alone: %v, want 100", out.At(3, 3))
	}
	corner := float64(out.At(7, 7))
	if corner <= 0 || corner >= 100 {
		t.Fatalf("corner pixel should hold the peak diluted over its disk, got %v", corner)
	}
}

func TestIncrementalExposureCorrectedMatchesIndependent(t *testing.T) {
	in, cache := uniformInputs(16, 16, 4)
	in.FgExpMap = grid.NewFloat(16, 16, 2)
	in.ExpCorrect = true
	ind := Independent(in, cache, 2)
	inc := Incremental(in, cache, 2)
	for _, p := range [][2]int{{8, 8}, {8, 9}, {3, 12}} {
		a, b := ind.At(p[0], p[1]), inc.At(p[0], p[1])
		if math.Abs(float64(a-b)) > 1e-3 {
			t.Fatalf("exposure-corrected pixel (%d,%d): independent=%v incremental=%v diverge", p[0], p[1], a, b)
		}
	}
}

func TestExposureCorrectedZeroExposureIsNaN(t *testing.T) {
	in, cache := uniformInputs(8, 8, 4)
	in.FgExpMap = grid.NewFloat(8, 8, 0)
	in.ExpCorrect = true
	out := Independent(in, cache, 2)
	if !math.IsNaN(float64(out.At(4, 4))) {
		t.Fatalf("zero accumulated exposure should emit NaN, got %v", out.At(4, 4))
	}
}

func TestGrowToTargetCapsAtMaxRadius(t *testing.T) {
	// an isolated single active pixel can never reach a very high target; the
	// grow loop must terminate at the cache's radius cap rather than loop forever.
	w, h := 6, 6
	counts := grid.NewFloat(w, h, 0)
	mask := grid.NewMask(w, h, 0)
	mask.Set(3, 3, 1)
	counts.Set(3, 3, 1)
	in := &Inputs{Counts: counts, Mask: mask}
	cache := geometry.NewCache(w, h)
	out := Independent(in, cache, 1000)
	if math.IsNaN(float64(out.At(3, 3))) {
		t.Fatalf("isolated active pixel should still produce a (target-missing) output, got NaN")
	}
}
