package smooth

import (
	"math"
	"testing"

	"github.com/jsanders/contbin/internal/geometry"
	"github.com/jsanders/contbin/internal/grid"
)

func TestScaleMapSkipsNeighborOnlyMask(t *testing.T) {
	w, h := 9, 9
	counts := grid.NewFloat(w, h, 2)
	mask := grid.NewMask(w, h, 1)
	mask.Set(4, 4, -2)
	in := &Inputs{Counts: counts, Mask: mask}
	cache := geometry.NewCache(w, h)

	out := ScaleMap(in, cache, 2)
	if !math.IsNaN(float64(out.At(4, 4))) {
		t.Fatalf("mask -2 pixel should never get its own scale measurement, got %v", out.At(4, 4))
	}
	if math.IsNaN(float64(out.At(0, 0))) {
		t.Fatalf("mask>=1 pixel should get a scale measurement")
	}
}

func TestScaleMapNeighborCreditFromMaskMinus2(t *testing.T) {
	// a -2 pixel still contributes counts to an active neighbor's disk, so
	// an active pixel next to one should need no larger a radius than if
	// the -2 pixel were fully active.
	w, h := 9, 9
	countsA := grid.NewFloat(w, h, 2)
	maskA := grid.NewMask(w, h, 1)
	inA := &Inputs{Counts: countsA, Mask: maskA}

	countsB := grid.NewFloat(w, h, 2)
	maskB := grid.NewMask(w, h, 1)
	maskB.Set(5, 4, -2)
	inB := &Inputs{Counts: countsB, Mask: maskB}

	cache := geometry.NewCache(w, h)
	outA := ScaleMap(inA, cache, 2)
	outB := ScaleMap(inB, cache, 2)
	if outB.At(4, 4) > outA.At(4, 4) {
		t.Fatalf("neighbor's scale grew when a neighbor flipped from active to -2: %v > %v", outB.At(4, 4), outA.At(4, 4))
	}
}
