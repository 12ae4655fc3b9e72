package binning

import (
	"math"
	"testing"

	"github.com/jsanders/contbin/internal/grid"
)

func TestProjectPaintsMeanAndSN(t *testing.T) {
	in, cache, binMap := uniformBinningInputs(8, 8, 4)
	bn := NewBinner(in, cache, Params{TargetSN: 3}, binMap)
	bn.Run()
	sc := &Scrubber{Binner: bn, Params: ScrubParams{TargetSN: 3}}
	sc.Scrub()

	pr := Project(bn, nil)
	if len(pr.Signal) != len(bn.Bins) {
		t.Fatalf("projection has %d bins, binner has %d", len(pr.Signal), len(bn.Bins))
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			id := binMap.At(x, y)
			if id == -1 {
				if !math.IsNaN(float64(pr.Mean.At(x, y))) {
					t.Fatalf("unbinned pixel (%d,%d) should be NaN in the mean image", x, y)
				}
				continue
			}
			want := float32(pr.Signal[id] / float64(pr.PixCount[id]))
			if pr.Mean.At(x, y) != want {
				t.Fatalf("mean image at (%d,%d) = %v, want %v", x, y, pr.Mean.At(x, y), want)
			}
			if pr.SNImage.At(x, y) != float32(pr.SN[id]) {
				t.Fatalf("sn image at (%d,%d) = %v, want %v", x, y, pr.SNImage.At(x, y), pr.SN[id])
			}
		}
	}
}

func TestProjectWarnsOnNegativeSN(t *testing.T) {
	w, h := 2, 2
	in, cache, binMap := uniformBinningInputs(w, h, 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			in.Counts.Set(x, y, -5)
		}
	}
	// an explicit noise map keeps the variance defined for negative counts
	in.NoiseMap = grid.NewFloat(w, h, 1)
	b := &Bin{ID: 0}
	bn := NewBinner(in, cache, Params{TargetSN: 1}, binMap)
	bn.Bins = append(bn.Bins, b)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bn.addPoint(b, Point{x, y})
		}
	}

	warned := false
	pr := Project(bn, func(string, ...interface{}) { warned = true })
	if !warned {
		t.Fatalf("negative-signal bin should trigger a warning")
	}
	if pr.SN[0] >= 0 {
		t.Fatalf("expected negative S/N, got %v", pr.SN[0])
	}
}
