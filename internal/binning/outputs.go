// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package binning

import (
	"math"

	"github.com/jsanders/contbin/internal/grid"
)

// Projection holds the per-bin measurements and painted output images
// derived from a final bin assignment.
type Projection struct {
	Signal   []float64
	Noise2   []float64
	SN       []float64
	PixCount []int

	// Mean holds signal[b]/pixcount[b] at every pixel of bin b, NaN at
	// unbinned pixels; SNImage likewise holds sn[b], NaN where unbinned.
	Mean    *grid.Float
	SNImage *grid.Float
}

// Project computes per-bin signal, noise and S/N from the binner's final
// state and paints the per-pixel output images. A surviving bin with a
// negative S/N (a negative-valued input image) is reported through warnf,
// as a user-facing anomaly rather than a failure.
func Project(bn *Binner, warnf func(format string, a ...interface{})) *Projection {
	n := len(bn.Bins)
	pr := &Projection{
		Signal:   make([]float64, n),
		Noise2:   make([]float64, n),
		SN:       make([]float64, n),
		PixCount: make([]int, n),
	}
	for i, b := range bn.Bins {
		sig := b.Sums.Signal()
		n2 := b.Sums.Noise2()
		sn := math.Sqrt(b.Sums.SN2())
		if sig < 0 {
			sn = -sn
		}
		if sn < 0 && warnf != nil {
			warnf("bin %d has negative S/N %g; check the input images for negative values", b.ID, sn)
		}
		pr.Signal[i] = sig
		pr.Noise2[i] = n2
		pr.SN[i] = sn
		pr.PixCount[i] = len(b.Pixels)
	}

	w, h := bn.BinMap.W, bn.BinMap.H
	nan := float32(math.NaN())
	pr.Mean = grid.NewFloat(w, h, nan)
	pr.SNImage = grid.NewFloat(w, h, nan)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			id := bn.BinMap.At(x, y)
			if id == -1 {
				continue
			}
			if pr.PixCount[id] > 0 {
				pr.Mean.Set(x, y, float32(pr.Signal[id]/float64(pr.PixCount[id])))
			}
			pr.SNImage.Set(x, y, float32(pr.SN[id]))
		}
	}
	return pr
}
