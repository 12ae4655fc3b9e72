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

package smooth

import (
	"math"

	"github.com/jsanders/contbin/internal/geometry"
	"github.com/jsanders/contbin/internal/grid"
	"github.com/jsanders/contbin/internal/noise"
)

// ScaleMap measures, for every pixel with mask >= 1, the integer radius at which the independent accumulative smoother's target
// would be met, without computing an output flux value. Mask code -2 marks
// a pixel that counts toward neighboring disks' statistics but is itself
// excluded from having its own scale measured; this code is honored only
// here, not in the general smoother or the binner.
func ScaleMap(in *Inputs, cache *geometry.Cache, targetSN float64) *grid.Float {
	w, h := in.Counts.W, in.Counts.H
	out := grid.NewFloat(w, h, float32(math.NaN()))
	target2 := targetSN * targetSN

	countsOnlyActive := func(x, y int) bool {
		if !in.Mask.InBounds(x, y) {
			return false
		}
		v := in.Mask.At(x, y)
		return v >= 1 || v == -2
	}

	addUnlessMaskedZero := func(s *scaleSums, x, y int, sign float64) {
		if !countsOnlyActive(x, y) {
			return
		}
		s.add(sign, float64(in.Counts.At(x, y)))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := in.Mask.At(x, y)
			if !(v >= 1) {
				continue // -2 pixels get neighbor credit only, never their own scale
			}
			var s scaleSums
			r := 0
			for _, o := range cache.Circles[0] {
				addUnlessMaskedZero(&s, x+o.Dx, y+o.Dy, 1)
			}
			for s.sn2() < target2 && r < cache.MaxRadius() {
				r++
				for _, o := range cache.Circles[r] {
					addUnlessMaskedZero(&s, x+o.Dx, y+o.Dy, 1)
				}
			}
			out.Set(x, y, float32(r))
		}
	}
	return out
}

// scaleSums is the counts-only analog of noise.Sums: it tracks just the raw
// count sum and Gehrels variance, since a scale measurement has no
// background, exposure or noisemap inputs.
type scaleSums struct {
	sum   float64
	count int
}

func (s *scaleSums) add(sign, count float64) {
	s.sum += sign * count
	s.count += int(sign)
}

func (s *scaleSums) sn2() float64 {
	n2 := noise.ErrorSqdEst(s.sum)
	if n2 < noise.MinNoise2 {
		return noise.MinNoise2
	}
	return s.sum * s.sum / n2
}
