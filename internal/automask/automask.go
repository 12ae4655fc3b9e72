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

// Package automask detects the zero-exposure border regions instruments
// like XMM-Newton and Chandra leave around their field of view, so that
// callers don't have to hand the binner an explicit mask for them.
package automask

import "github.com/jsanders/contbin/internal/grid"

// BlockSize is the block edge length auto-masking scans at.
const BlockSize = 8

// zeroFluxThreshold is how close to zero a block's summed counts must be
// for the block to count as empty.
const zeroFluxThreshold = 1e-5

// Apply zeroes out mask entries for every BlockSize x BlockSize block
// whose summed counts are within zeroFluxThreshold of zero, leaving every
// other pixel untouched. Blocks at the image's right/bottom edge are
// clipped to the image bounds.
func Apply(counts *grid.Float, mask *grid.Mask) {
	w, h := counts.W, counts.H
	for by := 0; by < h; by += BlockSize {
		for bx := 0; bx < w; bx += BlockSize {
			y1 := min(by+BlockSize, h)
			x1 := min(bx+BlockSize, w)
			sum := blockSum(counts, bx, by, x1, y1)
			if sum >= zeroFluxThreshold || sum <= -zeroFluxThreshold {
				continue
			}
			for y := by; y < y1; y++ {
				for x := bx; x < x1; x++ {
					mask.Set(x, y, 0)
				}
			}
		}
	}
}

func blockSum(counts *grid.Float, x0, y0, x1, y1 int) float64 {
	sum := 0.0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			sum += float64(counts.At(x, y))
		}
	}
	return sum
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
