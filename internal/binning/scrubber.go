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

import "math"

// ScrubParams configures the post-binning cleanup pass.
type ScrubParams struct {
	TargetSN          float64 // per-bin S/N threshold below which a bin gets dissolved
	DropLargeFraction float64 // 0 disables; otherwise drop bins holding at least this share of binned pixels
}

// Scrubber dissolves below-target bins into their best-matching neighbors
// pixel by pixel, optionally drops oversized bins, and renumbers what
// remains contiguously.
type Scrubber struct {
	Binner *Binner
	Params ScrubParams
}

// Scrub runs the full cleanup pass in place.
func (sc *Scrubber) Scrub() {
	sc.dissolveUndersized()
	if sc.Params.DropLargeFraction > 0 {
		sc.dropLargeBins()
	}
	sc.renumber()
}

// dissolveUndersized repeatedly picks the pool bin with the lowest S/N^2
// and dissolves it. A bin that reached target in the meantime (it received
// pixels from an earlier dissolve) leaves the pool untouched.
func (sc *Scrubber) dissolveUndersized() {
	target2 := sc.Params.TargetSN * sc.Params.TargetSN

	pool := make([]*Bin, 0)
	for _, b := range sc.Binner.Bins {
		if b != nil && len(b.Pixels) > 0 && b.Sums.SN2() < target2 {
			pool = append(pool, b)
		}
	}

	for len(pool) > 0 {
		lowest := 0
		for i, b := range pool {
			if b.Sums.SN2() < pool[lowest].Sums.SN2() {
				lowest = i
			}
		}
		b := pool[lowest]
		pool[lowest] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]

		if b.Sums.SN2() >= target2 {
			continue
		}
		sc.dissolve(b)
	}
}

// dissolve hands b's pixels to adjacent bins one at a time, each time
// moving the boundary pixel whose smoothed value is closest to that of the
// neighbor pixel it borders. The shape constraint is honored on the
// receiving bin first; if no transfer satisfies it, the constraint is
// waived. If some pixels end up with no adjacent bin at all, they stay
// behind and the bin is marked CannotDissolve.
func (sc *Scrubber) dissolve(b *Bin) {
	for len(b.Pixels) > 0 {
		p, nb, ok := sc.bestBoundaryPair(b, true)
		if !ok {
			p, nb, ok = sc.bestBoundaryPair(b, false)
		}
		if !ok {
			b.CannotDissolve = true
			return
		}
		sc.Binner.removePoint(b, p)
		sc.Binner.addPoint(nb, p)
	}
}

// bestBoundaryPair scans b's pixels for the (member, neighbor-bin) pair
// with the smallest smoothed-value difference across the boundary. With
// constrained set, transfers that would violate the receiving bin's shape
// constraint are skipped.
func (sc *Scrubber) bestBoundaryPair(b *Bin, constrained bool) (Point, *Bin, bool) {
	bn := sc.Binner
	var bestP Point
	var bestBin *Bin
	bestDiff := math.MaxFloat64
	found := false

	for _, p := range b.Pixels {
		sp := float64(bn.In.Smoothed.At(p.X, p.Y))
		for _, d := range fourNeighbors {
			nx, ny := p.X+d.X, p.Y+d.Y
			if !bn.BinMap.InBounds(nx, ny) {
				continue
			}
			nid := bn.BinMap.At(nx, ny)
			if nid == -1 || nid == b.ID {
				continue
			}
			nb := bn.Bins[nid]
			if nb == nil {
				continue
			}
			if constrained && bn.Params.Constrain &&
				!nb.checkConstraint(bn.Cache, p, bn.Params.ConstrainFill) {
				continue
			}
			diff := math.Abs(sp - float64(bn.In.Smoothed.At(nx, ny)))
			if diff < bestDiff {
				bestDiff, bestP, bestBin, found = diff, p, nb, true
			}
		}
	}
	return bestP, bestBin, found
}

// dropLargeBins unbins every bin holding at least DropLargeFraction of the
// total currently-binned pixel count.
func (sc *Scrubber) dropLargeBins() {
	bn := sc.Binner
	total := 0
	for _, b := range bn.Bins {
		if b != nil {
			total += len(b.Pixels)
		}
	}
	if total == 0 {
		return
	}
	for i, b := range bn.Bins {
		if b == nil || len(b.Pixels) == 0 {
			continue
		}
		if float64(len(b.Pixels))/float64(total) >= sc.Params.DropLargeFraction {
			for _, p := range b.Pixels {
				bn.BinMap.Set(p.X, p.Y, -1)
			}
			bn.Bins[i] = nil
		}
	}
}

// renumber discards empty bins and compacts the survivors so bin ids are
// contiguous starting at 0, repainting the bin map to match.
func (sc *Scrubber) renumber() {
	bn := sc.Binner
	idMap := make(map[int32]int32, len(bn.Bins))
	survivors := make([]*Bin, 0, len(bn.Bins))
	for _, b := range bn.Bins {
		if b == nil || len(b.Pixels) == 0 {
			continue
		}
		newID := int32(len(survivors))
		idMap[b.ID] = newID
		b.ID = newID
		survivors = append(survivors, b)
	}
	bn.Bins = survivors

	w, h := bn.BinMap.W, bn.BinMap.H
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			old := bn.BinMap.At(x, y)
			if old == -1 {
				continue
			}
			if nid, ok := idMap[old]; ok {
				bn.BinMap.Set(x, y, nid)
			} else {
				bn.BinMap.Set(x, y, -1)
			}
		}
	}
}
