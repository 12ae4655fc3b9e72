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
	"sort"

	"github.com/jsanders/contbin/internal/geometry"
	"github.com/jsanders/contbin/internal/grid"
)

// Params configures the bin constructor.
type Params struct {
	TargetSN      float64
	Constrain     bool
	ConstrainFill float64 // e.g. 1.5, only meaningful when Constrain is set
	BinUp         bool    // seed in ascending rather than descending smoothed flux
}

// Binner drives flux-ordered seed selection and greedy 4-neighbor region
// growth. Each bin grows by repeatedly adding the frontier pixel whose
// smoothed value is closest to the bin's aim (the smoothed value at its
// seed), so bin boundaries follow the contours of the smoothed image.
type Binner struct {
	In     *Inputs
	Cache  *geometry.Cache
	Params Params
	BinMap *grid.Bin
	Bins   []*Bin

	// Interrupt, when non-nil, is polled at pixel boundaries; returning
	// true aborts bin growth cleanly, leaving a partial but consistent
	// binning behind. Interrupted records whether that happened.
	Interrupt   func() bool
	Interrupted bool
}

// NewBinner builds a Binner backed by binMap for pixel->bin bookkeeping.
// binMap must start out fully unbinned (see grid.NewBin).
func NewBinner(in *Inputs, cache *geometry.Cache, params Params, binMap *grid.Bin) *Binner {
	return &Binner{In: in, Cache: cache, Params: params, BinMap: binMap}
}

// Run performs the full binning pass: sorts candidate seed pixels by
// smoothed flux, then grows one bin per still-unbinned seed.
func (bn *Binner) Run() {
	for _, p := range bn.sortedSeeds() {
		if bn.interrupted() {
			return
		}
		if bn.BinMap.At(p.X, p.Y) != -1 {
			continue
		}
		bn.growBin(p)
	}
}

func (bn *Binner) interrupted() bool {
	if bn.Interrupted {
		return true
	}
	if bn.Interrupt != nil && bn.Interrupt() {
		bn.Interrupted = true
	}
	return bn.Interrupted
}

func (bn *Binner) sortedSeeds() []Point {
	w, h := bn.In.Mask.W, bn.In.Mask.H
	pts := make([]Point, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if bn.In.active(x, y) {
				pts = append(pts, Point{x, y})
			}
		}
	}
	smoothed := bn.In.Smoothed
	if bn.Params.BinUp {
		sort.Slice(pts, func(i, j int) bool {
			return smoothed.At(pts[i].X, pts[i].Y) < smoothed.At(pts[j].X, pts[j].Y)
		})
	} else {
		sort.Slice(pts, func(i, j int) bool {
			return smoothed.At(pts[i].X, pts[i].Y) > smoothed.At(pts[j].X, pts[j].Y)
		})
	}
	return pts
}

func (bn *Binner) growBin(seed Point) {
	b := &Bin{
		ID:  int32(len(bn.Bins)),
		Aim: float64(bn.In.Smoothed.At(seed.X, seed.Y)),
	}
	bn.Bins = append(bn.Bins, b)
	bn.addPoint(b, seed)

	target2 := bn.Params.TargetSN * bn.Params.TargetSN
	for b.Sums.SN2() < target2 {
		if bn.interrupted() {
			return
		}
		if !bn.addNextPixel(b) {
			break // frontier exhausted: bin stays under target, the scrubber may dissolve it
		}
	}
}

// addNextPixel finds the best growth candidate for b and adds it: among
// the unbinned, active, in-image 4-neighbors of b's edge pixels that pass
// the shape constraint, the one whose smoothed value is closest to b.Aim.
// Edge pixels found to be fully enclosed by b are pruned along the way.
// Returns false when no candidate exists.
func (bn *Binner) addNextPixel(b *Bin) bool {
	var best Point
	bestDiff := math.MaxFloat64
	found := false

	keep := b.Edge[:0]
	for _, e := range b.Edge {
		stillEdge := false
		for _, d := range fourNeighbors {
			nx, ny := e.X+d.X, e.Y+d.Y
			if !bn.BinMap.InBounds(nx, ny) {
				stillEdge = true
				continue
			}
			if bn.BinMap.At(nx, ny) == b.ID {
				continue
			}
			stillEdge = true
			if bn.BinMap.At(nx, ny) != -1 || !bn.In.Mask.Active(nx, ny) {
				continue
			}
			cand := Point{nx, ny}
			if bn.Params.Constrain && !b.checkConstraint(bn.Cache, cand, bn.Params.ConstrainFill) {
				continue
			}
			diff := math.Abs(float64(bn.In.Smoothed.At(nx, ny)) - b.Aim)
			if diff < bestDiff {
				bestDiff, best, found = diff, cand, true
			}
		}
		if stillEdge {
			keep = append(keep, e)
		}
	}
	b.Edge = keep

	if !found {
		return false
	}
	bn.addPoint(b, best)
	return true
}

// addPoint folds p into b: running sums, centroid sums, bin-map paint,
// membership and edge bookkeeping.
func (bn *Binner) addPoint(b *Bin, p Point) {
	bn.In.addOffset(&b.Sums, p.X, p.Y, 1)
	w := bn.In.pixelWeight(p.X, p.Y)
	b.cw += w
	b.cwx += w * float64(p.X)
	b.cwy += w * float64(p.Y)
	bn.BinMap.Set(p.X, p.Y, b.ID)
	b.Pixels = append(b.Pixels, p)
	if !b.onEdge(p) {
		b.Edge = append(b.Edge, p)
	}
}

// removePoint undoes addPoint for p, without repainting the bin map (the
// caller immediately reassigns p to another bin). Neighbors of p inside b
// re-join the edge list, since they now border a non-member.
func (bn *Binner) removePoint(b *Bin, p Point) {
	bn.In.addOffset(&b.Sums, p.X, p.Y, -1)
	w := bn.In.pixelWeight(p.X, p.Y)
	b.cw -= w
	b.cwx -= w * float64(p.X)
	b.cwy -= w * float64(p.Y)
	b.dropPixel(p)
	b.dropEdge(p)
	for _, d := range fourNeighbors {
		nx, ny := p.X+d.X, p.Y+d.Y
		if !bn.BinMap.InBounds(nx, ny) {
			continue
		}
		if bn.BinMap.At(nx, ny) != b.ID {
			continue
		}
		q := Point{nx, ny}
		if !b.onEdge(q) {
			b.Edge = append(b.Edge, q)
		}
	}
}
