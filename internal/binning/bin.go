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

// Package binning implements the greedy region-growing contour binner and
// the bin scrubber.
package binning

import (
	"math"

	"github.com/jsanders/contbin/internal/geometry"
	"github.com/jsanders/contbin/internal/grid"
	"github.com/jsanders/contbin/internal/noise"
)

// Point is a pixel coordinate.
type Point struct{ X, Y int }

// fourNeighbors in candidate scanning order; ties between equally close
// candidates resolve to the first one encountered in this order.
var fourNeighbors = [4]Point{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}

// Inputs bundles the images the binner aggregates over, mirroring
// smooth.Inputs: Bg, FgExpMap, BgExpMap and NoiseMap may each be nil.
// Smoothed is the adaptively-smoothed flux image that drives seed ordering
// and edge-pixel candidate selection.
type Inputs struct {
	Counts   *grid.Float
	Bg       *grid.Float
	Mask     *grid.Mask
	FgExpMap *grid.Float
	BgExpMap *grid.Float
	NoiseMap *grid.Float
	Smoothed *grid.Float
}

func (in *Inputs) active(x, y int) bool {
	if !in.Mask.InBounds(x, y) {
		return false
	}
	return in.Mask.Active(x, y)
}

// expRatio returns fgExpMap(x,y)/bgExpMap(x,y), each map value trimmed up
// to 1e-7 so the division stays finite.
func (in *Inputs) expRatio(x, y int) float64 {
	fgExp, bgExp := 1.0, 1.0
	if in.FgExpMap != nil {
		fgExp = math.Max(float64(in.FgExpMap.At(x, y)), 1e-7)
	}
	if in.BgExpMap != nil {
		bgExp = math.Max(float64(in.BgExpMap.At(x, y)), 1e-7)
	}
	return fgExp / bgExp
}

func (in *Inputs) addOffset(s *noise.Sums, x, y int, sign float64) {
	if !in.active(x, y) {
		return
	}
	fg := float64(in.Counts.At(x, y))
	hasBg := in.Bg != nil
	var bg, ratio float64
	if hasBg {
		bg = float64(in.Bg.At(x, y))
		ratio = in.expRatio(x, y)
	}
	hasNoisemap := in.NoiseMap != nil
	var nm2 float64
	if hasNoisemap {
		v := float64(in.NoiseMap.At(x, y))
		nm2 = v * v
	}
	s.Add(sign, fg, hasBg, bg, ratio, hasNoisemap, nm2)
}

// pixelWeight is the centroid weight of pixel (x,y): the counts-minus-
// scaled-background residual, floored at 1e-7 so empty pixels still pull
// a little.
func (in *Inputs) pixelWeight(x, y int) float64 {
	sig := float64(in.Counts.At(x, y))
	if in.Bg != nil {
		sig -= float64(in.Bg.At(x, y)) * in.expRatio(x, y)
	}
	return math.Max(sig, 1e-7)
}

// Bin is one contour bin: its member pixels, the edge subset still
// bordering non-member pixels, running noise sums, a fixed aim value (the
// smoothed flux at the bin's seed), and flux-weighted centroid sums.
type Bin struct {
	ID     int32
	Aim    float64
	Pixels []Point
	Edge   []Point
	Sums   noise.Sums

	// flux-weighted centroid running sums, for the shape constraint
	cwx, cwy, cw float64

	// CannotDissolve is set by the scrubber when a below-target bin had no
	// neighbor left to hand its pixels to; such bins survive renumbering.
	CannotDissolve bool
}

// Mean returns the bin's current background-subtracted mean flux.
func (b *Bin) Mean() float64 {
	if len(b.Pixels) == 0 {
		return 0
	}
	return b.Sums.Signal() / float64(len(b.Pixels))
}

// Centroid returns the bin's flux-weighted centroid.
func (b *Bin) Centroid() (float64, float64) {
	if b.cw == 0 {
		return 0, 0
	}
	return b.cwx / b.cw, b.cwy / b.cw
}

func (b *Bin) onEdge(p Point) bool {
	for _, e := range b.Edge {
		if e == p {
			return true
		}
	}
	return false
}

func (b *Bin) dropEdge(p Point) {
	for i, e := range b.Edge {
		if e == p {
			b.Edge[i] = b.Edge[len(b.Edge)-1]
			b.Edge = b.Edge[:len(b.Edge)-1]
			return
		}
	}
}

func (b *Bin) dropPixel(p Point) {
	for i, q := range b.Pixels {
		if q == p {
			b.Pixels[i] = b.Pixels[len(b.Pixels)-1]
			b.Pixels = b.Pixels[:len(b.Pixels)-1]
			return
		}
	}
}

// checkConstraint tests whether p keeps the bin compact: the squared
// distance from the flux-weighted centroid to p, normalized by the squared
// equal-area-disk radius for the bin's current pixel count, must stay
// below fill^2. The radius comes from the geometry cache's cumulative-area
// table, via binary search.
func (b *Bin) checkConstraint(cache *geometry.Cache, p Point, fill float64) bool {
	if len(b.Pixels) == 0 {
		return true
	}
	cx, cy := b.Centroid()
	r := cache.RadiusForArea(len(b.Pixels))
	r2 := float64(r * r)
	if r2 < 1 {
		r2 = 1
	}
	dx, dy := float64(p.X)-cx, float64(p.Y)-cy
	return (dx*dx+dy*dy)/r2 < fill*fill
}
