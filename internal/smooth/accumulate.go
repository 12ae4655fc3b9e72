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

// Package smooth implements the adaptive accumulative smoother (independent
// and incremental/shift variants) and the adaptive Gaussian smoother.
package smooth

import (
	"math"

	"github.com/jsanders/contbin/internal/geometry"
	"github.com/jsanders/contbin/internal/grid"
	"github.com/jsanders/contbin/internal/noise"
)

// Inputs bundles the read-only images the smoother aggregates over. Bg,
// FgExpMap, BgExpMap and NoiseMap may be nil, each independently.
//
// With ExpCorrect set, the output pixel value becomes
// (F - B*FgExpTime/BgExpTime) / sum(expmap) instead of the plain disk
// mean, and the running totals feeding it are kept with compensated
// summation - an incremental pass over a large image accumulates millions
// of additions into these sums.
type Inputs struct {
	Counts   *grid.Float
	Bg       *grid.Float
	Mask     *grid.Mask
	FgExpMap *grid.Float
	BgExpMap *grid.Float
	NoiseMap *grid.Float

	ExpCorrect           bool
	FgExpTime, BgExpTime float64 // scalar exposure times from the image headers
}

func (in *Inputs) active(x, y int) bool {
	if !in.Mask.InBounds(x, y) {
		return false
	}
	return in.Mask.Active(x, y)
}

// kahanSum is a compensated (Kahan) floating-point accumulator.
type kahanSum struct {
	sum, c float64
}

func (k *kahanSum) add(v float64) {
	y := v - k.c
	t := k.sum + y
	k.c = (t - k.sum) - y
	k.sum = t
}

// accum is the smoother's per-disk running state: the noise sums that
// drive the S/N stopping rule, plus compensated totals for the
// exposure-corrected output value.
type accum struct {
	noise.Sums
	fg, bg, exp kahanSum
}

func (a *accum) reset() {
	*a = accum{}
}

// addOffset folds pixel (x,y) into a with the given sign, if it is in
// bounds and active; out-of-bounds and masked-out pixels never contribute.
func (in *Inputs) addOffset(a *accum, x, y int, sign float64) {
	if !in.active(x, y) {
		return
	}
	fg := float64(in.Counts.At(x, y))
	hasBg := in.Bg != nil
	var bg, ratio float64
	if hasBg {
		bg = float64(in.Bg.At(x, y))
		fgExp := 1.0
		bgExp := 1.0
		if in.FgExpMap != nil {
			fgExp = math.Max(float64(in.FgExpMap.At(x, y)), 1e-7)
		}
		if in.BgExpMap != nil {
			bgExp = math.Max(float64(in.BgExpMap.At(x, y)), 1e-7)
		}
		ratio = fgExp / bgExp
	}
	hasNoisemap := in.NoiseMap != nil
	var nm2 float64
	if hasNoisemap {
		v := float64(in.NoiseMap.At(x, y))
		nm2 = v * v
	}
	a.Add(sign, fg, hasBg, bg, ratio, hasNoisemap, nm2)

	if in.ExpCorrect {
		a.fg.add(sign * fg)
		a.bg.add(sign * bg)
		e := 1.0
		if in.FgExpMap != nil {
			e = float64(in.FgExpMap.At(x, y))
		}
		a.exp.add(sign * e)
	}
}

// value produces the output pixel for the current disk state: the plain
// disk mean, or the exposure-corrected flux when ExpCorrect is set. A disk
// that aggregated nothing (or, exposure-corrected, zero total exposure)
// yields NaN.
func (in *Inputs) value(a *accum) float32 {
	if in.ExpCorrect {
		if a.exp.sum == 0 {
			return float32(math.NaN())
		}
		scale := 1.0
		if in.BgExpTime > 0 {
			scale = in.FgExpTime / in.BgExpTime
		}
		return float32((a.fg.sum - a.bg.sum*scale) / a.exp.sum)
	}
	if a.Count == 0 {
		return float32(math.NaN())
	}
	return float32(a.Signal() / float64(a.Count))
}

func (in *Inputs) addCircle(a *accum, cx, cy, r int, cache *geometry.Cache, sign float64) {
	if r < 0 || r >= len(cache.Circles) {
		return
	}
	for _, o := range cache.Circles[r] {
		in.addOffset(a, cx+o.Dx, cy+o.Dy, sign)
	}
}

// growToTarget grows a (already holding the disk of radius r centered at
// cx,cy) by adding successive circles until S/N^2 reaches target2, or the
// geometry cache's radius cap is hit. It returns the final radius.
func growToTarget(a *accum, cx, cy, r int, cache *geometry.Cache, in *Inputs, target2 float64) int {
	for a.SN2() < target2 && r < cache.MaxRadius() {
		r++
		in.addCircle(a, cx, cy, r, cache, 1)
	}
	return r
}

// shrinkWhileAboveTarget is the smoother's reverse step: while the disk at
// radius r meets target, try removing the outermost ring; stop (restoring
// state) the first time doing so would drop S/N^2 below target. A shift
// may leave the disk over-satisfied, so this keeps it minimal.
func shrinkWhileAboveTarget(a *accum, cx, cy, r int, cache *geometry.Cache, in *Inputs, target2 float64) int {
	for r > 0 && a.SN2() >= target2 {
		in.addCircle(a, cx, cy, r, cache, -1)
		if a.SN2() < target2 {
			// removing crossed the threshold: restore and stop
			in.addCircle(a, cx, cy, r, cache, 1)
			return r
		}
		r--
	}
	return r
}

// Independent runs the restart-per-pixel variant of the accumulative
// smoother: for each active pixel, start at radius 0 and grow outward
// until the target S/N is met.
func Independent(in *Inputs, cache *geometry.Cache, targetSN float64) *grid.Float {
	w, h := in.Counts.W, in.Counts.H
	out := grid.NewFloat(w, h, float32(math.NaN()))
	target2 := targetSN * targetSN

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !in.active(x, y) {
				continue
			}
			var a accum
			in.addCircle(&a, x, y, 0, cache, 1)
			growToTarget(&a, x, y, 0, cache, in, target2)
			out.Set(x, y, in.value(&a))
		}
	}
	return out
}

// Incremental runs the boustrophedon shift-based variant of the
// accumulative smoother. Traversal is row 0 left-to-right, row 1
// right-to-left, etc; whenever the current pixel is a 4-neighbor of the
// previous one, the previous disk is translated via the geometry cache's
// shift-delta tables instead of rebuilt from scratch.
func Incremental(in *Inputs, cache *geometry.Cache, targetSN float64) *grid.Float {
	w, h := in.Counts.W, in.Counts.H
	out := grid.NewFloat(w, h, float32(math.NaN()))
	target2 := targetSN * targetSN

	var a accum
	r := -1
	lastX, lastY := 0, 0
	haveLast := false

	for y := 0; y < h; y++ {
		xs := xRange(w, y)
		for _, x := range xs {
			if !in.active(x, y) {
				haveLast = false
				continue
			}

			adjacent := haveLast && manhattan(x, y, lastX, lastY) == 1
			if adjacent {
				axis, sign := directionOf(x, y, lastX, lastY)
				entering, leaving := shiftSets(cache.Shift[clamp(r, 0, cache.MaxRadius())], axis, sign)
				for _, o := range leaving {
					in.addOffset(&a, lastX+o.Dx, lastY+o.Dy, -1)
				}
				for _, o := range entering {
					in.addOffset(&a, x+o.Dx, y+o.Dy, 1)
				}
			} else {
				a.reset()
				r = 0
				in.addCircle(&a, x, y, 0, cache, 1)
			}

			if a.SN2() < target2 {
				r = growToTarget(&a, x, y, r, cache, in, target2)
			} else {
				r = shrinkWhileAboveTarget(&a, x, y, r, cache, in, target2)
			}

			out.Set(x, y, in.value(&a))

			lastX, lastY, haveLast = x, y, true
		}
	}
	return out
}

func xRange(w, y int) []int {
	xs := make([]int, w)
	if y%2 == 0 {
		for i := 0; i < w; i++ {
			xs[i] = i
		}
	} else {
		for i := 0; i < w; i++ {
			xs[i] = w - 1 - i
		}
	}
	return xs
}

func manhattan(x1, y1, x2, y2 int) int {
	dx := x1 - x2
	if dx < 0 {
		dx = -dx
	}
	dy := y1 - y2
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// directionOf returns which axis ('x' or 'y') the traversal moved along to
// go from (lastX,lastY) to (x,y), and the sign of that motion.
func directionOf(x, y, lastX, lastY int) (axis byte, sign int) {
	if x != lastX {
		if x > lastX {
			return 'x', 1
		}
		return 'x', -1
	}
	if y > lastY {
		return 'y', 1
	}
	return 'y', -1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// shiftSets derives the entering (new-relative) and leaving (old-relative)
// offset sets for translating a disk of radius r by one pixel along axis in
// the given sign direction, from the geometry cache's rightward shift-delta
// table: moves along y swap dx and dy, moves in the negative direction
// mirror the table. The trailing edge peeled off the old disk is the
// point reflection of the leading edge folded into the new one.
func shiftSets(shiftR []geometry.Offset, axis byte, sign int) (entering, leaving []geometry.Offset) {
	entering = make([]geometry.Offset, 0, len(shiftR))
	leaving = make([]geometry.Offset, 0, len(shiftR))
	for _, o := range shiftR {
		switch {
		case axis == 'x' && sign > 0:
			entering = append(entering, geometry.Offset{Dx: o.Dx, Dy: o.Dy})
			leaving = append(leaving, geometry.Offset{Dx: -o.Dx, Dy: -o.Dy})
		case axis == 'x' && sign < 0:
			entering = append(entering, geometry.Offset{Dx: -o.Dx, Dy: o.Dy})
			leaving = append(leaving, geometry.Offset{Dx: o.Dx, Dy: o.Dy})
		case axis == 'y' && sign > 0:
			entering = append(entering, geometry.Offset{Dx: o.Dy, Dy: o.Dx})
			leaving = append(leaving, geometry.Offset{Dx: o.Dy, Dy: -o.Dx})
		default: // axis == 'y' && sign < 0
			entering = append(entering, geometry.Offset{Dx: o.Dy, Dy: -o.Dx})
			leaving = append(leaving, geometry.Offset{Dx: o.Dy, Dy: o.Dx})
		}
	}
	return entering, leaving
}
