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

// Package preview renders a float image to a color-ramped PNG for
// quick-look inspection without a FITS viewer.
package preview

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/valyala/fastrand"

	"github.com/jsanders/contbin/internal/grid"
)

var (
	rampLow  = colorful.Color{R: 0.05, G: 0.05, B: 0.35}
	rampHigh = colorful.Color{R: 0.98, G: 0.86, B: 0.15}
)

// WritePNG renders g to w, mapping the finite value range onto a
// perceptually blended dark-blue-to-yellow ramp. NaN pixels render black.
// FITS images count rows bottom-up, so the rendering flips vertically.
func WritePNG(w io.Writer, g *grid.Float) error {
	lo, hi := finiteRange(g)
	scale := 0.0
	if hi > lo {
		scale = 1 / (hi - lo)
	}

	img := image.NewRGBA(image.Rect(0, 0, g.W, g.H))
	var rng fastrand.RNG
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			v := float64(g.At(x, y))
			var c color.Color = color.Black
			if !math.IsNaN(v) {
				// sub-quantum jitter breaks up the banding an 8-bit ramp
				// shows on smooth gradients
				t := (v-lo)*scale + (float64(rng.Uint32n(256))/256.0-0.5)/255.0
				c = rampLow.BlendLuvLCh(rampHigh, clamp01(t)).Clamped()
			}
			img.Set(x, g.H-1-y, c)
		}
	}
	return png.Encode(w, img)
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

func finiteRange(g *grid.Float) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.Data {
		f := float64(v)
		if math.IsNaN(f) {
			continue
		}
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}
