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

	"github.com/jsanders/contbin/internal/grid"
)

// expTable is a lookup table approximating exp(-x) over [0,12] with linear
// interpolation, trading a tiny interpolation error for avoiding a
// math.Exp call per kernel tap.
type expTable struct {
	vals  []float64
	scale float64
	max   float64
}

func newExpTable(steps int, xMax float64) *expTable {
	vals := make([]float64, steps+1)
	for i := range vals {
		x := xMax * float64(i) / float64(steps)
		vals[i] = math.Exp(-x)
	}
	return &expTable{vals: vals, scale: float64(steps) / xMax, max: xMax}
}

// at returns exp(-x) for x >= 0, 0 once x exceeds the table's domain.
func (e *expTable) at(x float64) float64 {
	if x >= e.max {
		return 0
	}
	if x <= 0 {
		return e.vals[0]
	}
	pos := x * e.scale
	idx := int(pos)
	frac := pos - float64(idx)
	return e.vals[idx] + (e.vals[idx+1]-e.vals[idx])*frac
}

var gaussianTable = newExpTable(1024, 12)

// kernelEstimate accumulates one Gaussian kernel placement: the weighted
// mean of the counts and of the exposure map under the kernel.
type kernelEstimate struct {
	weightSum float64
	fluxSum   float64
	expSum    float64
}

func (e *kernelEstimate) meanSignal() float64 {
	if e.weightSum == 0 {
		return math.NaN()
	}
	return e.fluxSum / e.weightSum
}

func (e *kernelEstimate) meanExposure() float64 {
	if e.weightSum == 0 {
		return 0
	}
	return e.expSum / e.weightSum
}

// GaussianParams configures the adaptive Gaussian smoother: kernel widths
// sigma = SigmaStep*k are tried for k = 1..MaxKernels, stopping at the
// first whose estimated total counts reach TargetSN^2.
type GaussianParams struct {
	TargetSN   float64
	SigmaStep  float64 // 0 defaults to 0.25
	MaxKernels int     // 0 defaults to 2000
}

func (p GaussianParams) sigmaStep() float64 {
	if p.SigmaStep > 0 {
		return p.SigmaStep
	}
	return 0.25
}

func (p GaussianParams) maxKernels() int {
	if p.MaxKernels > 0 {
		return p.MaxKernels
	}
	return 2000
}

// Gaussian runs the adaptive Gaussian smoother over in, returning a new
// image of the same dimensions. For each active pixel the kernel grows
// until the total counts under it, estimated as
// avg_signal * avg_exposure * pi * (2*sigma)^2, reach TargetSN^2; the
// weighted mean for that kernel is emitted. Pixels that never satisfy the
// criterion within MaxKernels widths stay NaN, as do masked-out pixels.
func Gaussian(in *Inputs, p GaussianParams) *grid.Float {
	w, h := in.Counts.W, in.Counts.H
	out := grid.NewFloat(w, h, float32(math.NaN()))
	target2 := p.TargetSN * p.TargetSN
	step := p.sigmaStep()
	maxK := p.maxKernels()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !in.active(x, y) {
				continue
			}
			for k := 1; k <= maxK; k++ {
				sigma := step * float64(k)
				est := convolveAt(in, x, y, sigma)
				counts := est.meanSignal() * est.meanExposure() * math.Pi * (2 * sigma) * (2 * sigma)
				if counts >= target2 {
					out.Set(x, y, float32(est.meanSignal()))
					break
				}
			}
		}
	}
	return out
}

// convolveAt applies a Gaussian kernel of the given sigma centered at
// (x,y), clipped to the image bounds and to active (mask >= 1) pixels.
func convolveAt(in *Inputs, x, y int, sigma float64) kernelEstimate {
	radius := int(math.Ceil(3 * sigma))
	inv2Sigma2 := 1 / (2 * sigma * sigma)

	y0, y1 := max(y-radius, 0), min(y+radius, in.Counts.H-1)
	x0, x1 := max(x-radius, 0), min(x+radius, in.Counts.W-1)

	var est kernelEstimate
	for py := y0; py <= y1; py++ {
		dy := py - y
		for px := x0; px <= x1; px++ {
			if !in.active(px, py) {
				continue
			}
			dx := px - x
			d2 := float64(dx*dx + dy*dy)
			weight := gaussianTable.at(d2 * inv2Sigma2)
			if weight <= 0 {
				continue
			}
			est.weightSum += weight
			est.fluxSum += weight * float64(in.Counts.At(px, py))
			if in.FgExpMap != nil {
				est.expSum += weight * float64(in.FgExpMap.At(px, py))
			} else {
				est.expSum += weight
			}
		}
	}
	return est
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
