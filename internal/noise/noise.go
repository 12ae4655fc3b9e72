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

// Package noise implements the Gehrels (1986) Poisson error estimate shared
// by the accumulative smoother and the bin constructor.
package noise

import "math"

// MinNoise2 is the floor applied to noise^2 before computing S/N^2, so that
// a zero-variance aggregation never divides by zero.
const MinNoise2 = 1e-7

// Sums accumulates the running totals needed to evaluate signal, noise^2
// and S/N^2 for one pixel or one bin.
type Sums struct {
	FgSum         float64 // sum of foreground (raw counts) pixel values
	BgSum         float64 // sum of background pixel values
	BgSumWeight   float64 // sum of background*expRatio, the background contribution after exposure scaling
	ExpRatioSum2  float64 // sum of (fgExpMap/bgExpMap)^2
	Noisemap2Sum  float64 // sum of explicit noisemap(p)^2, when a noise map is supplied
	Count         int     // number of pixels aggregated
	HasBackground bool    // whether a background image is in play
	HasNoisemap   bool    // whether an explicit noise map is in play
}

// ErrorSqdEst is the Gehrels (1986) upper error estimate on Poisson counts:
// noise^2 = (1 + sqrt(c + 0.75))^2.
func ErrorSqdEst(c float64) float64 {
	v := 1 + math.Sqrt(c+0.75)
	return v * v
}

// Signal returns the background-subtracted signal for the running sums.
func (s *Sums) Signal() float64 {
	return s.FgSum - s.BgSumWeight
}

// Noise2 returns the estimated variance of Signal(): an explicit noise
// map overrides the Poisson formula; otherwise Gehrels' estimate is used
// for the foreground, plus an exposure-ratio-weighted Gehrels estimate
// for the background when one is present.
func (s *Sums) Noise2() float64 {
	if s.HasNoisemap {
		return s.Noisemap2Sum
	}
	n2 := ErrorSqdEst(s.FgSum)
	if s.HasBackground && s.Count > 0 {
		n2 += (s.ExpRatioSum2 / float64(s.Count)) * ErrorSqdEst(s.BgSum)
	}
	return n2
}

// SN2 returns signal^2/noise^2, or MinNoise2 itself when noise^2 is
// (near) zero - a degenerate aggregation reads as far below any target,
// never as infinitely significant.
func (s *Sums) SN2() float64 {
	n2 := s.Noise2()
	if n2 < MinNoise2 {
		return MinNoise2
	}
	sig := s.Signal()
	return sig * sig / n2
}

// Add folds in one pixel's contribution with the given sign (+1 to
// accumulate, -1 to remove it again). fg is the raw counts value; bg, when
// hasBackground, is the background value at the same pixel; expRatio is
// fgExpMap(p)/bgExpMap(p); noisemap2, when hasNoisemap, is noisemap(p)^2.
func (s *Sums) Add(sign float64, fg float64, hasBackground bool, bg, expRatio float64, hasNoisemap bool, noisemap2 float64) {
	s.FgSum += sign * fg
	s.Count += int(sign)
	if hasBackground {
		s.HasBackground = true
		s.BgSum += sign * bg
		s.BgSumWeight += sign * bg * expRatio
		s.ExpRatioSum2 += sign * expRatio * expRatio
	}
	if hasNoisemap {
		s.HasNoisemap = true
		s.Noisemap2Sum += sign * noisemap2
	}
}
