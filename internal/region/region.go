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

// Package region emits DS9-format region files and .qdp-style histogram
// text, the two plain-text side channels the binner's outputs feed besides
// the FITS bin-map image itself.
package region

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/jsanders/contbin/internal/binning"
	"github.com/jsanders/contbin/internal/geometry"
)

// WriteDS9 writes one circle region per bin, centered on the bin's pixel
// centroid with the equal-area-disk radius for its pixel count, labeled
// with the bin id - the layout ds9 expects for a region overlay.
func WriteDS9(w io.Writer, bins []*binning.Bin, cache *geometry.Cache) error {
	if _, err := fmt.Fprintln(w, "# Region file format: DS9"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "global color=green width=1"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "image"); err != nil {
		return err
	}
	for _, b := range bins {
		if b == nil || len(b.Pixels) == 0 {
			continue
		}
		xs := make([]float64, len(b.Pixels))
		ys := make([]float64, len(b.Pixels))
		for i, p := range b.Pixels {
			xs[i] = float64(p.X)
			ys[i] = float64(p.Y)
		}
		cx := floats.Sum(xs) / float64(len(xs))
		cy := floats.Sum(ys) / float64(len(ys))
		r := cache.RadiusForArea(len(b.Pixels))
		// DS9 image coordinates are 1-based and pixel-centered.
		if _, err := fmt.Fprintf(w, "circle(%.2f,%.2f,%d) # text={%d}\n", cx+1, cy+1, r, b.ID); err != nil {
			return err
		}
	}
	return nil
}

// HistogramBuckets is the bucket count the binner's side-channel
// histograms are written with.
const HistogramBuckets = 30

// WriteHistogram writes a .qdp-style two-column text histogram of values,
// binned into nBuckets equal-width buckets spanning the observed range: a
// 3-line header (label x / label y / line step) followed by
// center<TAB>count rows. Nothing is written for an empty value list.
func WriteHistogram(w io.Writer, values []float64, xLabel string, nBuckets int) error {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi == lo {
		hi = lo + 1
	}

	dividers := make([]float64, nBuckets+1)
	for i := range dividers {
		dividers[i] = lo + (hi-lo)*float64(i)/float64(nBuckets)
	}
	// stat.Histogram requires the maximum value to lie strictly below the
	// highest divider.
	dividers[nBuckets] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)

	if _, err := fmt.Fprintf(w, "label x %s\n", xLabel); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "label y Bin count"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "line step"); err != nil {
		return err
	}
	step := (hi - lo) / float64(nBuckets)
	for i, c := range counts {
		center := lo + step*(float64(i)+0.5)
		if _, err := fmt.Fprintf(w, "%g\t%g\n", center, c); err != nil {
			return err
		}
	}
	return nil
}
