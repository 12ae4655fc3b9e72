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

// Package pipeline wires the full contour-binning run: load inputs,
// auto-mask, smooth, bin, scrub, project and write every requested output.
// Both the command-line tool and the REST server drive it.
package pipeline

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/jsanders/contbin/internal/automask"
	"github.com/jsanders/contbin/internal/binning"
	"github.com/jsanders/contbin/internal/fits"
	"github.com/jsanders/contbin/internal/geometry"
	"github.com/jsanders/contbin/internal/grid"
	"github.com/jsanders/contbin/internal/preview"
	"github.com/jsanders/contbin/internal/region"
	"github.com/jsanders/contbin/internal/smooth"
)

// Config collects one run's inputs, outputs and parameters.
type Config struct {
	// input image paths; InputFile is required, the rest optional
	InputFile    string
	MaskFile     string
	BgFile       string
	ExpMapFile   string
	BgExpMapFile string
	NoiseMapFile string
	SmoothedFile string // precomputed smoothed image, bypasses the smoothing step

	// output paths, each optional
	OutFile         string // per-bin mean image
	OutSNFile       string // per-bin S/N image
	OutBinMapFile   string // bin-label image
	OutSmoothedFile string // smoothed surface-brightness image
	OutMaskFile     string // mask after auto-masking
	RegionFile      string // DS9 region file
	SNHistFile      string // per-bin S/N histogram (.qdp)
	SignalHistFile  string // per-bin signal histogram (.qdp)
	PreviewFile     string // PNG quick-look of the per-bin S/N image
	TIFFFile        string // 16-bit TIFF export of the per-bin mean image

	TargetSN     float64 // per-bin signal-to-noise target
	SmoothSN     float64 // per-pixel smoothing signal-to-noise target
	SmoothOnly   bool    // stop after writing the smoothed image
	Gaussian     bool    // smooth with the adaptive Gaussian kernel instead of accumulation
	ScaleMap     bool    // measure counts-only smoothing scales instead of fluxes
	AutoMask     bool
	Constrain    bool
	ConstrainVal float64
	NoScrub      bool
	BinUp        bool
	ScrubLarge   float64 // 0 disables the drop-large phase

	// Interrupt, when non-nil, is polled during bin growth; returning true
	// aborts cleanly with partial results.
	Interrupt func() bool
}

// Run executes the configured pass, logging progress to logw.
func Run(cfg *Config, logw io.Writer) error {
	if cfg.InputFile == "" {
		return fmt.Errorf("no input counts image given")
	}

	counts, countsImg, err := loadGrid(cfg.InputFile, logw)
	if err != nil {
		return fmt.Errorf("input %s: %w", cfg.InputFile, err)
	}
	w, h := counts.W, counts.H
	fmt.Fprintf(logw, "input %s: %s pixels\n", cfg.InputFile, countsImg.DimensionsToString())

	var bg, expMap, bgExpMap, noiseMap, smoothed *grid.Float
	var bgImg *fits.Image
	if cfg.BgFile != "" {
		if bg, bgImg, err = loadGridSized(cfg.BgFile, w, h, logw); err != nil {
			return err
		}
	}
	if cfg.ExpMapFile != "" {
		if expMap, _, err = loadGridSized(cfg.ExpMapFile, w, h, logw); err != nil {
			return err
		}
	}
	if cfg.BgExpMapFile != "" {
		if bgExpMap, _, err = loadGridSized(cfg.BgExpMapFile, w, h, logw); err != nil {
			return err
		}
	}
	if cfg.NoiseMapFile != "" {
		if noiseMap, _, err = loadGridSized(cfg.NoiseMapFile, w, h, logw); err != nil {
			return err
		}
	}
	if cfg.SmoothedFile != "" {
		if smoothed, _, err = loadGridSized(cfg.SmoothedFile, w, h, logw); err != nil {
			return err
		}
	}

	mask := grid.NewMask(w, h, 1)
	if cfg.MaskFile != "" {
		maskGrid, _, err := loadGridSized(cfg.MaskFile, w, h, logw)
		if err != nil {
			return err
		}
		for i, v := range maskGrid.Data {
			mask.Data[i] = int16(v)
		}
	}
	if cfg.AutoMask {
		automask.Apply(counts, mask)
		fmt.Fprintf(logw, "auto-mask applied in %dx%d blocks\n", automask.BlockSize, automask.BlockSize)
	}
	if cfg.OutMaskFile != "" {
		maskFloat := grid.NewFloat(w, h, 0)
		for i, v := range mask.Data {
			maskFloat.Data[i] = float32(v)
		}
		if err := writeGrid(cfg.OutMaskFile, maskFloat, countsImg, cfg, "mask"); err != nil {
			return err
		}
	}

	cache := geometry.NewCache(w, h)

	if smoothed == nil {
		smoothIn := &smooth.Inputs{
			Counts:   counts,
			Bg:       bg,
			Mask:     mask,
			FgExpMap: expMap,
			BgExpMap: bgExpMap,
			NoiseMap: noiseMap,
		}
		if expMap != nil {
			smoothIn.ExpCorrect = true
			smoothIn.FgExpTime = float64(countsImg.Exposure)
			if bgImg != nil {
				smoothIn.BgExpTime = float64(bgImg.Exposure)
			}
		}
		switch {
		case cfg.ScaleMap:
			fmt.Fprintf(logw, "measuring smoothing scales for S/N %g\n", cfg.SmoothSN)
			smoothed = smooth.ScaleMap(smoothIn, cache, cfg.SmoothSN)
		case cfg.Gaussian:
			fmt.Fprintf(logw, "gaussian smoothing to S/N %g\n", cfg.SmoothSN)
			smoothed = smooth.Gaussian(smoothIn, smooth.GaussianParams{TargetSN: cfg.SmoothSN})
		default:
			fmt.Fprintf(logw, "smoothing to S/N %g\n", cfg.SmoothSN)
			smoothed = smooth.Incremental(smoothIn, cache, cfg.SmoothSN)
		}
	}
	if cfg.OutSmoothedFile != "" {
		if err := writeGrid(cfg.OutSmoothedFile, smoothed, countsImg, cfg, "smoothed"); err != nil {
			return err
		}
	}
	if cfg.SmoothOnly {
		return nil
	}

	binIn := &binning.Inputs{
		Counts:   counts,
		Bg:       bg,
		Mask:     mask,
		FgExpMap: expMap,
		BgExpMap: bgExpMap,
		NoiseMap: noiseMap,
		Smoothed: smoothed,
	}
	binMap := grid.NewBin(w, h)
	binner := binning.NewBinner(binIn, cache, binning.Params{
		TargetSN:      cfg.TargetSN,
		Constrain:     cfg.Constrain,
		ConstrainFill: cfg.ConstrainVal,
		BinUp:         cfg.BinUp,
	}, binMap)
	binner.Interrupt = cfg.Interrupt

	fmt.Fprintf(logw, "binning to per-bin S/N %g\n", cfg.TargetSN)
	binner.Run()
	if binner.Interrupted {
		fmt.Fprintf(logw, "interrupted: continuing with %d partial bins\n", len(binner.Bins))
	}
	fmt.Fprintf(logw, "constructed %d bins\n", len(binner.Bins))

	scrubber := &binning.Scrubber{Binner: binner, Params: binning.ScrubParams{
		TargetSN:          cfg.TargetSN,
		DropLargeFraction: cfg.ScrubLarge,
	}}
	if cfg.NoScrub {
		// bins are already contiguously numbered; nothing to dissolve
		fmt.Fprintf(logw, "scrubbing skipped\n")
	} else {
		scrubber.Scrub()
		fmt.Fprintf(logw, "%d bins survive scrubbing\n", len(binner.Bins))
	}

	pr := binning.Project(binner, func(format string, a ...interface{}) {
		fmt.Fprintf(os.Stderr, "warning: "+format+"\n", a...)
	})

	if cfg.OutFile != "" {
		if err := writeGrid(cfg.OutFile, pr.Mean, countsImg, cfg, "binned mean"); err != nil {
			return err
		}
	}
	if cfg.OutSNFile != "" {
		if err := writeGrid(cfg.OutSNFile, pr.SNImage, countsImg, cfg, "binned S/N"); err != nil {
			return err
		}
	}
	if cfg.OutBinMapFile != "" {
		binFloat := grid.NewFloat(w, h, 0)
		for i, v := range binMap.Data {
			binFloat.Data[i] = float32(v)
		}
		if err := writeGrid(cfg.OutBinMapFile, binFloat, countsImg, cfg, "bin map"); err != nil {
			return err
		}
	}
	if cfg.RegionFile != "" {
		if err := writeTo(cfg.RegionFile, func(f io.Writer) error {
			return region.WriteDS9(f, binner.Bins, cache)
		}); err != nil {
			return err
		}
	}
	if cfg.SNHistFile != "" {
		if err := writeTo(cfg.SNHistFile, func(f io.Writer) error {
			return region.WriteHistogram(f, pr.SN, "Signal to noise", region.HistogramBuckets)
		}); err != nil {
			return err
		}
	}
	if cfg.SignalHistFile != "" {
		if err := writeTo(cfg.SignalHistFile, func(f io.Writer) error {
			return region.WriteHistogram(f, pr.Signal, "Signal", region.HistogramBuckets)
		}); err != nil {
			return err
		}
	}
	if cfg.PreviewFile != "" {
		if err := writeTo(cfg.PreviewFile, func(f io.Writer) error {
			return preview.WritePNG(f, pr.SNImage)
		}); err != nil {
			return err
		}
	}
	if cfg.TIFFFile != "" {
		img := fits.NewImageFromNaxisn([]int32{int32(w), int32(h)}, pr.Mean.Data)
		lo, hi := finiteRange(pr.Mean.Data)
		if err := img.WriteMonoTIFF16ToFile(cfg.TIFFFile, lo, hi, 1); err != nil {
			return err
		}
	}
	return nil
}

func finiteRange(data []float32) (lo, hi float32) {
	lo, hi = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range data {
		if math.IsNaN(float64(v)) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo >= hi {
		return 0, 1
	}
	return lo, hi
}

// loadGrid reads a FITS image into a 2-D grid.
func loadGrid(fileName string, logw io.Writer) (*grid.Float, *fits.Image, error) {
	img, err := fits.NewImageFromFile(fileName, 0, logw)
	if err != nil {
		return nil, nil, err
	}
	if len(img.Naxisn) != 2 {
		return nil, nil, fmt.Errorf("%s: expected a 2-D image, got %d axes", fileName, len(img.Naxisn))
	}
	g := &grid.Float{W: int(img.Naxisn[0]), H: int(img.Naxisn[1]), Data: img.Data}
	return g, img, nil
}

// loadGridSized reads a FITS image and checks it matches the counts
// image's dimensions.
func loadGridSized(fileName string, w, h int, logw io.Writer) (*grid.Float, *fits.Image, error) {
	g, img, err := loadGrid(fileName, logw)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", fileName, err)
	}
	if g.W != w || g.H != h {
		return nil, nil, fmt.Errorf("%s: dimensions %dx%d do not match input %dx%d", fileName, g.W, g.H, w, h)
	}
	return g, img, nil
}

// writeGrid writes g as a FITS image, stamping run provenance into the
// header history.
func writeGrid(fileName string, g *grid.Float, src *fits.Image, cfg *Config, kind string) error {
	out := fits.NewImageFromNaxisn([]int32{int32(g.W), int32(g.H)}, g.Data)
	out.Exposure = src.Exposure
	out.Header.AddHistory(fmt.Sprintf("contbin %s image from %s", kind, cfg.InputFile))
	out.Header.AddHistory(fmt.Sprintf("contbin sn=%g smoothsn=%g automask=%t binup=%t",
		cfg.TargetSN, cfg.SmoothSN, cfg.AutoMask, cfg.BinUp))
	if cfg.Constrain {
		out.Header.AddHistory(fmt.Sprintf("contbin constrainval=%g", cfg.ConstrainVal))
	}
	return out.WriteFile(fileName)
}

func writeTo(fileName string, write func(io.Writer) error) error {
	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f)
}
