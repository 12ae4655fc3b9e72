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

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"

	nl "github.com/jsanders/contbin/internal"
	"github.com/jsanders/contbin/internal/cli"
	"github.com/jsanders/contbin/internal/pipeline"
	"github.com/jsanders/contbin/internal/rest"
)

const version = "1.0.0"

var totalMiBs = memory.TotalMemory() / 1024 / 1024

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var mask = flag.String("mask", "", "read pixel mask from `file` (>=1 active, 0 masked out)")
var bg = flag.String("bg", "", "read background counts image from `file`")
var expmap = flag.String("expmap", "", "read foreground exposure map from `file`")
var bgexpmap = flag.String("bgexpmap", "", "read background exposure map from `file`")
var noisemap = flag.String("noisemap", "", "read explicit per-pixel noise image from `file` (overrides Poisson errors)")
var smoothed = flag.String("smoothed", "", "read precomputed smoothed image from `file`, bypassing the smoothing step")

var out = flag.String("out", "contbin_out.fits", "save per-bin mean image to `file`")
var outSN = flag.String("outsn", "contbin_sn.fits", "save per-bin signal-to-noise image to `file`")
var outBinMap = flag.String("outbinmap", "contbin_binmap.fits", "save bin-label image to `file`")
var outSmoothed = flag.String("outsmoothed", "", "save smoothed surface-brightness image to `file`")
var outMask = flag.String("outmask", "", "save the (auto-)mask actually used to `file`")
var outReg = flag.String("outreg", "", "save DS9 region file with one circle per bin to `file`")
var outSNHist = flag.String("outsnhist", "contbin_sn_stats.qdp", "save per-bin S/N histogram to `file`")
var outSigHist = flag.String("outsighist", "contbin_sig_stats.qdp", "save per-bin signal histogram to `file`")
var outPreview = flag.String("preview", "", "save PNG quick-look of the per-bin S/N image to `file`")
var outTIFF = flag.String("outtiff", "", "save 16-bit TIFF export of the per-bin mean image to `file`")
var logName = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")

var sn = flag.Float64("sn", 30, "target signal-to-noise per bin")
var smoothSN = flag.Float64("smoothsn", 15, "target signal-to-noise per pixel when smoothing")
var automask = flag.Bool("automask", false, "mask out 8x8 pixel blocks with zero total counts")
var gaussian = flag.Bool("gaussian", false, "smooth with an adaptive gaussian kernel instead of accumulation")

var constrainFill = flag.Bool("constrainfill", false, "constrain bin shapes to compact filled regions")
var constrainVal = flag.Float64("constrainval", 2.0, "maximum distance from bin centroid in equal-area-disk radii")
var noScrub = flag.Bool("noscrub", false, "skip dissolving below-target bins after construction")
var binUp = flag.Bool("binup", false, "seed bins in ascending instead of descending smoothed flux")
var scrubLarge = flag.Float64("scrublarge", 0, "drop bins holding at least this fraction of binned pixels, 0=off")

var serveAddr = flag.String("addr", ":8080", "listen address for the serve command")

func main() {
	logWriter := os.Stdout
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Contbin Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (bin|smooth|scale|serve|legal|version) input.fits

Commands:
  bin     Adaptively smooth the counts image and bin it into contour-following
          regions of the target signal-to-noise
  smooth  Only smooth the counts image; save with -outsmoothed
  scale   Measure counts-only smoothing scales; save with -outsmoothed
  serve   Start the HTTP API server
  legal   Show license and attribution information
  version Show version information

Arguments may also be read from a file with @file; '#' comments and
double-quoted spans are honored there.

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}

	expanded, err := cli.ExpandAtFiles(os.Args[1:])
	if err != nil {
		nl.LogFatalf("Error expanding arguments: %s\n", err.Error())
	}
	if err := flag.CommandLine.Parse(expanded); err != nil {
		os.Exit(-1)
	}

	// Initialize logging to file in addition to stdout, if selected
	if *logName == "%auto" {
		if *out != "" {
			*logName = strings.TrimSuffix(*out, filepath.Ext(*out)) + ".log"
		} else {
			*logName = ""
		}
	}
	if *logName != "" {
		if err := nl.LogAlsoToFile(*logName); err != nil {
			nl.LogFatalf("Unable to open logfile '%s'\n", *logName)
		}
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	switch args[0] {
	case "bin", "smooth", "scale":
		if len(args) < 2 {
			nl.LogFatalf("Command '%s' needs an input counts image\n", args[0])
		}
		cfg := configFromFlags(args[1])
		cfg.SmoothOnly = args[0] != "bin"
		cfg.ScaleMap = args[0] == "scale"
		if cfg.SmoothOnly && cfg.OutSmoothedFile == "" {
			nl.LogFatalf("Command '%s' needs -outsmoothed to save its result\n", args[0])
		}

		warnIfMemoryTight(args[1])

		kw := cli.WatchEscape()
		cfg.Interrupt = kw.Pressed
		err = pipeline.Run(cfg, logWriter)
		kw.Stop()

	case "serve":
		err = rest.Serve(*serveAddr)

	case "legal":
		cmdLegal(logWriter)

	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)
		fmt.Fprintf(logWriter, "CPU: %s, %d logical cores, AVX2 %t\n",
			cpuid.CPU.BrandName, runtime.NumCPU(), cpuid.CPU.AVX2())

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	elapsed := time.Since(start)
	fmt.Fprintf(logWriter, "\nDone after %v\n", elapsed)

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			nl.LogFatal("Could not create memory profile: ", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			nl.LogFatal("Could not write allocation profile: ", err)
		}
	}

	if err != nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		os.Exit(-1)
	}
}

func configFromFlags(inputFile string) *pipeline.Config {
	return &pipeline.Config{
		InputFile:    inputFile,
		MaskFile:     *mask,
		BgFile:       *bg,
		ExpMapFile:   *expmap,
		BgExpMapFile: *bgexpmap,
		NoiseMapFile: *noisemap,
		SmoothedFile: *smoothed,

		OutFile:         *out,
		OutSNFile:       *outSN,
		OutBinMapFile:   *outBinMap,
		OutSmoothedFile: *outSmoothed,
		OutMaskFile:     *outMask,
		RegionFile:      *outReg,
		SNHistFile:      *outSNHist,
		SignalHistFile:  *outSigHist,
		PreviewFile:     *outPreview,
		TIFFFile:        *outTIFF,

		TargetSN:     *sn,
		SmoothSN:     *smoothSN,
		Gaussian:     *gaussian,
		AutoMask:     *automask,
		Constrain:    *constrainFill,
		ConstrainVal: *constrainVal,
		NoScrub:      *noScrub,
		BinUp:        *binUp,
		ScrubLarge:   *scrubLarge,
	}
}

// warnIfMemoryTight flags runs whose working set will likely exceed
// physical memory: the pipeline holds roughly a dozen float32 images plus
// the geometry cache, all sized by the input.
func warnIfMemoryTight(inputFile string) {
	info, err := os.Stat(inputFile)
	if err != nil {
		return
	}
	estMiBs := uint64(info.Size()) * 16 / 1024 / 1024
	if estMiBs > totalMiBs {
		nl.LogPrintf("Warning: estimated working set %d MiB exceeds physical memory %d MiB\n",
			estMiBs, totalMiBs)
	}
}
