package pipeline

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/valyala/fastrand"

	"github.com/jsanders/contbin/internal/fits"
)

// writeCountsFile synthesizes a pseudo-random counts image on disk, with a
// bright blob in the middle of a low uniform field.
func writeCountsFile(t *testing.T, dir string, w, h int) string {
	t.Helper()
	data := make([]float32, w*h)
	var rng fastrand.RNG
	for i := range data {
		data[i] = float32(rng.Uint32n(3)) // sparse 0..2 counts
	}
	for y := h/2 - 2; y < h/2+2; y++ {
		for x := w/2 - 2; x < w/2+2; x++ {
			data[y*w+x] = 50
		}
	}
	img := fits.NewImageFromNaxisn([]int32{int32(w), int32(h)}, data)
	path := filepath.Join(dir, "counts.fits")
	if err := img.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := writeCountsFile(t, dir, 32, 32)

	cfg := &Config{
		InputFile:       input,
		OutFile:         filepath.Join(dir, "out.fits"),
		OutSNFile:       filepath.Join(dir, "sn.fits"),
		OutBinMapFile:   filepath.Join(dir, "binmap.fits"),
		OutSmoothedFile: filepath.Join(dir, "smoothed.fits"),
		SNHistFile:      filepath.Join(dir, "snhist.qdp"),
		SignalHistFile:  filepath.Join(dir, "sighist.qdp"),
		PreviewFile:     filepath.Join(dir, "preview.png"),
		TargetSN:        3,
		SmoothSN:        2,
	}
	var log bytes.Buffer
	if err := Run(cfg, &log); err != nil {
		t.Fatalf("Run: %v\nlog:\n%s", err, log.String())
	}

	for _, path := range []string{
		cfg.OutFile, cfg.OutSNFile, cfg.OutBinMapFile, cfg.OutSmoothedFile,
		cfg.SNHistFile, cfg.SignalHistFile, cfg.PreviewFile,
	} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected output %s: %v", path, err)
		}
	}

	binMap, err := fits.NewImageFromFile(cfg.OutBinMapFile, 0, &log)
	if err != nil {
		t.Fatalf("reading bin map back: %v", err)
	}
	for i, v := range binMap.Data {
		if v < 0 && v != -1 {
			t.Fatalf("bin map pixel %d holds invalid label %v", i, v)
		}
	}

	smoothed, err := fits.NewImageFromFile(cfg.OutSmoothedFile, 0, &log)
	if err != nil {
		t.Fatalf("reading smoothed image back: %v", err)
	}
	finite := 0
	for _, v := range smoothed.Data {
		if !math.IsNaN(float64(v)) {
			finite++
		}
	}
	if finite == 0 {
		t.Fatalf("smoothed image came back all-NaN for a fully active input")
	}
}

func TestRunRejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	input := writeCountsFile(t, dir, 16, 16)

	bgData := make([]float32, 8*8)
	bgImg := fits.NewImageFromNaxisn([]int32{8, 8}, bgData)
	bgPath := filepath.Join(dir, "bg.fits")
	if err := bgImg.WriteFile(bgPath); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{
		InputFile: input,
		BgFile:    bgPath,
		TargetSN:  3,
		SmoothSN:  2,
	}
	var log bytes.Buffer
	if err := Run(cfg, &log); err == nil {
		t.Fatalf("mismatched background dimensions should be rejected")
	}
}

func TestRunRequiresInput(t *testing.T) {
	var log bytes.Buffer
	if err := Run(&Config{}, &log); err == nil {
		t.Fatalf("missing input should be rejected")
	}
}
