package region

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/jsanders/contbin/internal/binning"
	"github.com/jsanders/contbin/internal/geometry"
)

func sampleBins() []*binning.Bin {
	b0 := &binning.Bin{ID: 0, Pixels: []binning.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}}
	b1 := &binning.Bin{ID: 1, Pixels: []binning.Point{{X: 5, Y: 5}}}
	return []*binning.Bin{b0, b1}
}

func TestWriteDS9ProducesOneCirclePerBin(t *testing.T) {
	var buf bytes.Buffer
	cache := geometry.NewCache(10, 10)
	if err := WriteDS9(&buf, sampleBins(), cache); err != nil {
		t.Fatalf("WriteDS9: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "image") {
		t.Fatalf("expected DS9 coordinate system header, got:\n%s", out)
	}
	if strings.Count(out, "circle(") != 2 {
		t.Fatalf("expected 2 circle regions, got:\n%s", out)
	}
}

func TestWriteDS9SkipsEmptyBins(t *testing.T) {
	var buf bytes.Buffer
	cache := geometry.NewCache(10, 10)
	bins := append(sampleBins(), nil, &binning.Bin{ID: 2})
	if err := WriteDS9(&buf, bins, cache); err != nil {
		t.Fatalf("WriteDS9: %v", err)
	}
	if strings.Count(buf.String(), "circle(") != 2 {
		t.Fatalf("nil/empty bins should not produce circle regions")
	}
}

func TestWriteHistogramHeaderAndRowCount(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHistogram(&buf, []float64{1, 2, 2.5, 7}, "Signal to noise", 4); err != nil {
		t.Fatalf("WriteHistogram: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3+4 {
		t.Fatalf("expected 3 header lines + 4 bucket rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if lines[0] != "label x Signal to noise" || lines[1] != "label y Bin count" || lines[2] != "line step" {
		t.Fatalf("unexpected header lines: %v", lines[:3])
	}
}

func TestWriteHistogramCountsEveryValue(t *testing.T) {
	var buf bytes.Buffer
	values := []float64{0, 1, 2, 3, 4, 5, 5, 5}
	if err := WriteHistogram(&buf, values, "Signal", 5); err != nil {
		t.Fatalf("WriteHistogram: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	total := 0.0
	for _, line := range lines[3:] {
		var center, count float64
		if _, err := fmt.Sscanf(line, "%g\t%g", &center, &count); err != nil {
			t.Fatalf("bad histogram row %q: %v", line, err)
		}
		total += count
	}
	if total != float64(len(values)) {
		t.Fatalf("histogram rows sum to %v, want %d", total, len(values))
	}
}

func TestWriteHistogramEmptyValuesProducesNoOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHistogram(&buf, nil, "Signal", 4); err != nil {
		t.Fatalf("WriteHistogram: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output for an empty value list, got:\n%s", buf.String())
	}
}
