package preview

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/jsanders/contbin/internal/grid"
)

func TestWritePNGDimensionsAndDecode(t *testing.T) {
	g := grid.NewFloat(8, 5, 1)
	g.Set(0, 0, float32(math.NaN()))
	g.Set(3, 2, 10)

	var buf bytes.Buffer
	if err := WritePNG(&buf, g); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 8 || b.Dy() != 5 {
		t.Fatalf("preview dimensions %dx%d, want 8x5", b.Dx(), b.Dy())
	}
}

func TestWritePNGUniformImageDoesNotDivideByZero(t *testing.T) {
	g := grid.NewFloat(4, 4, 7)
	var buf bytes.Buffer
	if err := WritePNG(&buf, g); err != nil {
		t.Fatalf("WritePNG on uniform image: %v", err)
	}
}
