package grid

import "testing"

func TestFloatSetAt(t *testing.T) {
	g := NewFloat(4, 3, 0)
	if g.InBounds(4, 0) || g.InBounds(-1, 0) || !g.InBounds(3, 2) {
		t.Fatalf("InBounds incorrect for 4x3 grid")
	}
	g.Set(2, 1, 7.5)
	if got := g.At(2, 1); got != 7.5 {
		t.Fatalf("At(2,1)=%v want 7.5", got)
	}
	if got := g.At(0, 0); got != 0 {
		t.Fatalf("unfilled cell = %v want 0", got)
	}
}

func TestFloatFill(t *testing.T) {
	g := NewFloat(2, 2, 3.25)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if got := g.At(x, y); got != 3.25 {
				t.Fatalf("At(%d,%d)=%v want 3.25", x, y, got)
			}
		}
	}
}

func TestMaskActive(t *testing.T) {
	m := NewMask(3, 3, 1)
	if !m.Active(0, 0) {
		t.Fatalf("default-filled mask should be active")
	}
	m.Set(1, 1, 0)
	if m.Active(1, 1) {
		t.Fatalf("mask value 0 should not be active")
	}
	m.Set(1, 1, -2)
	if m.Active(1, 1) {
		t.Fatalf("mask value -2 should not be active under the general Active() gate")
	}
	m.Set(1, 1, 2)
	if !m.Active(1, 1) {
		t.Fatalf("mask value 2 should be active")
	}
}

func TestBinDefaultsToUnbinned(t *testing.T) {
	b := NewBin(3, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			if got := b.At(x, y); got != -1 {
				t.Fatalf("At(%d,%d)=%d want -1", x, y, got)
			}
		}
	}
	b.Set(2, 1, 5)
	if got := b.At(2, 1); got != 5 {
		t.Fatalf("At(2,1)=%d want 5", got)
	}
}
