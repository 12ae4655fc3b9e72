package geometry

import (
	"math"
	"testing"
)

func TestCirclesRadiusInvariant(t *testing.T) {
	c := NewCache(8, 8)
	for r, offs := range c.Circles {
		for _, o := range offs {
			got := int(math.Sqrt(float64(o.Dx*o.Dx + o.Dy*o.Dy)))
			if got != r {
				t.Fatalf("offset (%d,%d) in bucket %d has radius %d", o.Dx, o.Dy, r, got)
			}
		}
	}
}

func TestShiftMovesToLargerRadius(t *testing.T) {
	c := NewCache(10, 10)
	for r, offs := range c.Shift {
		for _, o := range offs {
			before := int(math.Sqrt(float64(o.Dx*o.Dx + o.Dy*o.Dy)))
			after := int(math.Sqrt(float64((o.Dx+1)*(o.Dx+1) + o.Dy*o.Dy)))
			if before != r {
				t.Fatalf("shift offset (%d,%d) listed under bucket %d but has radius %d", o.Dx, o.Dy, r, before)
			}
			if after <= before {
				t.Fatalf("shift offset (%d,%d) does not move to a larger radius bucket: %d -> %d", o.Dx, o.Dy, before, after)
			}
		}
	}
}

func TestRadiusForAreaMatchesUpperBound(t *testing.T) {
	c := NewCache(20, 20)
	// radius 0 always has area 1 (the center pixel)
	if c.Areas[0] != 1 {
		t.Fatalf("expected Areas[0]==1, got %d", c.Areas[0])
	}
	for area := 0; area < 10; area++ {
		r := c.RadiusForArea(area)
		if r > 0 && c.Areas[r-1] > area {
			t.Fatalf("RadiusForArea(%d)=%d but Areas[%d]=%d already exceeds area", area, r, r-1, c.Areas[r-1])
		}
		if r < len(c.Areas) && c.Areas[r] <= area {
			t.Fatalf("RadiusForArea(%d)=%d but Areas[%d]=%d does not exceed area", area, r, r, c.Areas[r])
		}
	}
}

func TestMaxRadiusCoversCorners(t *testing.T) {
	c := NewCache(5, 5)
	cornerR := int(math.Sqrt(4*4 + 4*4))
	if c.MaxRadius() < cornerR {
		t.Fatalf("MaxRadius()=%d does not cover corner radius %d", c.MaxRadius(), cornerR)
	}
}
