package binning

import "testing"

// buildTwoBins paints two hand-made bins onto a fresh binner, bypassing
// Run(), so scrubber behavior can be tested on a known layout.
func buildTwoBins(in *Inputs, bn *Binner, left, right []Point) (*Bin, *Bin) {
	a := &Bin{ID: 0, Aim: float64(in.Smoothed.At(left[0].X, left[0].Y))}
	bn.Bins = append(bn.Bins, a)
	for _, p := range left {
		bn.addPoint(a, p)
	}
	b := &Bin{ID: 1, Aim: float64(in.Smoothed.At(right[0].X, right[0].Y))}
	bn.Bins = append(bn.Bins, b)
	for _, p := range right {
		bn.addPoint(b, p)
	}
	return a, b
}

func TestScrubberDissolvesUndersizedBinIntoNeighbor(t *testing.T) {
	// one well-above-target bin next to one tiny undersized bin: the
	// scrubber must dissolve the tiny one, leaving a single bin labeled 0
	// covering both regions.
	w, h := 4, 2
	in, cache, binMap := uniformBinningInputs(w, h, 0)
	var big, small []Point
	for y := 0; y < h; y++ {
		for x := 0; x < w-1; x++ {
			in.Counts.Set(x, y, 1000)
			big = append(big, Point{x, y})
		}
		in.Counts.Set(w-1, y, 0)
		small = append(small, Point{w - 1, y})
	}
	bn := NewBinner(in, cache, Params{TargetSN: 5}, binMap)
	buildTwoBins(in, bn, big, small)

	sc := &Scrubber{Binner: bn, Params: ScrubParams{TargetSN: 5}}
	sc.Scrub()

	if len(bn.Bins) != 1 {
		t.Fatalf("expected exactly one surviving bin, got %d", len(bn.Bins))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if binMap.At(x, y) != 0 {
				t.Fatalf("pixel (%d,%d) should belong to the single surviving bin, got %d", x, y, binMap.At(x, y))
			}
		}
	}
}

func TestScrubberLeavesIsolatedUndersizedBin(t *testing.T) {
	// an undersized bin with no adjacent bin at all cannot dissolve: its
	// pixels keep their assignment and the bin is marked.
	w, h := 3, 3
	in, cache, binMap := uniformBinningInputs(w, h, 1)
	b := &Bin{ID: 0}
	bn := NewBinner(in, cache, Params{TargetSN: 100}, binMap)
	bn.Bins = append(bn.Bins, b)
	bn.addPoint(b, Point{1, 1})

	sc := &Scrubber{Binner: bn, Params: ScrubParams{TargetSN: 100}}
	sc.Scrub()

	if len(bn.Bins) != 1 {
		t.Fatalf("isolated undersized bin should survive, got %d bins", len(bn.Bins))
	}
	if !bn.Bins[0].CannotDissolve {
		t.Fatalf("surviving undersized bin should be marked CannotDissolve")
	}
	if binMap.At(1, 1) != 0 {
		t.Fatalf("isolated bin's pixel should keep its assignment, got %d", binMap.At(1, 1))
	}
}

func TestScrubberRenumbersContiguously(t *testing.T) {
	in, cache, binMap := uniformBinningInputs(10, 10, 4)
	bn := NewBinner(in, cache, Params{TargetSN: 3}, binMap)
	bn.Run()

	sc := &Scrubber{Binner: bn, Params: ScrubParams{TargetSN: 3}}
	sc.Scrub()

	for i, b := range bn.Bins {
		if b.ID != int32(i) {
			t.Fatalf("bin at index %d has id %d, want contiguous numbering", i, b.ID)
		}
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			id := binMap.At(x, y)
			if id == -1 {
				continue
			}
			if int(id) >= len(bn.Bins) {
				t.Fatalf("pixel (%d,%d) references out-of-range bin id %d after renumbering", x, y, id)
			}
		}
	}
}

func TestScrubberSurvivorsMeetTargetOrCannotDissolve(t *testing.T) {
	in, cache, binMap := uniformBinningInputs(12, 12, 2)
	target := 4.0
	bn := NewBinner(in, cache, Params{TargetSN: target}, binMap)
	bn.Run()

	sc := &Scrubber{Binner: bn, Params: ScrubParams{TargetSN: target}}
	sc.Scrub()

	target2 := target * target
	for _, b := range bn.Bins {
		if b.Sums.SN2() < target2 && !b.CannotDissolve {
			t.Fatalf("bin %d survived below target without being marked CannotDissolve: sn2=%v",
				b.ID, b.Sums.SN2())
		}
	}
}

func TestScrubberDropLargeBins(t *testing.T) {
	// bins of 9 and 1 pixels in a 10-pixel field with scrublarge=0.5:
	// the 9-pixel bin holds >= 50% of binned pixels and is dropped;
	// renumber leaves one surviving bin.
	w, h := 5, 2
	in, cache, binMap := uniformBinningInputs(w, h, 1000)
	var big, small []Point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x == w-1 && y == h-1 {
				small = append(small, Point{x, y})
			} else {
				big = append(big, Point{x, y})
			}
		}
	}
	bn := NewBinner(in, cache, Params{TargetSN: 1}, binMap)
	buildTwoBins(in, bn, big, small)

	sc := &Scrubber{Binner: bn, Params: ScrubParams{TargetSN: 1, DropLargeFraction: 0.5}}
	sc.Scrub()

	if len(bn.Bins) != 1 {
		t.Fatalf("expected one surviving bin after drop-large, got %d", len(bn.Bins))
	}
	if got := len(bn.Bins[0].Pixels); got != 1 {
		t.Fatalf("survivor should be the 1-pixel bin, has %d pixels", got)
	}
	dropped := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if binMap.At(x, y) == -1 {
				dropped++
			}
		}
	}
	if dropped != 9 {
		t.Fatalf("dropped bin's pixels should read -1 in the bin map, got %d unbinned", dropped)
	}
}
