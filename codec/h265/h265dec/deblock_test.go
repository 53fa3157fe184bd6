/*
NAME
  deblock_test.go

DESCRIPTION
  deblock_test.go provides testing for functionality in deblock.go.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import (
	"testing"

	"gonum.org/v1/gonum/stat"
)

func TestBetaAndTcTablesAreMonotonic(t *testing.T) {
	for i := 1; i < len(betaTable); i++ {
		if betaTable[i] < betaTable[i-1] {
			t.Errorf("betaTable not monotonic at index %d: %d < %d", i, betaTable[i], betaTable[i-1])
		}
	}
	for i := 1; i < len(tcTable); i++ {
		if tcTable[i] < tcTable[i-1] {
			t.Errorf("tcTable not monotonic at index %d: %d < %d", i, tcTable[i], tcTable[i-1])
		}
	}
}

// planeWindow builds a get/set pair over a flat 8x4 sample window (p3..p0
// at columns 0..3, q0..q3 at columns 4..7), mimicking deblockVerticalSegment's
// addressing but entirely in memory for direct unit testing.
func planeWindow(samples *[4][8]int) (func(dx, dy int) int, func(dx, dy, v int)) {
	get := func(dx, dy int) int {
		col := dx + 4
		return samples[dy][col]
	}
	set := func(dx, dy, v int) {
		col := dx + 4
		samples[dy][col] = v
	}
	return get, set
}

func TestFilterSegmentSkipsWhenAboveBetaThreshold(t *testing.T) {
	// A sharply non-monotonic window (large second derivative on both
	// sides of the edge) must leave samples untouched once d0+d3 >= beta,
	// since a large second derivative reads as genuine detail rather than
	// a blocking artifact.
	var samples [4][8]int
	for row := 0; row < 4; row++ {
		samples[row] = [8]int{0, 0, 100, 0, 0, 100, 0, 0}
	}
	before := samples
	get, set := planeWindow(&samples)
	filterSegment(get, set, 1, 4, 8)

	for row := 0; row < 4; row++ {
		for col := 0; col < 8; col++ {
			if samples[row][col] != before[row][col] {
				t.Fatalf("filterSegment modified sample [%d][%d] despite d0+d3>=beta", row, col)
			}
		}
	}
}

func TestFilterNormalLineClipsToTc(t *testing.T) {
	var samples [4][8]int
	for row := 0; row < 4; row++ {
		samples[row] = [8]int{100, 100, 100, 100, 150, 150, 150, 150}
	}
	get, set := planeWindow(&samples)
	tc := 2
	filterNormalLine(get, set, 0, tc, true)

	p0 := samples[0][3]
	q0 := samples[0][4]
	if p0 < 100-tc || p0 > 100+tc {
		t.Errorf("p0 moved outside +/-tc of its original value: got %d", p0)
	}
	if q0 < 150-tc || q0 > 150+tc {
		t.Errorf("q0 moved outside +/-tc of its original value: got %d", q0)
	}
}

func TestFilterStrongLineClipsToTwiceTc(t *testing.T) {
	var samples [4][8]int
	samples[0] = [8]int{10, 20, 30, 40, 200, 210, 220, 230}
	get, set := planeWindow(&samples)
	tc := 3
	filterStrongLine(get, set, 0, tc)

	origs := [6]int{40, 30, 20, 200, 210, 220} // p0,p1,p2,q0,q1,q2
	cols := [6]int{3, 2, 1, 4, 5, 6}
	for i, col := range cols {
		v := samples[0][col]
		lo, hi := origs[i]-2*tc, origs[i]+2*tc
		if v < lo || v > hi {
			t.Errorf("sample at column %d (%d) outside +/-2*tc of original %d", col, v, origs[i])
		}
	}
}

// rowToFloat64 converts one deblock test row to a []float64 for
// statistical comparison.
func rowToFloat64(row [8]int) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = float64(v)
	}
	return out
}

// TestFilterNormalLinePreservesMeanForSymmetricLine guards that the
// normal deblocking line filter redistributes energy across the p1/p0
// and q0/q1 pairs rather than adding or removing it, for an edge whose
// two sides are themselves symmetric.
func TestFilterNormalLinePreservesMeanForSymmetricLine(t *testing.T) {
	var samples [4][8]int
	samples[0] = [8]int{100, 100, 100, 100, 150, 150, 150, 150}
	before := stat.Mean(rowToFloat64(samples[0]), nil)

	get, set := planeWindow(&samples)
	filterNormalLine(get, set, 0, 2, true)
	after := stat.Mean(rowToFloat64(samples[0]), nil)

	if before != after {
		t.Errorf("filterNormalLine changed the row mean: before=%v after=%v", before, after)
	}
}

func TestClipSample(t *testing.T) {
	tests := []struct {
		v, bitDepth int
		want        uint8
	}{
		{v: -5, bitDepth: 8, want: 0},
		{v: 300, bitDepth: 8, want: 255},
		{v: 100, bitDepth: 8, want: 100},
	}
	for i, test := range tests {
		got := clipSample(test.v, test.bitDepth)
		if got != test.want {
			t.Errorf("test %d: clipSample(%d, %d) = %d, want %d", i, test.v, test.bitDepth, got, test.want)
		}
	}
}
