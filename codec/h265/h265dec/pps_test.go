/*
NAME
  pps_test.go

DESCRIPTION
  pps_test.go provides testing for the CTB address-mapping and z-scan
  derivations in pps.go.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import "testing"

// isPermutation reports whether vals is a permutation of 0..len(vals)-1.
func isPermutation(vals []int) bool {
	seen := make([]bool, len(vals))
	for _, v := range vals {
		if v < 0 || v >= len(vals) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

func TestDeriveTablesUniformSpacingNoTiles(t *testing.T) {
	sps := &SPS{
		PicWidthInCtbs:    5,
		PicHeightInCtbs:   3,
		PicWidthInMinCbs:  20,
		PicHeightInMinCbs: 12,
		PicWidthInMinTbs:  40,
		PicHeightInMinTbs: 24,
		Log2CtbSize:       6,
		Log2MinCodingBlockSize: 4,
		Log2MinTransformBlockSize: 3,
	}
	pps := &PPS{NumTileColumns: 1, NumTileRows: 1, UniformSpacingFlag: true}

	if err := pps.deriveTables(sps); err != nil {
		t.Fatalf("deriveTables returned error: %v", err)
	}

	// With a single tile, raster scan and tile scan coincide.
	for rs, ts := range pps.CtbAddrRSToTS {
		if rs != ts {
			t.Errorf("expected CtbAddrRSToTS[%d] == %d with no tiles, got %d", rs, rs, ts)
		}
	}
	if !isPermutation(pps.CtbAddrRSToTS) {
		t.Error("CtbAddrRSToTS is not a permutation of 0..numCtbs-1")
	}
	for rs, ts := range pps.CtbAddrRSToTS {
		if pps.CtbAddrTSToRS[ts] != rs {
			t.Errorf("CtbAddrTSToRS is not the inverse of CtbAddrRSToTS at rs=%d", rs)
		}
	}
	if !isPermutation(pps.MinCbAddrZS) {
		t.Error("MinCbAddrZS is not a permutation of 0..numMinCbs-1")
	}
	if !isPermutation(pps.MinTbAddrZS) {
		t.Error("MinTbAddrZS is not a permutation of 0..numMinTbs-1")
	}
}

func TestDeriveTablesUniformSpacingIsBalanced(t *testing.T) {
	// 7 CTB columns split across 3 uniformly-spaced tile columns must sum
	// back to picWidthInCtbs, per the ceil/floor column-width formula.
	sps := &SPS{
		PicWidthInCtbs:    7,
		PicHeightInCtbs:   4,
		PicWidthInMinCbs:  28,
		PicHeightInMinCbs: 16,
		PicWidthInMinTbs:  56,
		PicHeightInMinTbs: 32,
		Log2CtbSize:       6,
		Log2MinCodingBlockSize: 4,
		Log2MinTransformBlockSize: 3,
	}
	pps := &PPS{NumTileColumns: 3, NumTileRows: 2, UniformSpacingFlag: true, TilesEnabledFlag: true}

	if err := pps.deriveTables(sps); err != nil {
		t.Fatalf("deriveTables returned error: %v", err)
	}

	sumCols := 0
	for _, w := range pps.ColumnWidth {
		sumCols += w
	}
	if sumCols != sps.PicWidthInCtbs {
		t.Errorf("column widths sum to %d, want %d", sumCols, sps.PicWidthInCtbs)
	}
	sumRows := 0
	for _, h := range pps.RowHeight {
		sumRows += h
	}
	if sumRows != sps.PicHeightInCtbs {
		t.Errorf("row heights sum to %d, want %d", sumRows, sps.PicHeightInCtbs)
	}

	if !isPermutation(pps.CtbAddrRSToTS) {
		t.Error("CtbAddrRSToTS is not a permutation of 0..numCtbs-1 with tiling enabled")
	}
	for rs, ts := range pps.CtbAddrRSToTS {
		if pps.CtbAddrTSToRS[ts] != rs {
			t.Errorf("CtbAddrTSToRS is not the inverse of CtbAddrRSToTS at rs=%d", rs)
		}
	}

	// Exactly one tile id per tile, covering the whole 3x2 grid.
	seenTiles := map[int]bool{}
	for _, id := range pps.TileID {
		seenTiles[id] = true
	}
	if len(seenTiles) != pps.NumTileColumns*pps.NumTileRows {
		t.Errorf("got %d distinct tile ids, want %d", len(seenTiles), pps.NumTileColumns*pps.NumTileRows)
	}
}

func TestZScanTableIsPermutationAndGroupsByCTB(t *testing.T) {
	// Two CTBs side by side in raster scan, each holding a 2x2 grid of
	// minimum blocks (log2DiffCtb == 1).
	ctbAddrRSToTS := []int{0, 1}
	out := zScanTable(ctbAddrRSToTS, 2, 4, 2, 1)

	if !isPermutation(out) {
		t.Fatalf("zScanTable output is not a permutation: %v", out)
	}

	// All four minimum blocks inside CTB 0 (x in [0,2), y in [0,2)) must
	// land in the first 4 z-scan addresses; CTB 1's in the next 4.
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			v := out[y*4+x]
			if v < 0 || v >= 4 {
				t.Errorf("block (%d,%d) in CTB 0 landed outside [0,4): got %d", x, y, v)
			}
		}
	}
	for y := 0; y < 2; y++ {
		for x := 2; x < 4; x++ {
			v := out[y*4+x]
			if v < 4 || v >= 8 {
				t.Errorf("block (%d,%d) in CTB 1 landed outside [4,8): got %d", x, y, v)
			}
		}
	}
}
