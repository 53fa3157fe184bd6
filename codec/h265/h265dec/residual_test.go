/*
NAME
  residual_test.go

DESCRIPTION
  residual_test.go provides testing for functionality in residual.go,
  in particular the significant_coeff_flag context derivation of
  sigCoeffCtx across every log2Size/scanIdx/channel combination.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import "testing"

func TestSigCoeffCtxDCPositionIsAlwaysZero(t *testing.T) {
	csbf := [][]bool{{false, false}, {false, false}}
	for _, cIdx := range []int{0, 1, 2} {
		for _, scanIdx := range []int{ScanDiag, ScanHoriz, ScanVert} {
			got := sigCoeffCtx(csbf, 2, 0, 0, 0, 0, 3, scanIdx, cIdx)
			if got != 0 {
				t.Errorf("cIdx=%d scanIdx=%d: sigCoeffCtx at DC position = %d, want 0", cIdx, scanIdx, got)
			}
		}
	}
}

func TestSigCoeffCtx4x4UsesFixedMap(t *testing.T) {
	csbf := [][]bool{{false}}
	for yP := 0; yP < 4; yP++ {
		for xP := 0; xP < 4; xP++ {
			if xP == 0 && yP == 0 {
				continue
			}
			want := sigCtxIdxMap4x4[yP*4+xP]
			got := sigCoeffCtx(csbf, 1, 0, 0, xP, yP, 2, ScanDiag, 0)
			if got != want {
				t.Errorf("(%d,%d): sigCoeffCtx = %d, want %d", xP, yP, got, want)
			}
		}
	}
}

// TestSigCoeffCtx8x8ScanDependentOffsetAppliesToLumaAndChroma guards the
// rule that an 8x8 transform block's scan-dependent offset (diag ? 9 :
// 15) applies identically whether cIdx is luma or chroma; this is the
// case the chroma branch once dropped.
func TestSigCoeffCtx8x8ScanDependentOffsetAppliesToLumaAndChroma(t *testing.T) {
	// cgX=1,cgY=0 is a non-corner coefficient group with no significant
	// neighbouring groups; xP=yP=0 gives a prevCsbf-derived base sigCtx
	// of 2 before the log2Size==3 scan-dependent offset is added.
	csbf := [][]bool{{false, false}, {false, false}}
	tests := []struct {
		name    string
		cIdx    int
		scanIdx int
		want    int
	}{
		{"luma diag", 0, ScanDiag, 2 + 3 + 9},
		{"luma horiz", 0, ScanHoriz, 2 + 3 + 15},
		{"luma vert", 0, ScanVert, 2 + 3 + 15},
		{"chroma diag", 1, ScanDiag, 27 + 2 + 9},
		{"chroma horiz", 1, ScanHoriz, 27 + 2 + 15},
		{"chroma vert", 1, ScanVert, 27 + 2 + 15},
		{"chroma(Cr) diag", 2, ScanDiag, 27 + 2 + 9},
		{"chroma(Cr) horiz", 2, ScanHoriz, 27 + 2 + 15},
	}
	for _, test := range tests {
		got := sigCoeffCtx(csbf, 2, 1, 0, 0, 0, 3, test.scanIdx, test.cIdx)
		if got != test.want {
			t.Errorf("%s: sigCoeffCtx = %d, want %d", test.name, got, test.want)
		}
	}
}

// TestSigCoeffCtx8x8ScanOffsetIndependentOfNonDiagDirection guards that
// the 8x8 scan-dependent offset only distinguishes diagonal scan from
// non-diagonal scan, not horizontal from vertical, for both channels.
func TestSigCoeffCtx8x8ScanOffsetIndependentOfNonDiagDirection(t *testing.T) {
	csbf := [][]bool{{false, false}, {false, false}}
	for _, cIdx := range []int{0, 1} {
		horiz := sigCoeffCtx(csbf, 2, 1, 0, 0, 0, 3, ScanHoriz, cIdx)
		vert := sigCoeffCtx(csbf, 2, 1, 0, 0, 0, 3, ScanVert, cIdx)
		if horiz != vert {
			t.Errorf("cIdx=%d: horiz scan ctx %d != vert scan ctx %d, want equal non-diag offsets", cIdx, horiz, vert)
		}
	}
}

// TestSigCoeffCtxLargerBlockScanIndependentOffset guards that for
// log2Size > 3 the channel offset (luma +21, chroma +12) is fixed
// regardless of scanIdx.
func TestSigCoeffCtxLargerBlockScanIndependentOffset(t *testing.T) {
	csbf := [][]bool{
		{false, false, false, false},
		{false, false, false, false},
		{false, false, false, false},
		{false, false, false, false},
	}
	for _, scanIdx := range []int{ScanDiag, ScanHoriz, ScanVert} {
		lumaGot := sigCoeffCtx(csbf, 4, 1, 0, 0, 0, 4, scanIdx, 0)
		if want := 2 + 3 + 21; lumaGot != want {
			t.Errorf("scanIdx=%d luma: sigCoeffCtx = %d, want %d", scanIdx, lumaGot, want)
		}
		chromaGot := sigCoeffCtx(csbf, 4, 1, 0, 0, 0, 4, scanIdx, 1)
		if want := 27 + 2 + 12; chromaGot != want {
			t.Errorf("scanIdx=%d chroma: sigCoeffCtx = %d, want %d", scanIdx, chromaGot, want)
		}
	}
}

func TestSigCoeffCtxCornerGroupSkipsLumaNeighbourBonus(t *testing.T) {
	// cgX=cgY=0 must not receive the +3 "non-corner group" bonus that a
	// non-zero coefficient group position gets for luma. xP=1,yP=0 keeps
	// this off the (0,0) DC position, which short-circuits to 0.
	csbf := [][]bool{{false, false}, {false, false}}
	got := sigCoeffCtx(csbf, 2, 0, 0, 1, 0, 4, ScanDiag, 0)
	want := 1 + 21
	if got != want {
		t.Errorf("corner group: sigCoeffCtx = %d, want %d", got, want)
	}
}
