/*
NAME
  intrapred_test.go

DESCRIPTION
  intrapred_test.go provides testing for functionality in intrapred.go,
  in particular that the luma intra most-probable-mode candidate list
  derived by deriveLumaIntraPredMode always contains three distinct
  entries, as required by section 8.4.2.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import "testing"

// TestLumaIntraMPMCandidatesAreDistinct samples all three mpm_idx values
// for each case and checks the resulting modes are pairwise distinct,
// which holds iff the underlying 3-entry candidate list itself is.
func TestLumaIntraMPMCandidatesAreDistinct(t *testing.T) {
	tests := []struct {
		name             string
		candLeft, candUp int
	}{
		{"both planar", IntraPlanar, IntraPlanar},
		{"both dc", IntraDC, IntraDC},
		{"equal low angular", 2, 2},
		{"equal mid angular", 20, 20},
		{"equal high angular", 34, 34},
		{"distinct planar/dc", IntraPlanar, IntraDC},
		{"distinct planar/angular", IntraPlanar, 18},
		{"distinct dc/angular", IntraDC, 18},
		{"distinct two angular modes", 10, 20},
	}
	for _, test := range tests {
		seen := map[int]bool{}
		for mpmIdx := 0; mpmIdx < 3; mpmIdx++ {
			mode := deriveLumaIntraPredMode(test.candLeft, test.candUp, true, mpmIdx, 0)
			seen[mode] = true
		}
		if len(seen) != 3 {
			t.Errorf("%s (candLeft=%d, candUp=%d): MPM candidate list has %d distinct entries, want 3",
				test.name, test.candLeft, test.candUp, len(seen))
		}
	}
}

// TestLumaIntraMPMEqualAngularCandidatesStayInRange guards the modular
// arithmetic used to derive the two synthetic candidates when both
// neighbours share the same angular mode: both must land in the valid
// angular range [2,34].
func TestLumaIntraMPMEqualAngularCandidatesStayInRange(t *testing.T) {
	for _, shared := range []int{2, 3, 10, 33, 34} {
		for mpmIdx := 0; mpmIdx < 3; mpmIdx++ {
			mode := deriveLumaIntraPredMode(shared, shared, true, mpmIdx, 0)
			if mode < 0 || mode > 34 {
				t.Errorf("candLeft=candUp=%d, mpmIdx=%d: mode %d out of [0,34]", shared, mpmIdx, mode)
			}
		}
	}
}

// TestLumaIntraNonMPMModeSkipsCandidates guards that the non-MPM path
// (rem_intra_luma_pred_mode) never returns a value already present in
// the candidate list, per the skip-and-increment construction of
// section 8.4.2.
func TestLumaIntraNonMPMModeSkipsCandidates(t *testing.T) {
	candLeft, candUp := IntraPlanar, 18
	cand := map[int]bool{IntraPlanar: true, 18: true, IntraDC: true}

	for remMode := 0; remMode < 32; remMode++ {
		mode := deriveLumaIntraPredMode(candLeft, candUp, false, 0, remMode)
		if cand[mode] {
			t.Errorf("remMode=%d: non-MPM mode %d collides with a candidate", remMode, mode)
		}
	}
}

func TestDeriveChromaIntraPredModeDirectModeFollowsLuma(t *testing.T) {
	for lumaMode := 0; lumaMode <= 34; lumaMode++ {
		got := deriveChromaIntraPredMode(4, lumaMode)
		if got != lumaMode {
			t.Errorf("code=4, lumaMode=%d: deriveChromaIntraPredMode = %d, want %d", lumaMode, got, lumaMode)
		}
	}
}

func TestDeriveChromaIntraPredModeCollisionMapsToAngular34(t *testing.T) {
	table := [4]int{IntraPlanar, IntraAngular26, IntraAngular10, IntraDC}
	for code, mode := range table {
		got := deriveChromaIntraPredMode(code, mode)
		if got != IntraAngular34 {
			t.Errorf("code=%d colliding with lumaMode=%d: deriveChromaIntraPredMode = %d, want %d (angular 34)",
				code, mode, got, IntraAngular34)
		}
	}
}
