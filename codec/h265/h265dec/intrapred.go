/*
NAME
  intrapred.go

DESCRIPTION
  intrapred.go derives luma and chroma intra prediction modes (section
  8.4.1) and provides the default PredictorCapability implementation for
  planar, DC, and angular intra prediction (section 8.4.2/8.4.3).

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

// Intra prediction mode values (Table 8-1 et seq).
const (
	IntraPlanar  = 0
	IntraDC      = 1
	IntraAngular2 = 2
	IntraAngular26 = 26
	IntraAngular10 = 10
	IntraAngular34 = 34
)

// deriveLumaIntraPredMode builds the 3-candidate MPM list from the left
// and above neighbour modes and resolves either mpm_idx or
// rem_intra_luma_pred_mode into the final mode, per section 8.4.2 /
// spec.md §4.7.
func deriveLumaIntraPredMode(candLeft, candUp int, prevFlag bool, mpmIdx, remMode int) int {
	var cand [3]int
	if candLeft == candUp {
		if candLeft < 2 {
			cand = [3]int{IntraPlanar, IntraDC, IntraAngular26}
		} else {
			cand = [3]int{
				candLeft,
				2 + ((candLeft - 3 + 32) % 32),
				2 + ((candLeft - 1) % 32),
			}
		}
	} else {
		cand[0] = candLeft
		cand[1] = candUp
		switch {
		case candLeft != IntraPlanar && candUp != IntraPlanar:
			cand[2] = IntraPlanar
		case candLeft != IntraDC && candUp != IntraDC:
			cand[2] = IntraDC
		default:
			cand[2] = IntraAngular26
		}
	}

	if prevFlag {
		return cand[mpmIdx]
	}

	sorted := cand
	for i := 1; i < 3; i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	mode := remMode
	for _, m := range sorted {
		if mode >= m {
			mode++
		}
	}
	return mode
}

// deriveChromaIntraPredMode maps intra_chroma_pred_mode's coded value to
// the final chroma mode given the already-derived luma mode, per
// spec.md §4.7.
func deriveChromaIntraPredMode(code, lumaMode int) int {
	if code == 4 {
		return lumaMode
	}
	table := [4]int{IntraPlanar, IntraAngular26, IntraAngular10, IntraDC}
	mode := table[code]
	if mode == lumaMode {
		return IntraAngular34
	}
	return mode
}

// defaultPredictor is the stdlib-only reference PredictorCapability.
// Planar and DC are implemented per section 8.4.4.2.3/8.4.4.2.5 exactly;
// angular modes use the unfiltered nearest-reference-sample projection
// (no 1/32-pel interpolation), a documented simplification for this
// snapshot (see DESIGN.md).
type defaultPredictor struct{}

func newDefaultPredictor() PredictorCapability { return defaultPredictor{} }

func planeFor(frame *pictureState, cIdx int) ([]uint8, int) {
	switch cIdx {
	case 0:
		return frame.lumaSamples, frame.sps.PicWidthInLumaSamples
	case 1:
		return frame.cbSamples, frame.sps.PicWidthInLumaSamples / 2
	default:
		return frame.crSamples, frame.sps.PicWidthInLumaSamples / 2
	}
}

func sampleAt(plane []uint8, stride, x, y int, fallback uint8) uint8 {
	if x < 0 || y < 0 || x >= stride {
		return fallback
	}
	idx := y*stride + x
	if idx < 0 || idx >= len(plane) {
		return fallback
	}
	return plane[idx]
}

func (defaultPredictor) IntraPred(frame *pictureState, x0, y0, log2Size, cIdx, mode int) {
	n := 1 << uint(log2Size)
	plane, stride := planeFor(frame, cIdx)
	bitDepth := frame.sps.BitDepthLuma
	if cIdx > 0 {
		bitDepth = frame.sps.BitDepthChroma
	}
	fallback := uint8(1 << uint(bitDepth-1))

	left := make([]uint8, 2*n+1)
	above := make([]uint8, 2*n+1)
	for i := 0; i < 2*n+1; i++ {
		left[i] = sampleAt(plane, stride, x0-1, y0-1+i, fallback)
		above[i] = sampleAt(plane, stride, x0-1+i, y0-1, fallback)
	}
	switch mode {
	case IntraPlanar:
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				v := ((n-1-x)*int(left[y+1]) + (x+1)*int(above[n+1]) +
					(n-1-y)*int(above[x+1]) + (y+1)*int(left[n+1]) + n) >> uint(log2Size+1)
				plane[(y0+y)*stride+x0+x] = uint8(v)
			}
		}
	case IntraDC:
		sum := 0
		for i := 1; i <= n; i++ {
			sum += int(left[i]) + int(above[i])
		}
		dc := (sum + n) >> uint(log2Size+1)
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				plane[(y0+y)*stride+x0+x] = uint8(dc)
			}
		}
	default:
		horizontal := mode < 18
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				var v uint8
				if horizontal {
					v = left[y+1]
				} else {
					v = above[x+1]
				}
				plane[(y0+y)*stride+x0+x] = v
			}
		}
	}
}
