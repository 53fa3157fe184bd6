/*
NAME
  residual.go

DESCRIPTION
  residual.go implements hls_residual_coding, as defined in section
  7.3.8.11, producing a dequantization-ready coefficient matrix for one
  transform block.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

// Scan order identifiers, Table 7-? (scan_idx).
const (
	ScanDiag = iota
	ScanHoriz
	ScanVert
)

type scanPos struct{ X, Y int }

// diagScanOrder generates the up-right diagonal scan of an n×n grid, the
// same construction used by the reference software to build the scan
// tables referenced in spec.md §4.9.
func diagScanOrder(n int) []scanPos {
	out := make([]scanPos, 0, n*n)
	x, y := 0, 0
	for len(out) < n*n {
		for y >= 0 {
			if x < n && y < n {
				out = append(out, scanPos{x, y})
			}
			y--
			x++
		}
		y = x
		x = 0
	}
	return out
}

func horizScanOrder(n int) []scanPos {
	out := make([]scanPos, 0, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			out = append(out, scanPos{x, y})
		}
	}
	return out
}

func vertScanOrder(n int) []scanPos {
	out := make([]scanPos, 0, n*n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			out = append(out, scanPos{x, y})
		}
	}
	return out
}

func scanOrder(n, scanIdx int) []scanPos {
	switch scanIdx {
	case ScanHoriz:
		return horizScanOrder(n)
	case ScanVert:
		return vertScanOrder(n)
	default:
		return diagScanOrder(n)
	}
}

// sigCtxIdxMap4x4 is the context-index map for the degenerate 4×4
// transform case (section 9.3.4.2.5, indexed [y*4+x]).
var sigCtxIdxMap4x4 = [16]int{
	0, 1, 4, 5,
	2, 3, 4, 5,
	6, 6, 8, 8,
	7, 7, 8, 8,
}

// coefficientGroupState carries the adaptive sub-state that the original
// decoder keeps in file-scoped statics across coeff_abs_level_greater1/2
// and coeff_abs_level_remaining calls inside one coefficient group; here
// it is an explicit value threaded through residualCoding and its
// helpers instead (REDESIGN: no package-level mutable state).
type coefficientGroupState struct {
	greater1Ctx int
	ctxSet      int
	cRiceParam  int
}

// residualBlock is the decoded square coefficient matrix for one
// transform block, row-major, size (1<<log2Size)^2.
type residualBlock struct {
	Log2Size int
	Coeffs   []int32
}

func newResidualBlock(log2Size int) *residualBlock {
	n := 1 << uint(log2Size)
	return &residualBlock{Log2Size: log2Size, Coeffs: make([]int32, n*n)}
}

func (r *residualBlock) at(x, y int) int32 {
	n := 1 << uint(r.Log2Size)
	return r.Coeffs[y*n+x]
}

func (r *residualBlock) set(x, y int, v int32) {
	n := 1 << uint(r.Log2Size)
	r.Coeffs[y*n+x] = v
}

// residualCoding decodes hls_residual_coding for one transform block at
// (x0,y0), per spec.md §4.9. sbHidingEnabled is pps.SignDataHidingFlag.
func residualCoding(c *CABAC, cs *sliceCabacState, log2TrafoSize, cIdx int, scanIdx int, transformSkipEnabled, transquantBypass bool, sbHidingEnabled bool) (*residualBlock, bool, error) {
	effLog2 := log2TrafoSize
	if effLog2 < 2 {
		effLog2 = 2
	}

	transformSkip := false
	if transformSkipEnabled && !transquantBypass && log2TrafoSize == 2 {
		b, err := cs.decodeTransformSkipFlag(c, cIdx)
		if err != nil {
			return nil, false, err
		}
		transformSkip = b
	}

	xPrefix, err := decodeLastSigCoeffPrefix(c, cs.lastSigCoeffXPrefix, 0, effLog2, cIdx == 0)
	if err != nil {
		return nil, false, err
	}
	yPrefix, err := decodeLastSigCoeffPrefix(c, cs.lastSigCoeffYPrefix, 0, effLog2, cIdx == 0)
	if err != nil {
		return nil, false, err
	}
	lastX, err := decodeLastSigCoeffSuffix(c, xPrefix)
	if err != nil {
		return nil, false, err
	}
	lastY, err := decodeLastSigCoeffSuffix(c, yPrefix)
	if err != nil {
		return nil, false, err
	}
	if scanIdx == ScanVert {
		lastX, lastY = lastY, lastX
	}

	n := 1 << uint(effLog2)
	cgN := n / 4
	cgOrder := scanOrder(cgN, scanIdx)
	withinOrder := scanOrder(4, scanIdx)

	lastCGIdx := -1
	lastCoeffIdx := -1
	for i, p := range cgOrder {
		if p.X == lastX/4 && p.Y == lastY/4 {
			lastCGIdx = i
			break
		}
	}
	for i, p := range withinOrder {
		if p.X == lastX%4 && p.Y == lastY%4 {
			lastCoeffIdx = i
			break
		}
	}

	block := newResidualBlock(effLog2)
	csbf := make([][]bool, cgN)
	for i := range csbf {
		csbf[i] = make([]bool, cgN)
	}

	gcs := coefficientGroupState{}
	prevGreater1CtxWasZero := false

	for cgIdx := lastCGIdx; cgIdx >= 0; cgIdx-- {
		cg := cgOrder[cgIdx]
		isLastCG := cgIdx == lastCGIdx
		isCornerCG := cg.X == 0 && cg.Y == 0

		inferSBDcSigCoeffFlag := false
		if !isLastCG && !isCornerCG {
			rightSig := cg.X+1 < cgN && csbf[cg.X+1][cg.Y]
			belowSig := cg.Y+1 < cgN && csbf[cg.X][cg.Y+1]
			ctxInc := 0
			if rightSig || belowSig {
				ctxInc = 1
			}
			if cIdx > 0 {
				ctxInc += 2
			}
			sig, err := cs.decodeSigCoeffGroupFlag(c, ctxInc)
			if err != nil {
				return nil, false, err
			}
			csbf[cg.X][cg.Y] = sig
			if sig {
				inferSBDcSigCoeffFlag = true
			}
			if !sig {
				prevGreater1CtxWasZero = false
				continue
			}
		} else {
			csbf[cg.X][cg.Y] = true
		}

		gcs.ctxSet = 0
		if (cg.X > 0 || cg.Y > 0) && cIdx == 0 {
			gcs.ctxSet = 2
		}
		if prevGreater1CtxWasZero {
			gcs.ctxSet++
		}
		gcs.greater1Ctx = 1

		startIdx := 15
		if isLastCG {
			startIdx = lastCoeffIdx - 1
		}

		sigPositions := make([]scanPos, 0, 16)
		firstSigSet := false
		if isLastCG {
			sigPositions = append(sigPositions, withinOrder[lastCoeffIdx])
			firstSigSet = true
		}
		for n2 := startIdx; n2 >= 0; n2-- {
			p := withinOrder[n2]
			xC := cg.X*4 + p.X
			yC := cg.Y*4 + p.Y
			if xC+yC == 0 {
				sigPositions = append(sigPositions, p)
				continue
			}
			if n2 == 0 && inferSBDcSigCoeffFlag && !firstSigSet {
				sigPositions = append(sigPositions, p)
				continue
			}
			sigCtx := sigCoeffCtx(csbf, cgN, cg.X, cg.Y, p.X, p.Y, effLog2, scanIdx, cIdx)
			sig, err := cs.decodeSigCoeffFlag(c, sigCtx)
			if err != nil {
				return nil, false, err
			}
			if sig {
				sigPositions = append(sigPositions, p)
				firstSigSet = true
			}
		}

		if len(sigPositions) == 0 {
			prevGreater1CtxWasZero = false
			continue
		}

		numGreater1 := 0
		greater1Flags := make([]bool, len(sigPositions))
		firstGreater1Pos := -1
		for i := range sigPositions {
			if numGreater1 >= 8 {
				break
			}
			g1, err := cs.decodeCoeffAbsGreater1Flag(c, gcs.ctxSet, gcs.greater1Ctx)
			if err != nil {
				return nil, false, err
			}
			greater1Flags[i] = g1
			numGreater1++
			if g1 {
				gcs.greater1Ctx = 0
				if firstGreater1Pos < 0 {
					firstGreater1Pos = i
				}
			} else if gcs.greater1Ctx > 0 && gcs.greater1Ctx < 3 {
				gcs.greater1Ctx++
			}
		}
		prevGreater1CtxWasZero = gcs.greater1Ctx == 0

		greater2 := false
		if firstGreater1Pos >= 0 {
			b, err := cs.decodeCoeffAbsGreater2Flag(c, gcs.ctxSet)
			if err != nil {
				return nil, false, err
			}
			greater2 = b
		}

		signHidden := sbHidingEnabled && len(sigPositions) >= 4
		signs := make([]int, len(sigPositions))
		for i := range sigPositions {
			if signHidden && i == 0 {
				continue
			}
			s, err := c.decodeCoeffSignFlag()
			if err != nil {
				return nil, false, err
			}
			signs[i] = s
		}

		levels := make([]int, len(sigPositions))
		sumAbs := 0
		for i := range sigPositions {
			hasG1 := i < numGreater1
			g1 := hasG1 && greater1Flags[i]
			base := 1
			if g1 {
				base = 2
			}
			isFirstG1 := i == firstGreater1Pos
			if isFirstG1 && greater2 {
				base = 3
			}

			var needsRemaining bool
			switch {
			case isFirstG1:
				needsRemaining = base == 3
			case hasG1:
				needsRemaining = g1
			default:
				needsRemaining = true
			}

			if needsRemaining {
				rem, err := c.decodeCoeffAbsLevelRemaining(gcs.cRiceParam)
				if err != nil {
					return nil, false, err
				}
				base += rem
				if base > 3*(1<<uint(gcs.cRiceParam)) && gcs.cRiceParam < 4 {
					gcs.cRiceParam++
				}
			}
			levels[i] = base
			sumAbs += base
		}

		if signHidden && sumAbs%2 == 1 {
			signs[0] = 1
		}

		for i, p := range sigPositions {
			v := int32(levels[i])
			if signs[i] == 1 {
				v = -v
			}
			xC := cg.X*4 + p.X
			yC := cg.Y*4 + p.Y
			block.set(xC, yC, v)
		}
		gcs.cRiceParam = 0
	}

	return block, transformSkip, nil
}

// sigCoeffCtx derives ctxInc for significant_coeff_flag at (xP,yP) inside
// coefficient group (cgX,cgY), per spec.md §4.5/§4.9 (grounded on the
// sig_ctx derivation of the original decoder's
// significant_coeff_flag_decode).
func sigCoeffCtx(csbf [][]bool, cgN, cgX, cgY, xP, yP, log2Size, scanIdx, cIdx int) int {
	xC := cgX*4 + xP
	yC := cgY*4 + yP
	if xC+yC == 0 {
		return 0
	}
	if log2Size == 2 {
		return sigCtxIdxMap4x4[yP*4+xP]
	}

	sigRight := cgX+1 < cgN && csbf[cgX+1][cgY]
	sigBelow := cgY+1 < cgN && csbf[cgX][cgY+1]
	prevCsbf := 0
	if sigRight {
		prevCsbf |= 1
	}
	if sigBelow {
		prevCsbf |= 2
	}

	var sigCtx int
	switch prevCsbf {
	case 0:
		switch {
		case xP+yP == 0:
			sigCtx = 2
		case xP+yP < 3:
			sigCtx = 1
		default:
			sigCtx = 0
		}
	case 1:
		switch yP {
		case 0:
			sigCtx = 2
		case 1:
			sigCtx = 1
		default:
			sigCtx = 0
		}
	case 2:
		switch xP {
		case 0:
			sigCtx = 2
		case 1:
			sigCtx = 1
		default:
			sigCtx = 0
		}
	default:
		sigCtx = 2
	}

	if cIdx == 0 {
		if cgX+cgY > 0 {
			sigCtx += 3
		}
		if log2Size == 3 {
			if scanIdx == ScanDiag {
				sigCtx += 9
			} else {
				sigCtx += 15
			}
		} else {
			sigCtx += 21
		}
		return sigCtx
	}

	if log2Size == 3 {
		if scanIdx == ScanDiag {
			sigCtx += 9
		} else {
			sigCtx += 15
		}
	} else {
		sigCtx += 12
	}
	return 27 + sigCtx
}
