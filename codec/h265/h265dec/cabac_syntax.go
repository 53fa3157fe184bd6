/*
NAME
  cabac_syntax.go

DESCRIPTION
  cabac_syntax.go decodes every CABAC-coded syntax element used by
  slice_segment_data(), section 9.3. Context arrays are grouped by
  syntax element into sliceCabacState rather than addressed through one
  flat 183-entry array, since every call site already knows which
  element it wants; ctxIdx arithmetic from the official tables collapses
  into plain slice indexing.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

// initTriple holds (I, P, B) init values for one context, mirroring the
// shape of the official init_values table without reproducing its full
// 183-entry span (see DESIGN.md).
type initTriple struct {
	I, P, B int
}

func newContextArray(n int, t initTriple, initType, sliceQPY int) []context {
	v := t.I
	switch initType {
	case 1:
		v = t.P
	case 0:
		v = t.B
	}
	out := make([]context, n)
	for i := range out {
		out[i] = initContext(v, sliceQPY)
	}
	return out
}

// sliceCabacState carries every context-variable array needed to decode
// one slice segment's data, initialized once at the top of
// slice_segment_data() and carried across CTBs. At each tile start and,
// with entropy_coding_sync_enabled_flag, each CTB-row start the caller
// replaces it with freshly initialized contexts; no context snapshot from
// the row above is restored.
type sliceCabacState struct {
	saoMergeFlag          []context
	saoTypeIdx            []context
	splitCUFlag           []context
	cuTransquantBypass    []context
	skipFlag              []context
	predModeFlag          []context
	partMode              []context
	prevIntraLumaPredFlag []context
	intraChromaPredMode   []context
	rqtRootCBF            []context
	mergeFlag             []context
	mergeIdx              []context
	interPredIdc          []context
	refIdx                []context
	mvpFlag               []context
	splitTransformFlag    []context
	cbfLuma               []context
	cbfCbCr               []context
	transformSkipFlag     []context
	lastSigCoeffXPrefix   []context
	lastSigCoeffYPrefix   []context
	sigCoeffGroupFlag     []context
	sigCoeffFlag          []context
	coeffAbsGreater1      []context
	coeffAbsGreater2      []context
	cuQPDeltaAbs          []context
}

// initTypeFor derives init_type per section 9.3.2.2: I:2, P:1, B:0, XORed
// with 3 when cabac_init_flag is set on a non-I slice.
func initTypeFor(sliceType int, cabacInitFlag bool) int {
	it := 2 - sliceType
	if cabacInitFlag && sliceType != SliceTypeI {
		it ^= 3
	}
	return it
}

func newSliceCabacState(sliceType int, cabacInitFlag bool, sliceQPY int) *sliceCabacState {
	it := initTypeFor(sliceType, cabacInitFlag)
	return &sliceCabacState{
		saoMergeFlag:          newContextArray(1, initTriple{153, 153, 153}, it, sliceQPY),
		saoTypeIdx:            newContextArray(1, initTriple{200, 185, 160}, it, sliceQPY),
		splitCUFlag:           newContextArray(3, initTriple{139, 107, 107}, it, sliceQPY),
		cuTransquantBypass:    newContextArray(1, initTriple{154, 154, 154}, it, sliceQPY),
		skipFlag:              newContextArray(3, initTriple{154, 197, 197}, it, sliceQPY),
		predModeFlag:          newContextArray(1, initTriple{149, 149, 134}, it, sliceQPY),
		partMode:              newContextArray(4, initTriple{184, 154, 154}, it, sliceQPY),
		prevIntraLumaPredFlag: newContextArray(1, initTriple{184, 154, 183}, it, sliceQPY),
		intraChromaPredMode:   newContextArray(1, initTriple{63, 152, 152}, it, sliceQPY),
		rqtRootCBF:            newContextArray(1, initTriple{79, 79, 79}, it, sliceQPY),
		mergeFlag:             newContextArray(1, initTriple{154, 110, 154}, it, sliceQPY),
		mergeIdx:              newContextArray(1, initTriple{154, 122, 137}, it, sliceQPY),
		interPredIdc:          newContextArray(5, initTriple{95, 95, 95}, it, sliceQPY),
		refIdx:                newContextArray(2, initTriple{153, 153, 153}, it, sliceQPY),
		mvpFlag:               newContextArray(1, initTriple{168, 168, 168}, it, sliceQPY),
		splitTransformFlag:    newContextArray(4, initTriple{153, 124, 224}, it, sliceQPY),
		cbfLuma:               newContextArray(2, initTriple{111, 153, 111}, it, sliceQPY),
		cbfCbCr:               newContextArray(5, initTriple{94, 149, 149}, it, sliceQPY),
		transformSkipFlag:     newContextArray(2, initTriple{139, 139, 139}, it, sliceQPY),
		lastSigCoeffXPrefix:   newContextArray(18, initTriple{110, 125, 125}, it, sliceQPY),
		lastSigCoeffYPrefix:   newContextArray(18, initTriple{110, 125, 125}, it, sliceQPY),
		sigCoeffGroupFlag:     newContextArray(4, initTriple{121, 140, 91}, it, sliceQPY),
		sigCoeffFlag:          newContextArray(44, initTriple{170, 155, 139}, it, sliceQPY),
		coeffAbsGreater1:      newContextArray(24, initTriple{140, 154, 154}, it, sliceQPY),
		coeffAbsGreater2:      newContextArray(6, initTriple{138, 107, 107}, it, sliceQPY),
		cuQPDeltaAbs:          newContextArray(2, initTriple{154, 154, 154}, it, sliceQPY),
	}
}

func (s *sliceCabacState) decodeSAOMergeFlag(c *CABAC) (bool, error) {
	b, err := c.decodeBin(&s.saoMergeFlag[0])
	return b == 1, err
}

// decodeSAOTypeIdx returns SAONotApplied, SAOBand, or SAOEdge.
func (s *sliceCabacState) decodeSAOTypeIdx(c *CABAC) (int, error) {
	b, err := c.decodeBin(&s.saoTypeIdx[0])
	if err != nil {
		return 0, err
	}
	if b == 0 {
		return SAONotApplied, nil
	}
	bp, err := c.decodeBypass()
	if err != nil {
		return 0, err
	}
	if bp == 0 {
		return SAOBand, nil
	}
	return SAOEdge, nil
}

func (c *CABAC) decodeSAOOffsetAbs(bitDepth int) (int, error) {
	cMax := (1 << uint(min(bitDepth, 10))) - 5
	v := 0
	for v < cMax {
		b, err := c.decodeBypass()
		if err != nil {
			return 0, err
		}
		if b == 0 {
			break
		}
		v++
	}
	return v, nil
}

func (c *CABAC) decodeSAOOffsetSign() (int, error) { return c.decodeBypass() }

func (c *CABAC) decodeSAOBandPosition() (int, error) { return c.decodeBypassBits(5) }

func (c *CABAC) decodeSAOEOClass() (int, error) { return c.decodeBypassBits(2) }

func (c *CABAC) decodeEndOfSliceFlag() (bool, error) {
	v, err := c.decodeTerminate()
	return v == 1, err
}

func (c *CABAC) decodeEndOfSubsetOneBit() (bool, error) {
	v, err := c.decodeTerminate()
	return v == 1, err
}

func (c *CABAC) decodePCMFlag() (bool, error) {
	v, err := c.decodeTerminate()
	return v == 1, err
}

func (s *sliceCabacState) decodeCUTransquantBypassFlag(c *CABAC) (bool, error) {
	b, err := c.decodeBin(&s.cuTransquantBypass[0])
	return b == 1, err
}

// decodeSkipFlag takes ctxInc = [left skip] + [above skip].
func (s *sliceCabacState) decodeSkipFlag(c *CABAC, ctxInc int) (bool, error) {
	b, err := c.decodeBin(&s.skipFlag[ctxInc])
	return b == 1, err
}

func (s *sliceCabacState) decodePredModeFlag(c *CABAC) (bool, error) {
	b, err := c.decodeBin(&s.predModeFlag[0])
	return b == 1, err
}

// decodeSplitCUFlag takes ctxInc = [left depth > ct_depth] + [above depth > ct_depth].
func (s *sliceCabacState) decodeSplitCUFlag(c *CABAC, ctxInc int) (bool, error) {
	b, err := c.decodeBin(&s.splitCUFlag[ctxInc])
	return b == 1, err
}

// PartMode values, Table 7-10.
const (
	Part2Nx2N = iota
	Part2NxN
	PartNx2N
	PartNxN
	Part2NxnU
	Part2NxnD
	PartnLx2N
	PartnRx2N
)

// decodePartMode implements the state machine of spec.md §4.5.
func (s *sliceCabacState) decodePartMode(c *CABAC, isIntra, ampEnabled bool, log2CbSize, minCbLog2 int) (int, error) {
	bin0, err := c.decodeBin(&s.partMode[0])
	if err != nil {
		return 0, err
	}
	if bin0 == 1 {
		return Part2Nx2N, nil
	}

	if log2CbSize == minCbLog2 {
		if isIntra {
			return PartNxN, nil
		}
		bin1, err := c.decodeBin(&s.partMode[1])
		if err != nil {
			return 0, err
		}
		if bin1 == 1 {
			return Part2NxN, nil
		}
		if log2CbSize == 3 {
			return PartNx2N, nil
		}
		bin2, err := c.decodeBin(&s.partMode[2])
		if err != nil {
			return 0, err
		}
		if bin2 == 1 {
			return PartNx2N, nil
		}
		return PartNxN, nil
	}

	bin1, err := c.decodeBin(&s.partMode[1])
	if err != nil {
		return 0, err
	}
	if !ampEnabled {
		if bin1 == 1 {
			return Part2NxN, nil
		}
		return PartNx2N, nil
	}
	if bin1 == 1 {
		bin2, err := c.decodeBin(&s.partMode[3])
		if err != nil {
			return 0, err
		}
		if bin2 == 1 {
			return Part2NxN, nil
		}
		bp, err := c.decodeBypass()
		if err != nil {
			return 0, err
		}
		if bp == 1 {
			return Part2NxnD, nil
		}
		return Part2NxnU, nil
	}
	bin2, err := c.decodeBin(&s.partMode[3])
	if err != nil {
		return 0, err
	}
	if bin2 == 1 {
		return PartNx2N, nil
	}
	bp, err := c.decodeBypass()
	if err != nil {
		return 0, err
	}
	if bp == 1 {
		return PartnRx2N, nil
	}
	return PartnLx2N, nil
}

func (s *sliceCabacState) decodePrevIntraLumaPredFlag(c *CABAC) (bool, error) {
	b, err := c.decodeBin(&s.prevIntraLumaPredFlag[0])
	return b == 1, err
}

func (c *CABAC) decodeMPMIdx() (int, error) { return decodeTUBypass(c, 2) }

func (c *CABAC) decodeRemIntraLumaPredMode() (int, error) { return c.decodeBypassBits(5) }

// decodeIntraChromaPredMode returns 0..3 for the explicit table entries or
// 4 to mean "derive from luma" (spec.md §4.7).
func (s *sliceCabacState) decodeIntraChromaPredMode(c *CABAC) (int, error) {
	b, err := c.decodeBin(&s.intraChromaPredMode[0])
	if err != nil {
		return 0, err
	}
	if b == 0 {
		return 4, nil
	}
	v, err := c.decodeBypassBits(2)
	return v, err
}

func (s *sliceCabacState) decodeRQTRootCBF(c *CABAC) (bool, error) {
	b, err := c.decodeBin(&s.rqtRootCBF[0])
	return b == 1, err
}

func (s *sliceCabacState) decodeMergeFlag(c *CABAC) (bool, error) {
	b, err := c.decodeBin(&s.mergeFlag[0])
	return b == 1, err
}

func (s *sliceCabacState) decodeMergeIdx(c *CABAC, maxCand int) (int, error) {
	b, err := c.decodeBin(&s.mergeIdx[0])
	if err != nil {
		return 0, err
	}
	if b == 0 {
		return 0, nil
	}
	rest, err := decodeTUBypass(c, maxCand-1)
	if err != nil {
		return 0, err
	}
	return 1 + rest, nil
}

// decodeInterPredIdc takes a depth-indexed ctx for PbW+PbH != 12, else
// ctx 4 (spec.md §4.5). Returns PRED_L0, PRED_L1, or PRED_BI.
func (s *sliceCabacState) decodeInterPredIdc(c *CABAC, ctDepth int, pbwPlusPbh int) (int, error) {
	if pbwPlusPbh != 12 {
		b, err := c.decodeBin(&s.interPredIdc[ctDepth])
		if err != nil {
			return 0, err
		}
		if b == 1 {
			return PredBi, nil
		}
	}
	b, err := c.decodeBin(&s.interPredIdc[4])
	if err != nil {
		return 0, err
	}
	if b == 1 {
		return PredL1, nil
	}
	return PredL0, nil
}

// Prediction direction values.
const (
	PredL0 = iota
	PredL1
	PredBi
)

func (s *sliceCabacState) decodeRefIdx(c *CABAC, numRefIdxActive int) (int, error) {
	if numRefIdxActive <= 1 {
		return 0, nil
	}
	b, err := c.decodeBin(&s.refIdx[0])
	if err != nil {
		return 0, err
	}
	if b == 0 {
		return 0, nil
	}
	if numRefIdxActive == 2 {
		return 1, nil
	}
	b, err = c.decodeBin(&s.refIdx[1])
	if err != nil {
		return 0, err
	}
	if b == 0 {
		return 1, nil
	}
	rest, err := decodeTUBypass(c, numRefIdxActive-3)
	return 2 + rest, err
}

func (s *sliceCabacState) decodeMVPFlag(c *CABAC) (bool, error) {
	b, err := c.decodeBin(&s.mvpFlag[0])
	return b == 1, err
}

// decodeSplitTransformFlag takes ctx = 5 - log2_trafo_size.
func (s *sliceCabacState) decodeSplitTransformFlag(c *CABAC, log2TrafoSize int) (bool, error) {
	b, err := c.decodeBin(&s.splitTransformFlag[5-log2TrafoSize])
	return b == 1, err
}

// decodeCBFCbCr takes ctx = trafo_depth.
func (s *sliceCabacState) decodeCBFCbCr(c *CABAC, trafoDepth int) (bool, error) {
	b, err := c.decodeBin(&s.cbfCbCr[trafoDepth])
	return b == 1, err
}

// decodeCBFLuma takes ctx = !trafo_depth.
func (s *sliceCabacState) decodeCBFLuma(c *CABAC, trafoDepth int) (bool, error) {
	ctx := 1
	if trafoDepth == 0 {
		ctx = 0
	}
	b, err := c.decodeBin(&s.cbfLuma[ctx])
	return b == 1, err
}

func (s *sliceCabacState) decodeTransformSkipFlag(c *CABAC, cIdx int) (bool, error) {
	ctx := 0
	if cIdx != 0 {
		ctx = 1
	}
	b, err := c.decodeBin(&s.transformSkipFlag[ctx])
	return b == 1, err
}

// decodeLastSigCoeffPrefix decodes last_sig_coeff_{x,y}_prefix per
// spec.md §4.5's context-offset/shift formula.
func decodeLastSigCoeffPrefix(c *CABAC, ctxArr []context, elemOffset, log2Size int, luma bool) (int, error) {
	var ctxOffset, ctxShift int
	if luma {
		ctxOffset = 3*(log2Size-2) + ((log2Size - 1) >> 2)
		ctxShift = (log2Size + 1) >> 2
	} else {
		ctxOffset = 15
		ctxShift = log2Size - 2
	}
	max := 2*log2Size - 1
	v := 0
	for v < max {
		idx := elemOffset + (v >> uint(ctxShift)) + ctxOffset
		b, err := c.decodeBin(&ctxArr[idx])
		if err != nil {
			return 0, err
		}
		if b == 0 {
			break
		}
		v++
	}
	return v, nil
}

// decodeLastSigCoeffSuffix reconstructs the coordinate from its prefix,
// reading ((prefix>>1)-1) bypass bits when prefix > 3.
func decodeLastSigCoeffSuffix(c *CABAC, prefix int) (int, error) {
	if prefix <= 3 {
		return prefix, nil
	}
	nbits := (prefix >> 1) - 1
	suffix, err := c.decodeBypassBits(nbits)
	if err != nil {
		return 0, err
	}
	return (1 << uint(nbits)) * (2 + (prefix & 1)) + suffix, nil
}

func (s *sliceCabacState) decodeSigCoeffGroupFlag(c *CABAC, ctxInc int) (bool, error) {
	b, err := c.decodeBin(&s.sigCoeffGroupFlag[ctxInc])
	return b == 1, err
}

func (s *sliceCabacState) decodeSigCoeffFlag(c *CABAC, ctxInc int) (bool, error) {
	b, err := c.decodeBin(&s.sigCoeffFlag[ctxInc])
	return b == 1, err
}

func (s *sliceCabacState) decodeCoeffAbsGreater1Flag(c *CABAC, ctxSet, idxInSet int) (bool, error) {
	idx := ctxSet*4 + idxInSet
	if idx >= len(s.coeffAbsGreater1) {
		idx = len(s.coeffAbsGreater1) - 1
	}
	b, err := c.decodeBin(&s.coeffAbsGreater1[idx])
	return b == 1, err
}

func (s *sliceCabacState) decodeCoeffAbsGreater2Flag(c *CABAC, ctxSet int) (bool, error) {
	idx := ctxSet
	if idx >= len(s.coeffAbsGreater2) {
		idx = len(s.coeffAbsGreater2) - 1
	}
	b, err := c.decodeBin(&s.coeffAbsGreater2[idx])
	return b == 1, err
}

func (c *CABAC) decodeCoeffSignFlag() (int, error) { return c.decodeBypass() }

// decodeCoeffAbsLevelRemaining decodes the adaptive-Rice-coded remainder,
// per spec.md §4.9/§4.5.
func (c *CABAC) decodeCoeffAbsLevelRemaining(riceParam int) (int, error) {
	return decodeBypassUE(c, riceParam)
}

// decodeTUBypass decodes a bypass-coded truncated-unary value with the
// given cMax.
func decodeTUBypass(c *CABAC, cMax int) (int, error) {
	v := 0
	for v < cMax {
		b, err := c.decodeBypass()
		if err != nil {
			return 0, err
		}
		if b == 0 {
			break
		}
		v++
	}
	return v, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
