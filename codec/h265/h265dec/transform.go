/*
NAME
  transform.go

DESCRIPTION
  transform.go implements transform_tree and transform_unit, as defined
  in sections 7.3.8.8-7.3.8.10, recursing from a coding unit's root
  transform block down to its leaves, invoking intra prediction and
  residual reconstruction at each leaf.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

// decodeResidualAndTransform is the entry point coding_unit() calls once
// it has decided a CU's prediction mode(s); it computes max_trafo_depth
// and starts transform_tree recursion at depth 0 (spec.md §4.8).
func (d *ctuDecoder) decodeResidualAndTransform(x0, y0, log2CbSize, log2TrafoSize int, isIntra, intraSplit bool,
	_ bool, lumaModes []int, chromaMode int, transquantBypass bool, _ int) error {

	maxDepth := d.sps.MaxTransformHierarchyDepthInter
	if isIntra {
		maxDepth = d.sps.MaxTransformHierarchyDepthIntra
		if intraSplit {
			maxDepth++
		}
	}

	qpY := d.deriveQPY()
	return d.transformTree(x0, y0, x0, y0, log2TrafoSize, 0, 0, isIntra, intraSplit, maxDepth,
		lumaModes, chromaMode, transquantBypass, true, true, qpY)
}

// deriveQPY derives qp_y per spec.md §4.9 with cu_qp_delta taken as 0
// (PPS.CuQpDeltaEnabledFlag is rejected by ParsePPS, so the per-CU delta
// term never applies).
func (d *ctuDecoder) deriveQPY() int {
	qpBdOffset := d.sps.QPBDOffsetLuma
	mod := 52 + qpBdOffset
	qpY := ((d.sh.SliceQPY + 52 + 2*qpBdOffset) % mod) - qpBdOffset
	return qpY
}

// chromaQPTable and deriveChromaQP map qp_y plus a channel offset to the
// chroma QP per the piecewise table of spec.md §4.9; the table covers
// qPi 30..43.
var chromaQPTable = [14]int{29, 30, 31, 32, 33, 33, 34, 34, 35, 35, 36, 36, 37, 37}

func deriveChromaQP(qpY, qpBdOffsetChroma, offset int) int {
	qpI := clip3(-qpBdOffsetChroma, 57, qpY+offset)
	var qp int
	switch {
	case qpI < 30:
		qp = qpI
	case qpI > 43:
		qp = qpI - 6
	default:
		qp = chromaQPTable[qpI-30]
	}
	return qp + qpBdOffsetChroma
}

// transformTree implements transform_tree() (section 7.3.8.8).
func (d *ctuDecoder) transformTree(x0, y0, xBase, yBase, log2TrafoSize, trafoDepth, blkIdx int,
	isIntra, intraSplit bool, maxDepth int, lumaModes []int, chromaMode int, transquantBypass bool,
	parentCbfCb, parentCbfCr bool, qpY int) error {

	cbfCb, err := d.deriveOrDecodeCbf(parentCbfCb, trafoDepth, log2TrafoSize, func() (bool, error) {
		return d.cs.decodeCBFCbCr(d.c, trafoDepth)
	})
	if err != nil {
		return err
	}
	cbfCr, err := d.deriveOrDecodeCbf(parentCbfCr, trafoDepth, log2TrafoSize, func() (bool, error) {
		return d.cs.decodeCBFCbCr(d.c, trafoDepth)
	})
	if err != nil {
		return err
	}

	canParseSplit := log2TrafoSize > d.sps.Log2MinTransformBlockSize &&
		log2TrafoSize <= d.sps.Log2MinTransformBlockSize+d.sps.Log2DiffMaxMinCodingBlockSize &&
		trafoDepth < maxDepth &&
		!(intraSplit && trafoDepth == 0)

	split := false
	if canParseSplit {
		b, err := d.cs.decodeSplitTransformFlag(d.c, log2TrafoSize)
		if err != nil {
			return err
		}
		split = b
	} else {
		split = log2TrafoSize > d.sps.Log2MinTransformBlockSize+d.sps.Log2DiffMaxMinCodingBlockSize ||
			(intraSplit && trafoDepth == 0)
	}

	if split {
		half := 1 << uint(log2TrafoSize-1)
		for i := 0; i < 4; i++ {
			cx := x0 + (i%2)*half
			cy := y0 + (i/2)*half
			if err := d.transformTree(cx, cy, x0, y0, log2TrafoSize-1, trafoDepth+1, i,
				isIntra, intraSplit, maxDepth, lumaModes, chromaMode, transquantBypass, cbfCb, cbfCr, qpY); err != nil {
				return err
			}
		}
		return nil
	}

	cbfLuma := true
	if !isIntra || trafoDepth > 0 || cbfCb || cbfCr {
		b, err := d.cs.decodeCBFLuma(d.c, trafoDepth)
		if err != nil {
			return err
		}
		cbfLuma = b
	}

	return d.decodeTransformUnit(x0, y0, xBase, yBase, log2TrafoSize, trafoDepth, blkIdx,
		isIntra, lumaModes, chromaMode, transquantBypass, cbfLuma, cbfCb, cbfCr, qpY)
}

// deriveOrDecodeCbf resolves one chroma CBF per spec.md §4.8: always
// decoded at depth 0; at deeper depths, decoded only if the parent CBF
// was set and the block isn't the 2x2 degenerate case, inherited from
// the parent otherwise.
func (d *ctuDecoder) deriveOrDecodeCbf(parent bool, trafoDepth, log2TrafoSize int, decode func() (bool, error)) (bool, error) {
	if trafoDepth == 0 {
		return decode()
	}
	if !parent {
		return false, nil
	}
	if log2TrafoSize == 2 {
		return parent, nil
	}
	return decode()
}

// decodeTransformUnit implements transform_unit() (section 7.3.8.10).
// Intra prediction for the leaf's channels runs unconditionally (a leaf
// with no residual still needs its predicted samples written); residual
// decoding and reconstruction run only for channels whose CBF is set.
func (d *ctuDecoder) decodeTransformUnit(x0, y0, xBase, yBase, log2TrafoSize, trafoDepth, blkIdx int,
	isIntra bool, lumaModes []int, chromaMode int, transquantBypass bool,
	cbfLuma, cbfCb, cbfCr bool, qpY int) error {

	lumaMode := IntraDC
	if isIntra && len(lumaModes) > 0 {
		idx := 0
		if len(lumaModes) == 4 {
			idx = blkIdx
		}
		if idx < len(lumaModes) {
			lumaMode = lumaModes[idx]
		}
	}

	if isIntra {
		d.predictor.IntraPred(d.ps, x0, y0, log2TrafoSize, 0, lumaMode)
	}
	if cbfLuma {
		scanIdx := scanIdxForMode(log2TrafoSize, isIntra, lumaMode)
		if err := d.decodeAndApplyResidual(x0, y0, log2TrafoSize, 0, scanIdx, transquantBypass, qpY, d.sps.QPBDOffsetLuma); err != nil {
			return err
		}
	}

	// Chroma is co-sited at half resolution; the 4x4-luma/2x2-chroma
	// degenerate case defers its chroma work to the parent's last
	// (blk_idx==3) leaf, per spec.md §4.8.
	chromaLog2 := log2TrafoSize - 1
	doChroma := log2TrafoSize > 2 || blkIdx == 3
	if !doChroma {
		return nil
	}
	cx, cy := xBase/2, yBase/2
	if log2TrafoSize > 2 {
		cx, cy = x0/2, y0/2
		chromaLog2 = log2TrafoSize - 1
	}

	for ch, cbf := range [2]bool{cbfCb, cbfCr} {
		cIdx := ch + 1
		if isIntra {
			d.predictor.IntraPred(d.ps, cx, cy, chromaLog2, cIdx, chromaMode)
		}
		if !cbf {
			continue
		}
		scanIdx := scanIdxForMode(chromaLog2, isIntra, chromaMode)
		offset := d.pps.CbQpOffset + d.sh.SliceCbQPOffset
		if cIdx == 2 {
			offset = d.pps.CrQpOffset + d.sh.SliceCrQPOffset
		}
		chromaQP := deriveChromaQP(qpY, d.sps.QPBDOffsetChroma, offset)
		if err := d.decodeAndApplyResidual(cx, cy, chromaLog2, cIdx, scanIdx, transquantBypass, chromaQP, d.sps.QPBDOffsetChroma); err != nil {
			return err
		}
	}
	return nil
}

// scanIdxForMode derives the coefficient scan order from the prediction
// mode, per spec.md §4.8: angular modes 6..14 use VERT, 22..30 use
// HORIZ, otherwise DIAG; the mode-dependent scan only applies to small
// intra blocks.
func scanIdxForMode(log2Size int, isIntra bool, mode int) int {
	if !isIntra || log2Size >= 4 {
		return ScanDiag
	}
	switch {
	case mode >= 6 && mode <= 14:
		return ScanVert
	case mode >= 22 && mode <= 30:
		return ScanHoriz
	default:
		return ScanDiag
	}
}

// decodeAndApplyResidual decodes one channel's residual_coding() and
// applies dequantization plus the inverse transform (or the
// transquant-bypass / transform-skip paths), writing the reconstructed
// samples into the picture plane.
func (d *ctuDecoder) decodeAndApplyResidual(x0, y0, log2Size, cIdx, scanIdx int, transquantBypass bool, qp, qpBdOffset int) error {
	block, transformSkip, err := residualCoding(d.c, d.cs, log2Size, cIdx, scanIdx,
		d.pps.TransformSkipEnabledFlag, transquantBypass, d.pps.SignDataHidingFlag)
	if err != nil {
		return err
	}

	plane, stride := planeFor(d.ps, cIdx)
	bitDepth := d.sps.BitDepthLuma
	if cIdx > 0 {
		bitDepth = d.sps.BitDepthChroma
	}
	dstOff := y0*stride + x0
	window := windowView(plane, stride, x0, y0, log2Size)

	switch {
	case transquantBypass:
		d.dsp.TransquantBypass(window, stride, block.Coeffs, log2Size)
	case transformSkip:
		d.dsp.Dequant(block.Coeffs, log2Size, qp, bitDepth)
		d.dsp.TransformSkip(window, stride, block.Coeffs, log2Size, bitDepth)
	default:
		d.dsp.Dequant(block.Coeffs, log2Size, qp, bitDepth)
		mode := IntraDC
		d.dsp.TransformAdd(window, stride, block.Coeffs, log2Size, cIdx, mode, bitDepth)
	}
	_ = dstOff
	return nil
}

// windowView returns a slice beginning at (x0,y0) in plane, sized so
// that row i of the block is at window[i*stride : i*stride+n]; callers
// index it exactly as they would the full plane, offset by the block's
// origin.
func windowView(plane []uint8, stride, x0, y0, log2Size int) []uint8 {
	off := y0*stride + x0
	if off >= len(plane) {
		return nil
	}
	return plane[off:]
}
