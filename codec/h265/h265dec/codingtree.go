/*
NAME
  codingtree.go

DESCRIPTION
  codingtree.go implements coding_quadtree, coding_unit, prediction_unit,
  and mvd_coding, as defined in sections 7.3.8.4-7.3.8.7, recursing down
  from one CTB's root to its leaf coding units and dispatching each leaf
  to intra or inter prediction plus transform_tree.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

// ctuDecoder carries everything coding_quadtree and its descendants need
// for one CTB, threaded by pointer through the recursion instead of a
// long repeated parameter list.
type ctuDecoder struct {
	c   *CABAC
	cs  *sliceCabacState
	ps  *pictureState
	sps *SPS
	pps *PPS
	sh  *SliceHeader

	ctbAddrRS     int
	ctbAddrTS     int
	sliceCbAddrZs int

	predictor PredictorCapability
	dsp       DSPCapability
}

// decodeCTU decodes one coding tree unit starting at its root node and
// reports whether end_of_slice_segment_flag was read (and its value),
// per coding_tree_unit() (section 7.3.8.2).
func (d *ctuDecoder) decodeCTU() (endOfSlice bool, err error) {
	x0 := (d.ctbAddrRS % d.sps.PicWidthInCtbs) << uint(d.sps.Log2CtbSize)
	y0 := (d.ctbAddrRS / d.sps.PicWidthInCtbs) << uint(d.sps.Log2CtbSize)

	if err := d.decodeSAO(); err != nil {
		return false, err
	}

	if _, err := d.decodeCodingQuadtree(x0, y0, d.sps.Log2CtbSize, 0); err != nil {
		return false, err
	}
	d.ps.ctbAvailable[d.ctbAddrRS] = true

	b, err := d.c.decodeEndOfSliceFlag()
	if err != nil {
		return false, err
	}
	return b, nil
}

// decodeSAO parses this CTB's sao() syntax (section 7.3.8.3), merging
// from the left or above neighbour's parameters when available and in
// the same tile; a neighbour in a different tile or not yet decoded is
// treated as absent, so its merge flag is never read.
func (d *ctuDecoder) decodeSAO() error {
	if !d.sh.SAOLuma && !d.sh.SAOChroma {
		return nil
	}

	picWidthInCtbs := d.sps.PicWidthInCtbs
	rx := d.ctbAddrRS % picWidthInCtbs
	ry := d.ctbAddrRS / picWidthInCtbs

	var left, up *SAOParams
	if rx > 0 {
		leftRS := d.ctbAddrRS - 1
		if d.ps.ctbAvailable[leftRS] && d.pps.TileID[d.pps.CtbAddrRSToTS[leftRS]] == d.pps.TileID[d.ctbAddrTS] {
			left = &d.ps.sao[leftRS]
		}
	}
	if ry > 0 {
		upRS := d.ctbAddrRS - picWidthInCtbs
		if d.ps.ctbAvailable[upRS] && d.pps.TileID[d.pps.CtbAddrRSToTS[upRS]] == d.pps.TileID[d.ctbAddrTS] {
			up = &d.ps.sao[upRS]
		}
	}

	params, err := parseSAO(d.c, d.cs, d.sh, d.sps, d.pps, d.ps, d.ctbAddrRS, rx, ry, left, up)
	if err != nil {
		return err
	}
	d.ps.sao[d.ctbAddrRS] = params
	return nil
}

// decodeCodingQuadtree implements coding_quadtree() (section 7.3.8.4),
// returning whether any part of the node's area remains within the
// picture (spec.md §4.6's "more_data").
func (d *ctuDecoder) decodeCodingQuadtree(x0, y0, log2CbSize, ctDepth int) (bool, error) {
	picW := d.sps.PicWidthInLumaSamples
	picH := d.sps.PicHeightInLumaSamples
	size := 1 << uint(log2CbSize)

	split := log2CbSize > d.sps.Log2MinCodingBlockSize
	canParse := x0+size <= picW && y0+size <= picH && split
	if canParse {
		zAddr := d.pps.MinCbAddrZS[d.minCbRasterIndex(x0, y0)]
		canParse = zAddr >= d.sliceCbAddrZs
	}

	if canParse {
		ctxInc := 0
		if d.ctDepthAt(x0-1, y0) > ctDepth {
			ctxInc++
		}
		if d.ctDepthAt(x0, y0-1) > ctDepth {
			ctxInc++
		}
		b, err := d.cs.decodeSplitCUFlag(d.c, ctxInc)
		if err != nil {
			return false, err
		}
		split = b
	}

	if split {
		half := size / 2
		more := false
		for i := 0; i < 4; i++ {
			cx := x0 + (i%2)*half
			cy := y0 + (i/2)*half
			if cx >= picW || cy >= picH {
				continue
			}
			m, err := d.decodeCodingQuadtree(cx, cy, log2CbSize-1, ctDepth+1)
			if err != nil {
				return false, err
			}
			more = more || m
		}
		return more || (x0+size <= picW && y0+size <= picH), nil
	}

	if err := d.decodeCodingUnit(x0, y0, log2CbSize); err != nil {
		return false, err
	}
	d.setCtDepth(x0, y0, log2CbSize, int8(ctDepth))
	return x0+size <= picW && y0+size <= picH, nil
}

func (d *ctuDecoder) minCbRasterIndex(x, y int) int {
	mx := x >> uint(d.sps.Log2MinCodingBlockSize)
	my := y >> uint(d.sps.Log2MinCodingBlockSize)
	return my*d.sps.PicWidthInMinCbs + mx
}

func (d *ctuDecoder) ctDepthAt(x, y int) int {
	if !d.ps.minCbAvailable(x, y, d.ctbAddrTS) {
		return 0
	}
	return int(d.ps.ctDepth[d.ps.minCbIndex(x, y)])
}

func (d *ctuDecoder) setCtDepth(x0, y0, log2CbSize int, depth int8) {
	size := 1 << uint(log2CbSize)
	log2Min := uint(d.sps.Log2MinCodingBlockSize)
	for y := y0; y < y0+size; y += 1 << log2Min {
		for x := x0; x < x0+size; x += 1 << log2Min {
			if x >= d.sps.PicWidthInLumaSamples || y >= d.sps.PicHeightInLumaSamples {
				continue
			}
			d.ps.ctDepth[d.ps.minCbIndex(x, y)] = depth
		}
	}
}

func (d *ctuDecoder) setSkipFlag(x0, y0, log2CbSize int, v bool) {
	size := 1 << uint(log2CbSize)
	log2Min := uint(d.sps.Log2MinCodingBlockSize)
	for y := y0; y < y0+size; y += 1 << log2Min {
		for x := x0; x < x0+size; x += 1 << log2Min {
			if x >= d.sps.PicWidthInLumaSamples || y >= d.sps.PicHeightInLumaSamples {
				continue
			}
			d.ps.skipFlag[d.ps.minCbIndex(x, y)] = v
		}
	}
}

func (d *ctuDecoder) skipFlagAt(x, y int) bool {
	if !d.ps.minCbAvailable(x, y, d.ctbAddrTS) {
		return false
	}
	return d.ps.skipFlag[d.ps.minCbIndex(x, y)]
}

// decodeCodingUnit implements coding_unit() (section 7.3.8.5).
func (d *ctuDecoder) decodeCodingUnit(x0, y0, log2CbSize int) error {
	transquantBypass := false
	if d.pps.TransquantBypassEnableFlag {
		b, err := d.cs.decodeCUTransquantBypassFlag(d.c)
		if err != nil {
			return err
		}
		transquantBypass = b
	}

	skip := false
	if d.sh.SliceType != SliceTypeI {
		ctxInc := 0
		if d.skipFlagAt(x0-1, y0) {
			ctxInc++
		}
		if d.skipFlagAt(x0, y0-1) {
			ctxInc++
		}
		b, err := d.cs.decodeSkipFlag(d.c, ctxInc)
		if err != nil {
			return err
		}
		skip = b
	}
	d.setSkipFlag(x0, y0, log2CbSize, skip)

	if skip {
		_, err := d.decodePredictionUnit(x0, y0, log2CbSize, 1<<uint(log2CbSize), 1<<uint(log2CbSize), true)
		return err
	}

	isIntra := d.sh.SliceType == SliceTypeI
	if !isIntra {
		b, err := d.cs.decodePredModeFlag(d.c)
		if err != nil {
			return err
		}
		isIntra = b
	}
	d.setPredModeIntra(x0, y0, log2CbSize, isIntra)

	partMode := Part2Nx2N
	if !isIntra || log2CbSize == d.sps.Log2MinCodingBlockSize {
		pm, err := d.cs.decodePartMode(d.c, isIntra, d.sps.AMPEnabledFlag, log2CbSize, d.sps.Log2MinCodingBlockSize)
		if err != nil {
			return err
		}
		partMode = pm
	}
	intraSplit := isIntra && partMode == PartNxN

	if isIntra {
		if d.sps.PCMEnabledFlag && partMode == Part2Nx2N &&
			log2CbSize >= int(d.sps.PCM.Log2MinPCMCodingBlockSize) &&
			log2CbSize <= int(d.sps.PCM.Log2MinPCMCodingBlockSize)+int(d.sps.PCM.Log2DiffMaxMinPCMCodingBlockSize) {
			pcmFlag, err := d.c.decodePCMFlag()
			if err != nil {
				return err
			}
			if pcmFlag {
				return d.decodePCMSamples(x0, y0, log2CbSize)
			}
		}
		return d.decodeIntraCU(x0, y0, log2CbSize, partMode, intraSplit, transquantBypass)
	}

	return d.decodeInterCU(x0, y0, log2CbSize, partMode, transquantBypass)
}

func (d *ctuDecoder) setPredModeIntra(x0, y0, log2CbSize int, v bool) {
	size := 1 << uint(log2CbSize)
	log2Min := uint(d.sps.Log2MinCodingBlockSize)
	for y := y0; y < y0+size; y += 1 << log2Min {
		for x := x0; x < x0+size; x += 1 << log2Min {
			if x >= d.sps.PicWidthInLumaSamples || y >= d.sps.PicHeightInLumaSamples {
				continue
			}
			d.ps.predModeIntra[d.ps.minCbIndex(x, y)] = v
		}
	}
}

// partGeometry returns the number of PUs and each PU's (x,y,w,h) offsets
// relative to the CU's (x0,y0), for the part_mode values of Table 7-10.
func partGeometry(log2CbSize, partMode int) [][4]int {
	size := 1 << uint(log2CbSize)
	half := size / 2
	quarter := size / 4
	switch partMode {
	case Part2NxN:
		return [][4]int{{0, 0, size, half}, {0, half, size, half}}
	case PartNx2N:
		return [][4]int{{0, 0, half, size}, {half, 0, half, size}}
	case PartNxN:
		return [][4]int{{0, 0, half, half}, {half, 0, half, half}, {0, half, half, half}, {half, half, half, half}}
	case Part2NxnU:
		return [][4]int{{0, 0, size, quarter}, {0, quarter, size, size - quarter}}
	case Part2NxnD:
		return [][4]int{{0, 0, size, size - quarter}, {0, size - quarter, size, quarter}}
	case PartnLx2N:
		return [][4]int{{0, 0, quarter, size}, {quarter, 0, size - quarter, size}}
	case PartnRx2N:
		return [][4]int{{0, 0, size - quarter, size}, {size - quarter, 0, quarter, size}}
	default:
		return [][4]int{{0, 0, size, size}}
	}
}

// decodeIntraCU decodes the intra branch of coding_unit(), per spec.md
// §4.6/§4.7.
func (d *ctuDecoder) decodeIntraCU(x0, y0, log2CbSize, partMode int, intraSplit bool, transquantBypass bool) error {
	nParts := 1
	if intraSplit {
		nParts = 4
	}
	prevFlags := make([]bool, nParts)
	for i := 0; i < nParts; i++ {
		b, err := d.cs.decodePrevIntraLumaPredFlag(d.c)
		if err != nil {
			return err
		}
		prevFlags[i] = b
	}

	var geom [][4]int
	if intraSplit {
		half := 1 << uint(log2CbSize-1)
		geom = [][4]int{{0, 0, half, half}, {half, 0, half, half}, {0, half, half, half}, {half, half, half, half}}
	} else {
		geom = [][4]int{{0, 0, 1 << uint(log2CbSize), 1 << uint(log2CbSize)}}
	}

	lumaModes := make([]int, nParts)
	for i := 0; i < nParts; i++ {
		px, py := x0+geom[i][0], y0+geom[i][1]
		candLeft := d.lumaModeAt(px-1, py, y0)
		candUp := d.lumaModeAt(px, py-1, y0)

		mode := 0
		if prevFlags[i] {
			idx, err := d.c.decodeMPMIdx()
			if err != nil {
				return err
			}
			mode = deriveLumaIntraPredMode(candLeft, candUp, true, idx, 0)
		} else {
			rem, err := d.c.decodeRemIntraLumaPredMode()
			if err != nil {
				return err
			}
			mode = deriveLumaIntraPredMode(candLeft, candUp, false, 0, rem)
		}
		lumaModes[i] = mode
		d.setLumaMode(px, py, geom[i][2], mode)
	}

	chromaCode, err := d.cs.decodeIntraChromaPredMode(d.c)
	if err != nil {
		return err
	}
	chromaMode := deriveChromaIntraPredMode(chromaCode, lumaModes[0])

	return d.decodeResidualAndTransform(x0, y0, log2CbSize, log2CbSize, true, intraSplit, false, lumaModes, chromaMode, transquantBypass, 0)
}

func (d *ctuDecoder) lumaModeAt(x, y, ctbY0 int) int {
	if !d.ps.minCbAvailable(x, y, d.ctbAddrTS) || !d.ps.predModeIntra[d.safeMinCbIndex(x, y)] {
		return intraModeDC
	}
	if y < ctbY0 {
		return intraModeDC
	}
	return int(d.ps.intraPredModeY[d.ps.minCbIndex(x, y)])
}

func (d *ctuDecoder) safeMinCbIndex(x, y int) int {
	if x < 0 || y < 0 || x >= d.sps.PicWidthInLumaSamples || y >= d.sps.PicHeightInLumaSamples {
		return 0
	}
	return d.ps.minCbIndex(x, y)
}

func (d *ctuDecoder) setLumaMode(x0, y0, size, mode int) {
	log2Min := uint(d.sps.Log2MinCodingBlockSize)
	for y := y0; y < y0+size; y += 1 << log2Min {
		for x := x0; x < x0+size; x += 1 << log2Min {
			if x >= d.sps.PicWidthInLumaSamples || y >= d.sps.PicHeightInLumaSamples {
				continue
			}
			d.ps.intraPredModeY[d.ps.minCbIndex(x, y)] = uint8(mode)
		}
	}
}

// decodeInterCU decodes the inter branch of coding_unit(). Motion-vector
// and reference-index syntax is parsed in full for bitstream alignment;
// actual motion-compensated sample fetch is out of scope for this
// snapshot (see DESIGN.md) and the predicted block is not written, so it
// keeps the plane's current samples (zero where this picture has not
// written them yet).
func (d *ctuDecoder) decodeInterCU(x0, y0, log2CbSize, partMode int, transquantBypass bool) error {
	geom := partGeometry(log2CbSize, partMode)
	rqtRootCbf := true
	for i, g := range geom {
		merge, err := d.decodePredictionUnit(x0+g[0], y0+g[1], log2CbSize, g[2], g[3], false)
		if err != nil {
			return err
		}
		if i == len(geom)-1 && len(geom) == 1 && merge {
			b, err := d.cs.decodeRQTRootCBF(d.c)
			if err != nil {
				return err
			}
			rqtRootCbf = b
		}
	}
	if !rqtRootCbf {
		return nil
	}
	return d.decodeResidualAndTransform(x0, y0, log2CbSize, log2CbSize, false, false, false, nil, 0, transquantBypass, 0)
}

// decodePredictionUnit implements prediction_unit() (section 7.3.8.6) for
// one PU rectangle relative to the CU. Returns merge_flag's value; for a
// skip CU merge_flag is not coded and the PU is merge-only.
func (d *ctuDecoder) decodePredictionUnit(x0, y0, log2CbSize, w, h int, skip bool) (bool, error) {
	merge := skip
	if !skip {
		m, err := d.cs.decodeMergeFlag(d.c)
		if err != nil {
			return false, err
		}
		merge = m
	}

	maxMergeCand := 5 - d.sh.FiveMinusMaxNumMergeCand
	if merge {
		if maxMergeCand > 1 {
			if _, err := d.cs.decodeMergeIdx(d.c, maxMergeCand); err != nil {
				return true, err
			}
		}
		return true, nil
	}

	interDir := PredBi
	if d.sh.SliceType == SliceTypeP {
		interDir = PredL0
	} else {
		dir, err := d.cs.decodeInterPredIdc(d.c, 0, w+h)
		if err != nil {
			return false, err
		}
		interDir = dir
	}

	if interDir == PredL0 || interDir == PredBi {
		if err := d.decodeMVDAndRef(d.sh.NumRefIdxL0Active); err != nil {
			return false, err
		}
	}
	if interDir == PredL1 || interDir == PredBi {
		if d.sh.MVDL1ZeroFlag && interDir == PredBi {
			// mvd_coding is not parsed; it is taken as (0,0).
			if _, err := d.cs.decodeRefIdx(d.c, d.sh.NumRefIdxL1Active); err != nil {
				return false, err
			}
			if _, err := d.cs.decodeMVPFlag(d.c); err != nil {
				return false, err
			}
		} else if err := d.decodeMVDAndRef(d.sh.NumRefIdxL1Active); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (d *ctuDecoder) decodeMVDAndRef(numRefIdxActive int) error {
	if _, err := d.cs.decodeRefIdx(d.c, numRefIdxActive); err != nil {
		return err
	}
	if _, _, err := d.decodeMVDCoding(); err != nil {
		return err
	}
	if _, err := d.cs.decodeMVPFlag(d.c); err != nil {
		return err
	}
	return nil
}

// decodeMVDCoding implements mvd_coding() (section 7.3.8.7): two signed
// values binarized as exp-Golomb-order-1-like truncated-unary prefixes
// with bypass suffixes, abs_mvd_greater0_flag/greater1_flag plus the
// remaining magnitude and a sign bit.
func (d *ctuDecoder) decodeMVDCoding() (int, int, error) {
	g0x, err := d.c.decodeBypass()
	if err != nil {
		return 0, 0, err
	}
	g0y, err := d.c.decodeBypass()
	if err != nil {
		return 0, 0, err
	}

	var g1x, g1y int
	if g0x != 0 {
		g1x, err = d.c.decodeBypass()
		if err != nil {
			return 0, 0, err
		}
	}
	if g0y != 0 {
		g1y, err = d.c.decodeBypass()
		if err != nil {
			return 0, 0, err
		}
	}

	mvx, err := d.decodeOneMVDComponent(g0x, g1x)
	if err != nil {
		return 0, 0, err
	}
	mvy, err := d.decodeOneMVDComponent(g0y, g1y)
	if err != nil {
		return 0, 0, err
	}
	return mvx, mvy, nil
}

func (d *ctuDecoder) decodeOneMVDComponent(greater0, greater1 int) (int, error) {
	if greater0 == 0 {
		return 0, nil
	}
	abs := 1
	if greater1 != 0 {
		rem, err := decodeBypassUE(d.c, 1)
		if err != nil {
			return 0, err
		}
		abs = 2 + rem
	}
	sign, err := d.c.decodeBypass()
	if err != nil {
		return 0, err
	}
	if sign == 1 {
		return -abs, nil
	}
	return abs, nil
}

// decodePCMSamples reads pcm_sample() (section 7.3.8.8): byte-aligned,
// fixed-length packed luma then chroma samples with no entropy coding,
// followed by CABAC engine reinitialization.
func (d *ctuDecoder) decodePCMSamples(x0, y0, log2CbSize int) error {
	if err := d.c.br.AlignToByte(); err != nil {
		return newErr(InsufficientData, err, "could not align before pcm_sample")
	}
	size := 1 << uint(log2CbSize)
	lumaBits := int(d.sps.PCM.BitDepthLuma)
	chromaBits := int(d.sps.PCM.BitDepthChroma)
	lumaShift := uint(d.sps.BitDepthLuma - lumaBits)
	chromaShift := uint(d.sps.BitDepthChroma - chromaBits)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v, err := d.c.br.ReadBits(lumaBits)
			if err != nil {
				return newErr(InsufficientData, err, "could not read pcm_sample_luma")
			}
			px, py := x0+x, y0+y
			if px < d.sps.PicWidthInLumaSamples && py < d.sps.PicHeightInLumaSamples {
				d.ps.lumaSamples[py*d.sps.PicWidthInLumaSamples+px] = uint8(v << lumaShift)
			}
		}
	}
	chromaSize := size / 2
	chromaStride := d.sps.PicWidthInLumaSamples / 2
	for _, plane := range []*[]uint8{&d.ps.cbSamples, &d.ps.crSamples} {
		for y := 0; y < chromaSize; y++ {
			for x := 0; x < chromaSize; x++ {
				v, err := d.c.br.ReadBits(chromaBits)
				if err != nil {
					return newErr(InsufficientData, err, "could not read pcm_sample_chroma")
				}
				px, py := x0/2+x, y0/2+y
				if px < chromaStride && py*chromaStride+px < len(*plane) {
					(*plane)[py*chromaStride+px] = uint8(v << chromaShift)
				}
			}
		}
	}
	return d.c.reinit()
}
