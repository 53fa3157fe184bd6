/*
NAME
  decodestate.go

DESCRIPTION
  decodestate.go defines the picture-scale state allocated once an SPS is
  activated and threaded through coding-tree, transform, and intra
  prediction recursion for the picture's lifetime (section 3 "Data
  Model"): the neighbour-derivation arrays coding_quadtree and
  transform_tree consult are picture-wide, not slice-local, so that
  dependent slice segments and CTB rows after the first see correct
  left/above context.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

// pictureState holds every picture-scale array the coding-tree, transform,
// and filtering stages read and write while decoding one picture's slices.
// It is allocated fresh whenever the active SPS changes (section 3).
type pictureState struct {
	sps *SPS
	pps *PPS

	widthInMinCbs  int
	heightInMinCbs int
	widthInMinTbs  int
	heightInMinTbs int

	// ctDepth holds the coding-quadtree depth at which each minimum coding
	// block was terminated, indexed [y*widthInMinCbs+x]; used to derive
	// split_cu_flag's left/above context increment.
	ctDepth []int8

	// skipFlag/predModeIntra record per-min-CB decisions: skipFlag is the
	// neighbour context for skip_flag, and predModeIntra tells lumaModeAt
	// whether a neighbour can supply an MPM candidate.
	skipFlag      []bool
	predModeIntra []bool

	// intraPredModeY holds the luma intra prediction mode per minimum
	// prediction-block unit, indexed [y*widthInMinCbs+x] at min-CB
	// granularity (section 4.7); unavailable (inter or not-yet-decoded)
	// entries read back as intraModeDC for MPM candidate derivation.
	intraPredModeY []uint8

	// lumaSamples/cbSamples/crSamples hold the reconstructed picture, one
	// byte per sample (this snapshot targets 8-bit 4:2:0 only; see
	// SPS.BitDepthLuma/BitDepthChroma rejection in ParseSPS).
	lumaSamples []uint8
	cbSamples   []uint8
	crSamples   []uint8

	// sao holds one parameter set per CTB, filled by sao.go while parsing
	// sao() and consumed by the in-loop SAO filter after deblocking.
	sao []SAOParams

	// ctbAvailable reports whether CTB raster address rs has been decoded
	// yet in this picture, used by decodeSAO to decide whether the left
	// and above SAO merge candidates exist.
	ctbAvailable []bool
}

const intraModeDC = 1

func newPictureState(sps *SPS, pps *PPS) *pictureState {
	numMinCbs := sps.PicWidthInMinCbs * sps.PicHeightInMinCbs
	numMinTbs := sps.PicWidthInMinTbs * sps.PicHeightInMinTbs
	numSamples := sps.PicWidthInLumaSamples * sps.PicHeightInLumaSamples
	numChromaSamples := numSamples / 4
	numCtbs := sps.PicWidthInCtbs * sps.PicHeightInCtbs

	ps := &pictureState{
		sps:            sps,
		pps:            pps,
		widthInMinCbs:  sps.PicWidthInMinCbs,
		heightInMinCbs: sps.PicHeightInMinCbs,
		widthInMinTbs:  sps.PicWidthInMinTbs,
		heightInMinTbs: sps.PicHeightInMinTbs,
		ctDepth:        make([]int8, numMinCbs),
		skipFlag:       make([]bool, numMinCbs),
		predModeIntra:  make([]bool, numMinCbs),
		intraPredModeY: make([]uint8, numMinCbs),
		lumaSamples:    make([]uint8, numSamples),
		cbSamples:      make([]uint8, numChromaSamples),
		crSamples:      make([]uint8, numChromaSamples),
		sao:            make([]SAOParams, numCtbs),
		ctbAvailable:   make([]bool, numCtbs),
	}
	for i := range ps.intraPredModeY {
		ps.intraPredModeY[i] = intraModeDC
	}
	return ps
}

// minCbAvailable reports whether the minimum coding block at luma sample
// coordinate (x,y) is within the picture and already decoded, per the
// z-scan availability derivation of section 6.4.1.
func (ps *pictureState) minCbAvailable(x, y, curCtbAddrTS int) bool {
	if x < 0 || y < 0 || x >= ps.sps.PicWidthInLumaSamples || y >= ps.sps.PicHeightInLumaSamples {
		return false
	}
	log2MinCb := uint(ps.sps.Log2MinCodingBlockSize)
	mx := x >> log2MinCb
	my := y >> log2MinCb
	idx := my*ps.widthInMinCbs + mx

	log2Ctb := uint(ps.sps.Log2CtbSize)
	ctbX := x >> log2Ctb
	ctbY := y >> log2Ctb
	ctbAddrRS := ctbY*ps.sps.PicWidthInCtbs + ctbX
	if ctbAddrRS >= len(ps.pps.CtbAddrRSToTS) {
		return false
	}
	neighbourTS := ps.pps.CtbAddrRSToTS[ctbAddrRS]
	if neighbourTS > curCtbAddrTS {
		return false
	}
	if neighbourTS == curCtbAddrTS {
		return false
	}
	return idx >= 0 && idx < len(ps.ctDepth)
}

func (ps *pictureState) minCbIndex(x, y int) int {
	log2MinCb := uint(ps.sps.Log2MinCodingBlockSize)
	return (y>>log2MinCb)*ps.widthInMinCbs + (x >> log2MinCb)
}
