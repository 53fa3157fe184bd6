/*
NAME
  slice.go

DESCRIPTION
  slice.go parses the slice segment header, as defined in section 7.3.6.1
  of the HEVC draft this snapshot targets.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import (
	"github.com/stseppo/libav/codec/h265/h265dec/bits"
)

// Slice type values, Table 7-7.
const (
	SliceTypeB = 0
	SliceTypeP = 1
	SliceTypeI = 2
)

// SliceHeader is a parsed slice segment header.
type SliceHeader struct {
	FirstSliceInPicFlag  bool
	NoOutputOfPriorPics  bool
	PPSID                uint8
	DependentSliceSegment bool
	SliceSegmentAddress  int

	SliceType int
	PicOutputFlag bool

	SlicePicOrderCntLsb int
	ShortTermRPS        *ShortTermRPS
	ShortTermRPSIdx     int

	SAOLuma   bool
	SAOChroma bool

	NumRefIdxL0Active int
	NumRefIdxL1Active int

	CabacInitFlag        bool
	MVDL1ZeroFlag        bool
	CollocatedFromL0Flag bool
	FiveMinusMaxNumMergeCand int

	SliceQPDelta    int
	SliceCbQPOffset int
	SliceCrQPOffset int

	DeblockingFilterOverrideFlag bool
	DeblockingFilterDisabledFlag bool
	BetaOffsetDiv2               int
	TcOffsetDiv2                 int

	LoopFilterAcrossSlicesEnabledFlag bool

	// SliceQPY is the derived luma QP for this slice, SliceQPYBase + delta
	// from the per-CU qp_delta syntax (the latter is not supported; see
	// PPS.CuQpDeltaEnabledFlag).
	SliceQPY int

	// IsIDR reports whether the slice's NAL unit type is IDR_W_RADL.
	IsIDR bool
}

// ParseSliceHeader parses slice_segment_header() for a NAL unit of type
// nalType, given the SPS/PPS lookup functions supplied by the caller's
// parameter-set cache.
func ParseSliceHeader(br *bits.BitReader, nalType uint8, lookupSPS func(uint8) (*SPS, bool), lookupPPS func(uint8) (*PPS, bool)) (*SliceHeader, error) {
	sh := &SliceHeader{IsIDR: nalType == NALIDRWDLP}

	b, err := br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read first_slice_segment_in_pic_flag")
	}
	sh.FirstSliceInPicFlag = b == 1

	if sh.IsIDR {
		b, err = br.ReadBits(1)
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read no_output_of_prior_pics_flag")
		}
		sh.NoOutputOfPriorPics = b == 1
	}

	ppsID, err := br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read slice_pic_parameter_set_id")
	}
	if ppsID >= MaxPPSCount {
		return nil, newErrf(InvalidData, "slice_pic_parameter_set_id out of range")
	}
	sh.PPSID = uint8(ppsID)

	pps, ok := lookupPPS(sh.PPSID)
	if !ok {
		return nil, newErrf(InvalidData, "slice references a PPS id that has not been parsed")
	}
	sps, ok := lookupSPS(pps.SPSID)
	if !ok {
		return nil, newErrf(InvalidData, "slice's PPS references an SPS id that has not been parsed")
	}

	if !sh.FirstSliceInPicFlag {
		if pps.DependentSliceSegmentsEnabledFlag {
			b, err = br.ReadBits(1)
			if err != nil {
				return nil, newErr(InsufficientData, err, "could not read dependent_slice_segment_flag")
			}
			sh.DependentSliceSegment = b == 1
		}
		numCtbs := sps.PicWidthInCtbs * sps.PicHeightInCtbs
		bitsLen := ceilLog2(numCtbs)
		addr, err := br.ReadBits(bitsLen)
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read slice_segment_address")
		}
		sh.SliceSegmentAddress = int(addr)
	}

	if !sh.DependentSliceSegment {
		for i := 0; i < int(pps.NumExtraSliceHeaderBits); i++ {
			if _, err := br.ReadBits(1); err != nil { // slice_reserved_flag
				return nil, newErr(InsufficientData, err, "could not read slice_reserved_flag")
			}
		}

		st, err := br.ReadUE()
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read slice_type")
		}
		sh.SliceType = int(st)

		sh.PicOutputFlag = true
		if pps.OutputFlagPresentFlag {
			b, err = br.ReadBits(1)
			if err != nil {
				return nil, newErr(InsufficientData, err, "could not read pic_output_flag")
			}
			sh.PicOutputFlag = b == 1
		}

		if sps.SeparateColourPlaneFlag {
			if _, err := br.ReadBits(2); err != nil { // colour_plane_id
				return nil, newErr(InsufficientData, err, "could not read colour_plane_id")
			}
		}

		if !sh.IsIDR {
			lsb, err := br.ReadBits(sps.Log2MaxPicOrderCntLsb)
			if err != nil {
				return nil, newErr(InsufficientData, err, "could not read slice_pic_order_cnt_lsb")
			}
			sh.SlicePicOrderCntLsb = int(lsb)

			b, err = br.ReadBits(1)
			if err != nil {
				return nil, newErr(InsufficientData, err, "could not read short_term_ref_pic_set_sps_flag")
			}
			if b == 1 {
				numSTRPS := len(sps.ShortTermRPS)
				idxLen := ceilLog2(numSTRPS)
				idx := 0
				if numSTRPS > 1 {
					v, err := br.ReadBits(idxLen)
					if err != nil {
						return nil, newErr(InsufficientData, err, "could not read short_term_ref_pic_set_idx")
					}
					idx = int(v)
				}
				if idx >= numSTRPS {
					return nil, newErrf(InvalidData, "short_term_ref_pic_set_idx out of range")
				}
				sh.ShortTermRPSIdx = idx
				sh.ShortTermRPS = sps.ShortTermRPS[idx]
			} else {
				rps, err := parseShortTermRPS(br, sps.ShortTermRPS, len(sps.ShortTermRPS), true)
				if err != nil {
					return nil, err
				}
				sh.ShortTermRPS = rps
			}

			if sps.LongTermRefPicsPresentFlag {
				return nil, newErrf(UnsupportedStream, "long-term reference pictures are not supported")
			}

			if sps.TemporalMVPEnabledFlag {
				if _, err := br.ReadBits(1); err != nil { // slice_temporal_mvp_enabled_flag
					return nil, newErr(InsufficientData, err, "could not read slice_temporal_mvp_enabled_flag")
				}
			}
		}

		if sps.SAOEnabledFlag {
			b, err = br.ReadBits(1)
			if err != nil {
				return nil, newErr(InsufficientData, err, "could not read slice_sao_luma_flag")
			}
			sh.SAOLuma = b == 1

			b, err = br.ReadBits(1)
			if err != nil {
				return nil, newErr(InsufficientData, err, "could not read slice_sao_chroma_flag")
			}
			sh.SAOChroma = b == 1
		}

		sh.NumRefIdxL0Active = pps.NumRefIdxL0DefaultActive
		sh.NumRefIdxL1Active = pps.NumRefIdxL1DefaultActive
		if sh.SliceType == SliceTypeP || sh.SliceType == SliceTypeB {
			b, err = br.ReadBits(1)
			if err != nil {
				return nil, newErr(InsufficientData, err, "could not read num_ref_idx_active_override_flag")
			}
			if b == 1 {
				v, err := br.ReadUE()
				if err != nil {
					return nil, newErr(InsufficientData, err, "could not read num_ref_idx_l0_active_minus1")
				}
				sh.NumRefIdxL0Active = int(v) + 1
				if sh.SliceType == SliceTypeB {
					v, err := br.ReadUE()
					if err != nil {
						return nil, newErr(InsufficientData, err, "could not read num_ref_idx_l1_active_minus1")
					}
					sh.NumRefIdxL1Active = int(v) + 1
				}
			}

			if pps.ListsModificationPresentFlag {
				return nil, newErrf(UnsupportedStream, "reference picture list modification is not supported")
			}

			if sh.SliceType == SliceTypeB {
				b, err = br.ReadBits(1)
				if err != nil {
					return nil, newErr(InsufficientData, err, "could not read mvd_l1_zero_flag")
				}
				sh.MVDL1ZeroFlag = b == 1
			}

			if pps.CabacInitPresentFlag {
				b, err = br.ReadBits(1)
				if err != nil {
					return nil, newErr(InsufficientData, err, "could not read cabac_init_flag")
				}
				sh.CabacInitFlag = b == 1
			}

			if sps.TemporalMVPEnabledFlag {
				sh.CollocatedFromL0Flag = true
				if sh.SliceType == SliceTypeB {
					b, err = br.ReadBits(1)
					if err != nil {
						return nil, newErr(InsufficientData, err, "could not read collocated_from_l0_flag")
					}
					sh.CollocatedFromL0Flag = b == 1
				}
				// collocated_ref_idx: only present with multiple active
				// refs on the collocated list; it is read to keep the
				// bitstream cursor aligned and then discarded.
				if (sh.CollocatedFromL0Flag && sh.NumRefIdxL0Active > 1) ||
					(!sh.CollocatedFromL0Flag && sh.NumRefIdxL1Active > 1) {
					if _, err := br.ReadUE(); err != nil {
						return nil, newErr(InsufficientData, err, "could not read collocated_ref_idx")
					}
				}
			}

			if (pps.WeightedPredFlag && sh.SliceType == SliceTypeP) ||
				(pps.WeightedBipredFlag && sh.SliceType == SliceTypeB) {
				return nil, newErrf(UnsupportedStream, "weighted prediction is not supported")
			}

			v, err := br.ReadUE()
			if err != nil {
				return nil, newErr(InsufficientData, err, "could not read five_minus_max_num_merge_cand")
			}
			sh.FiveMinusMaxNumMergeCand = int(v)
		}

		se, err := br.ReadSE()
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read slice_qp_delta")
		}
		sh.SliceQPDelta = int(se)
		sh.SliceQPY = 26 + pps.InitQPMinus26 + sh.SliceQPDelta

		if pps.SliceChromaQpOffsetsPresentFlag {
			se, err = br.ReadSE()
			if err != nil {
				return nil, newErr(InsufficientData, err, "could not read slice_cb_qp_offset")
			}
			sh.SliceCbQPOffset = int(se)

			se, err = br.ReadSE()
			if err != nil {
				return nil, newErr(InsufficientData, err, "could not read slice_cr_qp_offset")
			}
			sh.SliceCrQPOffset = int(se)
		}

		sh.LoopFilterAcrossSlicesEnabledFlag = pps.LoopFilterAcrossSlicesEnabledFlag
		if pps.DeblockingFilterControlPresent {
			overrideFlag := false
			if pps.DeblockingFilterOverrideEnabled {
				b, err = br.ReadBits(1)
				if err != nil {
					return nil, newErr(InsufficientData, err, "could not read deblocking_filter_override_flag")
				}
				overrideFlag = b == 1
			}
			sh.DeblockingFilterOverrideFlag = overrideFlag
			sh.DeblockingFilterDisabledFlag = pps.PPSDeblockingFilterDisabledFlag
			sh.BetaOffsetDiv2 = pps.BetaOffsetDiv2
			sh.TcOffsetDiv2 = pps.TcOffsetDiv2
			if overrideFlag {
				b, err = br.ReadBits(1)
				if err != nil {
					return nil, newErr(InsufficientData, err, "could not read slice_deblocking_filter_disabled_flag")
				}
				sh.DeblockingFilterDisabledFlag = b == 1
				if !sh.DeblockingFilterDisabledFlag {
					se, err := br.ReadSE()
					if err != nil {
						return nil, newErr(InsufficientData, err, "could not read slice_beta_offset_div2")
					}
					sh.BetaOffsetDiv2 = int(se)

					se, err = br.ReadSE()
					if err != nil {
						return nil, newErr(InsufficientData, err, "could not read slice_tc_offset_div2")
					}
					sh.TcOffsetDiv2 = int(se)
				}
			}
		}

		if pps.LoopFilterAcrossSlicesEnabledFlag &&
			(sh.SAOLuma || sh.SAOChroma || !sh.DeblockingFilterDisabledFlag) {
			b, err = br.ReadBits(1)
			if err != nil {
				return nil, newErr(InsufficientData, err, "could not read slice_loop_filter_across_slices_enabled_flag")
			}
			sh.LoopFilterAcrossSlicesEnabledFlag = b == 1
		}
	}

	if pps.TilesEnabledFlag || pps.EntropyCodingSyncEnabledFlag {
		v, err := br.ReadUE()
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read num_entry_point_offsets")
		}
		numEntryPoints := int(v)
		if numEntryPoints > 0 {
			lenMinus1, err := br.ReadUE()
			if err != nil {
				return nil, newErr(InsufficientData, err, "could not read offset_len_minus1")
			}
			for i := 0; i < numEntryPoints; i++ {
				if _, err := br.ReadBits(int(lenMinus1) + 1); err != nil {
					return nil, newErr(InsufficientData, err, "could not read entry_point_offset_minus1")
				}
			}
		}
	}

	if pps.SliceSegmentHeaderExtension {
		v, err := br.ReadUE()
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read slice_segment_header_extension_length")
		}
		if err := br.SkipBits(8 * int(v)); err != nil {
			return nil, newErr(InsufficientData, err, "could not skip slice_segment_header_extension_data")
		}
	}

	if err := br.AlignToByte(); err != nil { // byte_alignment()
		return nil, newErr(InsufficientData, err, "could not read byte_alignment")
	}

	Log.Debug("parsed slice header", "pps_id", sh.PPSID, "slice_type", sh.SliceType,
		"first_slice", sh.FirstSliceInPicFlag, "address", sh.SliceSegmentAddress)
	return sh, nil
}

// ceilLog2 returns Ceil(Log2(n)) for n >= 1, and 0 for n <= 1.
func ceilLog2(n int) int {
	r := 0
	v := 1
	for v < n {
		v <<= 1
		r++
	}
	return r
}
