/*
NAME
  pps.go

DESCRIPTION
  pps.go parses the picture parameter set, as defined in section 7.3.2.3
  of the HEVC draft this snapshot targets, and computes the tile-geometry
  and z-scan address tables the coding-tree recursion depends on.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import (
	"github.com/stseppo/libav/codec/h265/h265dec/bits"
)

// MaxPPSCount is the number of pic_parameter_set_id values this snapshot
// can hold simultaneously.
const MaxPPSCount = 256

// PPS is a parsed picture parameter set (section 7.3.2.3). PPS records
// are immutable once parsed; replacing the entry at PPSID frees the
// previous record and its owned derived tables.
type PPS struct {
	PPSID uint8
	SPSID uint8

	DependentSliceSegmentsEnabledFlag bool
	OutputFlagPresentFlag             bool
	NumExtraSliceHeaderBits           uint8
	SignDataHidingFlag                bool
	CabacInitPresentFlag              bool
	NumRefIdxL0DefaultActive          int
	NumRefIdxL1DefaultActive          int
	InitQPMinus26                     int
	ConstrainedIntraPredFlag          bool
	TransformSkipEnabledFlag          bool
	CuQpDeltaEnabledFlag              bool
	DiffCuQpDeltaDepth                int
	CbQpOffset                        int
	CrQpOffset                        int
	SliceChromaQpOffsetsPresentFlag   bool
	WeightedPredFlag                  bool
	WeightedBipredFlag                bool
	TransquantBypassEnableFlag        bool

	TilesEnabledFlag             bool
	EntropyCodingSyncEnabledFlag bool
	NumTileColumns               int
	NumTileRows                  int
	UniformSpacingFlag           bool
	LoopFilterAcrossTilesEnabledFlag bool

	LoopFilterAcrossSlicesEnabledFlag bool
	DeblockingFilterControlPresent    bool
	DeblockingFilterOverrideEnabled   bool
	PPSDeblockingFilterDisabledFlag   bool
	BetaOffsetDiv2                    int
	TcOffsetDiv2                      int

	ListsModificationPresentFlag bool
	Log2ParallelMergeLevel       int
	SliceSegmentHeaderExtension  bool

	// Derived tile geometry and z-scan tables, grounded on the tail of
	// ff_hevc_decode_nal_pps in the original decoder.
	ColumnWidth       []int
	RowHeight         []int
	ColBd             []int
	RowBd             []int
	CtbAddrRSToTS     []int
	CtbAddrTSToRS     []int
	TileID            []int
	MinCbAddrZS       []int
	MinTbAddrZS       []int
}

// ParsePPS parses a pic_parameter_set_rbsp from br. sps is the
// already-parsed SPS this PPS refers to; it is needed to size and compute
// the derived tile/z-scan tables.
func ParsePPS(br *bits.BitReader, lookupSPS func(id uint8) (*SPS, bool)) (*PPS, error) {
	p := &PPS{}

	ppsID, err := br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read pps_pic_parameter_set_id")
	}
	if ppsID >= MaxPPSCount {
		return nil, newErrf(InvalidData, "pps_pic_parameter_set_id out of range")
	}
	p.PPSID = uint8(ppsID)

	spsID, err := br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read pps_seq_parameter_set_id")
	}
	if spsID >= MaxSPSCount {
		return nil, newErrf(InvalidData, "pps_seq_parameter_set_id out of range")
	}
	p.SPSID = uint8(spsID)

	sps, ok := lookupSPS(p.SPSID)
	if !ok {
		return nil, newErrf(InvalidData, "pps references an SPS id that has not been parsed")
	}

	b, err := br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read dependent_slice_segments_enabled_flag")
	}
	p.DependentSliceSegmentsEnabledFlag = b == 1

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read output_flag_present_flag")
	}
	p.OutputFlagPresentFlag = b == 1

	b, err = br.ReadBits(3)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read num_extra_slice_header_bits")
	}
	p.NumExtraSliceHeaderBits = uint8(b)

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read sign_data_hiding_enabled_flag")
	}
	p.SignDataHidingFlag = b == 1

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read cabac_init_present_flag")
	}
	p.CabacInitPresentFlag = b == 1

	v, err := br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read num_ref_idx_l0_default_active_minus1")
	}
	p.NumRefIdxL0DefaultActive = int(v) + 1

	v, err = br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read num_ref_idx_l1_default_active_minus1")
	}
	p.NumRefIdxL1DefaultActive = int(v) + 1

	se, err := br.ReadSE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read init_qp_minus26")
	}
	p.InitQPMinus26 = int(se)

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read constrained_intra_pred_flag")
	}
	p.ConstrainedIntraPredFlag = b == 1

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read transform_skip_enabled_flag")
	}
	p.TransformSkipEnabledFlag = b == 1

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read cu_qp_delta_enabled_flag")
	}
	p.CuQpDeltaEnabledFlag = b == 1
	if p.CuQpDeltaEnabledFlag {
		v, err := br.ReadUE()
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read diff_cu_qp_delta_depth")
		}
		p.DiffCuQpDeltaDepth = int(v)
		return nil, newErrf(UnsupportedStream, "cu_qp_delta_enabled_flag is not supported")
	}

	se, err = br.ReadSE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read pps_cb_qp_offset")
	}
	p.CbQpOffset = int(se)

	se, err = br.ReadSE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read pps_cr_qp_offset")
	}
	p.CrQpOffset = int(se)

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read pps_slice_chroma_qp_offsets_present_flag")
	}
	p.SliceChromaQpOffsetsPresentFlag = b == 1

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read weighted_pred_flag")
	}
	p.WeightedPredFlag = b == 1

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read weighted_bipred_flag")
	}
	p.WeightedBipredFlag = b == 1

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read transquant_bypass_enabled_flag")
	}
	p.TransquantBypassEnableFlag = b == 1

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read tiles_enabled_flag")
	}
	p.TilesEnabledFlag = b == 1

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read entropy_coding_sync_enabled_flag")
	}
	p.EntropyCodingSyncEnabledFlag = b == 1

	p.NumTileColumns = 1
	p.NumTileRows = 1
	p.UniformSpacingFlag = true
	if p.TilesEnabledFlag {
		v, err := br.ReadUE()
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read num_tile_columns_minus1")
		}
		p.NumTileColumns = int(v) + 1

		v, err = br.ReadUE()
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read num_tile_rows_minus1")
		}
		p.NumTileRows = int(v) + 1

		b, err = br.ReadBits(1)
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read uniform_spacing_flag")
		}
		p.UniformSpacingFlag = b == 1

		if !p.UniformSpacingFlag {
			p.ColumnWidth = make([]int, p.NumTileColumns)
			for i := 0; i < p.NumTileColumns-1; i++ {
				v, err := br.ReadUE()
				if err != nil {
					return nil, newErr(InsufficientData, err, "could not read column_width_minus1")
				}
				p.ColumnWidth[i] = int(v) + 1
			}
			p.RowHeight = make([]int, p.NumTileRows)
			for i := 0; i < p.NumTileRows-1; i++ {
				v, err := br.ReadUE()
				if err != nil {
					return nil, newErr(InsufficientData, err, "could not read row_height_minus1")
				}
				p.RowHeight[i] = int(v) + 1
			}
		}

		b, err = br.ReadBits(1)
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read loop_filter_across_tiles_enabled_flag")
		}
		p.LoopFilterAcrossTilesEnabledFlag = b == 1
	}

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read pps_loop_filter_across_slices_enabled_flag")
	}
	p.LoopFilterAcrossSlicesEnabledFlag = b == 1

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read deblocking_filter_control_present_flag")
	}
	p.DeblockingFilterControlPresent = b == 1
	if p.DeblockingFilterControlPresent {
		b, err = br.ReadBits(1)
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read deblocking_filter_override_enabled_flag")
		}
		p.DeblockingFilterOverrideEnabled = b == 1

		b, err = br.ReadBits(1)
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read pps_deblocking_filter_disabled_flag")
		}
		p.PPSDeblockingFilterDisabledFlag = b == 1

		if !p.PPSDeblockingFilterDisabledFlag {
			se, err := br.ReadSE()
			if err != nil {
				return nil, newErr(InsufficientData, err, "could not read pps_beta_offset_div2")
			}
			p.BetaOffsetDiv2 = int(se)

			se, err = br.ReadSE()
			if err != nil {
				return nil, newErr(InsufficientData, err, "could not read pps_tc_offset_div2")
			}
			p.TcOffsetDiv2 = int(se)
		}
	}

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read pps_scaling_list_data_present_flag")
	}
	if b == 1 {
		return nil, newErrf(UnsupportedStream, "pps scaling list data is not supported")
	}

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read lists_modification_present_flag")
	}
	p.ListsModificationPresentFlag = b == 1

	v, err = br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read log2_parallel_merge_level_minus2")
	}
	p.Log2ParallelMergeLevel = int(v) + 2

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read slice_segment_header_extension_present_flag")
	}
	p.SliceSegmentHeaderExtension = b == 1

	if err := p.deriveTables(sps); err != nil {
		return nil, err
	}

	Log.Debug("parsed PPS", "id", p.PPSID, "sps_id", p.SPSID, "tiles_enabled", p.TilesEnabledFlag,
		"num_tile_columns", p.NumTileColumns, "num_tile_rows", p.NumTileRows)
	return p, nil
}

// deriveTables computes the tile geometry, raster↔tile-scan bijection,
// tile-id, and z-scan address tables, in the order column_width/row_height
// → col_bd/row_bd → ctb_addr_rs_to_ts/ts_to_rs → tile_id → min_cb_addr_zs
// → min_tb_addr_zs, grounded on the tail of ff_hevc_decode_nal_pps.
func (p *PPS) deriveTables(sps *SPS) error {
	picWidthInCtbs := sps.PicWidthInCtbs
	picHeightInCtbs := sps.PicHeightInCtbs

	if p.UniformSpacingFlag {
		p.ColumnWidth = make([]int, p.NumTileColumns)
		for i := 0; i < p.NumTileColumns; i++ {
			p.ColumnWidth[i] = (i+1)*picWidthInCtbs/p.NumTileColumns - i*picWidthInCtbs/p.NumTileColumns
		}
		p.RowHeight = make([]int, p.NumTileRows)
		for i := 0; i < p.NumTileRows; i++ {
			p.RowHeight[i] = (i+1)*picHeightInCtbs/p.NumTileRows - i*picHeightInCtbs/p.NumTileRows
		}
	} else {
		// The last column/row width is whatever remains.
		sum := 0
		for i := 0; i < p.NumTileColumns-1; i++ {
			sum += p.ColumnWidth[i]
		}
		p.ColumnWidth[p.NumTileColumns-1] = picWidthInCtbs - sum
		sum = 0
		for i := 0; i < p.NumTileRows-1; i++ {
			sum += p.RowHeight[i]
		}
		p.RowHeight[p.NumTileRows-1] = picHeightInCtbs - sum
	}

	p.ColBd = make([]int, p.NumTileColumns+1)
	for i := 0; i < p.NumTileColumns; i++ {
		p.ColBd[i+1] = p.ColBd[i] + p.ColumnWidth[i]
	}
	p.RowBd = make([]int, p.NumTileRows+1)
	for i := 0; i < p.NumTileRows; i++ {
		p.RowBd[i+1] = p.RowBd[i] + p.RowHeight[i]
	}

	numCtbs := picWidthInCtbs * picHeightInCtbs
	p.CtbAddrRSToTS = make([]int, numCtbs)
	for ctbAddrRS := 0; ctbAddrRS < numCtbs; ctbAddrRS++ {
		tbX := ctbAddrRS % picWidthInCtbs
		tbY := ctbAddrRS / picWidthInCtbs
		tileX, tileY := 0, 0
		for i := 0; i < p.NumTileColumns; i++ {
			if tbX >= p.ColBd[i] {
				tileX = i
			}
		}
		for i := 0; i < p.NumTileRows; i++ {
			if tbY >= p.RowBd[i] {
				tileY = i
			}
		}
		addr := 0
		for i := 0; i < tileX; i++ {
			addr += p.RowHeight[tileY] * p.ColumnWidth[i]
		}
		for i := 0; i < tileY; i++ {
			addr += picWidthInCtbs * p.RowHeight[i]
		}
		addr += (tbY-p.RowBd[tileY])*p.ColumnWidth[tileX] + tbX - p.ColBd[tileX]
		p.CtbAddrRSToTS[ctbAddrRS] = addr
	}

	p.CtbAddrTSToRS = make([]int, numCtbs)
	for rs, ts := range p.CtbAddrRSToTS {
		p.CtbAddrTSToRS[ts] = rs
	}

	p.TileID = make([]int, numCtbs)
	tileIdx := 0
	for j := 0; j < p.NumTileRows; j++ {
		for i := 0; i < p.NumTileColumns; i++ {
			for y := p.RowBd[j]; y < p.RowBd[j+1]; y++ {
				for x := p.ColBd[i]; x < p.ColBd[i+1]; x++ {
					p.TileID[p.CtbAddrRSToTS[y*picWidthInCtbs+x]] = tileIdx
				}
			}
			tileIdx++
		}
	}

	log2DiffCtbMinCb := sps.Log2CtbSize - sps.Log2MinCodingBlockSize
	p.MinCbAddrZS = zScanTable(p.CtbAddrRSToTS, picWidthInCtbs, sps.PicWidthInMinCbs, sps.PicHeightInMinCbs, log2DiffCtbMinCb)

	log2DiffCtbMinTb := sps.Log2CtbSize - sps.Log2MinTransformBlockSize
	p.MinTbAddrZS = zScanTable(p.CtbAddrRSToTS, picWidthInCtbs, sps.PicWidthInMinTbs, sps.PicHeightInMinTbs, log2DiffCtbMinTb)

	return nil
}

// zScanTable computes the z-scan address of every minimum block at
// granularity 1<<log2DiffCtb (either min-CB or min-TB) across the whole
// picture, grounded on the min_cb_addr_zs/min_tb_addr_zs construction in
// ff_hevc_decode_nal_pps: the base contribution of the parent CTB, scaled
// by the square of the sub-CTB dimension, plus the bit-interleaved offset
// of the block inside its CTB.
func zScanTable(ctbAddrRSToTS []int, picWidthInCtbs, widthInUnits, heightInUnits, log2DiffCtb int) []int {
	out := make([]int, widthInUnits*heightInUnits)
	unitsPerCtbSide := 1 << log2DiffCtb
	for y := 0; y < heightInUnits; y++ {
		for x := 0; x < widthInUnits; x++ {
			ctbX := x / unitsPerCtbSide
			ctbY := y / unitsPerCtbSide
			ctbAddrRS := ctbY*picWidthInCtbs + ctbX
			val := ctbAddrRSToTS[ctbAddrRS] << uint(log2DiffCtb*2)
			for i := 0; i < log2DiffCtb; i++ {
				m := 1 << i
				if m&x != 0 {
					val += m * m
				}
				if m&y != 0 {
					val += 2 * m * m
				}
			}
			out[y*widthInUnits+x] = val
		}
	}
	return out
}
