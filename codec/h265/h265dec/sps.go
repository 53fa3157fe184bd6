/*
NAME
  sps.go

DESCRIPTION
  sps.go parses the sequence parameter set, as defined in section 7.3.2.2
  of the HEVC draft this snapshot targets, and derives the per-picture
  geometry fields consumed by the rest of the decoder core.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import (
	"github.com/stseppo/libav/codec/h265/h265dec/bits"
)

// MaxSPSCount is the number of seq_parameter_set_id values this snapshot
// can hold simultaneously.
const MaxSPSCount = 32

// PCMParams holds the fixed-length PCM sample parameters, present only
// when pcm_enabled_flag is set.
type PCMParams struct {
	BitDepthLuma                     uint8
	BitDepthChroma                   uint8
	Log2MinPCMCodingBlockSize        uint8
	Log2DiffMaxMinPCMCodingBlockSize uint8
	LoopFilterDisableFlag            bool
}

// SPS is a parsed sequence parameter set (section 7.3.2.2). SPS records
// are immutable once parsed; replacing the entry at SPSID frees the
// previous record and forces picture-array reallocation on the owning
// decoder.
type SPS struct {
	SPSID            uint8
	VPSID            uint8
	MaxSubLayersMin1 uint8
	PTL              ProfileTierLevel

	ChromaFormatIDC           uint8
	SeparateColourPlaneFlag   bool
	PicWidthInLumaSamples     int
	PicHeightInLumaSamples    int
	ConformanceWindowFlag     bool

	BitDepthLuma   int
	BitDepthChroma int

	Log2MaxPicOrderCntLsb int

	Log2MinCodingBlockSize         int
	Log2DiffMaxMinCodingBlockSize  int
	Log2MinTransformBlockSize      int
	Log2DiffMaxMinTransformBlockSize int
	MaxTransformHierarchyDepthInter int
	MaxTransformHierarchyDepthIntra int

	ScalingListEnabledFlag bool
	AMPEnabledFlag         bool
	SAOEnabledFlag         bool

	PCMEnabledFlag bool
	PCM            PCMParams

	ShortTermRPS []*ShortTermRPS

	LongTermRefPicsPresentFlag    bool
	TemporalMVPEnabledFlag        bool
	StrongIntraSmoothingEnableFlag bool

	// Derived fields (section 7.4.3.2.1 and surrounding text).
	Log2CtbSize         int
	PicWidthInCtbs      int
	PicHeightInCtbs     int
	PicWidthInMinCbs    int
	PicHeightInMinCbs   int
	PicWidthInMinTbs    int
	PicHeightInMinTbs   int
	Log2MinPUSize       int
	QPBDOffsetLuma      int
	QPBDOffsetChroma    int

	// HShift/VShift[c_idx] give the chroma sample-array shift relative
	// to luma, indexed 0 (luma, always 0,0), 1 (Cb), 2 (Cr).
	HShift [3]int
	VShift [3]int
}

// ParseSPS parses a seq_parameter_set_rbsp from br.
func ParseSPS(br *bits.BitReader) (*SPS, error) {
	s := &SPS{}

	b, err := br.ReadBits(4)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read sps_video_parameter_set_id")
	}
	s.VPSID = uint8(b)

	b, err = br.ReadBits(3)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read sps_max_sub_layers_minus1")
	}
	s.MaxSubLayersMin1 = uint8(b)

	if _, err := br.ReadBits(1); err != nil { // sps_temporal_id_nesting_flag
		return nil, newErr(InsufficientData, err, "could not read sps_temporal_id_nesting_flag")
	}

	ptl, err := parseProfileTierLevel(br, true, int(s.MaxSubLayersMin1))
	if err != nil {
		return nil, err
	}
	s.PTL = ptl

	spsID, err := br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read sps_seq_parameter_set_id")
	}
	if spsID >= MaxSPSCount {
		return nil, newErrf(InvalidData, "sps_seq_parameter_set_id out of range")
	}
	s.SPSID = uint8(spsID)

	cfi, err := br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read chroma_format_idc")
	}
	s.ChromaFormatIDC = uint8(cfi)
	if s.ChromaFormatIDC != 1 {
		return nil, newErrf(UnsupportedStream, "only 4:2:0 chroma format is supported")
	}
	s.HShift = [3]int{0, 1, 1}
	s.VShift = [3]int{0, 1, 1}

	w, err := br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read pic_width_in_luma_samples")
	}
	s.PicWidthInLumaSamples = int(w)

	h, err := br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read pic_height_in_luma_samples")
	}
	s.PicHeightInLumaSamples = int(h)

	cwf, err := br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read conformance_window_flag")
	}
	s.ConformanceWindowFlag = cwf == 1
	if s.ConformanceWindowFlag {
		for i := 0; i < 4; i++ { // left/right/top/bottom offsets
			if _, err := br.ReadUE(); err != nil {
				return nil, newErr(InsufficientData, err, "could not read conformance window offset")
			}
		}
	}

	bdLuma, err := br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read bit_depth_luma_minus8")
	}
	bdChroma, err := br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read bit_depth_chroma_minus8")
	}
	s.BitDepthLuma = int(bdLuma) + 8
	s.BitDepthChroma = int(bdChroma) + 8
	if s.BitDepthLuma != s.BitDepthChroma {
		return nil, newErrf(UnsupportedStream, "luma and chroma bit depth must match")
	}
	if s.BitDepthLuma > 10 {
		return nil, newErrf(UnsupportedStream, "bit depth above 10 is not supported")
	}

	logMaxPoc, err := br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read log2_max_pic_order_cnt_lsb_minus4")
	}
	s.Log2MaxPicOrderCntLsb = int(logMaxPoc) + 4

	spsSubLayerOrderingInfoPresent, err := br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read sps_sub_layer_ordering_info_present_flag")
	}
	start := int(s.MaxSubLayersMin1)
	if spsSubLayerOrderingInfoPresent == 1 {
		start = 0
	}
	for i := start; i <= int(s.MaxSubLayersMin1); i++ {
		for j := 0; j < 3; j++ { // max_dec_pic_buffering/num_reorder_pics/max_latency_increase
			if _, err := br.ReadUE(); err != nil {
				return nil, newErr(InsufficientData, err, "could not read sub-layer ordering info")
			}
		}
	}

	v, err := br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read log2_min_luma_coding_block_size_minus3")
	}
	s.Log2MinCodingBlockSize = int(v) + 3

	v, err = br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read log2_diff_max_min_luma_coding_block_size")
	}
	s.Log2DiffMaxMinCodingBlockSize = int(v)

	v, err = br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read log2_min_luma_transform_block_size_minus2")
	}
	s.Log2MinTransformBlockSize = int(v) + 2

	v, err = br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read log2_diff_max_min_luma_transform_block_size")
	}
	s.Log2DiffMaxMinTransformBlockSize = int(v)

	v, err = br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read max_transform_hierarchy_depth_inter")
	}
	s.MaxTransformHierarchyDepthInter = int(v)

	v, err = br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read max_transform_hierarchy_depth_intra")
	}
	s.MaxTransformHierarchyDepthIntra = int(v)

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read scaling_list_enabled_flag")
	}
	s.ScalingListEnabledFlag = b == 1
	if s.ScalingListEnabledFlag {
		return nil, newErrf(UnsupportedStream, "scaling lists are not supported")
	}

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read amp_enabled_flag")
	}
	s.AMPEnabledFlag = b == 1

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read sample_adaptive_offset_enabled_flag")
	}
	s.SAOEnabledFlag = b == 1

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read pcm_enabled_flag")
	}
	s.PCMEnabledFlag = b == 1
	if s.PCMEnabledFlag {
		pbdLuma, err := br.ReadBits(4)
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read pcm_sample_bit_depth_luma_minus1")
		}
		pbdChroma, err := br.ReadBits(4)
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read pcm_sample_bit_depth_chroma_minus1")
		}
		s.PCM.BitDepthLuma = uint8(pbdLuma) + 1
		s.PCM.BitDepthChroma = uint8(pbdChroma) + 1

		lm, err := br.ReadUE()
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read log2_min_pcm_luma_coding_block_size_minus3")
		}
		s.PCM.Log2MinPCMCodingBlockSize = uint8(lm) + 3

		ld, err := br.ReadUE()
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read log2_diff_max_min_pcm_luma_coding_block_size")
		}
		s.PCM.Log2DiffMaxMinPCMCodingBlockSize = uint8(ld)

		pf, err := br.ReadBits(1)
		if err != nil {
			return nil, newErr(InsufficientData, err, "could not read pcm_loop_filter_disabled_flag")
		}
		s.PCM.LoopFilterDisableFlag = pf == 1
	}

	numSTRPS, err := br.ReadUE()
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read num_short_term_ref_pic_sets")
	}
	if numSTRPS > MaxShortTermRPSCount {
		return nil, newErrf(InvalidData, "num_short_term_ref_pic_sets out of range")
	}
	s.ShortTermRPS = make([]*ShortTermRPS, numSTRPS)
	for i := 0; i < int(numSTRPS); i++ {
		rps, err := parseShortTermRPS(br, s.ShortTermRPS, i, false)
		if err != nil {
			return nil, err
		}
		s.ShortTermRPS[i] = rps
	}

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read long_term_ref_pics_present_flag")
	}
	s.LongTermRefPicsPresentFlag = b == 1
	if s.LongTermRefPicsPresentFlag {
		return nil, newErrf(UnsupportedStream, "long-term reference pictures are not supported")
	}

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read sps_temporal_mvp_enabled_flag")
	}
	s.TemporalMVPEnabledFlag = b == 1

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read strong_intra_smoothing_enable_flag")
	}
	s.StrongIntraSmoothingEnableFlag = b == 1

	vuiPresent, err := br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read vui_parameters_present_flag")
	}
	if vuiPresent == 1 {
		// VUI parameters carry only informational display/timing hints
		// that this core does not act on; callers needing them should
		// extend ParseSPS. The remainder of the RBSP (including
		// sps_extension_flag and any extension data) is not consumed
		// here, which is safe because the NAL unit is parsed from a
		// fresh buffer per call and no subsequent field in this NAL
		// is read.
		Log.Debug("sps vui_parameters_present_flag set; VUI contents skipped")
	}

	s.deriveFields()
	Log.Debug("parsed SPS", "id", s.SPSID, "width", s.PicWidthInLumaSamples, "height", s.PicHeightInLumaSamples,
		"log2_ctb_size", s.Log2CtbSize, "pic_width_in_ctbs", s.PicWidthInCtbs)
	return s, nil
}

// deriveFields computes the fields listed under spec.md §3's "Derives:"
// paragraph for the SPS, grounded on the tail of ff_hevc_decode_nal_sps.
func (s *SPS) deriveFields() {
	s.Log2CtbSize = s.Log2MinCodingBlockSize + s.Log2DiffMaxMinCodingBlockSize
	ctbSize := 1 << s.Log2CtbSize
	s.PicWidthInCtbs = ceilDiv(s.PicWidthInLumaSamples, ctbSize)
	s.PicHeightInCtbs = ceilDiv(s.PicHeightInLumaSamples, ctbSize)
	s.PicWidthInMinCbs = s.PicWidthInLumaSamples >> s.Log2MinCodingBlockSize
	s.PicHeightInMinCbs = s.PicHeightInLumaSamples >> s.Log2MinCodingBlockSize
	s.PicWidthInMinTbs = s.PicWidthInLumaSamples >> s.Log2MinTransformBlockSize
	s.PicHeightInMinTbs = s.PicHeightInLumaSamples >> s.Log2MinTransformBlockSize
	s.Log2MinPUSize = s.Log2MinCodingBlockSize - 1
	s.QPBDOffsetLuma = 6 * (s.BitDepthLuma - 8)
	s.QPBDOffsetChroma = 6 * (s.BitDepthChroma - 8)
}

// ceilDiv returns ceil(a/b) for positive integers.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
