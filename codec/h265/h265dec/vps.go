/*
NAME
  vps.go

DESCRIPTION
  vps.go parses the video parameter set, as defined in section 7.3.2.1 of
  the HEVC draft this snapshot targets.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import (
	"github.com/stseppo/libav/codec/h265/h265dec/bits"
)

// MaxVPSCount is the number of video_parameter_set_id values this snapshot
// can hold simultaneously.
const MaxVPSCount = 16

// ProfileTierLevel carries the general and per-sub-layer profile/tier/level
// fields. This snapshot parses it to keep the bitstream cursor aligned but
// does not branch decoding decisions on any of its values.
type ProfileTierLevel struct {
	GeneralProfileSpace              uint8
	GeneralTierFlag                  bool
	GeneralProfileIdc                uint8
	GeneralProfileCompatibilityFlags uint32
	GeneralLevelIdc                  uint8
	SubLayerProfilePresentFlag       []bool
	SubLayerLevelPresentFlag         []bool
}

// VPS is a parsed video parameter set (section 7.3.2.1). VPS records are
// immutable once parsed; replacing the entry at VPSID frees the previous
// record.
type VPS struct {
	VPSID                 uint8
	BaseLayerInternalFlag bool
	MaxLayersMinus1       uint8
	MaxSubLayersMinus1    uint8
	TemporalIDNestingFlag bool
	PTL                   ProfileTierLevel
	NumHrdParameters      uint16
}

// ParseVPS parses a video_parameter_set_rbsp from br.
func ParseVPS(br *bits.BitReader) (*VPS, error) {
	v := &VPS{}

	b, err := br.ReadBits(4)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read vps_video_parameter_set_id")
	}
	v.VPSID = uint8(b)
	if int(v.VPSID) >= MaxVPSCount {
		return nil, newErrf(InvalidData, "vps_video_parameter_set_id out of range")
	}

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read vps_base_layer_internal_flag")
	}
	v.BaseLayerInternalFlag = b == 1

	if _, err := br.ReadBits(1); err != nil { // vps_base_layer_available_flag
		return nil, newErr(InsufficientData, err, "could not read vps_base_layer_available_flag")
	}

	b, err = br.ReadBits(6)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read vps_max_layers_minus1")
	}
	v.MaxLayersMinus1 = uint8(b)

	b, err = br.ReadBits(3)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read vps_max_sub_layers_minus1")
	}
	v.MaxSubLayersMinus1 = uint8(b)

	b, err = br.ReadBits(1)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read vps_temporal_id_nesting_flag")
	}
	v.TemporalIDNestingFlag = b == 1

	b, err = br.ReadBits(16) // vps_reserved_0xffff_16bits
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read vps_reserved_0xffff_16bits")
	}
	if b != 0xffff {
		return nil, newErrf(InvalidData, "vps_reserved_0xffff_16bits must be 0xffff")
	}

	ptl, err := parseProfileTierLevel(br, true, int(v.MaxSubLayersMinus1))
	if err != nil {
		return nil, err
	}
	v.PTL = ptl

	// vps_sub_layer_ordering_info_present_flag and the ordering-info
	// loop, and the rest of the VPS (layer sets, HRD parameters,
	// extensions) are not read: parsing stops after profile_tier_level(),
	// and NumHrdParameters is left at zero.
	Log.Debug("parsed VPS", "id", v.VPSID, "max_sub_layers_minus1", v.MaxSubLayersMinus1)
	return v, nil
}

// parseProfileTierLevel parses profile_tier_level() per section 7.3.3.
func parseProfileTierLevel(br *bits.BitReader, profilePresentFlag bool, maxNumSubLayersMinus1 int) (ProfileTierLevel, error) {
	var p ProfileTierLevel
	if profilePresentFlag {
		b, err := br.ReadBits(2)
		if err != nil {
			return p, newErr(InsufficientData, err, "could not read general_profile_space")
		}
		p.GeneralProfileSpace = uint8(b)

		b, err = br.ReadBits(1)
		if err != nil {
			return p, newErr(InsufficientData, err, "could not read general_tier_flag")
		}
		p.GeneralTierFlag = b == 1

		b, err = br.ReadBits(5)
		if err != nil {
			return p, newErr(InsufficientData, err, "could not read general_profile_idc")
		}
		p.GeneralProfileIdc = uint8(b)

		b, err = br.ReadBits(32)
		if err != nil {
			return p, newErr(InsufficientData, err, "could not read general_profile_compatibility_flags")
		}
		p.GeneralProfileCompatibilityFlags = uint32(b)

		// general_progressive/interlaced/non_packed/frame_only flags
		// plus 43 reserved bits and one general_inbld_flag bit: 48
		// bits total, not individually modelled by this snapshot.
		if err := br.SkipBits(48); err != nil {
			return p, newErr(InsufficientData, err, "could not skip general constraint flags")
		}
	}

	b, err := br.ReadBits(8)
	if err != nil {
		return p, newErr(InsufficientData, err, "could not read general_level_idc")
	}
	p.GeneralLevelIdc = uint8(b)

	p.SubLayerProfilePresentFlag = make([]bool, maxNumSubLayersMinus1)
	p.SubLayerLevelPresentFlag = make([]bool, maxNumSubLayersMinus1)
	for i := 0; i < maxNumSubLayersMinus1; i++ {
		b, err := br.ReadBits(1)
		if err != nil {
			return p, newErr(InsufficientData, err, "could not read sub_layer_profile_present_flag")
		}
		p.SubLayerProfilePresentFlag[i] = b == 1

		b, err = br.ReadBits(1)
		if err != nil {
			return p, newErr(InsufficientData, err, "could not read sub_layer_level_present_flag")
		}
		p.SubLayerLevelPresentFlag[i] = b == 1
	}
	if maxNumSubLayersMinus1 > 0 {
		if err := br.SkipBits(2 * (8 - maxNumSubLayersMinus1)); err != nil {
			return p, newErr(InsufficientData, err, "could not skip reserved_zero_2bits padding")
		}
	}
	for i := 0; i < maxNumSubLayersMinus1; i++ {
		if p.SubLayerProfilePresentFlag[i] {
			if err := br.SkipBits(88); err != nil {
				return p, newErr(InsufficientData, err, "could not skip sub-layer profile fields")
			}
		}
		if p.SubLayerLevelPresentFlag[i] {
			if err := br.SkipBits(8); err != nil {
				return p, newErr(InsufficientData, err, "could not skip sub_layer_level_idc")
			}
		}
	}
	return p, nil
}
