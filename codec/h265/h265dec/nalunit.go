/*
NAME
  nalunit.go

DESCRIPTION
  nalunit.go provides a structure for the HEVC NAL unit header, as defined
  in section 7.3.1.2 of the HEVC draft this snapshot targets.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import (
	"github.com/stseppo/libav/codec/h265/h265dec/bits"
)

// NAL unit types this snapshot recognises (section 7.4.2.2, Table 7-1).
// Any type not listed here is silently skipped.
const (
	NALTrailN  = 0
	NALTrailR  = 1
	NALIDRWDLP = 19
	NALVPS     = 32
	NALSPS     = 33
	NALPPS     = 34
	NALAUD     = 35
	NALFiller  = 38
	NALSEI     = 39
)

// NALUnit describes a HEVC network abstraction layer unit header, as
// defined in section 7.3.1.2. The caller has already stripped the Annex-B
// start code and any emulation-prevention bytes.
type NALUnit struct {
	// forbidden_zero_bit, must always be 0.
	ForbiddenZeroBit uint8

	// nal_unit_type, identifies the type of RBSP payload that follows,
	// per Table 7-1.
	Type uint8

	// nuh_layer_id, 6 bits; stored as temporal_id-adjacent layer
	// identifier. A non-zero value in this snapshot means the unit
	// belongs to a layer this decoder does not support and should be
	// skipped.
	LayerID uint8

	// temporal_id, derived as nuh_temporal_id_plus1 - 1.
	TemporalID int8
}

// ParseNALHeader parses the 2-byte HEVC NAL unit header from br.
func ParseNALHeader(br *bits.BitReader) (NALUnit, error) {
	var n NALUnit

	b, err := br.ReadBits(1)
	if err != nil {
		return n, newErr(InsufficientData, err, "could not read forbidden_zero_bit")
	}
	n.ForbiddenZeroBit = uint8(b)
	if n.ForbiddenZeroBit != 0 {
		return n, newErrf(InvalidData, "forbidden_zero_bit must be 0")
	}

	b, err = br.ReadBits(6)
	if err != nil {
		return n, newErr(InsufficientData, err, "could not read nal_unit_type")
	}
	n.Type = uint8(b)

	b, err = br.ReadBits(6)
	if err != nil {
		return n, newErr(InsufficientData, err, "could not read nuh_layer_id")
	}
	n.LayerID = uint8(b)

	b, err = br.ReadBits(3)
	if err != nil {
		return n, newErr(InsufficientData, err, "could not read nuh_temporal_id_plus1")
	}
	n.TemporalID = int8(b) - 1

	Log.Debug("parsed NAL header", "type", n.Type, "layer_id", n.LayerID, "temporal_id", n.TemporalID)
	return n, nil
}

// Recognized reports whether t is a NAL unit type this snapshot acts on.
// Unrecognized types are silently skipped by the caller, per spec.
func Recognized(t uint8) bool {
	switch t {
	case NALTrailN, NALTrailR, NALIDRWDLP, NALVPS, NALSPS, NALPPS, NALAUD, NALFiller, NALSEI:
		return true
	default:
		return false
	}
}
