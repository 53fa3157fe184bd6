/*
NAME
  sao.go

DESCRIPTION
  sao.go parses sao(), as defined in section 7.3.8.3, and carries the
  per-CTB sample-adaptive-offset parameters consumed by the in-loop SAO
  filter of section 8.7.3 once deblocking has completed.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

// sao_type_idx values, Table 7-9.
const (
	SAONotApplied = iota
	SAOBand
	SAOEdge
)

// SAOChannelParams holds the parsed and derived SAO parameters for one
// channel of one CTB (section 3 "SAOParams (per CTB)").
type SAOChannelParams struct {
	TypeIdx      int
	OffsetAbs    [4]int
	OffsetSign   [4]int
	BandPosition int
	EOClass      int

	// OffsetVal[0] is always 0; OffsetVal[1..4] are the signed, scaled
	// offsets applied to the four band/edge categories.
	OffsetVal [5]int
}

// SAOParams holds one CTB's parameters for all three channels (luma,
// Cb, Cr).
type SAOParams struct {
	Channel [3]SAOChannelParams
}

// parseSAO parses sao() for the CTB at tile-scan address ctbAddrTS /
// raster address ctbAddrRS, given the prior CTB's parameters (for
// merge_left/merge_up) when available.
func parseSAO(c *CABAC, cs *sliceCabacState, sh *SliceHeader, sps *SPS, pps *PPS, ps *pictureState,
	ctbAddrRS int, rx, ry int, left, up *SAOParams) (SAOParams, error) {

	var out SAOParams
	if !sh.SAOLuma && !sh.SAOChroma {
		return out, nil
	}

	if left != nil {
		merge, err := cs.decodeSAOMergeFlag(c)
		if err != nil {
			return out, err
		}
		if merge {
			return *left, nil
		}
	}
	if up != nil {
		merge, err := cs.decodeSAOMergeFlag(c)
		if err != nil {
			return out, err
		}
		if merge {
			return *up, nil
		}
	}

	for cIdx := 0; cIdx < 3; cIdx++ {
		if cIdx == 0 && !sh.SAOLuma {
			continue
		}
		if cIdx > 0 && !sh.SAOChroma {
			continue
		}

		bitDepth := sps.BitDepthLuma
		if cIdx > 0 {
			bitDepth = sps.BitDepthChroma
		}

		if cIdx == 2 {
			out.Channel[2].TypeIdx = out.Channel[1].TypeIdx
			out.Channel[2].EOClass = out.Channel[1].EOClass
		} else {
			typeIdx, err := cs.decodeSAOTypeIdx(c)
			if err != nil {
				return out, err
			}
			out.Channel[cIdx].TypeIdx = typeIdx
		}

		ch := &out.Channel[cIdx]
		if ch.TypeIdx == SAONotApplied {
			continue
		}

		for i := 0; i < 4; i++ {
			v, err := c.decodeSAOOffsetAbs(bitDepth)
			if err != nil {
				return out, err
			}
			ch.OffsetAbs[i] = v
		}

		shift := bitDepth - min(bitDepth, 10)

		if ch.TypeIdx == SAOBand {
			for i := 0; i < 4; i++ {
				sign := 0
				if ch.OffsetAbs[i] != 0 {
					s, err := c.decodeSAOOffsetSign()
					if err != nil {
						return out, err
					}
					sign = s
				}
				ch.OffsetSign[i] = sign
			}
			pos, err := c.decodeSAOBandPosition()
			if err != nil {
				return out, err
			}
			ch.BandPosition = pos
			for i := 0; i < 4; i++ {
				v := ch.OffsetAbs[i] << uint(shift)
				if ch.OffsetSign[i] == 1 {
					v = -v
				}
				ch.OffsetVal[i+1] = v
			}
		} else { // SAOEdge
			if cIdx != 2 {
				cls, err := c.decodeSAOEOClass()
				if err != nil {
					return out, err
				}
				ch.EOClass = cls
			}
			for i := 0; i < 4; i++ {
				v := ch.OffsetAbs[i] << uint(shift)
				if i >= 2 {
					v = -v
				}
				ch.OffsetVal[i+1] = v
			}
		}
	}

	return out, nil
}
