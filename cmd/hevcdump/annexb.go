/*
NAME
  annexb.go

DESCRIPTION
  annexb.go splits an Annex-B byte stream into individual NAL units and
  removes emulation-prevention bytes, the two responsibilities
  h265dec.DecodeNALUnit's doc comment leaves to its caller. The
  start-code scan is adapted from codec/h264's Lex, which scans for the
  same 00 00 01 sequence to split access units; here the whole stream
  is buffered and split in one pass rather than streamed out with
  pacing, since hevcdump processes a complete file or watch-triggered
  file at a time.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package main

// splitAnnexB returns the payload (NAL header plus RBSP, start code
// excluded) of each NAL unit found in data. It accepts both 3-byte
// (00 00 01) and 4-byte (00 00 00 01) start codes.
func splitAnnexB(data []byte) [][]byte {
	var starts []int
	for i := 0; i+2 < len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			starts = append(starts, i+3)
		}
	}

	units := make([][]byte, 0, len(starts))
	for i, s := range starts {
		e := len(data)
		if i+1 < len(starts) {
			e = starts[i+1] - 3
			// A 4-byte start code for the next unit leaves one extra
			// leading zero byte at the end of this unit; drop it.
			if e > s && data[e-1] == 0 {
				e--
			}
		}
		if e > s {
			units = append(units, data[s:e])
		}
	}
	return units
}

// stripEmulationPrevention removes emulation_prevention_three_byte
// occurrences from a NAL unit's payload, per the Annex-B RBSP
// extraction process: any 0x03 immediately following two 0x00 bytes is
// dropped.
func stripEmulationPrevention(nal []byte) []byte {
	out := make([]byte, 0, len(nal))
	zeros := 0
	for _, b := range nal {
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		out = append(out, b)
		if b == 0x00 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}
