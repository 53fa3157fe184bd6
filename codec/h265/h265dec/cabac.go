/*
NAME
  cabac.go

DESCRIPTION
  cabac.go implements the CABAC arithmetic decoding engine, as defined in
  section 9.3.4.3, used to decode every slice_segment_data() syntax
  element.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import (
	"github.com/stseppo/libav/codec/h265/h265dec/bits"
)

// context holds the adaptive state for a single context variable: the
// probability state index and the value currently taken as most probable
// (Tab 9-47, section 9.3.4.3.2.1).
type context struct {
	pStateIdx int
	valMPS    int
}

// initContext derives the initial pStateIdx/valMPS for a context variable
// given its initValue and the slice's SliceQPY, per the Eq. 9-5/9-6
// initialization process of section 9.3.2.2.
func initContext(initValue, sliceQPY int) context {
	slopeIdx := initValue >> 4
	offsetIdx := initValue & 15
	m := slopeIdx*5 - 45
	n := (offsetIdx << 3) - 16
	preCtxState := clip3(1, 126, ((m*clip3(0, 51, sliceQPY))>>4)+n)
	if preCtxState <= 63 {
		return context{pStateIdx: 63 - preCtxState, valMPS: 0}
	}
	return context{pStateIdx: preCtxState - 64, valMPS: 1}
}

func clip3(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CABAC is the arithmetic decoding engine state for one slice segment
// (section 9.3.4.3.2), carrying codIRange/codIOffset across every bin
// decoded within the segment.
type CABAC struct {
	br        *bits.BitReader
	codIRange int
	codIOffset int
}

// NewCABAC initializes the arithmetic decoding engine (section 9.3.4.3.2.1)
// for a bitstream positioned at the start of slice_segment_data(), after
// byte_alignment() has already been consumed by the caller.
func NewCABAC(br *bits.BitReader) (*CABAC, error) {
	off, err := br.ReadBits(9)
	if err != nil {
		return nil, newErr(InsufficientData, err, "could not read codIOffset")
	}
	return &CABAC{br: br, codIRange: 510, codIOffset: int(off)}, nil
}

// reinit reinitializes the engine at a new byte-aligned position, used
// when entropy_coding_sync_enabled_flag or tiles_enabled_flag cause a new
// substream to begin (section 9.3.2.4, 9.3.2.5).
func (c *CABAC) reinit() error {
	off, err := c.br.ReadBits(9)
	if err != nil {
		return newErr(InsufficientData, err, "could not read codIOffset on reinit")
	}
	c.codIRange = 510
	c.codIOffset = int(off)
	return nil
}

// decodeBin decodes one regular (context-coded) bin against ctx, updating
// ctx in place (section 9.3.4.3.2.2).
func (c *CABAC) decodeBin(ctx *context) (int, error) {
	qIdx := (c.codIRange >> 6) & 3
	codIRangeLPS := retCodIRangeLPS(ctx.pStateIdx, qIdx)
	c.codIRange -= codIRangeLPS

	var binVal int
	if c.codIOffset >= c.codIRange {
		binVal = 1 - ctx.valMPS
		c.codIOffset -= c.codIRange
		c.codIRange = codIRangeLPS
		if ctx.pStateIdx == 0 {
			ctx.valMPS = 1 - ctx.valMPS
		}
		ctx.pStateIdx = transIdxLPS[ctx.pStateIdx]
	} else {
		binVal = ctx.valMPS
		ctx.pStateIdx = transIdxMPS[ctx.pStateIdx]
	}

	if err := c.renorm(); err != nil {
		return 0, err
	}
	return binVal, nil
}

// renorm implements RenormD (section 9.3.4.3.2.2).
func (c *CABAC) renorm() error {
	for c.codIRange < 256 {
		c.codIRange <<= 1
		bit, err := c.br.ReadBits(1)
		if err != nil {
			return newErr(InsufficientData, err, "could not read renormalization bit")
		}
		c.codIOffset = (c.codIOffset << 1) | int(bit)
	}
	return nil
}

// decodeBypass decodes one bypass-coded bin (section 9.3.4.3.4).
func (c *CABAC) decodeBypass() (int, error) {
	bit, err := c.br.ReadBits(1)
	if err != nil {
		return 0, newErr(InsufficientData, err, "could not read bypass bit")
	}
	c.codIOffset = (c.codIOffset << 1) | int(bit)
	if c.codIOffset >= c.codIRange {
		c.codIOffset -= c.codIRange
		return 1, nil
	}
	return 0, nil
}

// decodeBypassBits decodes n bypass bins, MSB first, returning their
// combined value. Used for fixed-length and Exp-Golomb suffixes.
func (c *CABAC) decodeBypassBits(n int) (int, error) {
	v := 0
	for i := 0; i < n; i++ {
		b, err := c.decodeBypass()
		if err != nil {
			return 0, err
		}
		v = (v << 1) | b
	}
	return v, nil
}

// decodeTerminate decodes end_of_slice_segment_flag / end_of_subset_one_bit
// / pcm_flag (section 9.3.4.3.5).
func (c *CABAC) decodeTerminate() (int, error) {
	c.codIRange -= 2
	if c.codIOffset >= c.codIRange {
		return 1, nil
	}
	if err := c.renorm(); err != nil {
		return 0, err
	}
	return 0, nil
}

// decodeTU decodes a truncated-unary-binarized syntax element with the
// given cMax, consuming one context-coded bin per call from ctxs (indexed
// by binIdx, saturating at the last entry) until either a 0 bin or cMax is
// reached (section 9.3.3.3).
func decodeTU(c *CABAC, ctxs []context, cMax int) (int, error) {
	for i := 0; i < cMax; i++ {
		idx := i
		if idx >= len(ctxs) {
			idx = len(ctxs) - 1
		}
		bin, err := c.decodeBin(&ctxs[idx])
		if err != nil {
			return 0, err
		}
		if bin == 0 {
			return i, nil
		}
	}
	return cMax, nil
}

// decodeBypassUE decodes a k-th order Exp-Golomb-binarized value using
// bypass bins only (used for coeff_abs_level_remaining, section 9.3.3.11).
func decodeBypassUE(c *CABAC, k int) (int, error) {
	prefix := 0
	for {
		b, err := c.decodeBypass()
		if err != nil {
			return 0, err
		}
		if b == 0 {
			break
		}
		prefix++
		if prefix > 32 {
			return 0, newErrf(InvalidData, "coeff_abs_level_remaining prefix too long")
		}
	}
	if prefix < 3 {
		suffix, err := c.decodeBypassBits(k)
		if err != nil {
			return 0, err
		}
		return (prefix << uint(k)) + suffix, nil
	}
	suffix, err := c.decodeBypassBits(prefix - 3 + k)
	if err != nil {
		return 0, err
	}
	return (((1 << uint(prefix-3)) + 3 - 1) << uint(k)) + suffix, nil
}
