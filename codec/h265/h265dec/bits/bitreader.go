/*
NAME
  bitreader.go

DESCRIPTION
  bitreader.go provides a bit reader implementation that can read or peek
  from an io.Reader data source, plus the Exp-Golomb helpers syntax
  elements of descriptor ue(v)/se(v) are decoded with.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package bits provides a bit reader implementation that can read or peek
// from an io.Reader data source, along with Exp-Golomb decoding helpers.
package bits

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

type bytePeeker interface {
	io.ByteReader
	Peek(int) ([]byte, error)
}

// BitReader is a bit reader that provides methods for reading bits from an
// io.Reader source.
type BitReader struct {
	r     bytePeeker
	n     uint64
	bits  int
	nRead int
}

// NewBitReader returns a new BitReader.
func NewBitReader(r io.Reader) *BitReader {
	byter, ok := r.(bytePeeker)
	if !ok {
		byter = bufio.NewReader(r)
	}
	return &BitReader{r: byter}
}

// ReadBits reads n bits from the source and returns them in the
// least-significant part of a uint64.
func (br *BitReader) ReadBits(n int) (uint64, error) {
	for n > br.bits {
		b, err := br.r.ReadByte()
		if err == io.EOF {
			return 0, io.ErrUnexpectedEOF
		}
		if err != nil {
			return 0, err
		}
		br.nRead++
		br.n <<= 8
		br.n |= uint64(b)
		br.bits += 8
	}

	r := (br.n >> uint(br.bits-n)) & ((1 << uint(n)) - 1)
	br.bits -= n
	return r, nil
}

// PeekBits provides the next n bits, returning them in the least-significant
// part of a uint64, without advancing through the source.
func (br *BitReader) PeekBits(n int) (uint64, error) {
	byt, err := br.r.Peek(int((n-br.bits)+7) / 8)
	bits := br.bits
	if err != nil {
		if err == io.EOF {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, err
	}
	for i := 0; n > bits; i++ {
		b := byt[i]
		br.n <<= 8
		br.n |= uint64(b)
		bits += 8
	}

	r := (br.n >> uint(bits-n)) & ((1 << uint(n)) - 1)
	return r, nil
}

// SkipBits advances the reader by n bits without returning them.
func (br *BitReader) SkipBits(n int) error {
	for n > 32 {
		if _, err := br.ReadBits(32); err != nil {
			return err
		}
		n -= 32
	}
	_, err := br.ReadBits(n)
	return err
}

// AlignToByte discards bits until the reader sits on a byte boundary.
func (br *BitReader) AlignToByte() error {
	if br.bits == 0 {
		return nil
	}
	_, err := br.ReadBits(br.bits)
	return err
}

// ByteAligned returns true if the reader position is at the start of a byte,
// and false otherwise.
func (br *BitReader) ByteAligned() bool {
	return br.bits == 0
}

// Off returns the current offset from the starting bit of the current byte.
func (br *BitReader) Off() int {
	return br.bits
}

// BytesRead returns the number of bytes that have been read by the BitReader.
func (br *BitReader) BytesRead() int {
	return br.nRead
}

// BitsRemaining reports how many more bits can be read before the
// underlying source is exhausted, when that source's total length is
// known up front. total is the size of the source in bytes.
func (br *BitReader) BitsRemaining(total int) int {
	return total*8 - br.nRead*8 + br.bits
}

// ReadUE parses a syntax element of ue(v) descriptor: an unsigned integer
// Exp-Golomb-coded element, per section 9.2 of the HEVC draft this
// snapshot targets. The code consists of a run of leading zero bits, a
// terminating one bit, and an equal-length suffix; value = 2^k - 1 + suffix
// where k is the number of leading zero bits.
func (br *BitReader) ReadUE() (uint64, error) {
	leadingZeroBits := -1
	for b := uint64(0); b == 0; leadingZeroBits++ {
		var err error
		b, err = br.ReadBits(1)
		if err != nil {
			return 0, errors.Wrap(err, "could not read leading bit")
		}
		if leadingZeroBits > 31 {
			return 0, errors.New("ue(v) code exceeds maximum supported length")
		}
	}
	if leadingZeroBits == 0 {
		return 0, nil
	}
	suffix, err := br.ReadBits(leadingZeroBits)
	if err != nil {
		return 0, errors.Wrap(err, "could not read ue(v) suffix")
	}
	return (uint64(1)<<uint(leadingZeroBits) - 1) + suffix, nil
}

// ReadSE parses a syntax element with descriptor se(v): a signed integer
// Exp-Golomb-coded element, mapped from the unsigned codeNum per section
// 9.2.1: value = ceil(codeNum/2), negated when codeNum is even.
func (br *BitReader) ReadSE() (int64, error) {
	codeNum, err := br.ReadUE()
	if err != nil {
		return 0, errors.Wrap(err, "could not read ue(v) for se(v)")
	}
	v := int64((codeNum + 1) / 2)
	if codeNum%2 == 0 {
		v = -v
	}
	return v, nil
}
