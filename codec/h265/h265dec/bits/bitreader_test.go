/*
NAME
  bitreader_test.go

DESCRIPTION
  bitreader_test.go provides testing for functionality in bitreader.go.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package bits

import (
	"bytes"
	"errors"
	"testing"
)

// binToSlice turns a string of '0'/'1' characters (spaces ignored) into
// the bytes it represents, left-padding the final byte with zero bits.
func binToSlice(s string) ([]byte, error) {
	var (
		a     byte = 0x80
		cur   byte
		out   []byte
	)
	for i, c := range s {
		switch c {
		case ' ':
			continue
		case '1':
			cur |= a
		case '0':
		default:
			return nil, errors.New("invalid binary string")
		}
		a >>= 1
		if a == 0 || i == len(s)-1 {
			out = append(out, cur)
			cur = 0
			a = 0x80
		}
	}
	return out, nil
}

func TestReadBits(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want uint64
	}{
		{in: "1011 0000", n: 4, want: 0xB},
		{in: "0000 0001 1111 1111", n: 16, want: 0x1FF},
		{in: "1000 0000", n: 1, want: 1},
	}
	for i, test := range tests {
		raw, err := binToSlice(test.in)
		if err != nil {
			t.Fatalf("test %d: binToSlice error: %v", i, err)
		}
		br := NewBitReader(bytes.NewReader(raw))
		got, err := br.ReadBits(test.n)
		if err != nil {
			t.Fatalf("test %d: ReadBits error: %v", i, err)
		}
		if got != test.want {
			t.Errorf("test %d: got %d, want %d", i, got, test.want)
		}
	}
}

func TestReadUE(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{in: "1", want: 0},
		{in: "010", want: 1},
		{in: "011", want: 2},
		{in: "00100", want: 3},
		{in: "00101", want: 4},
		{in: "0001000", want: 7},
	}
	for i, test := range tests {
		raw, err := binToSlice(test.in)
		if err != nil {
			t.Fatalf("test %d: binToSlice error: %v", i, err)
		}
		br := NewBitReader(bytes.NewReader(raw))
		got, err := br.ReadUE()
		if err != nil {
			t.Fatalf("test %d: ReadUE error: %v", i, err)
		}
		if got != test.want {
			t.Errorf("test %d: got %d, want %d", i, got, test.want)
		}
	}
}

func TestReadSE(t *testing.T) {
	// codeNum -> se(v) mapping per section 9.2.1: 0,1,2,3,4 -> 0,1,-1,2,-2.
	tests := []struct {
		codeNum string
		want    int64
	}{
		{codeNum: "1", want: 0},
		{codeNum: "010", want: 1},
		{codeNum: "011", want: -1},
		{codeNum: "00100", want: 2},
		{codeNum: "00101", want: -2},
	}
	for i, test := range tests {
		raw, err := binToSlice(test.codeNum)
		if err != nil {
			t.Fatalf("test %d: binToSlice error: %v", i, err)
		}
		br := NewBitReader(bytes.NewReader(raw))
		got, err := br.ReadSE()
		if err != nil {
			t.Fatalf("test %d: ReadSE error: %v", i, err)
		}
		if got != test.want {
			t.Errorf("test %d: got %d, want %d", i, got, test.want)
		}
	}
}

func TestUERoundTripAllSmallValues(t *testing.T) {
	// Exp-Golomb codeNum k is 2^m - 1 + suffix for leading-zero count m;
	// build the bit pattern for each of the first 64 codeNums and confirm
	// ReadUE recovers it, exercising every leading-zero-count up to 6.
	for want := uint64(0); want < 64; want++ {
		m := 0
		for (uint64(1)<<uint(m+1))-1 <= want {
			m++
		}
		suffix := want - (uint64(1)<<uint(m) - 1)

		var bitsStr string
		for i := 0; i < m; i++ {
			bitsStr += "0"
		}
		bitsStr += "1"
		for i := m - 1; i >= 0; i-- {
			if suffix&(1<<uint(i)) != 0 {
				bitsStr += "1"
			} else {
				bitsStr += "0"
			}
		}
		// pad to a whole number of bytes
		for len(bitsStr)%8 != 0 {
			bitsStr += "0"
		}

		raw, err := binToSlice(bitsStr)
		if err != nil {
			t.Fatalf("want=%d: binToSlice error: %v", want, err)
		}
		br := NewBitReader(bytes.NewReader(raw))
		got, err := br.ReadUE()
		if err != nil {
			t.Fatalf("want=%d: ReadUE error: %v", want, err)
		}
		if got != want {
			t.Errorf("want=%d: got %d", want, got)
		}
	}
}

func TestAlignToByte(t *testing.T) {
	raw, err := binToSlice("101 00000")
	if err != nil {
		t.Fatalf("binToSlice error: %v", err)
	}
	br := NewBitReader(bytes.NewReader(raw))
	if _, err := br.ReadBits(3); err != nil {
		t.Fatalf("ReadBits error: %v", err)
	}
	if br.ByteAligned() {
		t.Fatal("expected reader not to be byte aligned after reading 3 bits")
	}
	if err := br.AlignToByte(); err != nil {
		t.Fatalf("AlignToByte error: %v", err)
	}
	if !br.ByteAligned() {
		t.Error("expected reader to be byte aligned after AlignToByte")
	}
}
