/*
NAME
  nalunit_test.go

DESCRIPTION
  nalunit_test.go provides testing for functionality in nalunit.go.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stseppo/libav/codec/h265/h265dec/bits"
)

func TestParseNALHeader(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want NALUnit
		err  bool
	}{
		{
			name: "SPS, layer 0, temporal id 0",
			// forbidden(0) type(100001=33) layer(000000) tid+1(001)
			in:   []byte{0b01000010, 0b00000001},
			want: NALUnit{Type: NALSPS, LayerID: 0, TemporalID: 0},
		},
		{
			name: "IDR_W_RADL, layer 0, temporal id 1",
			// forbidden(0) type(010011=19) layer(000000) tid+1(010)
			in:   []byte{0b00100110, 0b00000010},
			want: NALUnit{Type: NALIDRWDLP, LayerID: 0, TemporalID: 1},
		},
		{
			name: "forbidden bit set is an error",
			in:   []byte{0b10000010, 0b00000001},
			err:  true,
		},
	}

	for _, test := range tests {
		br := bits.NewBitReader(bytes.NewReader(test.in))
		got, err := ParseNALHeader(br)
		if test.err {
			if err == nil {
				t.Errorf("%s: expected an error, got none", test.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", test.name, err)
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("%s: NALUnit mismatch (-want +got):\n%s", test.name, diff)
		}
	}
}

func TestRecognized(t *testing.T) {
	for _, typ := range []uint8{NALTrailN, NALTrailR, NALIDRWDLP, NALVPS, NALSPS, NALPPS, NALAUD, NALFiller, NALSEI} {
		if !Recognized(typ) {
			t.Errorf("expected NAL type %d to be recognized", typ)
		}
	}
	for _, typ := range []uint8{20, 40, 63} {
		if Recognized(typ) {
			t.Errorf("expected NAL type %d to be unrecognized", typ)
		}
	}
}
