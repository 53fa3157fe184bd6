/*
NAME
  annexb_test.go

DESCRIPTION
  annexb_test.go provides testing for functionality in annexb.go.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitAnnexBThreeByteStartCodes(t *testing.T) {
	data := []byte{
		0x00, 0x00, 0x01, 0x26, 0x01, 0xAA, 0xBB,
		0x00, 0x00, 0x01, 0x02, 0x03,
	}
	want := [][]byte{
		{0x26, 0x01, 0xAA, 0xBB},
		{0x02, 0x03},
	}
	got := splitAnnexB(data)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("splitAnnexB mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitAnnexBFourByteStartCode(t *testing.T) {
	data := []byte{
		0x00, 0x00, 0x00, 0x01, 0x40, 0x01,
		0x00, 0x00, 0x00, 0x01, 0x42, 0x02,
	}
	want := [][]byte{
		{0x40, 0x01},
		{0x42, 0x02},
	}
	got := splitAnnexB(data)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("splitAnnexB mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitAnnexBNoStartCodeIsEmpty(t *testing.T) {
	got := splitAnnexB([]byte{0x01, 0x02, 0x03})
	if len(got) != 0 {
		t.Errorf("expected no units, got %d", len(got))
	}
}

func TestStripEmulationPreventionRemovesThreeByte(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{
			name: "00 00 03 00 is de-escaped",
			in:   []byte{0x00, 0x00, 0x03, 0x00, 0x01},
			want: []byte{0x00, 0x00, 0x00, 0x01},
		},
		{
			name: "00 00 03 01 is de-escaped",
			in:   []byte{0x00, 0x00, 0x03, 0x01},
			want: []byte{0x00, 0x00, 0x01},
		},
		{
			name: "lone 03 is untouched",
			in:   []byte{0x01, 0x03, 0x02},
			want: []byte{0x01, 0x03, 0x02},
		},
		{
			name: "no escapes is untouched",
			in:   []byte{0x26, 0x01, 0xAA},
			want: []byte{0x26, 0x01, 0xAA},
		},
	}
	for _, test := range tests {
		got := stripEmulationPrevention(test.in)
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("%s: mismatch (-want +got):\n%s", test.name, diff)
		}
	}
}
