/*
NAME
  sao_test.go

DESCRIPTION
  sao_test.go provides testing for functionality in sao.go and the SAO
  filtering dispatch in decoder.go, in particular that a channel with
  sao_type_idx == SAONotApplied leaves its samples unchanged.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import "testing"

// recordingDSP is a DSPCapability stub that records which SAO filter was
// invoked and stamps a distinctive value into dst, so a test can tell
// whether filterChannel actually called through to the DSP.
type recordingDSP struct {
	bandCalled bool
	edgeCalled bool
}

func (r *recordingDSP) Dequant(coeffs []int32, log2Size, qp, bitDepth int) {
	panic("not used by this test")
}

func (r *recordingDSP) TransformSkip(dst []uint8, stride int, coeffs []int32, log2Size, bitDepth int) {
	panic("not used by this test")
}

func (r *recordingDSP) TransformAdd(dst []uint8, stride int, coeffs []int32, log2Size, cIdx int, intraMode int, bitDepth int) {
	panic("not used by this test")
}

func (r *recordingDSP) TransquantBypass(dst []uint8, stride int, coeffs []int32, log2Size int) {
	panic("not used by this test")
}

func (r *recordingDSP) SAOBandFilter(dst, src []uint8, stride int, off [5]int, bandPos, w, h, bitDepth int) {
	r.bandCalled = true
	for i := range dst {
		dst[i] = 0xAA
	}
}

func (r *recordingDSP) SAOEdgeFilter(dst, src []uint8, stride int, off [5]int, eoClass int, top, bottom, left, right bool, w, h, bitDepth int) {
	r.edgeCalled = true
	for i := range dst {
		dst[i] = 0xBB
	}
}

func newSAOTestPlanes(stride, h int) (src, dst []uint8) {
	src = make([]uint8, stride*h)
	dst = make([]uint8, stride*h)
	for i := range src {
		src[i] = uint8(i + 1)
		dst[i] = uint8(i + 1)
	}
	return src, dst
}

func TestFilterChannelNotAppliedLeavesSamplesUnchanged(t *testing.T) {
	const stride, w, h = 8, 4, 4
	src, dst := newSAOTestPlanes(stride, h)

	dsp := &recordingDSP{}
	ch := SAOChannelParams{TypeIdx: SAONotApplied}
	filterChannel(dsp, ch, src, dst, stride, 0, 0, w, h, 8, true, true, true, true)

	for i := range dst {
		if dst[i] != src[i] {
			t.Fatalf("dst[%d] = %d, want unchanged %d", i, dst[i], src[i])
		}
	}
	if dsp.bandCalled || dsp.edgeCalled {
		t.Error("SAONotApplied must not invoke either DSP filter")
	}
}

func TestFilterChannelBandTypeInvokesBandFilter(t *testing.T) {
	const stride, w, h = 8, 4, 4
	src, dst := newSAOTestPlanes(stride, h)

	dsp := &recordingDSP{}
	ch := SAOChannelParams{TypeIdx: SAOBand}
	filterChannel(dsp, ch, src, dst, stride, 0, 0, w, h, 8, true, true, true, true)

	if !dsp.bandCalled {
		t.Error("expected SAOBandFilter to be invoked for a SAOBand channel")
	}
	if dsp.edgeCalled {
		t.Error("did not expect SAOEdgeFilter to be invoked for a SAOBand channel")
	}
}

func TestFilterChannelEdgeTypeInvokesEdgeFilter(t *testing.T) {
	const stride, w, h = 8, 4, 4
	src, dst := newSAOTestPlanes(stride, h)

	dsp := &recordingDSP{}
	ch := SAOChannelParams{TypeIdx: SAOEdge}
	filterChannel(dsp, ch, src, dst, stride, 0, 0, w, h, 8, true, true, true, true)

	if !dsp.edgeCalled {
		t.Error("expected SAOEdgeFilter to be invoked for a SAOEdge channel")
	}
	if dsp.bandCalled {
		t.Error("did not expect SAOBandFilter to be invoked for a SAOEdge channel")
	}
}

func TestParseSAOReturnsZeroValueWhenDisabled(t *testing.T) {
	sh := &SliceHeader{SAOLuma: false, SAOChroma: false}
	got, err := parseSAO(nil, nil, sh, nil, nil, nil, 0, 0, 0, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var want SAOParams
	if got != want {
		t.Errorf("parseSAO with SAO disabled = %+v, want zero value %+v", got, want)
	}
}
