/*
NAME
  decoder.go

DESCRIPTION
  decoder.go provides the top-level decoder that turns a stream of HEVC
  NAL units into reconstructed frames: it owns the parameter-set caches,
  allocates picture-scale state when the active SPS changes, and drives
  one ctuDecoder per slice segment across a picture's CTBs in raster
  order (section 5).

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import (
	"bytes"

	"github.com/stseppo/libav/codec/h265/h265dec/bits"
)

// Frame is one reconstructed planar YUV 4:2:0 picture, acquired from and
// released back to a FrameProvider (section 6 "Persisted state layout").
type Frame struct {
	Y, Cb, Cr        []uint8
	StrideY, StrideC int
	Width, Height    int
}

// FrameProvider is the host collaborator that owns output buffer
// lifetime; the decoder acquires a buffer once a picture is complete
// and the caller releases it back once done displaying or encoding it.
type FrameProvider interface {
	AcquireFrame(width, height int) *Frame
	ReleaseFrame(f *Frame)
}

// Decoder decodes a sequence of HEVC NAL units into frames. It is not
// safe for concurrent use; the processing model is single-threaded and
// synchronous (section 5).
type Decoder struct {
	vps map[uint8]*VPS
	sps map[uint8]*SPS
	pps map[uint8]*PPS

	ps          *pictureState
	activeSPSID uint8

	predictor PredictorCapability
	dsp       DSPCapability

	frames FrameProvider
}

// NewDecoder returns a Decoder that acquires output buffers from
// frames. If predictor or dsp is nil, the stdlib-only reference
// implementations are used.
func NewDecoder(frames FrameProvider, predictor PredictorCapability, dsp DSPCapability) *Decoder {
	if predictor == nil {
		predictor = newDefaultPredictor()
	}
	if dsp == nil {
		dsp = newDefaultDSP()
	}
	return &Decoder{
		vps:       make(map[uint8]*VPS),
		sps:       make(map[uint8]*SPS),
		pps:       make(map[uint8]*PPS),
		predictor: predictor,
		dsp:       dsp,
		frames:    frames,
	}
}

// DecodeNALUnit parses and, for slice NAL units, decodes a single NAL
// unit. data starts with the 2-byte NAL unit header; emulation-prevention
// bytes must already be removed by the caller. It returns a non-nil Frame whenever decoding
// this NAL unit completed a picture; the caller must eventually pass it
// to ReleaseFrame.
func (d *Decoder) DecodeNALUnit(data []byte) (*Frame, error) {
	br := bits.NewBitReader(bytes.NewReader(data))
	nal, err := ParseNALHeader(br)
	if err != nil {
		return nil, err
	}
	if nal.LayerID != 0 {
		return nil, nil
	}
	if !Recognized(nal.Type) {
		return nil, nil
	}

	switch nal.Type {
	case NALVPS:
		v, err := ParseVPS(br)
		if err != nil {
			return nil, err
		}
		d.vps[v.VPSID] = v
		return nil, nil

	case NALSPS:
		s, err := ParseSPS(br)
		if err != nil {
			return nil, err
		}
		d.sps[s.SPSID] = s
		return nil, nil

	case NALPPS:
		p, err := ParsePPS(br, d.lookupSPS)
		if err != nil {
			return nil, err
		}
		d.pps[p.PPSID] = p
		return nil, nil

	case NALAUD, NALFiller, NALSEI:
		return nil, nil

	case NALTrailN, NALTrailR, NALIDRWDLP:
		return d.decodeSlice(br, nal.Type)

	default:
		return nil, nil
	}
}

func (d *Decoder) lookupSPS(id uint8) (*SPS, bool) { s, ok := d.sps[id]; return s, ok }
func (d *Decoder) lookupPPS(id uint8) (*PPS, bool) { p, ok := d.pps[id]; return p, ok }

// decodeSlice parses one slice segment header and decodes its CTBs,
// publishing a completed frame if this slice segment's CTBs reach the
// picture's last raster address.
func (d *Decoder) decodeSlice(br *bits.BitReader, nalType uint8) (*Frame, error) {
	sh, err := ParseSliceHeader(br, nalType, d.lookupSPS, d.lookupPPS)
	if err != nil {
		return nil, err
	}
	pps, _ := d.lookupPPS(sh.PPSID)
	sps, _ := d.lookupSPS(pps.SPSID)

	if sh.FirstSliceInPicFlag || d.ps == nil || d.activeSPSID != sps.SPSID {
		d.ps = newPictureState(sps, pps)
		d.activeSPSID = sps.SPSID
	}

	c, err := NewCABAC(br)
	if err != nil {
		return nil, err
	}
	cs := newSliceCabacState(sh.SliceType, sh.CabacInitFlag, sh.SliceQPY)

	ctbAddrRS := sh.SliceSegmentAddress
	minCbX := (ctbAddrRS % sps.PicWidthInCtbs) << uint(sps.Log2CtbSize-sps.Log2MinCodingBlockSize)
	minCbY := (ctbAddrRS / sps.PicWidthInCtbs) << uint(sps.Log2CtbSize-sps.Log2MinCodingBlockSize)
	sliceCbAddrZsVal := pps.MinCbAddrZS[minCbY*sps.PicWidthInMinCbs+minCbX]

	lastAddrTS := pps.CtbAddrRSToTS[sps.PicWidthInCtbs*sps.PicHeightInCtbs-1]

	for {
		ctbAddrTS := pps.CtbAddrRSToTS[ctbAddrRS]
		ctu := &ctuDecoder{
			c: c, cs: cs, ps: d.ps, sps: sps, pps: pps, sh: sh,
			ctbAddrRS: ctbAddrRS, ctbAddrTS: ctbAddrTS, sliceCbAddrZs: sliceCbAddrZsVal,
			predictor: d.predictor, dsp: d.dsp,
		}
		end, err := ctu.decodeCTU()
		if err != nil {
			return nil, err
		}

		picComplete := ctbAddrTS == lastAddrTS

		if end || picComplete {
			if picComplete {
				return d.finishPicture(sps, sh)
			}
			return nil, nil
		}

		nextTS := ctbAddrTS + 1
		ctbAddrRS = pps.CtbAddrTSToRS[nextTS]

		tileStart := pps.TilesEnabledFlag && pps.TileID[nextTS] != pps.TileID[ctbAddrTS]
		rowStart := pps.EntropyCodingSyncEnabledFlag &&
			(ctbAddrRS%sps.PicWidthInCtbs == 0 || pps.TileID[nextTS] != pps.TileID[pps.CtbAddrRSToTS[ctbAddrRS-1]])
		if tileStart || rowStart {
			if _, err := c.decodeEndOfSubsetOneBit(); err != nil {
				return nil, err
			}
			if err := c.br.AlignToByte(); err != nil {
				return nil, newErr(InsufficientData, err, "could not align after end_of_subset_one_bit")
			}
			if err := c.reinit(); err != nil {
				return nil, err
			}
			cs = newSliceCabacState(sh.SliceType, sh.CabacInitFlag, sh.SliceQPY)
		}
	}
}

// finishPicture runs deblocking then SAO over the completed picture and
// publishes the result via the FrameProvider.
func (d *Decoder) finishPicture(sps *SPS, sh *SliceHeader) (*Frame, error) {
	if !sh.DeblockingFilterDisabledFlag {
		qp := sh.SliceQPY
		deblockPicture(d.ps, qp, sps.BitDepthLuma)
	}

	out := d.frames.AcquireFrame(sps.PicWidthInLumaSamples, sps.PicHeightInLumaSamples)
	applySAO(d.ps, d.dsp, out, sh, sps)
	return out, nil
}

// applySAO filters the deblocked picture in ps into out, per CTB and
// per channel, using each CTB's parsed SAOParams (section 4.11).
func applySAO(ps *pictureState, dsp DSPCapability, out *Frame, sh *SliceHeader, sps *SPS) {
	ctbSize := 1 << uint(sps.Log2CtbSize)
	picW, picH := sps.PicWidthInLumaSamples, sps.PicHeightInLumaSamples

	copy(out.Y, ps.lumaSamples)
	copy(out.Cb, ps.cbSamples)
	copy(out.Cr, ps.crSamples)

	if !sh.SAOLuma && !sh.SAOChroma {
		return
	}

	for ctbAddrRS := range ps.sao {
		rx := ctbAddrRS % sps.PicWidthInCtbs
		ry := ctbAddrRS / sps.PicWidthInCtbs
		x0, y0 := rx*ctbSize, ry*ctbSize
		w := min(ctbSize, picW-x0)
		h := min(ctbSize, picH-y0)
		if w <= 0 || h <= 0 {
			continue
		}

		params := ps.sao[ctbAddrRS]
		filterChannel(dsp, params.Channel[0], ps.lumaSamples, out.Y, picW, x0, y0, w, h, sps.BitDepthLuma,
			rx > 0, rx < sps.PicWidthInCtbs-1, ry > 0, ry < sps.PicHeightInCtbs-1)

		cw, ch := w/2, h/2
		if cw <= 0 || ch <= 0 {
			continue
		}
		cStride := picW / 2
		filterChannel(dsp, params.Channel[1], ps.cbSamples, out.Cb, cStride, x0/2, y0/2, cw, ch, sps.BitDepthChroma,
			rx > 0, rx < sps.PicWidthInCtbs-1, ry > 0, ry < sps.PicHeightInCtbs-1)
		filterChannel(dsp, params.Channel[2], ps.crSamples, out.Cr, cStride, x0/2, y0/2, cw, ch, sps.BitDepthChroma,
			rx > 0, rx < sps.PicWidthInCtbs-1, ry > 0, ry < sps.PicHeightInCtbs-1)
	}
}

func filterChannel(dsp DSPCapability, ch SAOChannelParams, src, dst []uint8, stride, x0, y0, w, h, bitDepth int,
	left, right, top, bottom bool) {
	if ch.TypeIdx == SAONotApplied {
		return
	}
	srcWindow := src[y0*stride+x0:]
	dstWindow := dst[y0*stride+x0:]
	switch ch.TypeIdx {
	case SAOBand:
		dsp.SAOBandFilter(dstWindow, srcWindow, stride, ch.OffsetVal, ch.BandPosition, w, h, bitDepth)
	case SAOEdge:
		dsp.SAOEdgeFilter(dstWindow, srcWindow, stride, ch.OffsetVal, ch.EOClass, top, bottom, left, right, w, h, bitDepth)
	}
}

