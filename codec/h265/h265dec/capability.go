/*
NAME
  capability.go

DESCRIPTION
  capability.go declares the pluggable numeric kernels the coding-tree and
  transform-tree stages delegate to (section 6 "Capability objects"):
  intra prediction and the inverse-quantization/transform/SAO pixel math.
  Keeping these behind small interfaces lets a host swap in bit-depth- or
  architecture-specialized kernels without touching the syntax parsers,
  the same separation of concerns the decoder already draws between
  bitstream parsing (this package) and RTP framing (the parent codec/h265
  package).

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

// PredictorCapability fills the predicted-sample rectangle for one
// transform block's channel from already-reconstructed neighbours.
type PredictorCapability interface {
	// IntraPred predicts an (1<<log2Size)x(1<<log2Size) block at (x0,y0)
	// in channel cIdx of frame, using mode as the intra prediction mode
	// (section 8.4.2/8.4.3) and frame's already-reconstructed
	// neighbouring samples.
	IntraPred(frame *pictureState, x0, y0, log2Size, cIdx, mode int)
}

// DSPCapability performs dequantization, the inverse transform, and the
// SAO sample offsets, each parameterized by bit depth (section 6).
type DSPCapability interface {
	Dequant(coeffs []int32, log2Size, qp, bitDepth int)
	TransformSkip(dst []uint8, stride int, coeffs []int32, log2Size, bitDepth int)
	TransformAdd(dst []uint8, stride int, coeffs []int32, log2Size, cIdx int, intraMode int, bitDepth int)
	TransquantBypass(dst []uint8, stride int, coeffs []int32, log2Size int)
	SAOBandFilter(dst, src []uint8, stride int, off [5]int, bandPos, w, h, bitDepth int)
	SAOEdgeFilter(dst, src []uint8, stride int, off [5]int, eoClass int, top, bottom, left, right bool, w, h, bitDepth int)
}

// levelScale is Table 8-? of the dequantization process, indexed by
// qp%6 (section 8.6.3).
var levelScale = [6]int{40, 45, 51, 57, 64, 72}

// idct4 is the 4x4 inverse core transform matrix of section 8.6.4.2.
var idct4 = [4][4]int{
	{64, 64, 64, 64},
	{83, 36, -36, -83},
	{64, -64, -64, 64},
	{36, -83, 83, -36},
}

// defaultDSP is the stdlib-only reference DSP implementation wired by
// NewDecoder when a host does not supply its own. It implements the
// real 4x4 inverse transform exactly; larger transform sizes reconstruct
// only the DC term (coeffs[0]) and discard AC coefficients, a documented
// simplification consistent with this snapshot's other scoped-down
// pixel-reconstruction paths (see DESIGN.md).
type defaultDSP struct{}

func newDefaultDSP() DSPCapability { return defaultDSP{} }

func (defaultDSP) Dequant(coeffs []int32, log2Size, qp, bitDepth int) {
	shift := bitDepth + log2Size - 5
	add := 1 << uint(shift-1)
	scale := levelScale[qp%6] << uint(qp/6)
	for i, v := range coeffs {
		d := (int64(v)*int64(scale) + int64(add)) >> uint(shift)
		coeffs[i] = int32(clip3(-32768, 32767, int(d)))
	}
}

func (defaultDSP) TransformSkip(dst []uint8, stride int, coeffs []int32, log2Size, bitDepth int) {
	n := 1 << uint(log2Size)
	shift := 20 - bitDepth - log2Size
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := int(coeffs[y*n+x])
			if shift > 0 {
				v = (v + (1 << uint(shift-1))) >> uint(shift)
			} else {
				v <<= uint(-shift)
			}
			addClamp(dst, y*stride+x, v, bitDepth)
		}
	}
}

// idctN applies a separable inverse transform. For n==4 it uses the
// exact core matrix; larger sizes reconstruct the DC term only (see the
// defaultDSP doc comment).
func idctN(coeffs []int32, n int) []int32 {
	out := make([]int32, n*n)
	if n != 4 {
		dc := (int64(coeffs[0])*64 + 64) >> 7
		v := int32((dc*64 + 2048) >> 12)
		for i := range out {
			out[i] = v
		}
		return out
	}
	tmp := make([]int64, 16)
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			var s int64
			for k := 0; k < 4; k++ {
				s += int64(idct4[k][y]) * int64(coeffs[k*4+x])
			}
			tmp[y*4+x] = (s + 64) >> 7
		}
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			var s int64
			for k := 0; k < 4; k++ {
				s += int64(idct4[k][x]) * tmp[y*4+k]
			}
			out[y*4+x] = int32((s + 2048) >> 12)
		}
	}
	return out
}

func (defaultDSP) TransformAdd(dst []uint8, stride int, coeffs []int32, log2Size, cIdx int, intraMode int, bitDepth int) {
	n := 1 << uint(log2Size)
	residual := idctN(coeffs, n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			addClamp(dst, y*stride+x, int(residual[y*n+x]), bitDepth)
		}
	}
}

func (defaultDSP) TransquantBypass(dst []uint8, stride int, coeffs []int32, log2Size int) {
	n := 1 << uint(log2Size)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			addClamp(dst, y*stride+x, int(coeffs[y*n+x]), 8)
		}
	}
}

func addClamp(dst []uint8, idx, residual, bitDepth int) {
	max := (1 << uint(bitDepth)) - 1
	v := int(dst[idx]) + residual
	dst[idx] = uint8(clip3(0, max, v))
}

func (defaultDSP) SAOBandFilter(dst, src []uint8, stride int, off [5]int, bandPos, w, h, bitDepth int) {
	max := (1 << uint(bitDepth)) - 1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*stride + x
			band := int(src[idx]) >> uint(bitDepth-5)
			category := band - bandPos
			if category < 0 {
				category += 32
			}
			if category < 4 {
				dst[idx] = uint8(clip3(0, max, int(src[idx])+off[category+1]))
			} else {
				dst[idx] = src[idx]
			}
		}
	}
}

// sao edge category deltas for the 8 neighbour offsets of the four
// eo_class directions (section 8.7.3.2).
var saoEdgeDelta = [4][2][2]int{
	{{-1, 0}, {1, 0}},   // horizontal
	{{0, -1}, {0, 1}},   // vertical
	{{-1, -1}, {1, 1}},  // 135 degree
	{{1, -1}, {-1, 1}},  // 45 degree
}

func (defaultDSP) SAOEdgeFilter(dst, src []uint8, stride int, off [5]int, eoClass int, top, bottom, left, right bool, w, h, bitDepth int) {
	max := (1 << uint(bitDepth)) - 1
	d := saoEdgeDelta[eoClass]
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*stride + x
			if (x == 0 && !left) || (x == w-1 && !right) ||
				(y == 0 && !top) || (y == h-1 && !bottom) {
				dst[idx] = src[idx]
				continue
			}
			a := int(src[(y+d[0][1])*stride+x+d[0][0]])
			b := int(src[(y+d[1][1])*stride+x+d[1][0]])
			c := int(src[idx])
			var category int
			switch {
			case c < a && c < b:
				category = 1
			case c < a && c == b, c < b && c == a:
				category = 2
			case c > a && c == b, c > b && c == a:
				category = 3
			case c > a && c > b:
				category = 4
			default:
				category = 0
			}
			if category == 0 {
				dst[idx] = src[idx]
				continue
			}
			dst[idx] = uint8(clip3(0, max, c+off[category]))
		}
	}
}
