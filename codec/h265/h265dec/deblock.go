/*
NAME
  deblock.go

DESCRIPTION
  deblock.go implements the in-loop deblocking filter of section 8.7.2.
  This snapshot is intra-only: every coding block boundary is treated as
  a boundary strength of 2, and only the luma plane is filtered, on the
  CTB grid (section 4.10).

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

const maxQP = 51

// betaTable is Table 8-12's beta' column, indexed by clipped QP.
var betaTable = [maxQP + 1]int{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 20, 22, 24,
	26, 28, 30, 32, 34, 36, 38, 40, 42, 44, 46, 48, 50, 52, 54, 56,
	58, 60, 62, 64,
}

// tcTable is Table 8-12's tc' column, indexed by clipped (qp + 2*(bs-1)).
var tcTable = [maxQP + 3]int{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 2, 2, 2,
	2, 3, 3, 3, 3, 4, 4, 4, 5, 5,
	6, 6, 7, 8, 9, 10, 11, 13, 14, 16,
	18, 20, 22, 24,
}

// deblockPicture applies the vertical-then-horizontal CTB-grid luma
// deblocking filter to ps.lumaSamples in place, per spec.md §4.10.
// Boundary strength is fixed at 2, reflecting this snapshot's
// intra-only scope.
func deblockPicture(ps *pictureState, qpY, bitDepth int) {
	w := ps.sps.PicWidthInLumaSamples
	h := ps.sps.PicHeightInLumaSamples
	ctbSize := 1 << uint(ps.sps.Log2CtbSize)

	beta := betaTable[clip3(0, maxQP, qpY)] << uint(bitDepth-8)
	tc := tcTable[clip3(0, maxQP+2, qpY+2)] << uint(bitDepth-8)

	for x := ctbSize; x < w; x += ctbSize {
		for y := 0; y+4 <= h; y += 4 {
			deblockVerticalSegment(ps.lumaSamples, w, x, y, beta, tc, bitDepth)
		}
	}
	for y := ctbSize; y < h; y += ctbSize {
		for x := 0; x+4 <= w; x += 4 {
			deblockHorizontalSegment(ps.lumaSamples, w, x, y, beta, tc, bitDepth)
		}
	}
}

// deblockVerticalSegment filters the 4-row segment straddling the
// vertical edge at column x (P samples at x-1..x-4, Q samples at
// x..x+3), per section 8.7.2.5.3.
func deblockVerticalSegment(plane []uint8, stride, x, y, beta, tc, bitDepth int) {
	get := func(dx, dy int) int { return int(plane[(y+dy)*stride+x+dx]) }
	set := func(dx, dy, v int) { plane[(y+dy)*stride+x+dx] = clipSample(v, bitDepth) }
	filterSegment(get, set, beta, tc, bitDepth)
}

// deblockHorizontalSegment filters the 4-column segment straddling the
// horizontal edge at row y.
func deblockHorizontalSegment(plane []uint8, stride, x, y, beta, tc, bitDepth int) {
	get := func(dx, dy int) int { return int(plane[(y+dx)*stride+x+dy]) }
	set := func(dx, dy, v int) { plane[(y+dx)*stride+x+dy] = clipSample(v, bitDepth) }
	filterSegment(get, set, beta, tc, bitDepth)
}

// filterSegment implements the strength decision and strong/normal
// filtering of section 8.7.2.5.3/8.7.2.5.7, addressing samples via get
// (p-side at negative offsets, q-side at non-negative offsets) and set.
// For a vertical edge the first coordinate is the column offset (-4..3)
// and the second is the row (0..3); for a horizontal edge the roles are
// swapped by the caller.
func filterSegment(get func(dx, dy int) int, set func(dx, dy, v int), beta, tc, bitDepth int) {
	p := func(i, row int) int { return get(-1-i, row) }
	q := func(i, row int) int { return get(i, row) }

	d0 := abs(p(2, 0)-2*p(1, 0)+p(0, 0)) + abs(q(2, 0)-2*q(1, 0)+q(0, 0))
	d3 := abs(p(2, 3)-2*p(1, 3)+p(0, 3)) + abs(q(2, 3)-2*q(1, 3)+q(0, 3))
	if d0+d3 >= beta {
		return
	}

	strongRow := func(row int) bool {
		return abs(p(3, row)-p(0, row))+abs(q(3, row)-q(0, row)) < beta/8 &&
			abs(p(0, row)-q(0, row)) < (5*tc+1)/2
	}
	strong := strongRow(0) && strongRow(3) && 2*d0 < beta/4 && 2*d3 < beta/4

	for row := 0; row < 4; row++ {
		if strong {
			filterStrongLine(get, set, row, tc)
		} else {
			filterNormalLine(get, set, row, tc, d0+d3 < beta)
		}
	}
}

func filterStrongLine(get func(dx, dy int) int, set func(dx, dy, v int), row, tc int) {
	p0, p1, p2, p3 := get(-1, row), get(-2, row), get(-3, row), get(-4, row)
	q0, q1, q2, q3 := get(0, row), get(1, row), get(2, row), get(3, row)

	clipDelta := func(orig, v int) int {
		return clip3(orig-2*tc, orig+2*tc, v)
	}
	set(-1, row, clipDelta(p0, (p2+2*p1+2*p0+2*q0+q1+4)>>3))
	set(-2, row, clipDelta(p1, (p2+p1+p0+q0+2)>>2))
	set(-3, row, clipDelta(p2, (2*p3+3*p2+p1+p0+q0+4)>>3))
	set(0, row, clipDelta(q0, (p1+2*p0+2*q0+2*q1+q2+4)>>3))
	set(1, row, clipDelta(q1, (p0+q0+q1+q2+2)>>2))
	set(2, row, clipDelta(q2, (2*q3+3*q2+q1+q0+p0+4)>>3))
}

func filterNormalLine(get func(dx, dy int) int, set func(dx, dy, v int), row, tc int, apply bool) {
	if !apply {
		return
	}
	p0, p1 := get(-1, row), get(-2, row)
	q0, q1 := get(0, row), get(1, row)

	delta0 := (9*(q0-p0) - 3*(q1-p1) + 8) >> 4
	if abs(delta0) >= 10*tc {
		return
	}
	delta0 = clip3(-tc, tc, delta0)
	set(-1, row, p0+delta0)
	set(0, row, q0-delta0)

	tc2 := tc / 2
	p2 := get(-3, row)
	dp := abs(p2-2*p1+p0)
	if dp < tc2 {
		deltaP := clip3(-tc2, tc2, (p2+((p0+q0+1)>>1)-2*p1)>>1)
		set(-2, row, p1+deltaP)
	}

	q2 := get(2, row)
	dq := abs(q2-2*q1+q0)
	if dq < tc2 {
		deltaQ := clip3(-tc2, tc2, (q2+((p0+q0+1)>>1)-2*q1)>>1)
		set(1, row, q1+deltaQ)
	}
}

func clipSample(v, bitDepth int) uint8 {
	max := (1 << uint(bitDepth)) - 1
	return uint8(clip3(0, max, v))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
