/*
NAME
  frames.go

DESCRIPTION
  frames.go provides the FrameProvider hevcdump hands to h265dec.Decoder:
  a trivial allocator that hands out a fresh Frame per completed picture
  and discards it on release, since this diagnostic tool only needs to
  log picture statistics, not retain buffers for display or encoding.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package main

import "github.com/stseppo/libav/codec/h265/h265dec"

type allocatingFrameProvider struct{}

func (allocatingFrameProvider) AcquireFrame(width, height int) *h265dec.Frame {
	return &h265dec.Frame{
		Y:       make([]uint8, width*height),
		Cb:      make([]uint8, width*height/4),
		Cr:      make([]uint8, width*height/4),
		StrideY: width,
		StrideC: width / 2,
		Width:   width,
		Height:  height,
	}
}

func (allocatingFrameProvider) ReleaseFrame(f *h265dec.Frame) {}
