/*
NAME
  stats.go

DESCRIPTION
  stats.go computes summary statistics for a decoded picture's luma
  plane, used by hevcdump to log a per-frame sanity signal without
  dumping raw pixel data.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package main

import (
	"gonum.org/v1/gonum/stat"

	"github.com/stseppo/libav/codec/h265/h265dec"
)

// lumaMeanStdDev reports the mean and standard deviation of f's luma
// samples.
func lumaMeanStdDev(f *h265dec.Frame) (mean, stddev float64) {
	samples := make([]float64, len(f.Y))
	for i, v := range f.Y {
		samples[i] = float64(v)
	}
	return stat.MeanStdDev(samples, nil)
}
