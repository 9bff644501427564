// Package channel implements DECT NR+ absolute channel frequency numbering.
package channel

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownBand       = errors.New("unknown band number")
	ErrChannelOutOfRange = errors.New("channel number outside band")
)

// Every band shares one raster: FC = 450.144 MHz + (n-1) * 0.864 MHz.
const (
	RasterStart = 450.144e6
	RasterStep  = 0.864e6
)

// ACFN is the absolute channel frequency numbering of one band.
type ACFN struct {
	BandNumber int
	NMin       int
	NMax       int
}

// Carrier is a resolved channel and its center frequency.
type Carrier struct {
	N  int
	FC float64
}

var bands = map[int]ACFN{
	1: {BandNumber: 1, NMin: 1657, NMax: 1677},
	2: {BandNumber: 2, NMin: 1680, NMax: 1700},
	3: {BandNumber: 3, NMin: 1703, NMax: 1723},
}

// AbsoluteChannelFrequencyNumbering returns the numbering for a band.
func AbsoluteChannelFrequencyNumbering(band int) (ACFN, error) {
	acfn, ok := bands[band]
	if !ok {
		return ACFN{}, fmt.Errorf("%w: %d", ErrUnknownBand, band)
	}
	return acfn, nil
}

// CenterFrequency returns the carrier of channel n within acfn.
func CenterFrequency(acfn ACFN, n int) (Carrier, error) {
	if n < acfn.NMin || n > acfn.NMax {
		return Carrier{}, fmt.Errorf("%w: %d not in [%d,%d] for band %d",
			ErrChannelOutOfRange, n, acfn.NMin, acfn.NMax, acfn.BandNumber)
	}
	return Carrier{
		N:  n,
		FC: RasterStart + float64(n-1)*RasterStep,
	}, nil
}

// Channels lists every channel number of acfn.
func (a ACFN) Channels() []int {
	ch := make([]int, 0, a.NMax-a.NMin+1)
	for n := a.NMin; n <= a.NMax; n++ {
		ch = append(ch, n)
	}
	return ch
}
