// Package chscan measures channel occupancy from baseband IQ captures.
package chscan

import (
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/dougsko/nrfd/pkg/hardware"
	"github.com/dougsko/nrfd/pkg/phy"
)

// Floor is reported for a capture with no energy.
const Floor = -200.0

// Params controls one measurement.
type Params struct {
	SampleRate float64 // Hz
	Frequency  float64 // carrier the samples were captured at, Hz
	Bandwidth  float64 // width of the measured band around the carrier, Hz
	Threshold  float64 // in-band power at or above which the channel is busy, dBFS
}

func (p Params) validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %g", p.SampleRate)
	}
	if p.Bandwidth <= 0 {
		return fmt.Errorf("invalid bandwidth %g", p.Bandwidth)
	}
	return nil
}

// Measure computes the RSSI of the whole capture and the power inside the
// band, both in dBFS. The in-band figure comes from a Hann windowed FFT.
func Measure(samples []complex128, p Params) (phy.ChannelScan, error) {
	if len(samples) < 2 {
		return phy.ChannelScan{}, fmt.Errorf("need at least 2 samples, got %d", len(samples))
	}
	if err := p.validate(); err != nil {
		return phy.ChannelScan{}, err
	}

	n := len(samples)

	var total float64
	for _, s := range samples {
		total += sqMag(s)
	}
	rssi := toDB(total / float64(n))

	w := window.Hann(n)
	var wPower float64
	windowed := make([]complex128, n)
	for i, s := range samples {
		windowed[i] = s * complex(w[i], 0)
		wPower += w[i] * w[i]
	}

	spectrum := fft.FFT(windowed)

	half := p.Bandwidth / 2
	var inBand float64
	for k, x := range spectrum {
		if math.Abs(binFrequency(k, n, p.SampleRate)) <= half {
			inBand += sqMag(x)
		}
	}
	if wPower > 0 {
		inBand /= float64(n) * wPower
	}
	inBandDB := toDB(inBand)

	return phy.ChannelScan{
		Frequency:   p.Frequency,
		RSSI:        float32(rssi),
		InBandPower: float32(inBandDB),
		Busy:        inBandDB >= p.Threshold,
	}, nil
}

// Scan captures n samples from s and measures them.
func Scan(s hardware.Sampler, n int, p Params) (phy.ChannelScan, error) {
	if p.SampleRate == 0 {
		p.SampleRate = s.SampleRate()
	}

	samples, err := s.CaptureIQ(n)
	if err != nil {
		return phy.ChannelScan{}, fmt.Errorf("failed to capture samples: %w", err)
	}

	scan, err := Measure(samples, p)
	if err != nil {
		return phy.ChannelScan{}, err
	}
	scan.Time = time.Now().UnixNano()
	return scan, nil
}

// binFrequency maps FFT bin k to its baseband offset in Hz.
func binFrequency(k, n int, sampleRate float64) float64 {
	if k >= (n+1)/2 {
		k -= n
	}
	return float64(k) * sampleRate / float64(n)
}

func sqMag(c complex128) float64 {
	m := cmplx.Abs(c)
	return m * m
}

func toDB(power float64) float64 {
	if power <= 0 {
		return Floor
	}
	return math.Max(10*math.Log10(power), Floor)
}
