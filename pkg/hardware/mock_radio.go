package hardware

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"sync"
	"time"

	"github.com/dougsko/nrfd/pkg/logging"
)

// MockRadio implements Controller and Sampler without hardware. It records
// every command so callers can inspect the issued sequence.
type MockRadio struct {
	config RadioConfig
	mutex  sync.RWMutex

	commands    []Command
	frequency   float64
	txPower     float32
	rxPower     float32
	commandTime time.Time

	tones []tone
	rng   *rand.Rand
}

type tone struct {
	offset float64
	dBFS   float64
}

// NewMockRadio creates a new mock radio
func NewMockRadio(config RadioConfig) *MockRadio {
	if config.SampleRate == 0 {
		config.SampleRate = DefaultSampleRate
	}
	if config.NoiseFloorDBFS == 0 {
		config.NoiseFloorDBFS = -90
	}
	if config.Model == "" {
		config.Model = "mock"
	}
	return &MockRadio{
		config: config,
		rng:    rand.New(rand.NewSource(1)),
	}
}

func (r *MockRadio) record(kind string, value float64) {
	r.commands = append(r.commands, Command{Kind: kind, Value: value, Time: time.Now()})
}

// SetCommandTime latches the command time
func (r *MockRadio) SetCommandTime() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.commandTime = time.Now()
	r.record(CmdCommandTime, 0)
	logging.Debugf("radio", "command time latched at %s", r.commandTime.Format(time.RFC3339Nano))
}

// SetTxPowerAnt0dBFSUniform sets the same TX power on every antenna
func (r *MockRadio) SetTxPowerAnt0dBFSUniform(dBFS float32) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.txPower = dBFS
	r.record(CmdTxPower, float64(dBFS))
	logging.Debugf("radio", "TX power set to %.1f dBFS", dBFS)
}

// SetRxPowerAnt0dBFSUniform sets the same RX reference power on every antenna
func (r *MockRadio) SetRxPowerAnt0dBFSUniform(dBFS float32) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.rxPower = dBFS
	r.record(CmdRxPower, float64(dBFS))
	logging.Debugf("radio", "RX power set to %.1f dBFS", dBFS)
}

// SetFrequency tunes the carrier
func (r *MockRadio) SetFrequency(hz float64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.frequency = hz
	r.record(CmdFrequency, hz)
	logging.Debugf("radio", "frequency set to %.3f MHz", hz/1e6)
}

// Commands returns a copy of the issued commands in order.
func (r *MockRadio) Commands() []Command {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Status returns the applied configuration
func (r *MockRadio) Status() RadioStatus {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return RadioStatus{
		Model:       r.config.Model,
		Frequency:   r.frequency,
		TxPowerDBFS: r.txPower,
		RxPowerDBFS: r.rxPower,
		CommandTime: r.commandTime,
		Commands:    len(r.commands),
	}
}

// AddTone adds a carrier at offset Hz from the tuned frequency to every
// subsequent capture.
func (r *MockRadio) AddTone(offset, dBFS float64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.tones = append(r.tones, tone{offset: offset, dBFS: dBFS})
}

// SampleRate returns the capture sample rate
func (r *MockRadio) SampleRate() float64 {
	return r.config.SampleRate
}

// CaptureIQ returns n samples of complex Gaussian noise at the configured
// noise floor plus any added tones.
func (r *MockRadio) CaptureIQ(n int) ([]complex128, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid capture length %d", n)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	sigma := math.Sqrt(math.Pow(10, r.config.NoiseFloorDBFS/10) / 2)
	samples := make([]complex128, n)
	for i := range samples {
		samples[i] = complex(r.rng.NormFloat64()*sigma, r.rng.NormFloat64()*sigma)
	}

	for _, t := range r.tones {
		amp := math.Sqrt(math.Pow(10, t.dBFS/10))
		w := 2 * math.Pi * t.offset / r.config.SampleRate
		for i := range samples {
			samples[i] += complex(amp, 0) * cmplx.Exp(complex(0, w*float64(i)))
		}
	}

	return samples, nil
}
