package hardware

import "time"

// Controller is the command interface of the lower MAC/PHY. Commands are
// fire-and-forget; the implementation serializes them and surfaces its own
// execution errors.
type Controller interface {
	// SetCommandTime latches the execution time for the commands that follow.
	SetCommandTime()
	SetTxPowerAnt0dBFSUniform(dBFS float32)
	SetRxPowerAnt0dBFSUniform(dBFS float32)
	SetFrequency(hz float64)
}

// Sampler captures baseband IQ samples at the current carrier.
type Sampler interface {
	CaptureIQ(n int) ([]complex128, error)
	SampleRate() float64
}

// RadioConfig represents radio configuration
type RadioConfig struct {
	Model          string  // Free-form model name shown in status
	SampleRate     float64 // Baseband sample rate in Hz
	NoiseFloorDBFS float64 // Noise power of captured samples
}

// RadioStatus is a snapshot of the applied configuration.
type RadioStatus struct {
	Model       string    `json:"model"`
	Frequency   float64   `json:"frequency"`
	TxPowerDBFS float32   `json:"tx_power_dbfs"`
	RxPowerDBFS float32   `json:"rx_power_dbfs"`
	CommandTime time.Time `json:"command_time"`
	Commands    int       `json:"commands"`
}

// Command kinds recorded by MockRadio.
const (
	CmdCommandTime = "command_time"
	CmdTxPower     = "tx_power"
	CmdRxPower     = "rx_power"
	CmdFrequency   = "frequency"
)

// Command is one issued control command.
type Command struct {
	Kind  string
	Value float64
	Time  time.Time
}

// DECT NR+ baseband rate for u=1 with a 64 point FFT (27 kHz * 64).
const DefaultSampleRate = 1.728e6
