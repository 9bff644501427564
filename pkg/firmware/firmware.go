// Package firmware defines the contract between the lower MAC/PHY scheduler
// and upper-layer firmware.
//
// The scheduler calls OnStart once, then any interleaving of the event hooks,
// then OnStop exactly once. Hooks are never called concurrently for the same
// instance and must return without blocking. A firmware talks to the radio
// only through the hardware.Controller it was constructed with.
package firmware

import (
	"fmt"
	"time"

	"github.com/dougsko/nrfd/pkg/hardware"
	"github.com/dougsko/nrfd/pkg/logging"
	"github.com/dougsko/nrfd/pkg/phy"
	"github.com/dougsko/nrfd/pkg/rdc"
)

// Firmware is implemented by every firmware module.
type Firmware interface {
	Name() string

	OnStart(startTime int64) phy.IrregularReport
	OnRegular(report phy.RegularReport) phy.MacHighResponse
	OnIrregular(report phy.IrregularReport) phy.MacHighResponse
	OnControlChannel(event phy.ControlChannelEvent) phy.MacLowResponse
	OnDataChannel(event phy.DataChannelEvent) phy.MacHighResponse
	OnDataChannelError(event phy.DataChannelEvent) phy.MacHighResponse
	OnApplicationEvent(event phy.ApplicationEvent) phy.MacHighResponse
	OnChannelScan(scan phy.ChannelScan) phy.TxResponse
	OnStop()
}

// Config is handed to a firmware at construction.
type Config struct {
	DeviceClass rdc.RadioDeviceClass

	Band        int
	Channel     int
	TxPowerDBFS float32
	RxPowerDBFS float32

	// Logger defaults to the global logger when nil.
	Logger *logging.Logger
	// Observer, when set, receives every classified PLCF.
	Observer Observer
}

// Log returns the configured logger or the global one.
func (c Config) Log() *logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.GetGlobalLogger()
}

// Base supplies empty responses for every hook. Embed it and override the
// hooks you need.
type Base struct{}

func (Base) OnStart(int64) phy.IrregularReport { return phy.IrregularReport{} }

func (Base) OnRegular(phy.RegularReport) phy.MacHighResponse { return phy.MacHighResponse{} }

func (Base) OnIrregular(phy.IrregularReport) phy.MacHighResponse { return phy.MacHighResponse{} }

func (Base) OnControlChannel(phy.ControlChannelEvent) phy.MacLowResponse {
	return phy.MacLowResponse{}
}

func (Base) OnDataChannel(phy.DataChannelEvent) phy.MacHighResponse { return phy.MacHighResponse{} }

func (Base) OnDataChannelError(phy.DataChannelEvent) phy.MacHighResponse {
	return phy.MacHighResponse{}
}

func (Base) OnApplicationEvent(phy.ApplicationEvent) phy.MacHighResponse {
	return phy.MacHighResponse{}
}

func (Base) OnChannelScan(phy.ChannelScan) phy.TxResponse { return phy.TxResponse{} }

func (Base) OnStop() {}

// NoopName is the registered name of Noop.
const NoopName = "noop"

// Noop ignores every event.
type Noop struct {
	Base
}

func (Noop) Name() string { return NoopName }

func init() {
	Register(NoopName, func(Config, hardware.Controller) (Firmware, error) {
		return Noop{}, nil
	})
}

// ContractViolation reports a broken guarantee of an upstream collaborator,
// such as a decoder handing out a record that does not match its slot. It is
// raised with panic and is never recoverable inside the firmware.
type ContractViolation struct {
	Firmware string
	Detail   string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("firmware %s: contract violation: %s", e.Firmware, e.Detail)
}

// Violate panics with a *ContractViolation.
func Violate(firmware, format string, args ...interface{}) {
	panic(&ContractViolation{Firmware: firmware, Detail: fmt.Sprintf(format, args...)})
}

// Observation is one PLCF classified by a firmware.
type Observation struct {
	ID                  int64     `json:"id,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
	Firmware            string    `json:"firmware"`
	Type                string    `json:"type"`
	TransmitterIdentity uint16    `json:"transmitter_identity"`
	ShortNetworkID      uint8     `json:"short_network_id"`
	ReceiverIdentity    *uint16   `json:"receiver_identity,omitempty"`
	STFTime             int64     `json:"stf_time"`
}

// Observer receives observations. Implementations must not block.
type Observer interface {
	Observe(obs Observation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Observation)

func (f ObserverFunc) Observe(obs Observation) { f(obs) }

// Observers fans an observation out to every non-nil observer.
func Observers(observers ...Observer) Observer {
	var list []Observer
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return ObserverFunc(func(obs Observation) {
		for _, o := range list {
			o.Observe(obs)
		}
	})
}
