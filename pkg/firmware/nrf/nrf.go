// Package nrf is a listen-only firmware that classifies the PLCF of every
// received packet and logs the transmitter, network and receiver
// identities.
package nrf

import (
	"fmt"
	"time"

	"github.com/dougsko/nrfd/pkg/channel"
	"github.com/dougsko/nrfd/pkg/firmware"
	"github.com/dougsko/nrfd/pkg/hardware"
	"github.com/dougsko/nrfd/pkg/logging"
	"github.com/dougsko/nrfd/pkg/phy"
	"github.com/dougsko/nrfd/pkg/plcf"
	"github.com/dougsko/nrfd/pkg/rdc"
)

// Name is the registered firmware name.
const Name = "nrf"

// Carrier and power used by the reference setup.
const (
	DefaultBand        = 1
	DefaultChannel     = 1657
	DefaultTxPowerDBFS = -1000.0
	DefaultRxPowerDBFS = -30.0
)

func init() {
	firmware.Register(Name, func(cfg firmware.Config, hw hardware.Controller) (firmware.Firmware, error) {
		return New(cfg, hw)
	})
}

// Firmware classifies control channel headers. It keeps no state beyond
// its construction-time configuration.
type Firmware struct {
	firmware.Base

	hw          hardware.Controller
	deviceClass rdc.RadioDeviceClass
	log         *logging.Logger
	observer    firmware.Observer
}

// DefaultConfig returns the reference carrier and power settings.
func DefaultConfig(dc rdc.RadioDeviceClass) firmware.Config {
	return firmware.Config{
		DeviceClass: dc,
		Band:        DefaultBand,
		Channel:     DefaultChannel,
		TxPowerDBFS: DefaultTxPowerDBFS,
		RxPowerDBFS: DefaultRxPowerDBFS,
	}
}

// New tunes the radio and returns the firmware. The four commands are issued
// in order: command time, TX power, RX power, frequency.
func New(cfg firmware.Config, hw hardware.Controller) (*Firmware, error) {
	if hw == nil {
		return nil, fmt.Errorf("hardware controller is nil")
	}

	acfn, err := channel.AbsoluteChannelFrequencyNumbering(cfg.Band)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channel numbering: %w", err)
	}
	fc, err := channel.CenterFrequency(acfn, cfg.Channel)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve center frequency: %w", err)
	}

	f := &Firmware{
		hw:          hw,
		deviceClass: cfg.DeviceClass,
		log:         cfg.Log(),
		observer:    cfg.Observer,
	}

	hw.SetCommandTime()
	hw.SetTxPowerAnt0dBFSUniform(cfg.TxPowerDBFS)
	hw.SetRxPowerAnt0dBFSUniform(cfg.RxPowerDBFS)
	hw.SetFrequency(fc.FC)

	f.log.Info(Name, "firmware configured", map[string]interface{}{
		"device_class": cfg.DeviceClass.Name,
		"band":         cfg.Band,
		"channel":      cfg.Channel,
		"fc_mhz":       fc.FC / 1e6,
	})
	return f, nil
}

func (f *Firmware) Name() string { return Name }

// DeviceClass returns the class the firmware was configured with.
func (f *Firmware) DeviceClass() rdc.RadioDeviceClass {
	return f.deviceClass
}

// OnControlChannel classifies the type 1 and type 2 records independently;
// a packet may carry both.
func (f *Firmware) OnControlChannel(event phy.ControlChannelEvent) phy.MacLowResponse {
	if rec, ok := event.PCC.Decoder.Record(plcf.Type1); ok {
		f.classifyType1(rec, event.Sync.FinePeakTime)
	}
	if rec, ok := event.PCC.Decoder.Record(plcf.Type2); ok {
		f.classifyType2(rec, event.Sync.FinePeakTime)
	}
	return phy.MacLowResponse{}
}

func (f *Firmware) OnStop() {
	f.log.Info(Name, "OnStop() called")
}

func (f *Firmware) classifyType1(rec plcf.Record, stf int64) {
	checkSlot(plcf.Type1, rec)

	p, ok := rec.(*plcf.Type10)
	if !ok {
		return
	}

	f.log.Infof(Name, "Type 10: TransmitterIdentity=%d ShortNetworkID=%d STF_time=%d",
		p.TransmitterIdentity, p.ShortNetworkID, stf)
	f.observe("10", p.TransmitterIdentity, p.ShortNetworkID, nil, stf)
}

func (f *Firmware) classifyType2(rec plcf.Record, stf int64) {
	checkSlot(plcf.Type2, rec)

	var (
		label  string
		fields *plcf.Type2Fields
	)
	switch p := rec.(type) {
	case *plcf.Type20:
		label, fields = "20", &p.Type2Fields
	case *plcf.Type21:
		label, fields = "21", &p.Type2Fields
	default:
		// other formats are not used by this firmware
		return
	}

	f.log.Infof(Name, "Type %s: TransmitterIdentity=%d ShortNetworkID=%d ReceiverIdentity=%d STF_time=%d",
		label, fields.TransmitterIdentity, fields.ShortNetworkID, fields.ReceiverIdentity, stf)
	rx := fields.ReceiverIdentity
	f.observe(label, fields.TransmitterIdentity, fields.ShortNetworkID, &rx, stf)
}

func (f *Firmware) observe(label string, tx uint16, snid uint8, rx *uint16, stf int64) {
	if f.observer == nil {
		return
	}
	f.observer.Observe(firmware.Observation{
		Timestamp:           time.Now(),
		Firmware:            Name,
		Type:                label,
		TransmitterIdentity: tx,
		ShortNetworkID:      snid,
		ReceiverIdentity:    rx,
		STFTime:             stf,
	})
}

// checkSlot enforces the decoder guarantee that a record is non-nil and is
// only ever returned for its own header type.
func checkSlot(slot int, rec plcf.Record) {
	if plcf.IsNil(rec) {
		firmware.Violate(Name, "type %d slot holds a nil %T", slot, rec)
	}
	if got := rec.HeaderType(); got != slot {
		firmware.Violate(Name, "decoder returned a type %d record for type %d", got, slot)
	}
}
