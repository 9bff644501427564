// Package phy holds the reports the lower MAC/PHY hands to firmware and the
// responses firmware hands back. Times are in the scheduler's time base.
package phy

import "github.com/dougsko/nrfd/pkg/plcf"

// SyncReport describes the synchronization of a received packet.
type SyncReport struct {
	// FinePeakTime is the STF fine peak time, corrected by the fractional
	// symbol timing offset.
	FinePeakTime int64
	RMS          float32
}

// PCCReport is the outcome of decoding the physical control channel.
type PCCReport struct {
	Decoder *plcf.Decoder
	SNR     float32
}

// ControlChannelEvent is delivered once per received PCC.
type ControlChannelEvent struct {
	Sync SyncReport
	PCC  PCCReport
}

// DataChannelEvent is delivered once per received PDC, whether its CRC
// passed or not.
type DataChannelEvent struct {
	Sync     SyncReport
	PCC      PCCReport
	Payload  []byte
	CRCError bool
}

// RegularReport is the periodic tick.
type RegularReport struct {
	Time int64
}

// IrregularReport asks the scheduler for a one-off callback. The zero value
// asks for nothing.
type IrregularReport struct {
	CallAt int64
}

// Scheduled reports whether a callback was requested.
func (r IrregularReport) Scheduled() bool {
	return r.CallAt > 0
}

// ApplicationEvent carries data written by a local application.
type ApplicationEvent struct {
	Connection int
	Payload    []byte
	Time       int64
}

// ChannelScan is the measured occupancy of one channel.
type ChannelScan struct {
	Frequency   float64 `json:"frequency"`
	RSSI        float32 `json:"rssi_dbfs"`
	InBandPower float32 `json:"in_band_power_dbfs"`
	Busy        bool    `json:"busy"`
	Time        int64   `json:"time"`
}

// TxDescriptor describes one packet the firmware wants transmitted.
type TxDescriptor struct {
	Start      int64
	HeaderType int
	PLCF       []byte
	Payload    []byte
}

// MacLowResponse answers a control channel event.
type MacLowResponse struct {
	ContinueWithPDC bool
}

// MacHighResponse answers events above the PCC.
type MacHighResponse struct {
	Tx        []TxDescriptor
	Irregular IrregularReport
}

// TxResponse answers a channel scan.
type TxResponse struct {
	Tx []TxDescriptor
}
