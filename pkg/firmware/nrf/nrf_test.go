package nrf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/nrfd/pkg/firmware"
	"github.com/dougsko/nrfd/pkg/hardware"
	"github.com/dougsko/nrfd/pkg/logging"
	"github.com/dougsko/nrfd/pkg/phy"
	"github.com/dougsko/nrfd/pkg/plcf"
	"github.com/dougsko/nrfd/pkg/rdc"
)

type fixture struct {
	fw    *Firmware
	radio *hardware.MockRadio
	out   *bytes.Buffer
	seen  []firmware.Observation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dc, err := rdc.Resolve("1.1.1.A")
	require.NoError(t, err)

	fx := &fixture{
		radio: hardware.NewMockRadio(hardware.RadioConfig{}),
		out:   &bytes.Buffer{},
	}
	cfg := DefaultConfig(dc)
	cfg.Logger = logging.New(fx.out, logging.LevelInfo)
	cfg.Observer = firmware.ObserverFunc(func(obs firmware.Observation) {
		fx.seen = append(fx.seen, obs)
	})

	fx.fw, err = New(cfg, fx.radio)
	require.NoError(t, err)
	fx.out.Reset()
	return fx
}

func (fx *fixture) count(label string) int {
	return strings.Count(fx.out.String(), "Type "+label+":")
}

func event(t *testing.T, records ...plcf.Record) phy.ControlChannelEvent {
	t.Helper()
	d := &plcf.Decoder{}
	for _, rec := range records {
		require.NoError(t, d.Set(rec))
	}
	return phy.ControlChannelEvent{
		Sync: phy.SyncReport{FinePeakTime: 123456},
		PCC:  phy.PCCReport{Decoder: d},
	}
}

func TestNewConfiguresRadio(t *testing.T) {
	fx := newFixture(t)

	cmds := fx.radio.Commands()
	require.Len(t, cmds, 4)

	kinds := []string{cmds[0].Kind, cmds[1].Kind, cmds[2].Kind, cmds[3].Kind}
	assert.Equal(t, []string{
		hardware.CmdCommandTime, hardware.CmdTxPower, hardware.CmdRxPower, hardware.CmdFrequency,
	}, kinds)
	assert.Equal(t, -1000.0, cmds[1].Value)
	assert.Equal(t, -30.0, cmds[2].Value)
	assert.InDelta(t, 1880.928e6, cmds[3].Value, 1)

	assert.Equal(t, "1.1.1.A", fx.fw.DeviceClass().Name)
	assert.Equal(t, Name, fx.fw.Name())
}

func TestNewRejectsBadCarrier(t *testing.T) {
	radio := hardware.NewMockRadio(hardware.RadioConfig{})

	cfg := DefaultConfig(rdc.RadioDeviceClass{})
	cfg.Band = 42
	_, err := New(cfg, radio)
	assert.Error(t, err)

	cfg = DefaultConfig(rdc.RadioDeviceClass{})
	cfg.Channel = 1
	_, err = New(cfg, radio)
	assert.Error(t, err)

	assert.Empty(t, radio.Commands(), "no command may be issued for an invalid carrier")

	_, err = New(DefaultConfig(rdc.RadioDeviceClass{}), nil)
	assert.Error(t, err)
}

func TestControlChannelType10Only(t *testing.T) {
	fx := newFixture(t)

	resp := fx.fw.OnControlChannel(event(t, &plcf.Type10{TransmitterIdentity: 0x1234, ShortNetworkID: 0x56}))
	assert.Equal(t, phy.MacLowResponse{}, resp)

	assert.Equal(t, 1, fx.count("10"))
	assert.Equal(t, 0, fx.count("20"))
	assert.Equal(t, 0, fx.count("21"))
	assert.Contains(t, fx.out.String(), "TransmitterIdentity=4660 ShortNetworkID=86 STF_time=123456")

	require.Len(t, fx.seen, 1)
	assert.Equal(t, "10", fx.seen[0].Type)
	assert.Nil(t, fx.seen[0].ReceiverIdentity)
}

func TestControlChannelBothTypes(t *testing.T) {
	fx := newFixture(t)

	fx.fw.OnControlChannel(event(t,
		&plcf.Type10{TransmitterIdentity: 1, ShortNetworkID: 2},
		&plcf.Type21{Type2Fields: plcf.Type2Fields{TransmitterIdentity: 3, ShortNetworkID: 4, ReceiverIdentity: 5}},
	))

	assert.Equal(t, 1, fx.count("10"))
	assert.Equal(t, 0, fx.count("20"))
	assert.Equal(t, 1, fx.count("21"))
	assert.Contains(t, fx.out.String(), "Type 21: TransmitterIdentity=3 ShortNetworkID=4 ReceiverIdentity=5 STF_time=123456")

	require.Len(t, fx.seen, 2)
	require.NotNil(t, fx.seen[1].ReceiverIdentity)
	assert.EqualValues(t, 5, *fx.seen[1].ReceiverIdentity)
}

func TestControlChannelType20(t *testing.T) {
	fx := newFixture(t)

	fx.fw.OnControlChannel(event(t, &plcf.Type20{
		Type2Fields:         plcf.Type2Fields{TransmitterIdentity: 7, ShortNetworkID: 8, ReceiverIdentity: 9},
		DFHARQProcessNumber: 2,
	}))

	assert.Equal(t, 0, fx.count("10"))
	assert.Equal(t, 1, fx.count("20"))
	assert.Equal(t, 0, fx.count("21"))
}

func TestControlChannelUnrecognizedFormats(t *testing.T) {
	fx := newFixture(t)

	ev := event(t,
		&plcf.Unrecognized{Type: plcf.Type1, Format: 3, Raw: make([]byte, plcf.Type1Size)},
		&plcf.Unrecognized{Type: plcf.Type2, Format: 2, Raw: make([]byte, plcf.Type2Size)},
	)
	assert.NotPanics(t, func() { fx.fw.OnControlChannel(ev) })

	assert.Empty(t, fx.out.String())
	assert.Empty(t, fx.seen)
}

func TestControlChannelDecodedBytes(t *testing.T) {
	fx := newFixture(t)

	d := &plcf.Decoder{}
	require.NoError(t, d.Decode(plcf.Type1, []byte{0x03, 0xAB, 0x12, 0x34, 0x52}))
	require.NoError(t, d.Decode(plcf.Type2, []byte{0x3F, 0x01, 0xBE, 0xEF, 0xA3, 0xCA, 0xFE, 0x40, 0x2A, 0xBC}))

	fx.fw.OnControlChannel(phy.ControlChannelEvent{PCC: phy.PCCReport{Decoder: d}})

	assert.Contains(t, fx.out.String(), "Type 10: TransmitterIdentity=4660 ShortNetworkID=171")
	assert.Contains(t, fx.out.String(), "Type 21: TransmitterIdentity=48879 ShortNetworkID=1 ReceiverIdentity=51966")
}

func TestControlChannelEmpty(t *testing.T) {
	fx := newFixture(t)

	fx.fw.OnControlChannel(phy.ControlChannelEvent{})
	fx.fw.OnControlChannel(event(t))
	assert.Empty(t, fx.out.String())
}

func requireViolation(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a contract violation panic")
		cv, ok := r.(*firmware.ContractViolation)
		require.True(t, ok, "expected *firmware.ContractViolation, got %T: %v", r, r)
		assert.Equal(t, Name, cv.Firmware)
	}()
	fn()
}

func TestNilRecordIsContractViolation(t *testing.T) {
	fx := newFixture(t)

	records := []struct {
		slot int
		rec  plcf.Record
	}{
		{plcf.Type1, (*plcf.Type10)(nil)},
		{plcf.Type1, (*plcf.Unrecognized)(nil)},
		{plcf.Type2, (*plcf.Type20)(nil)},
		{plcf.Type2, (*plcf.Type21)(nil)},
		{plcf.Type2, (*plcf.Unrecognized)(nil)},
	}
	for _, r := range records {
		requireViolation(t, func() { checkSlot(r.slot, r.rec) })
	}

	requireViolation(t, func() { fx.fw.classifyType1((*plcf.Unrecognized)(nil), 0) })
	requireViolation(t, func() { fx.fw.classifyType2((*plcf.Type21)(nil), 0) })
	assert.Empty(t, fx.seen)
}

func TestSlotMismatchIsContractViolation(t *testing.T) {
	requireViolation(t, func() { checkSlot(plcf.Type1, &plcf.Type21{}) })
	requireViolation(t, func() { checkSlot(plcf.Type2, &plcf.Unrecognized{Type: plcf.Type1}) })
}

func TestOtherHooksAreInert(t *testing.T) {
	fx := newFixture(t)

	assert.Equal(t, phy.IrregularReport{}, fx.fw.OnStart(1))
	assert.Equal(t, phy.MacHighResponse{}, fx.fw.OnRegular(phy.RegularReport{Time: 2}))
	assert.Equal(t, phy.MacHighResponse{}, fx.fw.OnIrregular(phy.IrregularReport{CallAt: 3}))
	assert.Equal(t, phy.MacHighResponse{}, fx.fw.OnDataChannel(phy.DataChannelEvent{}))
	assert.Equal(t, phy.MacHighResponse{}, fx.fw.OnDataChannelError(phy.DataChannelEvent{CRCError: true}))
	assert.Equal(t, phy.MacHighResponse{}, fx.fw.OnApplicationEvent(phy.ApplicationEvent{}))
	assert.Equal(t, phy.TxResponse{}, fx.fw.OnChannelScan(phy.ChannelScan{}))
	assert.Len(t, fx.radio.Commands(), 4, "hooks must not issue radio commands")
}

func TestOnStop(t *testing.T) {
	fx := newFixture(t)

	fx.fw.OnStop()
	assert.Contains(t, fx.out.String(), "OnStop() called")
	assert.Len(t, fx.radio.Commands(), 4)
	assert.Equal(t, "1.1.1.A", fx.fw.DeviceClass().Name)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, firmware.Names(), Name)

	dc, _ := rdc.Resolve("1.1.1.A")
	fw, err := firmware.New(Name, DefaultConfig(dc), hardware.NewMockRadio(hardware.RadioConfig{}))
	require.NoError(t, err)
	assert.Equal(t, Name, fw.Name())
}
