// Package plcf models the DECT NR+ Physical-Layer Control Field. A PLCF is a
// tagged union: the header type (1 or 2) selects the size, and the 3-bit
// HeaderFormat field selects the layout within that size.
package plcf

import (
	"errors"
	"fmt"
)

// Header types.
const (
	Type1 = 1
	Type2 = 2
)

// Encoded sizes in bytes.
const (
	Type1Size = 5
	Type2Size = 10
)

var (
	ErrHeaderType  = errors.New("unknown PLCF header type")
	ErrShortBuffer = errors.New("PLCF buffer too short")
	ErrFieldRange  = errors.New("PLCF field out of range")
)

// Record is one decoded PLCF. The concrete type is one of *Type10, *Type20,
// *Type21 or *Unrecognized.
type Record interface {
	HeaderType() int
	HeaderFormat() int
	sealed()
}

// Type10 is header type 1, format 0.
type Type10 struct {
	PacketLengthType    uint8
	PacketLength        uint8
	ShortNetworkID      uint8
	TransmitterIdentity uint16
	TransmitPower       uint8
	DFMCS               uint8
}

// Type2Fields are shared by every type 2 format.
type Type2Fields struct {
	PacketLengthType       uint8
	PacketLength           uint8
	ShortNetworkID         uint8
	TransmitterIdentity    uint16
	TransmitPower          uint8
	DFMCS                  uint8
	ReceiverIdentity       uint16
	NumberOfSpatialStreams uint8
	FeedbackFormat         uint8
	FeedbackInfo           uint16
}

// Type20 is header type 2, format 0, used for HARQ data transmissions.
type Type20 struct {
	Type2Fields
	DFRedundancyVersion uint8
	DFNewDataIndication uint8
	DFHARQProcessNumber uint8
}

// Type21 is header type 2, format 1, used without HARQ.
type Type21 struct {
	Type2Fields
}

// Unrecognized holds a PLCF whose format has no layout here.
type Unrecognized struct {
	Type   int
	Format int
	Raw    []byte
}

func (*Type10) HeaderType() int   { return Type1 }
func (*Type10) HeaderFormat() int { return 0 }
func (*Type10) sealed()           {}

func (*Type20) HeaderType() int   { return Type2 }
func (*Type20) HeaderFormat() int { return 0 }
func (*Type20) sealed()           {}

func (*Type21) HeaderType() int   { return Type2 }
func (*Type21) HeaderFormat() int { return 1 }
func (*Type21) sealed()           {}

func (u *Unrecognized) HeaderType() int   { return u.Type }
func (u *Unrecognized) HeaderFormat() int { return u.Format }
func (*Unrecognized) sealed()             {}

// IsNil reports whether rec is nil or a nil pointer to one of the variants.
func IsNil(rec Record) bool {
	switch p := rec.(type) {
	case nil:
		return true
	case *Type10:
		return p == nil
	case *Type20:
		return p == nil
	case *Type21:
		return p == nil
	case *Unrecognized:
		return p == nil
	}
	return false
}

// Size returns the encoded size of a header type.
func Size(headerType int) (int, error) {
	switch headerType {
	case Type1:
		return Type1Size, nil
	case Type2:
		return Type2Size, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrHeaderType, headerType)
	}
}

// Unpack decodes the PLCF of the given header type from b. Extra trailing
// bytes are ignored.
func Unpack(headerType int, b []byte) (Record, error) {
	size, err := Size(headerType)
	if err != nil {
		return nil, err
	}
	if len(b) < size {
		return nil, fmt.Errorf("%w: type %d needs %d bytes, got %d", ErrShortBuffer, headerType, size, len(b))
	}

	r := &bitReader{buf: b[:size]}
	format := int(r.read(3))

	if headerType == Type1 {
		if format != 0 {
			return unrecognized(headerType, format, b[:size]), nil
		}
		p := &Type10{}
		p.PacketLengthType = uint8(r.read(1))
		p.PacketLength = uint8(r.read(4))
		p.ShortNetworkID = uint8(r.read(8))
		p.TransmitterIdentity = uint16(r.read(16))
		p.TransmitPower = uint8(r.read(4))
		r.read(1) // reserved
		p.DFMCS = uint8(r.read(3))
		return p, nil
	}

	if format != 0 && format != 1 {
		return unrecognized(headerType, format, b[:size]), nil
	}

	var f Type2Fields
	f.PacketLengthType = uint8(r.read(1))
	f.PacketLength = uint8(r.read(4))
	f.ShortNetworkID = uint8(r.read(8))
	f.TransmitterIdentity = uint16(r.read(16))
	f.TransmitPower = uint8(r.read(4))
	f.DFMCS = uint8(r.read(4))
	f.ReceiverIdentity = uint16(r.read(16))
	f.NumberOfSpatialStreams = uint8(r.read(2))

	if format == 0 {
		p := &Type20{}
		p.DFRedundancyVersion = uint8(r.read(2))
		p.DFNewDataIndication = uint8(r.read(1))
		p.DFHARQProcessNumber = uint8(r.read(3))
		f.FeedbackFormat = uint8(r.read(4))
		f.FeedbackInfo = uint16(r.read(12))
		p.Type2Fields = f
		return p, nil
	}

	r.read(6) // reserved
	f.FeedbackFormat = uint8(r.read(4))
	f.FeedbackInfo = uint16(r.read(12))
	return &Type21{Type2Fields: f}, nil
}

// Pack encodes a record into its wire form.
func Pack(rec Record) ([]byte, error) {
	switch p := rec.(type) {
	case *Type10:
		if err := checkFields(
			field{"PacketLengthType", uint32(p.PacketLengthType), 1},
			field{"PacketLength", uint32(p.PacketLength), 4},
			field{"TransmitPower", uint32(p.TransmitPower), 4},
			field{"DFMCS", uint32(p.DFMCS), 3},
		); err != nil {
			return nil, err
		}
		w := &bitWriter{buf: make([]byte, Type1Size)}
		w.write(0, 3)
		w.write(uint32(p.PacketLengthType), 1)
		w.write(uint32(p.PacketLength), 4)
		w.write(uint32(p.ShortNetworkID), 8)
		w.write(uint32(p.TransmitterIdentity), 16)
		w.write(uint32(p.TransmitPower), 4)
		w.write(0, 1)
		w.write(uint32(p.DFMCS), 3)
		return w.buf, nil

	case *Type20:
		if err := checkFields(
			field{"DFRedundancyVersion", uint32(p.DFRedundancyVersion), 2},
			field{"DFNewDataIndication", uint32(p.DFNewDataIndication), 1},
			field{"DFHARQProcessNumber", uint32(p.DFHARQProcessNumber), 3},
		); err != nil {
			return nil, err
		}
		w, err := packType2(0, &p.Type2Fields)
		if err != nil {
			return nil, err
		}
		w.write(uint32(p.DFRedundancyVersion), 2)
		w.write(uint32(p.DFNewDataIndication), 1)
		w.write(uint32(p.DFHARQProcessNumber), 3)
		w.write(uint32(p.FeedbackFormat), 4)
		w.write(uint32(p.FeedbackInfo), 12)
		return w.buf, nil

	case *Type21:
		w, err := packType2(1, &p.Type2Fields)
		if err != nil {
			return nil, err
		}
		w.write(0, 6)
		w.write(uint32(p.FeedbackFormat), 4)
		w.write(uint32(p.FeedbackInfo), 12)
		return w.buf, nil

	case *Unrecognized:
		size, err := Size(p.Type)
		if err != nil {
			return nil, err
		}
		if len(p.Raw) < size {
			return nil, fmt.Errorf("%w: raw type %d PLCF has %d bytes", ErrShortBuffer, p.Type, len(p.Raw))
		}
		return append([]byte(nil), p.Raw[:size]...), nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrHeaderType, rec)
	}
}

func packType2(format uint32, f *Type2Fields) (*bitWriter, error) {
	if err := checkFields(
		field{"PacketLengthType", uint32(f.PacketLengthType), 1},
		field{"PacketLength", uint32(f.PacketLength), 4},
		field{"TransmitPower", uint32(f.TransmitPower), 4},
		field{"DFMCS", uint32(f.DFMCS), 4},
		field{"NumberOfSpatialStreams", uint32(f.NumberOfSpatialStreams), 2},
		field{"FeedbackFormat", uint32(f.FeedbackFormat), 4},
		field{"FeedbackInfo", uint32(f.FeedbackInfo), 12},
	); err != nil {
		return nil, err
	}

	w := &bitWriter{buf: make([]byte, Type2Size)}
	w.write(format, 3)
	w.write(uint32(f.PacketLengthType), 1)
	w.write(uint32(f.PacketLength), 4)
	w.write(uint32(f.ShortNetworkID), 8)
	w.write(uint32(f.TransmitterIdentity), 16)
	w.write(uint32(f.TransmitPower), 4)
	w.write(uint32(f.DFMCS), 4)
	w.write(uint32(f.ReceiverIdentity), 16)
	w.write(uint32(f.NumberOfSpatialStreams), 2)
	return w, nil
}

type field struct {
	name  string
	value uint32
	width int
}

func checkFields(fields ...field) error {
	for _, f := range fields {
		if f.value >= 1<<uint(f.width) {
			return fmt.Errorf("%w: %s=%d exceeds %d bits", ErrFieldRange, f.name, f.value, f.width)
		}
	}
	return nil
}

func unrecognized(headerType, format int, b []byte) *Unrecognized {
	return &Unrecognized{
		Type:   headerType,
		Format: format,
		Raw:    append([]byte(nil), b...),
	}
}
