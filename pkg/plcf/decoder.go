package plcf

import "fmt"

// Decoder holds the PLCF records found in one received packet, at most one
// per header type. The zero value is an empty decoder.
type Decoder struct {
	records [Type2 + 1]Record
}

// Decode unpacks b as the given header type and stores the result,
// replacing any earlier record of that type.
func (d *Decoder) Decode(headerType int, b []byte) error {
	rec, err := Unpack(headerType, b)
	if err != nil {
		return err
	}
	d.records[headerType] = rec
	return nil
}

// Set stores an already decoded record under its own header type.
func (d *Decoder) Set(rec Record) error {
	if IsNil(rec) {
		return fmt.Errorf("%w: nil record", ErrHeaderType)
	}
	t := rec.HeaderType()
	if t != Type1 && t != Type2 {
		return fmt.Errorf("%w: %d", ErrHeaderType, t)
	}
	d.records[t] = rec
	return nil
}

// Record returns the record stored for headerType. ok is false when the
// packet carried no valid PLCF of that type.
func (d *Decoder) Record(headerType int) (rec Record, ok bool) {
	if d == nil || headerType < Type1 || headerType > Type2 {
		return nil, false
	}
	rec = d.records[headerType]
	return rec, rec != nil
}

// Reset drops all records.
func (d *Decoder) Reset() {
	d.records = [Type2 + 1]Record{}
}
