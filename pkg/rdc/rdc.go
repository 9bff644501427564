// Package rdc resolves DECT NR+ radio device classes into validated
// physical-layer capability records.
package rdc

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every *ConfigurationError through errors.Is.
var ErrConfiguration = errors.New("radio device class configuration error")

// ConfigurationError reports a radio device class that cannot be used to
// configure the radio. It is always fatal for the caller.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("radio device class: %s %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// RadioDeviceClass is the set of minimum capabilities a radio must support.
// Values are immutable once returned by Resolve.
type RadioDeviceClass struct {
	Name                 string `json:"radio_device_class_string"`
	UMin                 int    `json:"u_min"`
	BMin                 int    `json:"b_min"`
	NTXMin               int    `json:"N_TX_min"`
	MCSIndexMin          int    `json:"mcs_index_min"`
	MDLHARQMin           int    `json:"M_DL_HARQ_min"`
	MConnectionDLHARQMin int    `json:"M_connection_DL_HARQ_min"`
	NSoftMin             int    `json:"N_soft_min"`
	ZMin                 int    `json:"Z_min"`
	PacketLengthMin      int    `json:"PacketLength_min"`
}

// Soft buffer limits in bits.
const (
	NSoftLowerLimit = 25344
	NSoftUpperLimit = 16777216
)

// SubcarrierSpacing returns the subcarrier spacing in Hz for the class
// numerology.
func (c RadioDeviceClass) SubcarrierSpacing() int {
	return c.UMin * 27000
}

func (c RadioDeviceClass) String() string {
	name := c.Name
	if name == "" {
		name = "custom"
	}
	return fmt.Sprintf("%s (u=%d b=%d N_TX=%d mcs>=%d Z=%d)", name, c.UMin, c.BMin, c.NTXMin, c.MCSIndexMin, c.ZMin)
}

// Validate checks the class against the standard's limits. Catalog entries
// go through the same checks as custom descriptors.
func (c RadioDeviceClass) Validate() error {
	if !isPowerOfTwo(c.UMin) || c.UMin > 8 {
		return outOfRange("u_min", c.UMin, "must be a power of two no larger than 8")
	}
	if !(isPowerOfTwo(c.BMin) && c.BMin <= 16) && c.BMin != 12 {
		return outOfRange("b_min", c.BMin, "must be a power of two no larger than 16, or 12")
	}
	if !isPowerOfTwo(c.NTXMin) || c.NTXMin > 8 {
		return outOfRange("N_TX_min", c.NTXMin, "must be a power of two no larger than 8")
	}
	if c.MCSIndexMin < 0 || c.MCSIndexMin > 11 {
		return outOfRange("mcs_index_min", c.MCSIndexMin, "must be in [0,11]")
	}
	if c.MDLHARQMin < 1 || c.MDLHARQMin > 64 {
		return outOfRange("M_DL_HARQ_min", c.MDLHARQMin, "must be in [1,64]")
	}
	if c.MConnectionDLHARQMin < 1 || c.MConnectionDLHARQMin > 64 {
		return outOfRange("M_connection_DL_HARQ_min", c.MConnectionDLHARQMin, "must be in [1,64]")
	}
	if c.NSoftMin < NSoftLowerLimit || c.NSoftMin > NSoftUpperLimit {
		return outOfRange("N_soft_min", c.NSoftMin, fmt.Sprintf("must be in [%d,%d]", NSoftLowerLimit, NSoftUpperLimit))
	}
	if c.ZMin != 2048 && c.ZMin != 6144 {
		return outOfRange("Z_min", c.ZMin, "must be 2048 or 6144")
	}
	if c.PacketLengthMin < 1 || c.PacketLengthMin > 16 {
		return outOfRange("PacketLength_min", c.PacketLengthMin, "must be in [1,16]")
	}
	return nil
}

// Resolve returns the catalog entry named by identifier or, when no entry
// matches, loads identifier as a descriptor file. The result is validated
// either way.
func Resolve(identifier string) (RadioDeviceClass, error) {
	c, ok := Lookup(identifier)
	if !ok {
		var err error
		c, err = LoadDescriptor(identifier)
		if err != nil {
			return RadioDeviceClass{}, err
		}
	}

	if err := c.Validate(); err != nil {
		return RadioDeviceClass{}, err
	}
	return c, nil
}

func isPowerOfTwo(v int) bool {
	return v > 0 && v&(v-1) == 0
}

func outOfRange(field string, value int, reason string) error {
	return &ConfigurationError{
		Field:  field,
		Reason: fmt.Sprintf("value %d %s", value, reason),
	}
}
