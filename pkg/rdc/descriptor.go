package rdc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// DescriptorKeyPrefix must start the outer key of a descriptor file.
const DescriptorKeyPrefix = "RDC"

// descriptor mirrors RadioDeviceClass with pointers so absent fields can be
// told apart from zero values.
type descriptor struct {
	RadioDeviceClassString *string `yaml:"radio_device_class_string"`
	UMin                   *int    `yaml:"u_min"`
	BMin                   *int    `yaml:"b_min"`
	NTXMin                 *int    `yaml:"N_TX_min"`
	MCSIndexMin            *int    `yaml:"mcs_index_min"`
	MDLHARQMin             *int    `yaml:"M_DL_HARQ_min"`
	MConnectionDLHARQMin   *int    `yaml:"M_connection_DL_HARQ_min"`
	NSoftMin               *int    `yaml:"N_soft_min"`
	ZMin                   *int    `yaml:"Z_min"`
	PacketLengthMin        *int    `yaml:"PacketLength_min"`
}

// LoadDescriptor reads a device class descriptor from path. Files ending in
// .yaml or .yml are parsed as YAML, everything else as JSON. The returned
// class is not validated.
func LoadDescriptor(path string) (RadioDeviceClass, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RadioDeviceClass{}, &ConfigurationError{
			Field:  "descriptor",
			Reason: fmt.Sprintf("%q is neither a known class nor a readable file", path),
			Err:    err,
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAMLDescriptor(data)
	default:
		return ParseJSONDescriptor(data)
	}
}

// ParseJSONDescriptor decodes the object stored under the first key of a JSON
// document.
func ParseJSONDescriptor(data []byte) (RadioDeviceClass, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if delim, ok := tok.(json.Delim); err != nil || !ok || delim != '{' {
		return RadioDeviceClass{}, &ConfigurationError{Field: "descriptor", Reason: "must be a JSON object", Err: err}
	}

	tok, err = dec.Token()
	key, ok := tok.(string)
	if err != nil || !ok {
		return RadioDeviceClass{}, &ConfigurationError{Field: "descriptor", Reason: "has no device class key", Err: err}
	}

	// encoding/json matches struct tags case-insensitively; fields are
	// looked up by their exact names instead.
	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return RadioDeviceClass{}, &ConfigurationError{Field: key, Reason: "is malformed", Err: err}
	}

	var d descriptor
	for name, dst := range d.targets() {
		v, ok := raw[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return RadioDeviceClass{}, &ConfigurationError{Field: name, Reason: "is malformed", Err: err}
		}
	}
	return d.build(key)
}

func (d *descriptor) targets() map[string]interface{} {
	return map[string]interface{}{
		"radio_device_class_string": &d.RadioDeviceClassString,
		"u_min":                     &d.UMin,
		"b_min":                     &d.BMin,
		"N_TX_min":                  &d.NTXMin,
		"mcs_index_min":             &d.MCSIndexMin,
		"M_DL_HARQ_min":             &d.MDLHARQMin,
		"M_connection_DL_HARQ_min":  &d.MConnectionDLHARQMin,
		"N_soft_min":                &d.NSoftMin,
		"Z_min":                     &d.ZMin,
		"PacketLength_min":          &d.PacketLengthMin,
	}
}

// ParseYAMLDescriptor is the YAML counterpart of ParseJSONDescriptor.
func ParseYAMLDescriptor(data []byte) (RadioDeviceClass, error) {
	var doc yaml.MapSlice
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return RadioDeviceClass{}, &ConfigurationError{Field: "descriptor", Reason: "must be a YAML mapping", Err: err}
	}
	if len(doc) == 0 {
		return RadioDeviceClass{}, &ConfigurationError{Field: "descriptor", Reason: "has no device class key"}
	}

	key := fmt.Sprint(doc[0].Key)
	raw, err := yaml.Marshal(doc[0].Value)
	if err != nil {
		return RadioDeviceClass{}, &ConfigurationError{Field: key, Reason: "is malformed", Err: err}
	}

	var d descriptor
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return RadioDeviceClass{}, &ConfigurationError{Field: key, Reason: "is malformed", Err: err}
	}
	return d.build(key)
}

func (d descriptor) build(key string) (RadioDeviceClass, error) {
	if !strings.HasPrefix(key, DescriptorKeyPrefix) {
		return RadioDeviceClass{}, &ConfigurationError{
			Field:  key,
			Reason: fmt.Sprintf("key must begin with %q", DescriptorKeyPrefix),
		}
	}
	if d.RadioDeviceClassString == nil {
		return RadioDeviceClass{}, missingField("radio_device_class_string")
	}

	c := RadioDeviceClass{Name: *d.RadioDeviceClassString}
	fields := []struct {
		name string
		src  *int
		dst  *int
	}{
		{"u_min", d.UMin, &c.UMin},
		{"b_min", d.BMin, &c.BMin},
		{"N_TX_min", d.NTXMin, &c.NTXMin},
		{"mcs_index_min", d.MCSIndexMin, &c.MCSIndexMin},
		{"M_DL_HARQ_min", d.MDLHARQMin, &c.MDLHARQMin},
		{"M_connection_DL_HARQ_min", d.MConnectionDLHARQMin, &c.MConnectionDLHARQMin},
		{"N_soft_min", d.NSoftMin, &c.NSoftMin},
		{"Z_min", d.ZMin, &c.ZMin},
		{"PacketLength_min", d.PacketLengthMin, &c.PacketLengthMin},
	}
	for _, f := range fields {
		if f.src == nil {
			return RadioDeviceClass{}, missingField(f.name)
		}
		*f.dst = *f.src
	}

	return c, nil
}

func missingField(name string) error {
	return &ConfigurationError{Field: name, Reason: "is required"}
}
