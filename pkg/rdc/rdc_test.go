package rdc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCatalog(t *testing.T) {
	golden := map[string]RadioDeviceClass{
		"1.1.1.A":  {UMin: 1, BMin: 1, NTXMin: 1, MCSIndexMin: 7, MDLHARQMin: 8, MConnectionDLHARQMin: 2, NSoftMin: 25344, ZMin: 2048, PacketLengthMin: 4},
		"1.1.1.B":  {UMin: 1, BMin: 1, NTXMin: 1, MCSIndexMin: 7, MDLHARQMin: 8, MConnectionDLHARQMin: 2, NSoftMin: 25344, ZMin: 6144, PacketLengthMin: 4},
		"8.1.1.A":  {UMin: 8, BMin: 1, NTXMin: 1, MCSIndexMin: 7, MDLHARQMin: 8, MConnectionDLHARQMin: 2, NSoftMin: 25344, ZMin: 6144, PacketLengthMin: 4},
		"1.8.1.A":  {UMin: 1, BMin: 8, NTXMin: 1, MCSIndexMin: 7, MDLHARQMin: 8, MConnectionDLHARQMin: 2, NSoftMin: 25344, ZMin: 6144, PacketLengthMin: 4},
		"2.12.4.A": {UMin: 2, BMin: 12, NTXMin: 4, MCSIndexMin: 7, MDLHARQMin: 8, MConnectionDLHARQMin: 2, NSoftMin: 25344, ZMin: 2048, PacketLengthMin: 4},
		"2.12.4.B": {UMin: 2, BMin: 12, NTXMin: 4, MCSIndexMin: 7, MDLHARQMin: 8, MConnectionDLHARQMin: 2, NSoftMin: 25344, ZMin: 6144, PacketLengthMin: 4},
		"8.12.8.A": {UMin: 8, BMin: 12, NTXMin: 8, MCSIndexMin: 9, MDLHARQMin: 8, MConnectionDLHARQMin: 2, NSoftMin: 225344, ZMin: 6144, PacketLengthMin: 16},
		"8.16.8.A": {UMin: 8, BMin: 16, NTXMin: 8, MCSIndexMin: 9, MDLHARQMin: 8, MConnectionDLHARQMin: 2, NSoftMin: 225344, ZMin: 6144, PacketLengthMin: 16},
	}

	require.Len(t, Names(), len(golden))

	for name, want := range golden {
		t.Run(name, func(t *testing.T) {
			got, err := Resolve(name)
			require.NoError(t, err)

			want.Name = name
			assert.Equal(t, want, got)
		})
	}
}

func TestValidateNumerology(t *testing.T) {
	base, ok := Lookup("1.1.1.A")
	require.True(t, ok)

	for _, u := range []int{1, 2, 4, 8} {
		c := base
		c.UMin = u
		assert.NoError(t, c.Validate(), "u_min=%d", u)
	}

	for _, u := range []int{-1, 0, 3, 5, 6, 7, 9, 16} {
		c := base
		c.UMin = u
		err := c.Validate()
		require.Error(t, err, "u_min=%d", u)

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "u_min", cfgErr.Field)
	}
}

func TestValidateFields(t *testing.T) {
	base, _ := Lookup("2.12.4.A")

	tests := []struct {
		name   string
		mutate func(*RadioDeviceClass)
		field  string
	}{
		{"b 12 accepted", func(c *RadioDeviceClass) { c.BMin = 12 }, ""},
		{"b 16 accepted", func(c *RadioDeviceClass) { c.BMin = 16 }, ""},
		{"b 10 rejected", func(c *RadioDeviceClass) { c.BMin = 10 }, "b_min"},
		{"b 32 rejected", func(c *RadioDeviceClass) { c.BMin = 32 }, "b_min"},
		{"N_TX 3 rejected", func(c *RadioDeviceClass) { c.NTXMin = 3 }, "N_TX_min"},
		{"mcs 12 rejected", func(c *RadioDeviceClass) { c.MCSIndexMin = 12 }, "mcs_index_min"},
		{"HARQ 0 rejected", func(c *RadioDeviceClass) { c.MDLHARQMin = 0 }, "M_DL_HARQ_min"},
		{"HARQ 65 rejected", func(c *RadioDeviceClass) { c.MConnectionDLHARQMin = 65 }, "M_connection_DL_HARQ_min"},
		{"soft buffer too small", func(c *RadioDeviceClass) { c.NSoftMin = 25343 }, "N_soft_min"},
		{"soft buffer upper limit", func(c *RadioDeviceClass) { c.NSoftMin = 16777216 }, ""},
		{"soft buffer too large", func(c *RadioDeviceClass) { c.NSoftMin = 16777217 }, "N_soft_min"},
		{"Z 4096 rejected", func(c *RadioDeviceClass) { c.ZMin = 4096 }, "Z_min"},
		{"packet length 0 rejected", func(c *RadioDeviceClass) { c.PacketLengthMin = 0 }, "PacketLength_min"},
		{"packet length 17 rejected", func(c *RadioDeviceClass) { c.PacketLengthMin = 17 }, "PacketLength_min"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.True(t, errors.Is(err, ErrConfiguration))
		})
	}
}

const validJSON = `{
	"RDC_lab": {
		"radio_device_class_string": "lab.1",
		"u_min": 2,
		"b_min": 4,
		"N_TX_min": 2,
		"mcs_index_min": 5,
		"M_DL_HARQ_min": 4,
		"M_connection_DL_HARQ_min": 1,
		"N_soft_min": 50000,
		"Z_min": 6144,
		"PacketLength_min": 8
	},
	"RDC_ignored": {}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestResolveDescriptor(t *testing.T) {
	want := RadioDeviceClass{
		Name: "lab.1", UMin: 2, BMin: 4, NTXMin: 2, MCSIndexMin: 5,
		MDLHARQMin: 4, MConnectionDLHARQMin: 1, NSoftMin: 50000, ZMin: 6144, PacketLengthMin: 8,
	}

	t.Run("JSON", func(t *testing.T) {
		got, err := Resolve(writeFile(t, "rdc.json", validJSON))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("YAML", func(t *testing.T) {
		content := `
RDC_lab:
  radio_device_class_string: lab.1
  u_min: 2
  b_min: 4
  N_TX_min: 2
  mcs_index_min: 5
  M_DL_HARQ_min: 4
  M_connection_DL_HARQ_min: 1
  N_soft_min: 50000
  Z_min: 6144
  PacketLength_min: 8
`
		got, err := Resolve(writeFile(t, "rdc.yaml", content))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("Missing Field", func(t *testing.T) {
		fields := []string{
			"radio_device_class_string", "u_min", "b_min", "N_TX_min", "mcs_index_min",
			"M_DL_HARQ_min", "M_connection_DL_HARQ_min", "N_soft_min", "Z_min", "PacketLength_min",
		}
		for _, field := range fields {
			var obj map[string]map[string]interface{}
			require.NoError(t, jsonUnmarshal(validJSON, &obj))
			delete(obj["RDC_lab"], field)
			delete(obj, "RDC_ignored")

			got, err := Resolve(writeFile(t, "rdc.json", jsonMarshal(t, obj)))
			require.Error(t, err, field)
			assert.Equal(t, RadioDeviceClass{}, got)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, field, cfgErr.Field)
		}
	})

	t.Run("Invalid Z", func(t *testing.T) {
		for _, z := range []string{"0", "1024", "2047", "4096", "6145"} {
			content := `{"RDC_z": {"radio_device_class_string": "z", "u_min": 1, "b_min": 1, "N_TX_min": 1,
				"mcs_index_min": 7, "M_DL_HARQ_min": 8, "M_connection_DL_HARQ_min": 2,
				"N_soft_min": 25344, "Z_min": ` + z + `, "PacketLength_min": 4}}`
			_, err := Resolve(writeFile(t, "z.json", content))
			assert.ErrorIs(t, err, ErrConfiguration, "Z_min=%s", z)
		}
	})

	t.Run("Field Names Are Case Sensitive", func(t *testing.T) {
		content := `{"RDC_case": {"radio_device_class_string": "case", "U_MIN": 1, "b_min": 1, "n_tx_min": 1,
			"mcs_index_min": 7, "M_DL_HARQ_min": 8, "M_connection_DL_HARQ_min": 2,
			"N_soft_min": 25344, "Z_min": 2048, "PacketLength_min": 4}}`
		got, err := Resolve(writeFile(t, "case.json", content))
		require.Error(t, err)
		assert.Equal(t, RadioDeviceClass{}, got)

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "u_min", cfgErr.Field)
	})

	t.Run("Malformed Field", func(t *testing.T) {
		content := `{"RDC_bad": {"radio_device_class_string": "bad", "u_min": "two"}}`
		_, err := Resolve(writeFile(t, "bad.json", content))
		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "u_min", cfgErr.Field)
	})

	t.Run("Wrong Prefix", func(t *testing.T) {
		_, err := Resolve(writeFile(t, "prefix.json", `{"XYZ": {"u_min": 1}}`))
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("Empty Object", func(t *testing.T) {
		_, err := Resolve(writeFile(t, "empty.json", `{}`))
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("Unknown Identifier", func(t *testing.T) {
		_, err := Resolve("9.9.9.Z")
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}
