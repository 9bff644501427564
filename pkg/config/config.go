package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dougsko/nrfd/pkg/rdc"
	"gopkg.in/yaml.v2"
)

// Config represents the nrfd configuration
type Config struct {
	Radio struct {
		// Device class identifier or path to a descriptor file
		DeviceClass string `yaml:"device_class"`
		Firmware    string `yaml:"firmware"`
		Model       string `yaml:"model"`

		// Carrier
		Band    int `yaml:"band"`
		Channel int `yaml:"channel"`

		// Antenna power relative to full scale
		TxPowerDBFS *float64 `yaml:"tx_power_dbfs"`
		RxPowerDBFS *float64 `yaml:"rx_power_dbfs"`

		SampleRate     float64 `yaml:"sample_rate"`
		NoiseFloorDBFS float64 `yaml:"noise_floor_dbfs"`
	} `yaml:"radio"`

	Engine struct {
		RegularInterval time.Duration `yaml:"regular_interval"`
		EventQueue      int           `yaml:"event_queue"`
		ScanSamples     int           `yaml:"scan_samples"`
		BusyThreshold   float64       `yaml:"busy_threshold_dbfs"`
	} `yaml:"engine"`

	Web struct {
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	API struct {
		UnixSocket string `yaml:"unix_socket"`
	} `yaml:"api"`

	Storage struct {
		DatabasePath    string `yaml:"database_path"`
		MaxObservations int    `yaml:"max_observations"`
	} `yaml:"storage"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`

	// Resolved by Validate
	deviceClass rdc.RadioDeviceClass
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// Parse decodes YAML configuration and applies defaults
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.SetDefaults()
	return &config, nil
}

// SetDefaults fills every unset field
func (c *Config) SetDefaults() {
	if c.Radio.DeviceClass == "" {
		c.Radio.DeviceClass = "1.1.1.A"
	}
	if c.Radio.Firmware == "" {
		c.Radio.Firmware = "nrf"
	}
	if c.Radio.Model == "" {
		c.Radio.Model = "mock"
	}
	if c.Radio.Band == 0 {
		c.Radio.Band = 1
	}
	if c.Radio.Channel == 0 {
		c.Radio.Channel = 1657
	}
	if c.Radio.TxPowerDBFS == nil {
		// effectively muted
		v := -1000.0
		c.Radio.TxPowerDBFS = &v
	}
	if c.Radio.RxPowerDBFS == nil {
		v := -30.0
		c.Radio.RxPowerDBFS = &v
	}
	if c.Radio.SampleRate == 0 {
		c.Radio.SampleRate = 1.728e6
	}
	if c.Radio.NoiseFloorDBFS == 0 {
		c.Radio.NoiseFloorDBFS = -90
	}
	if c.Engine.RegularInterval == 0 {
		c.Engine.RegularInterval = 10 * time.Millisecond
	}
	if c.Engine.EventQueue == 0 {
		c.Engine.EventQueue = 256
	}
	if c.Engine.ScanSamples == 0 {
		c.Engine.ScanSamples = 4096
	}
	if c.Engine.BusyThreshold == 0 {
		c.Engine.BusyThreshold = -70
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = "127.0.0.1"
	}
	if c.API.UnixSocket == "" {
		c.API.UnixSocket = "/tmp/nrfd.sock"
	}
	if c.Storage.MaxObservations == 0 {
		c.Storage.MaxObservations = 100000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 100
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 30
	}
}

// Validate checks if the configuration is valid and resolves the radio
// device class. Device class errors match rdc.ErrConfiguration.
func (c *Config) Validate() error {
	dc, err := rdc.Resolve(c.Radio.DeviceClass)
	if err != nil {
		return fmt.Errorf("invalid radio device class: %w", err)
	}
	c.deviceClass = dc

	if c.Radio.TxPowerDBFS == nil || c.Radio.RxPowerDBFS == nil {
		return fmt.Errorf("radio tx_power_dbfs and rx_power_dbfs must be set")
	}
	if c.Engine.RegularInterval <= 0 {
		return fmt.Errorf("engine regular interval must be positive")
	}
	if c.Engine.EventQueue <= 0 {
		return fmt.Errorf("engine event queue must be positive")
	}
	if c.Engine.ScanSamples < 2 {
		return fmt.Errorf("engine scan samples must be at least 2")
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web port %d out of range", c.Web.Port)
	}
	return nil
}

// DeviceClass returns the device class resolved by Validate
func (c *Config) DeviceClass() rdc.RadioDeviceClass {
	return c.deviceClass
}
