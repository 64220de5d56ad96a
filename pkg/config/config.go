package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Probe       ProbeConfig       `yaml:"probe"`
	Loop        LoopConfig        `yaml:"loop"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Mock        MockConfig        `yaml:"mock"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ProbeConfig contains the ADC and temperature sensor constants of the
// RP2040 board the firmware runs on.
type ProbeConfig struct {
	VRef       float64 `yaml:"vref"`        // ADC reference voltage (V)
	Counts     float64 `yaml:"counts"`      // ADC full-scale counts (12-bit = 4096)
	TempOffset float64 `yaml:"temp_offset"` // Sensor temperature at TempVRef (degrees C)
	TempVRef   float64 `yaml:"temp_vref"`   // Sensor voltage at TempOffset (V)
	TempSlope  float64 `yaml:"temp_slope"`  // Sensor slope (V per degree C)
}

// LoopConfig contains the firmware sample loop timing.
type LoopConfig struct {
	Interval time.Duration `yaml:"interval"` // Half-cycle sleep; one record per two intervals
}

// MeasurementConfig contains measurement parameters.
type MeasurementConfig struct {
	WindowSeconds        float64 `yaml:"window_seconds"`
	ExcursionThreshold   float64 `yaml:"excursion_threshold"`    // Rate threshold in degrees C per second
	MinExcursionDuration float64 `yaml:"min_excursion_duration"` // Minimum excursion duration in seconds (filters noise)
	AverageSamples       int     `yaml:"average_samples"`        // Number of samples to average (0 = disabled, default)
}

// CalibrationConfig contains the display calibration applied to converted
// temperatures (reading = temperature*scale + offset).
type CalibrationConfig struct {
	Scale  float64 `yaml:"scale"`
	Offset float64 `yaml:"offset"`
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	BaseTemp    float64       `yaml:"base_temp"`    // Simulated die temperature (degrees C)
	Drift       float64       `yaml:"drift"`        // Slow drift amplitude (degrees C)
	DriftPeriod time.Duration `yaml:"drift_period"` // Drift period
	NoiseLevel  float64       `yaml:"noise_level"`  // Noise level (degrees C)
	SampleRate  time.Duration `yaml:"sample_rate"`  // Sample rate
}

// MQTTConfig contains the broker settings for the MQTT record sink.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate: 115200,
		},
		Probe: ProbeConfig{
			VRef:       3.3,
			Counts:     4096,
			TempOffset: 27.0,
			TempVRef:   0.706,
			TempSlope:  0.001721,
		},
		Loop: LoopConfig{
			Interval: 500 * time.Millisecond,
		},
		Measurement: MeasurementConfig{
			WindowSeconds:        10,
			ExcursionThreshold:   0.5,
			MinExcursionDuration: 2.0, // Filter excursions shorter than 2 seconds
			AverageSamples:       0,   // No averaging by default
		},
		Calibration: CalibrationConfig{
			Scale:  1.0,
			Offset: 0.0,
		},
		Mock: MockConfig{
			BaseTemp:    27.0,
			Drift:       2.0,
			DriftPeriod: 60 * time.Second,
			NoiseLevel:  0.1,
			SampleRate:  time.Second, // One record per firmware cycle (two 500ms sleeps)
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			Topic:    "ednprobe/records",
			ClientID: "ednprobe",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Probe.VRef == 0 {
		c.Probe.VRef = def.Probe.VRef
	}
	if c.Probe.Counts == 0 {
		c.Probe.Counts = def.Probe.Counts
	}
	if c.Probe.TempVRef == 0 {
		c.Probe.TempVRef = def.Probe.TempVRef
	}
	if c.Probe.TempSlope == 0 {
		c.Probe.TempSlope = def.Probe.TempSlope
	}

	if c.Loop.Interval == 0 {
		c.Loop.Interval = def.Loop.Interval
	}

	if c.Measurement.WindowSeconds == 0 {
		c.Measurement.WindowSeconds = def.Measurement.WindowSeconds
	}
	if c.Measurement.ExcursionThreshold == 0 {
		c.Measurement.ExcursionThreshold = def.Measurement.ExcursionThreshold
	}

	if c.Calibration.Scale == 0 {
		c.Calibration.Scale = def.Calibration.Scale
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.DriftPeriod == 0 {
		c.Mock.DriftPeriod = def.Mock.DriftPeriod
	}

	if c.MQTT.Broker == "" {
		c.MQTT.Broker = def.MQTT.Broker
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
}
