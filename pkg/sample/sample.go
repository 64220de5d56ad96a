package sample

import (
	"log"
	"time"

	"github.com/Grinkers/ednprobe/pkg/config"
	"github.com/Grinkers/ednprobe/pkg/probe"
)

// Sample represents a processed measurement sample with physical values.
type Sample struct {
	Timestamp   time.Time
	Raw         uint16  // 12-bit ADC reading (0-4095)
	Voltage     float64 // Sensor voltage (V)
	Temperature float64 // Calibrated die temperature (degrees C)
}

// Converter is a function type that converts RawSample channel to Sample channel.
type Converter func(in <-chan probe.RawSample) <-chan Sample

// NewConverter creates a converter function that transforms RawSample to Sample.
func NewConverter(cfg *config.Config, bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan probe.RawSample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			for raw := range in {
				sample, err := convertSample(raw, cfg)
				if err != nil {
					log.Printf("Failed to convert sample: %v", err)
					continue
				}

				select {
				case out <- sample:
				case <-time.After(time.Second):
					log.Printf("Converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}

// convertSample converts a RawSample to Sample using configuration.
//
// The conversion recomputes voltage and temperature from the raw count
// rather than trusting the firmware's own arithmetic, so host-side probe
// constants and calibration apply uniformly to serial and mock devices.
func convertSample(raw probe.RawSample, cfg *config.Config) (Sample, error) {
	voltage := Voltage(raw.Raw, cfg.Probe)
	temperature := Temperature(voltage, cfg.Probe)

	return Sample{
		Timestamp:   raw.Timestamp,
		Raw:         raw.Raw,
		Voltage:     voltage,
		Temperature: Calibrate(temperature, cfg.Calibration),
	}, nil
}

// Voltage converts a 12-bit ADC count to volts.
// Formula: V = raw * VRef / Counts
func Voltage(raw uint16, probe config.ProbeConfig) float64 {
	return float64(raw) * probe.VRef / probe.Counts
}

// Temperature converts the sensor voltage to degrees Celsius.
// Formula: T = TempOffset - ((V - TempVRef) / TempSlope)
func Temperature(voltage float64, probe config.ProbeConfig) float64 {
	return probe.TempOffset - ((voltage - probe.TempVRef) / probe.TempSlope)
}

// Calibrate applies the display calibration to a converted temperature.
func Calibrate(temperature float64, cal config.CalibrationConfig) float64 {
	return temperature*cal.Scale + cal.Offset
}
