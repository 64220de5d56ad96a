package probe

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/Grinkers/ednprobe/pkg/config"
)

// RP2040 temperature sensor constants, as the firmware uses them.
const (
	sensorVRef   float32 = 3.3
	sensorCounts float32 = 4096
	sensorOffset float32 = 27.0     // degrees C at sensorTempVRef
	sensorTempV  float32 = 0.706    // V at sensorOffset
	sensorSlope  float32 = 0.001721 // V per degree C
)

// Mock simulates a probe for testing and development. The simulation runs
// in float32 like the RP2040 firmware, quantizes through the 12-bit ADC,
// and reports the same values the host would parse off the wire.
type Mock struct {
	cfg *config.MockConfig

	samples   chan RawSample
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	startTime time.Time
}

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			BaseTemp:    27.0,
			Drift:       2.0,
			DriftPeriod: 60 * time.Second,
			NoiseLevel:  0.1,
			SampleRate:  100 * time.Millisecond,
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:       cfg,
		samples:   make(chan RawSample, DefaultBufferSize),
		ctx:       ctx,
		cancel:    cancel,
		connected: false,
	}
}

// Connect simulates connecting to the device.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.startTime = time.Now()

	// Start generating samples
	go m.generateSamples()

	return nil
}

// Close stops the mocked device.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	m.connected = false
	close(m.samples)

	return nil
}

// Samples returns the channel for reading samples.
func (m *Mock) Samples() <-chan RawSample {
	return m.samples
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// generateSamples generates simulated samples.
func (m *Mock) generateSamples() {
	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			sample := m.generateSample()
			select {
			case m.samples <- sample:
			case <-m.ctx.Done():
				return
			default:
				// Channel full, skip
			}
		}
	}
}

// generateSample generates a single simulated sample.
func (m *Mock) generateSample() RawSample {
	m.mu.RLock()
	now := time.Now()
	elapsed := now.Sub(m.startTime)
	m.mu.RUnlock()

	// Die temperature: base plus slow sinusoidal drift plus noise.
	t := float32(elapsed.Seconds())
	drift := float32(m.cfg.Drift) * math32.Sin(2*math32.Pi*t/float32(m.cfg.DriftPeriod.Seconds()))
	noise := (math32.Sin(t*737.0) + math32.Cos(t*947.0)) * float32(m.cfg.NoiseLevel) * 0.5
	temp := float32(m.cfg.BaseTemp) + drift + noise

	raw := temperatureToADC(temp)

	// Report what the firmware would print for this count: voltage from the
	// raw value, temperature from that voltage, rounded to record precision.
	voltage := float32(raw) * sensorVRef / sensorCounts
	reported := sensorOffset - ((voltage - sensorTempV) / sensorSlope)

	return RawSample{
		Timestamp:   now,
		Raw:         raw,
		Voltage:     float64(voltage),
		Temperature: math.Round(float64(reported)*100) / 100,
	}
}

// temperatureToADC inverts the sensor formula and quantizes to a 12-bit count.
func temperatureToADC(temp float32) uint16 {
	voltage := sensorTempV - (temp-sensorOffset)*sensorSlope
	val := voltage / sensorVRef * sensorCounts
	if val < 0 {
		val = 0
	} else if val > 4095 {
		val = 4095
	}
	return uint16(val)
}
