package probe

import (
	"testing"
	"time"

	"github.com/Grinkers/ednprobe/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestNewMock(t *testing.T) {
	cfg := &config.MockConfig{
		BaseTemp:    35.0,
		Drift:       5.0,
		DriftPeriod: 30 * time.Second,
		NoiseLevel:  0.2,
		SampleRate:  50 * time.Millisecond,
	}

	dev := NewMock(cfg)
	assert.NotNil(t, dev)
	assert.Equal(t, cfg, dev.cfg)
	assert.NotNil(t, dev.samples)
	assert.False(t, dev.IsConnected())
}

func TestNewMock_NilConfig(t *testing.T) {
	dev := NewMock(nil)
	assert.NotNil(t, dev)
	assert.NotNil(t, dev.cfg)
	assert.Equal(t, float64(27.0), dev.cfg.BaseTemp)
	assert.Equal(t, float64(2.0), dev.cfg.Drift)
	assert.Equal(t, 60*time.Second, dev.cfg.DriftPeriod)
	assert.Equal(t, float64(0.1), dev.cfg.NoiseLevel)
	assert.Equal(t, 100*time.Millisecond, dev.cfg.SampleRate)
}

func TestMock_IsConnected(t *testing.T) {
	dev := NewMock(nil)
	assert.False(t, dev.IsConnected())
}

func TestMock_Connect_AlreadyConnected(t *testing.T) {
	dev := NewMock(nil)

	err := dev.Connect()
	assert.NoError(t, err)

	err = dev.Connect()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already connected")

	dev.Close()
}

func TestMock_Close_NotConnected(t *testing.T) {
	dev := NewMock(nil)

	err := dev.Close()
	assert.NoError(t, err) // Should not error when not connected
}

func TestMock_Close_Connected(t *testing.T) {
	dev := NewMock(nil)

	err := dev.Connect()
	assert.NoError(t, err)
	assert.True(t, dev.IsConnected())

	err = dev.Close()
	assert.NoError(t, err)
	assert.False(t, dev.IsConnected())
}

func TestTemperatureToADC(t *testing.T) {
	tests := []struct {
		name string
		temp float32
		want uint16
	}{
		{
			name: "sensor reference point",
			temp: 27.0,
			want: 876, // 0.706V / 3.3 * 4096 = 876.3
		},
		{
			name: "freezing",
			temp: 0.0,
			want: 933, // (0.706 + 27*0.001721)V = 0.752467V -> 933.97
		},
		{
			name: "scorching clamps to zero",
			temp: 500.0,
			want: 0, // voltage goes negative
		},
		{
			name: "impossibly cold clamps to full scale",
			temp: -2000.0,
			want: 4095, // voltage above VRef
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, temperatureToADC(tt.temp))
		})
	}
}

func TestMock_GenerateSample_ReportedValues(t *testing.T) {
	// With drift and noise disabled the sample must sit at the base
	// temperature, modulo the 12-bit quantization the real sensor has.
	dev := NewMock(&config.MockConfig{
		BaseTemp:    27.0,
		Drift:       0,
		DriftPeriod: time.Minute,
		NoiseLevel:  0,
		SampleRate:  time.Millisecond,
	})
	dev.startTime = time.Now()

	s := dev.generateSample()

	assert.Equal(t, uint16(876), s.Raw)
	// 876 * 3.3 / 4096 = 0.705762V
	assert.InDelta(t, 0.705762, s.Voltage, 0.0001)
	// 27 - ((0.705762 - 0.706) / 0.001721) = 27.138 -> two decimals
	assert.Equal(t, 27.14, s.Temperature)
}

func TestMock_GenerateSample_QuantizationConsistency(t *testing.T) {
	dev := NewMock(&config.MockConfig{
		BaseTemp:    40.0,
		Drift:       0,
		DriftPeriod: time.Minute,
		NoiseLevel:  0,
		SampleRate:  time.Millisecond,
	})
	dev.startTime = time.Now()

	s := dev.generateSample()

	// The reported voltage and temperature must be derived from the
	// quantized count, exactly as the firmware derives them.
	wantVoltage := float64(float32(s.Raw) * sensorVRef / sensorCounts)
	assert.Equal(t, wantVoltage, s.Voltage)
	assert.InDelta(t, 40.0, s.Temperature, 0.5)
}
