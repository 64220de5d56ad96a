package sample

import (
	"testing"
	"time"

	"github.com/Grinkers/ednprobe/pkg/config"
	"github.com/Grinkers/ednprobe/pkg/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoltage(t *testing.T) {
	cfg := config.Default().Probe

	tests := []struct {
		name string
		raw  uint16
		want float64
	}{
		{
			name: "zero ADC",
			raw:  0,
			want: 0.0,
		},
		{
			name: "max ADC",
			raw:  4095,
			want: 3.299194, // 4095 * 3.3 / 4096, just under VRef
		},
		{
			name: "half scale",
			raw:  2048,
			want: 1.65, // 2048 * 3.3 / 4096 = VRef/2 exactly
		},
		{
			name: "quarter scale",
			raw:  1024,
			want: 0.825,
		},
		{
			name: "sensor reference vicinity",
			raw:  876,
			want: 0.705762, // 876 * 3.3 / 4096
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Voltage(tt.raw, cfg)
			assert.InDelta(t, tt.want, got, 1e-6, "Voltage(%d) = %f, want %f", tt.raw, got, tt.want)
		})
	}
}

func TestVoltage_Range(t *testing.T) {
	cfg := config.Default().Probe

	// Every 12-bit count lands in [0, VRef).
	for raw := 0; raw <= 4095; raw++ {
		v := Voltage(uint16(raw), cfg)
		if v < 0 || v >= 3.3 {
			t.Fatalf("Voltage(%d) = %f, want [0, 3.3)", raw, v)
		}
	}
}

func TestTemperature(t *testing.T) {
	cfg := config.Default().Probe

	tests := []struct {
		name    string
		voltage float64
		want    float64
	}{
		{
			name:    "sensor reference point",
			voltage: 0.706,
			want:    27.0, // 27 - ((0.706 - 0.706) / 0.001721)
		},
		{
			name:    "zero volts",
			voltage: 0.0,
			want:    437.2266, // 27 + 0.706/0.001721
		},
		{
			name:    "half scale",
			voltage: 1.65,
			want:    -521.5183, // 27 - (1.65 - 0.706)/0.001721
		},
		{
			name:    "full scale",
			voltage: 3.3,
			want:    -1480.2632, // 27 - (3.3 - 0.706)/0.001721
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Temperature(tt.voltage, cfg)
			assert.InDelta(t, tt.want, got, 0.001, "Temperature(%f) = %f, want %f", tt.voltage, got, tt.want)
		})
	}
}

func TestTemperature_Monotonic(t *testing.T) {
	cfg := config.Default().Probe

	// The sensor slope is negative: higher voltage means a colder die.
	prev := Temperature(0.0, cfg)
	for v := 0.1; v <= 3.3; v += 0.1 {
		cur := Temperature(v, cfg)
		assert.Less(t, cur, prev, "Temperature(%f) should be below Temperature(%f)", v, v-0.1)
		prev = cur
	}
}

func TestCalibrate(t *testing.T) {
	tests := []struct {
		name string
		temp float64
		cal  config.CalibrationConfig
		want float64
	}{
		{
			name: "identity",
			temp: 27.14,
			cal:  config.CalibrationConfig{Scale: 1.0, Offset: 0.0},
			want: 27.14,
		},
		{
			name: "offset only",
			temp: 27.14,
			cal:  config.CalibrationConfig{Scale: 1.0, Offset: -0.5},
			want: 26.64,
		},
		{
			name: "scale and offset",
			temp: 20.0,
			cal:  config.CalibrationConfig{Scale: 1.02, Offset: 0.3},
			want: 20.7, // 20*1.02 + 0.3
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calibrate(tt.temp, tt.cal)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestConvertSample(t *testing.T) {
	cfg := config.Default()
	now := time.Now()

	tests := []struct {
		name            string
		raw             probe.RawSample
		wantVoltage     float64
		wantTemperature float64
	}{
		{
			name:            "zero ADC",
			raw:             probe.RawSample{Timestamp: now, Raw: 0},
			wantVoltage:     0.0,
			wantTemperature: 437.2266, // 27 + 0.706/0.001721
		},
		{
			name:            "half scale",
			raw:             probe.RawSample{Timestamp: now, Raw: 2048},
			wantVoltage:     1.65,
			wantTemperature: -521.5183,
		},
		{
			name:            "room temperature count",
			raw:             probe.RawSample{Timestamp: now, Raw: 876},
			wantVoltage:     0.705762,
			wantTemperature: 27.1385, // 27 - ((0.705762 - 0.706) / 0.001721)
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertSample(tt.raw, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.raw.Timestamp, got.Timestamp)
			assert.Equal(t, tt.raw.Raw, got.Raw)
			assert.InDelta(t, tt.wantVoltage, got.Voltage, 1e-6)
			assert.InDelta(t, tt.wantTemperature, got.Temperature, 0.001)
		})
	}
}

func TestConvertSample_Calibration(t *testing.T) {
	cfg := config.Default()
	cfg.Calibration = config.CalibrationConfig{Scale: 1.02, Offset: -0.5}

	got, err := convertSample(probe.RawSample{Timestamp: time.Now(), Raw: 876}, cfg)
	require.NoError(t, err)

	// 27.1385 * 1.02 - 0.5
	assert.InDelta(t, 27.1813, got.Temperature, 0.001)
}

func TestNewConverter_ChannelProcessing(t *testing.T) {
	cfg := config.Default()
	converter := NewConverter(cfg, 10)

	in := make(chan probe.RawSample, 5)
	out := converter(in)

	// Send some samples
	now := time.Now()
	for i := 0; i < 3; i++ {
		in <- probe.RawSample{
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Raw:       uint16(800 + i*100),
		}
	}

	close(in)

	// Read all samples
	var samples []Sample
	for sample := range out {
		samples = append(samples, sample)
	}

	assert.Len(t, samples, 3, "Should receive 3 samples")
	for i, s := range samples {
		assert.Equal(t, now.Add(time.Duration(i)*time.Second), s.Timestamp)
		assert.Greater(t, s.Voltage, float64(0))
		wantTemp := Temperature(Voltage(uint16(800+i*100), cfg.Probe), cfg.Probe)
		assert.InDelta(t, wantTemp, s.Temperature, 1e-9)
	}
}

func TestNewConverter_EmptyChannel(t *testing.T) {
	cfg := config.Default()
	converter := NewConverter(cfg, 10)

	in := make(chan probe.RawSample)
	out := converter(in)

	close(in)

	// Should close immediately
	_, ok := <-out
	assert.False(t, ok, "Output channel should be closed")
}
