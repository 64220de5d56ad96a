package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Grinkers/ednprobe/pkg/config"
	"github.com/Grinkers/ednprobe/pkg/sample"
)

func TestNew(t *testing.T) {
	cfg := config.Default()
	m := New(cfg)

	assert.NotNil(t, m)
	assert.Equal(t, 0, len(m.Samples()))
	assert.Equal(t, 0, len(m.Rates()))
	assert.Equal(t, 0, len(m.Excursions()))
}

func TestProcessSample_Basic(t *testing.T) {
	cfg := config.Default()
	m := New(cfg)

	now := time.Now()
	s := sample.Sample{
		Timestamp:   now,
		Raw:         876,
		Voltage:     0.705762,
		Temperature: 27.14,
	}

	m.ProcessSample(s)

	samples := m.Samples()
	assert.Len(t, samples, 1)
	assert.Equal(t, s, samples[0])
	assert.Len(t, m.Rates(), 0) // Need at least 2 samples for a rate
}

func TestProcessSample_RateOfChange(t *testing.T) {
	cfg := config.Default()
	m := New(cfg)

	now := time.Now()
	s1 := sample.Sample{
		Timestamp:   now,
		Raw:         876,
		Temperature: 27.0,
	}
	s2 := sample.Sample{
		Timestamp:   now.Add(100 * time.Millisecond),
		Raw:         875,
		Temperature: 27.1, // 0.1C increase in 0.1s = 1.0 C/s
	}

	m.ProcessSample(s1)
	m.ProcessSample(s2)

	rates := m.Rates()
	assert.Len(t, rates, 1)
	assert.InDelta(t, 1.0, rates[0], 0.01) // 0.1C / 0.1s = 1.0 C/s
}

func TestProcessSample_WindowRemoval(t *testing.T) {
	cfg := config.Default()
	cfg.Measurement.WindowSeconds = 1.0 // 1 second window
	m := New(cfg)

	now := time.Now()
	s1 := sample.Sample{Timestamp: now, Raw: 876, Temperature: 27.0}
	s2 := sample.Sample{Timestamp: now.Add(500 * time.Millisecond), Raw: 875, Temperature: 27.1}
	// Outside the window from s3's perspective
	s3 := sample.Sample{Timestamp: now.Add(1500 * time.Millisecond), Raw: 874, Temperature: 27.2}

	m.ProcessSample(s1)
	m.ProcessSample(s2)
	m.ProcessSample(s3)

	samples := m.Samples()
	assert.LessOrEqual(t, len(samples), 2)
}

func TestProcessSample_ExcursionDetection(t *testing.T) {
	cfg := config.Default()
	cfg.Measurement.ExcursionThreshold = 0.5 // 0.5 C/s
	cfg.Measurement.MinExcursionDuration = 0.1 // Lower floor for the test
	m := New(cfg)

	now := time.Now()
	dt := 100 * time.Millisecond

	// Steady rise of 0.06C per 0.1s = 0.6 C/s, above threshold
	for i := 0; i < 12; i++ {
		m.ProcessSample(sample.Sample{
			Timestamp:   now.Add(time.Duration(i) * dt),
			Raw:         876,
			Temperature: 27.0 + float64(i)*0.06,
		})
	}

	excursions := m.Excursions()
	assert.Greater(t, len(excursions), 0, "Should detect at least one excursion")

	if len(excursions) > 0 {
		e := excursions[0]
		assert.GreaterOrEqual(t, e.StartIndex, 0)
		assert.Less(t, e.StartIndex, len(m.Samples()))
		assert.GreaterOrEqual(t, e.EndIndex, e.StartIndex)
		assert.Greater(t, e.PeakRate, cfg.Measurement.ExcursionThreshold)
		assert.Greater(t, e.DeltaTemp, 0.0)
	}
}

func TestProcessSample_CoolingExcursion(t *testing.T) {
	cfg := config.Default()
	cfg.Measurement.ExcursionThreshold = 0.5
	cfg.Measurement.MinExcursionDuration = 0.1
	m := New(cfg)

	now := time.Now()
	dt := 100 * time.Millisecond

	// Falling at -0.6 C/s, magnitude above threshold
	for i := 0; i < 12; i++ {
		m.ProcessSample(sample.Sample{
			Timestamp:   now.Add(time.Duration(i) * dt),
			Raw:         876,
			Temperature: 27.0 - float64(i)*0.06,
		})
	}

	excursions := m.Excursions()
	assert.Greater(t, len(excursions), 0, "A fast drop is an excursion too")

	if len(excursions) > 0 {
		e := excursions[0]
		assert.Less(t, e.PeakRate, 0.0, "PeakRate keeps the sign of the change")
		assert.Less(t, e.DeltaTemp, 0.0)
	}
}

func TestProcessSample_BelowThreshold(t *testing.T) {
	cfg := config.Default()
	cfg.Measurement.ExcursionThreshold = 0.5
	m := New(cfg)

	now := time.Now()
	dt := 100 * time.Millisecond

	// Slow drift of 0.01C per 0.1s = 0.1 C/s, below threshold
	for i := 0; i < 3; i++ {
		m.ProcessSample(sample.Sample{
			Timestamp:   now.Add(time.Duration(i) * dt),
			Raw:         876,
			Temperature: 27.0 + float64(i)*0.01,
		})
	}

	excursions := m.Excursions()
	assert.Equal(t, 0, len(excursions), "Should not detect excursions below threshold")
}

func TestProcessSample_MultipleExcursions(t *testing.T) {
	cfg := config.Default()
	cfg.Measurement.ExcursionThreshold = 0.5
	cfg.Measurement.MinExcursionDuration = 0.1
	cfg.Measurement.WindowSeconds = 10.0 // Large window
	m := New(cfg)

	now := time.Now()
	dt := 100 * time.Millisecond

	temps := make([]float64, 0, 26)
	// First excursion: rising at 0.6 C/s for 1.2s
	for i := 0; i < 12; i++ {
		temps = append(temps, 27.0+float64(i)*0.06)
	}
	// Calm stretch
	temps = append(temps, 27.66, 27.65)
	// Second excursion: rising again
	base := 27.65
	for i := 0; i < 12; i++ {
		temps = append(temps, base+float64(i)*0.06)
	}

	for i, temp := range temps {
		m.ProcessSample(sample.Sample{
			Timestamp:   now.Add(time.Duration(i) * dt),
			Raw:         876,
			Temperature: temp,
		})
	}

	excursions := m.Excursions()
	assert.GreaterOrEqual(t, len(excursions), 1, "Should detect at least one excursion")
}

func TestExcursion_PeakRateAndDelta(t *testing.T) {
	cfg := config.Default()
	cfg.Measurement.ExcursionThreshold = 0.5
	cfg.Measurement.MinExcursionDuration = 0.1
	m := New(cfg)

	now := time.Now()
	dt := 100 * time.Millisecond

	// Ramp accelerates mid-excursion: rates 0.6, 0.6, 1.2, 0.6 C/s.
	temps := []float64{27.00, 27.06, 27.12, 27.24, 27.30}
	for i, temp := range temps {
		m.ProcessSample(sample.Sample{
			Timestamp:   now.Add(time.Duration(i) * dt),
			Raw:         876,
			Temperature: temp,
		})
	}

	excursions := m.Excursions()
	assert.Len(t, excursions, 1)

	e := excursions[0]
	assert.InDelta(t, 1.2, e.PeakRate, 0.01)
	// From 27.00 at the start of the ramp to 27.30 at its end.
	assert.InDelta(t, 0.30, e.DeltaTemp, 0.001)
}

func TestOnUpdate(t *testing.T) {
	cfg := config.Default()
	m := New(cfg)

	callbackCalled := false
	var receivedSamples []sample.Sample
	var receivedRates []float64
	var receivedExcursions []Excursion

	m.OnUpdate(func(samples []sample.Sample, rates []float64, excursions []Excursion) {
		callbackCalled = true
		receivedSamples = samples
		receivedRates = rates
		receivedExcursions = excursions
	})

	m.ProcessSample(sample.Sample{
		Timestamp:   time.Now(),
		Raw:         876,
		Temperature: 27.14,
	})

	assert.True(t, callbackCalled, "Callback should be called when sample is processed")
	assert.NotNil(t, receivedSamples, "Callback should receive samples")
	assert.NotNil(t, receivedRates, "Callback should receive rates")
	assert.NotNil(t, receivedExcursions, "Callback should receive excursions")
}

func TestSamples_ThreadSafe(t *testing.T) {
	cfg := config.Default()
	m := New(cfg)

	done := make(chan bool)
	go func() {
		now := time.Now()
		for i := 0; i < 100; i++ {
			m.ProcessSample(sample.Sample{
				Timestamp:   now.Add(time.Duration(i) * time.Millisecond),
				Raw:         876,
				Temperature: 27.0 + float64(i)*0.01,
			})
		}
		done <- true
	}()

	for {
		select {
		case <-done:
			return
		default:
			samples := m.Samples()
			_ = samples // Just reading, should not panic
		}
	}
}

func TestRates_Count(t *testing.T) {
	cfg := config.Default()
	m := New(cfg)

	now := time.Now()
	for i := 0; i < 5; i++ {
		m.ProcessSample(sample.Sample{
			Timestamp:   now.Add(time.Duration(i) * 100 * time.Millisecond),
			Raw:         876,
			Temperature: 27.0 + float64(i)*0.1,
		})
	}

	samples := m.Samples()
	rates := m.Rates()
	assert.Equal(t, len(samples)-1, len(rates), "Should have n-1 rates for n samples")
}

func TestExcursions_IndicesValid(t *testing.T) {
	cfg := config.Default()
	cfg.Measurement.ExcursionThreshold = 0.5
	cfg.Measurement.MinExcursionDuration = 0.1
	cfg.Measurement.WindowSeconds = 5.0
	m := New(cfg)

	now := time.Now()
	dt := 100 * time.Millisecond

	for i := 0; i < 10; i++ {
		m.ProcessSample(sample.Sample{
			Timestamp:   now.Add(time.Duration(i) * dt),
			Raw:         876,
			Temperature: 27.0 + float64(i)*0.06, // 0.6 C/s
		})
	}

	excursions := m.Excursions()
	samples := m.Samples()

	for _, e := range excursions {
		assert.GreaterOrEqual(t, e.StartIndex, 0, "StartIndex should be valid")
		assert.Less(t, e.StartIndex, len(samples), "StartIndex should be within bounds")
		assert.GreaterOrEqual(t, e.EndIndex, e.StartIndex, "EndIndex should be >= StartIndex")
		assert.Less(t, e.EndIndex, len(samples), "EndIndex should be within bounds")
	}
}

func TestRun_Channel(t *testing.T) {
	cfg := config.Default()
	m := New(cfg)

	input := make(chan sample.Sample, 10)
	go m.Run(context.Background(), input)

	now := time.Now()
	for i := 0; i < 5; i++ {
		input <- sample.Sample{
			Timestamp:   now.Add(time.Duration(i) * 100 * time.Millisecond),
			Raw:         876,
			Temperature: 27.0 + float64(i)*0.1,
		}
	}

	close(input)

	// Wait a bit for processing
	time.Sleep(50 * time.Millisecond)

	samples := m.Samples()
	assert.Equal(t, 5, len(samples), "Should process all samples from channel")
}

func TestRun_ContextCancel(t *testing.T) {
	cfg := config.Default()
	m := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	input := make(chan sample.Sample, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx, input)
	}()

	input <- sample.Sample{Timestamp: time.Now(), Raw: 876, Temperature: 27.0}
	time.Sleep(50 * time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	// The shutdown flag now suppresses callbacks.
	callbackCount := 0
	m.OnUpdate(func([]sample.Sample, []float64, []Excursion) {
		callbackCount++
	})
	m.ProcessSample(sample.Sample{Timestamp: time.Now(), Raw: 876, Temperature: 27.1})
	assert.Equal(t, 0, callbackCount, "No callbacks after the context ends")
}
