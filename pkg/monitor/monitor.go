package monitor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/Grinkers/ednprobe/pkg/config"
	"github.com/Grinkers/ednprobe/pkg/sample"
)

var _ TemperatureMonitor = (*Monitor)(nil)

// Excursion is a stretch of samples where the temperature moved faster
// than the configured rate threshold, in either direction.
type Excursion struct {
	StartIndex int       // Start sample index in buffer
	EndIndex   int       // End sample index in buffer (updated as the excursion continues)
	StartTime  time.Time // Start timestamp
	EndTime    time.Time // End timestamp (updated as the excursion continues)
	PeakRate   float64   // Signed rate with the largest magnitude seen, degrees C/s
	DeltaTemp  float64   // Temperature change from start to end, degrees C
}

// TemperatureMonitor processes samples, maintains windowed buffers, and
// detects excursions.
type TemperatureMonitor interface {
	Run(ctx context.Context, input <-chan sample.Sample)
	Samples() []sample.Sample // Current raw samples buffer (FIFO, ordered first to last)
	Rates() []float64         // Rates of change (corresponds to Samples, n-1 rates for n samples)
	Excursions() []Excursion  // Detected excursions within window
	OnUpdate(func(samples []sample.Sample, rates []float64, excursions []Excursion))
}

// Monitor implements TemperatureMonitor.
// Internally uses FIFO buffers, externally exposes ordered slices
// (first sample first, latest last).
type Monitor struct {
	cfg *config.Config

	// Both samples and rates are FIFO buffers that maintain order:
	// oldest at index 0, newest at the end. Removal is based on
	// timestamp (time window), not number of samples.
	//
	// Rates correspond exactly to sample pairs:
	// - rate[i] = (temp[i+1] - temp[i]) / dt
	// - n samples carry n-1 rates
	samples    []sample.Sample
	rates      []float64
	excursions []Excursion

	mu sync.RWMutex

	// Callbacks receive current samples, rates, and excursions directly.
	callbacks []func(samples []sample.Sample, rates []float64, excursions []Excursion)
	cbMu      sync.RWMutex

	windowDuration time.Duration
	threshold      float64
	minDuration    time.Duration

	// Set when the input channel closes or the context ends, prevents
	// further callbacks.
	shutdown bool
}

// New creates a Monitor with the measurement settings from cfg.
func New(cfg *config.Config) *Monitor {
	return &Monitor{
		cfg:            cfg,
		samples:        make([]sample.Sample, 0),
		rates:          make([]float64, 0),
		excursions:     make([]Excursion, 0),
		callbacks:      make([]func(samples []sample.Sample, rates []float64, excursions []Excursion), 0),
		windowDuration: time.Duration(cfg.Measurement.WindowSeconds * float64(time.Second)),
		threshold:      cfg.Measurement.ExcursionThreshold,
		minDuration:    time.Duration(cfg.Measurement.MinExcursionDuration * float64(time.Second)),
	}
}

// Run consumes samples from the input channel until it closes or the
// context ends, then marks the monitor shut down to stop callbacks.
func (m *Monitor) Run(ctx context.Context, input <-chan sample.Sample) {
	defer func() {
		m.mu.Lock()
		m.shutdown = true
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-input:
			if !ok {
				return
			}
			m.ProcessSample(s)
		}
	}
}

// ProcessSample adds a sample to the buffer, updates rates, and detects
// excursions. Run calls it per received sample; tests call it directly.
func (m *Monitor) ProcessSample(s sample.Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples = append(m.samples, s)

	// Remove samples outside the time window, based on timestamp.
	cutoffTime := s.Timestamp.Add(-m.windowDuration)
	cutoffIndex := 0
	for i, sample := range m.samples {
		if sample.Timestamp.After(cutoffTime) {
			cutoffIndex = i
			break
		}
	}
	if cutoffIndex > 0 {
		m.samples = m.samples[cutoffIndex:]

		// Drop the rates of removed sample pairs to keep the exact
		// correspondence: rate[i] belongs to samples i and i+1.
		if cutoffIndex <= len(m.rates) {
			m.rates = m.rates[cutoffIndex:]
		} else {
			m.rates = m.rates[:0]
		}
		for i := range m.excursions {
			m.excursions[i].StartIndex -= cutoffIndex
			m.excursions[i].EndIndex -= cutoffIndex
		}
		valid := make([]Excursion, 0)
		for _, e := range m.excursions {
			if e.StartIndex >= 0 && e.EndIndex >= 0 {
				valid = append(valid, e)
			}
		}
		m.excursions = valid
	}

	// A new sample pair contributes one rate, needs at least 2 samples.
	if len(m.samples) >= 2 {
		lastIdx := len(m.samples) - 1
		prev := m.samples[lastIdx-1]
		curr := m.samples[lastIdx]

		dt := curr.Timestamp.Sub(prev.Timestamp).Seconds()
		if dt > 0 {
			rate := (curr.Temperature - prev.Temperature) / dt
			m.rates = append(m.rates, rate)

			// Keep n samples to n-1 rates even if timestamps misbehave.
			if len(m.rates) > len(m.samples)-1 {
				m.rates = m.rates[1:]
			}
		}
	}

	m.updateExcursions()

	shouldNotify := !m.shutdown

	// Release the lock before notifyCallbacks, which takes RLock itself.
	m.mu.Unlock()

	if shouldNotify {
		m.notifyCallbacks()
	}

	// Re-acquire for the defer.
	m.mu.Lock()
}

// updateExcursions extends or starts excursions based on the newest rate.
func (m *Monitor) updateExcursions() {
	if len(m.rates) == 0 {
		return
	}

	lastRateIdx := len(m.rates) - 1
	lastRate := m.rates[lastRateIdx]
	lastSampleIdx := len(m.samples) - 1

	// Rising and falling excursions count alike.
	moving := math.Abs(lastRate) > m.threshold

	if moving {
		// Find an excursion this sample continues.
		activeIdx := -1
		for i := len(m.excursions) - 1; i >= 0; i-- {
			if m.excursions[i].EndIndex == lastSampleIdx-1 {
				activeIdx = i
				break
			}
		}

		if activeIdx >= 0 {
			e := &m.excursions[activeIdx]
			e.EndIndex = lastSampleIdx
			e.EndTime = m.samples[lastSampleIdx].Timestamp
			if math.Abs(lastRate) > math.Abs(e.PeakRate) {
				e.PeakRate = lastRate
			}
			e.DeltaTemp = m.samples[e.EndIndex].Temperature - m.samples[e.StartIndex].Temperature
		} else {
			// Start a new excursion only on a fresh crossing: the
			// previous rate was inside the threshold, or there is a
			// calm gap since the last excursion ended.
			shouldStart := true
			if lastRateIdx > 0 {
				prevRate := m.rates[lastRateIdx-1]
				if math.Abs(prevRate) > m.threshold {
					shouldStart = false
					if len(m.excursions) > 0 {
						last := m.excursions[len(m.excursions)-1]
						if lastSampleIdx-1 > last.EndIndex+1 {
							shouldStart = true
						}
					}
				}
			}

			if shouldStart {
				startIdx := lastSampleIdx - 1
				if startIdx < 0 {
					startIdx = 0
				}
				m.excursions = append(m.excursions, Excursion{
					StartIndex: startIdx,
					EndIndex:   lastSampleIdx,
					StartTime:  m.samples[startIdx].Timestamp,
					EndTime:    m.samples[lastSampleIdx].Timestamp,
					PeakRate:   lastRate,
					DeltaTemp:  m.samples[lastSampleIdx].Temperature - m.samples[startIdx].Temperature,
				})
			} else if len(m.excursions) > 0 {
				// Close enough to the previous excursion, extend it.
				last := &m.excursions[len(m.excursions)-1]
				if lastSampleIdx <= last.EndIndex+2 {
					last.EndIndex = lastSampleIdx
					last.EndTime = m.samples[lastSampleIdx].Timestamp
					if math.Abs(lastRate) > math.Abs(last.PeakRate) {
						last.PeakRate = lastRate
					}
					last.DeltaTemp = m.samples[last.EndIndex].Temperature - m.samples[last.StartIndex].Temperature
				}
			}
		}
	}

	// Drop excursions outside the window or shorter than the noise floor.
	valid := make([]Excursion, 0, len(m.excursions))
	for _, e := range m.excursions {
		if e.StartIndex >= 0 && e.StartIndex < len(m.samples) {
			if e.EndTime.Sub(e.StartTime) >= m.minDuration {
				valid = append(valid, e)
			}
		}
	}
	m.excursions = valid
}

// Samples returns a copy of the current samples buffer.
func (m *Monitor) Samples() []sample.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]sample.Sample, len(m.samples))
	copy(result, m.samples)
	return result
}

// Rates returns a copy of the current rate buffer, degrees C per second.
func (m *Monitor) Rates() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]float64, len(m.rates))
	copy(result, m.rates)
	return result
}

// Excursions returns a copy of the currently detected excursions.
func (m *Monitor) Excursions() []Excursion {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Excursion, len(m.excursions))
	copy(result, m.excursions)
	return result
}

// OnUpdate registers a callback invoked after each processed sample.
// The callback should copy what it needs and return quickly.
func (m *Monitor) OnUpdate(callback func(samples []sample.Sample, rates []float64, excursions []Excursion)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ResetShutdown allows callbacks again. Call it before starting a new
// measurement chain on a monitor whose previous input has closed.
func (m *Monitor) ResetShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = false
}

// notifyCallbacks invokes all registered callbacks with copies of the
// current data, holding no locks during the calls.
func (m *Monitor) notifyCallbacks() {
	m.mu.RLock()
	samplesCopy := make([]sample.Sample, len(m.samples))
	copy(samplesCopy, m.samples)
	ratesCopy := make([]float64, len(m.rates))
	copy(ratesCopy, m.rates)
	excursionsCopy := make([]Excursion, len(m.excursions))
	copy(excursionsCopy, m.excursions)
	m.mu.RUnlock()

	m.cbMu.RLock()
	callbacks := make([]func(samples []sample.Sample, rates []float64, excursions []Excursion), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(samplesCopy, ratesCopy, excursionsCopy)
		}
	}
}
