// Package telemetry implements the probe's sample loop and the sinks its
// records flow into. The loop is the same code on the RP2040 firmware and
// in host-side tests; only the pin, ADC, and sink implementations differ.
package telemetry

import (
	"fmt"
	"io"
	"time"
)

const (
	// Interval is the half-cycle sleep. A full cycle takes two intervals,
	// so records arrive once per second.
	Interval = 500 * time.Millisecond

	// RecordBufferSize fits the record format at any reachable temperature.
	RecordBufferSize = 200
)

// sleep is swapped out by tests to observe the loop cadence.
var sleep = time.Sleep

// Pin is a digital output, shaped like TinyGo's machine.Pin.
type Pin interface {
	High()
	Low()
}

// ADC is an analog input, shaped like TinyGo's machine.ADC. Get returns a
// 16-bit left-aligned reading; the loop shifts it down to the converter's
// native 12 bits.
type ADC interface {
	Get() uint16
}

// Loop drives one probe cycle after another: sleep, LED on, sample, report,
// sleep, LED off.
type Loop struct {
	led  Pin
	adc  ADC
	sink Sink
	diag io.Writer

	buf [RecordBufferSize]byte
}

// NewLoop creates a sample loop reading adc, blinking led, and publishing
// one record per cycle to sink. Diagnostic lines go to diag.
func NewLoop(led Pin, adc ADC, sink Sink, diag io.Writer) *Loop {
	if diag == nil {
		diag = io.Discard
	}

	return &Loop{
		led:  led,
		adc:  adc,
		sink: sink,
		diag: diag,
	}
}

// Run executes sample cycles forever.
func (l *Loop) Run() {
	for {
		l.Cycle()
	}
}

// Cycle executes one full sample cycle.
func (l *Loop) Cycle() {
	sleep(Interval)
	l.led.High()

	raw := l.adc.Get() >> 4
	voltage := float64(raw) * 3.3 / 4096
	temperature := 27 - ((voltage - 0.706) / 0.001721)

	fmt.Fprintf(l.diag, "Raw value: 0x%03x, voltage: %f V\n", raw, voltage)
	fmt.Fprintf(l.diag, "Internal Temperature: %.2f degrees Celsius\n", temperature)

	record := AppendRecord(l.buf[:0], temperature)
	l.sink.Publish(record)

	sleep(Interval)
	l.led.Low()
}
