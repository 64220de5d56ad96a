package probe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/Grinkers/ednprobe/edn"
)

const (
	// DefaultBaudRate is the conventional rate for the pico USB serial
	// (the CDC link itself ignores it).
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the samples channel buffer.
	DefaultBufferSize = 100
)

// RawSample represents one firmware cycle as read off the wire.
type RawSample struct {
	Timestamp   time.Time
	Raw         uint16  // 12-bit ADC reading (0-4095), from the diagnostic line
	Voltage     float64 // Sensor voltage (V), from the diagnostic line
	Temperature float64 // Die temperature (degrees C), from the EDN record
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to the probe MCU.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      serial.Port
	samples   chan RawSample
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a new Device instance with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:      port,
		baudRate:  baudRate,
		bufSize:   bufSize,
		samples:   make(chan RawSample, bufSize),
		ctx:       ctx,
		cancel:    cancel,
		connected: false,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		// Try to get port description if available
		port, err := serial.Open(name, &serial.Mode{
			BaudRate: DefaultBaudRate,
		})
		if err == nil {
			// Port opened successfully, get description
			desc := name // Use name as description if we can't get more info
			port.Close()
			result = append(result, Port{
				Name:        name,
				Description: desc,
			})
		} else {
			// Still add the port even if we can't open it
			result = append(result, Port{
				Name:        name,
				Description: name,
			})
		}
	}

	return result, nil
}

// Connect connects to the serial port and starts reading samples.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
	}

	port, err := serial.Open(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true

	// Start reading samples in a goroutine
	go d.readSamples()

	return nil
}

// Close closes the connection and stops reading samples.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	// Cancel context to stop reading goroutine
	d.cancel()

	// Close serial port
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}

	d.connected = false

	// Close samples channel
	close(d.samples)

	return nil
}

// Samples returns the channel for reading samples.
func (d *Serial) Samples() <-chan RawSample {
	return d.samples
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readSamples reads lines from the serial port and pairs them into RawSamples.
func (d *Serial) readSamples() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in readSamples: %v", r)
		}
	}()

	var p pairer
	scanner := bufio.NewScanner(d.conn)
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
			if !scanner.Scan() {
				// Scanner stopped (EOF or error)
				if err := scanner.Err(); err != nil {
					if err != io.EOF {
						log.Printf("Error reading from serial port: %v", err)
					}
				}
				return
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			sample, ok := p.feed(line, time.Now())
			if !ok {
				continue
			}

			// Send sample to channel (non-blocking)
			select {
			case d.samples <- sample:
			case <-d.ctx.Done():
				return
			default:
				// Channel full, log and skip
				log.Printf("Samples channel full, dropping sample")
			}
		}
	}
}

// pairer accumulates the diagnostic line of a firmware cycle until the EDN
// record line that completes it arrives.
type pairer struct {
	pending RawSample
	have    bool
}

// feed folds one serial line into the pairing state. It returns a completed
// sample when a record line closes out a cycle. Malformed lines are logged
// and skipped; a record without a preceding diagnostic is dropped.
func (p *pairer) feed(line string, now time.Time) (RawSample, bool) {
	switch {
	case strings.HasPrefix(line, "Raw value:"):
		raw, voltage, err := parseDiag(line)
		if err != nil {
			log.Printf("Failed to parse diagnostic '%s': %v", line, err)
			return RawSample{}, false
		}
		p.pending = RawSample{Timestamp: now, Raw: raw, Voltage: voltage}
		p.have = true
	case strings.HasPrefix(line, "{"):
		temp, err := parseRecord(line)
		if err != nil {
			log.Printf("Failed to parse record '%s': %v", line, err)
			return RawSample{}, false
		}
		if !p.have {
			log.Printf("Record without diagnostics, dropping sample")
			return RawSample{}, false
		}
		p.pending.Temperature = temp
		p.have = false
		return p.pending, true
	}
	// The temperature diagnostic repeats what the record carries; other
	// lines are boot noise.
	return RawSample{}, false
}

// parseDiag parses a diagnostic line into the raw ADC count and voltage.
// Format: Raw value: 0x2e9, voltage: 0.600586 V
func parseDiag(line string) (uint16, float64, error) {
	rest, ok := strings.CutPrefix(line, "Raw value: 0x")
	if !ok {
		return 0, 0, fmt.Errorf("missing raw value prefix")
	}

	hexPart, rest, ok := strings.Cut(rest, ", voltage: ")
	if !ok {
		return 0, 0, fmt.Errorf("missing voltage field")
	}

	raw, err := strconv.ParseUint(hexPart, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid raw value: %w", err)
	}
	if raw > 4095 {
		return 0, 0, fmt.Errorf("raw value out of range: %d (max 4095)", raw)
	}

	voltStr, ok := strings.CutSuffix(rest, " V")
	if !ok {
		return 0, 0, fmt.Errorf("missing voltage unit")
	}

	voltage, err := strconv.ParseFloat(voltStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid voltage: %w", err)
	}

	return uint16(raw), voltage, nil
}

// parseRecord parses an EDN record line and extracts the temperature.
// Format: {:temp 23.46 :foo #{1 2 3 42}}
func parseRecord(line string) (float64, error) {
	v, err := edn.ReadString(line)
	if err != nil {
		return 0, fmt.Errorf("invalid record: %w", err)
	}

	temp, ok := v.Get(edn.Keyword("temp"))
	if !ok {
		return 0, fmt.Errorf("record missing :temp")
	}

	if f, ok := temp.Float64(); ok {
		return f, nil
	}
	if i, ok := temp.Int64(); ok {
		return float64(i), nil
	}
	return 0, fmt.Errorf("record :temp is not a number")
}
