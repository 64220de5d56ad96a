package telemetry

import (
	"fmt"
	"io"

	"github.com/Grinkers/ednprobe/edn"
)

// Sink consumes one record per probe cycle.
type Sink interface {
	// Publish delivers one record. The record buffer is reused by the
	// caller and is only valid for the duration of the call.
	Publish(record []byte) error
	Close() error
}

// Ensure the sinks implement Sink.
var (
	_ Sink = (*EchoSink)(nil)
	_ Sink = (*WriterSink)(nil)
	_ Sink = (MultiSink)(nil)
)

// EchoSink parses each record and prints its canonical form, so a reordered
// or oddly spaced record comes out normalized.
type EchoSink struct {
	w io.Writer
}

// NewEchoSink creates a sink echoing canonical records to w.
func NewEchoSink(w io.Writer) *EchoSink {
	return &EchoSink{w: w}
}

// Publish parses the record and writes its canonical rendering.
func (s *EchoSink) Publish(record []byte) error {
	v, err := edn.ReadString(string(record))
	if err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	if _, err := fmt.Fprintf(s.w, "hello edn %s\n", v); err != nil {
		return fmt.Errorf("failed to write echo: %w", err)
	}
	return nil
}

// Close is a no-op; the sink does not own its writer.
func (s *EchoSink) Close() error { return nil }

// WriterSink writes raw records to w, one per line.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink creates a sink appending raw records to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Publish writes the record followed by a newline.
func (s *WriterSink) Publish(record []byte) error {
	if _, err := s.w.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if _, err := s.w.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close closes the underlying writer when it is a Closer.
func (s *WriterSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// MultiSink fans each record out to several sinks.
type MultiSink []Sink

// Publish delivers the record to every sink. All sinks are attempted; the
// first error is returned.
func (m MultiSink) Publish(record []byte) error {
	var firstErr error
	for _, s := range m {
		if err := s.Publish(record); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every sink, returning the first error.
func (m MultiSink) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
