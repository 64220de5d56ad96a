// ednbridge forwards records from a probe to one or more sinks without
// the GUI: parse the firmware's serial output (or mock it), rebuild the
// record stream, and fan it out to stdout, a file, or an MQTT broker.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/Grinkers/ednprobe/pkg/config"
	"github.com/Grinkers/ednprobe/pkg/mqtt"
	"github.com/Grinkers/ednprobe/pkg/probe"
	"github.com/Grinkers/ednprobe/pkg/sample"
	"github.com/Grinkers/ednprobe/pkg/telemetry"
)

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag           = flag.Bool("mock", false, "Use mocked device instead of serial port")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of samples to average (0 = disabled, overrides config)")
		echoFlag           = flag.Bool("echo", true, "Echo canonical records to stdout")
		mqttFlag           = flag.Bool("mqtt", false, "Publish records to the configured MQTT broker")
		outFlag            = flag.String("out", "", "Append raw records to a file")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *averageSamplesFlag >= 0 {
		cfg.Measurement.AverageSamples = *averageSamplesFlag
	}

	// Assemble sinks
	var sinks telemetry.MultiSink
	if *echoFlag {
		sinks = append(sinks, telemetry.NewEchoSink(os.Stdout))
	}
	if *outFlag != "" {
		f, err := os.OpenFile(*outFlag, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("Failed to open output file: %v", err)
		}
		sinks = append(sinks, telemetry.NewWriterSink(f))
	}
	if *mqttFlag {
		mqttSink := mqtt.NewSink(cfg.MQTT)
		if err := mqttSink.Connect(); err != nil {
			log.Fatalf("Failed to connect to MQTT broker: %v", err)
		}
		sinks = append(sinks, mqttSink)
	}
	if len(sinks) == 0 {
		log.Fatal("No sinks enabled, nothing to bridge")
	}

	// Connect the device
	var device probe.Device
	if *mockFlag {
		device = probe.NewMock(&cfg.Mock)
	} else {
		device = probe.New(cfg.Serial.Port, probe.DefaultBaudRate, probe.DefaultBufferSize)
	}

	if err := device.Connect(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	if *mockFlag {
		fmt.Println("Bridging mocked device")
	} else {
		fmt.Printf("Bridging serial port: %s\n", cfg.Serial.Port)
	}

	// Closing the device on interrupt closes the raw channel, the
	// converters drain, and the record loop below runs out.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	go func() {
		<-quit
		fmt.Println("Shutting down")
		device.Close()
	}()

	// Converter chain, same shape as the viewer
	baseStream := sample.NewConverter(cfg, 500)(device.Samples())

	samplesStream := baseStream
	if cfg.Measurement.AverageSamples > 0 {
		samplesStream = sample.NewAveragingConverterForSamples(cfg.Measurement.AverageSamples, 500)(baseStream)
	}

	var buf [telemetry.RecordBufferSize]byte
	for s := range samplesStream {
		record := telemetry.AppendRecord(buf[:0], s.Temperature)
		if err := sinks.Publish(record); err != nil {
			log.Printf("Failed to publish record: %v", err)
		}
	}

	if err := sinks.Close(); err != nil {
		log.Printf("Failed to close sinks: %v", err)
	}
}
