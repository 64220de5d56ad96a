package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/Grinkers/ednprobe/pkg/config"
	"github.com/Grinkers/ednprobe/pkg/monitor"
	"github.com/Grinkers/ednprobe/pkg/probe"
	"github.com/Grinkers/ednprobe/pkg/sample"
	"github.com/Grinkers/ednprobe/pkg/scope"
)

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag           = flag.Bool("mock", false, "Use mocked device instead of serial port")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of samples to average (0 = disabled, overrides config)")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	// Override average samples if provided via command line
	if *averageSamplesFlag >= 0 {
		cfg.Measurement.AverageSamples = *averageSamplesFlag
	}

	// Create Fyne application
	application := app.NewWithID("com.grinkers.ednprobe")

	// Create main window
	window := application.NewWindow("EDN Probe")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	// Create temperature monitor
	tempMonitor := monitor.New(cfg)

	// Create application state
	appState := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		device:     nil,
		monitor:    tempMonitor,
		window:     window,
		useMock:    *mockFlag,
	}

	// Create toolbar
	toolbar := createToolbar(appState)

	// Create scope widget for graph display
	scopeWidget := scope.New(cfg)
	appState.scopeWidget = scopeWidget

	// Create border layout with toolbar at top and scope widget as content
	container := container.NewBorder(
		toolbar,
		nil,
		nil,
		nil,
		scopeWidget,
	)

	window.SetContent(container)
	window.ShowAndRun()
}

// measurementChain tracks the components of the measurement chain for graceful shutdown.
type measurementChain struct {
	device           probe.Device
	rawSamples       <-chan probe.RawSample
	samplesStream    <-chan sample.Sample
	monitorGoroutine chan struct{} // Closed when the monitor goroutine exits
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	configPath  string
	device      probe.Device
	monitor     *monitor.Monitor
	scopeWidget *scope.ScopeWidget
	window      fyne.Window
	connectBtn  *widget.Button
	useMock     bool
	chain       *measurementChain // Current measurement chain (nil if not connected)

	// Throttling for scope updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// createToolbar creates the application toolbar with Connect and Settings buttons.
func createToolbar(state *appState) fyne.CanvasObject {
	// Connect button with icon
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	// Settings button with icon
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	return container.NewBorder(
		nil, // top
		nil, // bottom
		container.NewHBox(connectBtn, settingsBtn), // left
		nil, // right
		nil, // center (spacer)
	)
}

// closeMeasurementChain gracefully closes the measurement chain.
// Waits for the monitor goroutine to finish and channels to drain.
func closeMeasurementChain(chain *measurementChain) {
	if chain == nil {
		return
	}

	// Close device - this will close the rawSamples channel
	if chain.device != nil {
		chain.device.Close()
	}

	// Wait for the monitor goroutine to exit. It finishes when
	// samplesStream closes, which happens once the converters drain.
	if chain.monitorGoroutine != nil {
		<-chain.monitorGoroutine
	}
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.device != nil && state.device.IsConnected() {
		// Disconnect - gracefully close measurement chain
		closeMeasurementChain(state.chain)
		state.chain = nil
		state.device = nil
		if state.useMock {
			fmt.Println("Disconnected from mocked device")
		} else {
			fmt.Println("Disconnected from serial port")
		}
	} else {
		// Connect
		var device probe.Device
		if state.useMock {
			device = probe.NewMock(&state.cfg.Mock)
			fmt.Println("Using mocked device")
		} else {
			device = probe.New(state.cfg.Serial.Port, probe.DefaultBaudRate, probe.DefaultBufferSize)
		}

		if err := device.Connect(); err != nil {
			if state.useMock {
				dialog.ShowError(fmt.Errorf("failed to connect to mocked device: %w", err), state.window)
			} else {
				dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
			}
			return
		}
		state.device = device
		if state.useMock {
			fmt.Printf("Connected to mocked device\n")
		} else {
			fmt.Printf("Connected to serial port: %s\n", state.cfg.Serial.Port)
		}

		// Reset monitor shutdown flag for new chain
		state.monitor.ResetShutdown()

		// Register callback with the monitor to update the scope widget.
		// This must be done before starting the measurement chain.
		// Throttle updates to ~60 FPS (16.67ms between updates) to ensure smooth UI
		const updateInterval = 16 * time.Millisecond // ~60 FPS
		state.monitor.OnUpdate(func(samples []sample.Sample, rates []float64, excursions []monitor.Excursion) {
			// Throttle updates to prevent UI from being overwhelmed
			state.updateMu.Lock()
			now := time.Now()
			timeSinceLastUpdate := now.Sub(state.lastUpdateTime)
			state.updateMu.Unlock()

			// Skip update if too soon since last update
			if timeSinceLastUpdate < updateInterval {
				return
			}

			state.updateMu.Lock()
			state.lastUpdateTime = now
			state.updateMu.Unlock()

			// Update scope widget on main thread.
			// The scope widget handles downsampling internally, so pass full data.
			fyne.Do(func() {
				state.scopeWidget.UpdateData(samples, rates, excursions)
			})
		})

		// Chain converters: base converter always used, averaging converter
		// conditionally. If average_samples is 0, skip averaging.
		rawSamples := device.Samples()
		baseStream := sample.NewConverter(state.cfg, 500)(rawSamples)

		var samplesStream <-chan sample.Sample
		if state.cfg.Measurement.AverageSamples > 0 {
			samplesStream = sample.NewAveragingConverterForSamples(state.cfg.Measurement.AverageSamples, 500)(baseStream)
		} else {
			samplesStream = baseStream
		}

		// Process samples through the monitor
		monitorDone := make(chan struct{})
		go func() {
			defer close(monitorDone)
			state.monitor.Run(context.Background(), samplesStream)
		}()

		// Store chain for graceful shutdown
		state.chain = &measurementChain{
			device:           device,
			rawSamples:       rawSamples,
			samplesStream:    samplesStream,
			monitorGoroutine: monitorDone,
		}
	}
}
