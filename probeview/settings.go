package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/Grinkers/ednprobe/pkg/monitor"
	"github.com/Grinkers/ednprobe/pkg/probe"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createProbeTab(state),
		createMeasurementTab(state),
		createCalibrationTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	// Get available serial ports
	ports, err := probe.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	// Add current port if not in list
	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
		currentDisplay = currentPort
	}

	portSelect := widget.NewSelect(portOptions, func(selected string) {
		// Selection handler - will be called on submit
	})
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
		},
		OnSubmit: func() {
			if portSelect.Selected != "" {
				selectedPort := portMap[portSelect.Selected]
				if selectedPort == "" {
					selectedPort = portSelect.Selected // Fallback to selected text
				}

				// Check if port changed and device is connected
				portChanged := state.cfg.Serial.Port != selectedPort
				wasConnected := state.device != nil && state.device.IsConnected()

				state.cfg.Serial.Port = selectedPort
				if err := state.cfg.Save(state.configPath); err != nil {
					dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
					return
				}

				// If port changed and device was connected, restart the measurement chain
				if portChanged && wasConnected {
					closeMeasurementChain(state.chain)
					state.chain = nil

					if state.device != nil {
						state.device.Close()
						state.device = nil
					}

					// Reconnect with new port
					handleConnect(state)
				}
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createProbeTab creates the Probe sensor configuration tab.
func createProbeTab(state *appState) *container.TabItem {
	vrefEntry := widget.NewEntry()
	vrefEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Probe.VRef))

	countsEntry := widget.NewEntry()
	countsEntry.SetText(fmt.Sprintf("%.0f", state.cfg.Probe.Counts))

	tempOffsetEntry := widget.NewEntry()
	tempOffsetEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Probe.TempOffset))

	tempVRefEntry := widget.NewEntry()
	tempVRefEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Probe.TempVRef))

	tempSlopeEntry := widget.NewEntry()
	tempSlopeEntry.SetText(fmt.Sprintf("%.6f", state.cfg.Probe.TempSlope))

	intervalEntry := widget.NewEntry()
	intervalEntry.SetText(state.cfg.Loop.Interval.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "VRef (V)", Widget: vrefEntry},
			{Text: "ADC Counts", Widget: countsEntry},
			{Text: "Sensor Offset (C)", Widget: tempOffsetEntry},
			{Text: "Sensor Voltage at Offset (V)", Widget: tempVRefEntry},
			{Text: "Sensor Slope (V/C)", Widget: tempSlopeEntry},
			{Text: "Loop Interval", Widget: intervalEntry},
		},
		OnSubmit: func() {
			if vref, err := strconv.ParseFloat(vrefEntry.Text, 64); err == nil {
				state.cfg.Probe.VRef = vref
			}
			if counts, err := strconv.ParseFloat(countsEntry.Text, 64); err == nil {
				state.cfg.Probe.Counts = counts
			}
			if off, err := strconv.ParseFloat(tempOffsetEntry.Text, 64); err == nil {
				state.cfg.Probe.TempOffset = off
			}
			if tv, err := strconv.ParseFloat(tempVRefEntry.Text, 64); err == nil {
				state.cfg.Probe.TempVRef = tv
			}
			if ts, err := strconv.ParseFloat(tempSlopeEntry.Text, 64); err == nil {
				state.cfg.Probe.TempSlope = ts
			}
			if iv, err := time.ParseDuration(intervalEntry.Text); err == nil {
				state.cfg.Loop.Interval = iv
			}
			if err := state.cfg.Save(state.configPath); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
		},
	}

	return container.NewTabItem("Probe", form)
}

// createMeasurementTab creates the Measurement configuration tab.
func createMeasurementTab(state *appState) *container.TabItem {
	windowSecondsEntry := widget.NewEntry()
	windowSecondsEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Measurement.WindowSeconds))

	excursionThresholdEntry := widget.NewEntry()
	excursionThresholdEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Measurement.ExcursionThreshold))

	minExcursionDurationEntry := widget.NewEntry()
	minExcursionDurationEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Measurement.MinExcursionDuration))

	averageSamplesEntry := widget.NewEntry()
	averageSamplesEntry.SetText(fmt.Sprintf("%d", state.cfg.Measurement.AverageSamples))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Window (seconds)", Widget: windowSecondsEntry},
			{Text: "Excursion Threshold (C/s)", Widget: excursionThresholdEntry},
			{Text: "Min Excursion Duration (s)", Widget: minExcursionDurationEntry},
			{Text: "Average Samples (0=disabled)", Widget: averageSamplesEntry},
		},
		OnSubmit: func() {
			if ws, err := strconv.ParseFloat(windowSecondsEntry.Text, 64); err == nil {
				state.cfg.Measurement.WindowSeconds = ws
			}
			if et, err := strconv.ParseFloat(excursionThresholdEntry.Text, 64); err == nil {
				state.cfg.Measurement.ExcursionThreshold = et
			}
			if med, err := strconv.ParseFloat(minExcursionDurationEntry.Text, 64); err == nil {
				state.cfg.Measurement.MinExcursionDuration = med
			}
			if avg, err := strconv.Atoi(averageSamplesEntry.Text); err == nil {
				state.cfg.Measurement.AverageSamples = avg
			}
			if err := state.cfg.Save(state.configPath); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
			// Recreate the monitor with new config
			state.monitor = monitor.New(state.cfg)
		},
	}

	return container.NewTabItem("Measurement", form)
}

// createCalibrationTab creates the Calibration configuration tab.
func createCalibrationTab(state *appState) *container.TabItem {
	scaleEntry := widget.NewEntry()
	scaleEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Calibration.Scale))

	offsetEntry := widget.NewEntry()
	offsetEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Calibration.Offset))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Scale", Widget: scaleEntry},
			{Text: "Offset (C)", Widget: offsetEntry},
		},
		OnSubmit: func() {
			if sc, err := strconv.ParseFloat(scaleEntry.Text, 64); err == nil {
				state.cfg.Calibration.Scale = sc
			}
			if off, err := strconv.ParseFloat(offsetEntry.Text, 64); err == nil {
				state.cfg.Calibration.Offset = off
			}
			if err := state.cfg.Save(state.configPath); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
		},
	}

	return container.NewTabItem("Calibration", form)
}

// createMockTab creates the Mock device configuration tab.
func createMockTab(state *appState) *container.TabItem {
	baseTempEntry := widget.NewEntry()
	baseTempEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.BaseTemp))

	driftEntry := widget.NewEntry()
	driftEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.Drift))

	driftPeriodEntry := widget.NewEntry()
	driftPeriodEntry.SetText(state.cfg.Mock.DriftPeriod.String())

	noiseLevelEntry := widget.NewEntry()
	noiseLevelEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Mock.NoiseLevel))

	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(state.cfg.Mock.SampleRate.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Base Temperature (C)", Widget: baseTempEntry},
			{Text: "Drift Amplitude (C)", Widget: driftEntry},
			{Text: "Drift Period", Widget: driftPeriodEntry},
			{Text: "Noise Level (C)", Widget: noiseLevelEntry},
			{Text: "Sample Rate", Widget: sampleRateEntry},
		},
		OnSubmit: func() {
			if bt, err := strconv.ParseFloat(baseTempEntry.Text, 64); err == nil {
				state.cfg.Mock.BaseTemp = bt
			}
			if dr, err := strconv.ParseFloat(driftEntry.Text, 64); err == nil {
				state.cfg.Mock.Drift = dr
			}
			if dp, err := time.ParseDuration(driftPeriodEntry.Text); err == nil {
				state.cfg.Mock.DriftPeriod = dp
			}
			if nl, err := strconv.ParseFloat(noiseLevelEntry.Text, 64); err == nil {
				state.cfg.Mock.NoiseLevel = nl
			}
			if sr, err := time.ParseDuration(sampleRateEntry.Text); err == nil {
				state.cfg.Mock.SampleRate = sr
			}
			if err := state.cfg.Save(state.configPath); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
		},
	}

	return container.NewTabItem("Mock", form)
}
