package main

import "machine"

const (
	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// Status LED on the Pico board (GPIO25)
	PIN_LED = machine.LED

	// Probe analog input (GPIO26)
	PIN_ADC = machine.ADC0
)
