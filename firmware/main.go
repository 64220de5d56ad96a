//go:generate tinygo flash -target=pico

package main

import (
	"device/rp"
	"machine"
	"os"

	"github.com/Grinkers/ednprobe/pkg/telemetry"
)

var adcInput machine.ADC

func main() {
	// Configure LED pin as output
	PIN_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	// Set up the ADC block: the probe input on GPIO26 (high-impedance
	// analog mode) and the on-die temperature sensor on input 4
	machine.InitADC()

	adcInput = machine.ADC{Pin: PIN_ADC}
	adcInput.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})

	machine.ADC_TEMP_SENSOR.Configure(machine.ADCConfig{})

	// Diagnostics and echoed records both go out over USB serial
	loop := telemetry.NewLoop(PIN_LED, tempSensor{}, telemetry.NewEchoSink(os.Stdout), os.Stdout)
	loop.Run()
}

// tempSensor samples the on-die temperature sensor. The machine package only
// exposes the sensor as millicelsius, but the record format wants raw counts,
// so the one-shot conversion runs through the ADC registers directly.
type tempSensor struct{}

func (tempSensor) Get() uint16 {
	rp.ADC.CS.ReplaceBits(uint32(machine.ADC_TEMP_SENSOR), 0b111, rp.ADC_CS_AINSEL_Pos)
	rp.ADC.CS.SetBits(rp.ADC_CS_START_ONCE)
	for !rp.ADC.CS.HasBits(rp.ADC_CS_READY) {
	}

	// 12-bit conversion scaled to 16 bits, same as machine.ADC.Get
	return uint16(rp.ADC.RESULT.Get()) << 4
}
