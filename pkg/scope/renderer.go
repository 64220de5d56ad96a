package scope

import (
	"image/color"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/Grinkers/ednprobe/pkg/monitor"
	"github.com/Grinkers/ednprobe/pkg/sample"
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	// Background
	grid *canvas.Rectangle

	// Excursion markers (vertical lines)
	excursionLines []*canvas.Line

	// Rate labels over excursions
	rateLabels []*canvas.Text

	// Latest temperature readout
	tempLabel *canvas.Text

	// Grid lines
	gridLines []*canvas.Line
	gridTexts []*canvas.Text

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	// Background fills entire widget
	r.grid.Resize(size)

	if r.lastSize.Width != size.Width || r.lastSize.Height != size.Height {
		r.lastSize = size
		// Size changed, redraw with the new dimensions through Fyne's
		// refresh cycle
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh updates the widget display.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	samples := r.scope.displaySamples
	rates := r.scope.displayRates
	excursions := r.scope.excursions
	yMin := r.scope.yMin
	yMax := r.scope.yMax
	xMin := r.scope.xMin
	xMax := r.scope.xMax
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	// Clear old objects (but keep grid)
	r.objects = []fyne.CanvasObject{r.grid}
	r.gridLines = r.gridLines[:0]
	r.gridTexts = r.gridTexts[:0]
	r.excursionLines = r.excursionLines[:0]
	r.rateLabels = r.rateLabels[:0]
	r.tempLabel = nil

	// Calculate margins
	marginLeft := float32(60.0)
	marginRight := float32(20.0)
	marginTop := float32(20.0)
	marginBottom := float32(40.0)

	plotWidth := size.Width - marginLeft - marginRight
	plotHeight := size.Height - marginTop - marginBottom
	plotX := marginLeft
	plotY := marginTop

	r.drawGrid(plotX, plotY, plotWidth, plotHeight, yMin, yMax, xMin, xMax)

	// Temperature curve (orange)
	if len(samples) > 1 {
		r.drawTemperatureLine(plotX, plotY, plotWidth, plotHeight, samples, yMin, yMax, xMin, xMax)
	}

	// Rate curve (light blue, thicker)
	if len(rates) > 0 && len(samples) > 1 {
		r.drawRateLine(plotX, plotY, plotWidth, plotHeight, rates, samples, yMin, yMax, xMin, xMax)
	}

	// Excursion boundaries (red vertical lines)
	r.drawExcursions(plotX, plotY, plotWidth, plotHeight, excursions, samples, xMin, xMax)

	r.drawRateLabels(plotX, plotY, plotWidth, plotHeight, excursions, samples, yMin, yMax, xMin, xMax)

	// Latest reading in the corner
	if len(samples) > 0 {
		r.drawCurrentTemperature(plotX, plotY, samples[len(samples)-1].Temperature)
	}
}

// drawGrid draws the oscilloscope-style grid.
func (r *scopeRenderer) drawGrid(plotX, plotY, plotWidth, plotHeight float32, yMin, yMax float64, xMin, xMax time.Time) {
	// Horizontal grid lines (temperature)
	numHLines := 8
	for i := range numHLines + 1 {
		y := plotY + float32(i)*plotHeight/float32(numHLines)
		line := canvas.NewLine(color.RGBA{R: 40, G: 40, B: 40, A: 255})
		line.Position1 = fyne.NewPos(plotX, y)
		line.Position2 = fyne.NewPos(plotX+plotWidth, y)
		line.StrokeWidth = 1
		r.gridLines = append(r.gridLines, line)
		r.objects = append(r.objects, line)

		// Y-axis label
		value := yMax - float64(i)*(yMax-yMin)/float64(numHLines)
		text := canvas.NewText(formatTemperature(value), color.RGBA{R: 150, G: 150, B: 150, A: 255})
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(plotX-5, y-6))
		r.gridTexts = append(r.gridTexts, text)
		r.objects = append(r.objects, text)
	}

	// Vertical grid lines (time)
	numVLines := 10
	for i := range numVLines + 1 {
		x := plotX + float32(i)*plotWidth/float32(numVLines)
		line := canvas.NewLine(color.RGBA{R: 40, G: 40, B: 40, A: 255})
		line.Position1 = fyne.NewPos(x, plotY)
		line.Position2 = fyne.NewPos(x, plotY+plotHeight)
		line.StrokeWidth = 1
		r.gridLines = append(r.gridLines, line)
		r.objects = append(r.objects, line)

		// X-axis label
		timeOffset := float64(i) * xMax.Sub(xMin).Seconds() / float64(numVLines)
		timeVal := xMin.Add(time.Duration(timeOffset * float64(time.Second)))
		text := canvas.NewText(formatTime(timeVal.Sub(xMin)), color.RGBA{R: 150, G: 150, B: 150, A: 255})
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, plotY+plotHeight+5))
		r.gridTexts = append(r.gridTexts, text)
		r.objects = append(r.objects, text)
	}
}

// drawTemperatureLine draws the temperature curve (orange).
func (r *scopeRenderer) drawTemperatureLine(plotX, plotY, plotWidth, plotHeight float32, samples []sample.Sample, yMin, yMax float64, xMin, xMax time.Time) {
	if len(samples) < 2 {
		return
	}

	points := make([]fyne.Position, 0, len(samples))
	for _, s := range samples {
		x := plotX + float32(s.Timestamp.Sub(xMin).Seconds()/xMax.Sub(xMin).Seconds())*plotWidth
		y := plotY + plotHeight - float32((s.Temperature-yMin)/(yMax-yMin))*plotHeight
		points = append(points, fyne.NewPos(x, y))
	}

	// Draw connected line segments
	for i := range len(points) - 1 {
		line := canvas.NewLine(color.RGBA{R: 255, G: 165, B: 0, A: 255}) // Orange
		line.Position1 = points[i]
		line.Position2 = points[i+1]
		line.StrokeWidth = 1.5
		r.objects = append(r.objects, line)
	}
}

// drawRateLine draws the rate-of-change curve (light blue, thicker).
func (r *scopeRenderer) drawRateLine(plotX, plotY, plotWidth, plotHeight float32, rates []float64, samples []sample.Sample, yMin, yMax float64, xMin, xMax time.Time) {
	if len(rates) == 0 || len(samples) < 2 {
		return
	}

	// Rates correspond to sample pairs, so plot them at pair midpoints.
	points := make([]fyne.Position, 0, len(rates))
	for i, rate := range rates {
		if i+1 >= len(samples) {
			break
		}
		midTime := samples[i].Timestamp.Add(samples[i+1].Timestamp.Sub(samples[i].Timestamp) / 2)
		x := plotX + float32(midTime.Sub(xMin).Seconds()/xMax.Sub(xMin).Seconds())*plotWidth
		y := plotY + plotHeight - float32((rate-yMin)/(yMax-yMin))*plotHeight
		points = append(points, fyne.NewPos(x, y))
	}

	for i := range len(points) - 1 {
		line := canvas.NewLine(color.RGBA{R: 100, G: 200, B: 255, A: 255}) // Light blue
		line.Position1 = points[i]
		line.Position2 = points[i+1]
		line.StrokeWidth = 2.5
		r.objects = append(r.objects, line)
	}
}

// drawExcursions draws vertical boundary lines for detected excursions (red).
func (r *scopeRenderer) drawExcursions(plotX, plotY, plotWidth, plotHeight float32, excursions []monitor.Excursion, samples []sample.Sample, xMin, xMax time.Time) {
	if len(samples) == 0 {
		return
	}

	for _, e := range excursions {
		// Indices refer to the full buffer and may run past the
		// downsampled one.
		if e.StartIndex < 0 || e.StartIndex >= len(samples) {
			continue
		}
		if e.EndIndex < 0 || e.EndIndex >= len(samples) {
			continue
		}

		startTime := samples[e.StartIndex].Timestamp
		endTime := samples[e.EndIndex].Timestamp

		xStart := plotX + float32(startTime.Sub(xMin).Seconds()/xMax.Sub(xMin).Seconds())*plotWidth
		lineStart := canvas.NewLine(color.RGBA{R: 200, G: 50, B: 50, A: 255}) // Red
		lineStart.Position1 = fyne.NewPos(xStart, plotY)
		lineStart.Position2 = fyne.NewPos(xStart, plotY+plotHeight)
		lineStart.StrokeWidth = 1
		r.excursionLines = append(r.excursionLines, lineStart)
		r.objects = append(r.objects, lineStart)

		xEnd := plotX + float32(endTime.Sub(xMin).Seconds()/xMax.Sub(xMin).Seconds())*plotWidth
		lineEnd := canvas.NewLine(color.RGBA{R: 200, G: 50, B: 50, A: 255}) // Red
		lineEnd.Position1 = fyne.NewPos(xEnd, plotY)
		lineEnd.Position2 = fyne.NewPos(xEnd, plotY+plotHeight)
		lineEnd.StrokeWidth = 1
		r.excursionLines = append(r.excursionLines, lineEnd)
		r.objects = append(r.objects, lineEnd)
	}
}

// drawRateLabels draws the peak rate over each detected excursion.
func (r *scopeRenderer) drawRateLabels(plotX, plotY, plotWidth, plotHeight float32, excursions []monitor.Excursion, samples []sample.Sample, yMin, yMax float64, xMin, xMax time.Time) {
	if len(samples) == 0 {
		return
	}

	for _, e := range excursions {
		if e.StartIndex < 0 || e.StartIndex >= len(samples) {
			continue
		}
		if e.EndIndex < 0 || e.EndIndex >= len(samples) {
			continue
		}

		startTime := samples[e.StartIndex].Timestamp
		endTime := samples[e.EndIndex].Timestamp
		centerTime := startTime.Add(endTime.Sub(startTime) / 2)

		x := plotX + float32(centerTime.Sub(xMin).Seconds()/xMax.Sub(xMin).Seconds())*plotWidth

		// Hang the label over the warmest sample of the excursion.
		maxTemp := yMin
		for i := e.StartIndex; i <= e.EndIndex && i < len(samples); i++ {
			if samples[i].Temperature > maxTemp {
				maxTemp = samples[i].Temperature
			}
		}
		y := plotY + plotHeight - float32((maxTemp-yMin)/(yMax-yMin))*plotHeight - 15

		text := canvas.NewText(formatRate(e.PeakRate), color.RGBA{R: 255, G: 165, B: 0, A: 255}) // Orange
		text.TextSize = 12
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-30, y))
		r.rateLabels = append(r.rateLabels, text)
		r.objects = append(r.objects, text)
	}
}

// drawCurrentTemperature draws the latest reading in the corner.
func (r *scopeRenderer) drawCurrentTemperature(plotX, plotY float32, temperature float64) {
	text := canvas.NewText(formatTemperature(temperature), color.RGBA{R: 200, G: 200, B: 200, A: 255}) // Light gray
	text.TextSize = 11
	text.Alignment = fyne.TextAlignLeading
	text.Move(fyne.NewPos(plotX+10, plotY+10))
	r.tempLabel = text
	r.objects = append(r.objects, text)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {
	// Cleanup handled by Fyne
}

// Helper functions for formatting

func formatTemperature(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "C"
}

func formatTime(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatFloat(d.Seconds(), 'f', 2, 64) + "s"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + " C/s"
}
