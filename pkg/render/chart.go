package render

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	chartTitle  = "Object Confidence Comparison"
	chartXName  = "Detected Objects"
	chartYName  = "Confidence Score"
	chartHeight = 420
	barWidth    = 56
	barSpacing  = 36
)

var (
	barColor       = drawing.Color{R: 135, G: 206, B: 235, A: 255}
	highlightColor = drawing.Color{R: 255, G: 140, B: 0, A: 255}
)

var ErrNoBars = errors.New("chart needs at least one value")

// ConfidenceChart renders a PNG bar chart with one bar per label. Each bar
// carries its value to two decimals and the bar at index top is drawn in
// the highlight colour.
func ConfidenceChart(labels []string, confidences []float64, top int) ([]byte, error) {
	if len(confidences) == 0 {
		return nil, ErrNoBars
	}
	if len(labels) != len(confidences) {
		return nil, fmt.Errorf("got %d labels for %d values", len(labels), len(confidences))
	}

	bars := make([]chart.Value, len(confidences))
	for i, c := range confidences {
		fill := barColor
		if i == top {
			fill = highlightColor
		}
		bars[i] = chart.Value{
			Label: labels[i],
			Value: c,
			Style: chart.Style{
				FillColor:   fill,
				StrokeColor: fill,
				StrokeWidth: 1,
			},
		}
	}

	graph := chart.BarChart{
		Title:      chartTitle,
		Width:      max(640, len(bars)*(barWidth+barSpacing)+160),
		Height:     chartHeight,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{
			Padding: chart.Box{Top: 48, Left: 20, Right: 20, Bottom: 60},
		},
		YAxis: chart.YAxis{
			Name:  chartYName,
			Range: &chart.ContinuousRange{Min: 0, Max: 1.1},
			Ticks: []chart.Tick{
				{Value: 0, Label: "0.0"},
				{Value: 0.2, Label: "0.2"},
				{Value: 0.4, Label: "0.4"},
				{Value: 0.6, Label: "0.6"},
				{Value: 0.8, Label: "0.8"},
				{Value: 1.0, Label: "1.0"},
			},
		},
		Bars: bars,
	}
	graph.Elements = []chart.Renderable{
		barValueLabels(graph),
		axisName(chartXName, graph.GetHeight()),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render confidence chart: %w", err)
	}

	return buf.Bytes(), nil
}

// barValueLabels mirrors the bar layout of chart.BarChart to print each
// value just above its bar.
func barValueLabels(bc chart.BarChart) chart.Renderable {
	return func(r chart.Renderer, canvasBox chart.Box, defaults chart.Style) {
		width, spacing := effectiveBarLayout(bc, canvasBox.Width())

		r.SetFont(defaults.Font)
		r.SetFontSize(10)
		r.SetFontColor(drawing.ColorBlack)

		x := canvasBox.Left + spacing>>1
		for _, bar := range bc.Bars {
			text := fmt.Sprintf("%.2f", bar.Value)
			tb := r.MeasureText(text)

			top := canvasBox.Bottom - int(math.Ceil(bar.Value/1.1*float64(canvasBox.Height())))
			r.Text(text, x+width/2-tb.Width()/2, top-4)

			x += width + spacing
		}
	}
}

func axisName(name string, height int) chart.Renderable {
	return func(r chart.Renderer, canvasBox chart.Box, defaults chart.Style) {
		r.SetFont(defaults.Font)
		r.SetFontSize(11)
		r.SetFontColor(drawing.ColorBlack)

		tb := r.MeasureText(name)
		cx, _ := canvasBox.Center()
		r.Text(name, cx-tb.Width()/2, height-12)
	}
}

func effectiveBarLayout(bc chart.BarChart, canvasWidth int) (width, spacing int) {
	n := len(bc.Bars)
	width, spacing = bc.GetBarWidth(), bc.GetBarSpacing()

	if n*(width+spacing) > canvasWidth {
		if less := canvasWidth - n*width; less > 0 {
			spacing = int(math.Ceil(float64(less) / float64(n)))
		} else {
			spacing = 0
		}
	}
	if n*(width+spacing) > canvasWidth {
		if less := canvasWidth - n*spacing; less > 0 {
			width = int(math.Ceil(float64(less) / float64(n)))
		} else {
			width = 0
		}
	}

	return width, spacing
}
