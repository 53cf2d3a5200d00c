package render

import (
	"bytes"
	"errors"
	"html"
	"html/template"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bryanwahyu/leafscan/internal/domain/classification"
)

const (
	chartHeight   = 240
	chartBarWidth = 48
	chartSpacing  = 24
	chartMinWidth = 320
)

var errNoBars = errors.New("no probabilities to chart")

// Chart renders the distribution as an SVG bar chart. The first bar uses the
// card accent, the rest a neutral colour. go-chart writes text nodes verbatim,
// so labels are escaped here before the SVG is trusted as HTML.
func Chart(dist []classification.Probability, accent Accent) (template.HTML, error) {
	if len(dist) == 0 {
		return "", errNoBars
	}

	top := 100.0
	bars := make([]chart.Value, 0, len(dist))
	for i, p := range dist {
		v := p.Value
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			v = 0
		}
		top = math.Max(top, v)

		fill := drawing.ColorFromHex("cbd5e1")
		if i == 0 {
			fill = drawing.ColorFromHex(accent.Hex)
		}
		bars = append(bars, chart.Value{
			Label: html.EscapeString(p.Label),
			Value: v,
			Style: chart.Style{FillColor: fill, StrokeColor: fill},
		})
	}

	width := len(bars)*(chartBarWidth+chartSpacing) + 2*chartSpacing + 64
	if width < chartMinWidth {
		width = chartMinWidth
	}

	graph := chart.BarChart{
		Width:      width,
		Height:     chartHeight,
		BarWidth:   chartBarWidth,
		BarSpacing: chartSpacing,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 16, Right: 16, Bottom: 8}},
		YAxis: chart.YAxis{
			Name:  "%",
			Range: &chart.ContinuousRange{Min: 0, Max: top},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.SVG, &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
