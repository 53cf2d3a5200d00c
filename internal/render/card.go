// Package render turns a classification result into what the user sees: an
// HTML card, a bar chart of the distribution and a terminal summary. Every
// function here tolerates a missing or partially filled result.
package render

import (
	"fmt"
	"html/template"
	"math"
	"strings"

	"github.com/fatih/color"

	"github.com/bryanwahyu/leafscan/internal/domain/classification"
)

// Accent is the per-severity styling of the card.
type Accent struct {
	Icon  string
	Class string
	Hex   string
	Term  color.Attribute
}

var accents = map[classification.Severity]Accent{
	classification.SeverityHealthy:  {Icon: "check-circle", Class: "accent-primary", Hex: "22c55e", Term: color.FgGreen},
	classification.SeverityMild:     {Icon: "info", Class: "accent-yellow", Hex: "eab308", Term: color.FgYellow},
	classification.SeverityModerate: {Icon: "alert-triangle", Class: "accent-orange", Hex: "f97316", Term: color.FgHiYellow},
	classification.SeveritySevere:   {Icon: "alert-octagon", Class: "accent-destructive", Hex: "ef4444", Term: color.FgRed},
}

var unknownAccent = Accent{Icon: "help-circle", Class: "accent-muted", Hex: "94a3b8", Term: color.FgHiBlack}

// AccentFor returns the styling for a severity; unknown severities get the muted one.
func AccentFor(s classification.Severity) Accent {
	if a, ok := accents[s]; ok {
		return a
	}
	return unknownAccent
}

// Bar is one row of the probability distribution.
type Bar struct {
	Label   string
	Value   float64
	Width   float64
	Tooltip string
}

// CardView is the fully defaulted view model of a result card.
type CardView struct {
	Name            string
	Severity        classification.Severity
	SeverityLabel   string
	Healthy         bool
	Accent          Accent
	Confidence      float64
	ConfidenceText  string
	Progress        float64
	Description     string
	Recommendations []string
	Bars            []Bar
	Chart           template.HTML
}

// Card builds the card for res, or nil when there is no result to show.
func Card(res *classification.Result) *CardView {
	if res == nil {
		return nil
	}

	sev := res.SeverityValue()
	conf := res.ConfidenceValue()
	c := &CardView{
		Name:            res.DisplayName(),
		Severity:        sev,
		SeverityLabel:   SeverityLabel(sev),
		Healthy:         res.Healthy(),
		Accent:          AccentFor(sev),
		Confidence:      conf,
		ConfidenceText:  Percent(conf),
		Progress:        Clamp(conf),
		Description:     res.DescriptionText(),
		Recommendations: res.RecommendationList(),
	}

	dist := res.Distribution()
	if len(dist) > 0 {
		c.Bars = make([]Bar, 0, len(dist))
		for _, p := range dist {
			c.Bars = append(c.Bars, Bar{
				Label:   p.Label,
				Value:   p.Value,
				Width:   Clamp(p.Value),
				Tooltip: Percent(p.Value),
			})
		}
		if svg, err := Chart(dist, c.Accent); err == nil {
			c.Chart = svg
		}
	}
	return c
}

// SeverityLabel capitalises the severity, "Unknown" when absent.
func SeverityLabel(s classification.Severity) string {
	if s == classification.SeverityUnknown {
		return classification.UnknownSeverity
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Percent formats a percentage with two decimals.
func Percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// Clamp bounds a percentage to [0, 100] for progress bars.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// HasRecommendations is used by the templates.
func (c *CardView) HasRecommendations() bool { return c != nil && len(c.Recommendations) > 0 }

// HasDistribution is used by the templates.
func (c *CardView) HasDistribution() bool { return c != nil && len(c.Bars) > 0 }
