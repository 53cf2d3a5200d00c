package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const barWidth = 24

// Text prints the card for a terminal.
func Text(w io.Writer, c *CardView) {
	if c == nil {
		_, _ = color.New(color.FgHiBlack).Fprintln(w, "No result.")
		return
	}

	accent := color.New(c.Accent.Term, color.Bold)
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	fmt.Fprintln(w)
	_, _ = bold.Fprintf(w, "  %s", c.Name)
	fmt.Fprint(w, "  ")
	_, _ = accent.Fprintf(w, "[%s]\n", c.SeverityLabel)

	printConfidenceBar(w, c)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %s\n", c.Description)

	if c.HasRecommendations() {
		fmt.Fprintln(w)
		_, _ = bold.Fprintln(w, "  Recommendations")
		for i, r := range c.Recommendations {
			fmt.Fprintf(w, "  %d. %s\n", i+1, r)
		}
	}

	if c.HasDistribution() {
		fmt.Fprintln(w)
		_, _ = bold.Fprintln(w, "  Probability distribution")
		labelWidth := 0
		for _, b := range c.Bars {
			labelWidth = max(labelWidth, len(b.Label))
		}
		for _, b := range c.Bars {
			filled := int(b.Width) * barWidth / 100
			fmt.Fprintf(w, "  %-*s ", labelWidth, b.Label)
			_, _ = dim.Fprint(w, strings.Repeat("█", filled)+strings.Repeat("░", barWidth-filled))
			fmt.Fprintf(w, " %s\n", b.Tooltip)
		}
	}
}

func printConfidenceBar(w io.Writer, c *CardView) {
	filled := int(c.Progress) * barWidth / 100
	if filled > barWidth {
		filled = barWidth
	}

	var barColor *color.Color
	switch {
	case c.Progress >= 80:
		barColor = color.New(color.FgGreen)
	case c.Progress >= 40:
		barColor = color.New(color.FgYellow)
	default:
		barColor = color.New(color.FgRed)
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	fmt.Fprintf(w, "  Confidence: %s ", c.ConfidenceText)
	_, _ = barColor.Fprint(w, bar)
	fmt.Fprintln(w)
}
