package httpserver

import (
	"github.com/bryanwahyu/leafscan/internal/domain/classification"
	"github.com/bryanwahyu/leafscan/internal/render"
)

type analyzeResponse struct {
	Crop   string                 `json:"crop"`
	Result *classification.Result `json:"result"`
	Card   *apiCard               `json:"card"`
	HTML   string                 `json:"html,omitempty"`
}

type apiBar struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Tooltip string  `json:"tooltip"`
}

// apiCard is the defaulted card, for clients that do not want to apply defaults themselves.
type apiCard struct {
	Name            string   `json:"name"`
	Severity        string   `json:"severity"`
	SeverityLabel   string   `json:"severity_label"`
	Healthy         bool     `json:"healthy"`
	Accent          string   `json:"accent"`
	Confidence      float64  `json:"confidence"`
	ConfidenceText  string   `json:"confidence_text"`
	Progress        float64  `json:"progress"`
	Description     string   `json:"description"`
	Recommendations []string `json:"recommendations"`
	Distribution    []apiBar `json:"distribution"`
}

func toAPICard(c *render.CardView) *apiCard {
	if c == nil {
		return nil
	}
	out := &apiCard{
		Name:            c.Name,
		Severity:        string(c.Severity),
		SeverityLabel:   c.SeverityLabel,
		Healthy:         c.Healthy,
		Accent:          c.Accent.Class,
		Confidence:      c.Confidence,
		ConfidenceText:  c.ConfidenceText,
		Progress:        c.Progress,
		Description:     c.Description,
		Recommendations: c.Recommendations,
		Distribution:    make([]apiBar, 0, len(c.Bars)),
	}
	for _, b := range c.Bars {
		out.Distribution = append(out.Distribution, apiBar{Label: b.Label, Value: b.Value, Tooltip: b.Tooltip})
	}
	return out
}
