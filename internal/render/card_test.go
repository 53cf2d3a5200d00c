package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leafscan/internal/domain/classification"
)

func decode(t *testing.T, body string) *classification.Result {
	t.Helper()
	res, err := classification.Decode([]byte(body))
	require.NoError(t, err)
	return res
}

func TestCard_Anthracnose(t *testing.T) {
	c := Card(decode(t, `{"name":"Anthracnose","confidence":89,"severity":"moderate","recommendations":["Remove infected leaves"]}`))
	require.NotNil(t, c)

	assert.Equal(t, "Anthracnose", c.Name)
	assert.Equal(t, "Moderate", c.SeverityLabel)
	assert.Equal(t, "accent-orange", c.Accent.Class)
	assert.False(t, c.Healthy)
	assert.Equal(t, "89.00%", c.ConfidenceText)
	assert.Equal(t, 89.0, c.Progress)
	assert.Equal(t, []string{"Remove infected leaves"}, c.Recommendations)
	assert.True(t, c.HasRecommendations())
	assert.False(t, c.HasDistribution())
	assert.Empty(t, c.Chart)
}

func TestCard_EmptyObject(t *testing.T) {
	c := Card(decode(t, `{}`))
	require.NotNil(t, c)

	assert.Equal(t, "Unknown", c.Name)
	assert.Equal(t, "Unknown", c.SeverityLabel)
	assert.Equal(t, "accent-muted", c.Accent.Class)
	assert.Equal(t, "0.00%", c.ConfidenceText)
	assert.Equal(t, 0.0, c.Progress)
	assert.Equal(t, "No description available.", c.Description)
	assert.False(t, c.HasRecommendations())
	assert.False(t, c.HasDistribution())
	assert.Empty(t, c.Bars)
	assert.Empty(t, c.Chart)
}

func TestCard_Nil(t *testing.T) {
	assert.Nil(t, Card(nil))
	assert.Nil(t, Card(decode(t, `null`)))

	var c *CardView
	assert.False(t, c.HasRecommendations())
	assert.False(t, c.HasDistribution())
}

func TestCard_ConfidenceClamped(t *testing.T) {
	tests := []struct {
		body     string
		text     string
		progress float64
	}{
		{`{"confidence":150}`, "150.00%", 100},
		{`{"confidence":-5}`, "-5.00%", 0},
		{`{"confidence":"42.5"}`, "42.50%", 42.5},
		{`{"confidence":"high"}`, "0.00%", 0},
		{`{"confidence":true}`, "0.00%", 0},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			c := Card(decode(t, tt.body))
			assert.Equal(t, tt.text, c.ConfidenceText)
			assert.Equal(t, tt.progress, c.Progress)
		})
	}
}

func TestCard_Severity(t *testing.T) {
	tests := []struct {
		severity string
		label    string
		class    string
		healthy  bool
	}{
		{"healthy", "Healthy", "accent-primary", true},
		{"Mild", "Mild", "accent-yellow", false},
		{"MODERATE", "Moderate", "accent-orange", false},
		{"severe", "Severe", "accent-destructive", false},
		{"critical", "Unknown", "accent-muted", false},
	}

	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			c := Card(decode(t, `{"severity":"`+tt.severity+`"}`))
			assert.Equal(t, tt.label, c.SeverityLabel)
			assert.Equal(t, tt.class, c.Accent.Class)
			assert.Equal(t, tt.healthy, c.Healthy)
		})
	}
}

func TestCard_Distribution(t *testing.T) {
	c := Card(decode(t, `{"all_probabilities":{"Sooty Mould":61.234,"Healthy":30,"Anthracnose":"x","Die Back":8.766}}`))
	require.Len(t, c.Bars, 4)

	labels := make([]string, 0, len(c.Bars))
	for _, b := range c.Bars {
		labels = append(labels, b.Label)
	}
	assert.Equal(t, []string{"Sooty Mould", "Healthy", "Anthracnose", "Die Back"}, labels)
	assert.Equal(t, "61.23%", c.Bars[0].Tooltip)
	assert.Equal(t, "0.00%", c.Bars[2].Tooltip)
	assert.True(t, c.HasDistribution())
	assert.Contains(t, string(c.Chart), "<svg")
}

func TestCard_DistributionLabelsEscaped(t *testing.T) {
	c := Card(decode(t, `{"all_probabilities":{"<script>alert(1)</script>":60,"<svg/onload=alert(1)>":30,"Rust & Mould":10}}`))
	require.Len(t, c.Bars, 3)
	assert.Equal(t, "<script>alert(1)</script>", c.Bars[0].Label)

	svg := string(c.Chart)
	require.Contains(t, svg, "<svg")
	assert.NotContains(t, svg, "<script")
	assert.NotContains(t, svg, "<svg/onload")
	assert.NotContains(t, svg, "Rust & Mould")
}

func TestCard_NonFiniteConfidence(t *testing.T) {
	c := Card(decode(t, `{"name":"Anthracnose","confidence":1e999}`))
	assert.Equal(t, 0.0, c.Confidence)
	assert.Equal(t, "0.00%", c.ConfidenceText)
}

func TestCard_EmptyDistribution(t *testing.T) {
	for _, body := range []string{`{"all_probabilities":{}}`, `{"all_probabilities":[1,2]}`, `{"all_probabilities":null}`} {
		c := Card(decode(t, body))
		assert.Empty(t, c.Bars, body)
		assert.Empty(t, c.Chart, body)
	}
}

func TestChart_NoBars(t *testing.T) {
	_, err := Chart(nil, unknownAccent)
	assert.Error(t, err)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.01))
	assert.Equal(t, 100.0, Clamp(100.01))
	assert.Equal(t, 55.5, Clamp(55.5))
}
