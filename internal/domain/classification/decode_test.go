package classification

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_FullPayload(t *testing.T) {
	body := []byte(`{
		"name": "Anthracnose",
		"confidence": 89,
		"severity": "moderate",
		"description": "Fungal disease.",
		"recommendations": ["Remove infected leaves", "Apply fungicide"],
		"all_probabilities": {"Anthracnose": 89, "Healthy": 7.5, "Powdery Mildew": 3.5}
	}`)

	res, err := Decode(body)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "Anthracnose", res.DisplayName())
	assert.Equal(t, 89.0, res.ConfidenceValue())
	assert.Equal(t, SeverityModerate, res.SeverityValue())
	assert.Equal(t, "Fungal disease.", res.DescriptionText())
	assert.Equal(t, []string{"Remove infected leaves", "Apply fungicide"}, res.RecommendationList())
	assert.Equal(t, []Probability{
		{Label: "Anthracnose", Value: 89},
		{Label: "Healthy", Value: 7.5},
		{Label: "Powdery Mildew", Value: 3.5},
	}, res.Distribution())
}

func TestDecode_EmptyObject(t *testing.T) {
	res, err := Decode([]byte(`{}`))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, UnknownName, res.DisplayName())
	assert.Equal(t, 0.0, res.ConfidenceValue())
	assert.Equal(t, SeverityUnknown, res.SeverityValue())
	assert.Equal(t, DefaultDescription, res.DescriptionText())
	assert.Empty(t, res.RecommendationList())
	assert.Empty(t, res.Distribution())
	assert.False(t, res.Healthy())
}

func TestDecode_Null(t *testing.T) {
	res, err := Decode([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestDecode_NonObject(t *testing.T) {
	for _, body := range []string{`[]`, `42`, `"text"`, `true`} {
		res, err := Decode([]byte(body))
		require.NoError(t, err, body)
		require.NotNil(t, res, body)
		assert.Equal(t, UnknownName, res.DisplayName(), body)
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	for _, body := range []string{``, `{`, `<html>502</html>`} {
		_, err := Decode([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedPayload, body)
	}
}

func TestDecode_WrongTypes(t *testing.T) {
	body := []byte(`{
		"name": 12,
		"confidence": "high",
		"severity": ["severe"],
		"description": {"text": "x"},
		"recommendations": "spray",
		"all_probabilities": [1, 2]
	}`)

	res, err := Decode(body)
	require.NoError(t, err)

	assert.Nil(t, res.Name)
	assert.Nil(t, res.Confidence)
	assert.Equal(t, SeverityUnknown, res.Severity)
	assert.Nil(t, res.Description)
	assert.Nil(t, res.Recommendations)
	assert.Nil(t, res.Probabilities)
}

func TestDecode_NumericStrings(t *testing.T) {
	res, err := Decode([]byte(`{"confidence": " 72.5 ", "all_probabilities": {"a": "10", "b": "n/a"}}`))
	require.NoError(t, err)

	assert.Equal(t, 72.5, res.ConfidenceValue())
	assert.Equal(t, []Probability{{Label: "a", Value: 10}, {Label: "b", Value: 0}}, res.Distribution())
}

func TestDecode_NonFiniteNumbers(t *testing.T) {
	res, err := Decode([]byte(`{"name":"Anthracnose","confidence":1e999,"all_probabilities":{"a":-1e999,"b":"1e999","c":"NaN"}}`))
	require.NoError(t, err)

	assert.Nil(t, res.Confidence)
	assert.Equal(t, 0.0, res.ConfidenceValue())
	assert.Equal(t, []Probability{{Label: "a", Value: 0}, {Label: "b", Value: 0}, {Label: "c", Value: 0}}, res.Distribution())

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Anthracnose","all_probabilities":{"a":0,"b":0,"c":0}}`, string(out))
}

func TestDecode_MixedRecommendations(t *testing.T) {
	res, err := Decode([]byte(`{"recommendations": ["prune", 3, null, "water less"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"prune", "water less"}, res.RecommendationList())
}

func TestDecode_SeverityCaseInsensitive(t *testing.T) {
	res, err := Decode([]byte(`{"severity": "  Healthy "}`))
	require.NoError(t, err)
	assert.True(t, res.Healthy())

	res, err = Decode([]byte(`{"severity": "catastrophic"}`))
	require.NoError(t, err)
	assert.Equal(t, SeverityUnknown, res.SeverityValue())
}

func TestDecode_DistributionKeepsDocumentOrder(t *testing.T) {
	res, err := Decode([]byte(`{"all_probabilities": {"zeta": 1, "alpha": 2, "mid": 3}}`))
	require.NoError(t, err)

	labels := make([]string, 0, 3)
	for _, p := range res.Distribution() {
		labels = append(labels, p.Label)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, labels)
}

func TestNilResultAccessors(t *testing.T) {
	var res *Result

	assert.Equal(t, UnknownName, res.DisplayName())
	assert.Equal(t, 0.0, res.ConfidenceValue())
	assert.Equal(t, SeverityUnknown, res.SeverityValue())
	assert.Equal(t, DefaultDescription, res.DescriptionText())
	assert.NotNil(t, res.RecommendationList())
	assert.NotNil(t, res.Distribution())
}

func TestResult_MarshalJSON(t *testing.T) {
	t.Run("omits absent fields", func(t *testing.T) {
		b, err := json.Marshal(&Result{})
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(b))
	})

	t.Run("keeps distribution order through decode", func(t *testing.T) {
		in := []byte(`{"name":"Sooty Mould","confidence":61.25,"severity":"mild","all_probabilities":{"z":1,"a":2}}`)
		res, err := Decode(in)
		require.NoError(t, err)

		out, err := json.Marshal(res)
		require.NoError(t, err)
		assert.Equal(t, `{"name":"Sooty Mould","confidence":61.25,"severity":"mild","all_probabilities":{"z":1,"a":2}}`, string(out))

		again, err := Decode(out)
		require.NoError(t, err)
		assert.Equal(t, res, again)
	})
}
