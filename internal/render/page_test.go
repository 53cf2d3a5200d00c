package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leafscan/internal/capture"
	"github.com/bryanwahyu/leafscan/internal/domain/classification"
	"github.com/bryanwahyu/leafscan/internal/domain/session"
)

func TestPages_Index(t *testing.T) {
	pages, err := NewPages()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, pages.Index(&buf, IndexData{Crops: []Crop{CropOf("mango"), CropOf("cashew")}}))
	out := buf.String()
	assert.Contains(t, out, `href="/mango"`)
	assert.Contains(t, out, ">Cashew<")
}

func TestPages_Analyze(t *testing.T) {
	pages, err := NewPages()
	require.NoError(t, err)
	crop := CropOf("mango")

	t.Run("idle", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, pages.Analyze(&buf, AnalyzeData{
			Crop:   crop,
			State:  session.StateIdle,
			Widget: capture.View("mango", nil, false),
		}))
		out := buf.String()
		assert.Contains(t, out, "Drop your mango leaf image here")
		assert.Contains(t, out, `action="/mango/image"`)
		assert.NotContains(t, out, `action="/mango/analyze"`)
		assert.NotContains(t, out, "http-equiv")
	})

	t.Run("selected", func(t *testing.T) {
		img := &classification.Image{ContentType: "image/png", Data: []byte("png")}
		var buf bytes.Buffer
		require.NoError(t, pages.Analyze(&buf, AnalyzeData{
			Crop:       crop,
			State:      session.StateSelected,
			Widget:     capture.View("mango", img, false),
			CanAnalyze: true,
		}))
		out := buf.String()
		assert.Contains(t, out, `src="data:image/png;base64,cG5n"`)
		assert.Contains(t, out, `action="/mango/clear"`)
		assert.Contains(t, out, "Analyze Mango Leaf")
	})

	t.Run("busy", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, pages.Analyze(&buf, AnalyzeData{
			Crop:   crop,
			State:  session.StateAnalyzing,
			Widget: capture.View("mango", nil, true),
			Busy:   true,
		}))
		out := buf.String()
		assert.Contains(t, out, "http-equiv")
		assert.Contains(t, out, "Analyzing...")
		assert.Contains(t, out, "disabled")
	})

	t.Run("resolved", func(t *testing.T) {
		res, err := classification.Decode([]byte(`{"name":"Anthracnose","confidence":89,"severity":"moderate","recommendations":["Remove infected leaves"]}`))
		require.NoError(t, err)
		notice := &session.Notice{Kind: session.NoticeSuccess, Title: "Analysis Complete", Description: "Your mango leaf has been analyzed successfully."}

		var buf bytes.Buffer
		require.NoError(t, pages.Analyze(&buf, AnalyzeData{
			Crop:     crop,
			State:    session.StateResolved,
			Widget:   capture.View("mango", nil, false),
			Resolved: true,
			Card:     Card(res),
			Notice:   notice,
		}))
		out := buf.String()
		assert.Contains(t, out, "Anthracnose")
		assert.Contains(t, out, "Moderate")
		assert.Contains(t, out, "accent-orange")
		assert.Contains(t, out, "89.00%")
		assert.Contains(t, out, "<li>Remove infected leaves</li>")
		assert.Contains(t, out, "Analysis Complete")
		assert.Contains(t, out, "Analyze Another Image")
		assert.NotContains(t, out, "Probability Distribution")
	})

	t.Run("failed", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, pages.Analyze(&buf, AnalyzeData{
			Crop:       crop,
			State:      session.StateResolved,
			Widget:     capture.View("mango", &classification.Image{ContentType: "image/jpeg", Data: []byte{1}}, false),
			Resolved:   true,
			CanAnalyze: true,
			Notice:     &session.Notice{Kind: session.NoticeFailure, Title: "Analysis Failed"},
		}))
		out := buf.String()
		assert.Contains(t, out, "toast-failure")
		assert.Contains(t, out, "No result is available")
		assert.Contains(t, out, "Analyze Mango Leaf")
	})
}

func TestPages_CardFragment(t *testing.T) {
	pages, err := NewPages()
	require.NoError(t, err)

	html, err := pages.CardFragment(Card(&classification.Result{}))
	require.NoError(t, err)
	assert.Contains(t, string(html), "No description available.")

	html, err = pages.CardFragment(nil)
	require.NoError(t, err)
	assert.Empty(t, html)
}

func TestCropOf(t *testing.T) {
	assert.Equal(t, Crop{Slug: "cashew", Title: "Cashew"}, CropOf("cashew"))
	assert.Equal(t, Crop{}, CropOf(""))
}
