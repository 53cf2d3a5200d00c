package inference

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leafscan/internal/domain/classification"
)

func leaf() classification.Image {
	return classification.Image{Filename: "leaf.jpg", ContentType: "image/jpeg", Data: []byte("jpeg-bytes")}
}

func TestClassify_SendsImageField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict/mango", r.URL.Path)

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)

		assert.Equal(t, "leaf.jpg", header.Filename)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		assert.Equal(t, []byte("jpeg-bytes"), data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Anthracnose","confidence":87.5,"severity":"moderate","all_probabilities":{"Anthracnose":87.5,"Healthy":12.5}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "/predict/")
	res, err := c.Classify(context.Background(), "mango", leaf())
	require.NoError(t, err)
	assert.Equal(t, "Anthracnose", res.DisplayName())
	assert.Equal(t, 87.5, res.ConfidenceValue())
	assert.Equal(t, classification.SeverityModerate, res.Severity)
	assert.Equal(t, []classification.Probability{{Label: "Anthracnose", Value: 87.5}, {Label: "Healthy", Value: 12.5}}, res.Distribution())
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "http://host/cashew", NewClient("http://host", "").Endpoint("cashew"))
	assert.Equal(t, "http://host/api/v1/cashew", NewClient("http://host/", "api/v1").Endpoint("cashew"))
}

func TestClassify_Non2xxIsUpstreamError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"name":"ignored"}`))
		}))

		_, err := NewClient(srv.URL, "").Classify(context.Background(), "mango", leaf())
		assert.ErrorIs(t, err, classification.ErrUpstream, "status %d", status)
		srv.Close()
	}
}

func TestClassify_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "").Classify(context.Background(), "mango", leaf())
	assert.ErrorIs(t, err, classification.ErrUpstream)
}

func TestClassify_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Classify(context.Background(), "mango", leaf())
	assert.ErrorIs(t, err, classification.ErrMalformedPayload)
}

func TestClassify_NullBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "").Classify(context.Background(), "mango", leaf())
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	assert.NoError(t, NewClient(srv.URL, "").Check(context.Background()))
	assert.NoError(t, NewClient(srv.URL, "").WithHealthPath("health").Check(context.Background()))
	assert.Error(t, NewClient(srv.URL, "").WithHealthPath("/ready").Check(context.Background()))
}
