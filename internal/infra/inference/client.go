// Package inference talks to the external leaf classification endpoint.
package inference

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/bryanwahyu/leafscan/internal/capture"
	"github.com/bryanwahyu/leafscan/internal/domain/classification"
)

// Client posts images to <baseURL><path>/<crop>.
type Client struct {
	httpClient *http.Client
	baseURL    string
	path       string
	healthPath string
}

var _ classification.Classifier = (*Client)(nil)

// NewClient creates a client. The http.Client carries no timeout of its own;
// a request waits as long as the transport allows.
func NewClient(baseURL, path string) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       "/" + strings.Trim(path, "/"),
	}
}

// WithHealthPath enables Check against baseURL+p.
func (c *Client) WithHealthPath(p string) *Client {
	if p != "" {
		c.healthPath = "/" + strings.TrimLeft(p, "/")
	}
	return c
}

// WithHTTPClient swaps the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Endpoint returns the URL used for crop.
func (c *Client) Endpoint(crop string) string {
	if c.path == "/" {
		return c.baseURL + "/" + crop
	}
	return c.baseURL + c.path + "/" + crop
}

// Classify sends the image once. Transport errors and any status outside 2xx
// are reported as ErrUpstream; an invalid JSON body as ErrMalformedPayload.
func (c *Client) Classify(ctx context.Context, crop string, img classification.Image) (*classification.Result, error) {
	body, contentType, err := encode(img)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(crop), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", classification.ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", classification.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", classification.ErrUpstream, resp.StatusCode, snippet(data))
	}

	res, err := classification.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return res, nil
}

// Check probes the health path when one is configured.
func (c *Client) Check(ctx context.Context) error {
	if c.healthPath == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("inference health returned %d", resp.StatusCode)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encode builds the multipart body with the image under the "image" field,
// keeping the original filename and declared content type.
func encode(img classification.Image) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(capture.FieldName), quoteEscaper.Replace(img.Filename)))
	ct := img.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("write part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
