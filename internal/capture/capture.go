// Package capture is the image capture widget: it accepts one uploaded image,
// ignores anything whose declared media type is not an image, and builds the
// local preview shown before the image is sent anywhere.
package capture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/bryanwahyu/leafscan/internal/domain/classification"
)

// FieldName is the multipart field carrying the image, both from the browser and to the model.
const FieldName = "image"

// multipart bodies larger than this are spooled to temporary files, not rejected
const maxMemory = 32 << 20

// Formats is the hint shown under the drop zone.
const Formats = "Supported formats: JPG, PNG, WEBP"

// MediaType returns the lower-cased media type without parameters.
func MediaType(declared string) string {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(declared))
	}
	return mt
}

// IsImage reports whether the declared media type is image/*.
func IsImage(declared string) bool {
	return strings.HasPrefix(MediaType(declared), "image/")
}

// Accept turns an upload into an image, or reports false when it must be ignored.
func Accept(filename, declared string, data []byte) (*classification.Image, bool) {
	if !IsImage(declared) || len(data) == 0 {
		return nil, false
	}
	return &classification.Image{
		Filename:    filename,
		ContentType: MediaType(declared),
		Data:        data,
	}, true
}

// FromRequest reads the image field of a multipart request. A missing field and a
// non-image file both yield (nil, false, nil); only an unreadable body is an error.
func FromRequest(r *http.Request) (*classification.Image, bool, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("parse multipart form: %w", err)
	}

	file, header, err := r.FormFile(FieldName)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s field: %w", FieldName, err)
	}
	defer file.Close()

	declared := header.Header.Get("Content-Type")
	if !IsImage(declared) {
		return nil, false, nil
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, false, fmt.Errorf("read upload: %w", err)
	}

	img, ok := Accept(header.Filename, declared, data)
	return img, ok, nil
}

// Preview returns a data URL for the image; no network call is involved.
func Preview(img *classification.Image) template.URL {
	if img == nil || len(img.Data) == 0 {
		return ""
	}
	return template.URL("data:" + MediaType(img.ContentType) + ";base64," + base64.StdEncoding.EncodeToString(img.Data))
}

// Widget is the view model of the drop zone.
type Widget struct {
	Crop       string
	Preview    template.URL
	HasPreview bool
	Disabled   bool
	Icon       string
	Prompt     string
	Hint       string
	Formats    string
}

// View builds the widget for the given held image. While busy every control is
// inert and a loader replaces the upload icon.
func View(crop string, img *classification.Image, busy bool) Widget {
	w := Widget{
		Crop:     crop,
		Preview:  Preview(img),
		Disabled: busy,
		Icon:     "upload",
		Prompt:   fmt.Sprintf("Drop your %s leaf image here", crop),
		Hint:     "or click to browse from your device",
		Formats:  Formats,
	}
	w.HasPreview = w.Preview != ""
	if busy {
		w.Icon = "loader"
		w.Prompt = "Analyzing..."
	}
	return w
}
