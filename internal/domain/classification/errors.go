package classification

import "errors"

var (
	// ErrMalformedPayload indicates the inference response was not valid JSON.
	ErrMalformedPayload = errors.New("malformed classification payload")

	// ErrUpstream indicates the classifier could not be reached or answered outside 2xx.
	ErrUpstream = errors.New("classifier request failed")

	// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded = errors.New("ai quota exceeded")

	// ErrNotAnImage indicates the declared media type of an upload is not image/*.
	ErrNotAnImage = errors.New("uploaded file is not an image")

	// ErrUnknownCrop indicates a crop type the service is not configured for.
	ErrUnknownCrop = errors.New("unknown crop type")
)
