package classification

import "context"

// Classifier sends one image to a model and returns its raw verdict.
// crop selects the model variant; an empty crop means the default endpoint.
type Classifier interface {
	Classify(ctx context.Context, crop string, img Image) (*Result, error)
}
