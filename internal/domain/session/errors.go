package session

import "errors"

var (
	ErrNotFound         = errors.New("session not found")
	ErrInvalidID        = errors.New("invalid session id")
	ErrAnalysisInFlight = errors.New("analysis already in progress")
	ErrNoImage          = errors.New("no image selected")
	ErrAlreadyResolved  = errors.New("analysis already resolved; reset first")
	ErrNotAnalyzing     = errors.New("no analysis in progress")
	ErrImageNotFound    = errors.New("image not found")
)
