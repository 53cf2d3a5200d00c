package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/leafscan/internal/domain/classification"
)

// ID tipe untuk Session
type ID string

// NewID returns a random session id.
func NewID() ID { return ID(uuid.NewString()) }

// ParseID validates a session id taken from a cookie or URL.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", ErrInvalidID
	}
	return ID(u.String()), nil
}

// State enum
type State string

const (
	StateIdle      State = "idle"      // nothing selected
	StateSelected  State = "selected"  // image held, waiting for confirmation
	StateAnalyzing State = "analyzing" // request in flight
	StateResolved  State = "resolved"  // result or failure available
)

// NoticeKind enum
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeFailure NoticeKind = "failure"
)

// Notice is a one-shot message shown after an analysis completes.
type Notice struct {
	Kind        NoticeKind `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
}

// ImageMeta describes the held upload; the bytes live in the ImageStore under Key.
type ImageMeta struct {
	Key         string `json:"key"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Session is one analysis flow for one browser on one crop page.
type Session struct {
	ID        ID                     `json:"id"`
	Crop      string                 `json:"crop"`
	State     State                  `json:"state"`
	Image     *ImageMeta             `json:"image,omitempty"`
	Result    *classification.Result `json:"result,omitempty"`
	Notice    *Notice                `json:"notice,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// New creates an idle session.
func New(id ID, crop string, now time.Time) *Session {
	return &Session{ID: id, Crop: crop, State: StateIdle, UpdatedAt: now}
}

// Busy reports whether a request is in flight; the capture widget is disabled meanwhile.
func (s *Session) Busy() bool { return s.State == StateAnalyzing }

// CanAnalyze reports whether ConfirmAnalysis would be accepted.
func (s *Session) CanAnalyze() bool {
	if s.Image == nil {
		return false
	}
	return s.State == StateSelected || (s.State == StateResolved && s.Result == nil)
}

// SelectImage holds a new image and drops any earlier result.
// It returns the image it replaced, if any, so the caller can release it.
func (s *Session) SelectImage(img ImageMeta, now time.Time) (*ImageMeta, error) {
	if s.Busy() {
		return nil, ErrAnalysisInFlight
	}
	prev := s.Image
	s.Image = &img
	s.Result = nil
	s.Notice = nil
	s.State = StateSelected
	s.UpdatedAt = now
	return prev, nil
}

// ClearImage discards the held image. A resolved session keeps its result.
func (s *Session) ClearImage(now time.Time) (*ImageMeta, error) {
	if s.Busy() {
		return nil, ErrAnalysisInFlight
	}
	prev := s.Image
	s.Image = nil
	if s.State == StateSelected {
		s.State = StateIdle
	}
	s.UpdatedAt = now
	return prev, nil
}

// BeginAnalysis moves to analyzing.
func (s *Session) BeginAnalysis(now time.Time) error {
	switch {
	case s.Busy():
		return ErrAnalysisInFlight
	case s.Image == nil:
		return ErrNoImage
	case s.State == StateResolved && s.Result != nil:
		return ErrAlreadyResolved
	case !s.CanAnalyze():
		return ErrNoImage
	}
	s.State = StateAnalyzing
	s.Notice = nil
	s.UpdatedAt = now
	return nil
}

// Resolve stores the result of a successful request.
func (s *Session) Resolve(res *classification.Result, n Notice, now time.Time) error {
	if !s.Busy() {
		return ErrNotAnalyzing
	}
	s.State = StateResolved
	s.Result = res
	s.Notice = &n
	s.UpdatedAt = now
	return nil
}

// Fail records a failed request; the image stays so the user can try again.
func (s *Session) Fail(n Notice, now time.Time) error {
	if !s.Busy() {
		return ErrNotAnalyzing
	}
	s.State = StateResolved
	s.Result = nil
	s.Notice = &n
	s.UpdatedAt = now
	return nil
}

// Reset returns to idle, discarding image and result.
func (s *Session) Reset(now time.Time) (*ImageMeta, error) {
	if s.Busy() {
		return nil, ErrAnalysisInFlight
	}
	prev := s.Image
	s.State = StateIdle
	s.Image = nil
	s.Result = nil
	s.Notice = nil
	s.UpdatedAt = now
	return prev, nil
}

// Expired reports whether the session was last touched before its cutoff. An
// analysis in flight uses busyBefore so its session outlives the idle TTL.
func (s *Session) Expired(idleBefore, busyBefore time.Time) bool {
	if s.Busy() {
		return s.UpdatedAt.Before(busyBefore)
	}
	return s.UpdatedAt.Before(idleBefore)
}

// TakeNotice returns the pending notice and clears it.
func (s *Session) TakeNotice() *Notice {
	n := s.Notice
	s.Notice = nil
	return n
}
