package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/leafscan/internal/application"
	"github.com/bryanwahyu/leafscan/internal/domain/classification"
	"github.com/bryanwahyu/leafscan/internal/domain/session"
)

// Recorder receives one observation per finished analysis.
type Recorder interface {
	ObserveAnalysis(crop string, ok bool, took time.Duration)
}

// Service drives the per-session analysis flow.
// Service is safe for concurrent use; transitions of all sessions are
// serialised by one lock which is released while the classifier runs.
type Service struct {
	Sessions   session.Repository
	Images     session.ImageStore
	Classifier classification.Classifier
	Notifier   session.Notifier // optional
	Recorder   Recorder         // optional
	Clock      application.Clock
	Logger     *slog.Logger
	Crops      []string
	TTL        time.Duration
	// BusyTTL is how long a session may stay analyzing before the sweeper
	// treats it as abandoned. Defaults to DefaultBusyTTL, never below TTL.
	BusyTTL time.Duration

	mu sync.Mutex
}

// Job is an analysis accepted by BeginAnalysis and not yet run.
type Job struct {
	SessionID session.ID
	Crop      string
	Image     session.ImageMeta
}

func SuccessNotice(crop string) session.Notice {
	return session.Notice{
		Kind:        session.NoticeSuccess,
		Title:       "Analysis Complete",
		Description: fmt.Sprintf("Your %s leaf has been analyzed successfully.", crop),
	}
}

func FailureNotice() session.Notice {
	return session.Notice{
		Kind:        session.NoticeFailure,
		Title:       "Analysis Failed",
		Description: "There was an error analyzing your image. Please try again.",
	}
}

func (s *Service) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

// KnownCrop reports whether a crop has a model behind it.
func (s *Service) KnownCrop(crop string) bool {
	return slices.Contains(s.Crops, crop)
}

// DefaultCrop is the first configured crop.
func (s *Service) DefaultCrop() string {
	if len(s.Crops) == 0 {
		return ""
	}
	return s.Crops[0]
}

// Open loads the session named by rawID for crop. An unknown, malformed or
// foreign-crop id yields a fresh idle session; a session left behind on another
// crop page is discarded together with its image.
func (s *Service) Open(ctx context.Context, crop, rawID string) (*session.Session, error) {
	if !s.KnownCrop(crop) {
		return nil, classification.ErrUnknownCrop
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, err := session.ParseID(rawID); err == nil {
		existing, err := s.Sessions.Get(ctx, id)
		switch {
		case err == nil && existing.Crop == crop:
			return existing, nil
		case err == nil:
			if existing.Busy() {
				// leave it to finish and expire; the new page gets its own session
				break
			}
			if err := s.discard(ctx, existing); err != nil {
				return nil, err
			}
		case !errors.Is(err, session.ErrNotFound):
			return nil, fmt.Errorf("load session: %w", err)
		}
	}

	fresh := session.New(session.NewID(), crop, s.now())
	if err := s.Sessions.Save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return fresh, nil
}

// Get loads a session without creating one.
func (s *Service) Get(ctx context.Context, id session.ID) (*session.Session, error) {
	return s.Sessions.Get(ctx, id)
}

// TakeNotice pops the one-shot notice of a session.
func (s *Service) TakeNotice(ctx context.Context, id session.ID) (*session.Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n := sess.TakeNotice()
	if n == nil {
		return nil, nil
	}
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return n, nil
}

// Preview loads the held image bytes, or nil when nothing is held.
func (s *Service) Preview(ctx context.Context, sess *session.Session) (*classification.Image, error) {
	if sess == nil || sess.Image == nil {
		return nil, nil
	}
	data, err := s.Images.Get(ctx, sess.Image.Key)
	if err != nil {
		if errors.Is(err, session.ErrImageNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load image: %w", err)
	}
	return &classification.Image{
		Filename:    sess.Image.Filename,
		ContentType: sess.Image.ContentType,
		Data:        data,
	}, nil
}

// SelectImage holds img on the session. A nil image is a no-op: the capture
// widget already dropped whatever was not an image.
func (s *Service) SelectImage(ctx context.Context, id session.ID, img *classification.Image) error {
	if img == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Busy() {
		return session.ErrAnalysisInFlight
	}

	key := fmt.Sprintf("%s/%s", sess.ID, uuid.NewString())
	if err := s.Images.Put(ctx, key, img.ContentType, img.Data); err != nil {
		return fmt.Errorf("store image: %w", err)
	}

	prev, err := sess.SelectImage(session.ImageMeta{
		Key:         key,
		Filename:    img.Filename,
		ContentType: img.ContentType,
		Size:        int64(len(img.Data)),
	}, s.now())
	if err != nil {
		s.dropImage(ctx, key)
		return err
	}
	if err := s.Sessions.Save(ctx, sess); err != nil {
		s.dropImage(ctx, key)
		return fmt.Errorf("save session: %w", err)
	}
	if prev != nil {
		s.dropImage(ctx, prev.Key)
	}
	return nil
}

// ClearImage discards the held image.
func (s *Service) ClearImage(ctx context.Context, id session.ID) error {
	return s.update(ctx, id, (*session.Session).ClearImage)
}

// Reset returns the session to idle.
func (s *Service) Reset(ctx context.Context, id session.ID) error {
	return s.update(ctx, id, (*session.Session).Reset)
}

func (s *Service) update(ctx context.Context, id session.ID, fn func(*session.Session, time.Time) (*session.ImageMeta, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	prev, err := fn(sess, s.now())
	if err != nil {
		return err
	}
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if prev != nil {
		s.dropImage(ctx, prev.Key)
	}
	return nil
}

// BeginAnalysis moves the session to analyzing and returns the job to run.
func (s *Service) BeginAnalysis(ctx context.Context, id session.ID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.BeginAnalysis(s.now()); err != nil {
		return nil, err
	}
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &Job{SessionID: sess.ID, Crop: sess.Crop, Image: *sess.Image}, nil
}

// RunAnalysis sends the job's image to the classifier once and resolves the
// session with the outcome. Classifier failures end as a failure notice, not
// as an error; the returned error only covers storage problems.
func (s *Service) RunAnalysis(ctx context.Context, job *Job) (*session.Session, error) {
	ctx = context.WithoutCancel(ctx)
	started := time.Now()

	res, cerr := s.classifyHeld(ctx, job)
	took := time.Since(started)

	s.mu.Lock()
	sess, err := s.Sessions.Get(ctx, job.SessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("reload session: %w", err)
	}

	notice := SuccessNotice(job.Crop)
	if cerr != nil {
		notice = FailureNotice()
		err = sess.Fail(notice, s.now())
	} else {
		err = sess.Resolve(res, notice, s.now())
	}
	if err == nil {
		err = s.Sessions.Save(ctx, sess)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	if cerr != nil {
		s.log().Warn("analysis failed", "session", job.SessionID, "crop", job.Crop, "duration", took, "error", cerr)
	} else {
		s.log().Info("analysis complete", "session", job.SessionID, "crop", job.Crop, "duration", took,
			"name", res.DisplayName(), "severity", res.SeverityValue())
	}
	if s.Recorder != nil {
		s.Recorder.ObserveAnalysis(job.Crop, cerr == nil, took)
	}
	if s.Notifier != nil {
		s.Notifier.Notify(ctx, job.SessionID, notice)
	}
	return sess, nil
}

func (s *Service) classifyHeld(ctx context.Context, job *Job) (*classification.Result, error) {
	data, err := s.Images.Get(ctx, job.Image.Key)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	return s.Classifier.Classify(ctx, job.Crop, classification.Image{
		Filename:    job.Image.Filename,
		ContentType: job.Image.ContentType,
		Data:        data,
	})
}

// ConfirmAnalysis begins and runs an analysis, waiting for the outcome.
func (s *Service) ConfirmAnalysis(ctx context.Context, id session.ID) (*session.Session, error) {
	job, err := s.BeginAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.RunAnalysis(ctx, job)
}

// Classify is the stateless one-shot path used by the JSON API and the CLI.
// Any classifier failure other than a quota error is reported as ErrUpstream.
func (s *Service) Classify(ctx context.Context, crop string, img *classification.Image) (*classification.Result, error) {
	if !s.KnownCrop(crop) {
		return nil, classification.ErrUnknownCrop
	}
	if img == nil {
		return nil, classification.ErrNotAnImage
	}

	started := time.Now()
	res, err := s.Classifier.Classify(context.WithoutCancel(ctx), crop, *img)
	if s.Recorder != nil {
		s.Recorder.ObserveAnalysis(crop, err == nil, time.Since(started))
	}
	if err != nil {
		if errors.Is(err, classification.ErrUpstream) || errors.Is(err, classification.ErrQuotaExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", classification.ErrUpstream, err)
	}
	return res, nil
}

// DefaultBusyTTL bounds an analysis whose process died before it resolved.
const DefaultBusyTTL = 24 * time.Hour

func (s *Service) busyTTL() time.Duration {
	ttl := s.BusyTTL
	if ttl <= 0 {
		ttl = DefaultBusyTTL
	}
	return max(ttl, s.TTL)
}

// Sweep deletes sessions idle for longer than TTL and their images. A session
// with an analysis in flight is kept for BusyTTL so the outcome can be recorded.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	if s.TTL <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	now := s.now()
	expired, err := s.Sessions.DeleteExpired(ctx, now.Add(-s.TTL), now.Add(-s.busyTTL()))
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	for _, sess := range expired {
		if sess.Image != nil {
			s.dropImage(ctx, sess.Image.Key)
		}
	}
	return len(expired), nil
}

// RunSweeper calls Sweep every interval until ctx is done. A non-positive
// interval disables sweeping.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.log().Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.log().Info("expired sessions removed", "count", n)
			}
		}
	}
}

// discard removes a session and its image. Caller holds mu.
func (s *Service) discard(ctx context.Context, sess *session.Session) error {
	if err := s.Sessions.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if sess.Image != nil {
		s.dropImage(ctx, sess.Image.Key)
	}
	return nil
}

func (s *Service) dropImage(ctx context.Context, key string) {
	if err := s.Images.Delete(ctx, key); err != nil {
		s.log().Warn("image delete failed", "key", key, "error", err)
	}
}
