package httpserver

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/bryanwahyu/leafscan/internal/application/analysis"
	"github.com/bryanwahyu/leafscan/internal/capture"
	"github.com/bryanwahyu/leafscan/internal/domain/classification"
	"github.com/bryanwahyu/leafscan/internal/domain/session"
	"github.com/bryanwahyu/leafscan/internal/infra/notify"
	"github.com/bryanwahyu/leafscan/internal/middleware"
	"github.com/bryanwahyu/leafscan/internal/render"
)

// CookieName holds the session id of the analysis page.
const CookieName = "leafscan_session"

//go:embed static
var staticFS embed.FS

// Options tune the router; the zero value is usable.
type Options struct {
	Logger       *slog.Logger
	Checkers     map[string]middleware.HealthChecker
	APIKeys      map[string]string
	RateLimit    float64
	Burst        int
	CORSOrigins  []string
	CookieSecure bool
	// Async runs web analyses in the background and redirects at once, so the
	// page can show the busy state. Otherwise the POST waits for the outcome.
	Async bool
}

type Router struct {
	svc   *analysis.Service
	hub   *notify.Hub
	pages *render.Pages
	opts  Options
	log   *slog.Logger
	mux   http.Handler
	wg    sync.WaitGroup
}

func NewRouter(svc *analysis.Service, hub *notify.Hub, opts Options) (*Router, error) {
	pages, err := render.NewPages()
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	r := &Router{svc: svc, hub: hub, pages: pages, opts: opts, log: opts.Logger}
	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware(opts.Logger))
	mux.Use(middleware.MetricsMiddleware)

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/ready", middleware.ReadinessHandler(opts.Checkers))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}
	mux.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	mux.Get("/ws", r.wrap(r.handleWebsocket))

	mux.Route("/api", func(rt chi.Router) {
		rt.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
		rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		rt.Use(middleware.RateLimitMiddleware(opts.RateLimit, opts.Burst))

		rt.Get("/crops", r.wrap(r.handleCrops))
		rt.Post("/analyze", r.wrap(r.handleAPIAnalyze))
		rt.With(r.requireCrop).Post("/analyze/{crop}", r.wrap(r.handleAPIAnalyze))
	})

	mux.Get("/", r.wrap(r.handleIndex))
	mux.Route("/{crop}", func(rt chi.Router) {
		rt.Use(r.requireCrop)
		rt.Get("/", r.wrap(r.handlePage))
		rt.Post("/image", r.wrap(r.handleSelect))
		rt.Post("/clear", r.wrap(r.handleClear))
		rt.Post("/analyze", r.wrap(r.handleAnalyze))
		rt.Post("/reset", r.wrap(r.handleReset))
	})

	r.mux = mux
	return r, nil
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Wait blocks until background analyses have finished.
func (r *Router) Wait() { r.wg.Wait() }

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			r.fail(w, req, err)
		}
	}
}

func (r *Router) fail(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		r.log.Error("request failed", "path", req.URL.Path, "status", status, "error", err)
	}
	if strings.HasPrefix(req.URL.Path, "/api/") {
		_ = writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	http.Error(w, http.StatusText(status), status)
}

// requireCrop answers 404 for a {crop} segment that is not configured.
func (r *Router) requireCrop(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := middleware.ValidateCrop(chi.URLParam(req, "crop"), r.svc.Crops); err != nil {
			r.fail(w, req, err)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, classification.ErrUnknownCrop),
		errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidID),
		errors.Is(err, classification.ErrNotAnImage):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrAnalysisInFlight),
		errors.Is(err, session.ErrNoImage),
		errors.Is(err, session.ErrAlreadyResolved):
		return http.StatusConflict
	case errors.Is(err, classification.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, classification.ErrUpstream),
		errors.Is(err, classification.ErrMalformedPayload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// stateConflict reports errors the page already explains by its state.
func stateConflict(err error) bool {
	return errors.Is(err, session.ErrAnalysisInFlight) ||
		errors.Is(err, session.ErrNoImage) ||
		errors.Is(err, session.ErrAlreadyResolved)
}

// writeJSON encodes before writing the header so an unencodable value still
// yields an error response instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(body, '\n'))
	return err
}

func (r *Router) crops() []render.Crop {
	out := make([]render.Crop, 0, len(r.svc.Crops))
	for _, c := range r.svc.Crops {
		out = append(out, render.CropOf(c))
	}
	return out
}

// openSession resolves the cookie into a session for crop and refreshes the cookie.
func (r *Router) openSession(w http.ResponseWriter, req *http.Request, crop string) (*session.Session, error) {
	var raw string
	if c, err := req.Cookie(CookieName); err == nil {
		raw = c.Value
	}
	sess, err := r.svc.Open(req.Context(), crop, raw)
	if err != nil {
		return nil, err
	}
	if string(sess.ID) != raw {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    string(sess.ID),
			Path:     "/",
			HttpOnly: true,
			Secure:   r.opts.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess, nil
}

func (r *Router) backToPage(w http.ResponseWriter, req *http.Request, crop string, err error) error {
	if err != nil {
		if !stateConflict(err) {
			return err
		}
		r.log.Debug("action ignored", "path", req.URL.Path, "reason", err)
	}
	http.Redirect(w, req, "/"+crop, http.StatusSeeOther)
	return nil
}

// GET /
func (r *Router) handleIndex(w http.ResponseWriter, req *http.Request) error {
	var buf bytes.Buffer
	if err := r.pages.Index(&buf, render.IndexData{Crops: r.crops()}); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// GET /{crop}
func (r *Router) handlePage(w http.ResponseWriter, req *http.Request) error {
	crop := chi.URLParam(req, "crop")
	sess, err := r.openSession(w, req, crop)
	if err != nil {
		return err
	}

	notice, err := r.svc.TakeNotice(req.Context(), sess.ID)
	if err != nil {
		return err
	}
	img, err := r.svc.Preview(req.Context(), sess)
	if err != nil {
		return err
	}

	data := render.AnalyzeData{
		Crop:       render.CropOf(crop),
		Crops:      r.crops(),
		State:      sess.State,
		Widget:     capture.View(crop, img, sess.Busy()),
		CanAnalyze: sess.CanAnalyze(),
		Busy:       sess.Busy(),
		Resolved:   sess.State == session.StateResolved,
		Card:       render.Card(sess.Result),
		Notice:     notice,
	}

	var buf bytes.Buffer
	if err := r.pages.Analyze(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, err = buf.WriteTo(w)
	return err
}

// POST /{crop}/image
func (r *Router) handleSelect(w http.ResponseWriter, req *http.Request) error {
	crop := chi.URLParam(req, "crop")
	sess, err := r.openSession(w, req, crop)
	if err != nil {
		return err
	}

	img, ok, err := capture.FromRequest(req)
	if err != nil {
		r.log.Warn("upload unreadable", "error", err)
		return r.backToPage(w, req, crop, nil)
	}
	if !ok {
		// not an image: ignored without a message
		return r.backToPage(w, req, crop, nil)
	}
	img.Filename = middleware.SanitizeFilename(img.Filename)

	return r.backToPage(w, req, crop, r.svc.SelectImage(req.Context(), sess.ID, img))
}

// POST /{crop}/clear
func (r *Router) handleClear(w http.ResponseWriter, req *http.Request) error {
	crop := chi.URLParam(req, "crop")
	sess, err := r.openSession(w, req, crop)
	if err != nil {
		return err
	}
	return r.backToPage(w, req, crop, r.svc.ClearImage(req.Context(), sess.ID))
}

// POST /{crop}/reset
func (r *Router) handleReset(w http.ResponseWriter, req *http.Request) error {
	crop := chi.URLParam(req, "crop")
	sess, err := r.openSession(w, req, crop)
	if err != nil {
		return err
	}
	return r.backToPage(w, req, crop, r.svc.Reset(req.Context(), sess.ID))
}

// POST /{crop}/analyze
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	crop := chi.URLParam(req, "crop")
	sess, err := r.openSession(w, req, crop)
	if err != nil {
		return err
	}

	job, err := r.svc.BeginAnalysis(req.Context(), sess.ID)
	if err != nil {
		return r.backToPage(w, req, crop, err)
	}

	// the outbound call outlives the browser request
	ctx := context.WithoutCancel(req.Context())
	if r.opts.Async {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if _, err := r.svc.RunAnalysis(ctx, job); err != nil {
				r.log.Error("analysis not recorded", "session", job.SessionID, "error", err)
			}
		}()
		return r.backToPage(w, req, crop, nil)
	}

	if _, err := r.svc.RunAnalysis(ctx, job); err != nil {
		return err
	}
	return r.backToPage(w, req, crop, nil)
}

// GET /ws
func (r *Router) handleWebsocket(w http.ResponseWriter, req *http.Request) error {
	if r.hub == nil {
		return session.ErrNotFound
	}
	c, err := req.Cookie(CookieName)
	if err != nil {
		return session.ErrInvalidID
	}
	id, err := session.ParseID(c.Value)
	if err != nil {
		return err
	}
	r.hub.Serve(w, req, id)
	return nil
}

// GET /api/crops
func (r *Router) handleCrops(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]any{
		"crops":   r.svc.Crops,
		"default": r.svc.DefaultCrop(),
	})
}

// POST /api/analyze and /api/analyze/{crop}
// Body: multipart form with the "image" field.
func (r *Router) handleAPIAnalyze(w http.ResponseWriter, req *http.Request) error {
	crop := chi.URLParam(req, "crop")
	if crop == "" {
		crop = r.svc.DefaultCrop()
	}
	if !r.svc.KnownCrop(crop) {
		return classification.ErrUnknownCrop
	}

	img, ok, err := capture.FromRequest(req)
	if err != nil {
		return errors.Join(classification.ErrNotAnImage, err)
	}
	if !ok {
		return classification.ErrNotAnImage
	}
	img.Filename = middleware.SanitizeFilename(img.Filename)

	res, err := r.svc.Classify(req.Context(), crop, img)
	if err != nil {
		return err
	}

	card := render.Card(res)
	html, err := r.pages.CardFragment(card)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, analyzeResponse{
		Crop:   crop,
		Result: res,
		Card:   toAPICard(card),
		HTML:   string(html),
	})
}
