package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"tutorcal/internal/calendar"
	"tutorcal/internal/config"
	"tutorcal/internal/controller"
	"tutorcal/internal/ics"
	"tutorcal/internal/lessons"
	appLog "tutorcal/internal/log"
	"tutorcal/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// CaptureFunc renders the calendar page to PNG bytes.
type CaptureFunc func(ctx context.Context) ([]byte, error)

// Server exposes the calendar controller over HTTP. The controller is
// single-owner, so every handler that touches it holds mu.
type Server struct {
	cfg  *config.Config
	mux  *http.ServeMux
	page *template.Template

	mu   sync.Mutex
	ctrl *controller.Controller

	capture CaptureFunc
}

// Option customizes a Server.
type Option func(*Server)

// WithCapture enables POST /api/capture.
func WithCapture(fn CaptureFunc) Option {
	return func(s *Server) { s.capture = fn }
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, ctrl *controller.Controller, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		cfg:  cfg,
		mux:  http.NewServeMux(),
		ctrl: ctrl,
		page: template.Must(template.New("calendar.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/calendar.html")),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Refresh refetches the lesson list and applies it to the controller. The
// fetch runs without the page lock so reads keep serving the cached month
// while it is in flight. The scheduled refresh shares it with handlers.
func (s *Server) Refresh(ctx context.Context) error {
	events, err := s.ctrl.Store().Fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.ApplyRefresh(events, err)
	return err
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tutorcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/month", s.handleMonth)
	s.mux.HandleFunc("POST /api/month/{dir}", s.handleMonthNav)

	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleEvent)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	s.mux.HandleFunc("GET /api/session", s.handleSession)
	s.mux.HandleFunc("POST /api/session/add", s.sessionAction(func(*http.Request) (session.Action, error) { return session.Add{}, nil }))
	s.mux.HandleFunc("POST /api/session/open/{id}", s.handleSessionOpen)
	s.mux.HandleFunc("POST /api/session/field", s.sessionAction(decodeSetField))
	s.mux.HandleFunc("POST /api/session/submit", s.sessionAction(func(*http.Request) (session.Action, error) { return session.Submit{}, nil }))
	s.mux.HandleFunc("POST /api/session/delete", s.sessionAction(func(*http.Request) (session.Action, error) { return session.RequestDelete{}, nil }))
	s.mux.HandleFunc("POST /api/session/delete/confirm", s.sessionAction(func(*http.Request) (session.Action, error) { return session.ConfirmDelete{}, nil }))
	s.mux.HandleFunc("POST /api/session/delete/dismiss", s.sessionAction(func(*http.Request) (session.Action, error) { return session.DismissDelete{}, nil }))
	s.mux.HandleFunc("POST /api/session/cancel", s.sessionAction(func(*http.Request) (session.Action, error) { return session.Cancel{}, nil }))

	s.mux.HandleFunc("GET /calendar", s.handleCalendarPage)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.HandleFunc("POST /api/capture", s.handleCapture)

	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleMonth returns the month view. With year and month set it also
// moves the reference month.
//
// GET /api/month?year=2025&month=5
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	year, month, ok, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.ctrl.SetMonth(year, month)
	}
	writeJSON(w, http.StatusOK, newMonthDTO(s.ctrl.View()))
}

func (s *Server) handleMonthNav(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.PathValue("dir") {
	case "prev":
		s.ctrl.PrevMonth()
	case "next":
		s.ctrl.NextMonth()
	case "today":
		s.ctrl.Today()
	default:
		writeError(w, http.StatusNotFound, "unknown direction")
		return
	}
	writeJSON(w, http.StatusOK, newMonthDTO(s.ctrl.View()))
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	events := s.ctrl.Store().Events()
	version := s.ctrl.Store().Version()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, eventsResponse{Events: newEventDTOs(events), Version: version})
}

// handleEvent fetches one lesson straight from the backend.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	remote := s.ctrl.Store().Remote()
	s.mu.Unlock()

	ev, err := remote.Get(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newEventDTO(ev))
	case errors.Is(err, lessons.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, lessons.ErrUnauthorized):
		s.writeUnauthorized(w, err)
	default:
		appLog.Error("api event fetch failed", err, "id", id)
		writeError(w, http.StatusBadGateway, "failed to fetch event")
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.Refresh(r.Context())
	if errors.Is(err, lessons.ErrUnauthorized) {
		s.writeUnauthorized(w, err)
		return
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	s.mu.Lock()
	view := s.ctrl.View()
	s.mu.Unlock()
	writeJSON(w, status, newMonthDTO(view))
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.sessionResponse(nil))
}

func (s *Server) handleSessionOpen(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ctrl.OpenEvent(id); err != nil {
		if errors.Is(err, controller.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sessionResponse(nil))
}

type fieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func decodeSetField(r *http.Request) (session.Action, error) {
	var req fieldRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, err
	}
	return session.SetField{Field: session.Field(req.Field), Value: req.Value}, nil
}

// sessionAction builds a handler that runs one session action and maps the
// outcome onto a status code. The page lock is held while the session
// changes but not during the remote write and refetch; the pending session
// rejects a second submit meanwhile.
func (s *Server) sessionAction(decode func(*http.Request) (session.Action, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := decode(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		s.mu.Lock()
		eff := s.ctrl.Begin(a)
		if eff.None() {
			err = s.ctrl.ActionErr(a)
		} else {
			s.mu.Unlock()
			out := s.ctrl.Execute(r.Context(), eff)
			s.mu.Lock()
			s.ctrl.Apply(out)
			err = out.Err()
		}
		defer s.mu.Unlock()

		status := http.StatusOK
		switch {
		case err == nil:
		case errors.Is(err, lessons.ErrUnauthorized):
			s.writeUnauthorized(w, err)
			return
		case isValidation(err):
			status = http.StatusUnprocessableEntity
		default:
			// Write failed, or it succeeded and the refetch did not.
			status = http.StatusBadGateway
		}
		writeJSON(w, status, s.sessionResponse(err))
	}
}

func isValidation(err error) bool {
	return errors.Is(err, session.ErrRequiredFields) ||
		errors.Is(err, session.ErrEndBeforeStart) ||
		errors.Is(err, session.ErrInvalidDateTime) ||
		errors.Is(err, session.ErrUnknownField)
}

func (s *Server) sessionResponse(err error) sessionResponse {
	resp := sessionResponse{
		Session: newSessionDTO(s.ctrl.Session()),
		Notice:  newNoticeDTO(s.ctrl.Notice()),
		Version: s.ctrl.Store().Version(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (s *Server) writeUnauthorized(w http.ResponseWriter, err error) {
	appLog.Warn("upstream rejected credentials", "err", err.Error())
	writeJSON(w, http.StatusUnauthorized, unauthorizedResponse{
		Error:    "authentication required",
		LoginURL: s.cfg.API.LoginURL,
	})
}

// handleICS exports the reference month, or every cached lesson with
// ?all=1, as iCalendar.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	events := s.ctrl.Store().Events()
	ref := s.ctrl.Reference()
	s.mu.Unlock()

	if r.URL.Query().Get("all") != "1" {
		events = calendar.FilterMonth(events, ref)
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tutorcal.ics"`)
	if err := ics.WriteTo(w, events, ""); err != nil {
		appLog.Error("ics export write failed", err)
	}
}

// handlePreview serves the last captured PNG from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, s.cfg.Capture.Output)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if s.capture == nil {
		writeError(w, http.StatusNotImplemented, "capture not configured")
		return
	}
	png, err := s.capture(r.Context())
	if err != nil {
		appLog.Error("capture failed", err)
		writeError(w, http.StatusInternalServerError, "capture failed")
		return
	}
	if err := os.WriteFile(s.cfg.Capture.Output, png, 0o644); err != nil {
		appLog.Error("preview write failed", err, "path", s.cfg.Capture.Output)
		writeError(w, http.StatusInternalServerError, "failed to store preview")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bytes": len(png), "path": "/preview.png"})
}

func parseYearMonth(r *http.Request) (int, time.Month, bool, error) {
	q := r.URL.Query()
	ys, ms := q.Get("year"), q.Get("month")
	if ys == "" && ms == "" {
		return 0, 0, false, nil
	}
	year, err := strconv.Atoi(ys)
	if err != nil || year < 1 || year > 9999 {
		return 0, 0, false, errors.New("invalid year")
	}
	month, err := strconv.Atoi(ms)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false, errors.New("invalid month")
	}
	return year, time.Month(month), true, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
