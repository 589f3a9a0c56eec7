// Package web exposes the calendar over HTTP: the month and day views,
// event CRUD, settings, notification checks, the assistant and a static
// print page used for screenshots.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"smartcal/internal/ai"
	"smartcal/internal/config"
	appLog "smartcal/internal/log"
	"smartcal/internal/model"
	"smartcal/internal/notify"
	"smartcal/internal/occurrence"
	"smartcal/internal/store"
	"smartcal/internal/weather"
)

// OwnerHeader carries the signed-in user id. The print page also accepts an
// "owner" query parameter because headless capture cannot set headers.
const OwnerHeader = "X-Owner-ID"

// EventStore is the document store behind /api/events.
type EventStore interface {
	Create(ctx context.Context, rec model.Record) (model.Record, error)
	Get(ctx context.Context, id string) (model.Record, error)
	Update(ctx context.Context, id string, patch model.EventPatch) (model.Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, owner string) ([]model.Record, error)
	Events(ctx context.Context, owner string) ([]model.Event, error)
}

type SettingsStore interface {
	GetOrCreate(ctx context.Context, owner string) (model.NotificationSettings, error)
	Put(ctx context.Context, owner string, s model.NotificationSettings) error
	Update(ctx context.Context, owner string, u model.SettingsUpdate) (model.NotificationSettings, error)
}

type ThemeStore interface {
	Theme() (string, error)
	SetTheme(theme string) error
}

// Notifier runs a notification pass for a single owner.
type Notifier interface {
	RunOnce(ctx context.Context, owner string, today model.Date) (*notify.Request, error)
	Sink() notify.Sink
}

// Deps are the collaborators of a Server. Weather and AI may be nil.
type Deps struct {
	Events   EventStore
	Settings SettingsStore
	Theme    ThemeStore
	Notifier Notifier
	Weather  weather.Provider
	AI       ai.Provider

	// Now defaults to time.Now.
	Now func() time.Time
}

// Server provides the HTTP API.
type Server struct {
	cfg    *config.Config
	deps   Deps
	loc    *time.Location
	router *mux.Router
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		loc:    resolveLocationOrLocal(cfg.Timezone),
		router: mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the router, wrapped in basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials mean disabled.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="SmartCal", charset="UTF-8"`)
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

// ListenAndServe serves until ctx is done, then shuts down gracefully.
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
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/month", s.handleMonth).Methods(http.MethodGet)
	r.HandleFunc("/api/day/{date}", s.handleDay).Methods(http.MethodGet)
	r.HandleFunc("/api/holidays/{year:[0-9]+}", s.handleHolidays).Methods(http.MethodGet)

	r.HandleFunc("/api/events", s.handleListEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/events", s.handleCreateEvent).Methods(http.MethodPost)
	r.HandleFunc("/api/events/{id}", s.handleGetEvent).Methods(http.MethodGet)
	r.HandleFunc("/api/events/{id}", s.handleUpdateEvent).Methods(http.MethodPatch)
	r.HandleFunc("/api/events/{id}", s.handleDeleteEvent).Methods(http.MethodDelete)
	r.HandleFunc("/api/events/{id}/share", s.handleShareEvent).Methods(http.MethodGet)

	r.HandleFunc("/api/settings", s.handleGetSettings).Methods(http.MethodGet)
	r.HandleFunc("/api/settings", s.handlePutSettings).Methods(http.MethodPut)
	r.HandleFunc("/api/settings", s.handlePatchSettings).Methods(http.MethodPatch)

	r.HandleFunc("/api/notify/check", s.handleNotifyCheck).Methods(http.MethodPost)
	r.HandleFunc("/api/notify/permission", s.handleGetPermission).Methods(http.MethodGet)
	r.HandleFunc("/api/notify/permission", s.handleRequestPermission).Methods(http.MethodPost)

	r.HandleFunc("/api/theme", s.handleGetTheme).Methods(http.MethodGet)
	r.HandleFunc("/api/theme", s.handlePutTheme).Methods(http.MethodPut)

	r.HandleFunc("/api/summary", s.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/api/summary/ai", s.handleAISummary).Methods(http.MethodPost)
	r.HandleFunc("/api/ai/chat", s.handleChat).Methods(http.MethodPost)

	r.HandleFunc("/api/calendar.ics", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/print", s.handlePrint).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// today is the current calendar date in the configured zone.
func (s *Server) today() model.Date {
	return model.DateOf(s.deps.Now().In(s.loc))
}

// ownerID returns the caller's user id or answers 400.
func ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(OwnerHeader)
	if id == "" {
		id = r.URL.Query().Get("owner")
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing "+OwnerHeader+" header")
		return "", false
	}
	return id, true
}

// yearMonth reads ?year=&month=, defaulting to the current month.
func (s *Server) yearMonth(r *http.Request) (int, int) {
	today := s.today()
	q := r.URL.Query()
	return parseIntDefault(q.Get("year"), today.Year()), parseIntDefault(q.Get("month"), int(today.Month()))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return &model.ValidationError{Field: "body", Err: err}
	}
	return nil
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

// writeErr maps a domain error onto a status code.
func writeErr(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, model.ErrHolidayReadOnly):
		writeError(w, http.StatusForbidden, err.Error())
	case model.IsValidation(err), errors.Is(err, occurrence.ErrInvalidMonth):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error(msg, err)
		writeError(w, http.StatusInternalServerError, msg)
	}
}
