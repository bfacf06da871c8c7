// Package http implements the core's thin external HTTP surface
// (SPEC_FULL.md §8): settings read/write, startup-error reporting, the
// WebSocket upgrade, and artwork byte serving. The web UI and static
// asset server spec.md places out of scope are not implemented here —
// this package is the "interface to the core" those external
// collaborators are described as using.
package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kallax-audio/audiocore/internal/config"
	"github.com/kallax-audio/audiocore/pkg/objstore"
)

// StartupError records at most one startup failure (e.g. the output
// device could not be opened), surfaced read-only at GET
// /api/start_error. Zero value reports no error.
type StartupError struct {
	mu  sync.RWMutex
	msg string
	set bool
}

// Set records err as the startup failure. Safe to call from any
// goroutine; only the first call before a Get matters to a polling
// client, but later calls still overwrite it.
func (e *StartupError) Set(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msg, e.set = err.Error(), true
}

// Get returns the recorded message and whether one was ever set.
func (e *StartupError) Get() (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.msg, e.set
}

// Service wires SPEC_FULL.md §8's route table onto a chi.Router.
type Service struct {
	cfg       *config.Store
	artwork   objstore.ArtworkStore
	startErr  *StartupError
	wsHandler http.HandlerFunc
	restart   func() error
}

// New constructs a Service. wsHandler is normally ws.Handler bound to
// the process's dispatcher and event bus; it's injected rather than
// imported directly so this package stays free of a dependency on the
// command/event types it has no other reason to know about.
func New(cfg *config.Store, artwork objstore.ArtworkStore, startErr *StartupError, wsHandler http.HandlerFunc) *Service {
	return &Service{cfg: cfg, artwork: artwork, startErr: startErr, wsHandler: wsHandler, restart: restartProcess}
}

// Router builds the full HTTP surface.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz)
	r.Get("/api/settings", s.getSettings)
	r.Post("/api/settings", s.postSettings)
	r.Get("/api/start_error", s.getStartError)
	r.Get("/api/ws", s.ws)
	r.Get("/artwork/{id}", s.getArtwork)

	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Service) getSettings(w http.ResponseWriter, _ *http.Request) {
	settings, err := s.cfg.LoadSettings()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// postSettings persists the posted document; ?reload=true additionally
// restarts the process once the response has been written, matching
// spec.md §6's "on reload=true restart the process".
func (s *Service) postSettings(w http.ResponseWriter, r *http.Request) {
	var settings config.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.cfg.SaveSettings(settings); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)

	if r.URL.Query().Get("reload") == "true" {
		go func() {
			if err := s.restart(); err != nil {
				slog.Warn("http: settings reload restart failed", "err", err)
			}
		}()
	}
}

func (s *Service) getStartError(w http.ResponseWriter, _ *http.Request) {
	msg, ok := s.startErr.Get()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"error": msg})
}

func (s *Service) getArtwork(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rc, err := s.artwork.Open(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer rc.Close()
	w.Header().Set("Cache-Control", "public, max-age=604800, immutable")
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("http: artwork stream failed", "id", id, "err", err)
	}
}

func (s *Service) ws(w http.ResponseWriter, r *http.Request) {
	s.wsHandler(w, r)
}

func slogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// restartProcess shells out to the service manager, matching the
// dispatcher's System family power commands.
func restartProcess() error {
	return exec.Command("systemctl", "restart", "audiocored").Start()
}
