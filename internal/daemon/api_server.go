package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"ladle/internal/api"
	"ladle/internal/config"
	"ladle/internal/services"
)

// apiServer serves the HTTP API. Routing uses explicit method checks so
// unknown methods answer 405 instead of falling through to handlers.
type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg.Paths.APIBind == "" {
		return nil, errors.New("daemon: api_bind is required")
	}

	s := &apiServer{
		bind:   cfg.Paths.APIBind,
		logger: logger,
		daemon: d,
	}

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware(cfg.Paths.APIToken, next)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/recipes", authed(s.handleRecipes))
	mux.HandleFunc("/api/recipes/process", authed(s.handleProcess))
	mux.HandleFunc("/api/recipes/search", authed(s.handleSearch))
	mux.HandleFunc("/api/recipes/save", authed(s.handleSave))
	mux.HandleFunc("/api/recipes/migrate", authed(s.handleMigrate))
	mux.HandleFunc("/api/recipes/", authed(s.handleRecipeByID))
	mux.HandleFunc("/api/voices", authed(s.handleVoices))
	mux.HandleFunc("/api/users/", authed(s.handleUserVoice))
	mux.Handle("/static/", s.staticHandler(cfg.Paths.StaticDir))

	s.handler = corsMiddleware(cfg.Paths.CORSOrigins, requestIDMiddleware(mux))
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// start binds the listener and serves until the context is cancelled or
// stop is called.
func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return errors.New("api server listen on " + s.bind + ": " + err.Error())
	}
	s.listener = listener
	s.logger.Info("api server listening", "addr", listener.Addr().String())

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server terminated", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("api server shutdown", "error", err)
		}
	}()
	return nil
}

func (s *apiServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("api server shutdown", "error", err)
	}
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *apiServer) addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the Ladle API",
		"health":  "/api/health",
	})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	// Always 200; a degraded dependency is reported in the body so
	// monitors can distinguish "daemon down" from "database down".
	s.writeJSON(w, http.StatusOK, s.daemon.Health(r.Context()))
}

// staticHandler serves synthesized audio clips. Only reads are allowed;
// clips are written exclusively through the audio store.
func (s *apiServer) staticHandler(dir string) http.Handler {
	files := http.StripPrefix("/static/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		files.ServeHTTP(w, r)
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response failed", "error", err)
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrOwnership):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, services.ErrFetch):
		status = http.StatusBadGateway
	case errors.Is(err, services.ErrSynthesis), errors.Is(err, services.ErrTransient):
		status = http.StatusServiceUnavailable
	}
	s.writeError(w, status, err.Error())
}
