package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server hosts the chat page and the JSON proxy.
type Server struct {
	sessions *Sessions
	proxy    *ProxyHandler
	metrics  *Metrics
	logger   *slog.Logger
	router   *chi.Mux
}

type Options struct {
	ProxyTarget    string
	BackendURL     string
	BackendTimeout time.Duration
	Logger         *slog.Logger
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics := NewMetrics()
	client := NewBackendClient(opts.BackendURL, opts.BackendTimeout, metrics)

	s := &Server{
		sessions: NewSessions(client, metrics),
		proxy:    NewProxyHandler(opts.ProxyTarget, opts.BackendTimeout, logger, metrics),
		metrics:  metrics,
		logger:   logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/", s.handlePage)
	router.Post("/", s.handleSubmit)
	router.Get("/healthz", s.handleHealth)
	router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	router.Route("/api/chatPsy", func(r chi.Router) {
		r.MethodNotAllowed(writeMethodNotAllowed)
		r.Post("/", s.proxy.ServeHTTP)
	})

	return router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve web: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown web server: %w", err)
	}
	s.logger.Info("web server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	orchestrator, ok := s.sessions.Existing(r)
	if !ok {
		s.render(w, State{})
		return
	}
	s.render(w, orchestrator.State())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	question := r.PostFormValue("question")
	if strings.TrimSpace(question) == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	orchestrator := s.sessions.Ensure(w, r)

	applied, err := orchestrator.Submit(r.Context(), question)
	switch {
	case err != nil:
		s.logger.Error("ask backend failed", "kind", KindOf(err), "applied", applied, "error", err)
	case !applied:
		s.logger.Debug("discarded stale answer")
	}

	s.render(w, orchestrator.State())
}

func (s *Server) render(w http.ResponseWriter, state State) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := RenderPage(w, state); err != nil {
		s.logger.Error("render page failed", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}
