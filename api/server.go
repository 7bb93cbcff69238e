// Package api serves the reference inference backend: the question
// endpoint consumed by the front-end proxy.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fabfab/psy-assistant/chat"
)

// Answerer answers one patient question with retrieved sources.
type Answerer interface {
	Ask(ctx context.Context, question string) (chat.Answer, error)
}

type Server struct {
	answerer Answerer
	logger   *slog.Logger
	router   *chi.Mux
}

type messageResponse struct {
	Message string `json:"message"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

type questionRequest struct {
	Question *string `json:"question"`
}

func New(answerer Answerer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(allowAllOrigins)

	s := &Server{
		answerer: answerer,
		logger:   logger,
		router:   router,
	}

	router.Get("/", s.handleHealth)
	router.Get("/healthz", s.handleHealth)
	router.Post("/", s.handleQuestion)
	router.Post("/chatPsy", s.handleQuestion)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, then drains in-flight
// requests for up to five seconds.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("backend API starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve backend API: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown backend API: %w", err)
	}
	s.logger.Info("backend API stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeDetail(w, http.StatusUnprocessableEntity, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Question == nil {
		s.writeDetail(w, http.StatusUnprocessableEntity, fmt.Errorf("field required: question"))
		return
	}
	if strings.TrimSpace(*req.Question) == "" {
		s.writeDetail(w, http.StatusUnprocessableEntity, fmt.Errorf("question must not be empty"))
		return
	}
	if s.answerer == nil {
		s.writeDetail(w, http.StatusInternalServerError, fmt.Errorf("answer service is not configured"))
		return
	}

	answer, err := s.answerer.Ask(r.Context(), *req.Question)
	if err != nil {
		s.writeDetail(w, http.StatusInternalServerError, err)
		return
	}
	if answer.Sources == nil {
		answer.Sources = []chat.Source{}
	}

	s.writeJSON(w, http.StatusOK, answer)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeDetail(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("backend API error", "status", status, "error", err)
	s.writeJSON(w, status, detailResponse{Detail: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return io.EOF
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

// allowAllOrigins mirrors a wildcard CORS policy and answers preflights.
func allowAllOrigins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
