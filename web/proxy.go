package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxProxyBody = 1 << 20

// outcomeTooLarge labels requests rejected before reaching the backend.
const outcomeTooLarge = "too_large"

var errBodyTooLarge = errors.New("request body exceeds limit")

type errorResponse struct {
	Error string `json:"error"`
}

// ProxyHandler relays chat requests to the backend without inspecting them.
type ProxyHandler struct {
	target     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *Metrics
}

func NewProxyHandler(target string, timeout time.Duration, logger *slog.Logger, metrics *Metrics) *ProxyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProxyHandler{
		target:     target,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

func (p *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}

	body, status, err := p.forward(w, r)
	if errors.Is(err, errBodyTooLarge) {
		p.metrics.observeProxy(outcomeTooLarge)
		p.logger.Warn("proxy request rejected", "error", err, "limit", maxProxyBody)
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
		return
	}
	if err != nil {
		kind := KindOf(err)
		p.metrics.observeProxy(string(kind))
		p.logger.Error("proxy request failed", "kind", kind, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	outcome := outcomeOK
	if status < 200 || status >= 300 {
		outcome = string(KindStatus)
		p.logger.Warn("backend answered with error status, relaying body", "kind", KindStatus, "status", status)
	}
	p.metrics.observeProxy(outcome)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// forward posts the incoming body to the target and returns the backend's
// JSON body and status. Bodies over maxProxyBody are never forwarded.
func (p *ProxyHandler) forward(w http.ResponseWriter, r *http.Request) ([]byte, int, error) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProxyBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, 0, errBodyTooLarge
		}
		return nil, 0, &BackendError{Kind: KindNetwork, Err: fmt.Errorf("read request body: %w", err)}
	}

	started := time.Now()
	defer func() { p.metrics.observeBackend(time.Since(started).Seconds()) }()

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, p.target, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, &BackendError{Kind: KindNetwork, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, &BackendError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &BackendError{Kind: KindNetwork, Status: resp.StatusCode, Err: fmt.Errorf("read backend body: %w", err)}
	}
	if !json.Valid(body) {
		return nil, 0, &BackendError{Kind: KindMalformed, Status: resp.StatusCode, Err: fmt.Errorf("backend body is not JSON")}
	}
	return body, resp.StatusCode, nil
}

func writeMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
