// Package web is the patient-facing front-end: the chat page, its
// per-session orchestrator and the JSON proxy to the inference backend.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fabfab/psy-assistant/chat"
)

// ErrorKind classifies a failed backend exchange.
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindStatus    ErrorKind = "status"
	KindMalformed ErrorKind = "malformed"
)

// BackendError is returned for every failed call to the inference backend.
type BackendError struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *BackendError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("backend %s error: status %d", e.Kind, e.Status)
	}
	return fmt.Sprintf("backend %s error: %v", e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// KindOf reports the BackendError kind of err, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr.Kind
	}
	return ""
}

// BackendClient asks the inference backend one question at a time.
type BackendClient struct {
	url        string
	httpClient *http.Client
	metrics    *Metrics
}

// NewBackendClient targets url. A zero timeout leaves requests bounded only
// by their context.
func NewBackendClient(url string, timeout time.Duration, metrics *Metrics) *BackendClient {
	return &BackendClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
	}
}

type askRequest struct {
	Question string `json:"question"`
}

func (c *BackendClient) Ask(ctx context.Context, question string) (chat.Answer, error) {
	payload, err := json.Marshal(askRequest{Question: question})
	if err != nil {
		return chat.Answer{}, &BackendError{Kind: KindNetwork, Err: fmt.Errorf("encode request: %w", err)}
	}

	started := time.Now()
	defer func() { c.metrics.observeBackend(time.Since(started).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return chat.Answer{}, &BackendError{Kind: KindNetwork, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chat.Answer{}, &BackendError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return chat.Answer{}, &BackendError{
			Kind:   KindStatus,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("backend replied %s: %s", resp.Status, bytes.TrimSpace(body)),
		}
	}

	var answer chat.Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return chat.Answer{}, &BackendError{Kind: KindMalformed, Status: resp.StatusCode, Err: fmt.Errorf("decode answer: %w", err)}
	}
	return answer, nil
}
