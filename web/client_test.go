package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBackendClientAsk(t *testing.T) {
	var got askRequest
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chatPsy" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"response":"r","sources":[{"source":"a.pdf","title":"A","page":2}]}`)
	}))
	defer backend.Close()

	client := NewBackendClient(backend.URL+"/chatPsy", 0, nil)
	answer, err := client.Ask(context.Background(), "Bonjour")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Question != "Bonjour" {
		t.Fatalf("unexpected question sent %q", got.Question)
	}
	if answer.Response != "r" || len(answer.Sources) != 1 || answer.Sources[0].Page != 2 {
		t.Fatalf("unexpected answer %+v", answer)
	}
}

func TestBackendClientErrorKinds(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	statusBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	}))
	defer statusBackend.Close()

	malformedBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[1, 2, 3]`)
	}))
	defer malformedBackend.Close()

	cases := []struct {
		name   string
		url    string
		kind   ErrorKind
		status int
	}{
		{"network", closedURL, KindNetwork, 0},
		{"status", statusBackend.URL, KindStatus, http.StatusInternalServerError},
		{"malformed", malformedBackend.URL, KindMalformed, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBackendClient(tc.url, time.Second, nil).Ask(context.Background(), "q")
			var backendErr *BackendError
			if !errors.As(err, &backendErr) {
				t.Fatalf("expected BackendError, got %v", err)
			}
			if backendErr.Kind != tc.kind || backendErr.Status != tc.status {
				t.Fatalf("expected %s/%d, got %s/%d", tc.kind, tc.status, backendErr.Kind, backendErr.Status)
			}
			if KindOf(err) != tc.kind {
				t.Fatalf("KindOf mismatch: %s", KindOf(err))
			}
		})
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("expected empty kind for non-backend error")
	}
}
