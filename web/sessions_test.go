package web

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fabfab/psy-assistant/chat"
)

func TestPageViewsDoNotRegisterSessions(t *testing.T) {
	srv := NewServer(Options{ProxyTarget: "http://127.0.0.1:1", BackendURL: "http://127.0.0.1:1/chatPsy", Logger: discardLogger()})

	for i := 0; i < 1000; i++ {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(rec.Result().Cookies()) != 0 {
			t.Fatal("a page view must not issue a session cookie")
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: uuid.NewString()})
	srv.ServeHTTP(httptest.NewRecorder(), req)

	if n := srv.sessions.Len(); n != 0 {
		t.Fatalf("expected no sessions after page views, got %d", n)
	}
}

func TestSubmitIgnoresUnknownSessionCookie(t *testing.T) {
	var calls atomic.Int32
	backend := newBackend(t, chat.Answer{Response: fourSections, Sources: []chat.Source{}}, &calls)
	defer backend.Close()

	srv := NewServer(Options{ProxyTarget: backend.URL, BackendURL: backend.URL + "/chatPsy", Logger: discardLogger()})

	minted := &http.Cookie{Name: sessionCookie, Value: uuid.NewString()}
	rec := submitForm(srv, "Je dors mal", minted)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value == minted.Value {
		t.Fatalf("expected a freshly issued session id, got %+v", cookies)
	}
	if _, ok := srv.sessions.Lookup(minted.Value); ok {
		t.Fatal("client-chosen session id must not be adopted")
	}
}

func TestSessionsExpireWhenIdle(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	sessions := NewSessions(staticAsker{}, nil)
	sessions.now = func() time.Time { return now }

	first := sessions.Get("a")
	now = now.Add(defaultSessionTTL / 2)
	if o, ok := sessions.Lookup("a"); !ok || o != first {
		t.Fatal("expected session to survive within the TTL")
	}

	now = now.Add(defaultSessionTTL + time.Second)
	if _, ok := sessions.Lookup("a"); ok {
		t.Fatal("expected idle session to expire")
	}
	if sessions.Len() != 0 {
		t.Fatalf("expected expired session removed, got %d", sessions.Len())
	}
}

func TestSessionsEvictLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	sessions := NewSessions(staticAsker{}, nil)
	sessions.now = func() time.Time { return now }
	sessions.max = 2

	sessions.Get("a")
	now = now.Add(time.Second)
	sessions.Get("b")
	now = now.Add(time.Second)
	sessions.Lookup("a")
	now = now.Add(time.Second)
	sessions.Get("c")

	if sessions.Len() != 2 {
		t.Fatalf("expected registry capped at 2, got %d", sessions.Len())
	}
	if _, ok := sessions.Lookup("b"); ok {
		t.Fatal("expected least recently used session evicted")
	}
	if _, ok := sessions.Lookup("a"); !ok {
		t.Fatal("expected recently used session kept")
	}
}
