package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	sessionCookie = "psy_session"

	defaultSessionTTL  = 30 * time.Minute
	defaultMaxSessions = 10000
)

type sessionEntry struct {
	orchestrator *Orchestrator
	lastSeen     time.Time
}

// Sessions keeps one orchestrator per browser session, in memory. Sessions
// idle for longer than the TTL are dropped, and once the registry is full
// the least recently used one makes room for a new one.
type Sessions struct {
	asker   Asker
	metrics *Metrics
	ttl     time.Duration
	max     int
	now     func() time.Time

	mu    sync.Mutex
	byKey map[string]*sessionEntry
}

func NewSessions(asker Asker, metrics *Metrics) *Sessions {
	return &Sessions{
		asker:   asker,
		metrics: metrics,
		ttl:     defaultSessionTTL,
		max:     defaultMaxSessions,
		now:     time.Now,
		byKey:   make(map[string]*sessionEntry),
	}
}

// Lookup returns the live orchestrator for id without creating one.
func (s *Sessions) Lookup(id string) (*Orchestrator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byKey[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.Sub(entry.lastSeen) > s.ttl {
		delete(s.byKey, id)
		return nil, false
	}
	entry.lastSeen = now
	return entry.orchestrator, true
}

// Get returns the orchestrator for id, creating it on first use.
func (s *Sessions) Get(id string) *Orchestrator {
	if o, ok := s.Lookup(id); ok {
		return o
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.byKey[id]; ok {
		return entry.orchestrator
	}
	now := s.now()
	s.evictLocked(now)

	o := NewOrchestrator(s.asker, s.metrics)
	s.byKey[id] = &sessionEntry{orchestrator: o, lastSeen: now}
	return o
}

// evictLocked drops expired sessions and, if the registry is still full,
// the least recently used one.
func (s *Sessions) evictLocked(now time.Time) {
	for id, entry := range s.byKey {
		if now.Sub(entry.lastSeen) > s.ttl {
			delete(s.byKey, id)
		}
	}
	if len(s.byKey) < s.max {
		return
	}

	var oldestID string
	var oldest time.Time
	for id, entry := range s.byKey {
		if oldestID == "" || entry.lastSeen.Before(oldest) {
			oldestID, oldest = id, entry.lastSeen
		}
	}
	delete(s.byKey, oldestID)
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}

// Existing resolves the caller's orchestrator from its cookie. It never
// registers a session, so plain page views cost nothing.
func (s *Sessions) Existing(r *http.Request) (*Orchestrator, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	return s.Lookup(cookie.Value)
}

// Ensure resolves the caller's orchestrator, starting a new session and
// setting its cookie when the request carries no live one. Unknown ids are
// never adopted from the client.
func (s *Sessions) Ensure(w http.ResponseWriter, r *http.Request) *Orchestrator {
	if o, ok := s.Existing(r); ok {
		return o
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s.Get(id)
}
