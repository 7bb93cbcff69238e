package web

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fabfab/psy-assistant/chat"
)

type scriptedAsker struct {
	mu      sync.Mutex
	replies map[string]chan result
}

type result struct {
	answer chat.Answer
	err    error
}

func newScriptedAsker(questions ...string) *scriptedAsker {
	a := &scriptedAsker{replies: make(map[string]chan result)}
	for _, q := range questions {
		a.replies[q] = make(chan result, 1)
	}
	return a
}

func (a *scriptedAsker) Ask(ctx context.Context, question string) (chat.Answer, error) {
	a.mu.Lock()
	ch := a.replies[question]
	a.mu.Unlock()
	select {
	case r := <-ch:
		return r.answer, r.err
	case <-ctx.Done():
		return chat.Answer{}, ctx.Err()
	}
}

func (a *scriptedAsker) reply(question string, r result) {
	a.replies[question] <- r
}

type staticAsker struct {
	answer chat.Answer
	err    error
}

func (s staticAsker) Ask(context.Context, string) (chat.Answer, error) {
	return s.answer, s.err
}

func TestOrchestratorInitialState(t *testing.T) {
	o := NewOrchestrator(staticAsker{}, nil)
	state := o.State()
	if state.Input != "" || state.Loading || state.Answer != nil {
		t.Fatalf("unexpected initial state %+v", state)
	}
	if state.Phase() != PhaseIdle {
		t.Fatalf("expected idle, got %s", state.Phase())
	}
}

func TestOrchestratorSubmitSuccess(t *testing.T) {
	o := NewOrchestrator(staticAsker{answer: chat.Answer{Response: "réponse"}}, nil)

	applied, err := o.Submit(context.Background(), "question")
	if err != nil || !applied {
		t.Fatalf("expected applied answer, got applied=%v err=%v", applied, err)
	}
	state := o.State()
	if state.Loading || state.Answer == nil || state.Answer.Response != "réponse" {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.Input != "question" || state.Phase() != PhaseAnswered {
		t.Fatalf("unexpected input or phase %+v", state)
	}
}

func TestOrchestratorFailureKeepsPreviousAnswer(t *testing.T) {
	asker := newScriptedAsker("first", "second")
	o := NewOrchestrator(asker, nil)

	asker.reply("first", result{answer: chat.Answer{Response: "premier"}})
	if _, err := o.Submit(context.Background(), "first"); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	failure := &BackendError{Kind: KindNetwork, Err: errors.New("connection refused")}
	asker.reply("second", result{err: failure})
	applied, err := o.Submit(context.Background(), "second")
	if !applied || !errors.Is(err, failure) {
		t.Fatalf("expected applied failure, got applied=%v err=%v", applied, err)
	}

	state := o.State()
	if state.Loading {
		t.Fatal("loading must be cleared after a failure")
	}
	if state.Answer == nil || state.Answer.Response != "premier" {
		t.Fatalf("expected previous answer kept, got %+v", state.Answer)
	}
	if state.Input != "second" {
		t.Fatalf("expected input to remain the last question, got %q", state.Input)
	}
}

func TestOrchestratorDiscardsStaleAnswer(t *testing.T) {
	asker := newScriptedAsker("old", "new")
	metrics := NewMetrics()
	o := NewOrchestrator(asker, metrics)

	oldDone := make(chan bool, 1)
	go func() {
		applied, _ := o.Submit(context.Background(), "old")
		oldDone <- applied
	}()
	waitFor(t, func() bool { return o.State().Input == "old" })

	newDone := make(chan bool, 1)
	go func() {
		applied, _ := o.Submit(context.Background(), "new")
		newDone <- applied
	}()
	waitFor(t, func() bool { return o.State().Input == "new" })

	asker.reply("new", result{answer: chat.Answer{Response: "nouvelle"}})
	if applied := <-newDone; !applied {
		t.Fatal("expected newest answer to be applied")
	}

	asker.reply("old", result{answer: chat.Answer{Response: "ancienne"}})
	if applied := <-oldDone; applied {
		t.Fatal("expected stale answer to be discarded")
	}

	state := o.State()
	if state.Answer == nil || state.Answer.Response != "nouvelle" {
		t.Fatalf("stale answer overwrote newer one: %+v", state.Answer)
	}
	if state.Loading {
		t.Fatal("expected loading cleared")
	}
	assertMetric(t, metrics, "psy_stale_answers_total 1")
}

func TestOrchestratorStaysLoadingWhileNewerInFlight(t *testing.T) {
	asker := newScriptedAsker("old", "new")
	o := NewOrchestrator(asker, nil)

	oldDone := make(chan bool, 1)
	go func() {
		applied, _ := o.Submit(context.Background(), "old")
		oldDone <- applied
	}()
	waitFor(t, func() bool { return o.State().Input == "old" })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	newDone := make(chan struct{})
	go func() {
		_, _ = o.Submit(ctx, "new")
		close(newDone)
	}()
	waitFor(t, func() bool { return o.State().Input == "new" })

	asker.reply("old", result{answer: chat.Answer{Response: "ancienne"}})
	<-oldDone

	state := o.State()
	if !state.Loading || state.Answer != nil {
		t.Fatalf("expected still loading without answer, got %+v", state)
	}

	cancel()
	<-newDone
	if o.State().Loading {
		t.Fatal("expected loading cleared once the newest call returns")
	}
}

func TestSessionsReuseOrchestrator(t *testing.T) {
	sessions := NewSessions(staticAsker{}, nil)
	a := sessions.Get("a")
	if sessions.Get("a") != a {
		t.Fatal("expected same orchestrator for same session")
	}
	if sessions.Get("b") == a {
		t.Fatal("expected distinct orchestrators per session")
	}
	if sessions.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", sessions.Len())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
