package web

import (
	"context"
	"sync"

	"github.com/fabfab/psy-assistant/chat"
)

// Asker is the backend call the orchestrator depends on.
type Asker interface {
	Ask(ctx context.Context, question string) (chat.Answer, error)
}

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseLoading  Phase = "loading"
	PhaseAnswered Phase = "answered"
)

// State is a snapshot of one chat page.
type State struct {
	Input   string
	Loading bool
	Answer  *chat.Answer
}

func (s State) Phase() Phase {
	switch {
	case s.Loading:
		return PhaseLoading
	case s.Answer != nil:
		return PhaseAnswered
	default:
		return PhaseIdle
	}
}

// Orchestrator drives one chat page. Only the most recently issued question
// may change the displayed answer.
type Orchestrator struct {
	asker   Asker
	metrics *Metrics

	mu      sync.Mutex
	seq     uint64
	input   string
	loading bool
	answer  *chat.Answer
}

func NewOrchestrator(asker Asker, metrics *Metrics) *Orchestrator {
	return &Orchestrator{asker: asker, metrics: metrics}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	state := State{Input: o.input, Loading: o.loading}
	if o.answer != nil {
		answer := *o.answer
		state.Answer = &answer
	}
	return state
}

// Submit asks question and applies the reply if no newer question was
// issued meanwhile. applied is false for a discarded reply. On failure the
// previous answer stays on display and err is returned for logging only.
func (o *Orchestrator) Submit(ctx context.Context, question string) (applied bool, err error) {
	o.mu.Lock()
	o.seq++
	token := o.seq
	o.input = question
	o.loading = true
	o.mu.Unlock()

	answer, err := o.asker.Ask(ctx, question)

	o.mu.Lock()
	defer o.mu.Unlock()

	if token != o.seq {
		o.metrics.observeStale()
		return false, err
	}

	o.loading = false
	if err != nil {
		return true, err
	}
	o.answer = &answer
	return true, nil
}
