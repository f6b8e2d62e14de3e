package router

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/radu2lupu/agentcord/provider"
)

// noAnswer is the placeholder submitted for questions left unanswered.
const noAnswer = "(no answer)"

// pendingAsk collects answers for one ask-user event until every question
// has one or the user submits early.
type pendingAsk struct {
	sessionID string
	ev        provider.AskUserEvent
	answers   map[int]string
	submitted bool
}

func (p *pendingAsk) complete() bool {
	return len(p.answers) == len(p.ev.Questions)
}

// answerMap keys collected answers by question text, placeholdering gaps,
// in original question order.
func (p *pendingAsk) answerMap() map[string]string {
	out := make(map[string]string, len(p.ev.Questions))
	for i, q := range p.ev.Questions {
		answer, ok := p.answers[i]
		if !ok {
			answer = noAnswer
		}
		out[q.Text] = answer
	}
	return out
}

// answerText renders the collected answers as prompt text, for asks whose
// originating turn has already ended.
func (p *pendingAsk) answerText() string {
	var b strings.Builder
	for i, q := range p.ev.Questions {
		answer, ok := p.answers[i]
		if !ok {
			answer = noAnswer
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(q.Text + ": " + answer)
	}
	return b.String()
}

// AskRegistry tracks pending ask-user events across turns.
type AskRegistry struct {
	mu      sync.Mutex
	pending map[string]*pendingAsk
}

// NewAskRegistry creates an empty registry.
func NewAskRegistry() *AskRegistry {
	return &AskRegistry{pending: make(map[string]*pendingAsk)}
}

// Register stores an ask-user event and returns its id.
func (a *AskRegistry) Register(sessionID string, ev provider.AskUserEvent) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := uuid.NewString()
	a.pending[id] = &pendingAsk{
		sessionID: sessionID,
		ev:        ev,
		answers:   make(map[int]string),
	}
	return id
}

// record stores one answer. It returns the pending ask and whether this
// answer completed the set; a completed set is marked submitted so late
// clicks are ignored.
func (a *AskRegistry) record(askID string, question int, answer string) (*pendingAsk, bool, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[askID]
	if !ok || p.submitted {
		return nil, false, false
	}
	if question < 0 || question >= len(p.ev.Questions) {
		return nil, false, false
	}
	p.answers[question] = answer
	if p.complete() {
		p.submitted = true
		delete(a.pending, askID)
		return p, true, true
	}
	return p, true, false
}

// submit finalizes a pending ask regardless of unanswered questions.
func (a *AskRegistry) submit(askID string) (*pendingAsk, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[askID]
	if !ok || p.submitted {
		return nil, false
	}
	p.submitted = true
	delete(a.pending, askID)
	return p, true
}

// option resolves an option index for a question to its text.
func (a *AskRegistry) option(askID string, question, opt int) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[askID]
	if !ok || question < 0 || question >= len(p.ev.Questions) {
		return "", false
	}
	options := p.ev.Questions[question].Options
	if opt < 0 || opt >= len(options) {
		return "", false
	}
	return options[opt], true
}
