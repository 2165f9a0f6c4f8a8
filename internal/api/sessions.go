package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"hustled/internal/business"
	"hustled/internal/workflow"
)

var (
	errSessionNotFound = errors.New("application session not found")
	errSessionOwner    = errors.New("application session belongs to another actor")
	errSessionStalled  = errors.New("application session did not advance")
)

// promptGuard bounds how long a handler waits for the capture goroutine to
// either emit the next prompt or finish. The capture's own step timeouts
// are much longer; this only covers the hand-off.
const promptGuard = 5 * time.Second

// applySession is one in-flight application capture, driven step by step
// over HTTP. The capture itself runs in its own goroutine against a
// ChannelPrompter; request handlers feed it replies.
type applySession struct {
	id           string
	actorID      string
	businessName string
	prompter     *workflow.ChannelPrompter
	finished     chan struct{}

	mu  sync.Mutex
	app business.Application
	err error
}

func (s *applySession) finish(app business.Application, err error) {
	s.mu.Lock()
	s.app, s.err = app, err
	s.mu.Unlock()
	close(s.finished)
}

func (s *applySession) result() (business.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.app, s.err
}

type sessionManager struct {
	registry *business.Registry
	log      *slog.Logger
	idle     time.Duration

	mu       sync.Mutex
	sessions map[string]*applySession
}

func newSessionManager(registry *business.Registry, idle time.Duration, logger *slog.Logger) *sessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	return &sessionManager{
		registry: registry,
		log:      logger,
		idle:     idle,
		sessions: map[string]*applySession{},
	}
}

type sessionStep struct {
	SessionID string                `json:"session_id,omitempty"`
	Prompt    string                `json:"prompt,omitempty"`
	Done      bool                  `json:"done"`
	Result    *business.Application `json:"result,omitempty"`
}

// Start launches a capture for the named business and returns either the
// first prompt or, when the pre-checks already failed, that error.
func (m *sessionManager) Start(ctx context.Context, actorID, actorName, businessName string) (sessionStep, error) {
	s := &applySession{
		id:           uuid.NewString(),
		actorID:      actorID,
		businessName: businessName,
		prompter:     workflow.NewChannelPrompter(),
		finished:     make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	go func() {
		// The capture outlives the starting request; each step enforces
		// its own timeout.
		app, err := m.registry.Apply(context.Background(), actorID, actorName, businessName, s.prompter)
		s.finish(app, err)
		m.expireLater(s.id)
	}()

	return m.advance(ctx, s)
}

// Reply feeds the actor's answer to the waiting step and reports the next
// prompt or the final outcome.
func (m *sessionManager) Reply(ctx context.Context, sessionID, actorID, text string) (sessionStep, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return sessionStep{}, errSessionNotFound
	}
	if s.actorID != actorID {
		return sessionStep{}, errSessionOwner
	}

	replyCtx, cancel := context.WithTimeout(ctx, promptGuard)
	defer cancel()
	if err := s.prompter.Reply(replyCtx, text); err != nil {
		// Nothing was waiting for a reply: the capture already finished
		// (usually a step timeout).
		select {
		case <-s.finished:
			_, runErr := s.result()
			m.remove(s.id)
			if runErr == nil {
				runErr = errSessionStalled
			}
			return sessionStep{}, runErr
		default:
			return sessionStep{}, errSessionStalled
		}
	}
	return m.advance(ctx, s)
}

// advance waits for the capture to either ask its next question or finish.
func (m *sessionManager) advance(ctx context.Context, s *applySession) (sessionStep, error) {
	waitCtx, cancel := context.WithTimeout(ctx, promptGuard)
	defer cancel()

	prompts := make(chan string, 1)
	go func() {
		if p, err := s.prompter.NextPrompt(waitCtx); err == nil {
			prompts <- p
		}
	}()

	select {
	case prompt := <-prompts:
		return sessionStep{SessionID: s.id, Prompt: prompt}, nil
	case <-s.finished:
		app, err := s.result()
		m.remove(s.id)
		if err != nil {
			return sessionStep{}, err
		}
		return sessionStep{Done: true, Result: &app}, nil
	case <-waitCtx.Done():
		return sessionStep{}, errSessionStalled
	}
}

func (m *sessionManager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// expireLater drops a finished session nobody came back for.
func (m *sessionManager) expireLater(id string) {
	time.AfterFunc(m.idle, func() {
		m.remove(id)
	})
}
