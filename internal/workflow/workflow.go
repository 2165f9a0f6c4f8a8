// Package workflow models bounded multi-step prompt captures as an explicit
// state machine. A capture walks its steps in order, waiting on an external
// reply for each; a timeout or cancellation aborts the whole capture and
// nothing collected so far is kept.
package workflow

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrTimeout aborts an in-progress capture when a step's reply does
	// not arrive in time.
	ErrTimeout = errors.New("timed out waiting for reply")
)

// State names the step a capture is currently suspended on.
type State string

const (
	StateComplete State = "complete"
	StateAborted  State = "aborted"
)

// Prompter delivers a prompt to the actor and blocks until their reply or
// ctx expires. Front-ends implement it over their own transport.
type Prompter interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Step is one suspension point: the prompt sent, the reply length cap, and
// how long to wait.
type Step struct {
	State   State
	Field   string
	Prompt  string
	Limit   int
	Timeout time.Duration
}

// Capture is a single run of a multi-step prompt sequence.
type Capture struct {
	mu    sync.Mutex
	state State
	steps []Step
}

func New(steps []Step) *Capture {
	c := &Capture{steps: steps, state: StateComplete}
	if len(steps) > 0 {
		c.state = steps[0].State
	}
	return c
}

// State reports which step the capture is suspended on, or
// StateComplete/StateAborted once it has finished.
func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Capture) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run drives the capture to completion, returning every answer keyed by
// step field. All-or-nothing: any step timing out aborts the whole run
// with ErrTimeout and no partial answers escape.
func (c *Capture) Run(ctx context.Context, p Prompter) (map[string]string, error) {
	answers := make(map[string]string, len(c.steps))
	for _, step := range c.steps {
		c.setState(step.State)
		reply, err := c.ask(ctx, p, step)
		if err != nil {
			c.setState(StateAborted)
			return nil, err
		}
		answers[step.Field] = Truncate(reply, step.Limit)
	}
	c.setState(StateComplete)
	return answers, nil
}

func (c *Capture) ask(ctx context.Context, p Prompter, step Step) (string, error) {
	stepCtx := ctx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}
	reply, err := p.Ask(stepCtx, step.Prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", err
	}
	return reply, nil
}

// Truncate caps a reply at limit runes. A non-positive limit keeps the
// reply whole.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
