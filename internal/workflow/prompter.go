package workflow

import "context"

// Func adapts a plain function to the Prompter interface.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Ask(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ChannelPrompter bridges a capture running in one goroutine to replies
// arriving from another (an HTTP session, a test). Prompts and replies are
// exchanged over unbuffered channels so each Ask pairs with exactly one
// Reply.
type ChannelPrompter struct {
	prompts chan string
	replies chan string
}

func NewChannelPrompter() *ChannelPrompter {
	return &ChannelPrompter{
		prompts: make(chan string),
		replies: make(chan string),
	}
}

func (p *ChannelPrompter) Ask(ctx context.Context, prompt string) (string, error) {
	select {
	case p.prompts <- prompt:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case reply := <-p.replies:
		return reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// NextPrompt blocks until the capture asks its next question.
func (p *ChannelPrompter) NextPrompt(ctx context.Context) (string, error) {
	select {
	case prompt := <-p.prompts:
		return prompt, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Reply feeds the actor's answer to the step currently waiting on it.
func (p *ChannelPrompter) Reply(ctx context.Context, text string) error {
	select {
	case p.replies <- text:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
