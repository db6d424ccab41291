// Package llmtest provides a scripted Completer for tests.
package llmtest

import (
	"context"
	"sync"

	"lead-intake-workers/internal/common/llm"
)

// Fake returns Response (or Err) and records every exchange it receives.
// When Respond is set it takes precedence over Response.
type Fake struct {
	Response string
	Err      error
	Respond  func(messages []llm.Message) (string, error)

	mu    sync.Mutex
	calls [][]llm.Message
}

func (f *Fake) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.Respond != nil {
		return f.Respond(messages)
	}
	return f.Response, f.Err
}

func (f *Fake) Calls() [][]llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]llm.Message(nil), f.calls...)
}

var _ llm.Completer = (*Fake)(nil)
