// Package llm is the completion-service boundary: an ordered list of
// role-tagged messages goes in, one free-form text response comes out.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"lead-intake-workers/internal/common/config"
	apphttp "lead-intake-workers/internal/common/http"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
)

var (
	ErrTimeout       = errors.New("completion timed out")
	ErrEmptyResponse = errors.New("completion returned no choices")
)

type Message struct {
	Role    Role
	Content string
}

func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func Human(content string) Message  { return Message{Role: RoleHuman, Content: content} }

// Completer sends one exchange to a chat model.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ModelCompleter adapts a langchaingo model. Every call runs under Timeout.
type ModelCompleter struct {
	model       llms.Model
	temperature float64
	timeout     time.Duration
}

func NewModelCompleter(model llms.Model, temperature float64, timeout time.Duration) *ModelCompleter {
	return &ModelCompleter{model: model, temperature: temperature, timeout: timeout}
}

// NewFromConfig builds the provider named in cfg.Provider.
func NewFromConfig(cfg config.LLMConfig) (*ModelCompleter, error) {
	timeout := config.GetDuration(cfg.Timeout)

	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(cfg.APIKey),
			openai.WithHTTPClient(apphttp.NewClient(timeout)),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s model: %w", cfg.Provider, err)
	}

	return NewModelCompleter(model, cfg.Temperature, timeout), nil
}

func (c *ModelCompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatType(m.Role), m.Content))
	}

	resp, err := c.model.GenerateContent(ctx, content, llms.WithTemperature(c.temperature))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %v", ErrTimeout, c.timeout, err)
		}
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

func chatType(r Role) llms.ChatMessageType {
	if r == RoleSystem {
		return llms.ChatMessageTypeSystem
	}
	return llms.ChatMessageTypeHuman
}
