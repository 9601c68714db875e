// Package generator turns a rendered persona prompt into reply text using
// a hosted language model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyReply is returned when a provider answers with no text.
var ErrEmptyReply = errors.New("generator returned an empty reply")

// Request is one reply generation call.
type Request struct {
	PersonaID   string
	System      string // persona framing, project and recent conversation
	Prompt      string // the triggering message, verbatim
	MaxTokens   int64
	Temperature float64
}

// Generator produces reply text for a request. Implementations must honor
// ctx cancellation and be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Provider names accepted by New.
const (
	ProviderAuto      = "auto"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderCanned    = "canned"
)

// Config selects and configures a provider.
type Config struct {
	Provider        string
	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
}

// New builds the configured Generator. With ProviderAuto it prefers OpenAI,
// then Anthropic, and falls back to the canned offline generator.
func New(cfg Config) (Generator, string, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" || provider == ProviderAuto {
		switch {
		case cfg.OpenAIAPIKey != "":
			provider = ProviderOpenAI
		case cfg.AnthropicAPIKey != "":
			provider = ProviderAnthropic
		default:
			provider = ProviderCanned
		}
	}

	switch provider {
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, "", errors.New("OPENAI_API_KEY is required for the openai provider")
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel), provider, nil
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, "", errors.New("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		return NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel), provider, nil
	case ProviderCanned:
		return Canned{}, provider, nil
	default:
		return nil, "", fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}

func clean(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
