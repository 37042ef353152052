package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyResponse = errors.New("llm returned no content")
	ErrNoScript      = errors.New("offline client has no scripted response")
)

type Request struct {
	System string
	User   string
	// Model overrides the client's default model for this call.
	Model string
	JSON  bool
}

type Response struct {
	Text       string
	Model      string
	ResponseID string
}

// Client is one language-model provider.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
	Close() error
}

type Config struct {
	Provider      string
	Model         string
	GeminiAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// New selects the provider named in cfg. The offline provider has no remote
// client; callers use the rule parser and template generator instead and get a
// nil Client.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "offline":
		return nil, nil
	case "gemini":
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.Model)
	case "openai":
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.Model, cfg.OpenAIBaseURL)
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.Provider)
	}
}

func pickModel(override, fallback string) string {
	if m := strings.TrimSpace(override); m != "" {
		return m
	}
	return fallback
}
