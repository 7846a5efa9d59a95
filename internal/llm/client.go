package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Client turns a fully assembled prompt into raw generated text. Calls
// block until the model answers or ctx ends.
type Client interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
}

// Options are the sampling parameters sent with every request.
type Options struct {
	Temperature float64
	TopP        float64
	NumPredict  int
}

func DefaultOptions() Options {
	return Options{Temperature: 0.4, TopP: 0.5, NumPredict: 128}
}

const (
	ProviderOllama          = "ollama"
	ProviderOpenAI          = "openai"
	ProviderLangChainOllama = "langchain-ollama"
)

type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	// Timeout bounds a single Generate call. Zero means no bound.
	Timeout time.Duration
	Options Options
}

// New builds the client for cfg.Provider.
func New(cfg Config, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "", ProviderOllama:
		return NewOllamaClient(cfg.BaseURL, cfg.Options, cfg.Timeout, logger), nil
	case ProviderOpenAI:
		return NewOpenAICompatible(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Options, cfg.Timeout, logger)
	case ProviderLangChainOllama:
		return NewLangChainOllama(cfg.BaseURL, cfg.Model, cfg.Options, cfg.Timeout, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// InferenceError reports a failed or malformed model call.
type InferenceError struct {
	Provider string
	// StatusCode is the HTTP status when the endpoint answered, else 0.
	StatusCode int
	Err        error
}

func (e *InferenceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s inference failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s inference failed: %v", e.Provider, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
