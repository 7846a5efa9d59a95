package llm

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// LangChainClient drives any langchaingo model.
type LangChainClient struct {
	llm      llms.Model
	provider string
	options  Options
	timeout  time.Duration
	logger   *zap.Logger
}

// NewOpenAICompatible talks to an OpenAI-style endpoint, which includes
// Ollama's /v1 surface.
func NewOpenAICompatible(baseURL, token, model string, options Options, timeout time.Duration, logger *zap.Logger) (*LangChainClient, error) {
	if token == "" {
		// the client refuses an empty token even for servers that ignore it
		token = "unused"
	}
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return &LangChainClient{llm: llm, provider: ProviderOpenAI, options: options, timeout: timeout, logger: logger}, nil
}

func NewLangChainOllama(serverURL, model string, options Options, timeout time.Duration, logger *zap.Logger) (*LangChainClient, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return &LangChainClient{llm: llm, provider: ProviderLangChainOllama, options: options, timeout: timeout, logger: logger}, nil
}

func (c *LangChainClient) Generate(ctx context.Context, prompt, model string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithModel(model),
		llms.WithTemperature(c.options.Temperature),
		llms.WithTopP(c.options.TopP),
		llms.WithMaxTokens(c.options.NumPredict),
	)
	if err != nil {
		return "", &InferenceError{Provider: c.provider, Err: err}
	}
	c.logger.Debug("Langchain generation finished", zap.String("provider", c.provider), zap.Int("length", len(completion)))
	return completion, nil
}
