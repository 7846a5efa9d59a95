package llm

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// GeneratePath is the Ollama text generation endpoint.
const GeneratePath = "/api/generate"

type GenerateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"topP"`
	NumPredict  int     `json:"numPredict"`
	// Options carries the same sampling values in the shape Ollama reads.
	Options map[string]any `json:"options,omitempty"`
}

type GenerateResponse struct {
	Model      string `json:"model"`
	CreatedAt  string `json:"created_at"`
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
	Context    []int  `json:"context"`
}

type OllamaClient struct {
	client  *resty.Client
	options Options
	timeout time.Duration
	logger  *zap.Logger
}

func NewOllamaClient(baseURL string, options Options, timeout time.Duration, logger *zap.Logger) *OllamaClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &OllamaClient{client: client, options: options, timeout: timeout, logger: logger}
}

func (c *OllamaClient) Generate(ctx context.Context, prompt, model string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	req := GenerateRequest{
		Model:       model,
		Prompt:      prompt,
		Stream:      false,
		Temperature: c.options.Temperature,
		TopP:        c.options.TopP,
		NumPredict:  c.options.NumPredict,
		Options: map[string]any{
			"temperature": c.options.Temperature,
			"top_p":       c.options.TopP,
			"num_predict": c.options.NumPredict,
		},
	}

	var out GenerateResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post(GeneratePath)
	if err != nil {
		return "", &InferenceError{Provider: ProviderOllama, Err: err}
	}
	if resp.IsError() {
		return "", &InferenceError{
			Provider:   ProviderOllama,
			StatusCode: resp.StatusCode(),
			Err:        errors.New(resp.String()),
		}
	}
	if !out.Done {
		return "", &InferenceError{
			Provider:   ProviderOllama,
			StatusCode: resp.StatusCode(),
			Err:        errors.New("incomplete generation in non-streaming response"),
		}
	}

	c.logger.Debug("Ollama generation finished",
		zap.String("model", out.Model),
		zap.String("doneReason", out.DoneReason),
		zap.Duration("elapsed", resp.Time()))
	return out.Response, nil
}
