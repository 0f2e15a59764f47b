package classify

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"parkintel/internal/config"
	"parkintel/internal/core"
)

// OpenAIClassifier scores articles through any OpenAI-compatible chat
// endpoint (base URL is configurable, so local gateways work too).
type OpenAIClassifier struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

var _ Classifier = (*OpenAIClassifier)(nil)

// NewOpenAIClassifier builds a classifier from configuration.
func NewOpenAIClassifier(cfg config.LLM) (*OpenAIClassifier, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required; set OPENAI_API_KEY or llm.openai.api_key")
	}

	clientCfg := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAI.BaseURL
	}

	return &OpenAIClassifier{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.OpenAI.Model,
		timeout: cfg.TimeoutDuration(),
	}, nil
}

// Classify sends one batch and returns the validated verdicts.
func (c *OpenAIClassifier) Classify(ctx context.Context, articles []core.Article) ([]Result, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(articles)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	return parseResults(resp.Choices[0].Message.Content)
}

// NewClassifier selects the configured provider.
func NewClassifier(ctx context.Context, cfg config.LLM) (Classifier, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClassifier(cfg)
	default:
		return NewGeminiClassifier(ctx, cfg)
	}
}
