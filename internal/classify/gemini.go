package classify

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"parkintel/internal/config"
	"parkintel/internal/core"
)

// GeminiClassifier scores articles through the Gemini API.
type GeminiClassifier struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

var _ Classifier = (*GeminiClassifier)(nil)

// NewGeminiClassifier builds a classifier from configuration. The API key
// comes from config (normally bound to GEMINI_API_KEY).
func NewGeminiClassifier(ctx context.Context, cfg config.LLM) (*GeminiClassifier, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required; set GEMINI_API_KEY or llm.gemini.api_key")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClassifier{
		client:  client,
		model:   cfg.Gemini.Model,
		timeout: cfg.TimeoutDuration(),
	}, nil
}

// Classify sends one batch and returns the validated verdicts.
func (c *GeminiClassifier) Classify(ctx context.Context, articles []core.Article) ([]Result, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: buildPrompt(articles)}},
		Role:  "user",
	}}

	resp, err := c.client.Models.GenerateContent(callCtx, c.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini call failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	return parseResults(text)
}
