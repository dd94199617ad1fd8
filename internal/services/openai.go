// OpenAI Chat Completions client used for wellness predictions
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/cadence/internal/shared"
)

const (
	openAIBaseURL      = "https://api.openai.com/v1"
	defaultOpenAIModel = "gpt-4o-mini"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// OpenAIService calls the Chat Completions API in JSON mode.
type OpenAIService struct {
	api   *APIService
	model string
}

// NewOpenAIService creates the client. The API key is required; model and base URL fall back to defaults.
func NewOpenAIService(cfg shared.OpenAIConfig, client *http.Client) (*OpenAIService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api_key", shared.ErrMissingCredentials)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	api := NewAPIService(baseURL, client).WithHeader("Authorization", "Bearer "+cfg.APIKey)
	return &OpenAIService{api: api, model: model}, nil
}

func (o *OpenAIService) Model() string { return o.model }

// Complete sends a system and user message and returns the assistant's content, which
// the model is instructed to format as a JSON object.
func (o *OpenAIService) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature:    0.4,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var resp chatResponse
	if _, err := o.api.Do(ctx, http.MethodPost, "/chat/completions", req, &resp); err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", shared.ErrAPIRequest)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: openai returned empty content", shared.ErrAPIRequest)
	}
	return content, nil
}
