package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

type GroqConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GroqClient drives an OpenAI-compatible chat-completions endpoint. It has
// no server-side search: tool calls come back to the caller, which answers
// them and re-submits (the tool loop in internal/engine).
type GroqClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGroqClient(cfg GroqConfig) *GroqClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	return &GroqClient{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *GroqClient) Model() string {
	return c.model
}

func (c *GroqClient) Complete(ctx context.Context, req CompleteRequest) (*Completion, error) {
	if c.apiKey == "" {
		return nil, errors.New("missing Groq API key")
	}
	payload := map[string]any{
		"model":       c.model,
		"messages":    req.Messages,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
	if len(req.Tools) > 0 {
		payload["tools"] = req.Tools
		toolChoice := req.ToolChoice
		if toolChoice == "" {
			toolChoice = "auto"
		}
		payload["tool_choice"] = toolChoice
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, RateLimitedError{Provider: "groq"}
	}

	var parsed struct {
		Choices []struct {
			Message      Message `json:"message"`
			FinishReason string  `json:"finish_reason"`
		} `json:"choices"`
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, ProtocolError{Provider: "groq", Detail: err.Error()}
	}
	if parsed.Error != nil {
		if isTokenBudgetMessage(parsed.Error.Message) {
			return nil, TokenBudgetError{Provider: "groq", Detail: parsed.Error.Message}
		}
		if isCreditMessage(parsed.Error.Type, parsed.Error.Message) {
			return nil, CreditExhaustedError{Provider: "groq", Detail: parsed.Error.Message}
		}
		return nil, ProtocolError{Provider: "groq", Detail: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return nil, ProtocolError{Provider: "groq", Detail: "response had no choices"}
	}
	choice := parsed.Choices[0]
	return &Completion{Message: choice.Message, FinishReason: choice.FinishReason}, nil
}
