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

const (
	anthropicVersion       = "2023-06-01"
	anthropicWebSearchBeta = "web-search-2025-03-05"
	anthropicWebSearchTool = "web_search_20250305"
)

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// AnthropicClient is the rich provider: the Messages API runs web search
// server-side, so a single request yields a fully researched answer.
type AnthropicClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &AnthropicClient{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 35 * time.Second},
	}
}

func (c *AnthropicClient) Model() string {
	return c.model
}

func (c *AnthropicClient) Generate(ctx context.Context, system string, messages []Message, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("missing Anthropic API key")
	}
	wireMessages := make([]Message, 0, len(messages))
	for _, msg := range messages {
		wireMessages = append(wireMessages, Message{Role: msg.Role, Content: msg.Content})
	}
	payload := map[string]any{
		"model":      c.model,
		"max_tokens": maxTokens,
		"system":     system,
		"messages":   wireMessages,
		"tools": []map[string]string{
			{"type": anthropicWebSearchTool, "name": "web_search"},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("anthropic-beta", anthropicWebSearchBeta)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", RateLimitedError{Provider: "anthropic"}
	}

	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", ProtocolError{Provider: "anthropic", Detail: err.Error()}
	}
	if parsed.Error != nil {
		if isCreditMessage(parsed.Error.Type, parsed.Error.Message) {
			return "", CreditExhaustedError{Provider: "anthropic", Detail: parsed.Error.Message}
		}
		return "", ProtocolError{Provider: "anthropic", Detail: parsed.Error.Message}
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", ProtocolError{Provider: "anthropic", Detail: "response had no text content"}
	}
	return text.String(), nil
}
