package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	APIKey     string
	BaseURL    string
	MaxResults int
}

// Client wraps the Tavily search API. A failed or unconfigured search
// degrades to an empty result instead of an error: the orchestration must
// keep going with less context, never crash on a missing search.
type Client struct {
	apiKey     string
	baseURL    string
	maxResults int
	client     *http.Client
}

type Item struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type Result struct {
	Answer string
	Items  []Item
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 6
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxResults: maxResults,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Search(ctx context.Context, query string) Result {
	if c.apiKey == "" {
		return Result{}
	}
	payload := map[string]any{
		"api_key":             c.apiKey,
		"query":               query,
		"search_depth":        "advanced",
		"max_results":         c.maxResults,
		"include_answer":      true,
		"include_raw_content": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return Result{}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}
	}
	defer resp.Body.Close()

	var parsed struct {
		Answer  string `json:"answer"`
		Results []Item `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}
	}
	return Result{Answer: parsed.Answer, Items: parsed.Results}
}

func (r Result) Empty() bool {
	return r.Answer == "" && len(r.Items) == 0
}

// Text renders the result in the fixed format fed back to providers as a
// tool-result turn.
func (r Result) Text() string {
	if r.Empty() {
		return ""
	}
	var b strings.Builder
	if r.Answer != "" {
		b.WriteString("ANSWER: ")
		b.WriteString(r.Answer)
		b.WriteString("\n\n")
	}
	for i, item := range r.Items {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString("TITLE: ")
		b.WriteString(item.Title)
		b.WriteString("\nURL: ")
		b.WriteString(item.URL)
		b.WriteString("\nSNIPPET: ")
		b.WriteString(item.Content)
	}
	return b.String()
}
