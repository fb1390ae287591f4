package engine

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dealflowhq/dealflow/control-plane/internal/llm"
	"github.com/dealflowhq/dealflow/control-plane/internal/search"
)

// ToolCompleter is the OpenAI-style function-calling provider driven by the
// loop.
type ToolCompleter interface {
	Model() string
	Complete(ctx context.Context, req llm.CompleteRequest) (*llm.Completion, error)
}

type Searcher interface {
	Search(ctx context.Context, query string) search.Result
}

var webSearchTool = llm.Tool{
	Type: "function",
	Function: llm.ToolFunction{
		Name: "web_search",
		Description: "Search the web for real-time property listings, parcel records, foreclosures, owner data. " +
			"Search Regrid.com for parcel/APN data. Search PropertyRadar.com for distress data.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query including city, state, and current year",
				},
			},
			"required": []string{"query"},
		},
	},
}

// ToolLoop drives a tool-calling provider until it produces a final answer
// or MaxIterations is reached. All searches requested in one provider turn
// run concurrently; the loop waits for every result before the next turn.
type ToolLoop struct {
	Provider      ToolCompleter
	Search        Searcher
	MaxIterations int
	MaxTokens     int
	Temperature   float64
	OnSearch      func(query string)
}

// Run executes the loop. Provider errors terminate it immediately and are
// returned as-is so the caller can classify them. When the iteration ceiling
// is hit without a final answer, the last assistant-authored text is
// returned instead of an error.
func (l *ToolLoop) Run(ctx context.Context, system string, history []llm.Message) (string, error) {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	messages = append(messages, history...)

	maxIterations := l.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 8
	}

	for i := 0; i < maxIterations; i++ {
		completion, err := l.Provider.Complete(ctx, llm.CompleteRequest{
			Messages:    messages,
			Tools:       []llm.Tool{webSearchTool},
			ToolChoice:  "auto",
			MaxTokens:   l.MaxTokens,
			Temperature: l.Temperature,
		})
		if err != nil {
			return "", err
		}

		messages = append(messages, completion.Message)
		if completion.FinishReason == "stop" || len(completion.Message.ToolCalls) == 0 {
			return completion.Message.Content, nil
		}

		results := make([]string, len(completion.Message.ToolCalls))
		var wg sync.WaitGroup
		for idx, call := range completion.Message.ToolCalls {
			wg.Add(1)
			go func(idx int, call llm.ToolCall) {
				defer wg.Done()
				query := searchQuery(call.Function.Arguments)
				if l.OnSearch != nil {
					l.OnSearch(query)
				}
				results[idx] = l.Search.Search(ctx, query).Text()
			}(idx, call)
		}
		wg.Wait()

		for idx, call := range completion.Message.ToolCalls {
			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    results[idx],
			})
		}
	}

	return lastAssistantContent(messages), nil
}

func searchQuery(arguments string) string {
	var args struct {
		Query string `json:"query"`
	}
	_ = json.Unmarshal([]byte(arguments), &args)
	return args.Query
}

func lastAssistantContent(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" && messages[i].Content != "" {
			return messages[i].Content
		}
	}
	return ""
}
