package engine

import (
	"context"
	"sync"

	"github.com/dealflowhq/dealflow/control-plane/internal/llm"
	"github.com/dealflowhq/dealflow/control-plane/internal/search"
)

type fakeRich struct {
	model string
	text  string
	err   error
	calls int
}

func (f *fakeRich) Model() string { return f.model }

func (f *fakeRich) Generate(ctx context.Context, system string, messages []llm.Message, maxTokens int) (string, error) {
	f.calls++
	return f.text, f.err
}

// fakeTool replays a scripted sequence of completions and records every
// request it receives.
type fakeTool struct {
	model    string
	script   []func(req llm.CompleteRequest) (*llm.Completion, error)
	requests []llm.CompleteRequest
}

func (f *fakeTool) Model() string { return f.model }

func (f *fakeTool) Complete(ctx context.Context, req llm.CompleteRequest) (*llm.Completion, error) {
	f.requests = append(f.requests, req)
	if len(f.script) == 0 {
		return &llm.Completion{Message: llm.Message{Role: "assistant"}, FinishReason: "stop"}, nil
	}
	step := f.script[0]
	if len(f.script) > 1 {
		f.script = f.script[1:]
	}
	return step(req)
}

func finalAnswer(text string) func(llm.CompleteRequest) (*llm.Completion, error) {
	return func(llm.CompleteRequest) (*llm.Completion, error) {
		return &llm.Completion{
			Message:      llm.Message{Role: "assistant", Content: text},
			FinishReason: "stop",
		}, nil
	}
}

func toolCallTurn(queries ...string) func(llm.CompleteRequest) (*llm.Completion, error) {
	calls := make([]llm.ToolCall, len(queries))
	for i, query := range queries {
		calls[i] = llm.ToolCall{
			ID:   "call_" + query,
			Type: "function",
			Function: llm.FunctionCall{
				Name:      "web_search",
				Arguments: `{"query":"` + query + `"}`,
			},
		}
	}
	return func(llm.CompleteRequest) (*llm.Completion, error) {
		return &llm.Completion{
			Message:      llm.Message{Role: "assistant", ToolCalls: calls},
			FinishReason: "tool_calls",
		}, nil
	}
}

func failWith(err error) func(llm.CompleteRequest) (*llm.Completion, error) {
	return func(llm.CompleteRequest) (*llm.Completion, error) {
		return nil, err
	}
}

type fakeSearch struct {
	mu      sync.Mutex
	result  search.Result
	queries []string
}

func (f *fakeSearch) Search(ctx context.Context, query string) search.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.result
}

func (f *fakeSearch) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func someResult() search.Result {
	return search.Result{Items: []search.Item{{Title: "5 acres", URL: "https://example.com", Content: "vacant"}}}
}
