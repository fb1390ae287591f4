package engine

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/dealflowhq/dealflow/control-plane/internal/llm"
	"github.com/dealflowhq/dealflow/control-plane/internal/search"
)

func TestClip_RuneBoundary(t *testing.T) {
	s := strings.Repeat("a", 9) + "·" // two-byte rune straddles the cut
	got := clip(s, 10)
	if got != strings.Repeat("a", 9) {
		t.Fatalf("expected clip to back off to the rune boundary, got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("clip produced invalid UTF-8: %q", got)
	}
	if clip("short", 10) != "short" {
		t.Fatal("expected strings under the limit to pass through")
	}
}

func testEngine() *Engine {
	return &Engine{
		RichTimeout:        5 * time.Second,
		HistoryBudgetChars: 6000,
		RetryBudgetDivisor: 3,
		MaxToolIterations:  8,
	}
}

func userTurn(content string) []llm.Message {
	return []llm.Message{{Role: "user", Content: content}}
}

func TestAnswer_RichSuccess(t *testing.T) {
	rich := &fakeRich{model: "claude-sonnet-4-6", text: "here are the deals"}
	tool := &fakeTool{model: "llama"}
	e := testEngine()
	e.Rich = rich
	e.Tool = tool

	answer := e.Answer(context.Background(), Request{System: "s", History: userTurn("find land"), MaxTokens: 2000})
	if answer.Stage != StageRich {
		t.Fatalf("expected rich stage, got %s", answer.Stage)
	}
	if answer.Text != "here are the deals" || answer.Model != "claude-sonnet-4-6" {
		t.Errorf("unexpected answer: %+v", answer)
	}
	if len(tool.requests) != 0 {
		t.Error("tool provider should not be contacted after rich success")
	}
}

func TestAnswer_RichRateLimitedFallsToToolLoop(t *testing.T) {
	rich := &fakeRich{model: "claude", err: llm.RateLimitedError{Provider: "anthropic"}}
	tool := &fakeTool{model: "llama-3.3-70b-versatile", script: []func(llm.CompleteRequest) (*llm.Completion, error){
		finalAnswer("from groq"),
	}}
	e := testEngine()
	e.Rich = rich
	e.Tool = tool
	e.Search = &fakeSearch{}

	answer := e.Answer(context.Background(), Request{System: "s", History: userTurn("find land"), MaxTokens: 2000})
	if answer.Stage != StageToolLoop {
		t.Fatalf("expected tool loop stage, got %s", answer.Stage)
	}
	if answer.Model != "groq/llama-3.3-70b-versatile" {
		t.Errorf("unexpected model label: %s", answer.Model)
	}
	if rich.calls != 1 {
		t.Errorf("rich provider should be called exactly once, got %d", rich.calls)
	}
}

func TestAnswer_TokenBudgetRetriesWithReducedHistory(t *testing.T) {
	tool := &fakeTool{model: "llama", script: []func(llm.CompleteRequest) (*llm.Completion, error){
		failWith(llm.TokenBudgetError{Provider: "groq", Detail: "Request too large"}),
		finalAnswer("fits now"),
	}}
	e := testEngine()
	e.Tool = tool
	e.Search = &fakeSearch{}

	history := turns(40, 300)
	answer := e.Answer(context.Background(), Request{System: "s", History: history, MaxTokens: 2000})
	if answer.Stage != StageToolLoop || answer.Text != "fits now" {
		t.Fatalf("unexpected answer: %+v", answer)
	}
	if len(tool.requests) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(tool.requests))
	}
	if len(tool.requests[1].Messages) >= len(tool.requests[0].Messages) {
		t.Errorf("retry should carry a shorter history: %d vs %d",
			len(tool.requests[1].Messages), len(tool.requests[0].Messages))
	}
}

func TestAnswer_ToolLoopBlockedFallsToSearchAndFormat(t *testing.T) {
	tool := &fakeTool{model: "llama", script: []func(llm.CompleteRequest) (*llm.Completion, error){
		failWith(llm.RateLimitedError{Provider: "groq"}),
		finalAnswer("<<<DEAL>>>{...}<<<END_DEAL>>> summary"),
	}}
	searcher := &fakeSearch{result: someResult()}
	e := testEngine()
	e.Tool = tool
	e.Search = searcher

	longQuestion := strings.Repeat("q", 400)
	answer := e.Answer(context.Background(), Request{System: "s", History: userTurn(longQuestion), MaxTokens: 2000})
	if answer.Stage != StageSearchFormat {
		t.Fatalf("expected search_format stage, got %s", answer.Stage)
	}
	if answer.Model != "tavily+groq/format" {
		t.Errorf("unexpected model label: %s", answer.Model)
	}
	if answer.Text != "<<<DEAL>>>{...}<<<END_DEAL>>> summary" {
		t.Errorf("unexpected text: %q", answer.Text)
	}

	queries := searcher.seen()
	if len(queries) != 1 || len(queries[0]) != 300 {
		t.Errorf("search query should be the user question clipped to 300 chars, got %d queries", len(queries))
	}

	// The formatting call is a single fresh turn with no tools declared.
	format := tool.requests[1]
	if len(format.Tools) != 0 {
		t.Error("formatting call should not declare tools")
	}
	if len(format.Messages) != 1 || format.Messages[0].Role != "user" {
		t.Error("formatting call should be a single user turn")
	}
	if !strings.Contains(format.Messages[0].Content, "SEARCH RESULTS:") {
		t.Error("formatting prompt should embed the search results")
	}
}

func TestAnswer_ToolLoopBlockedNoSearch(t *testing.T) {
	tool := &fakeTool{model: "llama", script: []func(llm.CompleteRequest) (*llm.Completion, error){
		failWith(llm.RateLimitedError{Provider: "groq"}),
	}}
	e := testEngine()
	e.Tool = tool

	answer := e.Answer(context.Background(), Request{System: "s", History: userTurn("hi"), MaxTokens: 2000})
	if answer.Stage != StageUnavailable {
		t.Fatalf("expected unavailable stage, got %s", answer.Stage)
	}
	if !strings.Contains(answer.Text, "start a new chat") {
		t.Errorf("unexpected message: %q", answer.Text)
	}
}

func TestAnswer_SearchOnlyNoFormatter(t *testing.T) {
	searcher := &fakeSearch{result: someResult()}
	e := testEngine()
	e.Search = searcher

	answer := e.Answer(context.Background(), Request{System: "s", History: userTurn("find land"), MaxTokens: 2000})
	if answer.Stage != StageRawSearch {
		t.Fatalf("expected raw_search stage, got %s", answer.Stage)
	}
	if !strings.HasPrefix(answer.Text, "Search results (AI formatting unavailable):") {
		t.Errorf("unexpected text: %q", answer.Text)
	}
	if !strings.Contains(answer.Text, "TITLE: 5 acres") {
		t.Error("raw search text should contain rendered results")
	}
}

func TestAnswer_SearchDown(t *testing.T) {
	tool := &fakeTool{model: "llama", script: []func(llm.CompleteRequest) (*llm.Completion, error){
		failWith(llm.TokenBudgetError{Provider: "groq"}),
		failWith(llm.TokenBudgetError{Provider: "groq"}),
	}}
	e := testEngine()
	e.Tool = tool
	e.Search = &fakeSearch{} // empty result

	answer := e.Answer(context.Background(), Request{System: "s", History: userTurn("hi"), MaxTokens: 2000})
	if answer.Stage != StageUnavailable {
		t.Fatalf("expected unavailable stage, got %s", answer.Stage)
	}
	if !strings.Contains(answer.Text, "Search is unavailable") {
		t.Errorf("unexpected message: %q", answer.Text)
	}
}

func TestAnswer_CreditExhaustedNoOtherStages(t *testing.T) {
	rich := &fakeRich{model: "claude", err: llm.CreditExhaustedError{Provider: "anthropic", Detail: "balance"}}
	e := testEngine()
	e.Rich = rich

	answer := e.Answer(context.Background(), Request{System: "s", History: userTurn("hi"), MaxTokens: 2000})
	if answer.Stage != StageUnavailable {
		t.Fatalf("expected unavailable stage, got %s", answer.Stage)
	}
	if !strings.Contains(answer.Text, "No AI provider configured") {
		t.Errorf("unexpected message: %q", answer.Text)
	}
}

func TestAnswer_NothingConfigured(t *testing.T) {
	answer := testEngine().Answer(context.Background(), Request{System: "s", History: userTurn("hi")})
	if answer.Stage != StageUnavailable {
		t.Fatalf("expected unavailable stage, got %s", answer.Stage)
	}
	if answer.Model != "" {
		t.Errorf("expected no model label, got %q", answer.Model)
	}
}

func TestAnswer_EmptyToolLoopTextGetsFallbackMessage(t *testing.T) {
	tool := &fakeTool{model: "llama", script: []func(llm.CompleteRequest) (*llm.Completion, error){
		finalAnswer(""),
	}}
	e := testEngine()
	e.Tool = tool

	answer := e.Answer(context.Background(), Request{System: "s", History: userTurn("hi"), MaxTokens: 2000})
	if !strings.Contains(answer.Text, "No response received") {
		t.Errorf("unexpected text: %q", answer.Text)
	}
}

func TestAnswer_EmitsStageEvents(t *testing.T) {
	rich := &fakeRich{model: "claude", err: llm.RateLimitedError{Provider: "anthropic"}}
	tool := &fakeTool{model: "llama", script: []func(llm.CompleteRequest) (*llm.Completion, error){
		finalAnswer("ok"),
	}}
	e := testEngine()
	e.Rich = rich
	e.Tool = tool

	var stages []string
	e.Answer(context.Background(), Request{
		System:  "s",
		History: userTurn("hi"),
		Events: func(kind string, payload map[string]any) {
			if kind == "stage" {
				stages = append(stages, payload["stage"].(string))
			}
		},
	})
	if len(stages) != 2 || stages[0] != StageRich || stages[1] != StageToolLoop {
		t.Errorf("unexpected stage events: %v", stages)
	}
}

var _ Searcher = (*search.Client)(nil)
