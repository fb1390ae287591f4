package engine

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dealflowhq/dealflow/control-plane/internal/llm"
)

// Cascade stages, in attempt order.
const (
	StageRich         = "rich"
	StageToolLoop     = "tool_loop"
	StageSearchFormat = "search_format"
	StageRawSearch    = "raw_search"
	StageUnavailable  = "unavailable"
)

// User-facing degraded-mode messages. These are the only texts surfaced when
// every provider path is blocked; raw provider errors never reach a caller.
const (
	busyMessage         = "⏳ AI is busy. Please start a new chat to clear history, then try again."
	noResponseMessage   = "⚠️ No response received. Please try again."
	searchDownMessage   = "⚠️ Search is unavailable right now. Please try again in a moment."
	unconfiguredMessage = "⚠️ No AI provider configured. Set ANTHROPIC_API_KEY or GROQ_API_KEY."
)

const modelSearchFormat = "tavily+groq/format"

// RichGenerator is the provider with a native server-side search tool: one
// request, no caller-side loop.
type RichGenerator interface {
	Model() string
	Generate(ctx context.Context, system string, messages []llm.Message, maxTokens int) (string, error)
}

// Request is one orchestration run. The engine holds no state across runs.
type Request struct {
	TraceID     string
	System      string
	History     []llm.Message
	MaxTokens   int
	Temperature float64
	// Events receives progress notifications when set. Payload keys are
	// event-specific; the engine never blocks on the callback.
	Events func(kind string, payload map[string]any)
}

type Answer struct {
	Text  string
	Model string
	Stage string
}

// Engine runs the provider cascade: rich provider, then the tool-calling
// loop, then search-and-format, then raw search, then a fixed instructional
// message. Stages advance one way only; a nil provider disables its stage.
type Engine struct {
	Rich   RichGenerator
	Tool   ToolCompleter
	Search Searcher

	RichTimeout        time.Duration
	HistoryBudgetChars int
	RetryBudgetDivisor int
	MaxToolIterations  int
}

func (e *Engine) Answer(ctx context.Context, req Request) Answer {
	emit := req.Events
	if emit == nil {
		emit = func(string, map[string]any) {}
	}
	lastUser := lastUserContent(req.History)

	if e.Rich != nil {
		emit("stage", map[string]any{"stage": StageRich, "model": e.Rich.Model()})
		richCtx, cancel := context.WithTimeout(ctx, e.richTimeout())
		text, err := e.Rich.Generate(richCtx, req.System, req.History, req.MaxTokens)
		cancel()
		if err == nil {
			return Answer{Text: text, Model: e.Rich.Model(), Stage: StageRich}
		}
		switch {
		case llm.IsRateLimited(err):
			log.Printf("[%s] rich provider rate limited, advancing", req.TraceID)
		case llm.IsCreditExhausted(err):
			log.Printf("[%s] rich provider credits exhausted, advancing", req.TraceID)
		default:
			log.Printf("[%s] rich provider error, advancing: %v", req.TraceID, err)
		}
	}

	if e.Tool != nil {
		emit("stage", map[string]any{"stage": StageToolLoop, "model": e.Tool.Model()})
		loop := &ToolLoop{
			Provider:      e.Tool,
			Search:        e.Search,
			MaxIterations: e.MaxToolIterations,
			MaxTokens:     req.MaxTokens,
			Temperature:   req.Temperature,
			OnSearch: func(query string) {
				emit("search", map[string]any{"query": query})
			},
		}

		history := TrimHistory(req.History, e.HistoryBudgetChars)
		text, err := loop.Run(ctx, req.System, history)
		if err != nil && llm.IsTokenBudget(err) {
			// One retry with a fraction of the budget, then give up on
			// this stage.
			log.Printf("[%s] tool loop over token budget, retrying with reduced history", req.TraceID)
			history = TrimHistory(req.History, e.HistoryBudgetChars/e.retryDivisor())
			text, err = loop.Run(ctx, req.System, history)
		}
		if err == nil {
			if text == "" {
				text = noResponseMessage
			}
			return Answer{Text: text, Model: "groq/" + e.Tool.Model(), Stage: StageToolLoop}
		}
		log.Printf("[%s] tool loop blocked, falling back to search: %v", req.TraceID, err)
		if e.Search == nil {
			return Answer{Text: busyMessage, Stage: StageUnavailable}
		}
		return e.searchAndFormat(ctx, emit, req.System, lastUser)
	}

	if e.Search != nil {
		return e.searchAndFormat(ctx, emit, req.System, lastUser)
	}

	return Answer{Text: unconfiguredMessage, Stage: StageUnavailable}
}

// searchAndFormat is the degraded path: one direct search on the latest user
// query with history and system prompt discarded, then a single formatting
// call if the tool provider is reachable.
func (e *Engine) searchAndFormat(ctx context.Context, emit func(string, map[string]any), system, userMessage string) Answer {
	emit("stage", map[string]any{"stage": StageSearchFormat})
	query := clip(userMessage, 300)
	result := e.Search.Search(ctx, query)
	if result.Empty() {
		return Answer{Text: searchDownMessage, Stage: StageUnavailable}
	}
	searchText := result.Text()

	if e.Tool == nil {
		return Answer{
			Text:  "Search results (AI formatting unavailable):\n\n" + searchText,
			Model: modelSearchFormat,
			Stage: StageRawSearch,
		}
	}

	formatted, err := e.formatResults(ctx, system, userMessage, searchText)
	if err != nil || formatted == "" {
		if err != nil {
			log.Printf("formatting model unavailable, returning raw search: %v", err)
		}
		return Answer{
			Text:  "I found search results but couldn't format them. Here's what was found:\n\n" + clip(searchText, 2000),
			Model: modelSearchFormat,
			Stage: StageRawSearch,
		}
	}
	return Answer{Text: formatted, Model: modelSearchFormat, Stage: StageSearchFormat}
}

func (e *Engine) formatResults(ctx context.Context, system, userMessage, searchText string) (string, error) {
	prompt := `You are a real estate deal analyst. The user asked: "` + userMessage + `"

Below are real web search results. Extract every property that matches what the user asked for and format each one as a <<<DEAL>>> block. Only include properties with real numbered street addresses (not intersections). Only include current listings.

SEARCH RESULTS:
` + clip(searchText, 10000) + `

` + dealFormatRules(system) + `

Output only deal blocks plus a brief summary sentence. Do not invent data — use only what the search results contain.`

	completion, err := e.Tool.Complete(ctx, llm.CompleteRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens:   2000,
		Temperature: 0.1,
	})
	if err != nil {
		return "", err
	}
	return completion.Message.Content, nil
}

const defaultDealFormat = `Format each real property as:
<<<DEAL>>>
{ "address":"full numbered street address","details":"size/type/details","status":"strong","statusLabel":"Strong Opportunity","isQCT":false,"isOZ":false,"riskScore":"Low","feasibilityScore":8,"dealSignals":["signal"],"source":"source name","listingUrl":"url","owner":{"name":"","address":"","apn":"","ownerType":"","yearsOwned":""},"financials":[{"label":"Asking","value":"$X"},{"label":"Per Acre","value":"$X"},{"label":"Est. Units","value":"X"},{"label":"Land %","value":"X%","highlight":true}] }
<<<END_DEAL>>>`

// dealFormatRules lifts the output-format section out of the caller's system
// prompt so the formatting call carries the contract without the full prompt.
func dealFormatRules(system string) string {
	idx := strings.Index(system, "<<<DEAL>>>")
	if idx == -1 {
		return defaultDealFormat
	}
	start := idx - 200
	if start < 0 {
		start = 0
	}
	return system[start:]
}

func lastUserContent(history []llm.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return history[i].Content
		}
	}
	return ""
}

// clip shortens s to at most max bytes without splitting a rune.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func (e *Engine) richTimeout() time.Duration {
	if e.RichTimeout <= 0 {
		return 20 * time.Second
	}
	return e.RichTimeout
}

func (e *Engine) retryDivisor() int {
	if e.RetryBudgetDivisor <= 0 {
		return 3
	}
	return e.RetryBudgetDivisor
}
