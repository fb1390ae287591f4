package engine

import (
	"time"

	"github.com/dealflowhq/dealflow/control-plane/internal/config"
	"github.com/dealflowhq/dealflow/control-plane/internal/llm"
	"github.com/dealflowhq/dealflow/control-plane/internal/search"
)

// Build wires an Engine from process configuration. Stages without a
// credential stay nil, which deterministically disables them.
func Build(cfg config.Config) *Engine {
	e := &Engine{
		RichTimeout:        time.Duration(cfg.RichTimeoutSeconds) * time.Second,
		HistoryBudgetChars: cfg.HistoryBudgetChars,
		RetryBudgetDivisor: cfg.RetryBudgetDivisor,
		MaxToolIterations:  cfg.MaxToolIterations,
	}
	if cfg.HasAnthropic() {
		e.Rich = llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			BaseURL: cfg.AnthropicBaseURL,
		})
	}
	if cfg.HasGroq() {
		e.Tool = llm.NewGroqClient(llm.GroqConfig{
			APIKey:  cfg.GroqAPIKey,
			Model:   cfg.GroqModel,
			BaseURL: cfg.GroqBaseURL,
		})
	}
	if cfg.HasTavily() {
		e.Search = search.NewClient(search.Config{
			APIKey:     cfg.TavilyAPIKey,
			BaseURL:    cfg.TavilyBaseURL,
			MaxResults: cfg.SearchMaxResults,
		})
	}
	return e
}
