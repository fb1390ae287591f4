package engine

import "github.com/dealflowhq/dealflow/control-plane/internal/llm"

// TrimHistory keeps the newest contiguous run of turns whose combined
// content length fits budgetChars. The most recent turn is always kept even
// when it alone exceeds the budget. Turns are never reordered or rewritten.
func TrimHistory(history []llm.Message, budgetChars int) []llm.Message {
	if len(history) == 0 {
		return history
	}
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		length := len(history[i].Content)
		if used+length > budgetChars && start < len(history) {
			break
		}
		start = i
		used += length
	}
	return history[start:]
}
