package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Provider failures are normalized into this closed set at the HTTP
// boundary; the cascade only ever branches on these types, never on raw
// provider error shapes.

type RateLimitedError struct {
	Provider string
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate limited", e.Provider)
}

type CreditExhaustedError struct {
	Provider string
	Detail   string
}

func (e CreditExhaustedError) Error() string {
	return fmt.Sprintf("%s credits exhausted: %s", e.Provider, e.Detail)
}

type TokenBudgetError struct {
	Provider string
	Detail   string
}

func (e TokenBudgetError) Error() string {
	return fmt.Sprintf("%s rejected payload size: %s", e.Provider, e.Detail)
}

type ProtocolError struct {
	Provider string
	Detail   string
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("%s returned unexpected response: %s", e.Provider, e.Detail)
}

func IsRateLimited(err error) bool {
	var target RateLimitedError
	return errors.As(err, &target)
}

func IsCreditExhausted(err error) bool {
	var target CreditExhaustedError
	return errors.As(err, &target)
}

func IsTokenBudget(err error) bool {
	var target TokenBudgetError
	return errors.As(err, &target)
}

func isTokenBudgetMessage(message string) bool {
	for _, marker := range []string{"too large", "tokens per minute", "TPM", "Request too large"} {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

func isCreditMessage(errType string, message string) bool {
	if errType == "authentication_error" {
		return true
	}
	lower := strings.ToLower(message)
	return strings.Contains(lower, "credit") || strings.Contains(lower, "billing")
}
