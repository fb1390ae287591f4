package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ControlPlanePort   string
	ControlPlaneURL    string
	PostgresURL        string
	TemporalAddress    string
	TemporalTaskQueue  string
	AnthropicAPIKey    string
	AnthropicModel     string
	AnthropicBaseURL   string
	GroqAPIKey         string
	GroqModel          string
	GroqBaseURL        string
	TavilyAPIKey       string
	TavilyBaseURL      string
	HistoryBudgetChars int
	RetryBudgetDivisor int
	MaxToolIterations  int
	ChatMaxTokens      int
	ScanMaxTokens      int
	SearchMaxResults   int
	RichTimeoutSeconds int
	MinLandAcres       float64
	AcreageFilterMode  string
}

func Load() Config {
	controlPlanePort := getEnv("CONTROL_PLANE_PORT", "8080")
	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = buildPostgresURL()
	}
	return Config{
		ControlPlanePort:   controlPlanePort,
		ControlPlaneURL:    getEnv("CONTROL_PLANE_URL", "http://localhost:"+controlPlanePort),
		PostgresURL:        postgresURL,
		TemporalAddress:    getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue:  getEnv("TEMPORAL_TASK_QUEUE", "dealflow-scans"),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:     getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-6"),
		AnthropicBaseURL:   getEnv("ANTHROPIC_BASE_URL", ""),
		GroqAPIKey:         getEnv("GROQ_API_KEY", ""),
		GroqModel:          getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		GroqBaseURL:        getEnv("GROQ_BASE_URL", ""),
		TavilyAPIKey:       getEnv("TAVILY_API_KEY", ""),
		TavilyBaseURL:      getEnv("TAVILY_BASE_URL", ""),
		HistoryBudgetChars: getEnvInt("HISTORY_BUDGET_CHARS", 6000),
		RetryBudgetDivisor: getEnvInt("RETRY_BUDGET_DIVISOR", 3),
		MaxToolIterations:  getEnvInt("MAX_TOOL_ITERATIONS", 8),
		ChatMaxTokens:      getEnvInt("CHAT_MAX_TOKENS", 2000),
		ScanMaxTokens:      getEnvInt("SCAN_MAX_TOKENS", 3000),
		SearchMaxResults:   getEnvInt("SEARCH_MAX_RESULTS", 6),
		RichTimeoutSeconds: getEnvInt("RICH_TIMEOUT_SECONDS", 20),
		MinLandAcres:       getEnvFloat("MIN_LAND_ACRES", 2.0),
		AcreageFilterMode:  getEnv("ACREAGE_FILTER_MODE", "annotate"),
	}
}

// HasAnthropic treats a key without the sk-ant prefix as absent so that a
// placeholder value disables the stage instead of failing upstream.
func (c Config) HasAnthropic() bool {
	return strings.HasPrefix(c.AnthropicAPIKey, "sk-ant")
}

func (c Config) HasGroq() bool {
	return strings.TrimSpace(c.GroqAPIKey) != ""
}

func (c Config) HasTavily() bool {
	return strings.TrimSpace(c.TavilyAPIKey) != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "dealflow")
	password := getEnv("POSTGRES_PASSWORD", "dealflow")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "dealflow")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}
