package llm

import "time"

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	MaxTokens  int
}

const DefaultModel = "gpt-4o-mini"
