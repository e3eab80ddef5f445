// internal/tools/web-search/config.go
package websearch

import (
	"time"

	"jobcrew/internal/common/config"
)

type Config struct {
	SearchAPIBaseURL string
	SearchAPIKey     string
	Timeout          time.Duration
	MaxResults       int
	RateLimit        float64
	Burst            int
	CacheTTL         time.Duration
	UserAgent        string
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		SearchAPIBaseURL: cfg.Search.BaseURL,
		SearchAPIKey:     cfg.Search.APIKey,
		Timeout:          config.GetDuration(cfg.Search.Timeout),
		MaxResults:       cfg.Search.MaxResults,
		RateLimit:        cfg.Search.RateLimit,
		Burst:            cfg.Search.Burst,
		CacheTTL:         time.Duration(cfg.Search.CacheTTL) * time.Second,
		UserAgent:        cfg.Search.UserAgent,
	}
}
