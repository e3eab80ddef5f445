// internal/tools/job-page/config.go
package jobpage

import (
	"time"

	"jobcrew/internal/common/config"
)

type Config struct {
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
	RateLimit float64
	Burst     int
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout:   config.GetDuration(cfg.JobPage.Timeout),
		MaxChars:  cfg.JobPage.MaxChars,
		UserAgent: cfg.JobPage.UserAgent,
		RateLimit: cfg.Search.RateLimit,
		Burst:     cfg.Search.Burst,
	}
}
