// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	LLM           LLMConfig          `mapstructure:"llm"`
	Search        SearchConfig       `mapstructure:"search"`
	JobPage       JobPageConfig      `mapstructure:"job_page"`
	Crew          CrewConfig         `mapstructure:"crew"`
	Cache         CacheConfig        `mapstructure:"cache"`
	History       HistoryConfig      `mapstructure:"history"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`

	// EnvFile is the .env file that was loaded, if any.
	EnvFile string `mapstructure:"-"`
}

// --- Core App Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// LLMConfig points at an OpenAI-compatible chat completion API.
type LLMConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
	MaxRetries    int    `mapstructure:"max_retries"`
	MaxTokens     int    `mapstructure:"max_tokens"`
	MaxIterations int    `mapstructure:"max_iterations"`
}

// SearchConfig configures the Serper web search used by the job search tool.
type SearchConfig struct {
	BaseURL    string  `mapstructure:"base_url"`
	APIKey     string  `mapstructure:"api_key"`
	Timeout    int     `mapstructure:"timeout"` // milliseconds
	MaxResults int     `mapstructure:"max_results"`
	RateLimit  float64 `mapstructure:"rate_limit"` // requests per second
	Burst      int     `mapstructure:"burst"`
	CacheTTL   int     `mapstructure:"cache_ttl"` // seconds
	UserAgent  string  `mapstructure:"user_agent"`
}

type JobPageConfig struct {
	Timeout   int    `mapstructure:"timeout"` // milliseconds
	MaxChars  int    `mapstructure:"max_chars"`
	UserAgent string `mapstructure:"user_agent"`
}

type CrewConfig struct {
	DefinitionsPath string `mapstructure:"definitions_path"`
	OutputFile      string `mapstructure:"output_file"`
	Verbose         bool   `mapstructure:"verbose"`
}

// CacheConfig enables the Redis search cache when Address is set.
type CacheConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// HistoryConfig enables run history. Driver is "sqlite", "postgres" or empty (disabled).
type HistoryConfig struct {
	Driver   string         `mapstructure:"driver"`
	Path     string         `mapstructure:"path"` // sqlite file
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// NotificationConfig holds settings for delivering the finished report.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Email struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		To        []string `mapstructure:"to"`
	} `mapstructure:"email"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// Enabled reports whether any delivery channel is switched on.
func (n NotificationConfig) Enabled() bool {
	return n.Email.Enabled || n.SNS.Enabled
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}
