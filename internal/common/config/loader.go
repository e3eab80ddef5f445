package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads .env, configs/config.yaml (optional), config.<env>.yaml (optional)
// and the environment, in increasing order of precedence.
func Load() (*Config, error) {
	envFile := loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	if root := findProjectRoot(); root != "" {
		v.AddConfigPath(filepath.Join(root, "configs"))
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional overlay

	cfg, err := finish(v)
	if err != nil {
		return nil, err
	}
	cfg.App.Environment = firstNonEmpty(cfg.App.Environment, env)
	cfg.EnvFile = envFile
	return cfg, nil
}

// LoadFromFile reads an explicit YAML config file instead of searching for one.
func LoadFromFile(path string) (*Config, error) {
	envFile := loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := finish(v)
	if err != nil {
		return nil, err
	}
	cfg.EnvFile = envFile
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// JOBCREW_LLM_MODEL, JOBCREW_SEARCH_MAX_RESULTS, ...
	v.SetEnvPrefix("JOBCREW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() string {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "jobcrew")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "")

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 120000)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.max_iterations", 15)

	v.SetDefault("search.base_url", "https://google.serper.dev")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.timeout", 10000)
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.rate_limit", 2.0)
	v.SetDefault("search.burst", 2)
	v.SetDefault("search.cache_ttl", 3600)
	v.SetDefault("search.user_agent", "JobCrew/1.0 (+https://github.com/jobcrew)")

	v.SetDefault("job_page.timeout", 15000)
	v.SetDefault("job_page.max_chars", 8000)
	v.SetDefault("job_page.user_agent", "JobCrew/1.0 (+https://github.com/jobcrew)")

	v.SetDefault("crew.definitions_path", "")
	v.SetDefault("crew.output_file", "")
	v.SetDefault("crew.verbose", true)

	v.SetDefault("cache.redis.address", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("history.driver", "")
	v.SetDefault("history.path", "jobcrew.db")
	v.SetDefault("history.postgres.host", "localhost")
	v.SetDefault("history.postgres.port", 5432)
	v.SetDefault("history.postgres.database", "jobcrew")
	v.SetDefault("history.postgres.user", "")
	v.SetDefault("history.postgres.password", "")
	v.SetDefault("history.postgres.sslmode", "disable")

	v.SetDefault("notifications.aws.region", "us-east-1")
	v.SetDefault("notifications.email.enabled", false)
	v.SetDefault("notifications.email.from_email", "")
	v.SetDefault("notifications.email.to", []string{})
	v.SetDefault("notifications.sns.enabled", false)
	v.SetDefault("notifications.sns.topic_arn", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("metrics.addr", "")
}

// overrideEmptyConfig applies the conventional, unprefixed variable names
// (the ones a .env written for any OpenAI/Serper tool already has).
func overrideEmptyConfig(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if val := firstNonEmpty(os.Getenv("OPENAI_API_BASE"), os.Getenv("OPENAI_BASE_URL")); val != "" {
		cfg.LLM.BaseURL = val
	}
	if val := os.Getenv("OPENAI_MODEL_NAME"); val != "" {
		cfg.LLM.Model = val
	}

	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = os.Getenv("SERPER_API_KEY")
	}
	if val := os.Getenv("SERPER_API_BASE"); val != "" {
		cfg.Search.BaseURL = val
	}

	if cfg.Cache.Redis.Address == "" {
		cfg.Cache.Redis.Address = os.Getenv("REDIS_ADDRESS")
	}

	if cfg.History.Postgres.User == "" {
		cfg.History.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.History.Postgres.Password == "" {
		cfg.History.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
}

func validateConfig(cfg *Config) error {
	if cfg.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if cfg.LLM.MaxIterations <= 0 {
		return fmt.Errorf("llm.max_iterations must be positive")
	}
	if cfg.Search.BaseURL == "" {
		return fmt.Errorf("search.base_url is required")
	}
	if cfg.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive")
	}

	switch cfg.History.Driver {
	case "":
	case "sqlite":
		if cfg.History.Path == "" {
			return fmt.Errorf("history.path is required for the sqlite driver")
		}
	case "postgres":
		if cfg.History.Postgres.Host == "" || cfg.History.Postgres.Database == "" {
			return fmt.Errorf("history.postgres.host and history.postgres.database are required")
		}
	default:
		return fmt.Errorf("history.driver %q is not supported", cfg.History.Driver)
	}

	if cfg.Notifications.Email.Enabled {
		if cfg.Notifications.Email.FromEmail == "" || len(cfg.Notifications.Email.To) == 0 {
			return fmt.Errorf("notifications.email.from_email and notifications.email.to are required when email is enabled")
		}
	}
	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
