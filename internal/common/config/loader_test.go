package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "OPENAI_API_BASE", "OPENAI_BASE_URL", "OPENAI_MODEL_NAME",
		"SERPER_API_KEY", "SERPER_API_BASE", "REDIS_ADDRESS", "DB_USER", "DB_PASSWORD",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromFile_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "app:\n  name: jobcrew-test\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "jobcrew-test", cfg.App.Name)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 15, cfg.LLM.MaxIterations)
	assert.Equal(t, "https://google.serper.dev", cfg.Search.BaseURL)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Empty(t, cfg.Crew.OutputFile)
	assert.Equal(t, "JobCrew/1.0 (+https://github.com/jobcrew)", cfg.Search.UserAgent)
	assert.False(t, cfg.Cache.Redis.Enabled())
	assert.False(t, cfg.Notifications.Enabled())
	assert.Equal(t, "", cfg.History.Driver)
	assert.Equal(t, "stderr", cfg.Logging.Output)
}

func TestLoadFromFile_WellKnownEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL_NAME", "gpt-4o")
	t.Setenv("OPENAI_API_BASE", "http://localhost:1234/v1")
	t.Setenv("SERPER_API_KEY", "serper-test")

	cfg, err := LoadFromFile(writeConfig(t, "crew:\n  verbose: false\n"))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "http://localhost:1234/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "serper-test", cfg.Search.APIKey)
	assert.False(t, cfg.Crew.Verbose)
}

func TestLoadFromFile_PrefixedEnvAndExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("JOBCREW_SEARCH_MAX_RESULTS", "7")
	t.Setenv("REPORT_DIR", "/tmp/reports")

	cfg, err := LoadFromFile(writeConfig(t, "crew:\n  output_file: ${REPORT_DIR}/jobs_report.md\n"))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Search.MaxResults)
	assert.Equal(t, "/tmp/reports/jobs_report.md", cfg.Crew.OutputFile)
}

func TestLoadFromFile_Validation(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown history driver",
			content: "history:\n  driver: mongo\n",
			wantErr: "history.driver",
		},
		{
			name:    "email without recipients",
			content: "notifications:\n  email:\n    enabled: true\n    from_email: a@b.c\n",
			wantErr: "notifications.email",
		},
		{
			name:    "sns without topic",
			content: "notifications:\n  sns:\n    enabled: true\n",
			wantErr: "topic_arn",
		},
		{
			name:    "non-positive iterations",
			content: "llm:\n  max_iterations: 0\n",
			wantErr: "max_iterations",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "jobcrew", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=jobcrew sslmode=disable", p.GetDSN())
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
