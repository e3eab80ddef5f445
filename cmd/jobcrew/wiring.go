// cmd/jobcrew/wiring.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jobcrew/internal/common/config"
	"jobcrew/internal/common/credentials"
	"jobcrew/internal/common/database"
	"jobcrew/internal/common/errors"
	"jobcrew/internal/common/llm"
	"jobcrew/internal/common/logger"
	"jobcrew/internal/common/notify"
	"jobcrew/internal/crew"
	"jobcrew/internal/history"
	"jobcrew/internal/jobcrew"
	jobpage "jobcrew/internal/tools/job-page"
	websearch "jobcrew/internal/tools/web-search"
)

// services holds everything that outlives a single crew run.
type services struct {
	cfg      *config.Config
	zapLog   *zap.Logger
	log      logger.Logger
	redis    *database.RedisClient
	sql      *database.SQLClient
	history  *history.Store
	notifier *notify.Notifier
	server   *http.Server
	closers  []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) (*zap.Logger, logger.Logger, error) {
	zapLog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return nil, nil, err
	}
	return zapLog, logger.NewZapAdapter(zapLog), nil
}

// setupServices connects the optional backends. A backend that cannot be
// reached is logged and left disabled; the job search still runs without it.
func setupServices(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger) *services {
	s := &services{cfg: cfg, zapLog: zapLog, log: log}

	if cfg.Metrics.Addr != "" {
		s.server = startMetricsServer(cfg.Metrics.Addr, log)
		s.closers = append(s.closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(shutdownCtx)
		})
	}

	if cfg.Cache.Redis.Enabled() {
		rc := database.NewRedis(cfg.Cache.Redis)
		err := retryWithBackoff(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return rc.Ping(pingCtx)
		}, 3, 200*time.Millisecond, zapLog, "Redis connection")
		if err != nil {
			log.WithError(err).Warn("search cache disabled", nil)
			_ = rc.Close()
		} else {
			s.redis = rc
			s.closers = append(s.closers, func() { _ = rc.Close() })
		}
	}

	if cfg.History.Driver != "" {
		if err := s.openHistory(ctx); err != nil {
			log.WithError(err).Warn("run history disabled", map[string]interface{}{
				"driver": cfg.History.Driver,
			})
		}
	}

	notifier, err := notify.NewFromConfig(ctx, cfg.Notifications, log)
	if err != nil {
		log.WithError(err).Warn("report notifications disabled", nil)
	} else {
		s.notifier = notifier
	}

	return s
}

func (s *services) openHistory(ctx context.Context) error {
	client, err := database.NewSQL(s.cfg.History)
	if err != nil {
		return err
	}
	attempts := 1 + errors.GetRetryCount(errors.ErrCodeHistoryFailed)
	err = retryWithBackoff(func() error {
		return client.Ping(ctx)
	}, attempts, 200*time.Millisecond, s.zapLog, "history database connection")
	if err != nil {
		_ = client.Close()
		return err
	}

	store := history.New(client.DB, client.Driver)
	if err := store.Migrate(ctx); err != nil {
		_ = client.Close()
		return err
	}
	s.sql = client
	s.history = store
	s.closers = append(s.closers, func() { _ = client.Close() })
	return nil
}

// redisClient returns the raw client for the search cache, or nil.
func (s *services) redisClient() *redis.Client {
	if s.redis == nil {
		return nil
	}
	return s.redis.Client
}

// newRunner wires the model and the tools into the job crew. Keys resolved
// from the keyring take effect here when the environment has none.
func (s *services) newRunner(_ context.Context, creds credentials.Result, opts jobcrew.Options) (crewRunner, error) {
	llmCfg := s.cfg.LLM
	if llmCfg.APIKey == "" {
		llmCfg.APIKey = creds.Values[credentials.OpenAIAPIKey]
	}
	model := llm.NewClient(llm.Config{
		BaseURL:    llmCfg.BaseURL,
		APIKey:     llmCfg.APIKey,
		Model:      llmCfg.Model,
		Timeout:    config.GetDuration(llmCfg.Timeout),
		MaxRetries: llmCfg.MaxRetries,
		MaxTokens:  llmCfg.MaxTokens,
	}, s.log)

	searchCfg := websearch.LoadConfig(s.cfg)
	if searchCfg.SearchAPIKey == "" {
		searchCfg.SearchAPIKey = creds.Values[credentials.SerperAPIKey]
	}
	tools := map[string]crew.Tool{
		jobcrew.ToolJobSearch: websearch.NewTool(searchCfg, s.redisClient(), &webSearchLoggerAdapter{s.log}),
		jobcrew.ToolJobPage:   jobpage.NewTool(jobpage.LoadConfig(s.cfg), &jobPageLoggerAdapter{s.log}),
	}

	s.log.Debug("credentials resolved", map[string]interface{}{"sources": creds.Sources})
	s.log.Info("crew configured", map[string]interface{}{
		"model":        model.Model(),
		"searchCache":  s.redis != nil,
		"history":      s.history != nil,
		"notification": s.notifier != nil,
	})

	jc, err := jobcrew.New(model, tools, opts, s.log)
	if err != nil {
		return nil, err
	}
	return jc, nil
}

func startMetricsServer(addr string, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics server listening", map[string]interface{}{"addr": addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	return server
}

// retryWithBackoff runs operation until it succeeds, doubling the delay
// between attempts.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// Logger adapters for packages whose Logger.With returns their own interface.

type webSearchLoggerAdapter struct {
	logger.Logger
}

func (a *webSearchLoggerAdapter) With(fields map[string]interface{}) websearch.Logger {
	return &webSearchLoggerAdapter{a.Logger.With(fields)}
}

type jobPageLoggerAdapter struct {
	logger.Logger
}

func (a *jobPageLoggerAdapter) With(fields map[string]interface{}) jobpage.Logger {
	return &jobPageLoggerAdapter{a.Logger.With(fields)}
}
