package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"jobcrew/internal/common/config"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLClient wraps the run-history database, SQLite or PostgreSQL.
type SQLClient struct {
	DB     *sql.DB
	Driver string
}

// NewSQL opens the database selected by cfg.Driver.
func NewSQL(cfg config.HistoryConfig) (*SQLClient, error) {
	switch cfg.Driver {
	case "sqlite":
		// modernc sqlite DSN: file:foo.db?_pragma=busy_timeout(5000)
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", cfg.Path)
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1) // single writer
		db.SetConnMaxLifetime(5 * time.Minute)
		return &SQLClient{DB: db, Driver: "sqlite"}, nil

	case "postgres":
		db, err := sql.Open("postgres", cfg.Postgres.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(5 * time.Minute)
		return &SQLClient{DB: db, Driver: "postgres"}, nil

	default:
		return nil, fmt.Errorf("unsupported history driver %q", cfg.Driver)
	}
}

func (c *SQLClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *SQLClient) Close() error {
	if c != nil && c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
