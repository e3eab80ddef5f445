// Package history records job search runs in SQLite or PostgreSQL.
package history

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobcrew/internal/common/errors"
	"jobcrew/internal/jobcrew"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const schema = `CREATE TABLE IF NOT EXISTS job_runs (
	id                  TEXT PRIMARY KEY,
	position            TEXT NOT NULL,
	location            TEXT NOT NULL,
	salary_expectations TEXT NOT NULL,
	employment_type     TEXT NOT NULL,
	status              TEXT NOT NULL,
	report              TEXT NOT NULL DEFAULT '',
	error               TEXT NOT NULL DEFAULT '',
	total_tokens        INTEGER NOT NULL DEFAULT 0,
	started_at          TIMESTAMP NOT NULL,
	finished_at         TIMESTAMP NULL
)`

type Run struct {
	ID          string
	Inputs      jobcrew.Inputs
	Status      string
	Report      string
	Error       string
	TotalTokens int
	StartedAt   time.Time
	FinishedAt  *time.Time
}

type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// New wraps an open database. driver is "sqlite" or "postgres" and selects
// the placeholder style.
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.NewHistoryFailedError("migrate", err)
	}
	return nil
}

// Start records a new run in the running state and returns its id.
func (s *Store) Start(ctx context.Context, in jobcrew.Inputs) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO job_runs (id, position, location, salary_expectations, employment_type, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		id, in.Position, in.Location, in.SalaryExpectations, in.EmploymentType, StatusRunning, s.now(),
	)
	if err != nil {
		return "", errors.NewHistoryFailedError("start", err)
	}
	return id, nil
}

// Finish marks a run completed, or failed when runErr is non-nil.
func (s *Store) Finish(ctx context.Context, id, report string, totalTokens int, runErr error) error {
	status, errText := StatusCompleted, ""
	if runErr != nil {
		status, errText = StatusFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE job_runs SET status = ?, report = ?, error = ?, total_tokens = ?, finished_at = ? WHERE id = ?`),
		status, report, errText, totalTokens, s.now(), id,
	)
	if err != nil {
		return errors.NewHistoryFailedError("finish", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewHistoryFailedError("finish", sql.ErrNoRows)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, position, location, salary_expectations, employment_type, status, report, error,
		        total_tokens, started_at, finished_at
		 FROM job_runs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, errors.NewHistoryFailedError("recent", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Inputs.Position, &r.Inputs.Location, &r.Inputs.SalaryExpectations,
			&r.Inputs.EmploymentType, &r.Status, &r.Report, &r.Error, &r.TotalTokens, &r.StartedAt, &finished); err != nil {
			return nil, errors.NewHistoryFailedError("recent", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewHistoryFailedError("recent", err)
	}
	return runs, nil
}

// rebind converts ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
