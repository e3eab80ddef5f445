package history

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobcrew/internal/common/config"
	"jobcrew/internal/common/database"
	"jobcrew/internal/common/errors"
	"jobcrew/internal/jobcrew"
)

func sampleInputs() jobcrew.Inputs {
	return jobcrew.Inputs{
		Position:           "Go Engineer",
		Location:           "Remote",
		SalaryExpectations: "$120k",
		EmploymentType:     "Full-time",
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: "postgres"}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &Store{driver: "sqlite"}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestStart_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	in := sampleInputs()
	mock.ExpectExec(`(?s)` + regexp.QuoteMeta(`INSERT INTO job_runs`) + `.*VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)`).
		WithArgs(sqlmock.AnyArg(), in.Position, in.Location, in.SalaryExpectations, in.EmploymentType, StatusRunning, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := New(db, "postgres")
	id, err := store.Start(context.Background(), in)
	require.NoError(t, err)

	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinish_Statuses(t *testing.T) {
	tests := []struct {
		name       string
		runErr     error
		wantStatus string
		wantErrTxt string
	}{
		{"completed", nil, StatusCompleted, ""},
		{"failed", stderrors.New("LLM_TIMEOUT: timed out"), StatusFailed, "LLM_TIMEOUT: timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectExec(`UPDATE job_runs SET status = \$1`).
				WithArgs(tt.wantStatus, "# Report", tt.wantErrTxt, 42, sqlmock.AnyArg(), "run-1").
				WillReturnResult(sqlmock.NewResult(0, 1))

			err = New(db, "postgres").Finish(context.Background(), "run-1", "# Report", 42, tt.runErr)
			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFinish_UnknownRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE job_runs`).WillReturnResult(sqlmock.NewResult(0, 0))

	err = New(db, "sqlite").Finish(context.Background(), "missing", "", 0, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeHistoryFailed))
}

func TestStart_DatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO job_runs`).WillReturnError(stderrors.New("disk full"))

	_, err = New(db, "sqlite").Start(context.Background(), sampleInputs())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeHistoryFailed))
	assert.Contains(t, err.Error(), "disk full")
}

func TestRecent_Mock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "position", "location", "salary_expectations", "employment_type",
		"status", "report", "error", "total_tokens", "started_at", "finished_at"}).
		AddRow("r2", "Go", "Remote", "$1", "Contract", StatusRunning, "", "", 0, started, nil).
		AddRow("r1", "Go", "Berlin", "$2", "Full-time", StatusCompleted, "# R", "", 10, started.Add(-time.Hour), started)

	mock.ExpectQuery(`(?s)SELECT id, position .* LIMIT \$1`).WithArgs(5).WillReturnRows(rows)

	runs, err := New(db, "postgres").Recent(context.Background(), 5)
	require.NoError(t, err)

	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Nil(t, runs[0].FinishedAt)
	assert.Equal(t, "Berlin", runs[1].Inputs.Location)
	require.NotNil(t, runs[1].FinishedAt)
	assert.Equal(t, started, *runs[1].FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SQLiteRoundTrip(t *testing.T) {
	client, err := database.NewSQL(config.HistoryConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "history.db"),
	})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	store := New(client.DB, client.Driver)
	require.NoError(t, store.Migrate(ctx))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := store.Start(ctx, sampleInputs())
	require.NoError(t, err)
	require.NoError(t, store.Finish(ctx, first, "# Report", 123, nil))

	second, err := store.Start(ctx, sampleInputs())
	require.NoError(t, err)
	require.NoError(t, store.Finish(ctx, second, "", 5, stderrors.New("boom")))

	runs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Equal(t, "boom", runs[0].Error)

	assert.Equal(t, first, runs[1].ID)
	assert.Equal(t, StatusCompleted, runs[1].Status)
	assert.Equal(t, "# Report", runs[1].Report)
	assert.Equal(t, 123, runs[1].TotalTokens)
	assert.Equal(t, sampleInputs(), runs[1].Inputs)
	require.NotNil(t, runs[1].FinishedAt)
}
