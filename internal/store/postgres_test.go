package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcticline/pricebook-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return &PostgresStore{pool: mock}, mock
}

var runColumns = []string{"id", "price_source", "catalog_source", "status", "summary", "created_at", "updated_at"}

func TestPostgresCreateRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), "prices.csv", "catalog.json", "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "prices.csv", "catalog.json")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRunStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1`).
		WithArgs("matching", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateRunStatus(context.Background(), "run-1", model.RunStatusMatching))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRunStatusNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1`).
		WithArgs("failed", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestPostgresCompleteRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE runs SET summary = \$1`).
		WithArgs(pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	summary := &model.BatchSummary{EntriesProcessed: 4, Matched: 3, Failed: 1}
	require.NoError(t, s.CompleteRun(context.Background(), "run-1", summary))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", "prices.csv", "catalog.json", model.RunStatusComplete,
				[]byte(`{"entries_processed":4,"matched":3}`), now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 3, run.Summary.Matched)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRunNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
}

func TestPostgresListRuns(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM runs WHERE 1=1 AND status = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("complete", 5).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", "a.csv", "c.json", model.RunStatusComplete, []byte(nil), now, now).
			AddRow("run-2", "b.csv", "c.json", model.RunStatusComplete, []byte(nil), now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete, Limit: 5})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Nil(t, runs[0].Summary)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRunsDefaultLimit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM runs WHERE 1=1 ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows(runColumns))

	runs, err := s.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveSpecifications(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_product_specs"}, specColumns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "product_specs"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	specs := []model.ProductSpecification{testSpec("AAAB", false), testSpec("ZZAB", true)}
	require.NoError(t, s.SaveSpecifications(context.Background(), "run-1", specs))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveSpecificationsEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	require.NoError(t, s.SaveSpecifications(context.Background(), "run-1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListSpecifications(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT spec FROM product_specs").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"spec"}).
			AddRow([]byte(`{"entry_code":"TNAB","confidence_score":0.95}`)))

	specs, err := s.ListSpecifications(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "TNAB", specs[0].EntryCode)
	assert.Equal(t, 0.95, specs[0].ConfidenceScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
