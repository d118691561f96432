package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/arcticline/pricebook-cli/internal/db"
	"github.com/arcticline/pricebook-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool. Statement
// reuse relies on pgx's automatic statement cache, so queries are issued as
// plain SQL text.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	price_source   TEXT NOT NULL,
	catalog_source TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'queued',
	summary        JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS product_specs (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id           TEXT NOT NULL REFERENCES runs(id),
	entry_code       TEXT NOT NULL,
	spec             JSONB NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	confidence_level TEXT NOT NULL,
	requires_review  BOOLEAN NOT NULL DEFAULT false,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (run_id, entry_code)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_product_specs_run_id ON product_specs(run_id);
CREATE INDEX IF NOT EXISTS idx_product_specs_review ON product_specs(requires_review);
CREATE INDEX IF NOT EXISTS idx_product_specs_level ON product_specs(confidence_level);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, priceSource, catalogSource string) (*model.ReconciliationRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, price_source, catalog_source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, priceSource, catalogSource, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.ReconciliationRun{
		ID:            id,
		PriceSource:   priceSource,
		CatalogSource: catalogSource,
		Status:        model.RunStatusQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary *model.BatchSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
		summaryJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ReconciliationRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, price_source, catalog_source, status, summary, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)

	var r model.ReconciliationRun
	var summaryJSON []byte
	err := row.Scan(&r.ID, &r.PriceSource, &r.CatalogSource, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	if len(summaryJSON) > 0 {
		r.Summary = &model.BatchSummary{}
		if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ReconciliationRun, error) {
	query := `SELECT id, price_source, catalog_source, status, summary, created_at, updated_at FROM runs WHERE 1=1`
	var args []any
	arg := 1

	if filter.Status != "" {
		query += ` AND status = $1`
		args = append(args, string(filter.Status))
		arg++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT $` + strconv.Itoa(arg)
	args = append(args, limit)
	arg++

	if filter.Offset > 0 {
		query += ` OFFSET $` + strconv.Itoa(arg)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ReconciliationRun
	for rows.Next() {
		var r model.ReconciliationRun
		var summaryJSON []byte
		if err := rows.Scan(&r.ID, &r.PriceSource, &r.CatalogSource, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(summaryJSON) > 0 {
			r.Summary = &model.BatchSummary{}
			if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal summary")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// specColumns is the column order used for bulk spec upserts.
var specColumns = []string{"id", "run_id", "entry_code", "spec", "confidence", "confidence_level", "requires_review", "created_at"}

func (s *PostgresStore) SaveSpecifications(ctx context.Context, runID string, specs []model.ProductSpecification) error {
	if len(specs) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(specs))
	for i := range specs {
		spec := &specs[i]
		specJSON, err := json.Marshal(spec)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal spec %s", spec.EntryCode)
		}
		rows = append(rows, []any{
			spec.ProcessingID, runID, spec.EntryCode, specJSON,
			spec.ConfidenceScore, string(spec.ConfidenceLevel), spec.RequiresReview, spec.CreatedAt.UTC(),
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "product_specs",
		Columns:      specColumns,
		ConflictKeys: []string{"run_id", "entry_code"},
	}, rows)
	return eris.Wrapf(err, "postgres: save specs for run %s", runID)
}

func (s *PostgresStore) ListSpecifications(ctx context.Context, runID string) ([]model.ProductSpecification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT spec FROM product_specs WHERE run_id = $1 ORDER BY entry_code`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list specs for run %s", runID)
	}
	defer rows.Close()

	var specs []model.ProductSpecification
	for rows.Next() {
		var specJSON []byte
		if err := rows.Scan(&specJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan spec")
		}
		var spec model.ProductSpecification
		if err := json.Unmarshal(specJSON, &spec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal spec")
		}
		specs = append(specs, spec)
	}
	return specs, eris.Wrap(rows.Err(), "postgres: list specs iterate")
}
