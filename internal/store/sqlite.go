package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/arcticline/pricebook-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	price_source   TEXT NOT NULL,
	catalog_source TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'queued',
	summary        TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS product_specs (
	id               TEXT PRIMARY KEY,
	run_id           TEXT NOT NULL REFERENCES runs(id),
	entry_code       TEXT NOT NULL,
	spec             TEXT NOT NULL,
	confidence       REAL NOT NULL,
	confidence_level TEXT NOT NULL,
	requires_review  INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (run_id, entry_code)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_product_specs_run_id ON product_specs(run_id);
CREATE INDEX IF NOT EXISTS idx_product_specs_review ON product_specs(requires_review);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, priceSource, catalogSource string) (*model.ReconciliationRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, price_source, catalog_source, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, priceSource, catalogSource, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary *model.BatchSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(summaryJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ReconciliationRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, price_source, catalog_source, status, summary, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ReconciliationRun, error) {
	query := `SELECT id, price_source, catalog_source, status, summary, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.ReconciliationRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveSpecifications(ctx context.Context, runID string, specs []model.ProductSpecification) error {
	if len(specs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO product_specs (id, run_id, entry_code, spec, confidence, confidence_level, requires_review, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, entry_code) DO UPDATE SET
		   spec = excluded.spec,
		   confidence = excluded.confidence,
		   confidence_level = excluded.confidence_level,
		   requires_review = excluded.requires_review`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert spec")
	}
	defer stmt.Close()

	for i := range specs {
		spec := &specs[i]
		specJSON, err := json.Marshal(spec)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal spec %s", spec.EntryCode)
		}
		review := 0
		if spec.RequiresReview {
			review = 1
		}
		_, err = stmt.ExecContext(ctx,
			spec.ProcessingID, runID, spec.EntryCode, string(specJSON),
			spec.ConfidenceScore, string(spec.ConfidenceLevel), review, spec.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert spec %s", spec.EntryCode)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit specs")
}

func (s *SQLiteStore) ListSpecifications(ctx context.Context, runID string) ([]model.ProductSpecification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT spec FROM product_specs WHERE run_id = ? ORDER BY entry_code`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list specs for run %s", runID)
	}
	defer rows.Close()

	var specs []model.ProductSpecification
	for rows.Next() {
		var specJSON string
		if err := rows.Scan(&specJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan spec")
		}
		var spec model.ProductSpecification
		if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal spec")
		}
		specs = append(specs, spec)
	}
	return specs, eris.Wrap(rows.Err(), "sqlite: list specs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.ReconciliationRun, error) {
	var r model.ReconciliationRun
	var summaryJSON sql.NullString

	err := row.Scan(&r.ID, &r.PriceSource, &r.CatalogSource, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if summaryJSON.Valid {
		r.Summary = &model.BatchSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &r, nil
}
