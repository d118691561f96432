package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/arcticline/pricebook-cli/internal/config"
	"github.com/arcticline/pricebook-cli/internal/model"
)

// RunFilter specifies criteria for listing reconciliation runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for reconciliation runs and the
// product specifications they produce.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, priceSource, catalogSource string) (*model.ReconciliationRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, summary *model.BatchSummary) error
	GetRun(ctx context.Context, runID string) (*model.ReconciliationRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ReconciliationRun, error)

	// Specifications
	SaveSpecifications(ctx context.Context, runID string, specs []model.ProductSpecification) error
	ListSpecifications(ctx context.Context, runID string) ([]model.ProductSpecification, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs the Store named by the config, running migrations before
// returning it.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		s, err = NewSQLite(cfg.SQLitePath)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
