package migration

import (
	"context"

	"imprint/internal"
	"imprint/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the result store schema. Every statement is
// idempotent, so Run is safe on an existing database. The schema sticks to
// types both sqlite3 and postgres accept.
type MigrationRunner struct {
	version string
	logger  *internal.Logger
}

// NewRunner creates a new migration runner
func NewRunner(logger *internal.Logger) *MigrationRunner {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &MigrationRunner{
		version: "1.0.0",
		logger:  logger.WithComponent("Migration"),
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunManifestsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create run_manifests table")
	}

	if err := r.createValidationRowsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create validation_rows table")
	}

	if err := r.createCalibrationRowsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create calibration_rows table")
	}

	r.createIndexes(ctx, db)
	r.logger.Debug("schema version %s ready", r.version)
	return nil
}

func (r *MigrationRunner) createRunManifestsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS run_manifests (
			run_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			model TEXT NOT NULL,
			family TEXT NOT NULL,
			model_seed BIGINT NOT NULL DEFAULT 0,
			model_options TEXT NOT NULL DEFAULT '{}',
			k_override INTEGER NOT NULL DEFAULT 0,
			tile_batch_size INTEGER NOT NULL,
			lam DOUBLE PRECISION NOT NULL DEFAULT 0,
			delta DOUBLE PRECISION NOT NULL DEFAULT 0,
			alpha DOUBLE PRECISION NOT NULL DEFAULT 0,
			n_tiles INTEGER NOT NULL,
			grid_fingerprint TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createValidationRowsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS validation_rows (
			run_id TEXT NOT NULL REFERENCES run_manifests(run_id) ON DELETE CASCADE,
			row_index INTEGER NOT NULL,
			tile_id INTEGER NOT NULL,
			tie_sum INTEGER NOT NULL,
			tie_est DOUBLE PRECISION NOT NULL,
			tie_cp_bound DOUBLE PRECISION NOT NULL,
			tie_bound DOUBLE PRECISION NOT NULL,
			k INTEGER NOT NULL,
			PRIMARY KEY (run_id, row_index)
		)
	`)
	return err
}

func (r *MigrationRunner) createCalibrationRowsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS calibration_rows (
			run_id TEXT NOT NULL REFERENCES run_manifests(run_id) ON DELETE CASCADE,
			row_index INTEGER NOT NULL,
			tile_id INTEGER NOT NULL,
			lams DOUBLE PRECISION NOT NULL,
			alpha0 DOUBLE PRECISION NOT NULL,
			idx INTEGER NOT NULL,
			k INTEGER NOT NULL,
			PRIMARY KEY (run_id, row_index)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_manifests_created_at ON run_manifests(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_manifests_kind ON run_manifests(kind)",
		"CREATE INDEX IF NOT EXISTS idx_manifests_fingerprint ON run_manifests(grid_fingerprint)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			r.logger.Warn("failed to create index: %v", err)
		}
	}
}
