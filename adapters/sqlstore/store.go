// Package sqlstore persists run manifests and result tables with sqlx on
// sqlite3 or postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"imprint/domain/core"
	"imprint/domain/run"
	"imprint/internal"
	"imprint/internal/batching"
	"imprint/internal/errors"
	"imprint/internal/migration"
	"imprint/ports"
)

// insertChunk bounds the rows per multi-row INSERT so statements stay under
// the sqlite bound-variable limit.
const insertChunk = 500

// Store implements ports.ResultStore.
type Store struct {
	db *sqlx.DB
}

var _ ports.ResultStore = (*Store)(nil)

// Open connects to the database and runs migrations.
func Open(ctx context.Context, driver, url string, logger *internal.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, driver, url)
	if err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("failed to connect to %s", driver), err)
	}
	if driver == "sqlite3" {
		// one connection keeps :memory: databases alive and serializes writers
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, errors.DatabaseError("failed to enable foreign keys", err)
		}
	}
	if err := migration.NewRunner(logger).Run(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type manifestRecord struct {
	run.Manifest
	ModelOptionsJSON string    `db:"model_options"`
	CreatedAtTime    time.Time `db:"created_at"`
}

func (r *manifestRecord) toManifest() (*run.Manifest, error) {
	m := r.Manifest
	m.CreatedAt = core.NewTimestamp(r.CreatedAtTime)
	if r.ModelOptionsJSON != "" && r.ModelOptionsJSON != "{}" {
		if err := json.Unmarshal([]byte(r.ModelOptionsJSON), &m.ModelOptions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal model options: %w", err)
		}
	}
	return &m, nil
}

type validationRecord struct {
	RunID    string `db:"run_id"`
	RowIndex int    `db:"row_index"`
	run.ValidationRow
}

type calibrationRecord struct {
	RunID    string `db:"run_id"`
	RowIndex int    `db:"row_index"`
	run.CalibrationRow
}

const manifestColumns = `run_id, kind, model, family, model_seed, model_options, k_override,
	tile_batch_size, lam, delta, alpha, n_tiles, grid_fingerprint, created_at`

// SaveValidation stores the manifest and its rows in one transaction.
func (s *Store) SaveValidation(ctx context.Context, m *run.Manifest, table *run.ValidationTable) error {
	if m.Kind != run.KindValidate {
		return core.NewInvalidArgumentError("run_manifest", fmt.Sprintf("kind %q cannot hold a validation table", m.Kind))
	}
	records := make([]validationRecord, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = validationRecord{RunID: m.RunID.String(), RowIndex: i, ValidationRow: row}
	}
	return s.save(ctx, m, func(tx *sqlx.Tx) error {
		return insertChunks(ctx, tx, `INSERT INTO validation_rows
			(run_id, row_index, tile_id, tie_sum, tie_est, tie_cp_bound, tie_bound, k)
			VALUES (:run_id, :row_index, :tile_id, :tie_sum, :tie_est, :tie_cp_bound, :tie_bound, :k)`, records)
	})
}

// SaveCalibration stores the manifest and its rows in one transaction.
func (s *Store) SaveCalibration(ctx context.Context, m *run.Manifest, table *run.CalibrationTable) error {
	if m.Kind != run.KindCalibrate {
		return core.NewInvalidArgumentError("run_manifest", fmt.Sprintf("kind %q cannot hold a calibration table", m.Kind))
	}
	records := make([]calibrationRecord, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = calibrationRecord{RunID: m.RunID.String(), RowIndex: i, CalibrationRow: row}
	}
	return s.save(ctx, m, func(tx *sqlx.Tx) error {
		return insertChunks(ctx, tx, `INSERT INTO calibration_rows
			(run_id, row_index, tile_id, lams, alpha0, idx, k)
			VALUES (:run_id, :row_index, :tile_id, :lams, :alpha0, :idx, :k)`, records)
	})
}

func (s *Store) save(ctx context.Context, m *run.Manifest, insertRows func(tx *sqlx.Tx) error) error {
	if err := m.Validate(); err != nil {
		return err
	}
	options, err := json.Marshal(m.ModelOptions)
	if err != nil {
		return fmt.Errorf("failed to marshal model options: %w", err)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = core.Now()
	}
	record := manifestRecord{Manifest: *m, ModelOptionsJSON: string(options), CreatedAtTime: m.CreatedAt.Time()}
	if m.ModelOptions == nil {
		record.ModelOptionsJSON = "{}"
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, `INSERT INTO run_manifests (`+manifestColumns+`) VALUES (
		:run_id, :kind, :model, :family, :model_seed, :model_options, :k_override,
		:tile_batch_size, :lam, :delta, :alpha, :n_tiles, :grid_fingerprint, :created_at)`, record); err != nil {
		return errors.DatabaseError("failed to insert run manifest", err)
	}
	if err := insertRows(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit run", err)
	}
	return nil
}

func insertChunks[T any](ctx context.Context, tx *sqlx.Tx, query string, records []T) error {
	for start, end := range batching.Chunks(len(records), insertChunk) {
		if _, err := tx.NamedExecContext(ctx, query, records[start:end]); err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to insert rows %d-%d", start, end), err)
		}
	}
	return nil
}

// GetManifest retrieves a run manifest by ID
func (s *Store) GetManifest(ctx context.Context, id core.RunID) (*run.Manifest, error) {
	var record manifestRecord
	err := s.db.GetContext(ctx, &record, s.db.Rebind(`SELECT `+manifestColumns+` FROM run_manifests WHERE run_id = ?`), id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w %s", core.ErrRunNotFound, id)
		}
		return nil, errors.DatabaseError("failed to get run manifest", err)
	}
	return record.toManifest()
}

// ListManifests returns manifests newest first with pagination
func (s *Store) ListManifests(ctx context.Context, limit, offset int) ([]*run.Manifest, error) {
	var records []manifestRecord
	err := s.db.SelectContext(ctx, &records, s.db.Rebind(`SELECT `+manifestColumns+`
		FROM run_manifests
		ORDER BY created_at DESC, run_id DESC
		LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, errors.DatabaseError("failed to list run manifests", err)
	}

	manifests := make([]*run.Manifest, 0, len(records))
	for i := range records {
		m, err := records[i].toManifest()
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// LoadValidation returns the stored rows of a validation run in row order.
func (s *Store) LoadValidation(ctx context.Context, id core.RunID) (*run.ValidationTable, error) {
	if _, err := s.GetManifest(ctx, id); err != nil {
		return nil, err
	}
	var records []validationRecord
	err := s.db.SelectContext(ctx, &records, s.db.Rebind(`SELECT run_id, row_index, tile_id, tie_sum, tie_est, tie_cp_bound, tie_bound, k
		FROM validation_rows WHERE run_id = ? ORDER BY row_index`), id.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to load validation rows", err)
	}
	table := &run.ValidationTable{Rows: make([]run.ValidationRow, len(records))}
	for i, r := range records {
		table.Rows[i] = r.ValidationRow
	}
	return table, nil
}

// LoadCalibration returns the stored rows of a calibration run in row order.
func (s *Store) LoadCalibration(ctx context.Context, id core.RunID) (*run.CalibrationTable, error) {
	if _, err := s.GetManifest(ctx, id); err != nil {
		return nil, err
	}
	var records []calibrationRecord
	err := s.db.SelectContext(ctx, &records, s.db.Rebind(`SELECT run_id, row_index, tile_id, lams, alpha0, idx, k
		FROM calibration_rows WHERE run_id = ? ORDER BY row_index`), id.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to load calibration rows", err)
	}
	table := &run.CalibrationTable{Rows: make([]run.CalibrationRow, len(records))}
	for i, r := range records {
		table.Rows[i] = r.CalibrationRow
	}
	return table, nil
}
