package app

import (
	"context"
	"fmt"

	"imprint/domain/core"
	"imprint/domain/grid"
	"imprint/domain/run"
	"imprint/internal"
	"imprint/internal/driver"
	"imprint/internal/errors"
	"imprint/ports"
)

// ModelLookup resolves a model name to its factory.
type ModelLookup func(name string) (ports.ModelFactory, error)

// RunService runs named models over grids, records manifests and optionally
// persists results. It backs the CLI and the HTTP API.
type RunService struct {
	store    ports.ResultStore
	models   ModelLookup
	defaults []Option
	logger   *internal.Logger
}

// NewRunService creates a run service. store may be nil when results are
// never saved.
func NewRunService(store ports.ResultStore, models ModelLookup, logger *internal.Logger, defaults ...Option) *RunService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &RunService{
		store:    store,
		models:   models,
		defaults: defaults,
		logger:   logger.WithComponent("RunService"),
	}
}

// RunRequest describes one validation or calibration. Nil and zero fields
// fall back to the service defaults.
type RunRequest struct {
	Model         string             `json:"model"`
	Grid          *grid.Grid         `json:"grid"`
	Lam           float64            `json:"lam"`
	Delta         *float64           `json:"delta,omitempty"`
	Alpha         *float64           `json:"alpha,omitempty"`
	Seed          *int64             `json:"seed,omitempty"`
	K             int                `json:"K,omitempty"`
	TileBatchSize int                `json:"tile_batch_size,omitempty"`
	ModelOptions  map[string]float64 `json:"model_options,omitempty"`
	Save          bool               `json:"save"`
}

// ValidationRun is a validation table with its manifest and summary.
type ValidationRun struct {
	Manifest *run.Manifest        `json:"manifest"`
	Table    *run.ValidationTable `json:"table"`
	Summary  Summary              `json:"summary"`
	Saved    bool                 `json:"saved"`
}

// CalibrationRun is a calibration table with its manifest and summary.
type CalibrationRun struct {
	Manifest *run.Manifest         `json:"manifest"`
	Table    *run.CalibrationTable `json:"table"`
	Summary  Summary               `json:"summary"`
	Saved    bool                  `json:"saved"`
}

// StoredRun is a persisted run. Exactly one of the tables is set.
type StoredRun struct {
	Manifest    *run.Manifest         `json:"manifest"`
	Validation  *run.ValidationTable  `json:"validation,omitempty"`
	Calibration *run.CalibrationTable `json:"calibration,omitempty"`
}

func (r *RunRequest) options() []Option {
	var opts []Option
	if r.Delta != nil {
		opts = append(opts, WithDelta(*r.Delta))
	}
	if r.Alpha != nil {
		opts = append(opts, WithAlpha(*r.Alpha))
	}
	if r.Seed != nil {
		opts = append(opts, WithModelSeed(*r.Seed))
	}
	if r.K != 0 {
		opts = append(opts, WithK(r.K))
	}
	if r.TileBatchSize != 0 {
		opts = append(opts, WithTileBatchSize(r.TileBatchSize))
	}
	if len(r.ModelOptions) > 0 {
		opts = append(opts, WithModelOptions(r.ModelOptions))
	}
	return opts
}

// prepare resolves the model, applies defaults and request overrides, sets
// up the grid and fills the manifest.
func (s *RunService) prepare(kind run.Kind, req *RunRequest) (*preparedRun, error) {
	if req == nil || req.Grid == nil {
		return nil, core.ErrEmptyGrid
	}
	if req.Save && s.store == nil {
		return nil, errors.InvalidInput("results cannot be saved: no result store is configured")
	}
	factory, err := s.models(req.Model)
	if err != nil {
		return nil, err
	}
	st := newSettings(append(append([]Option{WithLogger(s.logger)}, s.defaults...), req.options()...))

	d, work, err := prepare(factory, req.Grid, st)
	if err != nil {
		return nil, err
	}

	m := run.NewManifest(kind, req.Model, d.Family().Name())
	m.ModelSeed = st.modelSeed
	m.ModelOptions = st.modelOptions
	m.KOverride = st.k
	m.TileBatchSize = st.tileBatchSize
	m.NTiles = work.NTiles()
	m.GridFingerprint = work.Fingerprint()
	switch kind {
	case run.KindValidate:
		m.Lam, m.Delta = req.Lam, st.delta
	case run.KindCalibrate:
		m.Alpha = st.alpha
	}
	return &preparedRun{manifest: m, driver: d, grid: work}, nil
}

// Validate runs a validation and saves it when requested.
func (s *RunService) Validate(ctx context.Context, req *RunRequest) (*ValidationRun, error) {
	p, err := s.prepare(run.KindValidate, req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare validation")
	}
	m := p.manifest
	s.logger.Info("validating %d tiles with model %s (lam=%v, delta=%v)", m.NTiles, m.Model, m.Lam, m.Delta)
	table, err := p.driver.Validate(ctx, p.grid, m.Lam, m.Delta)
	if err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	summary, err := SummarizeValidation(table)
	if err != nil {
		return nil, errors.Wrap(err, "failed to summarize validation")
	}

	out := &ValidationRun{Manifest: m, Table: table, Summary: summary}
	if req.Save {
		if err := s.store.SaveValidation(ctx, m, table); err != nil {
			return nil, errors.Wrapf(err, "failed to save run %s", m.RunID)
		}
		out.Saved = true
		s.logger.Info("saved validation run %s", m.RunID)
	}
	return out, nil
}

// Calibrate runs a calibration and saves it when requested.
func (s *RunService) Calibrate(ctx context.Context, req *RunRequest) (*CalibrationRun, error) {
	p, err := s.prepare(run.KindCalibrate, req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare calibration")
	}
	m := p.manifest
	s.logger.Info("calibrating %d tiles with model %s (alpha=%v)", m.NTiles, m.Model, m.Alpha)
	table, err := p.driver.Calibrate(ctx, p.grid, m.Alpha)
	if err != nil {
		return nil, errors.Wrap(err, "calibration failed")
	}
	summary, err := SummarizeCalibration(table)
	if err != nil {
		return nil, errors.Wrap(err, "failed to summarize calibration")
	}

	out := &CalibrationRun{Manifest: m, Table: table, Summary: summary}
	if req.Save {
		if err := s.store.SaveCalibration(ctx, m, table); err != nil {
			return nil, errors.Wrapf(err, "failed to save run %s", m.RunID)
		}
		out.Saved = true
		s.logger.Info("saved calibration run %s", m.RunID)
	}
	return out, nil
}

// GetRun loads a stored run and its table.
func (s *RunService) GetRun(ctx context.Context, id core.RunID) (*StoredRun, error) {
	if s.store == nil {
		return nil, errors.InvalidInput("no result store is configured")
	}
	m, err := s.store.GetManifest(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &StoredRun{Manifest: m}
	switch m.Kind {
	case run.KindValidate:
		out.Validation, err = s.store.LoadValidation(ctx, id)
	case run.KindCalibrate:
		out.Calibration, err = s.store.LoadCalibration(ctx, id)
	default:
		err = fmt.Errorf("run %s has unknown kind %q", id, m.Kind)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load run %s", id)
	}
	return out, nil
}

// ListRuns lists stored manifests, newest first.
func (s *RunService) ListRuns(ctx context.Context, limit, offset int) ([]*run.Manifest, error) {
	if s.store == nil {
		return nil, errors.InvalidInput("no result store is configured")
	}
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListManifests(ctx, limit, offset)
}

type preparedRun struct {
	manifest *run.Manifest
	driver   *driver.Driver
	grid     *grid.Grid
}
