// Package driver runs simulation models over a grid and reduces their test
// statistics to validation bounds or calibrated thresholds.
//
// Tiles are grouped by simulation count K. Each group is simulated in
// sub-batches of at most TileBatchSize tiles and the per-tile rows are
// scattered back so output row i always describes input tile i.
package driver

import (
	"context"
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"

	"imprint/domain/core"
	"imprint/domain/grid"
	"imprint/domain/run"
	"imprint/internal"
	"imprint/internal/batching"
	"imprint/internal/bound"
	"imprint/internal/calibration"
	"imprint/ports"
)

const (
	opStats     = "stats"
	opValidate  = "validate"
	opCalibrate = "calibrate"
)

// Driver holds a model, its resolved bound family and the sub-batch size.
type Driver struct {
	model         ports.SimulationModel
	family        bound.Family
	tileBatchSize int
	logger        *internal.Logger
	metrics       *Metrics
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger. The default is internal.DefaultLogger.
func WithLogger(l *internal.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics records sub-batch metrics.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// New resolves the model's bound family. An unregistered family fails here,
// before any simulation.
func New(model ports.SimulationModel, tileBatchSize int, opts ...Option) (*Driver, error) {
	if model == nil {
		return nil, core.NewInvalidArgumentError("model", "is required")
	}
	if tileBatchSize <= 0 {
		return nil, core.NewInvalidArgumentError("tile batch size", fmt.Sprintf("must be positive, got %d", tileBatchSize))
	}
	family, err := bound.Get(model.Family(), model.FamilyParams())
	if err != nil {
		return nil, err
	}
	d := &Driver{
		model:         model,
		family:        family,
		tileBatchSize: tileBatchSize,
		logger:        internal.DefaultLogger,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithComponent("Driver")
	return d, nil
}

// Family returns the resolved bound family.
func (d *Driver) Family() bound.Family { return d.family }

// Stats returns the raw statistics for every tile, one model call per
// distinct K.
func (d *Driver) Stats(ctx context.Context, g *grid.Grid) (*run.StatsTable, error) {
	if err := checkK(g); err != nil {
		return nil, err
	}
	defer d.metrics.runStarted()()

	out := &run.StatsTable{
		TileIDs: make([]int, g.NTiles()),
		Stats:   make([][]float64, g.NTiles()),
	}
	for _, group := range g.GroupByK() {
		sub := g.Subset(group.Indices)
		start := time.Now()
		stats, err := d.simulate(ctx, group.K, sub)
		if err != nil {
			return nil, err
		}
		d.metrics.observeBatch(opStats, sub.NTiles(), time.Since(start))
		for j, idx := range group.Indices {
			out.TileIDs[idx] = g.Tiles[idx].ID
			out.Stats[idx] = slices.Clone(stats.RawRowView(j))
		}
	}
	return out, nil
}

// Validate counts statistics strictly below lam and bounds the error
// probability over each tile with confidence 1 - delta.
func (d *Driver) Validate(ctx context.Context, g *grid.Grid, lam, delta float64) (*run.ValidationTable, error) {
	if !(delta > 0 && delta < 1) {
		return nil, core.NewInvalidArgumentError("delta", fmt.Sprintf("must be in (0, 1), got %v", delta))
	}
	if err := checkK(g); err != nil {
		return nil, err
	}
	defer d.metrics.runStarted()()

	rows := make([]run.ValidationRow, g.NTiles())
	for _, group := range g.GroupByK() {
		K := group.K
		d.logger.Debug("validating %d tiles with K=%d", len(group.Indices), K)
		groupRows, err := batching.Concat(len(group.Indices), d.tileBatchSize, func(start, end int) ([]run.ValidationRow, error) {
			return d.validateBatch(ctx, K, g.Subset(group.Indices[start:end]), lam, delta)
		})
		if err != nil {
			return nil, err
		}
		for j, idx := range group.Indices {
			rows[idx] = groupRows[j]
		}
	}
	return &run.ValidationTable{Rows: rows}, nil
}

func (d *Driver) validateBatch(ctx context.Context, K int, sub *grid.Grid, lam, delta float64) ([]run.ValidationRow, error) {
	start := time.Now()
	stats, err := d.simulate(ctx, K, sub)
	if err != nil {
		return nil, err
	}

	rows := make([]run.ValidationRow, sub.NTiles())
	for i, t := range sub.Tiles {
		tieSum := 0
		for _, s := range stats.RawRowView(i) {
			if s < lam {
				tieSum++
			}
		}
		cp := calibration.ClopperPearson(tieSum, K, delta)
		rows[i] = run.ValidationRow{
			TileID:     t.ID,
			TieSum:     tieSum,
			TieEst:     float64(tieSum) / float64(K),
			TieCPBound: cp,
			TieBound:   d.family.Forward(cp, t.Theta, t.Vertices),
			K:          K,
		}
	}
	d.metrics.observeBatch(opValidate, sub.NTiles(), time.Since(start))
	d.logger.Trace("validated sub-batch of %d tiles with K=%d in %v", sub.NTiles(), K, time.Since(start))
	return rows, nil
}

// Calibrate finds for each tile the threshold whose tile-wise error bound
// does not exceed alpha.
func (d *Driver) Calibrate(ctx context.Context, g *grid.Grid, alpha float64) (*run.CalibrationTable, error) {
	if !(alpha > 0 && alpha < 1) {
		return nil, core.NewInvalidArgumentError("alpha", fmt.Sprintf("must be in (0, 1), got %v", alpha))
	}
	if err := checkK(g); err != nil {
		return nil, err
	}
	defer d.metrics.runStarted()()

	rows := make([]run.CalibrationRow, g.NTiles())
	for _, group := range g.GroupByK() {
		K := group.K
		d.logger.Debug("calibrating %d tiles with K=%d", len(group.Indices), K)
		groupRows, err := batching.Concat(len(group.Indices), d.tileBatchSize, func(start, end int) ([]run.CalibrationRow, error) {
			return d.calibrateBatch(ctx, K, g.Subset(group.Indices[start:end]), alpha)
		})
		if err != nil {
			return nil, err
		}
		for j, idx := range group.Indices {
			rows[idx] = groupRows[j]
		}
	}
	return &run.CalibrationTable{Rows: rows}, nil
}

func (d *Driver) calibrateBatch(ctx context.Context, K int, sub *grid.Grid, alpha float64) ([]run.CalibrationRow, error) {
	start := time.Now()
	stats, err := d.simulate(ctx, K, sub)
	if err != nil {
		return nil, err
	}

	rows := make([]run.CalibrationRow, sub.NTiles())
	sorted := make([]float64, K)
	for i, t := range sub.Tiles {
		copy(sorted, stats.RawRowView(i))
		slices.Sort(sorted)
		alpha0 := d.family.Backward(alpha, t.Theta, t.Vertices)
		lam, idx := calibration.Threshold(sorted, alpha0)
		rows[i] = run.CalibrationRow{
			TileID: t.ID,
			Lams:   lam,
			Alpha0: alpha0,
			Idx:    idx,
			K:      K,
		}
	}
	d.metrics.observeBatch(opCalibrate, sub.NTiles(), time.Since(start))
	d.logger.Trace("calibrated sub-batch of %d tiles with K=%d in %v", sub.NTiles(), K, time.Since(start))
	return rows, nil
}

// simulate calls the model and rejects any result that is not
// (tiles x K).
func (d *Driver) simulate(ctx context.Context, K int, sub *grid.Grid) (*mat.Dense, error) {
	stats, err := d.model.SimBatch(ctx, 0, K, sub.Theta(), sub.NullTruth())
	if err != nil {
		return nil, core.NewSimulationError(K, err)
	}
	if stats == nil {
		return nil, core.NewStatShapeError(sub.NTiles(), K, 0, 0)
	}
	r, c := stats.Dims()
	if r != sub.NTiles() || c != K {
		return nil, core.NewStatShapeError(sub.NTiles(), K, r, c)
	}
	return stats, nil
}

func checkK(g *grid.Grid) error {
	for i, t := range g.Tiles {
		if t.K < 1 {
			return core.NewInvalidTileError(i, fmt.Sprintf("K must be at least 1, got %d", t.K))
		}
	}
	return nil
}
