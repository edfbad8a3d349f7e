// Package app is the public entry point of the engine: it prepares grids and
// models, runs the driver and persists results.
package app

import (
	"context"

	"imprint/domain/grid"
	"imprint/domain/run"
	"imprint/internal/driver"
	"imprint/ports"
)

// Validate bounds the probability that the statistic falls below lam over
// every active tile of g.
func Validate(ctx context.Context, factory ports.ModelFactory, g *grid.Grid, lam float64, opts ...Option) (*run.ValidationTable, error) {
	s := newSettings(opts)
	d, work, err := prepare(factory, g, s)
	if err != nil {
		return nil, err
	}
	return d.Validate(ctx, work, lam, s.delta)
}

// Calibrate finds the per-tile threshold whose tile-wide bound is alpha.
func Calibrate(ctx context.Context, factory ports.ModelFactory, g *grid.Grid, opts ...Option) (*run.CalibrationTable, error) {
	s := newSettings(opts)
	d, work, err := prepare(factory, g, s)
	if err != nil {
		return nil, err
	}
	return d.Calibrate(ctx, work, s.alpha)
}

// Stats returns the raw statistics for every active tile.
func Stats(ctx context.Context, factory ports.ModelFactory, g *grid.Grid, opts ...Option) (*run.StatsTable, error) {
	s := newSettings(opts)
	d, work, err := prepare(factory, g, s)
	if err != nil {
		return nil, err
	}
	return d.Stats(ctx, work)
}

func prepare(factory ports.ModelFactory, g *grid.Grid, s *settings) (*driver.Driver, *grid.Grid, error) {
	model, work, err := setup(factory, g, s)
	if err != nil {
		return nil, nil, err
	}
	d, err := driver.New(model, s.tileBatchSize, driver.WithLogger(s.logger), driver.WithMetrics(s.metrics))
	if err != nil {
		return nil, nil, err
	}
	return d, work, nil
}
