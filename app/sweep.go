package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"imprint/domain/core"
	"imprint/domain/grid"
	"imprint/domain/run"
	"imprint/ports"
)

// SweepResult is one validation in a sweep over thresholds.
type SweepResult struct {
	Lam   float64              `json:"lam"`
	Table *run.ValidationTable `json:"table"`
}

// ValidateSweep validates g at each lam independently, running at most
// parallelism validations at once. Every validation builds its own model, so
// results match sequential calls. Results are in lams order; the first error
// cancels the rest.
func ValidateSweep(ctx context.Context, factory ports.ModelFactory, g *grid.Grid, lams []float64, parallelism int, opts ...Option) ([]SweepResult, error) {
	if len(lams) == 0 {
		return nil, core.NewInvalidArgumentError("lams", "at least one threshold is required")
	}
	if parallelism <= 0 {
		return nil, core.NewInvalidArgumentError("parallelism", fmt.Sprintf("must be positive, got %d", parallelism))
	}

	results := make([]SweepResult, len(lams))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallelism)
	for i, lam := range lams {
		eg.Go(func() error {
			table, err := Validate(egCtx, factory, g, lam, opts...)
			if err != nil {
				return fmt.Errorf("lam=%v: %w", lam, err)
			}
			results[i] = SweepResult{Lam: lam, Table: table}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
