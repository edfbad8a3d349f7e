package app

import (
	"fmt"

	"imprint/domain/core"
	"imprint/domain/grid"
	"imprint/ports"
)

// Setup prepares a private copy of g for simulation and instantiates the
// model once for the largest K in the grid. The caller's grid is never
// modified.
func Setup(factory ports.ModelFactory, g *grid.Grid, opts ...Option) (ports.SimulationModel, *grid.Grid, error) {
	return setup(factory, g, newSettings(opts))
}

func setup(factory ports.ModelFactory, g *grid.Grid, s *settings) (ports.SimulationModel, *grid.Grid, error) {
	if factory == nil {
		return nil, nil, core.NewInvalidArgumentError("model factory", "is required")
	}
	if g == nil || g.NTiles() == 0 {
		return nil, nil, core.ErrEmptyGrid
	}
	if err := g.Validate(); err != nil {
		return nil, nil, err
	}
	if s.k < 0 {
		return nil, nil, core.NewInvalidArgumentError("K", fmt.Sprintf("must be positive, got %d", s.k))
	}
	if s.defaultK <= 0 {
		return nil, nil, core.NewInvalidArgumentError("default K", fmt.Sprintf("must be positive, got %d", s.defaultK))
	}

	// PruneInactive deep copies, so the working grid is private either way.
	work := g.PruneInactive()
	if pruned := g.NTiles() - work.NTiles(); pruned > 0 {
		s.logger.WithComponent("Setup").Warn("Pruning %d inactive tiles before simulation. Mark these tiles as active if you want to simulate for them.", pruned)
	}
	if work.NTiles() == 0 {
		return nil, nil, fmt.Errorf("%w: every tile is inactive", core.ErrEmptyGrid)
	}
	if work.NTiles() > s.maxTiles {
		return nil, nil, core.NewInvalidArgumentError("grid size", fmt.Sprintf("%d active tiles exceeds the limit of %d", work.NTiles(), s.maxTiles))
	}

	for i := range work.Tiles {
		switch {
		case s.k > 0:
			work.Tiles[i].K = s.k
		case work.Tiles[i].K == 0:
			work.Tiles[i].K = s.defaultK
		}
	}

	if maxK := work.MaxK(); maxK > s.maxK {
		return nil, nil, core.NewInvalidArgumentError("K", fmt.Sprintf("%d simulations per tile exceeds the limit of %d", maxK, s.maxK))
	}

	model, err := factory(s.modelSeed, work.MaxK(), s.modelOptions)
	if err != nil {
		return nil, nil, err
	}
	return model, work, nil
}
