package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"imprint/adapters/excel"
	"imprint/adapters/models"
	"imprint/app"
	"imprint/domain/grid"
	"imprint/internal"
	"imprint/ports"
)

// gridFlags selects a grid file or describes a cartesian grid.
type gridFlags struct {
	path  string
	lower []float64
	upper []float64
	n     []int
	nulls []string
}

func (f *gridFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "grid", "", "Grid file (.csv or .xlsx)")
	cmd.Flags().Float64SliceVar(&f.lower, "lower", nil, "Cartesian grid lower corner, one value per axis")
	cmd.Flags().Float64SliceVar(&f.upper, "upper", nil, "Cartesian grid upper corner, one value per axis")
	cmd.Flags().IntSliceVar(&f.n, "n", nil, "Cartesian grid cells per axis")
	cmd.Flags().StringArrayVar(&f.nulls, "null", nil, `Null region such as "x0 < 0" (repeatable)`)
	cmd.MarkFlagsMutuallyExclusive("grid", "lower")
}

func (f *gridFlags) load(logger *internal.Logger) (*grid.Grid, error) {
	if f.path != "" {
		return excel.ReadGrid(f.path, logger)
	}
	if len(f.lower) == 0 {
		return nil, fmt.Errorf("either --grid or --lower/--upper/--n is required")
	}
	nulls := make([]grid.NullHypothesis, 0, len(f.nulls))
	for _, expr := range f.nulls {
		h, err := grid.ParseHypothesis(expr, len(f.lower))
		if err != nil {
			return nil, err
		}
		nulls = append(nulls, h)
	}
	return grid.Cartesian(f.lower, f.upper, f.n, nulls...)
}

// engineFlags are the settings shared by every engine command.
type engineFlags struct {
	model      string
	seed       int64
	k          int
	batch      int
	modelOpts  map[string]string
	verbosity  string
	gridSource gridFlags
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.model, "model", "ztest", fmt.Sprintf("Simulation model %v", models.Names()))
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Model seed (default IMPRINT_MODEL_SEED)")
	cmd.Flags().IntVar(&f.k, "K", 0, "Simulations per tile, overriding the grid")
	cmd.Flags().IntVar(&f.batch, "batch", 0, "Tiles per simulation call (default IMPRINT_TILE_BATCH_SIZE)")
	cmd.Flags().StringToStringVar(&f.modelOpts, "opt", nil, "Model option as name=value (repeatable)")
	cmd.Flags().StringVar(&f.verbosity, "log-level", "", "Log level: error|warn|info|debug|trace")
	f.gridSource.register(cmd)
}

func (f *engineFlags) logger() *internal.Logger {
	if f.verbosity == "" {
		return internal.DefaultLogger
	}
	return internal.NewLogger(internal.ParseLogLevel(f.verbosity))
}

func (f *engineFlags) modelOptions() (map[string]float64, error) {
	if len(f.modelOpts) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(f.modelOpts))
	for k, v := range f.modelOpts {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("model option %s=%q is not a number", k, v)
		}
		out[k] = x
	}
	return out, nil
}

// request fills the fields of a run request that come from flags.
func (f *engineFlags) request(cmd *cobra.Command, logger *internal.Logger) (*app.RunRequest, error) {
	g, err := f.gridSource.load(logger)
	if err != nil {
		return nil, err
	}
	opts, err := f.modelOptions()
	if err != nil {
		return nil, err
	}
	req := &app.RunRequest{
		Model:         f.model,
		Grid:          g,
		K:             f.k,
		TileBatchSize: f.batch,
		ModelOptions:  opts,
	}
	if cmd.Flags().Changed("seed") {
		seed := f.seed
		req.Seed = &seed
	}
	return req, nil
}

// options converts flags into engine options for the direct engine calls.
func (f *engineFlags) options(cmd *cobra.Command, logger *internal.Logger, defaults []app.Option) ([]app.Option, error) {
	modelOpts, err := f.modelOptions()
	if err != nil {
		return nil, err
	}
	opts := append(defaults, app.WithLogger(logger))
	if cmd.Flags().Changed("seed") {
		opts = append(opts, app.WithModelSeed(f.seed))
	}
	if f.k != 0 {
		opts = append(opts, app.WithK(f.k))
	}
	if f.batch != 0 {
		opts = append(opts, app.WithTileBatchSize(f.batch))
	}
	if len(modelOpts) > 0 {
		opts = append(opts, app.WithModelOptions(modelOpts))
	}
	return opts, nil
}

func (f *engineFlags) factory() (ports.ModelFactory, error) {
	return models.Get(f.model)
}
