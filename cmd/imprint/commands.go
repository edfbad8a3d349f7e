package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"imprint/adapters/excel"
	"imprint/adapters/models"
	"imprint/adapters/sqlstore"
	"imprint/app"
	"imprint/domain/core"
	"imprint/domain/run"
	"imprint/internal"
	"imprint/internal/config"
)

func newValidateCmd() *cobra.Command {
	var flags engineFlags
	var lam, delta float64
	var out string
	var save bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Bound the Type I error of a fixed rejection threshold on every tile",
		Long: `Validate simulates each tile K times at its representative point, counts
rejections below --lam and extends the Clopper-Pearson bound to the whole tile.

Example: imprint validate --lower -1 --upper 0 --n 32 --null "x0 < 0" --lam -1.96 --K 8192`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, &flags, lam, delta, out, save)
		},
	}

	flags.register(cmd)
	cmd.Flags().Float64Var(&lam, "lam", 0, "Rejection threshold; a simulation rejects when its statistic is below it")
	cmd.Flags().Float64Var(&delta, "delta", 0, "Clopper-Pearson failure probability (default IMPRINT_DELTA)")
	cmd.Flags().StringVar(&out, "out", "", "Write the result table to this .csv or .xlsx file")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the run in the result store")
	_ = cmd.MarkFlagRequired("lam")
	return cmd
}

func newCalibrateCmd() *cobra.Command {
	var flags engineFlags
	var alpha float64
	var out string
	var save bool

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Find per-tile thresholds that hold the Type I error at alpha",
		Long: `Calibrate picks, on every tile, the largest threshold whose worst-case Type I
error over the tile stays at or below --alpha. The overall threshold is the
minimum of the lams column.

Example: imprint calibrate --grid grid.csv --model binomial --opt n=50 --alpha 0.025`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalibrate(cmd, &flags, alpha, out, save)
		},
	}

	flags.register(cmd)
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "Target Type I error (default IMPRINT_ALPHA)")
	cmd.Flags().StringVar(&out, "out", "", "Write the result table to this .csv or .xlsx file")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the run in the result store")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var flags engineFlags
	var out string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Dump the raw simulated statistics of every tile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, &flags, out)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&out, "out", "", "Write the statistics to this .csv or .xlsx file")
	return cmd
}

func newSweepCmd() *cobra.Command {
	var flags engineFlags
	var lams []float64
	var parallelism int
	var delta float64

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Validate several thresholds concurrently",
		Long: `Sweep runs one independent validation per threshold and reports the
largest tile bound of each.

Example: imprint sweep --lower -1 --upper 0 --n 16 --null "x0 < 0" --lams -2.5,-2,-1.5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, &flags, lams, delta, parallelism)
		},
	}

	flags.register(cmd)
	cmd.Flags().Float64SliceVar(&lams, "lams", nil, "Thresholds to validate")
	cmd.Flags().Float64Var(&delta, "delta", 0, "Clopper-Pearson failure probability (default IMPRINT_DELTA)")
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "Concurrent validations (default IMPRINT_SWEEP_PARALLELISM)")
	_ = cmd.MarkFlagRequired("lams")
	return cmd
}

func newGridCmd() *cobra.Command {
	var source gridFlags
	var out string

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Write a cartesian grid to a file for editing",
		Long: `Grid builds a cartesian grid and writes it in the layout validate and
calibrate read with --grid.

Example: imprint grid --lower -1,-1 --upper 1,1 --n 8,8 --null "x0 < 0" --out grid.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := source.load(internal.DefaultLogger)
			if err != nil {
				return err
			}
			if err := excel.WriteGrid(out, g); err != nil {
				return err
			}
			fmt.Printf("Wrote %d tiles to %s\n", g.NTiles(), out)
			return nil
		},
	}

	source.register(cmd)
	cmd.Flags().StringVar(&out, "out", "grid.csv", "Output .csv or .xlsx file")
	return cmd
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs saved in the result store",
	}

	var limit, offset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListRuns(cmd.Context(), limit, offset)
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 50, "Maximum runs to list")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Runs to skip")

	var out string
	showCmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show a saved run and optionally export its table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseRunID(args[0])
			if err != nil {
				return err
			}
			return runShowRun(cmd.Context(), id, out)
		},
	}
	showCmd.Flags().StringVar(&out, "out", "", "Write the run's table to this .csv or .xlsx file")

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}

// newService builds a run service from the environment. The result store is
// opened only when withStore is set.
func newService(ctx context.Context, logger *internal.Logger, withStore bool) (*app.RunService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if !withStore {
		return app.NewRunService(nil, models.Get, logger, app.ConfigOptions(cfg.Engine)...), func() {}, nil
	}
	store, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		return nil, nil, err
	}
	service := app.NewRunService(store, models.Get, logger, app.ConfigOptions(cfg.Engine)...)
	return service, func() { store.Close() }, nil
}

func runValidate(cmd *cobra.Command, flags *engineFlags, lam, delta float64, out string, save bool) error {
	ctx := cmd.Context()
	logger := flags.logger()
	service, closeStore, err := newService(ctx, logger, save)
	if err != nil {
		return err
	}
	defer closeStore()

	req, err := flags.request(cmd, logger)
	if err != nil {
		return err
	}
	req.Lam = lam
	req.Save = save
	if cmd.Flags().Changed("delta") {
		req.Delta = &delta
	}

	result, err := service.Validate(ctx, req)
	if err != nil {
		return err
	}

	printManifest(result.Manifest, result.Saved)
	printSummary("tie_bound", result.Summary)
	if out != "" {
		if err := excel.WriteValidation(out, result.Table); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Printf("Wrote %d rows to %s\n", result.Table.Len(), out)
	}
	return nil
}

func runCalibrate(cmd *cobra.Command, flags *engineFlags, alpha float64, out string, save bool) error {
	ctx := cmd.Context()
	logger := flags.logger()
	service, closeStore, err := newService(ctx, logger, save)
	if err != nil {
		return err
	}
	defer closeStore()

	req, err := flags.request(cmd, logger)
	if err != nil {
		return err
	}
	req.Save = save
	if cmd.Flags().Changed("alpha") {
		req.Alpha = &alpha
	}

	result, err := service.Calibrate(ctx, req)
	if err != nil {
		return err
	}

	printManifest(result.Manifest, result.Saved)
	printSummary("lams", result.Summary)
	fmt.Printf("Overall threshold (min lams): %g\n", result.Summary.Min)
	if out != "" {
		if err := excel.WriteCalibration(out, result.Table); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Printf("Wrote %d rows to %s\n", result.Table.Len(), out)
	}
	return nil
}

func runStats(cmd *cobra.Command, flags *engineFlags, out string) error {
	ctx := cmd.Context()
	logger := flags.logger()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	factory, err := flags.factory()
	if err != nil {
		return err
	}
	g, err := flags.gridSource.load(logger)
	if err != nil {
		return err
	}
	opts, err := flags.options(cmd, logger, app.ConfigOptions(cfg.Engine))
	if err != nil {
		return err
	}

	table, err := app.Stats(ctx, factory, g, opts...)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TILE\tK\tMIN\tMEAN\tMAX")
	for i, row := range table.Stats {
		s, err := app.Summarize(row)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%d\t%g\t%g\t%g\n", table.TileIDs[i], s.Count, s.Min, s.Mean, s.Max)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if out != "" {
		if err := excel.WriteStats(out, table); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Printf("Wrote %d rows to %s\n", len(table.TileIDs), out)
	}
	return nil
}

func runSweep(cmd *cobra.Command, flags *engineFlags, lams []float64, delta float64, parallelism int) error {
	ctx := cmd.Context()
	logger := flags.logger()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	factory, err := flags.factory()
	if err != nil {
		return err
	}
	g, err := flags.gridSource.load(logger)
	if err != nil {
		return err
	}
	opts, err := flags.options(cmd, logger, app.ConfigOptions(cfg.Engine))
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("delta") {
		opts = append(opts, app.WithDelta(delta))
	}
	if parallelism <= 0 {
		parallelism = cfg.Engine.SweepParallelism
	}

	results, err := app.ValidateSweep(ctx, factory, g, lams, parallelism, opts...)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LAM\tMAX TIE_BOUND\tMEAN TIE_BOUND")
	for _, r := range results {
		s, err := app.SummarizeValidation(r.Table)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%g\t%.6g\t%.6g\n", r.Lam, s.Max, s.Mean)
	}
	return w.Flush()
}

func runListRuns(ctx context.Context, limit, offset int) error {
	service, closeStore, err := newService(ctx, internal.DefaultLogger, true)
	if err != nil {
		return err
	}
	defer closeStore()

	manifests, err := service.ListRuns(ctx, limit, offset)
	if err != nil {
		return err
	}
	if len(manifests) == 0 {
		fmt.Println("No saved runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tKIND\tMODEL\tTILES\tCREATED")
	for _, m := range manifests {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", m.RunID, m.Kind, m.Model, m.NTiles, m.CreatedAt)
	}
	return w.Flush()
}

func runShowRun(ctx context.Context, id core.RunID, out string) error {
	service, closeStore, err := newService(ctx, internal.DefaultLogger, true)
	if err != nil {
		return err
	}
	defer closeStore()

	stored, err := service.GetRun(ctx, id)
	if err != nil {
		return err
	}
	printManifest(stored.Manifest, true)

	switch {
	case stored.Validation != nil:
		s, err := app.SummarizeValidation(stored.Validation)
		if err != nil {
			return err
		}
		printSummary("tie_bound", s)
		if out != "" {
			return excel.WriteValidation(out, stored.Validation)
		}
	case stored.Calibration != nil:
		s, err := app.SummarizeCalibration(stored.Calibration)
		if err != nil {
			return err
		}
		printSummary("lams", s)
		if out != "" {
			return excel.WriteCalibration(out, stored.Calibration)
		}
	}
	return nil
}

func printManifest(m *run.Manifest, saved bool) {
	fmt.Printf("Run:      %s (%s)\n", m.RunID, m.Kind)
	fmt.Printf("Model:    %s, family %s, seed %d\n", m.Model, m.Family, m.ModelSeed)
	fmt.Printf("Tiles:    %d (grid %s)\n", m.NTiles, m.GridFingerprint.Short())
	switch m.Kind {
	case run.KindValidate:
		fmt.Printf("Lam:      %g, delta %g\n", m.Lam, m.Delta)
	case run.KindCalibrate:
		fmt.Printf("Alpha:    %g\n", m.Alpha)
	}
	if saved {
		fmt.Println("Saved:    yes")
	}
}

func printSummary(column string, s app.Summary) {
	fmt.Printf("%s over %d tiles: min %.6g, p50 %.6g, p95 %.6g, max %.6g, mean %.6g\n",
		column, s.Count, s.Min, s.P50, s.P95, s.Max, s.Mean)
}
