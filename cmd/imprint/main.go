package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "imprint",
		Short: "Monte-Carlo validation and calibration of tiled hypothesis tests",
		Long: `imprint bounds the Type I error of a test over a tiled parameter space.

Engine defaults come from the environment (IMPRINT_DELTA, IMPRINT_ALPHA,
IMPRINT_DEFAULT_K, IMPRINT_TILE_BATCH_SIZE, IMPRINT_MODEL_SEED) and the result
store from DB_DRIVER and DATABASE_URL. A .env file in the working directory is
loaded first.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newValidateCmd(),
		newCalibrateCmd(),
		newStatsCmd(),
		newSweepCmd(),
		newGridCmd(),
		newRunsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
