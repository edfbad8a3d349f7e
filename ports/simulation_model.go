package ports

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// SimulationModel produces raw test statistics for batches of parameter
// points. Output for a tile must depend only on (seed, K, theta, null truth)
// of that tile, never on which other tiles share the batch.
type SimulationModel interface {
	// SimBatch returns a len(theta) x K matrix of test statistics.
	SimBatch(ctx context.Context, seedOffset, K int, theta [][]float64, nullTruth [][]bool) (*mat.Dense, error)

	// Family names the bound family matching the model's sampling distribution.
	Family() string

	// FamilyParams parameterizes the bound family. May be nil.
	FamilyParams() map[string]float64
}

// ModelFactory instantiates a model once per driver call.
type ModelFactory func(seed int64, maxK int, opts map[string]float64) (SimulationModel, error)
