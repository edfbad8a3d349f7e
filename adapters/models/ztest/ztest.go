// Package ztest is a one-arm z-test: reject when the standardized mean of a
// normal sample with unit variance falls below the threshold.
package ztest

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"imprint/domain/core"
	"imprint/ports"
)

// Name is the registry key.
const Name = "ztest"

// Model draws maxK standard normals once; every tile reuses them.
type Model struct {
	z []float64
}

// New implements ports.ModelFactory. The z-test takes no options.
func New(seed int64, maxK int, opts map[string]float64) (ports.SimulationModel, error) {
	if maxK <= 0 {
		return nil, core.NewInvalidArgumentError("maxK", fmt.Sprintf("must be positive, got %d", maxK))
	}
	if len(opts) > 0 {
		return nil, core.NewInvalidArgumentError("model options", fmt.Sprintf("%s takes no options, got %d", Name, len(opts)))
	}
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(uint64(seed), 1)}
	z := make([]float64, maxK)
	for k := range z {
		z[k] = normal.Rand()
	}
	return &Model{z: z}, nil
}

// SimBatch returns -(z_k + theta_0). Tiles whose null is false never reject.
func (m *Model) SimBatch(ctx context.Context, seedOffset, K int, theta [][]float64, nullTruth [][]bool) (*mat.Dense, error) {
	if seedOffset+K > len(m.z) {
		return nil, fmt.Errorf("K=%d exceeds the %d draws made at construction", K, len(m.z))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := mat.NewDense(len(theta), K, nil)
	for i, t := range theta {
		row := out.RawRowView(i)
		if len(nullTruth[i]) > 0 && !nullTruth[i][0] {
			for k := range row {
				row[k] = math.Inf(1)
			}
			continue
		}
		for k := range row {
			row[k] = -(m.z[seedOffset+k] + t[0])
		}
	}
	return out, nil
}

func (m *Model) Family() string { return "normal" }

func (m *Model) FamilyParams() map[string]float64 { return map[string]float64{"scale": 1} }
