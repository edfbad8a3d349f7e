// Package binomial is a one-arm binomial test in the natural parameter
// theta = logit(p): reject when too few of n trials succeed.
package binomial

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
const Name = "binomial"

const defaultTrials = 50

// Model holds a maxK x n matrix of uniforms drawn once at construction.
type Model struct {
	n       int
	uniform *mat.Dense
}

// New implements ports.ModelFactory. Option "n" sets the trial count.
func New(seed int64, maxK int, opts map[string]float64) (ports.SimulationModel, error) {
	if maxK <= 0 {
		return nil, core.NewInvalidArgumentError("maxK", fmt.Sprintf("must be positive, got %d", maxK))
	}
	n := defaultTrials
	for k, v := range opts {
		if k != "n" {
			return nil, core.NewInvalidArgumentError("model option", fmt.Sprintf("%q is not supported by %s", k, Name))
		}
		if v < 1 || v != math.Trunc(v) {
			return nil, core.NewInvalidArgumentError("model option n", fmt.Sprintf("must be a positive whole number, got %v", v))
		}
		n = int(v)
	}

	unif := distuv.Uniform{Min: 0, Max: 1, Src: rand.NewPCG(uint64(seed), 2)}
	uniform := mat.NewDense(maxK, n, nil)
	raw := uniform.RawMatrix().Data
	for i := range raw {
		raw[i] = unif.Rand()
	}
	return &Model{n: n, uniform: uniform}, nil
}

// SimBatch returns minus the number of successes, so small statistics mean
// few successes. Tiles whose null is false never reject.
func (m *Model) SimBatch(ctx context.Context, seedOffset, K int, theta [][]float64, nullTruth [][]bool) (*mat.Dense, error) {
	if maxK, _ := m.uniform.Dims(); seedOffset+K > maxK {
		return nil, fmt.Errorf("K=%d exceeds the %d draws made at construction", K, maxK)
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
		p := 1 / (1 + math.Exp(-t[0]))
		for k := range row {
			successes := 0
			for _, u := range m.uniform.RawRowView(seedOffset + k) {
				if u < p {
					successes++
				}
			}
			row[k] = -float64(successes)
		}
	}
	return out, nil
}

func (m *Model) Family() string { return "binomial" }

func (m *Model) FamilyParams() map[string]float64 { return map[string]float64{"n": float64(m.n)} }
