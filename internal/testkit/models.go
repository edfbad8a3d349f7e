// Package testkit provides deterministic simulation models for tests.
package testkit

import (
	"context"
	"math/rand/v2"

	"github.com/stretchr/testify/mock"
	"gonum.org/v1/gonum/mat"

	"imprint/ports"
)

// ShiftModel returns theta[i][0] + u_k for tile i and draw k, where u is a
// fixed vector of uniforms drawn once from the seed. Every tile sees the same
// draws, so results do not depend on how tiles are batched.
type ShiftModel struct {
	draws  []float64
	family string
	params map[string]float64
}

// NewShiftModel draws maxK uniforms on [0, 1) from seed.
func NewShiftModel(seed int64, maxK int) *ShiftModel {
	rng := rand.New(rand.NewPCG(uint64(seed), 0x5eed))
	draws := make([]float64, maxK)
	for k := range draws {
		draws[k] = rng.Float64()
	}
	return &ShiftModel{draws: draws, family: "normal"}
}

// ShiftFactory adapts NewShiftModel to ports.ModelFactory.
func ShiftFactory(seed int64, maxK int, _ map[string]float64) (ports.SimulationModel, error) {
	return NewShiftModel(seed, maxK), nil
}

func (m *ShiftModel) SimBatch(_ context.Context, _ int, K int, theta [][]float64, _ [][]bool) (*mat.Dense, error) {
	out := mat.NewDense(len(theta), K, nil)
	for i, t := range theta {
		for k := 0; k < K; k++ {
			out.Set(i, k, t[0]+m.draws[k])
		}
	}
	return out, nil
}

func (m *ShiftModel) Family() string                   { return m.family }
func (m *ShiftModel) FamilyParams() map[string]float64 { return m.params }

// WithFamily overrides the bound family the model reports.
func (m *ShiftModel) WithFamily(name string, params map[string]float64) *ShiftModel {
	m.family, m.params = name, params
	return m
}

// FixedModel returns the first K entries of Values for every tile.
type FixedModel struct {
	Values []float64
}

func (m *FixedModel) SimBatch(_ context.Context, _ int, K int, theta [][]float64, _ [][]bool) (*mat.Dense, error) {
	out := mat.NewDense(len(theta), K, nil)
	for i := range theta {
		out.SetRow(i, m.Values[:K])
	}
	return out, nil
}

func (m *FixedModel) Family() string                   { return "normal" }
func (m *FixedModel) FamilyParams() map[string]float64 { return nil }

// RecordingModel records every SimBatch call on a mock.Mock and delegates to
// Inner. Set expectations with On("SimBatch", seedOffset, K, nTiles).
type RecordingModel struct {
	mock.Mock
	Inner ports.SimulationModel
}

func (m *RecordingModel) SimBatch(ctx context.Context, seedOffset, K int, theta [][]float64, nullTruth [][]bool) (*mat.Dense, error) {
	args := m.Called(seedOffset, K, len(theta))
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return m.Inner.SimBatch(ctx, seedOffset, K, theta, nullTruth)
}

func (m *RecordingModel) Family() string                   { return m.Inner.Family() }
func (m *RecordingModel) FamilyParams() map[string]float64 { return m.Inner.FamilyParams() }

// MisshapenModel returns one extra tile row or one extra simulation column.
type MisshapenModel struct {
	Inner     ports.SimulationModel
	ExtraTile bool
}

func (m *MisshapenModel) SimBatch(ctx context.Context, seedOffset, K int, theta [][]float64, nullTruth [][]bool) (*mat.Dense, error) {
	stats, err := m.Inner.SimBatch(ctx, seedOffset, K, theta, nullTruth)
	if err != nil {
		return nil, err
	}
	r, c := stats.Dims()
	if m.ExtraTile {
		out := mat.NewDense(r+1, c, nil)
		out.Copy(stats)
		return out, nil
	}
	out := mat.NewDense(r, c+1, nil)
	out.Copy(stats)
	return out, nil
}

func (m *MisshapenModel) Family() string                   { return m.Inner.Family() }
func (m *MisshapenModel) FamilyParams() map[string]float64 { return m.Inner.FamilyParams() }
