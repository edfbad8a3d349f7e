package models

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"imprint/domain/core"
)

func TestGet(t *testing.T) {
	assert.Equal(t, []string{"binomial", "ztest"}, Names())

	_, err := Get("probit")
	assert.True(t, errors.Is(err, core.ErrUnknownModel))

	factory, err := Get(" ZTest ")
	require.NoError(t, err)
	model, err := factory(1, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, "normal", model.Family())
}

func TestModels_CommonRandomNumbers(t *testing.T) {
	ctx := context.Background()
	theta := [][]float64{{-0.2}, {0.1}, {0.4}}
	nulls := [][]bool{{true}, {true}, {true}}

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			factory, err := Get(name)
			require.NoError(t, err)
			model, err := factory(42, 200, nil)
			require.NoError(t, err)

			all, err := model.SimBatch(ctx, 0, 200, theta, nulls)
			require.NoError(t, err)
			r, c := all.Dims()
			assert.Equal(t, 3, r)
			assert.Equal(t, 200, c)

			// one tile at a time gives the same rows
			for i := range theta {
				one, err := model.SimBatch(ctx, 0, 200, theta[i:i+1], nulls[i:i+1])
				require.NoError(t, err)
				assert.Equal(t, all.RawRowView(i), one.RawRowView(0))
			}

			// same seed, same draws
			again, err := factory(42, 200, nil)
			require.NoError(t, err)
			stats, err := again.SimBatch(ctx, 0, 200, theta, nulls)
			require.NoError(t, err)
			assert.True(t, mat.Equal(all, stats))

			_, err = model.SimBatch(ctx, 0, 201, theta, nulls)
			assert.Error(t, err)
		})
	}
}

func TestModels_FalseNullNeverRejects(t *testing.T) {
	for _, name := range Names() {
		factory, err := Get(name)
		require.NoError(t, err)
		model, err := factory(0, 20, nil)
		require.NoError(t, err)

		stats, err := model.SimBatch(context.Background(), 0, 20, [][]float64{{0}}, [][]bool{{false}})
		require.NoError(t, err)
		for _, s := range stats.RawRowView(0) {
			assert.True(t, math.IsInf(s, 1), name)
		}
	}
}

func TestZTest_StatisticShiftsWithTheta(t *testing.T) {
	factory, err := Get("ztest")
	require.NoError(t, err)
	model, err := factory(3, 50, nil)
	require.NoError(t, err)

	stats, err := model.SimBatch(context.Background(), 0, 50, [][]float64{{0}, {1}}, [][]bool{{true}, {true}})
	require.NoError(t, err)
	for k := 0; k < 50; k++ {
		assert.InDelta(t, stats.At(0, k)-1, stats.At(1, k), 1e-12)
	}

	_, err = factory(3, 50, map[string]float64{"n": 3})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestBinomial_Options(t *testing.T) {
	factory, err := Get("binomial")
	require.NoError(t, err)

	model, err := factory(0, 100, map[string]float64{"n": 10})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"n": 10}, model.FamilyParams())

	// p near 1 succeeds on nearly every trial, p near 0 on almost none
	stats, err := model.SimBatch(context.Background(), 0, 100, [][]float64{{30}, {-30}}, [][]bool{{true}, {true}})
	require.NoError(t, err)
	for k := 0; k < 100; k++ {
		assert.Equal(t, -10.0, stats.At(0, k))
		assert.Equal(t, 0.0, stats.At(1, k))
	}

	for _, bad := range []map[string]float64{{"n": 0}, {"n": 2.5}, {"trials": 5}} {
		_, err := factory(0, 100, bad)
		assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	}
}
