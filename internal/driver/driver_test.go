package driver

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"imprint/domain/core"
	"imprint/domain/grid"
	"imprint/internal"
	"imprint/internal/testkit"
	"imprint/ports"
)

func testGrid(t *testing.T, ks ...int) *grid.Grid {
	t.Helper()
	tiles := make([]grid.Tile, len(ks))
	for i, k := range ks {
		theta := []float64{-0.5 + 0.1*float64(i)}
		radii := []float64{0.05}
		tiles[i] = grid.Tile{
			ID:        10 + i,
			Theta:     theta,
			Radii:     radii,
			Vertices:  grid.BoxVertices(theta, radii),
			NullTruth: []bool{true},
			K:         k,
			Active:    true,
		}
	}
	g, err := grid.New(1, tiles)
	require.NoError(t, err)
	return g
}

// pointGrid builds zero-width tiles, for which every family bound is the
// identity.
func pointGrid(t *testing.T, K int) *grid.Grid {
	t.Helper()
	theta := []float64{0}
	g, err := grid.New(1, []grid.Tile{{
		ID: 1, Theta: theta, Radii: []float64{0}, Vertices: [][]float64{theta},
		NullTruth: []bool{true}, K: K, Active: true,
	}})
	require.NoError(t, err)
	return g
}

func quietLogger() *internal.Logger {
	return internal.NewLoggerTo(&bytes.Buffer{}, internal.LogLevelError)
}

func newDriver(t *testing.T, model ports.SimulationModel, batch int) *Driver {
	t.Helper()
	d, err := New(model, batch, WithLogger(quietLogger()))
	require.NoError(t, err)
	return d
}

func TestNew_UnknownFamily(t *testing.T) {
	model := testkit.NewShiftModel(0, 10).WithFamily("gumbel", nil)
	_, err := New(model, 8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownFamily))
}

func TestNew_RejectsBadBatchSize(t *testing.T) {
	_, err := New(testkit.NewShiftModel(0, 10), 0)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestValidate_PreservesRowOrderAcrossKGroups(t *testing.T) {
	g := testGrid(t, 100, 50, 100, 50, 200)
	rec := &testkit.RecordingModel{Inner: testkit.NewShiftModel(3, 200)}
	rec.On("SimBatch", 0, mock.Anything, mock.Anything).Return(nil)

	d := newDriver(t, rec, 64)
	table, err := d.Validate(context.Background(), g, 0.5, 0.01)
	require.NoError(t, err)

	require.Equal(t, g.NTiles(), table.Len())
	for i, row := range table.Rows {
		assert.Equal(t, g.Tiles[i].ID, row.TileID)
		assert.Equal(t, g.Tiles[i].K, row.K)
		assert.InDelta(t, float64(row.TieSum)/float64(row.K), row.TieEst, 1e-15)
		assert.GreaterOrEqual(t, row.TieBound, row.TieCPBound)
	}
	rec.AssertNumberOfCalls(t, "SimBatch", 3)
	rec.AssertCalled(t, "SimBatch", 0, 50, 2)
	rec.AssertCalled(t, "SimBatch", 0, 100, 2)
	rec.AssertCalled(t, "SimBatch", 0, 200, 1)
}

func TestValidate_SubBatches(t *testing.T) {
	g := testGrid(t, 100, 100, 100, 100, 100)
	rec := &testkit.RecordingModel{Inner: testkit.NewShiftModel(3, 100)}
	rec.On("SimBatch", 0, 100, 2).Return(nil).Twice()
	rec.On("SimBatch", 0, 100, 1).Return(nil).Once()

	d := newDriver(t, rec, 2)
	_, err := d.Validate(context.Background(), g, 0.5, 0.01)
	require.NoError(t, err)
	rec.AssertExpectations(t)
}

func TestBatchingTransparency(t *testing.T) {
	g := testGrid(t, 64, 128, 64, 64, 128, 64, 64)
	ctx := context.Background()

	reference := newDriver(t, testkit.NewShiftModel(7, 128), 64)
	wantV, err := reference.Validate(ctx, g, 0.1, 0.01)
	require.NoError(t, err)
	wantC, err := reference.Calibrate(ctx, g, 0.025)
	require.NoError(t, err)

	for _, size := range []int{1, 2, 3, 1000} {
		d := newDriver(t, testkit.NewShiftModel(7, 128), size)
		gotV, err := d.Validate(ctx, g, 0.1, 0.01)
		require.NoError(t, err)
		assert.Equal(t, wantV, gotV, "validate batch size %d", size)

		gotC, err := d.Calibrate(ctx, g, 0.025)
		require.NoError(t, err)
		assert.Equal(t, wantC, gotC, "calibrate batch size %d", size)
	}
}

func TestValidate_KnownCounts(t *testing.T) {
	values := make([]float64, 100)
	for k := range values {
		values[k] = 0.9
		if k < 5 {
			values[k] = 0.1
		}
	}
	d := newDriver(t, &testkit.FixedModel{Values: values}, 64)

	table, err := d.Validate(context.Background(), pointGrid(t, 100), 0.5, 0.01)
	require.NoError(t, err)
	row := table.Rows[0]
	assert.Equal(t, 5, row.TieSum)
	assert.InDelta(t, 0.05, row.TieEst, 1e-15)
	assert.InDelta(t, 0.12585173069767866, row.TieCPBound, 1e-8)
	assert.InDelta(t, row.TieCPBound, row.TieBound, 1e-12)
}

func TestValidate_ThresholdIsStrict(t *testing.T) {
	values := []float64{0.5, 0.5, 0.4, 0.6}
	d := newDriver(t, &testkit.FixedModel{Values: values}, 64)

	table, err := d.Validate(context.Background(), pointGrid(t, 4), 0.5, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Rows[0].TieSum)
}

func TestValidate_AllRejectedGivesZeroCPBound(t *testing.T) {
	d := newDriver(t, &testkit.FixedModel{Values: []float64{0, 0, 0, 0, 0}}, 64)

	table, err := d.Validate(context.Background(), pointGrid(t, 5), 1, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 5, table.Rows[0].TieSum)
	assert.Equal(t, 0.0, table.Rows[0].TieCPBound)
}

func TestCalibrate_KnownThreshold(t *testing.T) {
	values := []float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}
	d := newDriver(t, &testkit.FixedModel{Values: values}, 64)

	table, err := d.Calibrate(context.Background(), pointGrid(t, 10), 0.3)
	require.NoError(t, err)
	row := table.Rows[0]
	assert.InDelta(t, 0.3, row.Alpha0, 1e-12)
	assert.Equal(t, 2, row.Idx)
	assert.Equal(t, 0.3, row.Lams)
	assert.Equal(t, 10, row.K)
}

func TestCalibrate_ThresholdControlsEstimate(t *testing.T) {
	g := testGrid(t, 1000, 1000, 1000)
	ctx := context.Background()
	d := newDriver(t, testkit.NewShiftModel(11, 1000), 64)

	cal, err := d.Calibrate(ctx, g, 0.05)
	require.NoError(t, err)
	for i, row := range cal.Rows {
		assert.LessOrEqual(t, row.Alpha0, 0.05)
		assert.Less(t, row.Idx, row.K)

		sub := g.Subset([]int{i})
		val, err := d.Validate(ctx, sub, row.Lams, 0.01)
		require.NoError(t, err)
		// exactly Idx statistics sit strictly below the Idx-th order statistic
		assert.Equal(t, row.Idx, val.Rows[0].TieSum)
	}
}

func TestShapeMismatch(t *testing.T) {
	g := testGrid(t, 20, 20, 20)
	ctx := context.Background()

	for _, extraTile := range []bool{true, false} {
		model := &testkit.MisshapenModel{Inner: testkit.NewShiftModel(0, 20), ExtraTile: extraTile}
		d := newDriver(t, model, 2)

		_, err := d.Validate(ctx, g, 0.5, 0.01)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrStatShapeMismatch))

		var shapeErr *core.StatShapeError
		require.True(t, errors.As(err, &shapeErr))
		assert.Equal(t, 2, shapeErr.WantTiles)
		assert.Equal(t, 20, shapeErr.WantSims)

		_, err = d.Calibrate(ctx, g, 0.025)
		assert.True(t, errors.Is(err, core.ErrStatShapeMismatch))

		_, err = d.Stats(ctx, g)
		assert.True(t, errors.Is(err, core.ErrStatShapeMismatch))
	}
}

func TestModelErrorAbortsWithoutRows(t *testing.T) {
	boom := errors.New("boom")
	rec := &testkit.RecordingModel{Inner: testkit.NewShiftModel(0, 10)}
	rec.On("SimBatch", 0, 10, 1).Return(nil).Once()
	rec.On("SimBatch", 0, 10, 1).Return(boom)

	d := newDriver(t, rec, 1)
	table, err := d.Validate(context.Background(), testGrid(t, 10, 10, 10), 0.5, 0.01)
	assert.Nil(t, table)
	assert.True(t, errors.Is(err, core.ErrSimulationFailed))
	assert.True(t, errors.Is(err, boom))
	rec.AssertNumberOfCalls(t, "SimBatch", 2)
}

func TestStats_OneCallPerK(t *testing.T) {
	g := testGrid(t, 30, 40, 30, 30)
	rec := &testkit.RecordingModel{Inner: testkit.NewShiftModel(5, 40)}
	rec.On("SimBatch", 0, mock.Anything, mock.Anything).Return(nil)

	d := newDriver(t, rec, 1)
	table, err := d.Stats(context.Background(), g)
	require.NoError(t, err)

	rec.AssertNumberOfCalls(t, "SimBatch", 2)
	require.Len(t, table.Stats, 4)
	for i, row := range table.Stats {
		assert.Len(t, row, g.Tiles[i].K)
		assert.Equal(t, g.Tiles[i].ID, table.TileIDs[i])
	}
	// common draws: tiles differ only by their theta shift
	assert.InDelta(t, table.Stats[0][0]+0.2, table.Stats[2][0], 1e-12)
}

func TestRejectsMissingK(t *testing.T) {
	d := newDriver(t, testkit.NewShiftModel(0, 10), 8)
	_, err := d.Validate(context.Background(), testGrid(t, 10, 0), 0.5, 0.01)
	assert.True(t, errors.Is(err, core.ErrInvalidTile))
}

func TestRejectsBadLevels(t *testing.T) {
	d := newDriver(t, testkit.NewShiftModel(0, 10), 8)
	g := testGrid(t, 10)

	_, err := d.Validate(context.Background(), g, 0.5, 0)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	_, err = d.Calibrate(context.Background(), g, 1)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestMetrics(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	d, err := New(testkit.NewShiftModel(0, 10), 2, WithLogger(quietLogger()), WithMetrics(metrics))
	require.NoError(t, err)

	_, err = d.Validate(context.Background(), testGrid(t, 10, 10, 10), 0.5, 0.01)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.simCalls.WithLabelValues(opValidate)))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.tilesSimulated.WithLabelValues(opValidate)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.activeRuns))
}
