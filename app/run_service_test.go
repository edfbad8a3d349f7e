package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"imprint/domain/core"
	"imprint/domain/run"
	apperrors "imprint/internal/errors"
	"imprint/internal/testkit"
	"imprint/ports"
)

type MockResultStore struct {
	mock.Mock
}

func (m *MockResultStore) SaveValidation(ctx context.Context, manifest *run.Manifest, table *run.ValidationTable) error {
	args := m.Called(ctx, manifest, table)
	return args.Error(0)
}

func (m *MockResultStore) SaveCalibration(ctx context.Context, manifest *run.Manifest, table *run.CalibrationTable) error {
	args := m.Called(ctx, manifest, table)
	return args.Error(0)
}

func (m *MockResultStore) GetManifest(ctx context.Context, id core.RunID) (*run.Manifest, error) {
	args := m.Called(ctx, id)
	manifest, _ := args.Get(0).(*run.Manifest)
	return manifest, args.Error(1)
}

func (m *MockResultStore) ListManifests(ctx context.Context, limit, offset int) ([]*run.Manifest, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*run.Manifest), args.Error(1)
}

func (m *MockResultStore) LoadValidation(ctx context.Context, id core.RunID) (*run.ValidationTable, error) {
	args := m.Called(ctx, id)
	table, _ := args.Get(0).(*run.ValidationTable)
	return table, args.Error(1)
}

func (m *MockResultStore) LoadCalibration(ctx context.Context, id core.RunID) (*run.CalibrationTable, error) {
	args := m.Called(ctx, id)
	table, _ := args.Get(0).(*run.CalibrationTable)
	return table, args.Error(1)
}

var _ ports.ResultStore = (*MockResultStore)(nil)

func lookupShift(name string) (ports.ModelFactory, error) {
	if name == "shift" {
		return testkit.ShiftFactory, nil
	}
	return nil, core.NewUnknownModelError(name)
}

func newTestService(store ports.ResultStore) *RunService {
	logger, _ := captureLogger()
	return NewRunService(store, lookupShift, logger, WithK(100), WithModelSeed(3))
}

func TestRunService_ValidateFillsManifest(t *testing.T) {
	store := &MockResultStore{}
	service := newTestService(store)
	g := lineGrid(t, 4)
	g.Tiles[2].Active = false

	delta := 0.05
	result, err := service.Validate(context.Background(), &RunRequest{Model: "shift", Grid: g, Lam: -0.4, Delta: &delta})
	require.NoError(t, err)

	m := result.Manifest
	assert.Equal(t, run.KindValidate, m.Kind)
	assert.Equal(t, "shift", m.Model)
	assert.Equal(t, "normal", m.Family)
	assert.Equal(t, int64(3), m.ModelSeed)
	assert.Equal(t, 100, m.KOverride)
	assert.Equal(t, -0.4, m.Lam)
	assert.Equal(t, 0.05, m.Delta)
	assert.Equal(t, 3, m.NTiles)
	want := g.PruneInactive()
	for i := range want.Tiles {
		want.Tiles[i].K = 100
	}
	assert.Equal(t, want.Fingerprint(), m.GridFingerprint)
	assert.NoError(t, m.Validate())

	assert.Equal(t, 3, result.Table.Len())
	assert.Equal(t, 3, result.Summary.Count)
	assert.False(t, result.Saved)
	store.AssertNotCalled(t, "SaveValidation", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunService_RequestOverridesDefaults(t *testing.T) {
	service := newTestService(nil)
	seed := int64(11)
	alpha := 0.2

	result, err := service.Calibrate(context.Background(), &RunRequest{
		Model: "shift", Grid: lineGrid(t, 2), Seed: &seed, Alpha: &alpha, K: 30, TileBatchSize: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), result.Manifest.ModelSeed)
	assert.Equal(t, 30, result.Manifest.KOverride)
	assert.Equal(t, 1, result.Manifest.TileBatchSize)
	assert.Equal(t, 0.2, result.Manifest.Alpha)
	for _, row := range result.Table.Rows {
		assert.Equal(t, 30, row.K)
	}
}

func TestRunService_SavesWhenRequested(t *testing.T) {
	ctx := context.Background()
	store := &MockResultStore{}
	store.On("SaveCalibration", ctx, mock.AnythingOfType("*run.Manifest"), mock.AnythingOfType("*run.CalibrationTable")).Return(nil).Once()
	service := newTestService(store)

	result, err := service.Calibrate(ctx, &RunRequest{Model: "shift", Grid: lineGrid(t, 3), Save: true})
	require.NoError(t, err)
	assert.True(t, result.Saved)
	store.AssertExpectations(t)

	saved := store.Calls[0].Arguments.Get(1).(*run.Manifest)
	assert.Equal(t, result.Manifest.RunID, saved.RunID)
	assert.Equal(t, 0.025, saved.Alpha)
}

func TestRunService_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newTestService(nil).Validate(ctx, &RunRequest{Model: "shift", Grid: lineGrid(t, 2), Save: true})
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))

	_, err = newTestService(nil).Validate(ctx, &RunRequest{Model: "nope", Grid: lineGrid(t, 2)})
	assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))
	assert.True(t, errors.Is(err, core.ErrUnknownModel))

	_, err = newTestService(nil).Calibrate(ctx, &RunRequest{Model: "shift"})
	assert.True(t, errors.Is(err, core.ErrEmptyGrid))

	store := &MockResultStore{}
	store.On("SaveValidation", ctx, mock.Anything, mock.Anything).
		Return(apperrors.DatabaseError("insert failed", errors.New("disk full")))
	_, err = newTestService(store).Validate(ctx, &RunRequest{Model: "shift", Grid: lineGrid(t, 2), Save: true})
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetCode(err))

	_, err = newTestService(nil).Validate(ctx, &RunRequest{Model: "shift", Grid: lineGrid(t, 2), K: DefaultMaxK + 1})
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))

	_, err = newTestService(nil).ListRuns(ctx, 10, 0)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
}

func TestRunService_GetRunDispatchesOnKind(t *testing.T) {
	ctx := context.Background()
	store := &MockResultStore{}

	m := run.NewManifest(run.KindCalibrate, "shift", "normal")
	table := &run.CalibrationTable{Rows: []run.CalibrationRow{{TileID: 1, Lams: 0.5, K: 10}}}
	store.On("GetManifest", ctx, m.RunID).Return(m, nil)
	store.On("LoadCalibration", ctx, m.RunID).Return(table, nil)

	missing := core.NewRunID()
	store.On("GetManifest", ctx, missing).Return(nil, core.ErrRunNotFound)

	service := newTestService(store)
	got, err := service.GetRun(ctx, m.RunID)
	require.NoError(t, err)
	assert.Equal(t, table, got.Calibration)
	assert.Nil(t, got.Validation)
	store.AssertNotCalled(t, "LoadValidation", mock.Anything, mock.Anything)

	_, err = service.GetRun(ctx, missing)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
}

func TestRunService_ListRunsDefaultsLimit(t *testing.T) {
	ctx := context.Background()
	store := &MockResultStore{}
	store.On("ListManifests", ctx, 50, 5).Return([]*run.Manifest{}, nil).Once()

	_, err := newTestService(store).ListRuns(ctx, 0, 5)
	require.NoError(t, err)
	store.AssertExpectations(t)
}
