package ports

import (
	"context"

	"imprint/domain/core"
	"imprint/domain/run"
)

// ResultStore persists run manifests and their result tables.
type ResultStore interface {
	SaveValidation(ctx context.Context, m *run.Manifest, table *run.ValidationTable) error
	SaveCalibration(ctx context.Context, m *run.Manifest, table *run.CalibrationTable) error

	GetManifest(ctx context.Context, id core.RunID) (*run.Manifest, error)
	ListManifests(ctx context.Context, limit, offset int) ([]*run.Manifest, error)

	LoadValidation(ctx context.Context, id core.RunID) (*run.ValidationTable, error)
	LoadCalibration(ctx context.Context, id core.RunID) (*run.CalibrationTable, error)
}
