package run

import (
	"imprint/domain/core"
)

// Kind distinguishes the two engine operations.
type Kind string

const (
	KindValidate  Kind = "validate"
	KindCalibrate Kind = "calibrate"
)

// Manifest records every input that determines a run's output, so a stored
// table can be reproduced from the same grid and seed.
type Manifest struct {
	RunID           core.RunID         `json:"run_id" db:"run_id"`
	Kind            Kind               `json:"kind" db:"kind"`
	Model           string             `json:"model" db:"model"`
	Family          string             `json:"family" db:"family"`
	ModelSeed       int64              `json:"model_seed" db:"model_seed"`
	ModelOptions    map[string]float64 `json:"model_options,omitempty" db:"-"`
	KOverride       int                `json:"k_override,omitempty" db:"k_override"`
	TileBatchSize   int                `json:"tile_batch_size" db:"tile_batch_size"`
	Lam             float64            `json:"lam,omitempty" db:"lam"`
	Delta           float64            `json:"delta,omitempty" db:"delta"`
	Alpha           float64            `json:"alpha,omitempty" db:"alpha"`
	NTiles          int                `json:"n_tiles" db:"n_tiles"`
	GridFingerprint core.Hash          `json:"grid_fingerprint" db:"grid_fingerprint"`
	CreatedAt       core.Timestamp     `json:"created_at" db:"-"`
}

// NewManifest starts a manifest with a fresh run ID.
func NewManifest(kind Kind, model, family string) *Manifest {
	return &Manifest{
		RunID:     core.NewRunID(),
		Kind:      kind,
		Model:     model,
		Family:    family,
		CreatedAt: core.Now(),
	}
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewInvalidArgumentError("run_manifest", "run_id cannot be empty")
	}
	switch m.Kind {
	case KindValidate:
		if m.Delta <= 0 || m.Delta >= 1 {
			return core.NewInvalidArgumentError("run_manifest", "delta must be in (0, 1)")
		}
	case KindCalibrate:
		if m.Alpha <= 0 || m.Alpha >= 1 {
			return core.NewInvalidArgumentError("run_manifest", "alpha must be in (0, 1)")
		}
	default:
		return core.NewInvalidArgumentError("run_manifest", "unknown kind "+string(m.Kind))
	}
	if m.Model == "" {
		return core.NewInvalidArgumentError("run_manifest", "model cannot be empty")
	}
	if m.GridFingerprint.IsEmpty() {
		return core.NewInvalidArgumentError("run_manifest", "grid_fingerprint cannot be empty")
	}
	return nil
}
