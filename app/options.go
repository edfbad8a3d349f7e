package app

import (
	"maps"

	"imprint/domain/grid"
	"imprint/internal"
	"imprint/internal/config"
	"imprint/internal/driver"
)

// DefaultK is the simulation count given to tiles that carry none.
const DefaultK = 1 << 14

// DefaultMaxK caps the simulation count of any tile.
const DefaultMaxK = 1 << 20

const (
	defaultDelta         = 0.01
	defaultAlpha         = 0.025
	defaultTileBatchSize = 64
)

type settings struct {
	delta         float64
	alpha         float64
	modelSeed     int64
	k             int
	defaultK      int
	tileBatchSize int
	maxTiles      int
	maxK          int
	modelOptions  map[string]float64
	logger        *internal.Logger
	metrics       *driver.Metrics
}

func newSettings(opts []Option) *settings {
	s := &settings{
		delta:         defaultDelta,
		alpha:         defaultAlpha,
		defaultK:      DefaultK,
		tileBatchSize: defaultTileBatchSize,
		maxTiles:      grid.MaxTiles,
		maxK:          DefaultMaxK,
		logger:        internal.DefaultLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures a single engine call.
type Option func(*settings)

// WithDelta sets the Clopper-Pearson confidence parameter for Validate.
func WithDelta(delta float64) Option { return func(s *settings) { s.delta = delta } }

// WithAlpha sets the target level for Calibrate.
func WithAlpha(alpha float64) Option { return func(s *settings) { s.alpha = alpha } }

// WithModelSeed seeds the model.
func WithModelSeed(seed int64) Option { return func(s *settings) { s.modelSeed = seed } }

// WithK overrides the simulation count of every tile.
func WithK(k int) Option { return func(s *settings) { s.k = k } }

// WithDefaultK replaces DefaultK for tiles without a simulation count.
func WithDefaultK(k int) Option { return func(s *settings) { s.defaultK = k } }

// WithTileBatchSize bounds the number of tiles per model call.
func WithTileBatchSize(n int) Option { return func(s *settings) { s.tileBatchSize = n } }

// WithMaxTiles caps the number of active tiles a call may simulate.
func WithMaxTiles(n int) Option { return func(s *settings) { s.maxTiles = n } }

// WithMaxK caps the simulation count of any tile after overrides and defaults.
func WithMaxK(k int) Option { return func(s *settings) { s.maxK = k } }

// WithModelOptions passes options through to the model factory.
func WithModelOptions(opts map[string]float64) Option {
	return func(s *settings) { s.modelOptions = maps.Clone(opts) }
}

// WithLogger sets the logger used by setup and the driver.
func WithLogger(l *internal.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records driver metrics.
func WithMetrics(m *driver.Metrics) Option { return func(s *settings) { s.metrics = m } }

// ConfigOptions turns engine configuration into defaults. Options given after
// them take precedence.
func ConfigOptions(cfg config.EngineConfig) []Option {
	return []Option{
		WithDelta(cfg.Delta),
		WithAlpha(cfg.Alpha),
		WithModelSeed(cfg.ModelSeed),
		WithDefaultK(cfg.DefaultK),
		WithTileBatchSize(cfg.TileBatchSize),
		WithMaxTiles(cfg.MaxTiles),
		WithMaxK(cfg.MaxK),
	}
}
