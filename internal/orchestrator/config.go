// Package orchestrator sequences KernelBuilder, BackgroundEstimator,
// CurvatureMap, IslandSegmenter, SummitEstimator, GaussianFitter, and
// ErrorEstimator over one image, dispatching per-island work across a
// worker pool and assembling the result catalog. Stages run in order
// with early-exit error propagation, and per-island fits fan out across
// a pond-based work-stealing pool.
package orchestrator

// Config gathers the parameters governing pipeline behavior. JSON-tagged
// so it can cross the gin-gonic REST boundary unchanged.
type Config struct {
	SeedClip      float64  `json:"seedClip"`      // default 5
	FloodClip     float64  `json:"floodClip"`     // default 4
	BoxSizeBeams  float64  `json:"boxSizeBeams"`  // default 10
	NpixStep      int      `json:"npixStep"`      // default 3
	MeshSizeBeams float64  `json:"meshSizeBeams"` // default 20
	MaxSummits    int      `json:"maxSummits"`    // 0 = unlimited

	// BackgroundMode selects the background/RMS estimator: "fft" (default,
	// two-pass FFT averaging) or "mesh" (the simpler tile alternative, used
	// when downstream priorized fitting doesn't need a curvature map).
	BackgroundMode string `json:"backgroundMode"`

	// MeshScaleMode selects the per-tile scale statistic used by the mesh
	// background estimator: "iqr" (default, IQR/1.34896) or "mad" (median
	// absolute deviation, scaled to match a Gaussian standard deviation).
	// Ignored unless BackgroundMode is "mesh".
	MeshScaleMode string `json:"meshScaleMode"`

	TelescopeLatDeg *float64 `json:"telescopeLatDeg,omitempty"`

	AggregateIslands bool `json:"aggregateIslands"`

	// Workers bounds the island-dispatch pool size; 0 selects a
	// memory-aware default (see pool.go).
	Workers int `json:"workers"`

	// Seed drives the deterministic Pass-2 background noise fill.
	Seed uint32 `json:"seed"`

	// PriorizedStage selects the freedom model for priorized/forced-
	// measurement mode: 1=amplitude only, 2=+position, 3=+shape. Ignored
	// in detection mode.
	PriorizedStage int `json:"priorizedStage"`
}

// WithDefaults returns a copy of c with zero-valued fields set to their
// defaults.
func (c Config) WithDefaults() Config {
	if c.SeedClip <= 0 {
		c.SeedClip = 5
	}
	if c.FloodClip <= 0 {
		c.FloodClip = 4
	}
	if c.BoxSizeBeams <= 0 {
		c.BoxSizeBeams = 10
	}
	if c.NpixStep <= 0 {
		c.NpixStep = 3
	}
	if c.MeshSizeBeams <= 0 {
		c.MeshSizeBeams = 20
	}
	if c.BackgroundMode == "" {
		c.BackgroundMode = "fft"
	}
	if c.MeshScaleMode == "" {
		c.MeshScaleMode = "iqr"
	}
	if c.PriorizedStage <= 0 {
		c.PriorizedStage = 3
	}
	return c
}
