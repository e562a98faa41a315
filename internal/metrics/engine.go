package metrics

import "github.com/ayusman/trylia/internal/detector"

// Snapshot is the per-frame result of the metrics engine.
type Snapshot struct {
	Size       Size    `json:"size"`
	Confidence float64 `json:"confidence"`
}

// NotDetected is the snapshot reported for frames without a usable pose.
func NotDetected() Snapshot {
	return Snapshot{Size: SizeNA, Confidence: 0}
}

// Options selects the tunable policies of the engine.
type Options struct {
	// StabilityNorm is the saturating shoulder span of the confidence score.
	StabilityNorm float64
	// ClampToXL caps the size recommendation at XL.
	ClampToXL bool
}

// DefaultOptions returns the unclamped engine with a 150 pixel norm.
func DefaultOptions() Options {
	return Options{StabilityNorm: DefaultStabilityNorm}
}

// Engine evaluates landmark sets with a fixed set of options.
type Engine struct {
	opts Options
}

// NewEngine creates a new Engine.
func NewEngine(opts Options) *Engine {
	if opts.StabilityNorm <= 0 {
		opts.StabilityNorm = DefaultStabilityNorm
	}
	return &Engine{opts: opts}
}

// Options returns the options the engine was built with.
func (e *Engine) Options() Options {
	return e.opts
}

// Size classifies a shoulder distance under the engine's clamp policy.
func (e *Engine) Size(d float64) Size {
	if e.opts.ClampToXL {
		return ClassifySizeClamped(d)
	}
	return ClassifySize(d)
}

// Evaluate computes size and confidence for one frame.
func (e *Engine) Evaluate(lm detector.Landmarks) Snapshot {
	if !lm.Usable() {
		return NotDetected()
	}
	d := lm.ShoulderDistance()
	return Snapshot{
		Size:       e.Size(d),
		Confidence: Confidence(lm, d, e.opts.StabilityNorm),
	}
}
