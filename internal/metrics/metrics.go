// Package metrics derives a garment size recommendation and a pose quality
// score from body landmark geometry. Everything here is pure and stateless.
package metrics

import (
	"math"

	"github.com/ayusman/trylia/internal/detector"
)

// Size is a garment size label.
type Size string

// Size labels in ascending order.
const (
	SizeXS  Size = "XS"
	SizeS   Size = "S"
	SizeM   Size = "M"
	SizeL   Size = "L"
	SizeXL  Size = "XL"
	SizeXXL Size = "XXL"

	// SizeNA is reported while no usable pose is in view.
	SizeNA Size = "N/A"
)

// Shoulder distance thresholds in pixels. A distance below a threshold
// maps to the size paired with it.
var sizeThresholds = []struct {
	limit float64
	size  Size
}{
	{80, SizeXS},
	{100, SizeS},
	{120, SizeM},
	{140, SizeL},
	{160, SizeXL},
}

// ClampLimit is the largest shoulder distance considered when clamping is on.
const ClampLimit = 140

// DefaultStabilityNorm is the shoulder distance at which the stability part
// of the confidence score saturates.
const DefaultStabilityNorm = 150

// Confidence weights.
const (
	visibilityWeight = 0.7
	stabilityWeight  = 0.3
)

// keyLandmarks are the landmarks whose visibility feeds the confidence score.
var keyLandmarks = [...]int{
	detector.LeftShoulder,
	detector.RightShoulder,
	detector.LeftHip,
	detector.RightHip,
}

// Rank returns the position of s in the size order, or -1 for SizeNA and
// unknown labels.
func (s Size) Rank() int {
	for i, t := range sizeThresholds {
		if t.size == s {
			return i
		}
	}
	if s == SizeXXL {
		return len(sizeThresholds)
	}
	return -1
}

// ClassifySize maps a shoulder distance to a size label. It is total: NaN
// and +Inf land in the top bucket, negative values in the bottom one.
func ClassifySize(d float64) Size {
	for _, t := range sizeThresholds {
		if d < t.limit {
			return t.size
		}
	}
	return SizeXXL
}

// ClassifySizeClamped clamps d to [0, ClampLimit] before classifying, so the
// result never exceeds XL.
func ClassifySizeClamped(d float64) Size {
	if math.IsNaN(d) {
		d = ClampLimit
	}
	return ClassifySize(math.Max(0, math.Min(d, ClampLimit)))
}

// Confidence scores pose quality in [0, 100] from landmark visibility and
// shoulder span. norm is the span at which the stability part saturates;
// non-positive values fall back to DefaultStabilityNorm.
func Confidence(lm detector.Landmarks, shoulderDist, norm float64) float64 {
	if !lm.Usable() {
		return 0
	}
	if norm <= 0 {
		norm = DefaultStabilityNorm
	}

	visible := 0
	for _, idx := range keyLandmarks {
		if lm[idx].Visible() {
			visible++
		}
	}
	visibility := float64(visible) / float64(len(keyLandmarks))

	stability := 0.0
	if shoulderDist > 0 {
		stability = math.Min(1, shoulderDist/norm)
	}

	return math.Min(100, (visibilityWeight*visibility+stabilityWeight*stability)*100)
}
