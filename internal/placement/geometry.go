// Package placement turns body landmarks into a garment placement and keeps
// it steady across frames.
package placement

import (
	"image"
	"math"

	"github.com/ayusman/trylia/internal/detector"
)

// Garment geometry constants.
const (
	// WidthFactor scales the shoulder span to the garment width.
	WidthFactor = 1.6

	// AspectRatio is height/width of the reference garment artwork (581x440).
	AspectRatio = 581.0 / 440.0

	// MinShoulderDistance is the smallest shoulder span that still yields a
	// stable transform. Below it the garment is not drawn.
	MinShoulderDistance = 50.0
)

// Placement is a garment center and size in frame pixels.
type Placement struct {
	CX float64 `json:"cx"`
	CY float64 `json:"cy"`
	W  float64 `json:"w"`
	H  float64 `json:"h"`
}

// Size returns the placement dimensions rounded to whole pixels.
func (p Placement) Size() image.Point {
	return image.Pt(int(math.Round(p.W)), int(math.Round(p.H)))
}

// TopLeft returns the top-left corner of the garment. The corner never goes
// above or left of the frame; overflow on the other two edges is left to the
// compositor to clip.
func (p Placement) TopLeft() image.Point {
	size := p.Size()
	x := int(math.Round(p.CX)) - size.X/2
	y := int(math.Round(p.CY)) - size.Y/2
	return image.Pt(max(x, 0), max(y, 0))
}

// Geometry is the raw, unsmoothed garment transform for one frame.
type Geometry struct {
	ShoulderDistance float64
	Raw              Placement
	// Angle is the garment rotation in degrees.
	Angle float64
}

// Degenerate reports whether the shoulders are too close for a stable transform.
func (g Geometry) Degenerate() bool {
	return g.ShoulderDistance < MinShoulderDistance
}

// Measure derives the raw garment transform from a usable landmark set.
// The second return value is false when the set is not usable.
func Measure(lm detector.Landmarks) (Geometry, bool) {
	if !lm.Usable() {
		return Geometry{}, false
	}

	ls, rs := lm[detector.LeftShoulder], lm[detector.RightShoulder]
	lh, rh := lm[detector.LeftHip], lm[detector.RightHip]

	d := lm.ShoulderDistance()
	w := math.Round(d * WidthFactor)
	h := math.Round(w * AspectRatio)

	shoulderY := float64(ls.Y+rs.Y) / 2
	hipY := float64(lh.Y+rh.Y) / 2

	return Geometry{
		ShoulderDistance: d,
		Raw: Placement{
			CX: float64(ls.X+rs.X) / 2,
			CY: (shoulderY + hipY) / 2,
			W:  w,
			H:  h,
		},
		Angle: ShoulderAngle(ls, rs),
	}, true
}

// ShoulderAngle returns the garment rotation in degrees for the given
// shoulders. The result keeps the garment upright whichever shoulder is
// leftmost in the frame.
func ShoulderAngle(left, right detector.Landmark) float64 {
	dx := float64(right.X - left.X)
	dy := float64(right.Y - left.Y)
	angle := math.Atan2(dy, dx) * 180 / math.Pi
	if dx < 0 {
		angle += 180
	}
	return angle
}
