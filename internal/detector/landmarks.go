// Package detector provides body pose detection interfaces and types for garment placement.
package detector

import "math"

// Pose landmark indices following the MediaPipe Pose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

// MinLandmarks is the smallest landmark count that still covers both hips.
// Sets shorter than this are treated as "no pose".
const MinLandmarks = 25

// VisibilityThreshold is the visibility above which a landmark counts as seen.
const VisibilityThreshold = 0.5

// Landmark is a single body point in frame pixel coordinates.
// Visibility is nil when the detector did not report one.
type Landmark struct {
	X          int      `json:"x"`
	Y          int      `json:"y"`
	Visibility *float64 `json:"visibility,omitempty"`
}

// Visible reports whether the landmark should be trusted. Landmarks without a
// visibility value are always visible.
func (l Landmark) Visible() bool {
	if l.Visibility == nil {
		return true
	}
	return *l.Visibility > VisibilityThreshold
}

// Landmarks is the ordered landmark set for one detected body.
type Landmarks []Landmark

// Usable reports whether the set is long enough to place a garment.
func (l Landmarks) Usable() bool {
	return len(l) >= MinLandmarks
}

// ShoulderDistance returns the Euclidean pixel distance between the shoulders.
// It returns 0 for sets that are not usable.
func (l Landmarks) ShoulderDistance() float64 {
	if !l.Usable() {
		return 0
	}
	return distance2D(l[LeftShoulder], l[RightShoulder])
}

// distance2D calculates the Euclidean distance between two landmarks.
func distance2D(a, b Landmark) float64 {
	return math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))
}

// Vis returns a pointer to v, for building landmarks with a visibility value.
func Vis(v float64) *float64 {
	return &v
}
