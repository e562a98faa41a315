package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu        sync.Mutex
	landmarks Landmarks
	err       error
	calls     int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetLandmarks sets the landmarks that will be returned by Detect.
func (m *MockDetector) SetLandmarks(landmarks Landmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.landmarks = landmarks
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured landmarks or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (Landmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.landmarks, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// FrontFacingLandmarks returns a full pose standing square to the camera.
// Shoulders sit at (100,100) and (180,100), hips at (110,220) and (170,220),
// giving a shoulder distance of 80 pixels. Every landmark is fully visible.
func FrontFacingLandmarks() Landmarks {
	return PoseLandmarks(
		Landmark{X: 100, Y: 100},
		Landmark{X: 180, Y: 100},
		Landmark{X: 110, Y: 220},
		Landmark{X: 170, Y: 220},
		1.0,
	)
}

// WideShoulderLandmarks returns a pose with a 200 pixel shoulder span,
// large enough for the biggest size bucket.
func WideShoulderLandmarks() Landmarks {
	return PoseLandmarks(
		Landmark{X: 200, Y: 150},
		Landmark{X: 400, Y: 150},
		Landmark{X: 220, Y: 380},
		Landmark{X: 380, Y: 380},
		0.9,
	)
}

// CloseUpLandmarks returns a pose whose shoulders are only 40 pixels apart,
// too close together for a stable garment transform.
func CloseUpLandmarks() Landmarks {
	return PoseLandmarks(
		Landmark{X: 300, Y: 200},
		Landmark{X: 340, Y: 200},
		Landmark{X: 305, Y: 260},
		Landmark{X: 335, Y: 260},
		1.0,
	)
}

// PoseLandmarks builds a full landmark set around the given shoulders and
// hips. Every landmark gets the supplied visibility; the rest of the body is
// placed between the shoulders so the set looks plausible.
func PoseLandmarks(leftShoulder, rightShoulder, leftHip, rightHip Landmark, visibility float64) Landmarks {
	landmarks := make(Landmarks, NumLandmarks)

	midX := (leftShoulder.X + rightShoulder.X) / 2
	midY := (leftShoulder.Y + rightShoulder.Y) / 2
	for i := range landmarks {
		landmarks[i] = Landmark{X: midX, Y: midY - 40, Visibility: Vis(visibility)}
	}

	leftShoulder.Visibility = Vis(visibility)
	rightShoulder.Visibility = Vis(visibility)
	leftHip.Visibility = Vis(visibility)
	rightHip.Visibility = Vis(visibility)

	landmarks[LeftShoulder] = leftShoulder
	landmarks[RightShoulder] = rightShoulder
	landmarks[LeftHip] = leftHip
	landmarks[RightHip] = rightHip

	return landmarks
}
