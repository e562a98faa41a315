package tryon

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/trylia/internal/capture"
	"github.com/ayusman/trylia/internal/catalog"
	"github.com/ayusman/trylia/internal/detector"
	"github.com/ayusman/trylia/internal/metrics"
	"github.com/ayusman/trylia/internal/render"
)

var firstMale = catalog.Selection{Group: catalog.GroupMale, Position: 1}

// testCatalog has five red male garments and two blue female garments.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	solid := func(b, g, r float64) gocv.Mat {
		return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 255), 50, 40, gocv.MatTypeCV8UC4)
	}

	groups := map[catalog.Group][]gocv.Mat{}
	for iter := 0; iter < 5; iter++ {
		groups[catalog.GroupMale] = append(groups[catalog.GroupMale], solid(0, 0, 255))
	}
	for iter := 0; iter < 2; iter++ {
		groups[catalog.GroupFemale] = append(groups[catalog.GroupFemale], solid(255, 0, 0))
	}

	c := catalog.New(groups)
	t.Cleanup(c.Close)
	return c
}

func grayFrame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 100, 100, 0), 480, 640, gocv.MatTypeCV8UC3)
}

func newSession(t *testing.T, det detector.Detector, cam capture.Camera) *Session {
	t.Helper()
	s, err := NewSession(Config{
		Camera:   cam,
		Detector: det,
		Catalog:  testCatalog(t),
		Initial:  firstMale,
		Metrics:  metrics.DefaultOptions(),
	})
	require.NoError(t, err)
	return s
}

func pixel(t *testing.T, m gocv.Mat, x, y int) [3]uint8 {
	t.Helper()
	data, err := m.DataPtrUint8()
	require.NoError(t, err)
	i := y*m.Step() + x*m.Channels()
	return [3]uint8{data[i], data[i+1], data[i+2]}
}

// panelOnly returns what frame looks like with only the info panel drawn.
func panelOnly(frame gocv.Mat, sel catalog.Selection, snap metrics.Snapshot) gocv.Mat {
	expected := frame.Clone()
	render.DrawPanel(&expected, render.PanelInfo{Title: catalog.Title(sel), Metrics: snap})
	return expected
}

func TestNewSession(t *testing.T) {
	det := detector.NewMockDetector()

	_, err := NewSession(Config{Detector: det, Initial: firstMale})
	assert.Error(t, err, "catalog is required")

	_, err = NewSession(Config{Catalog: testCatalog(t), Initial: firstMale})
	assert.Error(t, err, "detector is required")

	_, err = NewSession(Config{
		Detector: det,
		Catalog:  testCatalog(t),
		Initial:  catalog.Selection{Group: catalog.GroupFemale, Position: 3},
	})
	assert.ErrorIs(t, err, catalog.ErrInvalidSelection)

	s := newSession(t, det, nil)
	assert.Equal(t, firstMale, s.Current())
	assert.Equal(t, metrics.NotDetected(), s.Snapshot())
	assert.Equal(t, StateAwaitingFrame, s.State())
}

func TestProcessFrontFacing(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetLandmarks(detector.FrontFacingLandmarks())
	s := newSession(t, det, nil)

	frame := grayFrame()
	defer frame.Close()

	res := s.Process(&frame)

	assert.True(t, res.Pose)
	assert.True(t, res.Composited)
	assert.Equal(t, metrics.SizeS, res.Metrics.Size)
	assert.InDelta(t, 86.0, res.Metrics.Confidence, 1e-9)
	assert.Equal(t, firstMale, res.Selection)
	assert.Equal(t, uint64(1), res.Frame)
	assert.Equal(t, StateRendered, s.State())
	assert.Equal(t, res.Metrics, s.Snapshot())

	// The smoother starts from zero, so the first placement is a fifth of
	// the raw one: center (28,32), size 26x34.
	assert.InDelta(t, 28.0, res.Placement.CX, 1e-9)
	assert.InDelta(t, 32.0, res.Placement.CY, 1e-9)
	assert.Equal(t, [3]uint8{0, 0, 255}, pixel(t, frame, 28, 32), "garment drawn")
	assert.Equal(t, [3]uint8{100, 100, 100}, pixel(t, frame, 200, 200), "background untouched")
}

func TestProcessConverges(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetLandmarks(detector.FrontFacingLandmarks())
	s := newSession(t, det, nil)

	var res Result
	for iter := 0; iter < 40; iter++ {
		frame := grayFrame()
		res = s.Process(&frame)
		frame.Close()
	}

	assert.InDelta(t, 140.0, res.Placement.CX, 0.5)
	assert.InDelta(t, 160.0, res.Placement.CY, 0.5)
	assert.InDelta(t, 128.0, res.Placement.W, 0.5)
	assert.InDelta(t, 169.0, res.Placement.H, 0.5)
	assert.Equal(t, uint64(40), s.Frames())
}

func TestProcessNoPose(t *testing.T) {
	tests := []struct {
		name  string
		setup func(d *detector.MockDetector)
	}{
		{"empty landmarks", func(d *detector.MockDetector) { d.SetLandmarks(detector.Landmarks{}) }},
		{"nil landmarks", func(d *detector.MockDetector) { d.SetLandmarks(nil) }},
		{"partial set", func(d *detector.MockDetector) {
			d.SetLandmarks(detector.FrontFacingLandmarks()[:detector.MinLandmarks-1])
		}},
		{"detector error", func(d *detector.MockDetector) { d.SetError(errors.New("pose service down")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := detector.NewMockDetector()
			tt.setup(det)
			s := newSession(t, det, nil)

			frame := grayFrame()
			defer frame.Close()
			expected := panelOnly(frame, firstMale, metrics.NotDetected())
			defer expected.Close()

			res := s.Process(&frame)

			assert.False(t, res.Pose)
			assert.False(t, res.Composited)
			assert.Equal(t, metrics.SizeNA, res.Metrics.Size)
			assert.Zero(t, res.Metrics.Confidence)
			assert.True(t, bytes.Equal(expected.ToBytes(), frame.ToBytes()), "only the panel is drawn")
		})
	}
}

func TestProcessNoPoseKeepsSmoother(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetLandmarks(detector.FrontFacingLandmarks())
	s := newSession(t, det, nil)

	frame := grayFrame()
	defer frame.Close()
	first := s.Process(&frame)

	det.SetLandmarks(nil)
	s.Process(&frame)

	assert.Equal(t, first.Placement, s.smoother.State(), "no decay without a pose")
	assert.Equal(t, metrics.NotDetected(), s.Snapshot())
}

func TestProcessDegenerateGeometry(t *testing.T) {
	lm := detector.CloseUpLandmarks()
	det := detector.NewMockDetector()
	det.SetLandmarks(lm)
	s := newSession(t, det, nil)

	frame := grayFrame()
	defer frame.Close()

	want := metrics.NewEngine(metrics.DefaultOptions()).Evaluate(lm)
	expected := panelOnly(frame, firstMale, want)
	defer expected.Close()

	res := s.Process(&frame)

	assert.True(t, res.Pose)
	assert.False(t, res.Composited)
	assert.Equal(t, want, res.Metrics)
	assert.Equal(t, metrics.SizeXS, res.Metrics.Size)
	assert.Zero(t, s.smoother.State(), "smoother untouched")
	assert.True(t, bytes.Equal(expected.ToBytes(), frame.ToBytes()), "no garment pixels")
}

func TestProcessUndecodableGarment(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetLandmarks(detector.FrontFacingLandmarks())

	c := catalog.New(map[catalog.Group][]gocv.Mat{
		catalog.GroupMale:   {gocv.NewMat()},
		catalog.GroupFemale: {gocv.NewMat()},
	})
	defer c.Close()

	s, err := NewSession(Config{Detector: det, Catalog: c, Initial: firstMale})
	require.NoError(t, err)

	frame := grayFrame()
	defer frame.Close()

	var res Result
	assert.NotPanics(t, func() { res = s.Process(&frame) })
	assert.True(t, res.Pose)
	assert.False(t, res.Composited)
	assert.Equal(t, metrics.SizeS, res.Metrics.Size)
}

func TestSelect(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetLandmarks(detector.FrontFacingLandmarks())
	s := newSession(t, det, nil)

	err := s.Select(catalog.GroupMale, 99)
	assert.ErrorIs(t, err, catalog.ErrInvalidSelection)
	assert.Equal(t, firstMale, s.Current(), "previous selection kept")

	frame := grayFrame()
	defer frame.Close()
	res := s.Process(&frame)
	assert.Equal(t, firstMale, res.Selection)
	assert.True(t, res.Composited, "frame loop unaffected")

	require.NoError(t, s.Select(catalog.GroupFemale, 2))
	next := grayFrame()
	defer next.Close()
	res = s.Process(&next)

	want := catalog.Selection{Group: catalog.GroupFemale, Position: 2}
	assert.Equal(t, want, res.Selection)
	// Second frame placement: center (50.4, 57.6).
	assert.Equal(t, [3]uint8{255, 0, 0}, pixel(t, next, 50, 57), "female garment drawn")
}

func cameraFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := grayFrame()
		frames[i] = &m
	}
	t.Cleanup(func() {
		for _, f := range frames {
			f.Close()
		}
	})
	return frames
}

func TestRunEndOfStream(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetLandmarks(detector.FrontFacingLandmarks())
	cam := capture.NewMockCamera(cameraFrames(t, 3), false)
	s := newSession(t, det, cam)

	var results []Result
	err := s.Run(context.Background(), SinkFunc(func(frame *gocv.Mat, res Result) {
		assert.False(t, frame.Empty())
		results = append(results, res)
	}))

	require.NoError(t, err, "end of stream is not an error")
	require.Len(t, results, 3)
	assert.Equal(t, uint64(3), results[2].Frame)
	assert.Equal(t, StateStopped, s.State())
	assert.False(t, cam.IsOpen(), "camera closed on return")
}

func TestRunStop(t *testing.T) {
	det := detector.NewMockDetector()
	cam := capture.NewMockCamera(cameraFrames(t, 2), true)
	s := newSession(t, det, cam)

	emitted := 0
	err := s.Run(context.Background(), SinkFunc(func(*gocv.Mat, Result) {
		emitted++
		if emitted == 5 {
			s.Stop()
		}
	}))

	require.NoError(t, err)
	assert.Equal(t, 5, emitted)
	assert.Equal(t, 5, cam.Reads())
	assert.True(t, s.Stopped())
	assert.Equal(t, StateStopped, s.State())
}

func TestRunContextCancel(t *testing.T) {
	det := detector.NewMockDetector()
	cam := capture.NewMockCamera(cameraFrames(t, 1), true)
	s := newSession(t, det, cam)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitted := 0
	err := s.Run(ctx, SinkFunc(func(*gocv.Mat, Result) {
		emitted++
		cancel()
	}))

	require.NoError(t, err)
	assert.Equal(t, 1, emitted)
}

func TestRunCameraUnavailable(t *testing.T) {
	cam := capture.NewMockCamera(nil, false)
	openErr := errors.New("no such device")
	cam.SetOpenError(openErr)
	s := newSession(t, detector.NewMockDetector(), cam)

	err := s.Run(context.Background(), nil)
	assert.ErrorIs(t, err, openErr)
	assert.Equal(t, StateStopped, s.State())

	s = newSession(t, detector.NewMockDetector(), nil)
	assert.ErrorIs(t, s.Run(context.Background(), nil), capture.ErrCameraNotOpen)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_frame", StateAwaitingFrame.String())
	assert.Equal(t, "pose_detected", StatePoseDetected.String())
	assert.Equal(t, "no_pose", StateNoPose.String())
	assert.Equal(t, "rendered", StateRendered.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(42).String())
}
