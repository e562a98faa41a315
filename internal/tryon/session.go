// Package tryon runs the per-frame virtual try-on pipeline.
package tryon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/ayusman/trylia/internal/capture"
	"github.com/ayusman/trylia/internal/catalog"
	"github.com/ayusman/trylia/internal/detector"
	"github.com/ayusman/trylia/internal/metrics"
	"github.com/ayusman/trylia/internal/placement"
	"github.com/ayusman/trylia/internal/render"
)

// Config holds the collaborators and options of a session.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	Catalog  *catalog.Catalog

	// Initial is the garment shown when the session starts.
	Initial catalog.Selection

	Metrics       metrics.Options
	MirrorGarment bool
}

// Result describes one processed frame.
type Result struct {
	Frame     uint64            `json:"frame"`
	Selection catalog.Selection `json:"selection"`
	Metrics   metrics.Snapshot  `json:"metrics"`
	// Pose is true when the frame had a usable landmark set.
	Pose bool `json:"pose"`
	// Composited is true when the garment was drawn onto the frame.
	Composited bool                `json:"composited"`
	Placement  placement.Placement `json:"placement"`
	Angle      float64             `json:"angle"`
}

// Sink receives every output frame. The frame is only valid for the
// duration of the call.
type Sink interface {
	Emit(frame *gocv.Mat, res Result)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(frame *gocv.Mat, res Result)

// Emit calls f(frame, res).
func (f SinkFunc) Emit(frame *gocv.Mat, res Result) {
	f(frame, res)
}

// Session owns the state of one try-on: the active selection and the
// placement smoother. Frames are processed strictly one at a time.
type Session struct {
	camera     capture.Camera
	detector   detector.Detector
	catalog    *catalog.Catalog
	selector   *catalog.Selector
	engine     *metrics.Engine
	smoother   *placement.Smoother
	compositor *render.Compositor

	mu       sync.RWMutex
	snapshot metrics.Snapshot

	state   atomic.Int32
	frames  atomic.Uint64
	stopped atomic.Bool
}

// NewSession creates a new Session. The camera is only needed by Run.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("tryon: catalog is required")
	}
	if cfg.Detector == nil {
		return nil, errors.New("tryon: detector is required")
	}

	selector, err := catalog.NewSelector(cfg.Catalog, cfg.Initial)
	if err != nil {
		return nil, fmt.Errorf("initial selection: %w", err)
	}

	return &Session{
		camera:     cfg.Camera,
		detector:   cfg.Detector,
		catalog:    cfg.Catalog,
		selector:   selector,
		engine:     metrics.NewEngine(cfg.Metrics),
		smoother:   placement.NewSmoother(),
		compositor: render.NewCompositor(cfg.MirrorGarment),
		snapshot:   metrics.NotDetected(),
	}, nil
}

// Select changes the garment used from the next frame on. An invalid
// selection is rejected and the current one stays active.
func (s *Session) Select(group catalog.Group, position int) error {
	return s.selector.Select(group, position)
}

// Current returns the active selection.
func (s *Session) Current() catalog.Selection {
	return s.selector.Current()
}

// Snapshot returns the metrics of the last processed frame.
func (s *Session) Snapshot() metrics.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// State returns the current state of the frame loop.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Frames returns the number of frames processed so far.
func (s *Session) Frames() uint64 {
	return s.frames.Load()
}

// Stop asks Run to return before reading the next frame.
func (s *Session) Stop() {
	s.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (s *Session) Stopped() bool {
	return s.stopped.Load()
}

// Process runs the pipeline on one frame in place: pose detection, metrics,
// smoothing, garment compositing and the info panel. Per-frame failures are
// logged and leave a panel-only frame.
func (s *Session) Process(frame *gocv.Mat) Result {
	sel := s.selector.Current()
	res := Result{
		Frame:     s.frames.Add(1),
		Selection: sel,
	}

	lm, err := s.detector.Detect(frame)
	if err != nil {
		log.Printf("Pose detection failed: %v", err)
		lm = nil
	}

	if !lm.Usable() {
		s.setState(StateNoPose)
		res.Metrics = metrics.NotDetected()
	} else {
		s.setState(StatePoseDetected)
		res.Pose = true
		res.Metrics = s.engine.Evaluate(lm)
		s.placeGarment(frame, lm, sel, &res)
	}
	s.setSnapshot(res.Metrics)

	render.DrawPanel(frame, render.PanelInfo{
		Title:   catalog.Title(sel),
		Metrics: res.Metrics,
	})
	s.setState(StateRendered)

	return res
}

// placeGarment updates the smoother and composites the selected garment.
// Degenerate geometry leaves both the smoother and the frame untouched.
func (s *Session) placeGarment(frame *gocv.Mat, lm detector.Landmarks, sel catalog.Selection, res *Result) {
	geo, ok := placement.Measure(lm)
	if !ok || geo.Degenerate() {
		return
	}

	p := s.smoother.Update(geo.Raw)
	res.Placement = p
	res.Angle = geo.Angle

	garment, err := s.catalog.Get(sel)
	if err != nil {
		log.Printf("Garment %s unavailable: %v", catalog.Title(sel), err)
		return
	}

	if err := s.compositor.Composite(frame, garment.Image, p, geo.Angle); err != nil {
		log.Printf("Skipping garment %s: %v", garment.Name, err)
		return
	}
	res.Composited = true
}

// Run reads frames until the camera ends the stream, Stop is called or ctx
// is done, handing every processed frame to sink. The end of the stream is
// a normal return. Run opens the camera if needed and closes it on return.
func (s *Session) Run(ctx context.Context, sink Sink) error {
	defer s.setState(StateStopped)

	if s.camera == nil {
		return capture.ErrCameraNotOpen
	}
	if !s.camera.IsOpen() {
		if err := s.camera.Open(); err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
	}
	defer s.camera.Close()

	for {
		if s.stopped.Load() || ctx.Err() != nil {
			return nil
		}

		s.setState(StateAwaitingFrame)
		frame, err := s.camera.ReadFrame()
		if err != nil {
			log.Printf("Frame capture ended: %v", err)
			return nil
		}

		res := s.Process(frame)
		if sink != nil {
			sink.Emit(frame, res)
		}
		frame.Close()
	}
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Session) setSnapshot(snap metrics.Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}
