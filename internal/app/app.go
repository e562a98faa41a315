// Package app supervises try-on sessions for the service front ends.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/ayusman/trylia/internal/capture"
	"github.com/ayusman/trylia/internal/catalog"
	"github.com/ayusman/trylia/internal/detector"
	"github.com/ayusman/trylia/internal/metrics"
	"github.com/ayusman/trylia/internal/store"
	"github.com/ayusman/trylia/internal/tryon"
)

// ErrNotRunning is returned by operations that need an active session.
var ErrNotRunning = errors.New("no try-on session is running")

// CameraFactory opens a camera by device index.
type CameraFactory func(deviceID int) capture.Camera

// DetectorFactory creates the pose detector for a new session.
type DetectorFactory func() (detector.Detector, error)

// Config holds configuration options for the manager.
type Config struct {
	Catalog *catalog.Catalog
	// Store is optional. Without it garment IDs and the last selection are
	// not persisted.
	Store *store.Store

	CameraID      int
	FPS           int
	Metrics       metrics.Options
	MirrorGarment bool

	NewCamera   CameraFactory
	NewDetector DetectorFactory
}

// Status is a point-in-time view of the manager.
type Status struct {
	Running   bool               `json:"isRunning"`
	State     string             `json:"state"`
	Selection *catalog.Selection `json:"selection,omitempty"`
	Title     string             `json:"title,omitempty"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	Frames    uint64             `json:"frames"`
	Metrics   metrics.Snapshot   `json:"metrics"`
	Stream    HubStats           `json:"stream"`
	Recent    Summary            `json:"recent"`
	Timestamp time.Time          `json:"timestamp"`
}

// Manager runs at most one try-on session at a time in a background
// goroutine and publishes its frames to a Hub.
type Manager struct {
	config Config
	hub    *Hub

	// ops serializes Start and Stop.
	ops sync.Mutex

	mu        sync.Mutex
	session   *tryon.Session
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	last      *tryon.Session
	onRunning func(running bool)
}

// New creates a new Manager.
func New(config Config) *Manager {
	if config.NewCamera == nil {
		config.NewCamera = capture.NewCamera
	}
	if config.NewDetector == nil {
		config.NewDetector = MediaPipeOrMock(detector.DefaultConfig())
	}
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}

	return &Manager{
		config: config,
		hub:    NewHub(),
	}
}

// MediaPipeOrMock returns a factory that tries the MediaPipe pose service
// and falls back to a detector that never finds a pose, so the panel is
// still shown.
func MediaPipeOrMock(cfg detector.Config) DetectorFactory {
	return func() (detector.Detector, error) {
		mp, err := detector.NewMediaPipeDetector(cfg)
		if err == nil {
			log.Println("Using MediaPipe pose detection")
			return mp, nil
		}
		log.Printf("MediaPipe not available (%v), using mock detector", err)
		return detector.NewMockDetector(), nil
	}
}

// OnRunningChange sets a callback fired whenever a session starts or ends,
// including when the camera stream runs out. It is called without locks held.
func (m *Manager) OnRunningChange(fn func(running bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRunning = fn
}

func (m *Manager) notifyRunning(running bool) {
	m.mu.Lock()
	fn := m.onRunning
	m.mu.Unlock()
	if fn != nil {
		fn(running)
	}
}

// Hub returns the output frame hub.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Catalog returns the garment catalog.
func (m *Manager) Catalog() *catalog.Catalog {
	return m.config.Catalog
}

// Start stops any running session and starts a new one showing sel.
// The camera is opened before Start returns, so a missing device is
// reported to the caller.
func (m *Manager) Start(sel catalog.Selection) error {
	if err := m.config.Catalog.Validate(sel); err != nil {
		return err
	}

	m.ops.Lock()
	defer m.ops.Unlock()

	m.stop()

	cam := m.config.NewCamera(m.config.CameraID)
	if err := cam.Open(); err != nil {
		return fmt.Errorf("open camera %d: %w", m.config.CameraID, err)
	}
	cam.SetFPS(m.config.FPS)

	det, err := m.config.NewDetector()
	if err != nil {
		cam.Close()
		return fmt.Errorf("create detector: %w", err)
	}

	session, err := tryon.NewSession(tryon.Config{
		Camera:        cam,
		Detector:      det,
		Catalog:       m.config.Catalog,
		Initial:       sel,
		Metrics:       m.config.Metrics,
		MirrorGarment: m.config.MirrorGarment,
	})
	if err != nil {
		cam.Close()
		det.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.session = session
	m.last = session
	m.cancel = cancel
	m.done = done
	m.startedAt = time.Now()
	m.mu.Unlock()

	go m.run(ctx, session, det, done)

	m.notifyRunning(true)
	m.saveSelection(sel)
	log.Printf("Try-on started with %s", catalog.Title(sel))
	return nil
}

func (m *Manager) run(ctx context.Context, session *tryon.Session, det detector.Detector, done chan struct{}) {
	defer close(done)

	if err := session.Run(ctx, m.hub); err != nil {
		log.Printf("Try-on session failed: %v", err)
	}
	if err := det.Close(); err != nil {
		log.Printf("Error closing detector: %v", err)
	}

	m.mu.Lock()
	ended := m.session == session
	if ended {
		m.session = nil
		m.cancel = nil
		m.done = nil
	}
	m.mu.Unlock()

	if ended {
		m.notifyRunning(false)
	}

	log.Printf("Try-on session ended after %d frames", session.Frames())
}

// Stop stops the running session and waits for it to finish.
// Stopping when nothing runs is a no-op.
func (m *Manager) Stop() {
	m.ops.Lock()
	defer m.ops.Unlock()
	m.stop()
}

func (m *Manager) stop() {
	m.mu.Lock()
	session, cancel, done := m.session, m.cancel, m.done
	m.session, m.cancel, m.done = nil, nil, nil
	m.mu.Unlock()

	if session == nil {
		return
	}

	session.Stop()
	cancel()
	<-done
	m.notifyRunning(false)
	log.Println("Try-on stopped")
}

// Wait blocks until the running session, if any, has finished.
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether a session is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Select changes the garment of the running session.
func (m *Manager) Select(sel catalog.Selection) error {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return ErrNotRunning
	}
	if err := session.Select(sel.Group, sel.Position); err != nil {
		return err
	}

	m.saveSelection(sel)
	log.Printf("Selected %s", catalog.Title(sel))
	return nil
}

// Status reports the state of the current or most recent session.
func (m *Manager) Status() Status {
	m.mu.Lock()
	session, last, startedAt := m.session, m.last, m.startedAt
	m.mu.Unlock()

	st := Status{
		State:     tryon.StateStopped.String(),
		Metrics:   metrics.NotDetected(),
		Stream:    m.hub.Stats(),
		Recent:    m.hub.Summary(),
		Timestamp: time.Now(),
	}
	if last == nil {
		return st
	}

	sel := last.Current()
	st.Running = session != nil
	st.State = last.State().String()
	st.Selection = &sel
	st.Title = catalog.Title(sel)
	st.Frames = last.Frames()
	st.Metrics = last.Snapshot()
	if st.Running {
		st.StartedAt = &startedAt
	}
	return st
}

// TestCamera checks that the configured camera delivers a frame.
// It fails while a session holds the camera.
func (m *Manager) TestCamera() error {
	if m.Running() {
		return errors.New("camera is in use by the running session")
	}
	return capture.Probe(m.config.NewCamera(m.config.CameraID))
}

// SyncGarments records the catalog in the store so every garment has a
// stable ID.
func (m *Manager) SyncGarments() error {
	if m.config.Store == nil {
		return nil
	}

	var files []store.GarmentFile
	for _, g := range m.config.Catalog.All() {
		files = append(files, store.GarmentFile{
			Group:    string(g.Group),
			Position: g.Position,
			FileName: g.Name,
			Path:     g.Path,
		})
	}

	if err := m.config.Store.Garments().Sync(files); err != nil {
		return fmt.Errorf("sync garments: %w", err)
	}
	log.Printf("Indexed %d garments", len(files))
	return nil
}

// Garments returns the garment index. Without a store it is built from
// the catalog and carries no IDs.
func (m *Manager) Garments() ([]*store.Garment, error) {
	if m.config.Store != nil {
		return m.config.Store.Garments().List()
	}

	var garments []*store.Garment
	for _, g := range m.config.Catalog.All() {
		garments = append(garments, &store.Garment{
			Group:     string(g.Group),
			Position:  g.Position,
			FileName:  g.Name,
			Path:      g.Path,
			Available: true,
		})
	}
	return garments, nil
}

// ResolveGarment maps a garment ID from the index to a selection.
func (m *Manager) ResolveGarment(id string) (catalog.Selection, error) {
	if m.config.Store == nil {
		return catalog.Selection{}, fmt.Errorf("garment %s: %w", id, store.ErrNotFound)
	}

	g, err := m.config.Store.Garments().GetByID(id)
	if err != nil {
		return catalog.Selection{}, fmt.Errorf("garment %s: %w", id, err)
	}
	if !g.Available {
		return catalog.Selection{}, fmt.Errorf("%w: garment %s is no longer in the catalog", catalog.ErrInvalidSelection, id)
	}

	sel := catalog.Selection{Group: catalog.Group(g.Group), Position: g.Position}
	if err := m.config.Catalog.Validate(sel); err != nil {
		return catalog.Selection{}, err
	}
	return sel, nil
}

// LastSelection returns the most recently used garment, or fallback when
// none was stored or it no longer exists.
func (m *Manager) LastSelection(fallback catalog.Selection) catalog.Selection {
	if m.config.Store == nil {
		return fallback
	}

	settings := m.config.Store.Settings()
	group, err := settings.Get(store.SettingLastGroup)
	if err != nil {
		return fallback
	}
	position, err := settings.Get(store.SettingLastPosition)
	if err != nil {
		return fallback
	}

	g, err := catalog.ParseGroup(group)
	if err != nil {
		return fallback
	}
	p, err := strconv.Atoi(position)
	if err != nil {
		return fallback
	}

	sel := catalog.Selection{Group: g, Position: p}
	if m.config.Catalog.Validate(sel) != nil {
		return fallback
	}
	return sel
}

func (m *Manager) saveSelection(sel catalog.Selection) {
	if m.config.Store == nil {
		return
	}

	settings := m.config.Store.Settings()
	if err := settings.Set(store.SettingLastGroup, string(sel.Group)); err != nil {
		log.Printf("Error saving selection: %v", err)
		return
	}
	if err := settings.Set(store.SettingLastPosition, strconv.Itoa(sel.Position)); err != nil {
		log.Printf("Error saving selection: %v", err)
	}
}
