// Package config loads the runtime tuning of the try-on service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayusman/trylia/internal/catalog"
	"github.com/ayusman/trylia/internal/detector"
	"github.com/ayusman/trylia/internal/metrics"
)

// Default values used when a field is absent from the tuning file.
const (
	DefaultListenAddr      = ":5000"
	DefaultCameraDevice    = 0
	DefaultFPS             = 15
	DefaultCatalogDir      = "assets"
	DefaultDatabaseFile    = "trylia.db"
	DefaultGroup           = catalog.GroupMale
	DefaultPosition        = 1
	DefaultMetricsInterval = 66 // milliseconds, about 15 Hz

	maxFileSize = 1 * 1024 * 1024 // 1MB
)

// Tuning is the JSON tuning file. Every field is optional; the Get methods
// fall back to the defaults above, so partial files are safe.
type Tuning struct {
	// Service
	ListenAddr   *string `json:"listen_addr,omitempty"`
	DatabasePath *string `json:"database_path,omitempty"`
	StaticDir    *string `json:"static_dir,omitempty"`

	// Capture
	CameraDevice *int `json:"camera_device,omitempty"`
	FPS          *int `json:"fps,omitempty"`

	// Catalog
	CatalogDir      *string `json:"catalog_dir,omitempty"`
	DefaultGroup    *string `json:"default_group,omitempty"`
	DefaultPosition *int    `json:"default_position,omitempty"`

	// Metrics and rendering
	StabilityNorm *float64 `json:"stability_norm,omitempty"`
	ClampToXL     *bool    `json:"clamp_to_xl,omitempty"`
	MirrorGarment *bool    `json:"mirror_garment,omitempty"`

	// Pose detector
	ModelComplexity        *int     `json:"model_complexity,omitempty"`
	MinDetectionConfidence *float64 `json:"min_detection_confidence,omitempty"`
	MinTrackingConfidence  *float64 `json:"min_tracking_confidence,omitempty"`

	// MetricsIntervalMillis is the websocket broadcast period.
	MetricsIntervalMillis *int `json:"metrics_interval_ms,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultTuning returns a Tuning with every field set to its default.
func DefaultTuning() *Tuning {
	det := detector.DefaultConfig()
	return &Tuning{
		ListenAddr:             ptrString(DefaultListenAddr),
		DatabasePath:           ptrString(defaultDatabasePath()),
		StaticDir:              ptrString(""),
		CameraDevice:           ptrInt(DefaultCameraDevice),
		FPS:                    ptrInt(DefaultFPS),
		CatalogDir:             ptrString(DefaultCatalogDir),
		DefaultGroup:           ptrString(string(DefaultGroup)),
		DefaultPosition:        ptrInt(DefaultPosition),
		StabilityNorm:          ptrFloat64(metrics.DefaultStabilityNorm),
		ClampToXL:              ptrBool(false),
		MirrorGarment:          ptrBool(false),
		ModelComplexity:        ptrInt(det.ModelComplexity),
		MinDetectionConfidence: ptrFloat64(det.MinConfidence),
		MinTrackingConfidence:  ptrFloat64(det.MinTrackingConf),
		MetricsIntervalMillis:  ptrInt(DefaultMetricsInterval),
	}
}

// defaultDatabasePath returns ~/.trylia/trylia.db, or a file in the working
// directory when the home directory is unknown.
func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDatabaseFile
	}
	return filepath.Join(home, ".trylia", DefaultDatabaseFile)
}

// LoadTuning loads a Tuning from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadTuning(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Tuning{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the values that are set.
func (c *Tuning) Validate() error {
	if c.StabilityNorm != nil && *c.StabilityNorm <= 0 {
		return fmt.Errorf("stability_norm must be positive, got %f", *c.StabilityNorm)
	}
	if c.FPS != nil && *c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", *c.FPS)
	}
	if c.CameraDevice != nil && *c.CameraDevice < 0 {
		return fmt.Errorf("camera_device must not be negative, got %d", *c.CameraDevice)
	}
	if c.DefaultGroup != nil {
		if _, err := catalog.ParseGroup(*c.DefaultGroup); err != nil {
			return fmt.Errorf("default_group: %w", err)
		}
	}
	if c.DefaultPosition != nil && *c.DefaultPosition < 1 {
		return fmt.Errorf("default_position must be at least 1, got %d", *c.DefaultPosition)
	}
	if c.ModelComplexity != nil && (*c.ModelComplexity < 0 || *c.ModelComplexity > 2) {
		return fmt.Errorf("model_complexity must be 0, 1 or 2, got %d", *c.ModelComplexity)
	}
	for name, v := range map[string]*float64{
		"min_detection_confidence": c.MinDetectionConfidence,
		"min_tracking_confidence":  c.MinTrackingConfidence,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}
	if c.MetricsIntervalMillis != nil && *c.MetricsIntervalMillis <= 0 {
		return fmt.Errorf("metrics_interval_ms must be positive, got %d", *c.MetricsIntervalMillis)
	}
	return nil
}

// Getters with default fallbacks.

func (c *Tuning) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return DefaultListenAddr
	}
	return *c.ListenAddr
}

func (c *Tuning) GetDatabasePath() string {
	if c.DatabasePath == nil || *c.DatabasePath == "" {
		return defaultDatabasePath()
	}
	return *c.DatabasePath
}

func (c *Tuning) GetStaticDir() string {
	if c.StaticDir == nil {
		return ""
	}
	return *c.StaticDir
}

func (c *Tuning) GetCameraDevice() int {
	if c.CameraDevice == nil {
		return DefaultCameraDevice
	}
	return *c.CameraDevice
}

func (c *Tuning) GetFPS() int {
	if c.FPS == nil {
		return DefaultFPS
	}
	return *c.FPS
}

func (c *Tuning) GetCatalogDir() string {
	if c.CatalogDir == nil || *c.CatalogDir == "" {
		return DefaultCatalogDir
	}
	return *c.CatalogDir
}

// GetInitialSelection returns the garment a new session starts with.
func (c *Tuning) GetInitialSelection() catalog.Selection {
	sel := catalog.Selection{Group: DefaultGroup, Position: DefaultPosition}
	if c.DefaultGroup != nil {
		if g, err := catalog.ParseGroup(*c.DefaultGroup); err == nil {
			sel.Group = g
		}
	}
	if c.DefaultPosition != nil {
		sel.Position = *c.DefaultPosition
	}
	return sel
}

// GetMetricsOptions returns the size and confidence policy.
func (c *Tuning) GetMetricsOptions() metrics.Options {
	opts := metrics.DefaultOptions()
	if c.StabilityNorm != nil {
		opts.StabilityNorm = *c.StabilityNorm
	}
	if c.ClampToXL != nil {
		opts.ClampToXL = *c.ClampToXL
	}
	return opts
}

func (c *Tuning) GetMirrorGarment() bool {
	return c.MirrorGarment != nil && *c.MirrorGarment
}

// GetDetectorConfig returns the pose detector settings.
func (c *Tuning) GetDetectorConfig() detector.Config {
	cfg := detector.DefaultConfig()
	if c.ModelComplexity != nil {
		cfg.ModelComplexity = *c.ModelComplexity
	}
	if c.MinDetectionConfidence != nil {
		cfg.MinConfidence = *c.MinDetectionConfidence
	}
	if c.MinTrackingConfidence != nil {
		cfg.MinTrackingConf = *c.MinTrackingConfidence
	}
	return cfg
}

func (c *Tuning) GetMetricsIntervalMillis() int {
	if c.MetricsIntervalMillis == nil {
		return DefaultMetricsInterval
	}
	return *c.MetricsIntervalMillis
}
