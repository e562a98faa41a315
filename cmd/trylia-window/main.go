package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"gocv.io/x/gocv"

	"github.com/ayusman/trylia/internal/app"
	"github.com/ayusman/trylia/internal/capture"
	"github.com/ayusman/trylia/internal/catalog"
	"github.com/ayusman/trylia/internal/config"
	"github.com/ayusman/trylia/internal/tryon"
)

const windowName = "Virtual Try-On"

func init() {
	// highgui must run on the main OS thread on macOS.
	runtime.LockOSThread()
}

type Config struct {
	ConfigPath string
	Camera     int
	CatalogDir string
	Fullscreen bool
}

func main() {
	cfg := parseFlags()

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.ConfigPath, "config", "", "Tuning file (JSON)")
	flag.IntVar(&cfg.Camera, "camera", -1, "Camera device index")
	flag.StringVar(&cfg.CatalogDir, "catalog", "", "Garment directory with male/ and female/ subdirectories")
	flag.BoolVar(&cfg.Fullscreen, "fullscreen", true, "Show the preview full screen")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Trylia Window - Virtual try-on preview\n\n")
		fmt.Fprintf(os.Stderr, "Usage: trylia-window [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nKeys:\n")
		fmt.Fprintf(os.Stderr, "  1-5  choose a garment\n")
		fmt.Fprintf(os.Stderr, "  q    quit\n")
	}

	flag.Parse()
	return cfg
}

// keySelections maps the number keys to garments.
var keySelections = map[int]catalog.Selection{
	'1': {Group: catalog.GroupMale, Position: 1},
	'2': {Group: catalog.GroupMale, Position: 2},
	'3': {Group: catalog.GroupFemale, Position: 1},
	'4': {Group: catalog.GroupMale, Position: 3},
	'5': {Group: catalog.GroupFemale, Position: 2},
}

const keyEscape = 27

// handleKey applies a key press to the session. It reports false when the
// preview should close.
func handleKey(session *tryon.Session, key int) bool {
	if key < 0 {
		return true
	}
	key &= 0xFF

	if key == 'q' || key == keyEscape {
		return false
	}
	if sel, ok := keySelections[key]; ok {
		if err := session.Select(sel.Group, sel.Position); err != nil {
			log.Printf("Ignoring key %q: %v", rune(key), err)
		}
	}
	return true
}

func run(cfg Config) error {
	tuning := config.DefaultTuning()
	if cfg.ConfigPath != "" {
		loaded, err := config.LoadTuning(cfg.ConfigPath)
		if err != nil {
			return err
		}
		tuning = loaded
	}
	if cfg.Camera >= 0 {
		tuning.CameraDevice = &cfg.Camera
	}
	if cfg.CatalogDir != "" {
		tuning.CatalogDir = &cfg.CatalogDir
	}

	garments, err := catalog.Load(tuning.GetCatalogDir())
	if err != nil {
		return fmt.Errorf("failed to load garments: %w", err)
	}
	defer garments.Close()

	det, err := app.MediaPipeOrMock(tuning.GetDetectorConfig())()
	if err != nil {
		return fmt.Errorf("failed to create detector: %w", err)
	}
	defer det.Close()

	cam := capture.NewCamera(tuning.GetCameraDevice())
	fmt.Printf("Opening camera %d...\n", tuning.GetCameraDevice())
	if err := cam.Open(); err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	cam.SetFPS(tuning.GetFPS())

	initial := tuning.GetInitialSelection()
	if garments.Validate(initial) != nil {
		initial = catalog.Selection{Group: catalog.GroupMale, Position: 1}
	}

	session, err := tryon.NewSession(tryon.Config{
		Camera:        cam,
		Detector:      det,
		Catalog:       garments,
		Initial:       initial,
		Metrics:       tuning.GetMetricsOptions(),
		MirrorGarment: tuning.GetMirrorGarment(),
	})
	if err != nil {
		cam.Close()
		return err
	}

	window := gocv.NewWindow(windowName)
	defer window.Close()
	if cfg.Fullscreen {
		window.SetWindowProperty(gocv.WindowPropertyFullscreen, gocv.WindowFullscreen)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("\nRunning... Press 1-5 to change garment, 'q' to quit")

	// Run drives the sink on this goroutine, so the window calls stay on
	// the main thread.
	sink := tryon.SinkFunc(func(frame *gocv.Mat, res tryon.Result) {
		window.IMShow(*frame)
		if !handleKey(session, window.WaitKey(1)) {
			session.Stop()
		}
	})
	if err := session.Run(ctx, sink); err != nil {
		return err
	}

	fmt.Printf("Stopped after %d frames\n", session.Frames())
	return nil
}
