package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/trylia/internal/app"
	"github.com/ayusman/trylia/internal/catalog"
	"github.com/ayusman/trylia/internal/config"
	"github.com/ayusman/trylia/internal/server"
	"github.com/ayusman/trylia/internal/store"
	"github.com/ayusman/trylia/internal/tray"
)

// Config holds the command line options. Empty or negative values leave
// the tuning file (or its defaults) in charge.
type Config struct {
	ConfigPath string
	Addr       string
	Camera     int
	CatalogDir string
	Database   string
	StaticDir  string
	Tray       bool
	AutoStart  bool
}

func main() {
	cfg := parseFlags()

	if err := run(cfg); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.ConfigPath, "config", "", "Tuning file (JSON)")
	flag.StringVar(&cfg.Addr, "addr", "", "HTTP listen address (default "+config.DefaultListenAddr+")")
	flag.IntVar(&cfg.Camera, "camera", -1, "Camera device index")
	flag.StringVar(&cfg.CatalogDir, "catalog", "", "Garment directory with male/ and female/ subdirectories")
	flag.StringVar(&cfg.Database, "db", "", "SQLite database path")
	flag.StringVar(&cfg.StaticDir, "static", "", "Directory with the web UI")
	flag.BoolVar(&cfg.Tray, "tray", false, "Show a system tray menu")
	flag.BoolVar(&cfg.AutoStart, "start", false, "Start a try-on with the last used garment")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Trylia - Virtual Try-On Service\n\n")
		fmt.Fprintf(os.Stderr, "Usage: trylia [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	return cfg
}

// loadTuning reads the tuning file, if any, and applies the flag overrides.
func loadTuning(cfg Config) (*config.Tuning, error) {
	tuning := config.DefaultTuning()
	if cfg.ConfigPath != "" {
		loaded, err := config.LoadTuning(cfg.ConfigPath)
		if err != nil {
			return nil, err
		}
		tuning = loaded
	}

	if cfg.Addr != "" {
		tuning.ListenAddr = &cfg.Addr
	}
	if cfg.Camera >= 0 {
		tuning.CameraDevice = &cfg.Camera
	}
	if cfg.CatalogDir != "" {
		tuning.CatalogDir = &cfg.CatalogDir
	}
	if cfg.Database != "" {
		tuning.DatabasePath = &cfg.Database
	}
	if cfg.StaticDir != "" {
		tuning.StaticDir = &cfg.StaticDir
	}

	if err := tuning.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return tuning, nil
}

func run(cfg Config) error {
	fmt.Println("Trylia - Virtual Try-On")

	tuning, err := loadTuning(cfg)
	if err != nil {
		return err
	}

	// Initialize the store
	st, err := store.New(tuning.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()
	if version, _, err := st.SchemaVersion(); err == nil {
		fmt.Printf("Database %s (schema v%d)\n", st.Path(), version)
	}

	garments, err := catalog.Load(tuning.GetCatalogDir())
	if err != nil {
		return fmt.Errorf("failed to load garments: %w", err)
	}
	defer garments.Close()
	fmt.Printf("Loaded %d male and %d female garments from %s\n",
		garments.Count(catalog.GroupMale), garments.Count(catalog.GroupFemale), garments.Root())

	manager := app.New(app.Config{
		Catalog:       garments,
		Store:         st,
		CameraID:      tuning.GetCameraDevice(),
		FPS:           tuning.GetFPS(),
		Metrics:       tuning.GetMetricsOptions(),
		MirrorGarment: tuning.GetMirrorGarment(),
		NewDetector:   app.MediaPipeOrMock(tuning.GetDetectorConfig()),
	})
	if err := manager.SyncGarments(); err != nil {
		return fmt.Errorf("failed to sync garments: %w", err)
	}

	// Find web directory
	webDir := tuning.GetStaticDir()
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir:       webDir,
		Controller:      manager,
		Hub:             manager.Hub(),
		MetricsInterval: time.Duration(tuning.GetMetricsIntervalMillis()) * time.Millisecond,
	})
	defer srv.Close()

	addr := tuning.GetListenAddr()
	httpServer := &http.Server{Addr: addr, Handler: srv}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Starting server on %s\n", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	initial := manager.LastSelection(tuning.GetInitialSelection())
	if cfg.AutoStart {
		if err := manager.Start(initial); err != nil {
			log.Printf("Error starting try-on: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tray {
		go runTray(manager, initial, browserURL(addr), stop)
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		fmt.Println("\nShutting down...")
	}

	manager.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// runTray shows the tray menu with every catalog garment and forwards its
// actions to the manager. Quitting from the tray shuts the service down.
func runTray(manager *app.Manager, initial catalog.Selection, url string, quit func()) {
	var selections []catalog.Selection
	for _, g := range manager.Catalog().All() {
		selections = append(selections, catalog.Selection{Group: g.Group, Position: g.Position})
	}

	t := tray.New(selections)
	t.SetCurrent(initial)
	manager.OnRunningChange(t.SetRunning)
	t.SetRunning(manager.Running())

	t.OnStart(manager.Start)
	t.OnStop(manager.Stop)
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			log.Printf("Error opening browser: %v", err)
		}
	})
	t.OnQuit(quit)

	t.Run()
}

func browserURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://localhost" + addr + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.trylia/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if absPath, err := filepath.Abs(p); err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".trylia", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
