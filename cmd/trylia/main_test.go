package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/trylia/internal/config"
)

func TestBrowserURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":5000", "http://localhost:5000/"},
		{"0.0.0.0:8080", "http://localhost:8080/"},
		{"127.0.0.1:5000", "http://127.0.0.1:5000/"},
		{"[::]:5000", "http://localhost:5000/"},
	}

	for _, tt := range tests {
		if got := browserURL(tt.addr); got != tt.want {
			t.Errorf("browserURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestLoadTuning_FlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	if err := os.WriteFile(path, []byte(`{"listen_addr": ":7000", "camera_device": 2, "fps": 20}`), 0644); err != nil {
		t.Fatal(err)
	}

	tuning, err := loadTuning(Config{ConfigPath: path, Addr: ":9000", Camera: -1})
	if err != nil {
		t.Fatalf("loadTuning() error = %v", err)
	}
	if got := tuning.GetListenAddr(); got != ":9000" {
		t.Errorf("listen addr = %q, want flag value :9000", got)
	}
	if got := tuning.GetCameraDevice(); got != 2 {
		t.Errorf("camera = %d, want file value 2", got)
	}
	if got := tuning.GetFPS(); got != 20 {
		t.Errorf("fps = %d, want 20", got)
	}
}

func TestLoadTuning_Defaults(t *testing.T) {
	tuning, err := loadTuning(Config{Camera: -1})
	if err != nil {
		t.Fatalf("loadTuning() error = %v", err)
	}
	if got := tuning.GetListenAddr(); got != config.DefaultListenAddr {
		t.Errorf("listen addr = %q, want %q", got, config.DefaultListenAddr)
	}
}

func TestLoadTuning_MissingFile(t *testing.T) {
	if _, err := loadTuning(Config{ConfigPath: filepath.Join(t.TempDir(), "nope.json"), Camera: -1}); err == nil {
		t.Error("expected error for a missing tuning file")
	}
}
