package detector

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

func TestFindServiceScript_FromRepoRoot(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(filepath.Join("..", "..")); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	d, err := NewMediaPipeDetector(DefaultConfig())
	if err != nil {
		t.Fatalf("NewMediaPipeDetector() error = %v", err)
	}
	if filepath.Base(d.scriptPath) != serviceScript {
		t.Errorf("scriptPath = %q, want a %s", d.scriptPath, serviceScript)
	}
}

// echoHelper speaks the helper protocol and answers every frame with one
// landmark holding the frame length in x.
const echoHelper = `import json, struct, sys
stdin = sys.stdin.buffer
while True:
    header = stdin.read(4)
    if len(header) < 4:
        break
    (n,) = struct.unpack(">I", header)
    data = stdin.read(n)
    sys.stdout.write(json.dumps({"landmarks": [{"x": len(data), "y": 7, "visibility": 0.5}]}) + "\n")
    sys.stdout.flush()
`

func TestMediaPipeDetector_Protocol(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping subprocess test")
	}
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}

	script := filepath.Join(t.TempDir(), "helper.py")
	if err := os.WriteFile(script, []byte(echoHelper), 0o644); err != nil {
		t.Fatal(err)
	}

	d := &MediaPipeDetector{config: DefaultConfig(), scriptPath: script}
	defer d.Close()

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(50, 60, 70, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	for i := 0; i < 2; i++ {
		lm, err := d.Detect(&frame)
		if err != nil {
			t.Fatalf("Detect() #%d error = %v", i, err)
		}
		if len(lm) != 1 || lm[0].X <= 0 || lm[0].Y != 7 {
			t.Fatalf("Detect() #%d = %+v, want one landmark with the JPEG length", i, lm)
		}
	}
}
