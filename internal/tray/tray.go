// Package tray provides a system tray menu for the try-on service.
package tray

import (
	"log"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/trylia/internal/catalog"
)

// Tray represents the system tray application.
type Tray struct {
	garments []catalog.Selection

	onStart func(sel catalog.Selection) error
	onStop  func()
	onOpen  func()
	onQuit  func()

	mu      sync.RWMutex
	running bool
	current catalog.Selection

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuCurrent  *systray.MenuItem
	menuGarments map[catalog.Selection]*systray.MenuItem
}

// New creates a new Tray offering the given garments. The first one is
// selected until another is picked.
func New(garments []catalog.Selection) *Tray {
	t := &Tray{garments: garments}
	if len(garments) > 0 {
		t.current = garments[0]
	}
	return t
}

// OnStart sets the callback used to start a try-on with a garment.
func (t *Tray) OnStart(fn func(sel catalog.Selection) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = fn
}

// OnStop sets the callback used to stop the try-on.
func (t *Tray) OnStop(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStop = fn
}

// OnOpen sets the callback for the "Open Try-On Page" item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Trylia")
	systray.SetTooltip("Trylia Virtual Try-On")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(false), "Start or stop the virtual try-on")
	t.menuCurrent = systray.AddMenuItem(currentTitle(t.current), "Selected garment")
	t.menuCurrent.Disable()
	systray.AddSeparator()

	menuGarments := systray.AddMenuItem("Garments", "Choose a garment")
	t.menuGarments = make(map[catalog.Selection]*systray.MenuItem, len(t.garments))
	for _, sel := range t.garments {
		item := menuGarments.AddSubMenuItem(catalog.Title(sel), "Try on "+catalog.Title(sel))
		if sel == t.current {
			item.Check()
		}
		t.menuGarments[sel] = item

		go func(sel catalog.Selection, item *systray.MenuItem) {
			for range item.ClickedCh {
				t.handleSelect(sel)
			}
		}(sel, item)
	}
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Try-On Page...", "Open the live view in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Trylia")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

func toggleTitle(running bool) string {
	if running {
		return "■ Stop Try-On"
	}
	return "▶ Start Try-On"
}

func currentTitle(sel catalog.Selection) string {
	if sel.Group == "" {
		return "Garment: none"
	}
	return "Garment: " + catalog.Title(sel)
}

// handleToggle starts or stops the try-on.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	running, sel := t.running, t.current
	onStart, onStop := t.onStart, t.onStop
	t.mu.RUnlock()

	// Call the callbacks outside the lock to prevent deadlocks
	if running {
		if onStop != nil {
			onStop()
		}
		t.SetRunning(false)
		return
	}

	if onStart != nil {
		if err := onStart(sel); err != nil {
			log.Printf("Error starting try-on from tray: %v", err)
			return
		}
	}
	t.SetRunning(true)
}

// handleSelect picks a garment and starts, or restarts, the try-on with it.
func (t *Tray) handleSelect(sel catalog.Selection) {
	t.mu.RLock()
	onStart := t.onStart
	t.mu.RUnlock()

	if onStart != nil {
		if err := onStart(sel); err != nil {
			log.Printf("Error selecting %s from tray: %v", catalog.Title(sel), err)
			return
		}
	}
	t.SetCurrent(sel)
	t.SetRunning(true)
}

// handleOpen handles the open menu item click.
func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetRunning updates the start/stop item.
func (t *Tray) SetRunning(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.running = running
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(running))
	}
}

// SetCurrent marks sel as the selected garment.
func (t *Tray) SetCurrent(sel catalog.Selection) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if item, ok := t.menuGarments[t.current]; ok {
		item.Uncheck()
	}
	t.current = sel
	if item, ok := t.menuGarments[sel]; ok {
		item.Check()
	}
	if t.menuCurrent != nil {
		t.menuCurrent.SetTitle(currentTitle(sel))
	}
}

// Running reports whether the tray shows the try-on as running.
func (t *Tray) Running() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// Current returns the garment selected in the tray.
func (t *Tray) Current() catalog.Selection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}
