package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ayusman/trylia/internal/app"
	"github.com/ayusman/trylia/internal/catalog"
	"github.com/ayusman/trylia/internal/store"
)

// fakeController records calls and validates against a catalog with five
// male and two female garments.
type fakeController struct {
	running  bool
	current  catalog.Selection
	startErr error
	camErr   error
	garments []*store.Garment
	started  []catalog.Selection
	stops    int
}

func newFakeController() *fakeController {
	return &fakeController{
		garments: []*store.Garment{
			{ID: "6f1c1f44-3f0c-4c5e-9f0a-111111111111", Group: "male", Position: 1, FileName: "1.png", CreatedAt: time.Now()},
			{ID: "6f1c1f44-3f0c-4c5e-9f0a-222222222222", Group: "female", Position: 2, FileName: "b.png", CreatedAt: time.Now()},
		},
	}
}

func (f *fakeController) validate(sel catalog.Selection) error {
	limit := map[catalog.Group]int{catalog.GroupMale: 5, catalog.GroupFemale: 2}[sel.Group]
	if sel.Position < 1 || sel.Position > limit {
		return fmt.Errorf("%w: %s position %d", catalog.ErrInvalidSelection, sel.Group, sel.Position)
	}
	return nil
}

func (f *fakeController) Start(sel catalog.Selection) error {
	if err := f.validate(sel); err != nil {
		return err
	}
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, sel)
	f.running = true
	f.current = sel
	return nil
}

func (f *fakeController) Stop() {
	f.stops++
	f.running = false
}

func (f *fakeController) Select(sel catalog.Selection) error {
	if !f.running {
		return app.ErrNotRunning
	}
	if err := f.validate(sel); err != nil {
		return err
	}
	f.current = sel
	return nil
}

func (f *fakeController) Status() app.Status {
	st := app.Status{Running: f.running, State: "rendered", Timestamp: time.Now()}
	if f.running {
		sel := f.current
		st.Selection = &sel
	}
	return st
}

func (f *fakeController) TestCamera() error { return f.camErr }

func (f *fakeController) ResolveGarment(id string) (catalog.Selection, error) {
	for _, g := range f.garments {
		if g.ID == id {
			return catalog.Selection{Group: catalog.Group(g.Group), Position: g.Position}, nil
		}
	}
	return catalog.Selection{}, store.ErrNotFound
}

func (f *fakeController) Garments() ([]*store.Garment, error) { return f.garments, nil }

func newMux(ctrl Controller) *http.ServeMux {
	mux := http.NewServeMux()
	NewTryOnHandler(ctrl).Register(mux)
	gh := NewGarmentHandler(ctrl)
	mux.Handle("/api/garments", gh)
	mux.Handle("/api/garments/", gh)
	return mux
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTryOnHandler_Start(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantSel    catalog.Selection
	}{
		{"male shirt id", `{"shirtId": 3}`, http.StatusOK, catalog.Selection{Group: catalog.GroupMale, Position: 3}},
		{"female shirt id", `{"shirtId": 102}`, http.StatusOK, catalog.Selection{Group: catalog.GroupFemale, Position: 2}},
		{"group and position", `{"group": "Female", "position": 1}`, http.StatusOK, catalog.Selection{Group: catalog.GroupFemale, Position: 1}},
		{"garment id", `{"garmentId": "6f1c1f44-3f0c-4c5e-9f0a-222222222222"}`, http.StatusOK, catalog.Selection{Group: catalog.GroupFemale, Position: 2}},
		{"missing selection", `{}`, http.StatusBadRequest, catalog.Selection{}},
		{"zero shirt id", `{"shirtId": 0}`, http.StatusBadRequest, catalog.Selection{}},
		{"shirt id 100", `{"shirtId": 100}`, http.StatusBadRequest, catalog.Selection{}},
		{"out of range", `{"group": "male", "position": 99}`, http.StatusBadRequest, catalog.Selection{}},
		{"unknown group", `{"group": "kids", "position": 1}`, http.StatusBadRequest, catalog.Selection{}},
		{"unknown garment", `{"garmentId": "nope"}`, http.StatusNotFound, catalog.Selection{}},
		{"bad json", `{"shirtId":`, http.StatusBadRequest, catalog.Selection{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController()
			rec := do(t, newMux(ctrl), http.MethodPost, "/api/try-on", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", ct)
			}

			if tt.wantStatus != http.StatusOK {
				if len(ctrl.started) != 0 {
					t.Errorf("session must not start, started %v", ctrl.started)
				}
				var resp errorResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp.Success || resp.Error == "" {
					t.Errorf("expected error response, got %+v", resp)
				}
				return
			}

			var resp selectionResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if !resp.Success || resp.Selection != tt.wantSel {
				t.Errorf("unexpected response %+v", resp)
			}
			if resp.Gender != tt.wantSel.Group || resp.ShirtIndex != tt.wantSel.Position {
				t.Errorf("gender/shirtIndex = %s/%d", resp.Gender, resp.ShirtIndex)
			}
			if len(ctrl.started) != 1 || ctrl.started[0] != tt.wantSel {
				t.Errorf("started %v, want [%v]", ctrl.started, tt.wantSel)
			}
		})
	}
}

func TestTryOnHandler_StartFailure(t *testing.T) {
	ctrl := newFakeController()
	ctrl.startErr = errors.New("camera 0 not available")

	rec := do(t, newMux(ctrl), http.MethodPost, "/api/try-on", `{"shirtId": 1}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}

func TestTryOnHandler_Select(t *testing.T) {
	ctrl := newFakeController()
	mux := newMux(ctrl)

	rec := do(t, mux, http.MethodPost, "/api/select", `{"shirtId": 2}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("select without session: expected %d, got %d", http.StatusConflict, rec.Code)
	}

	do(t, mux, http.MethodPost, "/api/try-on", `{"shirtId": 1}`)

	rec = do(t, mux, http.MethodPost, "/api/select", `{"group": "male", "position": 99}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid select: expected %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if want := (catalog.Selection{Group: catalog.GroupMale, Position: 1}); ctrl.current != want {
		t.Errorf("selection changed to %v after rejected select", ctrl.current)
	}

	rec = do(t, mux, http.MethodPost, "/api/select", `{"shirtId": 101}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("select: expected %d, got %d", http.StatusOK, rec.Code)
	}
	if want := (catalog.Selection{Group: catalog.GroupFemale, Position: 1}); ctrl.current != want {
		t.Errorf("current = %v, want %v", ctrl.current, want)
	}
	if len(ctrl.started) != 1 {
		t.Errorf("select must not restart the session")
	}
}

func TestTryOnHandler_StopAndStatus(t *testing.T) {
	ctrl := newFakeController()
	mux := newMux(ctrl)

	do(t, mux, http.MethodPost, "/api/try-on", `{"shirtId": 4}`)

	rec := do(t, mux, http.MethodGet, "/api/status", "")
	var st app.Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if !st.Running || st.Selection == nil || st.Selection.Position != 4 {
		t.Errorf("unexpected status %+v", st)
	}

	// Storefront clients poll the isRunning key.
	rec = do(t, mux, http.MethodGet, "/api/status", "")
	var raw map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if running, ok := raw["isRunning"].(bool); !ok || !running {
		t.Errorf("isRunning = %v, want true", raw["isRunning"])
	}

	for iter := 0; iter < 2; iter++ {
		rec = do(t, mux, http.MethodPost, "/api/stop", "")
		if rec.Code != http.StatusOK {
			t.Errorf("stop: expected %d, got %d", http.StatusOK, rec.Code)
		}
	}
	if ctrl.stops != 2 {
		t.Errorf("expected 2 stops, got %d", ctrl.stops)
	}

	rec = do(t, mux, http.MethodGet, "/api/status", "")
	st = app.Status{}
	json.NewDecoder(rec.Body).Decode(&st)
	if st.Running {
		t.Error("status should report stopped")
	}
}

func TestTryOnHandler_TestCamera(t *testing.T) {
	ctrl := newFakeController()
	mux := newMux(ctrl)

	var resp messageResponse
	rec := do(t, mux, http.MethodGet, "/api/test-camera", "")
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Success {
		t.Errorf("expected camera success, got %+v", resp)
	}

	ctrl.camErr = errors.New("camera not found")
	rec = do(t, mux, http.MethodGet, "/api/test-camera", "")
	resp = messageResponse{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Success || resp.Message != "camera not found" {
		t.Errorf("expected camera failure, got %+v", resp)
	}
}

func TestTryOnHandler_Methods(t *testing.T) {
	mux := newMux(newFakeController())

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/try-on"},
		{http.MethodGet, "/api/select"},
		{http.MethodGet, "/api/stop"},
		{http.MethodPost, "/api/status"},
		{http.MethodPost, "/api/test-camera"},
		{http.MethodPost, "/api/garments"},
	}
	for _, tt := range tests {
		rec := do(t, mux, tt.method, tt.path, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}

func TestGarmentHandler(t *testing.T) {
	ctrl := newFakeController()
	mux := newMux(ctrl)

	rec := do(t, mux, http.MethodGet, "/api/garments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected %d, got %d", http.StatusOK, rec.Code)
	}
	var list listGarmentsResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list.Garments) != 2 {
		t.Fatalf("expected 2 garments, got %d", len(list.Garments))
	}
	if list.Garments[0].Title != "MALE SHIRT 1" {
		t.Errorf("title = %q", list.Garments[0].Title)
	}

	rec = do(t, mux, http.MethodGet, "/api/garments?group=female", "")
	list = listGarmentsResponse{}
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list.Garments) != 1 || list.Garments[0].Group != "female" {
		t.Errorf("group filter returned %+v", list.Garments)
	}

	id := ctrl.garments[1].ID
	rec = do(t, mux, http.MethodGet, "/api/garments/"+id, "")
	var g garmentResponse
	json.NewDecoder(rec.Body).Decode(&g)
	if rec.Code != http.StatusOK || g.ID != id || g.Title != "FEMALE SHIRT 2" {
		t.Errorf("get: status %d, body %+v", rec.Code, g)
	}

	rec = do(t, mux, http.MethodGet, "/api/garments/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing garment: expected %d, got %d", http.StatusNotFound, rec.Code)
	}
}
