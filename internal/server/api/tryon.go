package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/ayusman/trylia/internal/app"
	"github.com/ayusman/trylia/internal/catalog"
	"github.com/ayusman/trylia/internal/store"
)

// Controller is the session supervisor the handlers drive.
type Controller interface {
	Start(sel catalog.Selection) error
	Stop()
	Select(sel catalog.Selection) error
	Status() app.Status
	TestCamera() error
	ResolveGarment(id string) (catalog.Selection, error)
	Garments() ([]*store.Garment, error)
}

// TryOnHandler serves the session control endpoints.
type TryOnHandler struct {
	ctrl Controller
}

// NewTryOnHandler creates a new TryOnHandler.
func NewTryOnHandler(ctrl Controller) *TryOnHandler {
	return &TryOnHandler{ctrl: ctrl}
}

// Register adds the handler's routes to mux.
func (h *TryOnHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/try-on", h.post(h.tryOn))
	mux.HandleFunc("/api/select", h.post(h.selectGarment))
	mux.HandleFunc("/api/stop", h.post(h.stop))
	mux.HandleFunc("/api/status", h.get(h.status))
	mux.HandleFunc("/api/test-camera", h.get(h.testCamera))
}

func (h *TryOnHandler) post(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next(w, r)
	}
}

func (h *TryOnHandler) get(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next(w, r)
	}
}

// selectionRequest names a garment in one of three ways. The first field
// that is set wins: garmentId, shirtId, then group and position.
type selectionRequest struct {
	GarmentID string `json:"garmentId,omitempty"`
	ShirtID   *int   `json:"shirtId,omitempty"`
	Group     string `json:"group,omitempty"`
	Position  *int   `json:"position,omitempty"`
}

type selectionResponse struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Selection  catalog.Selection `json:"selection"`
	Gender     catalog.Group     `json:"gender"`
	ShirtIndex int               `json:"shirtIndex"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

var errNoGarment = errors.New("garmentId, shirtId or group and position is required")

func (h *TryOnHandler) decodeSelection(r *http.Request) (catalog.Selection, error) {
	var req selectionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		return catalog.Selection{}, fmt.Errorf("invalid request body: %w", err)
	}

	switch {
	case req.GarmentID != "":
		return h.ctrl.ResolveGarment(req.GarmentID)
	case req.ShirtID != nil:
		return catalog.FromProductID(*req.ShirtID)
	case req.Group != "" && req.Position != nil:
		group, err := catalog.ParseGroup(req.Group)
		if err != nil {
			return catalog.Selection{}, err
		}
		return catalog.Selection{Group: group, Position: *req.Position}, nil
	default:
		return catalog.Selection{}, errNoGarment
	}
}

// selectionStatus maps a selection error to an HTTP status.
func selectionStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrNotRunning):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// tryOn handles POST /api/try-on: it (re)starts the session.
func (h *TryOnHandler) tryOn(w http.ResponseWriter, r *http.Request) {
	sel, err := h.decodeSelection(r)
	if err != nil {
		writeError(w, selectionStatus(err), err.Error())
		return
	}

	log.Printf("Try-on requested for %s", catalog.Title(sel))
	if err := h.ctrl.Start(sel); err != nil {
		if errors.Is(err, catalog.ErrInvalidSelection) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Error starting try-on: %v", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to start try-on: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, selectionResponse{
		Success:    true,
		Message:    fmt.Sprintf("Virtual try-on started with %s", catalog.Title(sel)),
		Selection:  sel,
		Gender:     sel.Group,
		ShirtIndex: sel.Position,
	})
}

// selectGarment handles POST /api/select: it switches the garment of the
// running session.
func (h *TryOnHandler) selectGarment(w http.ResponseWriter, r *http.Request) {
	sel, err := h.decodeSelection(r)
	if err != nil {
		writeError(w, selectionStatus(err), err.Error())
		return
	}

	if err := h.ctrl.Select(sel); err != nil {
		writeError(w, selectionStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, selectionResponse{
		Success:    true,
		Message:    fmt.Sprintf("Selected %s", catalog.Title(sel)),
		Selection:  sel,
		Gender:     sel.Group,
		ShirtIndex: sel.Position,
	})
}

func (h *TryOnHandler) stop(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Stop()
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Virtual try-on stopped"})
}

func (h *TryOnHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *TryOnHandler) testCamera(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.TestCamera(); err != nil {
		writeJSON(w, http.StatusOK, messageResponse{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Camera is working"})
}
