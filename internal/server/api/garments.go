package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/trylia/internal/catalog"
	"github.com/ayusman/trylia/internal/store"
)

// GarmentHandler serves the garment index.
type GarmentHandler struct {
	ctrl Controller
}

// NewGarmentHandler creates a new GarmentHandler.
func NewGarmentHandler(ctrl Controller) *GarmentHandler {
	return &GarmentHandler{ctrl: ctrl}
}

type garmentResponse struct {
	ID        string `json:"id,omitempty"`
	Group     string `json:"group"`
	Position  int    `json:"position"`
	Title     string `json:"title"`
	FileName  string `json:"file_name"`
	CreatedAt string `json:"created_at,omitempty"`
}

type listGarmentsResponse struct {
	Garments []garmentResponse `json:"garments"`
}

func toResponse(g *store.Garment) garmentResponse {
	resp := garmentResponse{
		ID:       g.ID,
		Group:    g.Group,
		Position: g.Position,
		Title:    catalog.Title(catalog.Selection{Group: catalog.Group(g.Group), Position: g.Position}),
		FileName: g.FileName,
	}
	if !g.CreatedAt.IsZero() {
		resp.CreatedAt = g.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

// ServeHTTP handles /api/garments and /api/garments/{id}.
func (h *GarmentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/garments"), "/")
	if id == "" {
		h.list(w, r)
		return
	}
	h.get(w, r, id)
}

func (h *GarmentHandler) list(w http.ResponseWriter, r *http.Request) {
	garments, err := h.ctrl.Garments()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list garments")
		return
	}

	group := r.URL.Query().Get("group")
	resp := listGarmentsResponse{Garments: make([]garmentResponse, 0, len(garments))}
	for _, g := range garments {
		if group != "" && g.Group != group {
			continue
		}
		resp.Garments = append(resp.Garments, toResponse(g))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *GarmentHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sel, err := h.ctrl.ResolveGarment(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "garment not found")
			return
		}
		writeError(w, http.StatusGone, err.Error())
		return
	}

	garments, err := h.ctrl.Garments()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list garments")
		return
	}
	for _, g := range garments {
		if g.ID == id {
			writeJSON(w, http.StatusOK, toResponse(g))
			return
		}
	}

	writeJSON(w, http.StatusOK, garmentResponse{
		ID:       id,
		Group:    string(sel.Group),
		Position: sel.Position,
		Title:    catalog.Title(sel),
	})
}
