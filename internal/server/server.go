// Package server provides the HTTP server for the try-on service.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/trylia/internal/app"
	"github.com/ayusman/trylia/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	// Controller drives try-on sessions. Session routes are only
	// registered when it is set.
	Controller api.Controller
	// Hub supplies output frames for the stream, metrics and chart routes.
	Hub *app.Hub
	// MetricsInterval is the websocket broadcast period.
	MetricsInterval time.Duration
}

// Server represents the HTTP server for the try-on service.
type Server struct {
	config  Config
	mux     *http.ServeMux
	start   time.Time
	metrics *MetricsHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.MetricsInterval <= 0 {
		config.MetricsInterval = 66 * time.Millisecond
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Controller != nil {
		api.NewTryOnHandler(s.config.Controller).Register(s.mux)

		garments := api.NewGarmentHandler(s.config.Controller)
		s.mux.Handle("/api/garments", garments)
		s.mux.Handle("/api/garments/", garments)

		s.metrics = NewMetricsHandler(s.config.Controller, s.config.MetricsInterval)
		s.mux.Handle("/api/metrics", s.metrics)
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Hub))
		s.mux.Handle("/debug/charts/confidence", NewChartHandler(s.config.Hub))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface. Browser front ends on
// other origins may call the API, so every response allows any origin.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.mux.ServeHTTP(w, r)
}

// Close stops background broadcasters.
func (s *Server) Close() {
	if s.metrics != nil {
		s.metrics.Close()
	}
}

// handleHealth handles GET requests to /health and /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":    "ok",
		"message":   "Virtual try-on server is running",
		"uptime":    time.Since(s.start).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
