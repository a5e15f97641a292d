package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2006-sk/Backend-hackharvard/internal/archive"
	"github.com/2006-sk/Backend-hackharvard/internal/audio"
	"github.com/2006-sk/Backend-hackharvard/internal/config"
	"github.com/2006-sk/Backend-hackharvard/internal/event"
	"github.com/2006-sk/Backend-hackharvard/internal/history"
	"github.com/2006-sk/Backend-hackharvard/internal/metrics"
	"github.com/2006-sk/Backend-hackharvard/internal/monitor"
	"github.com/2006-sk/Backend-hackharvard/internal/session"
	"github.com/2006-sk/Backend-hackharvard/internal/transcription"
)

// historyCallLimit caps how many persisted calls /api/calls returns.
const historyCallLimit = 50

// HTTPServer provides the HTTP API and WebSocket endpoints
type HTTPServer struct {
	server      *http.Server
	logger      *slog.Logger
	config      *config.Config
	store       *session.Store
	engine      *monitor.Engine
	hub         *event.Hub
	transcriber *transcription.Client
	recorder    history.Recorder
	metrics     *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(appConfig *config.Config, logger *slog.Logger,
	store *session.Store, engine *monitor.Engine, hub *event.Hub,
	transcriber *transcription.Client, recorder history.Recorder,
	m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:      logger,
		config:      appConfig,
		store:       store,
		engine:      engine,
		hub:         hub,
		transcriber: transcriber,
		recorder:    recorder,
		metrics:     m,
		startTime:   time.Now(),
	}

	// Create HTTP server with routes
	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", appConfig.HTTP.Address, appConfig.HTTP.Port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Call monitoring endpoints
	mux.HandleFunc("/api/calls", h.withMetrics("/api/calls", h.handleCalls))
	mux.HandleFunc("/api/calls/", h.withMetrics("/api/calls/{id}", h.handleCallDetail))
	mux.HandleFunc("/api/active-stream", h.withMetrics("/api/active-stream", h.handleActiveStream))

	// WebSocket endpoints
	mux.HandleFunc("/media", h.handleMediaStream)
	mux.HandleFunc("/notify", h.handleNotify)

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		// Call the original handler
		handler(ww, r)

		// Record metrics
		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		// Record error if status code indicates an error
		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "scamshield-backend",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"calls": map[string]interface{}{
				"status":       "running",
				"active_count": h.store.ActiveCount(),
			},
			"hub": map[string]interface{}{
				"status":      "running",
				"subscribers": h.hub.SubscriberCount(),
			},
		},
	}

	if h.transcriber != nil {
		stats := h.transcriber.GetStats()
		health["components"].(map[string]interface{})["transcription"] = map[string]interface{}{
			"status":          "running",
			"total_requests":  stats.TotalRequests,
			"success_rate":    stats.SuccessRate,
			"active_requests": stats.ActiveRequests,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleCalls implements the /api/calls endpoint
func (h *HTTPServer) handleCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	active := h.store.Active()
	recent := h.store.Recent()

	response := map[string]interface{}{
		"active_count": len(active),
		"timestamp":    time.Now().UTC(),
		"active":       active,
		"recent":       recent,
	}

	// Persisted history reaches further back than the in-memory ring.
	if h.recorder != nil {
		rows, err := h.recorder.RecentCalls(r.Context(), historyCallLimit)
		if err != nil {
			h.logger.Error("Failed to load call history", slog.String("error", err.Error()))
		} else if rows != nil {
			response["history"] = rows
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleCallDetail implements /api/calls/{id} and the POST
// subresources /api/calls/{id}/end and /api/calls/{id}/finalize.
func (h *HTTPServer) handleCallDetail(w http.ResponseWriter, r *http.Request) {
	rest := r.URL.Path[len("/api/calls/"):]
	if rest == "" {
		http.Error(w, "Call ID required", http.StatusBadRequest)
		return
	}

	id := rest
	action := ""
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		id = rest[:idx]
		action = rest[idx+1:]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleCallGet(w, id)
	case action == "end" && r.Method == http.MethodPost:
		h.handleCallEnd(w, id)
	case action == "finalize" && r.Method == http.MethodPost:
		h.handleCallFinalize(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPServer) handleCallGet(w http.ResponseWriter, id string) {
	snap, exists := h.store.Get(id)
	if !exists {
		http.Error(w, "Call not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

func (h *HTTPServer) handleCallEnd(w http.ResponseWriter, id string) {
	snap, err := h.engine.EndCall(id)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUnknownSession):
			http.Error(w, "Call not found", http.StatusNotFound)
		case errors.Is(err, session.ErrSessionEnded):
			http.Error(w, "Call already ended", http.StatusConflict)
		default:
			http.Error(w, "Failed to end call", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

func (h *HTTPServer) handleCallFinalize(w http.ResponseWriter, r *http.Request, id string) {
	result, err := h.engine.Finalize(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, archive.ErrNoAudioChunks), errors.Is(err, audio.ErrEmptySession):
			http.Error(w, "No audio buffered for call", http.StatusNotFound)
		case errors.Is(err, archive.ErrArchivalFailed):
			http.Error(w, "Recording upload failed", http.StatusBadGateway)
		default:
			http.Error(w, "Failed to finalize call", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleActiveStream implements the /api/active-stream endpoint
func (h *HTTPServer) handleActiveStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	active := h.store.Active()

	response := map[string]interface{}{
		"active":    len(active) > 0,
		"timestamp": time.Now().UTC(),
	}
	if len(active) > 0 {
		response["streamSid"] = active[0].ID
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"http": map[string]interface{}{
			"port":    h.config.HTTP.Port,
			"address": h.config.HTTP.Address,
		},
		"audio": map[string]interface{}{
			"sample_rate":     h.config.Audio.SampleRate,
			"segment_seconds": h.config.Audio.SegmentSeconds,
			"session_timeout": h.config.Audio.SessionTimeout,
		},
		"transcription": map[string]interface{}{
			"endpoint":       h.config.Transcription.Endpoint,
			"timeout":        h.config.Transcription.Timeout,
			"max_retries":    h.config.Transcription.MaxRetries,
			"max_concurrent": h.config.Transcription.MaxConcurrent,
			"language":       h.config.Transcription.Language,
			// Note: API key is intentionally omitted for security
		},
		"risk": map[string]interface{}{
			"endpoint": h.config.Risk.Endpoint,
			"timeout":  h.config.Risk.Timeout,
		},
		"archive": map[string]interface{}{
			"region":          h.config.Archive.Region,
			"bucket":          h.config.Archive.Bucket,
			"public_base_url": h.config.Archive.PublicBaseURL,
			"max_retries":     h.config.Archive.MaxRetries,
		},
		"hub": map[string]interface{}{
			"subscriber_queue_size": h.config.Hub.SubscriberQueueSize,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
		"calls": map[string]interface{}{
			"active_count": h.store.ActiveCount(),
			"recent_count": len(h.store.Recent()),
		},
		"hub": map[string]interface{}{
			"subscribers": h.hub.SubscriberCount(),
		},
	}

	if h.transcriber != nil {
		stats["transcription"] = h.transcriber.GetStats()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "ScamShield Call Monitoring Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                            "API documentation",
			"GET /health":                      "Service health check",
			"GET /api/calls":                   "List active and recent calls",
			"GET /api/calls/{id}":              "Get detailed call information",
			"POST /api/calls/{id}/end":         "End an active call",
			"POST /api/calls/{id}/finalize":    "Archive a call's recording",
			"GET /api/active-stream":           "Get the currently active stream",
			"WS /media":                        "Telephony media stream ingest",
			"WS /notify":                       "Live call event feed",
			"GET /config":                      "Get service configuration",
			"GET /stats":                       "Get service statistics",
			"GET /metrics":                     "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
