package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chaxiu/vad/internal/config"
	"github.com/chaxiu/vad/internal/metrics"
	"github.com/chaxiu/vad/internal/stream"
)

// HTTPServer provides the monitoring API and the WebSocket ingest endpoint
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	streamMgr *stream.Manager
	udpServer *UDPServer
	metrics   *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server. The UDP server reference is
// used for the stats endpoints and may be nil. Metrics may be nil.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, streamMgr *stream.Manager, udpServer *UDPServer, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		streamMgr: streamMgr,
		udpServer: udpServer,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	mux.HandleFunc("/streams", h.withMetrics("/streams", h.handleStreams))
	mux.HandleFunc("/streams/", h.withMetrics("/streams/{id}", h.handleStreamDetail))

	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))
	mux.HandleFunc("/stats/transcription", h.withMetrics("/stats/transcription", h.handleTranscriptionStats))

	// WebSocket ingest; upgraded connections manage their own lifecycle.
	mux.HandleFunc("/v1/stream", h.handleStreamSocket)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		if h.metrics == nil {
			return
		}

		duration := time.Since(startTime).Seconds()
		statusCode := strconv.Itoa(ww.statusCode)
		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

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
	h.logger.Info("starting HTTP API server",
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
	h.logger.Info("stopping HTTP API server")
	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	transcriptionStats := h.streamMgr.GetTranscriptionStats()

	components := map[string]interface{}{
		"stream_manager": map[string]interface{}{
			"status":         "running",
			"active_streams": h.streamMgr.GetActiveSessionCount(),
		},
		"transcription": map[string]interface{}{
			"status":          "running",
			"total_requests":  transcriptionStats.TotalRequests,
			"success_rate":    transcriptionStats.SuccessRate,
			"active_requests": transcriptionStats.ActiveRequests,
		},
	}

	if h.udpServer != nil {
		udpStats := h.udpServer.GetStatistics()
		components["udp_server"] = map[string]interface{}{
			"status":            "running",
			"packets_received":  udpStats.PacketsReceived,
			"packets_processed": udpStats.PacketsProcessed,
			"parse_errors":      udpStats.ParseErrors,
			"queue_size":        udpStats.QueueSize,
		}
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "vad-segmentation-service",
			"version": "1.0.0",
		},
		"components": components,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStreams implements the /streams endpoint
func (h *HTTPServer) handleStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions := h.streamMgr.GetAllSessions()
	sessionInfos := make([]stream.SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		sessionInfos = append(sessionInfos, session.Info())
	}

	response := map[string]interface{}{
		"total_streams": len(sessionInfos),
		"timestamp":     time.Now().UTC(),
		"streams":       sessionInfos,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleStreamDetail implements the /streams/{stream_id} endpoint
func (h *HTTPServer) handleStreamDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	streamIDStr := r.URL.Path[len("/streams/"):]
	if streamIDStr == "" {
		http.Error(w, "Stream ID required", http.StatusBadRequest)
		return
	}

	streamID, err := strconv.ParseUint(streamIDStr, 10, 32)
	if err != nil {
		http.Error(w, "Invalid stream ID", http.StatusBadRequest)
		return
	}

	session, exists := h.streamMgr.GetSession(uint32(streamID))
	if !exists {
		http.Error(w, "Stream not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session.Info())
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Sanitized configuration; the API key is intentionally omitted.
	sanitized := map[string]interface{}{
		"server": map[string]interface{}{
			"udp_port":               h.config.Server.UDPPort,
			"bind_address":           h.config.Server.BindAddress,
			"buffer_size":            h.config.Server.BufferSize,
			"workers":                h.config.Server.Workers,
			"queue_size":             h.config.Server.QueueSize,
			"max_concurrent_streams": h.config.Server.MaxConcurrentStreams,
		},
		"audio": map[string]interface{}{
			"sample_rate":    h.config.Audio.SampleRate,
			"channels":       h.config.Audio.Channels,
			"bit_depth":      h.config.Audio.BitDepth,
			"stream_timeout": h.config.Audio.StreamTimeout,
		},
		"segmenter": map[string]interface{}{
			"frame_samples":             h.config.Segmenter.FrameSamples,
			"positive_speech_threshold": h.config.Segmenter.PositiveSpeechThreshold,
			"negative_speech_threshold": h.config.Segmenter.NegativeSpeechThreshold,
			"redemption_frames":         h.config.Segmenter.RedemptionFrames,
			"pre_speech_pad_frames":     h.config.Segmenter.PreSpeechPadFrames,
			"min_speech_frames":         h.config.Segmenter.MinSpeechFrames,
			"energy_reference_rms":      h.config.Segmenter.EnergyReferenceRMS,
		},
		"transcription": map[string]interface{}{
			"endpoint":       h.config.Transcription.Endpoint,
			"timeout":        h.config.Transcription.Timeout,
			"max_retries":    h.config.Transcription.MaxRetries,
			"max_concurrent": h.config.Transcription.MaxConcurrent,
			"enabled":        h.config.Transcription.Enabled,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitized)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]interface{}{
		"uptime":        time.Since(h.startTime).String(),
		"timestamp":     time.Now().UTC(),
		"transcription": h.streamMgr.GetTranscriptionStats(),
		"streams": map[string]interface{}{
			"active_count": h.streamMgr.GetActiveSessionCount(),
		},
	}

	if h.udpServer != nil {
		udpStats := h.udpServer.GetStatistics()
		stats["udp"] = map[string]interface{}{
			"packets_received":  udpStats.PacketsReceived,
			"packets_processed": udpStats.PacketsProcessed,
			"parse_errors":      udpStats.ParseErrors,
			"packets_dropped":   udpStats.PacketsDropped,
			"active_streams":    udpStats.ActiveStreams,
			"queue_size":        udpStats.QueueSize,
			"queue_capacity":    udpStats.QueueCapacity,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleTranscriptionStats implements the /stats/transcription endpoint
func (h *HTTPServer) handleTranscriptionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.streamMgr.GetTranscriptionStats())
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
		"service": "VAD Segmentation Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                    "API documentation",
			"GET /health":              "Service health check",
			"GET /streams":             "List all active streams",
			"GET /streams/{stream_id}": "Get detailed stream information",
			"GET /config":              "Get service configuration",
			"GET /stats":               "Get service statistics",
			"GET /stats/transcription": "Get segment delivery statistics",
			"GET /metrics":             "Prometheus metrics",
			"GET /v1/stream":           "WebSocket audio ingest",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
