package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chaxiu/vad/internal/config"
	"github.com/chaxiu/vad/internal/stream"
	"github.com/chaxiu/vad/internal/vad"
)

func testAppConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			UDPPort:              5060,
			BindAddress:          "127.0.0.1",
			BufferSize:           65536,
			Workers:              2,
			QueueSize:            100,
			MaxConcurrentStreams: 10,
		},
		HTTP: config.HTTPConfig{Port: 8080, Address: "127.0.0.1", Enabled: true},
		Audio: config.AudioConfig{
			SampleRate:    16000,
			Channels:      1,
			BitDepth:      16,
			StreamTimeout: 300,
		},
		Segmenter: config.SegmenterConfig{
			FrameSamples:            512,
			PositiveSpeechThreshold: 0.5,
			NegativeSpeechThreshold: 0.35,
			RedemptionFrames:        8,
			PreSpeechPadFrames:      4,
			MinSpeechFrames:         3,
		},
		Transcription: config.TranscriptionConfig{Enabled: false},
		Logging:       config.LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
	}
}

func newTestHTTPServer(t *testing.T) (*HTTPServer, *stream.Manager) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testAppConfig()

	mgr, err := stream.NewManager(logger, nil, time.Minute, stream.ManagerConfig{
		EngineConfig: vad.Config{
			FrameSamples:            8,
			SampleRate:              16000,
			PositiveSpeechThreshold: 0.5,
			NegativeSpeechThreshold: 0.35,
			RedemptionFrames:        1,
			PreSpeechPadFrames:      2,
			MinSpeechFrames:         2,
		},
		MaxSessions: 10,
	})
	if err != nil {
		t.Fatalf("Failed to create stream manager: %v", err)
	}
	t.Cleanup(mgr.Stop)

	return NewHTTPServer(cfg.HTTP, logger, cfg, mgr, nil, nil), mgr
}

func TestHandleHealth(t *testing.T) {
	h, _ := newTestHTTPServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", body["status"])
	}
	if _, ok := body["components"]; !ok {
		t.Error("Expected components section in health response")
	}
}

func TestHandleHealthRejectsNonGet(t *testing.T) {
	h, _ := newTestHTTPServer(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	h.handleHealth(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func TestHandleStreams(t *testing.T) {
	h, mgr := newTestHTTPServer(t)

	if _, err := mgr.CreateSession(42, "trunk-42", 16000); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/streams", nil)
	rec := httptest.NewRecorder()
	h.handleStreams(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var body struct {
		TotalStreams int                  `json:"total_streams"`
		Streams      []stream.SessionInfo `json:"streams"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode streams response: %v", err)
	}
	if body.TotalStreams != 1 {
		t.Errorf("Expected 1 stream, got %d", body.TotalStreams)
	}
	if len(body.Streams) != 1 || body.Streams[0].StreamID != 42 {
		t.Errorf("Expected stream 42 in listing, got %+v", body.Streams)
	}
}

func TestHandleStreamDetail(t *testing.T) {
	h, mgr := newTestHTTPServer(t)

	if _, err := mgr.CreateSession(7, "desk-7", 16000); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"existing stream", "/streams/7", http.StatusOK},
		{"unknown stream", "/streams/999", http.StatusNotFound},
		{"invalid id", "/streams/abc", http.StatusBadRequest},
		{"missing id", "/streams/", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			h.handleStreamDetail(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestHandleConfigOmitsAPIKey(t *testing.T) {
	h, _ := newTestHTTPServer(t)
	h.config.Transcription.APIKey = "secret-key"

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	rec := httptest.NewRecorder()
	h.handleConfig(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if len(body) == 0 {
		t.Fatal("Expected config response body")
	}
	for _, forbidden := range []string{"secret-key", "api_key"} {
		if strings.Contains(body, forbidden) {
			t.Errorf("Config response leaked %q", forbidden)
		}
	}
}
