package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chaxiu/vad/internal/metrics"
	"github.com/chaxiu/vad/internal/transcription"
	"github.com/chaxiu/vad/internal/vad"
)

// Manager manages all active stream sessions
type Manager struct {
	sessions map[uint32]*Session
	mu       sync.RWMutex
	logger   *slog.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration

	engineConfig vad.Config
	energyRef    float64
	maxSessions  int

	transcriptionClient *transcription.Client

	// Cleanup management
	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// ManagerConfig contains configuration for the stream manager
type ManagerConfig struct {
	// EngineConfig is the frozen segmentation configuration shared by
	// every session's engine.
	EngineConfig vad.Config

	// EnergyReferenceRMS tunes the energy classifier; zero selects the
	// default.
	EnergyReferenceRMS float64

	// MaxSessions caps concurrently active sessions.
	MaxSessions int

	// Transcription, when non-nil, enables downstream segment delivery.
	Transcription *transcription.Config
}

// NewManager creates a new stream manager. Metrics may be nil to disable
// instrumentation.
func NewManager(logger *slog.Logger, m *metrics.Metrics, timeout time.Duration, config ManagerConfig) (*Manager, error) {
	if err := config.EngineConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if config.MaxSessions < 1 {
		return nil, fmt.Errorf("max sessions must be at least 1, got %d", config.MaxSessions)
	}

	var client *transcription.Client
	if config.Transcription != nil {
		var err error
		client, err = transcription.NewClient(*config.Transcription)
		if err != nil {
			return nil, fmt.Errorf("failed to create transcription client: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	mgr := &Manager{
		sessions:            make(map[uint32]*Session),
		logger:              logger,
		metrics:             m,
		timeout:             timeout,
		engineConfig:        config.EngineConfig,
		energyRef:           config.EnergyReferenceRMS,
		maxSessions:         config.MaxSessions,
		transcriptionClient: client,
		ctx:                 ctx,
		cancel:              cancel,
		cleanup:             make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr, nil
}

// CreateSession creates a session for the given stream. Creating an existing
// stream refreshes its metadata instead.
func (m *Manager) CreateSession(streamID uint32, sourceID string, sampleRate int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.sessions[streamID]; exists {
		m.logger.Warn("session already exists, refreshing",
			slog.Uint64("stream_id", uint64(streamID)),
			slog.String("existing_source", existing.SourceID),
			slog.String("new_source", sourceID),
		)
		existing.touch()
		return existing, nil
	}

	if len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("session limit reached: %d active streams", m.maxSessions)
	}

	engineCfg := m.engineConfig
	if sampleRate > 0 {
		engineCfg.SampleRate = sampleRate
	}

	classifier := vad.NewEnergyClassifier(m.energyRef)

	// The handler needs the session, and the session needs the segmenter;
	// bind through a late-set pointer.
	var session *Session
	segmenter, err := vad.NewSegmenter(engineCfg, classifier, func(event vad.Event) {
		session.handleEvent(event)
	}, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create segmenter: %w", err)
	}

	session = newSession(m, streamID, sourceID, engineCfg.SampleRate, segmenter)
	m.sessions[streamID] = session
	session.start()

	if m.metrics != nil {
		m.metrics.RecordStreamCreated()
		m.metrics.SetActiveStreams(len(m.sessions))
	}

	m.logger.Info("created stream session",
		slog.Uint64("stream_id", uint64(streamID)),
		slog.String("source_id", sourceID),
		slog.Int("sample_rate", engineCfg.SampleRate),
	)

	return session, nil
}

// GetSession retrieves an existing stream session
func (m *Manager) GetSession(streamID uint32) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[streamID]
	return session, exists
}

// GetActiveSessionCount returns the number of currently active sessions
func (m *Manager) GetActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetAllSessions returns a snapshot of all active sessions (for monitoring)
func (m *Manager) GetAllSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// RemoveSession stops a session and removes it. Stopping force-ends any
// in-progress episode so its audio is not lost.
func (m *Manager) RemoveSession(streamID uint32) bool {
	m.mu.Lock()
	session, exists := m.sessions[streamID]
	if exists {
		delete(m.sessions, streamID)
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	if !exists {
		return false
	}

	session.shutdown()

	if m.metrics != nil {
		m.metrics.RecordStreamDestroyed(time.Since(session.StartTime).Seconds())
		m.metrics.SetActiveStreams(remaining)
	}

	info := session.Info()
	m.logger.Info("stream session removed",
		slog.Uint64("stream_id", uint64(streamID)),
		slog.String("source_id", session.SourceID),
		slog.Duration("duration", info.Duration),
		slog.Uint64("frames_processed", info.FramesProcessed),
		slog.Uint64("segments_emitted", info.SegmentsEmitted),
		slog.Uint64("misfires", info.Misfires),
	)

	return true
}

// GetTranscriptionStats returns delivery client statistics; the zero value
// when delivery is disabled.
func (m *Manager) GetTranscriptionStats() transcription.ClientStats {
	if m.transcriptionClient == nil {
		return transcription.ClientStats{}
	}
	return m.transcriptionClient.GetStats()
}

// Stop gracefully stops the stream manager and all sessions
func (m *Manager) Stop() {
	m.logger.Info("stopping stream manager")

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, session := range m.sessions {
		sessions = append(sessions, session)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, session := range sessions {
		session.shutdown()
	}

	if m.transcriptionClient != nil {
		if err := m.transcriptionClient.Close(); err != nil {
			m.logger.Warn("error closing transcription client", slog.String("error", err.Error()))
		}
	}

	m.cancel()
	<-m.cleanup

	if m.metrics != nil {
		m.metrics.SetActiveStreams(0)
	}

	m.logger.Info("stream manager stopped",
		slog.Int("closed_sessions", len(sessions)),
	)
}

// startCleanupRoutine runs in a separate goroutine to clean up expired sessions
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	m.logger.Info("stream cleanup routine started",
		slog.Duration("timeout", m.timeout),
	)

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpiredSessions()
		}
	}
}

// cleanupExpiredSessions removes sessions that have been inactive for too long
func (m *Manager) cleanupExpiredSessions() {
	now := time.Now()
	var expired []uint32

	m.mu.RLock()
	for streamID, session := range m.sessions {
		if now.Sub(session.LastActivity()) > m.timeout {
			expired = append(expired, streamID)
		}
	}
	m.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	m.logger.Info("cleaning up expired sessions",
		slog.Int("expired_count", len(expired)),
	)
	for _, streamID := range expired {
		m.RemoveSession(streamID)
	}
}
