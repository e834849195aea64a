package stream

import (
	"encoding/binary"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/chaxiu/vad/internal/vad"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManagerConfig() ManagerConfig {
	return ManagerConfig{
		EngineConfig: vad.Config{
			FrameSamples:            8,
			SampleRate:              16000,
			PositiveSpeechThreshold: 0.5,
			NegativeSpeechThreshold: 0.35,
			RedemptionFrames:        1,
			PreSpeechPadFrames:      2,
			MinSpeechFrames:         2,
		},
		MaxSessions: 100,
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(testLogger(), nil, time.Minute, testManagerConfig())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	t.Cleanup(m.Stop)
	return m
}

// pcmFrames builds n frames of constant-amplitude 16-bit PCM.
func pcmFrames(n, frameSamples int, amplitude int16) []byte {
	out := make([]byte, n*frameSamples*2)
	for i := 0; i < len(out); i += 2 {
		binary.LittleEndian.PutUint16(out[i:], uint16(amplitude))
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestManagerSessionLifecycle(t *testing.T) {
	m := newTestManager(t)

	session, err := m.CreateSession(1, "trunk-1", 16000)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if session.ID != 1 || session.SourceID != "trunk-1" {
		t.Errorf("Unexpected session identity: id=%d source=%s", session.ID, session.SourceID)
	}

	got, exists := m.GetSession(1)
	if !exists || got != session {
		t.Error("Expected to retrieve the created session")
	}
	if m.GetActiveSessionCount() != 1 {
		t.Errorf("Expected 1 active session, got %d", m.GetActiveSessionCount())
	}

	// Creating the same stream again refreshes instead of replacing.
	again, err := m.CreateSession(1, "trunk-1b", 16000)
	if err != nil {
		t.Fatalf("Failed to refresh session: %v", err)
	}
	if again != session {
		t.Error("Expected the existing session to be returned")
	}
	if m.GetActiveSessionCount() != 1 {
		t.Errorf("Expected 1 active session after refresh, got %d", m.GetActiveSessionCount())
	}

	if !m.RemoveSession(1) {
		t.Error("Expected session removal to succeed")
	}
	if m.RemoveSession(1) {
		t.Error("Expected second removal to report missing session")
	}
	if _, exists := m.GetSession(1); exists {
		t.Error("Expected session to be gone")
	}
}

func TestManagerSessionLimit(t *testing.T) {
	cfg := testManagerConfig()
	cfg.MaxSessions = 1
	m, err := NewManager(testLogger(), nil, time.Minute, cfg)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer m.Stop()

	if _, err := m.CreateSession(1, "a", 16000); err != nil {
		t.Fatalf("Failed to create first session: %v", err)
	}
	if _, err := m.CreateSession(2, "b", 16000); err == nil {
		t.Error("Expected error when exceeding session limit")
	}
}

func TestManagerRejectsInvalidConfig(t *testing.T) {
	cfg := testManagerConfig()
	cfg.EngineConfig.MinSpeechFrames = 0
	if _, err := NewManager(testLogger(), nil, time.Minute, cfg); err == nil {
		t.Error("Expected error for invalid engine config")
	}

	cfg = testManagerConfig()
	cfg.MaxSessions = 0
	if _, err := NewManager(testLogger(), nil, time.Minute, cfg); err == nil {
		t.Error("Expected error for zero session limit")
	}
}

func TestSessionEmitsSegmentFromAudio(t *testing.T) {
	m := newTestManager(t)
	frameSamples := testManagerConfig().EngineConfig.FrameSamples

	session, err := m.CreateSession(5, "desk-5", 16000)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	// Loud audio opens and validates an episode; silence exhausts
	// redemption and ends it.
	session.AddAudio(1, pcmFrames(4, frameSamples, 8000))
	session.AddAudio(2, pcmFrames(4, frameSamples, 0))

	waitFor(t, "segment emission", func() bool {
		return session.Info().SegmentsEmitted == 1
	})

	info := session.Info()
	if info.FramesProcessed != 8 {
		t.Errorf("Expected 8 frames processed, got %d", info.FramesProcessed)
	}
	if info.Misfires != 0 {
		t.Errorf("Expected no misfires, got %d", info.Misfires)
	}
	if info.PacketsReceived != 2 {
		t.Errorf("Expected 2 packets received, got %d", info.PacketsReceived)
	}
	if info.LastSequence != 2 {
		t.Errorf("Expected last sequence 2, got %d", info.LastSequence)
	}
}

func TestSessionCountsMisfire(t *testing.T) {
	m := newTestManager(t)
	frameSamples := testManagerConfig().EngineConfig.FrameSamples

	session, err := m.CreateSession(6, "desk-6", 16000)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	// One loud frame is below the two-frame validity threshold.
	session.AddAudio(1, pcmFrames(1, frameSamples, 8000))
	session.AddAudio(2, pcmFrames(3, frameSamples, 0))

	waitFor(t, "misfire count", func() bool {
		return session.Info().Misfires == 1
	})
	if got := session.Info().SegmentsEmitted; got != 0 {
		t.Errorf("Expected no segments, got %d", got)
	}
}

func TestSessionFlushForcesEnd(t *testing.T) {
	m := newTestManager(t)
	frameSamples := testManagerConfig().EngineConfig.FrameSamples

	session, err := m.CreateSession(7, "desk-7", 16000)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	// Only loud audio: the episode stays open until flushed.
	session.AddAudio(1, pcmFrames(5, frameSamples, 8000))
	session.Flush()

	waitFor(t, "flushed segment", func() bool {
		return session.Info().SegmentsEmitted == 1
	})
}

func TestSessionStopFinalizesOpenEpisode(t *testing.T) {
	m := newTestManager(t)
	frameSamples := testManagerConfig().EngineConfig.FrameSamples

	session, err := m.CreateSession(8, "desk-8", 16000)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	session.AddAudio(1, pcmFrames(5, frameSamples, 8000))
	waitFor(t, "frames processed", func() bool {
		return session.Info().FramesProcessed == 5
	})

	m.RemoveSession(8)

	if got := session.Info().SegmentsEmitted; got != 1 {
		t.Errorf("Expected open episode finalized on stop, got %d segments", got)
	}
}

func TestAddAudioAfterRemoveIsDropped(t *testing.T) {
	m := newTestManager(t)
	frameSamples := testManagerConfig().EngineConfig.FrameSamples

	// An ingest worker can hold the session pointer across removal; late
	// audio and flushes must be dropped, never crash.
	session, err := m.CreateSession(10, "late-10", 16000)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if !m.RemoveSession(10) {
		t.Fatal("Expected session removal to succeed")
	}

	session.AddAudio(1, pcmFrames(1, frameSamples, 8000))
	session.Flush()

	info := session.Info()
	if info.PacketsReceived != 0 {
		t.Errorf("Expected late audio to be ignored, got %d packets received", info.PacketsReceived)
	}
	if info.FramesProcessed != 0 {
		t.Errorf("Expected no frames processed after stop, got %d", info.FramesProcessed)
	}
}

func TestCleanupRemovesIdleSessions(t *testing.T) {
	cfg := testManagerConfig()
	m, err := NewManager(testLogger(), nil, 20*time.Millisecond, cfg)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer m.Stop()

	if _, err := m.CreateSession(9, "idle-9", 16000); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	time.Sleep(40 * time.Millisecond)
	m.cleanupExpiredSessions()

	if m.GetActiveSessionCount() != 0 {
		t.Errorf("Expected idle session removed, %d still active", m.GetActiveSessionCount())
	}
}

func TestTranscriptionStatsWithoutClient(t *testing.T) {
	m := newTestManager(t)
	stats := m.GetTranscriptionStats()
	if stats.TotalRequests != 0 {
		t.Errorf("Expected zero stats without client, got %+v", stats)
	}
}
