package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chaxiu/vad/internal/audio"
	"github.com/chaxiu/vad/internal/transcription"
	"github.com/chaxiu/vad/internal/vad"
)

// inputQueueSize bounds the per-session chunk queue. Audio past this point is
// dropped rather than blocking the ingest path.
const inputQueueSize = 256

// inbound is one unit of work for the session's processing goroutine.
type inbound struct {
	data  []byte
	flush bool
}

// Session binds one ingest stream to one segmentation engine. The engine is
// fed exclusively from the session's processing goroutine, so frames arrive
// in order and never concurrently.
type Session struct {
	ID        uint32
	SourceID  string
	StartTime time.Time

	sampleRate int
	segmenter  *vad.Segmenter
	manager    *Manager
	logger     *slog.Logger

	// input is never closed; stopping is signaled on stop so that late
	// senders holding a stale session pointer drop audio instead of
	// panicking.
	input    chan inbound
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// Guarded by mu; written by the processing goroutine and the ingest
	// path, read by the monitoring API.
	mu                sync.RWMutex
	lastActivity      time.Time
	lastSequence      uint32
	packetsReceived   uint64
	packetsDropped    uint64
	framesProcessed   uint64
	segmentsEmitted   uint64
	misfires          uint64
	inferenceErrors   uint64
	segmentsSent      uint64
	segmentsDelivered uint64
	segmentsFailed    uint64

	// Episode start timestamp, tracked between speech-start and the
	// terminal event. Only touched by the processing goroutine.
	episodeStart float64
}

// SessionInfo represents session information for monitoring and APIs
type SessionInfo struct {
	StreamID     uint32        `json:"stream_id"`
	SourceID     string        `json:"source_id"`
	StartTime    time.Time     `json:"start_time"`
	LastActivity time.Time     `json:"last_activity"`
	Duration     time.Duration `json:"duration"`
	SampleRate   int           `json:"sample_rate"`

	PacketsReceived uint64 `json:"packets_received"`
	PacketsDropped  uint64 `json:"packets_dropped"`
	LastSequence    uint32 `json:"last_sequence"`

	FramesProcessed uint64 `json:"frames_processed"`
	SegmentsEmitted uint64 `json:"segments_emitted"`
	Misfires        uint64 `json:"misfires"`
	InferenceErrors uint64 `json:"inference_errors"`

	SegmentsSent      uint64 `json:"segments_sent"`
	SegmentsDelivered uint64 `json:"segments_delivered"`
	SegmentsFailed    uint64 `json:"segments_failed"`
}

func newSession(m *Manager, streamID uint32, sourceID string, sampleRate int, segmenter *vad.Segmenter) *Session {
	now := time.Now()
	return &Session{
		ID:           streamID,
		SourceID:     sourceID,
		StartTime:    now,
		sampleRate:   sampleRate,
		segmenter:    segmenter,
		manager:      m,
		logger:       m.logger,
		input:        make(chan inbound, inputQueueSize),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		lastActivity: now,
	}
}

// start launches the processing goroutine that owns the segmenter.
func (s *Session) start() {
	go s.processLoop()
}

// AddAudio queues one PCM chunk for segmentation. A full queue or a stopped
// session drops the chunk so the ingest path never blocks or panics.
func (s *Session) AddAudio(sequence uint32, data []byte) {
	select {
	case <-s.stop:
		// Audio arriving on a stale session pointer after removal.
		s.logger.Debug("dropping audio for stopped session",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.Uint64("sequence", uint64(sequence)),
		)
		return
	default:
	}

	s.mu.Lock()
	s.lastActivity = time.Now()
	s.packetsReceived++
	s.lastSequence = sequence
	s.mu.Unlock()

	chunk := make([]byte, len(data))
	copy(chunk, data)

	select {
	case s.input <- inbound{data: chunk}:
	default:
		s.mu.Lock()
		s.packetsDropped++
		s.mu.Unlock()
		if s.manager.metrics != nil {
			s.manager.metrics.RecordPacketDropped()
		}
		s.logger.Warn("session queue full, dropping audio chunk",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.Uint64("sequence", uint64(sequence)),
		)
	}
}

// Flush asks the processing goroutine to force-end any in-progress episode.
// Flushing a stopped session is a no-op.
func (s *Session) Flush() {
	select {
	case s.input <- inbound{flush: true}:
	case <-s.stop:
	}
}

// stop force-ends the current episode, releases the engine, and waits for
// the processing goroutine to exit.
func (s *Session) shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *Session) processLoop() {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			s.drainAndClose()
			return
		case in := <-s.input:
			s.consume(in)
		}
	}
}

func (s *Session) consume(in inbound) {
	if in.flush {
		s.segmenter.ForceEnd()
		return
	}
	s.segmenter.ProcessBytes(in.data)
}

// drainAndClose processes audio already queued at stop time, finalizes
// whatever episode is still open, and releases the classifier.
func (s *Session) drainAndClose() {
	for {
		select {
		case in := <-s.input:
			s.consume(in)
		default:
			s.segmenter.ForceEnd()
			if err := s.segmenter.Close(); err != nil {
				s.logger.Warn("failed to close segmenter",
					slog.Uint64("stream_id", uint64(s.ID)),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// handleEvent receives engine events synchronously on the processing
// goroutine.
func (s *Session) handleEvent(event vad.Event) {
	metrics := s.manager.metrics

	switch event.Type {
	case vad.EventFrameProcessed:
		s.mu.Lock()
		s.framesProcessed++
		s.mu.Unlock()
		if metrics != nil {
			metrics.RecordFrameProcessed()
		}

	case vad.EventSpeechStart:
		s.episodeStart = event.Timestamp
		if metrics != nil {
			metrics.RecordSpeechStart()
		}
		s.logger.Debug("speech started",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.Float64("timestamp", event.Timestamp),
		)

	case vad.EventSpeechValidated:
		s.logger.Debug("speech validated",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.Float64("timestamp", event.Timestamp),
		)

	case vad.EventSpeechEnd:
		s.mu.Lock()
		s.segmentsEmitted++
		s.mu.Unlock()
		if metrics != nil {
			metrics.RecordSpeechSegment(event.Timestamp-s.episodeStart, len(event.Audio))
		}
		s.logger.Info("speech segment emitted",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.Float64("start", s.episodeStart),
			slog.Float64("end", event.Timestamp),
			slog.Int("bytes", len(event.Audio)),
		)
		s.dispatchSegment(s.episodeStart, event.Timestamp, event.Audio)

	case vad.EventMisfire:
		s.mu.Lock()
		s.misfires++
		s.mu.Unlock()
		if metrics != nil {
			metrics.RecordMisfire()
		}
		s.logger.Debug("misfire discarded",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.Float64("timestamp", event.Timestamp),
		)

	case vad.EventError:
		s.mu.Lock()
		s.inferenceErrors++
		s.mu.Unlock()
		if metrics != nil {
			metrics.RecordInferenceError()
		}
		s.logger.Error("inference failed",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.Float64("timestamp", event.Timestamp),
			slog.String("error", event.Err.Error()),
		)
	}
}

// dispatchSegment wraps finalized audio as WAV and delivers it downstream
// asynchronously.
func (s *Session) dispatchSegment(start, end float64, pcm []byte) {
	client := s.manager.transcriptionClient
	if client == nil {
		return
	}

	wavData, err := audio.EncodeWAV(pcm, s.sampleRate)
	if err != nil {
		s.logger.Error("failed to encode segment as WAV",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.String("error", err.Error()),
		)
		return
	}

	segment := &transcription.Segment{
		SegmentID:  uuid.New().String(),
		StreamID:   s.ID,
		SourceID:   s.SourceID,
		StartTime:  start,
		EndTime:    end,
		SampleRate: s.sampleRate,
		AudioData:  wavData,
		Format:     "wav",
		CapturedAt: time.Now(),
	}

	s.mu.Lock()
	s.segmentsSent++
	s.mu.Unlock()

	go s.deliver(client, segment)
}

func (s *Session) deliver(client *transcription.Client, segment *transcription.Segment) {
	metrics := s.manager.metrics
	if metrics != nil {
		metrics.RecordTranscriptionRequest()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	startTime := time.Now()
	response, err := client.Deliver(ctx, segment)
	elapsed := time.Since(startTime)

	if err != nil {
		s.mu.Lock()
		s.segmentsFailed++
		s.mu.Unlock()
		if metrics != nil {
			metrics.RecordTranscriptionFailure(elapsed.Seconds())
		}
		s.logger.Error("segment delivery failed",
			slog.Uint64("stream_id", uint64(s.ID)),
			slog.String("segment_id", segment.SegmentID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	s.segmentsDelivered++
	s.mu.Unlock()
	if metrics != nil {
		metrics.RecordTranscriptionSuccess(elapsed.Seconds())
	}
	s.logger.Info("segment delivered",
		slog.Uint64("stream_id", uint64(s.ID)),
		slog.String("segment_id", segment.SegmentID),
		slog.String("text", response.Text),
		slog.Float64("confidence", float64(response.Confidence)),
	)
}

// LastActivity returns the time of the most recent ingest for this session.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// touch updates the activity timestamp.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Info returns a snapshot of session state for monitoring.
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SessionInfo{
		StreamID:     s.ID,
		SourceID:     s.SourceID,
		StartTime:    s.StartTime,
		LastActivity: s.lastActivity,
		Duration:     time.Since(s.StartTime),
		SampleRate:   s.sampleRate,

		PacketsReceived: s.packetsReceived,
		PacketsDropped:  s.packetsDropped,
		LastSequence:    s.lastSequence,

		FramesProcessed: s.framesProcessed,
		SegmentsEmitted: s.segmentsEmitted,
		Misfires:        s.misfires,
		InferenceErrors: s.inferenceErrors,

		SegmentsSent:      s.segmentsSent,
		SegmentsDelivered: s.segmentsDelivered,
		SegmentsFailed:    s.segmentsFailed,
	}
}
