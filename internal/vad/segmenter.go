package vad

import (
	"fmt"
	"log/slog"

	"github.com/chaxiu/vad/internal/audio"
)

// band classifies a speech probability against the two thresholds.
type band int

const (
	bandNegative band = iota
	bandIntermediate
	bandPositive
)

// Segmenter is the streaming segmentation engine. It owns all temporal state:
// the speaking mode, the redemption counter, the pre-roll ring, the
// accumulating speech buffer and the sample offset used for timestamps.
//
// A Segmenter performs no internal locking. Frames must be processed to
// completion one at a time from a single goroutine; the handler is invoked
// synchronously during processing and must not call back into the Segmenter.
type Segmenter struct {
	cfg        Config
	classifier Classifier
	handler    Handler
	logger     *slog.Logger

	slicer *audio.Slicer

	speaking                 bool
	redemptionCounter        int
	speechPositiveFrameCount int
	currentSampleOffset      uint64
	preSpeech                *preRollRing
	speechBuffer             [][]float32
	speechRealStartFired     bool

	framesProcessed uint64
	segmentsEmitted uint64
	misfires        uint64

	released bool
}

// Stats is a snapshot of engine state for monitoring. It must be read from
// the same goroutine that feeds frames.
type Stats struct {
	FramesProcessed uint64  `json:"frames_processed"`
	SegmentsEmitted uint64  `json:"segments_emitted"`
	Misfires        uint64  `json:"misfires"`
	Speaking        bool    `json:"speaking"`
	PositiveFrames  int     `json:"positive_frames"`
	BufferedFrames  int     `json:"buffered_frames"`
	PreRollFrames   int     `json:"pre_roll_frames"`
	OffsetSeconds   float64 `json:"offset_seconds"`
}

// NewSegmenter creates a segmentation engine with a frozen configuration.
// The handler receives lifecycle events; it may be nil to discard them.
// A nil logger selects slog.Default; per-frame diagnostics are logged at
// debug level.
func NewSegmenter(cfg Config, classifier Classifier, handler Handler, logger *slog.Logger) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid segmenter config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	slicer, err := audio.NewSlicer(cfg.FrameSamples)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame slicer: %w", err)
	}

	return &Segmenter{
		cfg:        cfg,
		classifier: classifier,
		handler:    handler,
		logger:     logger,
		slicer:     slicer,
		preSpeech:  newPreRollRing(cfg.PreSpeechPadFrames),
	}, nil
}

// Config returns the frozen configuration.
func (s *Segmenter) Config() Config {
	return s.cfg
}

// ProcessBytes slices a chunk of 16-bit little-endian PCM into whole frames
// and processes each in order. Chunks may be any length, including odd;
// bytes short of a frame are held until the next call.
func (s *Segmenter) ProcessBytes(chunk []byte) {
	for _, frame := range s.slicer.Push(chunk) {
		s.ProcessFrame(frame)
	}
}

// ProcessFrame runs one frame through the classifier and the segmentation
// state machine, emitting zero or more events. A frame whose length does not
// match the configured frame size is dropped without touching any state; a
// classifier failure is surfaced as an error event and likewise leaves state
// untouched.
func (s *Segmenter) ProcessFrame(frame []float32) {
	if s.released || s.classifier == nil {
		s.logger.Debug("no classifier available, dropping frame")
		return
	}
	if len(frame) != s.cfg.FrameSamples {
		s.logger.Warn("frame size mismatch, dropping frame",
			slog.Int("expected", s.cfg.FrameSamples),
			slog.Int("got", len(frame)),
		)
		return
	}

	probability, err := s.classifier.Infer(frame)
	if err != nil {
		s.emit(Event{
			Type:      EventError,
			Timestamp: s.timestamp(),
			Err:       fmt.Errorf("inference failed: %w", err),
		})
		return
	}

	s.framesProcessed++
	s.emit(Event{
		Type:        EventFrameProcessed,
		Timestamp:   s.timestamp(),
		Probability: probability,
		NotSpeech:   1 - probability,
		Frame:       frame,
	})
	s.currentSampleOffset += uint64(s.cfg.FrameSamples)

	switch s.classifyBand(probability) {
	case bandPositive:
		s.onPositive(frame)
	case bandNegative:
		s.onNegative(frame)
	case bandIntermediate:
		s.onIntermediate(frame)
	}
}

// ForceEnd finalizes an in-progress episode. A validated episode (at least
// MinSpeechFrames positive frames) is emitted as a speech-end event; a
// shorter one is discarded without a misfire event. Either way all episode
// state returns to its initial values. Outside of speech this is a no-op.
func (s *Segmenter) ForceEnd() {
	if !s.speaking {
		return
	}
	if s.speechPositiveFrameCount >= s.cfg.MinSpeechFrames {
		s.segmentsEmitted++
		s.emit(Event{
			Type:      EventSpeechEnd,
			Timestamp: s.timestamp(),
			Audio:     s.finalize(),
		})
		s.logger.Debug("speech episode force-ended",
			slog.Int("positive_frames", s.speechPositiveFrameCount),
			slog.Int("buffered_frames", len(s.speechBuffer)),
		)
	}
	s.resetEpisode()
}

// Reset returns all mutable state to initial values, discarding both frame
// buffers and the slicer residual.
func (s *Segmenter) Reset() {
	s.resetEpisode()
	s.preSpeech.clear()
	s.slicer.Reset()
	s.currentSampleOffset = 0
	s.framesProcessed = 0
	s.segmentsEmitted = 0
	s.misfires = 0
}

// Close releases the classifier. All subsequent frames are dropped. Close is
// idempotent.
func (s *Segmenter) Close() error {
	if s.released {
		return nil
	}
	s.released = true
	classifier := s.classifier
	s.classifier = nil
	if classifier == nil {
		return nil
	}
	if err := classifier.Close(); err != nil {
		return fmt.Errorf("failed to close classifier: %w", err)
	}
	return nil
}

// Stats returns a snapshot of engine counters.
func (s *Segmenter) Stats() Stats {
	return Stats{
		FramesProcessed: s.framesProcessed,
		SegmentsEmitted: s.segmentsEmitted,
		Misfires:        s.misfires,
		Speaking:        s.speaking,
		PositiveFrames:  s.speechPositiveFrameCount,
		BufferedFrames:  len(s.speechBuffer),
		PreRollFrames:   s.preSpeech.len(),
		OffsetSeconds:   s.timestamp(),
	}
}

func (s *Segmenter) classifyBand(probability float32) band {
	switch {
	case probability >= s.cfg.PositiveSpeechThreshold:
		return bandPositive
	case probability < s.cfg.NegativeSpeechThreshold:
		return bandNegative
	default:
		return bandIntermediate
	}
}

func (s *Segmenter) onPositive(frame []float32) {
	if !s.speaking {
		s.speaking = true
		s.speechRealStartFired = false
		s.emit(Event{Type: EventSpeechStart, Timestamp: s.timestamp()})
		s.logger.Debug("speech started",
			slog.Float64("timestamp", s.timestamp()),
			slog.Int("pre_roll_frames", s.preSpeech.len()),
		)
		s.speechBuffer = s.preSpeech.drainTo(s.speechBuffer)
	}

	s.redemptionCounter = 0
	s.speechBuffer = append(s.speechBuffer, cloneFrame(frame))
	s.speechPositiveFrameCount++

	if !s.speechRealStartFired && s.speechPositiveFrameCount == s.cfg.MinSpeechFrames {
		s.speechRealStartFired = true
		s.emit(Event{Type: EventSpeechValidated, Timestamp: s.timestamp()})
		s.logger.Debug("speech validated", slog.Float64("timestamp", s.timestamp()))
	}
}

func (s *Segmenter) onNegative(frame []float32) {
	if !s.speaking {
		s.preSpeech.push(cloneFrame(frame))
		return
	}

	if s.redemptionCounter < s.cfg.RedemptionFrames {
		s.redemptionCounter++
		s.speechBuffer = append(s.speechBuffer, cloneFrame(frame))
		return
	}

	// Redemption exhausted: the episode ends on this frame, which is not
	// appended to the buffer.
	if s.speechPositiveFrameCount >= s.cfg.MinSpeechFrames {
		s.segmentsEmitted++
		s.emit(Event{
			Type:      EventSpeechEnd,
			Timestamp: s.timestamp(),
			Audio:     s.finalize(),
		})
		s.logger.Debug("speech ended",
			slog.Float64("timestamp", s.timestamp()),
			slog.Int("positive_frames", s.speechPositiveFrameCount),
			slog.Int("buffered_frames", len(s.speechBuffer)),
		)
	} else {
		s.misfires++
		s.emit(Event{Type: EventMisfire, Timestamp: s.timestamp()})
		s.logger.Debug("misfire discarded",
			slog.Float64("timestamp", s.timestamp()),
			slog.Int("positive_frames", s.speechPositiveFrameCount),
		)
	}
	s.resetEpisode()
}

func (s *Segmenter) onIntermediate(frame []float32) {
	if s.speaking {
		// Intermediate frames hold the episode open: they are buffered and
		// clear the redemption counter, but do not count toward validation.
		s.speechBuffer = append(s.speechBuffer, cloneFrame(frame))
		s.redemptionCounter = 0
		return
	}
	s.preSpeech.push(cloneFrame(frame))
}

// finalize concatenates the buffered episode frames and quantizes them to
// 16-bit little-endian PCM with clamping.
func (s *Segmenter) finalize() []byte {
	return audio.FloatsToPCM16(audio.ConcatFrames(s.speechBuffer))
}

func (s *Segmenter) resetEpisode() {
	s.speaking = false
	s.redemptionCounter = 0
	s.speechPositiveFrameCount = 0
	s.speechBuffer = nil
	s.speechRealStartFired = false
}

func (s *Segmenter) timestamp() float64 {
	return float64(s.currentSampleOffset) / float64(s.cfg.SampleRate)
}

func (s *Segmenter) emit(event Event) {
	if s.handler != nil {
		s.handler(event)
	}
}

func cloneFrame(frame []float32) []float32 {
	out := make([]float32, len(frame))
	copy(out, frame)
	return out
}
