package vad

import "fmt"

// Config holds the segmentation parameters. It is frozen for the lifetime of
// one Segmenter instance.
type Config struct {
	// FrameSamples is the number of samples per frame; the engine operates
	// in units of this frame size.
	FrameSamples int

	// SampleRate in Hz, used to derive event timestamps.
	SampleRate int

	// PositiveSpeechThreshold: probability at or above this marks a frame
	// speech-positive.
	PositiveSpeechThreshold float32

	// NegativeSpeechThreshold: probability below this marks a frame
	// speech-negative. Must not exceed PositiveSpeechThreshold; the gap
	// between the two provides hysteresis.
	NegativeSpeechThreshold float32

	// RedemptionFrames is the number of consecutive negative frames
	// tolerated during speech before the episode ends.
	RedemptionFrames int

	// PreSpeechPadFrames caps the pre-roll buffer carried into an episode
	// when speech starts.
	PreSpeechPadFrames int

	// MinSpeechFrames is the minimum count of positive frames for an
	// episode to be reported as speech rather than a misfire.
	MinSpeechFrames int
}

// DefaultConfig returns segmentation parameters suitable for 16 kHz audio
// with 32 ms frames.
func DefaultConfig() Config {
	return Config{
		FrameSamples:            512,
		SampleRate:              16000,
		PositiveSpeechThreshold: 0.5,
		NegativeSpeechThreshold: 0.35,
		RedemptionFrames:        8,
		PreSpeechPadFrames:      4,
		MinSpeechFrames:         3,
	}
}

// Validate checks that the parameters are internally consistent.
func (c Config) Validate() error {
	if c.FrameSamples <= 0 {
		return fmt.Errorf("frame_samples must be positive, got %d", c.FrameSamples)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.PositiveSpeechThreshold < 0 || c.PositiveSpeechThreshold > 1 {
		return fmt.Errorf("positive_speech_threshold must be between 0 and 1, got %f", c.PositiveSpeechThreshold)
	}
	if c.NegativeSpeechThreshold < 0 || c.NegativeSpeechThreshold > 1 {
		return fmt.Errorf("negative_speech_threshold must be between 0 and 1, got %f", c.NegativeSpeechThreshold)
	}
	if c.NegativeSpeechThreshold > c.PositiveSpeechThreshold {
		return fmt.Errorf("negative_speech_threshold (%f) must not exceed positive_speech_threshold (%f)",
			c.NegativeSpeechThreshold, c.PositiveSpeechThreshold)
	}
	if c.RedemptionFrames < 0 {
		return fmt.Errorf("redemption_frames cannot be negative, got %d", c.RedemptionFrames)
	}
	if c.PreSpeechPadFrames < 0 {
		return fmt.Errorf("pre_speech_pad_frames cannot be negative, got %d", c.PreSpeechPadFrames)
	}
	if c.MinSpeechFrames < 1 {
		return fmt.Errorf("min_speech_frames must be at least 1, got %d", c.MinSpeechFrames)
	}
	return nil
}
