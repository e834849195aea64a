package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaxiu/vad/internal/vad"
)

// Config represents the complete service configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	HTTP          HTTPConfig          `yaml:"http"`
	Audio         AudioConfig         `yaml:"audio"`
	Segmenter     SegmenterConfig     `yaml:"segmenter"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig contains UDP ingest server configuration
type ServerConfig struct {
	UDPPort              int    `yaml:"udp_port"`
	BindAddress          string `yaml:"bind_address"`
	BufferSize           int    `yaml:"buffer_size"`
	Workers              int    `yaml:"workers"`
	QueueSize            int    `yaml:"queue_size"`
	MaxConcurrentStreams int    `yaml:"max_concurrent_streams"`
}

// HTTPConfig contains the monitoring API and WebSocket ingest configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// AudioConfig contains stream audio parameters
type AudioConfig struct {
	SampleRate    int `yaml:"sample_rate"`
	Channels      int `yaml:"channels"`
	BitDepth      int `yaml:"bit_depth"`
	StreamTimeout int `yaml:"stream_timeout"` // seconds
}

// SegmenterConfig contains the speech segmentation parameters
type SegmenterConfig struct {
	FrameSamples            int     `yaml:"frame_samples"`
	PositiveSpeechThreshold float32 `yaml:"positive_speech_threshold"`
	NegativeSpeechThreshold float32 `yaml:"negative_speech_threshold"`
	RedemptionFrames        int     `yaml:"redemption_frames"`
	PreSpeechPadFrames      int     `yaml:"pre_speech_pad_frames"`
	MinSpeechFrames         int     `yaml:"min_speech_frames"`
	EnergyReferenceRMS      float64 `yaml:"energy_reference_rms"`
}

// TranscriptionConfig contains the downstream delivery endpoint configuration
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	Enabled       bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Segmenter.Validate(c.Audio.SampleRate); err != nil {
		return fmt.Errorf("segmenter config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.UDPPort < 1 || s.UDPPort > 65535 {
		return fmt.Errorf("udp_port must be between 1 and 65535, got %d", s.UDPPort)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.BufferSize < 1024 {
		return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", s.BufferSize)
	}

	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}

	if s.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", s.QueueSize)
	}

	if s.MaxConcurrentStreams < 1 {
		return fmt.Errorf("max_concurrent_streams must be at least 1, got %d", s.MaxConcurrentStreams)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	if a.StreamTimeout < 1 {
		return fmt.Errorf("stream_timeout must be at least 1 second, got %d", a.StreamTimeout)
	}

	return nil
}

// Validate validates segmentation configuration against the audio sample rate
func (s *SegmenterConfig) Validate(sampleRate int) error {
	if s.EnergyReferenceRMS < 0 {
		return fmt.Errorf("energy_reference_rms cannot be negative, got %f", s.EnergyReferenceRMS)
	}
	return s.EngineConfig(sampleRate).Validate()
}

// EngineConfig maps the YAML section onto the segmentation engine parameters.
func (s *SegmenterConfig) EngineConfig(sampleRate int) vad.Config {
	return vad.Config{
		FrameSamples:            s.FrameSamples,
		SampleRate:              sampleRate,
		PositiveSpeechThreshold: s.PositiveSpeechThreshold,
		NegativeSpeechThreshold: s.NegativeSpeechThreshold,
		RedemptionFrames:        s.RedemptionFrames,
		PreSpeechPadFrames:      s.PreSpeechPadFrames,
		MinSpeechFrames:         s.MinSpeechFrames,
	}
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if !t.Enabled {
		return nil
	}

	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetStreamTimeoutDuration returns the stream timeout as a time.Duration
func (a *AudioConfig) GetStreamTimeoutDuration() time.Duration {
	return time.Duration(a.StreamTimeout) * time.Second
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
