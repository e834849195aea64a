package audio

import (
	"bytes"
	"testing"
)

func TestWAVRoundTrip(t *testing.T) {
	pcm := pcmBytes([]int16{0, 1000, -1000, 32767, -32768, 42})

	encoded, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("Failed to encode WAV: %v", err)
	}
	if len(encoded) != wavHeaderSize+len(pcm) {
		t.Errorf("Expected %d bytes, got %d", wavHeaderSize+len(pcm), len(encoded))
	}

	decoded, sampleRate, err := DecodeWAV(encoded)
	if err != nil {
		t.Fatalf("Failed to decode WAV: %v", err)
	}
	if sampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", sampleRate)
	}
	if !bytes.Equal(decoded, pcm) {
		t.Error("Decoded payload does not match original PCM")
	}
}

func TestEncodeWAVValidation(t *testing.T) {
	tests := []struct {
		name       string
		pcm        []byte
		sampleRate int
	}{
		{"empty payload", nil, 16000},
		{"odd payload length", []byte{0x01, 0x02, 0x03}, 16000},
		{"zero sample rate", []byte{0x01, 0x02}, 0},
		{"negative sample rate", []byte{0x01, 0x02}, -8000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeWAV(tt.pcm, tt.sampleRate); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestDecodeWAVRejectsMalformed(t *testing.T) {
	valid, err := EncodeWAV(pcmBytes([]int16{1, 2, 3, 4}), 8000)
	if err != nil {
		t.Fatalf("Failed to encode WAV: %v", err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"too short", func(d []byte) []byte { return d[:10] }},
		{"bad riff marker", func(d []byte) []byte { d[0] = 'X'; return d }},
		{"bad wave marker", func(d []byte) []byte { d[8] = 'X'; return d }},
		{"non-pcm format", func(d []byte) []byte { d[20] = 3; return d }},
		{"stereo", func(d []byte) []byte { d[22] = 2; return d }},
		{"8-bit depth", func(d []byte) []byte { d[34] = 8; return d }},
		{"truncated payload", func(d []byte) []byte { return d[:len(d)-2] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, len(valid))
			copy(data, valid)
			if _, _, err := DecodeWAV(tt.mutate(data)); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestWAVDuration(t *testing.T) {
	// One second of 8 kHz audio: 8000 samples.
	pcm := make([]byte, 8000*2)
	encoded, err := EncodeWAV(pcm, 8000)
	if err != nil {
		t.Fatalf("Failed to encode WAV: %v", err)
	}

	duration, err := WAVDuration(encoded)
	if err != nil {
		t.Fatalf("Failed to compute duration: %v", err)
	}
	if duration != 1.0 {
		t.Errorf("Expected 1.0 second, got %f", duration)
	}
}
