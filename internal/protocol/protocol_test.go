package protocol

import (
	"bytes"
	"testing"
)

func TestSignalingRoundTrip(t *testing.T) {
	packet, err := EncodeSignalingPacket(42, "trunk-7", 16000, 1700000000)
	if err != nil {
		t.Fatalf("Failed to encode signaling packet: %v", err)
	}
	if len(packet) != HeaderSize+SignalingPayloadSize {
		t.Fatalf("Expected %d bytes, got %d", HeaderSize+SignalingPayloadSize, len(packet))
	}

	parsed, err := ParsePacket(packet)
	if err != nil {
		t.Fatalf("Failed to parse packet: %v", err)
	}

	if parsed.Header.PacketType != PacketTypeSignaling {
		t.Errorf("Expected signaling type, got 0x%02x", parsed.Header.PacketType)
	}
	if parsed.Header.StreamID != 42 {
		t.Errorf("Expected stream id 42, got %d", parsed.Header.StreamID)
	}
	if parsed.Signaling == nil {
		t.Fatal("Expected signaling payload")
	}
	if parsed.Audio != nil {
		t.Error("Expected no audio payload on signaling packet")
	}
	if got := parsed.Signaling.GetSourceID(); got != "trunk-7" {
		t.Errorf("Expected source id 'trunk-7', got %q", got)
	}
	if parsed.Signaling.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", parsed.Signaling.SampleRate)
	}
	if parsed.Signaling.Timestamp != 1700000000 {
		t.Errorf("Expected timestamp 1700000000, got %d", parsed.Signaling.Timestamp)
	}
}

func TestAudioRoundTrip(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	packet, err := EncodeAudioPacket(7, 1234, pcm)
	if err != nil {
		t.Fatalf("Failed to encode audio packet: %v", err)
	}

	parsed, err := ParsePacket(packet)
	if err != nil {
		t.Fatalf("Failed to parse packet: %v", err)
	}

	if parsed.Header.StreamID != 7 {
		t.Errorf("Expected stream id 7, got %d", parsed.Header.StreamID)
	}
	if parsed.Audio == nil {
		t.Fatal("Expected audio payload")
	}
	if parsed.Audio.Sequence != 1234 {
		t.Errorf("Expected sequence 1234, got %d", parsed.Audio.Sequence)
	}
	if !bytes.Equal(parsed.Audio.AudioData, pcm) {
		t.Errorf("Audio data mismatch: %v != %v", parsed.Audio.AudioData, pcm)
	}
}

func TestAudioPacketEmptyPayload(t *testing.T) {
	packet, err := EncodeAudioPacket(1, 0, nil)
	if err != nil {
		t.Fatalf("Failed to encode empty audio packet: %v", err)
	}

	parsed, err := ParsePacket(packet)
	if err != nil {
		t.Fatalf("Failed to parse packet: %v", err)
	}
	if len(parsed.Audio.AudioData) != 0 {
		t.Errorf("Expected no audio data, got %d bytes", len(parsed.Audio.AudioData))
	}
}

func TestEncodeValidation(t *testing.T) {
	longID := make([]byte, SourceIDSize+1)
	if _, err := EncodeSignalingPacket(1, string(longID), 16000, 0); err == nil {
		t.Error("Expected error for oversized source id")
	}

	huge := make([]byte, MaxPacketSize)
	if _, err := EncodeAudioPacket(1, 0, huge); err == nil {
		t.Error("Expected error for oversized audio packet")
	}
}

func TestParsePacketRejectsMalformed(t *testing.T) {
	valid, err := EncodeAudioPacket(9, 5, []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("Failed to encode packet: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", valid[:5]},
		{"truncated payload", valid[:len(valid)-1]},
		{"unknown packet type", func() []byte {
			d := append([]byte(nil), valid...)
			d[0] = 0x7f
			return d
		}()},
		{"length mismatch", func() []byte {
			d := append([]byte(nil), valid...)
			d[2] = d[2] + 1
			return d
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePacket(tt.data); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestParseSignalingPayloadTooShort(t *testing.T) {
	if _, err := ParseSignalingPayload(make([]byte, SignalingPayloadSize-1)); err == nil {
		t.Error("Expected error for short signaling payload")
	}
}

func TestExtractString(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want string
	}{
		{"null terminated", []byte{'a', 'b', 0, 'x'}, "ab"},
		{"full buffer", []byte{'a', 'b', 'c'}, "abc"},
		{"empty", []byte{0, 0, 0}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractString(tt.buf); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHeaderString(t *testing.T) {
	h := &Header{PacketType: PacketTypeAudio, PacketLen: 13, StreamID: 3}
	if got := h.String(); got != "Header{Type:Audio, Len:13, StreamID:3}" {
		t.Errorf("Unexpected header string: %s", got)
	}
}
