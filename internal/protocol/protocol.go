package protocol

import (
	"encoding/binary"
	"fmt"
)

// Packet framing constants
const (
	// Packet types
	PacketTypeSignaling = 0x01
	PacketTypeAudio     = 0x02

	// Packet structure sizes
	HeaderSize             = 7  // 1 + 2 + 4 bytes
	SignalingPayloadSize   = 40 // 32 + 4 + 4 bytes
	AudioPayloadHeaderSize = 4  // sequence number

	// Field sizes in the signaling payload
	SourceIDSize   = 32
	SampleRateSize = 4
	TimestampSize  = 4

	// MaxPacketSize bounds a whole datagram: header plus one audio payload.
	MaxPacketSize = 65535
)

// Header is the packet header prefixed to every datagram.
// Layout: [PacketType:1][PacketLen:2][StreamID:4]
type Header struct {
	PacketType uint8  // 0x01=Signaling, 0x02=Audio
	PacketLen  uint16 // Total packet size (header + payload)
	StreamID   uint32 // Unique stream identifier
}

// SignalingPayload opens a stream session.
// Layout: [SourceID:32][SampleRate:4][Timestamp:4]
type SignalingPayload struct {
	SourceID   [SourceIDSize]byte // Null-terminated string
	SampleRate uint32             // Hz
	Timestamp  uint32             // Unix timestamp
}

// AudioPayload carries one chunk of 16-bit little-endian PCM.
// Layout: [Sequence:4][AudioData:N]
type AudioPayload struct {
	Sequence  uint32 // Packet sequence number
	AudioData []byte // PCM audio data (variable length)
}

// ParsedPacket is a fully parsed datagram
type ParsedPacket struct {
	Header    *Header
	Signaling *SignalingPayload // Only set for signaling packets
	Audio     *AudioPayload     // Only set for audio packets
}

// ParseHeader parses the packet header
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("header too short: expected %d bytes, got %d", HeaderSize, len(data))
	}

	return &Header{
		PacketType: data[0],
		PacketLen:  binary.BigEndian.Uint16(data[1:3]),
		StreamID:   binary.BigEndian.Uint32(data[3:7]),
	}, nil
}

// ParseSignalingPayload parses the fixed-size signaling payload
func ParseSignalingPayload(data []byte) (*SignalingPayload, error) {
	if len(data) < SignalingPayloadSize {
		return nil, fmt.Errorf("signaling payload too short: expected %d bytes, got %d",
			SignalingPayloadSize, len(data))
	}

	payload := &SignalingPayload{}
	copy(payload.SourceID[:], data[0:SourceIDSize])
	payload.SampleRate = binary.BigEndian.Uint32(data[SourceIDSize : SourceIDSize+SampleRateSize])
	payload.Timestamp = binary.BigEndian.Uint32(data[SourceIDSize+SampleRateSize : SignalingPayloadSize])

	return payload, nil
}

// ParseAudioPayload parses the audio payload (4-byte sequence + PCM data)
func ParseAudioPayload(data []byte) (*AudioPayload, error) {
	if len(data) < AudioPayloadHeaderSize {
		return nil, fmt.Errorf("audio payload too short: expected at least %d bytes, got %d",
			AudioPayloadHeaderSize, len(data))
	}

	payload := &AudioPayload{
		Sequence: binary.BigEndian.Uint32(data[0:4]),
	}

	if len(data) > AudioPayloadHeaderSize {
		payload.AudioData = make([]byte, len(data)-AudioPayloadHeaderSize)
		copy(payload.AudioData, data[AudioPayloadHeaderSize:])
	}

	return payload, nil
}

// ParsePacket parses a complete datagram (header + payload)
func ParsePacket(data []byte) (*ParsedPacket, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if int(header.PacketLen) != len(data) {
		return nil, fmt.Errorf("packet length mismatch: header says %d bytes, got %d bytes",
			header.PacketLen, len(data))
	}

	if err := ValidateHeader(header); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	packet := &ParsedPacket{Header: header}
	payloadData := data[HeaderSize:]

	switch header.PacketType {
	case PacketTypeSignaling:
		payload, err := ParseSignalingPayload(payloadData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse signaling payload: %w", err)
		}
		packet.Signaling = payload

	case PacketTypeAudio:
		payload, err := ParseAudioPayload(payloadData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audio payload: %w", err)
		}
		packet.Audio = payload
	}

	return packet, nil
}

// ValidateHeader validates the packet header fields
func ValidateHeader(header *Header) error {
	if !IsValidPacketType(header.PacketType) {
		return fmt.Errorf("invalid packet type: 0x%02x", header.PacketType)
	}

	if header.PacketLen < HeaderSize {
		return fmt.Errorf("packet length too small: %d (minimum %d)", header.PacketLen, HeaderSize)
	}

	payloadSize := int(header.PacketLen) - HeaderSize
	switch header.PacketType {
	case PacketTypeSignaling:
		if payloadSize != SignalingPayloadSize {
			return fmt.Errorf("signaling packet payload size mismatch: expected %d, got %d",
				SignalingPayloadSize, payloadSize)
		}
	case PacketTypeAudio:
		if payloadSize < AudioPayloadHeaderSize {
			return fmt.Errorf("audio packet payload too small: expected at least %d, got %d",
				AudioPayloadHeaderSize, payloadSize)
		}
	}

	return nil
}

// EncodeSignalingPacket builds a signaling datagram for the given stream.
func EncodeSignalingPacket(streamID uint32, sourceID string, sampleRate uint32, timestamp uint32) ([]byte, error) {
	if len(sourceID) > SourceIDSize {
		return nil, fmt.Errorf("source id too long: %d bytes (maximum %d)", len(sourceID), SourceIDSize)
	}

	packet := make([]byte, HeaderSize+SignalingPayloadSize)
	packet[0] = PacketTypeSignaling
	binary.BigEndian.PutUint16(packet[1:3], uint16(len(packet)))
	binary.BigEndian.PutUint32(packet[3:7], streamID)
	copy(packet[HeaderSize:HeaderSize+SourceIDSize], sourceID)
	binary.BigEndian.PutUint32(packet[HeaderSize+SourceIDSize:], sampleRate)
	binary.BigEndian.PutUint32(packet[HeaderSize+SourceIDSize+SampleRateSize:], timestamp)

	return packet, nil
}

// EncodeAudioPacket builds an audio datagram carrying one PCM chunk.
func EncodeAudioPacket(streamID uint32, sequence uint32, pcm []byte) ([]byte, error) {
	total := HeaderSize + AudioPayloadHeaderSize + len(pcm)
	if total > MaxPacketSize {
		return nil, fmt.Errorf("audio packet too large: %d bytes (maximum %d)", total, MaxPacketSize)
	}

	packet := make([]byte, total)
	packet[0] = PacketTypeAudio
	binary.BigEndian.PutUint16(packet[1:3], uint16(total))
	binary.BigEndian.PutUint32(packet[3:7], streamID)
	binary.BigEndian.PutUint32(packet[HeaderSize:], sequence)
	copy(packet[HeaderSize+AudioPayloadHeaderSize:], pcm)

	return packet, nil
}

// IsValidPacketType checks if the packet type is valid
func IsValidPacketType(ptype uint8) bool {
	return ptype == PacketTypeSignaling || ptype == PacketTypeAudio
}

// ExtractString extracts a null-terminated string from a fixed-size byte array
func ExtractString(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// GetSourceID extracts the source identifier as a string
func (s *SignalingPayload) GetSourceID() string {
	return ExtractString(s.SourceID[:])
}

// String returns a human-readable representation of the header
func (h *Header) String() string {
	var packetType string
	switch h.PacketType {
	case PacketTypeSignaling:
		packetType = "Signaling"
	case PacketTypeAudio:
		packetType = "Audio"
	default:
		packetType = fmt.Sprintf("Unknown(0x%02x)", h.PacketType)
	}

	return fmt.Sprintf("Header{Type:%s, Len:%d, StreamID:%d}", packetType, h.PacketLen, h.StreamID)
}

// String returns a human-readable representation of the signaling payload
func (s *SignalingPayload) String() string {
	return fmt.Sprintf("SignalingPayload{SourceID:%q, SampleRate:%d, Timestamp:%d}",
		s.GetSourceID(), s.SampleRate, s.Timestamp)
}

// String returns a human-readable representation of the audio payload
func (a *AudioPayload) String() string {
	return fmt.Sprintf("AudioPayload{Sequence:%d, AudioDataLen:%d}", a.Sequence, len(a.AudioData))
}
