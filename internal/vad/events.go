package vad

import "fmt"

// EventType discriminates segmentation engine notifications.
type EventType int

const (
	// EventFrameProcessed is per-frame telemetry carrying the speech
	// probability and the frame samples.
	EventFrameProcessed EventType = iota

	// EventSpeechStart signals the first speech-positive frame of an episode.
	EventSpeechStart

	// EventSpeechValidated signals that the episode reached MinSpeechFrames
	// positive frames and will be reported as real speech.
	EventSpeechValidated

	// EventSpeechEnd carries the finalized episode audio as 16-bit PCM.
	EventSpeechEnd

	// EventMisfire signals an episode that ended before reaching
	// MinSpeechFrames positive frames. It carries no audio.
	EventMisfire

	// EventError reports a classifier inference failure for one frame.
	EventError
)

// String returns the event type name used in logs and APIs.
func (t EventType) String() string {
	switch t {
	case EventFrameProcessed:
		return "frame_processed"
	case EventSpeechStart:
		return "speech_start"
	case EventSpeechValidated:
		return "speech_validated"
	case EventSpeechEnd:
		return "speech_end"
	case EventMisfire:
		return "misfire"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Event is a single segmentation notification. Which fields are populated
// depends on Type: Probability, NotSpeech and Frame accompany
// EventFrameProcessed, Audio accompanies EventSpeechEnd, Err accompanies
// EventError. Timestamp is seconds since the start of the stream, derived
// from the engine's sample offset.
type Event struct {
	Type      EventType
	Timestamp float64

	Probability float32
	NotSpeech   float32
	Frame       []float32

	Audio []byte

	Err error
}

// Handler receives events synchronously during frame processing. A handler
// must not call back into the emitting Segmenter and must not retain the
// Frame slice beyond the call; Audio is owned by the receiver.
type Handler func(Event)
