package audio

import "fmt"

// Slicer reassembles fixed-size float frames from arbitrarily sized chunks of
// 16-bit little-endian PCM. Leftover bytes that do not fill a whole frame are
// retained across calls, so two-byte sample alignment survives odd-length
// chunks: a sample is never decoded until both of its bytes have arrived.
type Slicer struct {
	frameSamples int
	residual     []byte
}

// NewSlicer creates a slicer producing frames of frameSamples samples each.
func NewSlicer(frameSamples int) (*Slicer, error) {
	if frameSamples <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSamples)
	}
	return &Slicer{frameSamples: frameSamples}, nil
}

// Push appends chunk to the residual accumulator and returns every complete
// frame that can be sliced from it, oldest first. Each returned frame is an
// independently owned slice of exactly FrameSamples() samples; the input
// chunk may be reused by the caller after Push returns.
func (s *Slicer) Push(chunk []byte) [][]float32 {
	s.residual = append(s.residual, chunk...)

	frameBytes := s.frameSamples * 2
	var frames [][]float32
	for len(s.residual) >= frameBytes {
		frames = append(frames, PCM16BytesToFloats(s.residual[:frameBytes]))
		s.residual = s.residual[frameBytes:]
	}

	// Compact so the consumed prefix does not pin the old backing array.
	if len(frames) > 0 {
		rest := make([]byte, len(s.residual))
		copy(rest, s.residual)
		s.residual = rest
	}

	return frames
}

// Pending returns the number of buffered bytes waiting for a complete frame.
func (s *Slicer) Pending() int {
	return len(s.residual)
}

// FrameSamples returns the configured samples per frame.
func (s *Slicer) FrameSamples() int {
	return s.frameSamples
}

// Reset discards any buffered residual bytes.
func (s *Slicer) Reset() {
	s.residual = nil
}
