package vad

import (
	"fmt"
	"math"
)

// Classifier maps one fixed-size audio frame to a speech probability in
// [0, 1]. Implementations may carry recurrent state across calls, so frames
// must be fed in arrival order from a single goroutine.
type Classifier interface {
	// Infer returns the speech probability for one frame of float samples
	// in [-1, 1].
	Infer(frame []float32) (float32, error)

	// Close releases classifier resources. Infer must not be called after
	// Close.
	Close() error
}

// EnergyClassifier is an RMS-energy based classifier. It is a stand-in for a
// neural model: probability is the frame's RMS level relative to a reference
// level, clamped to [0, 1]. Useful for tests and for deployments without a
// model asset.
type EnergyClassifier struct {
	referenceRMS float64
	closed       bool
}

// DefaultReferenceRMS is the RMS level mapped to probability 1.0. Normal
// speech at sane capture gain sits well above 0.1 while room noise sits
// below it.
const DefaultReferenceRMS = 0.1

// NewEnergyClassifier creates an energy classifier. A non-positive
// referenceRMS selects DefaultReferenceRMS.
func NewEnergyClassifier(referenceRMS float64) *EnergyClassifier {
	if referenceRMS <= 0 {
		referenceRMS = DefaultReferenceRMS
	}
	return &EnergyClassifier{referenceRMS: referenceRMS}
}

// Infer returns the normalized RMS energy of the frame.
func (c *EnergyClassifier) Infer(frame []float32) (float32, error) {
	if c.closed {
		return 0, fmt.Errorf("classifier is closed")
	}
	if len(frame) == 0 {
		return 0, fmt.Errorf("cannot infer on empty frame")
	}

	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(frame)))

	p := rms / c.referenceRMS
	if p > 1 {
		p = 1
	}
	return float32(p), nil
}

// Close marks the classifier closed. Subsequent Infer calls fail.
func (c *EnergyClassifier) Close() error {
	c.closed = true
	return nil
}
