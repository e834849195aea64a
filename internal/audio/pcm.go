package audio

import (
	"encoding/binary"
	"math"
)

// PCM16BytesToFloats decodes 16-bit little-endian PCM into float samples.
// Each sample is divided by 32768, so the result lies in [-1, 1).
func PCM16BytesToFloats(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// FloatsToPCM16 quantizes float samples into 16-bit little-endian PCM.
// Samples are scaled by 32768, rounded to nearest and clamped to the int16
// range. Out-of-range input clips instead of wrapping.
func FloatsToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		v := math.Round(float64(f) * 32768.0)
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(int16(v)))
	}
	return out
}

// ConcatFrames flattens an ordered sequence of frames into a single
// contiguous sample slice.
func ConcatFrames(frames [][]float32) []float32 {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	out := make([]float32, 0, total)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}
