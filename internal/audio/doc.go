// Package audio handles PCM format conversion for the segmentation engine.
// It implements frame slicing from arbitrarily sized byte chunks, float/int16
// quantization with clamping, and WAV encoding for finalized speech segments.
package audio
