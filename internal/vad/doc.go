// Package vad implements streaming voice activity segmentation. A Segmenter
// consumes fixed-size audio frames together with per-frame speech
// probabilities from a Classifier, applies hysteresis thresholds, redemption
// debouncing and pre-roll buffering, and emits lifecycle events when speech
// starts, is validated, ends, or turns out to be a misfire.
package vad
