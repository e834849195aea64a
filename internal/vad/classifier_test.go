package vad

import "testing"

func TestEnergyClassifierProbabilities(t *testing.T) {
	tests := []struct {
		name      string
		amplitude float32
		wantLow   bool
	}{
		{"silence", 0, true},
		{"room noise", 0.005, true},
		{"speech level", 0.2, false},
		{"clipping level", 1.0, false},
	}

	classifier := NewEnergyClassifier(0)
	frame := make([]float32, 512)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range frame {
				frame[i] = tt.amplitude
			}
			p, err := classifier.Infer(frame)
			if err != nil {
				t.Fatalf("Infer failed: %v", err)
			}
			if p < 0 || p > 1 {
				t.Errorf("Probability out of range: %f", p)
			}
			if tt.wantLow && p >= 0.5 {
				t.Errorf("Expected low probability for %s, got %f", tt.name, p)
			}
			if !tt.wantLow && p < 0.5 {
				t.Errorf("Expected high probability for %s, got %f", tt.name, p)
			}
		})
	}
}

func TestEnergyClassifierRejectsEmptyFrame(t *testing.T) {
	classifier := NewEnergyClassifier(0)
	if _, err := classifier.Infer(nil); err == nil {
		t.Error("Expected error for empty frame")
	}
}

func TestEnergyClassifierClosed(t *testing.T) {
	classifier := NewEnergyClassifier(0.2)
	if err := classifier.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := classifier.Infer(make([]float32, 16)); err == nil {
		t.Error("Expected error from closed classifier")
	}
}

func TestPreRollRingEviction(t *testing.T) {
	ring := newPreRollRing(3)
	for i := 0; i < 5; i++ {
		ring.push([]float32{float32(i)})
	}
	if ring.len() != 3 {
		t.Fatalf("Expected 3 frames, got %d", ring.len())
	}

	drained := ring.drainTo(nil)
	if len(drained) != 3 {
		t.Fatalf("Expected 3 drained frames, got %d", len(drained))
	}
	for i, frame := range drained {
		if want := float32(i + 2); frame[0] != want {
			t.Errorf("Frame %d: expected oldest-first value %f, got %f", i, want, frame[0])
		}
	}
	if ring.len() != 0 {
		t.Errorf("Expected empty ring after drain, got %d", ring.len())
	}
}

func TestPreRollRingZeroCapacity(t *testing.T) {
	ring := newPreRollRing(0)
	ring.push([]float32{1})
	if ring.len() != 0 {
		t.Errorf("Expected zero-capacity ring to discard, got %d", ring.len())
	}
	if drained := ring.drainTo(nil); len(drained) != 0 {
		t.Errorf("Expected nothing to drain, got %d", len(drained))
	}
}
