package vad

// preRollRing is a fixed-capacity FIFO of frames with O(1) eviction. It holds
// the most recent frames observed outside of speech so an episode can carry
// its leading edge.
type preRollRing struct {
	frames [][]float32
	head   int // index of the oldest frame
	count  int
}

func newPreRollRing(capacity int) *preRollRing {
	return &preRollRing{frames: make([][]float32, capacity)}
}

// push appends a frame, evicting the oldest when the ring is full. A
// zero-capacity ring discards every frame.
func (r *preRollRing) push(frame []float32) {
	if len(r.frames) == 0 {
		return
	}
	tail := (r.head + r.count) % len(r.frames)
	r.frames[tail] = frame
	if r.count < len(r.frames) {
		r.count++
	} else {
		r.head = (r.head + 1) % len(r.frames)
	}
}

// drainTo appends the buffered frames to dst oldest-first and clears the ring.
func (r *preRollRing) drainTo(dst [][]float32) [][]float32 {
	for i := 0; i < r.count; i++ {
		idx := (r.head + i) % len(r.frames)
		dst = append(dst, r.frames[idx])
		r.frames[idx] = nil
	}
	r.head = 0
	r.count = 0
	return dst
}

func (r *preRollRing) len() int {
	return r.count
}

func (r *preRollRing) clear() {
	for i := range r.frames {
		r.frames[i] = nil
	}
	r.head = 0
	r.count = 0
}
