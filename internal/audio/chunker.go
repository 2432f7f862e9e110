package audio

// Chunker re-slices a stream of arbitrary-length sample buffers into the
// fixed frame size a consumer requires. The wake-word engine processes
// exactly FrameLength samples per call while capture buffers are sized for
// the transcription path, so the two are bridged here.
type Chunker struct {
	frameSize int
	pending   []int16
}

// NewChunker creates a chunker emitting frames of frameSize samples.
func NewChunker(frameSize int) *Chunker {
	return &Chunker{frameSize: frameSize}
}

// Push appends samples and returns every complete frame now available.
// Leftover samples are retained for the next call.
func (c *Chunker) Push(samples []int16) [][]int16 {
	c.pending = append(c.pending, samples...)

	var frames [][]int16
	for len(c.pending) >= c.frameSize {
		frame := make([]int16, c.frameSize)
		copy(frame, c.pending[:c.frameSize])
		frames = append(frames, frame)
		c.pending = c.pending[c.frameSize:]
	}
	return frames
}

// Pending returns the number of buffered samples not yet emitted.
func (c *Chunker) Pending() int {
	return len(c.pending)
}

// Reset discards buffered samples.
func (c *Chunker) Reset() {
	c.pending = nil
}
