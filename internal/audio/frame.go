package audio

import "math"

// Frame is one fixed-size chunk of captured samples. Frames are immutable
// once produced; ownership transfers to the consumer through the frame queue.
// A frame with EOS set is the end-of-stream sentinel pushed on Stop so
// downstream loops terminate deterministically.
type Frame struct {
	Samples []float32
	EOS     bool
}

// Sentinel returns the end-of-stream frame.
func Sentinel() Frame {
	return Frame{EOS: true}
}

// Format describes the negotiated capture format.
type Format struct {
	SampleRate int
	Channels   int
}

// Float32ToPCM16 converts float32 samples in [-1, 1] to 16-bit signed
// little-endian PCM bytes, the encoding the streaming backend expects.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// Float32ToInt16 converts float32 samples in [-1, 1] to int16 samples, the
// representation keyword-spotting engines consume.
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		out[i] = int16(s * 32767)
	}
	return out
}

// CalculateRMS returns the root mean square of the samples, used for
// energy-based voice activity detection.
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}
