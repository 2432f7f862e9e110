package audio

// DownmixMono collapses interleaved multi-channel samples to mono by
// averaging the channels of each frame. Single-channel input passes through.
func DownmixMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	out := make([]float32, len(samples)/channels)
	for i := range out {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// Resample converts samples between rates using linear interpolation.
// Keyword engines consume a fixed rate while capture devices open at their
// native one, so their streams meet here.
func Resample(samples []float32, inputRate, outputRate int) []float32 {
	if inputRate == outputRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(outputRate) / float64(inputRate)
	outputLength := int(float64(len(samples)) * ratio)
	output := make([]float32, outputLength)

	for i := 0; i < outputLength; i++ {
		srcPos := float64(i) / ratio

		idx0 := int(srcPos)
		idx1 := idx0 + 1
		if idx1 >= len(samples) {
			idx1 = len(samples) - 1
		}

		fraction := float32(srcPos - float64(idx0))
		output[i] = samples[idx0]*(1.0-fraction) + samples[idx1]*fraction
	}

	return output
}
