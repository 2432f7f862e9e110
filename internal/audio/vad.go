package audio

// VADConfig holds configuration for energy-based voice activity detection.
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech
	SilenceFrames   int     // Consecutive silent frames that end an utterance
}

// DefaultVADConfig returns the defaults used for spoken-question endpointing.
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   25, // ~800ms of silence at 512 samples / 16kHz
	}
}

// VADDetector detects speech boundaries in a frame stream. It endpoints the
// bounded single-utterance capture after a wake-word trigger.
type VADDetector struct {
	config         *VADConfig
	silenceCounter int
	isSpeaking     bool
}

// NewVADDetector creates a detector; nil config uses defaults.
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{config: config}
}

// ProcessFrame consumes one frame of samples.
// Returns (isSpeaking, speechStarted, speechEnded).
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	rms := CalculateRMS(samples)
	frameHasSpeech := rms > v.config.EnergyThreshold

	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.silenceCounter = 0
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
	} else {
		v.silenceCounter++
		if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
			speechEnded = true
			v.isSpeaking = false
			v.silenceCounter = 0
		}
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// Reset clears detector state.
func (v *VADDetector) Reset() {
	v.silenceCounter = 0
	v.isSpeaking = false
}

// IsSpeaking reports whether speech is currently detected.
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}
