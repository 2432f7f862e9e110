package wakeword

import (
	porcupine "github.com/Picovoice/porcupine/binding/go/v3"
)

// porcupineEngine adapts the Porcupine binding to the engine interface.
type porcupineEngine struct {
	p porcupine.Porcupine
}

func newPorcupineEngine(accessKey, modelPath string) engine {
	return &porcupineEngine{
		p: porcupine.Porcupine{
			AccessKey:    accessKey,
			KeywordPaths: []string{modelPath},
		},
	}
}

func (e *porcupineEngine) Init() error {
	return e.p.Init()
}

// Process scans one frame. A non-negative index identifies the detected
// keyword; -1 means no detection.
func (e *porcupineEngine) Process(pcm []int16) (int, error) {
	return e.p.Process(pcm)
}

func (e *porcupineEngine) FrameLength() int {
	return porcupine.FrameLength
}

func (e *porcupineEngine) SampleRate() int {
	return porcupine.SampleRate
}

func (e *porcupineEngine) Delete() {
	_ = e.p.Delete()
}
