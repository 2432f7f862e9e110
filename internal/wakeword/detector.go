package wakeword

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/podassist/podassist/internal/audio"
	"github.com/podassist/podassist/internal/observability"
	"github.com/podassist/podassist/internal/resilience"
)

// State is the listener lifecycle.
type State int

const (
	StateUnconfigured State = iota
	StateIdle
	StateListening
	StateTriggered
)

// listenStopTimeout bounds the join with the listen loop on Stop.
const listenStopTimeout = 2 * time.Second

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// engine is the keyword-spotting core. The Porcupine binding satisfies it;
// tests substitute a fake.
type engine interface {
	Init() error
	Process(pcm []int16) (int, error)
	FrameLength() int
	SampleRate() int
	Delete()
}

// frameSource abstracts the microphone the listener reads from.
type frameSource interface {
	Start(deviceIndex int) error
	Stop()
	Frames() <-chan audio.Frame
	Format() audio.Format
	Close() error
}

// Listener watches the default microphone for the wake word. It is
// single-shot: one detection emits one event and the listener stops itself.
// Restarting after a detection is the caller's explicit decision.
type Listener struct {
	mu     sync.Mutex
	logger zerolog.Logger

	state  State
	events chan struct{}

	newEngine func() engine
	newSource func() (frameSource, int, error)

	active atomic.Bool
	src    frameSource
	done   chan struct{}
}

// NewListener creates an unconfigured wake-word listener.
func NewListener(bufferSize, queueSize int) *Listener {
	return &Listener{
		logger: observability.ComponentLogger("wakeword"),
		state:  StateUnconfigured,
		events: make(chan struct{}, 1),
		newSource: func() (frameSource, int, error) {
			idx, err := audio.DefaultInputIndex()
			if err != nil {
				return nil, -1, err
			}
			src, err := audio.NewSource(bufferSize, queueSize)
			if err != nil {
				return nil, -1, err
			}
			return src, idx, nil
		},
	}
}

// Configure validates the keyword model and credentials and transitions to
// Idle. A missing model file is a configuration error, not a crash later.
func (l *Listener) Configure(modelPath, accessKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateListening {
		return fmt.Errorf("cannot configure while listening")
	}
	if accessKey == "" {
		return fmt.Errorf("wake-word access key is required")
	}
	if _, err := os.Stat(modelPath); err != nil {
		l.logger.Warn().Str("path", modelPath).Msg("Keyword model file not found")
		return fmt.Errorf("keyword model not found at %s: %w", modelPath, err)
	}

	l.newEngine = func() engine {
		return newPorcupineEngine(accessKey, modelPath)
	}
	l.state = StateIdle
	l.logger.Info().Str("model", modelPath).Msg("Wake-word listener configured")
	return nil
}

// Start begins listening on the default microphone. A no-op while already
// listening; an error from any other state than Idle.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateListening {
		return nil
	}
	if l.state != StateIdle {
		return fmt.Errorf("start requires idle state, current state is %s", l.state)
	}

	eng := l.newEngine()
	if err := eng.Init(); err != nil {
		observability.RecordError("engine", "wakeword")
		return fmt.Errorf("failed to initialize keyword engine: %w", err)
	}

	src, deviceIndex, err := l.newSource()
	if err != nil {
		eng.Delete()
		return fmt.Errorf("failed to open microphone: %w", err)
	}
	if err := src.Start(deviceIndex); err != nil {
		eng.Delete()
		_ = src.Close()
		return fmt.Errorf("failed to start microphone: %w", err)
	}

	l.src = src
	l.done = make(chan struct{})
	l.active.Store(true)
	l.state = StateListening
	l.logger.Info().Msg("Listening for wake word")

	go l.listen(eng, src, l.done)
	return nil
}

// listen feeds microphone audio through the engine until a detection or Stop.
// The engine consumes fixed-length mono frames at its own rate; capture
// buffers arrive in whatever format the device negotiated, so each one is
// downmixed and resampled before the chunker reslices it.
func (l *Listener) listen(eng engine, src frameSource, done chan struct{}) {
	defer close(done)
	defer eng.Delete()
	defer src.Close()

	format := src.Format()
	chunker := audio.NewChunker(eng.FrameLength())

	for l.active.Load() {
		frame, ok := <-src.Frames()
		if !ok || frame.EOS {
			l.setState(StateIdle)
			return
		}
		samples := audio.DownmixMono(frame.Samples, format.Channels)
		samples = audio.Resample(samples, format.SampleRate, eng.SampleRate())
		for _, chunk := range chunker.Push(audio.Float32ToInt16(samples)) {
			keywordIndex, err := eng.Process(chunk)
			if err != nil {
				observability.RecordError("engine", "wakeword")
				l.logger.Error().Err(err).Msg("Keyword engine failed, stopping listener")
				l.active.Store(false)
				l.setState(StateIdle)
				return
			}
			if keywordIndex >= 0 {
				observability.RecordWakeDetection()
				l.logger.Info().Msg("Wake word detected")
				l.setState(StateTriggered)
				select {
				case l.events <- struct{}{}:
				default:
					// A pending unconsumed trigger means this one is redundant.
				}
				l.active.Store(false)
				l.setState(StateIdle)
				return
			}
		}
	}
	l.setState(StateIdle)
}

// Stop halts listening and releases the microphone and engine. Idempotent.
func (l *Listener) Stop() {
	l.mu.Lock()
	if l.state != StateListening {
		l.mu.Unlock()
		return
	}
	src := l.src
	done := l.done
	l.mu.Unlock()

	l.active.Store(false)
	// Stopping the source lands the sentinel, unblocking the listen loop.
	if src != nil {
		src.Stop()
	}
	if !resilience.WaitWithTimeout(done, listenStopTimeout) {
		l.logger.Warn().Msg("Listen loop did not stop in time")
	}
	l.setState(StateIdle)
	l.logger.Info().Msg("Wake-word listener stopped")
}

// Events delivers one value per detection.
func (l *Listener) Events() <-chan struct{} {
	return l.events
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) setState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
}
