package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/podassist/podassist/internal/observability"
)

// Source owns the microphone/loopback input stream. While recording it
// pushes a copy of each captured buffer onto the frame queue; on Stop it
// pushes the end-of-stream sentinel. Frames are dropped, not blocked on,
// when the queue is full.
type Source struct {
	mu          sync.Mutex
	logger      zerolog.Logger
	bufferSize  int
	frames      chan Frame
	format      Format
	stream      *portaudio.Stream
	recording   bool
	initialized bool
}

// NewSource creates an audio source. queueSize bounds the frame queue.
func NewSource(bufferSize, queueSize int) (*Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	return &Source{
		logger:      observability.ComponentLogger("audio"),
		bufferSize:  bufferSize,
		frames:      make(chan Frame, queueSize),
		initialized: true,
	}, nil
}

// Start opens the device and begins pushing frames. Starting while already
// recording is rejected. On device-open failure the source resets to "not
// recording" and reports the failure; it never retries.
func (s *Source) Start(deviceIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recording {
		s.logger.Info().Msg("Recording already in progress")
		return fmt.Errorf("recording already in progress")
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}
	if deviceIndex < 0 || deviceIndex >= len(devices) {
		return fmt.Errorf("invalid device index %d", deviceIndex)
	}
	device := devices[deviceIndex]

	channels := device.MaxInputChannels
	if channels < 1 {
		channels = 1
	}
	sampleRate := device.DefaultSampleRate
	if sampleRate <= 0 {
		sampleRate = 44100
	}

	// Interleaved samples: one buffer slot per frame per channel.
	buffer := make([]float32, s.bufferSize*channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: s.bufferSize,
	}

	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		s.format = Format{}
		observability.RecordError("device", "audio")
		s.logger.Error().Err(err).Int("device", deviceIndex).Msg("Failed to open audio stream")
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		s.format = Format{}
		observability.RecordError("device", "audio")
		s.logger.Error().Err(err).Int("device", deviceIndex).Msg("Failed to start audio stream")
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	s.stream = stream
	s.format = Format{SampleRate: int(sampleRate), Channels: channels}
	s.recording = true

	go s.captureLoop(stream, buffer)

	s.logger.Info().
		Int("device", deviceIndex).
		Str("name", device.Name).
		Int("sample_rate", s.format.SampleRate).
		Int("channels", s.format.Channels).
		Msg("Recording started")
	return nil
}

// captureLoop reads buffers from the stream until the source stops.
func (s *Source) captureLoop(stream *portaudio.Stream, buffer []float32) {
	for {
		s.mu.Lock()
		running := s.recording && s.stream == stream
		s.mu.Unlock()
		if !running {
			return
		}

		if err := stream.Read(); err != nil {
			s.mu.Lock()
			stillRunning := s.recording && s.stream == stream
			s.mu.Unlock()
			if !stillRunning {
				return
			}
			// Overflow is recoverable; keep reading.
			s.logger.Warn().Err(err).Msg("Audio read error")
			continue
		}

		samples := make([]float32, len(buffer))
		copy(samples, buffer)
		observability.RecordFrame()

		select {
		case s.frames <- Frame{Samples: samples}:
		default:
			observability.RecordFrameDropped()
			s.logger.Warn().Msg("Frame queue full, dropping frame")
		}
	}
}

// Stop stops the stream and pushes the sentinel. Idempotent.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording || s.stream == nil {
		s.logger.Info().Msg("Stop called but not recording")
		return
	}

	s.recording = false

	if err := s.stream.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("Error stopping audio stream")
	}
	if err := s.stream.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Error closing audio stream")
	}
	s.stream = nil

	select {
	case s.frames <- Sentinel():
	default:
		// Queue full: drain one slot so the sentinel always lands.
		<-s.frames
		s.frames <- Sentinel()
	}

	s.logger.Info().Msg("Recording stopped")
}

// Frames returns the frame queue.
func (s *Source) Frames() <-chan Frame {
	return s.frames
}

// DrainFrames discards queued frames. Called after a session stops so a new
// session starts from an empty queue.
func (s *Source) DrainFrames() {
	for {
		select {
		case <-s.frames:
		default:
			return
		}
	}
}

// IsRecording reports whether capture is active.
func (s *Source) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Format returns the negotiated sample format. Falls back to the default
// input device's format, then 44.1kHz mono, when nothing was negotiated yet.
func (s *Source) Format() Format {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format.SampleRate > 0 && s.format.Channels > 0 {
		return s.format
	}

	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil {
		ch := dev.MaxInputChannels
		if ch < 1 {
			ch = 1
		}
		sr := int(dev.DefaultSampleRate)
		if sr <= 0 {
			sr = 44100
		}
		return Format{SampleRate: sr, Channels: ch}
	}

	s.logger.Warn().Msg("Falling back to 44100 Hz mono audio format")
	return Format{SampleRate: 44100, Channels: 1}
}

// Close releases PortAudio. The source is unusable afterwards.
func (s *Source) Close() error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		s.initialized = false
		if err := portaudio.Terminate(); err != nil {
			return fmt.Errorf("failed to terminate PortAudio: %w", err)
		}
	}
	return nil
}
