package stt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/podassist/podassist/internal/audio"
	"github.com/podassist/podassist/internal/observability"
)

var (
	// ErrCaptureTimeout means no utterance completed within the bound.
	ErrCaptureTimeout = errors.New("question capture timed out")

	// ErrNoSpeech means the backend recognized nothing in the utterance.
	ErrNoSpeech = errors.New("no speech recognized")
)

// frameSource abstracts the temporary microphone capture a spoken question
// is read from, so tests can drive the capturer without hardware.
type frameSource interface {
	Start(deviceIndex int) error
	Stop()
	Frames() <-chan audio.Frame
	Format() audio.Format
	Close() error
}

// Capturer performs the bounded "listen for one utterance" operation after a
// wake-word trigger: microphone frames are endpointed with the VAD, streamed
// through a one-shot backend session, and the first final result is returned.
type Capturer struct {
	logger    zerolog.Logger
	settings  Settings
	timeout   time.Duration
	vadConfig *audio.VADConfig

	newSource func() (frameSource, int, error)
	newStream streamFactory
}

// NewCapturer creates a capturer using the default microphone and the
// Deepgram streaming backend.
func NewCapturer(settings Settings, bufferSize, queueSize int, timeout time.Duration) *Capturer {
	return &Capturer{
		logger:   observability.ComponentLogger("capture"),
		settings: settings,
		timeout:  timeout,
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
		newStream: newDeepgramStream,
	}
}

// Capture listens for one utterance and returns its transcript. The whole
// operation is bounded by the capture timeout; expiry is a failure, never a
// hang.
func (c *Capturer) Capture(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	src, deviceIndex, err := c.newSource()
	if err != nil {
		observability.RecordQuestionCapture("error")
		return "", err
	}
	defer src.Close()
	if err := src.Start(deviceIndex); err != nil {
		observability.RecordQuestionCapture("error")
		return "", err
	}
	defer src.Stop()

	type result struct {
		text string
		err  string
		kind EventKind
	}
	results := make(chan result, 1)
	emit := func(ev Event) {
		switch ev.Kind {
		case KindFinal, KindNoMatch, KindError:
			select {
			case results <- result{text: ev.Text, err: ev.Err, kind: ev.Kind}:
			default:
			}
		}
	}

	stream, err := c.newStream(ctx, c.settings, src.Format(), emit)
	if err != nil {
		observability.RecordQuestionCapture("error")
		return "", err
	}
	var finishOnce sync.Once
	defer finishOnce.Do(stream.Finish)

	vad := audio.NewVADDetector(c.vadConfig)
	c.logger.Info().Dur("timeout", c.timeout).Msg("Listening for spoken question")

	forwarding := true
	for {
		select {
		case <-ctx.Done():
			observability.RecordQuestionCapture("timeout")
			c.logger.Warn().Msg("Spoken question capture timed out")
			return "", ErrCaptureTimeout

		case res := <-results:
			return c.resolve(res.kind, res.text, res.err)

		case frame, ok := <-src.Frames():
			if !ok || frame.EOS {
				// Mic went away before an utterance completed; wait out the
				// remaining budget for a final result.
				forwarding = false
				finishOnce.Do(stream.Finish)
				continue
			}
			if !forwarding {
				continue
			}
			if _, err := stream.Write(audio.Float32ToPCM16(frame.Samples)); err != nil {
				observability.RecordQuestionCapture("error")
				return "", err
			}
			if _, _, ended := vad.ProcessFrame(audio.Float32ToInt16(frame.Samples)); ended {
				// Utterance endpointed; flush the session and wait for the
				// final transcript within the remaining budget.
				c.logger.Debug().Msg("Utterance endpoint detected")
				forwarding = false
				finishOnce.Do(stream.Finish)
			}
		}
	}
}

func (c *Capturer) resolve(kind EventKind, text, errMsg string) (string, error) {
	switch kind {
	case KindFinal:
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			observability.RecordQuestionCapture("empty")
			return "", ErrNoSpeech
		}
		observability.RecordQuestionCapture("ok")
		c.logger.Info().Str("text", trimmed).Msg("Spoken question captured")
		return trimmed, nil
	case KindNoMatch:
		observability.RecordQuestionCapture("empty")
		return "", ErrNoSpeech
	default:
		observability.RecordQuestionCapture("error")
		return "", errors.New(errMsg)
	}
}
