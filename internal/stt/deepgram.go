package stt

import (
	"context"
	"fmt"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/podassist/podassist/internal/audio"
	"github.com/podassist/podassist/internal/observability"
)

// messageCallbackHandler implements the SDK's LiveMessageCallback interface.
// It embeds the default handler and overrides only Message and Error.
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	onMessage func(*msginterfaces.MessageResponse)
	onError   func(*msginterfaces.ErrorResponse)
}

func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.onMessage(message)
	return nil
}

func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	m.onError(errorResponse)
	return nil
}

// newDeepgramStream opens a Deepgram live-transcription websocket session.
// SDK callbacks are translated into transcript events through emit.
func newDeepgramStream(ctx context.Context, s Settings, format audio.Format, emit func(Event)) (backendStream, error) {
	logger := observability.ComponentLogger("deepgram")

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          s.Model,
		Language:       s.Language,
		Punctuate:      true,
		InterimResults: true,
		Encoding:       "linear16",
		Channels:       format.Channels,
		SampleRate:     format.SampleRate,
	}

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		onMessage: func(msg *msginterfaces.MessageResponse) {
			if msg == nil {
				return
			}
			switch msg.Type {
			case "Results", "Message":
				if len(msg.Channel.Alternatives) == 0 {
					return
				}
				text := msg.Channel.Alternatives[0].Transcript
				if text == "" {
					// Backend heard the segment but recognized nothing.
					if msg.IsFinal {
						emit(Event{Kind: KindNoMatch})
					}
					return
				}
				if msg.IsFinal {
					logger.Debug().Str("text", text).Msg("Final transcript")
					emit(Event{Kind: KindFinal, Text: text})
				} else {
					emit(Event{Kind: KindIntermediate, Text: text})
				}
			case "Metadata", "SpeechStarted", "UtteranceEnd":
				// Session bookkeeping, nothing to surface.
			default:
				logger.Debug().Str("type", msg.Type).Msg("Unhandled backend message type")
			}
		},
		onError: func(errResp *msginterfaces.ErrorResponse) {
			logger.Error().
				Str("type", errResp.ErrCode).
				Str("description", errResp.Description).
				Msg("Backend error")
			emit(Event{Kind: KindError, Err: fmt.Sprintf("speech backend error: %s: %s", errResp.ErrCode, errResp.Description)})
		},
	}

	client, err := listenClient.NewWSUsingCallback(ctx, s.APIKey, nil, tOptions, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	logger.Info().
		Str("model", s.Model).
		Str("language", s.Language).
		Int("sample_rate", format.SampleRate).
		Msg("Streaming session opened")
	return client, nil
}
