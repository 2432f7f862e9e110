package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/podassist/podassist/internal/observability"
)

// ErrNotConfigured is returned when question answering is attempted without
// credentials. Callers disable the feature rather than retry.
var ErrNotConfigured = errors.New("language model not configured")

const systemInstruction = "You are a helpful AI assistant. A user is listening to a podcast " +
	"and has a question about it. Answer the question based *only* on the provided " +
	"podcast transcript snippet. If the answer is not in the snippet, clearly state that."

// fallbackAnswer is surfaced when the backend returns an empty completion.
const fallbackAnswer = "No response generated"

// Settings holds the chat-completions backend configuration.
type Settings struct {
	APIKey      string
	BaseURL     string // empty = default OpenAI endpoint
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// Client answers questions about a transcript snippet through an
// OpenAI-compatible chat-completions API.
type Client struct {
	logger   zerolog.Logger
	settings Settings
	api      *openai.Client
}

// NewClient creates a client, or ErrNotConfigured if no API key is set.
// A client is never created in a half-working state.
func NewClient(settings Settings) (*Client, error) {
	if settings.APIKey == "" {
		return nil, ErrNotConfigured
	}

	cfg := openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		cfg.BaseURL = settings.BaseURL
	}

	return &Client{
		logger:   observability.ComponentLogger("llm"),
		settings: settings,
		api:      openai.NewClientWithConfig(cfg),
	}, nil
}

// prompt renders the transcript snippet and question into the user message.
func prompt(question, snippet string) string {
	return fmt.Sprintf("Podcast Snippet:\n%s\n\nUser's Question:\n%s", snippet, question)
}

// Ask answers one question against a transcript snippet. The call is bounded
// by the configured timeout; failures come back as errors carrying the HTTP
// status where the backend supplied one.
func (c *Client) Ask(ctx context.Context, question, snippet string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.settings.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.settings.Model,
		MaxTokens:   c.settings.MaxTokens,
		Temperature: c.settings.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: prompt(question, snippet)},
		},
	})
	elapsed := time.Since(start)

	if err != nil {
		observability.RecordLLMRequest(false, elapsed.Seconds())
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			c.logger.Error().
				Int("status", apiErr.HTTPStatusCode).
				Str("message", apiErr.Message).
				Msg("Completion request failed")
			return "", fmt.Errorf("language model request failed with status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		c.logger.Error().Err(err).Msg("Completion request failed")
		return "", fmt.Errorf("language model request failed: %w", err)
	}

	observability.RecordLLMRequest(true, elapsed.Seconds())

	if len(resp.Choices) == 0 {
		c.logger.Warn().Msg("Backend returned no choices")
		return fallbackAnswer, nil
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return fallbackAnswer, nil
	}

	c.logger.Info().
		Dur("elapsed", elapsed).
		Int("answer_chars", len(answer)).
		Msg("Question answered")
	return answer, nil
}

// AskStream answers one question, delivering the answer incrementally through
// onDelta as tokens arrive. Returns the assembled answer.
func (c *Client) AskStream(ctx context.Context, question, snippet string, onDelta func(string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.settings.Timeout)
	defer cancel()

	start := time.Now()
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.settings.Model,
		MaxTokens:   c.settings.MaxTokens,
		Temperature: c.settings.Temperature,
		Stream:      true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: prompt(question, snippet)},
		},
	})
	if err != nil {
		observability.RecordLLMRequest(false, time.Since(start).Seconds())
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("language model request failed with status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("language model request failed: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			observability.RecordLLMRequest(false, time.Since(start).Seconds())
			return "", fmt.Errorf("language model stream failed: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}

	observability.RecordLLMRequest(true, time.Since(start).Seconds())
	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return fallbackAnswer, nil
	}
	return answer, nil
}
