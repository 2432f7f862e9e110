package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the assistant.
//
// Credentials are deliberately not marked required: a missing or placeholder
// value degrades the owning service to "not configured" instead of aborting
// startup. The UI disables the dependent controls and surfaces the reason.
type Config struct {
	// Deepgram streaming STT
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// LLM question answering (any OpenAI-compatible chat-completions endpoint)
	LLMAPIKey      string  `envconfig:"LLM_API_KEY" default:""`
	LLMBaseURL     string  `envconfig:"LLM_BASE_URL" default:""` // empty = api.openai.com
	LLMModel       string  `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	LLMMaxTokens   int     `envconfig:"LLM_MAX_TOKENS" default:"300"`
	LLMTemperature float32 `envconfig:"LLM_TEMPERATURE" default:"0.3"`
	LLMTimeout     int     `envconfig:"LLM_TIMEOUT" default:"30"` // seconds

	// Wake word (Porcupine keyword model)
	WakeWordModelPath  string `envconfig:"WAKEWORD_MODEL_PATH" default:""`
	PicovoiceAccessKey string `envconfig:"PICOVOICE_ACCESS_KEY" default:""`

	// Audio capture
	AudioDevice     string `envconfig:"AUDIO_DEVICE" default:""` // empty = default input
	FramesPerBuffer int    `envconfig:"FRAMES_PER_BUFFER" default:"512"`
	FrameQueueSize  int    `envconfig:"FRAME_QUEUE_SIZE" default:"256"`

	// Coordination
	ContextMaxChars        int `envconfig:"CONTEXT_MAX_CHARS" default:"2000"`
	QuestionCaptureTimeout int `envconfig:"QUESTION_CAPTURE_TIMEOUT" default:"10"` // seconds
	PollIntervalMs         int `envconfig:"POLL_INTERVAL_MS" default:"100"`
	StopTimeoutMs          int `envconfig:"STOP_TIMEOUT_MS" default:"2000"`

	// Observability
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricsPort    string `envconfig:"METRICS_PORT" default:"9090"`
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Template values copied verbatim from a config template count as unset.
	cfg.DeepgramAPIKey = normalize(cfg.DeepgramAPIKey)
	cfg.LLMAPIKey = normalize(cfg.LLMAPIKey)
	cfg.LLMBaseURL = normalize(cfg.LLMBaseURL)
	cfg.WakeWordModelPath = normalize(cfg.WakeWordModelPath)
	cfg.PicovoiceAccessKey = normalize(cfg.PicovoiceAccessKey)

	return &cfg, nil
}

// normalize maps placeholder values ("YOUR_API_KEY_HERE" and friends) to "".
func normalize(v string) string {
	trimmed := strings.TrimSpace(v)
	upper := strings.ToUpper(trimmed)
	if strings.HasPrefix(upper, "YOUR_") || strings.HasSuffix(upper, "_HERE") {
		return ""
	}
	return trimmed
}

// SpeechConfigured reports whether the streaming STT backend is usable.
func (c *Config) SpeechConfigured() bool {
	return c.DeepgramAPIKey != ""
}

// LLMConfigured reports whether question answering is usable.
func (c *Config) LLMConfigured() bool {
	return c.LLMAPIKey != ""
}

// WakeWordConfigured reports whether the wake-word listener is usable.
// The model file itself is checked at Configure time, not here.
func (c *Config) WakeWordConfigured() bool {
	return c.WakeWordModelPath != "" && c.PicovoiceAccessKey != ""
}

// Degraded returns the names of services missing configuration, for the
// startup status line.
func (c *Config) Degraded() []string {
	var out []string
	if !c.SpeechConfigured() {
		out = append(out, "speech-to-text")
	}
	if !c.LLMConfigured() {
		out = append(out, "question-answering")
	}
	if !c.WakeWordConfigured() {
		out = append(out, "wake-word")
	}
	return out
}

// PollInterval returns the UI poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// StopTimeout returns the bounded wait applied to blocking teardown calls.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMs) * time.Millisecond
}

// CaptureTimeout returns the bound on a single spoken-question capture.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.QuestionCaptureTimeout) * time.Second
}
