package config

import (
	"os"
	"testing"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	os.Unsetenv("DEEPGRAM_API_KEY")
	os.Unsetenv("LLM_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}
	if cfg.ContextMaxChars != 2000 {
		t.Errorf("Expected default ContextMaxChars 2000, got %d", cfg.ContextMaxChars)
	}
	if cfg.QuestionCaptureTimeout != 10 {
		t.Errorf("Expected default QuestionCaptureTimeout 10, got %d", cfg.QuestionCaptureTimeout)
	}
	if cfg.PollIntervalMs != 100 {
		t.Errorf("Expected default PollIntervalMs 100, got %d", cfg.PollIntervalMs)
	}
}

func TestLoadFromEnv_MissingCredentialsDegrades(t *testing.T) {
	os.Unsetenv("DEEPGRAM_API_KEY")
	os.Unsetenv("LLM_API_KEY")
	os.Unsetenv("WAKEWORD_MODEL_PATH")
	os.Unsetenv("PICOVOICE_ACCESS_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() must not fail on missing credentials: %v", err)
	}

	if cfg.SpeechConfigured() {
		t.Error("Expected SpeechConfigured() false without a key")
	}
	if cfg.LLMConfigured() {
		t.Error("Expected LLMConfigured() false without a key")
	}
	if cfg.WakeWordConfigured() {
		t.Error("Expected WakeWordConfigured() false without model/key")
	}

	degraded := cfg.Degraded()
	if len(degraded) != 3 {
		t.Errorf("Expected 3 degraded services, got %v", degraded)
	}
}

func TestLoadFromEnv_PlaceholderTreatedAsUnset(t *testing.T) {
	os.Setenv("DEEPGRAM_API_KEY", "YOUR_SPEECH_KEY_HERE")
	os.Setenv("LLM_API_KEY", "YOUR_API_KEY_HERE")
	defer os.Unsetenv("DEEPGRAM_API_KEY")
	defer os.Unsetenv("LLM_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.SpeechConfigured() {
		t.Error("Placeholder speech key must degrade the service")
	}
	if cfg.LLMConfigured() {
		t.Error("Placeholder LLM key must degrade the service")
	}
}

func TestLoadFromEnv_RealValues(t *testing.T) {
	os.Setenv("DEEPGRAM_API_KEY", "dg-test-key")
	os.Setenv("LLM_API_KEY", "sk-test-key")
	os.Setenv("LLM_BASE_URL", "https://api.deepseek.com/v1")
	defer os.Unsetenv("DEEPGRAM_API_KEY")
	defer os.Unsetenv("LLM_API_KEY")
	defer os.Unsetenv("LLM_BASE_URL")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if !cfg.SpeechConfigured() {
		t.Error("Expected SpeechConfigured() true")
	}
	if !cfg.LLMConfigured() {
		t.Error("Expected LLMConfigured() true")
	}
	if cfg.LLMBaseURL != "https://api.deepseek.com/v1" {
		t.Errorf("Unexpected LLMBaseURL: %s", cfg.LLMBaseURL)
	}
	if len(cfg.Degraded()) != 1 {
		t.Errorf("Expected only wake-word degraded, got %v", cfg.Degraded())
	}
}
