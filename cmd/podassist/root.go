package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/podassist/podassist/internal/audio"
	"github.com/podassist/podassist/internal/config"
	"github.com/podassist/podassist/internal/llm"
	"github.com/podassist/podassist/internal/observability"
	"github.com/podassist/podassist/internal/orchestrator"
	"github.com/podassist/podassist/internal/stt"
	"github.com/podassist/podassist/internal/ui"
	"github.com/podassist/podassist/internal/wakeword"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "podassist",
	Short: "Live podcast transcription and question answering",
	Long: "podassist captures podcast audio from a loopback or microphone device,\n" +
		"transcribes it live, and answers questions about what was said, typed\n" +
		"or spoken after a wake word.",
	SilenceUsage: true,
	RunE:         runAssistant,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(versionCmd)
}

func runAssistant(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet.
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("version", version).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Podcast assistant starting")

	if degraded := cfg.Degraded(); len(degraded) > 0 {
		logger.Warn().
			Strs("services", degraded).
			Msg("Running with degraded services, related controls are disabled")
	}

	if cfg.MetricsEnabled {
		startMetricsServer(cfg)
	}

	source, err := audio.NewSource(cfg.FramesPerBuffer, cfg.FrameQueueSize)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize audio")
		return err
	}
	defer source.Close()

	speech := stt.NewService(cfg.PollInterval(), cfg.StopTimeout())

	var answers orchestrator.Answerer
	if cfg.LLMConfigured() {
		client, err := llm.NewClient(llm.Settings{
			APIKey:      cfg.LLMAPIKey,
			BaseURL:     cfg.LLMBaseURL,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     time.Duration(cfg.LLMTimeout) * time.Second,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Question answering disabled")
		} else {
			answers = client
		}
	}

	sttSettings := stt.Settings{
		APIKey:   cfg.DeepgramAPIKey,
		Model:    cfg.DeepgramModel,
		Language: cfg.DeepgramLanguage,
	}

	var wake orchestrator.WakeListener
	var capturer orchestrator.QuestionCapturer
	if cfg.WakeWordConfigured() && cfg.SpeechConfigured() {
		listener := wakeword.NewListener(cfg.FramesPerBuffer, cfg.FrameQueueSize)
		if err := listener.Configure(cfg.WakeWordModelPath, cfg.PicovoiceAccessKey); err != nil {
			logger.Warn().Err(err).Msg("Wake-word listener disabled")
		} else {
			wake = listener
			capturer = stt.NewCapturer(sttSettings, cfg.FramesPerBuffer, cfg.FrameQueueSize, cfg.CaptureTimeout())
		}
	}

	orch := orchestrator.New(source, speech, answers, wake, capturer, orchestrator.Options{
		STTSettings:     sttSettings,
		ContextMaxChars: cfg.ContextMaxChars,
	})

	uiCfg := ui.Config{
		PollInterval:    cfg.PollInterval(),
		PreferredDevice: cfg.AudioDevice,
		Degraded:        cfg.Degraded(),
		CanTranscribe:   cfg.SpeechConfigured(),
		CanAnswer:       cfg.LLMConfigured(),
	}

	if err := ui.Run(orch, uiCfg); err != nil {
		logger.Error().Err(err).Msg("UI exited with error")
		return err
	}

	if orch.SessionActive() {
		_ = orch.StopSession()
	}
	logger.Info().Msg("Podcast assistant exited")
	return nil
}

// startMetricsServer serves Prometheus metrics and the health endpoints on a
// local port, in the background for the lifetime of the process.
func startMetricsServer(cfg *config.Config) {
	logger := observability.GetLogger()

	statusFn := func() map[string]observability.ComponentStatus {
		services := map[string]observability.ComponentStatus{}
		report := func(name string, configured bool) {
			if configured {
				services[name] = observability.ComponentStatus{Status: "configured"}
			} else {
				services[name] = observability.ComponentStatus{Status: "not_configured", Message: "credentials missing"}
			}
		}
		report("speech-to-text", cfg.SpeechConfigured())
		report("question-answering", cfg.LLMConfigured())
		report("wake-word", cfg.WakeWordConfigured())
		return services
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", observability.HealthCheckHandler(version))
	mux.HandleFunc("/ready", observability.ReadinessHandler(version, statusFn))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.MetricsPort),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.MetricsPort).Msg("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}
