package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/agents/email"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/agents/grocery"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/agents/news"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/agents/weather"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/assistant"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/config"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/httpapi"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/llm"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/mailcal"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/observability"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/products"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/router"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/session"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/voice"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/weatherapi"
	"github.com/IbtissamEchchaibi19/multiagentsystem/internal/websearch"
)

type VoiceInfo struct {
	Provider string
	Detail   string
}

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Assistant *assistant.Service
	Metrics   *observability.Metrics
	Voice     VoiceInfo

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := session.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("session store init failed: %w", err)
	}
	// Persistent stores carry sessions across restarts; seed the gauge.
	if n, err := store.Count(ctx); err == nil {
		metrics.ActiveSessions.Set(float64(n))
	}

	completer, err := llm.NewAdapter(llm.Config{
		Mode:         cfg.LLMMode,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
		HTTPURL:      cfg.LLMHTTPURL,
		HTTPAPIKey:   cfg.LLMHTTPKey,
		HTTPModel:    cfg.LLMHTTPModel,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("llm adapter init failed: %w", err)
	}
	completer = countingCompleter{next: completer, metrics: metrics}

	var mail mailcal.Client
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" && cfg.GoogleRefreshToken != "" {
		mail = mailcal.NewGoogle(mailcal.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RefreshToken: cfg.GoogleRefreshToken,
		})
	} else {
		log.Printf("app: google credentials not configured, email agent runs against a mock inbox")
		mail = mailcal.NewMock()
	}
	mail = countingMail{next: mail, metrics: metrics}

	transcriber, synthesizer, voiceInfo := resolveVoiceProviders(cfg)

	svc := assistant.New(
		store,
		router.New(completer, metrics),
		news.New(completer, countingSearch{next: websearch.NewSerper(cfg.SerperAPIKey), metrics: metrics}),
		weather.New(completer, countingWeather{next: weatherapi.NewOpenWeather(cfg.OpenWeatherAPIKey), metrics: metrics}),
		email.New(completer, mail),
		grocery.New(completer, countingProducts{next: products.NewOpenFoodFacts(), metrics: metrics}),
		metrics,
	)

	api := httpapi.New(cfg, svc, transcriber, synthesizer, metrics)

	cleanup := func() error {
		return store.Close()
	}

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Assistant: svc,
		Metrics:   metrics,
		Voice:     voiceInfo,
		Cleanup:   cleanup,
	}, nil
}

// resolveVoiceProviders picks cloud STT/TTS when the keys are present,
// otherwise a local mock so the audio endpoints keep working.
func resolveVoiceProviders(cfg config.Config) (voice.Transcriber, voice.Synthesizer, VoiceInfo) {
	mode := strings.ToLower(strings.TrimSpace(cfg.VoiceProvider))
	haveCloud := cfg.GroqAPIKey != "" && cfg.ElevenLabsAPIKey != ""

	if mode == "cloud" || (mode == "auto" && haveCloud) {
		transcriber := voice.NewWhisperTranscriber(voice.WhisperConfig{
			APIKey:  cfg.GroqAPIKey,
			BaseURL: cfg.GroqSTTBaseURL,
			ModelID: cfg.WhisperModel,
		})
		synthesizer := voice.NewElevenLabsSynthesizer(voice.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsBaseURL,
			VoiceID: cfg.ElevenLabsTTSVoice,
			ModelID: cfg.ElevenLabsTTSModel,
		})
		return transcriber, synthesizer, VoiceInfo{
			Provider: "cloud",
			Detail:   fmt.Sprintf("stt=%s tts=%s", cfg.WhisperModel, cfg.ElevenLabsTTSModel),
		}
	}

	mock := voice.NewMockProvider()
	return mock, mock, VoiceInfo{Provider: "mock", Detail: "no cloud voice credentials"}
}
