package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the assistant service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	LLMMode      string
	GeminiAPIKey string
	GeminiModel  string
	LLMHTTPURL   string
	LLMHTTPKey   string
	LLMHTTPModel string

	SerperAPIKey      string
	OpenWeatherAPIKey string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string

	VoiceProvider      string
	GroqAPIKey         string
	GroqSTTBaseURL     string
	WhisperModel       string
	ElevenLabsAPIKey   string
	ElevenLabsBaseURL  string
	ElevenLabsTTSVoice string
	ElevenLabsTTSModel string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "assistant"),
		AllowAnyOrigin:     false,
		LLMMode:            envOrDefault("LLM_MODE", "auto"),
		GeminiAPIKey:       stringsTrimSpace("GEMINI_API_KEY"),
		GeminiModel:        envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		LLMHTTPURL:         stringsTrimSpace("LLM_HTTP_URL"),
		LLMHTTPKey:         stringsTrimSpace("LLM_HTTP_API_KEY"),
		LLMHTTPModel:       envOrDefault("LLM_HTTP_MODEL", "deepseek-chat"),
		SerperAPIKey:       stringsTrimSpace("SERPER_API_KEY"),
		OpenWeatherAPIKey:  stringsTrimSpace("OPENWEATHER_API_KEY"),
		GoogleClientID:     stringsTrimSpace("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: stringsTrimSpace("GOOGLE_CLIENT_SECRET"),
		GoogleRefreshToken: stringsTrimSpace("GOOGLE_REFRESH_TOKEN"),
		VoiceProvider:      envOrDefault("VOICE_PROVIDER", "auto"),
		GroqAPIKey:         stringsTrimSpace("GROQ_API_KEY"),
		GroqSTTBaseURL:     envOrDefault("GROQ_STT_BASE_URL", "https://api.groq.com/openai"),
		WhisperModel:       envOrDefault("WHISPER_MODEL", "whisper-large-v3"),
		ElevenLabsAPIKey:   stringsTrimSpace("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL:  envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		ElevenLabsTTSVoice: envOrDefault("ELEVENLABS_TTS_VOICE_ID", "cgSgspJ2msm6clMCkdW9"),
		ElevenLabsTTSModel: envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_multilingual_v2"),
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:    15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.LLMMode)) {
	case "auto", "gemini", "http", "mock":
	default:
		return Config{}, fmt.Errorf("LLM_MODE parse error: expected auto, gemini, http or mock")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.VoiceProvider)) {
	case "auto", "cloud", "mock":
	default:
		return Config{}, fmt.Errorf("VOICE_PROVIDER parse error: expected auto, cloud or mock")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
