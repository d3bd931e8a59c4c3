package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Fatalf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.LLMMode != "auto" || cfg.VoiceProvider != "auto" {
		t.Fatalf("modes = %q %q", cfg.LLMMode, cfg.VoiceProvider)
	}
	if cfg.WhisperModel != "whisper-large-v3" {
		t.Fatalf("WhisperModel = %q", cfg.WhisperModel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_BIND_ADDR", "127.0.0.1:9999")
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "true")
	t.Setenv("LLM_MODE", "mock")
	t.Setenv("GEMINI_API_KEY", "  key-with-space  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BindAddr != "127.0.0.1:9999" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatal("AllowAnyOrigin should be true")
	}
	if cfg.GeminiAPIKey != "key-with-space" {
		t.Fatalf("GeminiAPIKey = %q", cfg.GeminiAPIKey)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected duration parse error")
	}

	t.Setenv("APP_SHUTDOWN_TIMEOUT", "")
	t.Setenv("LLM_MODE", "psychic")
	if _, err := Load(); err == nil {
		t.Fatal("expected LLM_MODE error")
	}

	t.Setenv("LLM_MODE", "auto")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "maybe")
	if _, err := Load(); err == nil {
		t.Fatal("expected bool parse error")
	}
}
