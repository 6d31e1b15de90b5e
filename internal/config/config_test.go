package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.SampleRate != 24000 {
		t.Fatalf("SampleRate = %d, want 24000", cfg.SampleRate)
	}
	if cfg.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.RetryBackoff != 47*time.Second {
		t.Fatalf("RetryBackoff = %v, want 47s", cfg.RetryBackoff)
	}
	if cfg.Strategy != "per-speaker" {
		t.Fatalf("Strategy = %q, want per-speaker", cfg.Strategy)
	}
	if cfg.FailurePolicy != "fail-fast" {
		t.Fatalf("FailurePolicy = %q, want fail-fast", cfg.FailurePolicy)
	}
	if cfg.VoicePool != nil {
		t.Fatalf("VoicePool = %v, want nil so defaults apply downstream", cfg.VoicePool)
	}
	if cfg.HistoryLimit != 20 {
		t.Fatalf("HistoryLimit = %d, want 20", cfg.HistoryLimit)
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("TTS_RETRY_BACKOFF", "10s")
	t.Setenv("TTS_FAILURE_POLICY", "best-effort")
	t.Setenv("TTS_VOICE_POOL", "Zephyr, Kore,,Puck")
	t.Setenv("TTS_SILENCE_GAP", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RetryBackoff != 10*time.Second {
		t.Fatalf("RetryBackoff = %v, want 10s", cfg.RetryBackoff)
	}
	if cfg.FailurePolicy != "best-effort" {
		t.Fatalf("FailurePolicy = %q, want best-effort", cfg.FailurePolicy)
	}
	want := []string{"Zephyr", "Kore", "Puck"}
	if len(cfg.VoicePool) != len(want) {
		t.Fatalf("VoicePool = %v, want %v", cfg.VoicePool, want)
	}
	for i := range want {
		if cfg.VoicePool[i] != want[i] {
			t.Fatalf("VoicePool = %v, want %v", cfg.VoicePool, want)
		}
	}
	if cfg.SilenceGap != 250*time.Millisecond {
		t.Fatalf("SilenceGap = %v, want 250ms", cfg.SilenceGap)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"TTS_SAMPLE_RATE", "0"},
		{"TTS_MAX_ATTEMPTS", "-1"},
		{"TTS_RETRY_BACKOFF", "not-a-duration"},
		{"TTS_STRATEGY", "chorus"},
		{"TTS_FAILURE_POLICY", "panic"},
		{"APP_HISTORY_LIMIT", "0"},
		{"APP_ALLOW_ANY_ORIGIN", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q succeeded, want error", tt.key, tt.value)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_HISTORY_LIMIT",
		"GEMINI_API_KEY",
		"GEMINI_BASE_URL",
		"GEMINI_TEXT_MODEL",
		"GEMINI_TTS_MODEL",
		"TTS_SAMPLE_RATE",
		"TTS_MAX_ATTEMPTS",
		"TTS_RETRY_BACKOFF",
		"TTS_REQUEST_PACING",
		"TTS_STRATEGY",
		"TTS_MAX_MULTI_SPEAKERS",
		"TTS_FAILURE_POLICY",
		"TTS_VOICE_POOL",
		"TTS_SILENCE_GAP",
		"TTS_SPEAKING_RATE",
		"TTS_PITCH",
		"SCRIPT_CUE_MARKERS",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
