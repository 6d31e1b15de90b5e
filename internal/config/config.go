package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the dialogue speech service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	GeminiAPIKey    string
	GeminiBaseURL   string
	GeminiTextModel string
	GeminiTTSModel  string

	SampleRate       int
	MaxAttempts      int
	RetryBackoff     time.Duration
	RequestPacing    time.Duration
	Strategy         string
	MaxMultiSpeakers int
	FailurePolicy    string
	VoicePool        []string
	SilenceGap       time.Duration
	SpeakingRate     float64
	Pitch            float64

	CueMarkers []string

	HistoryLimit int
	DatabaseURL  string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "dibur"),
		AllowAnyOrigin:   false,
		GeminiAPIKey:     stringsTrimSpace("GEMINI_API_KEY"),
		GeminiBaseURL:    envOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiTextModel:  envOrDefault("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiTTSModel:   envOrDefault("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		// 24 kHz mono 16-bit is the provider's linear-PCM output format.
		SampleRate:       24000,
		MaxAttempts:      3,
		RetryBackoff:     47 * time.Second,
		RequestPacing:    time.Second,
		Strategy:         envOrDefault("TTS_STRATEGY", "per-speaker"),
		MaxMultiSpeakers: 4,
		FailurePolicy:    envOrDefault("TTS_FAILURE_POLICY", "fail-fast"),
		SpeakingRate:     1.0,
		Pitch:            0,
		HistoryLimit:     20,
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:  15 * time.Second,
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
	cfg.SampleRate, err = intFromEnv("TTS_SAMPLE_RATE", cfg.SampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxAttempts, err = intFromEnv("TTS_MAX_ATTEMPTS", cfg.MaxAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.RetryBackoff, err = durationFromEnv("TTS_RETRY_BACKOFF", cfg.RetryBackoff)
	if err != nil {
		return Config{}, err
	}
	cfg.RequestPacing, err = durationFromEnv("TTS_REQUEST_PACING", cfg.RequestPacing)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxMultiSpeakers, err = intFromEnv("TTS_MAX_MULTI_SPEAKERS", cfg.MaxMultiSpeakers)
	if err != nil {
		return Config{}, err
	}
	cfg.SilenceGap, err = durationFromEnv("TTS_SILENCE_GAP", cfg.SilenceGap)
	if err != nil {
		return Config{}, err
	}
	cfg.SpeakingRate, err = floatFromEnv("TTS_SPEAKING_RATE", cfg.SpeakingRate)
	if err != nil {
		return Config{}, err
	}
	cfg.Pitch, err = floatFromEnv("TTS_PITCH", cfg.Pitch)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryLimit, err = intFromEnv("APP_HISTORY_LIMIT", cfg.HistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.VoicePool = listFromEnv("TTS_VOICE_POOL")
	cfg.CueMarkers = listFromEnv("SCRIPT_CUE_MARKERS")

	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("TTS_SAMPLE_RATE must be positive")
	}
	if cfg.MaxAttempts <= 0 {
		return Config{}, fmt.Errorf("TTS_MAX_ATTEMPTS must be positive")
	}
	if cfg.RetryBackoff < 0 {
		return Config{}, fmt.Errorf("TTS_RETRY_BACKOFF must be >= 0")
	}
	if cfg.MaxMultiSpeakers <= 0 {
		return Config{}, fmt.Errorf("TTS_MAX_MULTI_SPEAKERS must be positive")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("APP_HISTORY_LIMIT must be positive")
	}
	switch cfg.Strategy {
	case "per-speaker", "multi-speaker":
	default:
		return Config{}, fmt.Errorf("TTS_STRATEGY must be per-speaker or multi-speaker")
	}
	switch cfg.FailurePolicy {
	case "fail-fast", "best-effort":
	default:
		return Config{}, fmt.Errorf("TTS_FAILURE_POLICY must be fail-fast or best-effort")
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

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
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

// listFromEnv splits a comma-separated value, dropping empty entries. An unset
// key returns nil so callers can fall back to package defaults.
func listFromEnv(key string) []string {
	v := stringsTrimSpace(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
