package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/kolstudio/dibur/internal/config"
	"github.com/kolstudio/dibur/internal/history"
	"github.com/kolstudio/dibur/internal/httpapi"
	"github.com/kolstudio/dibur/internal/observability"
	"github.com/kolstudio/dibur/internal/pipeline"
	"github.com/kolstudio/dibur/internal/script"
	"github.com/kolstudio/dibur/internal/textgen"
	"github.com/kolstudio/dibur/internal/tts"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Pipeline *pipeline.Pipeline
	Metrics  *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := history.NewStore(ctx, cfg.DatabaseURL, cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("history store init failed: %w", err)
	}

	var synth tts.Synthesizer
	var generator textgen.Generator
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		synth = tts.NewGemini(tts.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiTTSModel,
		})
		generator = textgen.NewGemini(textgen.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiTextModel,
		})
		log.Printf("speech provider: gemini (%s)", cfg.GeminiTTSModel)
	} else {
		synth = &tts.MockSynthesizer{}
		log.Printf("speech provider: mock (GEMINI_API_KEY not set)")
	}

	retrying := tts.NewRetrying(synth, tts.RetryConfig{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.RetryBackoff,
		OnRetry: func(int) {
			metrics.RateLimitRetries.Inc()
		},
	})

	parser := script.NewParser()
	if len(cfg.CueMarkers) > 0 {
		parser.CueMarkers = cfg.CueMarkers
	}
	registry := script.NewRegistry()
	registry.CueMarkers = parser.CueMarkers
	if len(cfg.VoicePool) > 0 {
		registry.Pool = cfg.VoicePool
	}

	p := pipeline.New(retrying, parser, registry, pipeline.Config{
		Strategy:         tts.Strategy(cfg.Strategy),
		FailurePolicy:    pipeline.FailurePolicy(cfg.FailurePolicy),
		MaxMultiSpeakers: cfg.MaxMultiSpeakers,
		SampleRate:       cfg.SampleRate,
		SilenceGap:       cfg.SilenceGap,
		Pacing:           cfg.RequestPacing,
		SpeakingRate:     cfg.SpeakingRate,
		Pitch:            cfg.Pitch,
	}, metrics)

	api := httpapi.New(cfg, p, generator, store, metrics)

	cleanup := func() error {
		return store.Close()
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Pipeline: p,
		Metrics:  metrics,
		Cleanup:  cleanup,
	}, nil
}
