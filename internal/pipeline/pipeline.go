package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kolstudio/dibur/internal/audio"
	"github.com/kolstudio/dibur/internal/observability"
	"github.com/kolstudio/dibur/internal/script"
	"github.com/kolstudio/dibur/internal/tts"
)

// ErrNoSegments is returned when a script has zero matchable dialogue lines.
// Fatal for the invocation; the caller must not proceed to synthesis.
var ErrNoSegments = errors.New("script contains no speakable dialogue lines")

// FailurePolicy decides what a per-speaker synthesis failure does to the run.
type FailurePolicy string

const (
	// FailFast aborts the whole invocation on the first failed request.
	FailFast FailurePolicy = "fail-fast"
	// BestEffort drops the failing speaker and assembles the rest.
	BestEffort FailurePolicy = "best-effort"
)

// Config fixes one pipeline's behaviour. Every invocation owns its own
// segments, assignments and audio; nothing here mutates per call.
type Config struct {
	Strategy         tts.Strategy
	FailurePolicy    FailurePolicy
	MaxMultiSpeakers int
	SampleRate       int
	// SilenceGap is placed between per-speaker assets in assembled output.
	SilenceGap time.Duration
	// Pacing is the cooperative throttle between consecutive requests in
	// per-speaker mode. Not a correctness requirement.
	Pacing       time.Duration
	SpeakingRate float64
	Pitch        float64
	Style        string
}

// Stage identifies a point in the pipeline for progress reporting.
type Stage string

const (
	StageParsing      Stage = "parsing"
	StageAssigning    Stage = "assigning_voices"
	StageSynthesizing Stage = "synthesizing"
	StageAssembling   Stage = "assembling"
)

// Progress describes one progress event during a run.
type Progress struct {
	Stage   Stage  `json:"stage"`
	Speaker string `json:"speaker,omitempty"`
	Index   int    `json:"index,omitempty"`
	Total   int    `json:"total,omitempty"`
}

// ProgressFunc observes pipeline progress. May be nil.
type ProgressFunc func(Progress)

// Result is the outcome of one successful invocation.
type Result struct {
	ID              string
	Audio           []byte
	MIMEType        string
	Segments        []script.Segment
	Speakers        []script.VoiceAssignment
	SkippedSpeakers []string
	AudioDuration   time.Duration
}

// Pipeline turns raw script text into one assembled WAV asset.
type Pipeline struct {
	synth    tts.Synthesizer
	parser   *script.Parser
	registry *script.Registry
	cfg      Config
	metrics  *observability.Metrics
	sleep    tts.SleepFunc
}

// New builds a pipeline. A nil parser or registry gets the package defaults;
// a nil metrics disables instrumentation.
func New(synth tts.Synthesizer, parser *script.Parser, registry *script.Registry, cfg Config, metrics *observability.Metrics) *Pipeline {
	if parser == nil {
		parser = script.NewParser()
	}
	if registry == nil {
		registry = script.NewRegistry()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultFormat.SampleRate
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = FailFast
	}
	return &Pipeline{
		synth:    synth,
		parser:   parser,
		registry: registry,
		cfg:      cfg,
		metrics:  metrics,
		sleep:    defaultSleep,
	}
}

// SetSleep replaces the pacing sleep implementation. Tests inject a counter.
func (p *Pipeline) SetSleep(sleep tts.SleepFunc) {
	if sleep != nil {
		p.sleep = sleep
	}
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run executes one generation invocation: parse, assign voices, synthesize
// strictly in speaker order, encode and assemble.
func (p *Pipeline) Run(ctx context.Context, scriptText string, ov tts.Overrides, progress ProgressFunc) (Result, error) {
	started := time.Now()
	result, err := p.run(ctx, scriptText, ov, progress)
	if p.metrics != nil {
		p.metrics.ObservePipelineDuration(time.Since(started))
		p.metrics.PipelineRuns.WithLabelValues(outcomeLabel(err)).Inc()
		if err == nil {
			p.metrics.AudioBytesOut.Add(float64(len(result.Audio)))
		}
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, scriptText string, ov tts.Overrides, progress ProgressFunc) (Result, error) {
	emit(progress, Progress{Stage: StageParsing})
	segments := p.parser.Parse(scriptText)
	if len(segments) == 0 {
		return Result{}, ErrNoSegments
	}

	emit(progress, Progress{Stage: StageAssigning})
	assignments, err := p.registry.Assign(segments)
	if err != nil {
		return Result{}, err
	}

	requests, err := p.buildRequests(segments, assignments, ov)
	if err != nil {
		return Result{}, err
	}

	assets := make([][]byte, 0, len(requests))
	var skipped []string
	var lastErr error
	for i, built := range requests {
		emit(progress, Progress{Stage: StageSynthesizing, Speaker: built.Speaker, Index: i + 1, Total: len(requests)})

		wav, err := p.synthesizeOne(ctx, built.Request)
		if err != nil {
			p.countSynthesis(err)
			if p.cfg.FailurePolicy != BestEffort {
				return Result{}, err
			}
			log.Printf("pipeline: skipping speaker %q: %v", built.Speaker, err)
			if p.metrics != nil {
				p.metrics.SkippedSpeakers.Inc()
			}
			skipped = append(skipped, built.Speaker)
			lastErr = err
		} else {
			p.countSynthesis(nil)
			assets = append(assets, wav)
		}

		if p.cfg.Pacing > 0 && i < len(requests)-1 {
			if err := p.sleep(ctx, p.cfg.Pacing); err != nil {
				return Result{}, err
			}
		}
	}
	if len(assets) == 0 {
		return Result{}, fmt.Errorf("all %d synthesis requests failed: %w", len(requests), lastErr)
	}

	emit(progress, Progress{Stage: StageAssembling})
	assembled, err := audio.Assemble(assets, p.cfg.SilenceGap)
	if err != nil {
		return Result{}, err
	}
	if err := audio.ValidateContainer(assembled.Bytes); err != nil {
		return Result{}, err
	}

	return Result{
		ID:              uuid.NewString(),
		Audio:           assembled.Bytes,
		MIMEType:        assembled.MIMEType,
		Segments:        segments,
		Speakers:        assignments,
		SkippedSpeakers: skipped,
		AudioDuration:   payloadDuration(assembled.Bytes),
	}, nil
}

// buildRequests applies the configured strategy, falling back to per-speaker
// batching when a script overflows the multi-speaker table.
func (p *Pipeline) buildRequests(segments []script.Segment, assignments []script.VoiceAssignment, ov tts.Overrides) ([]tts.BuiltRequest, error) {
	cfg := tts.BuilderConfig{
		Strategy:         p.cfg.Strategy,
		SampleRate:       p.cfg.SampleRate,
		MaxMultiSpeakers: p.cfg.MaxMultiSpeakers,
		SpeakingRate:     p.cfg.SpeakingRate,
		Pitch:            p.cfg.Pitch,
		Style:            p.cfg.Style,
	}
	requests, err := tts.BuildRequests(segments, assignments, cfg, ov)
	var tooMany *tts.ErrTooManySpeakers
	if errors.As(err, &tooMany) {
		log.Printf("pipeline: %v, falling back to per-speaker batching", err)
		cfg.Strategy = tts.StrategyPerSpeaker
		requests, err = tts.BuildRequests(segments, assignments, cfg, ov)
	}
	return requests, err
}

// synthesizeOne performs a single request and frames the PCM as WAV, with the
// response's declared format taking precedence over the configured default.
func (p *Pipeline) synthesizeOne(ctx context.Context, req tts.Request) ([]byte, error) {
	out, err := p.synth.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}

	format := audio.Format{
		SampleRate:    out.SampleRate,
		Channels:      out.Channels,
		BitsPerSample: out.BitsPerSample,
	}
	if format.SampleRate <= 0 {
		format.SampleRate = p.cfg.SampleRate
	}
	if format.Channels <= 0 {
		format.Channels = audio.DefaultFormat.Channels
	}
	if format.BitsPerSample <= 0 {
		format.BitsPerSample = audio.DefaultFormat.BitsPerSample
	}

	if err := audio.ValidatePCM(out.PCM, format); err != nil {
		return nil, fmt.Errorf("provider pcm does not match declared format: %w", err)
	}
	return audio.EncodeWAV(out.PCM, format)
}

func (p *Pipeline) countSynthesis(err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.SynthesisRequests.WithLabelValues(synthesisOutcome(err)).Inc()
}

func synthesisOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, tts.ErrEmptyAudio):
		return "empty_audio"
	default:
		var rl *tts.RateLimitError
		if errors.As(err, &rl) {
			return "rate_limited"
		}
		return "transport_error"
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoSegments):
		return "no_segments"
	case errors.Is(err, script.ErrNoSpeakers):
		return "no_speakers"
	default:
		return "error"
	}
}

func emit(progress ProgressFunc, ev Progress) {
	if progress != nil {
		progress(ev)
	}
}

func payloadDuration(wav []byte) time.Duration {
	format, err := audio.ContainerFormat(wav)
	if err != nil || format.ByteRate() <= 0 {
		return 0
	}
	payload := len(wav) - audio.HeaderSize
	return time.Duration(float64(payload) / float64(format.ByteRate()) * float64(time.Second))
}
