package tts

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedSynth struct {
	results []error
	calls   int
	audio   Audio
}

func (s *scriptedSynth) Synthesize(_ context.Context, _ Request) (Audio, error) {
	idx := s.calls
	s.calls++
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	if err := s.results[idx]; err != nil {
		return Audio{}, err
	}
	return s.audio, nil
}

func countingSleep(waits *int) SleepFunc {
	return func(_ context.Context, _ time.Duration) error {
		*waits++
		return nil
	}
}

func TestRetryingSucceedsAfterRateLimits(t *testing.T) {
	synth := &scriptedSynth{
		results: []error{
			&RateLimitError{StatusCode: 429},
			&RateLimitError{StatusCode: 429},
			nil,
		},
		audio: Audio{PCM: []byte{1, 2}, SampleRate: 24000, Channels: 1, BitsPerSample: 16},
	}
	waits := 0
	r := NewRetrying(synth, RetryConfig{MaxAttempts: 3, Backoff: time.Second, Sleep: countingSleep(&waits)})

	audio, err := r.Synthesize(context.Background(), Request{Text: "hi"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(audio.PCM) != 2 {
		t.Fatalf("audio.PCM = %d bytes, want 2", len(audio.PCM))
	}
	if synth.calls != 3 {
		t.Fatalf("calls = %d, want 3", synth.calls)
	}
	if waits != 2 {
		t.Fatalf("backoff waits = %d, want 2", waits)
	}
}

func TestRetryingFailsImmediatelyOnTransportError(t *testing.T) {
	synth := &scriptedSynth{
		results: []error{&TransportError{StatusCode: 500, Message: "boom"}},
	}
	waits := 0
	r := NewRetrying(synth, RetryConfig{MaxAttempts: 3, Backoff: time.Second, Sleep: countingSleep(&waits)})

	_, err := r.Synthesize(context.Background(), Request{Text: "hi"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if synth.calls != 1 {
		t.Fatalf("calls = %d, want 1", synth.calls)
	}
	if waits != 0 {
		t.Fatalf("backoff waits = %d, want 0", waits)
	}
}

func TestRetryingExhaustsBudget(t *testing.T) {
	synth := &scriptedSynth{
		results: []error{&RateLimitError{StatusCode: 429, Message: "quota"}},
	}
	waits := 0
	retried := 0
	r := NewRetrying(synth, RetryConfig{
		MaxAttempts: 3,
		Backoff:     time.Second,
		Sleep:       countingSleep(&waits),
		OnRetry:     func(int) { retried++ },
	})

	_, err := r.Synthesize(context.Background(), Request{Text: "hi"})
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %v, want *RateLimitError", err)
	}
	if rl.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", rl.Attempts)
	}
	if synth.calls != 3 {
		t.Fatalf("calls = %d, want 3", synth.calls)
	}
	if waits != 2 || retried != 2 {
		t.Fatalf("waits = %d, retried = %d, want 2 and 2", waits, retried)
	}
}

func TestRetryingDoesNotRetryEmptyAudio(t *testing.T) {
	synth := &scriptedSynth{results: []error{ErrEmptyAudio}}
	waits := 0
	r := NewRetrying(synth, RetryConfig{MaxAttempts: 3, Sleep: countingSleep(&waits)})

	_, err := r.Synthesize(context.Background(), Request{Text: "hi"})
	if !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("error = %v, want ErrEmptyAudio", err)
	}
	if waits != 0 {
		t.Fatalf("backoff waits = %d, want 0", waits)
	}
}

func TestRetryingStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	synth := &scriptedSynth{results: []error{&RateLimitError{StatusCode: 429}}}
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetrying(synth, RetryConfig{
		MaxAttempts: 3,
		Backoff:     time.Second,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})

	_, err := r.Synthesize(ctx, Request{Text: "hi"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if synth.calls != 1 {
		t.Fatalf("calls = %d, want 1", synth.calls)
	}
}
