package tts

import (
	"context"
	"errors"
	"fmt"
)

// Audio is raw decoded provider output before container framing.
type Audio struct {
	PCM           []byte
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// SpeakerVoice is one row of a multi-speaker voice table.
type SpeakerVoice struct {
	Speaker string `json:"speaker"`
	Voice   string `json:"voice"`
}

// Request is a single synthesis request. Exactly one of Voice or
// SpeakerVoices is set: a single prebuilt voice, or a speaker→voice table for
// native multi-speaker synthesis.
type Request struct {
	// Text is what gets spoken.
	Text string
	// Instructions carry delivery guidance (style hints, narration style) to
	// the provider out-of-band. They must never be spoken literally.
	Instructions  string
	Voice         string
	SpeakerVoices []SpeakerVoice
	SampleRate    int
	SpeakingRate  float64
	Pitch         float64
}

// Synthesizer turns one request into raw PCM audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Audio, error)
}

// Overrides are optional caller settings layered onto the builder defaults.
// Zero values mean "use the default".
type Overrides struct {
	Voice        string  `json:"voice,omitempty"`
	SpeakingRate float64 `json:"speaking_rate,omitempty"`
	Pitch        float64 `json:"pitch,omitempty"`
	Style        string  `json:"style,omitempty"`
}

// ErrEmptyAudio is returned when the provider responds successfully but the
// audio payload field is missing or zero-length. Not a valid silent result.
var ErrEmptyAudio = errors.New("synthesis response carried no audio payload")

// RateLimitError is a quota-exceeded provider response. It is the only error
// class the transport retries.
type RateLimitError struct {
	StatusCode int
	Message    string
	// Attempts is filled in by the retrying transport once the budget is
	// exhausted.
	Attempts int
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("speech provider rate limited (HTTP %d)", e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf("; quota exhausted after %d attempts, wait for the quota window to reset and try again", e.Attempts)
	}
	return msg
}

// TransportError is any other non-success provider response. Never retried.
type TransportError struct {
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("speech provider error (HTTP %d): %s", e.StatusCode, e.Message)
}
