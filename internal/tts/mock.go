package tts

import (
	"context"
)

// MockSynthesizer produces deterministic silence-shaped PCM without touching
// the network. Used when no provider key is configured and in tests.
type MockSynthesizer struct {
	// FramesPerRune scales output length with input text. Defaults to 240
	// frames (10 ms at 24 kHz) per rune.
	FramesPerRune int
}

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{FramesPerRune: 240}
}

func (m *MockSynthesizer) Synthesize(_ context.Context, req Request) (Audio, error) {
	framesPerRune := m.FramesPerRune
	if framesPerRune <= 0 {
		framesPerRune = 240
	}
	sampleRate := req.SampleRate
	if sampleRate <= 0 {
		sampleRate = 24000
	}

	runes := len([]rune(req.Text))
	if runes == 0 {
		runes = 1
	}
	pcm := make([]byte, runes*framesPerRune*2)
	return Audio{PCM: pcm, SampleRate: sampleRate, Channels: 1, BitsPerSample: 16}, nil
}
