package tts

import (
	"fmt"
	"strings"

	"github.com/kolstudio/dibur/internal/script"
)

// Strategy selects how a script becomes provider requests.
type Strategy string

const (
	// StrategyPerSpeaker issues one request per distinct speaker, with that
	// speaker's lines concatenated in original order.
	StrategyPerSpeaker Strategy = "per-speaker"
	// StrategyMultiSpeaker issues one request carrying the whole script plus
	// a speaker→voice table.
	StrategyMultiSpeaker Strategy = "multi-speaker"
)

// DefaultMaxMultiSpeakers bounds the speaker table in multi-speaker mode.
// The provider rejects larger tables.
const DefaultMaxMultiSpeakers = 4

// ErrTooManySpeakers is returned when a script exceeds the multi-speaker
// table bound. Callers fall back to per-speaker batching.
type ErrTooManySpeakers struct {
	Speakers int
	Limit    int
}

func (e *ErrTooManySpeakers) Error() string {
	return fmt.Sprintf("script has %d speakers, multi-speaker synthesis supports at most %d", e.Speakers, e.Limit)
}

// BuilderConfig fixes the request defaults for one pipeline.
type BuilderConfig struct {
	Strategy         Strategy
	SampleRate       int
	MaxMultiSpeakers int
	SpeakingRate     float64
	Pitch            float64
	Style            string
}

// BuiltRequest pairs a provider request with the speaker it voices.
// Speaker is empty for a multi-speaker request.
type BuiltRequest struct {
	Speaker string
	Request Request
}

// BuildRequests turns parsed segments and their voice assignments into
// provider requests under the configured strategy, with caller overrides
// layered on top of the builder defaults.
func BuildRequests(segments []script.Segment, assignments []script.VoiceAssignment, cfg BuilderConfig, ov Overrides) ([]BuiltRequest, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments to build requests from")
	}
	if len(assignments) == 0 {
		return nil, script.ErrNoSpeakers
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	if cfg.MaxMultiSpeakers <= 0 {
		cfg.MaxMultiSpeakers = DefaultMaxMultiSpeakers
	}

	switch cfg.Strategy {
	case StrategyMultiSpeaker:
		return buildMultiSpeaker(segments, assignments, cfg, ov)
	case StrategyPerSpeaker, "":
		return buildPerSpeaker(segments, assignments, cfg, ov)
	default:
		return nil, fmt.Errorf("unknown request strategy %q", cfg.Strategy)
	}
}

func buildPerSpeaker(segments []script.Segment, assignments []script.VoiceAssignment, cfg BuilderConfig, ov Overrides) ([]BuiltRequest, error) {
	requests := make([]BuiltRequest, 0, len(assignments))
	for _, assignment := range assignments {
		var texts []string
		var hints []string
		for _, seg := range segments {
			if strings.TrimSpace(seg.Speaker) != assignment.Speaker {
				continue
			}
			texts = append(texts, seg.Text)
			if seg.StyleHint != "" {
				hints = append(hints, styleHintInstruction(seg.StyleHint, seg.Text))
			}
		}
		if len(texts) == 0 {
			continue
		}

		voice := assignment.Voice
		// A caller-chosen voice replaces the pool only when the script has a
		// single speaker; otherwise the deterministic assignment stands.
		if ov.Voice != "" && len(assignments) == 1 {
			voice = ov.Voice
		}

		requests = append(requests, BuiltRequest{
			Speaker: assignment.Speaker,
			Request: Request{
				Text:         strings.Join(texts, " "),
				Instructions: joinInstructions(cfg, ov, hints),
				Voice:        voice,
				SampleRate:   cfg.SampleRate,
				SpeakingRate: pickFloat(ov.SpeakingRate, cfg.SpeakingRate),
				Pitch:        pickFloat(ov.Pitch, cfg.Pitch),
			},
		})
	}
	if len(requests) == 0 {
		return nil, script.ErrNoSpeakers
	}
	return requests, nil
}

func buildMultiSpeaker(segments []script.Segment, assignments []script.VoiceAssignment, cfg BuilderConfig, ov Overrides) ([]BuiltRequest, error) {
	if len(assignments) > cfg.MaxMultiSpeakers {
		return nil, &ErrTooManySpeakers{Speakers: len(assignments), Limit: cfg.MaxMultiSpeakers}
	}

	voices := make(map[string]string, len(assignments))
	table := make([]SpeakerVoice, 0, len(assignments))
	for _, assignment := range assignments {
		voices[assignment.Speaker] = assignment.Voice
		table = append(table, SpeakerVoice{Speaker: assignment.Speaker, Voice: assignment.Voice})
	}

	var lines []string
	var hints []string
	for _, seg := range segments {
		speaker := strings.TrimSpace(seg.Speaker)
		if _, ok := voices[speaker]; !ok {
			continue
		}
		lines = append(lines, speaker+": "+seg.Text)
		if seg.StyleHint != "" {
			hints = append(hints, styleHintInstruction(seg.StyleHint, seg.Text))
		}
	}
	if len(lines) == 0 {
		return nil, script.ErrNoSpeakers
	}

	return []BuiltRequest{{
		Request: Request{
			Text:          strings.Join(lines, "\n"),
			Instructions:  joinInstructions(cfg, ov, hints),
			SpeakerVoices: table,
			SampleRate:    cfg.SampleRate,
			SpeakingRate:  pickFloat(ov.SpeakingRate, cfg.SpeakingRate),
			Pitch:         pickFloat(ov.Pitch, cfg.Pitch),
		},
	}}, nil
}

// styleHintInstruction turns a parenthetical hint into a natural-language
// delivery note tied to the line it came from. The hint itself never enters
// the spoken text.
func styleHintInstruction(hint, text string) string {
	return fmt.Sprintf("Use a %s tone for the line starting with %q.", hint, snippet(text))
}

func joinInstructions(cfg BuilderConfig, ov Overrides, hints []string) string {
	var parts []string
	style := ov.Style
	if style == "" {
		style = cfg.Style
	}
	if style != "" {
		parts = append(parts, "Narration style: "+style+".")
	}
	parts = append(parts, hints...)
	return strings.Join(parts, " ")
}

func snippet(text string) string {
	words := strings.Fields(text)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}

func pickFloat(override, fallback float64) float64 {
	if override != 0 {
		return override
	}
	return fallback
}
