package script

import (
	"regexp"
	"strings"
)

// Segment is one speakable dialogue unit parsed from a script line.
type Segment struct {
	Speaker   string `json:"speaker"`
	StyleHint string `json:"style_hint,omitempty"`
	Text      string `json:"text"`
}

// LineKind classifies a script line.
type LineKind int

const (
	// LineDialogue is a well-formed speakable line.
	LineDialogue LineKind = iota
	// LineIgnored is anything that is not a dialogue line: blank lines,
	// narration, and sound/music cues.
	LineIgnored
	// LineMalformed matched the dialogue shape but must not be spoken as-is
	// (empty text, or an unconsumed parenthetical left in the dialogue).
	LineMalformed
)

// DefaultCueMarkers mark bracketed pseudo-speakers that denote sound or music
// cues rather than voices. Scripts come back from the model in Hebrew, but
// English cue labels show up often enough to filter both.
var DefaultCueMarkers = []string{
	"צליל",
	"מוזיקה",
	"סאונד",
	"אפקט",
	"Sound",
	"Music",
	"SFX",
}

// dialogueLine matches `[Speaker]: (hint) text` and `[Speaker]: text`.
var dialogueLine = regexp.MustCompile(`^\s*\[([^\[\]]+)\]:\s*(?:\(([^()]*)\)\s*)?(.*)$`)

var unconsumedHint = regexp.MustCompile(`\([^()]*\)`)

// Parser extracts dialogue segments from raw script text.
type Parser struct {
	// CueMarkers excludes bracketed names containing any of these substrings.
	CueMarkers []string
	// RejectUnconsumedHints drops lines whose dialogue still carries a
	// parenthetical after the style hint was consumed.
	RejectUnconsumedHints bool
}

// NewParser returns a parser with the default cue markers and strict
// parenthetical handling.
func NewParser() *Parser {
	return &Parser{
		CueMarkers:            DefaultCueMarkers,
		RejectUnconsumedHints: true,
	}
}

// Parse splits text into lines and returns the dialogue segments in input
// order. A script with no matching lines yields an empty slice; the caller
// decides whether that is fatal.
func (p *Parser) Parse(text string) []Segment {
	lines := strings.Split(text, "\n")
	segments := make([]Segment, 0, len(lines))
	for _, line := range lines {
		seg, kind := p.ClassifyLine(line)
		if kind == LineDialogue {
			segments = append(segments, seg)
		}
	}
	return segments
}

// ClassifyLine evaluates a single line. The returned Segment is only valid
// when the kind is LineDialogue.
func (p *Parser) ClassifyLine(line string) (Segment, LineKind) {
	m := dialogueLine.FindStringSubmatch(line)
	if m == nil {
		return Segment{}, LineIgnored
	}

	speaker := strings.TrimSpace(m[1])
	if speaker == "" || p.isCue(speaker) {
		return Segment{}, LineIgnored
	}

	text := strings.TrimSpace(m[3])
	if text == "" {
		return Segment{}, LineMalformed
	}
	if p.RejectUnconsumedHints && unconsumedHint.MatchString(text) {
		return Segment{}, LineMalformed
	}

	return Segment{
		Speaker:   speaker,
		StyleHint: strings.TrimSpace(m[2]),
		Text:      text,
	}, LineDialogue
}

func (p *Parser) isCue(speaker string) bool {
	for _, marker := range p.CueMarkers {
		if marker == "" {
			continue
		}
		if strings.Contains(speaker, marker) {
			return true
		}
	}
	return false
}
