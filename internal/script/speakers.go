package script

import (
	"errors"
	"strings"
)

// ErrNoSpeakers is returned when a script has segments but every bracketed
// name was excluded as a cue marker.
var ErrNoSpeakers = errors.New("script has no speakable speakers")

// DefaultVoicePool is the fixed ordered pool of prebuilt synthesis voices used
// for round-robin assignment.
var DefaultVoicePool = []string{
	"Zephyr",
	"Puck",
	"Kore",
	"Charon",
	"Fenrir",
	"Aoede",
}

// VoiceAssignment binds one distinct speaker to a synthesis voice.
type VoiceAssignment struct {
	Speaker string `json:"speaker"`
	Voice   string `json:"voice"`
}

// Registry deduplicates speakers and assigns voices deterministically.
type Registry struct {
	// Pool is the ordered voice pool. The K-th distinct speaker in
	// first-occurrence order gets Pool[K mod len(Pool)].
	Pool []string
	// CueMarkers re-applies the parser's cue exclusion. Idempotent with the
	// parser filter, kept so a registry fed unparsed segments stays safe.
	CueMarkers []string
}

// NewRegistry returns a registry with the default voice pool and cue markers.
func NewRegistry() *Registry {
	return &Registry{
		Pool:       DefaultVoicePool,
		CueMarkers: DefaultCueMarkers,
	}
}

// Speakers returns the distinct speaker names in first-occurrence order,
// excluding cue pseudo-speakers. Names compare by exact trimmed equality.
func (r *Registry) Speakers(segments []Segment) []string {
	seen := make(map[string]struct{}, len(segments))
	order := make([]string, 0, len(segments))
	for _, seg := range segments {
		name := strings.TrimSpace(seg.Speaker)
		if name == "" || r.isCue(name) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		order = append(order, name)
	}
	return order
}

// Assign maps each distinct speaker to a voice from the pool. The assignment
// is a pure function of speaker order, so re-running the same script always
// yields the same voices.
func (r *Registry) Assign(segments []Segment) ([]VoiceAssignment, error) {
	speakers := r.Speakers(segments)
	if len(speakers) == 0 {
		return nil, ErrNoSpeakers
	}
	pool := r.Pool
	if len(pool) == 0 {
		pool = DefaultVoicePool
	}
	assignments := make([]VoiceAssignment, 0, len(speakers))
	for i, name := range speakers {
		assignments = append(assignments, VoiceAssignment{
			Speaker: name,
			Voice:   pool[i%len(pool)],
		})
	}
	return assignments, nil
}

func (r *Registry) isCue(speaker string) bool {
	for _, marker := range r.CueMarkers {
		if marker == "" {
			continue
		}
		if strings.Contains(speaker, marker) {
			return true
		}
	}
	return false
}
