package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("history: record not found")

// DialogueRecord stores one generated dialogue and metadata about its audio.
// The audio itself is not persisted, only its shape.
type DialogueRecord struct {
	ID            string        `json:"id"`
	Topic         string        `json:"topic,omitempty"`
	Script        string        `json:"script"`
	SpeakerCount  int           `json:"speaker_count"`
	AudioBytes    int           `json:"audio_bytes"`
	AudioDuration time.Duration `json:"audio_duration"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Store persists and retrieves generated dialogues.
type Store interface {
	Save(ctx context.Context, record DialogueRecord) error
	Recent(ctx context.Context, limit int) ([]DialogueRecord, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Close() error
}
