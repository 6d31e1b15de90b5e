package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists dialogue history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dialogues (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL DEFAULT '',
			script TEXT NOT NULL,
			speaker_count INTEGER NOT NULL,
			audio_bytes BIGINT NOT NULL,
			audio_duration_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_dialogues_created ON dialogues (created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, record DialogueRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO dialogues (id, topic, script, speaker_count, audio_bytes, audio_duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID,
		record.Topic,
		record.Script,
		record.SpeakerCount,
		record.AudioBytes,
		record.AudioDuration.Milliseconds(),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save dialogue: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]DialogueRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, topic, script, speaker_count, audio_bytes, audio_duration_ms, created_at
		 FROM dialogues ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent dialogues: %w", err)
	}
	defer rows.Close()

	items := make([]DialogueRecord, 0, limit)
	for rows.Next() {
		var r DialogueRecord
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.Topic, &r.Script, &r.SpeakerCount, &r.AudioBytes, &durationMS, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dialogue row: %w", err)
		}
		r.AudioDuration = time.Duration(durationMS) * time.Millisecond
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dialogue rows: %w", err)
	}

	return items, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dialogues WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete dialogue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM dialogues`); err != nil {
		return fmt.Errorf("clear dialogues: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
