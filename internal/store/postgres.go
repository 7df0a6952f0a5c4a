package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/arixa/arixa/internal/llm"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id         TEXT PRIMARY KEY,
    history    JSONB NOT NULL,
    turns      INTEGER NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres stores each transcript as one JSONB row.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres connects to connStr and creates the conversations table if
// it does not exist.
func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create conversations table: %w", err)
	}
	log.Info().Msg("postgres transcript store ready")
	return &Postgres{db: db}, nil
}

func (p *Postgres) Save(ctx context.Context, id string, history []llm.Turn) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	_, err = p.db.Exec(ctx, `
        INSERT INTO conversations (id, history, turns, updated_at)
        VALUES ($1, $2::jsonb, $3, now())
        ON CONFLICT (id) DO UPDATE
        SET history = EXCLUDED.history, turns = EXCLUDED.turns, updated_at = now()
    `, id, string(raw), len(history))
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, id string) ([]llm.Turn, error) {
	var raw string
	err := p.db.QueryRow(ctx, `SELECT history::text FROM conversations WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}
	var history []llm.Turn
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return history, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.db.Close()
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}
