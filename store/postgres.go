package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ============================================================================
// POSTGRES STORE — pgx-backed implementation
// ============================================================================

const schemaDDL = `
CREATE TABLE IF NOT EXISTS notebooks (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	filename      TEXT NOT NULL,
	filepath      TEXT NOT NULL,
	health_report JSONB,
	is_public     BOOLEAN NOT NULL DEFAULT FALSE,
	share_token   TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS notebooks_owner_idx ON notebooks (owner_id);
CREATE UNIQUE INDEX IF NOT EXISTS notebooks_token_idx ON notebooks (share_token) WHERE share_token IS NOT NULL;

CREATE TABLE IF NOT EXISTS conversations (
	id          BIGSERIAL PRIMARY KEY,
	notebook_id TEXT NOT NULL REFERENCES notebooks (id),
	user_query  TEXT NOT NULL,
	ai_response TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS conversations_notebook_idx ON conversations (notebook_id, id);
`

// Postgres implements Notebooks and Conversations on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) Create(ctx context.Context, nb *Notebook) error {
	if nb.ID == "" {
		nb.ID = uuid.NewString()
	}
	if nb.CreatedAt.IsZero() {
		nb.CreatedAt = time.Now()
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO notebooks (id, owner_id, filename, filepath, health_report, is_public, share_token, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)`,
		nb.ID, nb.OwnerID, nb.Filename, nb.Filepath, nb.HealthReport, nb.IsPublic, nb.ShareToken, nb.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notebook: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id, ownerID string) (*Notebook, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, owner_id, filename, filepath, health_report, is_public, COALESCE(share_token, ''), created_at
		 FROM notebooks WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return scanNotebook(row)
}

func (p *Postgres) ListByOwner(ctx context.Context, ownerID string) ([]*Notebook, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, owner_id, filename, filepath, health_report, is_public, COALESCE(share_token, ''), created_at
		 FROM notebooks WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list notebooks: %w", err)
	}
	defer rows.Close()

	var out []*Notebook
	for rows.Next() {
		nb, err := scanNotebook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, nb)
	}
	return out, rows.Err()
}

func (p *Postgres) GetByToken(ctx context.Context, token string) (*Notebook, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	row := p.pool.QueryRow(ctx,
		`SELECT id, owner_id, filename, filepath, health_report, is_public, COALESCE(share_token, ''), created_at
		 FROM notebooks WHERE share_token = $1 AND is_public`, token)
	return scanNotebook(row)
}

func (p *Postgres) EnableSharing(ctx context.Context, id, ownerID string) (string, error) {
	token := uuid.NewString()
	// Keep an existing token; only generate on first share.
	row := p.pool.QueryRow(ctx,
		`UPDATE notebooks
		 SET is_public = TRUE, share_token = COALESCE(share_token, $3)
		 WHERE id = $1 AND owner_id = $2
		 RETURNING share_token`, id, ownerID, token)
	var out string
	if err := row.Scan(&out); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("enable sharing: %w", err)
	}
	return out, nil
}

func (p *Postgres) Append(ctx context.Context, notebookID, query, reply string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO conversations (notebook_id, user_query, ai_response) VALUES ($1, $2, $3)`,
		notebookID, query, reply)
	if err != nil {
		return fmt.Errorf("append conversation: %w", err)
	}
	return nil
}

func (p *Postgres) ListByNotebook(ctx context.Context, notebookID string) ([]*Turn, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, notebook_id, user_query, ai_response, created_at
		 FROM conversations WHERE notebook_id = $1 ORDER BY id`, notebookID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*Turn
	for rows.Next() {
		t := &Turn{}
		if err := rows.Scan(&t.ID, &t.NotebookID, &t.UserQuery, &t.AIResponse, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanNotebook(row pgx.Row) (*Notebook, error) {
	nb := &Notebook{}
	err := row.Scan(&nb.ID, &nb.OwnerID, &nb.Filename, &nb.Filepath, &nb.HealthReport, &nb.IsPublic, &nb.ShareToken, &nb.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan notebook: %w", err)
	}
	return nb, nil
}
