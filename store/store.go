package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ============================================================================
// STORE — Notebook and conversation persistence
// ============================================================================
// Two implementations: Memory (tests, one-shot CLI runs) and Postgres.
// Conversations are append-only — no update or delete anywhere.
// ============================================================================

// ErrNotFound is returned when a notebook does not exist or is not owned by
// the requesting user.
var ErrNotFound = errors.New("not found")

// Notebook is one uploaded dataset plus its metadata.
type Notebook struct {
	ID           string          `json:"notebook_id"`
	OwnerID      string          `json:"-"`
	Filename     string          `json:"filename"`
	Filepath     string          `json:"-"`
	HealthReport json.RawMessage `json:"data_health_report,omitempty"`
	IsPublic     bool            `json:"is_public"`
	ShareToken   string          `json:"shareable_token,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Turn is one persisted (query, reply) pair in a notebook's history.
type Turn struct {
	ID         int64     `json:"id"`
	NotebookID string    `json:"notebook_id"`
	UserQuery  string    `json:"user_query"`
	AIResponse string    `json:"ai_response"`
	CreatedAt  time.Time `json:"created_at"`
}

// Notebooks is the notebook store.
type Notebooks interface {
	Create(ctx context.Context, nb *Notebook) error
	// Get resolves a notebook by id, scoped to its owner.
	Get(ctx context.Context, id, ownerID string) (*Notebook, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Notebook, error)
	GetByToken(ctx context.Context, token string) (*Notebook, error)
	// EnableSharing marks the notebook public and returns its share token,
	// generating one on first call. Sharing is enable-only.
	EnableSharing(ctx context.Context, id, ownerID string) (string, error)
}

// Conversations is the append-only conversation store.
type Conversations interface {
	Append(ctx context.Context, notebookID, query, reply string) error
	ListByNotebook(ctx context.Context, notebookID string) ([]*Turn, error)
}
