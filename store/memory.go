package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// MEMORY STORE — In-process implementation
// ============================================================================

// Memory implements Notebooks and Conversations in process memory.
type Memory struct {
	mu        sync.RWMutex
	notebooks map[string]*Notebook
	turns     map[string][]*Turn
	nextTurn  int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		notebooks: make(map[string]*Notebook),
		turns:     make(map[string][]*Turn),
	}
}

func (m *Memory) Create(_ context.Context, nb *Notebook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if nb.ID == "" {
		nb.ID = uuid.NewString()
	}
	if nb.CreatedAt.IsZero() {
		nb.CreatedAt = time.Now()
	}
	cp := *nb
	m.notebooks[nb.ID] = &cp
	return nil
}

func (m *Memory) Get(_ context.Context, id, ownerID string) (*Notebook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nb, ok := m.notebooks[id]
	if !ok || nb.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	cp := *nb
	return &cp, nil
}

func (m *Memory) ListByOwner(_ context.Context, ownerID string) ([]*Notebook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Notebook
	for _, nb := range m.notebooks {
		if nb.OwnerID == ownerID {
			cp := *nb
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) GetByToken(_ context.Context, token string) (*Notebook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if token == "" {
		return nil, ErrNotFound
	}
	for _, nb := range m.notebooks {
		if nb.IsPublic && nb.ShareToken == token {
			cp := *nb
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) EnableSharing(_ context.Context, id, ownerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	nb, ok := m.notebooks[id]
	if !ok || nb.OwnerID != ownerID {
		return "", ErrNotFound
	}
	if nb.ShareToken == "" {
		nb.ShareToken = uuid.NewString()
	}
	nb.IsPublic = true
	return nb.ShareToken, nil
}

func (m *Memory) Append(_ context.Context, notebookID, query, reply string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTurn++
	m.turns[notebookID] = append(m.turns[notebookID], &Turn{
		ID:         m.nextTurn,
		NotebookID: notebookID,
		UserQuery:  query,
		AIResponse: reply,
		CreatedAt:  time.Now(),
	})
	return nil
}

func (m *Memory) ListByNotebook(_ context.Context, notebookID string) ([]*Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns := m.turns[notebookID]
	out := make([]*Turn, len(turns))
	for i, t := range turns {
		cp := *t
		out[i] = &cp
	}
	return out, nil
}
