// Package store persists conversation transcripts so a conversation can be
// resumed after a restart.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/arixa/arixa/internal/llm"
)

// ErrNotFound is returned by Load for an unknown conversation.
var ErrNotFound = errors.New("conversation not found")

// Store saves and loads conversation histories by conversation id.
type Store interface {
	Save(ctx context.Context, id string, history []llm.Turn) error
	Load(ctx context.Context, id string) ([]llm.Turn, error)
	Delete(ctx context.Context, id string) error
}

// Memory keeps transcripts in process memory.
type Memory struct {
	mu    sync.RWMutex
	convs map[string][]llm.Turn
}

func NewMemory() *Memory {
	return &Memory{convs: make(map[string][]llm.Turn)}
}

func (m *Memory) Save(ctx context.Context, id string, history []llm.Turn) error {
	h := make([]llm.Turn, len(history))
	copy(h, history)
	m.mu.Lock()
	m.convs[id] = h
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(ctx context.Context, id string) ([]llm.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]llm.Turn, len(h))
	copy(out, h)
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.convs, id)
	m.mu.Unlock()
	return nil
}
