package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/llm"
	"github.com/arixa/arixa/internal/protocol"
	"github.com/arixa/arixa/internal/session"
	"github.com/arixa/arixa/internal/store"
)

// Manager keeps one Conversation per session id. Conversations missing from
// memory are restored from the store on first use.
type Manager struct {
	backend    llm.Backend
	catalog    *catalog.Catalog
	invoker    protocol.Invoker
	workingDir string
	store      store.Store
	opts       []Option

	mu    sync.RWMutex
	convs map[string]*Conversation
	sf    singleflight.Group // one store load per id
}

// NewManager creates a manager. st may be nil. opts apply to every
// conversation it creates.
func NewManager(backend llm.Backend, cat *catalog.Catalog, inv protocol.Invoker, workingDir string, st store.Store, opts ...Option) *Manager {
	return &Manager{
		backend:    backend,
		catalog:    cat,
		invoker:    inv,
		workingDir: workingDir,
		store:      st,
		opts:       opts,
		convs:      make(map[string]*Conversation),
	}
}

func (m *Manager) lookup(id string) (*Conversation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.convs[id]
	return c, ok
}

// Get returns the conversation for id, creating it if needed. An empty id
// starts a new conversation under a fresh id.
func (m *Manager) Get(ctx context.Context, id string) (*Conversation, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if c, ok := m.lookup(id); ok {
		return c, nil
	}

	v, err, _ := m.sf.Do(id, func() (interface{}, error) {
		if c, ok := m.lookup(id); ok {
			return c, nil
		}
		var history []llm.Turn
		if m.store != nil {
			h, err := m.store.Load(ctx, id)
			switch {
			case err == nil:
				history = h
			case errors.Is(err, store.ErrNotFound):
			default:
				return nil, fmt.Errorf("restore conversation %s: %w", id, err)
			}
		}

		opts := make([]Option, 0, len(m.opts)+2)
		opts = append(opts, m.opts...)
		opts = append(opts, WithHistory(history))
		if m.store != nil {
			opts = append(opts, WithStore(m.store))
		}
		c := New(m.backend, m.catalog, m.invoker, session.NewWithID(id, m.workingDir), opts...)

		m.mu.Lock()
		m.convs[id] = c
		m.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Conversation), nil
}

// Delete drops the conversation and its saved transcript.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	c, ok := m.convs[id]
	delete(m.convs, id)
	m.mu.Unlock()

	if ok {
		return c.Reset(ctx)
	}
	if m.store != nil {
		return m.store.Delete(ctx, id)
	}
	return nil
}

// Len is the number of conversations held in memory.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.convs)
}

// Backend returns the AI backend shared by all conversations.
func (m *Manager) Backend() llm.Backend {
	return m.backend
}
