package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lox/pokerbench/internal/game"
)

// Memory keeps encoded games in a map. Games are stored encoded so callers
// never share pointers with the store.
type Memory struct {
	mu    sync.Mutex
	games map[string][]byte
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{games: make(map[string][]byte)}
}

func (m *Memory) Create(_ context.Context, g *game.Game) error {
	b, err := encode(g)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, g.ID)
	}
	m.games[g.ID] = b
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*game.Game, error) {
	m.mu.Lock()
	b, ok := m.games[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return decode(id, b)
}

func (m *Memory) Patch(_ context.Context, id string, fn PatchFunc) (*game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	g, b, err := apply(id, raw, fn)
	if err != nil {
		return nil, err
	}
	m.games[id] = b
	return g, nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.games))
	for id := range m.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
