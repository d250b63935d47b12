// Package store persists game records with atomic read-modify-write.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lox/pokerbench/internal/game"
)

var (
	ErrNotFound = errors.New("game not found")
	ErrExists   = errors.New("game already exists")
	// ErrConflict means a patch kept losing optimistic races and gave up.
	ErrConflict = errors.New("concurrent update conflict")
)

// PatchFunc mutates a loaded game. Returning an error aborts the patch
// without writing, and the error is passed back to the caller unchanged.
type PatchFunc func(g *game.Game) error

// Store is the persistence boundary for games. Implementations must make
// Patch atomic with respect to other Patch calls on the same id.
type Store interface {
	Create(ctx context.Context, g *game.Game) error
	Get(ctx context.Context, id string) (*game.Game, error)
	Patch(ctx context.Context, id string, fn PatchFunc) (*game.Game, error)
	List(ctx context.Context) ([]string, error)
}

func encode(g *game.Game) ([]byte, error) {
	b, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode game %s: %w", g.ID, err)
	}
	return b, nil
}

func decode(id string, b []byte) (*game.Game, error) {
	var g game.Game
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", id, err)
	}
	return &g, nil
}

// apply runs fn on a fresh copy decoded from raw and re-encodes the result.
func apply(id string, raw []byte, fn PatchFunc) (*game.Game, []byte, error) {
	g, err := decode(id, raw)
	if err != nil {
		return nil, nil, err
	}
	if err := fn(g); err != nil {
		return nil, nil, err
	}
	g.UpdatedAt = time.Now().UTC()
	b, err := encode(g)
	if err != nil {
		return nil, nil, err
	}
	return g, b, nil
}
