package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/pokerbench/internal/game"
)

func newTestGame(t *testing.T, id string) *game.Game {
	t.Helper()
	g, err := game.NewGame(id, game.Config{BuyIn: 1000, SmallBlind: 5, BigBlind: 10, MaxHands: 10}, []string{"a", "b"}, 1)
	require.NoError(t, err)
	return g
}

type storeFactory func(t *testing.T) Store

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(*testing.T) Store { return NewMemory() },
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisFromClient(client, RedisOptions{KeyPrefix: "test:", CompletedTTL: time.Hour, MaxRetries: 1000})
		},
	}
}

func TestStoreContract(t *testing.T) {
	t.Parallel()

	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := mk(t)

			_, err := s.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)
			_, err = s.Patch(ctx, "missing", func(*game.Game) error { return nil })
			require.ErrorIs(t, err, ErrNotFound)

			g := newTestGame(t, "g1")
			require.NoError(t, s.Create(ctx, g))
			require.ErrorIs(t, s.Create(ctx, g), ErrExists)

			got, err := s.Get(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, g.Seats, got.Seats)
			assert.Equal(t, game.StatusWaiting, got.Status)

			updated, err := s.Patch(ctx, "g1", func(g *game.Game) error { return g.Start() })
			require.NoError(t, err)
			assert.Equal(t, game.StatusActive, updated.Status)

			got, err = s.Get(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, updated.Token(), got.Token())
			assert.Equal(t, updated.Table.Deck, got.Table.Deck)

			ids, err := s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"g1"}, ids)
		})
	}
}

func TestStorePatchErrorWritesNothing(t *testing.T) {
	t.Parallel()

	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := mk(t)
			require.NoError(t, s.Create(ctx, newTestGame(t, "g1")))
			g, err := s.Patch(ctx, "g1", func(g *game.Game) error { return g.Start() })
			require.NoError(t, err)

			stale := g.Token()
			_, err = s.Patch(ctx, "g1", func(g *game.Game) error {
				_, err := g.ApplyAction(g.Token(), game.Call(), game.ActionNote{})
				return err
			})
			require.NoError(t, err)

			boom := errors.New("boom")
			_, err = s.Patch(ctx, "g1", func(g *game.Game) error {
				g.Seats[0].Chips = 0
				return boom
			})
			require.ErrorIs(t, err, boom)

			_, err = s.Patch(ctx, "g1", func(g *game.Game) error {
				_, err := g.ApplyAction(stale, game.RaiseTo(500), game.ActionNote{})
				return err
			})
			require.ErrorIs(t, err, game.ErrStaleToken)

			got, err := s.Get(ctx, "g1")
			require.NoError(t, err)
			require.NoError(t, got.CheckConservation())
			assert.Equal(t, 990, got.Seats[0].Chips)
		})
	}
}

// Concurrent patches on one game must serialize: every increment lands.
func TestStorePatchSerializes(t *testing.T) {
	t.Parallel()

	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := mk(t)
			require.NoError(t, s.Create(ctx, newTestGame(t, "g1")))

			const writers = 8
			const perWriter = 10
			var wg sync.WaitGroup
			errs := make(chan error, writers*perWriter)
			for range writers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range perWriter {
						_, err := s.Patch(ctx, "g1", func(g *game.Game) error {
							g.TurnSequence++
							return nil
						})
						if err != nil {
							errs <- err
						}
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			got, err := s.Get(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, int64(writers*perWriter), got.TurnSequence)
		})
	}
}

func TestRedisCompletedTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := NewRedisFromClient(client, RedisOptions{KeyPrefix: "ttl:", CompletedTTL: time.Minute})

	require.NoError(t, s.Create(ctx, newTestGame(t, "g1")))
	assert.Zero(t, mr.TTL("ttl:g1"), "active games do not expire")

	_, err := s.Patch(ctx, "g1", func(g *game.Game) error {
		if err := g.Start(); err != nil {
			return err
		}
		return g.Cancel()
	})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("ttl:g1"))

	mr.FastForward(2 * time.Minute)
	_, err = s.Get(ctx, "g1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNewRedisPingFailure(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), RedisOptions{Addr: addr})
	require.Error(t, err)
}
