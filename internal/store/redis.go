package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lox/pokerbench/internal/game"
)

const (
	DefaultKeyPrefix    = "pokerbench:game:"
	DefaultMaxRetries   = 10
	DefaultCompletedTTL = 24 * time.Hour
)

// RedisOptions configures a Redis store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix is prepended to every game id.
	KeyPrefix string
	// CompletedTTL expires finished games. Zero keeps them forever.
	CompletedTTL time.Duration
	// MaxRetries bounds optimistic transaction retries per patch.
	MaxRetries int
}

// Redis stores each game as a JSON string and patches with WATCH/MULTI.
type Redis struct {
	client       *redis.Client
	prefix       string
	completedTTL time.Duration
	maxRetries   int
}

var _ Store = (*Redis)(nil)

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisFromClient(client, opts), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, opts RedisOptions) *Redis {
	r := &Redis{
		client:       client,
		prefix:       opts.KeyPrefix,
		completedTTL: opts.CompletedTTL,
		maxRetries:   opts.MaxRetries,
	}
	if r.prefix == "" {
		r.prefix = DefaultKeyPrefix
	}
	if r.maxRetries <= 0 {
		r.maxRetries = DefaultMaxRetries
	}
	return r
}

func (r *Redis) key(id string) string {
	return r.prefix + id
}

func (r *Redis) ttl(g *game.Game) time.Duration {
	if g.Done() {
		return r.completedTTL
	}
	return 0
}

func (r *Redis) Create(ctx context.Context, g *game.Game) error {
	b, err := encode(g)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.key(g.ID), b, r.ttl(g)).Result()
	if err != nil {
		return fmt.Errorf("redis create %s: %w", g.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrExists, g.ID)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, id string) (*game.Game, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", id, err)
	}
	return decode(id, b)
}

// Patch retries the read-modify-write whenever another writer touches the
// key between WATCH and EXEC.
func (r *Redis) Patch(ctx context.Context, id string, fn PatchFunc) (*game.Game, error) {
	key := r.key(id)
	var out *game.Game

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("redis get %s: %w", id, err)
		}

		g, b, err := apply(id, raw, fn)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, r.ttl(g))
			return nil
		})
		if err != nil {
			return err
		}
		out = g
		return nil
	}

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrConflict, id, r.maxRetries)
}

func (r *Redis) List(ctx context.Context) ([]string, error) {
	var ids []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
