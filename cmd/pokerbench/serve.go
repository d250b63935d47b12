package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lox/pokerbench/internal/config"
	"github.com/lox/pokerbench/internal/decision"
	"github.com/lox/pokerbench/internal/ledger"
	"github.com/lox/pokerbench/internal/server"
	"github.com/lox/pokerbench/internal/store"
)

type ServeCmd struct {
	Addr string `short:"a" help:"Address to bind to (overrides config)"`
	Game string `short:"g" default:"default" help:"Game template used for defaults in POST /games"`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg := g.Config
	logger := g.Logger
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	switch cfg.Store.Backend {
	case "redis":
		r, err := store.NewRedis(ctx, store.RedisOptions{
			Addr:         cfg.Store.RedisAddr,
			DB:           cfg.Store.RedisDB,
			KeyPrefix:    cfg.Store.KeyPrefix,
			CompletedTTL: cfg.CompletedTTL(),
		})
		if err != nil {
			return err
		}
		defer r.Close()
		st = r
	default:
		st = store.NewMemory()
	}

	l, err := ledger.OpenSQLite(cfg.Ledger.Path, cfg.Ledger.StartingBalance)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer l.Close()

	timings, err := cfg.Timings()
	if err != nil {
		return err
	}
	tmpl, ok := cfg.Game(c.Game)
	if !ok {
		return fmt.Errorf("no game template named %q", c.Game)
	}

	hub := server.NewBotHub(logger)
	provider, err := playerProviders(cfg.Players, hub)
	if err != nil {
		return err
	}

	runner := server.NewRunner(server.Options{
		Store:    st,
		Provider: provider,
		Ledger:   l,
		Logger:   logger,
		Timing: server.Timing{
			TurnTimeout:   timings.TurnTimeout,
			RevealDelay:   timings.RevealDelay,
			NextHandDelay: timings.NextHandDelay,
		},
	})
	defer runner.Close()

	srv := server.NewServer(cfg.Server.Address, runner, st, hub, l, tmpl.GameConfig(timings.TurnTimeout), logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// playerProviders routes configured built-in players locally and everyone
// else to the bot hub.
func playerProviders(players []config.PlayerConfig, hub *server.BotHub) (decision.Provider, error) {
	local := make(map[string]decision.Provider)
	for i, p := range players {
		if p.Provider == config.RemoteProvider {
			continue
		}
		provider, err := decision.Builtin(p.Provider, int64(i)+1)
		if err != nil {
			return nil, fmt.Errorf("player %s: %w", p.Name, err)
		}
		local[p.Name] = provider
	}
	return decision.ProviderFunc(func(ctx context.Context, req decision.Request) (decision.Response, error) {
		if p, ok := local[req.PlayerID]; ok {
			return p.Decide(ctx, req)
		}
		return hub.Decide(ctx, req)
	}), nil
}
