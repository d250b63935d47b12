package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/pokerbench/internal/config"
	"github.com/lox/pokerbench/internal/decision"
	"github.com/lox/pokerbench/internal/fileutil"
	"github.com/lox/pokerbench/internal/game"
	"github.com/lox/pokerbench/internal/ledger"
	"github.com/lox/pokerbench/internal/phh"
	"github.com/lox/pokerbench/internal/randutil"
	"github.com/lox/pokerbench/internal/server"
	"github.com/lox/pokerbench/internal/store"
)

var defaultLineup = []string{"station=calling-station", "random=random", "maniac=aggressive"}

type RunCmd struct {
	Games    int      `short:"n" default:"1" help:"Number of games to play concurrently"`
	Game     string   `short:"g" default:"default" help:"Game template from the config file"`
	Players  []string `short:"p" placeholder:"NAME=PROVIDER" help:"Players as name=provider pairs (overrides config)"`
	Seed     int64    `help:"Base seed; game i uses seed+i. Zero picks random seeds"`
	Hands    int      `help:"Override max hands per game"`
	Paced    bool     `help:"Keep the configured reveal and next-hand pauses"`
	Ledger   bool     `help:"Record results in the configured SQLite ledger"`
	NoColor  bool     `help:"Disable colour output"`
	Parallel int      `default:"8" help:"Maximum games in flight"`
	History  string   `type:"path" placeholder:"DIR" help:"Write every hand as PHH to DIR/<game>/<hand>.phh"`
	Out      string   `type:"path" placeholder:"FILE" help:"Write per-game results as JSON"`
}

// gameResult is one entry of the --out file.
type gameResult struct {
	ID         string                 `json:"id"`
	Seed       int64                  `json:"seed"`
	Status     game.Status            `json:"status"`
	Hands      int                    `json:"hands"`
	Settlement []game.SettlementEntry `json:"settlement"`
}

func gameResults(games []*game.Game) []gameResult {
	out := make([]gameResult, 0, len(games))
	for _, g := range games {
		out = append(out, gameResult{
			ID:         g.ID,
			Seed:       g.Seed,
			Status:     g.Status,
			Hands:      g.CurrentHandNumber,
			Settlement: g.Settlement(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seed < out[j].Seed })
	return out
}

// historyWriter returns a hand callback saving each finished hand as PHH.
func historyWriter(dir string, logger *log.Logger) func(*game.Game) {
	return func(g *game.Game) {
		h, err := phh.FromHand(g, g.LastHand, phh.Options{At: g.UpdatedAt})
		if err != nil {
			logger.Warn("Skipping hand history", "game", g.ID, "hand", g.CurrentHandNumber, "error", err)
			return
		}
		data, err := phh.EncodeToBytes(h)
		if err != nil {
			logger.Warn("Encoding hand history failed", "game", g.ID, "hand", g.CurrentHandNumber, "error", err)
			return
		}
		path := filepath.Join(dir, g.ID, fmt.Sprintf("%04d.phh", g.LastHand.HandNumber))
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			logger.Warn("Writing hand history failed", "path", path, "error", err)
		}
	}
}

func (c *RunCmd) lineup(cfg *config.Config) ([]config.PlayerConfig, error) {
	pairs := c.Players
	if len(pairs) == 0 && len(cfg.Players) > 0 {
		return cfg.Players, nil
	}
	if len(pairs) == 0 {
		pairs = defaultLineup
	}
	players := make([]config.PlayerConfig, 0, len(pairs))
	for _, p := range pairs {
		name, provider, ok := strings.Cut(p, "=")
		if !ok || name == "" || provider == "" {
			return nil, fmt.Errorf("invalid player %q, want name=provider", p)
		}
		players = append(players, config.PlayerConfig{Name: name, Provider: provider})
	}
	return players, nil
}

func (c *RunCmd) Run(g *Globals) error {
	cfg := g.Config
	players, err := c.lineup(cfg)
	if err != nil {
		return err
	}
	check := *cfg
	check.Players = players
	if err := check.Validate(); err != nil {
		return err
	}
	for _, p := range players {
		if p.Provider == config.RemoteProvider {
			return fmt.Errorf("player %s: remote players need the serve command", p.Name)
		}
	}

	tmpl, ok := cfg.Game(c.Game)
	if !ok {
		return fmt.Errorf("no game template named %q", c.Game)
	}
	timings, err := cfg.Timings()
	if err != nil {
		return err
	}
	gameCfg := tmpl.GameConfig(timings.TurnTimeout)
	if c.Hands > 0 {
		gameCfg.MaxHands = c.Hands
	}
	timing := server.Timing{TurnTimeout: timings.TurnTimeout}
	if c.Paced {
		timing.RevealDelay = timings.RevealDelay
		timing.NextHandDelay = timings.NextHandDelay
	}

	baseSeed := c.Seed
	if baseSeed == 0 {
		baseSeed = randutil.Seed()
	}
	router := decision.NewRouter()
	names := make([]string, len(players))
	for i, p := range players {
		provider, err := decision.Builtin(p.Provider, baseSeed+int64(i)+1)
		if err != nil {
			return fmt.Errorf("player %s: %w", p.Name, err)
		}
		router.Register(p.Name, provider)
		names[i] = p.Name
	}

	opts := server.Options{
		Store:    store.NewMemory(),
		Provider: router,
		Logger:   g.Logger,
		Timing:   timing,
	}
	if c.History != "" {
		opts.OnHand = historyWriter(c.History, g.Logger)
	}
	if c.Ledger {
		l, err := ledger.OpenSQLite(cfg.Ledger.Path, cfg.Ledger.StartingBalance)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer l.Close()
		opts.Ledger = l
	}
	runner := server.NewRunner(opts)
	defer runner.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	var (
		mu      sync.Mutex
		results []*game.Game
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(c.Parallel, 1))
	for i := 0; i < max(c.Games, 1); i++ {
		seed := baseSeed + int64(i)
		eg.Go(func() error {
			created, err := runner.Play(egCtx, server.GameSpec{Players: names, Config: gameCfg, Seed: seed})
			if err != nil {
				return err
			}
			final, err := runner.Wait(egCtx, created.ID)
			if err != nil {
				return fmt.Errorf("game %s: %w", created.ID, err)
			}
			mu.Lock()
			results = append(results, final)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	if c.Out != "" {
		if err := fileutil.WriteJSON(c.Out, gameResults(results)); err != nil {
			return err
		}
	}
	g.Logger.Info("Run complete", "games", len(results), "seed", baseSeed, "elapsed", time.Since(started).Round(time.Millisecond))
	fmt.Println(renderSettlement(summarise(results), !c.NoColor))
	return nil
}
