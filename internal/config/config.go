// Package config loads pokerbench settings from an HCL file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/pokerbench/internal/decision"
	"github.com/lox/pokerbench/internal/game"
)

// RemoteProvider marks a player whose decisions arrive over the bot
// websocket.
const RemoteProvider = "remote"

// Config is the complete configuration file.
type Config struct {
	Server  *ServerSettings `hcl:"server,block"`
	Store   *StoreSettings  `hcl:"store,block"`
	Ledger  *LedgerSettings `hcl:"ledger,block"`
	Timing  *TimingSettings `hcl:"timing,block"`
	Games   []GameSettings  `hcl:"game,block"`
	Players []PlayerConfig  `hcl:"player,block"`
}

type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

type StoreSettings struct {
	Backend      string `hcl:"backend,optional"`
	RedisAddr    string `hcl:"redis_addr,optional"`
	RedisDB      int    `hcl:"redis_db,optional"`
	KeyPrefix    string `hcl:"key_prefix,optional"`
	CompletedTTL string `hcl:"completed_ttl,optional"`
}

type LedgerSettings struct {
	Path            string `hcl:"path,optional"`
	StartingBalance int    `hcl:"starting_balance,optional"`
}

type TimingSettings struct {
	TurnTimeout   string `hcl:"turn_timeout,optional"`
	RevealDelay   string `hcl:"reveal_delay,optional"`
	NextHandDelay string `hcl:"next_hand_delay,optional"`
}

// GameSettings is a named game template.
type GameSettings struct {
	Name       string `hcl:"name,label"`
	BuyIn      int    `hcl:"buy_in,optional"`
	SmallBlind int    `hcl:"small_blind,optional"`
	BigBlind   int    `hcl:"big_blind,optional"`
	MaxHands   int    `hcl:"max_hands,optional"`
}

// PlayerConfig seats a player and names where its decisions come from.
type PlayerConfig struct {
	Name     string `hcl:"name,label"`
	Provider string `hcl:"provider"`
}

// Timings are the parsed durations from the timing block.
type Timings struct {
	TurnTimeout   time.Duration
	RevealDelay   time.Duration
	NextHandDelay time.Duration
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads filename. A missing file yields Default().
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var c Config
	if diags := gohcl.DecodeBody(file.Body, nil, &c); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	if c.Server.Address == "" {
		c.Server.Address = "localhost:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Store == nil {
		c.Store = &StoreSettings{}
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.RedisAddr == "" {
		c.Store.RedisAddr = "localhost:6379"
	}
	if c.Store.KeyPrefix == "" {
		c.Store.KeyPrefix = "pokerbench:game:"
	}
	if c.Store.CompletedTTL == "" {
		c.Store.CompletedTTL = "24h"
	}

	if c.Ledger == nil {
		c.Ledger = &LedgerSettings{}
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "pokerbench.db"
	}
	if c.Ledger.StartingBalance == 0 {
		c.Ledger.StartingBalance = 100000
	}

	if c.Timing == nil {
		c.Timing = &TimingSettings{}
	}
	if c.Timing.TurnTimeout == "" {
		c.Timing.TurnTimeout = "30s"
	}
	if c.Timing.RevealDelay == "" {
		c.Timing.RevealDelay = "1500ms"
	}
	if c.Timing.NextHandDelay == "" {
		c.Timing.NextHandDelay = "3s"
	}

	if len(c.Games) == 0 {
		c.Games = []GameSettings{{Name: "default"}}
	}
	for i := range c.Games {
		g := &c.Games[i]
		if g.SmallBlind == 0 {
			g.SmallBlind = 5
		}
		if g.BigBlind == 0 {
			g.BigBlind = g.SmallBlind * 2
		}
		if g.BuyIn == 0 {
			g.BuyIn = g.BigBlind * 100
		}
		if g.MaxHands == 0 {
			g.MaxHands = 100
		}
	}
}

// Validate checks every block for usable values.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("store: unknown backend %q", c.Store.Backend)
	}
	if _, err := time.ParseDuration(c.Store.CompletedTTL); err != nil {
		return fmt.Errorf("store: completed_ttl: %w", err)
	}

	if c.Ledger.StartingBalance < 0 {
		return fmt.Errorf("ledger: starting balance must not be negative")
	}

	t, err := c.Timings()
	if err != nil {
		return err
	}

	for _, g := range c.Games {
		cfg := g.GameConfig(t.TurnTimeout)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("game %s: %w", g.Name, err)
		}
	}

	if n := len(c.Players); n > 0 && (n < game.MinSeats || n > game.MaxSeats) {
		return fmt.Errorf("need between %d and %d players, have %d", game.MinSeats, game.MaxSeats, n)
	}
	known := make(map[string]bool)
	for _, name := range decision.BuiltinNames() {
		known[name] = true
	}
	known[RemoteProvider] = true
	seen := make(map[string]bool)
	for _, p := range c.Players {
		if !known[p.Provider] {
			return fmt.Errorf("player %s: unknown provider %q", p.Name, p.Provider)
		}
		if seen[p.Name] {
			return fmt.Errorf("player %s: declared twice", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Timings parses the timing block.
func (c *Config) Timings() (Timings, error) {
	var (
		t   Timings
		err error
	)
	if t.TurnTimeout, err = parsePositive("turn_timeout", c.Timing.TurnTimeout); err != nil {
		return t, err
	}
	if t.RevealDelay, err = parsePositive("reveal_delay", c.Timing.RevealDelay); err != nil {
		return t, err
	}
	if t.NextHandDelay, err = parsePositive("next_hand_delay", c.Timing.NextHandDelay); err != nil {
		return t, err
	}
	return t, nil
}

func parsePositive(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("timing: %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timing: %s must not be negative", name)
	}
	return d, nil
}

// CompletedTTL is how long the redis store keeps finished games.
func (c *Config) CompletedTTL() time.Duration {
	d, _ := time.ParseDuration(c.Store.CompletedTTL)
	return d
}

// Game returns the named game template.
func (c *Config) Game(name string) (GameSettings, bool) {
	for _, g := range c.Games {
		if g.Name == name {
			return g, true
		}
	}
	return GameSettings{}, false
}

// GameConfig converts the template into engine settings.
func (g GameSettings) GameConfig(turnTimeout time.Duration) game.Config {
	return game.Config{
		BuyIn:       g.BuyIn,
		SmallBlind:  g.SmallBlind,
		BigBlind:    g.BigBlind,
		MaxHands:    g.MaxHands,
		TurnTimeout: turnTimeout,
	}
}
