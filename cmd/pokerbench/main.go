package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/lox/pokerbench/internal/config"
)

// Globals are shared by every subcommand.
type Globals struct {
	Config *config.Config
	Logger *log.Logger
}

type CLI struct {
	Config   string `short:"c" default:"pokerbench.hcl" help:"Path to HCL configuration file"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`

	Run       RunCmd       `cmd:"" help:"Play games between built-in providers and print the settlement"`
	Serve     ServeCmd     `cmd:"" help:"Serve the HTTP API and accept remote bots over websocket"`
	Standings StandingsCmd `cmd:"" help:"Print cross-game standings from the ledger"`
	Deposit   DepositCmd   `cmd:"" help:"Credit chips to a player's ledger account"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("pokerbench"),
		kong.Description("Autonomous Texas Hold'em games for benchmarking decision makers"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		ctx.Exit(1)
	}
	if cli.LogLevel != "" {
		cfg.Server.LogLevel = cli.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		ctx.Exit(1)
	}

	logger := log.New(os.Stderr)
	level, _ := log.ParseLevel(cfg.Server.LogLevel)
	logger.SetLevel(level)
	logger.SetReportTimestamp(true)

	ctx.FatalIfErrorf(ctx.Run(&Globals{Config: cfg, Logger: logger}))
}
