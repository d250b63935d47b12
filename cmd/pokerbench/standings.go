package main

import (
	"context"
	"fmt"

	"github.com/lox/pokerbench/internal/ledger"
)

type StandingsCmd struct {
	NoColor bool `help:"Disable colour output"`
}

func (c *StandingsCmd) Run(g *Globals) error {
	l, err := ledger.OpenSQLite(g.Config.Ledger.Path, g.Config.Ledger.StartingBalance)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer l.Close()

	rows, err := l.Standings(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(renderStandings(rows, !c.NoColor))
	return nil
}

type DepositCmd struct {
	Player string `arg:"" help:"Player to credit"`
	Amount int    `arg:"" help:"Chips to add"`
}

func (c *DepositCmd) Run(g *Globals) error {
	l, err := ledger.OpenSQLite(g.Config.Ledger.Path, g.Config.Ledger.StartingBalance)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer l.Close()

	ctx := context.Background()
	if err := l.Deposit(ctx, c.Player, c.Amount); err != nil {
		return err
	}
	balance, err := l.Balance(ctx, c.Player)
	if err != nil {
		return err
	}
	g.Logger.Info("Deposited", "player", c.Player, "amount", c.Amount, "balance", balance)
	return nil
}
