// Package ledger keeps player balances across games. Buy-ins are reserved
// when a game is created and final chip counts are credited back when it
// settles.
package ledger

import (
	"context"
	"errors"

	"github.com/lox/pokerbench/internal/game"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownAccount    = errors.New("unknown account")
)

// Ledger is the settlement boundary used by the game runner.
type Ledger interface {
	// ReserveBuyIns debits amount from every player, all or nothing.
	// Reserving the same game twice is a no-op.
	ReserveBuyIns(ctx context.Context, gameID string, players []string, amount int) error
	// Settle credits final chips. Settling the same game twice is a no-op.
	Settle(ctx context.Context, gameID string, entries []game.SettlementEntry) error
}
