package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lox/pokerbench/internal/game"

	_ "modernc.org/sqlite"
)

// SQLite is a Ledger backed by a single SQLite file.
type SQLite struct {
	db              *sql.DB
	startingBalance int
}

var _ Ledger = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path. New accounts are opened
// with startingBalance chips the first time they are seen.
func OpenSQLite(path string, startingBalance int) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if path != ":memory:" {
		if parent := filepath.Dir(path); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db, startingBalance: startingBalance}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS accounts (
    player_id TEXT PRIMARY KEY,
    balance INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS reservations (
    game_id TEXT NOT NULL,
    player_id TEXT NOT NULL REFERENCES accounts(player_id),
    amount INTEGER NOT NULL,
    created_at_ms INTEGER NOT NULL,
    PRIMARY KEY (game_id, player_id)
)`,
		`
CREATE TABLE IF NOT EXISTS settlements (
    game_id TEXT NOT NULL,
    player_id TEXT NOT NULL REFERENCES accounts(player_id),
    seat_index INTEGER NOT NULL,
    buy_in INTEGER NOT NULL,
    final_chips INTEGER NOT NULL,
    profit INTEGER NOT NULL,
    actions INTEGER NOT NULL DEFAULT 0,
    timeouts INTEGER NOT NULL DEFAULT 0,
    corrections INTEGER NOT NULL DEFAULT 0,
    provider_errors INTEGER NOT NULL DEFAULT 0,
    hands_won INTEGER NOT NULL DEFAULT 0,
    settled_at_ms INTEGER NOT NULL,
    PRIMARY KEY (game_id, player_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_settlements_player ON settlements(player_id, settled_at_ms DESC)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) ensureAccount(ctx context.Context, tx *sql.Tx, playerID string, nowMs int64) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO accounts (player_id, balance, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT (player_id) DO NOTHING
`, playerID, s.startingBalance, nowMs)
	return err
}

func (s *SQLite) ReserveBuyIns(ctx context.Context, gameID string, players []string, amount int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	for _, p := range players {
		if err := s.ensureAccount(ctx, tx, p, nowMs); err != nil {
			return fmt.Errorf("open account %s: %w", p, err)
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO reservations (game_id, player_id, amount, created_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT (game_id, player_id) DO NOTHING
`, gameID, p, amount, nowMs)
		if err != nil {
			return fmt.Errorf("reserve %s for %s: %w", p, gameID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}

		var balance int
		if err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE player_id = ?`, p).Scan(&balance); err != nil {
			return err
		}
		if balance < amount {
			return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, p, balance, amount)
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE accounts SET balance = balance - ?, updated_at_ms = ? WHERE player_id = ?
`, amount, nowMs, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) Settle(ctx context.Context, gameID string, entries []game.SettlementEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	for _, e := range entries {
		if err := s.ensureAccount(ctx, tx, e.PlayerID, nowMs); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO settlements (
    game_id, player_id, seat_index, buy_in, final_chips, profit,
    actions, timeouts, corrections, provider_errors, hands_won, settled_at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id, player_id) DO NOTHING
`, gameID, e.PlayerID, e.SeatIndex, e.BuyIn, e.FinalChips, e.Profit,
			e.Stats.Actions, e.Stats.Timeouts, e.Stats.Corrections, e.Stats.ProviderErrors, e.Stats.HandsWon, nowMs)
		if err != nil {
			return fmt.Errorf("settle %s for %s: %w", e.PlayerID, gameID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE accounts SET balance = balance + ?, updated_at_ms = ? WHERE player_id = ?
`, e.FinalChips, nowMs, e.PlayerID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Balance returns a player's current balance.
func (s *SQLite) Balance(ctx context.Context, playerID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE player_id = ?`, playerID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAccount, playerID)
	}
	return balance, err
}

// Deposit credits chips to an account, opening it if needed.
func (s *SQLite) Deposit(ctx context.Context, playerID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("deposit must be positive, got %d", amount)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	if err := s.ensureAccount(ctx, tx, playerID, nowMs); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE accounts SET balance = balance + ?, updated_at_ms = ? WHERE player_id = ?
`, amount, nowMs, playerID); err != nil {
		return err
	}
	return tx.Commit()
}

// Settlements returns the recorded outcome of a game ordered by seat.
func (s *SQLite) Settlements(ctx context.Context, gameID string) ([]game.SettlementEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT seat_index, player_id, buy_in, final_chips, profit,
       actions, timeouts, corrections, provider_errors, hands_won
FROM settlements
WHERE game_id = ?
ORDER BY seat_index ASC
`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []game.SettlementEntry
	for rows.Next() {
		var e game.SettlementEntry
		if err := rows.Scan(&e.SeatIndex, &e.PlayerID, &e.BuyIn, &e.FinalChips, &e.Profit,
			&e.Stats.Actions, &e.Stats.Timeouts, &e.Stats.Corrections, &e.Stats.ProviderErrors, &e.Stats.HandsWon); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Standing is one row of the cross-game leaderboard.
type Standing struct {
	PlayerID string `json:"player_id"`
	Games    int    `json:"games"`
	Profit   int    `json:"profit"`
	Balance  int    `json:"balance"`
}

// Standings aggregates every settled game per player, best profit first.
func (s *SQLite) Standings(ctx context.Context) ([]Standing, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT a.player_id, COUNT(st.game_id), COALESCE(SUM(st.profit), 0), a.balance
FROM accounts a
LEFT JOIN settlements st ON st.player_id = a.player_id
GROUP BY a.player_id
ORDER BY COALESCE(SUM(st.profit), 0) DESC, a.player_id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Standing
	for rows.Next() {
		var st Standing
		if err := rows.Scan(&st.PlayerID, &st.Games, &st.Profit, &st.Balance); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
