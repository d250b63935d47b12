package phh

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/lox/pokerbench/internal/game"
	"github.com/lox/pokerbench/poker"
)

// ErrNoRecord is returned for hands finished without a hand record.
var ErrNoRecord = errors.New("phh: hand has no record")

// Encode writes the hand history to w in PHH TOML format.
func Encode(w io.Writer, hand *HandHistory) error {
	if hand == nil {
		return fmt.Errorf("phh: hand history is nil")
	}
	enc := toml.NewEncoder(w)
	enc.Indent = "\t"
	return enc.Encode(hand)
}

// EncodeToBytes encodes and returns the result as bytes.
func EncodeToBytes(hand *HandHistory) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, hand); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatAction renders one seat action for player pN. Unknown kinds are
// kept as comments.
func FormatAction(player int, kind string, total int) (string, bool) {
	p := fmt.Sprintf("p%d", player)
	switch kind {
	case string(game.ActionFold):
		return p + " f", true
	case string(game.ActionCheck), string(game.ActionCall):
		return p + " cc", true
	case string(game.ActionRaise):
		if total <= 0 {
			return "", false
		}
		return fmt.Sprintf("%s cbr %d", p, total), true
	default:
		return fmt.Sprintf("# %s %s %d", p, kind, total), true
	}
}

func formatCards(cards []poker.Card) string {
	var b strings.Builder
	for _, c := range cards {
		b.WriteString(c.String())
	}
	return b.String()
}

// Options controls what FromHand reveals.
type Options struct {
	// HideMucked replaces hole cards not shown at showdown with ????.
	HideMucked bool
	// At stamps the hand. Zero leaves the time fields empty.
	At time.Time
}

// FromHand converts a finished hand of g into a hand history. Players are
// listed clockwise from the seat after the dealer; busted seats are left
// out.
func FromHand(g *game.Game, res *game.HandResult, opts Options) (*HandHistory, error) {
	if res == nil || res.Record == nil {
		return nil, ErrNoRecord
	}
	rec := res.Record
	n := len(rec.StartingStacks)
	if n != len(g.Seats) {
		return nil, fmt.Errorf("phh: record has %d seats, game has %d", n, len(g.Seats))
	}

	won := make(map[int]int)
	for _, a := range res.Awards {
		won[a.SeatIndex] += a.Amount
	}

	h := &HandHistory{
		Variant:   "NT",
		Table:     g.ID,
		SeatCount: n,
		MinBet:    g.Config.BigBlind,
		HandID:    fmt.Sprintf("%s-%04d", g.ID, res.HandNumber),
	}
	if !opts.At.IsZero() {
		at := opts.At.UTC()
		h.Time = at.Format(time.TimeOnly)
		h.TimeZone = "UTC"
		h.Day, h.Month, h.Year = at.Day(), int(at.Month()), at.Year()
	}

	pos := make(map[int]int)
	var order []int
	for step := 1; step <= n; step++ {
		i := (rec.Dealer + step) % n
		if rec.StartingStacks[i] == 0 {
			continue
		}
		order = append(order, i)
		pos[i] = len(order)

		contributed := 0
		if rec.Contributions != nil {
			contributed = rec.Contributions[i]
		}
		h.Seats = append(h.Seats, i+1)
		h.Antes = append(h.Antes, 0)
		h.BlindsOrStraddles = append(h.BlindsOrStraddles, rec.Blinds[i])
		h.StartingStacks = append(h.StartingStacks, rec.StartingStacks[i])
		h.FinishingStacks = append(h.FinishingStacks, rec.StartingStacks[i]-contributed+won[i])
		h.Winnings = append(h.Winnings, won[i])
		h.Players = append(h.Players, g.Seats[i].PlayerID)
	}

	for _, i := range order {
		cards := formatCards(rec.HoleCards[i])
		if _, shown := res.HoleCards[i]; opts.HideMucked && !shown {
			cards = strings.Repeat("??", len(rec.HoleCards[i]))
		}
		h.Actions = append(h.Actions, fmt.Sprintf("d dh p%d %s", pos[i], cards))
	}
	for _, a := range rec.Actions {
		if a.Kind == game.ActionBoard {
			h.Actions = append(h.Actions, "d db "+formatCards(a.Cards))
			continue
		}
		if line, ok := FormatAction(pos[a.SeatIndex], a.Kind, a.Amount); ok {
			h.Actions = append(h.Actions, line)
		}
	}
	if !res.FoldWin {
		for _, i := range order {
			if cards, ok := res.HoleCards[i]; ok {
				h.Actions = append(h.Actions, fmt.Sprintf("p%d sm %s", pos[i], formatCards(cards)))
			}
		}
	}
	return h, nil
}
