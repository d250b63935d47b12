package game

import (
	"fmt"
	"strings"

	"github.com/lox/pokerbench/poker"
)

// Describe renders the table from one seat's point of view. Other seats'
// hole cards are never included.
func Describe(g *Game, seatIdx int) string {
	var b strings.Builder
	me := &g.Seats[seatIdx]

	fmt.Fprintf(&b, "Hand #%d, %s. Blinds %d/%d.\n", g.CurrentHandNumber, g.Table.Phase, g.Config.SmallBlind, g.Config.BigBlind)
	fmt.Fprintf(&b, "You are %s in seat %d", me.PlayerID, seatIdx)
	if seatIdx == g.Table.DealerSeatIndex {
		b.WriteString(" (dealer)")
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Your cards: %s\n", poker.FormatCards(me.HoleCards))
	if len(g.Table.CommunityCards) > 0 {
		fmt.Fprintf(&b, "Board: %s\n", poker.FormatCards(g.Table.CommunityCards))
	} else {
		b.WriteString("Board: (none)\n")
	}
	fmt.Fprintf(&b, "Pot: %d. Current bet: %d.\n", g.Table.Pot, g.Table.CurrentBet)

	b.WriteString("Seats:\n")
	for i := range g.Seats {
		s := &g.Seats[i]
		var status string
		switch {
		case s.Folded:
			status = "folded"
		case s.AllIn:
			status = "all-in"
		default:
			status = "active"
		}
		marker := " "
		if i == seatIdx {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %d %-12s chips=%-6d bet=%-5d %s\n", marker, i, s.PlayerID, s.Chips, s.CurrentBetThisRound, status)
	}

	if recent := g.Log.Tail(12); len(recent) > 0 {
		b.WriteString("Recent actions:\n")
		for _, e := range recent {
			if e.Hand != g.CurrentHandNumber {
				continue
			}
			line := e.Event
			if e.PlayerID != "" {
				line = e.PlayerID + " " + line
			}
			if e.Amount > 0 {
				line += fmt.Sprintf(" %d", e.Amount)
			}
			if e.Detail != "" && e.Event != string(ActionFold) && e.Event != string(ActionCheck) &&
				e.Event != string(ActionCall) && e.Event != string(ActionRaise) {
				line += " " + e.Detail
			}
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}

	v := g.ValidActions(seatIdx)
	b.WriteString("Legal actions: fold")
	if v.CanCheck {
		b.WriteString(", check")
	}
	if v.CanCall {
		fmt.Fprintf(&b, ", call %d", v.CallAmount)
	}
	if v.CanRaise {
		fmt.Fprintf(&b, ", raise to %d-%d", v.MinRaiseTotal, v.MaxRaiseTotal)
	}
	b.WriteString("\n")
	return b.String()
}
