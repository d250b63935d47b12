package game

import (
	"fmt"
)

// ActionKind is one of the four betting actions.
type ActionKind string

const (
	ActionFold  ActionKind = "fold"
	ActionCheck ActionKind = "check"
	ActionCall  ActionKind = "call"
	ActionRaise ActionKind = "raise"
)

// Action is a betting decision. Amount is the raise-to total for the round
// and is ignored for every other kind.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Amount int        `json:"amount,omitempty"`
}

func Fold() Action  { return Action{Kind: ActionFold} }
func Check() Action { return Action{Kind: ActionCheck} }
func Call() Action  { return Action{Kind: ActionCall} }

// RaiseTo raises the round's bet to total.
func RaiseTo(total int) Action { return Action{Kind: ActionRaise, Amount: total} }

func (a Action) String() string {
	if a.Kind == ActionRaise {
		return fmt.Sprintf("raise to %d", a.Amount)
	}
	return string(a.Kind)
}

// ValidActions describes what a seat may legally do.
type ValidActions struct {
	CanCheck      bool `json:"can_check"`
	CanCall       bool `json:"can_call"`
	CallAmount    int  `json:"call_amount"`
	CanRaise      bool `json:"can_raise"`
	MinRaiseTotal int  `json:"min_raise_total"`
	MaxRaiseTotal int  `json:"max_raise_total"`
}

// Allows reports whether kind is legal. Raise amounts are not checked.
func (v ValidActions) Allows(kind ActionKind) bool {
	switch kind {
	case ActionFold:
		return true
	case ActionCheck:
		return v.CanCheck
	case ActionCall:
		return v.CanCall
	case ActionRaise:
		return v.CanRaise
	}
	return false
}

// ClampRaise forces total into [MinRaiseTotal, MaxRaiseTotal].
func (v ValidActions) ClampRaise(total int) int {
	return max(v.MinRaiseTotal, min(total, v.MaxRaiseTotal))
}

// ValidActions computes the legal actions for the seat at seatIdx.
func (g *Game) ValidActions(seatIdx int) ValidActions {
	s := &g.Seats[seatIdx]
	if !s.CanAct() {
		return ValidActions{}
	}

	toCall := g.Table.CurrentBet - s.CurrentBetThisRound
	v := ValidActions{
		CanCheck: toCall <= 0,
		CanCall:  toCall > 0,
	}
	if v.CanCall {
		v.CallAmount = min(toCall, s.Chips)
	}

	// A seat that already acted only gets to raise again if a full raise
	// reopened the action and cleared HasActed.
	if s.Chips > toCall && !s.HasActed && g.othersCanRespond(seatIdx) {
		v.CanRaise = true
		v.MaxRaiseTotal = s.CurrentBetThisRound + s.Chips
		v.MinRaiseTotal = min(g.minRaiseTotal(), v.MaxRaiseTotal)
	}
	return v
}

func (g *Game) minRaiseTotal() int {
	return g.Table.CurrentBet + max(g.Table.LastRaiseIncrement, g.Config.BigBlind)
}

func (g *Game) othersCanRespond(seatIdx int) bool {
	for i := range g.Seats {
		if i != seatIdx && g.Seats[i].CanAct() {
			return true
		}
	}
	return false
}

// Applied records the effect of a committed betting action.
type Applied struct {
	Action   Action `json:"action"`
	Put      int    `json:"put"`
	AllIn    bool   `json:"all_in"`
	Reopened bool   `json:"reopened"`
}

// applyBet validates and commits a betting action for seatIdx. Raises are
// clamped into the legal range; illegal kinds are rejected untouched.
func (g *Game) applyBet(seatIdx int, a Action) (Applied, error) {
	s := &g.Seats[seatIdx]
	v := g.ValidActions(seatIdx)
	if !s.CanAct() {
		return Applied{}, fmt.Errorf("%w: seat %d cannot act", ErrIllegalAction, seatIdx)
	}
	if !v.Allows(a.Kind) {
		return Applied{}, fmt.Errorf("%w: %s not allowed for seat %d", ErrIllegalAction, a.Kind, seatIdx)
	}

	res := Applied{Action: a}
	switch a.Kind {
	case ActionFold:
		s.Folded = true

	case ActionCheck:

	case ActionCall:
		res.Put = g.commit(s, v.CallAmount)
		res.Action.Amount = s.CurrentBetThisRound

	case ActionRaise:
		total := v.ClampRaise(a.Amount)
		res.Action.Amount = total
		res.Put = g.commit(s, total-s.CurrentBetThisRound)

		increment := total - g.Table.CurrentBet
		if increment >= g.Table.LastRaiseIncrement {
			res.Reopened = true
			g.Table.LastRaiseIncrement = increment
			for i := range g.Seats {
				if i != seatIdx && g.Seats[i].CanAct() {
					g.Seats[i].HasActed = false
				}
			}
		}
		g.Table.CurrentBet = total
		g.Table.MinRaise = g.minRaiseTotal()
		idx := seatIdx
		g.Table.LastAggressorSeatIndex = &idx
	}

	s.HasActed = true
	res.AllIn = s.AllIn
	return res, nil
}

// commit moves chips from a seat into the pot and returns the amount moved.
func (g *Game) commit(s *Seat, amount int) int {
	amount = min(amount, s.Chips)
	if amount <= 0 {
		return 0
	}
	s.Chips -= amount
	s.CurrentBetThisRound += amount
	s.TotalBetThisHand += amount
	g.Table.Pot += amount
	if s.Chips == 0 {
		s.AllIn = true
	}
	return amount
}

// RoundComplete reports whether every seat that can act has acted and
// matched the current bet.
func (g *Game) RoundComplete() bool {
	for i := range g.Seats {
		s := &g.Seats[i]
		if !s.CanAct() {
			continue
		}
		if !s.HasActed || s.CurrentBetThisRound != g.Table.CurrentBet {
			return false
		}
	}
	return true
}

// nextToAct returns the first seat after from, clockwise, that still owes a
// decision this round, or -1.
func (g *Game) nextToAct(from int) int {
	n := len(g.Seats)
	for step := 1; step <= n; step++ {
		i := ((from+step)%n + n) % n
		s := &g.Seats[i]
		if !s.CanAct() {
			continue
		}
		if !s.HasActed || s.CurrentBetThisRound < g.Table.CurrentBet {
			return i
		}
	}
	return -1
}

func (g *Game) countNotFolded() int {
	n := 0
	for i := range g.Seats {
		if !g.Seats[i].Folded {
			n++
		}
	}
	return n
}

func (g *Game) countCanAct() int {
	n := 0
	for i := range g.Seats {
		if g.Seats[i].CanAct() {
			n++
		}
	}
	return n
}
