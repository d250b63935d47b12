package game

import "github.com/lox/pokerbench/poker"

// ActionBoard is the HandAction kind for community cards being dealt.
const ActionBoard = "board"

// HandRecord is the complete sequence of one hand, enough to replay it.
type HandRecord struct {
	Number         int            `json:"number"`
	Dealer         int            `json:"dealer"`
	StartingStacks []int          `json:"starting_stacks"`
	Blinds         []int          `json:"blinds"`
	HoleCards      [][]poker.Card `json:"hole_cards"`
	Actions        []HandAction   `json:"actions"`
	Contributions  []int          `json:"contributions,omitempty"`
}

// HandAction is one seat action, or a board deal when SeatIndex is -1.
// Amount is the raise-to total for raises and the round total for calls.
type HandAction struct {
	SeatIndex int          `json:"seat"`
	Kind      string       `json:"kind"`
	Amount    int          `json:"amount,omitempty"`
	Cards     []poker.Card `json:"cards,omitempty"`
}

func (r *HandRecord) add(a HandAction) {
	if r == nil {
		return
	}
	r.Actions = append(r.Actions, a)
}

// newRecord captures stacks before any blind is posted.
func (g *Game) newRecord(dealer int) *HandRecord {
	r := &HandRecord{
		Number:         g.CurrentHandNumber,
		Dealer:         dealer,
		StartingStacks: make([]int, len(g.Seats)),
		Blinds:         make([]int, len(g.Seats)),
		HoleCards:      make([][]poker.Card, len(g.Seats)),
	}
	for i := range g.Seats {
		r.StartingStacks[i] = g.Seats[i].Chips
	}
	return r
}
