package game

import (
	"fmt"

	"github.com/lox/pokerbench/internal/randutil"
	"github.com/lox/pokerbench/poker"
)

// HandResult summarises how a finished hand paid out.
type HandResult struct {
	HandNumber int                         `json:"hand_number"`
	Board      []poker.Card                `json:"board"`
	FoldWin    bool                        `json:"fold_win"`
	Pots       []Pot                       `json:"pots"`
	Awards     []Award                     `json:"awards"`
	Hands      map[int]poker.EvaluatedHand `json:"hands,omitempty"`
	HoleCards  map[int][]poker.Card        `json:"hole_cards,omitempty"`
	EvalErrors []string                    `json:"eval_errors,omitempty"`
	Record     *HandRecord                 `json:"record,omitempty"`
}

// ActionNote carries how a decision was obtained, for seat statistics and
// the action log.
type ActionNote struct {
	Timeout       bool
	ProviderError bool
	Corrections   int
	Reasoning     string
}

// Start moves a waiting game to active and deals the first hand.
func (g *Game) Start() error {
	if g.Status != StatusWaiting {
		return fmt.Errorf("%w: cannot start from %s", ErrNotActive, g.Status)
	}
	g.Status = StatusActive
	return g.startHand()
}

// ApplyAction commits the pending seat's decision. The token must match the
// current turn exactly; otherwise nothing changes and ErrStaleToken is
// returned.
func (g *Game) ApplyAction(tok TurnToken, a Action, note ActionNote) (Applied, error) {
	if err := g.checkToken(tok, PendingAction); err != nil {
		return Applied{}, err
	}
	idx := g.Table.CurrentSeatIndex
	res, err := g.applyBet(idx, a)
	if err != nil {
		return Applied{}, err
	}

	g.Record.add(HandAction{SeatIndex: idx, Kind: string(res.Action.Kind), Amount: res.Action.Amount})

	s := &g.Seats[idx]
	s.Stats.Actions++
	s.Stats.Corrections += note.Corrections
	if note.Timeout {
		s.Stats.Timeouts++
	}
	if note.ProviderError {
		s.Stats.ProviderErrors++
	}

	g.bump()
	detail := note.Reasoning
	if note.Timeout {
		detail = "timeout"
	}
	g.logEvent(idx, string(res.Action.Kind), res.Action.Amount, detail)
	return res, g.progress(idx)
}

// Reveal deals the next street of an all-in runout, or goes to showdown
// once the river is out.
func (g *Game) Reveal(tok TurnToken) error {
	if err := g.checkToken(tok, PendingReveal); err != nil {
		return err
	}
	if g.Table.Phase == PhaseRiver {
		return g.showdown()
	}
	return g.dealStreet()
}

// NextHand deals the next hand after the inter-hand pause.
func (g *Game) NextHand(tok TurnToken) error {
	if err := g.checkToken(tok, PendingNextHand); err != nil {
		return err
	}
	return g.startHand()
}

// Cancel stops the game, refunding any chips wagered in the current hand.
func (g *Game) Cancel() error {
	if g.Done() {
		return fmt.Errorf("%w: already %s", ErrNotActive, g.Status)
	}
	for i := range g.Seats {
		s := &g.Seats[i]
		s.Chips += s.TotalBetThisHand
		s.TotalBetThisHand = 0
		s.CurrentBetThisRound = 0
	}
	g.Table.Pot = 0
	g.Status = StatusCancelled
	g.Pending = PendingNone
	g.Table.CurrentSeatIndex = -1
	g.bump()
	g.logEvent(-1, "cancelled", 0, "")
	return nil
}

func (g *Game) startHand() error {
	g.CurrentHandNumber++
	n := len(g.Seats)

	for i := range g.Seats {
		s := &g.Seats[i]
		s.HoleCards = nil
		s.CurrentBetThisRound = 0
		s.TotalBetThisHand = 0
		s.Folded = s.Chips == 0
		s.AllIn = false
		s.HasActed = false
	}

	dealer := g.nextSeatWithChips(g.Table.DealerSeatIndex)
	g.Record = g.newRecord(dealer)
	g.Table = TableState{
		Phase:              PhasePreflop,
		DealerSeatIndex:    dealer,
		CurrentSeatIndex:   -1,
		LastRaiseIncrement: g.Config.BigBlind,
		Deck:               poker.Shuffle(poker.NewDeck(), randutil.ForHand(g.Seed, g.CurrentHandNumber)),
	}

	sb := g.nextSeatWithChips(dealer)
	if g.seatsWithChips() == 2 {
		sb = dealer
	}
	bb := g.nextSeatWithChips(sb)

	g.commit(&g.Seats[sb], g.Config.SmallBlind)
	g.commit(&g.Seats[bb], g.Config.BigBlind)
	g.Record.Blinds[sb] = g.Seats[sb].CurrentBetThisRound
	g.Record.Blinds[bb] = g.Seats[bb].CurrentBetThisRound
	g.Table.CurrentBet = max(g.Seats[sb].CurrentBetThisRound, g.Seats[bb].CurrentBetThisRound)
	g.Table.MinRaise = g.minRaiseTotal()

	for range 2 {
		for step := 1; step <= n; step++ {
			s := &g.Seats[(dealer+step)%n]
			if s.Folded {
				continue
			}
			dealt, rest, err := poker.Deal(g.Table.Deck, 1)
			if err != nil {
				return fmt.Errorf("dealing hole cards: %w", err)
			}
			s.HoleCards = append(s.HoleCards, dealt[0])
			g.Table.Deck = rest
		}
	}

	for i := range g.Seats {
		g.Record.HoleCards[i] = append([]poker.Card(nil), g.Seats[i].HoleCards...)
	}

	g.bump()
	g.logEvent(dealer, "hand_started", 0, "")
	g.logEvent(sb, "small_blind", g.Seats[sb].CurrentBetThisRound, "")
	g.logEvent(bb, "big_blind", g.Seats[bb].CurrentBetThisRound, "")
	return g.progress(bb)
}

// progress decides what the game waits on after a change, starting the
// search for the next actor after seat from.
func (g *Game) progress(from int) error {
	if g.countNotFolded() <= 1 {
		return g.finishHand(g.awardFoldWin())
	}
	if !g.RoundComplete() {
		if next := g.nextToAct(from); next >= 0 {
			g.issueTurn(next)
			return nil
		}
	}
	if g.Table.Phase == PhaseRiver {
		return g.showdown()
	}
	if g.countCanAct() < 2 {
		g.Pending = PendingReveal
		g.Table.CurrentSeatIndex = -1
		g.bump()
		return nil
	}
	if err := g.dealStreet(); err != nil {
		return err
	}
	return g.progress(g.Table.DealerSeatIndex)
}

func (g *Game) issueTurn(seat int) {
	g.Table.CurrentSeatIndex = seat
	g.Pending = PendingAction
	g.bump()
}

var nextPhase = map[Phase]Phase{
	PhasePreflop: PhaseFlop,
	PhaseFlop:    PhaseTurn,
	PhaseTurn:    PhaseRiver,
}

// dealStreet burns one card, deals the next street and resets the round.
func (g *Game) dealStreet() error {
	phase, ok := nextPhase[g.Table.Phase]
	if !ok {
		return fmt.Errorf("no street follows %s", g.Table.Phase)
	}
	count := 1
	if phase == PhaseFlop {
		count = 3
	}

	_, rest, err := poker.Deal(g.Table.Deck, 1)
	if err != nil {
		return fmt.Errorf("burning for %s: %w", phase, err)
	}
	dealt, rest, err := poker.Deal(rest, count)
	if err != nil {
		return fmt.Errorf("dealing %s: %w", phase, err)
	}
	g.Table.Deck = rest
	g.Table.CommunityCards = append(g.Table.CommunityCards, dealt...)
	g.Table.Phase = phase
	g.Record.add(HandAction{SeatIndex: -1, Kind: ActionBoard, Cards: dealt})

	for i := range g.Seats {
		s := &g.Seats[i]
		s.CurrentBetThisRound = 0
		s.HasActed = s.Folded || s.AllIn
	}
	g.Table.CurrentBet = 0
	g.Table.LastRaiseIncrement = g.Config.BigBlind
	g.Table.MinRaise = g.Config.BigBlind
	g.Table.LastAggressorSeatIndex = nil

	g.bump()
	g.logEvent(-1, string(phase), 0, poker.FormatCards(dealt))
	return nil
}

func (g *Game) awardFoldWin() *HandResult {
	res := &HandResult{
		HandNumber: g.CurrentHandNumber,
		Board:      append([]poker.Card(nil), g.Table.CommunityCards...),
		FoldWin:    true,
		Pots:       BuildPots(g.Seats),
	}
	for i := range g.Seats {
		s := &g.Seats[i]
		if s.Folded {
			continue
		}
		res.Awards = []Award{{SeatIndex: i, Amount: g.Table.Pot}}
		s.Chips += g.Table.Pot
		s.Stats.HandsWon++
		g.logEvent(i, "wins", g.Table.Pot, "uncontested")
		break
	}
	return res
}

func (g *Game) showdown() error {
	g.Table.Phase = PhaseShowdown
	g.Table.CurrentSeatIndex = -1

	res := &HandResult{
		HandNumber: g.CurrentHandNumber,
		Board:      append([]poker.Card(nil), g.Table.CommunityCards...),
		Hands:      make(map[int]poker.EvaluatedHand),
		HoleCards:  make(map[int][]poker.Card),
	}
	for i := range g.Seats {
		s := &g.Seats[i]
		if s.Folded {
			continue
		}
		h, err := poker.Evaluate(s.HoleCards, g.Table.CommunityCards)
		if err != nil {
			res.EvalErrors = append(res.EvalErrors, fmt.Sprintf("seat %d: %v", i, err))
			h = poker.WorstHand
		}
		res.Hands[i] = h
		res.HoleCards[i] = append([]poker.Card(nil), s.HoleCards...)
	}

	res.Pots = BuildPots(g.Seats)
	res.Awards = Distribute(res.Pots, res.Hands, len(g.Seats), g.Table.DealerSeatIndex)

	won := make(map[int]bool)
	for _, a := range res.Awards {
		g.Seats[a.SeatIndex].Chips += a.Amount
		if !won[a.SeatIndex] {
			won[a.SeatIndex] = true
			g.Seats[a.SeatIndex].Stats.HandsWon++
		}
		g.logEvent(a.SeatIndex, "wins", a.Amount, res.Hands[a.SeatIndex].Description)
	}
	return g.finishHand(res)
}

// finishHand clears the pot once awards have been credited and either
// schedules the next hand or completes the game.
func (g *Game) finishHand(res *HandResult) error {
	paid := 0
	for _, a := range res.Awards {
		paid += a.Amount
	}
	if paid != g.Table.Pot {
		return fmt.Errorf("hand %d paid %d from a pot of %d", g.CurrentHandNumber, paid, g.Table.Pot)
	}

	if g.Record != nil {
		g.Record.Contributions = make([]int, len(g.Seats))
		for i := range g.Seats {
			g.Record.Contributions[i] = g.Seats[i].TotalBetThisHand
		}
		res.Record = g.Record
	}
	for i := range g.Seats {
		g.Seats[i].CurrentBetThisRound = 0
		g.Seats[i].TotalBetThisHand = 0
	}
	g.Table.Pot = 0
	g.Table.CurrentSeatIndex = -1
	g.LastHand = res
	g.bump()

	if g.IsOver() {
		g.Status = StatusCompleted
		g.Pending = PendingNone
		g.logEvent(-1, "game_completed", 0, "")
		return nil
	}
	g.Pending = PendingNextHand
	return nil
}

func (g *Game) nextSeatWithChips(from int) int {
	n := len(g.Seats)
	for step := 1; step <= n; step++ {
		i := ((from+step)%n + n) % n
		if g.Seats[i].Chips > 0 {
			return i
		}
	}
	return -1
}
