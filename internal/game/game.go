package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/lox/pokerbench/poker"
)

const (
	MinSeats = 2
	MaxSeats = 8
)

var (
	// ErrIllegalAction is returned when an action is not legal for the seat.
	ErrIllegalAction = errors.New("illegal action")
	// ErrStaleToken is returned when a turn token no longer matches the game.
	ErrStaleToken = errors.New("stale turn token")
	// ErrNotActive is returned for operations on a game in the wrong status.
	ErrNotActive = errors.New("game not active")
	// ErrInvalidConfig is returned by NewGame for unusable settings.
	ErrInvalidConfig = errors.New("invalid game config")
)

// Status is the lifecycle state of a game.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Phase is a street of a hand.
type Phase string

const (
	PhasePreflop  Phase = "preflop"
	PhaseFlop     Phase = "flop"
	PhaseTurn     Phase = "turn"
	PhaseRiver    Phase = "river"
	PhaseShowdown Phase = "showdown"
)

// Pending names what the game is waiting on next.
type Pending string

const (
	PendingNone     Pending = ""
	PendingAction   Pending = "action"
	PendingReveal   Pending = "reveal"
	PendingNextHand Pending = "next_hand"
)

// Config holds the fixed parameters of a game.
type Config struct {
	BuyIn       int           `json:"buy_in"`
	SmallBlind  int           `json:"small_blind"`
	BigBlind    int           `json:"big_blind"`
	MaxHands    int           `json:"max_hands"`
	TurnTimeout time.Duration `json:"turn_timeout"`
}

// Validate checks the config for usable blind and stack sizes.
func (c Config) Validate() error {
	switch {
	case c.SmallBlind <= 0:
		return fmt.Errorf("%w: small blind must be positive", ErrInvalidConfig)
	case c.BigBlind <= c.SmallBlind:
		return fmt.Errorf("%w: big blind must exceed small blind", ErrInvalidConfig)
	case c.BuyIn < c.BigBlind:
		return fmt.Errorf("%w: buy-in must cover the big blind", ErrInvalidConfig)
	case c.MaxHands < 0:
		return fmt.Errorf("%w: max hands must not be negative", ErrInvalidConfig)
	case c.TurnTimeout < 0:
		return fmt.Errorf("%w: turn timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// TableState is the shared state of the hand in progress.
type TableState struct {
	Phase                  Phase        `json:"phase"`
	Pot                    int          `json:"pot"`
	CommunityCards         []poker.Card `json:"community_cards"`
	DealerSeatIndex        int          `json:"dealer_seat_index"`
	CurrentSeatIndex       int          `json:"current_seat_index"`
	Deck                   []poker.Card `json:"deck"`
	CurrentBet             int          `json:"current_bet"`
	MinRaise               int          `json:"min_raise"`
	LastRaiseIncrement     int          `json:"last_raise_increment"`
	LastAggressorSeatIndex *int         `json:"last_aggressor_seat_index"`
}

// Stats counts how a seat's turns were resolved.
type Stats struct {
	Actions        int `json:"actions"`
	Timeouts       int `json:"timeouts"`
	Corrections    int `json:"corrections"`
	ProviderErrors int `json:"provider_errors"`
	HandsWon       int `json:"hands_won"`
}

// Seat is one player's state at the table. Chips persist across hands,
// everything else is reset when a hand starts.
type Seat struct {
	PlayerID            string       `json:"player_id"`
	SeatIndex           int          `json:"seat_index"`
	Chips               int          `json:"chips"`
	HoleCards           []poker.Card `json:"hole_cards"`
	CurrentBetThisRound int          `json:"current_bet_this_round"`
	TotalBetThisHand    int          `json:"total_bet_this_hand"`
	Folded              bool         `json:"folded"`
	AllIn               bool         `json:"all_in"`
	HasActed            bool         `json:"has_acted"`
	Stats               Stats        `json:"stats"`
}

// CanAct reports whether the seat may still be asked for a decision this hand.
func (s *Seat) CanAct() bool {
	return !s.Folded && !s.AllIn && s.Chips > 0
}

// TurnToken identifies exactly one decision opportunity.
type TurnToken struct {
	HandNumber int   `json:"hand_number"`
	Phase      Phase `json:"phase"`
	SeatIndex  int   `json:"seat_index"`
	Sequence   int64 `json:"sequence"`
}

func (t TurnToken) String() string {
	return fmt.Sprintf("hand=%d phase=%s seat=%d seq=%d", t.HandNumber, t.Phase, t.SeatIndex, t.Sequence)
}

// Game is the aggregate record for a single game.
type Game struct {
	ID                string      `json:"id"`
	Status            Status      `json:"status"`
	Config            Config      `json:"config"`
	Seed              int64       `json:"seed"`
	CurrentHandNumber int         `json:"current_hand_number"`
	TurnSequence      int64       `json:"turn_sequence"`
	Pending           Pending     `json:"pending"`
	Table             TableState  `json:"table"`
	Seats             []Seat      `json:"seats"`
	StartingChips     int         `json:"starting_chips"`
	LastHand          *HandResult `json:"last_hand,omitempty"`
	Record            *HandRecord `json:"record,omitempty"`
	Log               ActionLog   `json:"log"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// NewGame seats players in order with a full buy-in each.
func NewGame(id string, cfg Config, players []string, seed int64) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(players) < MinSeats || len(players) > MaxSeats {
		return nil, fmt.Errorf("%w: need %d-%d players, got %d", ErrInvalidConfig, MinSeats, MaxSeats, len(players))
	}

	seen := make(map[string]bool, len(players))
	seats := make([]Seat, len(players))
	for i, p := range players {
		if p == "" || seen[p] {
			return nil, fmt.Errorf("%w: duplicate or empty player id %q", ErrInvalidConfig, p)
		}
		seen[p] = true
		seats[i] = Seat{PlayerID: p, SeatIndex: i, Chips: cfg.BuyIn}
	}

	now := time.Now().UTC()
	return &Game{
		ID:            id,
		Status:        StatusWaiting,
		Config:        cfg,
		Seed:          seed,
		Seats:         seats,
		StartingChips: cfg.BuyIn * len(players),
		Table: TableState{
			DealerSeatIndex:  -1,
			CurrentSeatIndex: -1,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Token returns the turn token for the game's current pending step.
func (g *Game) Token() TurnToken {
	return TurnToken{
		HandNumber: g.CurrentHandNumber,
		Phase:      g.Table.Phase,
		SeatIndex:  g.Table.CurrentSeatIndex,
		Sequence:   g.TurnSequence,
	}
}

// checkToken rejects tokens that do not name the current step.
func (g *Game) checkToken(tok TurnToken, want Pending) error {
	if g.Status != StatusActive {
		return fmt.Errorf("%w: status %s", ErrNotActive, g.Status)
	}
	if g.Pending != want || tok != g.Token() {
		return fmt.Errorf("%w: have %s, game at %s pending %q", ErrStaleToken, tok, g.Token(), g.Pending)
	}
	return nil
}

func (g *Game) bump() {
	g.TurnSequence++
}

// Seat returns the seat held by playerID, or nil.
func (g *Game) Seat(playerID string) *Seat {
	for i := range g.Seats {
		if g.Seats[i].PlayerID == playerID {
			return &g.Seats[i]
		}
	}
	return nil
}

// CurrentSeat returns the seat whose decision is pending, or nil.
func (g *Game) CurrentSeat() *Seat {
	if g.Pending != PendingAction || g.Table.CurrentSeatIndex < 0 {
		return nil
	}
	return &g.Seats[g.Table.CurrentSeatIndex]
}

// ChipTotal is every chip on the table: stacks plus the pot.
func (g *Game) ChipTotal() int {
	total := g.Table.Pot
	for i := range g.Seats {
		total += g.Seats[i].Chips
	}
	return total
}

// CheckConservation verifies that no chips were created or destroyed.
func (g *Game) CheckConservation() error {
	if got := g.ChipTotal(); got != g.StartingChips {
		return fmt.Errorf("chip conservation violated: have %d, want %d", got, g.StartingChips)
	}
	var wagered int
	for i := range g.Seats {
		wagered += g.Seats[i].TotalBetThisHand
	}
	if wagered != g.Table.Pot {
		return fmt.Errorf("pot %d does not match wagered %d", g.Table.Pot, wagered)
	}
	return nil
}

// IsOver reports whether no further hands should be dealt.
func (g *Game) IsOver() bool {
	if g.Config.MaxHands > 0 && g.CurrentHandNumber >= g.Config.MaxHands {
		return true
	}
	return g.seatsWithChips() < 2
}

func (g *Game) seatsWithChips() int {
	n := 0
	for i := range g.Seats {
		if g.Seats[i].Chips > 0 {
			n++
		}
	}
	return n
}

// SettlementEntry is one seat's outcome at game end.
type SettlementEntry struct {
	SeatIndex  int    `json:"seat_index"`
	PlayerID   string `json:"player_id"`
	BuyIn      int    `json:"buy_in"`
	FinalChips int    `json:"final_chips"`
	Profit     int    `json:"profit"`
	Stats      Stats  `json:"stats"`
}

// Settlement lists the final chip counts. It is only meaningful once the
// game is completed or cancelled.
func (g *Game) Settlement() []SettlementEntry {
	out := make([]SettlementEntry, len(g.Seats))
	for i, s := range g.Seats {
		out[i] = SettlementEntry{
			SeatIndex:  s.SeatIndex,
			PlayerID:   s.PlayerID,
			BuyIn:      g.Config.BuyIn,
			FinalChips: s.Chips,
			Profit:     s.Chips - g.Config.BuyIn,
			Stats:      s.Stats,
		}
	}
	return out
}

// Done reports whether the game has reached a terminal status.
func (g *Game) Done() bool {
	return g.Status == StatusCompleted || g.Status == StatusCancelled
}

// PublicView returns a copy with the deck removed and, unless reveal is set,
// hole cards hidden for every seat that has not reached showdown.
func (g *Game) PublicView(reveal bool) Game {
	v := *g
	v.Table.Deck = nil
	v.Table.CommunityCards = append([]poker.Card(nil), g.Table.CommunityCards...)
	v.Seats = make([]Seat, len(g.Seats))
	copy(v.Seats, g.Seats)
	if !reveal {
		for i := range v.Seats {
			v.Seats[i].HoleCards = nil
		}
		v.Record = nil
		if g.LastHand != nil {
			last := *g.LastHand
			last.Record = nil
			v.LastHand = &last
		}
	}
	return v
}
