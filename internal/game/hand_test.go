package game

import (
	"encoding/json"
	"fmt"
	rand "math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/pokerbench/internal/randutil"
	"github.com/lox/pokerbench/poker"
)

func mustCards(s string) []poker.Card {
	return poker.MustParseCards(s)
}

var testConfig = Config{BuyIn: 1000, SmallBlind: 5, BigBlind: 10, MaxHands: 50}

func startedGame(t *testing.T, players int, seed int64) *Game {
	t.Helper()
	names := make([]string, players)
	for i := range names {
		names[i] = fmt.Sprintf("p%d", i)
	}
	g, err := NewGame("g1", testConfig, names, seed)
	require.NoError(t, err)
	require.NoError(t, g.Start())
	require.NoError(t, g.CheckConservation())
	return g
}

func snapshot(t *testing.T, g *Game) string {
	t.Helper()
	b, err := json.Marshal(g)
	require.NoError(t, err)
	return string(b)
}

func TestNewGameValidation(t *testing.T) {
	t.Parallel()

	_, err := NewGame("x", testConfig, []string{"solo"}, 1)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewGame("x", testConfig, strings.Split("a b c d e f g h i", " "), 1)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewGame("x", testConfig, []string{"a", "a"}, 1)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewGame("x", Config{BuyIn: 100, SmallBlind: 10, BigBlind: 10}, []string{"a", "b"}, 1)
	require.ErrorIs(t, err, ErrInvalidConfig)

	g, err := NewGame("x", testConfig, []string{"a", "b", "c"}, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, g.Status)
	assert.Equal(t, 3000, g.StartingChips)
	assert.Equal(t, -1, g.Table.DealerSeatIndex)
}

func TestHeadsUpBlindsAndFirstToAct(t *testing.T) {
	t.Parallel()

	g := startedGame(t, 2, 1)
	assert.Equal(t, StatusActive, g.Status)
	assert.Equal(t, 1, g.CurrentHandNumber)
	assert.Equal(t, 0, g.Table.DealerSeatIndex)
	assert.Equal(t, 5, g.Seats[0].CurrentBetThisRound, "dealer posts the small blind heads-up")
	assert.Equal(t, 10, g.Seats[1].CurrentBetThisRound)
	assert.Equal(t, 10, g.Table.CurrentBet)
	assert.Equal(t, 15, g.Table.Pot)
	assert.Equal(t, PendingAction, g.Pending)
	assert.Equal(t, 0, g.Table.CurrentSeatIndex, "dealer acts first preflop heads-up")
	assert.Len(t, g.Seats[0].HoleCards, 2)
	assert.Len(t, g.Seats[1].HoleCards, 2)
	assert.Len(t, g.Table.Deck, 48)
}

func TestThreeHandedBlindsAndFirstToAct(t *testing.T) {
	t.Parallel()

	g := startedGame(t, 3, 1)
	assert.Equal(t, 0, g.Table.DealerSeatIndex)
	assert.Equal(t, 0, g.Seats[0].CurrentBetThisRound)
	assert.Equal(t, 5, g.Seats[1].CurrentBetThisRound)
	assert.Equal(t, 10, g.Seats[2].CurrentBetThisRound)
	assert.Equal(t, 0, g.Table.CurrentSeatIndex, "seat after the big blind acts first")
	assert.Equal(t, 20, g.Table.MinRaise)
}

func TestStreetTransition(t *testing.T) {
	t.Parallel()

	g := startedGame(t, 2, 7)
	act(t, g, Call())
	require.Equal(t, 1, g.Table.CurrentSeatIndex, "big blind gets the option")
	act(t, g, Check())

	assert.Equal(t, PhaseFlop, g.Table.Phase)
	assert.Len(t, g.Table.CommunityCards, 3)
	assert.Len(t, g.Table.Deck, 44, "one burn and three flop cards")
	assert.Equal(t, 0, g.Table.CurrentBet)
	assert.Equal(t, 10, g.Table.LastRaiseIncrement)
	assert.Equal(t, 1, g.Table.CurrentSeatIndex, "first seat after the dealer acts first")
	assert.Equal(t, 20, g.Table.Pot)
}

func TestStaleTokenIsNoOp(t *testing.T) {
	t.Parallel()

	g := startedGame(t, 3, 3)
	tok := g.Token()
	_, err := g.ApplyAction(tok, Call(), ActionNote{})
	require.NoError(t, err)
	require.Greater(t, g.TurnSequence, tok.Sequence)

	before := snapshot(t, g)
	_, err = g.ApplyAction(tok, RaiseTo(500), ActionNote{})
	require.ErrorIs(t, err, ErrStaleToken)
	assert.Equal(t, before, snapshot(t, g), "a stale token must not touch the game")

	require.ErrorIs(t, g.Reveal(g.Token()), ErrStaleToken, "not waiting on a reveal")
	require.ErrorIs(t, g.NextHand(g.Token()), ErrStaleToken, "not waiting on a hand")
	assert.Equal(t, before, snapshot(t, g))
}

func TestFoldWin(t *testing.T) {
	t.Parallel()

	g := startedGame(t, 3, 5)
	act(t, g, Fold())
	act(t, g, Fold())

	require.NotNil(t, g.LastHand)
	assert.True(t, g.LastHand.FoldWin)
	assert.Equal(t, 1005, g.Seats[2].Chips)
	assert.Equal(t, 995, g.Seats[1].Chips)
	assert.Equal(t, 1000, g.Seats[0].Chips)
	assert.Equal(t, 0, g.Table.Pot)
	assert.Equal(t, PendingNextHand, g.Pending)
	assert.Equal(t, 1, g.Seats[2].Stats.HandsWon)

	require.NoError(t, g.NextHand(g.Token()))
	assert.Equal(t, 2, g.CurrentHandNumber)
	assert.Equal(t, 1, g.Table.DealerSeatIndex, "dealer button moves one seat")
}

func TestAllInRunoutRevealsStreetByStreet(t *testing.T) {
	t.Parallel()

	g := startedGame(t, 2, 9)
	act(t, g, RaiseTo(1000))
	act(t, g, Call())

	require.Equal(t, PendingReveal, g.Pending)
	assert.Equal(t, PhasePreflop, g.Table.Phase)
	assert.Empty(t, g.Table.CommunityCards)

	for _, want := range []int{3, 4, 5} {
		require.NoError(t, g.Reveal(g.Token()))
		require.Equal(t, PendingReveal, g.Pending)
		assert.Len(t, g.Table.CommunityCards, want)
		require.NoError(t, g.CheckConservation())
	}

	require.NoError(t, g.Reveal(g.Token()))
	assert.Equal(t, PhaseShowdown, g.Table.Phase)
	require.NotNil(t, g.LastHand)
	assert.Len(t, g.LastHand.Hands, 2)
	assert.Equal(t, 2000, g.Seats[0].Chips+g.Seats[1].Chips)

	if g.Seats[0].Chips == 0 || g.Seats[1].Chips == 0 {
		assert.Equal(t, StatusCompleted, g.Status)
		assert.Equal(t, PendingNone, g.Pending)
	} else {
		assert.Equal(t, PendingNextHand, g.Pending)
	}
}

func TestShowdownAwardsBestHand(t *testing.T) {
	t.Parallel()

	g := &Game{
		ID:                "sd",
		Status:            StatusActive,
		Config:            testConfig,
		CurrentHandNumber: 1,
		StartingChips:     2000,
		Table: TableState{
			Phase:              PhaseRiver,
			Pot:                200,
			DealerSeatIndex:    1,
			CurrentSeatIndex:   -1,
			LastRaiseIncrement: 10,
			CommunityCards:     mustCards("Ks 7h 2c 9d 4c"),
		},
		Seats: []Seat{
			{PlayerID: "ak", SeatIndex: 0, Chips: 900, TotalBetThisHand: 100, HoleCards: mustCards("Ah Kd")},
			{PlayerID: "qq", SeatIndex: 1, Chips: 900, TotalBetThisHand: 100, HoleCards: mustCards("Qs Qh")},
		},
	}
	require.NoError(t, g.progress(g.Table.DealerSeatIndex))
	act(t, g, Check())
	act(t, g, Check())

	require.NotNil(t, g.LastHand)
	assert.False(t, g.LastHand.FoldWin)
	assert.Equal(t, "Pair of Kings, Ace kicker", g.LastHand.Hands[0].Description)
	assert.Equal(t, 1100, g.Seats[0].Chips)
	assert.Equal(t, 900, g.Seats[1].Chips)
	assert.Equal(t, []Award{{SeatIndex: 0, PotIndex: 0, Amount: 200}}, g.LastHand.Awards)
}

func TestDealerSkipsBustedSeats(t *testing.T) {
	t.Parallel()

	g := startedGame(t, 3, 2)
	act(t, g, Fold())
	act(t, g, Fold())
	require.Equal(t, PendingNextHand, g.Pending)

	// Move seat 1's stack to seat 0 to simulate a bust.
	g.Seats[0].Chips += g.Seats[1].Chips
	g.Seats[1].Chips = 0
	require.NoError(t, g.CheckConservation())

	require.NoError(t, g.NextHand(g.Token()))
	assert.Equal(t, 2, g.Table.DealerSeatIndex)
	assert.True(t, g.Seats[1].Folded)
	assert.Empty(t, g.Seats[1].HoleCards)
	assert.Equal(t, 5, g.Seats[2].CurrentBetThisRound, "heads-up dealer posts the small blind")
	assert.Equal(t, 10, g.Seats[0].CurrentBetThisRound)
	assert.Equal(t, 2, g.Table.CurrentSeatIndex)
}

func TestShortBlindIsAllIn(t *testing.T) {
	t.Parallel()

	g := startedGame(t, 2, 4)
	act(t, g, Fold())
	require.Equal(t, PendingNextHand, g.Pending)

	// Seat 1 will post the small blind as dealer with only 3 chips.
	g.Seats[0].Chips += g.Seats[1].Chips - 3
	g.Seats[1].Chips = 3
	require.NoError(t, g.CheckConservation())

	require.NoError(t, g.NextHand(g.Token()))
	assert.True(t, g.Seats[1].AllIn)
	assert.Equal(t, 3, g.Seats[1].TotalBetThisHand)
	assert.Equal(t, 10, g.Table.CurrentBet)

	require.Equal(t, PendingAction, g.Pending)
	require.Equal(t, 0, g.Table.CurrentSeatIndex)
	v := g.ValidActions(0)
	assert.True(t, v.CanCheck)
	assert.False(t, v.CanRaise)

	act(t, g, Check())
	require.Equal(t, PendingReveal, g.Pending)
	for g.Pending == PendingReveal {
		require.NoError(t, g.Reveal(g.Token()))
	}
	require.NoError(t, g.CheckConservation())
}

func TestMaxHandsCompletesGame(t *testing.T) {
	t.Parallel()

	g, err := NewGame("mh", Config{BuyIn: 1000, SmallBlind: 5, BigBlind: 10, MaxHands: 1}, []string{"a", "b"}, 1)
	require.NoError(t, err)
	require.NoError(t, g.Start())
	act(t, g, Fold())

	assert.Equal(t, StatusCompleted, g.Status)
	assert.True(t, g.Done())
	assert.Equal(t, PendingNone, g.Pending)

	s := g.Settlement()
	require.Len(t, s, 2)
	assert.Equal(t, SettlementEntry{SeatIndex: 0, PlayerID: "a", BuyIn: 1000, FinalChips: 995, Profit: -5,
		Stats: Stats{Actions: 1}}, s[0])
	assert.Equal(t, 5, s[1].Profit)
	assert.Equal(t, 1, s[1].Stats.HandsWon)
}

func TestCancelRefundsCurrentHand(t *testing.T) {
	t.Parallel()

	g := startedGame(t, 3, 8)
	act(t, g, RaiseTo(100))
	require.NoError(t, g.Cancel())

	assert.Equal(t, StatusCancelled, g.Status)
	for _, s := range g.Seats {
		assert.Equal(t, 1000, s.Chips)
	}
	require.NoError(t, g.CheckConservation())
	require.ErrorIs(t, g.Cancel(), ErrNotActive)
}

func TestActionNoteUpdatesStats(t *testing.T) {
	t.Parallel()

	g := startedGame(t, 2, 6)
	_, err := g.ApplyAction(g.Token(), Fold(), ActionNote{Timeout: true, Corrections: 1})
	require.NoError(t, err)
	assert.Equal(t, Stats{Actions: 1, Timeouts: 1, Corrections: 1}, g.Seats[0].Stats)

	last := g.Log.Tail(2)
	assert.Equal(t, "fold", last[0].Event)
	assert.Equal(t, "timeout", last[0].Detail)
}

func randomAction(rng *rand.Rand, v ValidActions) Action {
	r := rng.IntN(100)
	switch {
	case r < 8:
		return Fold()
	case r < 30 && v.CanRaise:
		return RaiseTo(v.MinRaiseTotal + rng.IntN(v.MaxRaiseTotal-v.MinRaiseTotal+1))
	case v.CanCheck:
		return Check()
	default:
		return Call()
	}
}

func TestRandomGamesConserveChips(t *testing.T) {
	t.Parallel()

	for seed := int64(1); seed <= 40; seed++ {
		players := 2 + int(seed%7)
		t.Run(fmt.Sprintf("seed%d_%dp", seed, players), func(t *testing.T) {
			t.Parallel()
			g := startedGame(t, players, seed)
			rng := randutil.New(seed * 31)

			for steps := 0; !g.Done(); steps++ {
				require.Less(t, steps, 200000, "game did not terminate")
				tok := g.Token()
				lastSeq := g.TurnSequence
				switch g.Pending {
				case PendingAction:
					_, err := g.ApplyAction(tok, randomAction(rng, g.ValidActions(tok.SeatIndex)), ActionNote{})
					require.NoError(t, err)
				case PendingReveal:
					require.NoError(t, g.Reveal(tok))
				case PendingNextHand:
					require.NoError(t, g.NextHand(tok))
				default:
					require.FailNowf(t, "active game with nothing pending", "%+v", g.Table)
				}
				require.Greater(t, g.TurnSequence, lastSeq)
				require.NoError(t, g.CheckConservation())
			}

			total := 0
			for _, s := range g.Settlement() {
				total += s.FinalChips
			}
			assert.Equal(t, players*testConfig.BuyIn, total)
		})
	}
}

func TestGameJSONRoundTrip(t *testing.T) {
	t.Parallel()

	g := startedGame(t, 4, 12)
	act(t, g, Call())

	var back Game
	require.NoError(t, json.Unmarshal([]byte(snapshot(t, g)), &back))
	assert.Equal(t, g.Token(), back.Token())
	assert.Equal(t, g.Table.Deck, back.Table.Deck)
	assert.Equal(t, g.Seats, back.Seats)
}
