package poker

import (
	"errors"
	"strings"
	"testing"

	hp "github.com/paulhankin/poker"

	"github.com/lox/pokerbench/internal/randutil"
)

func mustEvaluate(t *testing.T, hole, board string) EvaluatedHand {
	t.Helper()
	h, err := Evaluate(MustParseCards(hole), MustParseCards(board))
	if err != nil {
		t.Fatalf("Evaluate(%s | %s): %v", hole, board, err)
	}
	return h
}

func TestEvaluatePairOfKingsBeatsQueens(t *testing.T) {
	t.Parallel()

	board := "Ks 7h 2c 9d 4c"
	kings := mustEvaluate(t, "Ah Kd", board)
	queens := mustEvaluate(t, "Qs Qh", board)

	if kings.Category != Pair || queens.Category != Pair {
		t.Fatalf("categories %v / %v, want Pair", kings.Category, queens.Category)
	}
	if kings.Description != "Pair of Kings, Ace kicker" {
		t.Errorf("description %q", kings.Description)
	}
	if !strings.HasPrefix(queens.Description, "Pair of Queens") {
		t.Errorf("description %q", queens.Description)
	}
	if !kings.Beats(queens) || kings.Score <= queens.Score {
		t.Errorf("kings %d should beat queens %d", kings.Score, queens.Score)
	}
	if kings.Cards[0].Rank != King || kings.Cards[2].Rank != Ace {
		t.Errorf("best five ordered as %v", kings.Cards)
	}
}

func TestEvaluateWheel(t *testing.T) {
	t.Parallel()

	wheel := mustEvaluate(t, "Ah 2d", "3c 4s 5h")
	if wheel.Category != Straight {
		t.Fatalf("category %v, want Straight", wheel.Category)
	}
	if wheel.Description != "Straight, Five High" {
		t.Errorf("description %q", wheel.Description)
	}
	if wheel.Cards[0].Rank != Five || wheel.Cards[4].Rank != Ace {
		t.Errorf("wheel should be ordered 5-high with ace last, got %v", wheel.Cards)
	}

	sixHigh := mustEvaluate(t, "6h 2d", "3c 4s 5h")
	if !sixHigh.Beats(wheel) {
		t.Error("six-high straight should beat the wheel")
	}
	broadway := mustEvaluate(t, "Ah Kd", "Qc Js Th")
	if !broadway.Beats(sixHigh) {
		t.Error("broadway should beat six-high")
	}
}

func TestEvaluateNoWraparound(t *testing.T) {
	t.Parallel()

	h := mustEvaluate(t, "Qh Kd", "Ac 2s 3h")
	if h.Category != HighCard {
		t.Errorf("Q-K-A-2-3 is not a straight, got %v", h.Category)
	}
}

func TestEvaluateCategories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hole, board string
		want        Category
		desc        string
	}{
		{"Ah Kh", "Qh Jh Th 2c 3d", RoyalFlush, "Royal Flush"},
		{"9s 8s", "7s 6s 5s Ad Ac", StraightFlush, "Straight Flush, Nine High"},
		{"As Ad", "Ah Ac 5s 2d 3c", FourOfAKind, "Four of a Kind, Aces"},
		{"Ks Kd", "Kh 7c 7s 2d 3c", FullHouse, "Full House, Kings over Sevens"},
		{"2h 9h", "Jh 4h Kh 2d 3c", Flush, "Flush, King High"},
		{"9c 8d", "7h 6s 5c Kd 2c", Straight, "Straight, Nine High"},
		{"6s 6d", "6h Ac 9s 2d 3c", ThreeOfAKind, "Three of a Kind, Sixes"},
		{"Js Jd", "4h 4c 9s 2d Ac", TwoPair, "Two Pair, Jacks and Fours"},
		{"Ts 8d", "6h 4c 2s Kd 3c", HighCard, "King High"},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			h := mustEvaluate(t, tc.hole, tc.board)
			if h.Category != tc.want {
				t.Errorf("category %v, want %v", h.Category, tc.want)
			}
			if h.Description != tc.desc {
				t.Errorf("description %q, want %q", h.Description, tc.desc)
			}
		})
	}
}

func TestEvaluateCategoryOrdering(t *testing.T) {
	t.Parallel()

	hands := []EvaluatedHand{
		mustEvaluate(t, "Ts 8d", "6h 4c 2s Kd 3c"),
		mustEvaluate(t, "Js Jd", "8h 4c 9s 2d Ac"),
		mustEvaluate(t, "Js Jd", "4h 4c 9s 2d Ac"),
		mustEvaluate(t, "6s 6d", "6h Ac 9s 2d 3c"),
		mustEvaluate(t, "Ah 2d", "3c 4s 5h 9d Jc"),
		mustEvaluate(t, "2h 9h", "Jh 4h Kh 2d 3c"),
		mustEvaluate(t, "2s 2d", "2h 3c 3s Kd Qc"),
		mustEvaluate(t, "2s 2d", "2h 2c 3s Kd Qc"),
		mustEvaluate(t, "9s 8s", "7s 6s 5s Ad Ac"),
		mustEvaluate(t, "Ah Kh", "Qh Jh Th 2c 3d"),
	}
	for i := 1; i < len(hands); i++ {
		if !hands[i].Beats(hands[i-1]) {
			t.Errorf("%s (%d) should beat %s (%d)",
				hands[i].Description, hands[i].Score, hands[i-1].Description, hands[i-1].Score)
		}
	}
}

func TestEvaluateKickersAndSplits(t *testing.T) {
	t.Parallel()

	board := "Kc Kd 8h 5s 2c"
	aceKicker := mustEvaluate(t, "Ah 3d", board)
	queenKicker := mustEvaluate(t, "Qh 3s", board)
	if !aceKicker.Beats(queenKicker) {
		t.Error("ace kicker should win")
	}

	// Board plays for both: identical score regardless of suits.
	a := mustEvaluate(t, "2h 3d", "Ac Kd Qh Js Tc")
	b := mustEvaluate(t, "4s 2s", "Ac Kd Qh Js Tc")
	if a.Score != b.Score {
		t.Errorf("board straight should tie: %d vs %d", a.Score, b.Score)
	}

	// Two pair secondary beats a higher kicker.
	kingsNines := mustEvaluate(t, "9h 2d", "Kc Ks 9s 3h 4d")
	kingsEightsAce := mustEvaluate(t, "8h Ad", "Kc Ks 8s 3h 4d")
	if !kingsNines.Beats(kingsEightsAce) {
		t.Error("kings and nines should beat kings and eights with an ace")
	}
}

func TestEvaluateErrors(t *testing.T) {
	t.Parallel()

	_, err := Evaluate(MustParseCards("Ah"), MustParseCards("Kd Qs Jc"))
	if !errors.Is(err, ErrInvalidHandSize) {
		t.Errorf("one hole card: got %v", err)
	}
	_, err = Evaluate(MustParseCards("Ah Kh"), MustParseCards("Kd Qs"))
	if !errors.Is(err, ErrInvalidHandSize) {
		t.Errorf("two board cards: got %v", err)
	}
	_, err = Evaluate(MustParseCards("Ah Kh"), MustParseCards("Kd Qs Jc Tc 9c 8c"))
	if !errors.Is(err, ErrInvalidHandSize) {
		t.Errorf("six board cards: got %v", err)
	}
	h, err := Evaluate(MustParseCards("Ah Kh"), MustParseCards("Ah Qs Jc"))
	if !errors.Is(err, ErrDuplicateCard) {
		t.Errorf("duplicate: got %v", err)
	}
	if h != WorstHand {
		t.Error("failed evaluation should return the worst hand")
	}
}

func toOracle(t *testing.T, c Card) hp.Card {
	t.Helper()
	rank := hp.Rank(c.Rank)
	if c.Rank == Ace {
		rank = 1
	}
	suit := [...]hp.Suit{hp.Club, hp.Diamond, hp.Heart, hp.Spade}[c.Suit]
	oc, err := hp.MakeCard(suit, rank)
	if err != nil {
		t.Fatalf("oracle card %v: %v", c, err)
	}
	return oc
}

// Pairwise ordering on random seven-card hands must agree with an
// independent evaluator.
func TestEvaluateMatchesOracle(t *testing.T) {
	t.Parallel()

	rng := randutil.New(2024)
	for i := range 3000 {
		deck := Shuffle(NewDeck(), rng)
		board := deck[4:9]
		holeA, holeB := deck[0:2], deck[2:4]

		a, err := Evaluate(holeA, board)
		if err != nil {
			t.Fatal(err)
		}
		b, err := Evaluate(holeB, board)
		if err != nil {
			t.Fatal(err)
		}

		var sevenA, sevenB [7]hp.Card
		for j, c := range append(append([]Card{}, holeA...), board...) {
			sevenA[j] = toOracle(t, c)
		}
		for j, c := range append(append([]Card{}, holeB...), board...) {
			sevenB[j] = toOracle(t, c)
		}
		oa, ob := hp.Eval7(&sevenA), hp.Eval7(&sevenB)

		if sign(a.Score-b.Score) != sign(int64(oa)-int64(ob)) {
			t.Fatalf("hand %d disagrees: %s [%s] vs %s [%s] on %s",
				i, FormatCards(holeA), a.Description, FormatCards(holeB), b.Description, FormatCards(board))
		}
	}
}

func sign(v int64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
