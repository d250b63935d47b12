package poker

import (
	"errors"
	"fmt"
	"sort"
)

// Category is the class of a five-card hand, weakest first. The zero value
// ranks below every real hand.
type Category uint8

const (
	HighCard Category = iota + 1
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	}
	return "No Hand"
}

var (
	// ErrInvalidHandSize is returned unless there are 2 hole cards and 3-5 board cards.
	ErrInvalidHandSize = errors.New("invalid hand size")
	// ErrDuplicateCard is returned when a card appears twice across hole and board.
	ErrDuplicateCard = errors.New("duplicate card")
)

const (
	categoryWeight  = 100_000_000
	primaryWeight   = 1_000_000
	secondaryWeight = 10_000
	kickerBase      = 15
)

// EvaluatedHand is the best five-card hand found for a seat.
type EvaluatedHand struct {
	Category    Category `json:"category"`
	Score       int64    `json:"score"`
	Cards       [5]Card  `json:"cards"`
	Description string   `json:"description"`
}

// WorstHand loses to every evaluated hand. It stands in for a seat whose
// cards could not be evaluated.
var WorstHand = EvaluatedHand{Description: "No Hand"}

// Beats reports whether h strictly outranks other.
func (h EvaluatedHand) Beats(other EvaluatedHand) bool {
	return h.Score > other.Score
}

// Evaluate returns the best five-card hand made from two hole cards and
// three to five board cards.
func Evaluate(hole, board []Card) (EvaluatedHand, error) {
	if len(hole) != 2 || len(board) < 3 || len(board) > 5 {
		return WorstHand, fmt.Errorf("%w: %d hole, %d board", ErrInvalidHandSize, len(hole), len(board))
	}

	all := make([]Card, 0, 7)
	all = append(all, hole...)
	all = append(all, board...)

	var seen [52]bool
	for _, c := range all {
		if !c.Valid() {
			return WorstHand, fmt.Errorf("%w: rank=%d suit=%d", ErrInvalidCard, c.Rank, c.Suit)
		}
		if seen[c.Index()] {
			return WorstHand, fmt.Errorf("%w: %s", ErrDuplicateCard, c)
		}
		seen[c.Index()] = true
	}

	best := WorstHand
	n := len(all)
	var five [5]Card
	for a := 0; a < n-4; a++ {
		for b := a + 1; b < n-3; b++ {
			for c := b + 1; c < n-2; c++ {
				for d := c + 1; d < n-1; d++ {
					for e := d + 1; e < n; e++ {
						five = [5]Card{all[a], all[b], all[c], all[d], all[e]}
						if h := EvaluateFive(five); h.Score > best.Score {
							best = h
						}
					}
				}
			}
		}
	}
	return best, nil
}

type rankGroup struct {
	rank  Rank
	count int
}

// EvaluateFive classifies exactly five cards. The caller guarantees they are
// valid and distinct.
func EvaluateFive(cards [5]Card) EvaluatedHand {
	var counts [Ace + 1]int
	flush := true
	for _, c := range cards {
		counts[c.Rank]++
		if c.Suit != cards[0].Suit {
			flush = false
		}
	}

	groups := make([]rankGroup, 0, 5)
	for r := Ace; r >= Two; r-- {
		if counts[r] > 0 {
			groups = append(groups, rankGroup{rank: r, count: counts[r]})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].count > groups[j].count })

	wheel := false
	straight := false
	if len(groups) == 5 {
		switch {
		case groups[0].rank-groups[4].rank == 4:
			straight = true
		case groups[0].rank == Ace && groups[1].rank == Five:
			straight, wheel = true, true
		}
	}

	// ranked holds the five values in tiebreak order; a wheel ace counts as 1.
	ranked := make([]int, 0, 5)
	for _, g := range groups {
		for range g.count {
			ranked = append(ranked, int(g.rank))
		}
	}
	if wheel {
		ranked = append(ranked[1:], 1)
	}

	var cat Category
	switch {
	case straight && flush && ranked[0] == int(Ace):
		cat = RoyalFlush
	case straight && flush:
		cat = StraightFlush
	case groups[0].count == 4:
		cat = FourOfAKind
	case groups[0].count == 3 && groups[1].count == 2:
		cat = FullHouse
	case flush:
		cat = Flush
	case straight:
		cat = Straight
	case groups[0].count == 3:
		cat = ThreeOfAKind
	case groups[0].count == 2 && groups[1].count == 2:
		cat = TwoPair
	case groups[0].count == 2:
		cat = Pair
	default:
		cat = HighCard
	}

	primary := ranked[0]
	secondary := ranked[groups[0].count]
	if groups[0].count == 5 {
		secondary = 0
	}

	score := int64(cat)*categoryWeight + int64(primary)*primaryWeight + int64(secondary)*secondaryWeight
	weight := int64(1)
	for i := 4; i >= 0; i-- {
		score += int64(ranked[i]) * weight
		weight *= kickerBase
	}

	return EvaluatedHand{
		Category:    cat,
		Score:       score,
		Cards:       orderCards(cards, counts[:], wheel),
		Description: describe(cat, ranked),
	}
}

// orderCards sorts cards into the same order as the tiebreak ranks.
func orderCards(cards [5]Card, counts []int, wheel bool) [5]Card {
	out := cards
	sort.Slice(out[:], func(i, j int) bool {
		ci, cj := counts[out[i].Rank], counts[out[j].Rank]
		if ci != cj {
			return ci > cj
		}
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		return out[i].Suit > out[j].Suit
	})
	if wheel {
		ace := out[0]
		copy(out[:4], out[1:])
		out[4] = ace
	}
	return out
}

func rankName(v int) string {
	if v == 1 {
		return Ace.Name()
	}
	return Rank(v).Name()
}

func rankPlural(v int) string {
	if v == 1 {
		return Ace.Plural()
	}
	return Rank(v).Plural()
}

func describe(cat Category, ranked []int) string {
	switch cat {
	case HighCard:
		return rankName(ranked[0]) + " High"
	case Pair:
		return fmt.Sprintf("Pair of %s, %s kicker", rankPlural(ranked[0]), rankName(ranked[2]))
	case TwoPair:
		return fmt.Sprintf("Two Pair, %s and %s", rankPlural(ranked[0]), rankPlural(ranked[2]))
	case ThreeOfAKind:
		return "Three of a Kind, " + rankPlural(ranked[0])
	case Straight:
		return fmt.Sprintf("Straight, %s High", rankName(ranked[0]))
	case Flush:
		return fmt.Sprintf("Flush, %s High", rankName(ranked[0]))
	case FullHouse:
		return fmt.Sprintf("Full House, %s over %s", rankPlural(ranked[0]), rankPlural(ranked[3]))
	case FourOfAKind:
		return "Four of a Kind, " + rankPlural(ranked[0])
	case StraightFlush:
		return fmt.Sprintf("Straight Flush, %s High", rankName(ranked[0]))
	case RoyalFlush:
		return "Royal Flush"
	}
	return "No Hand"
}
