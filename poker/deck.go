package poker

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
)

// ErrDeckExhausted is returned when more cards are requested than remain.
var ErrDeckExhausted = errors.New("deck exhausted")

// NewDeck returns the 52 distinct cards in canonical order.
func NewDeck() []Card {
	cards := make([]Card, 0, 52)
	for _, suit := range Suits {
		for rank := Two; rank <= Ace; rank++ {
			cards = append(cards, Card{Rank: rank, Suit: suit})
		}
	}
	return cards
}

// Shuffle returns a Fisher-Yates permutation of cards. The input is left
// untouched. With a nil rng the global source is used.
func Shuffle(cards []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	for i := len(out) - 1; i > 0; i-- {
		var j int
		if rng != nil {
			j = rng.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Deal takes n cards off the front of deck.
func Deal(deck []Card, n int) (dealt, remaining []Card, err error) {
	if n < 0 || n > len(deck) {
		return nil, deck, fmt.Errorf("%w: want %d, have %d", ErrDeckExhausted, n, len(deck))
	}
	dealt = make([]Card, n)
	copy(dealt, deck[:n])
	return dealt, deck[n:], nil
}
