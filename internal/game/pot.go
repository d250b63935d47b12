package game

import (
	"slices"
	"sort"

	"github.com/lox/pokerbench/poker"
)

// Pot is one main or side pot. Eligible holds seat indices of the
// non-folded seats that covered this contribution level.
type Pot struct {
	Amount   int   `json:"amount"`
	Eligible []int `json:"eligible"`
	Main     bool  `json:"main"`
}

// BuildPots layers the seats' TotalBetThisHand into a main pot and side
// pots. Folded seats contribute chips but are never eligible. The amounts
// always sum to the total wagered, except for chips on a level with no
// eligible seat, which cannot occur while any seat remains in the hand.
func BuildPots(seats []Seat) []Pot {
	levels := make([]int, 0, len(seats))
	for _, s := range seats {
		if s.TotalBetThisHand > 0 && !slices.Contains(levels, s.TotalBetThisHand) {
			levels = append(levels, s.TotalBetThisHand)
		}
	}
	sort.Ints(levels)

	var pots []Pot
	carry := 0
	prev := 0
	for _, level := range levels {
		increment := level - prev
		prev = level

		amount := carry
		var eligible []int
		for _, s := range seats {
			if s.TotalBetThisHand >= level {
				amount += increment
				if !s.Folded {
					eligible = append(eligible, s.SeatIndex)
				}
			}
		}
		if amount == 0 {
			continue
		}
		// Chips from a level where everyone folded roll up into the next level
		// so nothing is lost.
		if len(eligible) == 0 {
			carry = amount
			continue
		}
		carry = 0

		// Adjacent levels with the same eligible set are one pot.
		if n := len(pots); n > 0 && slices.Equal(pots[n-1].Eligible, eligible) {
			pots[n-1].Amount += amount
			continue
		}
		pots = append(pots, Pot{Amount: amount, Eligible: eligible, Main: len(pots) == 0})
	}
	if carry > 0 && len(pots) > 0 {
		pots[len(pots)-1].Amount += carry
	}
	return pots
}

// Award is chips won from a single pot.
type Award struct {
	SeatIndex int `json:"seat_index"`
	PotIndex  int `json:"pot_index"`
	Amount    int `json:"amount"`
}

// Distribute splits each pot among the eligible seats holding the best hand.
// Odd chips go one at a time to the tied winners nearest the dealer,
// clockwise. Pots are settled side pots first; each is independent.
func Distribute(pots []Pot, hands map[int]poker.EvaluatedHand, numSeats, dealer int) []Award {
	var awards []Award
	for pi := len(pots) - 1; pi >= 0; pi-- {
		pot := pots[pi]
		if pot.Amount <= 0 || len(pot.Eligible) == 0 {
			continue
		}

		var winners []int
		best := int64(-1)
		for _, seat := range pot.Eligible {
			h, ok := hands[seat]
			if !ok {
				continue
			}
			switch {
			case h.Score > best:
				best = h.Score
				winners = []int{seat}
			case h.Score == best:
				winners = append(winners, seat)
			}
		}
		if len(winners) == 0 {
			winners = slices.Clone(pot.Eligible)
		}

		sort.Slice(winners, func(i, j int) bool {
			return seatDistance(winners[i], dealer, numSeats) < seatDistance(winners[j], dealer, numSeats)
		})

		share := pot.Amount / len(winners)
		remainder := pot.Amount % len(winners)
		for i, seat := range winners {
			amount := share
			if i < remainder {
				amount++
			}
			awards = append(awards, Award{SeatIndex: seat, PotIndex: pi, Amount: amount})
		}
	}
	return awards
}

// seatDistance is how many seats clockwise from the dealer seat lies. The
// dealer itself is furthest, acting last.
func seatDistance(seat, dealer, numSeats int) int {
	d := ((seat-dealer)%numSeats + numSeats) % numSeats
	if d == 0 {
		d = numSeats
	}
	return d
}
