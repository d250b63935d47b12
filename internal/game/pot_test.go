package game

import (
	"slices"
	"testing"

	"github.com/lox/pokerbench/internal/randutil"
	"github.com/lox/pokerbench/poker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seatsWithBets(bets []int, folded ...int) []Seat {
	seats := make([]Seat, len(bets))
	for i, b := range bets {
		seats[i] = Seat{SeatIndex: i, TotalBetThisHand: b, Folded: slices.Contains(folded, i)}
	}
	return seats
}

func sumPots(pots []Pot) int {
	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	return total
}

func TestBuildPotsFoldedContributionCounted(t *testing.T) {
	t.Parallel()

	pots := BuildPots(seatsWithBets([]int{50, 100, 100}, 0))
	require.Len(t, pots, 1)
	assert.Equal(t, 250, pots[0].Amount)
	assert.Equal(t, []int{1, 2}, pots[0].Eligible)
	assert.True(t, pots[0].Main, "first pot should be the main pot")
}

func TestBuildPotsThreeWayAllIn(t *testing.T) {
	t.Parallel()

	pots := BuildPots(seatsWithBets([]int{50, 150, 150}))
	require.Len(t, pots, 2)
	assert.Equal(t, Pot{Amount: 150, Eligible: []int{0, 1, 2}, Main: true}, pots[0])
	assert.Equal(t, Pot{Amount: 200, Eligible: []int{1, 2}}, pots[1])
	assert.Equal(t, 350, sumPots(pots))
}

func TestBuildPotsFoldedTopLevelNotLost(t *testing.T) {
	t.Parallel()

	// The folded seat put in more than either all-in seat could match.
	pots := BuildPots(seatsWithBets([]int{200, 100, 100}, 0))
	assert.Equal(t, 400, sumPots(pots))
	for _, p := range pots {
		assert.NotContains(t, p.Eligible, 0, "folded seat eligible in %+v", p)
	}
}

func TestBuildPotsConservesRandomContributions(t *testing.T) {
	t.Parallel()

	rng := randutil.New(11)
	for range 500 {
		n := 2 + rng.IntN(7)
		bets := make([]int, n)
		var folded []int
		wagered := 0
		for i := range bets {
			bets[i] = rng.IntN(5) * 50
			// Seat 0 always stays in so some pot has an eligible seat.
			if i == 0 {
				bets[i] += 10
			} else if rng.IntN(3) == 0 {
				folded = append(folded, i)
			}
			wagered += bets[i]
		}

		pots := BuildPots(seatsWithBets(bets, folded...))
		require.Equal(t, wagered, sumPots(pots), "bets %v folded %v", bets, folded)
	}
}

func tiedHands(seats ...int) map[int]poker.EvaluatedHand {
	hands := make(map[int]poker.EvaluatedHand)
	for _, s := range seats {
		hands[s] = poker.EvaluatedHand{Category: poker.Pair, Score: 5}
	}
	return hands
}

func awardsBySeat(awards []Award) map[int]int {
	out := make(map[int]int)
	for _, a := range awards {
		out[a.SeatIndex] += a.Amount
	}
	return out
}

func TestDistributeOddChip(t *testing.T) {
	t.Parallel()

	pots := []Pot{{Amount: 100, Eligible: []int{0, 1, 2}, Main: true}}

	// The remainder goes to the tied seat closest clockwise from the
	// dealer, so the dealer itself receives it last.
	got := awardsBySeat(Distribute(pots, tiedHands(0, 1, 2), 3, 0))
	assert.Equal(t, map[int]int{1: 34, 2: 33, 0: 33}, got, "dealer 0")

	got = awardsBySeat(Distribute(pots, tiedHands(0, 1, 2), 3, 2))
	assert.Equal(t, map[int]int{0: 34, 1: 33, 2: 33}, got, "dealer 2")

	two := []Pot{{Amount: 101, Eligible: []int{0, 1, 2}, Main: true}}
	got = awardsBySeat(Distribute(two, tiedHands(0, 1, 2), 3, 1))
	assert.Equal(t, map[int]int{2: 34, 0: 34, 1: 33}, got, "dealer 1 with two odd chips")
}

func TestDistributeSidePotWinnerDiffers(t *testing.T) {
	t.Parallel()

	pots := BuildPots(seatsWithBets([]int{50, 150, 150}))
	hands := map[int]poker.EvaluatedHand{
		0: {Score: 900},
		1: {Score: 500},
		2: {Score: 100},
	}
	got := awardsBySeat(Distribute(pots, hands, 3, 0))
	assert.Equal(t, 150, got[0])
	assert.Equal(t, 200, got[1])
	assert.Zero(t, got[2])
}

func TestDistributeSplitsOnlyTiedWinners(t *testing.T) {
	t.Parallel()

	pots := []Pot{{Amount: 301, Eligible: []int{0, 1, 3}, Main: true}}
	hands := map[int]poker.EvaluatedHand{
		0: {Score: 700},
		1: {Score: 200},
		3: {Score: 700},
	}
	got := awardsBySeat(Distribute(pots, hands, 4, 1))
	// Seat 3 is two seats after the dealer, seat 0 is three.
	assert.Equal(t, 151, got[3])
	assert.Equal(t, 150, got[0])
	assert.Zero(t, got[1])
}
