package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"

	"github.com/lox/pokerbench/internal/game"
	"github.com/lox/pokerbench/internal/ledger"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	winStyle    = cellStyle.Foreground(lipgloss.Color("10"))
	lossStyle   = cellStyle.Foreground(lipgloss.Color("9"))
)

// playerSummary aggregates one player's results over a run.
type playerSummary struct {
	Player string
	Games  int
	Profit int
	Hands  int
	Stats  game.Stats
}

func summarise(games []*game.Game) []playerSummary {
	byPlayer := make(map[string]*playerSummary)
	for _, g := range games {
		for _, e := range g.Settlement() {
			s, ok := byPlayer[e.PlayerID]
			if !ok {
				s = &playerSummary{Player: e.PlayerID}
				byPlayer[e.PlayerID] = s
			}
			s.Games++
			s.Profit += e.Profit
			s.Hands += g.CurrentHandNumber
			s.Stats.Actions += e.Stats.Actions
			s.Stats.Timeouts += e.Stats.Timeouts
			s.Stats.Corrections += e.Stats.Corrections
			s.Stats.ProviderErrors += e.Stats.ProviderErrors
			s.Stats.HandsWon += e.Stats.HandsWon
		}
	}

	out := make([]playerSummary, 0, len(byPlayer))
	for _, s := range byPlayer {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Profit != out[j].Profit {
			return out[i].Profit > out[j].Profit
		}
		return out[i].Player < out[j].Player
	})
	return out
}

func colourProfile(colour bool) termenv.Profile {
	if !colour {
		return termenv.Ascii
	}
	return termenv.NewOutput(os.Stdout).EnvColorProfile()
}

func profitCell(profit int) string {
	if profit > 0 {
		return "+" + strconv.Itoa(profit)
	}
	return strconv.Itoa(profit)
}

// profitStyles colours the profit column green or red per row.
func profitStyles(profits []int) table.StyleFunc {
	return func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case col != 2 || row < 0 || row >= len(profits):
			return cellStyle
		case profits[row] > 0:
			return winStyle
		case profits[row] < 0:
			return lossStyle
		}
		return cellStyle
	}
}

func renderSettlement(rows []playerSummary, colour bool) string {
	lipgloss.SetColorProfile(colourProfile(colour))

	data := make([][]string, len(rows))
	profits := make([]int, len(rows))
	for i, r := range rows {
		profits[i] = r.Profit
		data[i] = []string{
			r.Player,
			strconv.Itoa(r.Games),
			profitCell(r.Profit),
			fmt.Sprintf("%d/%d", r.Stats.HandsWon, r.Hands),
			strconv.Itoa(r.Stats.Actions),
			strconv.Itoa(r.Stats.Timeouts),
			strconv.Itoa(r.Stats.Corrections),
			strconv.Itoa(r.Stats.ProviderErrors),
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PLAYER", "GAMES", "PROFIT", "WON", "ACTIONS", "TIMEOUTS", "CORRECTED", "ERRORS").
		Rows(data...).
		StyleFunc(profitStyles(profits))
	return t.Render()
}

func renderStandings(rows []ledger.Standing, colour bool) string {
	lipgloss.SetColorProfile(colourProfile(colour))

	data := make([][]string, len(rows))
	profits := make([]int, len(rows))
	for i, r := range rows {
		profits[i] = r.Profit
		data[i] = []string{r.PlayerID, strconv.Itoa(r.Games), profitCell(r.Profit), strconv.Itoa(r.Balance)}
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PLAYER", "GAMES", "PROFIT", "BALANCE").
		Rows(data...).
		StyleFunc(profitStyles(profits)).
		Render()
}
