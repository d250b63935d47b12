// Package game holds the authoritative record of one AI-vs-AI Hold'em game
// and the pure rules that mutate it.
//
// # Architecture
//
// A Game is a plain value that is loaded from a store, mutated by exactly one
// writer and saved back. Every committed change bumps TurnSequence, and the
// current decision opportunity is identified by a TurnToken:
//
//	tok := g.Token()
//	err := g.ApplyAction(tok, game.Call(), game.ActionNote{})
//
// A token that no longer matches yields ErrStaleToken and leaves the game
// untouched, which is how late decisions and expired timeouts are discarded.
//
// The game is always waiting on exactly one thing, reported by Pending:
//   - PendingAction: a decision from the seat at Table.CurrentSeatIndex
//   - PendingReveal: the next street of an all-in runout
//   - PendingNextHand: the pause between hands
//   - PendingNone: nothing, the game is over
//
// Betting (betting.go) and pots (pot.go) are pure functions over the record;
// hand.go drives the street state machine.
package game
