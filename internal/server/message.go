package server

import (
	"fmt"

	"github.com/lox/pokerbench/internal/decision"
	"github.com/lox/pokerbench/internal/game"
)

// MessageKind names the event a message carries into a game.
type MessageKind string

const (
	KindDecision MessageKind = "decision"
	KindTimeout  MessageKind = "turn_timeout"
	KindReveal   MessageKind = "reveal"
	KindNextHand MessageKind = "next_hand"
)

// Message is one event for a game. Every message carries the token of the
// step it was issued for; the game rejects it if that step has passed.
type Message struct {
	GameID   string
	Kind     MessageKind
	Token    game.TurnToken
	Decision decision.Decision
}

func (m Message) String() string {
	return fmt.Sprintf("%s %s@%s", m.Kind, m.GameID, m.Token)
}
