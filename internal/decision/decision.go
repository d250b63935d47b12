// Package decision turns untrusted provider output into legal betting
// actions.
//
// Providers return a raw Response. Nothing downstream sees it until it has
// gone through Sanitize, which yields a Decision holding a game.Action that
// is legal for the ValidActions the provider was shown.
package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lox/pokerbench/internal/game"
)

var (
	ErrIllegalAction   = errors.New("illegal action")
	ErrOutOfRangeRaise = errors.New("raise out of range")
	ErrProviderTimeout = errors.New("provider timed out")
	ErrProviderError   = errors.New("provider error")
	ErrUnparseable     = errors.New("unparseable response")
)

// Request is everything a provider is shown for one turn.
type Request struct {
	RequestID string            `json:"request_id"`
	GameID    string            `json:"game_id"`
	PlayerID  string            `json:"player_id"`
	Token     game.TurnToken    `json:"token"`
	Context   string            `json:"context"`
	Valid     game.ValidActions `json:"valid_actions"`
}

// Response is raw provider output. Either Action is set, or Text holds free
// text for Parse.
type Response struct {
	Action    string `json:"action,omitempty"`
	Amount    *int   `json:"amount,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Provider supplies decisions. Implementations must honour ctx cancellation.
type Provider interface {
	Decide(ctx context.Context, req Request) (Response, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (Response, error)

func (f ProviderFunc) Decide(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Decision is a validated action plus a record of what had to be fixed.
type Decision struct {
	Action        game.Action
	Reasoning     string
	Corrections   []error
	Timeout       bool
	ProviderError bool
}

// Note converts the decision into the bookkeeping the game records.
func (d Decision) Note() game.ActionNote {
	return game.ActionNote{
		Timeout:       d.Timeout,
		ProviderError: d.ProviderError,
		Corrections:   len(d.Corrections),
		Reasoning:     d.Reasoning,
	}
}

// Corrected reports whether the provider's answer was changed.
func (d Decision) Corrected() bool {
	return len(d.Corrections) > 0
}

// Fallback is the deterministic action for a turn with no usable answer:
// check when free, otherwise fold.
func Fallback(valid game.ValidActions, cause error) Decision {
	d := Decision{Action: game.Fold()}
	if valid.CanCheck {
		d.Action = game.Check()
	}
	if cause != nil {
		d.Corrections = []error{cause}
		d.Timeout = errors.Is(cause, ErrProviderTimeout)
		d.ProviderError = !d.Timeout
	}
	return d
}

// FromError maps a failed provider call to a fallback decision.
func FromError(valid game.ValidActions, err error) Decision {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrProviderTimeout) {
		return Fallback(valid, fmt.Errorf("%w: %v", ErrProviderTimeout, err))
	}
	return Fallback(valid, fmt.Errorf("%w: %v", ErrProviderError, err))
}

// Sanitize validates a raw response against the legal actions, correcting
// illegal kinds and clamping raises. It never fails.
func Sanitize(resp Response, valid game.ValidActions) Decision {
	if resp.Action == "" && resp.Text != "" {
		parsed, err := Parse(resp.Text)
		if err != nil {
			d := Fallback(valid, err)
			d.Reasoning = resp.Reasoning
			return d
		}
		if parsed.Reasoning == "" {
			parsed.Reasoning = resp.Reasoning
		}
		resp = parsed
	}

	d := Decision{Reasoning: strings.TrimSpace(resp.Reasoning)}
	kind, allIn := normalizeAction(resp.Action)
	amount := resp.Amount
	if allIn {
		m := valid.MaxRaiseTotal
		amount = &m
	}

	switch kind {
	case game.ActionFold:
		d.Action = game.Fold()

	case game.ActionCheck:
		switch {
		case valid.CanCheck:
			d.Action = game.Check()
		case valid.CanCall:
			d.illegal(kind, game.Call())
		default:
			d.illegal(kind, game.Fold())
		}

	case game.ActionCall:
		switch {
		case valid.CanCall:
			d.Action = game.Call()
		case valid.CanCheck:
			d.illegal(kind, game.Check())
		default:
			d.illegal(kind, game.Fold())
		}

	case game.ActionRaise:
		switch {
		case valid.CanRaise:
			d.Action = game.RaiseTo(d.clampRaise(amount, valid))
		case allIn && valid.CanCall:
			// Shoving when a raise is closed means calling off the stack.
			d.Action = game.Call()
		case valid.CanCall:
			d.illegal(kind, game.Call())
		case valid.CanCheck:
			d.illegal(kind, game.Check())
		default:
			d.illegal(kind, game.Fold())
		}

	default:
		fb := Fallback(valid, nil)
		d.Action = fb.Action
		d.Corrections = append(d.Corrections, fmt.Errorf("%w: unknown action %q", ErrIllegalAction, resp.Action))
	}
	return d
}

func (d *Decision) illegal(asked game.ActionKind, replacement game.Action) {
	d.Action = replacement
	d.Corrections = append(d.Corrections, fmt.Errorf("%w: %s not allowed, using %s", ErrIllegalAction, asked, replacement.Kind))
}

func (d *Decision) clampRaise(amount *int, valid game.ValidActions) int {
	if amount == nil {
		d.Corrections = append(d.Corrections, fmt.Errorf("%w: no amount, using minimum %d", ErrOutOfRangeRaise, valid.MinRaiseTotal))
		return valid.MinRaiseTotal
	}
	clamped := valid.ClampRaise(*amount)
	if clamped != *amount {
		d.Corrections = append(d.Corrections, fmt.Errorf("%w: %d clamped to %d (range %d-%d)",
			ErrOutOfRangeRaise, *amount, clamped, valid.MinRaiseTotal, valid.MaxRaiseTotal))
	}
	return clamped
}

// normalizeAction maps provider spellings onto an action kind. allIn is set
// for shove synonyms, which become a raise to the maximum.
func normalizeAction(s string) (kind game.ActionKind, allIn bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
	switch s {
	case "fold":
		return game.ActionFold, false
	case "check":
		return game.ActionCheck, false
	case "call":
		return game.ActionCall, false
	case "raise", "bet", "raiseto", "betto":
		return game.ActionRaise, false
	case "allin", "shove", "jam", "push":
		return game.ActionRaise, true
	}
	return "", false
}
