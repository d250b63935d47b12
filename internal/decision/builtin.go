package decision

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sort"
	"sync"

	"github.com/lox/pokerbench/internal/randutil"
)

// ErrUnknownProvider is returned by Builtin for names it does not know.
var ErrUnknownProvider = errors.New("unknown provider")

// CallingStation never folds and never raises.
type CallingStation struct{}

func (CallingStation) Decide(_ context.Context, req Request) (Response, error) {
	if req.Valid.CanCheck {
		return Response{Action: "check"}, nil
	}
	return Response{Action: "call"}, nil
}

// Folder checks when free and folds to any bet.
type Folder struct{}

func (Folder) Decide(_ context.Context, req Request) (Response, error) {
	if req.Valid.CanCheck {
		return Response{Action: "check"}, nil
	}
	return Response{Action: "fold"}, nil
}

// Random picks uniformly among the legal actions, raising the minimum.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{rng: randutil.New(seed)}
}

func (r *Random) Decide(_ context.Context, req Request) (Response, error) {
	legal := []string{"fold"}
	if req.Valid.CanCheck {
		legal = append(legal, "check")
	}
	if req.Valid.CanCall {
		legal = append(legal, "call")
	}
	if req.Valid.CanRaise {
		legal = append(legal, "raise")
	}

	r.mu.Lock()
	action := legal[r.rng.IntN(len(legal))]
	r.mu.Unlock()

	resp := Response{Action: action}
	if action == "raise" {
		amount := req.Valid.MinRaiseTotal
		resp.Amount = &amount
	}
	return resp, nil
}

// Aggressive raises the minimum most of the time and otherwise calls.
type Aggressive struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewAggressive(seed int64) *Aggressive {
	return &Aggressive{rng: randutil.New(seed)}
}

func (a *Aggressive) Decide(_ context.Context, req Request) (Response, error) {
	a.mu.Lock()
	roll := a.rng.Float64()
	a.mu.Unlock()

	if req.Valid.CanRaise && roll < 0.7 {
		amount := req.Valid.MinRaiseTotal
		return Response{Action: "raise", Amount: &amount, Reasoning: "pressure"}, nil
	}
	if req.Valid.CanCall {
		return Response{Action: "call"}, nil
	}
	if req.Valid.CanCheck {
		return Response{Action: "check"}, nil
	}
	return Response{Action: "fold"}, nil
}

var builtins = map[string]func(seed int64) Provider{
	"calling-station": func(int64) Provider { return CallingStation{} },
	"folder":          func(int64) Provider { return Folder{} },
	"random":          func(seed int64) Provider { return NewRandom(seed) },
	"aggressive":      func(seed int64) Provider { return NewAggressive(seed) },
}

// Builtin constructs a named built-in provider.
func Builtin(name string, seed int64) (Provider, error) {
	mk, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return mk(seed), nil
}

// BuiltinNames lists the names Builtin accepts.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Router dispatches each request to the provider registered for its player.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRouter() *Router {
	return &Router{providers: make(map[string]Provider)}
}

// Register sets the provider for playerID, replacing any previous one.
func (r *Router) Register(playerID string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[playerID] = p
}

func (r *Router) Decide(ctx context.Context, req Request) (Response, error) {
	r.mu.RLock()
	p, ok := r.providers[req.PlayerID]
	r.mu.RUnlock()
	if !ok {
		return Response{}, fmt.Errorf("%w: no provider for player %q", ErrProviderError, req.PlayerID)
	}
	return p.Decide(ctx, req)
}
