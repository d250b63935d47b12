package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/pokerbench/internal/decision"
	"github.com/lox/pokerbench/internal/game"
	"github.com/lox/pokerbench/internal/gameid"
	"github.com/lox/pokerbench/internal/ledger"
	"github.com/lox/pokerbench/internal/randutil"
	"github.com/lox/pokerbench/internal/store"
)

// ErrClosed is returned once the runner has been shut down.
var ErrClosed = errors.New("runner closed")

// Timing controls the pauses between automated steps.
type Timing struct {
	TurnTimeout   time.Duration
	RevealDelay   time.Duration
	NextHandDelay time.Duration
}

// DefaultTiming is used for any zero field in Options.Timing.
var DefaultTiming = Timing{
	TurnTimeout:   30 * time.Second,
	RevealDelay:   1500 * time.Millisecond,
	NextHandDelay: 3 * time.Second,
}

// Options configures a Runner. Store and Provider are required.
type Options struct {
	Store     store.Store
	Provider  decision.Provider
	Ledger    ledger.Ledger
	Clock     quartz.Clock
	Scheduler Scheduler
	Logger    *log.Logger
	IDs       *gameid.Generator
	Timing    Timing
	// OnHand is called once for every finished hand, after it is stored.
	OnHand func(g *game.Game)
}

// GameSpec describes a game to create.
type GameSpec struct {
	Players []string
	Config  game.Config
	// Seed fixes the shuffle of every hand. Zero picks a random seed.
	Seed int64
}

// Runner drives games autonomously. All changes to a game go through
// Handle, which applies one message inside a store patch; scheduled
// timeouts and provider replies only ever produce messages.
type Runner struct {
	store    store.Store
	provider decision.Provider
	ledger   ledger.Ledger
	clock    quartz.Clock
	sched    Scheduler
	logger   *log.Logger
	ids      *gameid.Generator
	timing   Timing
	onHand   func(g *game.Game)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	done   map[string]chan struct{}
	turns  map[string]*turn
}

// turn is the outstanding work for one pending decision.
type turn struct {
	cancel context.CancelFunc

	mu    sync.Mutex
	stop  func() bool
	ended bool
}

// arm records the timeout's stop function, disarming it at once if the
// turn has already ended.
func (t *turn) arm(stop func() bool) {
	t.mu.Lock()
	t.stop = stop
	ended := t.ended
	t.mu.Unlock()
	if ended {
		stop()
	}
}

// end cancels the provider call and disarms the timeout.
func (t *turn) end() {
	t.cancel()
	t.mu.Lock()
	t.ended = true
	stop := t.stop
	t.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func NewRunner(opts Options) *Runner {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = ClockScheduler{Clock: opts.Clock}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.IDs == nil {
		opts.IDs = gameid.NewGenerator(nil)
	}
	if opts.Timing.TurnTimeout <= 0 {
		opts.Timing.TurnTimeout = DefaultTiming.TurnTimeout
	}
	if opts.Timing.RevealDelay < 0 {
		opts.Timing.RevealDelay = 0
	}
	if opts.Timing.NextHandDelay < 0 {
		opts.Timing.NextHandDelay = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:    opts.Store,
		provider: opts.Provider,
		ledger:   opts.Ledger,
		clock:    opts.Clock,
		sched:    opts.Scheduler,
		logger:   opts.Logger.WithPrefix("runner"),
		ids:      opts.IDs,
		timing:   opts.Timing,
		onHand:   opts.OnHand,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(map[string]chan struct{}),
		turns:    make(map[string]*turn),
	}
}

// CreateGame seats the players, reserves their buy-ins and stores the game
// in the waiting state.
func (r *Runner) CreateGame(ctx context.Context, spec GameSpec) (*game.Game, error) {
	seed := spec.Seed
	if seed == 0 {
		seed = randutil.Seed()
	}
	g, err := game.NewGame(r.ids.Generate(), spec.Config, spec.Players, seed)
	if err != nil {
		return nil, err
	}
	g.CreatedAt = r.clock.Now().UTC()
	g.UpdatedAt = g.CreatedAt

	if r.ledger != nil {
		if err := r.ledger.ReserveBuyIns(ctx, g.ID, spec.Players, spec.Config.BuyIn); err != nil {
			return nil, fmt.Errorf("reserve buy-ins: %w", err)
		}
	}
	if err := r.store.Create(ctx, g); err != nil {
		r.refund(ctx, g)
		return nil, err
	}

	r.mu.Lock()
	r.done[g.ID] = make(chan struct{})
	r.mu.Unlock()

	r.logger.Info("Game created", "game", g.ID, "players", len(g.Seats), "buyIn", g.Config.BuyIn, "seed", g.Seed)
	return g, nil
}

// Start deals the first hand and hands control to the scheduler.
func (r *Runner) Start(ctx context.Context, id string) error {
	if r.isClosed() {
		return ErrClosed
	}
	g, err := r.store.Patch(ctx, id, func(g *game.Game) error {
		return g.Start()
	})
	if err != nil {
		return err
	}
	r.logger.Info("Game started", "game", id)
	r.follow(g)
	return nil
}

// Play creates and starts a game.
func (r *Runner) Play(ctx context.Context, spec GameSpec) (*game.Game, error) {
	g, err := r.CreateGame(ctx, spec)
	if err != nil {
		return nil, err
	}
	if err := r.Start(ctx, g.ID); err != nil {
		if cerr := r.Cancel(context.WithoutCancel(ctx), g.ID); cerr != nil {
			r.logger.Error("Failed to cancel unstarted game", "game", g.ID, "error", cerr)
		}
		return nil, err
	}
	return g, nil
}

// refund returns the reserved buy-ins of a game that never got stored.
func (r *Runner) refund(ctx context.Context, g *game.Game) {
	if r.ledger == nil {
		return
	}
	if err := r.ledger.Settle(context.WithoutCancel(ctx), g.ID, g.Settlement()); err != nil {
		r.logger.Error("Failed to refund buy-ins", "game", g.ID, "error", err)
	}
}

// Handle applies msg to its game. A message whose token no longer names
// the game's pending step changes nothing and returns game.ErrStaleToken.
func (r *Runner) Handle(ctx context.Context, msg Message) error {
	var applied game.Applied
	g, err := r.store.Patch(ctx, msg.GameID, func(g *game.Game) error {
		var err error
		switch msg.Kind {
		case KindDecision:
			applied, err = g.ApplyAction(msg.Token, msg.Decision.Action, msg.Decision.Note())
		case KindTimeout:
			d := decision.Fallback(game.ValidActions{}, decision.ErrProviderTimeout)
			if g.CurrentSeat() != nil && g.Token() == msg.Token {
				d = decision.Fallback(g.ValidActions(msg.Token.SeatIndex), decision.ErrProviderTimeout)
			}
			applied, err = g.ApplyAction(msg.Token, d.Action, d.Note())
		case KindReveal:
			err = g.Reveal(msg.Token)
		case KindNextHand:
			err = g.NextHand(msg.Token)
		default:
			err = fmt.Errorf("unknown message kind %q", msg.Kind)
		}
		return err
	})
	if err != nil {
		return err
	}

	logger := r.logger.With("game", msg.GameID, "hand", msg.Token.HandNumber)
	switch msg.Kind {
	case KindDecision, KindTimeout:
		r.endTurn(msg.GameID)
		logger.Debug("Action applied",
			"seat", msg.Token.SeatIndex,
			"action", applied.Action.Kind,
			"amount", applied.Action.Amount,
			"allIn", applied.AllIn,
			"reopened", applied.Reopened,
			"timeout", msg.Kind == KindTimeout)
	case KindReveal:
		logger.Debug("Street revealed", "phase", g.Table.Phase, "board", len(g.Table.CommunityCards))
	case KindNextHand:
		logger.Debug("Hand started", "hand", g.CurrentHandNumber, "dealer", g.Table.DealerSeatIndex)
	}

	if handFinished(g) {
		if errs := g.LastHand.EvalErrors; len(errs) > 0 {
			logger.Error("Hand evaluation failed", "errors", errs)
		}
		if r.onHand != nil {
			r.onHand(g)
		}
	}
	r.follow(g)
	return nil
}

// handFinished reports whether the last applied message ended a hand.
func handFinished(g *game.Game) bool {
	if g.LastHand == nil || g.LastHand.HandNumber != g.CurrentHandNumber {
		return false
	}
	return g.Pending == game.PendingNextHand || g.Status == game.StatusCompleted
}

// Cancel stops a game, refunding the hand in progress, and settles it.
func (r *Runner) Cancel(ctx context.Context, id string) error {
	g, err := r.store.Patch(ctx, id, func(g *game.Game) error {
		return g.Cancel()
	})
	if err != nil {
		return err
	}
	r.endTurn(id)
	r.logger.Info("Game cancelled", "game", id)
	r.follow(g)
	return nil
}

// Wait blocks until the game has completed or been cancelled and returns
// its final state.
func (r *Runner) Wait(ctx context.Context, id string) (*game.Game, error) {
	r.mu.Lock()
	ch := r.done[id]
	r.mu.Unlock()

	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.ctx.Done():
			return nil, ErrClosed
		}
	}
	g, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !g.Done() {
		return g, fmt.Errorf("%w: game %s is %s", game.ErrNotActive, id, g.Status)
	}
	return g, nil
}

// Close stops scheduling new work and waits for in-flight work to finish.
// Games in progress stay in the store as they are.
func (r *Runner) Close() error {
	r.mu.Lock()
	r.closed = true
	turns := r.turns
	r.turns = make(map[string]*turn)
	r.mu.Unlock()
	for _, t := range turns {
		t.end()
	}

	r.cancel()
	r.wg.Wait()
	return nil
}

func (r *Runner) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// spawn runs fn in a tracked goroutine unless the runner is closed.
func (r *Runner) spawn(fn func()) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		fn()
	}()
	return true
}

// dispatch feeds a message to Handle from a background source.
func (r *Runner) dispatch(msg Message) {
	if r.ctx.Err() != nil {
		return
	}
	err := r.Handle(r.ctx, msg)
	switch {
	case err == nil:
	case errors.Is(err, game.ErrStaleToken), errors.Is(err, game.ErrNotActive):
		r.logger.Debug("Dropped stale message", "game", msg.GameID, "kind", msg.Kind, "token", msg.Token.String())
	case errors.Is(err, context.Canceled):
	default:
		r.logger.Error("Failed to apply message", "game", msg.GameID, "kind", msg.Kind, "error", err)
	}
}

// after schedules msg to be dispatched once d has elapsed and returns the
// function that disarms it.
func (r *Runner) after(d time.Duration, msg Message) func() bool {
	return r.sched.ScheduleAfter(d, func() {
		r.spawn(func() { r.dispatch(msg) })
	})
}

// follow schedules whatever the game is now waiting on.
func (r *Runner) follow(g *game.Game) {
	logger := r.logger.With("game", g.ID)
	if err := g.CheckConservation(); err != nil {
		logger.Error("Chip audit failed", "hand", g.CurrentHandNumber, "error", err)
	}

	switch {
	case g.Done():
		r.finish(g)
	case g.Pending == game.PendingAction:
		r.requestDecision(g)
	case g.Pending == game.PendingReveal:
		r.after(r.timing.RevealDelay, Message{GameID: g.ID, Kind: KindReveal, Token: g.Token()})
	case g.Pending == game.PendingNextHand:
		if h := g.LastHand; h != nil {
			logger.Info("Hand complete", "hand", h.HandNumber, "foldWin", h.FoldWin, "pots", len(h.Pots), "awards", len(h.Awards))
		}
		r.after(r.timing.NextHandDelay, Message{GameID: g.ID, Kind: KindNextHand, Token: g.Token()})
	}
}

// requestDecision asks the provider for the pending seat's action and arms
// the turn timeout. Whichever message lands first wins; the other is stale.
func (r *Runner) requestDecision(g *game.Game) {
	tok := g.Token()
	seat := g.CurrentSeat()
	valid := g.ValidActions(tok.SeatIndex)
	req := decision.Request{
		RequestID: uuid.NewString(),
		GameID:    g.ID,
		PlayerID:  seat.PlayerID,
		Token:     tok,
		Context:   game.Describe(g, tok.SeatIndex),
		Valid:     valid,
	}

	timeout := g.Config.TurnTimeout
	if timeout <= 0 {
		timeout = r.timing.TurnTimeout
	}

	turnCtx, cancel := context.WithCancel(r.ctx)
	t := &turn{cancel: cancel}
	r.mu.Lock()
	prev := r.turns[g.ID]
	r.turns[g.ID] = t
	r.mu.Unlock()
	if prev != nil {
		prev.end()
	}

	t.arm(r.after(timeout, Message{GameID: g.ID, Kind: KindTimeout, Token: tok}))

	logger := r.logger.With("game", g.ID, "player", seat.PlayerID)
	ok := r.spawn(func() {
		resp, err := r.provider.Decide(turnCtx, req)
		if turnCtx.Err() != nil && err != nil {
			// The turn was resolved or the runner stopped while waiting.
			return
		}

		var d decision.Decision
		if err != nil {
			d = decision.FromError(valid, err)
			logger.Warn("Provider failed, using fallback", "action", d.Action.Kind, "error", err)
		} else {
			d = decision.Sanitize(resp, valid)
			if d.Corrected() {
				logger.Warn("Corrected provider decision", "action", d.Action.Kind, "reasons", d.Corrections)
			}
		}
		r.dispatch(Message{GameID: g.ID, Kind: KindDecision, Token: tok, Decision: d})
	})
	if !ok {
		cancel()
	}
}

// endTurn cancels the provider call and the timeout for the turn that just
// resolved.
func (r *Runner) endTurn(id string) {
	r.mu.Lock()
	t, ok := r.turns[id]
	delete(r.turns, id)
	r.mu.Unlock()
	if ok {
		t.end()
	}
}

// finish settles a completed or cancelled game and releases waiters.
func (r *Runner) finish(g *game.Game) {
	logger := r.logger.With("game", g.ID)

	entries := g.Settlement()
	total := 0
	for _, e := range entries {
		total += e.FinalChips
	}
	if want := g.Config.BuyIn * len(entries); total != want {
		logger.Error("Final chips do not match buy-ins", "have", total, "want", want)
	}

	if r.ledger != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := r.ledger.Settle(ctx, g.ID, entries); err != nil {
			logger.Error("Failed to settle game", "error", err)
		} else {
			logger.Info("Game settled", "players", len(entries))
		}
		cancel()
	}
	logger.Info("Game finished", "status", g.Status, "hands", g.CurrentHandNumber)

	r.mu.Lock()
	ch := r.done[g.ID]
	delete(r.done, g.ID)
	r.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}
