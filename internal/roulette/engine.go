// Package roulette is the timed wager settlement engine. Each actor holds
// at most one pending bet; the stake is escrowed from their balance up
// front and the outcome is resolved after a fixed delay, independent of
// whatever else happens to the account in the meantime.
package roulette

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"hustled/internal/economy"
	"hustled/internal/kv"
	"hustled/internal/notify"
)

const (
	MinimumBet    = int64(100)
	DefaultDelay  = 30 * time.Second
	WinMultiplier = int64(2)
)

var (
	ErrBetAlreadyActive = errors.New("a bet is already active for this actor")
	ErrInvalidColor     = errors.New("color must be red or black")
	ErrMinimumBetNotMet = fmt.Errorf("minimum bet is %d", MinimumBet)
)

type Color string

const (
	ColorRed   Color = "red"
	ColorBlack Color = "black"
)

func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ColorRed):
		return ColorRed, nil
	case string(ColorBlack):
		return ColorBlack, nil
	default:
		return "", ErrInvalidColor
	}
}

// Bet is a pending wager in escrow.
type Bet struct {
	ActorID   string    `json:"actor_id"`
	Color     Color     `json:"color"`
	Amount    int64     `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
	ResolveAt time.Time `json:"resolve_at"`
}

// Result is pushed through the notifier once a bet settles.
type Result struct {
	ActorID string `json:"actor_id"`
	Color   Color  `json:"color"`
	Winning Color  `json:"winning"`
	Amount  int64  `json:"amount"`
	Won     bool   `json:"won"`
	Payout  int64  `json:"payout"`
}

type Engine struct {
	accounts *kv.Store[economy.Account]
	notifier notify.Notifier
	log      *slog.Logger
	delay    time.Duration

	mu      sync.Mutex
	pending map[string]Bet

	randMu sync.Mutex
	rand   *mathrand.Rand

	wg sync.WaitGroup
}

func NewEngine(accounts *kv.Store[economy.Account], notifier notify.Notifier, delay time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Engine{
		accounts: accounts,
		notifier: notifier,
		log:      logger,
		delay:    delay,
		pending:  map[string]Bet{},
		rand:     mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

// PlaceBet validates and escrows a wager, then arms its settlement timer.
// The engine-level mutex is held across the escrow debit, so a second bet
// from the same actor can never slip in between the idle check and the
// pending transition.
func (e *Engine) PlaceBet(ctx context.Context, actorID, colorStr string, amount int64) (Bet, error) {
	color, err := ParseColor(colorStr)
	if err != nil {
		return Bet{}, err
	}
	if amount < MinimumBet {
		return Bet{}, ErrMinimumBetNotMet
	}
	if _, err := e.accounts.GetOrCreate(ctx, actorID, economy.NewAccount); err != nil {
		return Bet{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pending[actorID]; ok {
		return Bet{}, ErrBetAlreadyActive
	}

	if _, err := e.accounts.Update(ctx, actorID, func(acct *economy.Account) error {
		if acct.Balance < amount {
			return economy.ErrInsufficientFunds
		}
		acct.Balance -= amount
		return nil
	}); err != nil {
		return Bet{}, err
	}

	now := time.Now()
	bet := Bet{
		ActorID:   actorID,
		Color:     color,
		Amount:    amount,
		PlacedAt:  now,
		ResolveAt: now.Add(e.delay),
	}
	e.pending[actorID] = bet

	e.wg.Add(1)
	go e.settleAfterDelay(bet)
	return bet, nil
}

// Pending returns the actor's bet while one is armed.
func (e *Engine) Pending(actorID string) (Bet, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	bet, ok := e.pending[actorID]
	return bet, ok
}

// Wait blocks until every armed settlement has resolved. Used on shutdown
// so in-flight wagers finish before the process exits.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// settleAfterDelay runs the uncancellable resolution: user actions cannot
// stop it, and it proceeds even if the placing context is long gone.
func (e *Engine) settleAfterDelay(bet Bet) {
	defer e.wg.Done()
	timer := time.NewTimer(time.Until(bet.ResolveAt))
	defer timer.Stop()
	<-timer.C

	winning := ColorRed
	if e.coinFlip() {
		winning = ColorBlack
	}

	// Return to idle before the payout lands so a fresh bet is accepted
	// immediately after resolution.
	e.mu.Lock()
	delete(e.pending, bet.ActorID)
	e.mu.Unlock()

	result := Result{
		ActorID: bet.ActorID,
		Color:   bet.Color,
		Winning: winning,
		Amount:  bet.Amount,
		Won:     bet.Color == winning,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if result.Won {
		result.Payout = WinMultiplier * bet.Amount
		if _, err := e.accounts.Update(ctx, bet.ActorID, func(acct *economy.Account) error {
			acct.Balance += result.Payout
			return nil
		}); err != nil {
			e.log.Error("settlement payout failed", "actor_id", bet.ActorID, "amount", result.Payout, "err", err)
		}
	}

	var msg string
	if result.Won {
		msg = fmt.Sprintf("The ball has chosen %s! You won %d!", strings.ToUpper(string(winning)), result.Payout)
	} else {
		msg = fmt.Sprintf("The ball has chosen %s. You lost your %d bet.", strings.ToUpper(string(winning)), bet.Amount)
	}
	if err := e.notifier.Notify(ctx, bet.ActorID, msg); err != nil {
		e.log.Warn("settlement notification failed", "actor_id", bet.ActorID, "err", err)
	}
}

func (e *Engine) coinFlip() bool {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rand.Intn(2) == 1
}
