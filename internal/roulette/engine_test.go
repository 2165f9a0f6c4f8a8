package roulette

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hustled/internal/economy"
	"hustled/internal/kv"
	"hustled/internal/notify"
)

var _ notify.Notifier = (*recordingNotifier)(nil)

// recordingNotifier captures settlement messages for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, _, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func newTestEngine(t *testing.T, delay time.Duration) (*Engine, *kv.Store[economy.Account], *recordingNotifier) {
	t.Helper()
	accounts, err := kv.Open[economy.Account](context.Background(), kv.NewMemorySnapshot())
	require.NoError(t, err)
	notifier := &recordingNotifier{}
	return NewEngine(accounts, notifier, delay, nil), accounts, notifier
}

func seed(t *testing.T, accounts *kv.Store[economy.Account], actorID string, balance int64) {
	t.Helper()
	ctx := context.Background()
	_, err := accounts.GetOrCreate(ctx, actorID, economy.NewAccount)
	require.NoError(t, err)
	_, err = accounts.Update(ctx, actorID, func(acct *economy.Account) error {
		acct.Balance = balance
		return nil
	})
	require.NoError(t, err)
}

func TestPlaceBetEscrowsStakeImmediately(t *testing.T) {
	eng, accounts, _ := newTestEngine(t, 50*time.Millisecond)
	seed(t, accounts, "alice", 1000)

	bet, err := eng.PlaceBet(context.Background(), "alice", "red", 300)
	require.NoError(t, err)
	require.Equal(t, ColorRed, bet.Color)

	acct, _ := accounts.Get("alice")
	require.Equal(t, int64(700), acct.Balance, "stake must leave the balance at placement")

	_, pending := eng.Pending("alice")
	require.True(t, pending)
	eng.Wait()
}

func TestPlaceBetValidation(t *testing.T) {
	eng, accounts, _ := newTestEngine(t, 50*time.Millisecond)
	seed(t, accounts, "alice", 1000)
	ctx := context.Background()

	_, err := eng.PlaceBet(ctx, "alice", "green", 200)
	require.ErrorIs(t, err, ErrInvalidColor)

	_, err = eng.PlaceBet(ctx, "alice", "red", MinimumBet-1)
	require.ErrorIs(t, err, ErrMinimumBetNotMet)

	_, err = eng.PlaceBet(ctx, "alice", "red", 5000)
	require.ErrorIs(t, err, economy.ErrInsufficientFunds)

	acct, _ := accounts.Get("alice")
	require.Equal(t, int64(1000), acct.Balance, "failed placements must not move funds")
}

func TestSecondBetWhilePendingRejected(t *testing.T) {
	eng, accounts, _ := newTestEngine(t, 100*time.Millisecond)
	seed(t, accounts, "alice", 1000)
	ctx := context.Background()

	_, err := eng.PlaceBet(ctx, "alice", "red", 200)
	require.NoError(t, err)
	_, err = eng.PlaceBet(ctx, "alice", "black", 200)
	require.ErrorIs(t, err, ErrBetAlreadyActive)

	acct, _ := accounts.Get("alice")
	require.Equal(t, int64(800), acct.Balance, "only the first stake may be escrowed")
	eng.Wait()
}

func TestSettlementPaysDoubleOrNothing(t *testing.T) {
	eng, accounts, notifier := newTestEngine(t, 30*time.Millisecond)
	seed(t, accounts, "alice", 1000)

	bet, err := eng.PlaceBet(context.Background(), "alice", "red", 400)
	require.NoError(t, err)
	eng.Wait()

	acct, _ := accounts.Get("alice")
	switch acct.Balance {
	case 600 + WinMultiplier*bet.Amount:
		// won: stake escrowed, then double paid back
	case 600:
		// lost: stake stays gone
	default:
		t.Fatalf("balance %d is neither the win nor the loss outcome", acct.Balance)
	}

	_, pending := eng.Pending("alice")
	require.False(t, pending, "settlement must return the actor to idle")
	require.Equal(t, 1, notifier.count(), "one settlement message per bet")
}

func TestNewBetAcceptedAfterSettlement(t *testing.T) {
	eng, accounts, _ := newTestEngine(t, 20*time.Millisecond)
	seed(t, accounts, "alice", 5000)
	ctx := context.Background()

	_, err := eng.PlaceBet(ctx, "alice", "red", 200)
	require.NoError(t, err)
	eng.Wait()

	_, err = eng.PlaceBet(ctx, "alice", "black", 200)
	require.NoError(t, err)
	eng.Wait()
}

func TestIndependentActorsBetConcurrently(t *testing.T) {
	eng, accounts, _ := newTestEngine(t, 30*time.Millisecond)
	ctx := context.Background()
	actors := []string{"a", "b", "c", "d"}
	for _, id := range actors {
		seed(t, accounts, id, 1000)
	}

	for _, id := range actors {
		_, err := eng.PlaceBet(ctx, id, "black", 500)
		require.NoError(t, err)
	}
	eng.Wait()

	for _, id := range actors {
		acct, _ := accounts.Get(id)
		require.Contains(t, []int64{500, 1500}, acct.Balance, "actor %s", id)
	}
}

func TestParseColor(t *testing.T) {
	for input, want := range map[string]Color{" RED ": ColorRed, "black": ColorBlack} {
		got, err := ParseColor(input)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseColor("blue")
	require.ErrorIs(t, err, ErrInvalidColor)
}
