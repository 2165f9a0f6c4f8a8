package economy

import (
	"context"
	"errors"
	"testing"
	"time"

	"hustled/internal/kv"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := kv.Open[Account](context.Background(), kv.NewMemorySnapshot())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return NewService(store, nil, nil)
}

func TestGetOrCreateSeedsStarterBalance(t *testing.T) {
	svc := newTestService(t)
	acct, err := svc.GetOrCreate(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.Balance != StarterBalance {
		t.Fatalf("got %d want %d", acct.Balance, StarterBalance)
	}
}

func TestWorkPaysWithinScenarioRange(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	result, err := svc.Work(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Payout < 40 || result.Payout > 200 {
		t.Fatalf("payout %d outside any scenario range", result.Payout)
	}
	if result.Balance != StarterBalance+result.Payout {
		t.Fatalf("balance %d, want %d", result.Balance, StarterBalance+result.Payout)
	}
}

func TestWorkCooldownGates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Work(ctx, "alice"); err != nil {
		t.Fatalf("first work: %v", err)
	}
	_, err := svc.Work(ctx, "alice")
	var cooldown *CooldownError
	if !errors.As(err, &cooldown) {
		t.Fatalf("expected CooldownError, got %v", err)
	}
	if time.Until(cooldown.NextEligible) > WorkCooldown {
		t.Fatalf("next eligible too far out: %v", cooldown.NextEligible)
	}
}

func TestWorkJobBonusMultiplies(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.GetOrCreate(ctx, "dev"); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if _, err := svc.Accounts().Update(ctx, "dev", func(acct *Account) error {
		acct.Job = "Developer"
		return nil
	}); err != nil {
		t.Fatalf("set job: %v", err)
	}

	result, err := svc.Work(ctx, "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Multiplier != 1.8 {
		t.Fatalf("multiplier %v, want 1.8", result.Multiplier)
	}
	want := int64(float64(result.Base) * 1.8)
	if result.Payout != want {
		t.Fatalf("payout %d, want %d", result.Payout, want)
	}
}

func TestRobSelfTargetRejected(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Rob(context.Background(), "alice", "alice"); !errors.Is(err, ErrSelfTarget) {
		t.Fatalf("expected ErrSelfTarget, got %v", err)
	}
}

func TestRobBrokeTargetRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, "robber", 1000); err != nil {
		t.Fatalf("seed robber: %v", err)
	}
	if _, err := svc.GetOrCreate(ctx, "victim"); err != nil {
		t.Fatalf("seed victim: %v", err)
	}
	if _, err := svc.Accounts().Update(ctx, "victim", func(acct *Account) error {
		acct.Balance = RobMinBalance - 1
		return nil
	}); err != nil {
		t.Fatalf("drain victim: %v", err)
	}

	_, err := svc.Rob(ctx, "robber", "victim")
	if !errors.Is(err, ErrTargetInsufficientFunds) {
		t.Fatalf("expected target insufficient funds, got %v", err)
	}
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatal("target error must still match the broad insufficient funds class")
	}
}

func TestRobConservesTotalFundsOnSuccessPath(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, "robber", 900); err != nil {
		t.Fatalf("seed robber: %v", err)
	}
	if _, err := svc.Credit(ctx, "victim", 900); err != nil {
		t.Fatalf("seed victim: %v", err)
	}

	result, err := svc.Rob(ctx, "robber", "victim")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	robber, _ := svc.GetOrCreate(ctx, "robber")
	victim, _ := svc.GetOrCreate(ctx, "victim")
	if result.Success {
		if robber.Balance+victim.Balance != 2000 {
			t.Fatalf("successful robbery must conserve funds: %d + %d", robber.Balance, victim.Balance)
		}
		if result.Amount < RobStealFloor || result.Amount > RobStealCeiling {
			t.Fatalf("steal amount %d outside [%d,%d]", result.Amount, RobStealFloor, RobStealCeiling)
		}
	} else {
		if victim.Balance != 1000 {
			t.Fatalf("failed robbery must not touch the target, got %d", victim.Balance)
		}
		if result.Amount < RobFineFloor || result.Amount > RobFineCeiling {
			t.Fatalf("fine %d outside [%d,%d]", result.Amount, RobFineFloor, RobFineCeiling)
		}
	}
	if robber.LastRob == nil {
		t.Fatal("robbery must stamp the cooldown either way")
	}
}

func TestCreditRejectsNonPositiveAmounts(t *testing.T) {
	svc := newTestService(t)
	for _, amount := range []int64{0, -5} {
		if _, err := svc.Credit(context.Background(), "alice", amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestLeaderboardOrdersByNetWorth(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for id, amount := range map[string]int64{"a": 50, "b": 500, "c": 200} {
		if _, err := svc.Credit(ctx, id, amount); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	rows := svc.Leaderboard(2)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].ActorID != "b" || rows[1].ActorID != "c" {
		t.Fatalf("order: got %s, %s", rows[0].ActorID, rows[1].ActorID)
	}
	if rows[0].Rank != 1 || rows[1].Rank != 2 {
		t.Fatalf("ranks: got %d, %d", rows[0].Rank, rows[1].Rank)
	}
}
