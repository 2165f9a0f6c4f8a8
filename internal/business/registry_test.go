package business

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"hustled/internal/economy"
	"hustled/internal/kv"
	"hustled/internal/workflow"
)

func newTestRegistry(t *testing.T) (*Registry, *kv.Store[economy.Account]) {
	t.Helper()
	ctx := context.Background()
	businesses, err := kv.Open[Business](ctx, kv.NewMemorySnapshot())
	require.NoError(t, err)
	applications, err := kv.Open[Application](ctx, kv.NewMemorySnapshot())
	require.NoError(t, err)
	accounts, err := kv.Open[economy.Account](ctx, kv.NewMemorySnapshot())
	require.NoError(t, err)
	return NewRegistry(businesses, applications, accounts, nil, nil), accounts
}

func fund(t *testing.T, accounts *kv.Store[economy.Account], actorID string, balance, bank int64) {
	t.Helper()
	ctx := context.Background()
	_, err := accounts.GetOrCreate(ctx, actorID, economy.NewAccount)
	require.NoError(t, err)
	_, err = accounts.Update(ctx, actorID, func(acct *economy.Account) error {
		acct.Balance, acct.Bank = balance, bank
		return nil
	})
	require.NoError(t, err)
}

// instantPrompter answers the three application prompts immediately.
func instantPrompter(reason, experience, availability string) workflow.Prompter {
	answers := map[string]string{
		"Why do you want to work here? (500 chars max)":              reason,
		"Describe your previous experience (or type 'none'):":        experience,
		"What is your availability? (e.g. evenings, weekends, etc.)": availability,
	}
	return workflow.Func(func(_ context.Context, prompt string) (string, error) {
		return answers[prompt], nil
	})
}

func TestCreateChargesFeeBankFirst(t *testing.T) {
	r, accounts := newTestRegistry(t)
	ctx := context.Background()
	fund(t, accounts, "owner", 2000, 4000)

	b, err := r.Create(ctx, "owner", "Owner", "Pizza Palace", "pies")
	require.NoError(t, err)
	require.Equal(t, DefaultMaxEmployees, b.MaxEmployees)
	require.Equal(t, DefaultWorkBonus, b.WorkBonus)

	acct, ok := accounts.Get("owner")
	require.True(t, ok)
	require.Equal(t, int64(1000), acct.Balance, "remainder comes from the liquid balance")
	require.Equal(t, int64(0), acct.Bank, "bank drains first")
}

func TestCreateSecondBusinessRejected(t *testing.T) {
	r, accounts := newTestRegistry(t)
	ctx := context.Background()
	fund(t, accounts, "owner", 20000, 0)

	_, err := r.Create(ctx, "owner", "Owner", "First", "")
	require.NoError(t, err)
	_, err = r.Create(ctx, "owner", "Owner", "Second", "")
	require.ErrorIs(t, err, ErrAlreadyOwnsBusiness)
}

func TestCreateInsufficientFundsLeavesNoBusiness(t *testing.T) {
	r, accounts := newTestRegistry(t)
	ctx := context.Background()
	fund(t, accounts, "owner", 100, 0)

	_, err := r.Create(ctx, "owner", "Owner", "Doomed", "")
	require.ErrorIs(t, err, economy.ErrInsufficientFunds)
	require.Empty(t, r.List())

	acct, _ := accounts.Get("owner")
	require.Equal(t, int64(100), acct.Balance, "failed creation must not move funds")
}

func TestApplyApproveHires(t *testing.T) {
	r, accounts := newTestRegistry(t)
	ctx := context.Background()
	fund(t, accounts, "owner", 10000, 0)
	_, err := r.Create(ctx, "owner", "Owner", "Cafe", "")
	require.NoError(t, err)

	app, err := r.Apply(ctx, "worker", "Worker", "cafe", instantPrompter("money", "none", "weekends"))
	require.NoError(t, err)
	require.Equal(t, StatusPending, app.Status)
	require.Equal(t, "money", app.Reason)

	approved, err := r.Approve(ctx, "owner", app.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)

	b, _ := r.OwnedBy("owner")
	require.Contains(t, b.Employees, "worker")
	require.Equal(t, 1, b.TotalEmployeesHired)

	acct, ok := accounts.Get("worker")
	require.True(t, ok)
	require.NotNil(t, acct.BusinessJob)
	require.Equal(t, b.ID, acct.BusinessJob.BusinessID)
}

func TestApproveTwiceRejected(t *testing.T) {
	r, accounts := newTestRegistry(t)
	ctx := context.Background()
	fund(t, accounts, "owner", 10000, 0)
	_, err := r.Create(ctx, "owner", "Owner", "Cafe", "")
	require.NoError(t, err)

	app, err := r.Apply(ctx, "worker", "Worker", "Cafe", instantPrompter("a", "b", "c"))
	require.NoError(t, err)

	_, err = r.Approve(ctx, "owner", app.ID)
	require.NoError(t, err)
	_, err = r.Approve(ctx, "owner", app.ID)
	require.ErrorIs(t, err, ErrApplicationClosed)
}

func TestDenyDoesNotHire(t *testing.T) {
	r, accounts := newTestRegistry(t)
	ctx := context.Background()
	fund(t, accounts, "owner", 10000, 0)
	_, err := r.Create(ctx, "owner", "Owner", "Cafe", "")
	require.NoError(t, err)

	app, err := r.Apply(ctx, "worker", "Worker", "Cafe", instantPrompter("a", "b", "c"))
	require.NoError(t, err)

	denied, err := r.Deny(ctx, "owner", app.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDenied, denied.Status)

	b, _ := r.OwnedBy("owner")
	require.Empty(t, b.Employees)
}

func TestApplyToFullBusinessRejected(t *testing.T) {
	r, accounts := newTestRegistry(t)
	ctx := context.Background()
	fund(t, accounts, "owner", 10000, 0)
	_, err := r.Create(ctx, "owner", "Owner", "Cafe", "")
	require.NoError(t, err)

	for i, worker := range []string{"w1", "w2", "w3"} {
		app, err := r.Apply(ctx, worker, worker, "Cafe", instantPrompter("a", "b", "c"))
		require.NoError(t, err, "worker %d", i)
		_, err = r.Approve(ctx, "owner", app.ID)
		require.NoError(t, err, "worker %d", i)
	}

	_, err = r.Apply(ctx, "w4", "w4", "Cafe", instantPrompter("a", "b", "c"))
	require.ErrorIs(t, err, ErrBusinessFull)
}

func TestConcurrentApprovalsRespectCapacity(t *testing.T) {
	r, accounts := newTestRegistry(t)
	ctx := context.Background()
	fund(t, accounts, "owner", 10000, 0)
	b, err := r.Create(ctx, "owner", "Owner", "Cafe", "")
	require.NoError(t, err)

	const applicants = 6
	appIDs := make([]string, 0, applicants)
	for i := 0; i < applicants; i++ {
		worker := fmt.Sprintf("w%d", i)
		app, err := r.Apply(ctx, worker, worker, "Cafe", instantPrompter("a", "b", "c"))
		require.NoError(t, err)
		appIDs = append(appIDs, app.ID)
	}

	errs := make([]error, applicants)
	var wg sync.WaitGroup
	for i, id := range appIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = r.Approve(ctx, "owner", id)
		}(i, id)
	}
	wg.Wait()

	hired, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			hired++
		case errors.Is(err, ErrBusinessFull):
			full++
		default:
			t.Fatalf("unexpected approval error: %v", err)
		}
	}
	require.Equal(t, b.MaxEmployees, hired)
	require.Equal(t, applicants-b.MaxEmployees, full)

	got, _ := r.OwnedBy("owner")
	require.LessOrEqual(t, len(got.Employees), got.MaxEmployees)
	require.Equal(t, b.MaxEmployees, got.TotalEmployeesHired)
}

func TestFireClearsEmploymentLink(t *testing.T) {
	r, accounts := newTestRegistry(t)
	ctx := context.Background()
	fund(t, accounts, "owner", 10000, 0)
	_, err := r.Create(ctx, "owner", "Owner", "Cafe", "")
	require.NoError(t, err)

	app, err := r.Apply(ctx, "worker", "Worker", "Cafe", instantPrompter("a", "b", "c"))
	require.NoError(t, err)
	_, err = r.Approve(ctx, "owner", app.ID)
	require.NoError(t, err)

	require.NoError(t, r.Fire(ctx, "owner", "worker"))

	b, _ := r.OwnedBy("owner")
	require.NotContains(t, b.Employees, "worker")
	acct, _ := accounts.Get("worker")
	require.Nil(t, acct.BusinessJob)

	require.ErrorIs(t, r.Fire(ctx, "owner", "worker"), ErrNotEmployed)
}

func TestPurchaseUpgradeAppliesEffects(t *testing.T) {
	r, accounts := newTestRegistry(t)
	ctx := context.Background()
	fund(t, accounts, "owner", 30000, 0)
	_, err := r.Create(ctx, "owner", "Owner", "Cafe", "")
	require.NoError(t, err)

	// Menu index selection resolves to the first entry.
	upgrade, b, err := r.PurchaseUpgrade(ctx, "owner", "1")
	require.NoError(t, err)
	require.Equal(t, "premium_office", upgrade.Key)
	require.Equal(t, 6, b.MaxEmployees)
	require.Equal(t, 2, b.Level)

	_, b, err = r.PurchaseUpgrade(ctx, "owner", "employee_benefits")
	require.NoError(t, err)
	require.Equal(t, DefaultWorkBonus+0.5, b.WorkBonus)

	_, _, err = r.PurchaseUpgrade(ctx, "owner", "Premium Office")
	require.ErrorIs(t, err, ErrUpgradeOwned)
}

func TestPurchaseUpgradeInsufficientFundsUnchanged(t *testing.T) {
	r, accounts := newTestRegistry(t)
	ctx := context.Background()
	fund(t, accounts, "owner", 5000, 0)
	_, err := r.Create(ctx, "owner", "Owner", "Cafe", "")
	require.NoError(t, err)
	// Creation took the full 5000; nothing left for an upgrade.

	_, _, err = r.PurchaseUpgrade(ctx, "owner", "Security System")
	require.ErrorIs(t, err, economy.ErrInsufficientFunds)

	b, _ := r.OwnedBy("owner")
	require.Empty(t, b.Upgrades)
	acct, _ := accounts.Get("owner")
	require.Equal(t, int64(0), acct.Balance)
}

func TestPurchaseUpgradeCancelToken(t *testing.T) {
	r, accounts := newTestRegistry(t)
	ctx := context.Background()
	fund(t, accounts, "owner", 10000, 0)
	_, err := r.Create(ctx, "owner", "Owner", "Cafe", "")
	require.NoError(t, err)

	_, _, err = r.PurchaseUpgrade(ctx, "owner", "cancel")
	require.ErrorIs(t, err, ErrInvalidSelection)
	_, _, err = r.PurchaseUpgrade(ctx, "owner", "jetpack")
	require.ErrorIs(t, err, ErrInvalidSelection)
	_, _, err = r.PurchaseUpgrade(ctx, "owner", "9")
	require.ErrorIs(t, err, ErrInvalidSelection)
}

func TestWorkBonusAndSessionCounter(t *testing.T) {
	r, accounts := newTestRegistry(t)
	ctx := context.Background()
	fund(t, accounts, "owner", 10000, 0)
	_, err := r.Create(ctx, "owner", "Owner", "Cafe", "")
	require.NoError(t, err)

	app, err := r.Apply(ctx, "worker", "Worker", "Cafe", instantPrompter("a", "b", "c"))
	require.NoError(t, err)
	_, err = r.Approve(ctx, "owner", app.ID)
	require.NoError(t, err)

	b, _ := r.OwnedBy("owner")
	bonus, name, ok := r.WorkBonus(b.ID)
	require.True(t, ok)
	require.Equal(t, DefaultWorkBonus, bonus)
	require.Equal(t, "Cafe", name)

	require.NoError(t, r.RecordWorkSession(ctx, b.ID, "worker"))
	b, _ = r.OwnedBy("owner")
	require.Equal(t, int64(1), b.Employees["worker"].TotalWorkSessions)

	// Stale references are a quiet no-op.
	require.NoError(t, r.RecordWorkSession(ctx, "biz_gone", "worker"))
	_, _, ok = r.WorkBonus("biz_gone")
	require.False(t, ok)
}
