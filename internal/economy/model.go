// Package economy owns the per-actor account ledger: balances, cooldown
// gating, the cascading withdrawal primitive, and the work/rob commands.
package economy

import (
	"errors"
	"fmt"
	"time"
)

const (
	StarterBalance = int64(100)

	WorkCooldown = time.Hour
	RobCooldown  = time.Hour

	RobMinBalance   = int64(100)
	RobSuccessOdds  = 0.45
	RobStealFloor   = int64(50)
	RobStealCeiling = int64(300)
	RobFineFloor    = int64(25)
	RobFineCeiling  = int64(200)
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSelfTarget        = errors.New("cannot target yourself")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")

	// ErrTargetInsufficientFunds wraps ErrInsufficientFunds so callers can
	// still match the broad class while telling the two apart.
	ErrTargetInsufficientFunds = fmt.Errorf("target: %w", ErrInsufficientFunds)
)

// CooldownError reports a gated action along with when it becomes eligible.
type CooldownError struct {
	NextEligible time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("on cooldown until %s", e.NextEligible.Format(time.RFC3339))
}

// BusinessRef links an account to its employer. Weak reference: the
// business registry resolves it at lookup time.
type BusinessRef struct {
	BusinessID string `json:"business_id"`
	Role       string `json:"role"`
}

// Account is the per-actor ledger record. Created lazily with defaults and
// mutated only through the store's update contract.
type Account struct {
	Balance     int64        `json:"balance"`
	Bank        int64        `json:"bank"`
	LastWork    *time.Time   `json:"last_work,omitempty"`
	LastRob     *time.Time   `json:"last_rob,omitempty"`
	Job         string       `json:"job,omitempty"`
	BusinessJob *BusinessRef `json:"business_job,omitempty"`
	Level       int          `json:"level"`
	Experience  int64        `json:"experience"`
}

func NewAccount() Account {
	return Account{Balance: StarterBalance, Level: 1}
}

func (a Account) NetWorth() int64 {
	return a.Balance + a.Bank
}

// CanAct reports whether a timestamped action may repeat. The boundary is
// non-strict: exactly at last+cooldown is allowed. A nil last timestamp is
// always allowed.
func CanAct(last *time.Time, cooldown time.Duration, now time.Time) (bool, time.Time) {
	if last == nil {
		return true, now
	}
	next := last.Add(cooldown)
	return !now.Before(next), next
}

// Withdraw spends cost from a two-tier balance, bank first, remainder from
// the liquid balance. On ErrInsufficientFunds both values are returned
// unchanged. Shared by business creation and upgrade purchase.
func Withdraw(balance, bank, cost int64) (int64, int64, error) {
	if balance+bank < cost {
		return balance, bank, ErrInsufficientFunds
	}
	if bank >= cost {
		return balance, bank - cost, nil
	}
	remaining := cost - bank
	return balance - remaining, 0, nil
}

// JobBonuses maps a recognized job to its work multiplier.
var JobBonuses = map[string]float64{
	"Manager":   1.5,
	"Developer": 1.8,
	"Teacher":   1.3,
	"Chef":      1.4,
	"Artist":    1.2,
}

// WorkScenario is one entry in the work table: a flavor line and the
// inclusive payout range sampled for it.
type WorkScenario struct {
	Description string
	Min, Max    int64
}

var WorkScenarios = []WorkScenario{
	{"You delivered pizzas around town", 50, 150},
	{"You walked dogs in the neighborhood", 40, 120},
	{"You helped at a local cafe", 60, 140},
	{"You did freelance graphic design", 80, 200},
	{"You tutored students online", 70, 180},
	{"You worked as a cashier", 45, 130},
	{"You did yard work for neighbors", 55, 160},
	{"You worked at a bookstore", 50, 140},
}
