package economy

import (
	"context"
	"log/slog"
	"math"
	mathrand "math/rand"
	"sort"
	"sync"
	"time"

	"hustled/internal/kv"
)

// Employers resolves the work bonus of an actor's employer and records
// completed work sessions. Implemented by the business registry; nil means
// no employment layer is wired.
type Employers interface {
	WorkBonus(businessID string) (bonus float64, businessName string, ok bool)
	RecordWorkSession(ctx context.Context, businessID, actorID string) error
}

type Service struct {
	accounts  *kv.Store[Account]
	employers Employers
	log       *slog.Logger
	mu        sync.Mutex
	rand      *mathrand.Rand
}

func NewService(accounts *kv.Store[Account], employers Employers, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts:  accounts,
		employers: employers,
		log:       logger,
		rand:      mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

// Accounts exposes the underlying ledger store to components that share it
// (business registry, settlement engine).
func (s *Service) Accounts() *kv.Store[Account] {
	return s.accounts
}

// GetOrCreate returns the actor's account, creating it with defaults on
// first access.
func (s *Service) GetOrCreate(ctx context.Context, actorID string) (Account, error) {
	return s.accounts.GetOrCreate(ctx, actorID, NewAccount)
}

type LeaderboardRow struct {
	Rank     int    `json:"rank"`
	ActorID  string `json:"actor_id"`
	Balance  int64  `json:"balance"`
	Bank     int64  `json:"bank"`
	NetWorth int64  `json:"net_worth"`
}

// Leaderboard returns the topN richest actors by net worth.
func (s *Service) Leaderboard(topN int) []LeaderboardRow {
	if topN <= 0 {
		topN = 10
	}
	all := s.accounts.All()
	rows := make([]LeaderboardRow, 0, len(all))
	for id, acct := range all {
		rows = append(rows, LeaderboardRow{
			ActorID:  id,
			Balance:  acct.Balance,
			Bank:     acct.Bank,
			NetWorth: acct.NetWorth(),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].NetWorth != rows[j].NetWorth {
			return rows[i].NetWorth > rows[j].NetWorth
		}
		return rows[i].ActorID < rows[j].ActorID
	})
	if len(rows) > topN {
		rows = rows[:topN]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

type WorkResult struct {
	Scenario   string   `json:"scenario"`
	Base       int64    `json:"base"`
	Multiplier float64  `json:"multiplier"`
	Bonuses    []string `json:"bonuses,omitempty"`
	Payout     int64    `json:"payout"`
	Balance    int64    `json:"balance"`
}

// Work runs one earning session: cooldown gate, uniform scenario draw,
// job and employer multipliers, floor of the product credited to balance.
func (s *Service) Work(ctx context.Context, actorID string) (WorkResult, error) {
	if _, err := s.GetOrCreate(ctx, actorID); err != nil {
		return WorkResult{}, err
	}

	var out WorkResult
	var employerID string
	updated, err := s.accounts.Update(ctx, actorID, func(acct *Account) error {
		now := time.Now()
		if ok, next := CanAct(acct.LastWork, WorkCooldown, now); !ok {
			return &CooldownError{NextEligible: next}
		}

		scenario := WorkScenarios[s.intn(len(WorkScenarios))]
		base := scenario.Min + s.int63n(scenario.Max-scenario.Min+1)
		out.Scenario = scenario.Description
		out.Base = base

		mult := 1.0
		if bonus, ok := JobBonuses[acct.Job]; ok {
			mult *= bonus
			out.Bonuses = append(out.Bonuses, "job:"+acct.Job)
		}
		if acct.BusinessJob != nil && s.employers != nil {
			if bonus, name, ok := s.employers.WorkBonus(acct.BusinessJob.BusinessID); ok {
				mult *= bonus
				out.Bonuses = append(out.Bonuses, "business:"+name)
				employerID = acct.BusinessJob.BusinessID
			}
		}
		out.Multiplier = mult
		out.Payout = int64(math.Floor(float64(base) * mult))

		acct.Balance += out.Payout
		acct.LastWork = &now
		return nil
	})
	if err != nil {
		return WorkResult{}, err
	}
	out.Balance = updated.Balance

	// Session counter is best effort; a persistence failure here does not
	// claw back the payout.
	if employerID != "" {
		if err := s.employers.RecordWorkSession(ctx, employerID, actorID); err != nil {
			s.log.Warn("work session counter not recorded", "actor_id", actorID, "business_id", employerID, "err", err)
		}
	}
	return out, nil
}

type RobResult struct {
	Success       bool  `json:"success"`
	Amount        int64 `json:"amount"`
	RobberBalance int64 `json:"robber_balance"`
}

// Rob attempts to steal from the target. Both accounts are mutated under a
// single ledger transaction, so the transfer is observed atomically.
func (s *Service) Rob(ctx context.Context, robberID, targetID string) (RobResult, error) {
	if robberID == targetID {
		return RobResult{}, ErrSelfTarget
	}
	if _, err := s.GetOrCreate(ctx, robberID); err != nil {
		return RobResult{}, err
	}
	if _, err := s.GetOrCreate(ctx, targetID); err != nil {
		return RobResult{}, err
	}

	var out RobResult
	err := s.accounts.UpdatePair(ctx, robberID, targetID, func(robber, target *Account) error {
		if robber.Balance < RobMinBalance {
			return ErrInsufficientFunds
		}
		if target.Balance < RobMinBalance {
			return ErrTargetInsufficientFunds
		}
		now := time.Now()
		if ok, next := CanAct(robber.LastRob, RobCooldown, now); !ok {
			return &CooldownError{NextEligible: next}
		}

		if s.float64() < RobSuccessOdds {
			ceiling := min(RobStealCeiling, target.Balance)
			amount := RobStealFloor + s.int63n(ceiling-RobStealFloor+1)
			robber.Balance += amount
			target.Balance -= amount
			out.Success = true
			out.Amount = amount
		} else {
			ceiling := min(RobFineCeiling, robber.Balance)
			amount := RobFineFloor + s.int63n(ceiling-RobFineFloor+1)
			robber.Balance -= amount
			out.Amount = amount
		}
		robber.LastRob = &now
		out.RobberBalance = robber.Balance
		return nil
	})
	if err != nil {
		return RobResult{}, err
	}
	return out, nil
}

// Credit adds funds to an actor's balance. Privilege checks are the host
// platform's concern; this is the raw ledger operation.
func (s *Service) Credit(ctx context.Context, actorID string, amount int64) (Account, error) {
	if amount <= 0 {
		return Account{}, ErrInvalidAmount
	}
	if _, err := s.GetOrCreate(ctx, actorID); err != nil {
		return Account{}, err
	}
	return s.accounts.Update(ctx, actorID, func(acct *Account) error {
		acct.Balance += amount
		return nil
	})
}

func (s *Service) float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

func (s *Service) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Intn(n)
}

func (s *Service) int63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Int63n(n)
}
