package business

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hustled/internal/economy"
	"hustled/internal/kv"
	"hustled/internal/notify"
	"hustled/internal/workflow"
)

var _ economy.Employers = (*Registry)(nil)

// Registry mediates every mutation of businesses, applications, and the
// employment links on accounts. Invariants spanning more than one store
// (one business per owner, capacity on hire) are enforced under a single
// registry-level mutex.
type Registry struct {
	mu           sync.Mutex
	businesses   *kv.Store[Business]
	applications *kv.Store[Application]
	accounts     *kv.Store[economy.Account]
	notifier     notify.Notifier
	log          *slog.Logger
}

func NewRegistry(
	businesses *kv.Store[Business],
	applications *kv.Store[Application],
	accounts *kv.Store[economy.Account],
	notifier notify.Notifier,
	logger *slog.Logger,
) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &Registry{
		businesses:   businesses,
		applications: applications,
		accounts:     accounts,
		notifier:     notifier,
		log:          logger,
	}
}

// Create establishes a new business for the owner, charging the creation
// fee through the cascading withdrawal.
func (r *Registry) Create(ctx context.Context, ownerID, ownerName, name, description string) (Business, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Business{}, fmt.Errorf("business name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ownedByLocked(ownerID); ok {
		return Business{}, ErrAlreadyOwnsBusiness
	}

	if _, err := r.accounts.GetOrCreate(ctx, ownerID, economy.NewAccount); err != nil {
		return Business{}, err
	}
	if _, err := r.accounts.Update(ctx, ownerID, func(acct *economy.Account) error {
		balance, bank, err := economy.Withdraw(acct.Balance, acct.Bank, CreationFee)
		if err != nil {
			return err
		}
		acct.Balance, acct.Bank = balance, bank
		return nil
	}); err != nil {
		return Business{}, err
	}

	now := time.Now()
	b := Business{
		ID:           fmt.Sprintf("biz_%s_%d", ownerID, now.Unix()),
		Name:         name,
		Description:  strings.TrimSpace(description),
		OwnerID:      ownerID,
		OwnerName:    ownerName,
		Level:        1,
		Employees:    map[string]Employee{},
		MaxEmployees: DefaultMaxEmployees,
		WorkBonus:    DefaultWorkBonus,
		CreatedAt:    now,
		Upgrades:     map[string]bool{},
	}
	if err := r.businesses.Put(ctx, b.ID, b); err != nil {
		return Business{}, err
	}
	return b, nil
}

// List returns every business, sorted by creation time.
func (r *Registry) List() []Business {
	all := r.businesses.All()
	out := make([]Business, 0, len(all))
	for _, b := range all {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FindByName resolves a business by case-insensitive exact name match.
func (r *Registry) FindByName(name string) (Business, error) {
	name = strings.TrimSpace(name)
	for _, b := range r.businesses.All() {
		if strings.EqualFold(b.Name, name) {
			return b, nil
		}
	}
	return Business{}, ErrNotFound
}

// OwnedBy returns the business owned by the actor, if any.
func (r *Registry) OwnedBy(ownerID string) (Business, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownedByLocked(ownerID)
}

func (r *Registry) ownedByLocked(ownerID string) (Business, bool) {
	for _, b := range r.businesses.All() {
		if b.OwnerID == ownerID {
			return b, true
		}
	}
	return Business{}, false
}

// applySteps is the three-prompt capture every application goes through.
func applySteps() []workflow.Step {
	return []workflow.Step{
		{
			State:   "awaiting_reason",
			Field:   "reason",
			Prompt:  "Why do you want to work here? (500 chars max)",
			Limit:   ReasonLimit,
			Timeout: ApplyStepTimeout,
		},
		{
			State:   "awaiting_experience",
			Field:   "experience",
			Prompt:  "Describe your previous experience (or type 'none'):",
			Limit:   ExperienceLimit,
			Timeout: ApplyStepTimeout,
		},
		{
			State:   "awaiting_availability",
			Field:   "availability",
			Prompt:  "What is your availability? (e.g. evenings, weekends, etc.)",
			Limit:   AvailabilityLimit,
			Timeout: ApplyStepTimeout,
		},
	}
}

// Apply runs the application capture against the named business. Nothing
// is persisted until every step completes; a timeout aborts the whole
// attempt. On success the pending application is stored and the owner is
// notified best-effort.
func (r *Registry) Apply(ctx context.Context, actorID, actorName, businessName string, p workflow.Prompter) (Application, error) {
	b, err := r.FindByName(businessName)
	if err != nil {
		return Application{}, err
	}
	if !b.Hiring() {
		return Application{}, ErrBusinessFull
	}
	if _, ok := b.Employees[actorID]; ok {
		return Application{}, ErrAlreadyEmployed
	}

	answers, err := workflow.New(applySteps()).Run(ctx, p)
	if err != nil {
		return Application{}, err
	}

	app := Application{
		ID:            "app_" + uuid.NewString(),
		BusinessID:    b.ID,
		BusinessName:  b.Name,
		ApplicantID:   actorID,
		ApplicantName: actorName,
		Reason:        answers["reason"],
		Experience:    answers["experience"],
		Availability:  answers["availability"],
		Status:        StatusPending,
		AppliedAt:     time.Now(),
	}
	if err := r.applications.Put(ctx, app.ID, app); err != nil {
		return Application{}, err
	}

	msg := fmt.Sprintf("New job application: %s applied to work at %s", actorName, b.Name)
	if err := r.notifier.Notify(ctx, b.OwnerID, msg); err != nil {
		r.log.Warn("owner notification failed", "business_id", b.ID, "err", err)
	}
	return app, nil
}

// Applications returns the pending applications for the owner's business.
func (r *Registry) Applications(ownerID string) ([]Application, error) {
	b, ok := r.OwnedBy(ownerID)
	if !ok {
		return nil, ErrNoBusiness
	}
	var out []Application
	for _, app := range r.applications.All() {
		if app.BusinessID == b.ID && app.Status == StatusPending {
			out = append(out, app)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppliedAt.Equal(out[j].AppliedAt) {
			return out[i].AppliedAt.Before(out[j].AppliedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Approve transitions a pending application to approved and hires the
// applicant. Capacity and double-employment are re-checked under the
// registry lock, so concurrent approvals can never overfill a business.
func (r *Registry) Approve(ctx context.Context, ownerID, applicationID string) (Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	app, b, err := r.reviewableLocked(ownerID, applicationID)
	if err != nil {
		return Application{}, err
	}
	if !b.Hiring() {
		return Application{}, ErrBusinessFull
	}
	if _, ok := b.Employees[app.ApplicantID]; ok {
		return Application{}, ErrAlreadyEmployed
	}

	if _, err := r.businesses.Update(ctx, b.ID, func(biz *Business) error {
		if len(biz.Employees) >= biz.MaxEmployees {
			return ErrBusinessFull
		}
		if biz.Employees == nil {
			biz.Employees = map[string]Employee{}
		}
		biz.Employees[app.ApplicantID] = Employee{Name: app.ApplicantName}
		biz.TotalEmployeesHired++
		return nil
	}); err != nil {
		return Application{}, err
	}

	updated, err := r.applications.Update(ctx, app.ID, func(a *Application) error {
		a.Status = StatusApproved
		return nil
	})
	if err != nil {
		return Application{}, err
	}

	if _, err := r.accounts.GetOrCreate(ctx, app.ApplicantID, economy.NewAccount); err != nil {
		return Application{}, err
	}
	if _, err := r.accounts.Update(ctx, app.ApplicantID, func(acct *economy.Account) error {
		acct.BusinessJob = &economy.BusinessRef{BusinessID: b.ID, Role: "employee"}
		return nil
	}); err != nil {
		return Application{}, err
	}

	msg := fmt.Sprintf("You were hired at %s!", b.Name)
	if err := r.notifier.Notify(ctx, app.ApplicantID, msg); err != nil {
		r.log.Warn("applicant notification failed", "application_id", app.ID, "err", err)
	}
	return updated, nil
}

// Deny transitions a pending application to denied.
func (r *Registry) Deny(ctx context.Context, ownerID, applicationID string) (Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	app, b, err := r.reviewableLocked(ownerID, applicationID)
	if err != nil {
		return Application{}, err
	}
	updated, err := r.applications.Update(ctx, app.ID, func(a *Application) error {
		a.Status = StatusDenied
		return nil
	})
	if err != nil {
		return Application{}, err
	}
	msg := fmt.Sprintf("Your application to %s was denied.", b.Name)
	if err := r.notifier.Notify(ctx, app.ApplicantID, msg); err != nil {
		r.log.Warn("applicant notification failed", "application_id", app.ID, "err", err)
	}
	return updated, nil
}

func (r *Registry) reviewableLocked(ownerID, applicationID string) (Application, Business, error) {
	app, ok := r.applications.Get(applicationID)
	if !ok {
		return Application{}, Business{}, ErrApplicationNotFound
	}
	b, ok := r.ownedByLocked(ownerID)
	if !ok || b.ID != app.BusinessID {
		return Application{}, Business{}, ErrNoBusiness
	}
	if app.Status != StatusPending {
		return Application{}, Business{}, ErrApplicationClosed
	}
	return app, b, nil
}

// Fire removes an employee from the owner's business and clears the
// employment link on their account.
func (r *Registry) Fire(ctx context.Context, ownerID, actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.ownedByLocked(ownerID)
	if !ok {
		return ErrNoBusiness
	}
	if _, ok := b.Employees[actorID]; !ok {
		return ErrNotEmployed
	}

	if _, err := r.businesses.Update(ctx, b.ID, func(biz *Business) error {
		delete(biz.Employees, actorID)
		return nil
	}); err != nil {
		return err
	}
	if _, ok := r.accounts.Get(actorID); ok {
		if _, err := r.accounts.Update(ctx, actorID, func(acct *economy.Account) error {
			if acct.BusinessJob != nil && acct.BusinessJob.BusinessID == b.ID {
				acct.BusinessJob = nil
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// PurchaseUpgrade buys a one-time upgrade for the owner's business,
// selected by case-insensitive name (or key) match. No match, and the
// cancel token, abort without any mutation.
func (r *Registry) PurchaseUpgrade(ctx context.Context, ownerID, selection string) (Upgrade, Business, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" || strings.EqualFold(selection, "cancel") {
		return Upgrade{}, Business{}, ErrInvalidSelection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.ownedByLocked(ownerID)
	if !ok {
		return Upgrade{}, Business{}, ErrNoBusiness
	}

	chosen, err := matchUpgrade(selection)
	if err != nil {
		return Upgrade{}, Business{}, err
	}
	if b.Upgrades[chosen.Key] {
		return Upgrade{}, Business{}, ErrUpgradeOwned
	}

	if _, err := r.accounts.GetOrCreate(ctx, ownerID, economy.NewAccount); err != nil {
		return Upgrade{}, Business{}, err
	}
	if _, err := r.accounts.Update(ctx, ownerID, func(acct *economy.Account) error {
		balance, bank, err := economy.Withdraw(acct.Balance, acct.Bank, chosen.Cost)
		if err != nil {
			return err
		}
		acct.Balance, acct.Bank = balance, bank
		return nil
	}); err != nil {
		return Upgrade{}, Business{}, err
	}

	updated, err := r.businesses.Update(ctx, b.ID, func(biz *Business) error {
		if biz.Upgrades == nil {
			biz.Upgrades = map[string]bool{}
		}
		biz.Upgrades[chosen.Key] = true
		biz.Level++
		switch chosen.Key {
		case "premium_office":
			biz.MaxEmployees = 6
		case "employee_benefits":
			biz.WorkBonus += 0.5
		}
		return nil
	})
	if err != nil {
		return Upgrade{}, Business{}, err
	}
	return chosen, updated, nil
}

// matchUpgrade resolves a selection by 1-based menu index, name, or key.
func matchUpgrade(selection string) (Upgrade, error) {
	if idx, err := strconv.Atoi(selection); err == nil {
		if idx < 1 || idx > len(Upgrades) {
			return Upgrade{}, ErrInvalidSelection
		}
		return Upgrades[idx-1], nil
	}
	for _, u := range Upgrades {
		if strings.EqualFold(u.Name, selection) || strings.EqualFold(u.Key, selection) {
			return u, nil
		}
	}
	return Upgrade{}, ErrInvalidSelection
}

// WorkBonus implements economy.Employers.
func (r *Registry) WorkBonus(businessID string) (float64, string, bool) {
	b, ok := r.businesses.Get(businessID)
	if !ok {
		return 0, "", false
	}
	return b.WorkBonus, b.Name, true
}

// RecordWorkSession implements economy.Employers. A stale employment
// reference is a no-op.
func (r *Registry) RecordWorkSession(ctx context.Context, businessID, actorID string) error {
	if _, ok := r.businesses.Get(businessID); !ok {
		return nil
	}
	_, err := r.businesses.Update(ctx, businessID, func(biz *Business) error {
		emp, ok := biz.Employees[actorID]
		if !ok {
			return nil
		}
		emp.TotalWorkSessions++
		biz.Employees[actorID] = emp
		return nil
	})
	return err
}
