// Package business owns the business registry: ownership, employment,
// upgrades, and the job application records produced by the multi-step
// capture.
package business

import (
	"errors"
	"time"
)

const (
	CreationFee         = int64(5000)
	DefaultMaxEmployees = 3
	DefaultWorkBonus    = 1.5

	ReasonLimit       = 500
	ExperienceLimit   = 300
	AvailabilityLimit = 100

	ApplyStepTimeout     = 60 * time.Second
	UpgradePromptTimeout = 30 * time.Second
)

var (
	ErrAlreadyOwnsBusiness = errors.New("actor already owns a business")
	ErrNoBusiness          = errors.New("actor does not own a business")
	ErrNotFound            = errors.New("business not found")
	ErrBusinessFull        = errors.New("business is not hiring")
	ErrAlreadyEmployed     = errors.New("already employed at this business")
	ErrNotEmployed         = errors.New("actor is not an employee")
	ErrUpgradeOwned        = errors.New("upgrade already purchased")
	ErrInvalidSelection    = errors.New("not a valid upgrade")
	ErrApplicationNotFound = errors.New("application not found")
	ErrApplicationClosed   = errors.New("application is no longer pending")
)

type Employee struct {
	Name              string `json:"name"`
	TotalWorkSessions int64  `json:"total_work_sessions"`
}

type Business struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Description         string              `json:"description"`
	OwnerID             string              `json:"owner_id"`
	OwnerName           string              `json:"owner_name"`
	Level               int                 `json:"level"`
	Employees           map[string]Employee `json:"employees"`
	MaxEmployees        int                 `json:"max_employees"`
	WorkBonus           float64             `json:"work_bonus"`
	CreatedAt           time.Time           `json:"created_at"`
	Upgrades            map[string]bool     `json:"upgrades"`
	Revenue             int64               `json:"revenue"`
	TotalEmployeesHired int                 `json:"total_employees_hired"`
}

// Hiring reports whether the business has open employee slots.
func (b Business) Hiring() bool {
	return len(b.Employees) < b.MaxEmployees
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

type Application struct {
	ID            string    `json:"id"`
	BusinessID    string    `json:"business_id"`
	BusinessName  string    `json:"business_name"`
	ApplicantID   string    `json:"applicant_id"`
	ApplicantName string    `json:"applicant_name"`
	Reason        string    `json:"reason"`
	Experience    string    `json:"experience"`
	Availability  string    `json:"availability"`
	Status        Status    `json:"status"`
	AppliedAt     time.Time `json:"applied_at"`
}

// Upgrade is one purchasable improvement. Effects beyond the two numeric
// ones are flag-only.
type Upgrade struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Cost        int64  `json:"cost"`
	Description string `json:"description"`
}

var Upgrades = []Upgrade{
	{Key: "premium_office", Name: "Premium Office", Cost: 10000, Description: "Double employee capacity (3 to 6)"},
	{Key: "employee_benefits", Name: "Employee Benefits", Cost: 7500, Description: "Increase work bonus by 0.5x"},
	{Key: "marketing_boost", Name: "Marketing Boost", Cost: 5000, Description: "Attract more job applicants"},
	{Key: "security_system", Name: "Security System", Cost: 8000, Description: "Protect from theft events"},
}
