package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// ContractState is derived from the agreement contents, never stored.
type ContractState string

const (
	ContractDrafted   ContractState = "drafted"
	ContractPopulated ContractState = "populated"
	ContractAccepted  ContractState = "accepted"
)

type CompanyContact struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type Company struct {
	Name    string         `json:"name,omitempty"`
	Address string         `json:"address,omitempty"`
	Contact CompanyContact `json:"contact"`
}

type WorkingHours struct {
	Timing      string `json:"timing,omitempty"`
	DaysPerWeek int    `json:"days_per_week,omitempty"`
	Location    string `json:"location,omitempty"`
}

type Compensation struct {
	MonthlySalary float64 `json:"monthly_salary,omitempty"`
	SalaryDate    string  `json:"salary_date,omitempty"`
}

type Termination struct {
	NoticePeriodDays int `json:"notice_period_days,omitempty"`
}

// Acceptance is written only by the accept action.
type Acceptance struct {
	Accepted   bool       `json:"accepted"`
	AcceptedAt *time.Time `json:"accepted_at"`
}

type ContractAgreement struct {
	Company       Company      `json:"company"`
	EffectiveDate Date         `json:"effective_date"`
	JobTitle      string       `json:"job_title,omitempty"`
	ContractType  string       `json:"contract_type,omitempty"`
	StartDate     Date         `json:"start_date"`
	EndDate       Date         `json:"end_date"`
	WorkingHours  WorkingHours `json:"working_hours"`
	Compensation  Compensation `json:"compensation"`
	Termination   Termination  `json:"termination"`
	Acceptance    Acceptance   `json:"acceptance"`
}

func (c ContractAgreement) State() ContractState {
	if c.Acceptance.Accepted {
		return ContractAccepted
	}
	populated := c.Company != (Company{}) ||
		!c.EffectiveDate.IsZero() || !c.StartDate.IsZero() || !c.EndDate.IsZero() ||
		c.JobTitle != "" || c.ContractType != "" ||
		c.WorkingHours != (WorkingHours{}) ||
		c.Compensation != (Compensation{}) ||
		c.Termination != (Termination{})
	if populated {
		return ContractPopulated
	}
	return ContractDrafted
}

// ContractField is one flat update merged under the agreement namespace.
// Path excludes the leading "contract_agreement" segment.
type ContractField struct {
	Path  []string
	Value json.RawMessage
}

func (f ContractField) Key() string { return strings.Join(f.Path, ".") }

// ContractUpdatableKeys are the top-level agreement keys a general update may touch.
var ContractUpdatableKeys = map[string]bool{
	"company":        true,
	"effective_date": true,
	"job_title":      true,
	"contract_type":  true,
	"start_date":     true,
	"end_date":       true,
	"working_hours":  true,
	"compensation":   true,
	"termination":    true,
}
