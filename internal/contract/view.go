// Package contract renders an employee's employment agreement as HTML or PDF.
package contract

import (
	"strconv"
	"time"

	"github.com/shineinfo/crm-backend/internal/domain"
)

const dateLayout = "02 Jan 2006"

const (
	defaultCompanyName    = "Shine Infosolutions"
	defaultCompanyAddress = "Gorakhpur UP"
	defaultCompanyPhone   = "9876567897"
	defaultCompanyEmail   = "shineinfo@gmail.com"
	defaultWorkingHours   = "10 AM – 6 PM"
	defaultDaysPerWeek    = 6
	defaultWorkLocation   = "Head Office Gorahpur"
	defaultSalaryDate     = "5th"
	defaultNoticeDays     = 30
	defaultJobTitle       = "N/A"
	fullTime              = string(domain.EmploymentFullTime)
)

// View is the agreement with every default and fallback resolved.
type View struct {
	CompanyName      string
	CompanyAddress   string
	CompanyContact   string
	EffectiveDate    string
	EmployeeName     string
	EmployeeAddress  string
	EmployeeID       string
	JobTitle         string
	ContractType     string
	IsFullTime       bool
	StartDate        string
	EndDate          string
	WorkingHours     string
	DaysPerWeek      int
	WorkLocation     string
	MonthlySalary    string
	SalaryDate       string
	NoticePeriodDays int
	AcceptanceDate   string
	Today            string
}

// Build resolves emp's agreement against the defaults. Dates are shown in
// now's location.
func Build(emp *domain.Employee, now time.Time) View {
	c := emp.ContractAgreement
	loc := now.Location()

	v := View{
		CompanyName:      or(c.Company.Name, defaultCompanyName),
		CompanyAddress:   or(c.Company.Address, defaultCompanyAddress),
		CompanyContact:   or(c.Company.Contact.Phone, defaultCompanyPhone) + " | " + or(c.Company.Contact.Email, defaultCompanyEmail),
		EffectiveDate:    formatDate(c.EffectiveDate, loc),
		EmployeeName:     emp.Name,
		EmployeeAddress:  emp.Address,
		EmployeeID:       emp.EmployeeID,
		JobTitle:         or(c.JobTitle, emp.Designation, defaultJobTitle),
		ContractType:     or(c.ContractType, string(emp.EmploymentType), fullTime),
		StartDate:        formatDate(c.StartDate, loc),
		EndDate:          formatDate(c.EndDate, loc),
		WorkingHours:     or(c.WorkingHours.Timing, defaultWorkingHours),
		DaysPerWeek:      orInt(c.WorkingHours.DaysPerWeek, defaultDaysPerWeek),
		WorkLocation:     or(c.WorkingHours.Location, defaultWorkLocation),
		SalaryDate:       or(c.Compensation.SalaryDate, defaultSalaryDate),
		NoticePeriodDays: orInt(c.Termination.NoticePeriodDays, defaultNoticeDays),
		Today:            now.Format(dateLayout),
	}
	v.IsFullTime = v.ContractType == fullTime

	salary := c.Compensation.MonthlySalary
	if salary == 0 {
		salary = emp.SalaryDetails.MonthlySalary
	}
	v.MonthlySalary = strconv.FormatFloat(salary, 'f', -1, 64)

	if at := c.Acceptance.AcceptedAt; at != nil && !at.IsZero() {
		v.AcceptanceDate = at.In(loc).Format(dateLayout)
	}
	return v
}

func formatDate(d domain.Date, loc *time.Location) string {
	if d.IsZero() {
		return ""
	}
	return d.In(loc).Format(dateLayout)
}

func or(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
