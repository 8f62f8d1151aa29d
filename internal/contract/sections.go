package contract

import "fmt"

// Section is one numbered clause of the agreement.
type Section struct {
	Title      string
	Paragraphs []string
	Bullets    []string
}

// sections lays out the clauses shared by the HTML and PDF forms. currency
// prefixes the salary amount.
func sections(v View, currency string) []Section {
	term := fmt.Sprintf("Valid until %s unless extended in writing.", v.EndDate)
	if v.IsFullTime {
		term = "For full-time roles: Ongoing until terminated by either party."
	}

	return []Section{
		{
			Title: "Position & Responsibilities",
			Paragraphs: []string{fmt.Sprintf("The Employee agrees to serve as a %s, performing all duties as assigned by the company "+
				"in accordance with company standards and professional conduct.", v.JobTitle)},
		},
		{
			Title: "Type of Employment",
			Paragraphs: []string{
				"Employment Type: " + v.ContractType,
				fmt.Sprintf("This role begins on %s and will be:", v.StartDate),
				term,
			},
		},
		{
			Title: "Working Hours & Location",
			Paragraphs: []string{
				fmt.Sprintf("Working hours: %s, %d per week.", v.WorkingHours, v.DaysPerWeek),
				fmt.Sprintf("Work Location: %s.", v.WorkLocation),
			},
		},
		{
			Title: "Compensation",
			Paragraphs: []string{
				fmt.Sprintf("Monthly Salary: %s%s (before deductions).", currency, v.MonthlySalary),
				fmt.Sprintf("Salary will be paid on or before the %s of every month.", v.SalaryDate),
				"Deductions (PF, TDS, Leave without pay) will apply as per company policy.",
			},
		},
		{
			Title: "Leave Policy",
			Paragraphs: []string{
				"Annual leave entitlement and procedure will follow the company's leave policy.",
				"Unauthorized absences can result in salary deduction or disciplinary action.",
			},
		},
		{
			Title: "Confidentiality Clause",
			Paragraphs: []string{"The Employee agrees not to disclose or use any confidential information or intellectual " +
				"property belonging to the Company, during or after employment."},
		},
		{
			Title:      "Code of Conduct",
			Paragraphs: []string{"The Employee agrees to:"},
			Bullets: []string{
				"Maintain professionalism and punctuality.",
				"Adhere to all workplace rules, policies, and directives.",
				"Avoid conflicts of interest and uphold the company's reputation.",
			},
		},
		{
			Title: "Termination",
			Paragraphs: []string{
				fmt.Sprintf("Either party may terminate the agreement with %d days' written notice.", v.NoticePeriodDays),
				"Grounds for immediate termination include fraud, theft, misconduct, or breach of confidentiality.",
			},
		},
		{
			Title: "Return of Property",
			Paragraphs: []string{"Upon termination, the Employee must return all company-owned property including laptops, " +
				"ID cards, documents, and any physical or digital assets."},
		},
		{
			Title:      "Acceptance & Acknowledgement",
			Paragraphs: []string{`By signing this agreement or clicking "Accept" below, the Employee confirms that:`},
			Bullets: []string{
				"They understand and agree to all the terms and conditions listed above.",
				"They have provided accurate information and submitted valid documents during onboarding.",
			},
		},
	}
}
