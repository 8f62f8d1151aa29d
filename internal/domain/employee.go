package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// EmploymentType enumerates the engagement kinds an employee can hold.
type EmploymentType string

const (
	EmploymentIntern     EmploymentType = "Intern"
	EmploymentFullTime   EmploymentType = "Full Time"
	EmploymentPartTime   EmploymentType = "Part Time"
	EmploymentFreelance  EmploymentType = "Freelance"
	EmploymentConsultant EmploymentType = "Consultant"
	EmploymentContract   EmploymentType = "Contract"
)

// EmployeeStatus is the HR status, independent of IsCurrentEmployee.
type EmployeeStatus string

const (
	StatusActive     EmployeeStatus = "Active"
	StatusOnLeave    EmployeeStatus = "On Leave"
	StatusResigned   EmployeeStatus = "Resigned"
	StatusTerminated EmployeeStatus = "Terminated"
)

// Attachment references one stored object. A nil *Attachment means no file.
type Attachment struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// Valid reports whether both halves of the reference are present.
func (a *Attachment) Valid() bool {
	return a != nil && a.PublicID != "" && a.URL != ""
}

// WorkExperience is one prior employment entry. ID is assigned on first persist.
type WorkExperience struct {
	ID               string      `json:"_id,omitempty"`
	CompanyName      string      `json:"company_name"`
	Role             string      `json:"role"`
	Duration         string      `json:"duration"`
	ExperienceLetter *Attachment `json:"experience_letter"`
}

type SalaryDetails struct {
	MonthlySalary     float64 `json:"monthly_salary,omitempty"`
	BankAccountNumber string  `json:"bank_account_number,omitempty"`
	IFSCCode          string  `json:"ifsc_code,omitempty"`
	BankName          string  `json:"bank_name,omitempty"`
	PFAccountNumber   string  `json:"pf_account_number,omitempty"`
}

type Documents struct {
	Resume        *Attachment  `json:"resume"`
	OfferLetter   *Attachment  `json:"offer_letter"`
	JoiningLetter *Attachment  `json:"joining_letter"`
	OtherDocs     []Attachment `json:"other_docs"`
}

// Employee is the root aggregate. PasswordHash never leaves the server.
type Employee struct {
	ID                string            `json:"_id"`
	EmployeeID        string            `json:"employee_id"`
	Name              string            `json:"name"`
	PasswordHash      string            `json:"-"`
	Contact1          string            `json:"contact1"`
	Contact2          string            `json:"contact2,omitempty"`
	Email             string            `json:"email"`
	Address           string            `json:"address,omitempty"`
	City              string            `json:"city,omitempty"`
	State             string            `json:"state,omitempty"`
	Pincode           string            `json:"pincode,omitempty"`
	AadharNumber      string            `json:"aadhar_number,omitempty"`
	PanNumber         string            `json:"pan_number,omitempty"`
	ProfileImage      *Attachment       `json:"profile_image"`
	AadharDocument    *Attachment       `json:"aadhar_document"`
	PanDocument       *Attachment       `json:"pan_document"`
	WorkStartDate     Date              `json:"work_start_date"`
	Tenure            string            `json:"tenure,omitempty"`
	EmploymentType    EmploymentType    `json:"employment_type"`
	IsCurrentEmployee bool              `json:"is_current_employee"`
	WorkExperience    []WorkExperience  `json:"work_experience"`
	Designation       string            `json:"designation,omitempty"`
	Department        string            `json:"department,omitempty"`
	ReportingManager  string            `json:"reporting_manager,omitempty"`
	EmployeeStatus    EmployeeStatus    `json:"employee_status"`
	SalaryDetails     SalaryDetails     `json:"salary_details"`
	Documents         Documents         `json:"documents"`
	ContractAgreement ContractAgreement `json:"contract_agreement"`
	Notes             string            `json:"notes,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// NewEmployee returns an employee carrying the model defaults.
func NewEmployee() *Employee {
	return &Employee{
		EmploymentType:    EmploymentFullTime,
		EmployeeStatus:    StatusActive,
		IsCurrentEmployee: true,
		WorkExperience:    []WorkExperience{},
		Documents:         Documents{OtherDocs: []Attachment{}},
	}
}

// AttachmentState is the file-bearing slice of an employee record.
type AttachmentState struct {
	ProfileImage   *Attachment
	AadharDocument *Attachment
	PanDocument    *Attachment
	Documents      Documents
	WorkExperience []WorkExperience
}

func (e *Employee) Attachments() AttachmentState {
	return AttachmentState{
		ProfileImage:   e.ProfileImage,
		AadharDocument: e.AadharDocument,
		PanDocument:    e.PanDocument,
		Documents:      e.Documents,
		WorkExperience: e.WorkExperience,
	}
}

func (e *Employee) SetAttachments(s AttachmentState) {
	e.ProfileImage = s.ProfileImage
	e.AadharDocument = s.AadharDocument
	e.PanDocument = s.PanDocument
	e.Documents = s.Documents
	e.WorkExperience = s.WorkExperience
	if e.Documents.OtherDocs == nil {
		e.Documents.OtherDocs = []Attachment{}
	}
	if e.WorkExperience == nil {
		e.WorkExperience = []WorkExperience{}
	}
}

// All returns every stored object referenced by the state.
func (s AttachmentState) All() []Attachment {
	var out []Attachment
	add := func(a *Attachment) {
		if a != nil && a.PublicID != "" {
			out = append(out, *a)
		}
	}
	add(s.ProfileImage)
	add(s.AadharDocument)
	add(s.PanDocument)
	add(s.Documents.Resume)
	add(s.Documents.OfferLetter)
	add(s.Documents.JoiningLetter)
	for i := range s.Documents.OtherDocs {
		add(&s.Documents.OtherDocs[i])
	}
	for _, w := range s.WorkExperience {
		add(w.ExperienceLetter)
	}
	return out
}

// LetterState describes what an incoming work-experience entry says about its letter.
type LetterState int

const (
	LetterAbsent LetterState = iota
	LetterCleared
	LetterKept
)

// WorkExperienceInput is a submitted entry. ExperienceLetter is kept raw so an
// explicit null can be told apart from an omitted key.
type WorkExperienceInput struct {
	ID               string          `json:"_id,omitempty"`
	CompanyName      string          `json:"company_name"`
	Role             string          `json:"role"`
	Duration         string          `json:"duration"`
	ExperienceLetter json.RawMessage `json:"experience_letter,omitempty"`
}

func (w WorkExperienceInput) Letter() LetterState {
	switch {
	case w.ExperienceLetter == nil:
		return LetterAbsent
	case bytes.Equal(bytes.TrimSpace(w.ExperienceLetter), []byte("null")):
		return LetterCleared
	default:
		return LetterKept
	}
}

// DocumentType names a deletable attachment slot.
type DocumentType string

const (
	DocProfileImage     DocumentType = "profile_image"
	DocAadharDocument   DocumentType = "aadhar_document"
	DocPanDocument      DocumentType = "pan_document"
	DocResume           DocumentType = "resume"
	DocOfferLetter      DocumentType = "offer_letter"
	DocJoiningLetter    DocumentType = "joining_letter"
	DocOtherDocs        DocumentType = "other_docs"
	DocExperienceLetter DocumentType = "experience_letter"
)

// ParseDocumentType validates s against the known slots.
func ParseDocumentType(s string) (DocumentType, bool) {
	switch dt := DocumentType(s); dt {
	case DocProfileImage, DocAadharDocument, DocPanDocument, DocResume,
		DocOfferLetter, DocJoiningLetter, DocOtherDocs, DocExperienceLetter:
		return dt, true
	}
	return "", false
}

// HasDocument reports whether publicID is currently referenced in slot dt.
func (e *Employee) HasDocument(dt DocumentType, publicID string) bool {
	match := func(a *Attachment) bool { return a != nil && a.PublicID == publicID }
	switch dt {
	case DocProfileImage:
		return match(e.ProfileImage)
	case DocAadharDocument:
		return match(e.AadharDocument)
	case DocPanDocument:
		return match(e.PanDocument)
	case DocResume:
		return match(e.Documents.Resume)
	case DocOfferLetter:
		return match(e.Documents.OfferLetter)
	case DocJoiningLetter:
		return match(e.Documents.JoiningLetter)
	case DocOtherDocs:
		for i := range e.Documents.OtherDocs {
			if match(&e.Documents.OtherDocs[i]) {
				return true
			}
		}
	case DocExperienceLetter:
		for _, w := range e.WorkExperience {
			if match(w.ExperienceLetter) {
				return true
			}
		}
	}
	return false
}

// EmployeeRepository persists employees as documents.
type EmployeeRepository interface {
	Create(ctx context.Context, emp *Employee) error
	GetByID(ctx context.Context, id string) (*Employee, error)
	List(ctx context.Context) ([]*Employee, error)
	// Update writes emp only if the stored row still carries emp.UpdatedAt;
	// otherwise it returns ErrConflict.
	Update(ctx context.Context, emp *Employee, passwordChanged bool) error
	Delete(ctx context.Context, id string) error
	RemoveDocument(ctx context.Context, id string, dt DocumentType, publicID string) error
	ToggleCurrent(ctx context.Context, id string) (*Employee, error)
	UpdateContractFields(ctx context.Context, id string, fields []ContractField) (*Employee, error)
	AcceptContract(ctx context.Context, id string, at time.Time) (*Employee, bool, error)
}
