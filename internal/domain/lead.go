package domain

import (
	"context"
	"time"
)

// LeadStatus tracks where a lead sits in the sales funnel.
type LeadStatus string

const (
	LeadNew       LeadStatus = "New"
	LeadContacted LeadStatus = "Contacted"
	LeadQualified LeadStatus = "Qualified"
	LeadLost      LeadStatus = "Lost"
	LeadWon       LeadStatus = "Won"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadNew, LeadContacted, LeadQualified, LeadLost, LeadWon:
		return true
	}
	return false
}

type Lead struct {
	ID          string     `json:"_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Company     string     `json:"company,omitempty"`
	Source      string     `json:"source,omitempty"`
	Status      LeadStatus `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	MeetingDate Date       `json:"meetingDate"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type LeadRepository interface {
	Create(ctx context.Context, lead *Lead) error
	GetByID(ctx context.Context, id string) (*Lead, error)
	List(ctx context.Context) ([]*Lead, error)
	Update(ctx context.Context, lead *Lead) error
	Delete(ctx context.Context, id string) error
	// ListMeetingsBetween returns leads with from <= meeting_date < to.
	ListMeetingsBetween(ctx context.Context, from, to time.Time) ([]*Lead, error)
}
