package models

import "time"

type BookingStatus string

const (
	StatusPending  BookingStatus = "pending"
	StatusApproved BookingStatus = "approved"
	StatusRejected BookingStatus = "rejected"
	StatusPickedUp BookingStatus = "picked_up"
	StatusReturned BookingStatus = "returned"
)

// ActiveStatuses are the statuses that hold a resource for their window.
var ActiveStatuses = []BookingStatus{StatusApproved, StatusPickedUp}

// IsActive reports whether the booking holds its resource.
func (s BookingStatus) IsActive() bool {
	return s == StatusApproved || s == StatusPickedUp
}

func (s BookingStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusReturned
}

type Booking struct {
	ID          int64         `json:"id"`
	RequesterID string        `json:"user_id"`
	ResourceID  *int64        `json:"console_id"`
	StartAt     time.Time     `json:"start_at"`
	EndAt       time.Time     `json:"end_at"`
	Status      BookingStatus `json:"status"`
	QuotedPrice *int64        `json:"total_price"`
	Notes       string        `json:"notes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Version     int64         `json:"version"`

	// Populated by list queries only.
	ResourceLabel  string `json:"console_label,omitempty"`
	RequesterEmail string `json:"user_email,omitempty"`
}

// BookedResource returns the bound resource id or 0.
func (b *Booking) BookedResource() int64 {
	if b.ResourceID == nil {
		return 0
	}
	return *b.ResourceID
}

// SubmitRequest is a requester's ask for a window, optionally on one device.
type SubmitRequest struct {
	StartAt    time.Time
	EndAt      time.Time
	ResourceID *int64
	Notes      string
}

type AvailabilityCause string

const (
	CauseNone         AvailabilityCause = ""
	CauseNoCandidates AvailabilityCause = "no_candidates"
	CauseBusy         AvailabilityCause = "busy"
)

// Availability answers whether a window can currently be satisfied.
type Availability struct {
	Available bool              `json:"available"`
	Reason    string            `json:"reason,omitempty"`
	Cause     AvailabilityCause `json:"cause,omitempty"`
}
