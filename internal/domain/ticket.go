package domain

import "time"

// TicketStatus enumerates lifecycle states for birthday-change tickets.
type TicketStatus string

const (
	TicketStatusOpen      TicketStatus = "OPEN"
	TicketStatusApproved  TicketStatus = "APPROVED"
	TicketStatusRejected  TicketStatus = "REJECTED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
)

// TicketPriority enumerates staff triage urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityNormal TicketPriority = "NORMAL"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// StaffNote is one entry in a ticket's append-only note log.
type StaffNote struct {
	StaffID   string    `json:"staff_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketRequest is the aggregate for a pending birthday change.
//
// TicketNumber is assigned per guild, monotonically increasing and never
// reused. RequestID is a globally unique opaque token independent of the
// number; UI components reference tickets by it.
type TicketRequest struct {
	TicketNumber    int
	RequestID       string
	GuildID         string
	UserID          string
	Requested       Date
	Current         *Date
	Reason          string
	Priority        TicketPriority
	Status          TicketStatus
	ReviewedBy      *string
	ReviewedAt      *time.Time
	RejectionReason *string
	StaffNotes      []StaffNote
	MessageID       *string
	ChannelID       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Terminal reports whether no further review transition applies. Approved
// tickets stay terminal; rejected and cancelled ones can be reopened.
func (t *TicketRequest) Terminal() bool {
	return t.Status != TicketStatusOpen
}

// Reopenable reports whether the ticket may return to OPEN.
func (t *TicketRequest) Reopenable() bool {
	return t.Status == TicketStatusRejected || t.Status == TicketStatusCancelled
}
