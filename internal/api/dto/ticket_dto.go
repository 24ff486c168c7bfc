package dto

import (
	"time"

	"github.com/spec-kit/birthday-service/internal/domain"
)

// SubmitTicketRequest payload.
type SubmitTicketRequest struct {
	Month  int    `json:"month"`
	Day    int    `json:"day"`
	Year   *int   `json:"year,omitempty"`
	Reason string `json:"reason"`
}

// RejectTicketRequest payload.
type RejectTicketRequest struct {
	Reason string `json:"reason"`
}

// NoteRequest payload.
type NoteRequest struct {
	Note string `json:"note"`
}

// PriorityRequest payload.
type PriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// StaffNoteResponse is one append-only note entry.
type StaffNoteResponse struct {
	StaffID   string    `json:"staff_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketResponse mirrors a ticket's full state.
type TicketResponse struct {
	TicketNumber    int                   `json:"ticket_number"`
	RequestID       string                `json:"request_id"`
	GuildID         string                `json:"guild_id"`
	UserID          string                `json:"user_id"`
	Requested       DateResponse          `json:"requested"`
	Current         *DateResponse         `json:"current,omitempty"`
	Reason          string                `json:"reason,omitempty"`
	Priority        domain.TicketPriority `json:"priority"`
	Status          domain.TicketStatus   `json:"status"`
	ReviewedBy      *string               `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time            `json:"reviewed_at,omitempty"`
	RejectionReason *string               `json:"rejection_reason,omitempty"`
	StaffNotes      []StaffNoteResponse   `json:"staff_notes"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// SubmitTicketResponse reports a submit outcome; NoChange marks the
// informational no-op when the requested date already matches the record.
type SubmitTicketResponse struct {
	Ticket   *TicketResponse `json:"ticket,omitempty"`
	NoChange bool            `json:"no_change,omitempty"`
}

// DateResponse renders a birthday date.
type DateResponse struct {
	Month int  `json:"month"`
	Day   int  `json:"day"`
	Year  *int `json:"year,omitempty"`
}

// NewDateResponse maps a domain date.
func NewDateResponse(date domain.Date) DateResponse {
	return DateResponse{Month: date.Month, Day: date.Day, Year: date.Year}
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.TicketRequest) TicketResponse {
	resp := TicketResponse{
		TicketNumber:    ticket.TicketNumber,
		RequestID:       ticket.RequestID,
		GuildID:         ticket.GuildID,
		UserID:          ticket.UserID,
		Requested:       NewDateResponse(ticket.Requested),
		Reason:          ticket.Reason,
		Priority:        ticket.Priority,
		Status:          ticket.Status,
		ReviewedBy:      ticket.ReviewedBy,
		ReviewedAt:      ticket.ReviewedAt,
		RejectionReason: ticket.RejectionReason,
		StaffNotes:      make([]StaffNoteResponse, 0, len(ticket.StaffNotes)),
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
	if ticket.Current != nil {
		current := NewDateResponse(*ticket.Current)
		resp.Current = &current
	}
	for _, note := range ticket.StaffNotes {
		resp.StaffNotes = append(resp.StaffNotes, StaffNoteResponse(note))
	}
	return resp
}
