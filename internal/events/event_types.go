package events

import (
	"time"

	"github.com/spec-kit/birthday-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketSubmitted       EventType = "ticket_submitted"
	EventTicketApproved        EventType = "ticket_approved"
	EventTicketRejected        EventType = "ticket_rejected"
	EventTicketCancelled       EventType = "ticket_cancelled"
	EventTicketReopened        EventType = "ticket_reopened"
	EventTicketNoteAdded       EventType = "ticket_note_added"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventBirthdaySet           EventType = "birthday_set"
	EventBirthdayRemoved       EventType = "birthday_removed"
	EventBirthdayCelebrated    EventType = "birthday_celebrated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	GuildID   string      `json:"guild_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketEventPayload carries the ticket snapshot after a transition.
type TicketEventPayload struct {
	Ticket *domain.TicketRequest `json:"ticket"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	Ticket      *domain.TicketRequest `json:"ticket"`
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// BirthdaySetPayload payload.
type BirthdaySetPayload struct {
	UserID   string         `json:"user_id"`
	Birthday domain.Date    `json:"birthday"`
	Source   domain.BirthdaySource `json:"source"`
}

// BirthdayCelebratedPayload payload.
type BirthdayCelebratedPayload struct {
	UserID     string                       `json:"user_id"`
	Preference domain.CelebrationPreference `json:"preference"`
	Age        *int                         `json:"age,omitempty"`
}
