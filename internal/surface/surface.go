package surface

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/birthday-service/internal/domain"
)

// Action is one affordance on the mirrored ticket message.
type Action struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

// Payload is the external representation of a ticket's current state.
type Payload struct {
	Title     string            `json:"title"`
	RequestID string            `json:"request_id"`
	Status    string            `json:"status"`
	Priority  string            `json:"priority"`
	Fields    map[string]string `json:"fields"`
	Notes     []string          `json:"notes"`
	Actions   []Action          `json:"actions"`
}

// RenderTicket builds the surface payload mirroring the ticket.
func RenderTicket(ticket *domain.TicketRequest) Payload {
	fields := map[string]string{
		"subject":   ticket.UserID,
		"requested": ticket.Requested.String(),
	}
	if ticket.Current != nil {
		fields["current"] = ticket.Current.String()
	}
	if ticket.Reason != "" {
		fields["reason"] = ticket.Reason
	}
	if ticket.ReviewedBy != nil {
		fields["reviewed_by"] = *ticket.ReviewedBy
	}
	if ticket.RejectionReason != nil {
		fields["rejection_reason"] = *ticket.RejectionReason
	}

	notes := make([]string, 0, len(ticket.StaffNotes))
	for _, note := range ticket.StaffNotes {
		notes = append(notes, fmt.Sprintf("%s: %s", note.StaffID, note.Note))
	}

	return Payload{
		Title:     fmt.Sprintf("Birthday change request #%d", ticket.TicketNumber),
		RequestID: ticket.RequestID,
		Status:    string(ticket.Status),
		Priority:  string(ticket.Priority),
		Fields:    fields,
		Notes:     notes,
		Actions:   RenderActions(ticket),
	}
}

// RenderActions builds the action affordances for the ticket's status.
// Approve/reject/cancel are usable only while the ticket is open; reopen is
// usable only from rejected or cancelled, never from approved.
func RenderActions(ticket *domain.TicketRequest) []Action {
	open := ticket.Status == domain.TicketStatusOpen
	return []Action{
		{ID: "approve:" + ticket.RequestID, Label: "Approve", Disabled: !open},
		{ID: "reject:" + ticket.RequestID, Label: "Reject", Disabled: !open},
		{ID: "cancel:" + ticket.RequestID, Label: "Cancel", Disabled: !open},
		{ID: "reopen:" + ticket.RequestID, Label: "Reopen", Disabled: !ticket.Reopenable()},
	}
}

// Surface mirrors tickets onto an external ticket channel. Sync publishes
// the payload, reusing the ticket's existing message when present, and
// returns the message ID backing the mirror.
type Surface interface {
	Sync(ctx context.Context, ticket *domain.TicketRequest, channelID string) (messageID string, err error)
}

// LogSurface records surface updates in the log. Stands in for the chat
// platform mirror in development and tests.
type LogSurface struct {
	logger *zap.Logger
}

// NewLogSurface constructs a LogSurface.
func NewLogSurface(logger *zap.Logger) *LogSurface {
	return &LogSurface{logger: logger}
}

func (s *LogSurface) Sync(ctx context.Context, ticket *domain.TicketRequest, channelID string) (string, error) {
	payload := RenderTicket(ticket)
	s.logger.Info("ticket surface sync",
		zap.String("channel_id", channelID),
		zap.String("request_id", ticket.RequestID),
		zap.String("status", payload.Status),
	)
	if ticket.MessageID != nil {
		return *ticket.MessageID, nil
	}
	return "msg-" + ticket.RequestID, nil
}
