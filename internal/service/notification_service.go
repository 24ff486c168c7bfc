package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/birthday-service/internal/domain"
	"github.com/spec-kit/birthday-service/internal/events"
	"github.com/spec-kit/birthday-service/internal/notify"
	"github.com/spec-kit/birthday-service/internal/repository"
	"github.com/spec-kit/birthday-service/internal/surface"
)

// NotificationService mirrors ticket transitions onto the external ticket
// surface and sends best-effort direct notifications to subjects. Every
// effect here is non-fatal: a delivery failure is logged and the transition
// that triggered it stays successful.
type NotificationService struct {
	tickets  repository.TicketRepository
	guilds   repository.GuildRepository
	notifier notify.Notifier
	surface  surface.Surface
	logger   *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(tickets repository.TicketRepository, guilds repository.GuildRepository, notifier notify.Notifier, ticketSurface surface.Surface, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		tickets:  tickets,
		guilds:   guilds,
		notifier: notifier,
		surface:  ticketSurface,
		logger:   logger,
	}
}

// RegisterHandlers subscribes to ticket lifecycle events.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketSubmitted, n.handleTicketEvent)
	dispatcher.Subscribe(events.EventTicketApproved, n.handleTicketEvent)
	dispatcher.Subscribe(events.EventTicketRejected, n.handleTicketEvent)
	dispatcher.Subscribe(events.EventTicketCancelled, n.handleTicketEvent)
	dispatcher.Subscribe(events.EventTicketReopened, n.handleTicketEvent)
	dispatcher.Subscribe(events.EventTicketNoteAdded, n.handleTicketEvent)
	dispatcher.Subscribe(events.EventTicketPriorityChanged, n.handlePriorityEvent)
}

func (n *NotificationService) handleTicketEvent(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketEventPayload)
	if !ok || payload.Ticket == nil {
		return nil
	}
	n.syncSurface(ctx, payload.Ticket)
	n.notifySubject(ctx, event.Type, payload.Ticket)
	return nil
}

func (n *NotificationService) handlePriorityEvent(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketPriorityChangedPayload)
	if !ok || payload.Ticket == nil {
		return nil
	}
	n.syncSurface(ctx, payload.Ticket)
	return nil
}

// syncSurface refreshes the mirrored ticket message and remembers its ID.
func (n *NotificationService) syncSurface(ctx context.Context, ticket *domain.TicketRequest) {
	settings, err := n.guilds.Get(ctx, ticket.GuildID)
	if err != nil || settings.TicketChannel == nil {
		return
	}

	messageID, err := n.surface.Sync(ctx, ticket, *settings.TicketChannel)
	if err != nil {
		n.logger.Warn("ticket surface sync failed",
			zap.String("request_id", ticket.RequestID), zap.Error(err))
		return
	}
	if ticket.MessageID == nil || *ticket.MessageID != messageID {
		ticket.MessageID = &messageID
		ticket.ChannelID = settings.TicketChannel
		if err := n.tickets.Update(ctx, ticket); err != nil {
			n.logger.Warn("persisting surface reference failed",
				zap.String("request_id", ticket.RequestID), zap.Error(err))
		}
	}
}

func (n *NotificationService) notifySubject(ctx context.Context, eventType events.EventType, ticket *domain.TicketRequest) {
	var message string
	switch eventType {
	case events.EventTicketApproved:
		message = fmt.Sprintf("Your birthday change request #%d was approved. Your birthday is now %s.",
			ticket.TicketNumber, ticket.Requested.String())
	case events.EventTicketRejected:
		reason := defaultRejectionReason
		if ticket.RejectionReason != nil {
			reason = *ticket.RejectionReason
		}
		message = fmt.Sprintf("Your birthday change request #%d was rejected: %s", ticket.TicketNumber, reason)
	default:
		return
	}

	if err := n.notifier.NotifyDirect(ctx, ticket.UserID, message); err != nil {
		n.logger.Warn("subject notification failed",
			zap.String("user_id", ticket.UserID),
			zap.String("request_id", ticket.RequestID),
			zap.Error(err),
		)
	}
}
