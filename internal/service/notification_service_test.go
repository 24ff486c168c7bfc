package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/birthday-service/internal/domain"
	"github.com/spec-kit/birthday-service/internal/events"
	"github.com/spec-kit/birthday-service/internal/repository"
)

type recordingSurface struct {
	mu    sync.Mutex
	syncs []string
}

func (s *recordingSurface) Sync(ctx context.Context, ticket *domain.TicketRequest, channelID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncs = append(s.syncs, ticket.RequestID)
	return "msg-" + ticket.RequestID, nil
}

func publishTicketEvent(t *testing.T, dispatcher events.Dispatcher, eventType events.EventType, ticket *domain.TicketRequest) {
	t.Helper()
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		GuildID:   ticket.GuildID,
		ActorID:   "staff-1",
		Timestamp: time.Now(),
		Payload:   events.TicketEventPayload{Ticket: ticket},
	}))
}

// TestNotification_ApprovalSyncsAndMessages mirrors the ticket and DMs the
// subject, persisting the surface message reference.
func TestNotification_ApprovalSyncsAndMessages(t *testing.T) {
	ctx := context.Background()
	tickets := repository.NewMemoryTicketRepository()
	guilds := repository.NewMemoryGuildRepository()
	notifier := &recordingNotifier{}
	mirror := &recordingSurface{}
	dispatcher := events.NewInMemoryDispatcher()

	require.NoError(t, guilds.Upsert(ctx, &domain.GuildSettings{
		GuildID:       "g1",
		Enabled:       true,
		TicketChannel: strPtr("tickets-chan"),
	}))

	ticket := &domain.TicketRequest{
		RequestID: "req-1",
		GuildID:   "g1",
		UserID:    "u1",
		Requested: domain.Date{Month: 12, Day: 25},
		Status:    domain.TicketStatusOpen,
		Priority:  domain.TicketPriorityNormal,
	}
	require.NoError(t, tickets.Create(ctx, ticket))
	ticket.Status = domain.TicketStatusApproved

	NewNotificationService(tickets, guilds, notifier, mirror, zap.NewNop()).RegisterHandlers(dispatcher)
	publishTicketEvent(t, dispatcher, events.EventTicketApproved, ticket)

	assert.Equal(t, []string{"req-1"}, mirror.syncs)
	require.Len(t, notifier.direct, 1)
	assert.Contains(t, notifier.direct[0], "approved")

	stored, err := tickets.GetByRequestID(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, stored.MessageID)
	assert.Equal(t, "msg-req-1", *stored.MessageID)
}

// TestNotification_SubmitDoesNotDM only approval and rejection message the
// subject directly.
func TestNotification_SubmitDoesNotDM(t *testing.T) {
	ctx := context.Background()
	tickets := repository.NewMemoryTicketRepository()
	guilds := repository.NewMemoryGuildRepository()
	notifier := &recordingNotifier{}
	mirror := &recordingSurface{}
	dispatcher := events.NewInMemoryDispatcher()

	require.NoError(t, guilds.Upsert(ctx, &domain.GuildSettings{
		GuildID:       "g1",
		Enabled:       true,
		TicketChannel: strPtr("tickets-chan"),
	}))
	ticket := &domain.TicketRequest{
		RequestID: "req-1",
		GuildID:   "g1",
		UserID:    "u1",
		Requested: domain.Date{Month: 12, Day: 25},
		Status:    domain.TicketStatusOpen,
		Priority:  domain.TicketPriorityNormal,
	}
	require.NoError(t, tickets.Create(ctx, ticket))

	NewNotificationService(tickets, guilds, notifier, mirror, zap.NewNop()).RegisterHandlers(dispatcher)
	publishTicketEvent(t, dispatcher, events.EventTicketSubmitted, ticket)

	assert.Len(t, mirror.syncs, 1, "submission still mirrors the ticket")
	assert.Empty(t, notifier.direct)
}

// TestNotification_NoTicketChannel skips the mirror entirely.
func TestNotification_NoTicketChannel(t *testing.T) {
	ctx := context.Background()
	tickets := repository.NewMemoryTicketRepository()
	guilds := repository.NewMemoryGuildRepository()
	notifier := &recordingNotifier{}
	mirror := &recordingSurface{}
	dispatcher := events.NewInMemoryDispatcher()

	require.NoError(t, guilds.Upsert(ctx, &domain.GuildSettings{GuildID: "g1", Enabled: true}))
	ticket := &domain.TicketRequest{
		RequestID: "req-1",
		GuildID:   "g1",
		UserID:    "u1",
		Requested: domain.Date{Month: 12, Day: 25},
		Status:    domain.TicketStatusOpen,
		Priority:  domain.TicketPriorityNormal,
	}
	require.NoError(t, tickets.Create(ctx, ticket))

	NewNotificationService(tickets, guilds, notifier, mirror, zap.NewNop()).RegisterHandlers(dispatcher)
	publishTicketEvent(t, dispatcher, events.EventTicketSubmitted, ticket)

	assert.Empty(t, mirror.syncs)
}
