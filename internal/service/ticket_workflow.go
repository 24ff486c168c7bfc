package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/birthday-service/internal/clock"
	"github.com/spec-kit/birthday-service/internal/domain"
	"github.com/spec-kit/birthday-service/internal/events"
	"github.com/spec-kit/birthday-service/internal/repository"
	"github.com/spec-kit/birthday-service/pkg/util"
)

// StaffChecker is the opaque authorization gate consulted before any
// staff-only transition. The workflow performs no authorization logic of
// its own.
type StaffChecker interface {
	IsStaff(ctx context.Context, actorID, guildID string) (bool, error)
}

const defaultRejectionReason = "No reason provided"

// TicketWorkflow validates and applies state transitions on birthday-change
// tickets, and on approval synchronizes the birthday store.
type TicketWorkflow struct {
	tickets    repository.TicketRepository
	birthdays  repository.BirthdayRepository
	engine     *CelebrationEngine
	staff      StaffChecker
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// WorkflowDependencies bundles collaborators for the workflow.
type WorkflowDependencies struct {
	TicketRepo   repository.TicketRepository
	BirthdayRepo repository.BirthdayRepository
	Engine       *CelebrationEngine
	Staff        StaffChecker
	Dispatcher   events.Dispatcher
	Clock        clock.Clock
	Logger       *zap.Logger
}

// NewTicketWorkflow constructs the workflow.
func NewTicketWorkflow(deps WorkflowDependencies) *TicketWorkflow {
	c := deps.Clock
	if c == nil {
		c = clock.System()
	}
	return &TicketWorkflow{
		tickets:    deps.TicketRepo,
		birthdays:  deps.BirthdayRepo,
		engine:     deps.Engine,
		staff:      deps.Staff,
		dispatcher: deps.Dispatcher,
		clock:      c,
		logger:     deps.Logger,
	}
}

// SubmitInput describes a change request.
type SubmitInput struct {
	GuildID   string
	UserID    string
	Requested domain.Date
	Reason    string
}

// SubmitResult reports the outcome of a submit call. Exactly one of Ticket,
// Existing or NoChange is meaningful: Existing carries the already-open
// ticket on a duplicate submit, NoChange marks the informational no-op when
// the requested date equals the current verified record.
type SubmitResult struct {
	Ticket   *domain.TicketRequest
	Existing *domain.TicketRequest
	NoChange bool
}

// Submit validates and creates a new open ticket.
func (w *TicketWorkflow) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	if err := input.Requested.Validate(); err != nil {
		return nil, util.NewValidationError(err.Error(), nil)
	}

	if existing, err := w.tickets.GetOpenForUser(ctx, input.GuildID, input.UserID); err == nil {
		return &SubmitResult{Existing: existing}, util.NewConflict(
			"an open ticket already exists for this user",
			map[string]any{"ticket_number": existing.TicketNumber, "request_id": existing.RequestID},
		)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, util.MapError(err)
	}

	var current *domain.Date
	record, err := w.birthdays.Get(ctx, input.GuildID, input.UserID)
	switch {
	case err == nil:
		snapshot := record.Birthday
		current = &snapshot
		if record.Verified && record.Birthday.Equal(input.Requested) {
			return &SubmitResult{NoChange: true}, nil
		}
	case errors.Is(err, pgx.ErrNoRows):
		// first birthday for this subject
	default:
		return nil, util.MapError(err)
	}

	ticket := &domain.TicketRequest{
		RequestID:  uuid.NewString(),
		GuildID:    input.GuildID,
		UserID:     input.UserID,
		Requested:  input.Requested,
		Current:    current,
		Reason:     strings.TrimSpace(input.Reason),
		Priority:   domain.TicketPriorityNormal,
		Status:     domain.TicketStatusOpen,
		StaffNotes: []domain.StaffNote{},
	}

	if err := w.tickets.Create(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrDuplicateOpenTicket) {
			// Lost the submit race; surface the winner's ticket.
			if existing, lookupErr := w.tickets.GetOpenForUser(ctx, input.GuildID, input.UserID); lookupErr == nil {
				return &SubmitResult{Existing: existing}, util.NewConflict(
					"an open ticket already exists for this user",
					map[string]any{"ticket_number": existing.TicketNumber, "request_id": existing.RequestID},
				)
			}
			return nil, util.NewConflict("an open ticket already exists for this user", nil)
		}
		return nil, util.MapError(err)
	}

	w.publish(ctx, events.EventTicketSubmitted, input.UserID, ticket)
	return &SubmitResult{Ticket: ticket}, nil
}

// Approve transitions an open ticket to approved, upserts the birthday
// record with the requested date and runs the celebration check for today.
func (w *TicketWorkflow) Approve(ctx context.Context, guildID, ref, actorID string) (*domain.TicketRequest, error) {
	if err := w.requireStaff(ctx, actorID, guildID); err != nil {
		return nil, err
	}
	ticket, err := w.findOpen(ctx, guildID, ref)
	if err != nil {
		return nil, err
	}

	now := w.clock.Now()
	ticket.Status = domain.TicketStatusApproved
	ticket.ReviewedBy = &actorID
	ticket.ReviewedAt = &now
	ticket.RejectionReason = nil

	ok, err := w.tickets.Transition(ctx, ticket, domain.TicketStatusOpen)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !ok {
		return w.alreadyHandled(ctx, ticket.RequestID, domain.TicketStatusApproved)
	}

	record, err := w.applyApproval(ctx, ticket, actorID, now)
	if err != nil {
		return nil, err
	}

	if w.engine != nil {
		if _, err := w.engine.Check(ctx, record, now); err != nil {
			// The approval already landed; celebration failure must not
			// surface as an approval failure.
			w.logger.Warn("celebration check after approval failed",
				zap.String("request_id", ticket.RequestID), zap.Error(err))
		}
	}

	w.publish(ctx, events.EventTicketApproved, actorID, ticket)
	return ticket, nil
}

// Reject transitions an open ticket to rejected with a reason.
func (w *TicketWorkflow) Reject(ctx context.Context, guildID, ref, actorID, reason string) (*domain.TicketRequest, error) {
	if err := w.requireStaff(ctx, actorID, guildID); err != nil {
		return nil, err
	}
	ticket, err := w.findOpen(ctx, guildID, ref)
	if err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultRejectionReason
	}

	now := w.clock.Now()
	ticket.Status = domain.TicketStatusRejected
	ticket.ReviewedBy = &actorID
	ticket.ReviewedAt = &now
	ticket.RejectionReason = &reason

	ok, err := w.tickets.Transition(ctx, ticket, domain.TicketStatusOpen)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !ok {
		return w.alreadyHandled(ctx, ticket.RequestID, domain.TicketStatusRejected)
	}

	w.publish(ctx, events.EventTicketRejected, actorID, ticket)
	return ticket, nil
}

// Cancel lets the submitter withdraw their own open ticket.
func (w *TicketWorkflow) Cancel(ctx context.Context, guildID, ref, actorID string) (*domain.TicketRequest, error) {
	ticket, err := w.findOpen(ctx, guildID, ref)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != actorID {
		return nil, util.NewForbidden("only the submitter can cancel a ticket")
	}

	now := w.clock.Now()
	ticket.Status = domain.TicketStatusCancelled
	ticket.ReviewedAt = &now

	ok, err := w.tickets.Transition(ctx, ticket, domain.TicketStatusOpen)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !ok {
		return w.alreadyHandled(ctx, ticket.RequestID, domain.TicketStatusCancelled)
	}

	w.publish(ctx, events.EventTicketCancelled, actorID, ticket)
	return ticket, nil
}

// Reopen returns a rejected or cancelled ticket to open, clearing the
// review fields and appending a note. Approved tickets cannot reopen.
func (w *TicketWorkflow) Reopen(ctx context.Context, guildID, ref, actorID string) (*domain.TicketRequest, error) {
	if err := w.requireStaff(ctx, actorID, guildID); err != nil {
		return nil, err
	}
	ticket, err := w.findAny(ctx, guildID, ref)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusApproved {
		return nil, util.NewConflict("approved tickets cannot be reopened", nil)
	}
	if !ticket.Reopenable() {
		return nil, util.NewConflict("ticket is not in a reopenable status", map[string]any{"status": ticket.Status})
	}

	previous := ticket.Status
	ticket.Status = domain.TicketStatusOpen
	ticket.ReviewedBy = nil
	ticket.ReviewedAt = nil
	ticket.RejectionReason = nil
	ticket.StaffNotes = append(ticket.StaffNotes, domain.StaffNote{
		StaffID:   actorID,
		Note:      "Ticket reopened",
		CreatedAt: w.clock.Now(),
	})

	ok, err := w.tickets.Transition(ctx, ticket, previous)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !ok {
		return nil, util.NewConflict("ticket changed status concurrently", nil)
	}

	w.publish(ctx, events.EventTicketReopened, actorID, ticket)
	return ticket, nil
}

// AddNote appends a staff note; allowed in any status, never changes it.
func (w *TicketWorkflow) AddNote(ctx context.Context, guildID, ref, actorID, note string) (*domain.TicketRequest, error) {
	if err := w.requireStaff(ctx, actorID, guildID); err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, util.NewValidationError("note must not be empty", nil)
	}
	ticket, err := w.findAny(ctx, guildID, ref)
	if err != nil {
		return nil, err
	}

	ticket.StaffNotes = append(ticket.StaffNotes, domain.StaffNote{
		StaffID:   actorID,
		Note:      note,
		CreatedAt: w.clock.Now(),
	})
	if err := w.tickets.Update(ctx, ticket); err != nil {
		return nil, util.MapError(err)
	}

	w.publish(ctx, events.EventTicketNoteAdded, actorID, ticket)
	return ticket, nil
}

// SetPriority changes triage priority; allowed in any status.
func (w *TicketWorkflow) SetPriority(ctx context.Context, guildID, ref, actorID string, priority domain.TicketPriority) (*domain.TicketRequest, error) {
	if err := w.requireStaff(ctx, actorID, guildID); err != nil {
		return nil, err
	}
	switch priority {
	case domain.TicketPriorityLow, domain.TicketPriorityNormal, domain.TicketPriorityHigh:
	default:
		return nil, util.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	ticket, err := w.findAny(ctx, guildID, ref)
	if err != nil {
		return nil, err
	}

	old := ticket.Priority
	ticket.Priority = priority
	if err := w.tickets.Update(ctx, ticket); err != nil {
		return nil, util.MapError(err)
	}

	if w.dispatcher != nil {
		_ = w.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventTicketPriorityChanged,
			GuildID:   ticket.GuildID,
			ActorID:   actorID,
			Timestamp: time.Now(),
			Payload:   events.TicketPriorityChangedPayload{Ticket: ticket, OldPriority: old, NewPriority: priority},
		})
	}
	return ticket, nil
}

// Find resolves a ticket in any status by number or full requestID.
func (w *TicketWorkflow) Find(ctx context.Context, guildID, ref string) (*domain.TicketRequest, error) {
	return w.findAny(ctx, guildID, ref)
}

// ListOpen returns open tickets ordered by priority then age.
func (w *TicketWorkflow) ListOpen(ctx context.Context, guildID string) ([]domain.TicketRequest, error) {
	tickets, err := w.tickets.ListOpen(ctx, guildID)
	if err != nil {
		return nil, util.MapError(err)
	}
	return tickets, nil
}

// ListForUser returns a subject's tickets, newest first.
func (w *TicketWorkflow) ListForUser(ctx context.Context, guildID, userID string) ([]domain.TicketRequest, error) {
	tickets, err := w.tickets.ListForUser(ctx, guildID, userID)
	if err != nil {
		return nil, util.MapError(err)
	}
	return tickets, nil
}

// findOpen resolves action references: an exact ticket number or a
// case-insensitive requestID prefix, both scoped to open tickets.
func (w *TicketWorkflow) findOpen(ctx context.Context, guildID, ref string) (*domain.TicketRequest, error) {
	if number, err := strconv.Atoi(ref); err == nil {
		ticket, err := w.tickets.GetByNumber(ctx, guildID, number)
		if err != nil {
			return nil, mapLookupErr(err)
		}
		if ticket.Status != domain.TicketStatusOpen {
			return nil, util.NewNotFound("open ticket", map[string]any{"ticket_number": number, "status": ticket.Status})
		}
		return ticket, nil
	}
	ticket, err := w.tickets.FindOpenByPrefix(ctx, guildID, ref)
	if err != nil {
		return nil, mapLookupErr(err)
	}
	return ticket, nil
}

// findAny resolves a number (any status) or a full requestID; prefix
// matching stays open-scoped, so terminal tickets are addressed exactly.
func (w *TicketWorkflow) findAny(ctx context.Context, guildID, ref string) (*domain.TicketRequest, error) {
	if number, err := strconv.Atoi(ref); err == nil {
		ticket, err := w.tickets.GetByNumber(ctx, guildID, number)
		if err != nil {
			return nil, mapLookupErr(err)
		}
		return ticket, nil
	}
	if ticket, err := w.tickets.FindOpenByPrefix(ctx, guildID, ref); err == nil {
		return ticket, nil
	}
	ticket, err := w.tickets.GetByRequestID(ctx, ref)
	if err != nil {
		return nil, mapLookupErr(err)
	}
	if ticket.GuildID != guildID {
		return nil, util.NewNotFound("ticket", nil)
	}
	return ticket, nil
}

// alreadyHandled re-reads a ticket after a lost transition race. When the
// winner applied the same transition, the call reports success with the
// current state instead of erroring.
func (w *TicketWorkflow) alreadyHandled(ctx context.Context, requestID string, wanted domain.TicketStatus) (*domain.TicketRequest, error) {
	current, err := w.tickets.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if current.Status == wanted {
		return current, nil
	}
	return nil, util.NewConflict("ticket was handled by another action", map[string]any{"status": current.Status})
}

func (w *TicketWorkflow) applyApproval(ctx context.Context, ticket *domain.TicketRequest, actorID string, now time.Time) (*domain.BirthdayRecord, error) {
	record, err := w.birthdays.Get(ctx, ticket.GuildID, ticket.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		record = &domain.BirthdayRecord{
			GuildID:          ticket.GuildID,
			UserID:           ticket.UserID,
			IsActualBirthday: true,
			Preference:       domain.CelebrationPublic,
		}
	} else if err != nil {
		return nil, util.MapError(err)
	}

	record.Birthday = ticket.Requested
	record.Source = domain.SourceRequest
	record.SetBy = actorID
	record.Verified = true
	record.VerifiedBy = &actorID
	record.VerifiedAt = &now

	if err := w.birthdays.Upsert(ctx, record); err != nil {
		return nil, util.MapError(err)
	}
	return record, nil
}

func (w *TicketWorkflow) requireStaff(ctx context.Context, actorID, guildID string) error {
	isStaff, err := w.staff.IsStaff(ctx, actorID, guildID)
	if err != nil {
		return util.MapError(err)
	}
	if !isStaff {
		return util.NewForbidden("staff permission required")
	}
	return nil
}

func (w *TicketWorkflow) publish(ctx context.Context, eventType events.EventType, actorID string, ticket *domain.TicketRequest) {
	if w.dispatcher == nil {
		return
	}
	_ = w.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		GuildID:   ticket.GuildID,
		ActorID:   actorID,
		Timestamp: time.Now(),
		Payload:   events.TicketEventPayload{Ticket: ticket},
	})
}

func mapLookupErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return util.NewNotFound("ticket", nil)
	}
	return util.MapError(err)
}
