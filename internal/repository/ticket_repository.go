package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/birthday-service/internal/domain"
)

// ErrDuplicateOpenTicket signals that the subject already has an open
// ticket in the guild. The existing ticket should be returned to the caller.
var ErrDuplicateOpenTicket = errors.New("subject already has an open ticket")

const uniqueViolation = "23505"

// TicketRepository encapsulates ticket persistence. Implementations must
// assign ticket numbers atomically per guild and perform status transitions
// as conditional updates on the pre-image status.
type TicketRepository interface {
	// Create persists the ticket and assigns the next per-guild ticket
	// number. Returns ErrDuplicateOpenTicket when an open ticket already
	// exists for (guild, user).
	Create(ctx context.Context, ticket *domain.TicketRequest) error
	// Update rewrites mutable fields without touching status. Used for
	// notes, priority and surface references, valid in any status.
	Update(ctx context.Context, ticket *domain.TicketRequest) error
	// Transition writes the ticket only if its stored status still equals
	// expected. Returns false when another actor transitioned it first.
	Transition(ctx context.Context, ticket *domain.TicketRequest, expected domain.TicketStatus) (bool, error)
	GetByRequestID(ctx context.Context, requestID string) (*domain.TicketRequest, error)
	GetByNumber(ctx context.Context, guildID string, number int) (*domain.TicketRequest, error)
	// FindOpenByPrefix resolves a case-insensitive requestID prefix to the
	// first matching open ticket in the guild.
	FindOpenByPrefix(ctx context.Context, guildID, prefix string) (*domain.TicketRequest, error)
	GetOpenForUser(ctx context.Context, guildID, userID string) (*domain.TicketRequest, error)
	ListOpen(ctx context.Context, guildID string) ([]domain.TicketRequest, error)
	ListForUser(ctx context.Context, guildID, userID string) ([]domain.TicketRequest, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `request_id, ticket_number, guild_id, user_id,
       req_month, req_day, req_year, cur_month, cur_day, cur_year,
       reason, priority, status, reviewed_by, reviewed_at, rejection_reason,
       staff_notes, message_id, channel_id, created_at, updated_at`

const maxNumberingRetries = 5

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.TicketRequest) error {
	const query = `
        INSERT INTO ticket_requests (request_id, ticket_number, guild_id, user_id,
            req_month, req_day, req_year, cur_month, cur_day, cur_year,
            reason, priority, status, staff_notes)
        VALUES ($1,
            (SELECT COALESCE(MAX(ticket_number),0)+1 FROM ticket_requests WHERE guild_id=$2),
            $2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING ticket_number, created_at, updated_at`

	notes, err := marshalNotes(ticket.StaffNotes)
	if err != nil {
		return err
	}

	var curMonth, curDay, curYear *int
	if ticket.Current != nil {
		curMonth, curDay, curYear = &ticket.Current.Month, &ticket.Current.Day, ticket.Current.Year
	}

	// The MAX+1 subselect can race with a concurrent submit for the same
	// guild; the unique constraint rejects the loser and we retry with a
	// fresh sequence value.
	for attempt := 0; attempt < maxNumberingRetries; attempt++ {
		err := r.pool.QueryRow(ctx, query,
			ticket.RequestID,
			ticket.GuildID,
			ticket.UserID,
			ticket.Requested.Month,
			ticket.Requested.Day,
			ticket.Requested.Year,
			curMonth,
			curDay,
			curYear,
			ticket.Reason,
			ticket.Priority,
			ticket.Status,
			notes,
		).Scan(&ticket.TicketNumber, &ticket.CreatedAt, &ticket.UpdatedAt)
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == "uq_open_ticket_per_subject" {
				return ErrDuplicateOpenTicket
			}
			if pgErr.ConstraintName == "uq_ticket_number_per_guild" {
				continue
			}
		}
		return err
	}
	return errors.New("ticket numbering contention: retries exhausted")
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.TicketRequest) error {
	const query = `
        UPDATE ticket_requests
        SET reason=$2, priority=$3, staff_notes=$4, message_id=$5, channel_id=$6, updated_at=NOW()
        WHERE request_id=$1`
	notes, err := marshalNotes(ticket.StaffNotes)
	if err != nil {
		return err
	}
	cmd, err := r.pool.Exec(ctx, query,
		ticket.RequestID,
		ticket.Reason,
		ticket.Priority,
		notes,
		ticket.MessageID,
		ticket.ChannelID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Transition(ctx context.Context, ticket *domain.TicketRequest, expected domain.TicketStatus) (bool, error) {
	const query = `
        UPDATE ticket_requests
        SET status=$2, reviewed_by=$3, reviewed_at=$4, rejection_reason=$5,
            staff_notes=$6, updated_at=NOW()
        WHERE request_id=$1 AND status=$7`
	notes, err := marshalNotes(ticket.StaffNotes)
	if err != nil {
		return false, err
	}
	cmd, err := r.pool.Exec(ctx, query,
		ticket.RequestID,
		ticket.Status,
		ticket.ReviewedBy,
		ticket.ReviewedAt,
		ticket.RejectionReason,
		notes,
		expected,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.TicketRequest, error) {
	query := `SELECT ` + ticketColumns + ` FROM ticket_requests WHERE request_id=$1`
	return r.fetchSingle(ctx, query, requestID)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, guildID string, number int) (*domain.TicketRequest, error) {
	query := `SELECT ` + ticketColumns + ` FROM ticket_requests WHERE guild_id=$1 AND ticket_number=$2`
	return r.fetchSingle(ctx, query, guildID, number)
}

func (r *ticketRepository) FindOpenByPrefix(ctx context.Context, guildID, prefix string) (*domain.TicketRequest, error) {
	query := `SELECT ` + ticketColumns + ` FROM ticket_requests
              WHERE guild_id=$1 AND status='OPEN' AND request_id::text ILIKE $2 || '%'
              ORDER BY created_at LIMIT 1`
	return r.fetchSingle(ctx, query, guildID, prefix)
}

func (r *ticketRepository) GetOpenForUser(ctx context.Context, guildID, userID string) (*domain.TicketRequest, error) {
	query := `SELECT ` + ticketColumns + ` FROM ticket_requests
              WHERE guild_id=$1 AND user_id=$2 AND status='OPEN'`
	return r.fetchSingle(ctx, query, guildID, userID)
}

func (r *ticketRepository) ListOpen(ctx context.Context, guildID string) ([]domain.TicketRequest, error) {
	query := `SELECT ` + ticketColumns + ` FROM ticket_requests
              WHERE guild_id=$1 AND status='OPEN'
              ORDER BY CASE priority WHEN 'HIGH' THEN 0 WHEN 'NORMAL' THEN 1 ELSE 2 END, created_at`
	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListForUser(ctx context.Context, guildID, userID string) ([]domain.TicketRequest, error) {
	query := `SELECT ` + ticketColumns + ` FROM ticket_requests
              WHERE guild_id=$1 AND user_id=$2 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, guildID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.TicketRequest, error) {
	return scanTicket(r.pool.QueryRow(ctx, query, args...))
}

func scanTicket(row rowScanner) (*domain.TicketRequest, error) {
	var (
		ticket    domain.TicketRequest
		notesJSON []byte
		curMonth  *int
		curDay    *int
		curYear   *int
	)
	if err := row.Scan(
		&ticket.RequestID,
		&ticket.TicketNumber,
		&ticket.GuildID,
		&ticket.UserID,
		&ticket.Requested.Month,
		&ticket.Requested.Day,
		&ticket.Requested.Year,
		&curMonth,
		&curDay,
		&curYear,
		&ticket.Reason,
		&ticket.Priority,
		&ticket.Status,
		&ticket.ReviewedBy,
		&ticket.ReviewedAt,
		&ticket.RejectionReason,
		&notesJSON,
		&ticket.MessageID,
		&ticket.ChannelID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if curMonth != nil && curDay != nil {
		ticket.Current = &domain.Date{Month: *curMonth, Day: *curDay, Year: curYear}
	}
	if len(notesJSON) > 0 {
		if err := json.Unmarshal(notesJSON, &ticket.StaffNotes); err != nil {
			return nil, err
		}
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.TicketRequest, error) {
	var result []domain.TicketRequest
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func marshalNotes(notes []domain.StaffNote) ([]byte, error) {
	if notes == nil {
		notes = []domain.StaffNote{}
	}
	return json.Marshal(notes)
}
