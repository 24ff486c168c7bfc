package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/birthday-service/internal/domain"
)

// In-memory implementations backing the storeless mode (no POSTGRES_DSN)
// and the test suite. Each repository serializes access under one mutex,
// which is what gives ticket numbering and status transitions the same
// atomicity the SQL implementations get from constraints and conditional
// updates. Not-found is reported with pgx.ErrNoRows so callers handle both
// backends identically.

type memBirthdayRepository struct {
	mu      sync.Mutex
	records map[string]*domain.BirthdayRecord
}

// NewMemoryBirthdayRepository returns an in-memory BirthdayRepository.
func NewMemoryBirthdayRepository() BirthdayRepository {
	return &memBirthdayRepository{records: make(map[string]*domain.BirthdayRecord)}
}

func birthdayKey(guildID, userID string) string {
	return guildID + "|" + userID
}

func (r *memBirthdayRepository) Upsert(ctx context.Context, record *domain.BirthdayRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	key := birthdayKey(record.GuildID, record.UserID)
	if existing, ok := r.records[key]; ok {
		record.CreatedAt = existing.CreatedAt
		record.LastCelebrated = existing.LastCelebrated
		record.NotificationSent = existing.NotificationSent
	} else {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	clone := *record
	r.records[key] = &clone
	return nil
}

func (r *memBirthdayRepository) Get(ctx context.Context, guildID, userID string) (*domain.BirthdayRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[birthdayKey(guildID, userID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *record
	return &clone, nil
}

func (r *memBirthdayRepository) Delete(ctx context.Context, guildID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := birthdayKey(guildID, userID)
	if _, ok := r.records[key]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.records, key)
	return nil
}

func (r *memBirthdayRepository) ListByGuild(ctx context.Context, guildID string) ([]domain.BirthdayRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.BirthdayRecord
	for _, record := range r.records {
		if record.GuildID == guildID {
			result = append(result, *record)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Birthday.Month != result[j].Birthday.Month {
			return result[i].Birthday.Month < result[j].Birthday.Month
		}
		return result[i].Birthday.Day < result[j].Birthday.Day
	})
	return result, nil
}

func (r *memBirthdayRepository) ListDue(ctx context.Context, guildID string, month, day int) ([]domain.BirthdayRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.BirthdayRecord
	for _, record := range r.records {
		if record.GuildID == guildID && record.Birthday.Month == month && record.Birthday.Day == day {
			result = append(result, *record)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

func (r *memBirthdayRepository) StampCelebrated(ctx context.Context, guildID, userID string, day time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[birthdayKey(guildID, userID)]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if record.CelebratedOn(day) {
		return false, nil
	}
	stamp := day
	record.LastCelebrated = &stamp
	record.NotificationSent = true
	record.UpdatedAt = time.Now()
	return true, nil
}

type memTicketRepository struct {
	mu      sync.Mutex
	tickets map[string]*domain.TicketRequest
	nextNum map[string]int
}

// NewMemoryTicketRepository returns an in-memory TicketRepository.
func NewMemoryTicketRepository() TicketRepository {
	return &memTicketRepository{
		tickets: make(map[string]*domain.TicketRequest),
		nextNum: make(map[string]int),
	}
}

func (r *memTicketRepository) Create(ctx context.Context, ticket *domain.TicketRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tickets {
		if existing.GuildID == ticket.GuildID && existing.UserID == ticket.UserID &&
			existing.Status == domain.TicketStatusOpen {
			return ErrDuplicateOpenTicket
		}
	}

	// Number assignment happens under the same lock as the write, so two
	// concurrent submits can never observe the same sequence value.
	r.nextNum[ticket.GuildID]++
	ticket.TicketNumber = r.nextNum[ticket.GuildID]

	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	clone := cloneTicket(ticket)
	r.tickets[ticket.RequestID] = clone
	return nil
}

func (r *memTicketRepository) Update(ctx context.Context, ticket *domain.TicketRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tickets[ticket.RequestID]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.Reason = ticket.Reason
	existing.Priority = ticket.Priority
	existing.StaffNotes = append([]domain.StaffNote(nil), ticket.StaffNotes...)
	existing.MessageID = ticket.MessageID
	existing.ChannelID = ticket.ChannelID
	existing.UpdatedAt = time.Now()
	ticket.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r *memTicketRepository) Transition(ctx context.Context, ticket *domain.TicketRequest, expected domain.TicketStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tickets[ticket.RequestID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if existing.Status != expected {
		return false, nil
	}
	existing.Status = ticket.Status
	existing.ReviewedBy = ticket.ReviewedBy
	existing.ReviewedAt = ticket.ReviewedAt
	existing.RejectionReason = ticket.RejectionReason
	existing.StaffNotes = append([]domain.StaffNote(nil), ticket.StaffNotes...)
	existing.UpdatedAt = time.Now()
	ticket.UpdatedAt = existing.UpdatedAt
	return true, nil
}

func (r *memTicketRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.TicketRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[requestID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (r *memTicketRepository) GetByNumber(ctx context.Context, guildID string, number int) (*domain.TicketRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ticket := range r.tickets {
		if ticket.GuildID == guildID && ticket.TicketNumber == number {
			return cloneTicket(ticket), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memTicketRepository) FindOpenByPrefix(ctx context.Context, guildID, prefix string) (*domain.TicketRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lower := strings.ToLower(prefix)
	var match *domain.TicketRequest
	for _, ticket := range r.tickets {
		if ticket.GuildID != guildID || ticket.Status != domain.TicketStatusOpen {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(ticket.RequestID), lower) {
			continue
		}
		if match == nil || ticket.CreatedAt.Before(match.CreatedAt) {
			match = ticket
		}
	}
	if match == nil {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(match), nil
}

func (r *memTicketRepository) GetOpenForUser(ctx context.Context, guildID, userID string) (*domain.TicketRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ticket := range r.tickets {
		if ticket.GuildID == guildID && ticket.UserID == userID && ticket.Status == domain.TicketStatusOpen {
			return cloneTicket(ticket), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memTicketRepository) ListOpen(ctx context.Context, guildID string) ([]domain.TicketRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.TicketRequest
	for _, ticket := range r.tickets {
		if ticket.GuildID == guildID && ticket.Status == domain.TicketStatusOpen {
			result = append(result, *cloneTicket(ticket))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		pi, pj := priorityRank(result[i].Priority), priorityRank(result[j].Priority)
		if pi != pj {
			return pi < pj
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *memTicketRepository) ListForUser(ctx context.Context, guildID, userID string) ([]domain.TicketRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.TicketRequest
	for _, ticket := range r.tickets {
		if ticket.GuildID == guildID && ticket.UserID == userID {
			result = append(result, *cloneTicket(ticket))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func priorityRank(priority domain.TicketPriority) int {
	switch priority {
	case domain.TicketPriorityHigh:
		return 0
	case domain.TicketPriorityNormal:
		return 1
	default:
		return 2
	}
}

func cloneTicket(ticket *domain.TicketRequest) *domain.TicketRequest {
	clone := *ticket
	clone.StaffNotes = append([]domain.StaffNote(nil), ticket.StaffNotes...)
	if ticket.Current != nil {
		current := *ticket.Current
		clone.Current = &current
	}
	return &clone
}

type memGuildRepository struct {
	mu     sync.Mutex
	guilds map[string]*domain.GuildSettings
}

// NewMemoryGuildRepository returns an in-memory GuildRepository.
func NewMemoryGuildRepository() GuildRepository {
	return &memGuildRepository{guilds: make(map[string]*domain.GuildSettings)}
}

func (r *memGuildRepository) Get(ctx context.Context, guildID string) (*domain.GuildSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	settings, ok := r.guilds[guildID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *settings
	clone.StaffIDs = append([]string(nil), settings.StaffIDs...)
	return &clone, nil
}

func (r *memGuildRepository) Upsert(ctx context.Context, settings *domain.GuildSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.guilds[settings.GuildID]; ok {
		settings.CreatedAt = existing.CreatedAt
	} else {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	clone := *settings
	clone.StaffIDs = append([]string(nil), settings.StaffIDs...)
	r.guilds[settings.GuildID] = &clone
	return nil
}

func (r *memGuildRepository) ListEnabled(ctx context.Context) ([]domain.GuildSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.GuildSettings
	for _, settings := range r.guilds {
		if settings.Enabled {
			clone := *settings
			clone.StaffIDs = append([]string(nil), settings.StaffIDs...)
			result = append(result, clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GuildID < result[j].GuildID })
	return result, nil
}

type memAccountRepository struct {
	mu       sync.Mutex
	byID     map[string]*domain.Account
	byName   map[string]*domain.Account
	sequence int
}

// NewMemoryAccountRepository returns an in-memory AccountRepository.
func NewMemoryAccountRepository() AccountRepository {
	return &memAccountRepository{
		byID:   make(map[string]*domain.Account),
		byName: make(map[string]*domain.Account),
	}
}

func (r *memAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[account.Username]; ok {
		return ErrDuplicateUsername
	}
	r.sequence++
	account.ID = "acct-" + strconv.Itoa(r.sequence)
	account.CreatedAt = time.Now()

	clone := *account
	r.byID[account.ID] = &clone
	r.byName[account.Username] = &clone
	return nil
}

func (r *memAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *account
	return &clone, nil
}

func (r *memAccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byName[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *account
	return &clone, nil
}
