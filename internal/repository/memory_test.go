package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/birthday-service/internal/domain"
)

func openTicket(guildID, userID, requestID string) *domain.TicketRequest {
	return &domain.TicketRequest{
		RequestID: requestID,
		GuildID:   guildID,
		UserID:    userID,
		Requested: domain.Date{Month: 12, Day: 25},
		Status:    domain.TicketStatusOpen,
		Priority:  domain.TicketPriorityNormal,
	}
}

// TestTicketCreate_NumbersPerGuild keeps independent sequences per guild.
func TestTicketCreate_NumbersPerGuild(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ticket := openTicket("g1", fmt.Sprintf("u%d", i), fmt.Sprintf("req-a%d", i))
		require.NoError(t, repo.Create(ctx, ticket))
		assert.Equal(t, i, ticket.TicketNumber)
	}

	other := openTicket("g2", "u1", "req-b1")
	require.NoError(t, repo.Create(ctx, other))
	assert.Equal(t, 1, other.TicketNumber, "guilds do not share a sequence")
}

// TestTicketCreate_ConcurrentUnique assigns distinct numbers under
// concurrency.
func TestTicketCreate_ConcurrentUnique(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	numbers := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ticket := openTicket("g1", fmt.Sprintf("u%d", i), fmt.Sprintf("req-%d", i))
			if err := repo.Create(ctx, ticket); err == nil {
				numbers <- ticket.TicketNumber
			}
		}(i)
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int]bool)
	for num := range numbers {
		assert.False(t, seen[num], "number %d issued twice", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
}

// TestTicketCreate_OneOpenPerSubject enforces the partial uniqueness rule.
func TestTicketCreate_OneOpenPerSubject(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, openTicket("g1", "u1", "req-1")))
	err := repo.Create(ctx, openTicket("g1", "u1", "req-2"))
	require.ErrorIs(t, err, ErrDuplicateOpenTicket)

	// Closing the first frees the slot.
	first, err := repo.GetByRequestID(ctx, "req-1")
	require.NoError(t, err)
	first.Status = domain.TicketStatusCancelled
	ok, err := repo.Transition(ctx, first, domain.TicketStatusOpen)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Create(ctx, openTicket("g1", "u1", "req-3")))
}

// TestTicketTransition_CompareAndSwap only one of two competing
// transitions wins.
func TestTicketTransition_CompareAndSwap(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, openTicket("g1", "u1", "req-1")))

	approve, err := repo.GetByRequestID(ctx, "req-1")
	require.NoError(t, err)
	approve.Status = domain.TicketStatusApproved

	cancel, err := repo.GetByRequestID(ctx, "req-1")
	require.NoError(t, err)
	cancel.Status = domain.TicketStatusCancelled

	ok, err := repo.Transition(ctx, approve, domain.TicketStatusOpen)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Transition(ctx, cancel, domain.TicketStatusOpen)
	require.NoError(t, err)
	assert.False(t, ok, "the losing transition observes the changed status")

	current, err := repo.GetByRequestID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusApproved, current.Status)
}

// TestTicketFindOpenByPrefix matches case-insensitively and is scoped to
// open tickets.
func TestTicketFindOpenByPrefix(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, openTicket("g1", "u1", "ABCDEF-123")))

	found, err := repo.FindOpenByPrefix(ctx, "g1", "abcd")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF-123", found.RequestID)

	found.Status = domain.TicketStatusRejected
	ok, err := repo.Transition(ctx, found, domain.TicketStatusOpen)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = repo.FindOpenByPrefix(ctx, "g1", "abcd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
}

// TestStampCelebrated is conditional on the calendar day.
func TestStampCelebrated(t *testing.T) {
	repo := NewMemoryBirthdayRepository()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, &domain.BirthdayRecord{
		GuildID:  "g1",
		UserID:   "u1",
		Birthday: domain.Date{Month: 3, Day: 15},
	}))

	day := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	stamped, err := repo.StampCelebrated(ctx, "g1", "u1", day)
	require.NoError(t, err)
	assert.True(t, stamped)

	stamped, err = repo.StampCelebrated(ctx, "g1", "u1", day.Add(5*time.Hour))
	require.NoError(t, err)
	assert.False(t, stamped, "same-day stamp must not repeat")

	stamped, err = repo.StampCelebrated(ctx, "g1", "u1", day.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.True(t, stamped, "a new year re-arms the stamp")
}

// TestBirthdayUpsert_PreservesCelebrationState overwrites never clear the
// same-day guard.
func TestBirthdayUpsert_PreservesCelebrationState(t *testing.T) {
	repo := NewMemoryBirthdayRepository()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, &domain.BirthdayRecord{
		GuildID:  "g1",
		UserID:   "u1",
		Birthday: domain.Date{Month: 3, Day: 15},
	}))

	day := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	_, err := repo.StampCelebrated(ctx, "g1", "u1", day)
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(ctx, &domain.BirthdayRecord{
		GuildID:  "g1",
		UserID:   "u1",
		Birthday: domain.Date{Month: 3, Day: 15},
		ShowAge:  true,
	}))

	record, err := repo.Get(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.True(t, record.CelebratedOn(day))
	assert.True(t, record.ShowAge)
}
