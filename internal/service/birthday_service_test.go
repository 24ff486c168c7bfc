package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/birthday-service/internal/clock"
	"github.com/spec-kit/birthday-service/internal/domain"
	"github.com/spec-kit/birthday-service/internal/observability"
	"github.com/spec-kit/birthday-service/internal/repository"
)

type birthdayFixture struct {
	service   *BirthdayService
	birthdays repository.BirthdayRepository
	guilds    repository.GuildRepository
	notifier  *recordingNotifier
	clock     *clock.Fixed
}

func newBirthdayFixture(t *testing.T, now time.Time) *birthdayFixture {
	t.Helper()
	f := &birthdayFixture{
		birthdays: repository.NewMemoryBirthdayRepository(),
		guilds:    repository.NewMemoryGuildRepository(),
		notifier:  &recordingNotifier{},
		clock:     clock.NewFixed(now),
	}
	require.NoError(t, f.guilds.Upsert(context.Background(), enabledGuild("g1")))

	engine := NewCelebrationEngine(CelebrationDependencies{
		BirthdayRepo: f.birthdays,
		GuildRepo:    f.guilds,
		Notifier:     f.notifier,
		Metrics:      observability.NewMetrics(),
		Logger:       zap.NewNop(),
	})
	f.service = NewBirthdayService(BirthdayDependencies{
		BirthdayRepo: f.birthdays,
		Engine:       engine,
		Staff:        &staticStaff{ids: map[string]bool{"staff-1": true}},
		Clock:        f.clock,
		Logger:       zap.NewNop(),
	})
	return f
}

// TestBirthdaySet_StaffOnly rejects non-staff actors.
func TestBirthdaySet_StaffOnly(t *testing.T) {
	f := newBirthdayFixture(t, offSeason)

	_, err := f.service.Set(context.Background(), "g1", "u1", "u1", SetInput{
		Birthday: domain.Date{Month: 3, Day: 15},
	})
	require.Error(t, err)
}

// TestBirthdaySet_VerifiedImmediately marks the record verified with the
// staff source.
func TestBirthdaySet_VerifiedImmediately(t *testing.T) {
	f := newBirthdayFixture(t, offSeason)

	record, err := f.service.Set(context.Background(), "g1", "staff-1", "u1", SetInput{
		Birthday:         domain.Date{Month: 3, Day: 15, Year: intPtr(1990)},
		IsActualBirthday: true,
	})
	require.NoError(t, err)
	assert.True(t, record.Verified)
	assert.Equal(t, domain.SourceStaff, record.Source)
	assert.Equal(t, domain.CelebrationPublic, record.Preference, "empty preference defaults to public")
	require.NotNil(t, record.VerifiedBy)
	assert.Equal(t, "staff-1", *record.VerifiedBy)
	assert.Equal(t, 0, f.notifier.channelCount(), "off-season set does not celebrate")
}

// TestBirthdaySet_DueTodayCelebratesOnce fires the celebration on set and
// not again on a same-day overwrite.
func TestBirthdaySet_DueTodayCelebratesOnce(t *testing.T) {
	f := newBirthdayFixture(t, dueDay)

	_, err := f.service.Set(context.Background(), "g1", "staff-1", "u1", SetInput{
		Birthday: domain.Date{Month: 3, Day: 15},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.notifier.channelCount())

	_, err = f.service.Set(context.Background(), "g1", "staff-1", "u1", SetInput{
		Birthday: domain.Date{Month: 3, Day: 15},
		ShowAge:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.notifier.channelCount(), "overwrite on the same day must not re-celebrate")
}

// TestBirthdayRemove_Permissions self-removal is free, removing another
// subject requires staff.
func TestBirthdayRemove_Permissions(t *testing.T) {
	f := newBirthdayFixture(t, offSeason)
	_, err := f.service.Set(context.Background(), "g1", "staff-1", "u1", SetInput{
		Birthday: domain.Date{Month: 3, Day: 15},
	})
	require.NoError(t, err)

	require.Error(t, f.service.Remove(context.Background(), "g1", "u2", "u1"))
	require.NoError(t, f.service.Remove(context.Background(), "g1", "u1", "u1"))

	_, err = f.service.Get(context.Background(), "g1", "u1")
	require.Error(t, err)
}

// TestBirthdayUpcoming orders by next occurrence and honors the limit.
func TestBirthdayUpcoming(t *testing.T) {
	f := newBirthdayFixture(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	seed := func(userID string, month, day int) {
		_, err := f.service.Set(context.Background(), "g1", "staff-1", userID, SetInput{
			Birthday: domain.Date{Month: month, Day: day},
		})
		require.NoError(t, err)
	}
	seed("u1", 1, 10)
	seed("u2", 6, 2)
	seed("u3", 12, 25)

	entries, err := f.service.Upcoming(context.Background(), "g1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "u2", entries[0].Record.UserID)
	assert.Equal(t, "u3", entries[1].Record.UserID)
	assert.Equal(t, "u1", entries[2].Record.UserID, "January wraps into next year")

	entries, err = f.service.Upcoming(context.Background(), "g1", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "u2", entries[0].Record.UserID)
}

// TestGuildUpsert_FirstWriterBootstraps only existing guilds are
// staff-gated.
func TestGuildUpsert_FirstWriterBootstraps(t *testing.T) {
	guilds := repository.NewMemoryGuildRepository()
	svc := NewGuildService(guilds, &staticStaff{ids: map[string]bool{"staff-1": true}})

	settings, err := svc.Upsert(context.Background(), "anyone", &domain.GuildSettings{
		GuildID:  "g9",
		Enabled:  true,
		StaffIDs: []string{"anyone"},
	})
	require.NoError(t, err)
	assert.Equal(t, "g9", settings.GuildID)

	_, err = svc.Upsert(context.Background(), "intruder", &domain.GuildSettings{GuildID: "g9"})
	require.Error(t, err, "rewriting an existing guild requires staff")

	_, err = svc.Upsert(context.Background(), "staff-1", &domain.GuildSettings{GuildID: "g9", Enabled: false})
	require.NoError(t, err)
}
