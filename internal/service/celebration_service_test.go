package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/birthday-service/internal/domain"
	"github.com/spec-kit/birthday-service/internal/events"
	"github.com/spec-kit/birthday-service/internal/notify"
	"github.com/spec-kit/birthday-service/internal/observability"
	"github.com/spec-kit/birthday-service/internal/repository"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

type channelNotification struct {
	ChannelID string
	Message   string
	Policy    notify.MentionPolicy
}

type roleOp struct {
	GuildID string
	UserID  string
	RoleID  string
}

// recordingNotifier captures outbound notifications and optionally fails
// them, standing in for the chat platform.
type recordingNotifier struct {
	mu          sync.Mutex
	direct      []string
	channel     []channelNotification
	granted     []roleOp
	revoked     []roleOp
	failDirect  error
	failChannel error
}

func (n *recordingNotifier) NotifyDirect(ctx context.Context, userID, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failDirect != nil {
		return n.failDirect
	}
	n.direct = append(n.direct, message)
	return nil
}

func (n *recordingNotifier) NotifyChannel(ctx context.Context, channelID, message string, policy notify.MentionPolicy) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failChannel != nil {
		return n.failChannel
	}
	n.channel = append(n.channel, channelNotification{ChannelID: channelID, Message: message, Policy: policy})
	return nil
}

func (n *recordingNotifier) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.granted = append(n.granted, roleOp{GuildID: guildID, UserID: userID, RoleID: roleID})
	return nil
}

func (n *recordingNotifier) RevokeRole(ctx context.Context, guildID, userID, roleID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.revoked = append(n.revoked, roleOp{GuildID: guildID, UserID: userID, RoleID: roleID})
	return nil
}

func (n *recordingNotifier) channelCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.channel)
}

// staticStaff answers the staff predicate from a fixed set of actor IDs.
type staticStaff struct {
	ids map[string]bool
	err error
}

func (s *staticStaff) IsStaff(ctx context.Context, actorID, guildID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ids[actorID], nil
}

// fakeGuard simulates the store-level day guard.
type fakeGuard struct {
	deny bool
	err  error
}

func (g *fakeGuard) ClaimCelebrationDay(ctx context.Context, guildID, userID string, day time.Time) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	return !g.deny, nil
}

type engineFixture struct {
	engine    *CelebrationEngine
	birthdays repository.BirthdayRepository
	guilds    repository.GuildRepository
	notifier  *recordingNotifier
	metrics   *observability.Metrics
}

func newEngineFixture(t *testing.T, guard DayGuard) *engineFixture {
	t.Helper()
	f := &engineFixture{
		birthdays: repository.NewMemoryBirthdayRepository(),
		guilds:    repository.NewMemoryGuildRepository(),
		notifier:  &recordingNotifier{},
		metrics:   observability.NewMetrics(),
	}
	f.engine = NewCelebrationEngine(CelebrationDependencies{
		BirthdayRepo: f.birthdays,
		GuildRepo:    f.guilds,
		Notifier:     f.notifier,
		Guard:        guard,
		Dispatcher:   events.NewInMemoryDispatcher(),
		Metrics:      f.metrics,
		Logger:       zap.NewNop(),
	})
	return f
}

func (f *engineFixture) seedGuild(t *testing.T, settings *domain.GuildSettings) {
	t.Helper()
	require.NoError(t, f.guilds.Upsert(context.Background(), settings))
}

func (f *engineFixture) seedRecord(t *testing.T, record *domain.BirthdayRecord) {
	t.Helper()
	require.NoError(t, f.birthdays.Upsert(context.Background(), record))
}

func enabledGuild(guildID string) *domain.GuildSettings {
	return &domain.GuildSettings{
		GuildID:         guildID,
		Enabled:         true,
		CelebrationChan: strPtr("chan-1"),
	}
}

func dueRecord(guildID, userID string) *domain.BirthdayRecord {
	return &domain.BirthdayRecord{
		GuildID:    guildID,
		UserID:     userID,
		Birthday:   domain.Date{Month: 3, Day: 15, Year: intPtr(1990)},
		Preference: domain.CelebrationPublic,
		Verified:   true,
	}
}

var dueDay = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

// TestCheck_FiresOncePerDay verifies the core once-per-subject-per-day
// guarantee across repeated checks.
func TestCheck_FiresOncePerDay(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.seedGuild(t, enabledGuild("g1"))
	record := dueRecord("g1", "u1")
	f.seedRecord(t, record)

	fired, err := f.engine.Check(context.Background(), record, dueDay)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, 1, f.notifier.channelCount())

	fired, err = f.engine.Check(context.Background(), record, dueDay.Add(4*time.Hour))
	require.NoError(t, err)
	assert.False(t, fired, "second check on the same day must not fire")
	assert.Equal(t, 1, f.notifier.channelCount())
	assert.Equal(t, int64(1), f.metrics.CelebrationCount("g1"))
}

// TestCheck_StampSurvivesReload verifies a fresh read of the record still
// sees the celebration stamp, covering the sweep-after-approval case.
func TestCheck_StampSurvivesReload(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.seedGuild(t, enabledGuild("g1"))
	f.seedRecord(t, dueRecord("g1", "u1"))

	first, err := f.birthdays.Get(context.Background(), "g1", "u1")
	require.NoError(t, err)
	fired, err := f.engine.Check(context.Background(), first, dueDay)
	require.NoError(t, err)
	require.True(t, fired)

	reloaded, err := f.birthdays.Get(context.Background(), "g1", "u1")
	require.NoError(t, err)
	fired, err = f.engine.Check(context.Background(), reloaded, dueDay.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, 1, f.notifier.channelCount())
}

// TestCheck_NotDue does nothing when the date does not match.
func TestCheck_NotDue(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.seedGuild(t, enabledGuild("g1"))
	record := dueRecord("g1", "u1")
	f.seedRecord(t, record)

	fired, err := f.engine.Check(context.Background(), record, dueDay.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, 0, f.notifier.channelCount())
}

// TestCheck_DisabledOrMissingGuild never fires.
func TestCheck_DisabledOrMissingGuild(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.seedGuild(t, &domain.GuildSettings{GuildID: "g1", Enabled: false})
	record := dueRecord("g1", "u1")
	f.seedRecord(t, record)

	fired, err := f.engine.Check(context.Background(), record, dueDay)
	require.NoError(t, err)
	assert.False(t, fired)

	orphan := dueRecord("g2", "u2")
	f.seedRecord(t, orphan)
	fired, err = f.engine.Check(context.Background(), orphan, dueDay)
	require.NoError(t, err)
	assert.False(t, fired, "a guild without settings never celebrates")
}

// TestCheck_PreferenceNone stamps the day without dispatching anything.
func TestCheck_PreferenceNone(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.seedGuild(t, enabledGuild("g1"))
	record := dueRecord("g1", "u1")
	record.Preference = domain.CelebrationNone
	f.seedRecord(t, record)

	fired, err := f.engine.Check(context.Background(), record, dueDay)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, 0, f.notifier.channelCount())
	assert.Empty(t, f.notifier.direct)

	stored, err := f.birthdays.Get(context.Background(), "g1", "u1")
	require.NoError(t, err)
	assert.True(t, stored.CelebratedOn(dueDay), "silent celebrations still consume the day")
}

// TestCheck_PreferenceDM sends a direct message only.
func TestCheck_PreferenceDM(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.seedGuild(t, enabledGuild("g1"))
	record := dueRecord("g1", "u1")
	record.Preference = domain.CelebrationDM
	f.seedRecord(t, record)

	fired, err := f.engine.Check(context.Background(), record, dueDay)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Len(t, f.notifier.direct, 1)
	assert.Equal(t, 0, f.notifier.channelCount())
}

// TestCheck_PreferenceRole grants the role and announces.
func TestCheck_PreferenceRole(t *testing.T) {
	f := newEngineFixture(t, nil)
	settings := enabledGuild("g1")
	settings.CelebrationRole = strPtr("role-7")
	f.seedGuild(t, settings)
	record := dueRecord("g1", "u1")
	record.Preference = domain.CelebrationRole
	f.seedRecord(t, record)

	fired, err := f.engine.Check(context.Background(), record, dueDay)
	require.NoError(t, err)
	assert.True(t, fired)
	require.Len(t, f.notifier.granted, 1)
	assert.Equal(t, roleOp{GuildID: "g1", UserID: "u1", RoleID: "role-7"}, f.notifier.granted[0])
	assert.Equal(t, 1, f.notifier.channelCount())
}

// TestCheck_MessageComposition covers the age suffix and the custom
// message override.
func TestCheck_MessageComposition(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.seedGuild(t, enabledGuild("g1"))
	record := dueRecord("g1", "u1")
	record.ShowAge = true
	f.seedRecord(t, record)

	fired, err := f.engine.Check(context.Background(), record, dueDay)
	require.NoError(t, err)
	require.True(t, fired)
	require.Equal(t, 1, f.notifier.channelCount())
	assert.Contains(t, f.notifier.channel[0].Message, "They turn 34!")

	custom := dueRecord("g1", "u2")
	custom.CustomMessage = strPtr("Happy cake day!")
	f.seedRecord(t, custom)
	fired, err = f.engine.Check(context.Background(), custom, dueDay)
	require.NoError(t, err)
	require.True(t, fired)
	assert.Equal(t, "Happy cake day!", f.notifier.channel[1].Message)
}

// TestCheck_MentionPolicy follows the guild's mention setting.
func TestCheck_MentionPolicy(t *testing.T) {
	f := newEngineFixture(t, nil)
	settings := enabledGuild("g1")
	settings.MentionSubjects = true
	f.seedGuild(t, settings)
	record := dueRecord("g1", "u1")
	f.seedRecord(t, record)

	fired, err := f.engine.Check(context.Background(), record, dueDay)
	require.NoError(t, err)
	require.True(t, fired)
	assert.Equal(t, notify.MentionAllowed, f.notifier.channel[0].Policy)
}

// TestCheck_NotifierFailureStillStamps keeps the at-most-once guarantee
// even when delivery fails.
func TestCheck_NotifierFailureStillStamps(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.seedGuild(t, enabledGuild("g1"))
	f.notifier.failChannel = errors.New("gateway down")
	record := dueRecord("g1", "u1")
	f.seedRecord(t, record)

	fired, err := f.engine.Check(context.Background(), record, dueDay)
	require.NoError(t, err)
	assert.True(t, fired)

	stored, err := f.birthdays.Get(context.Background(), "g1", "u1")
	require.NoError(t, err)
	assert.True(t, stored.CelebratedOn(dueDay))
}

// TestCheck_GuardDenied short-circuits when another process claimed the day.
func TestCheck_GuardDenied(t *testing.T) {
	f := newEngineFixture(t, &fakeGuard{deny: true})
	f.seedGuild(t, enabledGuild("g1"))
	record := dueRecord("g1", "u1")
	f.seedRecord(t, record)

	fired, err := f.engine.Check(context.Background(), record, dueDay)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, 0, f.notifier.channelCount())
}

// TestCheck_GuardErrorFallsBack still fires on guard outage; the record
// stamp remains the authoritative check.
func TestCheck_GuardErrorFallsBack(t *testing.T) {
	f := newEngineFixture(t, &fakeGuard{err: errors.New("redis unreachable")})
	f.seedGuild(t, enabledGuild("g1"))
	record := dueRecord("g1", "u1")
	f.seedRecord(t, record)

	fired, err := f.engine.Check(context.Background(), record, dueDay)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, 1, f.notifier.channelCount())
}
