package service

import (
	"context"
	"errors"
	"sort"
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

// BirthdayService covers direct birthday management outside the ticket
// flow: staff set/remove and read queries.
type BirthdayService struct {
	birthdays  repository.BirthdayRepository
	engine     *CelebrationEngine
	staff      StaffChecker
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// BirthdayDependencies bundles collaborators for the service.
type BirthdayDependencies struct {
	BirthdayRepo repository.BirthdayRepository
	Engine       *CelebrationEngine
	Staff        StaffChecker
	Dispatcher   events.Dispatcher
	Clock        clock.Clock
	Logger       *zap.Logger
}

// NewBirthdayService constructs the service.
func NewBirthdayService(deps BirthdayDependencies) *BirthdayService {
	c := deps.Clock
	if c == nil {
		c = clock.System()
	}
	return &BirthdayService{
		birthdays:  deps.BirthdayRepo,
		engine:     deps.Engine,
		staff:      deps.Staff,
		dispatcher: deps.Dispatcher,
		clock:      c,
		logger:     deps.Logger,
	}
}

// SetInput describes a direct staff birthday set.
type SetInput struct {
	Birthday         domain.Date
	ShowAge          bool
	IsActualBirthday bool
	Preference       domain.CelebrationPreference
	CustomMessage    *string
}

// Set writes a birthday directly, bypassing the ticket flow. Staff only;
// the record comes out verified immediately and the celebration check runs
// in case the date is due today.
func (s *BirthdayService) Set(ctx context.Context, guildID, actorID, userID string, input SetInput) (*domain.BirthdayRecord, error) {
	isStaff, err := s.staff.IsStaff(ctx, actorID, guildID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !isStaff {
		return nil, util.NewForbidden("staff permission required")
	}
	if err := input.Birthday.Validate(); err != nil {
		return nil, util.NewValidationError(err.Error(), nil)
	}

	preference := input.Preference
	if preference == "" {
		preference = domain.CelebrationPublic
	}

	now := s.clock.Now()
	record, err := s.birthdays.Get(ctx, guildID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		record = &domain.BirthdayRecord{GuildID: guildID, UserID: userID}
	} else if err != nil {
		return nil, util.MapError(err)
	}

	record.Birthday = input.Birthday
	record.ShowAge = input.ShowAge
	record.IsActualBirthday = input.IsActualBirthday
	record.Preference = preference
	record.CustomMessage = input.CustomMessage
	record.Source = domain.SourceStaff
	record.SetBy = actorID
	record.Verified = true
	record.VerifiedBy = &actorID
	record.VerifiedAt = &now

	if err := s.birthdays.Upsert(ctx, record); err != nil {
		return nil, util.MapError(err)
	}

	if s.engine != nil {
		if _, err := s.engine.Check(ctx, record, now); err != nil {
			s.logger.Warn("celebration check after staff set failed",
				zap.String("user_id", userID), zap.Error(err))
		}
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventBirthdaySet,
			GuildID:   guildID,
			ActorID:   actorID,
			Timestamp: time.Now(),
			Payload:   events.BirthdaySetPayload{UserID: userID, Birthday: record.Birthday, Source: record.Source},
		})
	}
	return record, nil
}

// Get returns the stored record for a subject.
func (s *BirthdayService) Get(ctx context.Context, guildID, userID string) (*domain.BirthdayRecord, error) {
	record, err := s.birthdays.Get(ctx, guildID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewNotFound("birthday record", map[string]any{"user_id": userID})
	}
	if err != nil {
		return nil, util.MapError(err)
	}
	return record, nil
}

// Remove deletes a record. The subject can remove their own; staff can
// remove anyone's.
func (s *BirthdayService) Remove(ctx context.Context, guildID, actorID, userID string) error {
	if actorID != userID {
		isStaff, err := s.staff.IsStaff(ctx, actorID, guildID)
		if err != nil {
			return util.MapError(err)
		}
		if !isStaff {
			return util.NewForbidden("staff permission required to remove another user's birthday")
		}
	}
	if err := s.birthdays.Delete(ctx, guildID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("birthday record", map[string]any{"user_id": userID})
		}
		return util.MapError(err)
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventBirthdayRemoved,
			GuildID:   guildID,
			ActorID:   actorID,
			Timestamp: time.Now(),
			Payload:   events.BirthdaySetPayload{UserID: userID},
		})
	}
	return nil
}

// UpcomingBirthday pairs a record with its next occurrence.
type UpcomingBirthday struct {
	Record domain.BirthdayRecord
	Next   time.Time
}

// Upcoming lists the guild's birthdays ordered by next occurrence from
// today, limited to limit entries (0 means all).
func (s *BirthdayService) Upcoming(ctx context.Context, guildID string, limit int) ([]UpcomingBirthday, error) {
	records, err := s.birthdays.ListByGuild(ctx, guildID)
	if err != nil {
		return nil, util.MapError(err)
	}

	today := s.clock.Now()
	result := make([]UpcomingBirthday, 0, len(records))
	for _, record := range records {
		result = append(result, UpcomingBirthday{
			Record: record,
			Next:   record.Birthday.NextOccurrence(today),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Next.Before(result[j].Next) })

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
