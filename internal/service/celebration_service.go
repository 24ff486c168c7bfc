package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/birthday-service/internal/domain"
	"github.com/spec-kit/birthday-service/internal/events"
	"github.com/spec-kit/birthday-service/internal/notify"
	"github.com/spec-kit/birthday-service/internal/observability"
	"github.com/spec-kit/birthday-service/internal/repository"
)

// DayGuard is an optional store-level claim on a (guild, user, day)
// celebration slot, tightening the record-level same-day check across
// concurrent triggers. Backed by redis SETNX in production.
type DayGuard interface {
	ClaimCelebrationDay(ctx context.Context, guildID, userID string, day time.Time) (bool, error)
}

// CelebrationEngine is the single authority deciding whether a due birthday
// fires a celebration. Every trigger funnels through Check so the
// once-per-day guarantee lives in one
// place.
type CelebrationEngine struct {
	birthdays  repository.BirthdayRepository
	guilds     repository.GuildRepository
	notifier   notify.Notifier
	guard      DayGuard
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// CelebrationDependencies bundles collaborators for the engine.
type CelebrationDependencies struct {
	BirthdayRepo repository.BirthdayRepository
	GuildRepo    repository.GuildRepository
	Notifier     notify.Notifier
	Guard        DayGuard
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewCelebrationEngine constructs the engine.
func NewCelebrationEngine(deps CelebrationDependencies) *CelebrationEngine {
	return &CelebrationEngine{
		birthdays:  deps.BirthdayRepo,
		guilds:     deps.GuildRepo,
		notifier:   deps.Notifier,
		guard:      deps.Guard,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Check fires the celebration for the record if it is due today and has not
// been celebrated today. It returns whether this call fired. Notification
// failures are logged and swallowed; the record is stamped once the
// dispatch has been initiated, guaranteeing at-most-once per day rather
// than delivery.
func (e *CelebrationEngine) Check(ctx context.Context, record *domain.BirthdayRecord, today time.Time) (bool, error) {
	if record == nil || !record.Birthday.Matches(today) {
		return false, nil
	}
	if record.CelebratedOn(today) {
		return false, nil
	}

	settings, err := e.guilds.Get(ctx, record.GuildID)
	if err != nil {
		// A guild without settings never celebrates.
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if !settings.Enabled {
		return false, nil
	}

	if e.guard != nil {
		claimed, err := e.guard.ClaimCelebrationDay(ctx, record.GuildID, record.UserID, today)
		if err != nil {
			// The record-level stamp still protects; keep going.
			e.logger.Warn("celebration day guard unavailable", zap.Error(err))
		} else if !claimed {
			return false, nil
		}
	}

	age := e.dispatch(ctx, record, settings, today)

	stamped, err := e.birthdays.StampCelebrated(ctx, record.GuildID, record.UserID, today)
	if err != nil {
		return false, err
	}
	if !stamped {
		e.logger.Warn("celebration stamp lost a race",
			zap.String("guild_id", record.GuildID),
			zap.String("user_id", record.UserID),
		)
	}
	stamp := today
	record.LastCelebrated = &stamp
	record.NotificationSent = true

	e.metrics.RecordCelebration(record.GuildID)
	e.publish(ctx, record, age)
	return true, nil
}

// dispatch performs the preference-selected side effect and returns the age
// when one was computed. CelebrationNone dispatches nothing but the caller
// still stamps the record so other triggers see it as celebrated.
func (e *CelebrationEngine) dispatch(ctx context.Context, record *domain.BirthdayRecord, settings *domain.GuildSettings, today time.Time) *int {
	var age *int
	if years, ok := record.Birthday.Age(today); ok {
		age = &years
	}

	if record.Preference == domain.CelebrationNone {
		return age
	}

	message := e.buildMessage(record, age)
	policy := notify.MentionSuppressed
	if settings.MentionSubjects {
		policy = notify.MentionAllowed
	}

	switch record.Preference {
	case domain.CelebrationDM:
		if err := e.notifier.NotifyDirect(ctx, record.UserID, message); err != nil {
			e.logger.Warn("birthday DM failed", zap.String("user_id", record.UserID), zap.Error(err))
		}
	case domain.CelebrationRole:
		if settings.CelebrationRole != nil {
			if err := e.notifier.GrantRole(ctx, record.GuildID, record.UserID, *settings.CelebrationRole); err != nil {
				e.logger.Warn("birthday role grant failed", zap.String("user_id", record.UserID), zap.Error(err))
			}
		}
		e.announce(ctx, settings, message, policy)
	default:
		e.announce(ctx, settings, message, policy)
	}
	return age
}

func (e *CelebrationEngine) announce(ctx context.Context, settings *domain.GuildSettings, message string, policy notify.MentionPolicy) {
	if settings.CelebrationChan == nil {
		e.logger.Warn("no celebration channel configured", zap.String("guild_id", settings.GuildID))
		return
	}
	if err := e.notifier.NotifyChannel(ctx, *settings.CelebrationChan, message, policy); err != nil {
		e.logger.Warn("birthday announcement failed",
			zap.String("guild_id", settings.GuildID),
			zap.String("channel_id", *settings.CelebrationChan),
			zap.Error(err),
		)
	}
}

func (e *CelebrationEngine) buildMessage(record *domain.BirthdayRecord, age *int) string {
	if record.CustomMessage != nil && *record.CustomMessage != "" {
		return *record.CustomMessage
	}
	message := fmt.Sprintf("It's <@%s>'s birthday today! 🎂", record.UserID)
	if record.ShowAge && age != nil {
		message = fmt.Sprintf("%s They turn %d!", message, *age)
	}
	return message
}

func (e *CelebrationEngine) publish(ctx context.Context, record *domain.BirthdayRecord, age *int) {
	if e.dispatcher == nil {
		return
	}
	_ = e.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventBirthdayCelebrated,
		GuildID:   record.GuildID,
		ActorID:   record.UserID,
		Timestamp: time.Now(),
		Payload: events.BirthdayCelebratedPayload{
			UserID:     record.UserID,
			Preference: record.Preference,
			Age:        age,
		},
	})
}
