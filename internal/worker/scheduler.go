package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/birthday-service/internal/clock"
	"github.com/spec-kit/birthday-service/internal/config"
	"github.com/spec-kit/birthday-service/internal/notify"
	"github.com/spec-kit/birthday-service/internal/observability"
	"github.com/spec-kit/birthday-service/internal/repository"
	"github.com/spec-kit/birthday-service/internal/service"
)

// Scheduler drives the time-based triggers: the daily celebration sweep,
// the daily celebratory-role revocation sweep, and a startup reconciliation
// pass so a restart does not silently skip a trigger whose moment fell
// during downtime.
type Scheduler struct {
	guilds    repository.GuildRepository
	birthdays repository.BirthdayRepository
	engine    *service.CelebrationEngine
	notifier  notify.Notifier
	metrics   *observability.Metrics
	clock     clock.Clock
	cfg       config.SchedulerConfig
	logger    *zap.Logger

	lastCelebration time.Time
	lastRevocation  time.Time
}

// SchedulerDependencies bundles collaborators for the scheduler.
type SchedulerDependencies struct {
	GuildRepo    repository.GuildRepository
	BirthdayRepo repository.BirthdayRepository
	Engine       *service.CelebrationEngine
	Notifier     notify.Notifier
	Metrics      *observability.Metrics
	Clock        clock.Clock
	Config       config.SchedulerConfig
	Logger       *zap.Logger
}

// NewScheduler constructs the scheduler.
func NewScheduler(deps SchedulerDependencies) *Scheduler {
	c := deps.Clock
	if c == nil {
		c = clock.System()
	}
	return &Scheduler{
		guilds:    deps.GuildRepo,
		birthdays: deps.BirthdayRepo,
		engine:    deps.Engine,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		clock:     c,
		cfg:       deps.Config,
		logger:    deps.Logger,
	}
}

// Run executes the startup reconciliation pass and then polls until the
// context is cancelled, firing each daily sweep once per calendar day at or
// after its configured hour.
func (s *Scheduler) Run(ctx context.Context) {
	s.RunStartupPass(ctx)

	ticker := time.NewTicker(s.cfg.Tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// RunStartupPass runs the celebration sweep immediately. Best-effort
// catch-up, not exactly-once: the same-day guard inside the engine keeps a
// restarted process from re-celebrating.
func (s *Scheduler) RunStartupPass(ctx context.Context) {
	s.logger.Info("startup reconciliation pass")
	s.CelebrationSweep(ctx)
	s.lastCelebration = s.clock.Now()
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock.Now()
	if now.Hour() >= s.cfg.CelebrationHour && !sameDay(s.lastCelebration, now) {
		s.CelebrationSweep(ctx)
		s.lastCelebration = now
	}
	if now.Hour() >= s.cfg.RevocationHour && !sameDay(s.lastRevocation, now) {
		s.RoleRevocationSweep(ctx)
		s.lastRevocation = now
	}
}

// CelebrationSweep enumerates every enabled guild's due birthdays and runs
// the celebration check on each. One guild's failure never aborts the
// sweep for the others.
func (s *Scheduler) CelebrationSweep(ctx context.Context) {
	today := s.clock.Now()
	guilds, err := s.guilds.ListEnabled(ctx)
	if err != nil {
		s.logger.Error("celebration sweep: listing guilds failed", zap.Error(err))
		s.metrics.RecordSweepError()
		return
	}

	for _, guild := range guilds {
		records, err := s.birthdays.ListDue(ctx, guild.GuildID, int(today.Month()), today.Day())
		if err != nil {
			s.logger.Error("celebration sweep: listing due birthdays failed",
				zap.String("guild_id", guild.GuildID), zap.Error(err))
			s.metrics.RecordSweepError()
			continue
		}
		for i := range records {
			fired, err := s.engine.Check(ctx, &records[i], today)
			if err != nil {
				s.logger.Error("celebration sweep: check failed",
					zap.String("guild_id", guild.GuildID),
					zap.String("user_id", records[i].UserID),
					zap.Error(err))
				s.metrics.RecordSweepError()
				continue
			}
			if fired {
				s.logger.Info("celebrated birthday",
					zap.String("guild_id", guild.GuildID),
					zap.String("user_id", records[i].UserID))
			}
		}
	}
}

// RoleRevocationSweep strips the celebratory role from every subject whose
// birthday is not today. Runs guild-wide and independent of whether the
// celebration fired; holding the role is only ever valid on the day itself.
func (s *Scheduler) RoleRevocationSweep(ctx context.Context) {
	today := s.clock.Now()
	guilds, err := s.guilds.ListEnabled(ctx)
	if err != nil {
		s.logger.Error("revocation sweep: listing guilds failed", zap.Error(err))
		s.metrics.RecordSweepError()
		return
	}

	for _, guild := range guilds {
		if guild.CelebrationRole == nil {
			continue
		}
		records, err := s.birthdays.ListByGuild(ctx, guild.GuildID)
		if err != nil {
			s.logger.Error("revocation sweep: listing birthdays failed",
				zap.String("guild_id", guild.GuildID), zap.Error(err))
			s.metrics.RecordSweepError()
			continue
		}
		for _, record := range records {
			if record.Birthday.Matches(today) {
				continue
			}
			if err := s.notifier.RevokeRole(ctx, guild.GuildID, record.UserID, *guild.CelebrationRole); err != nil {
				s.logger.Warn("revocation sweep: revoke failed",
					zap.String("guild_id", guild.GuildID),
					zap.String("user_id", record.UserID),
					zap.Error(err))
			}
		}
	}
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
