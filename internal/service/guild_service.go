package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/birthday-service/internal/domain"
	"github.com/spec-kit/birthday-service/internal/repository"
	"github.com/spec-kit/birthday-service/pkg/util"
)

// GuildService manages per-guild configuration.
type GuildService struct {
	guilds repository.GuildRepository
	staff  StaffChecker
}

// NewGuildService constructs the service.
func NewGuildService(guilds repository.GuildRepository, staff StaffChecker) *GuildService {
	return &GuildService{guilds: guilds, staff: staff}
}

// Get returns the guild's settings.
func (s *GuildService) Get(ctx context.Context, guildID string) (*domain.GuildSettings, error) {
	settings, err := s.guilds.Get(ctx, guildID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewNotFound("guild settings", map[string]any{"guild_id": guildID})
	}
	if err != nil {
		return nil, util.MapError(err)
	}
	return settings, nil
}

// Upsert writes guild settings. Staff only; on a brand-new guild the first
// writer becomes staff implicitly via the submitted staff list.
func (s *GuildService) Upsert(ctx context.Context, actorID string, settings *domain.GuildSettings) (*domain.GuildSettings, error) {
	existing, err := s.guilds.Get(ctx, settings.GuildID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, util.MapError(err)
	}
	if existing != nil {
		isStaff, err := s.staff.IsStaff(ctx, actorID, settings.GuildID)
		if err != nil {
			return nil, util.MapError(err)
		}
		if !isStaff {
			return nil, util.NewForbidden("staff permission required")
		}
	}

	if err := s.guilds.Upsert(ctx, settings); err != nil {
		return nil, util.MapError(err)
	}
	return settings, nil
}
