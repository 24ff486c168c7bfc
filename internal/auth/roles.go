package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/birthday-service/internal/repository"
)

// GuildStaffChecker answers the staff predicate from guild settings. An
// actor is staff for a guild when the guild lists them, or when their
// account carries the admin flag.
type GuildStaffChecker struct {
	guilds   repository.GuildRepository
	accounts repository.AccountRepository
}

// NewGuildStaffChecker constructs the checker.
func NewGuildStaffChecker(guilds repository.GuildRepository, accounts repository.AccountRepository) *GuildStaffChecker {
	return &GuildStaffChecker{guilds: guilds, accounts: accounts}
}

// IsStaff reports whether the actor may perform staff-only transitions in
// the guild.
func (c *GuildStaffChecker) IsStaff(ctx context.Context, actorID, guildID string) (bool, error) {
	if account, err := c.accounts.GetByID(ctx, actorID); err == nil && account.IsAdmin {
		return true, nil
	}

	settings, err := c.guilds.Get(ctx, guildID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return settings.HasStaff(actorID), nil
}
