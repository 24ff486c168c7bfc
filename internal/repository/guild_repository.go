package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/birthday-service/internal/domain"
)

// GuildRepository encapsulates guild settings persistence.
type GuildRepository interface {
	Get(ctx context.Context, guildID string) (*domain.GuildSettings, error)
	Upsert(ctx context.Context, settings *domain.GuildSettings) error
	ListEnabled(ctx context.Context) ([]domain.GuildSettings, error)
}

type guildRepository struct {
	pool *pgxpool.Pool
}

// NewGuildRepository instantiates repository.
func NewGuildRepository(pool *pgxpool.Pool) GuildRepository {
	return &guildRepository{pool: pool}
}

const guildColumns = `guild_id, enabled, celebration_chan, celebration_role,
       ticket_channel, staff_ids, mention_subjects, created_at, updated_at`

func (r *guildRepository) Get(ctx context.Context, guildID string) (*domain.GuildSettings, error) {
	query := `SELECT ` + guildColumns + ` FROM guild_settings WHERE guild_id=$1`
	return scanGuild(r.pool.QueryRow(ctx, query, guildID))
}

func (r *guildRepository) Upsert(ctx context.Context, settings *domain.GuildSettings) error {
	const query = `
        INSERT INTO guild_settings (guild_id, enabled, celebration_chan, celebration_role,
            ticket_channel, staff_ids, mention_subjects)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (guild_id) DO UPDATE SET
            enabled=EXCLUDED.enabled, celebration_chan=EXCLUDED.celebration_chan,
            celebration_role=EXCLUDED.celebration_role, ticket_channel=EXCLUDED.ticket_channel,
            staff_ids=EXCLUDED.staff_ids, mention_subjects=EXCLUDED.mention_subjects,
            updated_at=NOW()
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		settings.GuildID,
		settings.Enabled,
		settings.CelebrationChan,
		settings.CelebrationRole,
		settings.TicketChannel,
		settings.StaffIDs,
		settings.MentionSubjects,
	).Scan(&settings.CreatedAt, &settings.UpdatedAt)
}

func (r *guildRepository) ListEnabled(ctx context.Context) ([]domain.GuildSettings, error) {
	query := `SELECT ` + guildColumns + ` FROM guild_settings WHERE enabled ORDER BY guild_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.GuildSettings
	for rows.Next() {
		settings, err := scanGuild(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *settings)
	}
	return result, rows.Err()
}

func scanGuild(row rowScanner) (*domain.GuildSettings, error) {
	var settings domain.GuildSettings
	if err := row.Scan(
		&settings.GuildID,
		&settings.Enabled,
		&settings.CelebrationChan,
		&settings.CelebrationRole,
		&settings.TicketChannel,
		&settings.StaffIDs,
		&settings.MentionSubjects,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &settings, nil
}
