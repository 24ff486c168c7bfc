package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/birthday-service/internal/domain"
)

// BirthdayRepository encapsulates birthday record persistence.
type BirthdayRepository interface {
	Upsert(ctx context.Context, record *domain.BirthdayRecord) error
	Get(ctx context.Context, guildID, userID string) (*domain.BirthdayRecord, error)
	Delete(ctx context.Context, guildID, userID string) error
	ListByGuild(ctx context.Context, guildID string) ([]domain.BirthdayRecord, error)
	ListDue(ctx context.Context, guildID string, month, day int) ([]domain.BirthdayRecord, error)
	// StampCelebrated marks the record celebrated on the given day unless it
	// already carries a stamp for that day. Returns false when another
	// trigger won the stamp.
	StampCelebrated(ctx context.Context, guildID, userID string, day time.Time) (bool, error)
}

type birthdayRepository struct {
	pool *pgxpool.Pool
}

// NewBirthdayRepository instantiates repository.
func NewBirthdayRepository(pool *pgxpool.Pool) BirthdayRepository {
	return &birthdayRepository{pool: pool}
}

const birthdayColumns = `guild_id, user_id, birth_month, birth_day, birth_year, show_age,
       is_actual_birthday, preference, custom_message, source, set_by,
       verified, verified_by, verified_at, last_celebrated, notification_sent,
       created_at, updated_at`

func (r *birthdayRepository) Upsert(ctx context.Context, record *domain.BirthdayRecord) error {
	const query = `
        INSERT INTO birthday_records (guild_id, user_id, birth_month, birth_day, birth_year,
            show_age, is_actual_birthday, preference, custom_message, source, set_by,
            verified, verified_by, verified_at, last_celebrated, notification_sent)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        ON CONFLICT (guild_id, user_id) DO UPDATE SET
            birth_month=EXCLUDED.birth_month, birth_day=EXCLUDED.birth_day,
            birth_year=EXCLUDED.birth_year, show_age=EXCLUDED.show_age,
            is_actual_birthday=EXCLUDED.is_actual_birthday, preference=EXCLUDED.preference,
            custom_message=EXCLUDED.custom_message, source=EXCLUDED.source,
            set_by=EXCLUDED.set_by, verified=EXCLUDED.verified,
            verified_by=EXCLUDED.verified_by, verified_at=EXCLUDED.verified_at,
            updated_at=NOW()
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		record.GuildID,
		record.UserID,
		record.Birthday.Month,
		record.Birthday.Day,
		record.Birthday.Year,
		record.ShowAge,
		record.IsActualBirthday,
		record.Preference,
		record.CustomMessage,
		record.Source,
		record.SetBy,
		record.Verified,
		record.VerifiedBy,
		record.VerifiedAt,
		record.LastCelebrated,
		record.NotificationSent,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
}

func (r *birthdayRepository) Get(ctx context.Context, guildID, userID string) (*domain.BirthdayRecord, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthday_records WHERE guild_id=$1 AND user_id=$2`
	row := r.pool.QueryRow(ctx, query, guildID, userID)
	return scanBirthday(row)
}

func (r *birthdayRepository) Delete(ctx context.Context, guildID, userID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM birthday_records WHERE guild_id=$1 AND user_id=$2`, guildID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *birthdayRepository) ListByGuild(ctx context.Context, guildID string) ([]domain.BirthdayRecord, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthday_records WHERE guild_id=$1
              ORDER BY birth_month, birth_day`
	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBirthdays(rows)
}

func (r *birthdayRepository) ListDue(ctx context.Context, guildID string, month, day int) ([]domain.BirthdayRecord, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthday_records
              WHERE guild_id=$1 AND birth_month=$2 AND birth_day=$3`
	rows, err := r.pool.Query(ctx, query, guildID, month, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBirthdays(rows)
}

func (r *birthdayRepository) StampCelebrated(ctx context.Context, guildID, userID string, day time.Time) (bool, error) {
	const query = `
        UPDATE birthday_records
        SET last_celebrated=$3, notification_sent=TRUE, updated_at=NOW()
        WHERE guild_id=$1 AND user_id=$2
          AND (last_celebrated IS NULL OR last_celebrated::date <> $3::date)`
	cmd, err := r.pool.Exec(ctx, query, guildID, userID, day)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBirthday(row rowScanner) (*domain.BirthdayRecord, error) {
	var record domain.BirthdayRecord
	if err := row.Scan(
		&record.GuildID,
		&record.UserID,
		&record.Birthday.Month,
		&record.Birthday.Day,
		&record.Birthday.Year,
		&record.ShowAge,
		&record.IsActualBirthday,
		&record.Preference,
		&record.CustomMessage,
		&record.Source,
		&record.SetBy,
		&record.Verified,
		&record.VerifiedBy,
		&record.VerifiedAt,
		&record.LastCelebrated,
		&record.NotificationSent,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}

func scanBirthdays(rows pgx.Rows) ([]domain.BirthdayRecord, error) {
	var result []domain.BirthdayRecord
	for rows.Next() {
		record, err := scanBirthday(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *record)
	}
	return result, rows.Err()
}
