package dto

import (
	"time"

	"github.com/spec-kit/birthday-service/internal/domain"
	"github.com/spec-kit/birthday-service/internal/service"
)

// SetBirthdayRequest payload for direct staff sets.
type SetBirthdayRequest struct {
	Month            int                           `json:"month"`
	Day              int                           `json:"day"`
	Year             *int                          `json:"year,omitempty"`
	ShowAge          bool                          `json:"show_age"`
	IsActualBirthday *bool                         `json:"is_actual_birthday,omitempty"`
	Preference       domain.CelebrationPreference  `json:"preference,omitempty"`
	CustomMessage    *string                       `json:"custom_message,omitempty"`
}

// BirthdayResponse mirrors a stored record.
type BirthdayResponse struct {
	GuildID          string                       `json:"guild_id"`
	UserID           string                       `json:"user_id"`
	Birthday         DateResponse                 `json:"birthday"`
	ShowAge          bool                         `json:"show_age"`
	IsActualBirthday bool                         `json:"is_actual_birthday"`
	Preference       domain.CelebrationPreference `json:"preference"`
	CustomMessage    *string                      `json:"custom_message,omitempty"`
	Source           domain.BirthdaySource        `json:"source"`
	Verified         bool                         `json:"verified"`
	LastCelebrated   *time.Time                   `json:"last_celebrated,omitempty"`
	UpdatedAt        time.Time                    `json:"updated_at"`
}

// NewBirthdayResponse maps a domain record.
func NewBirthdayResponse(record *domain.BirthdayRecord) BirthdayResponse {
	return BirthdayResponse{
		GuildID:          record.GuildID,
		UserID:           record.UserID,
		Birthday:         NewDateResponse(record.Birthday),
		ShowAge:          record.ShowAge,
		IsActualBirthday: record.IsActualBirthday,
		Preference:       record.Preference,
		CustomMessage:    record.CustomMessage,
		Source:           record.Source,
		Verified:         record.Verified,
		LastCelebrated:   record.LastCelebrated,
		UpdatedAt:        record.UpdatedAt,
	}
}

// UpcomingBirthdayResponse pairs a record with its next occurrence.
type UpcomingBirthdayResponse struct {
	UserID   string       `json:"user_id"`
	Birthday DateResponse `json:"birthday"`
	Next     time.Time    `json:"next"`
}

// NewUpcomingResponse maps an upcoming entry.
func NewUpcomingResponse(entry service.UpcomingBirthday) UpcomingBirthdayResponse {
	return UpcomingBirthdayResponse{
		UserID:   entry.Record.UserID,
		Birthday: NewDateResponse(entry.Record.Birthday),
		Next:     entry.Next,
	}
}
