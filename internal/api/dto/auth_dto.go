package dto

import (
	"time"

	"github.com/spec-kit/birthday-service/internal/domain"
)

// RegisterRequest payload.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AccountResponse mirrors an account, sans credentials.
type AccountResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   AccountResponse `json:"account"`
}

// NewAccountResponse maps a domain account.
func NewAccountResponse(account *domain.Account) AccountResponse {
	return AccountResponse{ID: account.ID, Username: account.Username, IsAdmin: account.IsAdmin}
}

// GuildSettingsRequest payload.
type GuildSettingsRequest struct {
	Enabled         bool     `json:"enabled"`
	CelebrationChan *string  `json:"celebration_channel,omitempty"`
	CelebrationRole *string  `json:"celebration_role,omitempty"`
	TicketChannel   *string  `json:"ticket_channel,omitempty"`
	StaffIDs        []string `json:"staff_ids"`
	MentionSubjects bool     `json:"mention_subjects"`
}

// GuildSettingsResponse mirrors guild settings.
type GuildSettingsResponse struct {
	GuildID         string   `json:"guild_id"`
	Enabled         bool     `json:"enabled"`
	CelebrationChan *string  `json:"celebration_channel,omitempty"`
	CelebrationRole *string  `json:"celebration_role,omitempty"`
	TicketChannel   *string  `json:"ticket_channel,omitempty"`
	StaffIDs        []string `json:"staff_ids"`
	MentionSubjects bool     `json:"mention_subjects"`
}

// NewGuildSettingsResponse maps domain settings.
func NewGuildSettingsResponse(settings *domain.GuildSettings) GuildSettingsResponse {
	return GuildSettingsResponse{
		GuildID:         settings.GuildID,
		Enabled:         settings.Enabled,
		CelebrationChan: settings.CelebrationChan,
		CelebrationRole: settings.CelebrationRole,
		TicketChannel:   settings.TicketChannel,
		StaffIDs:        settings.StaffIDs,
		MentionSubjects: settings.MentionSubjects,
	}
}
