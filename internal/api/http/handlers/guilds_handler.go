package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/birthday-service/internal/api/dto"
	"github.com/spec-kit/birthday-service/internal/auth"
	"github.com/spec-kit/birthday-service/internal/domain"
	"github.com/spec-kit/birthday-service/internal/service"
	apperrors "github.com/spec-kit/birthday-service/pkg/util"
)

// GuildsHandler serves guild settings.
type GuildsHandler struct {
	guilds *service.GuildService
}

func NewGuildsHandler(guilds *service.GuildService) *GuildsHandler {
	return &GuildsHandler{guilds: guilds}
}

// Get GET /guilds/:guildID/settings.
func (h *GuildsHandler) Get(c *fiber.Ctx) error {
	settings, err := h.guilds.Get(c.Context(), c.Params("guildID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewGuildSettingsResponse(settings)})
}

// Upsert PUT /guilds/:guildID/settings.
func (h *GuildsHandler) Upsert(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.GuildSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	settings, err := h.guilds.Upsert(c.Context(), principal.Account.ID, &domain.GuildSettings{
		GuildID:         c.Params("guildID"),
		Enabled:         req.Enabled,
		CelebrationChan: req.CelebrationChan,
		CelebrationRole: req.CelebrationRole,
		TicketChannel:   req.TicketChannel,
		StaffIDs:        req.StaffIDs,
		MentionSubjects: req.MentionSubjects,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewGuildSettingsResponse(settings)})
}
