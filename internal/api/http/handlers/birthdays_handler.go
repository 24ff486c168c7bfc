package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/birthday-service/internal/api/dto"
	"github.com/spec-kit/birthday-service/internal/auth"
	"github.com/spec-kit/birthday-service/internal/domain"
	"github.com/spec-kit/birthday-service/internal/service"
	apperrors "github.com/spec-kit/birthday-service/pkg/util"
)

// BirthdaysHandler serves direct birthday management and lookups.
type BirthdaysHandler struct {
	birthdays *service.BirthdayService
}

func NewBirthdaysHandler(birthdays *service.BirthdayService) *BirthdaysHandler {
	return &BirthdaysHandler{birthdays: birthdays}
}

// Set PUT /guilds/:guildID/birthdays/:userID.
func (h *BirthdaysHandler) Set(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.SetBirthdayRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.SetInput{
		Birthday:         domain.Date{Month: req.Month, Day: req.Day, Year: req.Year},
		ShowAge:          req.ShowAge,
		IsActualBirthday: true,
		Preference:       domain.CelebrationPreference(strings.ToUpper(string(req.Preference))),
		CustomMessage:    req.CustomMessage,
	}
	if req.IsActualBirthday != nil {
		input.IsActualBirthday = *req.IsActualBirthday
	}
	if input.Preference == "" {
		input.Preference = domain.CelebrationPublic
	}

	record, err := h.birthdays.Set(c.Context(), c.Params("guildID"), principal.Account.ID, c.Params("userID"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewBirthdayResponse(record)})
}

// Get GET /guilds/:guildID/birthdays/:userID.
func (h *BirthdaysHandler) Get(c *fiber.Ctx) error {
	record, err := h.birthdays.Get(c.Context(), c.Params("guildID"), c.Params("userID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewBirthdayResponse(record)})
}

// Remove DELETE /guilds/:guildID/birthdays/:userID.
func (h *BirthdaysHandler) Remove(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.birthdays.Remove(c.Context(), c.Params("guildID"), principal.Account.ID, c.Params("userID")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Upcoming GET /guilds/:guildID/birthdays/upcoming?limit=N.
func (h *BirthdaysHandler) Upcoming(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return apperrors.NewValidationError("limit must be a non-negative integer", nil)
		}
		limit = parsed
	}

	entries, err := h.birthdays.Upcoming(c.Context(), c.Params("guildID"), limit)
	if err != nil {
		return err
	}
	items := make([]dto.UpcomingBirthdayResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewUpcomingResponse(entry))
	}
	return c.JSON(fiber.Map{"data": items})
}
