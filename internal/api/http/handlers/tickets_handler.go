package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/birthday-service/internal/api/dto"
	"github.com/spec-kit/birthday-service/internal/auth"
	"github.com/spec-kit/birthday-service/internal/domain"
	"github.com/spec-kit/birthday-service/internal/service"
	apperrors "github.com/spec-kit/birthday-service/pkg/util"
)

// TicketsHandler manages subject-facing ticket endpoints.
type TicketsHandler struct {
	workflow *service.TicketWorkflow
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(workflow *service.TicketWorkflow) *TicketsHandler {
	return &TicketsHandler{workflow: workflow}
}

// Submit POST /guilds/:guildID/tickets.
func (h *TicketsHandler) Submit(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.SubmitTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.workflow.Submit(c.Context(), service.SubmitInput{
		GuildID:   c.Params("guildID"),
		UserID:    principal.Account.ID,
		Requested: domain.Date{Month: req.Month, Day: req.Day, Year: req.Year},
		Reason:    req.Reason,
	})
	if err != nil {
		return err
	}
	if result.NoChange {
		return c.JSON(fiber.Map{"data": dto.SubmitTicketResponse{NoChange: true}})
	}
	ticket := dto.NewTicketResponse(result.Ticket)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.SubmitTicketResponse{Ticket: &ticket}})
}

// ListMine GET /guilds/:guildID/tickets/mine.
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	tickets, err := h.workflow.ListForUser(c.Context(), c.Params("guildID"), principal.Account.ID)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /guilds/:guildID/tickets/:ref.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.workflow.Find(c.Context(), c.Params("guildID"), c.Params("ref"))
	if err != nil {
		return err
	}
	if ticket.UserID != principal.Account.ID && !principal.Account.IsAdmin {
		// staff may view any ticket; gated in the staff route group
		return apperrors.NewForbidden("not your ticket")
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Cancel POST /guilds/:guildID/tickets/:ref/cancel.
func (h *TicketsHandler) Cancel(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.workflow.Cancel(c.Context(), c.Params("guildID"), c.Params("ref"), principal.Account.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}
