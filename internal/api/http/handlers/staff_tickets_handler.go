package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/birthday-service/internal/api/dto"
	"github.com/spec-kit/birthday-service/internal/auth"
	"github.com/spec-kit/birthday-service/internal/domain"
	"github.com/spec-kit/birthday-service/internal/service"
	apperrors "github.com/spec-kit/birthday-service/pkg/util"
)

// StaffTicketsHandler exposes the review side of the ticket workflow.
// Mutations are staff-gated inside the workflow; read endpoints check here.
type StaffTicketsHandler struct {
	workflow *service.TicketWorkflow
	staff    service.StaffChecker
}

func NewStaffTicketsHandler(workflow *service.TicketWorkflow, staff service.StaffChecker) *StaffTicketsHandler {
	return &StaffTicketsHandler{workflow: workflow, staff: staff}
}

func (h *StaffTicketsHandler) requireStaff(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	isStaff, err := h.staff.IsStaff(c.Context(), principal.Account.ID, c.Params("guildID"))
	if err != nil {
		return apperrors.MapError(err)
	}
	if !isStaff {
		return apperrors.NewForbidden("staff permission required")
	}
	return nil
}

// ListOpen GET /guilds/:guildID/staff/tickets.
func (h *StaffTicketsHandler) ListOpen(c *fiber.Ctx) error {
	if err := h.requireStaff(c); err != nil {
		return err
	}
	tickets, err := h.workflow.ListOpen(c.Context(), c.Params("guildID"))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /guilds/:guildID/staff/tickets/:ref.
func (h *StaffTicketsHandler) Get(c *fiber.Ctx) error {
	if err := h.requireStaff(c); err != nil {
		return err
	}
	ticket, err := h.workflow.Find(c.Context(), c.Params("guildID"), c.Params("ref"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Approve POST /guilds/:guildID/staff/tickets/:ref/approve.
func (h *StaffTicketsHandler) Approve(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.workflow.Approve(c.Context(), c.Params("guildID"), c.Params("ref"), principal.Account.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Reject POST /guilds/:guildID/staff/tickets/:ref/reject.
func (h *StaffTicketsHandler) Reject(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RejectTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.workflow.Reject(c.Context(), c.Params("guildID"), c.Params("ref"), principal.Account.ID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Reopen POST /guilds/:guildID/staff/tickets/:ref/reopen.
func (h *StaffTicketsHandler) Reopen(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.workflow.Reopen(c.Context(), c.Params("guildID"), c.Params("ref"), principal.Account.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AddNote POST /guilds/:guildID/staff/tickets/:ref/notes.
func (h *StaffTicketsHandler) AddNote(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.NoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.workflow.AddNote(c.Context(), c.Params("guildID"), c.Params("ref"), principal.Account.ID, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// SetPriority POST /guilds/:guildID/staff/tickets/:ref/priority.
func (h *StaffTicketsHandler) SetPriority(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.PriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	priority := domain.TicketPriority(strings.ToUpper(strings.TrimSpace(string(req.Priority))))
	ticket, err := h.workflow.SetPriority(c.Context(), c.Params("guildID"), c.Params("ref"), principal.Account.ID, priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}
