package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// StaffTicketsHandler manages staff-side ticket operations.
type StaffTicketsHandler struct {
	lifecycle *service.LifecycleService
	queries   *service.TicketQueryService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(lifecycle *service.LifecycleService, queries *service.TicketQueryService) *StaffTicketsHandler {
	return &StaffTicketsHandler{lifecycle: lifecycle, queries: queries}
}

// Transition POST /staff/tickets/:id/transition.
func (h *StaffTicketsHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.Transition(c.UserContext(), principal, c.Params("id"), req.Status, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Assign POST /staff/tickets/:id/assign.
func (h *StaffTicketsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID == "" {
		return apperrors.NewValidationError("assignee_id required", nil)
	}
	ticket, err := h.lifecycle.Assign(c.UserContext(), principal, c.Params("id"), req.AssigneeID, req.TeamID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Update PATCH /staff/tickets/:id.
func (h *StaffTicketsHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.UpdateDetails(c.UserContext(), principal, c.Params("id"), service.UpdateDetailsInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Stats GET /staff/tickets/stats.
func (h *StaffTicketsHandler) Stats(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	stats, err := h.queries.Stats(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatsResponse{
		Total:                stats.Total,
		ByStatus:             stats.ByStatus,
		ByPriority:           stats.ByPriority,
		ByCategory:           stats.ByCategory,
		ResolvedCount:        stats.ResolvedCount,
		AvgResolutionSeconds: stats.AvgResolution.Seconds(),
		SLAComplianceRate:    stats.SLAComplianceRate,
	}})
}
