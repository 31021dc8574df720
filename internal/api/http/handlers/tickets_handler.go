package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints shared by end users and staff.
type TicketsHandler struct {
	lifecycle *service.LifecycleService
	queries   *service.TicketQueryService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(lifecycle *service.LifecycleService, queries *service.TicketQueryService) *TicketsHandler {
	return &TicketsHandler{lifecycle: lifecycle, queries: queries}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Title == "" || req.CategoryID == "" {
		return apperrors.NewValidationError("title and category_id required", nil)
	}

	ticket, err := h.lifecycle.CreateTicket(c.UserContext(), principal, service.CreateTicketInput{
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		CategoryID:     req.CategoryID,
		Channel:        req.Channel,
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	filter := parseTicketQuery(c)
	tickets, total, err := h.queries.ListTickets(c.UserContext(), principal, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": dto.PageMeta{Page: filter.Page, PageSize: filter.PageSize, Total: total},
	})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	detail, err := h.queries.GetTicket(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(detail)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.lifecycle.AddComment(c.UserContext(), principal, c.Params("id"), req.Content, req.IsInternal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// RateTicket POST /tickets/:id/satisfaction.
func (h *TicketsHandler) RateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.SatisfactionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.RecordSatisfaction(c.UserContext(), principal, c.Params("id"), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListCategories GET /categories.
func (h *TicketsHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.queries.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.CategoryResponse, 0, len(categories))
	for _, category := range categories {
		items = append(items, dto.CategoryResponse{
			ID:          category.ID,
			Name:        category.Name,
			Description: category.Description,
			ParentID:    category.ParentID,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if categoryID := c.Query("category_id"); categoryID != "" {
		filter.CategoryID = &categoryID
	}
	if assigneeID := c.Query("assignee_id"); assigneeID != "" {
		filter.AssigneeID = &assigneeID
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.SearchTerm = &search
	}
	filter.Page = parsePositiveInt(c.Query("page"), 1)
	filter.PageSize = parsePositiveInt(c.Query("page_size"), 20)
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	return filter
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func identityResponse(id domain.Identity) dto.IdentityResponse {
	return dto.IdentityResponse{ID: id.ID, Name: id.Name, Email: id.Email}
}

func identityResponsePtr(id *domain.Identity) *dto.IdentityResponse {
	if id == nil {
		return nil
	}
	resp := identityResponse(*id)
	return &resp
}

func ticketSummary(t *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:                 t.ID,
		Title:              t.Title,
		Status:             t.Status,
		Priority:           t.Priority,
		CategoryID:         t.CategoryID,
		Channel:            t.Channel,
		Requester:          identityResponse(t.Requester),
		Assignee:           identityResponsePtr(t.Assignee),
		Team:               identityResponsePtr(t.Team),
		ResponseDeadline:   t.ResponseDeadline,
		ResolutionDeadline: t.ResolutionDeadline,
		SLABreached:        t.Breached,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func ticketDetail(detail *service.TicketDetail) dto.TicketDetailResponse {
	ticket := detail.Ticket
	comments := make([]dto.CommentResponse, 0, len(detail.Comments))
	for i := range detail.Comments {
		comments = append(comments, commentResponse(&detail.Comments[i]))
	}
	history := make([]dto.HistoryResponse, 0, len(detail.History))
	for _, entry := range detail.History {
		history = append(history, dto.HistoryResponse{
			ID:         entry.ID,
			FromStatus: entry.FromStatus,
			ToStatus:   entry.ToStatus,
			Comment:    entry.Comment,
			Actor:      identityResponse(entry.Actor),
			CreatedAt:  entry.CreatedAt,
		})
	}
	return dto.TicketDetailResponse{
		TicketSummary:       ticketSummary(ticket),
		Description:         ticket.Description,
		SatisfactionRating:  ticket.SatisfactionRating,
		SatisfactionComment: ticket.SatisfactionComment,
		ResolvedAt:          ticket.ResolvedAt,
		ClosedAt:            ticket.ClosedAt,
		Comments:            comments,
		History:             history,
	}
}

func commentResponse(c *domain.TicketComment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:         c.ID,
		Content:    c.Content,
		IsInternal: c.IsInternal,
		Author:     identityResponse(c.Author),
		CreatedAt:  c.CreatedAt,
	}
}
