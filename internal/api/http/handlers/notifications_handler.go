package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// NotificationsHandler manages inbox and preference endpoints.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notificationService}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	filter := repository.NotificationFilter{
		UnreadOnly: c.QueryBool("unread_only"),
		Page:       parsePositiveInt(c.Query("page"), 1),
		PageSize:   parsePositiveInt(c.Query("page_size"), 20),
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	inbox, err := h.service.List(c.UserContext(), principal.ID, filter)
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(inbox.Notifications))
	for i := range inbox.Notifications {
		items = append(items, notificationResponse(&inbox.Notifications[i]))
	}
	return c.JSON(fiber.Map{"data": dto.InboxResponse{
		Notifications: items,
		UnreadCount:   inbox.UnreadCount,
		Meta:          dto.PageMeta{Page: filter.Page, PageSize: filter.PageSize, Total: inbox.Total},
	}})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.MarkRead(c.UserContext(), principal.ID, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"marked": true}})
}

// MarkAllRead POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.MarkAllRead(c.UserContext(), principal.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"marked": true}})
}

// ClearRead DELETE /notifications/read.
func (h *NotificationsHandler) ClearRead(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	removed, err := h.service.ClearRead(c.UserContext(), principal.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"removed": removed}})
}

// GetPreferences GET /notifications/preferences.
func (h *NotificationsHandler) GetPreferences(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	pref, err := h.service.GetPreferences(c.UserContext(), principal.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromPreference(pref)})
}

// UpdatePreferences PUT /notifications/preferences.
func (h *NotificationsHandler) UpdatePreferences(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.PreferenceResponse
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	pref, err := h.service.UpdatePreferences(c.UserContext(), principal.ID, req.ToDomain(principal.ID))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromPreference(pref)})
}

func notificationResponse(n *domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:          n.ID,
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
		RelatedType: n.RelatedType,
		RelatedID:   n.RelatedID,
		IsRead:      n.IsRead,
		ReadAt:      n.ReadAt,
		CreatedAt:   n.CreatedAt,
	}
}
