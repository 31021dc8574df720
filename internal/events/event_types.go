package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates lifecycle event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
	EventSLAWarning          EventType = "sla_warning"
	EventSLABreached         EventType = "sla_breached"
)

// Event represents a lifecycle event emitted by the engine. Actor is nil
// for system-originated events such as the periodic SLA sweep.
type Event struct {
	ID        string           `json:"id"`
	Type      EventType        `json:"type"`
	TicketID  string           `json:"ticket_id"`
	Actor     *domain.Identity `json:"actor,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   interface{}      `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title       string                `json:"title"`
	Priority    domain.TicketPriority `json:"priority"`
	CategoryID  string                `json:"category_id"`
	RequesterID string                `json:"requester_id"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Title      string                `json:"title"`
	Priority   domain.TicketPriority `json:"priority"`
	AssigneeID string                `json:"assignee_id"`
	TeamID     *string               `json:"team_id,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	Title       string              `json:"title"`
	OldStatus   domain.TicketStatus `json:"old_status"`
	NewStatus   domain.TicketStatus `json:"new_status"`
	Comment     string              `json:"comment,omitempty"`
	RequesterID string              `json:"requester_id"`
	AssigneeID  *string             `json:"assignee_id,omitempty"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	Title       string  `json:"title"`
	CommentID   string  `json:"comment_id"`
	IsInternal  bool    `json:"is_internal"`
	Preview     string  `json:"preview"`
	RequesterID string  `json:"requester_id"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
}

// SLAAlertPayload payload for both warnings and breaches.
type SLAAlertPayload struct {
	Title      string                `json:"title"`
	Priority   domain.TicketPriority `json:"priority"`
	Status     domain.TicketStatus   `json:"status"`
	AssigneeID *string               `json:"assignee_id,omitempty"`
	Deadline   time.Time             `json:"deadline"`
}
