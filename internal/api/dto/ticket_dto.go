package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Priority       domain.TicketPriority `json:"priority"`
	CategoryID     string                `json:"category_id"`
	Channel        domain.TicketChannel  `json:"channel"`
	RequesterName  string                `json:"requester_name,omitempty"`
	RequesterEmail string                `json:"requester_email,omitempty"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status  domain.TicketStatus `json:"status"`
	Comment string              `json:"comment,omitempty"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string  `json:"assignee_id"`
	TeamID     *string `json:"team_id,omitempty"`
}

// CommentRequest payload.
type CommentRequest struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"is_internal"`
}

// SatisfactionRequest payload.
type SatisfactionRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment,omitempty"`
}

// UpdateTicketRequest carries optional staff edits; absent fields stay
// unchanged.
type UpdateTicketRequest struct {
	Title       *string                `json:"title,omitempty"`
	Description *string                `json:"description,omitempty"`
	Priority    *domain.TicketPriority `json:"priority,omitempty"`
	CategoryID  *string                `json:"category_id,omitempty"`
}

// IdentityResponse is a point-in-time actor snapshot.
type IdentityResponse struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// TicketSummary response.
type TicketSummary struct {
	ID                 string                `json:"id"`
	Title              string                `json:"title"`
	Status             domain.TicketStatus   `json:"status"`
	Priority           domain.TicketPriority `json:"priority"`
	CategoryID         string                `json:"category_id"`
	Channel            domain.TicketChannel  `json:"channel"`
	Requester          IdentityResponse      `json:"requester"`
	Assignee           *IdentityResponse     `json:"assignee,omitempty"`
	Team               *IdentityResponse     `json:"team,omitempty"`
	ResponseDeadline   *time.Time            `json:"response_deadline,omitempty"`
	ResolutionDeadline *time.Time            `json:"resolution_deadline,omitempty"`
	SLABreached        bool                  `json:"sla_breached"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description         string            `json:"description"`
	SatisfactionRating  *int              `json:"satisfaction_rating,omitempty"`
	SatisfactionComment *string           `json:"satisfaction_comment,omitempty"`
	ResolvedAt          *time.Time        `json:"resolved_at,omitempty"`
	ClosedAt            *time.Time        `json:"closed_at,omitempty"`
	Comments            []CommentResponse `json:"comments"`
	History             []HistoryResponse `json:"history"`
}

// CommentResponse represents one ticket comment.
type CommentResponse struct {
	ID         string           `json:"id"`
	Content    string           `json:"content"`
	IsInternal bool             `json:"is_internal"`
	Author     IdentityResponse `json:"author"`
	CreatedAt  time.Time        `json:"created_at"`
}

// HistoryResponse represents one status transition.
type HistoryResponse struct {
	ID         string              `json:"id"`
	FromStatus domain.TicketStatus `json:"from_status"`
	ToStatus   domain.TicketStatus `json:"to_status"`
	Comment    *string             `json:"comment,omitempty"`
	Actor      IdentityResponse    `json:"actor"`
	CreatedAt  time.Time           `json:"created_at"`
}

// CategoryResponse represents one ticket category.
type CategoryResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ParentID    *string `json:"parent_id,omitempty"`
}

// StatsResponse is the staff dashboard aggregate view.
type StatsResponse struct {
	Total                int            `json:"total"`
	ByStatus             map[string]int `json:"by_status"`
	ByPriority           map[string]int `json:"by_priority"`
	ByCategory           map[string]int `json:"by_category"`
	ResolvedCount        int            `json:"resolved_count"`
	AvgResolutionSeconds float64        `json:"avg_resolution_seconds"`
	SLAComplianceRate    float64        `json:"sla_compliance_rate"`
}

// PageMeta describes pagination of a list response.
type PageMeta struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}
