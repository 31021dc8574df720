package service

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/visibility"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// TicketQueryService serves the read side: listings, detail views,
// categories and aggregate stats. End users are always scoped to their
// own tickets and never see internal comments.
type TicketQueryService struct {
	tickets    repository.TicketRepository
	comments   repository.TicketCommentRepository
	history    repository.TicketHistoryRepository
	categories repository.CategoryRepository
	analytics  repository.AnalyticsRepository
}

// QueryDependencies bundles repositories for the query service.
type QueryDependencies struct {
	TicketRepo    repository.TicketRepository
	CommentRepo   repository.TicketCommentRepository
	HistoryRepo   repository.TicketHistoryRepository
	CategoryRepo  repository.CategoryRepository
	AnalyticsRepo repository.AnalyticsRepository
}

// NewTicketQueryService constructs the service.
func NewTicketQueryService(deps QueryDependencies) *TicketQueryService {
	return &TicketQueryService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		categories: deps.CategoryRepo,
		analytics:  deps.AnalyticsRepo,
	}
}

// TicketDetail is a ticket with its visible comments and full history.
type TicketDetail struct {
	Ticket   *domain.Ticket
	Comments []domain.TicketComment
	History  []domain.TicketHistoryEntry
}

// ListTickets returns a page of tickets plus the unpaged total. For end
// users the filter is forced onto their own tickets regardless of input.
func (s *TicketQueryService) ListTickets(ctx context.Context, actor *domain.User, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	if actor == nil {
		return nil, 0, apperrors.NewForbidden("authentication required")
	}
	if !actor.Role.IsStaff() {
		requesterID := actor.ID
		filter.RequesterID = &requesterID
	}
	return s.tickets.List(ctx, filter)
}

// GetTicket returns one ticket with comments and history. Internal
// comments are filtered out for end users.
func (s *TicketQueryService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*TicketDetail, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !visibility.CanView(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}

	comments, err := s.comments.ListByTicket(ctx, ticket.ID, actor.Role.IsStaff())
	if err != nil {
		return nil, err
	}
	history, err := s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	return &TicketDetail{Ticket: ticket, Comments: comments, History: history}, nil
}

// ListCategories returns all ticket categories.
func (s *TicketQueryService) ListCategories(ctx context.Context) ([]domain.TicketCategory, error) {
	return s.categories.List(ctx)
}

// Stats returns aggregate ticket metrics for the staff dashboard.
func (s *TicketQueryService) Stats(ctx context.Context, actor *domain.User) (*repository.TicketStats, error) {
	if actor == nil || !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	return s.analytics.Stats(ctx)
}
